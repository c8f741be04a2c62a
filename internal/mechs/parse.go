package mechs

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/MarcoPoloResearchLab/sortie/internal/apperr"
	"github.com/MarcoPoloResearchLab/sortie/internal/jsontext"
)

// ErrInvalidImport marks a rejected mech import.
var ErrInvalidImport = errors.New("invalid mech import")

type importDocument struct {
	Mech *struct {
		Name     json.RawMessage `json:"名前"`
		Type     json.RawMessage `json:"Type"`
		TLv      json.RawMessage `json:"TLv"`
		Mobility json.RawMessage `json:"機動"`
		Armor    json.RawMessage `json:"装甲"`
		Load     json.RawMessage `json:"積載"`
	} `json:"機体"`
}

type parsed struct {
	name     string
	mechType string
	tlv      int
	mobility int
	armor    int
	load     int
}

func invalid(message string) error {
	return apperr.WrapUser(ErrInvalidImport, message)
}

func parseImport(text string) (parsed, error) {
	var doc importDocument
	if err := json.Unmarshal([]byte(jsontext.StripCodeFence(text)), &doc); err != nil {
		return parsed{}, invalid("Invalid JSON. Paste `{ \"機体\": { ... } }`.")
	}
	if doc.Mech == nil {
		return parsed{}, invalid("Key `機体` is missing.")
	}

	var result parsed
	var err error
	if result.name, err = stringField(doc.Mech.Name, "名前"); err != nil {
		return parsed{}, err
	}
	if result.mechType, err = stringField(doc.Mech.Type, "Type"); err != nil {
		return parsed{}, err
	}
	if !slices.Contains(Types, result.mechType) {
		return parsed{}, invalid(fmt.Sprintf("`Type` must be one of %s.", strings.Join(Types, "|")))
	}
	fields := []struct {
		raw    json.RawMessage
		label  string
		target *int
	}{
		{doc.Mech.TLv, "TLv", &result.tlv},
		{doc.Mech.Mobility, "機動", &result.mobility},
		{doc.Mech.Armor, "装甲", &result.armor},
		{doc.Mech.Load, "積載", &result.load},
	}
	for _, field := range fields {
		var value jsontext.Int
		if len(field.raw) == 0 || json.Unmarshal(field.raw, &value) != nil {
			return parsed{}, invalid(fmt.Sprintf("`%s` must be a number.", field.label))
		}
		*field.target = int(value)
	}
	return result, nil
}

func stringField(raw json.RawMessage, label string) (string, error) {
	var value *string
	if len(raw) == 0 || json.Unmarshal(raw, &value) != nil || value == nil {
		return "", invalid(fmt.Sprintf("`%s` must be a string.", label))
	}
	return strings.TrimSpace(*value), nil
}
