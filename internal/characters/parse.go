package characters

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/MarcoPoloResearchLab/sortie/internal/apperr"
	"github.com/MarcoPoloResearchLab/sortie/internal/jsontext"
)

// ErrInvalidImport marks a rejected character import.
var ErrInvalidImport = errors.New("invalid character import")

const unnamed = "NO NAME"

type importDocument struct {
	Basic *struct {
		Name   json.RawMessage `json:"名前"`
		Gender json.RawMessage `json:"性別"`
		Age    json.RawMessage `json:"年齢"`
	} `json:"基本情報"`
	Abilities map[string]jsontext.Int `json:"能力値"`
	Skills    map[string]jsontext.Int `json:"技能"`
}

// parsed is a validated import awaiting an id and owner.
type parsed struct {
	name      string
	gender    string
	age       string
	abilities map[string]int
	skills    map[string]int
}

func invalid(message string) error {
	return apperr.WrapUser(ErrInvalidImport, message)
}

func parseImport(text string) (parsed, error) {
	var doc importDocument
	if err := json.Unmarshal([]byte(jsontext.StripCodeFence(text)), &doc); err != nil {
		return parsed{}, invalid("Could not parse the JSON. Paste a valid character JSON, optionally inside ```.")
	}
	if doc.Basic == nil || doc.Abilities == nil || doc.Skills == nil {
		return parsed{}, invalid("Required keys are missing (基本情報 / 能力値 / 技能).")
	}

	result := parsed{
		name:      jsontext.Text(doc.Basic.Name),
		gender:    jsontext.Text(doc.Basic.Gender),
		age:       jsontext.Text(doc.Basic.Age),
		abilities: make(map[string]int, len(Abilities)),
		skills:    make(map[string]int, len(doc.Skills)),
	}
	if result.name == "" {
		result.name = unnamed
	}

	for _, ability := range Abilities {
		value, ok := doc.Abilities[ability]
		if !ok {
			return parsed{}, invalid(fmt.Sprintf("Ability %s is missing.", ability))
		}
		if value < MinAbility || value > MaxAbility {
			return parsed{}, invalid(fmt.Sprintf("Ability %s must be 1-6 (got %d).", ability, value))
		}
		result.abilities[ability] = int(value)
	}

	for _, skill := range AllSkills() {
		value, ok := doc.Skills[skill]
		if !ok {
			return parsed{}, invalid(fmt.Sprintf("Skill %s is missing.", skill))
		}
		if value < MinSkill || value > MaxSkill {
			return parsed{}, invalid(fmt.Sprintf("Skill %s must be 0-10 (got %d).", skill, value))
		}
		result.skills[skill] = int(value)
	}
	return result, nil
}
