package mechs

import (
	"context"
	"fmt"
	"strings"

	"github.com/MarcoPoloResearchLab/sortie/internal/jsontext"
	"github.com/MarcoPoloResearchLab/sortie/internal/selection"
)

// FormatSheet renders the status block. The sync rank is not shown.
func FormatSheet(mech Mech) string {
	return strings.Join([]string{
		"## " + mech.Name,
		"─=≡STATUS≡=─",
		"```",
		"Type：" + mech.Type,
		fmt.Sprintf("TLv ：%d", mech.TLv),
		fmt.Sprintf("機動：%d", mech.Mobility),
		fmt.Sprintf("装甲：%d／%d", mech.ArmorCurrent, mech.ArmorMax),
		fmt.Sprintf("積載：%d", mech.Load),
		"```",
	}, "\n")
}

// Property is a sheet value players can ask for by typing its name.
type Property string

const (
	PropType     Property = "Type"
	PropTLv      Property = "TLv"
	PropMobility Property = "機動"
	PropArmor    Property = "装甲"
	PropLoad     Property = "積載"
	PropSync     Property = "同調率"
)

// MatchProperty recognises a message that is exactly a property name.
func MatchProperty(content string) (Property, bool) {
	cleaned := jsontext.CleanMessage(content)
	switch strings.ToLower(jsontext.FoldFullWidth(cleaned)) {
	case "type":
		return PropType, true
	case "tlv":
		return PropTLv, true
	}
	switch Property(cleaned) {
	case PropMobility, PropArmor, PropLoad, PropSync:
		return Property(cleaned), true
	}
	return "", false
}

// Describe renders one property of mech.
func (p Property) Describe(mech Mech) string {
	switch p {
	case PropType:
		return fmt.Sprintf("Type：**%s**", mech.Type)
	case PropTLv:
		return fmt.Sprintf("TLv：**%d**", mech.TLv)
	case PropMobility:
		return fmt.Sprintf("機動：**%d**", mech.Mobility)
	case PropArmor:
		return fmt.Sprintf("装甲：**%d／%d**", mech.ArmorCurrent, mech.ArmorMax)
	case PropLoad:
		return fmt.Sprintf("積載：**%d**", mech.Load)
	case PropSync:
		return fmt.Sprintf("同調率：**%s**", FormatSync(mech.SyncLevel))
	}
	return ""
}

// AnswerProperty describes the property for the player's selected mech.
func (s *Service) AnswerProperty(ctx context.Context, key selection.Key, property Property) (string, error) {
	mech, err := s.Current(ctx, key)
	if err != nil {
		return "", err
	}
	return property.Describe(mech), nil
}
