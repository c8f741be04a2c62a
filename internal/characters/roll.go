package characters

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/MarcoPoloResearchLab/sortie/internal/apperr"
	"github.com/MarcoPoloResearchLab/sortie/internal/dice"
	"github.com/MarcoPoloResearchLab/sortie/internal/selection"
)

var skillRollPattern = buildSkillRollPattern()

func buildSkillRollPattern() *regexp.Regexp {
	quoted := make([]string, 0, 19)
	for _, skill := range AllSkills() {
		quoted = append(quoted, regexp.QuoteMeta(skill))
	}
	return regexp.MustCompile(`^(` + strings.Join(quoted, "|") + `)(\s*[+-]\s*\d+)?$`)
}

// SkillRoll is the outcome of one skill check.
type SkillRoll struct {
	Character Character
	Skill     string
	Base      int
	Raw       int
	Modifier  int
	Effective int
	Band      dice.Band
	Level     int
}

// ParseSkillRoll recognises "<skill>" or "<skill> ±N" messages.
func ParseSkillRoll(content string) (skill string, modifier int, ok bool) {
	match := skillRollPattern.FindStringSubmatch(strings.TrimSpace(content))
	if match == nil {
		return "", 0, false
	}
	if match[2] != "" {
		compact := strings.Join(strings.Fields(match[2]), "")
		value, err := strconv.Atoi(compact)
		if err != nil {
			return "", 0, false
		}
		modifier = value
	}
	return match[1], modifier, true
}

// TrySkillRoll rolls for a skill message. ok is false when content is not a
// skill roll. A roll without a selected character is a user error.
func (s *Service) TrySkillRoll(ctx context.Context, key selection.Key, content string) (SkillRoll, bool, error) {
	skill, modifier, ok := ParseSkillRoll(content)
	if !ok {
		return SkillRoll{}, false, nil
	}
	character, err := s.Current(ctx, key)
	if err != nil {
		if errors.Is(err, ErrNoCharacterSelected) {
			return SkillRoll{}, true, apperr.WrapUser(err, "No character selected here. Use /pc select (see /pc list).")
		}
		return SkillRoll{}, true, err
	}

	raw := s.roller.D100()
	effective := dice.ClampRoll(raw + modifier)
	band := dice.JudgeBand(effective)
	base := character.Skills[skill]
	return SkillRoll{
		Character: character,
		Skill:     skill,
		Base:      base,
		Raw:       raw,
		Modifier:  modifier,
		Effective: effective,
		Band:      band,
		Level:     max(0, base+band.Delta),
	}, true, nil
}

// Text renders the roll the way it is posted to the channel.
func (r SkillRoll) Text() string {
	lines := []string{fmt.Sprintf("【%s】Lv.%d", r.Skill, r.Base)}
	if r.Modifier != 0 {
		lines = append(lines, fmt.Sprintf("Roll: %d (modifier %+d → effective %d) → band %s", r.Raw, r.Modifier, r.Effective, r.Band.Label))
	} else {
		lines = append(lines, fmt.Sprintf("Roll: %d → Lv.%s", r.Raw, r.Band.Label))
	}
	lines = append(lines, fmt.Sprintf("Skill Lv.%d [%s]", r.Level, dice.EvalLabel(r.Level)))
	switch r.Band.Critical {
	case dice.CriticalSuccess:
		lines = append(lines, "★Revolutionary success: extra good effect")
	case dice.CriticalFailure:
		lines = append(lines, "★Fatal blunder: extra bad effect")
	}
	return strings.Join(lines, "\n")
}
