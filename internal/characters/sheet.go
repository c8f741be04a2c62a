package characters

import (
	"fmt"
	"strings"
)

const sheetBreak = "``````"

// FormatSheet renders the character sheet as fenced blocks.
func FormatSheet(character Character) string {
	lines := []string{
		"─=≡CHARACTER：SHEET≡=─",
		"Name: " + character.Name,
		"Gender: " + character.Gender,
		"Age: " + character.Age,
	}
	for _, ability := range Abilities {
		lines = append(lines, fmt.Sprintf("%s：%d", ability, character.Abilities[ability]))
	}
	for _, group := range SkillGroups {
		lines = append(lines, sheetBreak, "─=≡"+group.Title+"≡=─")
		for _, skill := range group.Skills {
			lines = append(lines, fmt.Sprintf("【%s】%s：Lv.%d", skill, padding(skill), character.Skills[skill]))
		}
	}
	return strings.Join(lines, "\n")
}

// padding aligns two-character skill names with four-character ones.
func padding(skill string) string {
	width := len([]rune(skill))
	if width >= 4 {
		return ""
	}
	return strings.Repeat("　", 4-width)
}
