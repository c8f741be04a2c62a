// Package characters manages player character sheets and skill rolls.
package characters

// Abilities in sheet order. Each is rated 1..6.
var Abilities = []string{"身体", "精神", "器用", "知性", "五感", "外見"}

// SkillGroup is one heading of the character sheet.
type SkillGroup struct {
	Title  string
	Skills []string
}

// SkillGroups lists every skill in sheet order. Each skill is rated 0..10.
var SkillGroups = []SkillGroup{
	{Title: "操縦技能", Skills: []string{"機動制御", "近接剣術", "精密射撃", "危機感知"}},
	{Title: "技術技能", Skills: []string{"整備", "機械操作", "応急処置", "索敵", "通信管制", "白兵戦"}},
	{Title: "精神技能", Skills: []string{"戦場耐性", "冷静沈着", "精神分析"}},
	{Title: "交渉技能", Skills: []string{"説得", "威圧", "魅了", "洞察", "欺瞞", "演説"}},
}

// AllSkills flattens SkillGroups.
func AllSkills() []string {
	skills := make([]string, 0, 19)
	for _, group := range SkillGroups {
		skills = append(skills, group.Skills...)
	}
	return skills
}

const (
	MinAbility = 1
	MaxAbility = 6
	MinSkill   = 0
	MaxSkill   = 10
)

// Character is one owned character sheet.
type Character struct {
	ID        string         `json:"id"`
	OwnerID   string         `json:"ownerId"`
	Name      string         `json:"name"`
	Gender    string         `json:"gender,omitempty"`
	Age       string         `json:"age,omitempty"`
	Abilities map[string]int `json:"abilities"`
	Skills    map[string]int `json:"skills"`
	CreatedAt int64          `json:"createdAt"`
}

func (c Character) RecordID() string       { return c.ID }
func (c Character) RecordName() string     { return c.Name }
func (c Character) CreatedAtMillis() int64 { return c.CreatedAt }
