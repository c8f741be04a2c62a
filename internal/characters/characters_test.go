package characters

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/sortie/internal/apperr"
	"github.com/MarcoPoloResearchLab/sortie/internal/dice"
	"github.com/MarcoPoloResearchLab/sortie/internal/selection"
	"github.com/MarcoPoloResearchLab/sortie/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sequentialIDs struct {
	mu   sync.Mutex
	next int
}

func (p *sequentialIDs) NewID() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.next++
	return fmt.Sprintf("c%d", p.next), nil
}

func newTestService(t *testing.T, roll int) *Service {
	t.Helper()
	documents := store.NewMemoryStore()
	selections, err := selection.NewService(selection.ServiceConfig{Store: documents})
	require.NoError(t, err)
	tick := int64(0)
	service, err := NewService(ServiceConfig{
		Store:      documents,
		Selections: selections,
		IDProvider: &sequentialIDs{},
		Roller:     dice.RollerFunc(func() int { return roll }),
		Clock: func() time.Time {
			tick++
			return time.UnixMilli(tick)
		},
	})
	require.NoError(t, err)
	return service
}

func characterJSON(name string, skillOverrides map[string]string) string {
	skills := make([]string, 0, 19)
	for _, skill := range AllSkills() {
		value := "3"
		if override, ok := skillOverrides[skill]; ok {
			value = override
		}
		skills = append(skills, fmt.Sprintf("%q: %s", skill, value))
	}
	return fmt.Sprintf(`{
  "基本情報": {"名前": %q, "性別": "女", "年齢": 17},
  "能力値": {"身体": 3, "精神": 4, "器用": 2, "知性": 5, "五感": 1, "外見": 6},
  "技能": {%s}
}`, name, strings.Join(skills, ", "))
}

func TestImportAcceptsFencedJSONAndNumericStrings(t *testing.T) {
	service := newTestService(t, 50)
	ctx := context.Background()

	text := "```json\n" + characterJSON("Rin", map[string]string{"整備": `"7"`}) + "\n```"
	character, err := service.Import(ctx, "owner", text)
	require.NoError(t, err)
	assert.Equal(t, "Rin", character.Name)
	assert.Equal(t, "17", character.Age)
	assert.Equal(t, 7, character.Skills["整備"])
	assert.Equal(t, 6, character.Abilities["外見"])
}

func TestImportRejections(t *testing.T) {
	service := newTestService(t, 50)
	ctx := context.Background()

	testCases := map[string]string{
		"not json":        "{",
		"missing section": `{"基本情報": {"名前": "x"}, "能力値": {}}`,
		"ability range":   strings.Replace(characterJSON("x", nil), `"身体": 3`, `"身体": 7`, 1),
		"missing ability": strings.Replace(characterJSON("x", nil), `"身体": 3, `, ``, 1),
		"skill range":     characterJSON("x", map[string]string{"説得": "11"}),
		"missing skill":   strings.Replace(characterJSON("x", nil), `"演説": 3`, `"other": 3`, 1),
	}
	for name, text := range testCases {
		t.Run(name, func(t *testing.T) {
			_, err := service.Import(ctx, "owner", text)
			require.ErrorIs(t, err, ErrInvalidImport)
			message, ok := apperr.UserMessage(err)
			assert.True(t, ok)
			assert.NotEmpty(t, message)
		})
	}

	characters, err := service.List(ctx, "owner")
	require.NoError(t, err)
	assert.Empty(t, characters)
}

func TestSelectCurrentAndDeleteAreOwnerScoped(t *testing.T) {
	service := newTestService(t, 50)
	ctx := context.Background()

	first, err := service.Import(ctx, "owner", characterJSON("Rin", nil))
	require.NoError(t, err)
	_, err = service.Import(ctx, "owner", characterJSON("Kai", nil))
	require.NoError(t, err)
	_, err = service.Import(ctx, "stranger", characterJSON("Mio", nil))
	require.NoError(t, err)

	key := selection.Key{ChannelID: "chan", UserID: "owner"}
	_, err = service.Current(ctx, key)
	require.ErrorIs(t, err, ErrNoCharacterSelected)

	_, err = service.Select(ctx, key, "Mio")
	require.ErrorIs(t, err, ErrCharacterNotFound)

	selected, err := service.Select(ctx, key, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "Rin", selected.Name)

	current, err := service.Current(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, first.ID, current.ID)

	removed, err := service.Delete(ctx, "stranger", "Rin")
	require.NoError(t, err)
	assert.False(t, removed)

	removed, err = service.Delete(ctx, "owner", "Rin")
	require.NoError(t, err)
	assert.True(t, removed)

	_, err = service.Current(ctx, key)
	require.ErrorIs(t, err, ErrNoCharacterSelected)

	list, err := service.List(ctx, "owner")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Kai", list[0].Name)
}

func TestListPage(t *testing.T) {
	service := newTestService(t, 50)
	ctx := context.Background()
	for index := range 12 {
		_, err := service.Import(ctx, "owner", characterJSON(fmt.Sprintf("pc-%02d", index), nil))
		require.NoError(t, err)
	}

	page, err := service.ListPage(ctx, "owner", 1)
	require.NoError(t, err)
	assert.Equal(t, 2, page.Pages)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "pc-10", page.Items[0].Name)
}

func TestParseSkillRoll(t *testing.T) {
	testCases := []struct {
		content  string
		skill    string
		modifier int
		ok       bool
	}{
		{content: "整備", skill: "整備", ok: true},
		{content: " 整備 + 10 ", skill: "整備", modifier: 10, ok: true},
		{content: "精密射撃-5", skill: "精密射撃", modifier: -5, ok: true},
		{content: "整備しよう", ok: false},
		{content: "hello", ok: false},
	}
	for _, testCase := range testCases {
		skill, modifier, ok := ParseSkillRoll(testCase.content)
		assert.Equal(t, testCase.ok, ok, testCase.content)
		assert.Equal(t, testCase.skill, skill, testCase.content)
		assert.Equal(t, testCase.modifier, modifier, testCase.content)
	}
}

func TestTrySkillRoll(t *testing.T) {
	ctx := context.Background()
	key := selection.Key{ChannelID: "chan", UserID: "owner"}

	t.Run("not a skill", func(t *testing.T) {
		service := newTestService(t, 50)
		_, ok, err := service.TrySkillRoll(ctx, key, "good morning")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("no selection", func(t *testing.T) {
		service := newTestService(t, 50)
		_, ok, err := service.TrySkillRoll(ctx, key, "整備")
		assert.True(t, ok)
		require.ErrorIs(t, err, ErrNoCharacterSelected)
		_, isUser := apperr.UserMessage(err)
		assert.True(t, isUser)
	})

	t.Run("critical success after modifier clamp", func(t *testing.T) {
		service := newTestService(t, 3)
		character, err := service.Import(ctx, "owner", characterJSON("Rin", map[string]string{"整備": "4"}))
		require.NoError(t, err)
		_, err = service.Select(ctx, key, character.ID)
		require.NoError(t, err)

		result, ok, err := service.TrySkillRoll(ctx, key, "整備-20")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, 1, result.Effective)
		assert.Equal(t, 9, result.Level)
		assert.Equal(t, dice.CriticalSuccess, result.Band.Critical)
		assert.Contains(t, result.Text(), "【整備】Lv.4")
		assert.Contains(t, result.Text(), "Skill Lv.9 [Supreme]")
		assert.Contains(t, result.Text(), "★Revolutionary success")
	})

	t.Run("level floors at zero", func(t *testing.T) {
		service := newTestService(t, 99)
		character, err := service.Import(ctx, "owner", characterJSON("Rin", map[string]string{"説得": "2"}))
		require.NoError(t, err)
		_, err = service.Select(ctx, key, character.ID)
		require.NoError(t, err)

		result, _, err := service.TrySkillRoll(ctx, key, "説得")
		require.NoError(t, err)
		assert.Equal(t, 0, result.Level)
		assert.Contains(t, result.Text(), "Fatal failure")
	})
}

func TestFormatSheet(t *testing.T) {
	sheet := FormatSheet(Character{
		Name:      "Rin",
		Abilities: map[string]int{"身体": 3},
		Skills:    map[string]int{"整備": 7, "機動制御": 2},
	})
	assert.Contains(t, sheet, "Name: Rin")
	assert.Contains(t, sheet, "身体：3")
	assert.Contains(t, sheet, "【整備】　　：Lv.7")
	assert.Contains(t, sheet, "【機動制御】：Lv.2")
	assert.Contains(t, sheet, "─=≡交渉技能≡=─")
}
