package legacy

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/MarcoPoloResearchLab/sortie/internal/board"
	"github.com/MarcoPoloResearchLab/sortie/internal/characters"
	"github.com/MarcoPoloResearchLab/sortie/internal/ids"
	"github.com/MarcoPoloResearchLab/sortie/internal/mechs"
	"github.com/MarcoPoloResearchLab/sortie/internal/parts"
	"github.com/MarcoPoloResearchLab/sortie/internal/selection"
	"github.com/MarcoPoloResearchLab/sortie/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	services   Services
	characters *characters.Service
	mechs      *mechs.Service
	selections *selection.Service
	parts      *parts.Service
	boards     *board.Service
}

func newHarness(t *testing.T) harness {
	t.Helper()
	documents := store.NewMemoryStore()
	selections, err := selection.NewService(selection.ServiceConfig{Store: documents})
	require.NoError(t, err)
	characterService, err := characters.NewService(characters.ServiceConfig{
		Store: documents, Selections: selections, IDProvider: ids.NewUUIDProvider(),
	})
	require.NoError(t, err)
	mechService, err := mechs.NewService(mechs.ServiceConfig{
		Store: documents, Selections: selections, IDProvider: ids.NewUUIDProvider(),
	})
	require.NoError(t, err)
	partService, err := parts.NewService(parts.ServiceConfig{Store: documents, Mechs: mechService})
	require.NoError(t, err)
	boardService, err := board.NewService(board.ServiceConfig{Store: documents, IDProvider: ids.NewUUIDProvider()})
	require.NoError(t, err)

	return harness{
		services: Services{
			Characters: characterService,
			Mechs:      mechService,
			Selections: selections,
			Parts:      partService,
			Boards:     boardService,
		},
		characters: characterService,
		mechs:      mechService,
		selections: selections,
		parts:      partService,
		boards:     boardService,
	}
}

func writeFile(t *testing.T, dir, name, contents string) {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
}

func TestImportFullDataDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, charactersFile, `{"characters":[
		{"id":"c1","ownerId":"u1","name":"Rin","age":17,"abilities":{"身体":3},"skills":{"整備":"4"},"createdAt":2},
		{"id":"c2","ownerId":"u1","name":"Kai","abilities":{},"skills":{},"createdAt":1},
		{"id":"c3","ownerId":"u2","name":"Mio","gender":"F","abilities":{},"skills":{},"createdAt":3}
	]}`)
	writeFile(t, dir, mechsFile, `{"mechs":[
		{"id":"m1","ownerId":"u1","name":"Lancer","type":"F","TLv":2,"mobility":"5","armorMax":30,"armorCurrent":12,"load":4,"syncLevel":9,"createdAt":1}
	]}`)
	writeFile(t, dir, selectionsFile, `{"char":{"ch1:u1":"c1","broken":"c2"},"mech":{"ch1:u1":"m1"}}`)
	writeFile(t, dir, uiFile, `{"lastMechSheetMessageId":{"ch1:u1":"msg-9"}}`)
	writeFile(t, dir, partsFile, `{"destroyed":{"m1":[3,1,3]}}`)
	writeFile(t, dir, boardsFile, `{"ch1":{"channelId":"ch1","ownerId":"u1","size":5,"mode":"free","members":[],"createdAt":1},
		"ch2":{"ownerId":"u2","size":99,"mode":"battle","members":[{"id":"p1","name":"Mio","pos":null,"tmp":2,"tmpTargetId":null}],"createdAt":1}}`)
	writeFile(t, dir, filepath.Join(boardsDir, "ch1.json"), `{"channelId":"ch1","ownerId":"u1","size":7,"mode":"battle","members":[{"id":"p9","name":"Rin","pos":3}],"createdAt":5}`)

	ctx := context.Background()
	h := newHarness(t)
	report, err := Import(ctx, dir, h.services)
	require.NoError(t, err)

	assert.Equal(t, 3, report.Characters)
	assert.Equal(t, 1, report.Mechs)
	assert.Equal(t, 1, report.Selections)
	assert.Equal(t, 1, report.SheetMessages)
	assert.Equal(t, 1, report.PartRecords)
	assert.Equal(t, 3, report.Boards)
	assert.Empty(t, report.Skipped)

	owned, err := h.characters.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, owned, 2)
	assert.Equal(t, "Kai", owned[0].Name)
	assert.Equal(t, "17", owned[1].Age)
	assert.Equal(t, 4, owned[1].Skills["整備"])

	key := selection.Key{ChannelID: "ch1", UserID: "u1"}
	current, err := h.characters.Current(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "c1", current.ID)

	mech, err := h.mechs.Current(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 5, mech.Mobility)
	assert.Equal(t, 12, mech.ArmorCurrent)
	assert.Equal(t, mechs.MaxSync, mech.SyncLevel)

	messageID, ok, err := h.mechs.SheetMessage(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "msg-9", messageID)

	status, err := h.parts.Show(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3}, status.Destroyed)

	overridden, err := h.boards.Get(ctx, "ch1")
	require.NoError(t, err)
	assert.Equal(t, 7, overridden.Size)
	assert.Equal(t, board.ModeBattle, overridden.Mode)

	fromMap, err := h.boards.Get(ctx, "ch2")
	require.NoError(t, err)
	assert.Equal(t, "ch2", fromMap.ChannelID)
	assert.Equal(t, board.MaxSize, fromMap.Size)
	require.Len(t, fromMap.Members, 1)
	assert.True(t, fromMap.Members[0].TmpTargetID.IsNone())
	assert.False(t, fromMap.Members[0].TmpArtsNo.Provided())
}

func TestImportSkipsMissingFiles(t *testing.T) {
	report, err := Import(context.Background(), t.TempDir(), newHarness(t).services)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{charactersFile, mechsFile, selectionsFile, uiFile, partsFile, boardsFile, boardsDir}, report.Skipped)
	assert.Zero(t, report.Characters)
}

func TestImportRejectsMalformedFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, mechsFile, `{"mechs": [`)
	_, err := Import(context.Background(), dir, newHarness(t).services)
	require.Error(t, err)
	assert.Contains(t, err.Error(), mechsFile)
}
