// Package legacy imports the JSON data directory written by the previous
// version of the bot into the document store.
package legacy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/MarcoPoloResearchLab/sortie/internal/board"
	"github.com/MarcoPoloResearchLab/sortie/internal/characters"
	"github.com/MarcoPoloResearchLab/sortie/internal/jsontext"
	"github.com/MarcoPoloResearchLab/sortie/internal/mechs"
	"github.com/MarcoPoloResearchLab/sortie/internal/selection"
	"go.uber.org/zap"
)

const (
	charactersFile = "characters.json"
	mechsFile      = "mechs.json"
	selectionsFile = "selections.json"
	uiFile         = "ui.json"
	partsFile      = "parts.json"
	boardsFile     = "boards.json"
	boardsDir      = "boards"
)

type CharacterRestorer interface {
	Restore(ctx context.Context, ownerID string, records []characters.Character) error
}

type MechRestorer interface {
	Restore(ctx context.Context, ownerID string, records []mechs.Mech) error
	RememberSheet(ctx context.Context, key selection.Key, messageID string) error
}

type SelectionRestorer interface {
	Restore(ctx context.Context, key selection.Key, record selection.Record) error
}

type PartsRestorer interface {
	Restore(ctx context.Context, mechID string, destroyed []int) error
}

type BoardRestorer interface {
	Restore(ctx context.Context, state board.State) error
}

// Services receives the imported records. Nil services skip their files.
type Services struct {
	Characters CharacterRestorer
	Mechs      MechRestorer
	Selections SelectionRestorer
	Parts      PartsRestorer
	Boards     BoardRestorer
	Logger     *zap.Logger
}

// Report counts what was written.
type Report struct {
	Characters    int
	Mechs         int
	Selections    int
	SheetMessages int
	PartRecords   int
	Boards        int
	Skipped       []string
}

type legacyCharacter struct {
	ID        string                  `json:"id"`
	OwnerID   string                  `json:"ownerId"`
	Name      string                  `json:"name"`
	Gender    json.RawMessage         `json:"gender"`
	Age       json.RawMessage         `json:"age"`
	Abilities map[string]jsontext.Int `json:"abilities"`
	Skills    map[string]jsontext.Int `json:"skills"`
	CreatedAt int64                   `json:"createdAt"`
}

type legacyMech struct {
	ID           string       `json:"id"`
	OwnerID      string       `json:"ownerId"`
	Name         string       `json:"name"`
	Type         string       `json:"type"`
	TLv          jsontext.Int `json:"TLv"`
	Mobility     jsontext.Int `json:"mobility"`
	ArmorMax     jsontext.Int `json:"armorMax"`
	ArmorCurrent jsontext.Int `json:"armorCurrent"`
	Load         jsontext.Int `json:"load"`
	SyncLevel    jsontext.Int `json:"syncLevel"`
	CreatedAt    int64        `json:"createdAt"`
}

// Import reads every known file under dir. Missing files are skipped and
// reported; malformed files abort the import.
func Import(ctx context.Context, dir string, services Services) (Report, error) {
	logger := services.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	importer := &importer{dir: dir, services: services, logger: logger}

	steps := []struct {
		file string
		run  func(context.Context, []byte) error
		on   bool
	}{
		{file: charactersFile, run: importer.characters, on: services.Characters != nil},
		{file: mechsFile, run: importer.mechs, on: services.Mechs != nil},
		{file: selectionsFile, run: importer.selections, on: services.Selections != nil},
		{file: uiFile, run: importer.ui, on: services.Mechs != nil},
		{file: partsFile, run: importer.parts, on: services.Parts != nil},
		{file: boardsFile, run: importer.boardMap, on: services.Boards != nil},
	}
	for _, step := range steps {
		if !step.on {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, step.file))
		if errors.Is(err, fs.ErrNotExist) {
			importer.report.Skipped = append(importer.report.Skipped, step.file)
			continue
		}
		if err != nil {
			return importer.report, fmt.Errorf("read %s: %w", step.file, err)
		}
		if err := step.run(ctx, data); err != nil {
			return importer.report, fmt.Errorf("import %s: %w", step.file, err)
		}
		logger.Info("legacy file imported", zap.String("file", step.file))
	}

	if services.Boards != nil {
		if err := importer.boardFiles(ctx); err != nil {
			return importer.report, err
		}
	}
	return importer.report, nil
}

type importer struct {
	dir      string
	services Services
	logger   *zap.Logger
	report   Report
}

func (im *importer) characters(ctx context.Context, data []byte) error {
	var db struct {
		Characters []legacyCharacter `json:"characters"`
	}
	if err := json.Unmarshal(data, &db); err != nil {
		return err
	}
	byOwner := map[string][]characters.Character{}
	owners := []string{}
	for _, raw := range db.Characters {
		if raw.OwnerID == "" || raw.ID == "" {
			im.logger.Warn("legacy character without owner or id skipped", zap.String("name", raw.Name))
			continue
		}
		character := characters.Character{
			ID:        raw.ID,
			OwnerID:   raw.OwnerID,
			Name:      raw.Name,
			Gender:    jsontext.Text(raw.Gender),
			Age:       jsontext.Text(raw.Age),
			Abilities: intMap(raw.Abilities),
			Skills:    intMap(raw.Skills),
			CreatedAt: raw.CreatedAt,
		}
		if _, ok := byOwner[raw.OwnerID]; !ok {
			owners = append(owners, raw.OwnerID)
		}
		byOwner[raw.OwnerID] = append(byOwner[raw.OwnerID], character)
	}
	for _, owner := range owners {
		if err := im.services.Characters.Restore(ctx, owner, byOwner[owner]); err != nil {
			return err
		}
		im.report.Characters += len(byOwner[owner])
	}
	return nil
}

func (im *importer) mechs(ctx context.Context, data []byte) error {
	var db struct {
		Mechs []legacyMech `json:"mechs"`
	}
	if err := json.Unmarshal(data, &db); err != nil {
		return err
	}
	byOwner := map[string][]mechs.Mech{}
	owners := []string{}
	for _, raw := range db.Mechs {
		if raw.OwnerID == "" || raw.ID == "" {
			im.logger.Warn("legacy mech without owner or id skipped", zap.String("name", raw.Name))
			continue
		}
		mech := mechs.Mech{
			ID:           raw.ID,
			OwnerID:      raw.OwnerID,
			Name:         raw.Name,
			Type:         raw.Type,
			TLv:          int(raw.TLv),
			Mobility:     int(raw.Mobility),
			ArmorMax:     int(raw.ArmorMax),
			ArmorCurrent: int(raw.ArmorCurrent),
			Load:         int(raw.Load),
			SyncLevel:    mechs.ClampSync(int(raw.SyncLevel)),
			CreatedAt:    raw.CreatedAt,
		}
		if _, ok := byOwner[raw.OwnerID]; !ok {
			owners = append(owners, raw.OwnerID)
		}
		byOwner[raw.OwnerID] = append(byOwner[raw.OwnerID], mech)
	}
	for _, owner := range owners {
		if err := im.services.Mechs.Restore(ctx, owner, byOwner[owner]); err != nil {
			return err
		}
		im.report.Mechs += len(byOwner[owner])
	}
	return nil
}

func (im *importer) selections(ctx context.Context, data []byte) error {
	var db struct {
		Char map[string]string `json:"char"`
		Mech map[string]string `json:"mech"`
	}
	if err := json.Unmarshal(data, &db); err != nil {
		return err
	}
	records := map[string]selection.Record{}
	for key, id := range db.Char {
		record := records[key]
		record.CharacterID = id
		records[key] = record
	}
	for key, id := range db.Mech {
		record := records[key]
		record.MechID = id
		records[key] = record
	}
	for _, raw := range sortedKeys(records) {
		key, err := selection.ParseKey(raw)
		if err != nil {
			im.logger.Warn("legacy selection skipped", zap.String("key", raw), zap.Error(err))
			continue
		}
		if err := im.services.Selections.Restore(ctx, key, records[raw]); err != nil {
			return err
		}
		im.report.Selections++
	}
	return nil
}

func (im *importer) ui(ctx context.Context, data []byte) error {
	var db struct {
		LastMechSheetMessageID map[string]string `json:"lastMechSheetMessageId"`
	}
	if err := json.Unmarshal(data, &db); err != nil {
		return err
	}
	for _, raw := range sortedKeys(db.LastMechSheetMessageID) {
		key, err := selection.ParseKey(raw)
		if err != nil {
			im.logger.Warn("legacy sheet message skipped", zap.String("key", raw), zap.Error(err))
			continue
		}
		if err := im.services.Mechs.RememberSheet(ctx, key, db.LastMechSheetMessageID[raw]); err != nil {
			return err
		}
		im.report.SheetMessages++
	}
	return nil
}

func (im *importer) parts(ctx context.Context, data []byte) error {
	var db struct {
		Destroyed map[string][]int `json:"destroyed"`
	}
	if err := json.Unmarshal(data, &db); err != nil {
		return err
	}
	for _, mechID := range sortedKeys(db.Destroyed) {
		if err := im.services.Parts.Restore(ctx, mechID, db.Destroyed[mechID]); err != nil {
			return err
		}
		im.report.PartRecords++
	}
	return nil
}

func (im *importer) boardMap(ctx context.Context, data []byte) error {
	var db map[string]board.State
	if err := json.Unmarshal(data, &db); err != nil {
		return err
	}
	for _, channelID := range sortedKeys(db) {
		if err := im.restoreBoard(ctx, channelID, db[channelID]); err != nil {
			return err
		}
	}
	return nil
}

// boardFiles imports boards/<channel>.json. These were written after
// boards.json and take precedence.
func (im *importer) boardFiles(ctx context.Context) error {
	entries, err := os.ReadDir(filepath.Join(im.dir, boardsDir))
	if errors.Is(err, fs.ErrNotExist) {
		im.report.Skipped = append(im.report.Skipped, boardsDir)
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", boardsDir, err)
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		path := filepath.Join(im.dir, boardsDir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		var state board.State
		if err := json.Unmarshal(data, &state); err != nil {
			return fmt.Errorf("import %s: %w", path, err)
		}
		if err := im.restoreBoard(ctx, strings.TrimSuffix(entry.Name(), ".json"), state); err != nil {
			return err
		}
	}
	return nil
}

func (im *importer) restoreBoard(ctx context.Context, channelID string, state board.State) error {
	if state.ChannelID == "" {
		state.ChannelID = channelID
	}
	if state.Mode == "" {
		state.Mode = board.ModeFree
	}
	state.Size = board.ClampSize(state.Size)
	if err := im.services.Boards.Restore(ctx, state); err != nil {
		return err
	}
	im.report.Boards++
	return nil
}

func intMap(values map[string]jsontext.Int) map[string]int {
	result := make(map[string]int, len(values))
	for key, value := range values {
		result[key] = int(value)
	}
	return result
}

func sortedKeys[V any](values map[string]V) []string {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
