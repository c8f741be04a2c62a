package mechs

import (
	"context"
	"errors"
	"time"

	"github.com/MarcoPoloResearchLab/sortie/internal/apperr"
	"github.com/MarcoPoloResearchLab/sortie/internal/ids"
	"github.com/MarcoPoloResearchLab/sortie/internal/roster"
	"github.com/MarcoPoloResearchLab/sortie/internal/selection"
	"github.com/MarcoPoloResearchLab/sortie/internal/store"
	"go.uber.org/zap"
)

const (
	// Namespace holds one document per owner.
	Namespace = "mechs"
	// UINamespace holds the last posted sheet message per channel and player.
	UINamespace = "ui"
)

var (
	ErrMechNotFound   = errors.New("mech not found")
	ErrNoMechSelected = errors.New("no mech selected")

	errMissingStore      = errors.New("document store is required")
	errMissingSelections = errors.New("selection service is required")
	errMissingIDProvider = errors.New("id provider is required")
)

const (
	opServiceNew = "mechs.service.new"
	opImport     = "mechs.import"
	opList       = "mechs.list"
	opDelete     = "mechs.delete"
	opSelect     = "mechs.select"
	opCurrent    = "mechs.current"
	opArmor      = "mechs.mutate_armor"
	opSync       = "mechs.mutate_sync"
	opSheet      = "mechs.sheet_message"
	opRestore    = "mechs.restore"
)

type ServiceConfig struct {
	Store      store.Store
	Selections *selection.Service
	IDProvider ids.Provider
	Clock      func() time.Time
	Logger     *zap.Logger
}

type Service struct {
	mechs      *roster.Roster[Mech]
	sheets     *store.Collection[sheetMessage]
	selections *selection.Service
	idProvider ids.Provider
	clock      func() time.Time
	logger     *zap.Logger
}

type sheetMessage struct {
	MessageID string `json:"messageId"`
}

func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, apperr.NewServiceError(opServiceNew, "missing_store", errMissingStore)
	}
	if cfg.Selections == nil {
		return nil, apperr.NewServiceError(opServiceNew, "missing_selections", errMissingSelections)
	}
	if cfg.IDProvider == nil {
		return nil, apperr.NewServiceError(opServiceNew, "missing_id_provider", errMissingIDProvider)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		mechs:      roster.New[Mech](cfg.Store, Namespace),
		sheets:     store.NewCollection[sheetMessage](cfg.Store, UINamespace),
		selections: cfg.Selections,
		idProvider: cfg.IDProvider,
		clock:      clock,
		logger:     logger,
	}, nil
}

// Import validates a pasted mech JSON and stores it for ownerID with full
// armor and a neutral sync rank.
func (s *Service) Import(ctx context.Context, ownerID, text string) (Mech, error) {
	parsed, err := parseImport(text)
	if err != nil {
		return Mech{}, err
	}
	id, err := s.idProvider.NewID()
	if err != nil {
		return Mech{}, s.fail(opImport, "id_failed", err)
	}
	mech := Mech{
		ID:           id,
		OwnerID:      ownerID,
		Name:         parsed.name,
		Type:         parsed.mechType,
		TLv:          parsed.tlv,
		Mobility:     parsed.mobility,
		ArmorMax:     parsed.armor,
		ArmorCurrent: parsed.armor,
		Load:         parsed.load,
		CreatedAt:    s.clock().UnixMilli(),
	}
	if err := s.mechs.Add(ctx, ownerID, mech); err != nil {
		return Mech{}, s.fail(opImport, "store_failed", err)
	}
	s.logger.Info("mech imported", zap.String("owner_id", ownerID), zap.String("mech_id", id))
	return mech, nil
}

func (s *Service) List(ctx context.Context, ownerID string) ([]Mech, error) {
	mechs, err := s.mechs.List(ctx, ownerID)
	if err != nil {
		return nil, s.fail(opList, "load_failed", err)
	}
	return mechs, nil
}

func (s *Service) Delete(ctx context.Context, ownerID, idOrName string) (bool, error) {
	removed, err := s.mechs.Delete(ctx, ownerID, idOrName)
	if err != nil {
		return false, s.fail(opDelete, "store_failed", err)
	}
	return removed, nil
}

// Select makes one of the player's mechs active in the channel.
func (s *Service) Select(ctx context.Context, key selection.Key, idOrName string) (Mech, error) {
	mech, err := s.mechs.Find(ctx, key.UserID, idOrName)
	if errors.Is(err, roster.ErrRecordNotFound) {
		return Mech{}, ErrMechNotFound
	}
	if err != nil {
		return Mech{}, s.fail(opSelect, "load_failed", err)
	}
	if err := s.selections.SetMech(ctx, key, mech.ID); err != nil {
		return Mech{}, err
	}
	return mech, nil
}

// Current returns the mech active for the player in the channel.
func (s *Service) Current(ctx context.Context, key selection.Key) (Mech, error) {
	record, err := s.selections.Get(ctx, key)
	if err != nil {
		return Mech{}, err
	}
	if record.MechID == "" {
		return Mech{}, ErrNoMechSelected
	}
	mech, err := s.mechs.Find(ctx, key.UserID, record.MechID)
	if errors.Is(err, roster.ErrRecordNotFound) {
		return Mech{}, ErrNoMechSelected
	}
	if err != nil {
		return Mech{}, s.fail(opCurrent, "load_failed", err)
	}
	return mech, nil
}

// Change is a mech before and after an adjustment.
type Change struct {
	Before Mech
	After  Mech
}

// MutateArmor adjusts current armor. The result is not clamped to armorMax.
func (s *Service) MutateArmor(ctx context.Context, key selection.Key, op Operation, value int) (Change, error) {
	return s.mutateCurrent(ctx, opArmor, key, func(mech *Mech) {
		mech.ArmorCurrent = op.apply(mech.ArmorCurrent, value)
	})
}

// MutateSync adjusts the sync rank, clamped to MinSync..MaxSync.
func (s *Service) MutateSync(ctx context.Context, key selection.Key, op Operation, value int) (Change, error) {
	return s.mutateCurrent(ctx, opSync, key, func(mech *Mech) {
		mech.SyncLevel = ClampSync(op.apply(mech.SyncLevel, value))
	})
}

func (s *Service) mutateCurrent(ctx context.Context, operation string, key selection.Key, apply func(*Mech)) (Change, error) {
	current, err := s.Current(ctx, key)
	if err != nil {
		return Change{}, err
	}
	var before Mech
	after, err := s.mechs.Mutate(ctx, key.UserID, current.ID, func(mech *Mech) error {
		before = *mech
		apply(mech)
		return nil
	})
	if errors.Is(err, roster.ErrRecordNotFound) {
		return Change{}, ErrNoMechSelected
	}
	if err != nil {
		return Change{}, s.fail(operation, "store_failed", err)
	}
	return Change{Before: before, After: after}, nil
}

func sheetKey(key selection.Key) string {
	return "mech-sheet:" + key.String()
}

// RememberSheet records the message showing the player's mech sheet.
func (s *Service) RememberSheet(ctx context.Context, key selection.Key, messageID string) error {
	if err := s.sheets.Put(ctx, sheetKey(key), sheetMessage{MessageID: messageID}); err != nil {
		return s.fail(opSheet, "store_failed", err)
	}
	return nil
}

// SheetMessage returns the remembered sheet message id, if any.
func (s *Service) SheetMessage(ctx context.Context, key selection.Key) (string, bool, error) {
	sheet, err := s.sheets.Get(ctx, sheetKey(key))
	if errors.Is(err, store.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, s.fail(opSheet, "load_failed", err)
	}
	return sheet.MessageID, sheet.MessageID != "", nil
}

// Restore overwrites an owner's mechs. Used by the legacy importer.
func (s *Service) Restore(ctx context.Context, ownerID string, mechs []Mech) error {
	if err := s.mechs.Replace(ctx, ownerID, mechs); err != nil {
		return s.fail(opRestore, "store_failed", err)
	}
	return nil
}

func (s *Service) fail(operation, reason string, err error) error {
	s.logger.Error("mech operation failed",
		zap.String("operation", operation),
		zap.String("reason", reason),
		zap.Error(err))
	return apperr.NewServiceError(operation, reason, err)
}
