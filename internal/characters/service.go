package characters

import (
	"context"
	"errors"
	"time"

	"github.com/MarcoPoloResearchLab/sortie/internal/apperr"
	"github.com/MarcoPoloResearchLab/sortie/internal/dice"
	"github.com/MarcoPoloResearchLab/sortie/internal/ids"
	"github.com/MarcoPoloResearchLab/sortie/internal/roster"
	"github.com/MarcoPoloResearchLab/sortie/internal/selection"
	"github.com/MarcoPoloResearchLab/sortie/internal/store"
	"go.uber.org/zap"
)

// Namespace holds one document per owner.
const Namespace = "characters"

// PageSize is the number of characters per list page.
const PageSize = 10

var (
	ErrCharacterNotFound   = errors.New("character not found")
	ErrNoCharacterSelected = errors.New("no character selected")

	errMissingStore      = errors.New("document store is required")
	errMissingSelections = errors.New("selection service is required")
	errMissingIDProvider = errors.New("id provider is required")
)

const (
	opServiceNew = "characters.service.new"
	opImport     = "characters.import"
	opList       = "characters.list"
	opDelete     = "characters.delete"
	opSelect     = "characters.select"
	opCurrent    = "characters.current"
	opRestore    = "characters.restore"
)

type ServiceConfig struct {
	Store      store.Store
	Selections *selection.Service
	IDProvider ids.Provider
	Roller     dice.Roller
	Clock      func() time.Time
	Logger     *zap.Logger
}

type Service struct {
	characters *roster.Roster[Character]
	selections *selection.Service
	idProvider ids.Provider
	roller     dice.Roller
	clock      func() time.Time
	logger     *zap.Logger
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
	roller := cfg.Roller
	if roller == nil {
		roller = dice.NewRoller()
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
		characters: roster.New[Character](cfg.Store, Namespace),
		selections: cfg.Selections,
		idProvider: cfg.IDProvider,
		roller:     roller,
		clock:      clock,
		logger:     logger,
	}, nil
}

// Import validates a pasted character JSON and stores it for ownerID.
func (s *Service) Import(ctx context.Context, ownerID, text string) (Character, error) {
	parsed, err := parseImport(text)
	if err != nil {
		return Character{}, err
	}
	id, err := s.idProvider.NewID()
	if err != nil {
		return Character{}, s.fail(opImport, "id_failed", err)
	}
	character := Character{
		ID:        id,
		OwnerID:   ownerID,
		Name:      parsed.name,
		Gender:    parsed.gender,
		Age:       parsed.age,
		Abilities: parsed.abilities,
		Skills:    parsed.skills,
		CreatedAt: s.clock().UnixMilli(),
	}
	if err := s.characters.Add(ctx, ownerID, character); err != nil {
		return Character{}, s.fail(opImport, "store_failed", err)
	}
	s.logger.Info("character imported", zap.String("owner_id", ownerID), zap.String("character_id", id))
	return character, nil
}

// List returns the owner's characters, oldest first.
func (s *Service) List(ctx context.Context, ownerID string) ([]Character, error) {
	characters, err := s.characters.List(ctx, ownerID)
	if err != nil {
		return nil, s.fail(opList, "load_failed", err)
	}
	return characters, nil
}

// ListPage returns page index of the owner's characters, clamped into range.
func (s *Service) ListPage(ctx context.Context, ownerID string, index int) (roster.Page[Character], error) {
	characters, err := s.List(ctx, ownerID)
	if err != nil {
		return roster.Page[Character]{}, err
	}
	return roster.Paginate(characters, index, PageSize), nil
}

// Delete removes the owner's characters whose id or name matches.
func (s *Service) Delete(ctx context.Context, ownerID, idOrName string) (bool, error) {
	removed, err := s.characters.Delete(ctx, ownerID, idOrName)
	if err != nil {
		return false, s.fail(opDelete, "store_failed", err)
	}
	return removed, nil
}

// Select makes one of the player's characters active in the channel.
func (s *Service) Select(ctx context.Context, key selection.Key, idOrName string) (Character, error) {
	character, err := s.characters.Find(ctx, key.UserID, idOrName)
	if errors.Is(err, roster.ErrRecordNotFound) {
		return Character{}, ErrCharacterNotFound
	}
	if err != nil {
		return Character{}, s.fail(opSelect, "load_failed", err)
	}
	if err := s.selections.SetCharacter(ctx, key, character.ID); err != nil {
		return Character{}, err
	}
	return character, nil
}

// Current returns the character active for the player in the channel.
func (s *Service) Current(ctx context.Context, key selection.Key) (Character, error) {
	record, err := s.selections.Get(ctx, key)
	if err != nil {
		return Character{}, err
	}
	if record.CharacterID == "" {
		return Character{}, ErrNoCharacterSelected
	}
	character, err := s.characters.Find(ctx, key.UserID, record.CharacterID)
	if errors.Is(err, roster.ErrRecordNotFound) {
		return Character{}, ErrNoCharacterSelected
	}
	if err != nil {
		return Character{}, s.fail(opCurrent, "load_failed", err)
	}
	return character, nil
}

// Restore overwrites an owner's characters. Used by the legacy importer.
func (s *Service) Restore(ctx context.Context, ownerID string, characters []Character) error {
	if err := s.characters.Replace(ctx, ownerID, characters); err != nil {
		return s.fail(opRestore, "store_failed", err)
	}
	return nil
}

func (s *Service) fail(operation, reason string, err error) error {
	s.logger.Error("character operation failed",
		zap.String("operation", operation),
		zap.String("reason", reason),
		zap.Error(err))
	return apperr.NewServiceError(operation, reason, err)
}
