// Package selection remembers which character and mech a player uses in a channel.
package selection

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MarcoPoloResearchLab/sortie/internal/apperr"
	"github.com/MarcoPoloResearchLab/sortie/internal/store"
	"go.uber.org/zap"
)

// Namespace is the document namespace holding selections.
const Namespace = "selections"

var errMissingStore = errors.New("document store is required")

// Key addresses a player within a channel.
type Key struct {
	ChannelID string
	UserID    string
}

func (k Key) String() string {
	return k.ChannelID + ":" + k.UserID
}

// ParseKey reverses Key.String.
func ParseKey(raw string) (Key, error) {
	channelID, userID, ok := strings.Cut(raw, ":")
	if !ok || channelID == "" || userID == "" {
		return Key{}, fmt.Errorf("malformed selection key %q", raw)
	}
	return Key{ChannelID: channelID, UserID: userID}, nil
}

// Record holds the active ids. Empty means nothing selected.
type Record struct {
	CharacterID string `json:"characterId,omitempty"`
	MechID      string `json:"mechId,omitempty"`
}

type ServiceConfig struct {
	Store  store.Store
	Logger *zap.Logger
}

type Service struct {
	records *store.Collection[Record]
	logger  *zap.Logger
}

func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, apperr.NewServiceError("selection.service.new", "missing_store", errMissingStore)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{records: store.NewCollection[Record](cfg.Store, Namespace), logger: logger}, nil
}

// Get returns the player's selection; an absent record is empty.
func (s *Service) Get(ctx context.Context, key Key) (Record, error) {
	record, err := s.records.Get(ctx, key.String())
	if errors.Is(err, store.ErrNotFound) {
		return Record{}, nil
	}
	if err != nil {
		s.logger.Error("selection load failed", zap.String("operation", "selection.get"), zap.String("key", key.String()), zap.Error(err))
		return Record{}, apperr.NewServiceError("selection.get", "load_failed", err)
	}
	return record, nil
}

func (s *Service) SetCharacter(ctx context.Context, key Key, characterID string) error {
	return s.set(ctx, "selection.set_character", key, func(record *Record) {
		record.CharacterID = characterID
	})
}

func (s *Service) SetMech(ctx context.Context, key Key, mechID string) error {
	return s.set(ctx, "selection.set_mech", key, func(record *Record) {
		record.MechID = mechID
	})
}

// Restore writes a record as-is. Used by the legacy importer.
func (s *Service) Restore(ctx context.Context, key Key, record Record) error {
	return s.set(ctx, "selection.restore", key, func(current *Record) {
		if record.CharacterID != "" {
			current.CharacterID = record.CharacterID
		}
		if record.MechID != "" {
			current.MechID = record.MechID
		}
	})
}

func (s *Service) set(ctx context.Context, operation string, key Key, apply func(*Record)) error {
	_, err := s.records.Update(ctx, key.String(), func(record *Record, _ bool) error {
		apply(record)
		return nil
	})
	if err != nil {
		s.logger.Error("selection update failed", zap.String("operation", operation), zap.String("key", key.String()), zap.Error(err))
		return apperr.NewServiceError(operation, "update_failed", err)
	}
	return nil
}
