package store

import (
	"context"
	"errors"
	"time"

	"github.com/MarcoPoloResearchLab/sortie/internal/apperr"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	opLoad   = "store.load"
	opSave   = "store.save"
	opDelete = "store.delete"
	opKeys   = "store.keys"
)

var errMissingDatabase = errors.New("database handle is required")

// GormStoreConfig describes the dependencies of a GormStore.
type GormStoreConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
	Logger   *zap.Logger
}

// GormStore keeps documents in the documents table.
type GormStore struct {
	db     *gorm.DB
	clock  func() time.Time
	logger *zap.Logger
}

// NewGormStore validates the configuration and returns a GormStore.
func NewGormStore(cfg GormStoreConfig) (*GormStore, error) {
	if cfg.Database == nil {
		return nil, apperr.NewServiceError("store.new", "missing_database", errMissingDatabase)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GormStore{db: cfg.Database, clock: clock, logger: logger}, nil
}

func (s *GormStore) Load(ctx context.Context, namespace, key string) ([]byte, error) {
	if err := validateKey(namespace, key); err != nil {
		return nil, err
	}
	var document Document
	err := s.db.WithContext(ctx).
		Where("namespace = ? AND doc_key = ?", namespace, key).
		Take(&document).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		s.logError(opLoad, "query_failed", err, namespace, key)
		return nil, apperr.NewServiceError(opLoad, "query_failed", err)
	}
	return []byte(document.Payload), nil
}

func (s *GormStore) Save(ctx context.Context, namespace, key string, payload []byte) error {
	if err := validateKey(namespace, key); err != nil {
		return err
	}
	document := Document{
		Namespace:        namespace,
		Key:              key,
		Payload:          datatypes.JSON(payload),
		UpdatedAtSeconds: s.clock().UTC().Unix(),
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "namespace"}, {Name: "doc_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"payload_json", "updated_at_s"}),
		}).
		Create(&document).Error
	if err != nil {
		s.logError(opSave, "upsert_failed", err, namespace, key)
		return apperr.NewServiceError(opSave, "upsert_failed", err)
	}
	return nil
}

func (s *GormStore) Delete(ctx context.Context, namespace, key string) error {
	if err := validateKey(namespace, key); err != nil {
		return err
	}
	err := s.db.WithContext(ctx).
		Where("namespace = ? AND doc_key = ?", namespace, key).
		Delete(&Document{}).Error
	if err != nil {
		s.logError(opDelete, "delete_failed", err, namespace, key)
		return apperr.NewServiceError(opDelete, "delete_failed", err)
	}
	return nil
}

func (s *GormStore) Keys(ctx context.Context, namespace string) ([]string, error) {
	var keys []string
	err := s.db.WithContext(ctx).
		Model(&Document{}).
		Where("namespace = ?", namespace).
		Order("doc_key ASC").
		Pluck("doc_key", &keys).Error
	if err != nil {
		s.logError(opKeys, "query_failed", err, namespace, "")
		return nil, apperr.NewServiceError(opKeys, "query_failed", err)
	}
	return keys, nil
}

func (s *GormStore) logError(operation, reason string, err error, namespace, key string) {
	s.logger.Error("document store error",
		zap.String("operation", operation),
		zap.String("reason", reason),
		zap.String("namespace", namespace),
		zap.String("key", key),
		zap.Error(err))
}
