package database

import (
	"encoding/json"
	"errors"
	"slices"
	"time"

	"github.com/MarcoPoloResearchLab/sortie/internal/parts"
	"github.com/MarcoPoloResearchLab/sortie/internal/store"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const migrationDedupeDestroyedParts = "2026-10-12_dedupe_destroyed_parts"

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{name: migrationDedupeDestroyedParts, apply: dedupeDestroyedParts},
	}

	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		err = db.Transaction(func(tx *gorm.DB) error {
			if err := migration.apply(tx); err != nil {
				return err
			}
			appliedAt := time.Now().UTC().Unix()
			return tx.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error
		})
		if err != nil {
			return err
		}
		logger.Info("database migration applied", zap.String("migration", migration.name))
	}
	return nil
}

// dedupeDestroyedParts rewrites destroyed-part lists imported from older data
// that could hold duplicates, unsorted entries or numbers outside 1..8.
func dedupeDestroyedParts(db *gorm.DB) error {
	var documents []store.Document
	if err := db.Where("namespace = ?", parts.Namespace).Find(&documents).Error; err != nil {
		return err
	}
	for _, document := range documents {
		var payload struct {
			Destroyed []int `json:"destroyed"`
		}
		if err := json.Unmarshal(document.Payload, &payload); err != nil {
			return err
		}
		normalized := parts.Normalize(payload.Destroyed)
		if slices.Equal(normalized, payload.Destroyed) {
			continue
		}
		payload.Destroyed = normalized
		encoded, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		err = db.Model(&store.Document{}).
			Where("namespace = ? AND doc_key = ?", document.Namespace, document.Key).
			Update("payload_json", datatypes.JSON(encoded)).Error
		if err != nil {
			return err
		}
	}
	return nil
}
