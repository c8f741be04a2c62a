package database

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/MarcoPoloResearchLab/sortie/internal/parts"
	"github.com/MarcoPoloResearchLab/sortie/internal/store"
	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func TestApplyMigrationsDedupesDestroyedParts(testContext *testing.T) {
	tempDir := testContext.TempDir()
	databasePath := filepath.Join(tempDir, "migration.db")

	database, err := gorm.Open(sqlite.Open(databasePath), &gorm.Config{})
	if err != nil {
		testContext.Fatalf("failed to open sqlite: %v", err)
	}

	if err := database.AutoMigrate(&store.Document{}, &migrationRecord{}); err != nil {
		testContext.Fatalf("failed to migrate schema: %v", err)
	}

	documents := []store.Document{
		{Namespace: parts.Namespace, Key: "mech-1", Payload: datatypes.JSON(`{"destroyed":[3,1,3,9,0,1]}`), UpdatedAtSeconds: 1},
		{Namespace: parts.Namespace, Key: "mech-2", Payload: datatypes.JSON(`{"destroyed":[2,5]}`), UpdatedAtSeconds: 1},
		{Namespace: "boards", Key: "channel", Payload: datatypes.JSON(`{"destroyed":[3,3]}`), UpdatedAtSeconds: 1},
	}
	if err := database.Create(&documents).Error; err != nil {
		testContext.Fatalf("failed to insert documents: %v", err)
	}

	if err := applyMigrations(database, zap.NewNop()); err != nil {
		testContext.Fatalf("failed to apply migrations: %v", err)
	}

	assertDestroyed := func(namespace, key string, expected []int) {
		testContext.Helper()
		var stored store.Document
		if err := database.Where("namespace = ? AND doc_key = ?", namespace, key).Take(&stored).Error; err != nil {
			testContext.Fatalf("failed to reload %s/%s: %v", namespace, key, err)
		}
		var payload struct {
			Destroyed []int `json:"destroyed"`
		}
		if err := json.Unmarshal(stored.Payload, &payload); err != nil {
			testContext.Fatalf("failed to decode %s/%s: %v", namespace, key, err)
		}
		if len(payload.Destroyed) != len(expected) {
			testContext.Fatalf("%s/%s: expected %v, got %v", namespace, key, expected, payload.Destroyed)
		}
		for index := range expected {
			if payload.Destroyed[index] != expected[index] {
				testContext.Fatalf("%s/%s: expected %v, got %v", namespace, key, expected, payload.Destroyed)
			}
		}
	}

	assertDestroyed(parts.Namespace, "mech-1", []int{1, 3})
	assertDestroyed(parts.Namespace, "mech-2", []int{2, 5})
	assertDestroyed("boards", "channel", []int{3, 3})

	var record migrationRecord
	if err := database.Where("name = ?", migrationDedupeDestroyedParts).Take(&record).Error; err != nil {
		testContext.Fatalf("expected migration record to be created: %v", err)
	}
	if record.AppliedAtSeconds == 0 {
		testContext.Fatalf("expected migration timestamp to be set")
	}

	if err := applyMigrations(database, zap.NewNop()); err != nil {
		testContext.Fatalf("expected second run to be a no-op: %v", err)
	}
}

func TestOpenDatabaseCreatesSchema(testContext *testing.T) {
	databasePath := filepath.Join(testContext.TempDir(), "nested", "sortie.db")

	database, err := OpenDatabase(Config{Driver: DriverSQLite, Path: databasePath}, nil)
	if err != nil {
		testContext.Fatalf("failed to open database: %v", err)
	}

	for _, table := range []string{"documents", "user_identities", "db_migrations"} {
		if !database.Migrator().HasTable(table) {
			testContext.Fatalf("expected table %s to exist", table)
		}
	}
}

func TestOpenDatabaseRejectsUnknownDriver(testContext *testing.T) {
	if _, err := OpenDatabase(Config{Driver: "oracle"}, nil); err == nil {
		testContext.Fatalf("expected unsupported driver error")
	}
	if _, err := OpenDatabase(Config{Driver: DriverPostgres}, nil); err == nil {
		testContext.Fatalf("expected missing dsn error")
	}
}
