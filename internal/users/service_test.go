package users

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func newTestService(t *testing.T, clock func() time.Time) (*Service, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "users.db")), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&Identity{}); err != nil {
		t.Fatalf("failed to migrate identity schema: %v", err)
	}
	service, err := NewService(ServiceConfig{Database: db, Clock: clock, TouchInterval: time.Minute})
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	return service, db
}

func TestTouchUpsertsIdentity(t *testing.T) {
	now := time.Unix(100, 0)
	service, db := newTestService(t, func() time.Time { return now })
	ctx := context.Background()

	if err := service.Touch(ctx, Profile{UserID: " 42 ", Username: "rin", DisplayName: "Rin"}); err != nil {
		t.Fatalf("touch failed: %v", err)
	}
	if err := service.Touch(ctx, Profile{UserID: "42", Username: "rin", DisplayName: "Captain Rin"}); err != nil {
		t.Fatalf("second touch failed: %v", err)
	}

	var count int64
	if err := db.Model(&Identity{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected a single identity row, got %d", count)
	}

	var stored Identity
	if err := db.Where("subject = ?", "42").First(&stored).Error; err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if stored.DisplayName != "Captain Rin" {
		t.Fatalf("expected display name to be updated, got %q", stored.DisplayName)
	}
}

func TestTouchIsThrottledForUnchangedProfiles(t *testing.T) {
	now := time.Unix(100, 0)
	service, db := newTestService(t, func() time.Time { return now })
	ctx := context.Background()
	profile := Profile{UserID: "42", Username: "rin"}

	if err := service.Touch(ctx, profile); err != nil {
		t.Fatalf("touch failed: %v", err)
	}
	now = now.Add(10 * time.Second)
	if err := service.Touch(ctx, profile); err != nil {
		t.Fatalf("touch failed: %v", err)
	}

	var stored Identity
	if err := db.Where("subject = ?", "42").First(&stored).Error; err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if !stored.LastSeenAt.Equal(time.Unix(100, 0)) {
		t.Fatalf("expected throttled touch to keep last seen, got %v", stored.LastSeenAt)
	}

	now = now.Add(2 * time.Minute)
	if err := service.Touch(ctx, profile); err != nil {
		t.Fatalf("touch failed: %v", err)
	}
	if err := db.Where("subject = ?", "42").First(&stored).Error; err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if !stored.LastSeenAt.Equal(now) {
		t.Fatalf("expected last seen %v, got %v", now, stored.LastSeenAt)
	}
}

func TestTouchRejectsEmptyUser(t *testing.T) {
	service, _ := newTestService(t, nil)
	if err := service.Touch(context.Background(), Profile{UserID: "  "}); err != ErrInvalidIdentity {
		t.Fatalf("expected ErrInvalidIdentity, got %v", err)
	}
}

func TestDisplayNameFallsBack(t *testing.T) {
	service, _ := newTestService(t, nil)
	ctx := context.Background()

	if label := service.DisplayName(ctx, "unknown"); label != "unknown" {
		t.Fatalf("expected fallback to id, got %q", label)
	}
	if err := service.Touch(ctx, Profile{UserID: "7", Username: "kai"}); err != nil {
		t.Fatalf("touch failed: %v", err)
	}
	if label := service.DisplayName(ctx, "7"); label != "kai" {
		t.Fatalf("expected username label, got %q", label)
	}
}
