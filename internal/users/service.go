package users

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrInvalidIdentity indicates the profile did not contain a usable identifier.
var ErrInvalidIdentity = errors.New("users: invalid identity")

// DefaultTouchInterval bounds how often one user's last-seen time is written.
const DefaultTouchInterval = time.Minute

// Profile is what the gateway knows about the user behind an interaction.
type Profile struct {
	UserID      string
	Username    string
	DisplayName string
}

// ServiceConfig describes the dependencies required for the player directory.
type ServiceConfig struct {
	Database      *gorm.DB
	Clock         func() time.Time
	TouchInterval time.Duration
	Logger        *zap.Logger
}

// Service records who has interacted with the bot.
type Service struct {
	db            *gorm.DB
	now           func() time.Time
	touchInterval time.Duration
	logger        *zap.Logger
	cache         sync.Map
}

type cachedIdentity struct {
	identity Identity
	touched  time.Time
}

// NewService constructs the directory service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("users: database connection required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	interval := cfg.TouchInterval
	if interval <= 0 {
		interval = DefaultTouchInterval
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		db:            cfg.Database,
		now:           clock,
		touchInterval: interval,
		logger:        logger,
	}, nil
}

// Touch upserts the profile and its last-seen time. Repeated touches with an
// unchanged profile inside the touch interval are served from cache.
func (s *Service) Touch(ctx context.Context, profile Profile) error {
	subject := normalize(profile.UserID)
	if subject == "" {
		return ErrInvalidIdentity
	}
	now := s.now()
	identity := Identity{
		Provider:    ProviderDiscord,
		Subject:     subject,
		Username:    normalize(profile.Username),
		DisplayName: normalize(profile.DisplayName),
		LastSeenAt:  now,
	}

	if cached, ok := s.cache.Load(subject); ok {
		entry, ok := cached.(cachedIdentity)
		if ok && entry.identity.Username == identity.Username &&
			entry.identity.DisplayName == identity.DisplayName &&
			now.Sub(entry.touched) < s.touchInterval {
			return nil
		}
	}

	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "provider"}, {Name: "subject"}},
			DoUpdates: clause.AssignmentColumns([]string{"username", "user_display_name", "last_seen_at", "updated_at"}),
		}).
		Create(&identity).Error
	if err != nil {
		s.logger.Warn("user touch failed", zap.String("user_id", subject), zap.Error(err))
		return err
	}
	s.cache.Store(subject, cachedIdentity{identity: identity, touched: now})
	return nil
}

// Lookup returns the stored identity for a user id.
func (s *Service) Lookup(ctx context.Context, userID string) (Identity, error) {
	subject := normalize(userID)
	if cached, ok := s.cache.Load(subject); ok {
		if entry, ok := cached.(cachedIdentity); ok {
			return entry.identity, nil
		}
	}
	var identity Identity
	err := s.db.WithContext(ctx).
		Where("provider = ? AND subject = ?", ProviderDiscord, subject).
		First(&identity).
		Error
	if err != nil {
		return Identity{}, err
	}
	return identity, nil
}

// DisplayName resolves a user id to a label, falling back to the id itself.
func (s *Service) DisplayName(ctx context.Context, userID string) string {
	identity, err := s.Lookup(ctx, userID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Warn("user lookup failed", zap.String("user_id", userID), zap.Error(err))
		}
		return userID
	}
	return identity.Label()
}
