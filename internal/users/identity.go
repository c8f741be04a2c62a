package users

import (
	"strings"
	"time"
)

// ProviderDiscord tags identities that come from the chat gateway.
const ProviderDiscord = "discord"

// Identity records a chat-platform user seen by the bot.
type Identity struct {
	Provider    string    `gorm:"column:provider;primaryKey;size:32;not null"`
	Subject     string    `gorm:"column:subject;primaryKey;size:190;not null"`
	Username    string    `gorm:"column:username;size:190"`
	DisplayName string    `gorm:"column:user_display_name;size:320"`
	LastSeenAt  time.Time `gorm:"column:last_seen_at"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName exposes the table backing user identities.
func (Identity) TableName() string {
	return "user_identities"
}

// Label prefers the display name, then the username, then the raw id.
func (i Identity) Label() string {
	for _, candidate := range []string{i.DisplayName, i.Username, i.Subject} {
		if value := normalize(candidate); value != "" {
			return value
		}
	}
	return ""
}

// normalize value helper used across service implementation.
func normalize(value string) string {
	return strings.TrimSpace(value)
}
