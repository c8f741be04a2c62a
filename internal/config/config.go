package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix               = "SORTIE"
	defaultHTTPAddress      = "0.0.0.0:8080"
	defaultDatabaseDriver   = "sqlite"
	defaultDatabasePath     = "sortie.db"
	defaultLogLevel         = "info"
	defaultLogFormat        = "json"
	defaultLogMaxSizeMB     = 50
	defaultLogMaxBackups    = 5
	defaultLogMaxAgeDays    = 14
	defaultSpectatorTTLMins = 720
	defaultSelectionTTL     = 15 * time.Minute
	spectatorIssuer         = "sortie"
)

// AppConfig captures runtime configuration for the bot and spectator server.
type AppConfig struct {
	Discord   DiscordConfig
	HTTP      HTTPConfig
	Database  DatabaseConfig
	Log       LogConfig
	Spectator SpectatorConfig
	Session   SessionConfig
}

// DiscordConfig holds gateway credentials.
type DiscordConfig struct {
	Token   string
	AppID   string
	GuildID string
}

// HTTPConfig controls the spectator server.
type HTTPConfig struct {
	Enabled bool
	Address string
}

// DatabaseConfig selects the document store backend.
type DatabaseConfig struct {
	Driver string
	Path   string
	DSN    string
}

// LogConfig mirrors logging.Options.
type LogConfig struct {
	Level      string
	Format     string
	FilePath   string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// SpectatorConfig configures viewer tokens and links.
type SpectatorConfig struct {
	SigningSecret string
	Issuer        string
	TokenTTL      time.Duration
	BaseURL       string
}

// SessionConfig configures transient UI selections.
type SessionConfig struct {
	SelectionTTL time.Duration
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.enabled", true)
	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("database.driver", defaultDatabaseDriver)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("log.format", defaultLogFormat)
	configViper.SetDefault("log.file.max_size_mb", defaultLogMaxSizeMB)
	configViper.SetDefault("log.file.max_backups", defaultLogMaxBackups)
	configViper.SetDefault("log.file.max_age_days", defaultLogMaxAgeDays)
	configViper.SetDefault("log.file.compress", true)
	configViper.SetDefault("spectator.token_ttl_minutes", defaultSpectatorTTLMins)
	configViper.SetDefault("session.selection_ttl", defaultSelectionTTL)
}

// Load parses runtime configuration from viper. requireDiscord is false for
// commands that never open the gateway.
func Load(configViper *viper.Viper, requireDiscord bool) (AppConfig, error) {
	cfg := AppConfig{
		Discord: DiscordConfig{
			Token:   strings.TrimSpace(configViper.GetString("discord.token")),
			AppID:   strings.TrimSpace(configViper.GetString("discord.app_id")),
			GuildID: strings.TrimSpace(configViper.GetString("discord.guild_id")),
		},
		HTTP: HTTPConfig{
			Enabled: configViper.GetBool("http.enabled"),
			Address: configViper.GetString("http.address"),
		},
		Database: DatabaseConfig{
			Driver: strings.ToLower(strings.TrimSpace(configViper.GetString("database.driver"))),
			Path:   configViper.GetString("database.path"),
			DSN:    configViper.GetString("database.dsn"),
		},
		Log: LogConfig{
			Level:      configViper.GetString("log.level"),
			Format:     configViper.GetString("log.format"),
			FilePath:   configViper.GetString("log.file.path"),
			MaxSizeMB:  configViper.GetInt("log.file.max_size_mb"),
			MaxBackups: configViper.GetInt("log.file.max_backups"),
			MaxAgeDays: configViper.GetInt("log.file.max_age_days"),
			Compress:   configViper.GetBool("log.file.compress"),
		},
		Spectator: SpectatorConfig{
			SigningSecret: configViper.GetString("spectator.signing_secret"),
			Issuer:        spectatorIssuer,
			TokenTTL:      time.Duration(configViper.GetInt("spectator.token_ttl_minutes")) * time.Minute,
			BaseURL:       strings.TrimSpace(configViper.GetString("spectator.base_url")),
		},
		Session: SessionConfig{
			SelectionTTL: configViper.GetDuration("session.selection_ttl"),
		},
	}

	if err := cfg.validate(requireDiscord); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

// SpectatorEnabled reports whether viewer links can be issued.
func (c AppConfig) SpectatorEnabled() bool {
	return c.HTTP.Enabled && strings.TrimSpace(c.Spectator.SigningSecret) != ""
}

func (c AppConfig) validate(requireDiscord bool) error {
	if requireDiscord {
		if c.Discord.Token == "" {
			return fmt.Errorf("discord.token is required")
		}
		if c.Discord.AppID == "" {
			return fmt.Errorf("discord.app_id is required")
		}
	}
	switch c.Database.Driver {
	case "sqlite":
		if strings.TrimSpace(c.Database.Path) == "" {
			return fmt.Errorf("database.path is required")
		}
	case "postgres":
		if strings.TrimSpace(c.Database.DSN) == "" {
			return fmt.Errorf("database.dsn is required for postgres")
		}
	default:
		return fmt.Errorf("database.driver %q is not supported", c.Database.Driver)
	}
	if c.HTTP.Enabled && strings.TrimSpace(c.HTTP.Address) == "" {
		return fmt.Errorf("http.address is required")
	}
	if c.Session.SelectionTTL <= 0 {
		return fmt.Errorf("session.selection_ttl must be positive")
	}
	return nil
}
