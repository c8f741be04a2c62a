package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/MarcoPoloResearchLab/sortie/internal/bot"
	"github.com/MarcoPoloResearchLab/sortie/internal/config"
	"github.com/MarcoPoloResearchLab/sortie/internal/legacy"
	"github.com/MarcoPoloResearchLab/sortie/internal/logging"
)

var (
	cfgFile string
)

func main() {
	rootCmd := newRootCommand()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "sortie",
		Short: "Discord helper bot for mech battle sessions",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
	setupFlags(rootCmd)

	rootCmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Connect to Discord and serve the spectator API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	})
	rootCmd.AddCommand(&cobra.Command{
		Use:       "register [guild|global|clear:guild|clear:global]",
		Short:     "Synchronize slash commands",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{string(bot.RegisterGuild), string(bot.RegisterGlobal), string(bot.RegisterClearGuild), string(bot.RegisterClearGlobal)},
		RunE: func(cmd *cobra.Command, args []string) error {
			target := ""
			if len(args) == 1 {
				target = args[0]
			}
			return runRegister(target)
		},
	})

	importCmd := &cobra.Command{
		Use:   "import-legacy",
		Short: "Import the JSON data directory of the previous bot",
		RunE: func(cmd *cobra.Command, args []string) error {
			dataDir, err := cmd.Flags().GetString("data-dir")
			if err != nil {
				return err
			}
			return runImportLegacy(cmd.Context(), dataDir)
		},
	}
	importCmd.Flags().String("data-dir", "data", "Directory holding characters.json, mechs.json and the other legacy files")
	rootCmd.AddCommand(importCmd)

	return rootCmd
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "Spectator HTTP listen address")
	cmd.PersistentFlags().String("database-driver", defaults.GetString("database.driver"), "Database driver (sqlite, postgres)")
	cmd.PersistentFlags().String("database-path", defaults.GetString("database.path"), "SQLite database path")
	cmd.PersistentFlags().String("database-dsn", "", "Postgres DSN")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("log-format", defaults.GetString("log.format"), "Log format (json, console)")
	cmd.PersistentFlags().String("guild-id", "", "Discord guild for guild-scoped commands")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "database.driver", "database-driver")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "database.dsn", "database-dsn")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "log.format", "log-format")
	bindFlag(cmd, "discord.guild_id", "guild-id")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

// watchLogLevel re-applies log.level whenever the config file changes.
func watchLogLevel(logger *zap.Logger, level zap.AtomicLevel) {
	if viper.ConfigFileUsed() == "" {
		return
	}
	viper.OnConfigChange(func(event fsnotify.Event) {
		next := logging.ParseLevel(viper.GetString("log.level"))
		if next != level.Level() {
			level.SetLevel(next)
			logger.Info("log level changed", zap.String("file", event.Name), zap.Stringer("level", next))
		}
	})
	viper.WatchConfig()
}

func runImportLegacy(ctx context.Context, dataDir string) error {
	appConfig, err := config.Load(viper.GetViper(), false)
	if err != nil {
		return err
	}
	logger, _, err := newLogger(appConfig)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	app, err := openApplication(appConfig, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	report, err := legacy.Import(ctx, dataDir, legacy.Services{
		Characters: app.characters,
		Mechs:      app.mechs,
		Selections: app.selections,
		Parts:      app.parts,
		Boards:     app.boards,
		Logger:     logger,
	})
	if err != nil {
		return err
	}
	logger.Info("legacy data imported",
		zap.String("data_dir", dataDir),
		zap.Int("characters", report.Characters),
		zap.Int("mechs", report.Mechs),
		zap.Int("selections", report.Selections),
		zap.Int("sheet_messages", report.SheetMessages),
		zap.Int("part_records", report.PartRecords),
		zap.Int("boards", report.Boards),
		zap.Strings("skipped", report.Skipped))
	return nil
}

func runRegister(rawTarget string) error {
	target, err := bot.ParseRegisterTarget(rawTarget)
	if err != nil {
		return err
	}
	appConfig, err := config.Load(viper.GetViper(), true)
	if err != nil {
		return err
	}
	logger, _, err := newLogger(appConfig)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	session, err := bot.NewSession(appConfig.Discord.Token)
	if err != nil {
		return err
	}
	count, err := bot.Register(session, appConfig.Discord.AppID, appConfig.Discord.GuildID, target)
	if err != nil {
		return err
	}
	logger.Info("slash commands registered", zap.String("target", string(target)), zap.Int("commands", count))
	return nil
}

func signalContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
}
