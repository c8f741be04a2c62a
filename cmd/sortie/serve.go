package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/MarcoPoloResearchLab/sortie/internal/auth"
	"github.com/MarcoPoloResearchLab/sortie/internal/board"
	"github.com/MarcoPoloResearchLab/sortie/internal/bot"
	"github.com/MarcoPoloResearchLab/sortie/internal/characters"
	"github.com/MarcoPoloResearchLab/sortie/internal/config"
	"github.com/MarcoPoloResearchLab/sortie/internal/database"
	"github.com/MarcoPoloResearchLab/sortie/internal/ids"
	"github.com/MarcoPoloResearchLab/sortie/internal/logging"
	"github.com/MarcoPoloResearchLab/sortie/internal/mechs"
	"github.com/MarcoPoloResearchLab/sortie/internal/parts"
	"github.com/MarcoPoloResearchLab/sortie/internal/selection"
	"github.com/MarcoPoloResearchLab/sortie/internal/server"
	"github.com/MarcoPoloResearchLab/sortie/internal/session"
	"github.com/MarcoPoloResearchLab/sortie/internal/store"
	"github.com/MarcoPoloResearchLab/sortie/internal/users"
)

const shutdownTimeout = 10 * time.Second

func newLogger(appConfig config.AppConfig) (*zap.Logger, zap.AtomicLevel, error) {
	return logging.NewLogger(logging.Options{
		Level:  appConfig.Log.Level,
		Format: appConfig.Log.Format,
		File: logging.FileOptions{
			Path:       appConfig.Log.FilePath,
			MaxSizeMB:  appConfig.Log.MaxSizeMB,
			MaxBackups: appConfig.Log.MaxBackups,
			MaxAgeDays: appConfig.Log.MaxAgeDays,
			Compress:   appConfig.Log.Compress,
		},
	})
}

// application holds the database and every service built on it.
type application struct {
	db         *gorm.DB
	selections *selection.Service
	characters *characters.Service
	mechs      *mechs.Service
	parts      *parts.Service
	boards     *board.Service
	users      *users.Service
}

func openApplication(appConfig config.AppConfig, logger *zap.Logger) (*application, error) {
	db, err := database.OpenDatabase(database.Config{
		Driver: appConfig.Database.Driver,
		Path:   appConfig.Database.Path,
		DSN:    appConfig.Database.DSN,
	}, logger)
	if err != nil {
		return nil, err
	}
	app := &application{db: db}
	if err := app.build(logger); err != nil {
		app.Close()
		return nil, err
	}
	return app, nil
}

func (a *application) build(logger *zap.Logger) error {
	documents, err := store.NewGormStore(store.GormStoreConfig{Database: a.db, Clock: time.Now, Logger: logger})
	if err != nil {
		return err
	}
	idProvider := ids.NewUUIDProvider()

	if a.selections, err = selection.NewService(selection.ServiceConfig{Store: documents, Logger: logger}); err != nil {
		return err
	}
	if a.characters, err = characters.NewService(characters.ServiceConfig{
		Store:      documents,
		Selections: a.selections,
		IDProvider: idProvider,
		Clock:      time.Now,
		Logger:     logger,
	}); err != nil {
		return err
	}
	if a.mechs, err = mechs.NewService(mechs.ServiceConfig{
		Store:      documents,
		Selections: a.selections,
		IDProvider: idProvider,
		Clock:      time.Now,
		Logger:     logger,
	}); err != nil {
		return err
	}
	if a.parts, err = parts.NewService(parts.ServiceConfig{Store: documents, Mechs: a.mechs, Logger: logger}); err != nil {
		return err
	}
	if a.boards, err = board.NewService(board.ServiceConfig{
		Store:      documents,
		IDProvider: idProvider,
		Clock:      time.Now,
		Logger:     logger,
	}); err != nil {
		return err
	}
	if a.users, err = users.NewService(users.ServiceConfig{Database: a.db, Clock: time.Now, Logger: logger}); err != nil {
		return err
	}
	return nil
}

func (a *application) Close() {
	if sqlDB, err := a.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// runServe runs the Discord gateway and, when spectator links are
// configured, the spectator HTTP server until a signal arrives or either
// side fails.
func runServe(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper(), true)
	if err != nil {
		return err
	}

	logger, level, err := newLogger(appConfig)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck
	watchLogLevel(logger, level)

	app, err := openApplication(appConfig, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	gateway, err := bot.NewSession(appConfig.Discord.Token)
	if err != nil {
		return err
	}

	botConfig := bot.Config{
		Transport:  bot.NewSessionTransport(gateway),
		Boards:     app.boards,
		Characters: app.characters,
		Mechs:      app.mechs,
		Parts:      app.parts,
		Sessions:   session.NewStore(appConfig.Session.SelectionTTL, time.Now),
		Users:      app.users,
		Logger:     logger,
	}

	var httpServer *http.Server
	if appConfig.SpectatorEnabled() {
		issuer, err := auth.NewTokenIssuer(auth.TokenIssuerConfig{
			SigningSecret: []byte(appConfig.Spectator.SigningSecret),
			Issuer:        appConfig.Spectator.Issuer,
			TokenTTL:      appConfig.Spectator.TokenTTL,
		})
		if err != nil {
			return err
		}
		realtime := server.NewRealtimeDispatcher()
		app.boards.SetObserver(realtime)

		handler, err := server.NewHTTPHandler(server.Dependencies{
			Boards:   app.boards,
			Tokens:   issuer,
			Users:    app.users,
			Realtime: realtime,
			Logger:   logger,
		})
		if err != nil {
			return err
		}
		httpServer = &http.Server{Addr: appConfig.HTTP.Address, Handler: handler}
		botConfig.Spectators = issuer
		botConfig.SpectatorBaseURL = appConfig.Spectator.BaseURL
	} else {
		logger.Info("spectator server disabled", zap.Bool("http_enabled", appConfig.HTTP.Enabled))
	}

	discordBot, err := bot.New(botConfig)
	if err != nil {
		return err
	}

	signalCtx, stop := signalContext(ctx)
	defer stop()
	group, groupCtx := errgroup.WithContext(signalCtx)

	group.Go(func() error {
		logger.Info("gateway connecting")
		return discordBot.Run(groupCtx, gateway)
	})

	if httpServer != nil {
		group.Go(func() error {
			logger.Info("server starting", zap.String("address", httpServer.Addr))
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		group.Go(func() error {
			<-groupCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return httpServer.Shutdown(shutdownCtx)
		})
	}

	return group.Wait()
}
