package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shelfmark/shelfmark/internal/backup"
	"github.com/shelfmark/shelfmark/internal/bookmarks"
	"github.com/shelfmark/shelfmark/internal/config"
	"github.com/shelfmark/shelfmark/internal/httpserver"
	"github.com/shelfmark/shelfmark/internal/httpserver/deps"
	"github.com/shelfmark/shelfmark/internal/logger"
	"github.com/shelfmark/shelfmark/internal/scheduler"
	"github.com/shelfmark/shelfmark/internal/store/sqlite"
	"github.com/shelfmark/shelfmark/internal/version"
)

type App struct {
	cfg        *config.Config
	logger     logger.Logger
	server     *httpserver.Server
	store      *sqlite.Store
	backup     *backup.Manager
	maintainer *scheduler.BackupMaintainer
}

func New() (*App, error) {
	cfg := config.Load()

	loggerClient := logger.New(cfg.LogLevel, cfg.PrettyLog)

	// Open the database early - fail fast if the data dir is unusable
	store, err := sqlite.Open(cfg.DataDir, loggerClient)
	if err != nil {
		return nil, fmt.Errorf("failed to open bookmark store: %w", err)
	}
	loggerClient.Infof("bookmark store opened at %s", cfg.DataDir)

	bm := backup.NewManager(store, loggerClient, cfg.SnapshotThreshold)
	service := bookmarks.NewService(store, bm, loggerClient)

	maintainer := scheduler.NewBackupMaintainer(
		bm,
		loggerClient,
		cfg.MaintenanceInterval,
		scheduler.DefaultSnapshotAge,
	)

	// Dependencies passed to routes (extend as needed).
	d := deps.Deps{
		Logger:    loggerClient,
		StartTime: time.Now(),
		Version:   version.Version,
		Commit:    version.Commit,
		BuildDate: version.BuildDate,
		GoVersion: version.GoVersion,

		Service:          service,
		Store:            store,
		Backup:           bm,
		LargeImportBytes: cfg.LargeImportBytes,
	}

	server := httpserver.New(cfg, loggerClient, d)

	return &App{
		cfg:        cfg,
		logger:     loggerClient,
		server:     server,
		store:      store,
		backup:     bm,
		maintainer: maintainer,
	}, nil
}

func (a *App) Run() error {
	a.logger.Infof("🚀 Starting Shelfmark v%s on %s", version.Version, a.cfg.ListenPort)
	a.logger.Infof("Shelfmark %s (commit=%s, built=%s, go=%s)",
		version.Version, version.Commit, version.BuildDate, version.GoVersion)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Reattach the backup directory persisted in an earlier session
	if err := a.backup.Start(ctx); err != nil {
		return fmt.Errorf("failed to start backup manager: %w", err)
	}

	// An explicitly configured directory overrides the persisted one
	if a.cfg.BackupDir != "" && a.backup.Dir() != a.cfg.BackupDir {
		if err := a.backup.SetDirectory(ctx, a.cfg.BackupDir); err != nil {
			a.logger.Warn("configured backup directory unusable",
				logger.String("dir", a.cfg.BackupDir), logger.Error(err))
		}
	}

	if err := a.maintainer.Start(ctx); err != nil {
		return fmt.Errorf("failed to start backup maintainer: %w", err)
	}
	a.logger.Info("backup maintainer started",
		logger.Duration("interval", a.cfg.MaintenanceInterval))

	errCh := make(chan error, 1)
	go func() {
		if err := a.server.Start(); err != nil {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("⏳ Shutting down gracefully...")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := a.server.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop server: %w", err)
	}

	a.maintainer.Stop()

	// Drain queued backup writes before the store goes away
	a.backup.Shutdown()

	if err := a.store.Close(); err != nil {
		a.logger.Warnf("failed to close store: %v", err)
	} else {
		a.logger.Info("✅ store closed cleanly")
	}

	a.logger.Info("✅ Shelfmark stopped cleanly")
	return nil
}
