package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	app "github.com/mohammadpnp/member-provisioning/internal/application/member"
	"github.com/mohammadpnp/member-provisioning/internal/bootstrap"
	"github.com/mohammadpnp/member-provisioning/internal/config"
	"github.com/mohammadpnp/member-provisioning/internal/infrastructure/db"
	infrafile "github.com/mohammadpnp/member-provisioning/internal/infrastructure/file"
	"github.com/mohammadpnp/member-provisioning/internal/infrastructure/repository"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	cfg, err := config.Load(".env", ".env.local")
	if err != nil {
		logrus.Fatalf("failed to load config: %v", err)
	}
	logger := cfg.Logger()

	if cfg.DatabaseURL == "" {
		logger.Fatal("DATABASE_URL is required")
	}

	if cfg.MigrationsEnabled {
		if err := db.Migrate(cfg.DatabaseURL, logger); err != nil {
			logger.Fatalf("failed to migrate database: %v", err)
		}
	}

	gormDB, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
	if err != nil {
		logger.Fatalf("failed to connect database: %v", err)
	}

	pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("failed to create pgx pool: %v", err)
	}
	defer pool.Close()

	engine := bootstrap.NewEngine(pool, gormDB, cfg.Import, logger)
	server := bootstrap.NewHTTPServer(gormDB, engine, cfg, logger)

	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()

	importJobRepo := repository.NewImportJobRepository(gormDB)
	sourceReader := infrafile.NewLocalSource(cfg.Import.BaseDir)

	worker := app.NewImportWorker(importJobRepo, sourceReader, engine, app.ImportWorkerConfig{
		Workers:       cfg.Import.Workers,
		LeaseDuration: cfg.Import.LeaseDuration(),
		Logger:        logger.WithField("component", "import_worker"),
	})
	worker.Start(workerCtx)

	go func() {
		logger.WithField("port", cfg.Port).Info("http server starting")
		if err := server.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	stopWorkers()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatalf("graceful shutdown failed: %v", err)
	}
	logger.Info("server stopped")
}
