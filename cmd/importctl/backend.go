package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	app "github.com/mohammadpnp/member-provisioning/internal/application/member"
	"github.com/mohammadpnp/member-provisioning/internal/bootstrap"
	"github.com/mohammadpnp/member-provisioning/internal/config"
	"github.com/mohammadpnp/member-provisioning/internal/infrastructure/credential"
	"github.com/mohammadpnp/member-provisioning/internal/infrastructure/db"
	"github.com/mohammadpnp/member-provisioning/internal/infrastructure/sqlite"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var errNoBackend = errors.New("one of --db or --database-url is required")

// openEngine builds an engine over SQLite when --db is set, otherwise over Postgres.
// The returned func releases the store.
func openEngine(ctx context.Context, flags *globalFlags) (app.ImportEngine, func(), error) {
	cfg, err := config.Load(".env", ".env.local")
	if err != nil {
		return nil, nil, err
	}
	logger := cfg.Logger()
	engineLogger := logger.WithField("component", "importctl")

	switch {
	case flags.dbPath != "":
		store, err := sqlite.Open(flags.dbPath)
		if err != nil {
			return nil, nil, err
		}
		engine := app.NewImportEngine(app.Dependencies{
			Directory: store,
			Hasher:    credential.NewBcryptHasher(cfg.Import.HashCost),
			Journal:   store,
			Generator: app.NewRandomCredentialGenerator(),
			Logger:    engineLogger,
		}, bootstrap.EngineConfig(cfg.Import))
		return engine, func() { store.Close() }, nil

	case flags.databaseURL != "":
		return openPostgres(ctx, flags, cfg, logger)
	}
	return nil, nil, errNoBackend
}

func openPostgres(ctx context.Context, flags *globalFlags, cfg *config.Config, logger *logrus.Logger) (app.ImportEngine, func(), error) {
	if flags.migrate {
		if err := db.Migrate(flags.databaseURL, logger); err != nil {
			return nil, nil, err
		}
	}

	gormDB, err := gorm.Open(postgres.Open(flags.databaseURL), &gorm.Config{})
	if err != nil {
		return nil, nil, fmt.Errorf("connect database: %w", err)
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		return nil, nil, fmt.Errorf("get sql db: %w", err)
	}
	pool, err := pgxpool.New(ctx, flags.databaseURL)
	if err != nil {
		sqlDB.Close()
		return nil, nil, fmt.Errorf("create pgx pool: %w", err)
	}

	engine := bootstrap.NewEngine(pool, gormDB, cfg.Import, logger.WithField("component", "importctl"))
	return engine, func() {
		pool.Close()
		sqlDB.Close()
	}, nil
}

func (f *globalFlags) importContext() app.ImportContext {
	return app.ImportContext{
		TenantID:   f.tenantID,
		TenantCode: f.tenantCode,
		ActorID:    f.actorID,
	}
}
