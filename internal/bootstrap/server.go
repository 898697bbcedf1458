package bootstrap

import (
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	app "github.com/mohammadpnp/member-provisioning/internal/application/member"
	"github.com/mohammadpnp/member-provisioning/internal/config"
	domain "github.com/mohammadpnp/member-provisioning/internal/domain/member"
	"github.com/mohammadpnp/member-provisioning/internal/infrastructure/credential"
	"github.com/mohammadpnp/member-provisioning/internal/infrastructure/repository"
	httpecho "github.com/mohammadpnp/member-provisioning/internal/interfaces/http/echo"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// EngineConfig maps the import settings onto the engine's tunables.
func EngineConfig(opts config.ImportOptions) app.EngineConfig {
	return app.EngineConfig{
		MaxRows:        opts.MaxRows,
		Capacity:       domain.CapacityProfile(opts.CapacityProfile),
		RollbackWindow: opts.RollbackWindow,
		MaxHashWorkers: opts.MaxHashWorkers,
	}
}

// NewEngine builds the import engine over Postgres: pgx for the directory, gorm for the journal.
func NewEngine(pool *pgxpool.Pool, db *gorm.DB, opts config.ImportOptions, logger logrus.FieldLogger) app.ImportEngine {
	return app.NewImportEngine(app.Dependencies{
		Directory: repository.NewDirectoryRepository(pool),
		Hasher:    credential.NewBcryptHasher(opts.HashCost),
		Journal:   repository.NewAuditJournalRepository(db),
		Generator: app.NewRandomCredentialGenerator(),
		Logger:    logger,
	}, EngineConfig(opts))
}

func NewHTTPServer(db *gorm.DB, engine app.ImportEngine, cfg *config.Config, logger logrus.FieldLogger) *echo.Echo {
	server := echo.New()
	server.HideBanner = true

	server.Use(middleware.Recover())
	server.Use(middleware.RequestID())
	server.Use(middleware.BodyLimit("12M"))
	server.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			logger.WithFields(logrus.Fields{
				"method":     v.Method,
				"uri":        v.URI,
				"status":     v.Status,
				"latency":    v.Latency.String(),
				"request_id": v.RequestID,
				"tenant_id":  c.Request().Header.Get(httpecho.HeaderTenantID),
			}).Info("request")
			return nil
		},
	}))

	importJobRepo := repository.NewImportJobRepository(db)
	startImport := app.NewStartImport(importJobRepo)
	importHandler := httpecho.NewImportHandler(startImport, engine)
	memberQueryRepo := repository.NewMemberQueryRepository(db)
	getMemberByID := app.NewGetMemberByID(memberQueryRepo)
	memberHandler := httpecho.NewMemberHandler(getMemberByID)

	httpecho.RegisterRoutes(server, importHandler, memberHandler)

	server.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	if cfg.Metrics.Enabled {
		server.GET(cfg.Metrics.Path, echo.WrapHandler(promhttp.Handler()))
	}

	return server
}
