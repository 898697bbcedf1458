package repository_test

import (
	"context"
	"io"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mohammadpnp/member-provisioning/internal/infrastructure/db"
	"github.com/sirupsen/logrus"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type testDB struct {
	gorm *gorm.DB
	pool *pgxpool.Pool
}

// openTestDB connects to TEST_DATABASE_URL, or starts a throwaway container when
// TESTCONTAINERS=1, and applies the migrations. Without either the test is skipped.
func openTestDB(t *testing.T) testDB {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" && os.Getenv("TESTCONTAINERS") == "1" {
		dsn = startPostgres(t)
	}
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL is not set")
	}

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	if err := db.Migrate(dsn, logger); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	gormDB, err := gorm.Open(gormpostgres.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to connect db: %v", err)
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		t.Fatalf("failed to get sql db: %v", err)
	}
	t.Cleanup(func() { sqlDB.Close() })

	pool, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		t.Fatalf("failed to create pgx pool: %v", err)
	}
	t.Cleanup(pool.Close)

	return testDB{gorm: gormDB, pool: pool}
}

func startPostgres(t *testing.T) string {
	t.Helper()

	ctx := context.Background()
	container, err := postgres.Run(ctx,
		"docker.io/postgres:17-alpine",
		postgres.WithDatabase("members_test"),
		postgres.WithUsername("members"),
		postgres.WithPassword("members"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get connection string: %v", err)
	}
	return dsn
}
