package testutil

import (
	"context"
	"fmt"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"github.com/parsascontentcorner/redditlink/internal/config"
	"github.com/parsascontentcorner/redditlink/internal/database"
)

const (
	testDBName     = "testdb"
	testDBUser     = "testuser"
	testDBPassword = "testpass"
)

// Postgres is a disposable PostgreSQL server
type Postgres struct {
	container *postgres.PostgresContainer
	Config    *config.DatabaseConfig
}

// StartPostgres starts a PostgreSQL container and returns settings that
// reach it. The schema is not migrated.
func StartPostgres(ctx context.Context) (*Postgres, error) {
	container, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:15-alpine"),
		postgres.WithDatabase(testDBName),
		postgres.WithUsername(testDBUser),
		postgres.WithPassword(testDBPassword),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start postgres container: %w", err)
	}

	pg := &Postgres{container: container}

	host, err := container.Host(ctx)
	if err != nil {
		_ = pg.Terminate(ctx)
		return nil, fmt.Errorf("failed to get container host: %w", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		_ = pg.Terminate(ctx)
		return nil, fmt.Errorf("failed to get mapped port: %w", err)
	}

	pg.Config = &config.DatabaseConfig{
		Host:         host,
		Port:         port.Port(),
		User:         testDBUser,
		Password:     testDBPassword,
		Name:         testDBName,
		SSLMode:      "disable",
		MaxOpenConns: 5,
		MaxIdleConns: 2,
	}

	return pg, nil
}

// Terminate stops and removes the container
func (pg *Postgres) Terminate(ctx context.Context) error {
	return pg.container.Terminate(ctx)
}

// SetupTestDB starts PostgreSQL, connects and applies the link schema.
// Returns the DB connection, a cleanup function, and any error encountered.
//
// Usage:
//
//	db, cleanup, err := testutil.SetupTestDB(ctx)
//	require.NoError(t, err)
//	defer cleanup()
func SetupTestDB(ctx context.Context) (*database.DB, func(), error) {
	pg, err := StartPostgres(ctx)
	if err != nil {
		return nil, nil, err
	}

	logger := zap.NewNop()

	db, err := database.Open(ctx, pg.Config, logger)
	if err != nil {
		_ = pg.Terminate(ctx)
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if _, err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		_ = pg.Terminate(ctx)
		return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	cleanup := func() {
		if err := db.Close(); err != nil {
			logger.Error("failed to close db", zap.Error(err))
		}
		if err := pg.Terminate(ctx); err != nil {
			logger.Error("failed to terminate container", zap.Error(err))
		}
	}

	return db, cleanup, nil
}

// TruncateTables removes all rows from the application tables (except
// schema_migrations) so a container can be shared between subtests.
func TruncateTables(ctx context.Context, db *database.DB) error {
	tables := []string{
		"links",
		"http_sessions",
	}

	for _, table := range tables {
		if _, err := db.ExecContext(ctx, fmt.Sprintf("TRUNCATE TABLE %s RESTART IDENTITY", table)); err != nil {
			return fmt.Errorf("failed to truncate table %s: %w", table, err)
		}
	}

	return nil
}

// SeedLinks records a link for every reddit name under userID.
func SeedLinks(ctx context.Context, db *database.DB, userID string, redditNames ...string) error {
	for _, name := range redditNames {
		if err := db.InsertLink(ctx, GenerateLink(userID, name)); err != nil {
			return fmt.Errorf("failed to seed link %s/%s: %w", userID, name, err)
		}
	}

	return nil
}
