// Package session keeps per-browser OAuth state, tokens and profile snapshots
// in a gorilla/sessions store backed by an encrypted cookie or PostgreSQL.
package session

import (
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/antonlindstrom/pgstore"
	"github.com/gorilla/sessions"
	"go.uber.org/zap"

	"github.com/parsascontentcorner/redditlink/internal/config"
)

// CleanupInterval is how often expired PostgreSQL sessions are purged
const CleanupInterval = 30 * time.Minute

// Options returns the cookie options shared by both store backends.
// SameSite Lax keeps the cookie on the top-level redirect back from the provider.
func Options(cfg config.SessionConfig) *sessions.Options {
	return &sessions.Options{
		Path:     "/",
		MaxAge:   cfg.MaxAgeSeconds,
		HttpOnly: true,
		Secure:   cfg.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	}
}

// NewCookieStore creates a store that keeps the whole session in an
// authenticated, encrypted cookie.
func NewCookieStore(cfg config.SessionConfig) *sessions.CookieStore {
	store := sessions.NewCookieStore(cfg.AuthKey, cfg.EncryptionKey)
	store.MaxAge(cfg.MaxAgeSeconds)
	store.Options = Options(cfg)
	return store
}

// NewPostgresStore creates a store that keeps session data in the
// http_sessions table, sharing the application's connection pool.
func NewPostgresStore(db *sql.DB, cfg config.SessionConfig) (*pgstore.PGStore, error) {
	store, err := pgstore.NewPGStoreFromPool(db, cfg.AuthKey, cfg.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres session store: %w", err)
	}

	store.MaxAge(cfg.MaxAgeSeconds)
	store.Options = Options(cfg)
	return store, nil
}

// NewStore builds the store selected by cfg.Store. The returned stop function
// ends background cleanup and must be called on shutdown.
func NewStore(cfg config.SessionConfig, db *sql.DB, logger *zap.Logger) (sessions.Store, func(), error) {
	switch cfg.Store {
	case config.SessionStoreCookie:
		logger.Info("using cookie session store")
		return NewCookieStore(cfg), func() {}, nil

	case config.SessionStorePostgres:
		store, err := NewPostgresStore(db, cfg)
		if err != nil {
			return nil, nil, err
		}

		quit, done := store.Cleanup(CleanupInterval)
		logger.Info("using postgres session store", zap.Duration("cleanup_interval", CleanupInterval))

		stop := func() {
			store.StopCleanup(quit, done)
			logger.Info("stopped session cleanup")
		}
		return store, stop, nil

	default:
		return nil, nil, fmt.Errorf("unknown session store %q", cfg.Store)
	}
}
