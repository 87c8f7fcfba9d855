// Package main is the entry point for the Reddit account linking service.
// It serves the OAuth flows for Reddit and Discord and the linking page.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/parsascontentcorner/redditlink/internal/auth"
	"github.com/parsascontentcorner/redditlink/internal/config"
	"github.com/parsascontentcorner/redditlink/internal/database"
	httpserver "github.com/parsascontentcorner/redditlink/internal/http"
	"github.com/parsascontentcorner/redditlink/internal/linking"
	"github.com/parsascontentcorner/redditlink/internal/oauth"
	"github.com/parsascontentcorner/redditlink/internal/ratelimit"
	"github.com/parsascontentcorner/redditlink/internal/session"
	"github.com/parsascontentcorner/redditlink/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "redditlink: %v\n", err)
		os.Exit(1)
	}
}

// run wires the service and blocks until it is told to stop. Every resource
// opened here is released by a deferred call before run returns.
func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := logger.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		// Sync fails on non-syncable descriptors such as pipes and terminals
		_ = log.Sync()
	}()

	log.Info("starting redditlink",
		zap.String("environment", cfg.Server.Env),
		zap.String("http_port", cfg.Server.HTTPPort),
		zap.String("session_store", cfg.Session.Store),
	)

	ctx := context.Background()

	db, err := database.Open(ctx, &cfg.Database, logger.Component(log, "database"))
	if err != nil {
		log.Error("failed to connect to database", zap.Error(err))
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("failed to close database connection", zap.Error(err))
		}
	}()

	if _, err := db.Migrate(ctx); err != nil {
		log.Error("failed to run migrations", zap.Error(err))
		return err
	}

	store, stopSessionCleanup, err := session.NewStore(cfg.Session, db.DB, logger.Component(log, "session"))
	if err != nil {
		log.Error("failed to create session store", zap.Error(err))
		return err
	}
	defer stopSessionCleanup()
	sessions := session.NewManager(store, logger.Component(log, "session"))

	authLog := logger.Component(log, "auth")
	rateLimiter := ratelimit.NewRateLimiter(logger.Component(log, "ratelimit"))

	redditClient := auth.NewRedditClient(cfg, authLog)
	redditClient.SetRateLimiter(rateLimiter)
	discordClient := auth.NewDiscordClient(cfg, authLog)
	discordClient.SetRateLimiter(rateLimiter)

	oauthHandler := auth.NewOAuthHandler(redditClient, discordClient, authLog)
	linker := linking.NewService(db, logger.Component(log, "linking"))

	httpLog := logger.Component(log, "http")
	oauthHandlers := oauth.NewHandlers(oauthHandler, sessions, db, httpLog)
	linkHandlers := httpserver.NewLinkHandlers(linker, sessions, httpLog)
	httpServer := httpserver.NewServer(oauthHandlers, linkHandlers, cfg.Server.HTTPPort, httpLog)

	httpErrChan := make(chan error, 1)
	go func() {
		if err := httpServer.Serve(); err != nil {
			httpErrChan <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	var serveErr error
	select {
	case serveErr = <-httpErrChan:
		log.Error("HTTP server error", zap.Error(serveErr))
	case sig := <-sigChan:
		log.Info("received shutdown signal", zap.String("signal", sig.String()))
	}

	log.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to shutdown HTTP server gracefully", zap.Error(err))
	}

	log.Info("server shut down successfully")
	return serveErr
}
