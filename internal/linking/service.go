// Package linking records the association between a Discord user and a
// Reddit account.
package linking

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/parsascontentcorner/redditlink/internal/database"
	"github.com/parsascontentcorner/redditlink/internal/models"
)

// LinkStore is the persistence the linking service needs
type LinkStore interface {
	FindLink(ctx context.Context, userID, redditName string) (*models.Link, error)
	InsertLink(ctx context.Context, link *models.Link) error
	ListLinksByUser(ctx context.Context, userID string) ([]*models.Link, error)
	DeleteLink(ctx context.Context, userID, redditName string) error
}

// Result describes the outcome of a link request
type Result struct {
	Link    *models.Link
	Created bool // false when the pair was already recorded
}

// Service links authenticated identities
type Service struct {
	store  LinkStore
	logger *zap.Logger
}

// NewService creates a new linking service
func NewService(store LinkStore, logger *zap.Logger) *Service {
	return &Service{
		store:  store,
		logger: logger,
	}
}

// Link records (discord.ID, reddit.Name) unless it already exists. Reddit is
// checked first, so a session with neither login reports Reddit as missing.
func (s *Service) Link(ctx context.Context, reddit *models.RedditUser, discord *models.DiscordUser) (*Result, error) {
	if reddit == nil || reddit.Name == "" {
		return nil, &UnauthenticatedError{Provider: models.ProviderReddit}
	}
	if discord == nil || discord.ID == "" {
		return nil, &UnauthenticatedError{Provider: models.ProviderDiscord}
	}

	existing, err := s.store.FindLink(ctx, discord.ID, reddit.Name)
	if err == nil {
		s.logger.Debug("link already recorded",
			zap.String("user_id", discord.ID),
			zap.String("reddit_name", reddit.Name),
		)
		return &Result{Link: existing}, nil
	}
	if !errors.Is(err, database.ErrLinkNotFound) {
		return nil, &StorageError{Op: "find", Err: err}
	}

	link := &models.Link{UserID: discord.ID, RedditName: reddit.Name}
	if err := s.store.InsertLink(ctx, link); err != nil {
		if errors.Is(err, database.ErrLinkExists) {
			// Lost a race with a concurrent request for the same pair
			return &Result{Link: link}, nil
		}
		return nil, &StorageError{Op: "insert", Err: err}
	}

	s.logger.Info("linked accounts",
		zap.String("user_id", link.UserID),
		zap.String("reddit_name", link.RedditName),
	)

	return &Result{Link: link, Created: true}, nil
}

// Links returns the Reddit accounts already linked to a Discord user
func (s *Service) Links(ctx context.Context, userID string) ([]*models.Link, error) {
	links, err := s.store.ListLinksByUser(ctx, userID)
	if err != nil {
		return nil, &StorageError{Op: "list", Err: err}
	}
	return links, nil
}

// Unlink removes the link between the Discord user and redditName. Only the
// Discord login is required.
func (s *Service) Unlink(ctx context.Context, discord *models.DiscordUser, redditName string) error {
	if discord == nil || discord.ID == "" {
		return &UnauthenticatedError{Provider: models.ProviderDiscord}
	}
	if redditName == "" {
		return ErrNotLinked
	}

	if err := s.store.DeleteLink(ctx, discord.ID, redditName); err != nil {
		if errors.Is(err, database.ErrLinkNotFound) {
			return ErrNotLinked
		}
		return &StorageError{Op: "delete", Err: err}
	}

	s.logger.Info("unlinked accounts",
		zap.String("user_id", discord.ID),
		zap.String("reddit_name", redditName),
	)

	return nil
}
