package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/parsascontentcorner/redditlink/internal/models"
)

// uniqueViolation is the PostgreSQL SQLSTATE for unique_violation
const uniqueViolation = "23505"

var (
	// ErrLinkNotFound is returned by FindLink when no record matches
	ErrLinkNotFound = errors.New("link not found")

	// ErrLinkExists is returned by InsertLink when the pair is already recorded
	ErrLinkExists = errors.New("link already exists")
)

// FindLink retrieves the link between a Discord user and a Reddit account
func (db *DB) FindLink(ctx context.Context, userID, redditName string) (*models.Link, error) {
	query := `
		SELECT id, user_id, reddit_name, created_at
		FROM links
		WHERE user_id = $1 AND reddit_name = $2
	`

	link := &models.Link{}
	err := db.QueryRowContext(ctx, query, userID, redditName).Scan(
		&link.ID,
		&link.UserID,
		&link.RedditName,
		&link.CreatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrLinkNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find link: %w", err)
	}

	return link, nil
}

// InsertLink records a new link. A concurrent insert of the same pair is
// absorbed by the unique constraint and reported as ErrLinkExists.
func (db *DB) InsertLink(ctx context.Context, link *models.Link) error {
	query := `
		INSERT INTO links (user_id, reddit_name)
		VALUES ($1, $2)
		ON CONFLICT (user_id, reddit_name) DO NOTHING
		RETURNING id, created_at
	`

	err := db.QueryRowContext(ctx, query, link.UserID, link.RedditName).Scan(&link.ID, &link.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrLinkExists
	}
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return ErrLinkExists
		}
		return fmt.Errorf("failed to insert link: %w", err)
	}

	db.logger.Info("link recorded",
		zap.Int64("link_id", link.ID),
		zap.String("user_id", link.UserID),
		zap.String("reddit_name", link.RedditName),
	)

	return nil
}

// ListLinksByUser returns every Reddit account linked to a Discord user,
// oldest first.
func (db *DB) ListLinksByUser(ctx context.Context, userID string) ([]*models.Link, error) {
	query := `
		SELECT id, user_id, reddit_name, created_at
		FROM links
		WHERE user_id = $1
		ORDER BY created_at ASC, id ASC
	`

	rows, err := db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list links: %w", err)
	}
	defer rows.Close()

	var links []*models.Link
	for rows.Next() {
		link := &models.Link{}
		if err := rows.Scan(&link.ID, &link.UserID, &link.RedditName, &link.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan link: %w", err)
		}
		links = append(links, link)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating links: %w", err)
	}

	return links, nil
}

// DeleteLink removes a link record
func (db *DB) DeleteLink(ctx context.Context, userID, redditName string) error {
	query := `DELETE FROM links WHERE user_id = $1 AND reddit_name = $2`

	result, err := db.ExecContext(ctx, query, userID, redditName)
	if err != nil {
		return fmt.Errorf("failed to delete link: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrLinkNotFound
	}

	return nil
}
