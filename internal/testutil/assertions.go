package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/parsascontentcorner/redditlink/internal/models"
)

// AssertLinkEqual compares the identity fields of two links.
// ID and CreatedAt are only compared when set on expected.
func AssertLinkEqual(t *testing.T, expected, actual *models.Link) {
	t.Helper()

	assert.Equal(t, expected.UserID, actual.UserID, "UserID should match")
	assert.Equal(t, expected.RedditName, actual.RedditName, "RedditName should match")

	if expected.ID != 0 {
		assert.Equal(t, expected.ID, actual.ID, "ID should match")
	}
	if !expected.CreatedAt.IsZero() {
		AssertTimeAlmostEqual(t, expected.CreatedAt, actual.CreatedAt, 2*time.Second)
	}
}

// AssertTokenSetEqual compares two token sets, allowing expiry drift.
func AssertTokenSetEqual(t *testing.T, expected, actual *models.TokenSet) {
	t.Helper()

	assert.Equal(t, expected.AccessToken, actual.AccessToken, "AccessToken should match")
	assert.Equal(t, expected.RefreshToken, actual.RefreshToken, "RefreshToken should match")
	assert.Equal(t, expected.TokenType, actual.TokenType, "TokenType should match")
	assert.Equal(t, expected.Scope, actual.Scope, "Scope should match")
	assert.Equal(t, expected.ExpiresIn, actual.ExpiresIn, "ExpiresIn should match")

	AssertTimeAlmostEqual(t, expected.ExpiresAt, actual.ExpiresAt, 2*time.Second)
}

// AssertTimeAlmostEqual checks if two times are within a specified delta.
// Useful for timestamp comparisons where exact equality isn't expected.
func AssertTimeAlmostEqual(t *testing.T, expected, actual time.Time, delta time.Duration) {
	t.Helper()

	diff := expected.Sub(actual)
	if diff < 0 {
		diff = -diff
	}

	assert.True(t,
		diff <= delta,
		"Times should be within %v of each other. Expected: %v, Actual: %v, Diff: %v",
		delta, expected, actual, diff,
	)
}
