package testutil

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/parsascontentcorner/redditlink/internal/config"
	"github.com/parsascontentcorner/redditlink/internal/models"
)

// GenerateLink creates an unsaved link for the given identities
func GenerateLink(userID, redditName string) *models.Link {
	return &models.Link{
		UserID:     userID,
		RedditName: redditName,
	}
}

// GenerateRedditUser creates a Reddit profile snapshot with the given name
func GenerateRedditUser(name string) *models.RedditUser {
	return &models.RedditUser{
		Name:             name,
		AvatarURL:        fmt.Sprintf("https://styles.redditmedia.com/%s.png", name),
		AccountCreatedAt: time.Now().UTC().AddDate(-3, 0, 0),
	}
}

// GenerateDiscordUser creates a Discord profile snapshot with the given ID
func GenerateDiscordUser(id string) *models.DiscordUser {
	return &models.DiscordUser{
		ID:         id,
		Username:   fmt.Sprintf("testuser_%s", id),
		GlobalName: fmt.Sprintf("Test User %s", id),
		Avatar:     "test_avatar_hash",
	}
}

// GenerateTokenSet creates a token set expiring in one hour
func GenerateTokenSet() *models.TokenSet {
	return &models.TokenSet{
		AccessToken:  "access_" + uuid.NewString(),
		RefreshToken: "refresh_" + uuid.NewString(),
		TokenType:    "bearer",
		Scope:        "identity",
		ExpiresIn:    3600,
		ExpiresAt:    time.Now().UTC().Add(time.Hour),
	}
}

// GenerateUniqueName returns a unique Reddit-style username
func GenerateUniqueName() string {
	return "user_" + uuid.NewString()[:8]
}

// GenerateKey generates n random bytes for session keys.
func GenerateKey(n int) []byte {
	key := make([]byte, n)
	if _, err := rand.Read(key); err != nil {
		panic(fmt.Sprintf("failed to generate key: %v", err))
	}
	return key
}

// GenerateTestConfig creates a test configuration with valid values.
// Both providers use the mock client credentials.
func GenerateTestConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			HTTPPort:          "8080",
			Env:               "test",
			HTTPClientTimeout: 5 * time.Second,
		},
		Reddit: config.OAuthProviderConfig{
			ClientID:     MockClientID,
			ClientSecret: MockClientSecret,
			RedirectURI:  "http://localhost:8080/auth/reddit/callback",
			Scopes:       []string{"identity"},
			UserAgent:    "test:redditlink:v0.0.1",
		},
		Discord: config.OAuthProviderConfig{
			ClientID:     MockClientID,
			ClientSecret: MockClientSecret,
			RedirectURI:  "http://localhost:8080/auth/discord/callback",
			Scopes:       []string{"identify"},
		},
		Database: config.DatabaseConfig{
			Host:         "localhost",
			Port:         "5432",
			User:         "testuser",
			Password:     "testpass",
			Name:         "testdb",
			SSLMode:      "disable",
			MaxOpenConns: 5,
			MaxIdleConns: 2,
		},
		Session: config.SessionConfig{
			AuthKey:       GenerateKey(32),
			EncryptionKey: GenerateKey(32),
			Store:         config.SessionStoreCookie,
			MaxAgeSeconds: 3600,
			SecureCookie:  false,
		},
		Logging: config.LoggingConfig{
			Level:  "debug",
			Format: "console",
		},
	}
}
