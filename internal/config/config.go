// Package config provides application configuration management using environment variables.
package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Session store backends
const (
	SessionStoreCookie   = "cookie"
	SessionStorePostgres = "postgres"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig
	Reddit   OAuthProviderConfig
	Discord  OAuthProviderConfig
	Database DatabaseConfig
	Session  SessionConfig
	Logging  LoggingConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	HTTPPort          string
	Env               string
	HTTPClientTimeout time.Duration
}

// OAuthProviderConfig holds the OAuth client registration for one provider
type OAuthProviderConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Scopes       []string
	UserAgent    string
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Host         string
	Port         string
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

// SessionConfig holds browser session configuration
type SessionConfig struct {
	AuthKey       []byte
	EncryptionKey []byte
	Store         string
	MaxAgeSeconds int
	SecureCookie  bool
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// Load loads configuration from environment variables
// It optionally loads from a .env file if it exists
func Load() (*Config, error) {
	// Try to load .env file (optional, ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{}

	clientTimeoutSeconds, _ := strconv.Atoi(getEnv("HTTP_CLIENT_TIMEOUT_SECONDS", "10"))

	cfg.Server = ServerConfig{
		HTTPPort:          getEnv("HTTP_PORT", "8080"),
		Env:               getEnv("ENVIRONMENT", "development"),
		HTTPClientTimeout: time.Duration(clientTimeoutSeconds) * time.Second,
	}

	cfg.Reddit = OAuthProviderConfig{
		ClientID:     getEnv("REDDIT_CLIENT_ID", ""),
		ClientSecret: getEnv("REDDIT_CLIENT_SECRET", ""),
		RedirectURI:  getEnv("REDDIT_REDIRECT_URI", ""),
		Scopes:       strings.Fields(getEnv("REDDIT_OAUTH_SCOPES", "identity")),
		UserAgent:    getEnv("REDDIT_USER_AGENT", "web:redditlink:v1.0.0"),
	}

	cfg.Discord = OAuthProviderConfig{
		ClientID:     getEnv("DISCORD_CLIENT_ID", ""),
		ClientSecret: getEnv("DISCORD_CLIENT_SECRET", ""),
		RedirectURI:  getEnv("DISCORD_REDIRECT_URI", ""),
		Scopes:       strings.Fields(getEnv("DISCORD_OAUTH_SCOPES", "identify")),
	}

	maxOpenConns, _ := strconv.Atoi(getEnv("DB_MAX_OPEN_CONNS", "25"))
	maxIdleConns, _ := strconv.Atoi(getEnv("DB_MAX_IDLE_CONNS", "5"))

	cfg.Database = DatabaseConfig{
		Host:         getEnv("DB_HOST", "localhost"),
		Port:         getEnv("DB_PORT", "5432"),
		User:         getEnv("DB_USER", "redditlink"),
		Password:     getEnv("DB_PASSWORD", ""),
		Name:         getEnv("DB_NAME", "redditlink_db"),
		SSLMode:      getEnv("DB_SSLMODE", "disable"),
		MaxOpenConns: maxOpenConns,
		MaxIdleConns: maxIdleConns,
	}

	authKey, err := hex.DecodeString(getEnv("SESSION_AUTH_KEY", ""))
	if err != nil {
		return nil, fmt.Errorf("invalid SESSION_AUTH_KEY: must be a hex-encoded string: %w", err)
	}

	encryptionKey, err := hex.DecodeString(getEnv("SESSION_ENCRYPTION_KEY", ""))
	if err != nil {
		return nil, fmt.Errorf("invalid SESSION_ENCRYPTION_KEY: must be a hex-encoded string: %w", err)
	}

	maxAgeSeconds, _ := strconv.Atoi(getEnv("SESSION_MAX_AGE_SECONDS", "604800"))
	secureCookie, err := strconv.ParseBool(getEnv("SESSION_SECURE_COOKIE", "true"))
	if err != nil {
		return nil, fmt.Errorf("invalid SESSION_SECURE_COOKIE: %w", err)
	}

	cfg.Session = SessionConfig{
		AuthKey:       authKey,
		EncryptionKey: encryptionKey,
		Store:         getEnv("SESSION_STORE", SessionStoreCookie),
		MaxAgeSeconds: maxAgeSeconds,
		SecureCookie:  secureCookie,
	}

	cfg.Logging = LoggingConfig{
		Level:  getEnv("LOG_LEVEL", "info"),
		Format: getEnv("LOG_FORMAT", "json"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if err := c.Reddit.validate("REDDIT"); err != nil {
		return err
	}
	if c.Reddit.UserAgent == "" {
		return fmt.Errorf("REDDIT_USER_AGENT is required")
	}
	if err := c.Discord.validate("DISCORD"); err != nil {
		return err
	}

	if c.Server.HTTPClientTimeout <= 0 {
		return fmt.Errorf("HTTP_CLIENT_TIMEOUT_SECONDS must be positive")
	}

	if c.Database.User == "" {
		return fmt.Errorf("DB_USER is required")
	}
	if c.Database.Password == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if c.Database.Name == "" {
		return fmt.Errorf("DB_NAME is required")
	}

	// securecookie accepts 32 or 64 byte HMAC keys and AES-256 block keys
	if n := len(c.Session.AuthKey); n != 32 && n != 64 {
		return fmt.Errorf("SESSION_AUTH_KEY must be 32 or 64 bytes (64 or 128 hex characters)")
	}
	if len(c.Session.EncryptionKey) != 32 {
		return fmt.Errorf("SESSION_ENCRYPTION_KEY must be exactly 32 bytes (64 hex characters) for AES-256")
	}
	if c.Session.Store != SessionStoreCookie && c.Session.Store != SessionStorePostgres {
		return fmt.Errorf("SESSION_STORE must be one of: cookie, postgres")
	}
	if c.Session.MaxAgeSeconds <= 0 {
		return fmt.Errorf("SESSION_MAX_AGE_SECONDS must be positive")
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("LOG_LEVEL must be one of: debug, info, warn, error")
	}
	validLogFormats := map[string]bool{"json": true, "console": true}
	if !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("LOG_FORMAT must be one of: json, console")
	}

	return nil
}

func (p *OAuthProviderConfig) validate(prefix string) error {
	if p.ClientID == "" {
		return fmt.Errorf("%s_CLIENT_ID is required", prefix)
	}
	if p.ClientSecret == "" {
		return fmt.Errorf("%s_CLIENT_SECRET is required", prefix)
	}
	if p.RedirectURI == "" {
		return fmt.Errorf("%s_REDIRECT_URI is required", prefix)
	}
	if len(p.Scopes) == 0 {
		return fmt.Errorf("%s_OAUTH_SCOPES must not be empty", prefix)
	}
	return nil
}

// GetDSN returns the database connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// getEnv retrieves an environment variable with a fallback default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
