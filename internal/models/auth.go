// Package models defines the identities, tokens and link records shared by the
// OAuth flows, the session layer and the database.
package models

import (
	"time"
)

// Provider identifies an OAuth identity provider
type Provider string

// Supported providers
const (
	ProviderReddit  Provider = "reddit"
	ProviderDiscord Provider = "discord"
)

// DisplayName returns the human readable provider name
func (p Provider) DisplayName() string {
	switch p {
	case ProviderReddit:
		return "Reddit"
	case ProviderDiscord:
		return "Discord"
	default:
		return string(p)
	}
}

// Valid reports whether p is a supported provider
func (p Provider) Valid() bool {
	return p == ProviderReddit || p == ProviderDiscord
}

// RedditUser is a snapshot of a Reddit profile taken at login
type RedditUser struct {
	Name             string    `json:"name"`
	AvatarURL        string    `json:"avatar_url"`
	AccountCreatedAt time.Time `json:"account_created_at"`
}

// AccountAge returns how old the Reddit account was at time now
func (u *RedditUser) AccountAge(now time.Time) time.Duration {
	if u.AccountCreatedAt.IsZero() {
		return 0
	}
	return now.Sub(u.AccountCreatedAt)
}

// DiscordUser is a snapshot of a Discord profile taken at login
type DiscordUser struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	GlobalName string `json:"global_name"`
	Avatar     string `json:"avatar"`
}

// DisplayName prefers the global display name over the username
func (u *DiscordUser) DisplayName() string {
	if u.GlobalName != "" {
		return u.GlobalName
	}
	return u.Username
}

// TokenSet is the result of an authorization code exchange
type TokenSet struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	Scope        string    `json:"scope"`
	ExpiresIn    int64     `json:"expires_in"` // Seconds, as sent by the provider
	ExpiresAt    time.Time `json:"expires_at"`
}
