package session

import (
	"encoding/gob"

	"github.com/parsascontentcorner/redditlink/internal/models"
)

// ProviderState is the per-provider part of a browser session
type ProviderState struct {
	State  string // Pending OAuth state, cleared once the callback consumes it
	Tokens *models.TokenSet
}

// Data is everything the service keeps for one browser. Reddit and Discord
// entries are independent of each other.
type Data struct {
	Reddit      ProviderState
	Discord     ProviderState
	RedditUser  *models.RedditUser
	DiscordUser *models.DiscordUser
}

func init() {
	gob.Register(Data{})
}

// Provider returns the state entry for p, or nil for an unknown provider
func (d *Data) Provider(p models.Provider) *ProviderState {
	switch p {
	case models.ProviderReddit:
		return &d.Reddit
	case models.ProviderDiscord:
		return &d.Discord
	default:
		return nil
	}
}

// Authenticated reports whether a completed login for p is present
func (d *Data) Authenticated(p models.Provider) bool {
	switch p {
	case models.ProviderReddit:
		return d.Reddit.Tokens != nil && d.RedditUser != nil
	case models.ProviderDiscord:
		return d.Discord.Tokens != nil && d.DiscordUser != nil
	default:
		return false
	}
}

// SetReddit stores a completed Reddit login and clears its pending state
func (d *Data) SetReddit(tokens *models.TokenSet, user *models.RedditUser) {
	d.Reddit = ProviderState{Tokens: tokens}
	d.RedditUser = user
}

// SetDiscord stores a completed Discord login and clears its pending state
func (d *Data) SetDiscord(tokens *models.TokenSet, user *models.DiscordUser) {
	d.Discord = ProviderState{Tokens: tokens}
	d.DiscordUser = user
}

// Clear forgets everything stored for p
func (d *Data) Clear(p models.Provider) {
	switch p {
	case models.ProviderReddit:
		d.Reddit = ProviderState{}
		d.RedditUser = nil
	case models.ProviderDiscord:
		d.Discord = ProviderState{}
		d.DiscordUser = nil
	}
}
