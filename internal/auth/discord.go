package auth

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/parsascontentcorner/redditlink/internal/config"
	"github.com/parsascontentcorner/redditlink/internal/models"
)

const (
	discordAPIEndpoint = "https://discord.com/api/v10"
	discordAuthURL     = "https://discord.com/oauth2/authorize"
	discordTokenURL    = "https://discord.com/api/oauth2/token" //nolint:gosec // Not a hardcoded credential, just an API endpoint URL
)

// DiscordClient handles Discord OAuth operations
type DiscordClient struct {
	oauthClient
}

// NewDiscordClient creates a new Discord OAuth client
func NewDiscordClient(cfg *config.Config, logger *zap.Logger) *DiscordClient {
	oauthConfig := &oauth2.Config{
		ClientID:     cfg.Discord.ClientID,
		ClientSecret: cfg.Discord.ClientSecret,
		RedirectURL:  cfg.Discord.RedirectURI,
		Scopes:       cfg.Discord.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   discordAuthURL,
			TokenURL:  discordTokenURL,
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}

	return &DiscordClient{oauthClient{
		provider:   models.ProviderDiscord,
		config:     oauthConfig,
		httpClient: newHTTPClient(cfg.Server.HTTPClientTimeout, ""),
		baseURL:    discordAPIEndpoint,
		logger:     logger,
		now:        time.Now,
	}}
}

// AuthorizationURL constructs the Discord authorization URL carrying state
func (dc *DiscordClient) AuthorizationURL(state string) string {
	return dc.authURL(state)
}

// ExchangeCode exchanges an authorization code for Discord tokens
func (dc *DiscordClient) ExchangeCode(ctx context.Context, code string) (*models.TokenSet, error) {
	return dc.exchange(ctx, code)
}

// FetchProfile fetches user information from Discord API
func (dc *DiscordClient) FetchProfile(ctx context.Context, accessToken string) (*models.DiscordUser, error) {
	var user models.DiscordUser
	if err := dc.getJSON(ctx, "/users/@me", accessToken, &user); err != nil {
		return nil, err
	}

	dc.logger.Debug("fetched user info from Discord",
		zap.String("discord_id", user.ID),
		zap.String("username", user.Username),
	)

	return &user, nil
}
