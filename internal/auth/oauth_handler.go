package auth

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/parsascontentcorner/redditlink/internal/models"
)

// CallbackParams are the query parameters the provider redirects back with
type CallbackParams struct {
	Error            string
	ErrorDescription string
	State            string
	Code             string
}

// RedditLogin is the outcome of a completed Reddit flow
type RedditLogin struct {
	Tokens *models.TokenSet
	User   *models.RedditUser
}

// DiscordLogin is the outcome of a completed Discord flow
type DiscordLogin struct {
	Tokens *models.TokenSet
	User   *models.DiscordUser
}

type authURLBuilder interface {
	AuthorizationURL(state string) string
}

// OAuthHandler orchestrates the OAuth flow for both providers
type OAuthHandler struct {
	reddit  *RedditClient
	discord *DiscordClient
	logger  *zap.Logger
}

// NewOAuthHandler creates a new OAuth handler
func NewOAuthHandler(reddit *RedditClient, discord *DiscordClient, logger *zap.Logger) *OAuthHandler {
	return &OAuthHandler{
		reddit:  reddit,
		discord: discord,
		logger:  logger,
	}
}

// BeginAuth generates a fresh state for provider and returns it together with
// the authorization URL to redirect the browser to. The caller stores state.
func (oh *OAuthHandler) BeginAuth(provider models.Provider) (state, authURL string, err error) {
	var builder authURLBuilder
	switch provider {
	case models.ProviderReddit:
		builder = oh.reddit
	case models.ProviderDiscord:
		builder = oh.discord
	default:
		return "", "", fmt.Errorf("unsupported provider %q", provider)
	}

	state, err = GenerateState()
	if err != nil {
		return "", "", err
	}

	return state, builder.AuthorizationURL(state), nil
}

// verifyCallback rejects provider errors and state mismatches before any
// network call is made.
func (oh *OAuthHandler) verifyCallback(provider models.Provider, params CallbackParams, storedState string) error {
	if params.Error != "" {
		return &ProviderError{Provider: provider, Code: params.Error, Description: params.ErrorDescription}
	}
	if err := ValidateState(storedState, params.State); err != nil {
		return err
	}
	if params.Code == "" {
		return ErrMissingCode
	}
	return nil
}

// CompleteReddit validates the callback, exchanges the code and fetches the
// Reddit profile. Nothing is persisted; the caller writes the session.
func (oh *OAuthHandler) CompleteReddit(ctx context.Context, params CallbackParams, storedState string) (*RedditLogin, error) {
	if err := oh.verifyCallback(models.ProviderReddit, params, storedState); err != nil {
		return nil, err
	}

	oh.logger.Debug("exchanging code for token", zap.String("provider", "reddit"))
	tokens, err := oh.reddit.ExchangeCode(ctx, params.Code)
	if err != nil {
		return nil, err
	}

	user, err := oh.reddit.FetchProfile(ctx, tokens.AccessToken)
	if err != nil {
		return nil, err
	}

	oh.logger.Info("reddit authentication completed", zap.String("reddit_name", user.Name))

	return &RedditLogin{Tokens: tokens, User: user}, nil
}

// CompleteDiscord is the Discord counterpart of CompleteReddit
func (oh *OAuthHandler) CompleteDiscord(ctx context.Context, params CallbackParams, storedState string) (*DiscordLogin, error) {
	if err := oh.verifyCallback(models.ProviderDiscord, params, storedState); err != nil {
		return nil, err
	}

	oh.logger.Debug("exchanging code for token", zap.String("provider", "discord"))
	tokens, err := oh.discord.ExchangeCode(ctx, params.Code)
	if err != nil {
		return nil, err
	}

	user, err := oh.discord.FetchProfile(ctx, tokens.AccessToken)
	if err != nil {
		return nil, err
	}

	oh.logger.Info("discord authentication completed",
		zap.String("discord_id", user.ID),
		zap.String("username", user.Username),
	)

	return &DiscordLogin{Tokens: tokens, User: user}, nil
}
