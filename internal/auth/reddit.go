package auth

import (
	"context"
	"html"
	"math"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/parsascontentcorner/redditlink/internal/config"
	"github.com/parsascontentcorner/redditlink/internal/models"
)

const (
	redditAPIEndpoint = "https://oauth.reddit.com"
	redditAuthURL     = "https://www.reddit.com/api/v1/authorize"
	redditTokenURL    = "https://www.reddit.com/api/v1/access_token" //nolint:gosec // API endpoint URL, not a credential
)

// redditMe mirrors the subset of GET /api/v1/me the service uses
type redditMe struct {
	Name       string  `json:"name"`
	IconImg    string  `json:"icon_img"`
	CreatedUTC float64 `json:"created_utc"`
	Subreddit  *struct {
		IconImg string `json:"icon_img"`
	} `json:"subreddit"`
}

// RedditClient handles Reddit OAuth operations
type RedditClient struct {
	oauthClient
}

// NewRedditClient creates a new Reddit OAuth client. Tokens are requested
// with duration=permanent so Reddit issues a refresh token.
func NewRedditClient(cfg *config.Config, logger *zap.Logger) *RedditClient {
	oauthConfig := &oauth2.Config{
		ClientID:     cfg.Reddit.ClientID,
		ClientSecret: cfg.Reddit.ClientSecret,
		RedirectURL:  cfg.Reddit.RedirectURI,
		Scopes:       cfg.Reddit.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   redditAuthURL,
			TokenURL:  redditTokenURL,
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}

	return &RedditClient{oauthClient{
		provider:    models.ProviderReddit,
		config:      oauthConfig,
		authOptions: []oauth2.AuthCodeOption{oauth2.SetAuthURLParam("duration", "permanent")},
		httpClient:  newHTTPClient(cfg.Server.HTTPClientTimeout, cfg.Reddit.UserAgent),
		baseURL:     redditAPIEndpoint,
		logger:      logger,
		now:         time.Now,
	}}
}

// AuthorizationURL constructs the Reddit authorization URL carrying state
func (rc *RedditClient) AuthorizationURL(state string) string {
	return rc.authURL(state)
}

// ExchangeCode exchanges an authorization code for Reddit tokens
func (rc *RedditClient) ExchangeCode(ctx context.Context, code string) (*models.TokenSet, error) {
	return rc.exchange(ctx, code)
}

// FetchProfile fetches the authenticated user's Reddit profile
func (rc *RedditClient) FetchProfile(ctx context.Context, accessToken string) (*models.RedditUser, error) {
	var me redditMe
	if err := rc.getJSON(ctx, "/api/v1/me", accessToken, &me); err != nil {
		return nil, err
	}

	user := &models.RedditUser{
		Name:      me.Name,
		AvatarURL: redditAvatar(&me),
	}
	if me.CreatedUTC > 0 {
		sec, frac := math.Modf(me.CreatedUTC)
		user.AccountCreatedAt = time.Unix(int64(sec), int64(frac*1e9)).UTC()
	}

	rc.logger.Debug("fetched user info from Reddit",
		zap.String("reddit_name", user.Name),
		zap.Time("account_created_at", user.AccountCreatedAt),
	)

	return user, nil
}

// redditAvatar prefers the profile subreddit icon. Reddit HTML-escapes the
// query string of icon URLs.
func redditAvatar(me *redditMe) string {
	icon := me.IconImg
	if me.Subreddit != nil && me.Subreddit.IconImg != "" {
		icon = me.Subreddit.IconImg
	}
	return html.UnescapeString(icon)
}
