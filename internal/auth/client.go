// Package auth implements the Reddit and Discord OAuth 2 authorization code
// flows: authorization URLs, code exchange, profile retrieval and callback
// validation.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/parsascontentcorner/redditlink/internal/models"
	"github.com/parsascontentcorner/redditlink/internal/ratelimit"
)

// maxErrorBody bounds how much of an error response is kept for logging
const maxErrorBody = 4 << 10

// oauthClient holds what the Reddit and Discord clients have in common: the
// oauth2 configuration, an HTTP client and the provider API base URL.
type oauthClient struct {
	provider    models.Provider
	config      *oauth2.Config
	authOptions []oauth2.AuthCodeOption
	httpClient  *http.Client
	baseURL     string // Provider API base URL (configurable for testing)
	rateLimiter *ratelimit.RateLimiter
	logger      *zap.Logger
	now         func() time.Time
}

// userAgentTransport sets a fixed User-Agent on every request
type userAgentTransport struct {
	base      http.RoundTripper
	userAgent string
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", t.userAgent)
	return t.base.RoundTrip(req)
}

func newHTTPClient(timeout time.Duration, userAgent string) *http.Client {
	var transport http.RoundTripper = http.DefaultTransport
	if userAgent != "" {
		transport = &userAgentTransport{base: transport, userAgent: userAgent}
	}
	return &http.Client{Timeout: timeout, Transport: transport}
}

// authURL builds the provider authorization URL for state
func (c *oauthClient) authURL(state string) string {
	return c.config.AuthCodeURL(state, c.authOptions...)
}

// exchange trades an authorization code for a token set
func (c *oauthClient) exchange(ctx context.Context, code string) (*models.TokenSet, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)

	token, err := c.config.Exchange(ctx, code)
	if err != nil {
		exchangeErr := &TokenExchangeError{Provider: c.provider, Err: err}

		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			exchangeErr.Code = retrieveErr.ErrorCode
			if retrieveErr.Response != nil {
				exchangeErr.StatusCode = retrieveErr.Response.StatusCode
			}
		}
		return nil, exchangeErr
	}

	expiresIn := extraInt64(token, "expires_in")
	tokens := &models.TokenSet{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		TokenType:    token.TokenType,
		Scope:        extraString(token, "scope"),
		ExpiresIn:    expiresIn,
	}
	if expiresIn > 0 {
		tokens.ExpiresAt = c.now().Add(time.Duration(expiresIn) * time.Second)
	} else {
		tokens.ExpiresAt = token.Expiry
	}

	c.logger.Debug("successfully exchanged code for token",
		zap.String("provider", string(c.provider)),
		zap.String("token_type", tokens.TokenType),
		zap.Time("expiry", tokens.ExpiresAt),
	)

	return tokens, nil
}

// getJSON performs a rate-limited, bearer-authenticated GET against the
// provider API and decodes the JSON body into out.
func (c *oauthClient) getJSON(ctx context.Context, endpoint, accessToken string, out interface{}) error {
	if c.rateLimiter != nil {
		if err := c.waitForLimiter(ctx, endpoint); err != nil {
			return &ProfileFetchError{Provider: c.provider, Err: err}
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return &ProfileFetchError{Provider: c.provider, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &ProfileFetchError{Provider: c.provider, Err: fmt.Errorf("failed to make request: %w", err)}
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.Warn("failed to close response body", zap.Error(err))
		}
	}()

	if c.rateLimiter != nil {
		c.rateLimiter.UpdateFromHeaders(endpoint, resp.Header)
		if resp.StatusCode == http.StatusTooManyRequests {
			_ = c.rateLimiter.HandleRateLimitResponse(endpoint, resp.Header)
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &ProfileFetchError{
			Provider:   c.provider,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%s API returned status %d: %s", c.provider, resp.StatusCode, string(body)),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &ProfileFetchError{Provider: c.provider, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to decode response: %w", err)}
	}

	return nil
}

// waitForLimiter waits for the endpoint's rate limit, bounded by the HTTP
// client timeout.
func (c *oauthClient) waitForLimiter(ctx context.Context, endpoint string) error {
	if c.httpClient.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.httpClient.Timeout)
		defer cancel()
	}

	if err := c.rateLimiter.Wait(ctx, endpoint); err != nil {
		_, _, resetAt := c.rateLimiter.GetStatus(endpoint)
		c.logger.Warn("provider API rate limit exceeds request budget",
			zap.String("provider", string(c.provider)),
			zap.String("endpoint", endpoint),
			zap.Time("reset_at", resetAt),
			zap.Error(err),
		)
		return err
	}

	return nil
}

// SetBaseURL points both the API and the token endpoint at url (used for testing)
func (c *oauthClient) SetBaseURL(url string) {
	c.baseURL = url
	c.config.Endpoint.TokenURL = url + "/oauth2/token"
}

// SetClock replaces the clock used to compute token expiry (used for testing)
func (c *oauthClient) SetClock(now func() time.Time) {
	c.now = now
}

// SetRateLimiter sets the rate limiter for profile requests
func (c *oauthClient) SetRateLimiter(rl *ratelimit.RateLimiter) {
	c.rateLimiter = rl
}

// Provider returns the provider this client talks to
func (c *oauthClient) Provider() models.Provider {
	return c.provider
}

func extraString(token *oauth2.Token, key string) string {
	if v, ok := token.Extra(key).(string); ok {
		return v
	}
	return ""
}

func extraInt64(token *oauth2.Token, key string) int64 {
	switch v := token.Extra(key).(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	case json.Number:
		n, _ := v.Int64()
		return n
	case string:
		n, _ := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		return n
	default:
		return 0
	}
}
