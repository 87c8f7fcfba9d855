package oauth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/parsascontentcorner/redditlink/internal/auth"
	"github.com/parsascontentcorner/redditlink/internal/models"
	"github.com/parsascontentcorner/redditlink/internal/session"
	"github.com/parsascontentcorner/redditlink/internal/testutil"
)

type fakePinger struct {
	err error
}

func (p *fakePinger) Health(context.Context) error { return p.err }

type testEnv struct {
	handlers   *Handlers
	sessions   *session.Manager
	mockServer *testutil.MockProviderServer
}

func setupHandlers(t *testing.T) *testEnv {
	t.Helper()

	mockServer := testutil.NewMockProviderServer()
	t.Cleanup(mockServer.Close)

	cfg := testutil.GenerateTestConfig()
	logger := zap.NewNop()

	reddit := auth.NewRedditClient(cfg, logger)
	reddit.SetBaseURL(mockServer.URL())
	discord := auth.NewDiscordClient(cfg, logger)
	discord.SetBaseURL(mockServer.URL())

	sessions := session.NewManager(session.NewCookieStore(cfg.Session), logger)

	return &testEnv{
		handlers:   NewHandlers(auth.NewOAuthHandler(reddit, discord, logger), sessions, &fakePinger{}, logger),
		sessions:   sessions,
		mockServer: mockServer,
	}
}

func newProviderRequest(method, target, provider string, cookies []*http.Cookie) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	req.SetPathValue("provider", provider)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	return req
}

// begin runs the entry handler and returns the session cookies and the state
// sent to the provider.
func (env *testEnv) begin(t *testing.T, provider string, cookies []*http.Cookie) ([]*http.Cookie, string) {
	t.Helper()

	rr := httptest.NewRecorder()
	env.handlers.BeginHandler(rr, newProviderRequest(http.MethodGet, "/auth/"+provider+"/", provider, cookies))
	require.Equal(t, http.StatusFound, rr.Code)

	location, err := url.Parse(rr.Header().Get("Location"))
	require.NoError(t, err)

	return rr.Result().Cookies(), location.Query().Get("state")
}

func (env *testEnv) loadSession(t *testing.T, cookies []*http.Cookie) *session.Data {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	sess, err := env.sessions.Load(req)
	require.NoError(t, err)
	return sess.Data
}

func TestHealthHandler(t *testing.T) {
	handlers := NewHandlers(nil, nil, &fakePinger{}, zap.NewNop())

	rr := httptest.NewRecorder()
	handlers.HealthHandler(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "OK", rr.Body.String())
}

func TestHealthHandler_DatabaseDown(t *testing.T) {
	handlers := NewHandlers(nil, nil, &fakePinger{err: errors.New("connection refused")}, zap.NewNop())

	rr := httptest.NewRecorder()
	handlers.HealthHandler(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.NotContains(t, rr.Body.String(), "connection refused")
}

func TestBeginHandler(t *testing.T) {
	tests := []struct {
		provider string
		host     string
	}{
		{"reddit", "www.reddit.com"},
		{"discord", "discord.com"},
	}

	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			env := setupHandlers(t)

			rr := httptest.NewRecorder()
			env.handlers.BeginHandler(rr, newProviderRequest(http.MethodGet, "/auth/"+tt.provider+"/", tt.provider, nil))

			require.Equal(t, http.StatusFound, rr.Code)
			location, err := url.Parse(rr.Header().Get("Location"))
			require.NoError(t, err)
			assert.Equal(t, tt.host, location.Host)

			state := location.Query().Get("state")
			require.NotEmpty(t, state)

			data := env.loadSession(t, rr.Result().Cookies())
			assert.Equal(t, state, data.Provider(models.Provider(tt.provider)).State)
		})
	}
}

func TestBeginHandler_UnknownProvider(t *testing.T) {
	env := setupHandlers(t)

	rr := httptest.NewRecorder()
	env.handlers.BeginHandler(rr, newProviderRequest(http.MethodGet, "/auth/twitter/", "twitter", nil))

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestBeginHandler_NewStateEachTime(t *testing.T) {
	env := setupHandlers(t)

	cookies, first := env.begin(t, "reddit", nil)
	_, second := env.begin(t, "reddit", cookies)

	assert.NotEqual(t, first, second)
}

func TestCallbackHandler_RedditSuccess(t *testing.T) {
	env := setupHandlers(t)
	cookies, state := env.begin(t, "reddit", nil)

	rr := httptest.NewRecorder()
	target := "/auth/reddit/callback?state=" + url.QueryEscape(state) + "&code=" + testutil.CodeValid
	env.handlers.CallbackHandler(rr, newProviderRequest(http.MethodGet, target, "reddit", cookies))

	require.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, "/", rr.Header().Get("Location"))

	data := env.loadSession(t, rr.Result().Cookies())
	require.True(t, data.Authenticated(models.ProviderReddit))
	assert.Equal(t, testutil.MockRedditName, data.RedditUser.Name)
	assert.Equal(t, testutil.MockAccessToken, data.Reddit.Tokens.AccessToken)
	assert.Empty(t, data.Reddit.State, "state is single use")
	assert.False(t, data.Authenticated(models.ProviderDiscord))
}

func TestCallbackHandler_DiscordSuccess(t *testing.T) {
	env := setupHandlers(t)
	cookies, state := env.begin(t, "discord", nil)

	rr := httptest.NewRecorder()
	target := "/auth/discord/callback?state=" + url.QueryEscape(state) + "&code=" + testutil.CodeValid
	env.handlers.CallbackHandler(rr, newProviderRequest(http.MethodGet, target, "discord", cookies))

	require.Equal(t, http.StatusFound, rr.Code)

	data := env.loadSession(t, rr.Result().Cookies())
	require.True(t, data.Authenticated(models.ProviderDiscord))
	assert.Equal(t, testutil.MockDiscordID, data.DiscordUser.ID)
}

func TestCallbackHandler_Failures(t *testing.T) {
	tests := []struct {
		name          string
		query         func(state string) string
		wantMessage   string
		wantTokenCall int
	}{
		{
			name:        "provider denied",
			query:       func(state string) string { return "error=access_denied&state=" + url.QueryEscape(state) },
			wantMessage: msgAccessDenied,
		},
		{
			name:        "state mismatch",
			query:       func(string) string { return "state=forged&code=" + testutil.CodeValid },
			wantMessage: msgInvalidState,
		},
		{
			name:        "missing state",
			query:       func(string) string { return "code=" + testutil.CodeValid },
			wantMessage: msgInvalidState,
		},
		{
			name:        "missing code",
			query:       func(state string) string { return "state=" + url.QueryEscape(state) },
			wantMessage: msgAuthFailed,
		},
		{
			name:          "exchange rejected",
			query:         func(state string) string { return "state=" + url.QueryEscape(state) + "&code=" + testutil.CodeInvalidGrant },
			wantMessage:   msgAuthFailed,
			wantTokenCall: 1,
		},
		{
			name:          "profile rejected",
			query:         func(state string) string { return "state=" + url.QueryEscape(state) + "&code=" + testutil.CodeProfileError },
			wantMessage:   msgAuthFailed,
			wantTokenCall: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupHandlers(t)
			cookies, state := env.begin(t, "reddit", nil)

			rr := httptest.NewRecorder()
			env.handlers.CallbackHandler(rr, newProviderRequest(http.MethodGet, "/auth/reddit/callback?"+tt.query(state), "reddit", cookies))

			assert.Equal(t, http.StatusBadRequest, rr.Code)
			assert.Empty(t, rr.Header().Get("Location"), "failures never redirect")
			assert.Contains(t, rr.Header().Get("Content-Type"), "text/plain")
			assert.Equal(t, tt.wantMessage, rr.Body.String())
			assert.Empty(t, rr.Result().Cookies(), "session is not written on failure")

			tokenCalls, _ := env.mockServer.Calls()
			assert.Equal(t, tt.wantTokenCall, tokenCalls)
		})
	}
}

func TestCallbackHandler_StateFromOtherProvider(t *testing.T) {
	env := setupHandlers(t)
	cookies, redditState := env.begin(t, "reddit", nil)

	rr := httptest.NewRecorder()
	target := "/auth/discord/callback?state=" + url.QueryEscape(redditState) + "&code=" + testutil.CodeValid
	env.handlers.CallbackHandler(rr, newProviderRequest(http.MethodGet, target, "discord", cookies))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	tokenCalls, _ := env.mockServer.Calls()
	assert.Equal(t, 0, tokenCalls)
}

func TestCallbackHandler_ErrorDoesNotLeakDetails(t *testing.T) {
	env := setupHandlers(t)
	cookies, state := env.begin(t, "reddit", nil)

	rr := httptest.NewRecorder()
	target := "/auth/reddit/callback?state=" + url.QueryEscape(state) + "&code=" + testutil.CodeServerError
	env.handlers.CallbackHandler(rr, newProviderRequest(http.MethodGet, target, "reddit", cookies))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.NotContains(t, rr.Body.String(), "500")
	assert.NotContains(t, rr.Body.String(), "Internal Server Error")
}

func TestLogoutHandler(t *testing.T) {
	env := setupHandlers(t)
	cookies, state := env.begin(t, "reddit", nil)

	rr := httptest.NewRecorder()
	target := "/auth/reddit/callback?state=" + url.QueryEscape(state) + "&code=" + testutil.CodeValid
	env.handlers.CallbackHandler(rr, newProviderRequest(http.MethodGet, target, "reddit", cookies))
	require.Equal(t, http.StatusFound, rr.Code)
	cookies = rr.Result().Cookies()

	rr = httptest.NewRecorder()
	env.handlers.LogoutHandler(rr, newProviderRequest(http.MethodPost, "/auth/reddit/logout", "reddit", cookies))

	require.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/", rr.Header().Get("Location"))

	data := env.loadSession(t, rr.Result().Cookies())
	assert.False(t, data.Authenticated(models.ProviderReddit))
}
