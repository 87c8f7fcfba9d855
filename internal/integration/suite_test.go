package integration

import (
	"context"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/parsascontentcorner/redditlink/internal/auth"
	"github.com/parsascontentcorner/redditlink/internal/config"
	"github.com/parsascontentcorner/redditlink/internal/database"
	httpserver "github.com/parsascontentcorner/redditlink/internal/http"
	"github.com/parsascontentcorner/redditlink/internal/linking"
	"github.com/parsascontentcorner/redditlink/internal/oauth"
	"github.com/parsascontentcorner/redditlink/internal/ratelimit"
	"github.com/parsascontentcorner/redditlink/internal/session"
	"github.com/parsascontentcorner/redditlink/internal/testutil"
)

// testSuite runs the full service against a PostgreSQL container and a mock
// provider.
type testSuite struct {
	db         *database.DB
	mockServer *testutil.MockProviderServer
	server     *httptest.Server
	cleanup    func()
}

func setupTestSuite(t *testing.T, sessionStore string) *testSuite {
	t.Helper()

	ctx := context.Background()
	db, dbCleanup, err := testutil.SetupTestDB(ctx)
	require.NoError(t, err)

	mockServer := testutil.NewMockProviderServer()

	cfg := testutil.GenerateTestConfig()
	cfg.Session.Store = sessionStore
	logger := zap.NewNop()

	store, stopCleanup, err := session.NewStore(cfg.Session, db.DB, logger)
	require.NoError(t, err)
	sessions := session.NewManager(store, logger)

	rateLimiter := ratelimit.NewRateLimiter(logger)
	reddit := auth.NewRedditClient(cfg, logger)
	reddit.SetBaseURL(mockServer.URL())
	reddit.SetRateLimiter(rateLimiter)
	discord := auth.NewDiscordClient(cfg, logger)
	discord.SetBaseURL(mockServer.URL())
	discord.SetRateLimiter(rateLimiter)

	oauthHandlers := oauth.NewHandlers(auth.NewOAuthHandler(reddit, discord, logger), sessions, db, logger)
	linkHandlers := httpserver.NewLinkHandlers(linking.NewService(db, logger), sessions, logger)
	server := httptest.NewServer(httpserver.NewRouter(oauthHandlers, linkHandlers, logger))

	return &testSuite{
		db:         db,
		mockServer: mockServer,
		server:     server,
		cleanup: func() {
			server.Close()
			stopCleanup()
			mockServer.Close()
			dbCleanup()
		},
	}
}

// newBrowser returns a client with its own cookie jar that does not follow
// redirects, so each hop can be inspected.
func (ts *testSuite) newBrowser(t *testing.T) *http.Client {
	t.Helper()

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	return &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func (ts *testSuite) get(t *testing.T, browser *http.Client, path string) *http.Response {
	t.Helper()

	resp, err := browser.Get(ts.server.URL + path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func (ts *testSuite) post(t *testing.T, browser *http.Client, path string) *http.Response {
	t.Helper()

	resp, err := browser.Post(ts.server.URL+path, "application/json", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func (ts *testSuite) postForm(t *testing.T, browser *http.Client, path string, form url.Values) *http.Response {
	t.Helper()

	resp, err := browser.PostForm(ts.server.URL+path, form)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

// login walks one provider flow with the given authorization code and
// returns the callback response.
func (ts *testSuite) login(t *testing.T, browser *http.Client, provider, code string) *http.Response {
	t.Helper()

	resp := ts.get(t, browser, "/auth/"+provider+"/")
	require.Equal(t, http.StatusFound, resp.StatusCode)

	location, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	state := location.Query().Get("state")
	require.NotEmpty(t, state)

	query := url.Values{"state": {state}, "code": {code}}
	return ts.get(t, browser, "/auth/"+provider+"/callback?"+query.Encode())
}

var sessionStores = []string{config.SessionStoreCookie, config.SessionStorePostgres}
