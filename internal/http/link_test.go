package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/parsascontentcorner/redditlink/internal/database"
	"github.com/parsascontentcorner/redditlink/internal/linking"
	"github.com/parsascontentcorner/redditlink/internal/models"
	"github.com/parsascontentcorner/redditlink/internal/session"
	"github.com/parsascontentcorner/redditlink/internal/testutil"
)

type linkEnv struct {
	handlers *LinkHandlers
	sessions *session.Manager
	store    *testutil.MockLinkStore
}

func setupLinkHandlers() *linkEnv {
	cfg := testutil.GenerateTestConfig()
	logger := zap.NewNop()

	store := new(testutil.MockLinkStore)
	sessions := session.NewManager(session.NewCookieStore(cfg.Session), logger)

	return &linkEnv{
		handlers: NewLinkHandlers(linking.NewService(store, logger), sessions, logger),
		sessions: sessions,
		store:    store,
	}
}

// sessionCookies persists data through the session manager and returns the
// cookies a browser would send back.
func (env *linkEnv) sessionCookies(t *testing.T, fill func(data *session.Data)) []*http.Cookie {
	t.Helper()

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	sess, err := env.sessions.Load(r)
	require.NoError(t, err)
	fill(sess.Data)

	w := httptest.NewRecorder()
	require.NoError(t, sess.Save(r, w))
	return w.Result().Cookies()
}

func withReddit(name string) func(*session.Data) {
	return func(data *session.Data) {
		data.SetReddit(testutil.GenerateTokenSet(), testutil.GenerateRedditUser(name))
	}
}

func withDiscord(id string) func(*session.Data) {
	return func(data *session.Data) {
		data.SetDiscord(testutil.GenerateTokenSet(), testutil.GenerateDiscordUser(id))
	}
}

func withBoth(redditName, discordID string) func(*session.Data) {
	return func(data *session.Data) {
		withReddit(redditName)(data)
		withDiscord(discordID)(data)
	}
}

func newRequest(method, target string, cookies []*http.Cookie) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	return req
}

func decodeLinkResponse(t *testing.T, rr *httptest.ResponseRecorder) linkResponse {
	t.Helper()

	var body linkResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	return body
}

func TestLinkHandler_Unauthenticated(t *testing.T) {
	tests := []struct {
		name     string
		fill     func(*session.Data)
		provider string
	}{
		{"empty session", func(*session.Data) {}, "reddit"},
		{"only discord", withDiscord("42"), "reddit"},
		{"only reddit", withReddit("alice"), "discord"},
		{
			name: "reddit profile without tokens",
			fill: func(data *session.Data) {
				data.RedditUser = testutil.GenerateRedditUser("alice")
				withDiscord("42")(data)
			},
			provider: "reddit",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupLinkHandlers()
			cookies := env.sessionCookies(t, tt.fill)

			rr := httptest.NewRecorder()
			env.handlers.LinkHandler(rr, newRequest(http.MethodPost, "/verify", cookies))

			assert.Equal(t, http.StatusUnauthorized, rr.Code)
			body := decodeLinkResponse(t, rr)
			assert.Equal(t, tt.provider, body.Provider)
			assert.Contains(t, body.Error, models.Provider(tt.provider).DisplayName())
			env.store.AssertNotCalled(t, "InsertLink", mock.Anything, mock.Anything)
		})
	}
}

func TestLinkHandler_CreatesLink(t *testing.T) {
	env := setupLinkHandlers()
	cookies := env.sessionCookies(t, withBoth("alice", "42"))

	env.store.On("FindLink", mock.Anything, "42", "alice").Return(nil, database.ErrLinkNotFound).Once()
	env.store.On("InsertLink", mock.Anything, mock.MatchedBy(func(l *models.Link) bool {
		return l.UserID == "42" && l.RedditName == "alice"
	})).Return(nil).Once()

	rr := httptest.NewRecorder()
	env.handlers.LinkHandler(rr, newRequest(http.MethodPost, "/verify", cookies))

	assert.Equal(t, http.StatusCreated, rr.Code)
	body := decodeLinkResponse(t, rr)
	assert.Equal(t, "42", body.UserID)
	assert.Equal(t, "alice", body.RedditName)
	assert.True(t, body.Created)
	env.store.AssertNumberOfCalls(t, "InsertLink", 1)
}

func TestLinkHandler_AlreadyLinked(t *testing.T) {
	env := setupLinkHandlers()
	cookies := env.sessionCookies(t, withBoth("alice", "42"))

	env.store.On("FindLink", mock.Anything, "42", "alice").Return(testutil.GenerateLink("42", "alice"), nil)

	rr := httptest.NewRecorder()
	env.handlers.LinkHandler(rr, newRequest(http.MethodPost, "/verify", cookies))

	assert.Equal(t, http.StatusCreated, rr.Code)
	assert.False(t, decodeLinkResponse(t, rr).Created)
	env.store.AssertNotCalled(t, "InsertLink", mock.Anything, mock.Anything)
}

func TestLinkHandler_StorageError(t *testing.T) {
	env := setupLinkHandlers()
	cookies := env.sessionCookies(t, withBoth("alice", "42"))

	env.store.On("FindLink", mock.Anything, "42", "alice").Return(nil, errors.New("pq: connection reset by peer"))

	rr := httptest.NewRecorder()
	env.handlers.LinkHandler(rr, newRequest(http.MethodPost, "/verify", cookies))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.NotContains(t, rr.Body.String(), "connection reset")
	assert.Equal(t, "internal error", decodeLinkResponse(t, rr).Error)
}

func TestPageHandler_Anonymous(t *testing.T) {
	env := setupLinkHandlers()

	rr := httptest.NewRecorder()
	env.handlers.PageHandler(rr, newRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "text/html")

	body := rr.Body.String()
	assert.Contains(t, body, `href="/auth/reddit/"`)
	assert.Contains(t, body, `href="/auth/discord/"`)
	assert.Contains(t, body, `<button id="link" disabled>`)
	assert.Contains(t, body, "fetch('/verify'")
}

func TestPageHandler_BothConnected(t *testing.T) {
	env := setupLinkHandlers()
	env.handlers.now = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }

	cookies := env.sessionCookies(t, func(data *session.Data) {
		data.SetReddit(testutil.GenerateTokenSet(), &models.RedditUser{
			Name:             "alice",
			AccountCreatedAt: time.Date(2023, 12, 22, 0, 0, 0, 0, time.UTC),
		})
		withDiscord("42")(data)
	})

	env.store.On("ListLinksByUser", mock.Anything, "42").Return([]*models.Link{testutil.GenerateLink("42", "bob")}, nil)

	rr := httptest.NewRecorder()
	env.handlers.PageHandler(rr, newRequest(http.MethodGet, "/verify", cookies))

	assert.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "u/alice")
	assert.Contains(t, body, "10 days old")
	assert.Contains(t, body, "Test User 42")
	assert.Contains(t, body, "u/bob")
	assert.Contains(t, body, `<form method="post" action="/auth/reddit/logout">`)
	assert.Contains(t, body, `data-reddit-name="bob"`)
	assert.NotContains(t, body, `<button id="link" disabled>`)
}

func TestPageHandler_EscapesProfileData(t *testing.T) {
	env := setupLinkHandlers()
	cookies := env.sessionCookies(t, withReddit("<script>alert(1)</script>"))

	rr := httptest.NewRecorder()
	env.handlers.PageHandler(rr, newRequest(http.MethodGet, "/", cookies))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.NotContains(t, rr.Body.String(), "<script>alert(1)</script>")
	assert.Contains(t, rr.Body.String(), "&lt;script&gt;")
}

func TestPageHandler_ListFailureStillRenders(t *testing.T) {
	env := setupLinkHandlers()
	cookies := env.sessionCookies(t, withDiscord("42"))

	env.store.On("ListLinksByUser", mock.Anything, "42").Return(nil, errors.New("boom"))

	rr := httptest.NewRecorder()
	env.handlers.PageHandler(rr, newRequest(http.MethodGet, "/", cookies))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Test User 42")
}

func newUnlinkRequest(redditName string, cookies []*http.Cookie) *http.Request {
	form := url.Values{"reddit_name": {redditName}}
	req := httptest.NewRequest(http.MethodPost, "/unlink", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	return req
}

func TestUnlinkHandler_RemovesLink(t *testing.T) {
	env := setupLinkHandlers()
	cookies := env.sessionCookies(t, withDiscord("42"))
	env.store.On("DeleteLink", mock.Anything, "42", "alice").Return(nil).Once()

	rr := httptest.NewRecorder()
	env.handlers.UnlinkHandler(rr, newUnlinkRequest("alice", cookies))

	assert.Equal(t, http.StatusOK, rr.Code)
	body := decodeLinkResponse(t, rr)
	assert.True(t, body.Removed)
	assert.Equal(t, "42", body.UserID)
	assert.Equal(t, "alice", body.RedditName)
	env.store.AssertExpectations(t)
}

func TestUnlinkHandler_Failures(t *testing.T) {
	tests := []struct {
		name       string
		fill       func(*session.Data)
		redditName string
		storeErr   error
		wantStatus int
		wantError  string
	}{
		{"no discord login", withReddit("alice"), "alice", nil, http.StatusUnauthorized, "not authenticated with Discord"},
		{"not linked", withDiscord("42"), "alice", database.ErrLinkNotFound, http.StatusNotFound, "accounts are not linked"},
		{"missing name", withDiscord("42"), "", nil, http.StatusNotFound, "accounts are not linked"},
		{"storage failure", withDiscord("42"), "alice", errors.New("pq: connection refused"), http.StatusInternalServerError, "internal error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupLinkHandlers()
			cookies := env.sessionCookies(t, tt.fill)
			if tt.storeErr != nil {
				env.store.On("DeleteLink", mock.Anything, "42", tt.redditName).Return(tt.storeErr).Once()
			}

			rr := httptest.NewRecorder()
			env.handlers.UnlinkHandler(rr, newUnlinkRequest(tt.redditName, cookies))

			assert.Equal(t, tt.wantStatus, rr.Code)
			body := decodeLinkResponse(t, rr)
			assert.Equal(t, tt.wantError, body.Error)
			assert.False(t, body.Removed)
			assert.NotContains(t, rr.Body.String(), "pq:")
		})
	}
}
