package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
)

// Mock credentials accepted by the mock token endpoint
const (
	MockClientID     = "test_client_id"
	MockClientSecret = "test_client_secret"
)

// Authorization codes understood by the mock token endpoint
const (
	CodeValid        = "valid_code"         // issues MockAccessToken
	CodeNoAvatar     = "no_avatar_code"     // issues MockAccessTokenNoAvatar
	CodeProfileError = "profile_error_code" // issues a token the profile endpoint rejects
	CodeInvalidGrant = "error_code"         // 400 invalid_grant
	CodeErrorInBody  = "error_in_body_code" // 200 with an error field, as Reddit does
	CodeServerError  = "server_error"       // 500
)

// Values returned by the mock endpoints
const (
	MockAccessToken         = "mock_access_token_123"
	MockAccessTokenNoAvatar = "mock_access_token_no_avatar"
	MockRefreshToken        = "mock_refresh_token_456"
	MockExpiresIn           = 3600
	MockRedditName          = "alice"
	MockRedditCreated       = 1577836800 // 2020-01-01T00:00:00Z
	MockDiscordID           = "42"
	MockDiscordName         = "testuser"

	mockRejectedToken = "invalid_token"
)

// MockRedditAvatar is the avatar URL the mock returns, after HTML unescaping
const MockRedditAvatar = "https://styles.redditmedia.com/t5_1/styles/profileIcon_x.png?width=256&s=abc"

// MockProviderServer is a mock OAuth provider serving the token endpoint and
// both the Reddit and Discord profile endpoints.
type MockProviderServer struct {
	Server        *httptest.Server
	TokenCalls    int
	UserInfoCalls int
	LastUserAgent string
	LastGrantType string
	mu            sync.Mutex
}

// TokenResponse represents an OAuth token response
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
	Scope        string `json:"scope"`
}

// ErrorResponse represents an OAuth error response
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// NewMockProviderServer creates a new mock provider server
func NewMockProviderServer() *MockProviderServer {
	mps := &MockProviderServer{}

	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2/token", mps.handleToken)
	mux.HandleFunc("/api/v1/me", mps.profileHandler(redditProfile))
	mux.HandleFunc("/users/@me", mps.profileHandler(discordProfile))

	mps.Server = httptest.NewServer(mux)
	return mps
}

func (mps *MockProviderServer) handleToken(w http.ResponseWriter, r *http.Request) {
	mps.mu.Lock()
	mps.TokenCalls++
	mps.LastUserAgent = r.UserAgent()
	mps.mu.Unlock()

	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	clientID, clientSecret, ok := r.BasicAuth()
	if !ok || clientID != MockClientID || clientSecret != MockClientSecret {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "invalid_client"})
		return
	}

	if err := r.ParseForm(); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	mps.mu.Lock()
	mps.LastGrantType = r.PostFormValue("grant_type")
	mps.mu.Unlock()

	token := func(accessToken string) TokenResponse {
		return TokenResponse{
			AccessToken:  accessToken,
			TokenType:    "bearer",
			ExpiresIn:    MockExpiresIn,
			RefreshToken: MockRefreshToken,
			Scope:        "identity",
		}
	}

	switch r.PostFormValue("code") {
	case CodeValid:
		writeJSON(w, http.StatusOK, token(MockAccessToken))
	case CodeNoAvatar:
		writeJSON(w, http.StatusOK, token(MockAccessTokenNoAvatar))
	case CodeProfileError:
		writeJSON(w, http.StatusOK, token(mockRejectedToken))
	case CodeInvalidGrant:
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid_grant", ErrorDescription: "Invalid authorization code"})
	case CodeErrorInBody:
		writeJSON(w, http.StatusOK, ErrorResponse{Error: "invalid_grant"})
	case CodeServerError:
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("Internal Server Error"))
	default:
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid_request", ErrorDescription: "Unknown code"})
	}
}

func (mps *MockProviderServer) profileHandler(profile func(token string) interface{}) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mps.mu.Lock()
		mps.UserInfoCalls++
		mps.mu.Unlock()

		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
			return
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		switch token {
		case MockAccessToken, MockAccessTokenNoAvatar:
			w.Header().Set("X-Ratelimit-Remaining", "599.0")
			w.Header().Set("X-Ratelimit-Used", "1")
			w.Header().Set("X-Ratelimit-Reset", "600")
			writeJSON(w, http.StatusOK, profile(token))
		case "server_error":
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte("Internal Server Error"))
		default:
			writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", ErrorDescription: "Invalid token"})
		}
	}
}

func redditProfile(token string) interface{} {
	body := map[string]interface{}{
		"name":        MockRedditName,
		"created_utc": float64(MockRedditCreated),
	}
	if token != MockAccessTokenNoAvatar {
		escaped := strings.ReplaceAll(MockRedditAvatar, "&", "&amp;")
		body["icon_img"] = escaped
		body["subreddit"] = map[string]interface{}{"icon_img": escaped}
	}
	return body
}

func discordProfile(string) interface{} {
	return map[string]interface{}{
		"id":          MockDiscordID,
		"username":    MockDiscordName,
		"global_name": "Test User",
		"avatar":      "avatar_hash_123",
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// URL returns the mock server base URL
func (mps *MockProviderServer) URL() string {
	return mps.Server.URL
}

// Calls returns the token and profile call counts
func (mps *MockProviderServer) Calls() (tokenCalls, userInfoCalls int) {
	mps.mu.Lock()
	defer mps.mu.Unlock()
	return mps.TokenCalls, mps.UserInfoCalls
}

// Close closes the mock server.
func (mps *MockProviderServer) Close() {
	if mps.Server != nil {
		mps.Server.Close()
	}
}

// ResetCallCounts resets the call counters.
func (mps *MockProviderServer) ResetCallCounts() {
	mps.mu.Lock()
	defer mps.mu.Unlock()
	mps.TokenCalls = 0
	mps.UserInfoCalls = 0
}
