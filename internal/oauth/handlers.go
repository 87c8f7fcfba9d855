// Package oauth provides the HTTP handlers that drive the Reddit and Discord
// authorization code flows, plus the health check.
package oauth

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/parsascontentcorner/redditlink/internal/auth"
	"github.com/parsascontentcorner/redditlink/internal/models"
	"github.com/parsascontentcorner/redditlink/internal/session"
)

// User-facing callback failure messages. Details are only logged.
const (
	msgAuthFailed    = "Authentication failed. Please try again."
	msgAccessDenied  = "Authorization was not granted."
	msgInvalidState  = "This login link is invalid or has expired. Please start again."
	msgSessionFailed = "Could not load your session. Please enable cookies and try again."
)

// Pinger reports whether a dependency is reachable
type Pinger interface {
	Health(ctx context.Context) error
}

// Handlers contains the OAuth and health HTTP handlers
type Handlers struct {
	oauthHandler *auth.OAuthHandler
	sessions     *session.Manager
	pinger       Pinger
	logger       *zap.Logger
}

// NewHandlers creates a new handlers instance
func NewHandlers(oauthHandler *auth.OAuthHandler, sessions *session.Manager, pinger Pinger, logger *zap.Logger) *Handlers {
	return &Handlers{
		oauthHandler: oauthHandler,
		sessions:     sessions,
		pinger:       pinger,
		logger:       logger,
	}
}

// HealthHandler handles health check requests
func (h *Handlers) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if h.pinger != nil {
		if err := h.pinger.Health(r.Context()); err != nil {
			h.logger.Error("health check failed", zap.Error(err))
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
	}

	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		h.logger.Error("failed to write health check response", zap.Error(err))
	}
}

// providerFromPath resolves the {provider} path segment, answering 404 for
// anything unsupported.
func providerFromPath(w http.ResponseWriter, r *http.Request) (models.Provider, bool) {
	provider := models.Provider(r.PathValue("provider"))
	if !provider.Valid() {
		http.NotFound(w, r)
		return "", false
	}
	return provider, true
}

// BeginHandler stores a fresh state in the session and redirects the browser
// to the provider's consent page.
func (h *Handlers) BeginHandler(w http.ResponseWriter, r *http.Request) {
	provider, ok := providerFromPath(w, r)
	if !ok {
		return
	}

	sess, err := h.sessions.Load(r)
	if err != nil {
		h.logger.Error("failed to load session", zap.Error(err))
		h.writeText(w, http.StatusInternalServerError, msgSessionFailed)
		return
	}

	state, authURL, err := h.oauthHandler.BeginAuth(provider)
	if err != nil {
		h.logger.Error("failed to begin authorization", zap.String("provider", string(provider)), zap.Error(err))
		h.writeText(w, http.StatusInternalServerError, msgAuthFailed)
		return
	}

	sess.Data.Provider(provider).State = state
	if err := sess.Save(r, w); err != nil {
		h.logger.Error("failed to save session", zap.Error(err))
		h.writeText(w, http.StatusInternalServerError, msgSessionFailed)
		return
	}

	h.logger.Debug("redirecting to provider", zap.String("provider", string(provider)))
	http.Redirect(w, r, authURL, http.StatusFound)
}

// CallbackHandler completes the flow. On success tokens and profile are
// written to the session and the browser goes to the linking page; on any
// failure a static plain-text message is returned and the session is left
// untouched.
func (h *Handlers) CallbackHandler(w http.ResponseWriter, r *http.Request) {
	provider, ok := providerFromPath(w, r)
	if !ok {
		return
	}

	sess, err := h.sessions.Load(r)
	if err != nil {
		h.logger.Error("failed to load session", zap.Error(err))
		h.writeText(w, http.StatusInternalServerError, msgSessionFailed)
		return
	}

	query := r.URL.Query()
	params := auth.CallbackParams{
		Error:            query.Get("error"),
		ErrorDescription: query.Get("error_description"),
		State:            query.Get("state"),
		Code:             query.Get("code"),
	}
	storedState := sess.Data.Provider(provider).State

	h.logger.Info("received oauth callback",
		zap.String("provider", string(provider)),
		zap.Bool("has_code", params.Code != ""),
		zap.Bool("has_error", params.Error != ""),
	)

	switch provider {
	case models.ProviderReddit:
		login, err := h.oauthHandler.CompleteReddit(r.Context(), params, storedState)
		if err != nil {
			h.fail(w, provider, err)
			return
		}
		sess.Data.SetReddit(login.Tokens, login.User)

	case models.ProviderDiscord:
		login, err := h.oauthHandler.CompleteDiscord(r.Context(), params, storedState)
		if err != nil {
			h.fail(w, provider, err)
			return
		}
		sess.Data.SetDiscord(login.Tokens, login.User)
	}

	if err := sess.Save(r, w); err != nil {
		h.logger.Error("failed to save session", zap.Error(err))
		h.writeText(w, http.StatusInternalServerError, msgSessionFailed)
		return
	}

	http.Redirect(w, r, "/", http.StatusFound)
}

// LogoutHandler forgets one provider's login and returns to the linking page.
// It is mounted for POST only.
func (h *Handlers) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	provider, ok := providerFromPath(w, r)
	if !ok {
		return
	}

	sess, err := h.sessions.Load(r)
	if err != nil {
		h.logger.Error("failed to load session", zap.Error(err))
		h.writeText(w, http.StatusInternalServerError, msgSessionFailed)
		return
	}

	sess.Data.Clear(provider)
	if err := sess.Save(r, w); err != nil {
		h.logger.Error("failed to save session", zap.Error(err))
		h.writeText(w, http.StatusInternalServerError, msgSessionFailed)
		return
	}

	h.logger.Info("logged out of provider", zap.String("provider", string(provider)))
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// fail maps a flow error to its user-facing message and logs the cause
func (h *Handlers) fail(w http.ResponseWriter, provider models.Provider, err error) {
	fields := []zap.Field{zap.String("provider", string(provider)), zap.Error(err)}

	var (
		providerErr *auth.ProviderError
		exchangeErr *auth.TokenExchangeError
		profileErr  *auth.ProfileFetchError
	)

	message := msgAuthFailed
	switch {
	case errors.As(err, &providerErr):
		message = msgAccessDenied
		h.logger.Warn("provider returned an error", append(fields, zap.String("error_code", providerErr.Code))...)
	case errors.Is(err, auth.ErrStateMismatch):
		message = msgInvalidState
		h.logger.Warn("oauth state mismatch", fields...)
	case errors.Is(err, auth.ErrMissingCode):
		h.logger.Warn("callback without authorization code", fields...)
	case errors.As(err, &exchangeErr):
		h.logger.Error("token exchange failed", append(fields, zap.Int("status", exchangeErr.StatusCode))...)
	case errors.As(err, &profileErr):
		h.logger.Error("profile fetch failed", append(fields, zap.Int("status", profileErr.StatusCode))...)
	default:
		h.logger.Error("oauth callback failed", fields...)
	}

	h.writeText(w, http.StatusBadRequest, message)
}

func (h *Handlers) writeText(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	if _, err := w.Write([]byte(message)); err != nil {
		h.logger.Error("failed to write response", zap.Error(err))
	}
}
