package session

import (
	"fmt"
	"net/http"

	"github.com/gorilla/sessions"
	"go.uber.org/zap"
)

// Name is the session cookie name
const Name = "redditlink_session"

const dataKey = "data"

// Manager loads and saves typed session data
type Manager struct {
	store  sessions.Store
	logger *zap.Logger
}

// Session is a loaded browser session. Changes to Data are persisted by Save.
type Session struct {
	Data *Data
	raw  *sessions.Session
}

// NewManager creates a new session manager
func NewManager(store sessions.Store, logger *zap.Logger) *Manager {
	return &Manager{
		store:  store,
		logger: logger,
	}
}

// Load returns the session for r. A cookie that cannot be decoded (expired,
// tampered or signed with rotated keys) yields a fresh, empty session.
func (m *Manager) Load(r *http.Request) (*Session, error) {
	raw, err := m.store.Get(r, Name)
	if raw == nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if err != nil {
		m.logger.Warn("discarding unreadable session", zap.Error(err))
	}

	data := &Data{}
	if stored, ok := raw.Values[dataKey].(Data); ok {
		*data = stored
	}

	return &Session{Data: data, raw: raw}, nil
}

// Save writes the session back to the store and sets the cookie on w
func (s *Session) Save(r *http.Request, w http.ResponseWriter) error {
	s.raw.Values[dataKey] = *s.Data
	if err := s.raw.Save(r, w); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// IsNew reports whether the session was created by this request
func (s *Session) IsNew() bool {
	return s.raw.IsNew
}
