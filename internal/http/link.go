package http

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/parsascontentcorner/redditlink/internal/linking"
	"github.com/parsascontentcorner/redditlink/internal/models"
	"github.com/parsascontentcorner/redditlink/internal/session"
)

//go:embed templates/index.html
var templateFS embed.FS

var pageTemplate = template.Must(template.ParseFS(templateFS, "templates/index.html"))

// LinkHandlers serves the linking page and the link endpoint
type LinkHandlers struct {
	linker   *linking.Service
	sessions *session.Manager
	logger   *zap.Logger
	now      func() time.Time
}

// NewLinkHandlers creates the linking page handlers
func NewLinkHandlers(linker *linking.Service, sessions *session.Manager, logger *zap.Logger) *LinkHandlers {
	return &LinkHandlers{
		linker:   linker,
		sessions: sessions,
		logger:   logger,
		now:      time.Now,
	}
}

type redditView struct {
	Connected      bool
	Name           string
	AvatarURL      string
	AccountAgeDays int
}

type discordView struct {
	Connected   bool
	DisplayName string
	AvatarURL   string
}

type pageView struct {
	Reddit  redditView
	Discord discordView
	CanLink bool
	Linked  []string
}

// linkResponse is the JSON body of POST /verify and POST /unlink
type linkResponse struct {
	UserID     string `json:"user_id,omitempty"`
	RedditName string `json:"reddit_name,omitempty"`
	Created    bool   `json:"created"`
	Removed    bool   `json:"removed,omitempty"`
	Error      string `json:"error,omitempty"`
	Provider   string `json:"provider,omitempty"`
}

func discordAvatarURL(u *models.DiscordUser) string {
	if u.Avatar == "" {
		return ""
	}
	return fmt.Sprintf("https://cdn.discordapp.com/avatars/%s/%s.png", u.ID, u.Avatar)
}

func (h *LinkHandlers) buildView(r *http.Request, data *session.Data) pageView {
	var view pageView

	if data.Authenticated(models.ProviderReddit) {
		view.Reddit = redditView{
			Connected:      true,
			Name:           data.RedditUser.Name,
			AvatarURL:      data.RedditUser.AvatarURL,
			AccountAgeDays: int(data.RedditUser.AccountAge(h.now()) / (24 * time.Hour)),
		}
	}

	if data.Authenticated(models.ProviderDiscord) {
		view.Discord = discordView{
			Connected:   true,
			DisplayName: data.DiscordUser.DisplayName(),
			AvatarURL:   discordAvatarURL(data.DiscordUser),
		}

		links, err := h.linker.Links(r.Context(), data.DiscordUser.ID)
		if err != nil {
			h.logger.Warn("failed to list existing links", zap.Error(err))
		}
		for _, link := range links {
			view.Linked = append(view.Linked, link.RedditName)
		}
	}

	view.CanLink = view.Reddit.Connected && view.Discord.Connected
	return view
}

// PageHandler renders the linking page for the current session
func (h *LinkHandlers) PageHandler(w http.ResponseWriter, r *http.Request) {
	sess, err := h.sessions.Load(r)
	if err != nil {
		h.logger.Error("failed to load session", zap.Error(err))
		http.Error(w, "could not load session", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	if err := pageTemplate.Execute(w, h.buildView(r, sess.Data)); err != nil {
		h.logger.Error("failed to render linking page", zap.Error(err))
	}
}

// LinkHandler records the link between the session's Discord and Reddit
// identities. Already linked pairs also answer 201.
func (h *LinkHandlers) LinkHandler(w http.ResponseWriter, r *http.Request) {
	sess, err := h.sessions.Load(r)
	if err != nil {
		h.logger.Error("failed to load session", zap.Error(err))
		h.writeJSON(w, http.StatusInternalServerError, linkResponse{Error: "internal error"})
		return
	}

	var (
		reddit  *models.RedditUser
		discord *models.DiscordUser
	)
	if sess.Data.Authenticated(models.ProviderReddit) {
		reddit = sess.Data.RedditUser
	}
	if sess.Data.Authenticated(models.ProviderDiscord) {
		discord = sess.Data.DiscordUser
	}

	result, err := h.linker.Link(r.Context(), reddit, discord)
	if err != nil {
		h.writeLinkError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, linkResponse{
		UserID:     result.Link.UserID,
		RedditName: result.Link.RedditName,
		Created:    result.Created,
	})
}

// UnlinkHandler removes one of the session's Discord user's links. The Reddit
// account is named by the reddit_name form value.
func (h *LinkHandlers) UnlinkHandler(w http.ResponseWriter, r *http.Request) {
	sess, err := h.sessions.Load(r)
	if err != nil {
		h.logger.Error("failed to load session", zap.Error(err))
		h.writeJSON(w, http.StatusInternalServerError, linkResponse{Error: "internal error"})
		return
	}

	var discord *models.DiscordUser
	if sess.Data.Authenticated(models.ProviderDiscord) {
		discord = sess.Data.DiscordUser
	}

	redditName := r.PostFormValue("reddit_name")
	if err := h.linker.Unlink(r.Context(), discord, redditName); err != nil {
		h.writeLinkError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, linkResponse{
		UserID:     discord.ID,
		RedditName: redditName,
		Removed:    true,
	})
}

// writeLinkError maps linking errors to HTTP responses
func (h *LinkHandlers) writeLinkError(w http.ResponseWriter, err error) {
	var unauthErr *linking.UnauthenticatedError
	if errors.As(err, &unauthErr) {
		h.logger.Info("link rejected", zap.String("missing_provider", string(unauthErr.Provider)))
		h.writeJSON(w, http.StatusUnauthorized, linkResponse{
			Error:    unauthErr.Error(),
			Provider: string(unauthErr.Provider),
		})
		return
	}
	if errors.Is(err, linking.ErrNotLinked) {
		h.writeJSON(w, http.StatusNotFound, linkResponse{Error: err.Error()})
		return
	}

	h.logger.Error("failed to link accounts", zap.Error(err))
	h.writeJSON(w, http.StatusInternalServerError, linkResponse{Error: "internal error"})
}

func (h *LinkHandlers) writeJSON(w http.ResponseWriter, status int, body linkResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("failed to write response", zap.Error(err))
	}
}
