package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/vinyl/internal/metrics"
	"github.com/desertthunder/vinyl/internal/models"
	"github.com/desertthunder/vinyl/internal/session"
)

// Session is the facade surface the JSON API drives. [*session.Facade] implements it.
type Session interface {
	CallbackCompleter
	Login(ctx context.Context) (string, error)
	Logout()
	IsLoggedIn() bool
	InitializePlayer(ctx context.Context, onState func(models.PlaybackState)) (bool, error)
	GetUserPlaylists(ctx context.Context) ([]models.Playlist, error)
	PlayPlaylist(ctx context.Context, id string) error
	TogglePlayback(ctx context.Context) error
	NextTrack(ctx context.Context) error
	PreviousTrack(ctx context.Context) error
	SetVolume(ctx context.Context, volume float64) error
	ToggleMute(ctx context.Context) bool
	Muted() bool
	Volume() float64
	PlaybackState() models.PlaybackState
	DeviceID() string
}

// Status is the body of GET /api/status.
type Status struct {
	LoggedIn bool    `json:"logged_in"`
	DeviceID string  `json:"device_id,omitempty"`
	Ready    bool    `json:"ready"`
	Muted    bool    `json:"muted"`
	Volume   float64 `json:"volume"`
}

// ErrorBody is the JSON body of every failed API call.
type ErrorBody struct {
	Error string       `json:"error"`
	Kind  session.Kind `json:"kind"`
}

// SessionHandler serves the JSON API over a [Session].
type SessionHandler struct {
	session  Session
	callback *OAuthHandler
	logger   *log.Logger
}

// NewSessionHandler creates the API handler. callback, when set, is re-armed on every GET /login.
func NewSessionHandler(s Session, callback *OAuthHandler, logger *log.Logger) *SessionHandler {
	if logger == nil {
		logger = log.Default()
	}
	return &SessionHandler{session: s, callback: callback, logger: logger.With("component", "api")}
}

// Register adds the login and /api routes to r.
func (h *SessionHandler) Register(r *BasicRouter) {
	r.HandleFunc(http.MethodGet, "/login", h.login)
	r.HandleFunc(http.MethodPost, "/logout", h.logout)
	r.HandleFunc(http.MethodGet, "/api/status", h.status)
	r.HandleFunc(http.MethodGet, "/api/playlists", h.playlists)
	r.HandleFunc(http.MethodPost, "/api/player/init", h.initPlayer)
	r.HandleFunc(http.MethodPost, "/api/play/{id}", h.play)
	r.HandleFunc(http.MethodPost, "/api/toggle", h.command(h.session.TogglePlayback))
	r.HandleFunc(http.MethodPost, "/api/next", h.command(h.session.NextTrack))
	r.HandleFunc(http.MethodPost, "/api/previous", h.command(h.session.PreviousTrack))
	r.HandleFunc(http.MethodPost, "/api/volume", h.volume)
	r.HandleFunc(http.MethodPost, "/api/mute", h.mute)
	r.HandleFunc(http.MethodGet, "/api/state", h.state)
}

func (h *SessionHandler) login(w http.ResponseWriter, r *http.Request) {
	if h.callback != nil {
		h.callback.Reset()
	}
	u, err := h.session.Login(r.Context())
	if u == "" {
		h.fail(w, r, err)
		return
	}
	http.Redirect(w, r, u, http.StatusFound)
}

func (h *SessionHandler) logout(w http.ResponseWriter, r *http.Request) {
	h.session.Logout()
	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionHandler) status(w http.ResponseWriter, r *http.Request) {
	id := h.session.DeviceID()
	writeJSON(w, http.StatusOK, Status{
		LoggedIn: h.session.IsLoggedIn(),
		DeviceID: id,
		Ready:    id != "",
		Muted:    h.session.Muted(),
		Volume:   h.session.Volume(),
	})
}

func (h *SessionHandler) playlists(w http.ResponseWriter, r *http.Request) {
	playlists, err := h.session.GetUserPlaylists(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, playlists)
}

func (h *SessionHandler) initPlayer(w http.ResponseWriter, r *http.Request) {
	ready, err := h.session.InitializePlayer(r.Context(), nil)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ready": ready, "device_id": h.session.DeviceID()})
}

func (h *SessionHandler) play(w http.ResponseWriter, r *http.Request) {
	if err := h.session.PlayPlaylist(r.Context(), r.PathValue("id")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionHandler) command(fn func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := fn(r.Context()); err != nil {
			h.fail(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (h *SessionHandler) volume(w http.ResponseWriter, r *http.Request) {
	v, err := strconv.ParseFloat(r.URL.Query().Get("value"), 64)
	if err != nil || v < 0 || v > 1 {
		writeJSON(w, http.StatusBadRequest, ErrorBody{Error: "value must be a number between 0 and 1"})
		return
	}
	if err := h.session.SetVolume(r.Context(), v); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionHandler) mute(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"muted": h.session.ToggleMute(r.Context())})
}

func (h *SessionHandler) state(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.session.PlaybackState())
}

func (h *SessionHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	var serr *session.Error
	if !errors.As(session.Classify(err), &serr) {
		serr = &session.Error{Kind: session.Unknown, Message: "unknown error"}
	}
	status := StatusFor(serr.Kind)
	h.logger.Warn("request failed", "id", RequestID(r.Context()), "path", r.URL.Path, "kind", serr.Kind, "error", err)
	writeJSON(w, status, ErrorBody{Error: serr.Message, Kind: serr.Kind})
}

// StatusFor maps an error kind to the HTTP status the API answers with.
func StatusFor(kind session.Kind) int {
	switch kind {
	case session.AuthExpired, session.AuthRejected:
		return http.StatusUnauthorized
	case session.PremiumRequired:
		return http.StatusForbidden
	case session.ContentUnavailable:
		return http.StatusNotFound
	case session.InitializationTimeout:
		return http.StatusGatewayTimeout
	case session.DeviceNotReady:
		return http.StatusConflict
	case session.TransientProviderFault:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// Options configure [New].
type Options struct {
	Session     Session
	RedirectURI string
	Metrics     *metrics.Recorder
	Logger      *log.Logger
}

// New builds the router for `vinyl serve`: the OAuth callback, the JSON API, /healthz and /metrics.
func New(opts Options) (*BasicRouter, *OAuthHandler, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	oauth, err := NewOAuthHandler(opts.Session, opts.RedirectURI)
	if err != nil {
		return nil, nil, err
	}

	router := NewBasicRouter()
	router.Use(Recover(logger), Logging(logger))
	router.Handler(oauth)
	NewSessionHandler(opts.Session, oauth, logger).Register(router)
	router.HandleFunc(http.MethodGet, "/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	router.Handle(http.MethodGet, "/metrics", opts.Metrics.Handler())

	return router, oauth, nil
}
