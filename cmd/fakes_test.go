package main

import (
	"context"
	"errors"
	"io"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/vinyl/internal/auth"
	"github.com/desertthunder/vinyl/internal/metrics"
	"github.com/desertthunder/vinyl/internal/models"
	"github.com/desertthunder/vinyl/internal/player"
	"github.com/desertthunder/vinyl/internal/services"
	"github.com/desertthunder/vinyl/internal/session"
	"github.com/desertthunder/vinyl/internal/shared"
	"github.com/desertthunder/vinyl/internal/storage"
	"github.com/desertthunder/vinyl/internal/tokens"
)

type fakeAPI struct {
	playlists []models.Playlist
	saved     []models.Track
	playErr   error

	mu    sync.Mutex
	plays []services.PlayRequest
}

func (f *fakeAPI) Playlists(context.Context) ([]models.Playlist, error) { return f.playlists, nil }

func (f *fakeAPI) SavedTracks(context.Context, int) ([]models.Track, int, error) {
	return f.saved, len(f.saved), nil
}

func (f *fakeAPI) Play(_ context.Context, _ string, req services.PlayRequest) error {
	f.mu.Lock()
	f.plays = append(f.plays, req)
	f.mu.Unlock()
	return f.playErr
}

func (f *fakeAPI) Queue(context.Context) ([]models.Track, error) { return nil, nil }

type fakePlayer struct {
	mu      sync.Mutex
	device  string
	initErr error
	calls   []string
	volume  float64
	state   models.PlaybackState
}

func (f *fakePlayer) Initialize(context.Context, player.TokenFunc, func(models.PlaybackState)) (bool, error) {
	if f.initErr != nil {
		return false, f.initErr
	}
	return f.device != "", nil
}

func (f *fakePlayer) record(op string) error {
	f.mu.Lock()
	f.calls = append(f.calls, op)
	f.mu.Unlock()
	return nil
}

func (f *fakePlayer) Disconnect() {}

func (f *fakePlayer) DeviceID() string                    { return f.device }
func (f *fakePlayer) State() models.PlaybackState         { return f.state }
func (f *fakePlayer) TogglePlay(context.Context) error    { return f.record("toggle") }
func (f *fakePlayer) NextTrack(context.Context) error     { return f.record("next") }
func (f *fakePlayer) PreviousTrack(context.Context) error { return f.record("previous") }

func (f *fakePlayer) SetVolume(_ context.Context, v float64) error {
	f.mu.Lock()
	f.volume = v
	f.mu.Unlock()
	return nil
}

// fakeAuth completes any callback whose state matches the last login.
type fakeAuth struct {
	store    *tokens.Store
	navigate auth.Navigator
	state    string
}

func (f *fakeAuth) BeginLogin(ctx context.Context) (string, error) {
	f.state = "state-" + time.Now().Format("150405.000000")
	u := "https://accounts.example.com/authorize?state=" + url.QueryEscape(f.state)
	if f.navigate != nil {
		if err := f.navigate(u); err != nil {
			return u, err
		}
	}
	return u, nil
}

func (f *fakeAuth) CompleteCallback(_ context.Context, q url.Values) (*tokens.TokenSet, error) {
	if q.Get("state") != f.state {
		return nil, auth.ErrStateMismatch
	}
	ts := tokens.TokenSet{AccessToken: "access", RefreshToken: "refresh", ExpiresAt: time.Now().Add(time.Hour)}
	return &ts, f.store.Save(ts)
}

func (f *fakeAuth) Reset() {}

func (f *fakeAuth) Refresh(context.Context, *tokens.TokenSet) (*tokens.TokenSet, error) {
	return nil, errors.New("refresh unavailable")
}

type harness struct {
	api    *fakeAPI
	player *fakePlayer
	auth   *fakeAuth
	store  *tokens.Store
	builds int
}

func newHarness() *harness {
	return &harness{
		api:    &fakeAPI{},
		player: &fakePlayer{device: "dev-1"},
	}
}

func (h *harness) build(cfg *shared.Config, logger *log.Logger, navigate auth.Navigator) (*App, error) {
	h.builds++
	if h.store == nil {
		h.store = tokens.NewStore(storage.NewMemoryStore(), storage.NewMemoryStore(), logger)
	}
	h.auth = &fakeAuth{store: h.store, navigate: navigate}
	facade := session.New(session.Deps{
		Tokens: h.store,
		Auth:   h.auth,
		API:    h.api,
		Player: h.player,
		Volume: cfg.Player.Volume,
		Logger: logger,
	})
	return &App{Session: facade, Tokens: h.store, Metrics: metrics.New()}, nil
}

func (h *harness) login(t *testing.T) {
	t.Helper()
	if h.store == nil {
		h.store = tokens.NewStore(storage.NewMemoryStore(), storage.NewMemoryStore(), log.New(io.Discard))
	}
	if err := h.store.Save(tokens.TokenSet{AccessToken: "access", RefreshToken: "refresh", ExpiresAt: time.Now().Add(time.Hour)}); err != nil {
		t.Fatalf("save failed: %v", err)
	}
}
