package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/vinyl/internal/metrics"
	"github.com/desertthunder/vinyl/internal/models"
	"github.com/desertthunder/vinyl/internal/player"
	"github.com/desertthunder/vinyl/internal/services"
	"github.com/desertthunder/vinyl/internal/session"
	tu "github.com/desertthunder/vinyl/internal/testing"
)

type fakeSession struct {
	mu sync.Mutex

	loggedIn    bool
	loginURL    string
	loginErr    error
	callbackErr error
	callbacks   []url.Values
	playlists   []models.Playlist
	err         error
	ready       bool
	played      string
	volume      float64
	muted       bool
	commands    []string
	loggedOut   bool
}

func (f *fakeSession) CompleteLogin(_ context.Context, q url.Values) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.callbacks = append(f.callbacks, q)
	return f.callbackErr
}

func (f *fakeSession) Login(context.Context) (string, error) { return f.loginURL, f.loginErr }
func (f *fakeSession) Logout()                               { f.loggedOut = true }
func (f *fakeSession) IsLoggedIn() bool                      { return f.loggedIn }

func (f *fakeSession) InitializePlayer(context.Context, func(models.PlaybackState)) (bool, error) {
	return f.ready, f.err
}

func (f *fakeSession) GetUserPlaylists(context.Context) ([]models.Playlist, error) {
	return f.playlists, f.err
}

func (f *fakeSession) PlayPlaylist(_ context.Context, id string) error {
	f.played = id
	return f.err
}

func (f *fakeSession) record(name string) error {
	f.commands = append(f.commands, name)
	return f.err
}

func (f *fakeSession) TogglePlayback(context.Context) error { return f.record("toggle") }
func (f *fakeSession) NextTrack(context.Context) error      { return f.record("next") }
func (f *fakeSession) PreviousTrack(context.Context) error  { return f.record("previous") }

func (f *fakeSession) SetVolume(_ context.Context, v float64) error {
	f.volume = v
	return f.err
}

func (f *fakeSession) ToggleMute(context.Context) bool {
	f.muted = !f.muted
	return f.muted
}

func (f *fakeSession) Muted() bool      { return f.muted }
func (f *fakeSession) Volume() float64  { return f.volume }
func (f *fakeSession) DeviceID() string { return map[bool]string{true: "dev-1"}[f.ready] }

func (f *fakeSession) PlaybackState() models.PlaybackState {
	return models.PlaybackState{TrackName: "Song", TrackArtist: "Artist", Paused: true}
}

func newTestRouter(t *testing.T, s *fakeSession) (*BasicRouter, *OAuthHandler) {
	t.Helper()
	logger, _ := tu.NewLogger(t)
	router, oauth, err := New(Options{
		Session:     s,
		RedirectURI: "http://127.0.0.1:3000/callback",
		Metrics:     metrics.New(),
		Logger:      logger,
	})
	if err != nil {
		t.Fatalf("failed to build router: %v", err)
	}
	return router, oauth
}

func do(router http.Handler, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorBody {
	t.Helper()
	var body ErrorBody
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	return body
}

func TestSessionHandler(t *testing.T) {
	t.Run("Login Redirects", func(t *testing.T) {
		s := &fakeSession{loginURL: "https://accounts.example.com/authorize?state=x"}
		router, _ := newTestRouter(t, s)

		rec := do(router, http.MethodGet, "/login")
		if rec.Code != http.StatusFound {
			t.Fatalf("expected 302, got %d", rec.Code)
		}
		if rec.Header().Get("Location") != s.loginURL {
			t.Errorf("unexpected location %q", rec.Header().Get("Location"))
		}
	})

	t.Run("Login Failure", func(t *testing.T) {
		s := &fakeSession{loginErr: errors.New("no entropy")}
		router, _ := newTestRouter(t, s)

		rec := do(router, http.MethodGet, "/login")
		if rec.Code != http.StatusInternalServerError {
			t.Errorf("expected 500, got %d", rec.Code)
		}
	})

	t.Run("Logout", func(t *testing.T) {
		s := &fakeSession{}
		router, _ := newTestRouter(t, s)
		if rec := do(router, http.MethodPost, "/logout"); rec.Code != http.StatusNoContent {
			t.Errorf("expected 204, got %d", rec.Code)
		}
		if !s.loggedOut {
			t.Error("expected logout")
		}
	})

	t.Run("Status", func(t *testing.T) {
		s := &fakeSession{loggedIn: true, ready: true, volume: 0.4}
		router, _ := newTestRouter(t, s)

		rec := do(router, http.MethodGet, "/api/status")
		var got Status
		json.NewDecoder(rec.Body).Decode(&got)
		want := Status{LoggedIn: true, DeviceID: "dev-1", Ready: true, Volume: 0.4}
		if got != want {
			t.Errorf("expected %+v, got %+v", want, got)
		}
	})

	t.Run("Playlists", func(t *testing.T) {
		s := &fakeSession{playlists: []models.Playlist{models.NewLikedSongs(2, nil), {ID: "p1", Name: "Focus"}}}
		router, _ := newTestRouter(t, s)

		rec := do(router, http.MethodGet, "/api/playlists")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		var got []map[string]any
		json.NewDecoder(rec.Body).Decode(&got)
		if len(got) != 2 || got[0]["type"] != string(models.KindLikedSongs) {
			t.Errorf("unexpected playlists %v", got)
		}
	})

	t.Run("Play", func(t *testing.T) {
		s := &fakeSession{}
		router, _ := newTestRouter(t, s)
		if rec := do(router, http.MethodPost, "/api/play/liked-songs"); rec.Code != http.StatusNoContent {
			t.Errorf("expected 204, got %d", rec.Code)
		}
		if s.played != models.LikedSongsID {
			t.Errorf("expected liked-songs played, got %q", s.played)
		}
	})

	t.Run("Transport", func(t *testing.T) {
		s := &fakeSession{}
		router, _ := newTestRouter(t, s)
		for _, path := range []string{"/api/toggle", "/api/next", "/api/previous"} {
			if rec := do(router, http.MethodPost, path); rec.Code != http.StatusNoContent {
				t.Errorf("%s: expected 204, got %d", path, rec.Code)
			}
		}
		if strings.Join(s.commands, ",") != "toggle,next,previous" {
			t.Errorf("unexpected commands %v", s.commands)
		}
	})

	t.Run("Volume", func(t *testing.T) {
		s := &fakeSession{}
		router, _ := newTestRouter(t, s)

		if rec := do(router, http.MethodPost, "/api/volume?value=0.25"); rec.Code != http.StatusNoContent {
			t.Errorf("expected 204, got %d", rec.Code)
		}
		if s.volume != 0.25 {
			t.Errorf("expected 0.25, got %v", s.volume)
		}

		for _, bad := range []string{"", "loud", "1.5", "-0.1"} {
			if rec := do(router, http.MethodPost, "/api/volume?value="+bad); rec.Code != http.StatusBadRequest {
				t.Errorf("value %q: expected 400, got %d", bad, rec.Code)
			}
		}
	})

	t.Run("Mute And State", func(t *testing.T) {
		s := &fakeSession{}
		router, _ := newTestRouter(t, s)

		rec := do(router, http.MethodPost, "/api/mute")
		if !strings.Contains(rec.Body.String(), `"muted":true`) {
			t.Errorf("unexpected mute body %q", rec.Body.String())
		}

		rec = do(router, http.MethodGet, "/api/state")
		var st models.PlaybackState
		json.NewDecoder(rec.Body).Decode(&st)
		if st.TrackName != "Song" || !st.Paused {
			t.Errorf("unexpected state %+v", st)
		}
	})

	t.Run("Init Player", func(t *testing.T) {
		s := &fakeSession{ready: true}
		router, _ := newTestRouter(t, s)
		rec := do(router, http.MethodPost, "/api/player/init")
		if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ready":true`) {
			t.Errorf("unexpected response %d %q", rec.Code, rec.Body.String())
		}
	})

	t.Run("Error Mapping", func(t *testing.T) {
		tests := []struct {
			name   string
			err    error
			path   string
			status int
			kind   session.Kind
		}{
			{"Premium", &services.Error{Status: 403, Message: "Premium required"}, "/api/play/p1", 403, session.PremiumRequired},
			{"Missing", &services.Error{Status: 404}, "/api/play/p1", 404, session.ContentUnavailable},
			{"Unauthorized", &services.Error{Status: 401}, "/api/playlists", 401, session.AuthRejected},
			{"Expired", &session.Error{Kind: session.AuthExpired, Message: "not logged in"}, "/api/player/init", 401, session.AuthExpired},
			{"Init Timeout", player.ErrInitTimeout, "/api/player/init", 504, session.InitializationTimeout},
			{"No Device", player.ErrNotConnected, "/api/next", 409, session.DeviceNotReady},
			{"Upstream", &services.Error{Status: 502}, "/api/toggle", 502, session.TransientProviderFault},
			{"Other", errors.New("boom"), "/api/previous", 500, session.Unknown},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				s := &fakeSession{err: tt.err}
				router, _ := newTestRouter(t, s)

				method := http.MethodPost
				if tt.path == "/api/playlists" {
					method = http.MethodGet
				}
				rec := do(router, method, tt.path)
				if rec.Code != tt.status {
					t.Errorf("expected %d, got %d", tt.status, rec.Code)
				}
				if body := decodeError(t, rec); body.Kind != tt.kind || body.Error == "" {
					t.Errorf("unexpected body %+v", body)
				}
			})
		}
	})

	t.Run("Health And Metrics", func(t *testing.T) {
		router, _ := newTestRouter(t, &fakeSession{})
		if rec := do(router, http.MethodGet, "/healthz"); rec.Code != http.StatusOK {
			t.Errorf("expected 200, got %d", rec.Code)
		}
		rec := do(router, http.MethodGet, "/metrics")
		if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "vinyl_") {
			t.Errorf("expected metrics exposition, got %d", rec.Code)
		}
	})
}

func TestOAuthHandler(t *testing.T) {
	t.Run("Invalid Redirect URI", func(t *testing.T) {
		if _, err := NewOAuthHandler(&fakeSession{}, "://bad"); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("Routes From Redirect URI", func(t *testing.T) {
		h, _ := NewOAuthHandler(&fakeSession{}, "http://127.0.0.1:8888/auth/done")
		if routes := h.Routes(); len(routes) != 1 || routes[0] != "/auth/done" {
			t.Errorf("unexpected routes %v", routes)
		}
	})

	t.Run("Success", func(t *testing.T) {
		s := &fakeSession{}
		router, oauth := newTestRouter(t, s)

		rec := do(router, http.MethodGet, "/callback?code=abc&state=xyz")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "Authorization Successful") {
			t.Error("expected success page")
		}

		select {
		case res := <-oauth.Result():
			if res.Err != nil {
				t.Errorf("unexpected error %v", res.Err)
			}
		case <-time.After(time.Second):
			t.Fatal("expected a result")
		}
		if got := s.callbacks[0].Get("code"); got != "abc" {
			t.Errorf("expected query passed through, got %q", got)
		}
	})

	t.Run("Failure", func(t *testing.T) {
		s := &fakeSession{callbackErr: errors.New("state mismatch <script>")}
		router, oauth := newTestRouter(t, s)

		rec := do(router, http.MethodGet, "/callback?code=abc&state=forged")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
		if strings.Contains(rec.Body.String(), "<script>") {
			t.Error("error message must be escaped")
		}
		if res := <-oauth.Result(); res.Err == nil {
			t.Error("expected error result")
		}
	})

	t.Run("Only First Callback", func(t *testing.T) {
		s := &fakeSession{}
		router, oauth := newTestRouter(t, s)

		do(router, http.MethodGet, "/callback?code=a&state=s")
		rec := do(router, http.MethodGet, "/callback?code=b&state=s")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400 for replay, got %d", rec.Code)
		}
		if len(s.callbacks) != 1 {
			t.Errorf("expected one completion, got %d", len(s.callbacks))
		}

		<-oauth.Result()
		if _, ok := <-oauth.Result(); ok {
			t.Error("expected channel closed after one result")
		}
	})

	t.Run("Login Rearms", func(t *testing.T) {
		s := &fakeSession{loginURL: "https://accounts.example.com/authorize"}
		router, oauth := newTestRouter(t, s)

		do(router, http.MethodGet, "/callback?code=a&state=s")
		<-oauth.Result()

		do(router, http.MethodGet, "/login")
		if rec := do(router, http.MethodGet, "/callback?code=b&state=s"); rec.Code != http.StatusOK {
			t.Errorf("expected second login callback processed, got %d", rec.Code)
		}
		if res := <-oauth.Result(); res.Err != nil {
			t.Errorf("unexpected error %v", res.Err)
		}
	})

	t.Run("Send Once", func(t *testing.T) {
		h, _ := NewOAuthHandler(&fakeSession{}, "http://127.0.0.1:3000/callback")
		h.Send(OAuthResult{})
		h.Send(OAuthResult{Err: errors.New("late")})
		if res := <-h.Result(); res.Err != nil {
			t.Error("expected first result kept")
		}
	})
}
