// Package session is the single entry point UI surfaces use for login, browsing and playback.
//
// A [Facade] composes the token store, the auth controller, the Web API client and the player
// adapter. It classifies every failure it returns into a [*Error] and keeps two in-memory caches:
// track metadata by URI (a bounded LRU) and the playlists loaded after the player became ready.
package session

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/vinyl/internal/models"
	"github.com/desertthunder/vinyl/internal/player"
	"github.com/desertthunder/vinyl/internal/services"
	"github.com/desertthunder/vinyl/internal/shared"
	"github.com/desertthunder/vinyl/internal/tokens"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"
)

// DefaultCacheSize bounds the track metadata cache when none is configured.
const DefaultCacheSize = 4096

// backgroundTimeout bounds fire-and-forget work such as queue preloads.
const backgroundTimeout = 30 * time.Second

// API is the Web API surface the facade uses. [*services.Client] implements it.
type API interface {
	Playlists(ctx context.Context) ([]models.Playlist, error)
	SavedTracks(ctx context.Context, limit int) ([]models.Track, int, error)
	Play(ctx context.Context, deviceID string, req services.PlayRequest) error
	Queue(ctx context.Context) ([]models.Track, error)
}

// Player is the playback adapter. [*player.Adapter] implements it.
type Player interface {
	Initialize(ctx context.Context, token player.TokenFunc, onState func(models.PlaybackState)) (bool, error)
	Disconnect()
	DeviceID() string
	State() models.PlaybackState
	TogglePlay(ctx context.Context) error
	NextTrack(ctx context.Context) error
	PreviousTrack(ctx context.Context) error
	SetVolume(ctx context.Context, volume float64) error
}

// Authenticator runs the login flow. [*auth.Controller] implements it.
type Authenticator interface {
	Refresher
	BeginLogin(ctx context.Context) (string, error)
	CompleteCallback(ctx context.Context, query url.Values) (*tokens.TokenSet, error)
	Reset()
}

// Deps are the collaborators of a [Facade].
type Deps struct {
	Tokens      *tokens.Store
	Credentials *Credentials
	Auth        Authenticator
	API         API
	Player      Player
	CacheSize   int
	Volume      float64 // initial intended volume, 0 to 1
	Logger      *log.Logger
}

// Facade is the session API.
type Facade struct {
	tokens *tokens.Store
	creds  *Credentials
	auth   Authenticator
	api    API
	player Player
	cache  *lru.Cache[string, models.Track]
	logger *log.Logger
	now    func() time.Time
	wg     sync.WaitGroup

	mu        sync.Mutex
	playlists []models.Playlist
	volume    float64
	restore   float64
	muted     bool
}

// New creates a [Facade]. A nil Credentials is built from Tokens and Auth.
func New(deps Deps) *Facade {
	logger := deps.Logger
	if logger == nil {
		logger = log.Default()
	}

	size := deps.CacheSize
	if size <= 0 {
		size = DefaultCacheSize
	}
	// lru.New only fails for a non-positive size.
	cache, _ := lru.New[string, models.Track](size)

	creds := deps.Credentials
	if creds == nil {
		creds = NewCredentials(deps.Tokens, deps.Auth, logger)
	}

	volume := deps.Volume
	if volume <= 0 || volume > 1 {
		volume = 0.5
	}

	return &Facade{
		tokens: deps.Tokens,
		creds:  creds,
		auth:   deps.Auth,
		api:    deps.API,
		player: deps.Player,
		cache:  cache,
		logger: shared.WithLogger(logger, "component", "session"),
		now:    time.Now,
		volume: volume,
	}
}

// Login starts a PKCE login and returns the authorization URL.
//
// The URL is returned alongside a navigation error so the caller can show it instead.
func (f *Facade) Login(ctx context.Context) (string, error) {
	u, err := f.auth.BeginLogin(ctx)
	return u, Classify(err)
}

// CompleteLogin finishes a login from the provider's redirect query.
func (f *Facade) CompleteLogin(ctx context.Context, query url.Values) error {
	if _, err := f.auth.CompleteCallback(ctx, query); err != nil {
		return &Error{Kind: AuthRejected, Message: err.Error(), Err: err}
	}
	return nil
}

// Logout disconnects the player, forgets tokens and caches, and forces the consent dialog on
// the next login.
func (f *Facade) Logout() {
	f.player.Disconnect()
	f.tokens.Clear()
	f.tokens.SetForceDialog()
	f.auth.Reset()
	f.cache.Purge()

	f.mu.Lock()
	f.playlists = nil
	f.muted = false
	f.mu.Unlock()

	f.logger.Info("logged out")
}

// IsLoggedIn reports whether a non-expired token set is stored.
func (f *Facade) IsLoggedIn() bool {
	ts := f.tokens.Load()
	return ts != nil && ts.Valid(f.now())
}

// AccessToken returns a valid access token, refreshing if needed.
func (f *Facade) AccessToken(ctx context.Context) (string, error) {
	return f.creds.Token(ctx)
}

// InitializePlayer brings the player up and, once ready, loads playlists in the background.
//
// An expired session is refreshed first. When that is impossible the tokens are cleared, a new
// login is started, and false is returned with an [AuthExpired] error.
func (f *Facade) InitializePlayer(ctx context.Context, onState func(models.PlaybackState)) (bool, error) {
	if !f.IsLoggedIn() {
		ts := f.tokens.Load()
		if !ts.HasRefreshToken() {
			return false, f.relogin(ctx, &Error{Kind: AuthExpired, Message: "not logged in"})
		}
		if _, err := f.auth.Refresh(ctx, ts); err != nil {
			f.logger.Warn("refresh before player init failed", "error", err)
			return false, f.relogin(ctx, &Error{Kind: AuthExpired, Message: "session expired", Err: err})
		}
	}

	ready, err := f.player.Initialize(ctx, f.creds.PlayerToken(), onState)
	if err != nil {
		cerr := Classify(err)
		if KindOf(cerr) == AuthRejected {
			f.creds.Invalidate()
		}
		return false, cerr
	}

	if ready {
		f.background(func(ctx context.Context) {
			if _, err := f.loadPlaylists(ctx); err != nil {
				f.logger.Warn("background playlist load failed", "error", err)
			}
		})
	}
	return ready, nil
}

func (f *Facade) relogin(ctx context.Context, cause *Error) error {
	f.tokens.Clear()
	if _, err := f.Login(ctx); err != nil {
		f.logger.Warn("failed to start login", "error", err)
	}
	return cause
}

// Playlists returns the playlists loaded after the player became ready.
func (f *Facade) Playlists() []models.Playlist {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Playlist(nil), f.playlists...)
}

// GetUserPlaylists fetches the user's playlists with Liked Songs prepended.
//
// Liked Songs is present only when the saved-tracks fetch succeeds. A 401 from either call
// clears the session and yields an empty slice with no error.
func (f *Facade) GetUserPlaylists(ctx context.Context) ([]models.Playlist, error) {
	return f.loadPlaylists(ctx)
}

func (f *Facade) loadPlaylists(ctx context.Context) ([]models.Playlist, error) {
	var (
		playlists []models.Playlist
		saved     []models.Track
		total     int
		savedErr  error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		playlists, err = f.api.Playlists(gctx)
		return err
	})
	g.Go(func() error {
		saved, total, savedErr = f.api.SavedTracks(gctx, services.PageLimit)
		return nil
	})

	if err := g.Wait(); err != nil {
		if services.IsUnauthorized(err) {
			f.creds.Invalidate()
			return []models.Playlist{}, nil
		}
		return nil, Classify(err)
	}
	if services.IsUnauthorized(savedErr) {
		f.creds.Invalidate()
		return []models.Playlist{}, nil
	}

	out := make([]models.Playlist, 0, len(playlists)+1)
	if savedErr == nil {
		f.remember(saved)
		var images []models.Image
		if len(saved) > 0 {
			images = saved[0].Images
		}
		out = append(out, models.NewLikedSongs(total, images))
	} else {
		f.logger.Warn("saved tracks unavailable, omitting Liked Songs", "error", savedErr)
	}
	out = append(out, playlists...)

	f.mu.Lock()
	f.playlists = out
	f.mu.Unlock()
	return out, nil
}

// PlayPlaylist starts playback of id on the ready device.
//
// Liked Songs plays up to 50 saved tracks as an explicit URI list; an empty library sends
// nothing. Other ids play as a playlist context. After a successful start the queue is
// preloaded into the metadata cache in the background.
func (f *Facade) PlayPlaylist(ctx context.Context, id string) error {
	deviceID := f.player.DeviceID()
	if deviceID == "" {
		return &Error{Kind: DeviceNotReady, Message: "no playback device is ready"}
	}

	var req services.PlayRequest
	if id == models.LikedSongsID {
		tracks, _, err := f.api.SavedTracks(ctx, services.PageLimit)
		if err != nil {
			return f.fail(err)
		}
		if len(tracks) == 0 {
			f.logger.Info("no saved tracks to play")
			return nil
		}
		f.remember(tracks)
		for _, t := range tracks {
			req.URIs = append(req.URIs, t.URI)
		}
	} else {
		req.ContextURI = contextURI(id)
	}

	if err := f.api.Play(ctx, deviceID, req); err != nil {
		return f.fail(err)
	}

	f.background(f.preloadQueue)
	return nil
}

func contextURI(id string) string {
	if strings.HasPrefix(id, "spotify:") {
		return id
	}
	return models.PlaylistURI(id)
}

func (f *Facade) preloadQueue(ctx context.Context) {
	tracks, err := f.api.Queue(ctx)
	if err != nil {
		f.logger.Debug("queue preload failed", "error", err)
		return
	}
	f.remember(tracks)
	f.logger.Debug("queue preloaded", "tracks", len(tracks))
}

// fail classifies err and clears the session on a 401.
func (f *Facade) fail(err error) error {
	cerr := Classify(err)
	if services.IsUnauthorized(err) {
		f.creds.Invalidate()
	}
	return cerr
}

func (f *Facade) TogglePlayback(ctx context.Context) error {
	return f.fail(f.player.TogglePlay(ctx))
}

func (f *Facade) NextTrack(ctx context.Context) error {
	return f.fail(f.player.NextTrack(ctx))
}

func (f *Facade) PreviousTrack(ctx context.Context) error {
	return f.fail(f.player.PreviousTrack(ctx))
}

// SetVolume sets the intended volume and applies it to the player.
func (f *Facade) SetVolume(ctx context.Context, volume float64) error {
	volume = max(0, min(1, volume))

	f.mu.Lock()
	f.volume = volume
	f.muted = volume == 0
	f.mu.Unlock()

	return f.fail(f.player.SetVolume(ctx, volume))
}

// ToggleMute flips the intended mute state at once and applies it to the player in the
// background. It returns the new mute state.
func (f *Facade) ToggleMute(ctx context.Context) bool {
	f.mu.Lock()
	var target float64
	if f.muted {
		f.muted = false
		target = f.restore
		if target == 0 {
			target = 0.5
		}
		f.volume = target
	} else {
		f.muted = true
		f.restore = f.volume
		target = 0
	}
	muted := f.muted
	f.mu.Unlock()

	f.background(func(bg context.Context) {
		if err := f.player.SetVolume(bg, target); err != nil {
			f.logger.Warn("failed to apply mute", "muted", muted, "error", err)
		}
	})
	return muted
}

// Muted reports the intended mute state.
func (f *Facade) Muted() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.muted
}

// Volume reports the intended volume.
func (f *Facade) Volume() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.muted {
		return 0
	}
	return f.volume
}

// Track returns cached metadata for uri.
func (f *Facade) Track(uri string) (models.Track, bool) {
	return f.cache.Get(uri)
}

func (f *Facade) PlaybackState() models.PlaybackState {
	return f.player.State()
}

func (f *Facade) DeviceID() string {
	return f.player.DeviceID()
}

// Wait blocks until background work started so far has finished.
func (f *Facade) Wait() {
	f.wg.Wait()
}

// Close disconnects the player and waits for background work.
func (f *Facade) Close() {
	f.player.Disconnect()
	f.Wait()
}

func (f *Facade) remember(tracks []models.Track) {
	for _, t := range tracks {
		if t.URI != "" {
			f.cache.Add(t.URI, t)
		}
	}
}

func (f *Facade) background(fn func(ctx context.Context)) {
	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), backgroundTimeout)
		defer cancel()
		fn(ctx)
	}()
}
