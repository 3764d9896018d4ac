package services

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/vinyl/internal/metrics"
	"github.com/desertthunder/vinyl/internal/models"
	"github.com/zmb3/spotify/v2"
)

// DefaultBaseURL is the Spotify Web API root.
const DefaultBaseURL = "https://api.spotify.com/v1/"

// PageLimit is the page size for paged reads.
const PageLimit = 50

// Options configures a [Client].
type Options struct {
	BaseURL        string           // BaseURL defaults to [DefaultBaseURL]
	Transport      http.RoundTripper // Transport defaults to [http.DefaultTransport]
	Timeout        time.Duration
	Metrics        *metrics.Recorder
	Logger         *log.Logger
	OnUnauthorized func() // OnUnauthorized runs after any 401 response
}

// Client calls the Web API on behalf of one user.
type Client struct {
	api     *spotify.Client
	metrics *metrics.Recorder
	logger  *log.Logger
}

// NewClient creates a [Client] that authenticates every request with token.
func NewClient(token TokenFunc, opts Options) *Client {
	base := opts.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}

	basePath := "/"
	if u, err := url.Parse(base); err == nil {
		basePath = u.Path
	}

	rt := opts.Transport
	if rt == nil {
		rt = http.DefaultTransport
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}

	hc := &http.Client{
		Timeout: timeout,
		Transport: &bearerTransport{
			token: token,
			base: &statusTransport{
				basePath:       basePath,
				base:           rt,
				metrics:        opts.Metrics,
				onUnauthorized: opts.OnUnauthorized,
			},
		},
	}

	return &Client{
		api:     spotify.New(hc, spotify.WithBaseURL(base)),
		metrics: opts.Metrics,
		logger:  logger.With("component", "spotify"),
	}
}

// Playlists returns every playlist in the user's library, reading pages of [PageLimit].
func (c *Client) Playlists(ctx context.Context) ([]models.Playlist, error) {
	var playlists []models.Playlist
	for offset := 0; ; offset += PageLimit {
		page, err := c.api.CurrentUsersPlaylists(ctx, spotify.Limit(PageLimit), spotify.Offset(offset))
		if err != nil {
			return nil, wrap(EndpointPlaylists, err)
		}

		for _, p := range page.Playlists {
			playlists = append(playlists, models.Playlist{
				ID:         string(p.ID),
				Name:       p.Name,
				Images:     images(p.Images),
				TrackCount: int(p.Tracks.Total),
				URI:        string(p.URI),
				Kind:       models.KindNormal,
			})
		}

		if page.Next == "" || len(page.Playlists) < PageLimit {
			break
		}
	}

	c.logger.Debug("fetched playlists", "count", len(playlists))
	return playlists, nil
}

// SavedTracks returns up to limit (at most [PageLimit]) of the user's saved tracks, newest first,
// together with the library's total size.
func (c *Client) SavedTracks(ctx context.Context, limit int) ([]models.Track, int, error) {
	if limit <= 0 || limit > PageLimit {
		limit = PageLimit
	}

	page, err := c.api.CurrentUsersTracks(ctx, spotify.Limit(limit))
	if err != nil {
		return nil, 0, wrap(EndpointTracks, err)
	}

	tracks := make([]models.Track, 0, len(page.Tracks))
	for _, st := range page.Tracks {
		tracks = append(tracks, track(st.FullTrack))
	}
	return tracks, int(page.Total), nil
}

// PlayRequest selects what to play. Exactly one of ContextURI or URIs should be set; neither resumes.
type PlayRequest struct {
	ContextURI string
	URIs       []string
}

// Play starts or resumes playback on deviceID.
func (c *Client) Play(ctx context.Context, deviceID string, req PlayRequest) error {
	opts := playOptions(deviceID)
	if req.ContextURI != "" {
		uri := spotify.URI(req.ContextURI)
		opts.PlaybackContext = &uri
	}
	for _, u := range req.URIs {
		opts.URIs = append(opts.URIs, spotify.URI(u))
	}
	return wrap(EndpointPlay, c.api.PlayOpt(ctx, opts))
}

func (c *Client) Pause(ctx context.Context, deviceID string) error {
	return wrap(EndpointPause, c.api.PauseOpt(ctx, playOptions(deviceID)))
}

func (c *Client) Next(ctx context.Context, deviceID string) error {
	return wrap(EndpointNext, c.api.NextOpt(ctx, playOptions(deviceID)))
}

func (c *Client) Previous(ctx context.Context, deviceID string) error {
	return wrap(EndpointPrevious, c.api.PreviousOpt(ctx, playOptions(deviceID)))
}

// SetVolume sets deviceID's volume to percent, clamped to 0-100.
func (c *Client) SetVolume(ctx context.Context, deviceID string, percent int) error {
	percent = max(0, min(100, percent))
	return wrap(EndpointVolume, c.api.VolumeOpt(ctx, percent, playOptions(deviceID)))
}

// Devices lists the user's Connect devices.
func (c *Client) Devices(ctx context.Context) ([]models.Device, error) {
	devices, err := c.api.PlayerDevices(ctx)
	if err != nil {
		return nil, wrap(EndpointDevices, err)
	}

	out := make([]models.Device, 0, len(devices))
	for _, d := range devices {
		out = append(out, models.Device{
			ID:     string(d.ID),
			Name:   d.Name,
			Active: d.Active,
			Volume: int(d.Volume),
		})
	}
	return out, nil
}

// PlaybackState returns the current playback state and the device it is on.
// The device ID is empty when nothing is playing anywhere.
func (c *Client) PlaybackState(ctx context.Context) (models.PlaybackState, models.Device, error) {
	st, err := c.api.PlayerState(ctx)
	if err != nil {
		return models.PlaybackState{}, models.Device{}, wrap(EndpointPlayer, err)
	}
	if st == nil {
		return models.PlaybackState{Paused: true}, models.Device{}, nil
	}

	state := models.PlaybackState{
		Paused:     !st.Playing,
		PositionMS: int(st.Progress),
		Volume:     int(st.Device.Volume),
	}
	if st.Item != nil {
		t := track(*st.Item)
		state.TrackName, state.TrackArtist, state.TrackURI = t.Name, t.Artist(), t.URI
	}

	device := models.Device{
		ID:     string(st.Device.ID),
		Name:   st.Device.Name,
		Active: st.Device.Active,
		Volume: int(st.Device.Volume),
	}
	return state, device, nil
}

// Queue returns the tracks queued after the current one.
//
// The queue is non-critical: transient failures are logged and yield an empty queue.
func (c *Client) Queue(ctx context.Context) ([]models.Track, error) {
	q, err := c.api.GetQueue(ctx)
	if err != nil {
		return nil, c.suppress(EndpointQueue, wrap(EndpointQueue, err))
	}

	tracks := make([]models.Track, 0, len(q.Items)+1)
	if q.CurrentlyPlaying.URI != "" {
		tracks = append(tracks, track(q.CurrentlyPlaying))
	}
	for _, item := range q.Items {
		tracks = append(tracks, track(item))
	}
	return tracks, nil
}

// suppress swallows transient faults on non-critical endpoints.
func (c *Client) suppress(endpoint string, err error) error {
	if err == nil || !IsNonCritical(endpoint) || !isTransient(err) {
		return err
	}
	c.logger.Warn("ignoring non-critical API failure", "endpoint", endpoint, "error", err)
	c.metrics.ObserveSuppressed(endpoint)
	return nil
}

func playOptions(deviceID string) *spotify.PlayOptions {
	opts := &spotify.PlayOptions{}
	if deviceID != "" {
		id := spotify.ID(deviceID)
		opts.DeviceID = &id
	}
	return opts
}

func track(t spotify.FullTrack) models.Track {
	artists := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		artists = append(artists, a.Name)
	}
	return models.Track{
		URI:      string(t.URI),
		Name:     t.Name,
		Artists:  artists,
		Album:    t.Album.Name,
		Images:   images(t.Album.Images),
		Duration: int(t.Duration),
	}
}

func images(in []spotify.Image) []models.Image {
	out := make([]models.Image, 0, len(in))
	for _, img := range in {
		out = append(out, models.Image{URL: img.URL, Width: int(img.Width), Height: int(img.Height)})
	}
	return out
}
