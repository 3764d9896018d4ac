package player

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/vinyl/internal/models"
	"github.com/desertthunder/vinyl/internal/services"
	"golang.org/x/time/rate"
)

// Remote is the slice of the Web API a Connect client needs. [*services.Client] implements it.
type Remote interface {
	Devices(ctx context.Context) ([]models.Device, error)
	PlaybackState(ctx context.Context) (models.PlaybackState, models.Device, error)
	Play(ctx context.Context, deviceID string, req services.PlayRequest) error
	Pause(ctx context.Context, deviceID string) error
	Next(ctx context.Context, deviceID string) error
	Previous(ctx context.Context, deviceID string) error
	SetVolume(ctx context.Context, deviceID string, percent int) error
}

// ConnectConfig configures clients built by [NewConnectFactory].
type ConnectConfig struct {
	PollInterval time.Duration
	Logger       *log.Logger
}

// NewConnectFactory returns a [Factory] whose clients attach to the Connect device named
// [Options.Name], or to the active device when the name is empty.
//
// remoteFor is called once per client with that client's token function.
func NewConnectFactory(remoteFor func(TokenFunc) Remote, cfg ConnectConfig) Factory {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}

	return func(opts Options) (Client, error) {
		if opts.Token == nil {
			return nil, errors.New("player: token function is required")
		}
		return &connectClient{
			remote:  remoteFor(opts.Token),
			token:   opts.Token,
			name:    opts.Name,
			volume:  opts.Volume,
			limiter: rate.NewLimiter(rate.Every(cfg.PollInterval), 1),
			logger:  cfg.Logger.With("component", "connect", "device", opts.Name),
			events:  make(chan Event, 16),
		}, nil
	}
}

type connectClient struct {
	remote  Remote
	token   TokenFunc
	name    string
	volume  float64
	limiter *rate.Limiter
	logger  *log.Logger
	events  chan Event

	mu        sync.Mutex
	cancel    context.CancelFunc
	closed    bool
	deviceID  string
	seen      bool // a device has been ready at least once
	state     models.PlaybackState
	hasState  bool
	lastFault EventType
}

func (c *connectClient) Events() <-chan Event { return c.events }

// Connect starts the polling loop. It does not wait for the device; readiness arrives as an event.
func (c *connectClient) Connect(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.cancel != nil {
		return false, nil
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	go c.run(loopCtx)
	return true, nil
}

func (c *connectClient) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	if c.cancel != nil {
		c.cancel()
	}
}

func (c *connectClient) run(ctx context.Context) {
	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return
		}
		if !c.poll(ctx) {
			return
		}
	}
}

// poll runs one discovery and state pass. It returns false when polling should stop.
func (c *connectClient) poll(ctx context.Context) bool {
	if _, err := c.token(ctx); err != nil {
		return c.fault(ctx, EventAuthenticationError, err)
	}

	devices, err := c.remote.Devices(ctx)
	if err != nil {
		return c.fault(ctx, classify(err), err)
	}

	found, ok := c.match(devices)

	c.mu.Lock()
	prev := c.deviceID
	c.mu.Unlock()

	switch {
	case ok && found.ID != prev:
		c.setDevice(found.ID)
		if prev == "" && c.volume > 0 {
			if err := c.remote.SetVolume(ctx, found.ID, percent(c.volume)); err != nil {
				c.logger.Warn("failed to apply initial volume", "error", err)
			}
		}
		c.emit(ctx, Event{Type: EventReady, DeviceID: found.ID})
	case !ok && prev != "":
		c.setDevice("")
		c.emit(ctx, Event{Type: EventNotReady, DeviceID: prev})
		return true
	case !ok:
		return true
	}

	state, device, err := c.remote.PlaybackState(ctx)
	if err != nil {
		return c.fault(ctx, classify(err), err)
	}
	c.clearFault()

	if device.ID != found.ID {
		return true
	}

	c.mu.Lock()
	changed := !c.hasState || c.state != state
	c.state, c.hasState = state, true
	c.mu.Unlock()

	if changed {
		c.emit(ctx, Event{Type: EventStateChanged, State: state})
	}
	return true
}

func (c *connectClient) match(devices []models.Device) (models.Device, bool) {
	for _, d := range devices {
		if d.ID == "" {
			continue
		}
		if c.name == "" && d.Active {
			return d, true
		}
		if c.name != "" && strings.EqualFold(d.Name, c.name) {
			return d, true
		}
	}
	return models.Device{}, false
}

// fault reports err as an event of type t.
//
// Before the device is first seen every fault is terminal, as the browser SDK's are; afterwards
// authentication and account faults are reported on every poll and others once per streak,
// even while the device is gone.
func (c *connectClient) fault(ctx context.Context, t EventType, err error) bool {
	c.mu.Lock()
	seen := c.seen
	repeat := c.lastFault == t
	c.lastFault = t
	c.mu.Unlock()

	if !seen {
		if t == EventPlaybackError {
			t = EventInitializationError
		}
		c.emit(ctx, Event{Type: t, Message: err.Error()})
		return false
	}

	if t == EventPlaybackError && repeat {
		c.logger.Debug("poll failed", "error", err)
		return true
	}
	c.emit(ctx, Event{Type: t, Message: err.Error()})
	return true
}

func (c *connectClient) clearFault() {
	c.mu.Lock()
	c.lastFault = ""
	c.mu.Unlock()
}

func (c *connectClient) setDevice(id string) {
	c.mu.Lock()
	c.deviceID = id
	if id == "" {
		c.hasState = false
	} else {
		c.seen = true
	}
	c.mu.Unlock()
}

func (c *connectClient) emit(ctx context.Context, ev Event) {
	select {
	case c.events <- ev:
	case <-ctx.Done():
	}
}

// classify maps a Web API failure onto an event type.
func classify(err error) EventType {
	switch services.StatusCode(err) {
	case http.StatusUnauthorized:
		return EventAuthenticationError
	case http.StatusForbidden:
		return EventAccountError
	default:
		return EventPlaybackError
	}
}

func (c *connectClient) device() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.deviceID == "" {
		return "", ErrDeviceNotReady
	}
	return c.deviceID, nil
}

func (c *connectClient) Resume(ctx context.Context) error {
	id, err := c.device()
	if err != nil {
		return err
	}
	return c.remote.Play(ctx, id, services.PlayRequest{})
}

func (c *connectClient) Pause(ctx context.Context) error {
	id, err := c.device()
	if err != nil {
		return err
	}
	return c.remote.Pause(ctx, id)
}

// TogglePlay resumes or pauses based on the last polled state.
func (c *connectClient) TogglePlay(ctx context.Context) error {
	c.mu.Lock()
	paused := !c.hasState || c.state.Paused
	c.mu.Unlock()

	if paused {
		return c.Resume(ctx)
	}
	return c.Pause(ctx)
}

func (c *connectClient) NextTrack(ctx context.Context) error {
	id, err := c.device()
	if err != nil {
		return err
	}
	return c.remote.Next(ctx, id)
}

func (c *connectClient) PreviousTrack(ctx context.Context) error {
	id, err := c.device()
	if err != nil {
		return err
	}
	return c.remote.Previous(ctx, id)
}

func (c *connectClient) SetVolume(ctx context.Context, volume float64) error {
	id, err := c.device()
	if err != nil {
		return err
	}
	return c.remote.SetVolume(ctx, id, percent(volume))
}

func percent(volume float64) int {
	return int(math.Round(max(0, min(1, volume)) * 100))
}
