package player

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/vinyl/internal/metrics"
	"github.com/desertthunder/vinyl/internal/models"
	"golang.org/x/sync/singleflight"
)

// DefaultInitTimeout bounds the wait for the first decisive event.
const DefaultInitTimeout = 20 * time.Second

// Config configures an [Adapter].
type Config struct {
	Name        string
	Volume      float64
	InitTimeout time.Duration
	Logger      *log.Logger
	Metrics     *metrics.Recorder
	// OnError receives error events that arrive after initialization settled.
	OnError func(*Error)
}

type session struct {
	client   Client
	stop     chan struct{}
	deviceID string
}

// Adapter owns at most one [Client] and serializes its initialization.
type Adapter struct {
	factory Factory
	cfg     Config
	logger  *log.Logger
	metrics *metrics.Recorder
	group   singleflight.Group

	mu      sync.Mutex
	sess    *session
	state   models.PlaybackState
	onState func(models.PlaybackState)
}

func NewAdapter(factory Factory, cfg Config) *Adapter {
	if cfg.InitTimeout <= 0 {
		cfg.InitTimeout = DefaultInitTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Adapter{
		factory: factory,
		cfg:     cfg,
		logger:  logger.With("component", "player"),
		metrics: cfg.Metrics,
	}
}

// Initialize returns true once a client reports ready.
//
// A ready session short-circuits. Otherwise concurrent callers share one construct, subscribe,
// connect and wait sequence, bounded by the configured timeout. ctx bounds only this caller's wait;
// the shared sequence keeps running for the others.
func (a *Adapter) Initialize(ctx context.Context, token TokenFunc, onState func(models.PlaybackState)) (bool, error) {
	a.mu.Lock()
	if a.sess != nil && a.sess.deviceID != "" {
		if onState != nil {
			a.onState = onState
		}
		a.mu.Unlock()
		return true, nil
	}
	a.mu.Unlock()

	ch := a.group.DoChan("init", func() (any, error) {
		return a.initialize(token, onState)
	})

	select {
	case res := <-ch:
		ready, _ := res.Val.(bool)
		return ready, res.Err
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

func (a *Adapter) initialize(token TokenFunc, onState func(models.PlaybackState)) (bool, error) {
	start := time.Now()

	// A session that lost its device is replaced rather than kept alongside a new client.
	a.Disconnect()

	client, err := a.factory(Options{Name: a.cfg.Name, Volume: a.cfg.Volume, Token: token})
	if err != nil {
		a.observe("construct_error", start)
		return false, &Error{Type: EventInitializationError, Message: err.Error()}
	}

	sess := &session{client: client, stop: make(chan struct{})}
	decisive := make(chan Event, 1)

	a.mu.Lock()
	a.sess = sess
	a.onState = onState
	a.mu.Unlock()

	go a.pump(sess, decisive)

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.InitTimeout)
	defer cancel()

	connected, err := client.Connect(ctx)
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		a.teardown(sess)
		a.observe("timeout", start)
		return false, ErrInitTimeout
	case err != nil:
		a.teardown(sess)
		a.observe(string(EventInitializationError), start)
		return false, &Error{Type: EventInitializationError, Message: fmt.Sprintf("%v: %v", ErrConnectFailed, err)}
	case !connected:
		a.teardown(sess)
		a.observe(string(EventInitializationError), start)
		return false, &Error{Type: EventInitializationError, Message: ErrConnectFailed.Error()}
	}

	select {
	case ev := <-decisive:
		if ev.Type == EventReady {
			a.observe("ready", start)
			a.logger.Info("player ready", "device_id", ev.DeviceID, "elapsed", time.Since(start).Round(time.Millisecond))
			return true, nil
		}
		a.teardown(sess)
		a.observe(string(ev.Type), start)
		a.logger.Warn("player initialization failed", "type", ev.Type, "message", ev.Message)
		return false, &Error{Type: ev.Type, Message: ev.Message}
	case <-ctx.Done():
		a.teardown(sess)
		a.observe("timeout", start)
		a.logger.Warn("player initialization timed out", "timeout", a.cfg.InitTimeout)
		return false, ErrInitTimeout
	}
}

// pump applies sess's events until the session is stopped or the channel closes.
// The first decisive event is also forwarded to decisive.
func (a *Adapter) pump(sess *session, decisive chan<- Event) {
	events := sess.client.Events()
	settled := false

	for {
		select {
		case <-sess.stop:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			a.metrics.ObserveEvent(string(ev.Type))
			a.apply(sess, ev, settled)

			if !settled && ev.Type.decisive() {
				settled = true
				decisive <- ev
			}
		}
	}
}

func (a *Adapter) apply(sess *session, ev Event, settled bool) {
	a.mu.Lock()
	if a.sess != sess {
		a.mu.Unlock()
		return
	}

	var (
		notify  func(models.PlaybackState)
		onError func(*Error)
	)
	switch ev.Type {
	case EventReady:
		sess.deviceID = ev.DeviceID
		a.metrics.SetReady(true)
	case EventNotReady:
		sess.deviceID = ""
		a.metrics.SetReady(false)
	case EventStateChanged:
		a.state = ev.State
		notify = a.onState
	default:
		if ev.Type.IsError() && settled {
			onError = a.cfg.OnError
		}
	}
	a.mu.Unlock()

	switch {
	case ev.Type == EventNotReady:
		a.logger.Warn("player device went offline", "device_id", ev.DeviceID)
	case ev.Type.IsError():
		a.logger.Error("player error", "type", ev.Type, "message", ev.Message)
	}

	if notify != nil {
		notify(ev.State)
	}
	if onError != nil {
		onError(&Error{Type: ev.Type, Message: ev.Message})
	}
}

// teardown stops sess if it is still the current session.
func (a *Adapter) teardown(sess *session) {
	a.mu.Lock()
	if a.sess != sess {
		a.mu.Unlock()
		return
	}
	a.sess = nil
	a.mu.Unlock()

	close(sess.stop)
	sess.client.Disconnect()
	a.metrics.SetReady(false)
}

// Disconnect tears down the current client, if any. It is safe to call at any time.
func (a *Adapter) Disconnect() {
	a.mu.Lock()
	sess := a.sess
	a.mu.Unlock()

	if sess != nil {
		a.teardown(sess)
	}
}

// Ready reports whether a client is connected with a device id.
func (a *Adapter) Ready() bool {
	return a.DeviceID() != ""
}

func (a *Adapter) DeviceID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.sess == nil {
		return ""
	}
	return a.sess.deviceID
}

// State returns the last state reported by the device.
func (a *Adapter) State() models.PlaybackState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

func (a *Adapter) Resume(ctx context.Context) error {
	return a.call(ctx, "resume", Client.Resume)
}

func (a *Adapter) Pause(ctx context.Context) error {
	return a.call(ctx, "pause", Client.Pause)
}

func (a *Adapter) TogglePlay(ctx context.Context) error {
	return a.call(ctx, "toggle", Client.TogglePlay)
}

func (a *Adapter) NextTrack(ctx context.Context) error {
	return a.call(ctx, "next", Client.NextTrack)
}

func (a *Adapter) PreviousTrack(ctx context.Context) error {
	return a.call(ctx, "previous", Client.PreviousTrack)
}

// SetVolume sets the device volume; volume is clamped to [0, 1].
func (a *Adapter) SetVolume(ctx context.Context, volume float64) error {
	volume = max(0, min(1, volume))
	return a.call(ctx, "volume", func(c Client, ctx context.Context) error {
		return c.SetVolume(ctx, volume)
	})
}

func (a *Adapter) call(ctx context.Context, op string, fn func(Client, context.Context) error) error {
	a.mu.Lock()
	var client Client
	if a.sess != nil {
		client = a.sess.client
	}
	a.mu.Unlock()

	if client == nil {
		return ErrNotConnected
	}
	if err := fn(client, ctx); err != nil {
		a.logger.Warn("player command failed", "op", op, "error", err)
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (a *Adapter) observe(outcome string, start time.Time) {
	a.metrics.ObserveInit(outcome, time.Since(start).Seconds())
}
