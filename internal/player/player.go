// Package player drives a playback device through a small blocking API.
//
// A [Client] is the event-driven device handle: it is built by a [Factory], pulls access tokens
// lazily through a [TokenFunc] and reports its lifecycle on [Client.Events]. The [Adapter] owns at
// most one client, runs a single initialization at a time, waits for the first decisive event
// under a hard timeout and mirrors state changes afterwards.
//
// [NewConnectFactory] builds clients that attach to a Spotify Connect device over the Web API.
package player

import (
	"context"
	"errors"
	"fmt"

	"github.com/desertthunder/vinyl/internal/models"
)

// TokenFunc returns the current access token, failing when it has expired.
type TokenFunc func(ctx context.Context) (string, error)

// EventType names a client lifecycle event.
type EventType string

const (
	EventReady               EventType = "ready"
	EventNotReady            EventType = "not_ready"
	EventStateChanged        EventType = "state_changed"
	EventInitializationError EventType = "initialization_error"
	EventAuthenticationError EventType = "authentication_error"
	EventAccountError        EventType = "account_error"
	EventPlaybackError       EventType = "playback_error"
)

// IsError reports whether t is one of the error events.
func (t EventType) IsError() bool {
	switch t {
	case EventInitializationError, EventAuthenticationError, EventAccountError, EventPlaybackError:
		return true
	}
	return false
}

// decisive reports whether t settles a pending initialization.
func (t EventType) decisive() bool {
	return t == EventReady || (t.IsError() && t != EventPlaybackError)
}

// Event is one notification from a [Client].
type Event struct {
	Type     EventType
	DeviceID string               // ready, not_ready
	State    models.PlaybackState // state_changed
	Message  string               // error events
}

// Client is a playback device handle.
type Client interface {
	// Events delivers lifecycle events. It must be usable before Connect.
	Events() <-chan Event
	// Connect starts attaching to the device. false means the attempt could not start.
	Connect(ctx context.Context) (bool, error)
	// Disconnect stops the client. It must be safe to call more than once.
	Disconnect()

	Resume(ctx context.Context) error
	Pause(ctx context.Context) error
	TogglePlay(ctx context.Context) error
	NextTrack(ctx context.Context) error
	PreviousTrack(ctx context.Context) error
	SetVolume(ctx context.Context, volume float64) error
}

// Options are passed to a [Factory] for each new client.
type Options struct {
	Name   string
	Volume float64 // 0 to 1
	Token  TokenFunc
}

// Factory constructs a [Client].
type Factory func(Options) (Client, error)

var (
	ErrInitTimeout    = errors.New("player initialization timed out")
	ErrNotConnected   = errors.New("player is not connected")
	ErrDeviceNotReady = errors.New("player device is not ready")
	ErrConnectFailed  = errors.New("player failed to connect")
)

// Error is a failure reported by a client event.
type Error struct {
	Type    EventType
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("player %s: %s", e.Type, e.Message)
}
