package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/desertthunder/vinyl/internal/auth"
	"github.com/desertthunder/vinyl/internal/player"
	"github.com/desertthunder/vinyl/internal/services"
)

// Kind is the user-facing category of a failure.
type Kind string

const (
	AuthExpired            Kind = "auth_expired"
	AuthRejected           Kind = "auth_rejected"
	PremiumRequired        Kind = "premium_required"
	ContentUnavailable     Kind = "content_unavailable"
	TransientProviderFault Kind = "transient_provider_fault"
	InitializationTimeout  Kind = "initialization_timeout"
	DeviceNotReady         Kind = "device_not_ready"
	Unknown                Kind = "unknown"
)

// Error is a classified failure. Status is the HTTP status when the failure came from the Web API.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s (HTTP %d): %s", e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the classification of err, or "" for nil.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Classify(err).(*Error).Kind
}

// Classify maps err onto the error taxonomy. It returns nil for nil.
func Classify(err error) error {
	if err == nil {
		return nil
	}

	var e *Error
	if errors.As(err, &e) {
		return e
	}

	switch {
	case errors.Is(err, player.ErrInitTimeout):
		return &Error{Kind: InitializationTimeout, Message: "the player did not become ready in time", Err: err}
	case errors.Is(err, player.ErrNotConnected), errors.Is(err, player.ErrDeviceNotReady):
		return &Error{Kind: DeviceNotReady, Message: "no playback device is ready", Err: err}
	case errors.Is(err, auth.ErrNoRefreshToken):
		return &Error{Kind: AuthExpired, Message: "session expired, log in again", Err: err}
	case auth.IsRejected(err):
		return &Error{Kind: AuthRejected, Message: "the provider rejected the saved credentials", Err: err}
	case errors.Is(err, context.DeadlineExceeded):
		return &Error{Kind: TransientProviderFault, Message: "request timed out", Err: err}
	}

	var pe *player.Error
	if errors.As(err, &pe) {
		return &Error{Kind: classifyPlayer(pe), Message: pe.Message, Err: err}
	}

	if status := services.StatusCode(err); status != 0 {
		return &Error{Kind: classifyStatus(status), Status: status, Message: err.Error(), Err: err}
	}

	return &Error{Kind: Unknown, Message: err.Error(), Err: err}
}

func classifyStatus(status int) Kind {
	switch {
	case status == http.StatusUnauthorized:
		return AuthRejected
	case status == http.StatusForbidden:
		return PremiumRequired
	case status == http.StatusNotFound:
		return ContentUnavailable
	case status == http.StatusTooManyRequests, status >= 500:
		return TransientProviderFault
	default:
		return Unknown
	}
}

// classifyPlayer uses the event type first and falls back to the message text, since the
// device reports init, auth and account failures without structured codes.
func classifyPlayer(e *player.Error) Kind {
	switch e.Type {
	case player.EventAuthenticationError:
		return AuthRejected
	case player.EventAccountError:
		return PremiumRequired
	}

	msg := strings.ToLower(e.Message)
	switch {
	case strings.Contains(msg, "premium"):
		return PremiumRequired
	case strings.Contains(msg, "authentication"), strings.Contains(msg, "token"):
		return AuthRejected
	case strings.Contains(msg, "account"):
		return PremiumRequired
	default:
		return Unknown
	}
}
