package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"

	"github.com/desertthunder/vinyl/internal/shared"
	"github.com/zmb3/spotify/v2"
)

// TokenFunc returns a currently valid access token or an error when none is available.
type TokenFunc func(ctx context.Context) (string, error)

// Endpoint labels, relative to the API base URL.
const (
	EndpointPlaylists = "me/playlists"
	EndpointTracks    = "me/tracks"
	EndpointPlay      = "me/player/play"
	EndpointPause     = "me/player/pause"
	EndpointNext      = "me/player/next"
	EndpointPrevious  = "me/player/previous"
	EndpointVolume    = "me/player/volume"
	EndpointDevices   = "me/player/devices"
	EndpointPlayer    = "me/player"
	EndpointQueue     = "me/player/queue"
)

var nonCritical = map[string]bool{
	EndpointQueue: true,
}

// IsNonCritical reports whether failures on endpoint should be swallowed rather than surfaced.
func IsNonCritical(endpoint string) bool {
	return nonCritical[endpoint]
}

// Error is a failed Web API call.
type Error struct {
	Endpoint string
	Status   int // 0 when the request never got a response
	Message  string
	Err      error
}

func (e *Error) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("spotify %s: %v", e.Endpoint, e.Err)
	}
	return fmt.Sprintf("spotify %s: HTTP %d: %s", e.Endpoint, e.Status, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Status
	}
	return 0
}

// IsUnauthorized reports whether err is a 401 from the Web API.
func IsUnauthorized(err error) bool {
	return StatusCode(err) == http.StatusUnauthorized
}

// emptyBodyStatus matches the status in errors zmb3/spotify builds when the body is empty.
var emptyBodyStatus = regexp.MustCompile(`HTTP (\d{3})`)

// wrap converts an error returned by the spotify client into an [*Error].
func wrap(endpoint string, err error) error {
	if err == nil {
		return nil
	}

	e := &Error{Endpoint: endpoint, Err: err, Message: err.Error()}

	var se spotify.Error
	var sep *spotify.Error
	switch {
	case errors.As(err, &se):
		e.Status, e.Message = se.Status, se.Message
	case errors.As(err, &sep):
		e.Status, e.Message = sep.Status, sep.Message
	default:
		if m := emptyBodyStatus.FindStringSubmatch(err.Error()); m != nil {
			e.Status, _ = strconv.Atoi(m[1])
			e.Message = http.StatusText(e.Status)
		}
	}

	if e.Status == 0 {
		e.Err = fmt.Errorf("%w: %w", shared.ErrAPIRequest, err)
	}
	return e
}

// isTransient reports whether err is the kind of fault a non-critical endpoint may swallow:
// a 400, a 5xx, or no response at all.
func isTransient(err error) bool {
	status := StatusCode(err)
	return status == 0 || status == http.StatusBadRequest || status >= 500
}
