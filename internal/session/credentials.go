package session

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/vinyl/internal/player"
	"github.com/desertthunder/vinyl/internal/tokens"
)

// Refresher exchanges a refresh token for a new [tokens.TokenSet]. [*auth.Controller] is one.
type Refresher interface {
	Refresh(ctx context.Context, ts *tokens.TokenSet) (*tokens.TokenSet, error)
}

// Credentials hands out valid access tokens, refreshing when needed.
//
// It is built before the API client and the player so both can pull tokens from it.
type Credentials struct {
	store     *tokens.Store
	refresher Refresher
	now       func() time.Time
	logger    *log.Logger
}

func NewCredentials(store *tokens.Store, refresher Refresher, logger *log.Logger) *Credentials {
	if logger == nil {
		logger = log.Default()
	}
	return &Credentials{
		store:     store,
		refresher: refresher,
		now:       time.Now,
		logger:    logger.With("component", "credentials"),
	}
}

// Token returns a valid access token.
//
// An expired token with a refresh token is refreshed; two callers racing here may both refresh,
// which the provider tolerates. Without a usable token it fails with an [AuthExpired] error.
func (c *Credentials) Token(ctx context.Context) (string, error) {
	ts := c.store.Load()
	if ts == nil {
		return "", &Error{Kind: AuthExpired, Message: "not logged in"}
	}
	if ts.Valid(c.now()) {
		return ts.AccessToken, nil
	}
	if !ts.HasRefreshToken() {
		return "", &Error{Kind: AuthExpired, Message: "access token expired and no refresh token is stored"}
	}

	next, err := c.refresher.Refresh(ctx, ts)
	if err != nil {
		cerr := *Classify(err).(*Error)
		if cerr.Kind == AuthRejected {
			c.logger.Warn("refresh token rejected, clearing session", "error", err)
			c.store.Clear()
		} else {
			cerr.Kind = AuthExpired
		}
		return "", &cerr
	}
	return next.AccessToken, nil
}

// PlayerToken adapts [Credentials.Token] for player clients.
func (c *Credentials) PlayerToken() player.TokenFunc {
	return c.Token
}

// Invalidate drops the stored tokens after the provider rejected them.
func (c *Credentials) Invalidate() {
	c.logger.Warn("access token rejected, clearing session")
	c.store.Clear()
}

// HandlePlayerError clears the session when the player reports an authentication failure.
func (c *Credentials) HandlePlayerError(e *player.Error) {
	if e != nil && e.Type == player.EventAuthenticationError {
		c.Invalidate()
	}
}
