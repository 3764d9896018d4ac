// Package auth implements the Authorization Code flow with PKCE against the Spotify accounts service.
//
// A [Controller] moves through idle, awaiting_provider_redirect, exchanging_code and then
// authenticated or failed. [Controller.BeginLogin] persists a fresh verifier and state through the
// token store and hands the authorization URL to a [Navigator]; [Controller.CompleteCallback]
// checks the returned state before any network call and exchanges the code for a [tokens.TokenSet].
package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/vinyl/internal/metrics"
	"github.com/desertthunder/vinyl/internal/shared"
	"github.com/desertthunder/vinyl/internal/tokens"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"
)

// Scopes requested on every login.
var Scopes = []string{
	spotifyauth.ScopeUserReadPrivate,
	spotifyauth.ScopeUserReadEmail,
	spotifyauth.ScopePlaylistReadPrivate,
	spotifyauth.ScopePlaylistReadCollaborative,
	spotifyauth.ScopeStreaming,
	spotifyauth.ScopeUserReadPlaybackState,
	spotifyauth.ScopeUserModifyPlaybackState,
	spotifyauth.ScopeUserReadCurrentlyPlaying,
	spotifyauth.ScopeUserLibraryRead,
}

// State is the controller's position in the login flow.
type State int

const (
	StateIdle State = iota
	StateAwaitingRedirect
	StateExchangingCode
	StateAuthenticated
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingRedirect:
		return "awaiting_provider_redirect"
	case StateExchangingCode:
		return "exchanging_code"
	case StateAuthenticated:
		return "authenticated"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Navigator sends the user agent to the authorization URL. [shared.OpenBrowser] is one.
type Navigator func(authURL string) error

// Option configures a [Controller].
type Option func(*Controller)

// WithNavigator sets the function called with the authorization URL by BeginLogin.
func WithNavigator(n Navigator) Option {
	return func(c *Controller) { c.navigate = n }
}

// WithHTTPClient sets the client used for token endpoint requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Controller) { c.httpClient = hc }
}

func WithLogger(l *log.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

func WithMetrics(m *metrics.Recorder) Option {
	return func(c *Controller) { c.metrics = m }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// Controller runs the PKCE login flow and token refreshes.
type Controller struct {
	oauth      *oauth2.Config
	tokens     *tokens.Store
	navigate   Navigator
	httpClient *http.Client
	metrics    *metrics.Recorder
	logger     *log.Logger
	now        func() time.Time

	mu    sync.Mutex
	state State
}

// New creates a [Controller] for the public client described by cfg.
//
// Empty endpoint URLs fall back to the Spotify accounts service.
func New(cfg shared.SpotifyConfig, store *tokens.Store, opts ...Option) *Controller {
	authURL, tokenURL := cfg.AuthURL, cfg.TokenURL
	if authURL == "" {
		authURL = spotifyauth.AuthURL
	}
	if tokenURL == "" {
		tokenURL = spotifyauth.TokenURL
	}

	c := &Controller{
		oauth: &oauth2.Config{
			ClientID:    cfg.ClientID,
			RedirectURL: cfg.RedirectURI,
			Scopes:      Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   authURL,
				TokenURL:  tokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		tokens: store,
		now:    time.Now,
		logger: log.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "auth")
	return c
}

// State returns the current flow state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// Reset returns the controller to idle, as after a logout.
func (c *Controller) Reset() {
	c.setState(StateIdle)
}

// BeginLogin creates and persists a new verifier and state, builds the authorization URL
// and passes it to the navigator.
//
// The URL is returned even when navigation fails so the caller can show it.
func (c *Controller) BeginLogin(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	verifier := oauth2.GenerateVerifier()
	state, err := shared.GenerateState()
	if err != nil {
		c.setState(StateFailed)
		return "", fmt.Errorf("failed to generate state: %w", err)
	}

	if err := c.tokens.SavePKCE(verifier, state); err != nil {
		// The transient copy may still have been written; the callback reads either.
		c.logger.Warn("failed to persist PKCE artifacts", "error", err)
	}

	opts := []oauth2.AuthCodeOption{
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
		oauth2.SetAuthURLParam("code_challenge", Challenge(verifier)),
	}
	if c.tokens.ConsumeForceDialog() {
		opts = append(opts, oauth2.SetAuthURLParam("show_dialog", "true"))
	}

	authURL := c.oauth.AuthCodeURL(state, opts...)
	c.setState(StateAwaitingRedirect)
	c.logger.Debug("login started", "auth_url", authURL)

	if c.navigate != nil {
		if err := c.navigate(authURL); err != nil {
			return authURL, fmt.Errorf("failed to open authorization URL: %w", err)
		}
	}
	return authURL, nil
}

// CompleteCallback validates the redirect query and exchanges its code for tokens.
//
// A state that differs from the stored one fails with [ErrStateMismatch] before the token endpoint
// is contacted. Nothing is persisted unless the exchange succeeds.
func (c *Controller) CompleteCallback(ctx context.Context, query url.Values) (*tokens.TokenSet, error) {
	if e := query.Get("error"); e != "" {
		c.setState(StateFailed)
		if desc := query.Get("error_description"); desc != "" {
			e += ": " + desc
		}
		return nil, fmt.Errorf("%w: %s", ErrAuthorizationDenied, e)
	}

	verifier, storedState := c.tokens.PKCE()
	got := query.Get("state")
	if storedState == "" || subtle.ConstantTimeCompare([]byte(got), []byte(storedState)) != 1 {
		c.setState(StateFailed)
		return nil, ErrStateMismatch
	}

	code := query.Get("code")
	if code == "" {
		c.setState(StateFailed)
		return nil, ErrMissingCode
	}
	if verifier == "" {
		c.setState(StateFailed)
		return nil, ErrMissingVerifier
	}

	c.setState(StateExchangingCode)
	tok, err := c.oauth.Exchange(c.clientContext(ctx), code, oauth2.VerifierOption(verifier))
	if err != nil {
		c.setState(StateFailed)
		return nil, fmt.Errorf("%w: %w", ErrExchangeFailed, err)
	}

	ts := tokens.TokenSet{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    c.expiry(tok),
	}
	if err := c.tokens.Save(ts); err != nil {
		c.setState(StateFailed)
		return nil, fmt.Errorf("%w: %w", shared.ErrStorageUnavailable, err)
	}
	c.tokens.ClearPKCE()

	c.setState(StateAuthenticated)
	c.logger.Info("login complete", "expires_at", ts.ExpiresAt.Format(time.RFC3339))
	return &ts, nil
}

// Refresh exchanges ts's refresh token for a new access token and saves the result.
//
// A rotated refresh token replaces the old one; otherwise the old one is kept.
func (c *Controller) Refresh(ctx context.Context, ts *tokens.TokenSet) (*tokens.TokenSet, error) {
	if !ts.HasRefreshToken() {
		return nil, ErrNoRefreshToken
	}

	src := c.oauth.TokenSource(c.clientContext(ctx), &oauth2.Token{RefreshToken: ts.RefreshToken})
	tok, err := src.Token()
	c.metrics.ObserveRefresh(err)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExchangeFailed, err)
	}

	next := tokens.TokenSet{
		AccessToken:  tok.AccessToken,
		RefreshToken: ts.RefreshToken,
		ExpiresAt:    c.expiry(tok),
	}
	if tok.RefreshToken != "" {
		next.RefreshToken = tok.RefreshToken
	}

	if err := c.tokens.Save(next); err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrStorageUnavailable, err)
	}

	c.setState(StateAuthenticated)
	c.logger.Debug("token refreshed", "rotated", tok.RefreshToken != "" && tok.RefreshToken != ts.RefreshToken)
	return &next, nil
}

// IsRejected reports whether err is the token endpoint refusing the grant, as opposed to a
// transport failure worth retrying.
func IsRejected(err error) bool {
	var re *oauth2.RetrieveError
	if !errors.As(err, &re) {
		return false
	}
	return re.Response != nil && re.Response.StatusCode >= 400 && re.Response.StatusCode < 500
}

func (c *Controller) clientContext(ctx context.Context) context.Context {
	if c.httpClient == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
}

// expiry prefers the absolute expiry computed by oauth2 and falls back to expires_in.
func (c *Controller) expiry(tok *oauth2.Token) time.Time {
	if !tok.Expiry.IsZero() {
		return tok.Expiry
	}
	return c.now().Add(time.Duration(tok.ExpiresIn) * time.Second)
}

// Challenge derives the S256 code challenge: unpadded base64url of sha256(verifier).
func Challenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// VerifyChallenge reports whether verifier produces challenge, in constant time.
func VerifyChallenge(verifier, challenge string) bool {
	return subtle.ConstantTimeCompare([]byte(Challenge(verifier)), []byte(challenge)) == 1
}
