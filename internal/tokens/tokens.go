// Package tokens persists OAuth tokens and PKCE artifacts and decides token validity.
//
// Each field is stored under its own key so a partially written set reads back as absent
// rather than as a corrupt token. Storage failures never escape: they are logged and treated
// as "no stored token", which degrades to requiring a fresh login.
package tokens

import (
	"errors"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/vinyl/internal/shared"
	"github.com/desertthunder/vinyl/internal/storage"
)

// DefaultSkew is subtracted from a token's expiry before comparing it to the clock.
const DefaultSkew = 5 * time.Minute

const (
	keyAccessToken  = "access_token"
	keyRefreshToken = "refresh_token"
	keyExpiry       = "token_expiry"
	keyVerifier     = "pkce_verifier"
	keyState        = "pkce_state"
	keyForceDialog  = "force_login_dialog"
)

// TokenSet is one access token with its optional refresh token and absolute expiry.
type TokenSet struct {
	AccessToken  string
	RefreshToken string // empty when the provider issued none
	ExpiresAt    time.Time
}

// Valid reports whether ts can be used at now with the default skew.
func (ts *TokenSet) Valid(now time.Time) bool {
	return !IsExpired(ts, now, DefaultSkew)
}

// HasRefreshToken reports whether a refresh grant is possible.
func (ts *TokenSet) HasRefreshToken() bool {
	return ts != nil && ts.RefreshToken != ""
}

// IsExpired reports whether ts is unusable at now once skew is taken off its expiry.
//
// A nil set is expired. A set expiring exactly at now+skew is expired.
func IsExpired(ts *TokenSet, now time.Time, skew time.Duration) bool {
	if ts == nil || ts.AccessToken == "" {
		return true
	}
	return !now.Before(ts.ExpiresAt.Add(-skew))
}

// Store reads and writes token state through a persistent [storage.Store], mirroring PKCE
// artifacts into a transient one.
type Store struct {
	persistent storage.Store
	transient  storage.Store
	logger     *log.Logger
}

// NewStore creates a [Store]. transient may be nil, in which case PKCE artifacts are only
// written to persistent.
func NewStore(persistent, transient storage.Store, logger *log.Logger) *Store {
	if logger == nil {
		logger = log.Default()
	}
	return &Store{persistent: persistent, transient: transient, logger: shared.WithLogger(logger, "component", "tokens")}
}

// Save writes ts, overwriting any previous values. An empty refresh token removes the stored one.
//
// The old access token is removed first and the new one written last, so a failed write leaves
// no access token rather than one paired with another token's expiry.
func (s *Store) Save(ts TokenSet) error {
	if err := s.persistent.Delete(keyAccessToken); err != nil {
		return err
	}

	if err := s.persistent.Set(keyExpiry, strconv.FormatInt(ts.ExpiresAt.UnixMilli(), 10)); err != nil {
		return err
	}

	if ts.RefreshToken != "" {
		if err := s.persistent.Set(keyRefreshToken, ts.RefreshToken); err != nil {
			return err
		}
	} else if err := s.persistent.Delete(keyRefreshToken); err != nil {
		return err
	}

	return s.persistent.Set(keyAccessToken, ts.AccessToken)
}

// Load returns the stored token set, or nil when none is usable.
//
// It returns nil when the access token or expiry is missing, or when the expiry does not parse.
func (s *Store) Load() *TokenSet {
	access, ok := s.get(keyAccessToken)
	if !ok || access == "" {
		return nil
	}

	raw, ok := s.get(keyExpiry)
	if !ok {
		return nil
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		s.logger.Warn("discarding unparseable token expiry", "value", raw)
		return nil
	}

	refresh, _ := s.get(keyRefreshToken)
	return &TokenSet{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    time.UnixMilli(ms),
	}
}

// Clear removes the token keys and any PKCE artifacts. The force-dialog flag is left alone.
func (s *Store) Clear() {
	for _, key := range []string{keyAccessToken, keyRefreshToken, keyExpiry} {
		s.delete(s.persistent, key)
	}
	s.ClearPKCE()
}

// SavePKCE persists verifier and state in both stores.
//
// The transient copy is the fallback read by [Store.PKCE] when the persistent one was lost.
func (s *Store) SavePKCE(verifier, state string) error {
	var errs []error
	errs = append(errs, s.persistent.Set(keyVerifier, verifier), s.persistent.Set(keyState, state))
	if s.transient != nil {
		errs = append(errs, s.transient.Set(keyVerifier, verifier), s.transient.Set(keyState, state))
	}
	return errors.Join(errs...)
}

// PKCE returns the stored verifier and state, falling back to the transient store for each.
//
// Either value is empty when neither store has it.
func (s *Store) PKCE() (verifier, state string) {
	verifier, _ = s.get(keyVerifier)
	state, _ = s.get(keyState)

	if s.transient == nil {
		return verifier, state
	}
	if verifier == "" {
		verifier, _ = s.getFrom(s.transient, keyVerifier)
	}
	if state == "" {
		state, _ = s.getFrom(s.transient, keyState)
	}
	return verifier, state
}

// ClearPKCE deletes the verifier and state from both stores.
func (s *Store) ClearPKCE() {
	for _, key := range []string{keyVerifier, keyState} {
		s.delete(s.persistent, key)
		if s.transient != nil {
			s.delete(s.transient, key)
		}
	}
}

// SetForceDialog marks that the next login must show the provider's consent dialog.
func (s *Store) SetForceDialog() {
	if err := s.persistent.Set(keyForceDialog, "true"); err != nil {
		s.logger.Warn("failed to set force dialog flag", "error", err)
	}
}

// ConsumeForceDialog reports whether the flag was set and clears it.
func (s *Store) ConsumeForceDialog() bool {
	v, ok := s.get(keyForceDialog)
	if !ok {
		return false
	}
	s.delete(s.persistent, keyForceDialog)
	return v == "true"
}

func (s *Store) get(key string) (string, bool) {
	return s.getFrom(s.persistent, key)
}

func (s *Store) getFrom(st storage.Store, key string) (string, bool) {
	v, err := st.Get(key)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.logger.Warn("token storage read failed", "key", key, "error", err)
		}
		return "", false
	}
	return v, true
}

func (s *Store) delete(st storage.Store, key string) {
	if err := st.Delete(key); err != nil {
		s.logger.Warn("token storage delete failed", "key", key, "error", err)
	}
}
