package auth

import "errors"

var (
	ErrAuthorizationDenied = errors.New("authorization denied by provider")
	ErrStateMismatch       = errors.New("state parameter does not match")
	ErrMissingCode         = errors.New("callback is missing the authorization code")
	ErrMissingVerifier     = errors.New("no PKCE verifier stored for this login")
	ErrNoRefreshToken      = errors.New("no refresh token available")
	ErrExchangeFailed      = errors.New("token exchange failed")
)
