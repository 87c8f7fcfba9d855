package auth

import (
	"errors"
	"fmt"

	"github.com/parsascontentcorner/redditlink/internal/models"
)

// ErrStateMismatch is returned when the callback state does not match the
// state stored in the session.
var ErrStateMismatch = errors.New("oauth state mismatch")

// ErrMissingCode is returned when the callback carries neither an error nor a code.
var ErrMissingCode = errors.New("authorization code missing from callback")

// ProviderError is returned when the provider redirects back with an error
// query parameter, typically access_denied.
type ProviderError struct {
	Provider    models.Provider
	Code        string
	Description string
}

func (e *ProviderError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("%s returned error %q: %s", e.Provider, e.Code, e.Description)
	}
	return fmt.Sprintf("%s returned error %q", e.Provider, e.Code)
}

// TokenExchangeError is returned when the authorization code could not be
// exchanged for tokens.
type TokenExchangeError struct {
	Provider   models.Provider
	StatusCode int    // HTTP status, 0 if the request never completed
	Code       string // OAuth error code from the response body, if any
	Err        error
}

func (e *TokenExchangeError) Error() string {
	msg := fmt.Sprintf("%s token exchange failed", e.Provider)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Code != "" {
		msg += fmt.Sprintf(" [%s]", e.Code)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *TokenExchangeError) Unwrap() error { return e.Err }

// ProfileFetchError is returned when the profile endpoint could not be read.
type ProfileFetchError struct {
	Provider   models.Provider
	StatusCode int
	Err        error
}

func (e *ProfileFetchError) Error() string {
	msg := fmt.Sprintf("%s profile fetch failed", e.Provider)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ProfileFetchError) Unwrap() error { return e.Err }
