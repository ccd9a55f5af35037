package domain

import "time"

type NotebookStatus string

const (
	NotebookLoading NotebookStatus = "loading"
	NotebookReady   NotebookStatus = "ready"
	NotebookError   NotebookStatus = "error"
)

// SessionState is the observable outcome of bootstrapping an anonymous identity.
// Ready flips to true exactly once, even when Error is set.
type SessionState struct {
	Ready  bool   `json:"ready"`
	Error  string `json:"error,omitempty"`
	UserID string `json:"user_id,omitempty"`
}

func (s SessionState) Status() NotebookStatus {
	switch {
	case !s.Ready:
		return NotebookLoading
	case s.Error != "":
		return NotebookError
	default:
		return NotebookReady
	}
}

// Usable reports whether remote document operations may proceed.
func (s SessionState) Usable() bool {
	return s.Ready && s.Error == ""
}

type Identity struct {
	UserID       string    `json:"user_id"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	Anonymous    bool      `json:"anonymous"`
}

func (i Identity) Expired(now time.Time) bool {
	if i.ExpiresAt.IsZero() {
		return false
	}
	return !now.Before(i.ExpiresAt)
}

type AuthEvent string

const (
	AuthSignedIn       AuthEvent = "SIGNED_IN"
	AuthTokenRefreshed AuthEvent = "TOKEN_REFRESHED"
	AuthSignedOut      AuthEvent = "SIGNED_OUT"
)
