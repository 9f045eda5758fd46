package domain

import "time"

// SessionRefreshLeeway is how long before expiry a session counts as expired,
// so a request started just before the deadline does not race it.
const SessionRefreshLeeway = 30 * time.Second

// Session is a signed-in user's credentials for the backend.
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         User      `json:"user"`
}

// Expired reports whether the access token must be refreshed before use.
// A zero ExpiresAt never expires.
func (s *Session) Expired(now time.Time) bool {
	if s == nil {
		return true
	}
	if s.ExpiresAt.IsZero() {
		return false
	}
	return !now.Add(SessionRefreshLeeway).Before(s.ExpiresAt)
}
