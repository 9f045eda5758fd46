package auth

import (
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/listenupapp/tagnotes/internal/id"
)

// Token lifetimes of the embedded backend.
const (
	AccessTokenTTL   = time.Hour
	RefreshTokenSize = 32
)

// Tokens is a freshly minted access/refresh pair.
type Tokens struct {
	Access    string
	Refresh   string
	ExpiresAt time.Time
}

// NewTokens mints an opaque pair valid for AccessTokenTTL from now.
func NewTokens(now time.Time) (Tokens, error) {
	access, err := id.Generate(id.PrefixSession)
	if err != nil {
		return Tokens{}, err
	}
	refresh, err := gonanoid.New(RefreshTokenSize)
	if err != nil {
		return Tokens{}, err
	}
	return Tokens{
		Access:    access,
		Refresh:   refresh,
		ExpiresAt: now.Add(AccessTokenTTL),
	}, nil
}
