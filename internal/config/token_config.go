package config

import "time"

type TokenConfig interface {
	GetAccessTokenExpiry() time.Duration
	GetRefreshTokenExpiry() time.Duration
	GetRefreshTokenLength() int
	GetRefreshTimeout() time.Duration
	GetExpiryLeeway() time.Duration
	GetSigningSecret() string
}

type Tokens struct{}

var _ TokenConfig = Tokens{}

func (Tokens) GetAccessTokenExpiry() time.Duration {
	return 15 * time.Minute
}

func (Tokens) GetRefreshTokenExpiry() time.Duration {
	return 7 * 24 * time.Hour // 7 days
}

func (Tokens) GetRefreshTokenLength() int {
	return 32 // 32 bytes = 256 bits
}

// GetRefreshTimeout bounds the refresh network call so waiters are never
// suspended indefinitely.
func (Tokens) GetRefreshTimeout() time.Duration {
	return 30 * time.Second
}

// GetExpiryLeeway is how far ahead of access token expiry the client
// refreshes proactively.
func (Tokens) GetExpiryLeeway() time.Duration {
	return 10 * time.Second
}

// GetSigningSecret is the dev server's HS256 signing secret. Generated per
// process when unset; dev tokens do not survive a restart.
func (Tokens) GetSigningSecret() string {
	return GetEnv("SIGNING_SECRET", "")
}
