package credentials

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// Credentials holds the token pair issued by a token endpoint.
// Both tokens are opaque from the client's perspective; if the access token
// happens to be a JWT its exp claim is used for expiry checks, otherwise
// ExpiresAt (derived from the endpoint's expires_in hint) is used.
type Credentials struct {
	// AccessToken is the short-lived bearer credential attached to
	// outbound requests. Usage: "Authorization: Bearer <access_token>"
	AccessToken string `json:"access_token"`

	// RefreshToken is the long-lived credential used exclusively to mint
	// a new access token. Rotates on each refresh.
	RefreshToken string `json:"refresh_token,omitempty"`

	// TokenType is how the access token is presented (always "bearer").
	TokenType string `json:"token_type,omitempty"`

	// ExpiresAt marks the end of the access token's validity period.
	// Zero means unknown; the JWT exp claim takes precedence when present.
	ExpiresAt time.Time `json:"expires_at,omitempty"`

	// Scope is the space-separated list of granted scopes.
	Scope string `json:"scope,omitempty"`
}

// Valid reports whether the credentials carry an access token.
func (c *Credentials) Valid() bool {
	return c != nil && c.AccessToken != ""
}

// ExpiresWithin reports whether the access token expires within the given
// leeway of now. Credentials with no discoverable expiry never report
// expiring, so they are only replaced after the server rejects them.
func (c *Credentials) ExpiresWithin(leeway time.Duration, now time.Time) bool {
	if !c.Valid() {
		return true
	}
	if exp, ok := c.expiry(); ok {
		return !now.Add(leeway).Before(exp)
	}
	return false
}

// BearerHeader returns the Authorization header value for the access token.
func (c *Credentials) BearerHeader() string {
	return "Bearer " + c.AccessToken
}

// expiry resolves the access token expiry: JWT exp claim first, then the
// stored ExpiresAt. The JWT parse is unverified - the client holds no
// signing keys and only needs the timestamp, never the claims' authenticity.
func (c *Credentials) expiry() (time.Time, bool) {
	if strings.Count(c.AccessToken, ".") == 2 {
		parser := jwt.NewParser()
		if token, _, err := parser.ParseUnverified(c.AccessToken, jwt.MapClaims{}); err == nil {
			if exp, err := token.Claims.GetExpirationTime(); err == nil && exp != nil {
				return exp.Time, true
			}
		}
	}
	if !c.ExpiresAt.IsZero() {
		return c.ExpiresAt, true
	}
	return time.Time{}, false
}
