package refresh

import (
	"time"

	"github.com/jrsteele09/go-auth-client/credentials"
	"github.com/jrsteele09/go-auth-client/internal/utils"
)

// TokenResponse represents the response from an OAuth2 token request.
// This is the standard token endpoint response format as defined in RFC 6749,
// returned for both the password and refresh_token grants.
type TokenResponse struct {
	// AccessToken is the token used to access protected resources.
	// Usage: Include in Authorization header: "Bearer <access_token>"
	AccessToken *string `json:"access_token,omitempty"`

	// IdToken is the OpenID Connect ID token containing user identity
	// information. Only present when the "openid" scope was requested.
	IdToken *string `json:"id_token,omitempty"`

	// TokenType indicates how to use the access token (always "bearer").
	TokenType string `json:"token_type,omitempty"`

	// ExpiresIn is the lifetime in seconds of the access token.
	// Note: This is a hint - when the token is a JWT the exp claim wins.
	ExpiresIn int `json:"expires_in,omitempty"`

	// RefreshToken is an opaque token used to obtain new access tokens.
	// Rotates on each use; absent when the server does not rotate.
	RefreshToken *string `json:"refresh_token,omitempty"`

	// Scope indicates the access token's granted permissions.
	Scope string `json:"scope,omitempty"`
}

// Credentials converts the token response into a stored credential pair.
// When the server did not rotate the refresh token, previousRefreshToken is
// carried over so the session can keep refreshing.
func (tr *TokenResponse) Credentials(previousRefreshToken string, now time.Time) *credentials.Credentials {
	refreshToken := utils.Value(tr.RefreshToken)
	if refreshToken == "" {
		refreshToken = previousRefreshToken
	}

	creds := &credentials.Credentials{
		AccessToken:  utils.Value(tr.AccessToken),
		RefreshToken: refreshToken,
		TokenType:    tr.TokenType,
		Scope:        tr.Scope,
	}
	if tr.ExpiresIn > 0 {
		creds.ExpiresAt = now.Add(time.Duration(tr.ExpiresIn) * time.Second)
	}
	return creds
}
