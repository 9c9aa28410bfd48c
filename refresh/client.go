// Package refresh implements the HTTP client side of the OAuth2 token
// endpoint: the password and refresh_token grants (RFC 6749) and token
// revocation (RFC 7009). The session coordinator decides when to call it;
// this package only speaks the wire format.
package refresh

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/pkg/errors"
)

// ErrRejected indicates the token endpoint refused the grant - the refresh
// credential itself is invalid, expired or revoked. This is terminal for the
// session; the coordinator does not retry it.
var ErrRejected = errors.New("token endpoint rejected the grant")

// Client talks to a single OAuth2 token endpoint.
type Client struct {
	tokenURL      string
	revocationURL string
	clientID      string
	clientSecret  string
	httpClient    *http.Client
}

// Endpoints holds the endpoint URLs a Client needs.
type Endpoints struct {
	TokenURL      string
	RevocationURL string // optional; Revoke is a no-op without it
}

// ClientOption defines a function type to modify the Client instance.
type ClientOption func(*Client)

// WithHTTPClient overrides the underlying HTTP client (primarily for tests).
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithClientSecret sets the client secret for confidential clients.
func WithClientSecret(secret string) ClientOption {
	return func(c *Client) {
		c.clientSecret = secret
	}
}

// NewClient creates a token endpoint client for the given endpoints and
// OAuth2 client ID.
func NewClient(endpoints Endpoints, clientID string, options ...ClientOption) (*Client, error) {
	if endpoints.TokenURL == "" {
		return nil, errors.New("[refresh.NewClient] token URL is required")
	}

	c := &Client{
		tokenURL:      endpoints.TokenURL,
		revocationURL: endpoints.RevocationURL,
		clientID:      clientID,
		httpClient:    http.DefaultClient,
	}
	for _, opt := range options {
		opt(c)
	}
	return c, nil
}

// Discover resolves the token and revocation endpoints from an OIDC issuer
// using the provider's discovery document.
func Discover(ctx context.Context, issuer string) (Endpoints, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return Endpoints{}, errors.Wrap(err, "[refresh.Discover] oidc provider")
	}

	var claims struct {
		RevocationEndpoint string `json:"revocation_endpoint"`
	}
	// Revocation endpoint is optional in the discovery document.
	_ = provider.Claims(&claims)

	return Endpoints{
		TokenURL:      provider.Endpoint().TokenURL,
		RevocationURL: claims.RevocationEndpoint,
	}, nil
}

// Refresh exchanges a refresh token for a new token pair.
// A 4xx response means the refresh credential is no longer usable and is
// reported as ErrRejected. Transport failures are returned as-is; the caller
// decides whether they are terminal (the coordinator treats them so, since
// "credential rejected" and "endpoint unreachable" are indistinguishable
// without an additional signal).
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
	}
	return c.token(ctx, form)
}

// PasswordLogin exchanges user credentials for a token pair
// (grant_type=password).
func (c *Client) PasswordLogin(ctx context.Context, username, password string) (*TokenResponse, error) {
	form := url.Values{
		"grant_type": {"password"},
		"username":   {username},
		"password":   {password},
	}
	return c.token(ctx, form)
}

// Revoke invalidates a refresh token server-side (RFC 7009). Best effort:
// callers log failures rather than surfacing them, because local credential
// state is wiped regardless.
func (c *Client) Revoke(ctx context.Context, refreshToken string) error {
	if c.revocationURL == "" {
		return nil
	}

	form := url.Values{
		"token":           {refreshToken},
		"token_type_hint": {"refresh_token"},
	}
	c.addClientAuth(form)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.revocationURL, strings.NewReader(form.Encode()))
	if err != nil {
		return errors.Wrap(err, "[Client.Revoke] new request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "[Client.Revoke] post")
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("[Client.Revoke] revocation endpoint returned %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) token(ctx context.Context, form url.Values) (*TokenResponse, error) {
	c.addClientAuth(form)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, errors.Wrap(err, "[Client.token] new request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "[Client.token] post")
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "[Client.token] read response")
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		var tokenResponse TokenResponse
		if err := json.Unmarshal(body, &tokenResponse); err != nil {
			return nil, errors.Wrap(err, "[Client.token] unmarshal response")
		}
		if tokenResponse.AccessToken == nil || *tokenResponse.AccessToken == "" {
			return nil, errors.New("[Client.token] server returned an empty token")
		}
		return &tokenResponse, nil

	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return nil, errors.Wrap(ErrRejected, oauthErrorDetail(resp.StatusCode, body))

	default:
		return nil, errors.Errorf("[Client.token] token endpoint returned %d", resp.StatusCode)
	}
}

func (c *Client) addClientAuth(form url.Values) {
	if c.clientID != "" {
		form.Set("client_id", c.clientID)
	}
	if c.clientSecret != "" {
		form.Set("client_secret", c.clientSecret)
	}
}

// oauthErrorDetail extracts the RFC 6749 error fields from a 4xx body for
// the wrapped error message.
func oauthErrorDetail(status int, body []byte) string {
	var oauthErr struct {
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
	}
	if err := json.Unmarshal(body, &oauthErr); err == nil && oauthErr.Error != "" {
		if oauthErr.ErrorDescription != "" {
			return fmt.Sprintf("status %d: %s (%s)", status, oauthErr.Error, oauthErr.ErrorDescription)
		}
		return fmt.Sprintf("status %d: %s", status, oauthErr.Error)
	}
	return fmt.Sprintf("status %d", status)
}
