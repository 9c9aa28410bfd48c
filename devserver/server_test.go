package devserver_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-auth-client/credentials"
	"github.com/jrsteele09/go-auth-client/credentials/memstore"
	"github.com/jrsteele09/go-auth-client/devserver"
	"github.com/jrsteele09/go-auth-client/internal/config"
	"github.com/jrsteele09/go-auth-client/internal/utils"
	"github.com/jrsteele09/go-auth-client/refresh"
	"github.com/jrsteele09/go-auth-client/session"
	"github.com/jrsteele09/go-auth-client/transport"
)

const (
	testUsername = "john.doe@example.com"
	testPassword = "password123"
)

type testFixture struct {
	server *httptest.Server
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()

	handler, err := devserver.New(config.New())
	require.NoError(t, err)

	generated, err := handler.BootstrapUser(testUsername, testPassword)
	require.NoError(t, err)
	require.Empty(t, generated, "no password generated when one is supplied")

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return &testFixture{server: server}
}

func (f *testFixture) postForm(t *testing.T, path string, form url.Values) (int, map[string]interface{}) {
	t.Helper()
	resp, err := http.PostForm(f.server.URL+path, form)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	decoded := map[string]interface{}{}
	if len(body) > 0 {
		require.NoError(t, json.Unmarshal(body, &decoded))
	}
	return resp.StatusCode, decoded
}

func (f *testFixture) login(t *testing.T) (accessToken, refreshToken string) {
	t.Helper()
	status, body := f.postForm(t, "/oauth2/token", url.Values{
		"grant_type": {"password"},
		"username":   {testUsername},
		"password":   {testPassword},
	})
	require.Equal(t, http.StatusOK, status)
	accessToken, _ = body["access_token"].(string)
	refreshToken, _ = body["refresh_token"].(string)
	require.NotEmpty(t, accessToken)
	require.NotEmpty(t, refreshToken)
	return accessToken, refreshToken
}

func TestPasswordGrant(t *testing.T) {
	f := setupTestFixture(t)
	accessToken, refreshToken := f.login(t)
	require.NotEqual(t, accessToken, refreshToken)
}

func TestPasswordGrantWrongPassword(t *testing.T) {
	f := setupTestFixture(t)
	status, body := f.postForm(t, "/oauth2/token", url.Values{
		"grant_type": {"password"},
		"username":   {testUsername},
		"password":   {"wrong"},
	})
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, "invalid_grant", body["error"])
}

func TestUnsupportedGrantType(t *testing.T) {
	f := setupTestFixture(t)
	status, body := f.postForm(t, "/oauth2/token", url.Values{"grant_type": {"authorization_code"}})
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, "unsupported_grant_type", body["error"])
}

func TestRefreshGrantRotatesToken(t *testing.T) {
	f := setupTestFixture(t)
	_, refreshToken := f.login(t)

	status, body := f.postForm(t, "/oauth2/token", url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
	})
	require.Equal(t, http.StatusOK, status)
	rotated, _ := body["refresh_token"].(string)
	require.NotEmpty(t, rotated)
	require.NotEqual(t, refreshToken, rotated)

	// The spent token must be rejected.
	status, body = f.postForm(t, "/oauth2/token", url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
	})
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, "invalid_grant", body["error"])
}

func TestRevokedRefreshTokenIsRejected(t *testing.T) {
	f := setupTestFixture(t)
	_, refreshToken := f.login(t)

	status, _ := f.postForm(t, "/oauth2/revoke", url.Values{"token": {refreshToken}})
	require.Equal(t, http.StatusOK, status)

	status, body := f.postForm(t, "/oauth2/token", url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
	})
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, "invalid_grant", body["error"])
}

func TestUserInfo(t *testing.T) {
	f := setupTestFixture(t)
	accessToken, _ := f.login(t)

	req, err := http.NewRequest(http.MethodGet, f.server.URL+"/userinfo", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	claims := map[string]interface{}{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&claims))
	require.Equal(t, testUsername, claims["email"])
	require.NotEmpty(t, claims["sub"])
}

func TestUserInfoRejectsBadTokens(t *testing.T) {
	f := setupTestFixture(t)

	for name, header := range map[string]string{
		"missing bearer": "",
		"garbage token":  "Bearer not-a-jwt",
	} {
		req, err := http.NewRequest(http.MethodGet, f.server.URL+"/userinfo", nil)
		require.NoError(t, err)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err, name)
		_ = resp.Body.Close()
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode, name)
	}
}

func TestDiscoveryDocument(t *testing.T) {
	f := setupTestFixture(t)

	resp, err := http.Get(f.server.URL + "/.well-known/openid-configuration")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	doc := map[string]interface{}{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&doc))
	require.NotEmpty(t, doc["issuer"])
	tokenEndpoint, _ := doc["token_endpoint"].(string)
	require.True(t, strings.HasSuffix(tokenEndpoint, "/oauth2/token"))
}

// Full client stack against the dev server: login, call a protected
// endpoint, then recover transparently after the access token is replaced
// with garbage.
func TestClientStackRecoversFromRejectedToken(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	refresher, err := refresh.NewClient(refresh.Endpoints{
		TokenURL:      f.server.URL + "/oauth2/token",
		RevocationURL: f.server.URL + "/oauth2/revoke",
	}, "go-auth-client")
	require.NoError(t, err)

	store := memstore.New()
	coordinator, err := session.New(store, refresher)
	require.NoError(t, err)

	tokenResponse, err := refresher.PasswordLogin(ctx, testUsername, testPassword)
	require.NoError(t, err)
	creds := tokenResponse.Credentials("", credentials.NowTimeFunc())
	require.NoError(t, coordinator.SetCredentials(ctx, creds))

	httpClient, err := transport.NewClient(coordinator)
	require.NoError(t, err)

	userInfo := func() int {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.server.URL+"/userinfo", nil)
		require.NoError(t, err)
		resp, err := httpClient.Do(req)
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode
	}

	require.Equal(t, http.StatusOK, userInfo())

	// Simulate an access token the server no longer accepts.
	require.NoError(t, store.Put(ctx, &credentials.Credentials{
		AccessToken:  "tampered",
		RefreshToken: utils.Value(tokenResponse.RefreshToken),
	}))

	require.Equal(t, http.StatusOK, userInfo(), "transport must refresh and retry transparently")

	stored, err := store.Get(ctx)
	require.NoError(t, err)
	require.NotEqual(t, "tampered", stored.AccessToken)
	require.NotEqual(t, utils.Value(tokenResponse.RefreshToken), stored.RefreshToken, "refresh token must rotate")
}
