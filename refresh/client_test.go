package refresh_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-auth-client/internal/utils"
	"github.com/jrsteele09/go-auth-client/refresh"
)

func TestRefreshSendsRefreshTokenGrant(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, r.ParseForm())
		require.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		require.Equal(t, "refresh-1", r.PostForm.Get("refresh_token"))
		require.Equal(t, "client-1", r.PostForm.Get("client_id"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"access-2","refresh_token":"refresh-2","token_type":"bearer","expires_in":900}`))
	}))
	defer server.Close()

	client, err := refresh.NewClient(refresh.Endpoints{TokenURL: server.URL}, "client-1")
	require.NoError(t, err)

	tokenResponse, err := client.Refresh(context.Background(), "refresh-1")
	require.NoError(t, err)
	require.Equal(t, "access-2", utils.Value(tokenResponse.AccessToken))
	require.Equal(t, "refresh-2", utils.Value(tokenResponse.RefreshToken))
	require.Equal(t, 900, tokenResponse.ExpiresIn)
}

func TestRefreshRejectedGrant(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"refresh token has expired"}`))
	}))
	defer server.Close()

	client, err := refresh.NewClient(refresh.Endpoints{TokenURL: server.URL}, "client-1")
	require.NoError(t, err)

	_, err = client.Refresh(context.Background(), "refresh-1")
	require.ErrorIs(t, err, refresh.ErrRejected)
	require.Contains(t, err.Error(), "invalid_grant")
}

func TestRefreshServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client, err := refresh.NewClient(refresh.Endpoints{TokenURL: server.URL}, "client-1")
	require.NoError(t, err)

	_, err = client.Refresh(context.Background(), "refresh-1")
	require.Error(t, err)
	require.NotErrorIs(t, err, refresh.ErrRejected, "5xx is not a grant rejection")
}

func TestRefreshEmptyAccessToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"token_type":"bearer"}`))
	}))
	defer server.Close()

	client, err := refresh.NewClient(refresh.Endpoints{TokenURL: server.URL}, "client-1")
	require.NoError(t, err)

	_, err = client.Refresh(context.Background(), "refresh-1")
	require.Error(t, err)
}

func TestPasswordLogin(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		require.Equal(t, "password", r.PostForm.Get("grant_type"))
		require.Equal(t, "john", r.PostForm.Get("username"))
		require.Equal(t, "secret", r.PostForm.Get("password"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"access-1","refresh_token":"refresh-1","token_type":"bearer","expires_in":900}`))
	}))
	defer server.Close()

	client, err := refresh.NewClient(refresh.Endpoints{TokenURL: server.URL}, "client-1")
	require.NoError(t, err)

	tokenResponse, err := client.PasswordLogin(context.Background(), "john", "secret")
	require.NoError(t, err)
	require.Equal(t, "access-1", utils.Value(tokenResponse.AccessToken))
}

func TestRevoke(t *testing.T) {
	var revoked string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		revoked = r.PostForm.Get("token")
		require.Equal(t, "refresh_token", r.PostForm.Get("token_type_hint"))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client, err := refresh.NewClient(
		refresh.Endpoints{TokenURL: server.URL + "/token", RevocationURL: server.URL},
		"client-1",
	)
	require.NoError(t, err)

	require.NoError(t, client.Revoke(context.Background(), "refresh-1"))
	require.Equal(t, "refresh-1", revoked)
}

func TestRevokeWithoutEndpointIsNoOp(t *testing.T) {
	client, err := refresh.NewClient(refresh.Endpoints{TokenURL: "http://localhost:0"}, "client-1")
	require.NoError(t, err)
	require.NoError(t, client.Revoke(context.Background(), "refresh-1"))
}

func TestTokenResponseCredentials(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	rotated := &refresh.TokenResponse{
		AccessToken:  utils.Ptr("access-2"),
		RefreshToken: utils.Ptr("refresh-2"),
		TokenType:    "bearer",
		ExpiresIn:    900,
	}
	creds := rotated.Credentials("refresh-1", now)
	require.Equal(t, "access-2", creds.AccessToken)
	require.Equal(t, "refresh-2", creds.RefreshToken, "rotated refresh token wins")
	require.True(t, creds.ExpiresAt.Equal(now.Add(15*time.Minute)))

	// No rotation: the previous refresh token is carried over.
	unrotated := &refresh.TokenResponse{AccessToken: utils.Ptr("access-2")}
	creds = unrotated.Credentials("refresh-1", now)
	require.Equal(t, "refresh-1", creds.RefreshToken)
	require.True(t, creds.ExpiresAt.IsZero())
}
