package devserver

import (
	"encoding/json"
	"net/http"
	"strings"
)

const contentTypeJSON = "application/json; charset=utf-8"

// tokenResponse is the RFC 6749 token endpoint response body.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// oauthError is the RFC 6749 error response body.
type oauthError struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// tokenHandler implements POST /oauth2/token for the password and
// refresh_token grants.
func (s *Server) tokenHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.writeOAuthError(w, http.StatusBadRequest, "invalid_request", "malformed form body")
		return
	}

	switch r.PostForm.Get("grant_type") {
	case "password":
		s.passwordGrant(w, r)
	case "refresh_token":
		s.refreshTokenGrant(w, r)
	default:
		s.writeOAuthError(w, http.StatusBadRequest, "unsupported_grant_type", "")
	}
}

func (s *Server) passwordGrant(w http.ResponseWriter, r *http.Request) {
	username := r.PostForm.Get("username")
	password := r.PostForm.Get("password")

	user, err := s.users.GetByUsername(username)
	if err != nil || !CheckPasswordHash(password, user.PasswordHash) {
		// Same response for unknown user and wrong password
		s.writeOAuthError(w, http.StatusBadRequest, "invalid_grant", "incorrect username or password")
		return
	}

	s.issueTokenPair(w, user)
}

// refreshTokenGrant validates the presented refresh token, rotates it and
// issues a new access token. An expired or unknown refresh token is an
// invalid_grant - the client must re-authenticate.
func (s *Server) refreshTokenGrant(w http.ResponseWriter, r *http.Request) {
	rawToken := r.PostForm.Get("refresh_token")
	if rawToken == "" {
		s.writeOAuthError(w, http.StatusBadRequest, "invalid_request", "refresh_token is required")
		return
	}

	stored, err := s.refreshTokens.Get(rawToken)
	if err != nil {
		s.writeOAuthError(w, http.StatusBadRequest, "invalid_grant", "refresh token is not recognised")
		return
	}
	if s.refreshTokens.IsExpired(stored) {
		_ = s.refreshTokens.Delete(stored.Token)
		s.writeOAuthError(w, http.StatusBadRequest, "invalid_grant", "refresh token has expired")
		return
	}

	user, err := s.users.GetByID(stored.UserID)
	if err != nil {
		s.writeOAuthError(w, http.StatusBadRequest, "invalid_grant", "user no longer exists")
		return
	}

	// Rotation: the presented token is spent whether or not issuance
	// succeeds.
	_ = s.refreshTokens.Delete(stored.Token)

	s.issueTokenPair(w, user)
}

// revokeHandler implements POST /oauth2/revoke (RFC 7009). Revoking an
// unknown token succeeds, per the RFC.
func (s *Server) revokeHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.writeOAuthError(w, http.StatusBadRequest, "invalid_request", "malformed form body")
		return
	}
	if token := r.PostForm.Get("token"); token != "" {
		_ = s.refreshTokens.Delete(token)
	}
	w.WriteHeader(http.StatusOK)
}

// userInfoHandler is a bearer-protected endpoint returning the identity
// claims of the presented access token.
func (s *Server) userInfoHandler(w http.ResponseWriter, r *http.Request) {
	rawToken := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if rawToken == "" || rawToken == r.Header.Get("Authorization") {
		w.Header().Set("WWW-Authenticate", `Bearer realm="userinfo"`)
		http.Error(w, "missing bearer token", http.StatusUnauthorized)
		return
	}

	claims, err := s.minter.Verify(rawToken)
	if err != nil {
		w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
		http.Error(w, "invalid or expired token", http.StatusUnauthorized)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"sub":   claims["sub"],
		"email": claims["email"],
		"name":  claims["name"],
	})
}

// discoveryHandler serves the OIDC discovery document so clients can resolve
// the token and revocation endpoints from the issuer alone.
func (s *Server) discoveryHandler(w http.ResponseWriter, r *http.Request) {
	issuer := s.config.GetIssuer()
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"issuer":                issuer,
		"token_endpoint":        issuer + "/oauth2/token",
		"revocation_endpoint":   issuer + "/oauth2/revoke",
		"userinfo_endpoint":     issuer + "/userinfo",
		"grant_types_supported": []string{"password", "refresh_token"},
	})
}

func (s *Server) issueTokenPair(w http.ResponseWriter, user *User) {
	accessToken, err := s.minter.AccessToken(user)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to mint access token")
		s.writeOAuthError(w, http.StatusInternalServerError, "server_error", "")
		return
	}

	refreshToken, err := s.refreshTokens.Create(user.ID)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to create refresh token")
		s.writeOAuthError(w, http.StatusInternalServerError, "server_error", "")
		return
	}

	s.writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken:  accessToken,
		TokenType:    "bearer",
		ExpiresIn:    int(s.config.GetAccessTokenExpiry().Seconds()),
		RefreshToken: refreshToken,
	})
}

func (s *Server) writeOAuthError(w http.ResponseWriter, status int, code, description string) {
	s.writeJSON(w, status, oauthError{Error: code, ErrorDescription: description})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error().Err(err).Msg("failed to encode response body")
	}
}
