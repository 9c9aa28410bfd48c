// Package devserver implements a self-contained OAuth2 token server for
// development and testing of the client stack: password and refresh_token
// grants with rotation, token revocation, a bearer-protected userinfo
// endpoint and an OIDC discovery document. It is a fixture, not an identity
// provider - users live in memory and tokens are HS256-signed with a
// per-process secret.
package devserver

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/jrsteele09/go-auth-client/internal/config"
)

type Server struct {
	config        config.Config
	router        *mux.Router
	users         UserRepo
	refreshTokens *RefreshTokenManager
	minter        *TokenMinter
	logger        zerolog.Logger
}

// ServerOption defines a function type to modify the Server instance.
type ServerOption func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger zerolog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithUserRepo overrides the user repository (primarily for tests).
func WithUserRepo(users UserRepo) ServerOption {
	return func(s *Server) {
		s.users = users
	}
}

// WithNowFunc sets the now time function on the token components
// (primarily for testing)
func WithNowFunc(now func() time.Time) ServerOption {
	return func(s *Server) {
		s.minter.nowFunc = now
		s.refreshTokens.nowFunc = now
	}
}

// New initializes the dev token server. The signing secret comes from
// configuration, falling back to a random per-process secret.
func New(cfg config.Config, options ...ServerOption) (*Server, error) {
	secret := []byte(cfg.GetSigningSecret())
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, errors.Wrap(err, "[devserver.New] generate signing secret")
		}
	}

	s := &Server{
		config:        cfg,
		router:        mux.NewRouter(),
		users:         NewInMemoryUserRepo(),
		refreshTokens: NewRefreshTokenManager(NewInMemoryRefreshTokenRepo(), cfg),
		minter:        NewTokenMinter(cfg.GetIssuer(), secret, cfg),
		logger:        zerolog.Nop(),
	}
	for _, opt := range options {
		opt(s)
	}

	s.initRoutes()
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) initRoutes() {
	s.router.Use(s.loggingMiddleware, s.recoverMiddleware)
	s.router.HandleFunc("/.well-known/openid-configuration", s.discoveryHandler).Methods(http.MethodGet)
	s.router.HandleFunc("/oauth2/token", s.tokenHandler).Methods(http.MethodPost)
	s.router.HandleFunc("/oauth2/revoke", s.revokeHandler).Methods(http.MethodPost)
	s.router.HandleFunc("/userinfo", s.userInfoHandler).Methods(http.MethodGet)
}

// BootstrapUser creates a dev account and returns it. A generated password
// is used when none is configured; the caller is expected to log it once.
func (s *Server) BootstrapUser(username, password string) (generatedPassword string, err error) {
	if password == "" {
		passwordBytes := make([]byte, 12)
		if _, err := rand.Read(passwordBytes); err != nil {
			return "", errors.Wrap(err, "[Server.BootstrapUser] generate password")
		}
		password = hex.EncodeToString(passwordBytes)
		generatedPassword = password
	}

	passwordHash, err := HashPassword(password)
	if err != nil {
		return "", errors.Wrap(err, "[Server.BootstrapUser] hash password")
	}

	err = s.users.Upsert(&User{
		ID:           uuid.New().String(),
		Username:     username,
		Email:        username,
		Name:         "Dev User",
		PasswordHash: passwordHash,
	})
	if err != nil {
		return "", errors.Wrap(err, "[Server.BootstrapUser] store user")
	}
	return generatedPassword, nil
}
