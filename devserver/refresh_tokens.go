package devserver

import (
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/jrsteele09/go-auth-client/internal/config"
)

// StoredRefreshToken represents the server-side record of a refresh token.
// The client only receives the Token field (a random string).
type StoredRefreshToken struct {
	Token  string
	UserID string
	Iat    time.Time
}

// RefreshTokenRepo manages server-side storage of refresh token metadata,
// keyed by the token string.
type RefreshTokenRepo interface {
	Upsert(refreshToken *StoredRefreshToken) error
	Delete(token string) error
	Get(token string) (*StoredRefreshToken, error)
	GetByUserID(userID string) (*StoredRefreshToken, error)
}

// RefreshTokenManager handles refresh token creation, validation, and
// rotation.
type RefreshTokenManager struct {
	repo    RefreshTokenRepo
	config  config.TokenConfig
	nowFunc func() time.Time
}

func NewRefreshTokenManager(repo RefreshTokenRepo, cfg config.TokenConfig) *RefreshTokenManager {
	return &RefreshTokenManager{
		repo:    repo,
		config:  cfg,
		nowFunc: time.Now,
	}
}

// Create generates a new refresh token and stores it. Any existing token for
// the user is deleted first (single refresh token per user).
func (m *RefreshTokenManager) Create(userID string) (string, error) {
	if existingToken, err := m.repo.GetByUserID(userID); err == nil && existingToken != nil {
		if err := m.repo.Delete(existingToken.Token); err != nil {
			return "", errors.Wrap(err, "failed to delete existing refresh token")
		}
	}

	tokenBytes := make([]byte, m.config.GetRefreshTokenLength())
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", errors.Wrap(err, "failed to generate random bytes")
	}

	tokenStr := hex.EncodeToString(tokenBytes)
	if err := m.repo.Upsert(&StoredRefreshToken{
		Token:  tokenStr,
		UserID: userID,
		Iat:    m.nowFunc(),
	}); err != nil {
		return "", errors.Wrap(err, "failed to store refresh token")
	}

	return tokenStr, nil
}

// Get retrieves a refresh token from storage
func (m *RefreshTokenManager) Get(token string) (*StoredRefreshToken, error) {
	return m.repo.Get(token)
}

// Delete removes a refresh token from storage
func (m *RefreshTokenManager) Delete(token string) error {
	return m.repo.Delete(token)
}

// IsExpired checks if a refresh token has expired
func (m *RefreshTokenManager) IsExpired(rt *StoredRefreshToken) bool {
	return m.nowFunc().Sub(rt.Iat) > m.config.GetRefreshTokenExpiry()
}

var _ RefreshTokenRepo = (*inMemoryRefreshTokenRepo)(nil)

type inMemoryRefreshTokenRepo struct {
	tokens  map[string]*StoredRefreshToken
	userIDs map[string]string // user ID to token
	lock    sync.RWMutex
}

func NewInMemoryRefreshTokenRepo() RefreshTokenRepo {
	return &inMemoryRefreshTokenRepo{
		tokens:  make(map[string]*StoredRefreshToken),
		userIDs: make(map[string]string),
	}
}

func (r *inMemoryRefreshTokenRepo) Upsert(refreshToken *StoredRefreshToken) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.tokens[refreshToken.Token] = refreshToken
	r.userIDs[refreshToken.UserID] = refreshToken.Token
	return nil
}

func (r *inMemoryRefreshTokenRepo) Delete(token string) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	rt, ok := r.tokens[token]
	if !ok {
		return errors.New("not found")
	}
	delete(r.userIDs, rt.UserID)
	delete(r.tokens, token)
	return nil
}

func (r *inMemoryRefreshTokenRepo) Get(token string) (*StoredRefreshToken, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	if _, ok := r.tokens[token]; !ok {
		return nil, errors.New("not found")
	}
	return r.tokens[token], nil
}

func (r *inMemoryRefreshTokenRepo) GetByUserID(userID string) (*StoredRefreshToken, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	if _, ok := r.userIDs[userID]; !ok {
		return nil, errors.New("not found")
	}
	return r.tokens[r.userIDs[userID]], nil
}
