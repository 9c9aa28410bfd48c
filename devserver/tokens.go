package devserver

import (
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/jrsteele09/go-auth-client/internal/config"
)

// TokenMinter creates and verifies the dev server's HS256 access tokens.
// A single symmetric signer is all a development fixture needs; a production
// issuer would hold per-tenant asymmetric keys and publish a JWKS.
type TokenMinter struct {
	issuer  string
	secret  []byte
	config  config.TokenConfig
	nowFunc func() time.Time
}

func NewTokenMinter(issuer string, secret []byte, cfg config.TokenConfig) *TokenMinter {
	return &TokenMinter{
		issuer:  issuer,
		secret:  secret,
		config:  cfg,
		nowFunc: time.Now,
	}
}

// AccessToken creates a signed access token for the user.
func (m *TokenMinter) AccessToken(user *User) (string, error) {
	claims := jwtlib.MapClaims{
		"iss":   m.issuer,
		"sub":   user.ID,
		"aud":   "api",
		"email": user.Email,
		"name":  user.Name,
		"iat":   int64(m.nowFunc().Unix()),
		"exp":   int64(m.nowFunc().Add(m.config.GetAccessTokenExpiry()).Unix()),
		"jti":   uuid.New().String(),
	}

	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	signedToken, err := token.SignedString(m.secret)
	if err != nil {
		return "", errors.Wrap(err, "failed to sign JWT token")
	}
	return signedToken, nil
}

// Verify parses and validates an access token, returning its claims.
func (m *TokenMinter) Verify(rawToken string) (jwtlib.MapClaims, error) {
	claims := jwtlib.MapClaims{}
	token, err := jwtlib.ParseWithClaims(rawToken, claims, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, errors.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	}, jwtlib.WithIssuer(m.issuer), jwtlib.WithExpirationRequired(), jwtlib.WithTimeFunc(m.nowFunc))
	if err != nil {
		return nil, errors.Wrap(err, "invalid token")
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}
