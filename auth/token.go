// Package auth verifies bearer tokens on protected operations and issues
// them to attorneys who present valid credentials.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	almalead "github.com/phbpx/almalead"
)

// DefaultTokenTTL is how long an access token stays valid.
const DefaultTokenTTL = 24 * time.Hour

// Claims are the registered claims plus the attorney's email. Subject holds
// the user ID.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
}

// Identity is the verified caller of a protected operation.
type Identity struct {
	UserID string
	Email  string
}

type Token struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"-"`
}

// Guard signs and verifies HS256 access tokens. It keeps no session state:
// a token is valid if its signature and expiry check out.
type Guard struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewGuard(secret string, ttl time.Duration) (*Guard, error) {
	if secret == "" {
		return nil, errors.New("auth: empty signing secret")
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &Guard{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

func (g *Guard) Issue(user almalead.User) (Token, error) {
	now := g.now()
	expiresAt := now.Add(g.ttl)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Email: user.Email,
	})

	signed, err := token.SignedString(g.secret)
	if err != nil {
		return Token{}, fmt.Errorf("sign token: %w", err)
	}

	return Token{AccessToken: signed, TokenType: "bearer", ExpiresAt: expiresAt}, nil
}

// Verify fails closed: any parse, signature, algorithm or expiry problem is
// reported as ErrUnauthorized.
func (g *Guard) Verify(tokenString string) (Identity, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (interface{}, error) {
			return g.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(g.now),
	)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", almalead.ErrUnauthorized, err)
	}
	if !token.Valid || claims.Subject == "" {
		return Identity{}, almalead.ErrUnauthorized
	}

	return Identity{UserID: claims.Subject, Email: claims.Email}, nil
}
