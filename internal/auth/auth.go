// Package auth signs and verifies the short lived HS256 bearer tokens the
// client derives from the shared secret.
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	replayCacheSize = 100_000
	clockLeeway     = 30 * time.Second
)

// Verifier validates incoming tokens and remembers the ids it has seen until
// they could no longer pass the expiry check anyway.
type Verifier struct {
	config *Config
	seen   *expirable.LRU[string, struct{}]
	parser *jwt.Parser
}

func NewVerifier(config *Config) *Verifier {
	return &Verifier{
		config: config,
		seen:   expirable.NewLRU[string, struct{}](replayCacheSize, nil, DefaultTokenTTL+2*clockLeeway),
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithIssuer(DefaultIssuer),
			jwt.WithExpirationRequired(),
			jwt.WithLeeway(clockLeeway),
		),
	}
}

func (v *Verifier) IsEnabled() bool {
	return v.config.Enabled
}

// Verify parses the token, checks its signature, issuer and expiry, and
// consumes its id.
func (v *Verifier) Verify(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidToken)
	}

	claims := &Claims{}
	token, err := v.parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		return []byte(v.config.Secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	if claims.ID == "" {
		return nil, fmt.Errorf("%w: missing jti", ErrInvalidToken)
	}
	if _, used := v.seen.Get(claims.ID); used {
		return nil, ErrReplayedToken
	}
	v.seen.Add(claims.ID, struct{}{})

	return claims, nil
}
