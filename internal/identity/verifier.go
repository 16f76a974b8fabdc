// Package identity verifies bearer tokens issued by the external identity
// provider. The booking service never sees credentials; it only trusts the
// client identity carried by a valid token.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/golang-jwt/jwt/v5"
)

// RoleClient is the role claim carried by gym members allowed to book.
const RoleClient = "CLIENT"

// ErrInvalidToken is returned for any token that fails verification.
var ErrInvalidToken = errors.New("invalid token")

// Identity is a verified caller.
type Identity struct {
	ClientID uint64
	Role     string
}

// Verifier turns a raw bearer token into a verified Identity.
type Verifier interface {
	Verify(ctx context.Context, token string) (Identity, error)
}

// VerifierFunc adapts a function to the Verifier interface.
type VerifierFunc func(ctx context.Context, token string) (Identity, error)

// Verify calls f.
func (f VerifierFunc) Verify(ctx context.Context, token string) (Identity, error) {
	return f(ctx, token)
}

// JWTVerifier validates HS256 tokens signed with a shared secret. The
// subject claim holds the numeric client ID and "role" the caller's role.
// Tokens without an expiry are rejected.
type JWTVerifier struct {
	secret []byte
	parser *jwt.Parser
}

// NewJWTVerifier returns a verifier for tokens signed with secret.
func NewJWTVerifier(secret string) *JWTVerifier {
	return &JWTVerifier{
		secret: []byte(secret),
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithExpirationRequired(),
		),
	}
}

// Verify implements Verifier.
func (v *JWTVerifier) Verify(_ context.Context, raw string) (Identity, error) {
	claims := jwt.MapClaims{}
	tok, err := v.parser.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	})
	if err != nil || !tok.Valid {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	id, err := clientIDFromClaim(claims["sub"])
	if err != nil {
		return Identity{}, err
	}
	role, _ := claims["role"].(string)
	return Identity{ClientID: id, Role: role}, nil
}

// clientIDFromClaim accepts the subject as a JSON number or a decimal
// string; providers differ on which they emit.
func clientIDFromClaim(v interface{}) (uint64, error) {
	switch t := v.(type) {
	case float64:
		if t > 0 && t == float64(uint64(t)) {
			return uint64(t), nil
		}
	case string:
		if n, err := strconv.ParseUint(t, 10, 64); err == nil && n > 0 {
			return n, nil
		}
	}
	return 0, fmt.Errorf("%w: subject is not a client id", ErrInvalidToken)
}
