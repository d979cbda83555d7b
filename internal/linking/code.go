// Package linking implements the linking-code scheme: a signed, self-contained
// capability token granting its bearer the right to attach themselves as a
// supervisor to exactly one child profile. Codes are stateless JWTs, so
// verification needs no lookup, but a code cannot be revoked before its
// embedded expiry.
package linking

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// The "type" claim keeps linking codes distinct from access tokens signed
// under the same shared secret. Both verification paths check it regardless
// of signature validity.
const codeTokenType = "linking_code"

var (
	ErrCodeExpired    = errors.New("linking code expired")
	ErrCodeInvalid    = errors.New("linking code invalid")
	ErrWrongTokenType = errors.New("token is not a linking code")
	ErrMalformedCode  = errors.New("linking code payload missing child_id")
)

type codeClaims struct {
	ChildID   string `json:"child_id"`
	TokenType string `json:"type"`
	jwt.RegisteredClaims
}

type Codec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func New(secret string, ttl time.Duration) (*Codec, error) {
	if secret == "" {
		return nil, errors.New("linking: signing secret is not configured")
	}
	return &Codec{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// Generate mints a code scoped to childID, valid from now until now+ttl.
// Whether childID refers to an existing child is the caller's responsibility.
func (c *Codec) Generate(childID string) (string, error) {
	now := c.now().UTC()
	claims := codeClaims{
		ChildID:   childID,
		TokenType: codeTokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		},
	}
	code, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign linking code: %w", err)
	}
	return code, nil
}

// Verify checks signature, expiry, token type, and the child_id claim, and
// returns the child id the code is scoped to. A code is valid strictly before
// its expiry instant. Verification mutates nothing: the same still-valid code
// verifies any number of times.
func (c *Codec) Verify(code string) (string, error) {
	token, err := jwt.ParseWithClaims(code, &codeClaims{}, func(*jwt.Token) (interface{}, error) {
		return c.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(c.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrCodeExpired
		}
		return "", ErrCodeInvalid
	}
	claims, ok := token.Claims.(*codeClaims)
	if !ok || !token.Valid {
		return "", ErrCodeInvalid
	}
	if claims.TokenType != codeTokenType {
		return "", ErrWrongTokenType
	}
	if claims.ChildID == "" {
		return "", ErrMalformedCode
	}
	return claims.ChildID, nil
}
