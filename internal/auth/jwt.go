package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Access tokens carry a "type" discriminant so that no other signed artifact
// issued under the shared secret (notably linking codes) can stand in for one.
const accessTokenType = "access"

var (
	ErrTokenExpired    = errors.New("access token expired")
	ErrTokenInvalid    = errors.New("access token invalid")
	ErrWrongTokenType  = errors.New("token is not an access token")
	ErrMalformedClaims = errors.New("token payload missing subject or role")
)

type Claims struct {
	Role      string `json:"role"`
	TokenType string `json:"type"`
	jwt.RegisteredClaims
}

// NewAccessToken mints an HS256 access token. Production tokens come from the
// identity provider; this exists for tests and local tooling and must stay
// wire-compatible with what the provider issues.
func NewAccessToken(secret string, ttl time.Duration, subject, role string) (string, error) {
	now := time.Now().UTC()
	claims := Claims{
		Role:      role,
		TokenType: accessTokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ParseAccessToken validates signature, expiry, token type, and the presence
// of subject and role. Pure validation, no side effects.
func ParseAccessToken(secret, tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(*jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.TokenType != accessTokenType {
		return nil, ErrWrongTokenType
	}
	if claims.Subject == "" || claims.Role == "" {
		return nil, ErrMalformedClaims
	}
	return claims, nil
}
