package auth

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	token, err := NewAccessToken("secret", time.Minute, "user-1", "parent")
	if err != nil {
		t.Fatalf("token error: %v", err)
	}

	claims, err := ParseAccessToken("secret", token)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if claims.Subject != "user-1" || claims.Role != "parent" {
		t.Fatalf("unexpected claims: sub=%s role=%s", claims.Subject, claims.Role)
	}
}

func TestExpiredAccessToken(t *testing.T) {
	token, err := NewAccessToken("secret", -time.Minute, "user-1", "parent")
	if err != nil {
		t.Fatalf("token error: %v", err)
	}
	if _, err := ParseAccessToken("secret", token); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestWrongSecretRejected(t *testing.T) {
	token, err := NewAccessToken("secret", time.Minute, "user-1", "parent")
	if err != nil {
		t.Fatalf("token error: %v", err)
	}
	if _, err := ParseAccessToken("other-secret", token); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestWrongTokenTypeRejected(t *testing.T) {
	// A linking code signed with the same secret must never pass as an
	// access token.
	now := time.Now().UTC()
	claims := jwt.MapClaims{
		"child_id": "child-1",
		"type":     "linking_code",
		"iat":      now.Unix(),
		"exp":      now.Add(time.Hour).Unix(),
	}
	code, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign error: %v", err)
	}
	if _, err := ParseAccessToken("secret", code); !errors.Is(err, ErrWrongTokenType) {
		t.Fatalf("expected ErrWrongTokenType, got %v", err)
	}
}

func TestMalformedClaimsRejected(t *testing.T) {
	now := time.Now().UTC()
	claims := jwt.MapClaims{
		"sub":  "user-1",
		"type": "access",
		"iat":  now.Unix(),
		"exp":  now.Add(time.Hour).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign error: %v", err)
	}
	if _, err := ParseAccessToken("secret", token); !errors.Is(err, ErrMalformedClaims) {
		t.Fatalf("expected ErrMalformedClaims, got %v", err)
	}
}

func TestTamperedSignatureRejected(t *testing.T) {
	token, err := NewAccessToken("secret", time.Minute, "user-1", "parent")
	if err != nil {
		t.Fatalf("token error: %v", err)
	}
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		t.Fatalf("expected three token segments, got %d", len(parts))
	}
	sig, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		t.Fatalf("decode signature: %v", err)
	}
	for i := range sig {
		flipped := make([]byte, len(sig))
		copy(flipped, sig)
		flipped[i] ^= 0x01
		tampered := parts[0] + "." + parts[1] + "." + base64.RawURLEncoding.EncodeToString(flipped)
		if _, err := ParseAccessToken("secret", tampered); !errors.Is(err, ErrTokenInvalid) {
			t.Fatalf("byte %d: expected ErrTokenInvalid, got %v", i, err)
		}
	}
}

func TestGarbageTokenRejected(t *testing.T) {
	if _, err := ParseAccessToken("secret", "not-a-jwt"); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}
