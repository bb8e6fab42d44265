package auth

import (
	"strings"
	"testing"
	"time"
)

func TestIssueAndParseRoundTrip(t *testing.T) {
	secret := []byte("test-secret")
	claims := Claims{
		Sub:    "user-1",
		Email:  "avery@example.com",
		Name:   "Avery",
		Method: "manual",
		JTI:    "jti-1",
		Exp:    time.Now().Add(time.Hour).Unix(),
	}

	token, err := IssueToken(secret, claims)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	parsed, err := ParseToken(secret, token)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if parsed != claims {
		t.Fatalf("expected claims %+v, got %+v", claims, parsed)
	}
}

func TestParseRejectsWrongSecret(t *testing.T) {
	token, err := IssueToken([]byte("secret-a"), Claims{
		Sub:   "user-1",
		Email: "avery@example.com",
		JTI:   "jti-1",
		Exp:   time.Now().Add(time.Hour).Unix(),
	})
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	if _, err := ParseToken([]byte("secret-b"), token); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestParseRejectsExpired(t *testing.T) {
	secret := []byte("test-secret")
	token, err := IssueToken(secret, Claims{
		Sub:   "user-1",
		Email: "avery@example.com",
		JTI:   "jti-1",
		Exp:   time.Now().Add(-time.Minute).Unix(),
	})
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	if _, err := ParseToken(secret, token); err != ErrExpiredToken {
		t.Fatalf("expected ErrExpiredToken, got %v", err)
	}
}

func TestParseRejectsTamperedPayload(t *testing.T) {
	secret := []byte("test-secret")
	token, err := IssueToken(secret, Claims{
		Sub:   "user-1",
		Email: "avery@example.com",
		JTI:   "jti-1",
		Exp:   time.Now().Add(time.Hour).Unix(),
	})
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	parts := strings.Split(token, ".")
	tampered := parts[0] + "x." + parts[1]
	if _, err := ParseToken(secret, tampered); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestParseRejectsMissingClaims(t *testing.T) {
	secret := []byte("test-secret")
	token, err := IssueToken(secret, Claims{
		Sub: "user-1",
		Exp: time.Now().Add(time.Hour).Unix(),
	})
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	if _, err := ParseToken(secret, token); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken for missing email/jti, got %v", err)
	}
}

func TestHashTokenIsStable(t *testing.T) {
	if HashToken("abc") != HashToken("abc") {
		t.Fatal("expected identical hashes for identical input")
	}
	if HashToken("abc") == HashToken("abd") {
		t.Fatal("expected different hashes for different input")
	}
}
