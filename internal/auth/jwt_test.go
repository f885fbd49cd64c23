package auth

import (
	"testing"
	"time"
)

func TestHS256RoundTrip(t *testing.T) {
	claims := Claims{
		Sub:  "6a2f1d9e-91f4-4a0e-8f9c-0c3b9e2d4a61",
		Role: "mentee",
		Iat:  time.Now().Unix(),
		Exp:  time.Now().Add(1 * time.Hour).Unix(),
	}
	secret := "test-secret"

	token, err := SignHS256(claims, secret)
	if err != nil {
		t.Fatalf("SignHS256 failed: %v", err)
	}
	parsed, err := ParseAndVerifyHS256(token, secret)
	if err != nil {
		t.Fatalf("ParseAndVerifyHS256 failed: %v", err)
	}
	if parsed.Sub != claims.Sub || parsed.Role != claims.Role {
		t.Fatalf("claims mismatch: got %+v", parsed)
	}
	if _, err := ParseAndVerifyHS256(token, "wrong-secret"); err == nil {
		t.Fatal("expected verification error with wrong secret")
	}
}

func TestHS256RejectsExpired(t *testing.T) {
	claims := Claims{
		Sub:  "6a2f1d9e-91f4-4a0e-8f9c-0c3b9e2d4a61",
		Role: "mentor",
		Iat:  time.Now().Add(-2 * time.Hour).Unix(),
		Exp:  time.Now().Add(-1 * time.Hour).Unix(),
	}
	token, err := SignHS256(claims, "test-secret")
	if err != nil {
		t.Fatalf("SignHS256 failed: %v", err)
	}
	if _, err := ParseAndVerifyHS256(token, "test-secret"); err == nil {
		t.Fatal("expected expired token to be rejected")
	}
}

func TestHS256RejectsMalformed(t *testing.T) {
	for _, token := range []string{"", "abc", "a.b", "a.b.c.d"} {
		if _, err := ParseAndVerifyHS256(token, "test-secret"); err == nil {
			t.Fatalf("expected malformed token %q to be rejected", token)
		}
	}
}
