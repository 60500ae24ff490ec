package auth

import (
	"context"
	"testing"
	"time"

	"github.com/lzjever/mbos-irp/internal/core"
)

func TestMintAndParseToken(t *testing.T) {
	a := New("test-secret", time.Hour)
	user := core.User{ID: 42, Email: "dev@example.com", IsAdmin: true}

	token, err := a.MintToken(user)
	if err != nil {
		t.Fatalf("failed to mint token: %s", err)
	}

	claims, err := a.ParseToken(token)
	if err != nil {
		t.Fatalf("failed to parse token: %s", err)
	}
	if claims.UserID != 42 {
		t.Errorf("expected user id 42, got %d", claims.UserID)
	}
	if claims.Email != "dev@example.com" {
		t.Errorf("expected email carried through, got %q", claims.Email)
	}
	if !claims.Admin {
		t.Error("expected admin flag carried through")
	}
}

func TestParseTokenRejectsWrongSecret(t *testing.T) {
	token, err := New("secret-a", time.Hour).MintToken(core.User{ID: 1})
	if err != nil {
		t.Fatalf("failed to mint token: %s", err)
	}
	if _, err := New("secret-b", time.Hour).ParseToken(token); err != ErrInvalidToken {
		t.Errorf("expected ErrInvalidToken for wrong secret, got %v", err)
	}
}

func TestParseTokenRejectsExpired(t *testing.T) {
	// New clamps non-positive TTLs, so build the authenticator directly
	// to mint an already-expired token.
	a := &Authenticator{secret: []byte("test-secret"), ttl: -time.Minute, issuer: "irp"}
	token, err := a.MintToken(core.User{ID: 1})
	if err != nil {
		t.Fatalf("failed to mint token: %s", err)
	}
	if _, err := a.ParseToken(token); err != ErrInvalidToken {
		t.Errorf("expected ErrInvalidToken for expired token, got %v", err)
	}
}

func TestParseTokenRejectsGarbage(t *testing.T) {
	a := New("test-secret", time.Hour)
	for _, tok := range []string{"", "not-a-jwt", "a.b.c"} {
		if _, err := a.ParseToken(tok); err != ErrInvalidToken {
			t.Errorf("ParseToken(%q): expected ErrInvalidToken, got %v", tok, err)
		}
	}
}

func TestPasswordRoundTrip(t *testing.T) {
	hash, err := HashPassword("s3cret-pass")
	if err != nil {
		t.Fatalf("failed to hash: %s", err)
	}
	if hash == "s3cret-pass" {
		t.Fatal("hash must not equal the input")
	}
	if !CheckPassword(hash, "s3cret-pass") {
		t.Error("expected correct password to verify")
	}
	if CheckPassword(hash, "wrong-pass") {
		t.Error("expected wrong password to fail")
	}
}

func TestClaimsContext(t *testing.T) {
	ctx := ContextWithClaims(context.Background(), Claims{UserID: 7, Admin: true})
	claims, ok := ClaimsFromContext(ctx)
	if !ok {
		t.Fatal("expected claims in context")
	}
	if claims.UserID != 7 || !claims.Admin {
		t.Errorf("unexpected claims: %+v", claims)
	}
	if _, ok := ClaimsFromContext(context.Background()); ok {
		t.Error("expected no claims in a fresh context")
	}
}
