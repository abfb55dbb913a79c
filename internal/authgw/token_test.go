package authgw

import (
	"testing"
	"time"

	"github.com/minami/naraigoto/internal/model"
)

const testSecret = "test-jwt-secret"

func testIdentity() *model.Identity {
	return &model.Identity{
		ID:    "user-1",
		Email: "hanako@example.com",
		Phone: "+819012345678",
		Metadata: map[string]string{
			"role":         "provider",
			"display_name": "山田 一郎",
		},
	}
}

func TestHMACVerifier_RoundTrip(t *testing.T) {
	token, err := MintToken(testSecret, testIdentity(), time.Hour)
	if err != nil {
		t.Fatalf("MintToken returned error: %v", err)
	}

	verifier := NewHMACVerifier(testSecret)
	identity, err := verifier.Verify(token)
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}

	if identity.ID != "user-1" {
		t.Errorf("ID = %q, want user-1", identity.ID)
	}
	if identity.Email != "hanako@example.com" {
		t.Errorf("Email = %q", identity.Email)
	}
	if identity.MetadataRole() != model.RoleProvider {
		t.Errorf("MetadataRole = %q, want provider", identity.MetadataRole())
	}
}

func TestHMACVerifier_ExpiredToken(t *testing.T) {
	token, err := MintToken(testSecret, testIdentity(), -time.Minute)
	if err != nil {
		t.Fatalf("MintToken returned error: %v", err)
	}

	verifier := NewHMACVerifier(testSecret)
	_, err = verifier.Verify(token)
	if !IsSessionInvalid(err) {
		t.Fatalf("err = %v, want session-invalid", err)
	}
}

func TestHMACVerifier_WrongSecret(t *testing.T) {
	token, err := MintToken("other-secret", testIdentity(), time.Hour)
	if err != nil {
		t.Fatalf("MintToken returned error: %v", err)
	}

	verifier := NewHMACVerifier(testSecret)
	_, err = verifier.Verify(token)
	if !IsSessionInvalid(err) {
		t.Fatalf("err = %v, want session-invalid", err)
	}
}

func TestHMACVerifier_EmptyToken(t *testing.T) {
	verifier := NewHMACVerifier(testSecret)
	_, err := verifier.Verify("")
	if !IsSessionInvalid(err) {
		t.Fatalf("err = %v, want session-invalid", err)
	}
}

func TestHMACVerifier_GarbageToken(t *testing.T) {
	verifier := NewHMACVerifier(testSecret)
	_, err := verifier.Verify("not.a.jwt")
	if !IsSessionInvalid(err) {
		t.Fatalf("err = %v, want session-invalid", err)
	}
}
