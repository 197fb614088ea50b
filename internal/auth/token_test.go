package auth

import (
	"strings"
	"testing"
	"time"
)

func TestMintAndParseSessionToken(t *testing.T) {
	t.Setenv(secretEnvVariable, "test-secret")
	ResetSecretForTests()

	metadata := map[string]string{"full_name": "Sam Student", "grade": "10"}
	token, expiresAt, err := MintSessionToken("user-1", "student@wws.k12.in.us", metadata, 30*time.Minute)
	if err != nil {
		t.Fatalf("MintSessionToken: %v", err)
	}
	if time.Until(expiresAt) <= 0 {
		t.Fatalf("expected future expiration, got %v", expiresAt)
	}

	session, err := ParseSessionToken(token)
	if err != nil {
		t.Fatalf("ParseSessionToken: %v", err)
	}
	if session.UserID != "user-1" || session.Email != "student@wws.k12.in.us" {
		t.Fatalf("unexpected session: %+v", session)
	}
	if session.Metadata["full_name"] != "Sam Student" || session.Metadata["grade"] != "10" {
		t.Fatalf("metadata claims lost: %+v", session.Metadata)
	}
}

func TestParseSessionTokenRejectsTampering(t *testing.T) {
	t.Setenv(secretEnvVariable, "test-secret")
	ResetSecretForTests()

	token, _, err := MintSessionToken("user-1", "student@wws.k12.in.us", nil, time.Minute)
	if err != nil {
		t.Fatalf("MintSessionToken: %v", err)
	}

	tampered := token[:strings.LastIndex(token, ".")+1] + "forged"
	if _, err := ParseSessionToken(tampered); err == nil {
		t.Fatalf("expected tampered token to fail validation")
	}
	if _, err := ParseSessionToken(""); err == nil {
		t.Fatalf("expected empty token to fail validation")
	}
}

func TestMintSessionTokenRequiresSecret(t *testing.T) {
	t.Setenv(secretEnvVariable, "")
	ResetSecretForTests()
	t.Cleanup(ResetSecretForTests)

	if _, _, err := MintSessionToken("user-1", "student@wws.k12.in.us", nil, time.Minute); err == nil {
		t.Fatalf("expected missing secret error")
	}
}
