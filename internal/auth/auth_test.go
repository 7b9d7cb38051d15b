package auth

import (
	"testing"
)

func TestTokenRoundTrip(t *testing.T) {
	token, err := GenerateToken("u1", "alice@campus.edu", "secret")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	claims, err := ParseToken(token, "secret")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Subject != "u1" {
		t.Errorf("subject: %v", claims.Subject)
	}
	if claims.Email != "alice@campus.edu" {
		t.Errorf("email: %v", claims.Email)
	}
	if claims.ExpiresAt == nil || !claims.ExpiresAt.After(claims.IssuedAt.Time) {
		t.Error("token should expire after issuance")
	}
}

func TestParseTokenRejectsWrongSecret(t *testing.T) {
	token, err := GenerateToken("u1", "alice@campus.edu", "secret")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := ParseToken(token, "other-secret"); err == nil {
		t.Fatal("token signed with a different secret should not parse")
	}
}

func TestParseTokenRejectsGarbage(t *testing.T) {
	if _, err := ParseToken("not.a.token", "secret"); err == nil {
		t.Fatal("garbage should not parse")
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("changeme")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if hash == "changeme" {
		t.Fatal("password stored in clear")
	}
	if !CheckPassword("changeme", hash) {
		t.Error("correct password rejected")
	}
	if CheckPassword("wrong", hash) {
		t.Error("wrong password accepted")
	}
}
