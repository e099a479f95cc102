package security

import (
	"errors"
	"testing"
	"time"
)

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("hunter2!")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if hash == "hunter2!" {
		t.Fatal("hash equals plaintext")
	}
	if !CheckPassword(hash, "hunter2!") {
		t.Fatal("CheckPassword rejected correct password")
	}
	if CheckPassword(hash, "wrong") {
		t.Fatal("CheckPassword accepted wrong password")
	}
}

func TestAdminTokenRoundTrip(t *testing.T) {
	token, err := GenerateAdminToken("secret", 7, "ops", time.Hour)
	if err != nil {
		t.Fatalf("GenerateAdminToken: %v", err)
	}
	claims, err := ParseAdminToken("secret", token)
	if err != nil {
		t.Fatalf("ParseAdminToken: %v", err)
	}
	if claims.AdminID != 7 || claims.Username != "ops" {
		t.Fatalf("claims = %+v", claims)
	}
}

func TestAdminTokenWrongSecret(t *testing.T) {
	token, err := GenerateAdminToken("secret", 1, "ops", time.Hour)
	if err != nil {
		t.Fatalf("GenerateAdminToken: %v", err)
	}
	if _, err = ParseAdminToken("other", token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("err = %v, want ErrInvalidToken", err)
	}
}

func TestAdminTokenExpired(t *testing.T) {
	token, err := GenerateAdminToken("secret", 1, "ops", -time.Minute)
	if err != nil {
		t.Fatalf("GenerateAdminToken: %v", err)
	}
	if _, err = ParseAdminToken("secret", token); !errors.Is(err, ErrExpiredToken) {
		t.Fatalf("err = %v, want ErrExpiredToken", err)
	}
}
