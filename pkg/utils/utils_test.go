package utils

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestJWT(t *testing.T) {
	secret := "supersecret"

	token, err := GenerateToken(123, "admin", secret, time.Hour)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	claims, err := ValidateToken(token, secret)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	userID, err := claims.UserID()
	if err != nil || userID != 123 {
		t.Errorf("Expected UserID 123, got %d (%v)", userID, err)
	}

	if claims.Role != "admin" {
		t.Errorf("Expected Role admin, got %s", claims.Role)
	}

	_, err = ValidateToken(token, "wrongsecret")
	if err == nil {
		t.Errorf("Expected error with wrong secret")
	}
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	secret := "supersecret"
	past := time.Now().Add(-time.Hour)
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "5",
			ExpiresAt: jwt.NewNumericDate(past),
		},
	}).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}

	_, err = ValidateToken(token, secret)
	if !errors.Is(err, jwt.ErrTokenExpired) {
		t.Fatalf("Expected ErrTokenExpired, got %v", err)
	}
}

func TestValidateTokenRequiresSubject(t *testing.T) {
	secret := "supersecret"
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}

	if _, err := ValidateToken(token, secret); !errors.Is(err, ErrMissingSubject) {
		t.Fatalf("Expected ErrMissingSubject, got %v", err)
	}
}

func TestValidateTokenRequiresExpiry(t *testing.T) {
	secret := "supersecret"
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "5"},
	}).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}

	if _, err := ValidateToken(token, secret); err == nil {
		t.Fatalf("Expected error for token without exp")
	}
}

func TestValidateTokenRejectsOtherAlgorithms(t *testing.T) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "5",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte("supersecret"))
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}

	if _, err := ValidateToken(token, "supersecret"); err == nil {
		t.Fatalf("Expected HS512 token to be rejected")
	}
}
