package jwt

import (
	"errors"
	"testing"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
)

const testSecret = "0123456789abcdef0123"

func TestGenerateAndParse(t *testing.T) {
	m := NewManager(testSecret, time.Hour)

	token, err := m.GenerateToken("alice")
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}
	user, err := m.ParseToken(token)
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}
	if user != "alice" {
		t.Errorf("ParseToken() = %q, want alice", user)
	}
}

func TestParseTokenRejects(t *testing.T) {
	m := NewManager(testSecret, time.Hour)

	expired := NewManager(testSecret, time.Hour)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expiredToken, _ := expired.GenerateToken("alice")

	otherKey, _ := NewManager("another-secret-of-16b", time.Hour).GenerateToken("alice")

	noSubject, _ := gojwt.NewWithClaims(gojwt.SigningMethodHS256, gojwt.RegisteredClaims{
		ExpiresAt: gojwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte(testSecret))

	noExpiry, _ := gojwt.NewWithClaims(gojwt.SigningMethodHS256, gojwt.RegisteredClaims{
		Subject: "alice",
	}).SignedString([]byte(testSecret))

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{"garbage", "not-a-token", ErrInvalidToken},
		{"empty", "", ErrInvalidToken},
		{"expired", expiredToken, ErrExpiredToken},
		{"wrong key", otherKey, ErrInvalidToken},
		{"no subject", noSubject, ErrInvalidToken},
		{"no expiry", noExpiry, ErrInvalidToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := m.ParseToken(tt.token); !errors.Is(err, tt.want) {
				t.Errorf("ParseToken() error = %v, want %v", err, tt.want)
			}
		})
	}
}
