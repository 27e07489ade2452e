package auth

import (
	"testing"
	"time"
)

func TestTokenRoundTrip(t *testing.T) {
	m := NewJWTManager("test-secret", 15*time.Minute, 7*24*time.Hour)

	claims := UserClaims{
		UserID: "user-1",
		Email:  "manager@example.com",
		Role:   "manager",
	}

	token, err := m.GenerateAccessToken(claims)
	if err != nil {
		t.Fatalf("GenerateAccessToken() error: %v", err)
	}

	parsed, err := m.ValidateAccessToken(token)
	if err != nil {
		t.Fatalf("ValidateAccessToken() error: %v", err)
	}
	if parsed.UserID != claims.UserID || parsed.Email != claims.Email || parsed.Role != claims.Role {
		t.Errorf("claims = %+v, want %+v", parsed, claims)
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	m := NewJWTManager("test-secret", -1*time.Minute, time.Hour)

	token, err := m.GenerateAccessToken(UserClaims{UserID: "user-1"})
	if err != nil {
		t.Fatalf("GenerateAccessToken() error: %v", err)
	}

	if _, err := m.ValidateAccessToken(token); err == nil {
		t.Error("expired token should be rejected")
	}
}

func TestWrongSecretRejected(t *testing.T) {
	m := NewJWTManager("secret-a", 15*time.Minute, time.Hour)
	other := NewJWTManager("secret-b", 15*time.Minute, time.Hour)

	token, err := m.GenerateAccessToken(UserClaims{UserID: "user-1"})
	if err != nil {
		t.Fatalf("GenerateAccessToken() error: %v", err)
	}

	if _, err := other.ValidateAccessToken(token); err == nil {
		t.Error("token signed with a different secret should be rejected")
	}
}

func TestRefreshTokensAreUnique(t *testing.T) {
	m := NewJWTManager("test-secret", 15*time.Minute, time.Hour)

	a, err := m.GenerateRefreshToken()
	if err != nil {
		t.Fatalf("GenerateRefreshToken() error: %v", err)
	}
	b, err := m.GenerateRefreshToken()
	if err != nil {
		t.Fatalf("GenerateRefreshToken() error: %v", err)
	}
	if a == b {
		t.Error("refresh tokens should be unique")
	}
	if HashRefreshToken(a) == HashRefreshToken(b) {
		t.Error("refresh token hashes should differ")
	}
}

func TestPasswordStrength(t *testing.T) {
	pm := NewPasswordManager(DefaultBcryptCost, 8)

	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{"strong mixed", "Str0ng!pass", false},
		{"three classes", "Passw0rdlong", false},
		{"too short", "Ab1!", true},
		{"single class", "alllowercase", true},
		{"two classes", "lowercase123", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := pm.ValidatePasswordStrength(tt.password)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePasswordStrength(%q) error = %v, wantErr %v", tt.password, err, tt.wantErr)
			}
		})
	}
}

func TestPasswordHashVerify(t *testing.T) {
	pm := NewPasswordManager(4, 8) // low cost keeps the test fast

	hash, err := pm.HashPassword("Str0ng!pass")
	if err != nil {
		t.Fatalf("HashPassword() error: %v", err)
	}
	if !pm.VerifyPassword("Str0ng!pass", hash) {
		t.Error("correct password should verify")
	}
	if pm.VerifyPassword("wrong-password", hash) {
		t.Error("wrong password should not verify")
	}
}
