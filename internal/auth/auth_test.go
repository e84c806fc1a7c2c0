package auth

import (
	"testing"
	"time"

	"leads-backend/internal/config"
	"leads-backend/internal/models"

	"github.com/pquerna/otp/totp"
)

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.JWT.Secret = "test-secret"
	cfg.JWT.Issuer = "leads-backend"
	cfg.JWT.ExpirationHours = 1
	return cfg
}

func TestTokenRoundTrip(t *testing.T) {
	m := NewJWTManager(testConfig())
	p := &models.Principal{ID: 42, Username: "jake", Name: "Jake R", Role: models.RoleAgent}

	token, err := m.GenerateToken(p)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	claims, err := m.ValidateToken(token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if claims.PrincipalID != 42 || claims.Role != models.RoleAgent {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestTokenRejectsOtherSecret(t *testing.T) {
	token, err := NewJWTManager(testConfig()).GenerateToken(&models.Principal{ID: 1, Role: models.RoleAdmin})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	other := testConfig()
	other.JWT.Secret = "different"
	if _, err := NewJWTManager(other).ValidateToken(token); err == nil {
		t.Fatalf("expected validation failure with a different secret")
	}
}

func TestPasswordHash(t *testing.T) {
	hash, err := HashPassword("hunter2")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !VerifyPassword(hash, "hunter2") {
		t.Fatalf("expected password to verify")
	}
	if VerifyPassword(hash, "hunter3") {
		t.Fatalf("wrong password verified")
	}
}

func TestTOTP(t *testing.T) {
	key, err := GenerateTOTP("admin@example.com")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	code, err := totp.GenerateCode(key.Secret(), time.Now())
	if err != nil {
		t.Fatalf("code: %v", err)
	}
	if !ValidateTOTP(code, key.Secret()) {
		t.Fatalf("expected current code to validate")
	}
	if ValidateTOTP("", key.Secret()) {
		t.Fatalf("empty code must not validate")
	}
}
