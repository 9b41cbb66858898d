package bankauth

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfigValidatesWithKeys(t *testing.T) {
	cfg := testConfig(t)
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero access ttl", func(c *Config) { c.JWT.AccessTTL = 0 }},
		{"refresh shorter than access", func(c *Config) { c.JWT.RefreshTTL = time.Minute }},
		{"empty issuer", func(c *Config) { c.JWT.Issuer = "" }},
		{"empty audience", func(c *Config) { c.JWT.Audience = "" }},
		{"excessive leeway", func(c *Config) { c.JWT.Leeway = time.Hour }},
		{"missing public key", func(c *Config) { c.JWT.PublicKeyPEM = nil }},
		{"otp too short", func(c *Config) { c.OTP.Digits = 4 }},
		{"otp too long", func(c *Config) { c.OTP.Digits = 12 }},
		{"zero login ttl", func(c *Config) { c.OTP.LoginTTL = 0 }},
		{"zero default ttl", func(c *Config) { c.OTP.DefaultTTL = 0 }},
		{"negative max attempts", func(c *Config) { c.OTP.MaxAttempts = -1 }},
		{"zero rate window", func(c *Config) { c.RateLimit.Window = 0 }},
		{"zero rate limit", func(c *Config) { c.RateLimit.Limit = 0 }},
		{"audit enabled without buffer", func(c *Config) {
			c.Audit.Enabled = true
			c.Audit.BufferSize = 0
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig(t)
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestCloneConfigIsolatesKeyMaterial(t *testing.T) {
	cfg := testConfig(t)
	clone := cloneConfig(cfg)

	clone.JWT.PrivateKeyPEM[0] ^= 0xFF
	if cfg.JWT.PrivateKeyPEM[0] == clone.JWT.PrivateKeyPEM[0] {
		t.Fatal("clone must not share key backing arrays")
	}
}

func writeTestKeyFiles(t *testing.T) (privPath, pubPath string) {
	t.Helper()

	priv, pub := testKeyPair(t)
	dir := t.TempDir()
	privPath = filepath.Join(dir, "jwt_private.pem")
	pubPath = filepath.Join(dir, "jwt_public.pem")
	if err := os.WriteFile(privPath, priv, 0o600); err != nil {
		t.Fatalf("writing private key: %v", err)
	}
	if err := os.WriteFile(pubPath, pub, 0o644); err != nil {
		t.Fatalf("writing public key: %v", err)
	}
	return privPath, pubPath
}

func TestConfigFromEnvDefaults(t *testing.T) {
	privPath, pubPath := writeTestKeyFiles(t)
	t.Setenv("JWT_PRIVATE_KEY_PATH", privPath)
	t.Setenv("JWT_PUBLIC_KEY_PATH", pubPath)

	cfg, err := ConfigFromEnv()
	if err != nil {
		t.Fatalf("ConfigFromEnv failed: %v", err)
	}

	if cfg.JWT.AccessTTL != 30*time.Minute {
		t.Fatalf("expected 30m access TTL, got %s", cfg.JWT.AccessTTL)
	}
	if cfg.JWT.RefreshTTL != 14*24*time.Hour {
		t.Fatalf("expected 14d refresh TTL, got %s", cfg.JWT.RefreshTTL)
	}
	if cfg.OTP.Digits != 6 {
		t.Fatalf("expected 6 digits, got %d", cfg.OTP.Digits)
	}
	if cfg.OTP.LoginTTL != 180*time.Second {
		t.Fatalf("expected 180s login TTL, got %s", cfg.OTP.LoginTTL)
	}
	if cfg.OTP.DefaultTTL != 5*time.Minute {
		t.Fatalf("expected 5m default TTL, got %s", cfg.OTP.DefaultTTL)
	}
	if len(cfg.JWT.PrivateKeyPEM) == 0 || len(cfg.JWT.PublicKeyPEM) == 0 {
		t.Fatal("expected key material to be loaded")
	}
}

func TestConfigFromEnvOverrides(t *testing.T) {
	privPath, pubPath := writeTestKeyFiles(t)
	t.Setenv("JWT_PRIVATE_KEY_PATH", privPath)
	t.Setenv("JWT_PUBLIC_KEY_PATH", pubPath)
	t.Setenv("ACCESS_TOKEN_EXPIRE_MINUTES", "15")
	t.Setenv("REFRESH_TOKEN_EXPIRE_DAYS", "7")
	t.Setenv("OTP_CODE_LENGTH", "8")
	t.Setenv("LOGIN_OTP_EXPIRY_SEC", "120")
	t.Setenv("OTP_EXP_MIN", "10")
	t.Setenv("RATE_LIMIT_MAX_REQUESTS", "5")

	cfg, err := ConfigFromEnv()
	if err != nil {
		t.Fatalf("ConfigFromEnv failed: %v", err)
	}

	if cfg.JWT.AccessTTL != 15*time.Minute {
		t.Fatalf("expected 15m access TTL, got %s", cfg.JWT.AccessTTL)
	}
	if cfg.JWT.RefreshTTL != 7*24*time.Hour {
		t.Fatalf("expected 7d refresh TTL, got %s", cfg.JWT.RefreshTTL)
	}
	if cfg.OTP.Digits != 8 {
		t.Fatalf("expected 8 digits, got %d", cfg.OTP.Digits)
	}
	if cfg.OTP.LoginTTL != 120*time.Second {
		t.Fatalf("expected 120s login TTL, got %s", cfg.OTP.LoginTTL)
	}
	if cfg.OTP.DefaultTTL != 10*time.Minute {
		t.Fatalf("expected 10m default TTL, got %s", cfg.OTP.DefaultTTL)
	}
	if cfg.RateLimit.Limit != 5 {
		t.Fatalf("expected rate limit 5, got %d", cfg.RateLimit.Limit)
	}
}

func TestConfigFromEnvRejectsForeignAlgorithm(t *testing.T) {
	privPath, pubPath := writeTestKeyFiles(t)
	t.Setenv("JWT_PRIVATE_KEY_PATH", privPath)
	t.Setenv("JWT_PUBLIC_KEY_PATH", pubPath)
	t.Setenv("JWT_ALGORITHM", "HS256")

	if _, err := ConfigFromEnv(); err == nil {
		t.Fatal("expected HS256 to be rejected")
	}
}

func TestConfigFromEnvMissingKeyPath(t *testing.T) {
	_, pubPath := writeTestKeyFiles(t)
	t.Setenv("JWT_PUBLIC_KEY_PATH", pubPath)
	// JWT_PRIVATE_KEY_PATH intentionally unset.

	if _, err := ConfigFromEnv(); err == nil {
		t.Fatal("expected missing key path to fail")
	}
}

func TestConfigFromEnvUnreadableKeyFile(t *testing.T) {
	_, pubPath := writeTestKeyFiles(t)
	t.Setenv("JWT_PRIVATE_KEY_PATH", filepath.Join(t.TempDir(), "missing.pem"))
	t.Setenv("JWT_PUBLIC_KEY_PATH", pubPath)

	if _, err := ConfigFromEnv(); err == nil {
		t.Fatal("expected unreadable key file to fail")
	}
}
