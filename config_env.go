package bankauth

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
)

// envSettings mirrors the deployment environment surface. Variable names
// follow the service's existing conventions.
type envSettings struct {
	Algorithm          string `env:"JWT_ALGORITHM" envDefault:"RS256"`
	AccessTokenMinutes int    `env:"ACCESS_TOKEN_EXPIRE_MINUTES" envDefault:"30"`
	RefreshTokenDays   int    `env:"REFRESH_TOKEN_EXPIRE_DAYS" envDefault:"14"`
	PrivateKeyPath     string `env:"JWT_PRIVATE_KEY_PATH,notEmpty"`
	PublicKeyPath      string `env:"JWT_PUBLIC_KEY_PATH,notEmpty"`

	OTPDigits        int `env:"OTP_CODE_LENGTH" envDefault:"6"`
	LoginOTPSeconds  int `env:"LOGIN_OTP_EXPIRY_SEC" envDefault:"180"`
	OTPExpiryMinutes int `env:"OTP_EXP_MIN" envDefault:"5"`
	OTPMaxAttempts   int `env:"OTP_MAX_ATTEMPTS" envDefault:"5"`

	RateWindowSeconds int `env:"RATE_LIMIT_WINDOW_SEC" envDefault:"60"`
	RateLimit         int `env:"RATE_LIMIT_MAX_REQUESTS" envDefault:"10"`
}

// ConfigFromEnv builds a [Config] from the process environment, loading the
// signing keys from the configured PEM paths. Any failure here is a fatal
// configuration error: callers should abort startup rather than run with a
// partial config.
func ConfigFromEnv() (Config, error) {
	var settings envSettings
	if err := env.Parse(&settings); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}

	// The signing scheme is fixed; the variable exists so a misconfigured
	// deployment fails loudly instead of silently downgrading.
	if settings.Algorithm != "RS256" {
		return Config{}, fmt.Errorf("unsupported JWT_ALGORITHM %q: only RS256 is supported", settings.Algorithm)
	}

	privateKey, err := os.ReadFile(settings.PrivateKeyPath)
	if err != nil {
		return Config{}, fmt.Errorf("read private key: %w", err)
	}
	publicKey, err := os.ReadFile(settings.PublicKeyPath)
	if err != nil {
		return Config{}, fmt.Errorf("read public key: %w", err)
	}

	cfg := DefaultConfig()
	cfg.JWT.AccessTTL = time.Duration(settings.AccessTokenMinutes) * time.Minute
	cfg.JWT.RefreshTTL = time.Duration(settings.RefreshTokenDays) * 24 * time.Hour
	cfg.JWT.PrivateKeyPEM = privateKey
	cfg.JWT.PublicKeyPEM = publicKey
	cfg.OTP.Digits = settings.OTPDigits
	cfg.OTP.LoginTTL = time.Duration(settings.LoginOTPSeconds) * time.Second
	cfg.OTP.DefaultTTL = time.Duration(settings.OTPExpiryMinutes) * time.Minute
	cfg.OTP.MaxAttempts = settings.OTPMaxAttempts
	cfg.RateLimit.Window = time.Duration(settings.RateWindowSeconds) * time.Second
	cfg.RateLimit.Limit = settings.RateLimit

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}
