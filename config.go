package bankauth

import (
	"errors"
	"time"
)

// Config defines a public type used by bankauth APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	JWT       JWTConfig
	OTP       OTPConfig
	RateLimit RateLimitConfig
	Audit     AuditConfig
	Metrics   MetricsConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig defines a public type used by bankauth APIs.
//
// JWTConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type JWTConfig struct {
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Issuer     string
	Audience   string
	Leeway     time.Duration

	// PEM-encoded RSA keys. RS256 is the only supported scheme.
	PrivateKeyPEM []byte
	PublicKeyPEM  []byte
}

/*
====================================
OTP CONFIG
====================================
*/

// OTPConfig defines a public type used by bankauth APIs.
//
// OTPConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type OTPConfig struct {
	Digits int

	// LoginTTL applies to the login purpose; DefaultTTL to every other
	// purpose. The expiry window is per purpose, not a universal constant.
	LoginTTL   time.Duration
	DefaultTTL time.Duration

	// MaxAttempts locks a code after this many failed comparisons.
	// 0 disables the lockout.
	MaxAttempts int
}

func (c OTPConfig) ttl(purpose Purpose) time.Duration {
	if purpose == PurposeLogin {
		return c.LoginTTL
	}
	return c.DefaultTTL
}

/*
====================================
RATE LIMIT CONFIG
====================================
*/

// RateLimitConfig defines a public type used by bankauth APIs.
//
// RateLimitConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type RateLimitConfig struct {
	Window time.Duration
	Limit  int

	// PerIPThrottle additionally budgets the caller IP attached via
	// [WithClientIP].
	PerIPThrottle bool
}

// AuditConfig defines a public type used by bankauth APIs.
//
// AuditConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig defines a public type used by bankauth APIs.
//
// MetricsConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the baseline configuration: 30 minute access
// tokens, 14 day refresh tokens, 6-digit codes with a 180 second login
// window, and a 10-per-60s issuance throttle. Key material must still be
// supplied by the caller.
func DefaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:  30 * time.Minute,
			RefreshTTL: 14 * 24 * time.Hour,
			Issuer:     "trust-union-bank",
			Audience:   "trust-union-clients",
			Leeway:     0,
		},
		OTP: OTPConfig{
			Digits:      6,
			LoginTTL:    180 * time.Second,
			DefaultTTL:  5 * time.Minute,
			MaxAttempts: 5,
		},
		RateLimit: RateLimitConfig{
			Window:        60 * time.Second,
			Limit:         10,
			PerIPThrottle: false,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKeyPEM = cloneBytes(cfg.JWT.PrivateKeyPEM)
	out.JWT.PublicKeyPEM = cloneBytes(cfg.JWT.PublicKeyPEM)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate describes the validate operation and its observable behavior.
//
// Validate may return an error when input validation, dependency calls, or security checks fail.
// Validate does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Config) Validate() error {
	// JWT
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	if c.JWT.RefreshTTL <= 0 {
		return errors.New("JWT RefreshTTL must be > 0")
	}
	if c.JWT.RefreshTTL < c.JWT.AccessTTL {
		return errors.New("JWT RefreshTTL must be >= AccessTTL")
	}
	if c.JWT.Issuer == "" {
		return errors.New("JWT Issuer must be set")
	}
	if c.JWT.Audience == "" {
		return errors.New("JWT Audience must be set")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("JWT Leeway out of range")
	}
	if len(c.JWT.PublicKeyPEM) == 0 {
		return errors.New("JWT PublicKeyPEM must be set")
	}

	// OTP
	if c.OTP.Digits < 6 || c.OTP.Digits > 10 {
		return errors.New("OTP Digits must be between 6 and 10")
	}
	if c.OTP.LoginTTL <= 0 {
		return errors.New("OTP LoginTTL must be > 0")
	}
	if c.OTP.DefaultTTL <= 0 {
		return errors.New("OTP DefaultTTL must be > 0")
	}
	if c.OTP.MaxAttempts < 0 {
		return errors.New("OTP MaxAttempts must be >= 0")
	}

	// Rate limit
	if c.RateLimit.Window <= 0 {
		return errors.New("RateLimit Window must be > 0")
	}
	if c.RateLimit.Limit <= 0 {
		return errors.New("RateLimit Limit must be > 0")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when enabled")
	}

	return nil
}
