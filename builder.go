package bankauth

import (
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/trustunion/bankauth/jwt"
	"github.com/trustunion/bankauth/rate"
)

// Builder defines a public type used by bankauth APIs.
//
// Builder instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	identities IdentityStore
	otpStore   OTPStore
	mpinStore  MPINStore
	notifier   Notifier
	limiter    rate.Limiter
	auditSink  AuditSink

	built bool
}

// New describes the new operation and its observable behavior.
//
// New may return an error when input validation, dependency calls, or security checks fail.
// New does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig describes the withconfig operation and its observable behavior.
//
// WithConfig may return an error when input validation, dependency calls, or security checks fail.
// WithConfig does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithIdentityStore describes the withidentitystore operation and its observable behavior.
//
// WithIdentityStore may return an error when input validation, dependency calls, or security checks fail.
// WithIdentityStore does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithIdentityStore(s IdentityStore) *Builder {
	b.identities = s
	return b
}

// WithOTPStore describes the withotpstore operation and its observable behavior.
//
// WithOTPStore may return an error when input validation, dependency calls, or security checks fail.
// WithOTPStore does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithOTPStore(s OTPStore) *Builder {
	b.otpStore = s
	return b
}

// WithMPINStore describes the withmpinstore operation and its observable behavior.
//
// WithMPINStore wires the optional MPIN credential store. Without it the
// engine builds normally and [Engine.SetMPIN] and [Engine.VerifyMPIN]
// return [ErrMPINNotEnabled].
func (b *Builder) WithMPINStore(s MPINStore) *Builder {
	b.mpinStore = s
	return b
}

// WithNotifier describes the withnotifier operation and its observable behavior.
//
// WithNotifier may return an error when input validation, dependency calls, or security checks fail.
// WithNotifier does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithNotifier(n Notifier) *Builder {
	b.notifier = n
	return b
}

// WithRateLimiter describes the withratelimiter operation and its observable behavior.
//
// WithRateLimiter overrides the default process-local sliding window with a
// caller-supplied limiter, typically [rate.RedisLimiter] for multi-instance
// deployments.
func (b *Builder) WithRateLimiter(l rate.Limiter) *Builder {
	b.limiter = l
	return b
}

// WithRedis describes the withredis operation and its observable behavior.
//
// WithRedis may return an error when input validation, dependency calls, or security checks fail.
// WithRedis does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithAuditSink describes the withauditsink operation and its observable behavior.
//
// WithAuditSink may return an error when input validation, dependency calls, or security checks fail.
// WithAuditSink does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithMetricsEnabled describes the withmetricsenabled operation and its observable behavior.
//
// WithMetricsEnabled may return an error when input validation, dependency calls, or security checks fail.
// WithMetricsEnabled does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms describes the withlatencyhistograms operation and its observable behavior.
//
// WithLatencyHistograms may return an error when input validation, dependency calls, or security checks fail.
// WithLatencyHistograms does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build describes the build operation and its observable behavior.
//
// Build may return an error when input validation, dependency calls, or security checks fail.
// Build does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.identities == nil {
		return nil, errors.New("identity store required")
	}

	if b.otpStore == nil {
		return nil, errors.New("otp store required")
	}

	if b.notifier == nil {
		return nil, errors.New("notifier required")
	}

	jm, err := jwt.NewManager(jwt.Config{
		AccessTTL:     cfg.JWT.AccessTTL,
		RefreshTTL:    cfg.JWT.RefreshTTL,
		Issuer:        cfg.JWT.Issuer,
		Audience:      cfg.JWT.Audience,
		Leeway:        cfg.JWT.Leeway,
		PrivateKeyPEM: cloneBytes(cfg.JWT.PrivateKeyPEM),
		PublicKeyPEM:  cloneBytes(cfg.JWT.PublicKeyPEM),
	})
	if err != nil {
		return nil, err
	}
	if !jm.CanSign() {
		return nil, errors.New("signing key required to issue tokens")
	}

	limiter := b.limiter
	if limiter == nil {
		limiterCfg := rate.Config{
			Window: cfg.RateLimit.Window,
			Limit:  cfg.RateLimit.Limit,
		}
		if b.redis != nil {
			limiter = rate.NewRedisLimiter(b.redis, limiterCfg)
		} else {
			limiter = rate.NewWindow(limiterCfg)
		}
	}

	engine := &Engine{
		config:     cfg,
		jwtManager: jm,
		identities: b.identities,
		otp:        newOTPManager(b.otpStore, cfg.OTP),
		mpins:      b.mpinStore,
		notifier:   b.notifier,
		limiter:    limiter,
		audit:      newAuditDispatcher(cfg.Audit, b.auditSink),
		metrics:    NewMetrics(cfg.Metrics),
	}

	b.built = true

	return engine, nil
}
