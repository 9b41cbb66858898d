package jwt

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenType distinguishes the two session token flavors carried in the
// "type" claim.
type TokenType string

const (
	// TypeAccess is the short-lived token presented on every protected call.
	TypeAccess TokenType = "access"
	// TypeRefresh is the long-lived token exchanged for new access tokens.
	TypeRefresh TokenType = "refresh"
)

var (
	// ErrExpired is returned when a token's exp claim has elapsed.
	ErrExpired = errors.New("token expired")
	// ErrInvalid is returned for any other verification failure: bad
	// signature, wrong issuer or audience, malformed input, wrong type.
	ErrInvalid = errors.New("invalid token")
	// ErrNoSigningKey is returned by the issue methods of a verify-only
	// manager constructed without a private key.
	ErrNoSigningKey = errors.New("signing key not configured")
)

// Config defines a public type used by bankauth APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Issuer     string
	Audience   string
	Leeway     time.Duration

	// PEM-encoded RSA key material. PublicKeyPEM is always required.
	// PrivateKeyPEM may be empty for a verify-only manager.
	PrivateKeyPEM []byte
	PublicKeyPEM  []byte
}

// Claims is the decoded claim set of a verified session token.
type Claims struct {
	TokenType string `json:"type"`
	jwt.RegisteredClaims
}

// Manager defines a public type used by bankauth APIs.
//
// Manager instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Manager struct {
	config    Config
	signKey   *rsa.PrivateKey
	verifyKey *rsa.PublicKey
}

// NewManager parses the configured key material once and returns a Manager.
// Missing or malformed keys are a construction error: callers are expected
// to treat this as fatal at process start, not as a recoverable condition.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.Issuer == "" || cfg.Audience == "" {
		return nil, errors.New("issuer and audience are required")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if len(cfg.PublicKeyPEM) == 0 {
		return nil, errors.New("rs256 requires public key")
	}

	verifyKey, err := jwt.ParseRSAPublicKeyFromPEM(cfg.PublicKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("invalid rsa public key: %w", err)
	}

	m := &Manager{config: cfg, verifyKey: verifyKey}

	if len(cfg.PrivateKeyPEM) > 0 {
		signKey, err := jwt.ParseRSAPrivateKeyFromPEM(cfg.PrivateKeyPEM)
		if err != nil {
			return nil, fmt.Errorf("invalid rsa private key: %w", err)
		}
		if !signKey.PublicKey.Equal(verifyKey) {
			return nil, errors.New("private key does not match public key")
		}
		m.signKey = signKey
	}

	return m, nil
}

// CanSign reports whether the manager holds a private key and may issue
// tokens. A verify-only manager returns false.
func (m *Manager) CanSign() bool {
	return m != nil && m.signKey != nil
}

// IssueAccess signs a new access token for the customer.
func (m *Manager) IssueAccess(customerID int64) (string, error) {
	return m.issue(customerID, TypeAccess, m.config.AccessTTL)
}

// IssueRefresh signs a new refresh token for the customer.
func (m *Manager) IssueRefresh(customerID int64) (string, error) {
	return m.issue(customerID, TypeRefresh, m.config.RefreshTTL)
}

func (m *Manager) issue(customerID int64, typ TokenType, ttl time.Duration) (string, error) {
	if m.signKey == nil {
		return "", ErrNoSigningKey
	}

	now := time.Now()
	claims := Claims{
		TokenType: string(typ),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(customerID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Issuer:    m.config.Issuer,
			Audience:  jwt.ClaimStrings{m.config.Audience},
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(m.signKey)
}

// Verify checks the token signature against the configured public key, then
// expiry, issuer, audience, and the type claim. Failures collapse into
// ErrExpired or ErrInvalid; callers never see raw parser errors.
func (m *Manager) Verify(tokenStr string, want TokenType) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer(m.config.Issuer),
		jwt.WithAudience(m.config.Audience),
		jwt.WithExpirationRequired(),
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		return m.verifyKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, ErrInvalid
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalid
	}
	if claims.TokenType != string(want) {
		return nil, ErrInvalid
	}

	return claims, nil
}
