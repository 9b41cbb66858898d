package bankauth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/trustunion/bankauth/internal"
)

var (
	errCodeMissing          = errors.New("no pending code")
	errCodeUsed             = errors.New("code already used")
	errCodeExpired          = errors.New("code expired")
	errCodeMismatch         = errors.New("code mismatch")
	errCodeAttemptsExceeded = errors.New("code attempts exceeded")
	errOTPStoreUnavailable  = errors.New("otp store unavailable")
)

// otpManager generates, stores (hashed), and consumes one-time codes.
// The two load-bearing invariants live here: a code is single-use, and it
// is only valid inside a bounded time window.
type otpManager struct {
	store  OTPStore
	config OTPConfig
	now    func() time.Time
}

func newOTPManager(store OTPStore, cfg OTPConfig) *otpManager {
	return &otpManager{
		store:  store,
		config: cfg,
		now:    time.Now,
	}
}

// issue generates a fresh code, persists its bcrypt hash, and returns the
// plaintext to the caller for out-of-band delivery. The new row supersedes
// any earlier unconsumed code for the same (customer, purpose) pair because
// verification only ever consults the latest row.
func (m *otpManager) issue(ctx context.Context, customerID int64, purpose Purpose) (string, time.Duration, error) {
	code, err := internal.NumericCode(m.config.Digits)
	if err != nil {
		return "", 0, fmt.Errorf("generate code: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return "", 0, fmt.Errorf("hash code: %w", err)
	}

	ttl := m.config.ttl(purpose)
	now := m.now()

	rec := OTPRecord{
		CodeID:     uuid.New(),
		CustomerID: customerID,
		Purpose:    purpose,
		CodeHash:   hash,
		ExpiresAt:  now.Add(ttl),
		Used:       false,
		Attempts:   0,
		CreatedAt:  now,
	}

	if err := m.store.Insert(ctx, rec); err != nil {
		return "", 0, fmt.Errorf("%w: %v", errOTPStoreUnavailable, err)
	}

	return code, ttl, nil
}

// verify consumes the latest code for the pair. It fails closed on any
// missing, used, expired, or locked record. On a hash match the conditional
// MarkUsed decides the outcome: if another verification already consumed
// the row, this call loses and reports the code as used.
func (m *otpManager) verify(ctx context.Context, customerID int64, purpose Purpose, candidate string) error {
	rec, err := m.store.LatestForPurpose(ctx, customerID, purpose)
	if err != nil {
		if errors.Is(err, ErrCodeNotFound) {
			return errCodeMissing
		}
		return fmt.Errorf("%w: %v", errOTPStoreUnavailable, err)
	}

	if rec.Used {
		return errCodeUsed
	}
	if m.now().After(rec.ExpiresAt) {
		return errCodeExpired
	}
	if m.config.MaxAttempts > 0 && rec.Attempts >= m.config.MaxAttempts {
		return errCodeAttemptsExceeded
	}

	// bcrypt's comparison is the constant-time check for this scheme.
	if bcrypt.CompareHashAndPassword(rec.CodeHash, []byte(candidate)) != nil {
		if err := m.store.IncrementAttempts(ctx, rec.CodeID); err != nil {
			return fmt.Errorf("%w: %v", errOTPStoreUnavailable, err)
		}
		return errCodeMismatch
	}

	won, err := m.store.MarkUsed(ctx, rec.CodeID)
	if err != nil {
		return fmt.Errorf("%w: %v", errOTPStoreUnavailable, err)
	}
	if !won {
		return errCodeUsed
	}

	return nil
}
