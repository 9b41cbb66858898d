package bankauth

import (
	"context"
	"errors"
	"strconv"

	"golang.org/x/crypto/bcrypt"
)

const (
	minMPINDigits = 4
	maxMPINDigits = 12
)

// SetMPIN describes the setmpin operation and its observable behavior.
//
// SetMPIN enrolls or replaces the customer's MPIN. The plaintext never
// reaches the store; only a bcrypt hash is persisted, and enrolling again
// overwrites the previous hash. The MPIN must be four to twelve decimal
// digits.
func (e *Engine) SetMPIN(ctx context.Context, customerID int64, mpin string) error {
	if e == nil || e.identities == nil {
		return ErrEngineNotReady
	}
	if e.mpins == nil {
		return ErrMPINNotEnabled
	}

	if !isNumericString(mpin) || len(mpin) < minMPINDigits || len(mpin) > maxMPINDigits {
		e.emitAudit(ctx, auditEventMPINSet, false, customerID, ErrMPINMalformed, nil)
		return ErrMPINMalformed
	}

	if _, err := e.identities.FindByCustomerID(ctx, customerID); err != nil {
		if errors.Is(err, ErrIdentifierNotFound) {
			e.emitAudit(ctx, auditEventMPINSet, false, customerID, ErrIdentifierNotFound, nil)
			return ErrIdentifierNotFound
		}
		e.emitAudit(ctx, auditEventMPINSet, false, customerID, ErrIdentityUnavailable, nil)
		return errors.Join(ErrIdentityUnavailable, err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(mpin), bcrypt.DefaultCost)
	if err != nil {
		e.emitAudit(ctx, auditEventMPINSet, false, customerID, ErrMPINUnavailable, nil)
		return errors.Join(ErrMPINUnavailable, err)
	}

	if err := e.mpins.UpsertHash(ctx, customerID, hash); err != nil {
		e.emitAudit(ctx, auditEventMPINSet, false, customerID, ErrMPINUnavailable, nil)
		return errors.Join(ErrMPINUnavailable, err)
	}

	e.metricInc(MetricMPINSet)
	e.emitAudit(ctx, auditEventMPINSet, true, customerID, nil, nil)

	return nil
}

// VerifyMPIN describes the verifympin operation and its observable behavior.
//
// VerifyMPIN checks the candidate against the customer's stored hash. A
// wrong MPIN and a customer who never enrolled both surface as
// [ErrMPINInvalid]; the audit trail carries the cause. Unlike one-time
// codes an MPIN row has no attempt counter, so the shared issuance
// throttle bounds guessing instead.
func (e *Engine) VerifyMPIN(ctx context.Context, customerID int64, mpin string) error {
	if e == nil || e.identities == nil {
		return ErrEngineNotReady
	}
	if e.mpins == nil {
		return ErrMPINNotEnabled
	}

	if err := e.checkThrottle(ctx, "mpin:"+strconv.FormatInt(customerID, 10)); err != nil {
		return err
	}

	stored, err := e.mpins.Hash(ctx, customerID)
	if err != nil {
		if errors.Is(err, ErrMPINNotSet) {
			e.metricInc(MetricMPINVerifyFailure)
			e.emitAudit(ctx, auditEventMPINVerify, false, customerID, ErrMPINInvalid, func() map[string]string {
				return map[string]string{
					"cause": ErrMPINNotSet.Error(),
				}
			})
			return ErrMPINInvalid
		}
		e.metricInc(MetricMPINVerifyFailure)
		e.emitAudit(ctx, auditEventMPINVerify, false, customerID, ErrMPINUnavailable, nil)
		return errors.Join(ErrMPINUnavailable, err)
	}

	if bcrypt.CompareHashAndPassword(stored, []byte(mpin)) != nil {
		e.metricInc(MetricMPINVerifyFailure)
		e.emitAudit(ctx, auditEventMPINVerify, false, customerID, ErrMPINInvalid, func() map[string]string {
			return map[string]string{
				"cause": "mpin mismatch",
			}
		})
		return ErrMPINInvalid
	}

	e.metricInc(MetricMPINVerifySuccess)
	e.emitAudit(ctx, auditEventMPINVerify, true, customerID, nil, nil)

	return nil
}
