package bankauth

import (
	"context"
	"errors"
	"strconv"
	"strings"
)

// LoginStart describes the loginstart operation and its observable behavior.
//
// LoginStart resolves the identifier, issues a fresh login code, and hands
// it to the notifier. Issuing again before the previous code is consumed
// supersedes it. A delivery failure is reported as [ErrNotificationFailed]
// together with a populated result: the code was stored and stays valid
// until it expires.
func (e *Engine) LoginStart(ctx context.Context, identifier string) (*LoginStartResult, error) {
	return e.startCode(ctx, identifier, PurposeLogin, auditEventLoginStart)
}

// ResendLoginCode describes the resendlogincode operation and its observable behavior.
//
// ResendLoginCode issues a replacement login code for the identifier. The
// previous code stops verifying the moment the new row lands, and the
// resend spends the same rate-limit budget as [Engine.LoginStart].
func (e *Engine) ResendLoginCode(ctx context.Context, identifier string) (*LoginStartResult, error) {
	return e.startCode(ctx, identifier, PurposeLogin, auditEventLoginResend)
}

// IssueServiceCode describes the issueservicecode operation and its observable behavior.
//
// IssueServiceCode issues a step-up code for an already-identified customer,
// for operations such as high-value transfers. Service codes use the longer
// default expiry window and the same single-use semantics as login codes.
func (e *Engine) IssueServiceCode(ctx context.Context, customerID int64) (*LoginStartResult, error) {
	if e == nil || e.otp == nil {
		return nil, ErrEngineNotReady
	}

	id, err := e.identities.FindByCustomerID(ctx, customerID)
	if err != nil {
		if errors.Is(err, ErrIdentifierNotFound) {
			e.emitAudit(ctx, auditEventServiceCode, false, customerID, ErrIdentifierNotFound, nil)
			return nil, ErrIdentifierNotFound
		}
		e.emitAudit(ctx, auditEventServiceCode, false, customerID, ErrIdentityUnavailable, nil)
		return nil, errors.Join(ErrIdentityUnavailable, err)
	}

	if err := e.checkThrottle(ctx, "service:"+strconv.FormatInt(customerID, 10)); err != nil {
		return nil, err
	}

	return e.issueAndDeliver(ctx, id, PurposeService, auditEventServiceCode)
}

func (e *Engine) startCode(ctx context.Context, identifier string, purpose Purpose, eventType string) (*LoginStartResult, error) {
	if e == nil || e.otp == nil {
		return nil, ErrEngineNotReady
	}

	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		e.metricInc(MetricLoginStartFailure)
		e.emitAudit(ctx, eventType, false, 0, ErrIdentifierNotFound, nil)
		return nil, ErrIdentifierNotFound
	}

	// The budget is keyed by what the caller typed, checked before
	// resolution so unresolvable identifiers cannot probe for free.
	if err := e.checkThrottle(ctx, "login:"+strings.ToLower(identifier)); err != nil {
		return nil, err
	}

	id, err := e.resolveIdentifier(ctx, identifier)
	if err != nil {
		e.metricInc(MetricLoginStartFailure)
		e.emitAudit(ctx, eventType, false, 0, err, func() map[string]string {
			return map[string]string{
				"identifier": identifier,
			}
		})
		return nil, err
	}

	return e.issueAndDeliver(ctx, id, purpose, eventType)
}

func (e *Engine) issueAndDeliver(ctx context.Context, id Identity, purpose Purpose, eventType string) (*LoginStartResult, error) {
	code, ttl, err := e.otp.issue(ctx, id.CustomerID, purpose)
	if err != nil {
		e.metricInc(MetricLoginStartFailure)
		e.emitAudit(ctx, eventType, false, id.CustomerID, ErrOTPUnavailable, nil)
		return nil, errors.Join(ErrOTPUnavailable, err)
	}
	e.metricInc(MetricCodeIssued)

	result := &LoginStartResult{
		CustomerID:    id.CustomerID,
		CodeExpiresIn: ttl,
	}

	if err := e.notifier.Send(ctx, loginCodeMessage(id, code, purpose, ttl)); err != nil {
		e.metricInc(MetricCodeDeliveryFailure)
		e.emitAudit(ctx, eventType, false, id.CustomerID, ErrNotificationFailed, func() map[string]string {
			return map[string]string{
				"purpose": string(purpose),
			}
		})
		return result, errors.Join(ErrNotificationFailed, err)
	}

	e.metricInc(MetricLoginStartSuccess)
	e.emitAudit(ctx, eventType, true, id.CustomerID, nil, func() map[string]string {
		return map[string]string{
			"purpose": string(purpose),
		}
	})

	return result, nil
}

// checkThrottle spends one unit of the issuance budget for the key, plus
// one for the caller IP when per-IP throttling is on. Limiter backend
// failures deny the request: guessing budgets fail closed.
func (e *Engine) checkThrottle(ctx context.Context, key string) error {
	if e.limiter == nil {
		return nil
	}

	if err := e.limiter.Allow(ctx, key); err != nil {
		e.metricInc(MetricLoginRateLimited)
		e.emitRateLimit(ctx, "identifier", func() map[string]string {
			return map[string]string{
				"key": key,
			}
		})
		return ErrRateLimited
	}

	if e.config.RateLimit.PerIPThrottle {
		if ip := clientIPFromContext(ctx); ip != "" {
			if err := e.limiter.Allow(ctx, "ip:"+ip); err != nil {
				e.metricInc(MetricLoginRateLimited)
				e.emitRateLimit(ctx, "ip", nil)
				return ErrRateLimited
			}
		}
	}

	return nil
}

// LoginVerify describes the loginverify operation and its observable behavior.
//
// LoginVerify consumes the latest login code for the customer and, on a
// match, issues an access and refresh token pair. Every verification
// failure surfaces as [ErrCodeInvalid]; the audit trail carries the cause.
func (e *Engine) LoginVerify(ctx context.Context, customerID int64, code string) (*TokenPair, error) {
	if e == nil || e.otp == nil {
		return nil, ErrEngineNotReady
	}

	if err := e.otp.verify(ctx, customerID, PurposeLogin, code); err != nil {
		if errors.Is(err, errOTPStoreUnavailable) {
			e.metricInc(MetricLoginVerifyFailure)
			e.emitAudit(ctx, auditEventLoginVerify, false, customerID, ErrOTPUnavailable, nil)
			return nil, errors.Join(ErrOTPUnavailable, err)
		}
		if errors.Is(err, errCodeAttemptsExceeded) {
			e.metricInc(MetricCodeAttemptsExceeded)
		}
		e.metricInc(MetricLoginVerifyFailure)
		e.emitAudit(ctx, auditEventLoginVerify, false, customerID, ErrCodeInvalid, func() map[string]string {
			return map[string]string{
				"cause": err.Error(),
			}
		})
		return nil, ErrCodeInvalid
	}

	pair, err := e.issuePair(customerID)
	if err != nil {
		e.metricInc(MetricLoginVerifyFailure)
		e.emitAudit(ctx, auditEventLoginVerify, false, customerID, ErrTokenIssueFailed, nil)
		return nil, errors.Join(ErrTokenIssueFailed, err)
	}

	e.metricInc(MetricLoginVerifySuccess)
	e.emitAudit(ctx, auditEventLoginVerify, true, customerID, nil, nil)

	return pair, nil
}

// VerifyServiceCode describes the verifyservicecode operation and its observable behavior.
//
// VerifyServiceCode consumes the latest service code for the customer. It
// issues no tokens; the caller already holds a session and only needs the
// step-up confirmation.
func (e *Engine) VerifyServiceCode(ctx context.Context, customerID int64, code string) error {
	if e == nil || e.otp == nil {
		return ErrEngineNotReady
	}

	if err := e.otp.verify(ctx, customerID, PurposeService, code); err != nil {
		if errors.Is(err, errOTPStoreUnavailable) {
			e.emitAudit(ctx, auditEventServiceVerify, false, customerID, ErrOTPUnavailable, nil)
			return errors.Join(ErrOTPUnavailable, err)
		}
		if errors.Is(err, errCodeAttemptsExceeded) {
			e.metricInc(MetricCodeAttemptsExceeded)
		}
		e.emitAudit(ctx, auditEventServiceVerify, false, customerID, ErrCodeInvalid, func() map[string]string {
			return map[string]string{
				"cause": err.Error(),
			}
		})
		return ErrCodeInvalid
	}

	e.emitAudit(ctx, auditEventServiceVerify, true, customerID, nil, nil)
	return nil
}

func (e *Engine) issuePair(customerID int64) (*TokenPair, error) {
	access, err := e.jwtManager.IssueAccess(customerID)
	if err != nil {
		return nil, err
	}
	refresh, err := e.jwtManager.IssueRefresh(customerID)
	if err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}
