package bankauth

import (
	"context"
	"errors"
	"strconv"

	"github.com/trustunion/bankauth/jwt"
)

// Refresh describes the refresh operation and its observable behavior.
//
// Refresh verifies a refresh token and issues a fresh access and refresh
// pair for its subject. Access tokens are rejected here even when
// otherwise valid: the type claim must read refresh.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if e == nil || e.jwtManager == nil {
		return nil, ErrEngineNotReady
	}

	claims, err := e.jwtManager.Verify(refreshToken, jwt.TypeRefresh)
	if err != nil {
		mapped := mapTokenError(err)
		e.metricInc(MetricRefreshFailure)
		e.metricInc(MetricTokenRejected)
		e.emitAudit(ctx, auditEventTokenRefresh, false, 0, mapped, nil)
		return nil, mapped
	}

	customerID, err := subjectCustomerID(claims)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventTokenRefresh, false, 0, ErrInvalidSubject, nil)
		return nil, ErrInvalidSubject
	}

	// The customer must still exist; a closed account stops refreshing
	// even while its refresh token is unexpired.
	if _, err := e.identities.FindByCustomerID(ctx, customerID); err != nil {
		if errors.Is(err, ErrIdentifierNotFound) {
			e.metricInc(MetricRefreshFailure)
			e.emitAudit(ctx, auditEventTokenRefresh, false, customerID, ErrInvalidSubject, nil)
			return nil, ErrInvalidSubject
		}
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventTokenRefresh, false, customerID, ErrIdentityUnavailable, nil)
		return nil, errors.Join(ErrIdentityUnavailable, err)
	}

	pair, err := e.issuePair(customerID)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventTokenRefresh, false, customerID, ErrTokenIssueFailed, nil)
		return nil, errors.Join(ErrTokenIssueFailed, err)
	}

	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(ctx, auditEventTokenRefresh, true, customerID, nil, nil)

	return pair, nil
}

func mapTokenError(err error) error {
	if errors.Is(err, jwt.ErrExpired) {
		return ErrTokenExpired
	}
	return ErrTokenInvalid
}

// subjectCustomerID parses the sub claim into a customer ID. Subjects are
// decimal customer IDs; anything else is a malformed token.
func subjectCustomerID(claims *jwt.Claims) (int64, error) {
	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrInvalidSubject
	}
	return id, nil
}
