package bankauth

import (
	"context"
	"errors"
	"time"

	"github.com/trustunion/bankauth/jwt"
	"github.com/trustunion/bankauth/role"
)

// Authorize describes the authorize operation and its observable behavior.
//
// Authorize verifies an access token, loads the subject's current role
// assignments, and checks them against the allowed set. Roles are read at
// authorization time rather than baked into the token, so a revoked role
// takes effect on the next call. super_admin satisfies every policy.
// On success the resolved customer ID is returned.
func (e *Engine) Authorize(ctx context.Context, accessToken string, allowed role.Set) (int64, error) {
	if e == nil || e.jwtManager == nil {
		return 0, ErrEngineNotReady
	}

	if e.metrics != nil && e.metrics.LatencyEnabled() {
		start := time.Now()
		defer e.metrics.Observe(MetricAuthorizeLatency, time.Since(start))
	}

	claims, err := e.jwtManager.Verify(accessToken, jwt.TypeAccess)
	if err != nil {
		mapped := mapTokenError(err)
		e.metricInc(MetricAuthorizeDenied)
		e.metricInc(MetricTokenRejected)
		e.emitAudit(ctx, auditEventAuthorize, false, 0, mapped, nil)
		return 0, mapped
	}

	customerID, err := subjectCustomerID(claims)
	if err != nil {
		e.metricInc(MetricAuthorizeDenied)
		e.emitAudit(ctx, auditEventAuthorize, false, 0, ErrInvalidSubject, nil)
		return 0, ErrInvalidSubject
	}

	held, err := e.identities.RolesByCustomer(ctx, customerID)
	if err != nil {
		e.metricInc(MetricAuthorizeDenied)
		e.emitAudit(ctx, auditEventAuthorize, false, customerID, ErrRoleUnavailable, nil)
		return 0, errors.Join(ErrRoleUnavailable, err)
	}
	if len(held) == 0 {
		e.metricInc(MetricAuthorizeDenied)
		e.emitAudit(ctx, auditEventAuthorize, false, customerID, ErrNoRolesAssigned, nil)
		return 0, ErrNoRolesAssigned
	}

	if !allowed.SatisfiedBy(held) {
		e.metricInc(MetricAuthorizeDenied)
		e.emitAudit(ctx, auditEventAuthorize, false, customerID, ErrForbidden, func() map[string]string {
			return map[string]string{
				"required": allowed.String(),
			}
		})
		return 0, ErrForbidden
	}

	e.metricInc(MetricAuthorizeSuccess)
	e.emitAudit(ctx, auditEventAuthorize, true, customerID, nil, nil)

	return customerID, nil
}

// AuthorizeCustomer describes the authorizecustomer operation and its observable behavior.
//
// AuthorizeCustomer may return an error when input validation, dependency calls, or security checks fail.
// AuthorizeCustomer does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) AuthorizeCustomer(ctx context.Context, accessToken string) (int64, error) {
	return e.Authorize(ctx, accessToken, role.CustomerOnly)
}

// AuthorizeAdmin describes the authorizeadmin operation and its observable behavior.
//
// AuthorizeAdmin may return an error when input validation, dependency calls, or security checks fail.
// AuthorizeAdmin does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) AuthorizeAdmin(ctx context.Context, accessToken string) (int64, error) {
	return e.Authorize(ctx, accessToken, role.AdminTier)
}

// AuthorizeSupport describes the authorizesupport operation and its observable behavior.
//
// AuthorizeSupport may return an error when input validation, dependency calls, or security checks fail.
// AuthorizeSupport does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) AuthorizeSupport(ctx context.Context, accessToken string) (int64, error) {
	return e.Authorize(ctx, accessToken, role.SupportTier)
}

// AuthorizeFraudTeam describes the authorizefraudteam operation and its observable behavior.
//
// AuthorizeFraudTeam may return an error when input validation, dependency calls, or security checks fail.
// AuthorizeFraudTeam does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) AuthorizeFraudTeam(ctx context.Context, accessToken string) (int64, error) {
	return e.Authorize(ctx, accessToken, role.FraudTier)
}

// AuthorizeSuperAdmin describes the authorizesuperadmin operation and its observable behavior.
//
// AuthorizeSuperAdmin may return an error when input validation, dependency calls, or security checks fail.
// AuthorizeSuperAdmin does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) AuthorizeSuperAdmin(ctx context.Context, accessToken string) (int64, error) {
	return e.Authorize(ctx, accessToken, role.SuperAdminOnly)
}
