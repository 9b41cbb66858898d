package bankauth

import (
	"context"
	"errors"
	"time"
)

const (
	auditEventLoginStart       = "login_start"
	auditEventLoginResend      = "login_resend"
	auditEventLoginVerify      = "login_verify"
	auditEventServiceCode      = "service_code_issue"
	auditEventServiceVerify    = "service_code_verify"
	auditEventMPINSet          = "mpin_set"
	auditEventMPINVerify       = "mpin_verify"
	auditEventTokenRefresh     = "token_refresh"
	auditEventAuthorize        = "authorize"
	auditEventRateLimitTripped = "rate_limit_triggered"
)

// AuditErrorCode defines a public type used by bankauth APIs.
//
// AuditErrorCode instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditErrorCode string

const (
	auditErrNotFound       AuditErrorCode = "identifier_not_found"
	auditErrRateLimited    AuditErrorCode = "rate_limited"
	auditErrCodeInvalid    AuditErrorCode = "code_invalid"
	auditErrDeliveryFailed AuditErrorCode = "delivery_failed"
	auditErrMPINInvalid    AuditErrorCode = "mpin_invalid"
	auditErrMPINMalformed  AuditErrorCode = "mpin_malformed"
	auditErrTokenExpired   AuditErrorCode = "token_expired"
	auditErrTokenInvalid   AuditErrorCode = "token_invalid"
	auditErrInvalidSubject AuditErrorCode = "invalid_subject"
	auditErrNoRoles        AuditErrorCode = "no_roles_assigned"
	auditErrForbidden      AuditErrorCode = "forbidden"
	auditErrUnavailable    AuditErrorCode = "backend_unavailable"
	auditErrInternal       AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	customerID int64,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp:  time.Now().UTC(),
		EventType:  eventType,
		CustomerID: customerID,
		IP:         clientIPFromContext(ctx),
		Success:    success,
		Metadata:   metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func (e *Engine) emitRateLimit(
	ctx context.Context,
	scope string,
	metadataBuilder func() map[string]string,
) {
	e.metricInc(MetricRateLimitHit)
	e.emitAudit(ctx, auditEventRateLimitTripped, false, 0, nil, func() map[string]string {
		base := map[string]string{
			"scope": scope,
		}
		if metadataBuilder == nil {
			return base
		}
		for k, v := range metadataBuilder() {
			base[k] = v
		}
		return base
	})
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrIdentifierNotFound):
		return auditErrNotFound
	case errors.Is(err, ErrRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrCodeInvalid):
		return auditErrCodeInvalid
	case errors.Is(err, ErrNotificationFailed):
		return auditErrDeliveryFailed
	case errors.Is(err, ErrMPINInvalid):
		return auditErrMPINInvalid
	case errors.Is(err, ErrMPINMalformed):
		return auditErrMPINMalformed
	case errors.Is(err, ErrTokenExpired):
		return auditErrTokenExpired
	case errors.Is(err, ErrTokenInvalid):
		return auditErrTokenInvalid
	case errors.Is(err, ErrInvalidSubject):
		return auditErrInvalidSubject
	case errors.Is(err, ErrNoRolesAssigned):
		return auditErrNoRoles
	case errors.Is(err, ErrForbidden):
		return auditErrForbidden
	case errors.Is(err, ErrOTPUnavailable),
		errors.Is(err, ErrIdentityUnavailable),
		errors.Is(err, ErrRoleUnavailable),
		errors.Is(err, ErrMPINUnavailable),
		errors.Is(err, ErrTokenIssueFailed):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
