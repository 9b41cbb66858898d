package bankauth

import "errors"

var (
	// ErrIdentifierNotFound is an exported constant or variable used by the authentication engine.
	ErrIdentifierNotFound = errors.New("identifier does not resolve to a customer")
	// ErrRateLimited is an exported constant or variable used by the authentication engine.
	ErrRateLimited = errors.New("rate limited")
	// ErrCodeInvalid is an exported constant or variable used by the authentication engine.
	//
	// All one-time-code verification failures (missing, superseded, expired,
	// already used, mismatch, attempts exceeded) collapse into this single
	// error so the response does not reveal which condition held. The audit
	// trail records the precise cause.
	ErrCodeInvalid = errors.New("invalid or expired code")
	// ErrCodeNotFound is an exported constant or variable used by the authentication engine.
	//
	// OTPStore implementations return ErrCodeNotFound when no record exists
	// for the requested customer and purpose.
	ErrCodeNotFound = errors.New("one-time code not found")
	// ErrNotificationFailed is an exported constant or variable used by the authentication engine.
	ErrNotificationFailed = errors.New("code delivery failed")
	// ErrOTPUnavailable is an exported constant or variable used by the authentication engine.
	ErrOTPUnavailable = errors.New("one-time code backend unavailable")
	// ErrIdentityUnavailable is an exported constant or variable used by the authentication engine.
	ErrIdentityUnavailable = errors.New("identity backend unavailable")
	// ErrTokenExpired is an exported constant or variable used by the authentication engine.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenInvalid is an exported constant or variable used by the authentication engine.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrTokenIssueFailed is an exported constant or variable used by the authentication engine.
	ErrTokenIssueFailed = errors.New("token issuance failed")
	// ErrInvalidSubject is an exported constant or variable used by the authentication engine.
	ErrInvalidSubject = errors.New("invalid token subject")
	// ErrNoRolesAssigned is an exported constant or variable used by the authentication engine.
	ErrNoRolesAssigned = errors.New("no roles assigned")
	// ErrForbidden is an exported constant or variable used by the authentication engine.
	ErrForbidden = errors.New("insufficient permissions")
	// ErrRoleUnavailable is an exported constant or variable used by the authentication engine.
	ErrRoleUnavailable = errors.New("role backend unavailable")
	// ErrEngineNotReady is an exported constant or variable used by the authentication engine.
	ErrEngineNotReady = errors.New("engine not initialized")
	// ErrMPINMalformed is an exported constant or variable used by the authentication engine.
	//
	// An MPIN is four to twelve decimal digits. SetMPIN rejects anything
	// else before touching the store.
	ErrMPINMalformed = errors.New("mpin must be 4 to 12 digits")
	// ErrMPINInvalid is an exported constant or variable used by the authentication engine.
	//
	// Both a wrong MPIN and a customer who never enrolled one collapse into
	// this single error; the audit trail records which condition held.
	ErrMPINInvalid = errors.New("invalid mpin")
	// ErrMPINNotSet is an exported constant or variable used by the authentication engine.
	//
	// MPINStore implementations return ErrMPINNotSet when the customer has
	// no stored hash.
	ErrMPINNotSet = errors.New("mpin not set")
	// ErrMPINNotEnabled is an exported constant or variable used by the authentication engine.
	ErrMPINNotEnabled = errors.New("mpin store not configured")
	// ErrMPINUnavailable is an exported constant or variable used by the authentication engine.
	ErrMPINUnavailable = errors.New("mpin backend unavailable")
)
