package bankauth

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/trustunion/bankauth/role"
)

// Purpose defines a public type used by bankauth APIs.
//
// Purpose instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Purpose string

const (
	// PurposeLogin is an exported constant or variable used by the authentication engine.
	PurposeLogin Purpose = "login"
	// PurposeService is an exported constant or variable used by the authentication engine.
	PurposeService Purpose = "service"
)

// Identity is a canonical customer record resolved from a login identifier.
// The identity store owns these rows; the engine only reads them.
type Identity struct {
	CustomerID     int64
	Name           string
	Email          string
	Phone          string
	AccountNumbers []string
}

// OTPRecord is one issued one-time code. Rows are never physically deleted;
// verification marks them used or increments attempts, and superseded rows
// simply stop being the latest for their (customer, purpose) pair.
type OTPRecord struct {
	CodeID     uuid.UUID
	CustomerID int64
	Purpose    Purpose
	CodeHash   []byte
	ExpiresAt  time.Time
	Used       bool
	Attempts   int
	CreatedAt  time.Time
}

// IdentityStore is the read-only collaborator for customer identities and
// role assignments. Implementations return [ErrIdentifierNotFound] when a
// lookup matches no row. All methods must honor ctx cancellation; the
// engine treats any other error as backend unavailability and fails closed.
type IdentityStore interface {
	FindByEmail(ctx context.Context, email string) (Identity, error)
	FindByPhone(ctx context.Context, phone string) (Identity, error)
	FindByAccountNumber(ctx context.Context, accountNumber string) (Identity, error)
	FindByCustomerID(ctx context.Context, customerID int64) (Identity, error)
	RolesByCustomer(ctx context.Context, customerID int64) ([]role.Role, error)
}

// OTPStore persists one-time-code records. LatestForPurpose returns the
// most recently created record for the pair, or [ErrCodeNotFound]. MarkUsed
// is the anti-replay linchpin: it must flip used=false to used=true as one
// conditional update and report whether this call won, so two concurrent
// verifications cannot both succeed.
type OTPStore interface {
	Insert(ctx context.Context, rec OTPRecord) error
	LatestForPurpose(ctx context.Context, customerID int64, purpose Purpose) (OTPRecord, error)
	MarkUsed(ctx context.Context, codeID uuid.UUID) (bool, error)
	IncrementAttempts(ctx context.Context, codeID uuid.UUID) error
}

// MPINStore persists the bcrypt hash of each customer's MPIN. UpsertHash
// replaces any hash already stored for the customer; enrolling again is an
// overwrite, not an error. Hash returns [ErrMPINNotSet] when the customer
// has never enrolled. The engine treats any other error as backend
// unavailability and fails closed.
type MPINStore interface {
	UpsertHash(ctx context.Context, customerID int64, hash []byte) error
	Hash(ctx context.Context, customerID int64) ([]byte, error)
}

// TokenPair is returned by [Engine.LoginVerify] and [Engine.Refresh].
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// LoginStartResult is returned by [Engine.LoginStart] and
// [Engine.ResendLoginCode]. When delivery fails the result still carries
// the resolved customer and expiry alongside [ErrNotificationFailed]: the
// issued code stays valid until its natural expiry.
type LoginStartResult struct {
	CustomerID    int64
	CodeExpiresIn time.Duration
}
