package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/trustunion/bankauth"
)

// OTPStore implements bankauth.OTPStore over this table:
//
//	otp_codes(code_id UUID PRIMARY KEY, customer_id BIGINT, purpose TEXT,
//	          code_hash BYTEA, expires_at TIMESTAMPTZ, used BOOLEAN,
//	          attempts INT, created_at TIMESTAMPTZ)
//
// Superseded rows are left in place; LatestForPurpose only ever reads the
// newest row for a (customer, purpose) pair.
type OTPStore struct {
	db *pgxpool.Pool
}

// NewOTPStore builds a Postgres-backed one-time-code store.
func NewOTPStore(db *pgxpool.Pool) *OTPStore {
	return &OTPStore{db: db}
}

// Insert persists a freshly issued code record.
func (s *OTPStore) Insert(ctx context.Context, rec bankauth.OTPRecord) error {
	_, err := s.db.Exec(ctx, `INSERT INTO otp_codes
		(code_id, customer_id, purpose, code_hash, expires_at, used, attempts, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rec.CodeID, rec.CustomerID, string(rec.Purpose), rec.CodeHash,
		rec.ExpiresAt.UTC(), rec.Used, rec.Attempts, rec.CreatedAt.UTC())
	return err
}

// LatestForPurpose fetches the most recently created record for the pair.
func (s *OTPStore) LatestForPurpose(ctx context.Context, customerID int64, purpose bankauth.Purpose) (bankauth.OTPRecord, error) {
	row := s.db.QueryRow(ctx, `SELECT code_id, customer_id, purpose, code_hash, expires_at, used, attempts, created_at
		FROM otp_codes
		WHERE customer_id = $1 AND purpose = $2
		ORDER BY created_at DESC, code_id DESC
		LIMIT 1`, customerID, string(purpose))

	var rec bankauth.OTPRecord
	var purposeStr string
	if err := row.Scan(&rec.CodeID, &rec.CustomerID, &purposeStr, &rec.CodeHash,
		&rec.ExpiresAt, &rec.Used, &rec.Attempts, &rec.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return bankauth.OTPRecord{}, bankauth.ErrCodeNotFound
		}
		return bankauth.OTPRecord{}, err
	}
	rec.Purpose = bankauth.Purpose(purposeStr)
	return rec, nil
}

// MarkUsed flips used to true as a single conditional update. The boolean
// reports whether this call performed the flip; a concurrent verification
// that got there first leaves this call with false.
func (s *OTPStore) MarkUsed(ctx context.Context, codeID uuid.UUID) (bool, error) {
	cmd, err := s.db.Exec(ctx, `UPDATE otp_codes SET used = TRUE
		WHERE code_id = $1 AND used = FALSE`, codeID)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}

// IncrementAttempts bumps the failed-comparison counter for the record.
func (s *OTPStore) IncrementAttempts(ctx context.Context, codeID uuid.UUID) error {
	_, err := s.db.Exec(ctx, `UPDATE otp_codes SET attempts = attempts + 1
		WHERE code_id = $1`, codeID)
	return err
}
