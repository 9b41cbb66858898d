package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/trustunion/bankauth"
)

// MPINStore implements bankauth.MPINStore over this table:
//
//	security_mpin(customer_id BIGINT PRIMARY KEY REFERENCES customers,
//	              mpin_hash BYTEA, created_at TIMESTAMPTZ)
type MPINStore struct {
	db *pgxpool.Pool
}

// NewMPINStore builds a Postgres-backed MPIN credential store.
func NewMPINStore(db *pgxpool.Pool) *MPINStore {
	return &MPINStore{db: db}
}

// UpsertHash stores the hash for the customer, replacing any previous one.
func (s *MPINStore) UpsertHash(ctx context.Context, customerID int64, hash []byte) error {
	_, err := s.db.Exec(ctx, `INSERT INTO security_mpin (customer_id, mpin_hash, created_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (customer_id) DO UPDATE
		SET mpin_hash = EXCLUDED.mpin_hash, created_at = NOW()`,
		customerID, hash)
	return err
}

// Hash fetches the stored hash for the customer.
func (s *MPINStore) Hash(ctx context.Context, customerID int64) ([]byte, error) {
	var hash []byte
	err := s.db.QueryRow(ctx, `SELECT mpin_hash FROM security_mpin
		WHERE customer_id = $1`, customerID).Scan(&hash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, bankauth.ErrMPINNotSet
		}
		return nil, err
	}
	return hash, nil
}
