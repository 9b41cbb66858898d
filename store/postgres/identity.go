package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/trustunion/bankauth"
	"github.com/trustunion/bankauth/role"
)

// IdentityStore implements bankauth.IdentityStore over these tables:
//
//	customers(customer_id BIGSERIAL PRIMARY KEY, name TEXT, email TEXT UNIQUE, phone TEXT UNIQUE)
//	accounts(account_number TEXT PRIMARY KEY, customer_id BIGINT REFERENCES customers)
//	customer_roles(customer_id BIGINT REFERENCES customers, role TEXT, PRIMARY KEY (customer_id, role))
type IdentityStore struct {
	db *pgxpool.Pool
}

// NewIdentityStore builds a Postgres-backed identity store.
func NewIdentityStore(db *pgxpool.Pool) *IdentityStore {
	return &IdentityStore{db: db}
}

const identityColumns = `c.customer_id, c.name, c.email, c.phone,
	COALESCE(array_agg(a.account_number) FILTER (WHERE a.account_number IS NOT NULL), '{}')`

// FindByEmail fetches a customer by email address.
func (s *IdentityStore) FindByEmail(ctx context.Context, email string) (bankauth.Identity, error) {
	return s.findBy(ctx, `c.email = $1`, email)
}

// FindByPhone fetches a customer by phone number.
func (s *IdentityStore) FindByPhone(ctx context.Context, phone string) (bankauth.Identity, error) {
	return s.findBy(ctx, `c.phone = $1`, phone)
}

// FindByAccountNumber fetches the customer owning the account.
func (s *IdentityStore) FindByAccountNumber(ctx context.Context, accountNumber string) (bankauth.Identity, error) {
	return s.findBy(ctx, `c.customer_id = (SELECT customer_id FROM accounts WHERE account_number = $1)`, accountNumber)
}

// FindByCustomerID fetches a customer by primary key.
func (s *IdentityStore) FindByCustomerID(ctx context.Context, customerID int64) (bankauth.Identity, error) {
	return s.findBy(ctx, `c.customer_id = $1`, customerID)
}

func (s *IdentityStore) findBy(ctx context.Context, where string, arg any) (bankauth.Identity, error) {
	row := s.db.QueryRow(ctx, `SELECT `+identityColumns+`
		FROM customers c
		LEFT JOIN accounts a ON a.customer_id = c.customer_id
		WHERE `+where+`
		GROUP BY c.customer_id`, arg)

	var id bankauth.Identity
	if err := row.Scan(&id.CustomerID, &id.Name, &id.Email, &id.Phone, &id.AccountNumbers); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return bankauth.Identity{}, bankauth.ErrIdentifierNotFound
		}
		return bankauth.Identity{}, err
	}
	return id, nil
}

// RolesByCustomer fetches the customer's current role assignments. Rows
// holding role names this build does not know are skipped rather than
// failing the whole authorization.
func (s *IdentityStore) RolesByCustomer(ctx context.Context, customerID int64) ([]role.Role, error) {
	rows, err := s.db.Query(ctx, `SELECT role FROM customer_roles WHERE customer_id = $1`, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var held []role.Role
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		if r, err := role.Parse(name); err == nil {
			held = append(held, r)
		}
	}
	return held, rows.Err()
}
