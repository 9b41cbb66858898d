package bankauth

import (
	"context"
	"errors"
	"strings"
)

// resolveIdentifier maps a raw login input to a canonical identity.
// Inputs containing "@" are emails. Purely numeric inputs are tried as
// account numbers before phone numbers: in this domain a digit string is
// far more likely to be an account number, so the account table wins the
// tie-break. Anything else does not resolve.
func (e *Engine) resolveIdentifier(ctx context.Context, identifier string) (Identity, error) {
	if strings.Contains(identifier, "@") {
		return e.lookup(e.identities.FindByEmail)(ctx, identifier)
	}

	if isNumericString(identifier) {
		id, err := e.lookup(e.identities.FindByAccountNumber)(ctx, identifier)
		if err == nil || !errors.Is(err, ErrIdentifierNotFound) {
			return id, err
		}
		return e.lookup(e.identities.FindByPhone)(ctx, identifier)
	}

	return Identity{}, ErrIdentifierNotFound
}

type lookupFunc func(ctx context.Context, key string) (Identity, error)

// lookup wraps a store lookup so that anything other than a clean miss is
// reported as backend unavailability rather than "not found".
func (e *Engine) lookup(fn lookupFunc) lookupFunc {
	return func(ctx context.Context, key string) (Identity, error) {
		id, err := fn(ctx, key)
		if err != nil {
			if errors.Is(err, ErrIdentifierNotFound) {
				return Identity{}, ErrIdentifierNotFound
			}
			return Identity{}, errors.Join(ErrIdentityUnavailable, err)
		}
		return id, nil
	}
}

func isNumericString(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
