package role

import (
	"fmt"
	"sort"
	"strings"
)

// Role identifies one entry in the bank's closed role taxonomy.
type Role uint8

const (
	// Customer is an ordinary account holder.
	Customer Role = iota
	// Admin is a back-office administrator.
	Admin
	// SuperAdmin is the elevated administrator role. It satisfies any role
	// requirement (see [Set.SatisfiedBy]).
	SuperAdmin
	// SupportAgent handles customer support operations.
	SupportAgent
	// FraudAnalyst works fraud-investigation queues.
	FraudAnalyst
	// KYCAgent reviews know-your-customer documents.
	KYCAgent

	roleCount
)

var names = [roleCount]string{
	Customer:     "customer",
	Admin:        "admin",
	SuperAdmin:   "super_admin",
	SupportAgent: "support_agent",
	FraudAnalyst: "fraud_analyst",
	KYCAgent:     "kyc_agent",
}

// String returns the canonical role name as stored in the role table.
func (r Role) String() string {
	if !r.Valid() {
		return fmt.Sprintf("role(%d)", uint8(r))
	}
	return names[r]
}

// Valid reports whether r is a member of the closed enumeration.
func (r Role) Valid() bool {
	return r < roleCount
}

// Superuser reports whether r carries the implicit-superset capability.
func (r Role) Superuser() bool {
	return r == SuperAdmin
}

// Parse maps a stored role name to its enumeration value.
func Parse(name string) (Role, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for r, n := range names {
		if n == name {
			return Role(r), nil
		}
	}
	return 0, fmt.Errorf("unknown role %q", name)
}

// Set is a bitset of roles. The zero value is the empty set.
type Set uint16

// NewSet builds a Set from the given roles; invalid roles are ignored.
func NewSet(roles ...Role) Set {
	var s Set
	for _, r := range roles {
		s = s.With(r)
	}
	return s
}

// With returns s with r added.
func (s Set) With(r Role) Set {
	if !r.Valid() {
		return s
	}
	return s | 1<<r
}

// Has reports whether r is a member of s.
func (s Set) Has(r Role) bool {
	return r.Valid() && s&(1<<r) != 0
}

// Empty reports whether s contains no roles.
func (s Set) Empty() bool {
	return s == 0
}

// SatisfiedBy reports whether an identity holding the given roles meets this
// requirement set. A superuser role satisfies any requirement; this check
// runs first so policy sets never need to enumerate super_admin themselves.
func (s Set) SatisfiedBy(held []Role) bool {
	for _, r := range held {
		if r.Superuser() {
			return true
		}
	}
	for _, r := range held {
		if s.Has(r) {
			return true
		}
	}
	return false
}

// Roles returns the members of s in enumeration order.
func (s Set) Roles() []Role {
	out := make([]Role, 0, roleCount)
	for r := Role(0); r < roleCount; r++ {
		if s.Has(r) {
			out = append(out, r)
		}
	}
	return out
}

// String renders s as a sorted, comma-separated list of role names.
func (s Set) String() string {
	members := s.Roles()
	parts := make([]string, len(members))
	for i, r := range members {
		parts[i] = r.String()
	}
	sort.Strings(parts)
	return strings.Join(parts, ",")
}

// Named policy sets matching the service's authorization tiers. SuperAdmin
// is listed where the original policies named it, but the superset rule in
// [Set.SatisfiedBy] makes it pass every tier regardless.
var (
	// CustomerOnly gates customer self-service operations.
	CustomerOnly = NewSet(Customer)
	// AdminTier gates administrative operations.
	AdminTier = NewSet(Admin, SuperAdmin)
	// SupportTier gates support-desk operations.
	SupportTier = NewSet(SupportAgent, Admin)
	// FraudTier gates fraud-investigation operations.
	FraudTier = NewSet(FraudAnalyst, Admin, SuperAdmin)
	// SuperAdminOnly gates operations reserved for the elevated role.
	SuperAdminOnly = NewSet(SuperAdmin)
)
