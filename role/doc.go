// Package role models the bank's closed role taxonomy as a tagged
// enumeration with compact bitset membership, replacing free-form role
// strings so that a typo in a policy check cannot silently grant or deny
// access. The super_admin role carries an explicit superset capability that
// satisfies any role requirement; that rule lives here, next to the
// membership test, rather than being re-derived at each call site.
package role
