// Package postgres provides PostgreSQL-backed implementations of the
// bankauth identity and one-time-code stores, built on pgx connection
// pools. The schema the adapters expect is documented on each type.
package postgres
