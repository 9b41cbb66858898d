// Package bankauth is the authentication core of the Trust Union Bank
// platform: passwordless customer login by one-time code over a registered
// contact channel, followed by RS256-signed access and refresh tokens that
// downstream services verify statelessly.
//
// The package is designed for concurrent server workloads: Engine methods
// are safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// bankauth is the public surface. It exposes [Engine], [Builder], [Config],
// the collaborator interfaces ([IdentityStore], [OTPStore], [Notifier]),
// and value types. The relational store, the delivery channel, and the HTTP
// transport are the caller's responsibility; the engine only consumes the
// interfaces.
//
// # What this package must NOT do
//
//   - Persist plaintext one-time codes (only salted hashes are stored).
//   - Hold server-side session state; a verified token is the session.
//   - Sign tokens with a symmetric algorithm (verifiers must not be able
//     to forge).
package bankauth
