// Package jwt issues and verifies the signed session tokens used by the
// bankauth engine. Tokens are RS256-signed claim sets (sub, iat, exp, iss,
// aud, type); verification needs only the public key, so downstream services
// can validate tokens without being able to forge them. Symmetric signing
// methods are rejected at construction.
package jwt
