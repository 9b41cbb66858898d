// Package internal holds helpers shared by the engine that are not part of
// the public API.
package internal
