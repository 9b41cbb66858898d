// Package rate throttles one-time-code issuance. The [Limiter] interface
// decouples the engine from the backing store: [Window] is a process-local
// sliding window suitable for a single instance, and [RedisLimiter] is the
// shared-counter variant for horizontally scaled deployments.
package rate
