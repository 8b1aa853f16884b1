// Package ratelimit paces outbound calls to calendar providers.
//
// State is scoped per connection id and lives for the whole process: a
// sliding time window bounds request count, and a 429-style response from the
// backend installs a cooldown during which further calls on that connection
// block until it elapses.
package ratelimit
