// Package logging provides structured logging utilities for the booking
// server.
//
// It centralizes attribute naming so log lines from the resolver, the
// adapters, and the tool layer stay queryable together, and it keeps PII and
// credentials out of the logs: emails are hashed for correlation and tokens
// are reduced to a length indicator.
package logging
