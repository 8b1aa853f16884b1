// Package booking defines the canonical domain model shared by the provider
// adapters, the connection resolver, and the scheduling engine.
//
// The types here are deliberately provider-neutral: adapters translate each
// backend's wire format into CanonicalEvent and BusyPeriod values, and all
// downstream conflict and slot-search logic operates only on these.
//
// Failures are expressed as *Error values carrying a Kind so that callers can
// distinguish a missing calendar from an office-hours violation or an
// upstream API failure without string matching.
package booking
