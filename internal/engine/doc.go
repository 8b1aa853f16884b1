// Package engine implements the calendar availability and conflict core: the
// conflict detector (office-hours gate plus interval-overlap testing against
// a cached busy-period snapshot), the alternative-slot search and ranking,
// and the Engine facade that ties connection resolution, provider dispatch,
// token refresh, request pacing, and cache invalidation together behind the
// five booking operations.
//
// Two deliberate tradeoffs live here and are behavior, not accident:
//
//   - Reads fail open. If the provider cannot be reached while checking a
//     window, the window is reported as free. Writes never fail open.
//   - The create path is check-then-act. A second, cache-bypassing overlap
//     check runs immediately before the provider call, which narrows the
//     race against concurrent writers but cannot close it; the providers
//     offer no reservation primitive.
package engine
