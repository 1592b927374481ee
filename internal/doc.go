// Package internal holds helpers private to goRecovery: random record IDs,
// reset-link tokens and one-time codes, and their digests.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher and Sink implementations)
//   - flows: provider-call orchestration for every Controller submit
//   - limiters: Redis fixed-window throttles for challenge issue and confirm
//   - metrics: lock-free counters and latency histograms
//   - stores: Redis-backed one-time-code challenges and reset links
//   - validate: local input checks
//
// Nothing here is part of the public goRecovery API.
package internal
