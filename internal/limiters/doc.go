// Package limiters throttles the expensive or guessable steps of recovery:
// issuing a challenge (per destination and per IP) and confirming one (per
// ticket and per IP). Counting is done by internal/rate.
//
// All limiters are nil-safe: calling any method on a nil receiver returns nil.
package limiters
