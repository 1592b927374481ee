// Package stores provides Redis-backed, short-lived records for the recovery
// flow: one-time-code challenges, mailed reset links, and the ledger of
// redeemed reset grants.
//
// # Design
//
// Each record is a versioned binary blob stored with a TTL. Consume uses
// WATCH/MULTI optimistic transactions and retries on contention. Records are
// single-use: a matching secret deletes the record, a wrong one bumps the
// attempt counter, and reaching the attempt limit deletes it. Secrets are
// compared in constant time and only their SHA-256 digests are stored.
//
// # Architecture boundaries
//
// This package owns persistence and concurrency control. It does not
// generate codes or tokens, throttle requests, or talk to users.
package stores
