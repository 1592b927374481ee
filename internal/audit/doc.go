// Package audit implements async event dispatching for recovery-flow operations.
//
// # Components
//
//   - [Sink]: interface for event consumers (channel, JSON writer, zap logger, no-op).
//   - [Dispatcher]: buffered async relay with drop-if-full / block-if-full semantics.
//   - [Event]: structured audit record with timestamp, type, session, subject, channel, IP.
//
// # Architecture boundaries
//
// This package owns event buffering and sink delivery. It does NOT decide which events
// to emit; that belongs to the Engine and the flow functions.
//
// # What this package must NOT do
//
//   - Filter or suppress events based on business logic.
//   - Import goRecovery or any sibling internal package.
//   - Record OTP codes, passwords or grant tokens in Metadata.
package audit
