// Package goRecovery implements the forgotten-credential recovery flow as a
// UI-independent state machine: choose a channel, then either have a reset
// link mailed or confirm a one-time code sent by SMS and set a new password.
//
// Every capability that needs a backend is delegated to an [IdentityProvider].
// The package ships none in the root; see provider/redisidp and
// provider/firebase.
//
// # Architecture boundaries
//
// goRecovery is the public surface. It exposes [Engine], [Builder], [Config],
// [Controller] and value types. Provider orchestration (metrics, audit and
// error normalization around each remote call), input validation and audit
// dispatch live under internal/.
//
// # Sessions
//
// [Engine.Start] opens a session in StageChoosing. A [Controller] rejects
// calls made from the wrong stage or while a provider request is outstanding
// with a [*StateError]. Cancel and Restart bump a generation counter, so a
// provider result that arrives for a discarded session is dropped and
// reported as ErrStaleResult.
//
// The Controller enforces no timeout. Bound a request with a context
// deadline; an expired context surfaces as a [*ProviderError] wrapping
// ErrProviderTimeout.
package goRecovery
