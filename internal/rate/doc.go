// Package rate provides the Redis fixed-window counter that the recovery
// throttles in internal/limiters are built from.
//
// # Window semantics
//
// INCR, then EXPIRE on the first hit of a window. The window length is fixed
// when the key is created; later hits do not extend it.
package rate
