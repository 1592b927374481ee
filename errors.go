package goRecovery

import (
	"errors"
	"fmt"

	"github.com/agriskills/goRecovery/internal/validate"
)

// Validation failures. Returned wrapped in a [*ValidationError]; the
// provider is never contacted.
var (
	// ErrMethodInvalid is returned by SelectMethod for anything but MethodEmail or MethodPhone.
	ErrMethodInvalid = errors.New("recovery method invalid")
	// ErrEmailRequired is returned when the submitted email is empty.
	ErrEmailRequired = validate.ErrEmailRequired
	// ErrEmailInvalid is returned by strict email validation.
	ErrEmailInvalid = validate.ErrEmailInvalid
	// ErrPhoneInvalid is returned when the phone matches neither the local nor the international shape.
	ErrPhoneInvalid = validate.ErrPhoneInvalid
	// ErrOTPRequired is returned when the submitted code is empty.
	ErrOTPRequired = validate.ErrOTPRequired
	// ErrPasswordRequired is returned when either password field is empty.
	ErrPasswordRequired = validate.ErrPasswordRequired
	// ErrPasswordMismatch is returned when the password and its confirmation differ.
	ErrPasswordMismatch = validate.ErrPasswordMismatch
	// ErrPasswordTooShort is returned when Validation.MinPasswordLength is set and not met.
	ErrPasswordTooShort = validate.ErrPasswordTooShort
)

// Provider failures. Returned wrapped in a [*ProviderError].
var (
	// ErrProviderFailure marks any rejection or transport failure reported by the provider.
	ErrProviderFailure = errors.New("identity provider request failed")
	// ErrProviderTimeout marks a request abandoned because its context expired.
	ErrProviderTimeout = errors.New("identity provider request timed out")
	// ErrEmptyTicket is reported when a provider accepts a challenge but returns no ticket.
	ErrEmptyTicket = errors.New("identity provider returned an empty verification ticket")
	// ErrEmptyIdentity is reported when a provider confirms a code but returns no identity.
	ErrEmptyIdentity = errors.New("identity provider returned an empty identity")
)

// Caller contract violations. Returned wrapped in a [*StateError]; never
// shown to the user.
var (
	// ErrIllegalTransition is returned when an operation is invoked from a stage that does not allow it.
	ErrIllegalTransition = errors.New("operation not allowed in current stage")
	// ErrBusy is returned when a mutating operation is invoked while a provider request is outstanding.
	ErrBusy = errors.New("recovery session busy")
	// ErrSessionClosed is returned when the session already exited.
	ErrSessionClosed = errors.New("recovery session closed")
	// ErrTicketMissing is returned when SubmitOTP runs without a verification ticket.
	ErrTicketMissing = errors.New("verification ticket missing")
	// ErrIdentityMissing is returned when SubmitPassword runs without a confirmed identity.
	ErrIdentityMissing = errors.New("confirmed identity missing")
	// ErrStaleResult is returned when a provider result arrives for a cancelled or restarted session.
	ErrStaleResult = errors.New("provider result discarded for stale session")
	// ErrEngineNotReady is returned by a zero-value Engine or Controller.
	ErrEngineNotReady = errors.New("recovery engine not initialized")
)

// ValidationError is a local, pre-flight rejection of user input.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Field + ": " + e.Err.Error()
}

func (e *ValidationError) Unwrap() error { return e.Err }

// ProviderError is a remote rejection or connectivity failure. Message is
// the provider's own text and is shown to the user unchanged.
type ProviderError struct {
	Op      string
	Code    string
	Message string
	Err     error
}

func (e *ProviderError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Op, e.Message, e.Code)
	}
	return e.Op + ": " + e.Message
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Timeout reports whether the request was abandoned because its context expired.
func (e *ProviderError) Timeout() bool {
	return errors.Is(e.Err, ErrProviderTimeout)
}

// StateError is an operation invoked in an incompatible stage, while busy,
// or resolved after its session was discarded.
type StateError struct {
	Op    string
	Stage Stage
	Err   error
}

func (e *StateError) Error() string {
	return e.Op + " in stage " + e.Stage.String() + ": " + e.Err.Error()
}

func (e *StateError) Unwrap() error { return e.Err }

// IsValidation reports whether err is (or wraps) a [*ValidationError].
func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// IsProvider reports whether err is (or wraps) a [*ProviderError].
func IsProvider(err error) bool {
	var target *ProviderError
	return errors.As(err, &target)
}

// IsState reports whether err is (or wraps) a [*StateError].
func IsState(err error) bool {
	var target *StateError
	return errors.As(err, &target)
}

// wrapProviderError normalizes anything a provider returns. A provider's
// own *ProviderError keeps its code and message; Op is filled in when empty.
func wrapProviderError(op string, err error, timedOut bool) error {
	if err == nil {
		return nil
	}

	var pe *ProviderError
	if errors.As(err, &pe) {
		out := *pe
		if out.Op == "" {
			out.Op = op
		}
		if out.Message == "" && out.Err != nil {
			out.Message = out.Err.Error()
		}
		switch {
		case timedOut && !errors.Is(out.Err, ErrProviderTimeout):
			out.Err = errors.Join(ErrProviderTimeout, out.Err)
		case out.Err == nil:
			out.Err = ErrProviderFailure
		case !errors.Is(out.Err, ErrProviderFailure) && !errors.Is(out.Err, ErrProviderTimeout):
			out.Err = errors.Join(ErrProviderFailure, out.Err)
		}
		return &out
	}

	kind := ErrProviderFailure
	if timedOut {
		kind = ErrProviderTimeout
	}
	return &ProviderError{
		Op:      op,
		Message: err.Error(),
		Err:     errors.Join(kind, err),
	}
}
