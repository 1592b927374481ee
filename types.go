package goRecovery

import (
	"context"
	"io"

	internalaudit "github.com/agriskills/goRecovery/internal/audit"
	internalmetrics "github.com/agriskills/goRecovery/internal/metrics"
	"go.uber.org/zap"
)

// Stage is the position of a recovery session in the flow. The set is
// closed: every value is listed below and [CanTransition] knows all edges.
type Stage uint8

const (
	// StageChoosing is the initial stage: the user picks email or phone.
	StageChoosing Stage = iota
	// StageEmailEntry waits for the address that receives the reset link.
	StageEmailEntry
	// StagePhoneEntry waits for the number that receives the one-time code.
	StagePhoneEntry
	// StageOTPEntry waits for the one-time code. A ticket is always present.
	StageOTPEntry
	// StagePasswordReset waits for the new password pair. The identity is confirmed.
	StagePasswordReset
	// StageExited is terminal. [Controller.Outcome] tells why.
	StageExited
)

func (s Stage) String() string {
	switch s {
	case StageChoosing:
		return "choosing"
	case StageEmailEntry:
		return "email_entry"
	case StagePhoneEntry:
		return "phone_entry"
	case StageOTPEntry:
		return "otp_entry"
	case StagePasswordReset:
		return "password_reset"
	case StageExited:
		return "exited"
	default:
		return "unknown"
	}
}

// Method is the recovery channel chosen in StageChoosing.
type Method uint8

const (
	MethodUnset Method = iota
	MethodEmail
	MethodPhone
)

func (m Method) String() string {
	switch m {
	case MethodEmail:
		return "email"
	case MethodPhone:
		return "phone"
	default:
		return "unset"
	}
}

// Outcome records why a session reached StageExited.
type Outcome uint8

const (
	OutcomeNone Outcome = iota
	OutcomeEmailDispatched
	OutcomePasswordReset
	OutcomeCancelled
)

func (o Outcome) String() string {
	switch o {
	case OutcomeEmailDispatched:
		return "email_dispatched"
	case OutcomePasswordReset:
		return "password_reset"
	case OutcomeCancelled:
		return "cancelled"
	default:
		return "none"
	}
}

// VerificationTicket is the opaque handle a provider returns when it issues
// a one-time-code challenge. It is required to confirm the code.
type VerificationTicket string

// ConfirmedIdentity is returned by [IdentityProvider.ConfirmOTP]. The
// controller never inspects it beyond checking that it is non-zero; it is
// handed back verbatim to [IdentityProvider.SetCredential].
type ConfirmedIdentity struct {
	Subject     string
	PhoneNumber string
	Token       string
}

// IsZero reports whether the identity carries neither a subject nor a token.
func (c ConfirmedIdentity) IsZero() bool {
	return c.Subject == "" && c.Token == ""
}

// IdentityProvider is the external backend the flow delegates to. Every
// method may block; implementations must honor ctx.
//
// Errors are surfaced to the user verbatim. Return a [*ProviderError] to
// control the code and message, any other error is wrapped.
type IdentityProvider interface {
	SendPasswordResetNotification(ctx context.Context, email string) error
	IssueOTPChallenge(ctx context.Context, normalizedPhone string) (VerificationTicket, error)
	ConfirmOTP(ctx context.Context, ticket VerificationTicket, code string) (ConfirmedIdentity, error)
	SetCredential(ctx context.Context, identity ConfirmedIdentity, newPassword string) error
}

// Snapshot is a consistent copy of a controller's session state. Secrets
// (the OTP code, passwords, the identity token) are never included.
type Snapshot struct {
	SessionID       string
	Generation      uint64
	Stage           Stage
	Method          Method
	Email           string
	Phone           string
	NormalizedPhone string
	Ticket          VerificationTicket
	Subject         string
	Busy            bool
	Outcome         Outcome
}

// AuditEvent is the record emitted to an [AuditSink].
type AuditEvent = internalaudit.Event

// AuditSink receives audit events from the Engine's async dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink discards audit events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink buffers audit events in a channel.
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink writes audit events as JSON lines.
type JSONWriterSink = internalaudit.JSONWriterSink

// LoggerSink writes audit events through zap.
type LoggerSink = internalaudit.LoggerSink

// NewChannelSink returns a sink whose events are read from Events().
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink returns a sink writing one JSON object per line to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

// NewLoggerSink returns a sink writing to logger under the "audit" name.
func NewLoggerSink(logger *zap.Logger) *LoggerSink {
	return internalaudit.NewLoggerSink(logger)
}

// MetricID identifies a counter in [MetricsSnapshot].
type MetricID = internalmetrics.MetricID

// MetricsSnapshot is a point-in-time copy of the Engine's metrics.
type MetricsSnapshot = internalmetrics.Snapshot

const (
	MetricFlowStarted          = internalmetrics.MetricFlowStarted
	MetricFlowCancelled        = internalmetrics.MetricFlowCancelled
	MetricMethodSelected       = internalmetrics.MetricMethodSelected
	MetricResetEmailSuccess    = internalmetrics.MetricResetEmailSuccess
	MetricResetEmailFailure    = internalmetrics.MetricResetEmailFailure
	MetricOTPIssueSuccess      = internalmetrics.MetricOTPIssueSuccess
	MetricOTPIssueFailure      = internalmetrics.MetricOTPIssueFailure
	MetricOTPConfirmSuccess    = internalmetrics.MetricOTPConfirmSuccess
	MetricOTPConfirmFailure    = internalmetrics.MetricOTPConfirmFailure
	MetricPasswordSetSuccess   = internalmetrics.MetricPasswordSetSuccess
	MetricPasswordSetFailure   = internalmetrics.MetricPasswordSetFailure
	MetricValidationRejected   = internalmetrics.MetricValidationRejected
	MetricStateRejected        = internalmetrics.MetricStateRejected
	MetricStaleResultDiscarded = internalmetrics.MetricStaleResultDiscarded
	MetricProviderTimeout      = internalmetrics.MetricProviderTimeout
	MetricProviderLatency      = internalmetrics.MetricProviderLatency
)
