package flows

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Identity mirrors goRecovery.ConfirmedIdentity without importing it.
type Identity struct {
	Subject     string
	PhoneNumber string
	Token       string
}

func (i Identity) IsZero() bool {
	return i.Subject == "" && i.Token == ""
}

type RecoveryMetrics struct {
	ResetEmailSuccess  int
	ResetEmailFailure  int
	OTPIssueSuccess    int
	OTPIssueFailure    int
	OTPConfirmSuccess  int
	OTPConfirmFailure  int
	PasswordSetSuccess int
	PasswordSetFailure int
	ProviderTimeout    int
	ProviderLatency    int
}

type RecoveryEvents struct {
	ResetEmail  string
	OTPIssue    string
	OTPConfirm  string
	PasswordSet string
}

type RecoveryErrors struct {
	EngineNotReady error
	EmptyTicket    error
	EmptyIdentity  error
}

// RecoveryDeps is rebuilt by the Controller for every call so SessionID and
// Channel always describe the session that issued the request.
type RecoveryDeps struct {
	SessionID string
	Channel   string

	Now                 func() time.Time
	ClientIPFromContext func(context.Context) string

	SendPasswordResetNotification func(context.Context, string) error
	IssueOTPChallenge             func(context.Context, string) (string, error)
	ConfirmOTP                    func(context.Context, string, string) (Identity, error)
	SetCredential                 func(context.Context, Identity, string) error

	// WrapProviderError turns a raw provider failure into the caller-facing
	// error. timedOut is true when ctx expired or the provider reported a
	// deadline.
	WrapProviderError func(op string, err error, timedOut bool) error

	MetricInc     func(int)
	MetricObserve func(int, time.Duration)
	EmitAudit     func(ctx context.Context, eventType string, success bool, subject, channel string, err error, metadata func() map[string]string)

	Logger *zap.Logger

	Metrics RecoveryMetrics
	Events  RecoveryEvents
	Errors  RecoveryErrors
}

func normalizeRecoveryDeps(deps *RecoveryDeps) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.ClientIPFromContext == nil {
		deps.ClientIPFromContext = func(context.Context) string { return "" }
	}
	if deps.MetricInc == nil {
		deps.MetricInc = func(int) {}
	}
	if deps.MetricObserve == nil {
		deps.MetricObserve = func(int, time.Duration) {}
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = func(context.Context, string, bool, string, string, error, func() map[string]string) {}
	}
	if deps.WrapProviderError == nil {
		deps.WrapProviderError = func(_ string, err error, _ bool) error { return err }
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
}
