package flows

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
)

const (
	OpSendResetEmail = "send_password_reset_notification"
	OpIssueOTP       = "issue_otp_challenge"
	OpConfirmOTP     = "confirm_otp"
	OpSetCredential  = "set_credential"
)

func RunSendResetEmail(ctx context.Context, email string, deps RecoveryDeps) error {
	normalizeRecoveryDeps(&deps)
	if deps.SendPasswordResetNotification == nil {
		return deps.Errors.EngineNotReady
	}

	start := deps.Now()
	err := deps.SendPasswordResetNotification(ctx, email)
	deps.MetricObserve(deps.Metrics.ProviderLatency, deps.Now().Sub(start))

	meta := func() map[string]string {
		return map[string]string{"email": MaskEmail(email)}
	}
	if err != nil {
		wrapped := failProvider(ctx, OpSendResetEmail, err, deps)
		deps.MetricInc(deps.Metrics.ResetEmailFailure)
		deps.EmitAudit(ctx, deps.Events.ResetEmail, false, "", deps.Channel, wrapped, meta)
		return wrapped
	}

	deps.MetricInc(deps.Metrics.ResetEmailSuccess)
	deps.EmitAudit(ctx, deps.Events.ResetEmail, true, "", deps.Channel, nil, meta)
	deps.Logger.Debug("password reset notification dispatched",
		zap.String("session_id", deps.SessionID),
		zap.String("email", MaskEmail(email)),
	)
	return nil
}

func RunIssueOTP(ctx context.Context, phone string, deps RecoveryDeps) (string, error) {
	normalizeRecoveryDeps(&deps)
	if deps.IssueOTPChallenge == nil {
		return "", deps.Errors.EngineNotReady
	}

	start := deps.Now()
	ticket, err := deps.IssueOTPChallenge(ctx, phone)
	deps.MetricObserve(deps.Metrics.ProviderLatency, deps.Now().Sub(start))
	if err == nil && ticket == "" {
		err = deps.Errors.EmptyTicket
	}

	meta := func() map[string]string {
		return map[string]string{"phone": MaskPhone(phone)}
	}
	if err != nil {
		wrapped := failProvider(ctx, OpIssueOTP, err, deps)
		deps.MetricInc(deps.Metrics.OTPIssueFailure)
		deps.EmitAudit(ctx, deps.Events.OTPIssue, false, "", deps.Channel, wrapped, meta)
		return "", wrapped
	}

	deps.MetricInc(deps.Metrics.OTPIssueSuccess)
	deps.EmitAudit(ctx, deps.Events.OTPIssue, true, "", deps.Channel, nil, meta)
	deps.Logger.Debug("otp challenge issued",
		zap.String("session_id", deps.SessionID),
		zap.String("phone", MaskPhone(phone)),
	)
	return ticket, nil
}

func RunConfirmOTP(ctx context.Context, ticket, code string, deps RecoveryDeps) (Identity, error) {
	normalizeRecoveryDeps(&deps)
	if deps.ConfirmOTP == nil {
		return Identity{}, deps.Errors.EngineNotReady
	}

	start := deps.Now()
	identity, err := deps.ConfirmOTP(ctx, ticket, code)
	deps.MetricObserve(deps.Metrics.ProviderLatency, deps.Now().Sub(start))
	if err == nil && identity.IsZero() {
		err = deps.Errors.EmptyIdentity
	}

	if err != nil {
		wrapped := failProvider(ctx, OpConfirmOTP, err, deps)
		deps.MetricInc(deps.Metrics.OTPConfirmFailure)
		deps.EmitAudit(ctx, deps.Events.OTPConfirm, false, "", deps.Channel, wrapped, nil)
		return Identity{}, wrapped
	}

	deps.MetricInc(deps.Metrics.OTPConfirmSuccess)
	deps.EmitAudit(ctx, deps.Events.OTPConfirm, true, identity.Subject, deps.Channel, nil, nil)
	return identity, nil
}

func RunSetCredential(ctx context.Context, identity Identity, password string, deps RecoveryDeps) error {
	normalizeRecoveryDeps(&deps)
	if deps.SetCredential == nil {
		return deps.Errors.EngineNotReady
	}

	start := deps.Now()
	err := deps.SetCredential(ctx, identity, password)
	deps.MetricObserve(deps.Metrics.ProviderLatency, deps.Now().Sub(start))

	if err != nil {
		wrapped := failProvider(ctx, OpSetCredential, err, deps)
		deps.MetricInc(deps.Metrics.PasswordSetFailure)
		deps.EmitAudit(ctx, deps.Events.PasswordSet, false, identity.Subject, deps.Channel, wrapped, nil)
		return wrapped
	}

	deps.MetricInc(deps.Metrics.PasswordSetSuccess)
	deps.EmitAudit(ctx, deps.Events.PasswordSet, true, identity.Subject, deps.Channel, nil, nil)
	deps.Logger.Info("credential replaced",
		zap.String("session_id", deps.SessionID),
		zap.String("subject", identity.Subject),
	)
	return nil
}

func failProvider(ctx context.Context, op string, err error, deps RecoveryDeps) error {
	// a caller cancelling is a plain failure; only a missed deadline times out
	timedOut := errors.Is(err, context.DeadlineExceeded) ||
		(ctx != nil && errors.Is(ctx.Err(), context.DeadlineExceeded))
	if timedOut {
		deps.MetricInc(deps.Metrics.ProviderTimeout)
	}

	deps.Logger.Warn("identity provider request failed",
		zap.String("session_id", deps.SessionID),
		zap.String("op", op),
		zap.Bool("timed_out", timedOut),
		zap.Error(err),
	)
	return deps.WrapProviderError(op, err, timedOut)
}

// MaskEmail keeps the first character of the local part and the domain.
func MaskEmail(email string) string {
	at := strings.LastIndexByte(email, '@')
	if at <= 0 {
		return "***"
	}
	return email[:1] + "***" + email[at:]
}

// MaskPhone keeps the last four digits.
func MaskPhone(phone string) string {
	if len(phone) <= 4 {
		return "****"
	}
	return strings.Repeat("*", len(phone)-4) + phone[len(phone)-4:]
}
