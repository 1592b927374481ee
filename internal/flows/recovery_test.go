package flows

import (
	"context"
	"errors"
	"testing"
	"time"
)

type recorder struct {
	metrics []int
	audits  []string
	success []bool
	wrapped []bool
}

func testDeps(r *recorder) RecoveryDeps {
	return RecoveryDeps{
		SessionID: "s1",
		Channel:   "phone",
		WrapProviderError: func(op string, err error, timedOut bool) error {
			r.wrapped = append(r.wrapped, timedOut)
			return errors.Join(errors.New(op), err)
		},
		MetricInc: func(id int) { r.metrics = append(r.metrics, id) },
		EmitAudit: func(_ context.Context, eventType string, success bool, _, _ string, _ error, _ func() map[string]string) {
			r.audits = append(r.audits, eventType)
			r.success = append(r.success, success)
		},
		Metrics: RecoveryMetrics{
			ResetEmailSuccess: 1, ResetEmailFailure: 2,
			OTPIssueSuccess: 3, OTPIssueFailure: 4,
			OTPConfirmSuccess: 5, OTPConfirmFailure: 6,
			PasswordSetSuccess: 7, PasswordSetFailure: 8,
			ProviderTimeout: 9, ProviderLatency: 10,
		},
		Events: RecoveryEvents{
			ResetEmail: "reset", OTPIssue: "issue", OTPConfirm: "confirm", PasswordSet: "set",
		},
		Errors: RecoveryErrors{
			EngineNotReady: errors.New("not ready"),
			EmptyTicket:    errors.New("empty ticket"),
			EmptyIdentity:  errors.New("empty identity"),
		},
	}
}

func TestRunIssueOTPSuccess(t *testing.T) {
	r := &recorder{}
	deps := testDeps(r)
	deps.IssueOTPChallenge = func(_ context.Context, phone string) (string, error) {
		if phone != "+919876543210" {
			t.Fatalf("unexpected phone %q", phone)
		}
		return "T", nil
	}

	ticket, err := RunIssueOTP(context.Background(), "+919876543210", deps)
	if err != nil || ticket != "T" {
		t.Fatalf("RunIssueOTP = %q, %v", ticket, err)
	}
	if len(r.metrics) != 1 || r.metrics[0] != 3 {
		t.Fatalf("unexpected metrics %v", r.metrics)
	}
	if len(r.audits) != 1 || r.audits[0] != "issue" || !r.success[0] {
		t.Fatalf("unexpected audits %v %v", r.audits, r.success)
	}
}

func TestRunIssueOTPEmptyTicketFails(t *testing.T) {
	r := &recorder{}
	deps := testDeps(r)
	deps.IssueOTPChallenge = func(context.Context, string) (string, error) { return "", nil }

	_, err := RunIssueOTP(context.Background(), "+15551234567", deps)
	if !errors.Is(err, deps.Errors.EmptyTicket) {
		t.Fatalf("expected empty ticket error, got %v", err)
	}
	if len(r.metrics) != 1 || r.metrics[0] != 4 {
		t.Fatalf("unexpected metrics %v", r.metrics)
	}
	if r.success[0] {
		t.Fatal("expected failed audit")
	}
}

func TestRunConfirmOTPZeroIdentityFails(t *testing.T) {
	r := &recorder{}
	deps := testDeps(r)
	deps.ConfirmOTP = func(context.Context, string, string) (Identity, error) { return Identity{}, nil }

	_, err := RunConfirmOTP(context.Background(), "T", "123456", deps)
	if !errors.Is(err, deps.Errors.EmptyIdentity) {
		t.Fatalf("expected empty identity error, got %v", err)
	}
}

func TestRunSendResetEmailTimeout(t *testing.T) {
	r := &recorder{}
	deps := testDeps(r)
	deps.SendPasswordResetNotification = func(ctx context.Context, _ string) error {
		<-ctx.Done()
		return ctx.Err()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := RunSendResetEmail(ctx, "user@x.com", deps)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
	if len(r.wrapped) != 1 || !r.wrapped[0] {
		t.Fatalf("expected timed-out wrap, got %v", r.wrapped)
	}
	if len(r.metrics) != 2 || r.metrics[0] != 9 || r.metrics[1] != 2 {
		t.Fatalf("expected timeout then failure metric, got %v", r.metrics)
	}
}

func TestRunSendResetEmailCancelIsNotTimeout(t *testing.T) {
	r := &recorder{}
	deps := testDeps(r)
	ctx, cancel := context.WithCancel(context.Background())
	deps.SendPasswordResetNotification = func(ctx context.Context, _ string) error {
		cancel()
		return ctx.Err()
	}

	err := RunSendResetEmail(ctx, "user@x.com", deps)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancel error, got %v", err)
	}
	if len(r.wrapped) != 1 || r.wrapped[0] {
		t.Fatalf("cancel must not wrap as timeout, got %v", r.wrapped)
	}
	if len(r.metrics) != 1 || r.metrics[0] != 2 {
		t.Fatalf("expected failure metric only, got %v", r.metrics)
	}
}

func TestRunSetCredentialPassesIdentity(t *testing.T) {
	r := &recorder{}
	deps := testDeps(r)
	want := Identity{Subject: "u1", Token: "tok"}
	deps.SetCredential = func(_ context.Context, id Identity, pw string) error {
		if id != want || pw != "secret" {
			t.Fatalf("unexpected args %+v %q", id, pw)
		}
		return nil
	}

	if err := RunSetCredential(context.Background(), want, "secret", deps); err != nil {
		t.Fatal(err)
	}
	if r.metrics[0] != 7 {
		t.Fatalf("unexpected metrics %v", r.metrics)
	}
}

func TestRunWithoutProviderFuncNotReady(t *testing.T) {
	deps := testDeps(&recorder{})
	if err := RunSendResetEmail(context.Background(), "a@b.c", deps); !errors.Is(err, deps.Errors.EngineNotReady) {
		t.Fatalf("expected not ready, got %v", err)
	}
}

func TestMasking(t *testing.T) {
	tests := []struct {
		in, want string
		mask     func(string) string
	}{
		{"alice@example.com", "a***@example.com", MaskEmail},
		{"no-at-sign", "***", MaskEmail},
		{"+919876543210", "*********3210", MaskPhone},
		{"123", "****", MaskPhone},
	}
	for _, tt := range tests {
		if got := tt.mask(tt.in); got != tt.want {
			t.Fatalf("mask(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
