package goRecovery

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newAuditEngine(t *testing.T, p IdentityProvider, sink AuditSink) *Engine {
	t.Helper()

	cfg := DefaultConfig()
	cfg.Audit.Enabled = true
	cfg.Audit.BufferSize = 64
	engine, err := New().
		WithConfig(cfg).
		WithProvider(p).
		WithAuditSink(sink).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	return engine
}

func collectAudit(t *testing.T, sink *ChannelSink, n int) []AuditEvent {
	t.Helper()

	out := make([]AuditEvent, 0, n)
	for len(out) < n {
		select {
		case ev := <-sink.Events():
			out = append(out, ev)
		case <-time.After(2 * time.Second):
			t.Fatalf("expected %d audit events, got %d", n, len(out))
		}
	}
	return out
}

func TestAuditTrailForPhoneFlow(t *testing.T) {
	p := newFakeProvider()
	p.confirmErr = func(code string) error {
		if code == "000000" {
			return errors.New("invalid code")
		}
		return nil
	}
	sink := NewChannelSink(64)
	engine := newAuditEngine(t, p, sink)
	defer engine.Close()

	c, err := engine.Start(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	ctx := WithClientIP(context.Background(), "203.0.113.7")
	if err := c.SelectMethod(MethodPhone); err != nil {
		t.Fatal(err)
	}
	if err := c.SubmitPhone(ctx, "9876543210"); err != nil {
		t.Fatal(err)
	}
	_ = c.SubmitOTP(ctx, "000000")
	if err := c.SubmitOTP(ctx, "123456"); err != nil {
		t.Fatal(err)
	}
	if err := c.SubmitPassword(ctx, "pw", "pw"); err != nil {
		t.Fatal(err)
	}

	events := collectAudit(t, sink, 5)
	want := []struct {
		eventType string
		success   bool
	}{
		{auditEventMethodSelected, true},
		{auditEventOTPIssue, true},
		{auditEventOTPConfirm, false},
		{auditEventOTPConfirm, true},
		{auditEventPasswordSet, true},
	}
	for i, w := range want {
		ev := events[i]
		if ev.EventType != w.eventType || ev.Success != w.success {
			t.Fatalf("event %d: got %s/%v, want %s/%v", i, ev.EventType, ev.Success, w.eventType, w.success)
		}
		if ev.SessionID != c.SessionID() || ev.Channel != "phone" {
			t.Fatalf("event %d: unexpected session/channel %q/%q", i, ev.SessionID, ev.Channel)
		}
	}
	if events[1].IP != "203.0.113.7" {
		t.Fatalf("client ip not recorded: %q", events[1].IP)
	}
	if got := events[1].Metadata["phone"]; got != "*********3210" {
		t.Fatalf("phone not masked: %q", got)
	}
	if events[2].Error != string(auditErrProvider) {
		t.Fatalf("expected provider error code, got %q", events[2].Error)
	}
	if events[4].Subject != "u1" {
		t.Fatalf("expected subject on password set, got %q", events[4].Subject)
	}
}

func TestAuditCancelEvent(t *testing.T) {
	sink := NewChannelSink(8)
	engine := newAuditEngine(t, newFakeProvider(), sink)
	defer engine.Close()

	c, err := engine.Start(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Cancel(); err != nil {
		t.Fatal(err)
	}

	ev := collectAudit(t, sink, 1)[0]
	if ev.EventType != auditEventCancel || !ev.Success {
		t.Fatalf("unexpected cancel event: %+v", ev)
	}
}

func TestAuditErrorCode(t *testing.T) {
	tests := []struct {
		err  error
		want AuditErrorCode
	}{
		{nil, ""},
		{&ValidationError{Field: "email", Err: ErrEmailRequired}, auditErrValidation},
		{wrapProviderError("op", ErrEmptyTicket, false), auditErrEmptyResponse},
		{wrapProviderError("op", context.DeadlineExceeded, true), auditErrProviderTimeout},
		{wrapProviderError("op", errors.New("boom"), false), auditErrProvider},
		{&StateError{Op: "op", Err: ErrBusy}, auditErrState},
		{errors.New("other"), auditErrInternal},
	}

	for _, tt := range tests {
		if got := auditErrorCode(tt.err); got != tt.want {
			t.Fatalf("auditErrorCode(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestWrapProviderErrorKeepsProviderFields(t *testing.T) {
	in := &ProviderError{Code: "USER_NOT_FOUND", Message: "There is no user record."}
	err := wrapProviderError("send_password_reset_notification", in, false)

	var pe *ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ProviderError, got %T", err)
	}
	if pe.Op != "send_password_reset_notification" || pe.Code != "USER_NOT_FOUND" || pe.Message != "There is no user record." {
		t.Fatalf("fields not preserved: %+v", pe)
	}
	if !errors.Is(err, ErrProviderFailure) || pe.Timeout() {
		t.Fatalf("unexpected classification: %v", err)
	}
	if in.Op != "" {
		t.Fatal("input error was mutated")
	}
}
