package goRecovery

import (
	"context"
	"errors"
	"testing"
)

func TestMetricsDisabledSnapshotEmpty(t *testing.T) {
	engine := newTestEngine(t, newFakeProvider(), nil, func(cfg *Config) {
		cfg.Metrics.Enabled = false
	})
	c := startController(t, engine)
	toPasswordReset(t, c)

	snap := engine.MetricsSnapshot()
	if len(snap.Counters) != 0 || len(snap.Histograms) != 0 {
		t.Fatalf("expected empty snapshot, got %+v", snap)
	}
}

func TestMetricsCountFlow(t *testing.T) {
	p := newFakeProvider()
	engine := newTestEngine(t, p, nil, func(cfg *Config) {
		cfg.Metrics.EnableLatencyHistograms = true
	})
	c := startController(t, engine)
	ctx := context.Background()

	toOTPEntry(t, c)
	p.confirmErr = func(string) error { return errors.New("bad code") }
	_ = c.SubmitOTP(ctx, "000000")
	p.confirmErr = nil
	if err := c.SubmitOTP(ctx, "123456"); err != nil {
		t.Fatal(err)
	}
	_ = c.SubmitPassword(ctx, "a", "b")
	if err := c.SubmitPassword(ctx, "pw", "pw"); err != nil {
		t.Fatal(err)
	}

	snap := engine.MetricsSnapshot()
	want := map[MetricID]uint64{
		MetricFlowStarted:        1,
		MetricMethodSelected:     1,
		MetricOTPIssueSuccess:    1,
		MetricOTPConfirmFailure:  1,
		MetricOTPConfirmSuccess:  1,
		MetricValidationRejected: 1,
		MetricPasswordSetSuccess: 1,
		MetricFlowCancelled:      0,
	}
	for id, v := range want {
		if got := snap.Counters[id]; got != v {
			t.Fatalf("metric %d: got %d, want %d", id, got, v)
		}
	}

	var observed uint64
	for _, n := range snap.Histograms[MetricProviderLatency] {
		observed += n
	}
	if observed != 4 {
		t.Fatalf("expected 4 latency observations, got %d", observed)
	}
}
