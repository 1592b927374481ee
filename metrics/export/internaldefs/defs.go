package internaldefs

import (
	goRecovery "github.com/agriskills/goRecovery"
)

// CounterDef names one engine counter.
type CounterDef struct {
	ID   goRecovery.MetricID
	Name string
	Help string
}

// HistogramDef names one engine histogram.
type HistogramDef struct {
	ID   goRecovery.MetricID
	Name string
	Help string
}

var CounterDefs = []CounterDef{
	{ID: goRecovery.MetricFlowStarted, Name: "recovery_flow_started_total", Help: "Recovery sessions started."},
	{ID: goRecovery.MetricFlowCancelled, Name: "recovery_flow_cancelled_total", Help: "Recovery sessions cancelled by the user."},
	{ID: goRecovery.MetricMethodSelected, Name: "recovery_method_selected_total", Help: "Recovery method selections."},
	{ID: goRecovery.MetricResetEmailSuccess, Name: "recovery_reset_email_success_total", Help: "Reset emails accepted by the provider."},
	{ID: goRecovery.MetricResetEmailFailure, Name: "recovery_reset_email_failure_total", Help: "Reset email requests rejected by the provider."},
	{ID: goRecovery.MetricOTPIssueSuccess, Name: "recovery_otp_issue_success_total", Help: "One-time codes issued."},
	{ID: goRecovery.MetricOTPIssueFailure, Name: "recovery_otp_issue_failure_total", Help: "One-time code requests rejected by the provider."},
	{ID: goRecovery.MetricOTPConfirmSuccess, Name: "recovery_otp_confirm_success_total", Help: "One-time codes confirmed."},
	{ID: goRecovery.MetricOTPConfirmFailure, Name: "recovery_otp_confirm_failure_total", Help: "One-time code confirmations rejected."},
	{ID: goRecovery.MetricPasswordSetSuccess, Name: "recovery_password_set_success_total", Help: "Passwords updated."},
	{ID: goRecovery.MetricPasswordSetFailure, Name: "recovery_password_set_failure_total", Help: "Password updates rejected by the provider."},
	{ID: goRecovery.MetricValidationRejected, Name: "recovery_validation_rejected_total", Help: "Inputs rejected before reaching the provider."},
	{ID: goRecovery.MetricStateRejected, Name: "recovery_state_rejected_total", Help: "Operations rejected for stage or busy state."},
	{ID: goRecovery.MetricStaleResultDiscarded, Name: "recovery_stale_result_discarded_total", Help: "Provider results discarded after cancel or restart."},
	{ID: goRecovery.MetricProviderTimeout, Name: "recovery_provider_timeout_total", Help: "Provider requests abandoned on context expiry."},
}

var HistogramDefs = []HistogramDef{
	{ID: goRecovery.MetricProviderLatency, Name: "recovery_provider_latency_seconds", Help: "Identity provider request latency."},
}

// AuditDroppedName is the counter for audit events lost to backpressure.
const (
	AuditDroppedName = "recovery_audit_dropped_total"
	AuditDroppedHelp = "Dropped audit events due to dispatcher backpressure."
)

// BucketCount matches the engine's fixed latency layout.
const BucketCount = 8

// UpperBounds are the finite bucket bounds in seconds. The last engine
// bucket is +Inf and has no entry.
var UpperBounds = [BucketCount - 1]float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// NormalizeBuckets copies raw into a fixed array, zero-filling short input.
func NormalizeBuckets(raw []uint64) [BucketCount]uint64 {
	var out [BucketCount]uint64
	copy(out[:], raw)
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals; the last
// element is the sample count.
func CumulativeBuckets(raw [BucketCount]uint64) [BucketCount]uint64 {
	var out [BucketCount]uint64
	var running uint64
	for i, v := range raw {
		running += v
		out[i] = running
	}
	return out
}
