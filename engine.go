package goRecovery

import (
	"context"
	"time"

	internalaudit "github.com/agriskills/goRecovery/internal/audit"
	"github.com/agriskills/goRecovery/internal/flows"
	internalmetrics "github.com/agriskills/goRecovery/internal/metrics"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Engine holds what every recovery session shares: the provider, the
// configuration, audit, metrics and logging. It is safe for concurrent use.
//
// Engine instances are intended to be configured during initialization and then treated as immutable.
type Engine struct {
	config   Config
	provider IdentityProvider
	notifier NotificationSink
	logger   *zap.Logger
	audit    *internalaudit.Dispatcher
	metrics  *internalmetrics.Metrics
}

// Start opens a new recovery session in StageChoosing.
func (e *Engine) Start(ctx context.Context) (*Controller, error) {
	if e == nil || e.provider == nil {
		return nil, ErrEngineNotReady
	}

	c := &Controller{
		engine: e,
		hub:    newEventHub(),
	}
	c.s = newSession(1)

	e.metricInc(MetricFlowStarted)
	e.logger.Debug("recovery session started",
		zap.String("session_id", c.s.id),
		zap.String("ip", clientIPFromContext(ctx)),
	)
	return c, nil
}

// Config returns a copy of the configuration the Engine was built with.
func (e *Engine) Config() Config {
	if e == nil {
		return defaultConfig()
	}
	return cloneConfig(e.config)
}

// Close describes the close operation and its observable behavior.
//
// Close flushes buffered audit events. Controllers keep working afterwards
// but their audit events are discarded.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped describes the auditdropped operation and its observable behavior.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot describes the metricssnapshot operation and its observable behavior.
//
// With metrics disabled the snapshot holds empty maps.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) metricObserve(id MetricID, d time.Duration) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Observe(id, d)
}

// recoveryDeps binds the provider and the engine's side channels for one
// request of one session.
func (e *Engine) recoveryDeps(sessionID string, method Method) flows.RecoveryDeps {
	p := e.provider
	return flows.RecoveryDeps{
		SessionID:           sessionID,
		Channel:             method.String(),
		Now:                 time.Now,
		ClientIPFromContext: clientIPFromContext,

		SendPasswordResetNotification: p.SendPasswordResetNotification,
		IssueOTPChallenge: func(ctx context.Context, phone string) (string, error) {
			ticket, err := p.IssueOTPChallenge(ctx, phone)
			return string(ticket), err
		},
		ConfirmOTP: func(ctx context.Context, ticket, code string) (flows.Identity, error) {
			id, err := p.ConfirmOTP(ctx, VerificationTicket(ticket), code)
			return flows.Identity(id), err
		},
		SetCredential: func(ctx context.Context, id flows.Identity, password string) error {
			return p.SetCredential(ctx, ConfirmedIdentity(id), password)
		},
		WrapProviderError: wrapProviderError,

		MetricInc: func(id int) {
			e.metricInc(MetricID(id))
		},
		MetricObserve: func(id int, d time.Duration) {
			e.metricObserve(MetricID(id), d)
		},
		EmitAudit: func(ctx context.Context, eventType string, success bool, subject, channel string, err error, metadata func() map[string]string) {
			e.emitAudit(ctx, eventType, success, sessionID, subject, channel, err, metadata)
		},
		Logger: e.logger,

		Metrics: flows.RecoveryMetrics{
			ResetEmailSuccess:  int(MetricResetEmailSuccess),
			ResetEmailFailure:  int(MetricResetEmailFailure),
			OTPIssueSuccess:    int(MetricOTPIssueSuccess),
			OTPIssueFailure:    int(MetricOTPIssueFailure),
			OTPConfirmSuccess:  int(MetricOTPConfirmSuccess),
			OTPConfirmFailure:  int(MetricOTPConfirmFailure),
			PasswordSetSuccess: int(MetricPasswordSetSuccess),
			PasswordSetFailure: int(MetricPasswordSetFailure),
			ProviderTimeout:    int(MetricProviderTimeout),
			ProviderLatency:    int(MetricProviderLatency),
		},
		Events: flows.RecoveryEvents{
			ResetEmail:  auditEventResetEmail,
			OTPIssue:    auditEventOTPIssue,
			OTPConfirm:  auditEventOTPConfirm,
			PasswordSet: auditEventPasswordSet,
		},
		Errors: flows.RecoveryErrors{
			EngineNotReady: ErrEngineNotReady,
			EmptyTicket:    ErrEmptyTicket,
			EmptyIdentity:  ErrEmptyIdentity,
		},
	}
}

func newSessionID() string {
	return uuid.NewString()
}
