package goRecovery

import (
	"errors"

	internalaudit "github.com/agriskills/goRecovery/internal/audit"
	internalmetrics "github.com/agriskills/goRecovery/internal/metrics"
	"go.uber.org/zap"
)

// Builder assembles an [Engine].
//
// Builder instances are intended to be configured during initialization and then discarded after Build.
type Builder struct {
	config Config

	provider  IdentityProvider
	auditSink AuditSink
	notifier  NotificationSink
	logger    *zap.Logger

	built bool
}

// New describes the new operation and its observable behavior.
//
// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig describes the withconfig operation and its observable behavior.
//
// WithConfig copies cfg; later changes to the caller's value have no effect.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithProvider sets the identity provider every Controller delegates to. Required.
func (b *Builder) WithProvider(p IdentityProvider) *Builder {
	b.provider = p
	return b
}

// WithAuditSink describes the withauditsink operation and its observable behavior.
//
// The sink only receives events when Config.Audit.Enabled is true.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithNotificationSink sets where user-facing messages go. Defaults to [NoOpNotifier].
func (b *Builder) WithNotificationSink(n NotificationSink) *Builder {
	b.notifier = n
	return b
}

// WithLogger sets the structured logger. Defaults to zap.NewNop().
func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

// WithMetricsEnabled describes the withmetricsenabled operation and its observable behavior.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms describes the withlatencyhistograms operation and its observable behavior.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build describes the build operation and its observable behavior.
//
// Build may return an error when the configuration is invalid or no provider was set.
// A Builder can be built once.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.provider == nil {
		return nil, errors.New("identity provider required")
	}

	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	notifier := b.notifier
	if notifier == nil {
		notifier = NoOpNotifier{}
	}

	engine := &Engine{
		config:   cfg,
		provider: b.provider,
		notifier: notifier,
		logger:   logger.Named("recovery"),
	}
	engine.audit = internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, b.auditSink)
	engine.metrics = internalmetrics.New(internalmetrics.Config{
		Enabled:                 cfg.Metrics.Enabled,
		EnableLatencyHistograms: cfg.Metrics.EnableLatencyHistograms,
	})

	b.built = true

	return engine, nil
}
