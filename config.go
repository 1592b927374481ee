package goRecovery

import (
	"errors"

	"github.com/agriskills/goRecovery/internal/validate"
)

// Config defines the behavior of every Controller created by an Engine.
//
// Config instances are intended to be configured during initialization and then treated as immutable.
type Config struct {
	Phone      PhoneConfig
	Validation ValidationConfig
	Events     EventsConfig
	Audit      AuditConfig
	Metrics    MetricsConfig
}

/*
====================================
PHONE CONFIG
====================================
*/

// PhoneConfig controls phone normalization.
type PhoneConfig struct {
	// DefaultCountryCode is prepended (with "+") to bare 10-digit numbers.
	// Digits only, no leading "+".
	DefaultCountryCode string
}

/*
====================================
VALIDATION CONFIG
====================================
*/

// ValidationConfig tightens the local checks run before any provider call.
type ValidationConfig struct {
	// StrictEmail requires a bare RFC 5322 address with a dotted domain.
	// When false only non-empty is required.
	StrictEmail bool
	// MinPasswordLength, when > 0, is the minimum rune count of a new password.
	MinPasswordLength int
}

// EventsConfig controls controller event subscriptions.
type EventsConfig struct {
	// SubscriberBuffer is the channel capacity used when Subscribe is
	// called with a non-positive buffer. Events to a full subscriber are dropped.
	SubscriberBuffer int
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns the configuration used by [New].
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Phone: PhoneConfig{
			DefaultCountryCode: "91",
		},
		Validation: ValidationConfig{
			StrictEmail:       false,
			MinPasswordLength: 0,
		},
		Events: EventsConfig{
			SubscriberBuffer: 16,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	// Value types only: a plain copy is deep.
	return cfg
}

// Validate checks the configuration for values no Controller can run with.
func (c *Config) Validate() error {
	if !validate.CountryCode(c.Phone.DefaultCountryCode) {
		return errors.New("Phone DefaultCountryCode must be 1-4 digits without '+'")
	}
	if c.Validation.MinPasswordLength < 0 {
		return errors.New("Validation MinPasswordLength must be >= 0")
	}
	if c.Events.SubscriberBuffer <= 0 {
		return errors.New("Events SubscriberBuffer must be > 0")
	}
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when Audit is enabled")
	}
	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		return errors.New("Metrics EnableLatencyHistograms requires Metrics Enabled")
	}
	return nil
}
