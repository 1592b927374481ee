package goRecovery

import (
	"context"
	"testing"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantValid bool
	}{
		{
			name:      "defaults valid",
			mutate:    func(*Config) {},
			wantValid: true,
		},
		{
			name: "country code with plus invalid",
			mutate: func(c *Config) {
				c.Phone.DefaultCountryCode = "+91"
			},
			wantValid: false,
		},
		{
			name: "empty country code invalid",
			mutate: func(c *Config) {
				c.Phone.DefaultCountryCode = ""
			},
			wantValid: false,
		},
		{
			name: "four digit country code valid",
			mutate: func(c *Config) {
				c.Phone.DefaultCountryCode = "1684"
			},
			wantValid: true,
		},
		{
			name: "negative password floor invalid",
			mutate: func(c *Config) {
				c.Validation.MinPasswordLength = -1
			},
			wantValid: false,
		},
		{
			name: "zero subscriber buffer invalid",
			mutate: func(c *Config) {
				c.Events.SubscriberBuffer = 0
			},
			wantValid: false,
		},
		{
			name: "audit enabled without buffer invalid",
			mutate: func(c *Config) {
				c.Audit.Enabled = true
				c.Audit.BufferSize = 0
			},
			wantValid: false,
		},
		{
			name: "audit disabled ignores buffer",
			mutate: func(c *Config) {
				c.Audit.BufferSize = 0
			},
			wantValid: true,
		},
		{
			name: "latency without metrics invalid",
			mutate: func(c *Config) {
				c.Metrics.EnableLatencyHistograms = true
			},
			wantValid: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantValid && err != nil {
				t.Fatalf("expected valid config, got %v", err)
			}
			if !tt.wantValid && err == nil {
				t.Fatal("expected invalid config")
			}
		})
	}
}

func TestBuildRequiresProvider(t *testing.T) {
	if _, err := New().Build(); err == nil {
		t.Fatal("expected error without provider")
	}
}

func TestBuilderIsSingleUse(t *testing.T) {
	b := New().WithProvider(newFakeProvider())
	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer engine.Close()

	if _, err := b.Build(); err == nil {
		t.Fatal("expected second Build to fail")
	}
}

func TestBuildRejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Phone.DefaultCountryCode = "abc"
	if _, err := New().WithConfig(cfg).WithProvider(newFakeProvider()).Build(); err == nil {
		t.Fatal("expected invalid config to fail Build")
	}
}

func TestWithConfigCopies(t *testing.T) {
	cfg := DefaultConfig()
	b := New().WithConfig(cfg).WithProvider(newFakeProvider())
	cfg.Phone.DefaultCountryCode = "44"

	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer engine.Close()

	if got := engine.Config().Phone.DefaultCountryCode; got != "91" {
		t.Fatalf("caller mutation leaked into engine: %q", got)
	}
}

func TestZeroEngineNotReady(t *testing.T) {
	var e *Engine
	if _, err := e.Start(context.Background()); err != ErrEngineNotReady {
		t.Fatalf("expected ErrEngineNotReady, got %v", err)
	}

	var c *Controller
	if err := c.SelectMethod(MethodEmail); err != ErrEngineNotReady {
		t.Fatalf("expected ErrEngineNotReady, got %v", err)
	}
}
