package redisidp

import (
	"errors"
	"time"

	"github.com/agriskills/goRecovery/jwt"
	"github.com/agriskills/goRecovery/password"
)

// Config defines the provider's challenge, grant and hashing behavior.
//
// Config instances are intended to be configured during initialization and then treated as immutable.
type Config struct {
	// KeyPrefix namespaces every Redis key written by the provider.
	KeyPrefix string

	OTPDigits          int
	OTPTTL             time.Duration
	ResetLinkTTL       time.Duration
	MaxConfirmAttempts int

	// ConcealUnknownUsers makes requests for unknown emails and phones look
	// successful. No message is sent and no code can ever confirm.
	ConcealUnknownUsers bool

	Throttle ThrottleConfig
	Grant    jwt.Config
	Password password.Config
}

// ThrottleConfig bounds how often codes and links are issued and confirmed.
type ThrottleConfig struct {
	Enabled              bool
	PerIP                bool
	MaxIssuesPerWindow   int
	MaxConfirmsPerWindow int
	Window               time.Duration
}

// DefaultConfig returns a config with every field except the grant keys set.
func DefaultConfig() Config {
	return Config{
		KeyPrefix:          "rcv",
		OTPDigits:          6,
		OTPTTL:             5 * time.Minute,
		ResetLinkTTL:       30 * time.Minute,
		MaxConfirmAttempts: 5,
		Throttle: ThrottleConfig{
			Enabled:              true,
			PerIP:                true,
			MaxIssuesPerWindow:   5,
			MaxConfirmsPerWindow: 10,
			Window:               15 * time.Minute,
		},
		Grant: jwt.Config{
			GrantTTL:      10 * time.Minute,
			SigningMethod: jwt.MethodEd25519,
			Issuer:        "goRecovery",
		},
		Password: password.DefaultConfig(),
	}
}

func (c *Config) validate() error {
	if c.KeyPrefix == "" {
		return errors.New("KeyPrefix must not be empty")
	}
	if c.OTPDigits < 4 || c.OTPDigits > 10 {
		return errors.New("OTPDigits must be between 4 and 10")
	}
	if c.OTPTTL <= 0 {
		return errors.New("OTPTTL must be > 0")
	}
	if c.ResetLinkTTL <= 0 {
		return errors.New("ResetLinkTTL must be > 0")
	}
	if c.MaxConfirmAttempts <= 0 {
		return errors.New("MaxConfirmAttempts must be > 0")
	}
	if c.Throttle.Enabled && c.Throttle.Window <= 0 {
		return errors.New("Throttle Window must be > 0 when Throttle is enabled")
	}
	return nil
}
