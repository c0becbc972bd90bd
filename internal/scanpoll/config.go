package scanpoll

import (
	"time"

	"github.com/tinytelemetry/fingervote/internal/model"
)

// Config tunes the scan flows. Zero fields take the package defaults,
// except MaxWait where a negative value disables the timeout.
type Config struct {
	PollInterval      time.Duration
	RedirectDelay     time.Duration
	VerifiedDelay     time.Duration
	MaxWait           time.Duration
	SimulatedTick     time.Duration
	SimulatedStep     int
	TestFingerprintID string
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = model.DefaultPollInterval
	}
	if c.RedirectDelay <= 0 {
		c.RedirectDelay = model.DefaultRedirectDelay
	}
	if c.VerifiedDelay <= 0 {
		c.VerifiedDelay = model.DefaultVerifiedDelay
	}
	if c.MaxWait == 0 {
		c.MaxWait = model.DefaultMaxWait
	}
	if c.SimulatedTick <= 0 {
		c.SimulatedTick = model.DefaultSimulatedTick
	}
	if c.SimulatedStep <= 0 || c.SimulatedStep > 100 {
		c.SimulatedStep = model.DefaultSimulatedStep
	}
	if c.TestFingerprintID == "" {
		c.TestFingerprintID = model.DefaultTestFingerprintID
	}
	return c
}
