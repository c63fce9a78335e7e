package resilience

import (
	"time"

	"github.com/joseph-ayodele/invoice-extractor/internal/common"
)

type Config struct {
	// RetryMaxAttempts bounds runs per call, including the first.
	RetryMaxAttempts    int
	RetryInitialBackoff time.Duration
	RetryMaxBackoff     time.Duration

	BreakerEnabled  bool
	BreakerFailures uint32 // consecutive crashes before benching
	BreakerCooldown time.Duration
}

// DefaultConfig: one retry for a crashed tesseract, and a binary that
// crashes three times running is left alone for half a minute.
func DefaultConfig() Config {
	return Config{
		RetryMaxAttempts:    2,
		RetryInitialBackoff: 200 * time.Millisecond,
		RetryMaxBackoff:     time.Second,
		BreakerEnabled:      true,
		BreakerFailures:     3,
		BreakerCooldown:     30 * time.Second,
	}
}

// ConfigFromApp overlays the environment settings on DefaultConfig.
func ConfigFromApp(c common.ResilienceConfig) Config {
	out := DefaultConfig()
	if c.RetryMaxAttempts > 0 {
		out.RetryMaxAttempts = c.RetryMaxAttempts
	}
	if c.RetryInitialBackoff > 0 {
		out.RetryInitialBackoff = c.RetryInitialBackoff
	}
	if c.RetryMaxBackoff > 0 {
		out.RetryMaxBackoff = c.RetryMaxBackoff
	}
	if c.BreakerFailures > 0 {
		out.BreakerFailures = uint32(c.BreakerFailures)
	}
	if c.BreakerCooldown > 0 {
		out.BreakerCooldown = c.BreakerCooldown
	}
	out.BreakerEnabled = c.BreakerEnabled
	return out
}

func (c Config) normalize() Config {
	out := c
	def := DefaultConfig()

	if out.RetryMaxAttempts <= 0 {
		out.RetryMaxAttempts = def.RetryMaxAttempts
	}
	if out.RetryInitialBackoff <= 0 {
		out.RetryInitialBackoff = def.RetryInitialBackoff
	}
	if out.RetryMaxBackoff <= 0 {
		out.RetryMaxBackoff = def.RetryMaxBackoff
	}
	if out.RetryMaxBackoff < out.RetryInitialBackoff {
		out.RetryMaxBackoff = out.RetryInitialBackoff
	}
	if out.BreakerFailures == 0 {
		out.BreakerFailures = def.BreakerFailures
	}
	if out.BreakerCooldown <= 0 {
		out.BreakerCooldown = def.BreakerCooldown
	}
	return out
}
