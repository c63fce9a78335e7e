package resilience

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/joseph-ayodele/invoice-extractor/internal/common"
)

func TestConfigFromApp(t *testing.T) {
	cfg := ConfigFromApp(common.ResilienceConfig{
		RetryMaxAttempts: 4,
		RetryMaxBackoff:  3 * time.Second,
		BreakerEnabled:   false,
		BreakerFailures:  5,
	})
	assert.Equal(t, 4, cfg.RetryMaxAttempts)
	assert.Equal(t, 3*time.Second, cfg.RetryMaxBackoff)
	assert.Equal(t, DefaultConfig().RetryInitialBackoff, cfg.RetryInitialBackoff)
	assert.False(t, cfg.BreakerEnabled)
	assert.Equal(t, uint32(5), cfg.BreakerFailures)
	assert.Equal(t, DefaultConfig().BreakerCooldown, cfg.BreakerCooldown)
}

func TestNormalizeFillsDefaults(t *testing.T) {
	cfg := Config{RetryInitialBackoff: 2 * time.Second, RetryMaxBackoff: time.Second}.normalize()
	assert.Equal(t, DefaultConfig().RetryMaxAttempts, cfg.RetryMaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.RetryMaxBackoff)
	assert.Equal(t, uint32(3), cfg.BreakerFailures)
	assert.Equal(t, 30*time.Second, cfg.BreakerCooldown)
}
