package main

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/invoice-extractor/internal/common"
)

func TestLoadCLIConfigDefaults(t *testing.T) {
	cfg, err := loadCLIConfig([]string{"invoice.pdf"})
	require.NoError(t, err)
	assert.Equal(t, []string{"invoice.pdf"}, cfg.Inputs)
	assert.False(t, cfg.Persist)
	assert.True(t, cfg.Migrate)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, ".env", cfg.EnvFile)
}

func TestLoadCLIConfigFlagsAndEnv(t *testing.T) {
	t.Setenv("BILLX_XLSX", "/tmp/env.xlsx")
	t.Setenv("BILLX_TABLE_MIN_ROWS", "5")

	cfg, err := loadCLIConfig([]string{"--persist", "--workers=2", "--xlsx=/tmp/flag.xlsx", "--timeout=30s", "a.pdf", "bills/"})
	require.NoError(t, err)
	assert.True(t, cfg.Persist)
	assert.Equal(t, 2, cfg.Workers)
	// flags win over the environment
	assert.Equal(t, "/tmp/flag.xlsx", cfg.XLSX)
	assert.Equal(t, 5, cfg.TableRows)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, []string{"a.pdf", "bills/"}, cfg.Inputs)

	app := &common.Config{}
	cfg.apply(app)
	assert.Equal(t, 2, app.Queue.Workers)
	assert.Equal(t, 5, app.Extract.TableMinRows)
	assert.Equal(t, 30*time.Second, app.Queue.ProcessTimeout)
}

func TestLoadCLIConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"no inputs", nil},
		{"bad level", []string{"--loglevel=loud", "a.pdf"}},
		{"negative workers", []string{"--workers=-1", "a.pdf"}},
		{"unknown flag", []string{"--nope", "a.pdf"}},
		{"watch without persist", []string{"--watch", "bills/"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadCLIConfig(tt.args)
			assert.Error(t, err)
		})
	}
}

func TestParseLevel(t *testing.T) {
	l, err := parseLevel("debug")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, l)
}
