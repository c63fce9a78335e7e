package main

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/joseph-ayodele/invoice-extractor/internal/common"
)

const envPrefix = "BILLX"

// cliConfig is the command-line surface. Anything not set here falls back
// to the environment read by common.LoadConfig.
type cliConfig struct {
	Inputs      []string
	OutDir      string
	XLSX        string
	Persist     bool
	Watch       bool
	Migrate     bool
	Workers     int
	Lexicon     string
	TableRows   int
	LogLevel    string
	MetricsAddr string
	EnvFile     string
	Timeout     time.Duration
}

func newFlagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.String("out", "", "directory for one <name>.json bundle per input (default: stdout)")
	fs.String("xlsx", "", "write an XLSX workbook of all bundles to this path")
	fs.Bool("persist", false, "store bills in the database named by DB_URL")
	fs.Bool("watch", false, "with --persist, keep extracting PDFs added to the input directories until interrupted")
	fs.Bool("migrate", true, "create or update tables before persisting")
	fs.Int("workers", 0, "extraction workers when persisting (default QUEUE_WORKERS)")
	fs.String("lexicon", "", "YAML lexicon override file (default LEXICON_FILE)")
	fs.Int("table-min-rows", 0, "minimum table rows before table lines win (default TABLE_MIN_ROWS)")
	fs.String("loglevel", "info", "log level (debug, info, warn, error)")
	fs.String("metrics-addr", "", "serve Prometheus metrics on this address while running")
	fs.String("env-file", ".env", "dotenv file loaded before reading the environment")
	fs.Duration("timeout", 0, "per-file extraction timeout (default QUEUE_PROCESS_TIMEOUT)")
	return fs
}

// loadCLIConfig parses args with flags taking precedence over BILLX_*
// environment variables.
func loadCLIConfig(args []string) (*cliConfig, error) {
	fs := newFlagSet("billextract")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(fs); err != nil {
		return nil, fmt.Errorf("bind flags: %w", err)
	}

	cfg := &cliConfig{
		Inputs:      fs.Args(),
		OutDir:      v.GetString("out"),
		XLSX:        v.GetString("xlsx"),
		Persist:     v.GetBool("persist"),
		Watch:       v.GetBool("watch"),
		Migrate:     v.GetBool("migrate"),
		Workers:     v.GetInt("workers"),
		Lexicon:     v.GetString("lexicon"),
		TableRows:   v.GetInt("table-min-rows"),
		LogLevel:    v.GetString("loglevel"),
		MetricsAddr: v.GetString("metrics-addr"),
		EnvFile:     v.GetString("env-file"),
		Timeout:     v.GetDuration("timeout"),
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *cliConfig) validate() error {
	if len(c.Inputs) == 0 {
		return errors.New("at least one PDF file or directory is required")
	}
	if c.Watch && !c.Persist {
		return errors.New("--watch requires --persist")
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.Workers < 0 || c.TableRows < 0 {
		return errors.New("workers and table-min-rows must not be negative")
	}
	return nil
}

// apply overlays the flags on the environment configuration.
func (c *cliConfig) apply(app *common.Config) {
	if c.Workers > 0 {
		app.Queue.Workers = c.Workers
	}
	if c.Lexicon != "" {
		app.Extract.LexiconFile = c.Lexicon
	}
	if c.TableRows > 0 {
		app.Extract.TableMinRows = c.TableRows
	}
	if c.Timeout > 0 {
		app.Queue.ProcessTimeout = c.Timeout
	}
}

func parseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToUpper(strings.TrimSpace(s)))); err != nil {
		return l, fmt.Errorf("invalid log level %q", s)
	}
	return l, nil
}
