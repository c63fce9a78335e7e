// Command billextract extracts GST invoices from PDFs into JSON bundles, an
// XLSX workbook, and optionally the bills database.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/extract"
	"github.com/joseph-ayodele/invoice-extractor/internal/lexicon"
	"github.com/joseph-ayodele/invoice-extractor/internal/metrics"
	"github.com/joseph-ayodele/invoice-extractor/internal/ocr"
	"github.com/joseph-ayodele/invoice-extractor/internal/resilience"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	cli, err := loadCLIConfig(os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		printError("Error: %v\n", err)
		os.Exit(2)
	}

	if err := godotenv.Load(cli.EnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		printError("Error: loading %s: %v\n", cli.EnvFile, err)
		os.Exit(2)
	}

	level, _ := parseLevel(cli.LogLevel)
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	cli.apply(cfg)
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary, err := run(ctx, cli, cfg, logger)
	if err != nil {
		logger.Error("billextract failed", "error", err)
		os.Exit(1)
	}
	fmt.Printf("Extraction complete!\n")
	fmt.Printf("- Files: %d\n", summary.Files)
	fmt.Printf("- Extracted: %d (%d need review)\n", summary.Extracted, summary.Review)
	fmt.Printf("- Failures: %d\n", summary.Failed)
	if summary.Failed > 0 {
		os.Exit(3)
	}
}

// app holds the wired components shared by both run modes.
type app struct {
	cfg     *common.Config
	lexicon *lexicon.Lexicon
	engine  *extract.Engine
	metrics *metrics.ExtractionMetrics
	logger  *slog.Logger
}

func newApp(cfg *common.Config, logger *slog.Logger) (*app, error) {
	lx := lexicon.Default()
	if cfg.Extract.LexiconFile != "" {
		loaded, err := lexicon.Load(cfg.Extract.LexiconFile)
		if err != nil {
			return nil, fmt.Errorf("load lexicon: %w", err)
		}
		lx = loaded
		logger.Info("lexicon loaded", "path", cfg.Extract.LexiconFile)
	}

	guard := resilience.NewCommandGuard(resilience.ConfigFromApp(cfg.Resilience), logger)
	source := ocr.NewExtractor(ocr.ConfigFromApp(cfg.OCR), logger,
		ocr.WithRunner(ocr.NewResilientRunner(ocr.DefaultRunner(logger), guard)))
	engine := extract.NewEngine(lx, source, extract.OptionsFromApp(cfg.Extract), logger)

	return &app{
		cfg:     cfg,
		lexicon: lx,
		engine:  engine,
		metrics: metrics.NewExtractionMetrics("billextract"),
		logger:  logger,
	}, nil
}

func serveMetrics(ctx context.Context, addr string, m *metrics.ExtractionMetrics, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	go func() {
		logger.Info("serving metrics", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()
}
