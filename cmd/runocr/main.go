// Command runocr prints the text the extraction engine would see for a PDF,
// which is handy when a bill lands in review and the grammar needs tuning.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/ocr"
	"github.com/joseph-ayodele/invoice-extractor/internal/resilience"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if len(os.Args) != 2 {
		logger.Error("usage", "cmd", "runocr <invoice.pdf>")
		os.Exit(2)
	}
	path := os.Args[1]

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Warn("could not load .env", "error", err)
	}
	cfg := common.LoadConfig()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Queue.ProcessTimeout)
	defer cancel()

	guard := resilience.NewCommandGuard(resilience.ConfigFromApp(cfg.Resilience), logger)
	x := ocr.NewExtractor(ocr.ConfigFromApp(cfg.OCR), logger,
		ocr.WithRunner(ocr.NewResilientRunner(ocr.DefaultRunner(logger), guard)))

	start := time.Now()
	res, err := x.Extract(ctx, path)
	dur := time.Since(start)
	if err != nil {
		logger.Error("text extraction failed", "path", path, "error", err, "duration_ms", dur.Milliseconds())
		os.Exit(1)
	}

	ruled := 0
	for _, p := range res.Layout {
		ruled += len(p.Rules)
	}
	logger.Info("text extraction OK",
		"path", path,
		"method", res.Method,
		"pages", res.Pages,
		"bytes", len(res.Text),
		"confidence", res.Confidence,
		"ruling_lines", ruled,
		"warnings", res.Warnings,
		"duration_ms", dur.Milliseconds(),
	)
	fmt.Println(res.Text)
}
