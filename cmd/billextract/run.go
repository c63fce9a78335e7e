package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/invoice-extractor/constants"
	"github.com/joseph-ayodele/invoice-extractor/internal/async"
	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/export"
	"github.com/joseph-ayodele/invoice-extractor/internal/extract"
	"github.com/joseph-ayodele/invoice-extractor/internal/ingest"
	"github.com/joseph-ayodele/invoice-extractor/internal/matching"
	"github.com/joseph-ayodele/invoice-extractor/internal/metrics"
	"github.com/joseph-ayodele/invoice-extractor/internal/pipeline"
	"github.com/joseph-ayodele/invoice-extractor/internal/repository"
)

type summary struct {
	Files     int
	Extracted int
	Review    int
	Failed    int
}

func run(ctx context.Context, cli *cliConfig, cfg *common.Config, logger *slog.Logger) (summary, error) {
	files, hashes, err := collectInputs(ctx, cli.Inputs, logger)
	if err != nil {
		return summary{}, err
	}
	if len(files) == 0 && !cli.Watch {
		return summary{}, common.NewAppError("NO_INPUT", "no PDF files found", common.ErrInvalidInput)
	}

	a, err := newApp(cfg, logger)
	if err != nil {
		return summary{}, err
	}
	if cli.MetricsAddr != "" {
		serveMetrics(ctx, cli.MetricsAddr, a.metrics, logger)
	}

	var docs []export.Document
	if cli.Persist {
		docs, err = runPersist(ctx, a, cli, files, hashes)
	} else {
		docs, err = runLocal(ctx, a, files)
	}
	if err != nil {
		return summary{}, err
	}
	// An interrupted --watch run still writes what it processed.
	if err := writeOutputs(context.WithoutCancel(ctx), cli, docs, os.Stdout, logger); err != nil {
		return summary{}, err
	}

	s := summary{Files: len(docs)}
	for _, d := range docs {
		switch {
		case d.Err != nil:
			s.Failed++
		case d.Bundle.Header.NeedsReview:
			s.Extracted++
			s.Review++
		default:
			s.Extracted++
		}
	}
	return s, nil
}

// collectInputs expands directories into the PDFs they contain, sorted,
// dropping files whose content was already seen under another name.
func collectInputs(ctx context.Context, inputs []string, logger *slog.Logger) ([]string, map[string]struct{}, error) {
	found, stats, err := ingest.NewScanner(true, logger).Scan(ctx, inputs)
	if err != nil {
		return nil, nil, err
	}
	hashes := make(map[string]struct{}, len(found))
	files := make([]string, 0, len(found))
	for _, f := range found {
		hashes[f.HashHex] = struct{}{}
		if f.DuplicateOf == "" {
			files = append(files, f.Path)
		}
	}
	logger.Info("inputs collected", "files", len(files), "scanned", stats.Scanned, "duplicates", stats.Duplicates, "failed", stats.Failed)
	return files, hashes, nil
}

// runLocal extracts each file in turn without touching a database.
func runLocal(ctx context.Context, a *app, files []string) ([]export.Document, error) {
	docs := make([]export.Document, 0, len(files))
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		docs = append(docs, a.extractOne(ctx, path))
	}
	return docs, nil
}

func (a *app) extractOne(ctx context.Context, path string) export.Document {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.Queue.ProcessTimeout)
	defer cancel()

	start := time.Now()
	a.metrics.StartBill()
	bundle, err := a.engine.Extract(ctx, path, nil)
	doc := export.Document{Source: path, Bundle: bundle, Err: err}

	method, outcome, lines := "", metrics.OutcomeFailed, 0
	if err != nil {
		var xe *extract.ExtractionError
		if errors.As(err, &xe) && xe.Partial != nil {
			doc.Bundle = xe.Partial
			method = xe.Partial.TextMethod
		}
		a.logger.Warn("extraction failed", "path", path, "error", err)
	} else {
		method, lines, outcome = bundle.TextMethod, len(bundle.Lines), metrics.OutcomeProcessed
		if bundle.Header.NeedsReview {
			outcome = metrics.OutcomeReview
		}
	}
	var reasons []string
	if doc.Bundle != nil {
		for _, r := range doc.Bundle.Header.ReviewReasons {
			reasons = append(reasons, string(r))
		}
	}
	a.metrics.FinishBill(method, outcome, time.Since(start), lines, reasons)
	return doc
}

// runPersist stores every file as a bill and extracts them on the worker
// queue, resolving vendors and catalog items against the database. With
// --watch it keeps accepting new PDFs under the input directories until ctx
// is cancelled.
func runPersist(ctx context.Context, a *app, cli *cliConfig, files []string, hashes map[string]struct{}) ([]export.Document, error) {
	if err := a.cfg.RequireDatabase(); err != nil {
		return nil, err
	}
	db, err := repository.Open(ctx, a.cfg.Database, a.logger)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	defer db.Close(a.logger)
	if cli.Migrate {
		if err := db.Migrate(ctx); err != nil {
			return nil, err
		}
	}

	bills := repository.NewBillRepository(db, a.logger)
	jobs := repository.NewExtractJobRepository(db, a.logger)
	products := repository.NewProductRepository(db, a.logger)
	vendors := repository.NewVendorRepository(db, a.logger)

	proc := pipeline.NewProcessor(a.logger,
		pipeline.NewExtractStage(bills, jobs, products, a.engine, a.logger),
		pipeline.NewPersistStage(bills, jobs, matching.NewVendorResolver(vendors, a.lexicon, a.logger), a.logger),
		bills,
		a.metrics,
	)
	queue := async.NewProcessorQueue(proc, a.logger, append(async.FromConfig(a.cfg.Queue), async.WithMetrics(a.metrics))...)

	var ids []uuid.UUID
	submit := func(path string) error {
		abs, err := filepath.Abs(path)
		if err != nil {
			abs = path
		}
		bill, err := bills.Create(ctx, abs)
		if err != nil {
			return err
		}
		if err := queue.Enqueue(ctx, async.Job{BillID: bill.ID, TraceID: bill.ID.String()}); err != nil {
			return err
		}
		ids = append(ids, bill.ID)
		return nil
	}

	for _, path := range files {
		if err := submit(path); err != nil {
			queue.Shutdown(context.Background())
			return nil, err
		}
	}
	if cli.Watch {
		if err := watchInputs(ctx, a.logger, cli.Inputs, hashes, submit); err != nil {
			queue.Shutdown(context.Background())
			return nil, err
		}
	}

	// Drain the queue and read results even when a signal cancelled ctx.
	finishCtx := context.WithoutCancel(ctx)
	queue.Shutdown(finishCtx)

	docs := make([]export.Document, 0, len(ids))
	for _, id := range ids {
		doc, err := storedDocument(finishCtx, bills, jobs, id)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// watchInputs submits PDFs that appear under the input directories until
// ctx is done. Content already seen is skipped.
func watchInputs(ctx context.Context, logger *slog.Logger, inputs []string, hashes map[string]struct{}, submit func(string) error) error {
	var roots []string
	for _, in := range inputs {
		if info, err := os.Stat(in); err == nil && info.IsDir() {
			roots = append(roots, in)
		}
	}
	if len(roots) == 0 {
		return common.NewAppError("NO_INPUT", "--watch needs at least one directory", common.ErrInvalidInput)
	}

	events, errs, err := ingest.Watch(ctx, ingest.WatchConfig{Roots: roots, SkipHidden: true, Debounce: 500 * time.Millisecond}, logger)
	if err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}
	logger.Info("watching for new invoices", "roots", roots)
	for {
		select {
		case path, ok := <-events:
			if !ok {
				return nil
			}
			sum, err := ingest.HashFile(path)
			if err != nil {
				logger.Warn("skipping unreadable file", "path", path, "error", err)
				continue
			}
			if _, dup := hashes[sum]; dup {
				logger.Debug("skipping already seen content", "path", path)
				continue
			}
			hashes[sum] = struct{}{}
			if err := submit(path); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
			logger.Info("queued new invoice", "path", path)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			logger.Warn("watcher reported an error", "error", err)
		case <-ctx.Done():
			return nil
		}
	}
}

func storedDocument(ctx context.Context, bills repository.BillRepository, jobs repository.ExtractJobRepository, id uuid.UUID) (export.Document, error) {
	bill, err := bills.Get(ctx, id)
	if err != nil {
		return export.Document{}, err
	}
	lines, err := bills.Lines(ctx, id)
	if err != nil {
		return export.Document{}, err
	}
	doc := export.Document{Source: bill.SourcePath, Status: bill.Status, Bundle: export.BundleFromBill(bill, lines)}
	switch bill.Status {
	case constants.BillStatusFailed:
		doc.Err = errors.New("extraction failed")
		if list, err := jobs.ListByBill(ctx, id); err == nil && len(list) > 0 {
			if msg := list[len(list)-1].ErrorMessage; msg != nil {
				doc.Err = errors.New(*msg)
			}
		}
	case constants.BillStatusPending:
		doc.Err = errors.New("not processed")
	}
	return doc, nil
}

// writeOutputs writes the JSON bundles and the workbook. Without --out the
// bundles go to stdout, one per line.
func writeOutputs(ctx context.Context, cli *cliConfig, docs []export.Document, stdout io.Writer, logger *slog.Logger) error {
	if cli.OutDir != "" {
		if err := os.MkdirAll(cli.OutDir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	for _, d := range docs {
		if d.Bundle == nil || d.Err != nil {
			continue
		}
		data, err := export.MarshalBundle(d.Bundle)
		if err != nil {
			logger.Error("bundle failed validation", "source", d.Source, "error", err)
			return err
		}
		if cli.OutDir == "" {
			if cli.XLSX == "" {
				if _, err := fmt.Fprintln(stdout, compact(data)); err != nil {
					return err
				}
			}
			continue
		}
		name := strings.TrimSuffix(filepath.Base(d.Source), filepath.Ext(d.Source)) + ".json"
		if err := os.WriteFile(filepath.Join(cli.OutDir, name), data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
	}

	if cli.XLSX != "" {
		book, err := export.NewService(nil, logger).BundlesXLSX(ctx, docs)
		if err != nil {
			return err
		}
		if err := os.WriteFile(cli.XLSX, book, 0o644); err != nil {
			return fmt.Errorf("write workbook: %w", err)
		}
		logger.Info("workbook written", "path", cli.XLSX)
	}
	return nil
}

func compact(indented []byte) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, indented); err != nil {
		return string(indented)
	}
	return buf.String()
}
