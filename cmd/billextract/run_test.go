package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/export"
	"github.com/joseph-ayodele/invoice-extractor/internal/extract"
	"github.com/joseph-ayodele/invoice-extractor/internal/lexicon"
	"github.com/joseph-ayodele/invoice-extractor/internal/metrics"
	"github.com/joseph-ayodele/invoice-extractor/internal/ocr"
)

type cannedSource map[string]string

func (s cannedSource) Extract(_ context.Context, path string) (ocr.Result, error) {
	if text, ok := s[filepath.Base(path)]; ok {
		return ocr.Result{Text: text, Pages: 1, Method: ocr.MethodTextLayer}, nil
	}
	return ocr.Result{}, common.ErrUnreadableDocument
}

func testApp(src extract.TextSource) *app {
	cfg := common.LoadConfig()
	cfg.Queue.ProcessTimeout = time.Minute
	return &app{
		cfg:     cfg,
		lexicon: lexicon.Default(),
		engine:  extract.NewEngine(lexicon.Default(), src, extract.DefaultOptions(), nil),
		metrics: metrics.NewExtractionMetrics("test"),
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4 "+filepath.Base(path)), 0o644))
}

func TestCollectInputs(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "b.pdf"))
	touch(t, filepath.Join(dir, "nested", "a.PDF"))
	touch(t, filepath.Join(dir, "notes.txt"))
	single := filepath.Join(t.TempDir(), "single.pdf")
	touch(t, single)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "copy.pdf"), []byte("%PDF-1.4 b.pdf"), 0o644))
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	got, hashes, err := collectInputs(context.Background(), []string{dir, single, filepath.Join(dir, "b.pdf")}, logger)
	require.NoError(t, err)
	assert.Len(t, hashes, 3)
	want := []string{filepath.Join(dir, "b.pdf"), filepath.Join(dir, "nested", "a.PDF"), single}
	assert.ElementsMatch(t, want, got)
	assert.Len(t, got, 3)

	_, _, err = collectInputs(context.Background(), []string{filepath.Join(dir, "missing.pdf")}, logger)
	assert.Error(t, err)
}

func TestRunLocalAndWriteOutputs(t *testing.T) {
	a := testApp(cannedSource{"tile.pdf": "Ceramic Tile 600x600 3305 10 NOS 250.00 2500.00"})

	docs, err := runLocal(context.Background(), a, []string{"/in/tile.pdf", "/in/blank.pdf"})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	require.NoError(t, docs[0].Err)
	assert.Len(t, docs[0].Bundle.Lines, 1)
	assert.True(t, errors.Is(docs[1].Err, common.ErrUnreadableDocument))

	out := t.TempDir()
	cli := &cliConfig{OutDir: out, XLSX: filepath.Join(out, "bills.xlsx")}
	require.NoError(t, writeOutputs(context.Background(), cli, docs, &bytes.Buffer{}, a.logger))

	raw, err := os.ReadFile(filepath.Join(out, "tile.json"))
	require.NoError(t, err)
	require.NoError(t, export.ValidateBundleJSON(raw))
	_, err = os.Stat(filepath.Join(out, "blank.json"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(cli.XLSX)
	assert.NoError(t, err)
}

func TestWriteOutputsToStdout(t *testing.T) {
	a := testApp(cannedSource{"tile.pdf": "Ceramic Tile 600x600 3305 10 NOS 250.00 2500.00"})
	docs, err := runLocal(context.Background(), a, []string{"/in/tile.pdf"})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, writeOutputs(context.Background(), &cliConfig{}, docs, &buf, a.logger))
	line := strings.TrimSpace(buf.String())
	assert.False(t, strings.Contains(line, "\n"))
	var v map[string]any
	require.NoError(t, json.Unmarshal([]byte(line), &v))
	assert.Contains(t, v, "lines")
}
