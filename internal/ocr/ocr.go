package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/joseph-ayodele/invoice-extractor/constants"
	"github.com/joseph-ayodele/invoice-extractor/internal/common"
)

// Text acquisition methods reported in Result.Method.
const (
	MethodTextLayer = "pdf-text"
	MethodCmdText   = "pdf-cmd-text"
	MethodOCR       = "pdf-ocr"
)

type Config struct {
	Pdftotext string // binary name or absolute path; if empty -> "pdftotext"
	Pdftoppm  string // binary name or absolute path; if empty -> "pdftoppm"
	Tesseract string // binary name or absolute path; if empty -> "tesseract"

	TesseractLang string // default "eng"
	TessdataDir   string
	DPI           int // rasterization DPI for scanned PDFs, default 300
	MaxPages      int // 0 = no limit

	PSM int // 6 is good for a uniform block of text
	OEM int // 1 = LSTM; 0 leaves the tesseract default

	// MinTextChars is the normalized text length below which the text layer
	// is considered empty and the pages are rasterized for OCR.
	MinTextChars int
	Preprocess   bool
}

// ConfigFromApp maps the environment configuration onto the extractor settings.
func ConfigFromApp(c common.OCRConfig) Config {
	return Config{
		Pdftotext:     c.Pdftotext,
		Pdftoppm:      c.Pdftoppm,
		Tesseract:     c.Tesseract,
		TesseractLang: c.TesseractLang,
		TessdataDir:   c.TessdataDir,
		DPI:           c.DPI,
		MaxPages:      c.MaxPages,
		PSM:           c.PSM,
		OEM:           c.OEM,
		MinTextChars:  c.MinTextChars,
		Preprocess:    c.Preprocess,
	}
}

type Result struct {
	Text       string
	Pages      int
	Method     string // MethodTextLayer | MethodCmdText | MethodOCR
	Duration   time.Duration
	Warnings   []string
	Confidence float32
	// Layout is only available when the text came from the embedded text layer.
	Layout []PageLayout
}

type Extractor struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

type Option func(*Extractor)

// WithRunner replaces the process runner, e.g. with a ResilientRunner or a test stub.
func WithRunner(r Runner) Option {
	return func(e *Extractor) {
		if r != nil {
			e.runner = r
		}
	}
}

func NewExtractor(cfg Config, logger *slog.Logger, opts ...Option) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Pdftotext == "" {
		cfg.Pdftotext = "pdftotext"
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.TesseractLang == "" {
		cfg.TesseractLang = "eng"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	if cfg.MinTextChars <= 0 {
		cfg.MinTextChars = 150
	}
	e := &Extractor{cfg: cfg, runner: execRunner{logger: logger}, logger: logger}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract returns the text of a PDF. The embedded text layer is preferred;
// pdftotext is tried when the layer cannot be read, and the pages are
// rasterized for OCR when neither yields enough text.
func (e *Extractor) Extract(ctx context.Context, path string) (Result, error) {
	start := time.Now()
	ext := constants.NormalizeExt(filepath.Ext(path))
	if constants.MapExtToFormat(ext) != constants.PDF {
		e.logger.Error("unsupported ocr extension", "extension", ext)
		return Result{}, common.NewAppError("INVALID_ARGUMENT", fmt.Sprintf("unsupported extension: %q", ext), common.ErrInvalidInput)
	}
	e.logger.Debug("starting text acquisition", "path", path)

	res, err := e.extractPDF(ctx, path)
	res.Duration = time.Since(start)
	if err != nil {
		return res, err
	}
	res.Confidence = heuristicConfidence(res.Text)
	e.logger.Info("text acquired",
		"path", path,
		"method", res.Method,
		"pages", res.Pages,
		"chars", len(res.Text),
		"confidence", res.Confidence,
		"duration_ms", res.Duration.Milliseconds(),
	)
	return res, nil
}

func (e *Extractor) extractPDF(ctx context.Context, path string) (Result, error) {
	var res Result

	pages, err := preflight(path)
	if err != nil {
		// poppler is more forgiving than the parser, keep going
		e.logger.Warn("pdf preflight failed", "path", path, "error", err)
		res.Warnings = append(res.Warnings, err.Error())
	}
	res.Pages = pages

	text, layout, err := e.readTextLayer(path)
	if err != nil {
		e.logger.Warn("text layer unreadable", "path", path, "error", err)
		res.Warnings = append(res.Warnings, err.Error())
	}
	text = Normalize(text)
	if err == nil && text != "" {
		res.Text, res.Method, res.Layout = text, MethodTextLayer, layout
		if res.Pages == 0 {
			res.Pages = len(layout)
		}
	}

	if err != nil || text == "" {
		cmdText, cmdPages, warns, cerr := e.pdfToText(ctx, path)
		res.Warnings = append(res.Warnings, warns...)
		if cerr != nil {
			e.logger.Warn("pdftotext failed", "path", path, "error", cerr)
			res.Warnings = append(res.Warnings, cerr.Error())
		} else if cmdText = Normalize(cmdText); cmdText != "" {
			res.Text, res.Method, res.Layout = cmdText, MethodCmdText, nil
			if res.Pages == 0 {
				res.Pages = cmdPages
			}
		}
	}

	if len([]rune(res.Text)) >= e.cfg.MinTextChars {
		return res, nil
	}

	e.logger.Info("text layer too short, running ocr", "path", path, "chars", len(res.Text), "min_chars", e.cfg.MinTextChars)
	ocrText, ocrPages, warns, oerr := e.pdfToOCR(ctx, path)
	res.Warnings = append(res.Warnings, warns...)
	if oerr == nil {
		if ocrText = Normalize(ocrText); ocrText != "" {
			res.Text, res.Method, res.Layout = ocrText, MethodOCR, nil
			if ocrPages > 0 {
				res.Pages = ocrPages
			}
			return res, nil
		}
		oerr = fmt.Errorf("ocr produced no text")
	}

	if res.Text != "" {
		// keep the short text layer rather than failing the whole document
		e.logger.Warn("ocr failed, using short text layer", "path", path, "error", oerr)
		res.Warnings = append(res.Warnings, "ocr failed: "+oerr.Error())
		return res, nil
	}
	e.logger.Error("no text could be acquired", "path", path, "error", oerr)
	return res, common.NewAppError("UNREADABLE_DOCUMENT", strings.TrimSpace("no text layer and ocr failed: "+oerr.Error()), common.ErrUnreadableDocument)
}
