package common

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Database   DatabaseConfig
	OCR        OCRConfig
	Extract    ExtractConfig
	Resilience ResilienceConfig
	Queue      QueueConfig
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// OCRConfig holds text acquisition configuration
type OCRConfig struct {
	Pdftotext     string
	Pdftoppm      string
	Tesseract     string
	TesseractLang string
	TessdataDir   string
	DPI           int
	PSM           int
	OEM           int
	MaxPages      int
	MinTextChars  int
	Preprocess    bool
}

// ExtractConfig holds the tunable extraction thresholds
type ExtractConfig struct {
	LexiconFile       string
	TableMinRows      int
	HeaderScanLines   int
	FuzzyMatchMinimum float64
}

// ResilienceConfig controls retries and the circuit breaker around external commands
type ResilienceConfig struct {
	RetryMaxAttempts    int
	RetryInitialBackoff time.Duration
	RetryMaxBackoff     time.Duration
	BreakerEnabled      bool
	BreakerFailures     int
	BreakerCooldown     time.Duration
}

// QueueConfig holds the extraction worker pool configuration
type QueueConfig struct {
	Workers        int
	Size           int
	ProcessTimeout time.Duration
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			DSN:              getEnv("DB_URL", ""),
			MaxConns:         getEnvAsInt32("DB_MAX_CONNS", 20),
			MinConns:         getEnvAsInt32("DB_MIN_CONNS", 5),
			MaxConnLifetime:  getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 0),
		},
		OCR: OCRConfig{
			Pdftotext:     getEnv("PDFTOTEXT_BIN", "pdftotext"),
			Pdftoppm:      getEnv("PDFTOPPM_BIN", "pdftoppm"),
			Tesseract:     getEnv("TESSERACT_BIN", "tesseract"),
			TesseractLang: getEnv("TESSERACT_LANG", "eng"),
			TessdataDir:   getEnv("TESSDATA_PREFIX", ""),
			DPI:           getEnvAsInt("OCR_DPI", 300),
			PSM:           getEnvAsInt("OCR_PSM", 6),
			OEM:           getEnvAsInt("OCR_OEM", 1),
			MaxPages:      getEnvAsInt("OCR_MAX_PAGES", 0),
			MinTextChars:  getEnvAsInt("OCR_MIN_TEXT_CHARS", 150),
			Preprocess:    getEnvAsBool("OCR_PREPROCESS", true),
		},
		Extract: ExtractConfig{
			LexiconFile:       getEnv("LEXICON_FILE", ""),
			TableMinRows:      getEnvAsInt("TABLE_MIN_ROWS", 3),
			HeaderScanLines:   getEnvAsInt("HEADER_SCAN_LINES", 35),
			FuzzyMatchMinimum: getEnvAsFloat64("FUZZY_MATCH_MIN", 0.75),
		},
		Resilience: ResilienceConfig{
			RetryMaxAttempts:    getEnvAsInt("EXEC_RETRY_MAX_ATTEMPTS", 2),
			RetryInitialBackoff: getEnvAsDuration("EXEC_RETRY_INITIAL_BACKOFF", 200*time.Millisecond),
			RetryMaxBackoff:     getEnvAsDuration("EXEC_RETRY_MAX_BACKOFF", time.Second),
			BreakerEnabled:      getEnvAsBool("EXEC_BREAKER_ENABLED", true),
			BreakerFailures:     getEnvAsInt("EXEC_BREAKER_FAILURES", 3),
			BreakerCooldown:     getEnvAsDuration("EXEC_BREAKER_COOLDOWN", 30*time.Second),
		},
		Queue: QueueConfig{
			Workers:        getEnvAsInt("QUEUE_WORKERS", 4),
			Size:           getEnvAsInt("QUEUE_SIZE", 256),
			ProcessTimeout: getEnvAsDuration("QUEUE_PROCESS_TIMEOUT", 3*time.Minute),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	v := NewValidator()
	v.Field("OCR_DPI", c.OCR.DPI, Positive)
	v.Field("OCR_MIN_TEXT_CHARS", c.OCR.MinTextChars, Positive)
	v.Field("TABLE_MIN_ROWS", c.Extract.TableMinRows, Positive)
	v.Field("HEADER_SCAN_LINES", c.Extract.HeaderScanLines, Positive)
	v.Field("FUZZY_MATCH_MIN", c.Extract.FuzzyMatchMinimum, UnitInterval)
	v.Field("QUEUE_WORKERS", c.Queue.Workers, Positive)
	if v.HasErrors() {
		return NewAppError("CONFIG_ERROR", v.ErrorMessage(), ErrInvalidInput)
	}
	return nil
}

// RequireDatabase checks the settings needed by commands that persist bills.
func (c *Config) RequireDatabase() error {
	if strings.TrimSpace(c.Database.DSN) == "" {
		return NewAppError("CONFIG_ERROR", "DB_URL is required", ErrInvalidInput)
	}
	return nil
}
