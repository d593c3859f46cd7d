package common

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	OCR      OCRConfig
	Barcode  BarcodeConfig
	LLM      LLMConfig
	Pipeline PipelineConfig
	Log      LogConfig
}

// DatabaseConfig holds the airport directory store configuration
type DatabaseConfig struct {
	Driver           string // "sqlite" | "postgres"
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// OCRConfig holds OCR-related configuration
type OCRConfig struct {
	Engine        string // "tesseract" | "vision"
	Pdftotext     string
	Pdftoppm      string
	Tesseract     string
	TesseractLang string
	TessdataDir   string
	DPI           int
	MaxPages      int
	Timeout       time.Duration
}

// BarcodeConfig bounds the decode attempts
type BarcodeConfig struct {
	ZXingReader   string
	Zbarimg       string
	NativeTimeout time.Duration
	CLITimeout    time.Duration
	TotalTimeout  time.Duration
}

// LLMConfig holds the vision model configuration
type LLMConfig struct {
	Model       string
	APIKey      string
	BaseURL     string
	Temperature float32
	Timeout     time.Duration
}

// PipelineConfig holds orchestrator-level knobs
type PipelineConfig struct {
	RunTimeout          time.Duration
	MetadataMatchWindow time.Duration
	Workers             int
}

// LogConfig controls the slog handler built by the CLI
type LogConfig struct {
	Level  string
	Format string // "json" | "text"
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:           getEnv("DB_DRIVER", "sqlite"),
			DSN:              getEnv("DB_URL", "file:airports.db?_pragma=busy_timeout(5000)"),
			MaxConns:         getEnvAsInt32("DB_MAX_CONNS", 10),
			MinConns:         getEnvAsInt32("DB_MIN_CONNS", 1),
			MaxConnLifetime:  getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 0),
		},
		OCR: OCRConfig{
			Engine:        getEnv("OCR_ENGINE", "tesseract"),
			Pdftotext:     getEnv("PDFTOTEXT_BIN", "pdftotext"),
			Pdftoppm:      getEnv("PDFTOPPM_BIN", "pdftoppm"),
			Tesseract:     getEnv("TESSERACT_BIN", "tesseract"),
			TesseractLang: getEnv("TESSERACT_LANG", "eng+spa"),
			TessdataDir:   getEnv("TESSDATA_PREFIX", ""),
			DPI:           getEnvAsInt("OCR_DPI", 300),
			MaxPages:      getEnvAsInt("OCR_MAX_PAGES", 3),
			Timeout:       getEnvAsDuration("OCR_TIMEOUT", 30*time.Second),
		},
		Barcode: BarcodeConfig{
			ZXingReader:   getEnv("ZXING_READER_BIN", "ZXingReader"),
			Zbarimg:       getEnv("ZBARIMG_BIN", "zbarimg"),
			NativeTimeout: getEnvAsDuration("BARCODE_NATIVE_TIMEOUT", 4*time.Second),
			CLITimeout:    getEnvAsDuration("BARCODE_CLI_TIMEOUT", 8*time.Second),
			TotalTimeout:  getEnvAsDuration("BARCODE_TOTAL_TIMEOUT", 30*time.Second),
		},
		LLM: LLMConfig{
			Model:       getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
			APIKey:      getEnv("GEMINI_API_KEY", ""),
			BaseURL:     getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com"),
			Temperature: getEnvAsFloat32("GEMINI_TEMPERATURE", 0.0),
			Timeout:     getEnvAsDuration("GEMINI_TIMEOUT", 20*time.Second),
		},
		Pipeline: PipelineConfig{
			RunTimeout:          getEnvAsDuration("RUN_TIMEOUT", 2*time.Minute),
			MetadataMatchWindow: getEnvAsDuration("METADATA_MATCH_WINDOW", 72*time.Hour),
			Workers:             getEnvAsInt("BATCH_WORKERS", 4),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
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

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
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

// AIEnabled reports whether the vision fallback can be called.
func (c *Config) AIEnabled() bool {
	return c.LLM.APIKey != ""
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return NewAppError("CONFIG_ERROR", "DB_DRIVER must be sqlite or postgres", ErrInvalidInput)
	}
	switch c.OCR.Engine {
	case "tesseract", "vision":
	default:
		return NewAppError("CONFIG_ERROR", "OCR_ENGINE must be tesseract or vision", ErrInvalidInput)
	}
	if c.OCR.DPI <= 0 {
		return NewAppError("CONFIG_ERROR", "OCR_DPI must be positive", ErrInvalidInput)
	}
	if c.Barcode.TotalTimeout <= 0 || c.Barcode.NativeTimeout <= 0 || c.Barcode.CLITimeout <= 0 {
		return NewAppError("CONFIG_ERROR", "barcode timeouts must be positive", ErrInvalidInput)
	}
	if c.Barcode.NativeTimeout > c.Barcode.TotalTimeout || c.Barcode.CLITimeout > c.Barcode.TotalTimeout {
		return NewAppError("CONFIG_ERROR", "per-attempt barcode timeouts cannot exceed BARCODE_TOTAL_TIMEOUT", ErrInvalidInput)
	}
	if c.Pipeline.RunTimeout <= 0 {
		return NewAppError("CONFIG_ERROR", "RUN_TIMEOUT must be positive", ErrInvalidInput)
	}
	if c.Pipeline.MetadataMatchWindow < 0 {
		return NewAppError("CONFIG_ERROR", "METADATA_MATCH_WINDOW cannot be negative", ErrInvalidInput)
	}
	return nil
}
