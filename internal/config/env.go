package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// LoggingConfig holds logging-related configuration.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Pretty     bool   `yaml:"pretty"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// AxiomConfig holds Axiom logging configuration.
type AxiomConfig struct {
	Send          bool          `yaml:"send"`
	APIKey        string        `yaml:"api_key"`
	OrgID         string        `yaml:"org_id"`
	Dataset       string        `yaml:"dataset"`
	FlushInterval time.Duration `yaml:"flush_interval"`
}

// RendererConfig configures the LibreOffice conversion.
type RendererConfig struct {
	Binary        string        `yaml:"binary"`
	Timeout       time.Duration `yaml:"timeout"`
	MaxConcurrent int           `yaml:"max_concurrent"`
}

// CompileConfig tunes the compile pipeline.
type CompileConfig struct {
	TempDir         string  `yaml:"temp_dir"`
	KeepTemp        bool    `yaml:"keep_temp"`
	BakeAnnotations bool    `yaml:"bake_annotations"`
	Crop            bool    `yaml:"crop"`
	CropPadding     float64 `yaml:"crop_padding"`
	MarkerPadding   float64 `yaml:"marker_padding"`
	BorderDetection bool    `yaml:"border_detection"`
	RedactColor     string  `yaml:"redact_color"` // hex, e.g. #ffffff
	LocatorSource   string  `yaml:"locator_source"`
	MaxDepth        int     `yaml:"max_depth"`
	Verify          bool    `yaml:"verify"`
	Concurrency     int     `yaml:"concurrency"`
}

// WorkerConfig defines service worker behavior and limits.
type WorkerConfig struct {
	Concurrency        int           `yaml:"concurrency"`
	JobTimeout         time.Duration `yaml:"job_timeout"`
	JobMaxAttempts     int           `yaml:"job_max_attempts"`
	RetryBaseDelay     time.Duration `yaml:"retry_base_delay"`
	RetryJitter        time.Duration `yaml:"retry_jitter"`
	RetryBackoffFactor float64       `yaml:"retry_backoff_factor"`
	BreakerThreshold   int           `yaml:"breaker_threshold"`
	BreakerBaseBackoff time.Duration `yaml:"breaker_base_backoff"`
	BreakerMaxBackoff  time.Duration `yaml:"breaker_max_backoff"`
	TempMaxAge         time.Duration `yaml:"temp_max_age"`
}

// QueueConfig defines queue connectivity and names.
type QueueConfig struct {
	RedisURL     string        `yaml:"redis_url"`
	Stream       string        `yaml:"stream"`
	Group        string        `yaml:"group"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

// StorageConfig selects where remote sources come from and outputs go.
type StorageConfig struct {
	Bucket             string `yaml:"bucket"`
	Region             string `yaml:"region"`
	Endpoint           string `yaml:"endpoint"`
	AccessKey          string `yaml:"access_key"`
	SecretKey          string `yaml:"secret_key"`
	Prefix             string `yaml:"prefix"`
	EncryptionPassword string `yaml:"encryption_password"`
	OutputDir          string `yaml:"output_dir"`
}

// ServerConfig configures the HTTP intake.
type ServerConfig struct {
	Port            string        `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Config is the top-level configuration.
type Config struct {
	Logging  LoggingConfig  `yaml:"logging"`
	Axiom    AxiomConfig    `yaml:"axiom"`
	Renderer RendererConfig `yaml:"renderer"`
	Compile  CompileConfig  `yaml:"compile"`
	Worker   WorkerConfig   `yaml:"worker"`
	Queue    QueueConfig    `yaml:"queue"`
	Storage  StorageConfig  `yaml:"storage"`
	Server   ServerConfig   `yaml:"server"`
}

// FromEnv loads configuration from environment with sensible defaults.
// A .env file in the working directory is read first when present.
func FromEnv() Config {
	_ = godotenv.Load()

	cfg := Config{}

	// Logging defaults
	cfg.Logging = LoggingConfig{
		Level:      getEnv("LOG_LEVEL", "info"),
		Pretty:     parseBool(getEnv("LOG_PRETTY", devDefaultPretty())),
		File:       getEnv("LOG_FILE", ""),
		MaxSizeMB:  parseInt(getEnv("LOG_MAX_SIZE_MB", "100"), 100),
		MaxBackups: parseInt(getEnv("LOG_MAX_BACKUPS", "10"), 10),
		MaxAgeDays: parseInt(getEnv("LOG_MAX_AGE_DAYS", "30"), 30),
		Compress:   parseBool(getEnv("LOG_COMPRESS", "true")),
	}

	// Axiom defaults
	baseDataset := getEnv("AXIOM_DATASET", "dev")
	cfg.Axiom = AxiomConfig{
		Send:          parseBool(getEnv("SEND_LOGS_TO_AXIOM", "0")),
		APIKey:        getEnv("AXIOM_API_KEY", ""),
		OrgID:         getEnv("AXIOM_ORG_ID", ""),
		Dataset:       baseDataset + "_reportcompiler",
		FlushInterval: parseDuration(getEnv("AXIOM_FLUSH_INTERVAL", "10s"), 10*time.Second),
	}

	cfg.Renderer = RendererConfig{
		Binary:        getEnv("SOFFICE_BIN", ""),
		Timeout:       parseDuration(getEnv("RENDER_TIMEOUT", "180s"), 180*time.Second),
		MaxConcurrent: 1,
	}

	cfg.Compile = CompileConfig{
		TempDir:         getEnv("TEMP_DIR", ""),
		KeepTemp:        parseBool(getEnv("KEEP_TEMP", "false")),
		BakeAnnotations: parseBool(getEnv("BAKE_ANNOTATIONS", "true")),
		Crop:            parseBool(getEnv("CROP_OVERLAYS", "true")),
		CropPadding:     parseFloat(getEnv("CROP_PADDING", "6"), 6),
		MarkerPadding:   parseFloat(getEnv("MARKER_PADDING", "10"), 10),
		BorderDetection: parseBool(getEnv("BORDER_DETECTION", "true")),
		RedactColor:     getEnv("REDACT_COLOR", "#ffffff"),
		LocatorSource:   getEnv("LOCATOR_SOURCE", "html"),
		MaxDepth:        parseInt(getEnv("MAX_NESTING_DEPTH", "3"), 3),
		Verify:          parseBool(getEnv("VERIFY_OUTPUT", "true")),
		Concurrency:     parseInt(getEnv("VALIDATE_CONCURRENCY", "4"), 4),
	}

	// Worker defaults
	cfg.Worker = WorkerConfig{
		Concurrency:        parseInt(getEnv("WORKER_CONCURRENCY", "2"), 2),
		JobTimeout:         parseDuration(getEnv("JOB_TIMEOUT", "10m"), 10*time.Minute),
		JobMaxAttempts:     parseInt(getEnv("JOB_MAX_ATTEMPTS", "3"), 3),
		RetryBaseDelay:     parseDuration(getEnv("RETRY_BASE_DELAY", "2s"), 2*time.Second),
		RetryJitter:        parseDuration(getEnv("RETRY_JITTER", "200ms"), 200*time.Millisecond),
		RetryBackoffFactor: parseFloat(getEnv("RETRY_BACKOFF_FACTOR", "2.0"), 2.0),
		BreakerThreshold:   parseInt(getEnv("BREAKER_THRESHOLD", "3"), 3),
		BreakerBaseBackoff: parseDuration(getEnv("BREAKER_BASE_BACKOFF", "30s"), 30*time.Second),
		BreakerMaxBackoff:  parseDuration(getEnv("BREAKER_MAX_BACKOFF", "5m"), 5*time.Minute),
		TempMaxAge:         parseDuration(getEnv("TEMP_MAX_AGE", "2h"), 2*time.Hour),
	}

	// Queue defaults
	cfg.Queue = QueueConfig{
		RedisURL:     getEnv("REDIS_URL", "redis://localhost:6379"),
		Stream:       getEnv("QUEUE_STREAM", "jobs:reports:compile"),
		Group:        getEnv("QUEUE_GROUP", "workers:compile"),
		PollInterval: parseDuration(getEnv("QUEUE_POLL_INTERVAL", "100ms"), 100*time.Millisecond),
	}

	cfg.Storage = StorageConfig{
		Bucket:             getEnv("S3_BUCKET", ""),
		Region:             getEnv("AWS_REGION", ""),
		Endpoint:           getEnv("S3_ENDPOINT", ""),
		AccessKey:          getEnv("AWS_ACCESS_KEY_ID", ""),
		SecretKey:          getEnv("AWS_SECRET_ACCESS_KEY", ""),
		Prefix:             getEnv("S3_PREFIX", "reports"),
		EncryptionPassword: getEnv("ENCRYPTION_PASSWORD", ""),
		OutputDir:          getEnv("RESULT_DIR", "results"),
	}

	cfg.Server = ServerConfig{
		Port:            getEnv("PORT", "8080"),
		ShutdownTimeout: parseDuration(getEnv("SHUTDOWN_TIMEOUT", "30s"), 30*time.Second),
	}

	return cfg
}

// Helpers
func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

func parseFloat(s string, def float64) float64 {
	if s == "" {
		return def
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return def
}

func parseBool(s string) bool {
	v := strings.ToLower(strings.TrimSpace(s))
	return v == "1" || v == "true" || v == "yes" || v == "on"
}

func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	return def
}

func devDefaultPretty() string {
	env := strings.ToLower(os.Getenv("ENVIRONMENT"))
	if env == "dev" || env == "development" || env == "local" {
		return "true"
	}
	return "false"
}
