package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration shared by the API and
// worker binaries.
type Config struct {
	Environment string           `toml:"environment"` // "development" or "production"
	Server      ServerConfig     `toml:"server"`
	Worker      WorkerConfig     `toml:"worker"`
	Storage     StorageConfig    `toml:"storage"`
	Logging     LoggingConfig    `toml:"logging"`
	Crawler     CrawlerConfig    `toml:"crawler"`
	Gemini      GeminiConfig     `toml:"gemini"`
	Claude      ClaudeConfig     `toml:"claude"`
	LLM         LLMConfig        `toml:"llm"`
	Reconciler  ReconcilerConfig `toml:"reconciler"`
}

type ServerConfig struct {
	Port     int    `toml:"port" validate:"min=1,max=65535"`
	Host     string `toml:"host"`
	AdminKey string `toml:"admin_key"` // X-Admin-Key value for admin endpoints
}

// WorkerConfig controls the queue-draining loop.
type WorkerConfig struct {
	PollInterval      string `toml:"poll_interval"`       // how often the claimer polls when idle (default "5s")
	ConcurrentJobs    int    `toml:"concurrent_jobs"`     // parallel pipeline executions (default 1)
	ShutdownGrace     string `toml:"shutdown_grace"`      // bounded drain deadline on shutdown (default "2m")
	StuckJobThreshold string `toml:"stuck_job_threshold"` // PROCESSING age before the sweeper re-queues (default "30m")
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
	SQLite SQLiteConfig `toml:"sqlite"`
}

// BadgerConfig represents BadgerDB-specific configuration (jobs + artifacts)
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

// SQLiteConfig represents SQLite-specific configuration (publishers)
type SQLiteConfig struct {
	Path          string `toml:"path"`
	CacheSizeMB   int    `toml:"cache_size_mb"`
	BusyTimeoutMS int    `toml:"busy_timeout_ms"`
	WALMode       bool   `toml:"wal_mode"`
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Output []string `toml:"output"` // "stdout", "file"
}

// CrawlerConfig contains HTML fetch and content extraction configuration
type CrawlerConfig struct {
	UserAgent         string        `toml:"user_agent"`
	RequestTimeout    time.Duration `toml:"request_timeout"`     // HTTP request timeout
	MaxBodySize       int           `toml:"max_body_size"`       // Maximum response body size in bytes
	RequestsPerSecond float64       `toml:"requests_per_second"` // Per-host politeness rate
	Burst             int           `toml:"burst"`
}

// GeminiConfig contains Google Gemini API configuration
type GeminiConfig struct {
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`       // default "gemini-3-flash-preview"
	Temperature float32 `toml:"temperature"` // default 0.7
	MaxTokens   int     `toml:"max_tokens"`
	Timeout     string  `toml:"timeout"` // per-call timeout as duration string (default "2m")
}

// ClaudeConfig contains Anthropic Claude API configuration
type ClaudeConfig struct {
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`      // default "claude-haiku-3-5-20241022"
	MaxTokens   int     `toml:"max_tokens"` // default 8192
	Temperature float32 `toml:"temperature"`
	Timeout     string  `toml:"timeout"`
}

// LLMProvider represents the AI provider type
type LLMProvider string

const (
	// LLMProviderGemini uses Google Gemini API
	LLMProviderGemini LLMProvider = "gemini"
	// LLMProviderClaude uses Anthropic Claude API
	LLMProviderClaude LLMProvider = "claude"
)

// LLMConfig contains unified configuration for all AI providers.
// The embedding model and dimension are fixed at boot; mixing embedding
// dimensionalities across artifacts is forbidden.
type LLMConfig struct {
	DefaultProvider    LLMProvider `toml:"default_provider"`    // "gemini" or "claude" (default: "gemini")
	EmbeddingModel     string      `toml:"embedding_model"`     // default "gemini-embedding-001"
	EmbeddingDimension int         `toml:"embedding_dimension"` // default 768
}

// ReconcilerConfig controls the slot-accounting reconciler and the
// stuck-job sweeper in the worker binary.
type ReconcilerConfig struct {
	Enabled  bool   `toml:"enabled"`
	Schedule string `toml:"schedule"` // cron format
}

// NewDefaultConfig creates a configuration with default values.
// Only user-facing settings should be exposed in scribo.toml.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8080,
			Host: "localhost",
		},
		Worker: WorkerConfig{
			PollInterval:      "5s",
			ConcurrentJobs:    1,
			ShutdownGrace:     "2m",
			StuckJobThreshold: "30m",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data/badger",
			},
			SQLite: SQLiteConfig{
				Path:          "./data/scribo.db",
				CacheSizeMB:   64,
				BusyTimeoutMS: 5000,
				WALMode:       true,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout", "file"},
		},
		Crawler: CrawlerConfig{
			UserAgent:         "scribo-crawler/1.0",
			RequestTimeout:    30 * time.Second,
			MaxBodySize:       5 * 1024 * 1024,
			RequestsPerSecond: 2,
			Burst:             4,
		},
		Gemini: GeminiConfig{
			Model:       "gemini-3-flash-preview",
			Temperature: 0.7,
			MaxTokens:   8192,
			Timeout:     "2m",
		},
		Claude: ClaudeConfig{
			Model:       "claude-haiku-3-5-20241022",
			MaxTokens:   8192,
			Temperature: 0.7,
			Timeout:     "2m",
		},
		LLM: LLMConfig{
			DefaultProvider:    LLMProviderGemini,
			EmbeddingModel:     "gemini-embedding-001",
			EmbeddingDimension: 768,
		},
		Reconciler: ReconcilerConfig{
			Enabled:  true,
			Schedule: "0 * * * *", // hourly
		},
	}
}

// LoadFromFiles loads configuration from multiple files with priority:
// defaults -> file1 -> file2 -> ... -> env. Later files override earlier
// files; CLI overrides are applied separately by ApplyFlagOverrides.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks configuration consistency before startup.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	for _, field := range []struct {
		name  string
		value string
	}{
		{"worker.poll_interval", c.Worker.PollInterval},
		{"worker.shutdown_grace", c.Worker.ShutdownGrace},
		{"worker.stuck_job_threshold", c.Worker.StuckJobThreshold},
		{"gemini.timeout", c.Gemini.Timeout},
		{"claude.timeout", c.Claude.Timeout},
	} {
		if _, err := time.ParseDuration(field.value); err != nil {
			return fmt.Errorf("invalid %s %q: %w", field.name, field.value, err)
		}
	}

	if c.Worker.ConcurrentJobs < 1 {
		return fmt.Errorf("worker.concurrent_jobs must be at least 1, got %d", c.Worker.ConcurrentJobs)
	}
	if c.LLM.EmbeddingDimension < 1 {
		return fmt.Errorf("llm.embedding_dimension must be positive, got %d", c.LLM.EmbeddingDimension)
	}

	return nil
}

// PollInterval returns the parsed worker poll interval.
func (c *Config) PollInterval() time.Duration {
	d, err := time.ParseDuration(c.Worker.PollInterval)
	if err != nil {
		return 5 * time.Second
	}
	return d
}

// ShutdownGrace returns the parsed worker drain deadline.
func (c *Config) ShutdownGrace() time.Duration {
	d, err := time.ParseDuration(c.Worker.ShutdownGrace)
	if err != nil {
		return 2 * time.Minute
	}
	return d
}

// StuckJobThreshold returns the parsed sweeper threshold.
func (c *Config) StuckJobThreshold() time.Duration {
	d, err := time.ParseDuration(c.Worker.StuckJobThreshold)
	if err != nil {
		return 30 * time.Minute
	}
	return d
}

// CallTimeout returns the parsed per-call timeout for Gemini API requests.
func (c *GeminiConfig) CallTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil || d <= 0 {
		return 2 * time.Minute
	}
	return d
}

// CallTimeout returns the parsed per-call timeout for Claude API requests.
func (c *ClaudeConfig) CallTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil || d <= 0 {
		return 2 * time.Minute
	}
	return d
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("SCRIBO_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	if port := os.Getenv("SCRIBO_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("SCRIBO_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if adminKey := os.Getenv("SCRIBO_ADMIN_KEY"); adminKey != "" {
		config.Server.AdminKey = adminKey
	}

	if pollInterval := os.Getenv("SCRIBO_WORKER_POLL_INTERVAL"); pollInterval != "" {
		config.Worker.PollInterval = pollInterval
	}
	if concurrency := os.Getenv("SCRIBO_WORKER_CONCURRENT_JOBS"); concurrency != "" {
		if c, err := strconv.Atoi(concurrency); err == nil {
			config.Worker.ConcurrentJobs = c
		}
	}

	if badgerPath := os.Getenv("SCRIBO_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}
	if sqlitePath := os.Getenv("SCRIBO_SQLITE_PATH"); sqlitePath != "" {
		config.Storage.SQLite.Path = sqlitePath
	}

	if level := os.Getenv("SCRIBO_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv("SCRIBO_LOG_OUTPUT"); output != "" {
		outputs := []string{}
		for _, o := range strings.Split(output, ",") {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				outputs = append(outputs, trimmed)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}

	if apiKey := os.Getenv("GEMINI_API_KEY"); apiKey != "" {
		config.Gemini.APIKey = apiKey
	}
	if apiKey := os.Getenv("ANTHROPIC_API_KEY"); apiKey != "" {
		config.Claude.APIKey = apiKey
	}
}

// ApplyFlagOverrides applies command-line flag overrides (highest priority)
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}
