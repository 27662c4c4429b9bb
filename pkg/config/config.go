package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server  ServerConfig `yaml:"server"`
	Limits  LimitsConfig `yaml:"limits"`
	Retry   RetryConfig  `yaml:"retry"`
	Logging LogConfig    `yaml:"logging"`
}

// ServerConfig contains settings for the listener and connection handling
type ServerConfig struct {
	Host          string `yaml:"host"`
	Port          int    `yaml:"port"`
	Root          string `yaml:"root"`
	Index         string `yaml:"index"`
	MaxConns      int    `yaml:"max_conns"`
	ConnTimeout   int    `yaml:"conn_timeout_ms"` // in milliseconds, 0 disables the deadline
	ChunkSize     int    `yaml:"chunk_size"`
	ReadBuffer    int    `yaml:"read_buffer"`
	AccessLogPath string `yaml:"access_log_path"`
}

// LimitsConfig bounds the size of each request-line token and of the resolved path
type LimitsConfig struct {
	MaxMethod  int `yaml:"max_method"`
	MaxTarget  int `yaml:"max_target"`
	MaxVersion int `yaml:"max_version"`
	MaxPath    int `yaml:"max_path"`
}

// RetryConfig controls how transient accept errors are retried
type RetryConfig struct {
	Enabled         bool     `yaml:"enabled"`
	MaxRetries      int      `yaml:"max_retries"`
	InitialDelay    int      `yaml:"initial_delay"` // in milliseconds
	MaxDelay        int      `yaml:"max_delay"`     // in milliseconds
	BackoffFactor   float64  `yaml:"backoff_factor"`
	JitterFactor    float64  `yaml:"jitter_factor"`
	RetryableErrors []string `yaml:"retryable_errors"`
}

// LogConfig contains settings for logging
type LogConfig struct {
	LogToFile   bool   `yaml:"log_to_file"`
	LogFilePath string `yaml:"log_file_path"`
	MaxSize     int    `yaml:"max_size"`    // maximum size in megabytes
	MaxBackups  int    `yaml:"max_backups"` // maximum number of old log files to retain
	MaxAge      int    `yaml:"max_age"`     // maximum number of days to retain old log files
	Compress    bool   `yaml:"compress"`    // compress determines if the rotated log files should be compressed
}

// LoadDefault returns a configuration with default values
func LoadDefault() *Config {
	return &Config{
		Server: ServerConfig{
			Host:        "",
			Port:        8080,
			Root:        ".",
			Index:       "index.html",
			MaxConns:    1,
			ConnTimeout: 30000,
			ChunkSize:   8192,
			ReadBuffer:  8192,
		},
		Limits: LimitsConfig{
			MaxMethod:  15,
			MaxTarget:  1023,
			MaxVersion: 31,
			MaxPath:    1023,
		},
		Retry: RetryConfig{
			Enabled:       true,
			MaxRetries:    5,
			InitialDelay:  5,
			MaxDelay:      1000,
			BackoffFactor: 2.0,
			JitterFactor:  0.1,
			RetryableErrors: []string{
				"too many open files",
				"resource temporarily unavailable",
				"software caused connection abort",
				"connection reset",
				"i/o timeout",
			},
		},
		Logging: LogConfig{
			LogToFile:   false,
			LogFilePath: "mini-http.log",
			MaxSize:     10,
			MaxBackups:  3,
			MaxAge:      28,
			Compress:    true,
		},
	}
}

// Default returns a configuration with default values
// This is an alias for LoadDefault for backward compatibility
func Default() *Config {
	return LoadDefault()
}

// Load reads configuration from a file and merges it with default values
func Load(configPath string) (*Config, error) {
	cfg := LoadDefault()

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var fileCfg Config
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Settings whose zero value is meaningful are merged only when present
	var explicit explicitValues
	if err := yaml.Unmarshal(data, &explicit); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Merge server configuration
	if fileCfg.Server.Host != "" {
		cfg.Server.Host = fileCfg.Server.Host
	}
	if fileCfg.Server.Port > 0 {
		cfg.Server.Port = fileCfg.Server.Port
	}
	if fileCfg.Server.Root != "" {
		cfg.Server.Root = fileCfg.Server.Root
	}
	if fileCfg.Server.Index != "" {
		cfg.Server.Index = fileCfg.Server.Index
	}
	if fileCfg.Server.MaxConns > 0 {
		cfg.Server.MaxConns = fileCfg.Server.MaxConns
	}
	if explicit.Server.ConnTimeout != nil {
		cfg.Server.ConnTimeout = *explicit.Server.ConnTimeout
	}
	if fileCfg.Server.ChunkSize > 0 {
		cfg.Server.ChunkSize = fileCfg.Server.ChunkSize
	}
	if fileCfg.Server.ReadBuffer > 0 {
		cfg.Server.ReadBuffer = fileCfg.Server.ReadBuffer
	}
	if fileCfg.Server.AccessLogPath != "" {
		cfg.Server.AccessLogPath = fileCfg.Server.AccessLogPath
	}

	// Merge limits
	if fileCfg.Limits.MaxMethod > 0 {
		cfg.Limits.MaxMethod = fileCfg.Limits.MaxMethod
	}
	if fileCfg.Limits.MaxTarget > 0 {
		cfg.Limits.MaxTarget = fileCfg.Limits.MaxTarget
	}
	if fileCfg.Limits.MaxVersion > 0 {
		cfg.Limits.MaxVersion = fileCfg.Limits.MaxVersion
	}
	if fileCfg.Limits.MaxPath > 0 {
		cfg.Limits.MaxPath = fileCfg.Limits.MaxPath
	}

	// Merge retry configuration
	if explicit.Retry.Enabled != nil {
		cfg.Retry.Enabled = *explicit.Retry.Enabled
	}
	if fileCfg.Retry.MaxRetries > 0 {
		cfg.Retry.MaxRetries = fileCfg.Retry.MaxRetries
	}
	if fileCfg.Retry.InitialDelay > 0 {
		cfg.Retry.InitialDelay = fileCfg.Retry.InitialDelay
	}
	if fileCfg.Retry.MaxDelay > 0 {
		cfg.Retry.MaxDelay = fileCfg.Retry.MaxDelay
	}
	if fileCfg.Retry.BackoffFactor > 0 {
		cfg.Retry.BackoffFactor = fileCfg.Retry.BackoffFactor
	}
	if fileCfg.Retry.JitterFactor > 0 {
		cfg.Retry.JitterFactor = fileCfg.Retry.JitterFactor
	}
	if len(fileCfg.Retry.RetryableErrors) > 0 {
		cfg.Retry.RetryableErrors = fileCfg.Retry.RetryableErrors
	}

	// Merge logging configuration
	if fileCfg.Logging.LogToFile {
		cfg.Logging.LogToFile = fileCfg.Logging.LogToFile
	}
	if fileCfg.Logging.LogFilePath != "" {
		cfg.Logging.LogFilePath = fileCfg.Logging.LogFilePath
	}
	if fileCfg.Logging.MaxSize > 0 {
		cfg.Logging.MaxSize = fileCfg.Logging.MaxSize
	}
	if fileCfg.Logging.MaxBackups > 0 {
		cfg.Logging.MaxBackups = fileCfg.Logging.MaxBackups
	}
	if fileCfg.Logging.MaxAge > 0 {
		cfg.Logging.MaxAge = fileCfg.Logging.MaxAge
	}
	if explicit.Logging.Compress != nil {
		cfg.Logging.Compress = *explicit.Logging.Compress
	}

	return cfg, nil
}

// explicitValues records which zero-meaningful settings a file sets
type explicitValues struct {
	Server struct {
		ConnTimeout *int `yaml:"conn_timeout_ms"`
	} `yaml:"server"`
	Retry struct {
		Enabled *bool `yaml:"enabled"`
	} `yaml:"retry"`
	Logging struct {
		Compress *bool `yaml:"compress"`
	} `yaml:"logging"`
}

// LoadOrDefault attempts to load configuration from a file
// If the file doesn't exist or can't be parsed, it returns default configuration
func LoadOrDefault(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Failed to load config from %s: %v\n", configPath, err)
		fmt.Fprintf(os.Stderr, "Using default configuration\n")
		cfg = LoadDefault()
	}
	return cfg
}

// Validate checks the configuration for values the server cannot run with
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	if c.Server.Root == "" {
		return errors.New("served root must not be empty")
	}
	if c.Server.Index == "" {
		return errors.New("index file name must not be empty")
	}
	if c.Server.MaxConns < 1 {
		return fmt.Errorf("max_conns must be at least 1, got %d", c.Server.MaxConns)
	}
	if c.Server.ConnTimeout < 0 {
		return fmt.Errorf("conn_timeout_ms must not be negative, got %d", c.Server.ConnTimeout)
	}
	if c.Server.ChunkSize <= 0 || c.Server.ReadBuffer <= 0 {
		return errors.New("chunk_size and read_buffer must be positive")
	}
	if c.Limits.MaxMethod <= 0 || c.Limits.MaxTarget <= 0 || c.Limits.MaxVersion <= 0 || c.Limits.MaxPath <= 0 {
		return errors.New("all limits must be positive")
	}
	return nil
}

// Address returns the listen address for the server
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// Timeout returns the per-connection deadline, or 0 when disabled
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Server.ConnTimeout) * time.Millisecond
}
