package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir string `toml:"data_dir" env:"SAVESYNC_DATA_DIR"`
	LogDir  string `toml:"log_dir" env:"SAVESYNC_LOG_DIR"`
}

// Firebase contains credentials for the Firebase Realtime Database provider.
type Firebase struct {
	DatabaseURL string `toml:"database_url" env:"SAVESYNC_FIREBASE_DATABASE_URL"`
	APIKey      string `toml:"api_key" env:"SAVESYNC_FIREBASE_API_KEY"`
}

// Supabase contains credentials for the Supabase PostgREST provider.
type Supabase struct {
	URL    string `toml:"url" env:"SAVESYNC_SUPABASE_URL"`
	APIKey string `toml:"api_key" env:"SAVESYNC_SUPABASE_API_KEY"`
	Table  string `toml:"table" env:"SAVESYNC_SUPABASE_TABLE"`
}

// S3 contains credentials for the S3-compatible object storage provider.
type S3 struct {
	Bucket          string `toml:"bucket" env:"SAVESYNC_S3_BUCKET"`
	Region          string `toml:"region" env:"SAVESYNC_S3_REGION"`
	Endpoint        string `toml:"endpoint" env:"SAVESYNC_S3_ENDPOINT"`
	AccessKeyID     string `toml:"access_key_id" env:"SAVESYNC_S3_ACCESS_KEY_ID"`
	SecretAccessKey string `toml:"secret_access_key" env:"SAVESYNC_S3_SECRET_ACCESS_KEY"`
	KeyPrefix       string `toml:"key_prefix" env:"SAVESYNC_S3_KEY_PREFIX"`
}

// Provider selects and configures the cloud storage backend.
type Provider struct {
	Name     string   `toml:"name" env:"SAVESYNC_PROVIDER"`
	Enabled  bool     `toml:"enabled" env:"SAVESYNC_PROVIDER_ENABLED"`
	Firebase Firebase `toml:"firebase"`
	Supabase Supabase `toml:"supabase"`
	S3       S3       `toml:"s3"`
}

// Features toggles optional subsystems. A disabled feature leaves its
// service reference unset; it is never stubbed.
type Features struct {
	Compression       bool `toml:"compression" env:"SAVESYNC_FEATURE_COMPRESSION"`
	OfflineQueue      bool `toml:"offline_queue" env:"SAVESYNC_FEATURE_OFFLINE_QUEUE"`
	NetworkMonitoring bool `toml:"network_monitoring" env:"SAVESYNC_FEATURE_NETWORK_MONITORING"`
	AutoRetry         bool `toml:"auto_retry" env:"SAVESYNC_FEATURE_AUTO_RETRY"`
	Analytics         bool `toml:"analytics" env:"SAVESYNC_FEATURE_ANALYTICS"`
	Encryption        bool `toml:"encryption" env:"SAVESYNC_FEATURE_ENCRYPTION"`
}

// Queue contains operation queue tunables. Delay values are milliseconds.
type Queue struct {
	MaxQueueSize           int  `toml:"max_queue_size" env:"SAVESYNC_MAX_QUEUE_SIZE"`
	RetryDelayMS           int  `toml:"retry_delay_ms" env:"SAVESYNC_RETRY_DELAY_MS"`
	MaxRetryDelayMS        int  `toml:"max_retry_delay_ms" env:"SAVESYNC_MAX_RETRY_DELAY_MS"`
	MaxRetries             int  `toml:"max_retries" env:"SAVESYNC_MAX_RETRIES"`
	ProcessingConcurrency  int  `toml:"processing_concurrency" env:"SAVESYNC_PROCESSING_CONCURRENCY"`
	DrainOnlineTransitions bool `toml:"drain_online_transitions" env:"SAVESYNC_DRAIN_ONLINE_TRANSITIONS"`
}

// Network contains network monitor tunables. Durations are milliseconds.
type Network struct {
	PingURL        string `toml:"ping_url" env:"SAVESYNC_PING_URL"`
	PingIntervalMS int    `toml:"ping_interval_ms" env:"SAVESYNC_PING_INTERVAL_MS"`
	PingTimeoutMS  int    `toml:"ping_timeout_ms" env:"SAVESYNC_PING_TIMEOUT_MS"`
	RetryAttempts  int    `toml:"retry_attempts" env:"SAVESYNC_PING_RETRY_ATTEMPTS"`
	SaveData       bool   `toml:"save_data" env:"SAVESYNC_SAVE_DATA"`
}

// Logging contains log output configuration.
type Logging struct {
	Format string `toml:"format" env:"SAVESYNC_LOG_FORMAT"`
	Level  string `toml:"level" env:"SAVESYNC_LOG_LEVEL"`
}

// Config encapsulates all configuration values for savesync.
type Config struct {
	Paths    Paths    `toml:"paths"`
	Provider Provider `toml:"provider"`
	Features Features `toml:"features"`
	Queue    Queue    `toml:"queue"`
	Network  Network  `toml:"network"`
	Logging  Logging  `toml:"logging"`
}

// DefaultConfigPath returns the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/savesync/config.toml")
}

// Load locates and parses a configuration file, applies the environment
// overlay, then normalizes and validates the result. The boolean reports
// whether a config file was found.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := applyEnvOverlay(&cfg); err != nil {
		return nil, "", false, err
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("savesync.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories the daemon needs at runtime.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// QueueDatabasePath returns the SQLite path backing the durable queue.
func (c *Config) QueueDatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "queue.db")
}

// LockPath returns the single-instance lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "savesync.lock")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
