package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
	LockDir string `toml:"lock_dir"`
}

// YouTube contains caption source settings.
type YouTube struct {
	APIKey            string   `toml:"api_key"`
	APIBaseURL        string   `toml:"api_base_url"`
	WatchBaseURL      string   `toml:"watch_base_url"`
	TimedTextBaseURL  string   `toml:"timedtext_base_url"`
	Languages         []string `toml:"languages"`
	UserAgent         string   `toml:"user_agent"`
	RequestTimeout    int      `toml:"request_timeout"`
	RequestsPerSecond float64  `toml:"requests_per_second"`
	InnertubeEnabled  bool     `toml:"innertube_enabled"`
	AcquireBudgetSecs int      `toml:"acquire_budget_seconds"`
}

// Merge contains fragment merge tuning.
type Merge struct {
	LeewayMS     int `toml:"leeway_ms"`
	OverlapWords int `toml:"overlap_words"`
}

// Dedup contains phrase deduplication tuning.
type Dedup struct {
	WindowSeconds       float64 `toml:"window_seconds"`
	SimilarityThreshold float64 `toml:"similarity_threshold"`
}

// Writer contains phrase insertion settings.
type Writer struct {
	BatchSize              int `toml:"batch_size"`
	MaxConsecutiveFailures int `toml:"max_consecutive_failures"`
	BudgetSeconds          int `toml:"budget_seconds"`
}

// Queue contains chunk table settings.
type Queue struct {
	InlineThreshold     int `toml:"inline_threshold"`
	ChunkSize           int `toml:"chunk_size"`
	ChunksPerInvocation int `toml:"chunks_per_invocation"`
	ChunkPauseMS        int `toml:"chunk_pause_ms"`
	RetentionMinutes    int `toml:"retention_minutes"`
	DrainBudgetSeconds  int `toml:"drain_budget_seconds"`
}

// Workflow contains daemon timing settings.
type Workflow struct {
	PollInterval        int `toml:"poll_interval"`
	VideosPerTick       int `toml:"videos_per_tick"`
	StuckTimeoutMinutes int `toml:"stuck_timeout_minutes"`
	PurgeInterval       int `toml:"purge_interval"`
}

// Lock contains per-video run lock settings.
type Lock struct {
	Backend    string `toml:"backend"`
	RedisAddr  string `toml:"redis_addr"`
	RedisDB    int    `toml:"redis_db"`
	TTLSeconds int    `toml:"ttl_seconds"`
}

// Intake contains discovery message consumer settings.
type Intake struct {
	Enabled bool   `toml:"enabled"`
	AMQPURL string `toml:"amqp_url"`
	Queue   string `toml:"queue"`
}

// API contains the admin HTTP server settings.
type API struct {
	Enabled bool   `toml:"enabled"`
	Bind    string `toml:"bind"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for phraseindex.
//
// Configuration sections by subsystem:
//   - Paths: database, log and lock directories
//   - YouTube: caption source endpoints, credentials and pacing
//   - Merge, Dedup: text reduction tuning
//   - Writer, Queue: insertion batching and chunk draining
//   - Workflow: daemon polling, stuck-run recovery and retention sweeps
//   - Lock: per-video single-writer lock backend
//   - Intake: RabbitMQ discovery consumer
//   - API: admin HTTP surface
//   - Logging: log format and level
type Config struct {
	Paths    Paths    `toml:"paths"`
	YouTube  YouTube  `toml:"youtube"`
	Merge    Merge    `toml:"merge"`
	Dedup    Dedup    `toml:"dedup"`
	Writer   Writer   `toml:"writer"`
	Queue    Queue    `toml:"queue"`
	Workflow Workflow `toml:"workflow"`
	Lock     Lock     `toml:"lock"`
	Intake   Intake   `toml:"intake"`
	API      API      `toml:"api"`
	Logging  Logging  `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/phraseindex/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
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

	projectPath, err := filepath.Abs("phraseindex.toml")
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

// EnsureDirectories creates the data, log and lock directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir, c.Paths.LockDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the location of the SQLite database.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "phraseindex.db")
}

// DaemonLockPath returns the flock path guarding a single workflow manager per data dir.
func (c *Config) DaemonLockPath() string {
	return filepath.Join(c.Paths.LockDir, "daemon.lock")
}

// MergeLeeway returns the merge leeway as a duration.
func (c *Config) MergeLeeway() time.Duration {
	return time.Duration(c.Merge.LeewayMS) * time.Millisecond
}

// WriterBudget returns the per-write wall-clock budget. Zero means unlimited.
func (c *Config) WriterBudget() time.Duration {
	return time.Duration(c.Writer.BudgetSeconds) * time.Second
}

// DrainBudget returns the wall-clock budget for one drain invocation.
func (c *Config) DrainBudget() time.Duration {
	return time.Duration(c.Queue.DrainBudgetSeconds) * time.Second
}

// ChunkPause returns the pause between consecutive chunk writes.
func (c *Config) ChunkPause() time.Duration {
	return time.Duration(c.Queue.ChunkPauseMS) * time.Millisecond
}

// Retention returns how long terminal chunks are kept.
func (c *Config) Retention() time.Duration {
	return time.Duration(c.Queue.RetentionMinutes) * time.Minute
}

// RequestTimeout returns the outbound HTTP timeout for caption requests.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.YouTube.RequestTimeout) * time.Second
}

// AcquireBudget returns the wall-clock budget for caption acquisition.
func (c *Config) AcquireBudget() time.Duration {
	return time.Duration(c.YouTube.AcquireBudgetSecs) * time.Second
}

// StuckTimeout returns how long a video may stay in processing before recovery resets it.
func (c *Config) StuckTimeout() time.Duration {
	return time.Duration(c.Workflow.StuckTimeoutMinutes) * time.Minute
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
