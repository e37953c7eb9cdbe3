package config

import (
	"fmt"
	"os"
	"strings"

	"phraseindex/internal/language"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeYouTube()
	c.normalizeTuning()
	c.normalizeLock()
	c.normalizeIntake()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LockDir) == "" {
		c.Paths.LockDir = defaultLockDir
	}
	if c.Paths.LockDir, err = expandPath(c.Paths.LockDir); err != nil {
		return fmt.Errorf("paths.lock_dir: %w", err)
	}
	c.API.Bind = strings.TrimSpace(c.API.Bind)
	if c.API.Bind == "" {
		c.API.Bind = defaultAPIBind
	}
	return nil
}

func (c *Config) normalizeYouTube() {
	c.YouTube.APIKey = strings.TrimSpace(c.YouTube.APIKey)
	if c.YouTube.APIKey == "" {
		if value, ok := os.LookupEnv("YOUTUBE_API_KEY"); ok {
			c.YouTube.APIKey = strings.TrimSpace(value)
		}
	}
	c.YouTube.APIBaseURL = strings.TrimRight(strings.TrimSpace(c.YouTube.APIBaseURL), "/")
	if c.YouTube.APIBaseURL == "" {
		c.YouTube.APIBaseURL = defaultYouTubeAPIBaseURL
	}
	c.YouTube.WatchBaseURL = strings.TrimRight(strings.TrimSpace(c.YouTube.WatchBaseURL), "/")
	if c.YouTube.WatchBaseURL == "" {
		c.YouTube.WatchBaseURL = defaultYouTubeWatchBaseURL
	}
	c.YouTube.TimedTextBaseURL = strings.TrimRight(strings.TrimSpace(c.YouTube.TimedTextBaseURL), "/")
	if c.YouTube.TimedTextBaseURL == "" {
		c.YouTube.TimedTextBaseURL = defaultYouTubeTimedTextBaseURL
	}
	c.YouTube.UserAgent = strings.TrimSpace(c.YouTube.UserAgent)
	if c.YouTube.UserAgent == "" {
		c.YouTube.UserAgent = defaultUserAgent
	}
	if c.YouTube.RequestTimeout <= 0 {
		c.YouTube.RequestTimeout = defaultRequestTimeout
	}
	if c.YouTube.RequestsPerSecond <= 0 {
		c.YouTube.RequestsPerSecond = defaultRequestsPerSecond
	}
	if c.YouTube.AcquireBudgetSecs < 0 {
		c.YouTube.AcquireBudgetSecs = 0
	}

	langs := language.NormalizeList(c.YouTube.Languages)
	if len(langs) == 0 {
		langs = []string{"en", "en-US"}
	}
	c.YouTube.Languages = langs
}

func (c *Config) normalizeTuning() {
	if c.Merge.LeewayMS <= 0 {
		c.Merge.LeewayMS = defaultMergeLeewayMS
	}
	if c.Merge.OverlapWords <= 0 {
		c.Merge.OverlapWords = defaultMergeOverlapWords
	}
	if c.Dedup.WindowSeconds <= 0 {
		c.Dedup.WindowSeconds = defaultDedupWindowSeconds
	}
	if c.Dedup.SimilarityThreshold <= 0 {
		c.Dedup.SimilarityThreshold = defaultDedupThreshold
	}
	if c.Writer.BatchSize <= 0 {
		c.Writer.BatchSize = defaultWriterBatchSize
	}
	if c.Writer.MaxConsecutiveFailures <= 0 {
		c.Writer.MaxConsecutiveFailures = defaultWriterMaxFailures
	}
	if c.Writer.BudgetSeconds < 0 {
		c.Writer.BudgetSeconds = 0
	}
	if c.Queue.InlineThreshold < 0 {
		c.Queue.InlineThreshold = 0
	}
	if c.Queue.ChunkSize <= 0 {
		c.Queue.ChunkSize = defaultChunkSize
	}
	if c.Queue.ChunksPerInvocation <= 0 {
		c.Queue.ChunksPerInvocation = defaultChunksPerInvocation
	}
	if c.Queue.ChunkPauseMS < 0 {
		c.Queue.ChunkPauseMS = 0
	}
	if c.Queue.RetentionMinutes <= 0 {
		c.Queue.RetentionMinutes = defaultRetentionMinutes
	}
	if c.Queue.DrainBudgetSeconds < 0 {
		c.Queue.DrainBudgetSeconds = 0
	}
	if c.Workflow.PollInterval <= 0 {
		c.Workflow.PollInterval = defaultPollInterval
	}
	if c.Workflow.VideosPerTick <= 0 {
		c.Workflow.VideosPerTick = defaultVideosPerTick
	}
	if c.Workflow.StuckTimeoutMinutes <= 0 {
		c.Workflow.StuckTimeoutMinutes = defaultStuckTimeoutMinutes
	}
	if c.Workflow.PurgeInterval <= 0 {
		c.Workflow.PurgeInterval = defaultPurgeInterval
	}
}

func (c *Config) normalizeLock() {
	c.Lock.Backend = strings.ToLower(strings.TrimSpace(c.Lock.Backend))
	if c.Lock.Backend == "" {
		c.Lock.Backend = defaultLockBackend
	}
	c.Lock.RedisAddr = strings.TrimSpace(c.Lock.RedisAddr)
	if c.Lock.RedisAddr == "" {
		if value, ok := os.LookupEnv("PHRASEINDEX_REDIS_ADDR"); ok {
			c.Lock.RedisAddr = strings.TrimSpace(value)
		}
	}
	if c.Lock.TTLSeconds <= 0 {
		c.Lock.TTLSeconds = defaultLockTTLSeconds
	}
}

func (c *Config) normalizeIntake() {
	c.Intake.AMQPURL = strings.TrimSpace(c.Intake.AMQPURL)
	if c.Intake.AMQPURL == "" {
		if value, ok := os.LookupEnv("PHRASEINDEX_AMQP_URL"); ok {
			c.Intake.AMQPURL = strings.TrimSpace(value)
		}
	}
	c.Intake.Queue = strings.TrimSpace(c.Intake.Queue)
	if c.Intake.Queue == "" {
		c.Intake.Queue = defaultIntakeQueue
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
