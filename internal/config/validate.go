package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateTuning(); err != nil {
		return err
	}
	if err := c.validateLock(); err != nil {
		return err
	}
	if err := c.validateIntake(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		return errors.New("paths.data_dir must be set")
	}
	if strings.TrimSpace(c.Paths.LockDir) == "" {
		return errors.New("paths.lock_dir must be set")
	}
	return nil
}

func (c *Config) validateTuning() error {
	if c.Dedup.SimilarityThreshold > 1 {
		return errors.New("dedup.similarity_threshold must be between 0 and 1")
	}
	if c.Merge.OverlapWords > 10 {
		return fmt.Errorf("merge.overlap_words must be at most 10 (got %d)", c.Merge.OverlapWords)
	}
	if c.Writer.BatchSize > 500 {
		return fmt.Errorf("writer.batch_size must be at most 500 (got %d)", c.Writer.BatchSize)
	}
	if c.Queue.ChunkSize > 1000 {
		return fmt.Errorf("queue.chunk_size must be at most 1000 (got %d)", c.Queue.ChunkSize)
	}
	return nil
}

func (c *Config) validateLock() error {
	switch c.Lock.Backend {
	case "file":
		return nil
	case "redis":
		if c.Lock.RedisAddr == "" {
			return errors.New("lock.redis_addr must be set when lock.backend is redis (or set PHRASEINDEX_REDIS_ADDR)")
		}
		return nil
	default:
		return fmt.Errorf("lock.backend must be file or redis (got %q)", c.Lock.Backend)
	}
}

func (c *Config) validateIntake() error {
	if !c.Intake.Enabled {
		return nil
	}
	if c.Intake.AMQPURL == "" {
		return errors.New("intake.amqp_url must be set when intake.enabled is true (or set PHRASEINDEX_AMQP_URL)")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
		return nil
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error (got %q)", c.Logging.Level)
	}
}
