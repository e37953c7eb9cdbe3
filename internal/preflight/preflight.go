package preflight

import (
	"context"
	"strings"

	"phraseindex/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		CheckDirectoryAccess("Lock directory", cfg.Paths.LockDir),
	}

	if strings.TrimSpace(cfg.YouTube.APIKey) != "" {
		results = append(results, CheckCaptionAPI(ctx, cfg.YouTube.APIBaseURL, cfg.YouTube.APIKey))
	}
	if cfg.Lock.Backend == "redis" {
		results = append(results, CheckRedis(ctx, cfg.Lock.RedisAddr, cfg.Lock.RedisDB))
	}
	if cfg.Intake.Enabled {
		results = append(results, CheckAMQP(ctx, cfg.Intake.AMQPURL))
	}
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}
