package testsupport

import (
	"path/filepath"
	"testing"

	"phraseindex/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.LockDir = filepath.Join(base, "locks")
	cfgVal.YouTube.APIKey = "test"
	cfgVal.YouTube.InnertubeEnabled = false
	cfgVal.YouTube.RequestsPerSecond = 0
	cfgVal.Queue.ChunkPauseMS = 0
	cfgVal.API.Bind = "127.0.0.1:0"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithCaptionServer points every caption endpoint at a test server.
func WithCaptionServer(baseURL string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.YouTube.APIBaseURL = baseURL
		b.cfg.YouTube.WatchBaseURL = baseURL
		b.cfg.YouTube.TimedTextBaseURL = baseURL
	}
}

// WithAPIKey sets the official caption API key on the test config.
func WithAPIKey(key string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.YouTube.APIKey = key
	}
}

// WithQueue overrides chunking thresholds on the test config.
func WithQueue(inlineThreshold, chunkSize, chunksPerInvocation int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Queue.InlineThreshold = inlineThreshold
		b.cfg.Queue.ChunkSize = chunkSize
		b.cfg.Queue.ChunksPerInvocation = chunksPerInvocation
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
