package config

const (
	defaultDataDir                 = "~/.local/share/phraseindex"
	defaultLogDir                  = "~/.local/share/phraseindex/logs"
	defaultLockDir                 = "~/.local/share/phraseindex/locks"
	defaultYouTubeAPIBaseURL       = "https://www.googleapis.com/youtube/v3"
	defaultYouTubeWatchBaseURL     = "https://www.youtube.com"
	defaultYouTubeTimedTextBaseURL = "https://www.youtube.com"
	defaultUserAgent               = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	defaultRequestTimeout          = 20
	defaultRequestsPerSecond       = 2.0
	defaultAcquireBudgetSeconds    = 60
	defaultMergeLeewayMS           = 2000
	defaultMergeOverlapWords       = 3
	defaultDedupWindowSeconds      = 2.0
	defaultDedupThreshold          = 0.9
	defaultWriterBatchSize         = 25
	defaultWriterMaxFailures       = 2
	defaultWriterBudgetSeconds     = 5
	defaultInlineThreshold         = 50
	defaultChunkSize               = 25
	defaultChunksPerInvocation     = 3
	defaultChunkPauseMS            = 250
	defaultRetentionMinutes        = 60
	defaultDrainBudgetSeconds      = 10
	defaultPollInterval            = 5
	defaultVideosPerTick           = 10
	defaultStuckTimeoutMinutes     = 10
	defaultPurgeInterval           = 300
	defaultLockBackend             = "file"
	defaultLockTTLSeconds          = 900
	defaultIntakeQueue             = "phraseindex.videos"
	defaultAPIBind                 = "127.0.0.1:7490"
	defaultLogFormat               = "console"
	defaultLogLevel                = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			LockDir: defaultLockDir,
		},
		YouTube: YouTube{
			APIBaseURL:        defaultYouTubeAPIBaseURL,
			WatchBaseURL:      defaultYouTubeWatchBaseURL,
			TimedTextBaseURL:  defaultYouTubeTimedTextBaseURL,
			Languages:         []string{"en", "en-US"},
			UserAgent:         defaultUserAgent,
			RequestTimeout:    defaultRequestTimeout,
			RequestsPerSecond: defaultRequestsPerSecond,
			InnertubeEnabled:  true,
			AcquireBudgetSecs: defaultAcquireBudgetSeconds,
		},
		Merge: Merge{
			LeewayMS:     defaultMergeLeewayMS,
			OverlapWords: defaultMergeOverlapWords,
		},
		Dedup: Dedup{
			WindowSeconds:       defaultDedupWindowSeconds,
			SimilarityThreshold: defaultDedupThreshold,
		},
		Writer: Writer{
			BatchSize:              defaultWriterBatchSize,
			MaxConsecutiveFailures: defaultWriterMaxFailures,
			BudgetSeconds:          defaultWriterBudgetSeconds,
		},
		Queue: Queue{
			InlineThreshold:     defaultInlineThreshold,
			ChunkSize:           defaultChunkSize,
			ChunksPerInvocation: defaultChunksPerInvocation,
			ChunkPauseMS:        defaultChunkPauseMS,
			RetentionMinutes:    defaultRetentionMinutes,
			DrainBudgetSeconds:  defaultDrainBudgetSeconds,
		},
		Workflow: Workflow{
			PollInterval:        defaultPollInterval,
			VideosPerTick:       defaultVideosPerTick,
			StuckTimeoutMinutes: defaultStuckTimeoutMinutes,
			PurgeInterval:       defaultPurgeInterval,
		},
		Lock: Lock{
			Backend:    defaultLockBackend,
			TTLSeconds: defaultLockTTLSeconds,
		},
		Intake: Intake{
			Queue: defaultIntakeQueue,
		},
		API: API{
			Enabled: true,
			Bind:    defaultAPIBind,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
