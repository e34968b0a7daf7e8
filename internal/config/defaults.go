package config

const (
	defaultDataDir  = "~/.local/share/savesync"
	defaultLogDir   = "~/.local/share/savesync/logs"
	defaultProvider = "none"
	defaultPingURL  = "https://www.gstatic.com/generate_204"

	defaultMaxQueueSize          = 100
	defaultRetryDelayMS          = 1000
	defaultMaxRetryDelayMS       = 30000
	defaultMaxRetries            = 3
	defaultProcessingConcurrency = 3

	defaultPingIntervalMS    = 30000
	defaultPingTimeoutMS     = 5000
	defaultPingRetryAttempts = 3

	defaultSupabaseTable = "game_saves"
	defaultS3KeyPrefix   = "saves"

	defaultLogFormat = "console"
	defaultLogLevel  = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Provider: Provider{
			Name: defaultProvider,
			Supabase: Supabase{
				Table: defaultSupabaseTable,
			},
			S3: S3{
				KeyPrefix: defaultS3KeyPrefix,
			},
		},
		Features: Features{
			Compression:       true,
			OfflineQueue:      true,
			NetworkMonitoring: true,
			AutoRetry:         true,
		},
		Queue: Queue{
			MaxQueueSize:           defaultMaxQueueSize,
			RetryDelayMS:           defaultRetryDelayMS,
			MaxRetryDelayMS:        defaultMaxRetryDelayMS,
			MaxRetries:             defaultMaxRetries,
			ProcessingConcurrency:  defaultProcessingConcurrency,
			DrainOnlineTransitions: true,
		},
		Network: Network{
			PingURL:        defaultPingURL,
			PingIntervalMS: defaultPingIntervalMS,
			PingTimeoutMS:  defaultPingTimeoutMS,
			RetryAttempts:  defaultPingRetryAttempts,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
