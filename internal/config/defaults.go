package config

const (
	defaultStorageDir     = "~/.local/share/courier/storage"
	defaultLogDir         = "~/.local/share/courier/logs"
	defaultAPIBind        = "127.0.0.1:7475"
	defaultSeedboxTag     = "courier"
	defaultSeedboxTimeout = 30
	defaultNotifyTimeout  = 10
	defaultPullCron       = "0 0 * * * *"
	defaultTransferCron   = "0 0 2 * * *"
	defaultLogFormat      = "console"
	defaultLogLevel       = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StorageDir: defaultStorageDir,
			LogDir:     defaultLogDir,
			APIBind:    defaultAPIBind,
		},
		Seedbox: Seedbox{
			Tag:            defaultSeedboxTag,
			RequestTimeout: defaultSeedboxTimeout,
		},
		Schedule: Schedule{
			PullCron:     defaultPullCron,
			TransferCron: defaultTransferCron,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
