package config

const (
	defaultDataDir             = "~/.local/share/rudder"
	defaultUploadDir           = "~/.local/share/rudder/uploads"
	defaultLogDir              = "~/.local/share/rudder/logs"
	defaultBackupDir           = "~/.local/share/rudder/backups"
	defaultAPIBind             = "127.0.0.1:5000"
	defaultMoonrakerURL        = "http://192.168.1.10:7125"
	defaultPollInterval        = 15
	defaultStatusTimeout       = 5
	defaultFileTimeout         = 10
	defaultInfoTimeout         = 3
	defaultAutoWindowSeconds   = 180
	defaultUploadWindowSeconds = 600
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:   defaultDataDir,
			UploadDir: defaultUploadDir,
			LogDir:    defaultLogDir,
			BackupDir: defaultBackupDir,
			APIBind:   defaultAPIBind,
		},
		Moonraker: Moonraker{
			URL:           defaultMoonrakerURL,
			PollInterval:  defaultPollInterval,
			StatusTimeout: defaultStatusTimeout,
			FileTimeout:   defaultFileTimeout,
			InfoTimeout:   defaultInfoTimeout,
		},
		Dedup: Dedup{
			AutoWindowSeconds:   defaultAutoWindowSeconds,
			UploadWindowSeconds: defaultUploadWindowSeconds,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
