package config

const (
	defaultDataDir        = "~/.local/share/fabline/data"
	defaultLogDir         = "~/.local/share/fabline/logs"
	defaultAPIBind        = "127.0.0.1:7519"
	defaultRestrictedRole = "design"
	defaultLogFormat      = "console"
	defaultLogLevel       = "info"
	defaultNotifyTimeout  = 10
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Workflow: Workflow{
			RestrictedRole: defaultRestrictedRole,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			Issues:         true,
			Steps:          false,
			Shipping:       true,
			Stock:          true,
			Errors:         true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
