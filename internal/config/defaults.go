package config

const (
	defaultConfigPath     = "~/.config/rigproc/config.toml"
	defaultProcessRoot    = "~/rigproc/processes"
	defaultLogDir         = "~/.local/share/rigproc/logs"
	defaultHistoryDB      = "~/.local/share/rigproc/history.db"
	defaultLogFormat      = "console"
	defaultLogLevel       = "info"
	defaultDebounceMillis = 500
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			ProcessRoot: defaultProcessRoot,
			LogDir:      defaultLogDir,
			HistoryDB:   defaultHistoryDB,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Run: Run{
			RecordHistory: true,
		},
		Options: Options{
			SplitCommas:   true,
			ParseLiterals: true,
		},
		Watch: Watch{
			DebounceMillis: defaultDebounceMillis,
		},
	}
}
