package config

import "flag"

var (
	flagConfig    = flag.String("config", "", "Path to config file")
	flagDebug     = flag.Bool("debug", false, "Enable debug logging")
	flagRegionDir = flag.String("region-dir", "", "Base directory for region files")
	flagFile      = flag.String("file", "", "Initial region name (without .wrl)")
	flagLogFile   = flag.String("log-file", "", "Write rotated JSON logs to this file")
)

// ParseFlags parses command-line flags. Call this early in main().
func ParseFlags() {
	flag.Parse()
}

// Args returns the non-flag command-line arguments.
func Args() []string {
	return flag.Args()
}

// ConfigPath returns the explicit config path if provided via --config flag.
func ConfigPath() string {
	return *flagConfig
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config) {
	if *flagDebug {
		cfg.Logging.Level = "debug"
	}
	if *flagRegionDir != "" {
		cfg.Layer.RegionDir = *flagRegionDir
	}
	if *flagFile != "" {
		cfg.Layer.FileName = *flagFile
	}
	if *flagLogFile != "" {
		cfg.Logging.LogFile = *flagLogFile
	}
}
