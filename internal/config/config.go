package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/viper"
)

// Config carries every setting the CLI wires into the store and the
// timeline builder.
type Config struct {
	LogFile    string
	BackupFile string
	DebugLog   string
	KeepDays   int
	Timers     int
	RestTimer  int
	Timeline   TimelineConfig
}

// TimelineConfig holds the default cleanup knobs, all in seconds.
type TimelineConfig struct {
	MinGap    int64
	MinPeriod int64
	Round     int64
}

const (
	defaultLogFile  = "~/.local/share/timekeeper/timekeeper.log"
	defaultKeepDays = 366
	defaultTimers   = 10
)

// template is the annotated config written on first run so users can
// discover the available settings.
const template = `# timekeeper configuration.
#
# Paths may start with ~ to refer to the home directory. Every key can
# also be set through the environment as TIMEKEEPER_<KEY>, with dots
# replaced by underscores (TIMEKEEPER_TIMELINE_ROUND=60).

# Event log location. The file is created on first use.
log_file: ~/.local/share/timekeeper/timekeeper.log

# Mirror every write to a second file. Empty disables the backup.
backup_file: ""

# Write diagnostics here. Empty disables the debug log.
debug_log: ""

# Drop events older than this many days once newer absolute values
# supersede them. Negative keeps everything forever.
keep_days: 366

# Number of numeric timers shown by status.
timers: 10

# Timer that records rest time. It is excluded from timeline reports.
rest_timer: 0

timeline:
  # Merge gaps shorter than this many seconds into the neighbours.
  min_gap: 300
  # Remove periods shorter than this many seconds.
  min_period: 300
  # Round period boundaries to multiples of this many seconds.
  round: 300
`

// Path returns the config file location:
// $XDG_CONFIG_HOME/timekeeper/timekeeper.yml, falling back to
// ~/.config (or AppData/Roaming on Windows).
func Path() (string, error) {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("locate home directory: %w", err)
		}
		if runtime.GOOS == "windows" {
			configHome = filepath.Join(home, "AppData", "Roaming")
		} else {
			configHome = filepath.Join(home, ".config")
		}
	}
	return filepath.Join(configHome, "timekeeper", "timekeeper.yml"), nil
}

// Load reads the config file at Path(), creating it with annotated
// defaults on first run.
func Load() (Config, error) {
	path, err := Path()
	if err != nil {
		return Config{}, err
	}
	return LoadFile(path)
}

// LoadFile reads the given config file. A missing file is not an
// error: the annotated template is written in its place and the
// defaults apply.
func LoadFile(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	setDefaults(v)

	v.SetEnvPrefix("timekeeper")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok || os.IsNotExist(err) {
			if writeErr := writeTemplate(path); writeErr != nil {
				fmt.Fprintf(os.Stderr, "timekeeper: cannot create config file %s: %v\n", path, writeErr)
			}
		} else {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := Config{
		LogFile:    ExpandHome(v.GetString("log_file")),
		BackupFile: ExpandHome(v.GetString("backup_file")),
		DebugLog:   ExpandHome(v.GetString("debug_log")),
		KeepDays:   v.GetInt("keep_days"),
		Timers:     v.GetInt("timers"),
		RestTimer:  v.GetInt("rest_timer"),
		Timeline: TimelineConfig{
			MinGap:    v.GetInt64("timeline.min_gap"),
			MinPeriod: v.GetInt64("timeline.min_period"),
			Round:     v.GetInt64("timeline.round"),
		},
	}
	if cfg.Timers < 1 {
		cfg.Timers = defaultTimers
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_file", defaultLogFile)
	v.SetDefault("backup_file", "")
	v.SetDefault("debug_log", "")
	v.SetDefault("keep_days", defaultKeepDays)
	v.SetDefault("timers", defaultTimers)
	v.SetDefault("rest_timer", 0)
	v.SetDefault("timeline.min_gap", 300)
	v.SetDefault("timeline.min_period", 300)
	v.SetDefault("timeline.round", 300)
}

func writeTemplate(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(template), 0o644); err != nil {
		return fmt.Errorf("write default config: %w", err)
	}
	return nil
}

// ExpandHome resolves a leading ~ against the user's home directory.
// Paths it cannot resolve are returned unchanged.
func ExpandHome(path string) string {
	if path == "" || path[0] != '~' {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if path == "~" {
		return home
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(home, path[2:])
	}
	return path
}
