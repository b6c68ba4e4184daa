package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/anne-gert/TimeKeeper/internal/config"
	"github.com/anne-gert/TimeKeeper/internal/debuglog"
	"github.com/anne-gert/TimeKeeper/internal/event"
	"github.com/anne-gert/TimeKeeper/internal/storage"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "timekeeper",
	Short: "Track time on numbered timers backed by a replayable event log",
}

var configFile string

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default: <config dir>/timekeeper/timekeeper.yml)")

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newPauseCmd())
	rootCmd.AddCommand(newSetCmd())
	rootCmd.AddCommand(newAddCmd())
	rootCmd.AddCommand(newTransferCmd())
	rootCmd.AddCommand(newBatchCmd())
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newGroupsCmd())
	rootCmd.AddCommand(newExtraCmd())
	rootCmd.AddCommand(newLogCmd())
	rootCmd.AddCommand(newTimelineCmd())
	rootCmd.AddCommand(newReportCmd())
	rootCmd.AddCommand(newExportCmd())
	rootCmd.AddCommand(newConfigCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "timekeeper: %v\n", err)
		os.Exit(1)
	}
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := configFile
			if path == "" {
				p, err := config.Path()
				if err != nil {
					return err
				}
				path = p
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "config_file\t%s\n", path)
			fmt.Fprintf(out, "log_file\t%s\n", cfg.LogFile)
			fmt.Fprintf(out, "backup_file\t%s\n", cfg.BackupFile)
			fmt.Fprintf(out, "debug_log\t%s\n", cfg.DebugLog)
			fmt.Fprintf(out, "keep_days\t%d\n", cfg.KeepDays)
			fmt.Fprintf(out, "timers\t%d\n", cfg.Timers)
			fmt.Fprintf(out, "rest_timer\t%d\n", cfg.RestTimer)
			fmt.Fprintf(out, "timeline.min_gap\t%d\n", cfg.Timeline.MinGap)
			fmt.Fprintf(out, "timeline.min_period\t%d\n", cfg.Timeline.MinPeriod)
			fmt.Fprintf(out, "timeline.round\t%d\n", cfg.Timeline.Round)
			return nil
		},
	}
}

// loadConfig reads the selected config file, or the default one.
func loadConfig() (config.Config, error) {
	if configFile != "" {
		return config.LoadFile(configFile)
	}
	return config.Load()
}

// openStore loads the configuration and opens the event log store. The
// caller must Close the returned store to flush the backup mirror.
func openStore() (*storage.Store, config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, config.Config{}, err
	}
	debuglog.Init(cfg.DebugLog)

	if dir := filepath.Dir(cfg.LogFile); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, cfg, fmt.Errorf("create log directory: %w", err)
		}
	}

	st, err := storage.Open(storage.Options{
		LogPath:    cfg.LogFile,
		BackupPath: cfg.BackupFile,
		KeepDays:   cfg.KeepDays,
	})
	if err != nil {
		return nil, cfg, err
	}
	return st, cfg, nil
}

// atLayouts are the local wall clock forms parseAt accepts beside RFC3339
// and bare Unix seconds.
var atLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// clockLayouts are the time-of-day forms, resolved against today.
var clockLayouts = []string{
	"15:04:05",
	"15:04",
}

// parseAt turns a user supplied time into Unix seconds. An empty string
// yields zero, which the store treats as "now".
func parseAt(arg string) (int64, error) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return 0, nil
	}
	if n, err := strconv.ParseInt(arg, 10, 64); err == nil {
		return n, nil
	}
	if t, err := time.Parse(time.RFC3339, arg); err == nil {
		return t.Unix(), nil
	}
	for _, layout := range atLayouts {
		if t, err := time.ParseInLocation(layout, arg, time.Local); err == nil {
			return t.Unix(), nil
		}
	}
	for _, layout := range clockLayouts {
		if t, err := time.ParseInLocation(layout, arg, time.Local); err == nil {
			now := time.Now()
			t = time.Date(now.Year(), now.Month(), now.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.Local)
			return t.Unix(), nil
		}
	}
	return 0, fmt.Errorf("invalid time %q", arg)
}

// parseSeconds reads an amount of time given as bare seconds or as
// h:mm[:ss], with an optional leading minus sign.
func parseSeconds(arg string) (int64, error) {
	arg = strings.TrimSpace(arg)
	if n, err := strconv.ParseInt(arg, 10, 64); err == nil {
		return n, nil
	}

	s := arg
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	parts := strings.Split(s, ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, fmt.Errorf("invalid duration %q (expected seconds or h:mm[:ss])", arg)
	}
	var total int64
	for _, part := range parts {
		n, err := strconv.ParseUint(part, 10, 32)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q (expected seconds or h:mm[:ss])", arg)
		}
		total = total*60 + int64(n)
	}
	if len(parts) == 2 {
		total *= 60
	}
	if neg {
		total = -total
	}
	return total, nil
}

// parseTimer validates a numeric timer argument.
func parseTimer(arg string) (event.TimerKey, error) {
	key := event.ParseKey(strings.TrimSpace(arg))
	if !key.IsTimer() {
		return "", fmt.Errorf("invalid timer %q (expected a number)", arg)
	}
	return key, nil
}

// parseTimerList splits a comma separated list of timer numbers.
func parseTimerList(arg string) ([]event.TimerKey, error) {
	var keys []event.TimerKey
	for _, part := range strings.Split(arg, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		timer, err := parseTimer(part)
		if err != nil {
			return nil, err
		}
		keys = append(keys, timer)
	}
	return keys, nil
}
