package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFileWritesTemplateOnFirstRun(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "timekeeper.yml")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("template was not written: %v", err)
	}
	if cfg.KeepDays != 366 || cfg.Timers != 10 || cfg.RestTimer != 0 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.Timeline.MinGap != 300 || cfg.Timeline.MinPeriod != 300 || cfg.Timeline.Round != 300 {
		t.Fatalf("unexpected timeline defaults: %+v", cfg.Timeline)
	}
	if cfg.BackupFile != "" || cfg.DebugLog != "" {
		t.Fatalf("backup/debug should default to disabled: %+v", cfg)
	}
}

func TestTemplateParsesBackToDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "timekeeper.yml")

	first, err := LoadFile(path)
	if err != nil {
		t.Fatalf("first LoadFile() error = %v", err)
	}
	second, err := LoadFile(path)
	if err != nil {
		t.Fatalf("second LoadFile() error = %v", err)
	}
	if first != second {
		t.Fatalf("template does not round-trip: %+v vs %+v", first, second)
	}
}

func TestLoadFileReadsValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "timekeeper.yml")
	content := `log_file: /var/tmp/tk.log
backup_file: /var/tmp/tk.bak
keep_days: -1
timers: 4
rest_timer: 3
timeline:
  min_gap: 60
  min_period: 120
  round: 900
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if cfg.LogFile != "/var/tmp/tk.log" || cfg.BackupFile != "/var/tmp/tk.bak" {
		t.Fatalf("paths not read: %+v", cfg)
	}
	if cfg.KeepDays != -1 || cfg.Timers != 4 || cfg.RestTimer != 3 {
		t.Fatalf("numbers not read: %+v", cfg)
	}
	if cfg.Timeline.MinGap != 60 || cfg.Timeline.MinPeriod != 120 || cfg.Timeline.Round != 900 {
		t.Fatalf("timeline knobs not read: %+v", cfg.Timeline)
	}
}

func TestEnvironmentOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "timekeeper.yml")
	if err := os.WriteFile(path, []byte("keep_days: 30\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("TIMEKEEPER_KEEP_DAYS", "7")
	t.Setenv("TIMEKEEPER_TIMELINE_ROUND", "60")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if cfg.KeepDays != 7 {
		t.Fatalf("KeepDays = %d, want env override 7", cfg.KeepDays)
	}
	if cfg.Timeline.Round != 60 {
		t.Fatalf("Timeline.Round = %d, want env override 60", cfg.Timeline.Round)
	}
}

func TestExpandHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	if got := ExpandHome("~/logs/tk.log"); got != filepath.Join(home, "logs", "tk.log") {
		t.Fatalf("ExpandHome(~/...) = %q", got)
	}
	if got := ExpandHome("~"); got != home {
		t.Fatalf("ExpandHome(~) = %q", got)
	}
	if got := ExpandHome("/abs/path"); got != "/abs/path" {
		t.Fatalf("ExpandHome(abs) = %q", got)
	}
	if got := ExpandHome(""); got != "" {
		t.Fatalf("ExpandHome(empty) = %q", got)
	}
}

func TestLogFilePathExpanded(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	path := filepath.Join(t.TempDir(), "timekeeper.yml")
	if err := os.WriteFile(path, []byte("log_file: ~/tk/log\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if want := filepath.Join(home, "tk", "log"); cfg.LogFile != want {
		t.Fatalf("LogFile = %q, want %q", cfg.LogFile, want)
	}
}
