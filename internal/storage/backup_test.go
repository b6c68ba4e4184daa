package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/anne-gert/TimeKeeper/internal/event"
)

func TestBackupMirrorsWrites(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "timekeeper.log")
	bakPath := filepath.Join(dir, "timekeeper.bak")
	clock := &fakeClock{ts: 100}
	s, err := Open(Options{
		LogPath:    logPath,
		BackupPath: bakPath,
		KeepDays:   -1,
		Location:   time.UTC,
		Now:        clock.Now,
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	if err := s.Run(event.Key(1), 0); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	clock.ts = 200
	if err := s.Pause(event.Key(1), 0); err != nil {
		t.Fatalf("Pause() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	primary := readLog(t, logPath)
	backup := readLog(t, bakPath)
	if primary != backup {
		t.Fatalf("backup differs from primary:\n%q\n%q", backup, primary)
	}
}

func TestBackupCarriesFullLogAfterAppend(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "timekeeper.log")
	bakPath := filepath.Join(dir, "timekeeper.bak")
	clock := &fakeClock{ts: 100}
	s, err := Open(Options{
		LogPath:    logPath,
		BackupPath: bakPath,
		KeepDays:   -1,
		Location:   time.UTC,
		Now:        clock.Now,
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	// Two separate cycles: the primary appends the second time, but the
	// mirror must still hold both lines.
	if err := s.Run(event.Key(1), 0); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	clock.ts = 160
	if err := s.Run(event.Key(2), 0); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	if primary, backup := readLog(t, logPath), readLog(t, bakPath); primary != backup {
		t.Fatalf("backup differs from primary:\n%q\n%q", backup, primary)
	}
}

func TestBackupFailureDoesNotFailOperation(t *testing.T) {
	dir := t.TempDir()
	clock := &fakeClock{ts: 100}
	s, err := Open(Options{
		LogPath:    filepath.Join(dir, "timekeeper.log"),
		BackupPath: filepath.Join(dir, "no-such-dir", "timekeeper.bak"),
		KeepDays:   -1,
		Location:   time.UTC,
		Now:        clock.Now,
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	if err := s.Run(event.Key(1), 0); err != nil {
		t.Fatalf("Run() must succeed despite a failing backup, got %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
}

func TestBackupSynchronousWhenWorkerStopped(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "timekeeper.log")
	bakPath := filepath.Join(dir, "timekeeper.bak")
	clock := &fakeClock{ts: 100}
	s, err := Open(Options{
		LogPath:    logPath,
		BackupPath: bakPath,
		KeepDays:   -1,
		Location:   time.UTC,
		Now:        clock.Now,
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	s.backup.close()
	s.backup = nil

	if err := s.Run(event.Key(1), 0); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if primary, backup := readLog(t, logPath), readLog(t, bakPath); primary != backup {
		t.Fatalf("backup differs from primary:\n%q\n%q", backup, primary)
	}
}

func TestBackupWorkerLatestRequestWins(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mirror")
	w := newBackupWorker(path)
	for i := 0; i < 20; i++ {
		w.request([]byte(fmt.Sprintf("state %d\n", i)))
	}
	w.close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if got := string(data); got != "state 19\n" {
		t.Fatalf("final mirror = %q, want the last request", got)
	}
}
