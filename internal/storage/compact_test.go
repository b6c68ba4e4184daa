package storage

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/anne-gert/TimeKeeper/internal/event"
	"github.com/anne-gert/TimeKeeper/internal/replay"
)

func TestCompactAnchorsFirstAbsoluteBelowBoundary(t *testing.T) {
	s := &Store{keepDays: 1}
	s.events = []event.Event{
		event.NewSetDescription(100, event.Key(1), "ancient"),
		event.NewSetDescription(113000, event.Key(1), "anchor"),
		event.NewSetDescription(199999, event.Key(1), "recent"),
	}
	s.compact(200000) // boundary = 113600

	if len(s.events) != 2 {
		t.Fatalf("kept %d events, want 2: %v", len(s.events), s.events)
	}
	if s.events[0].Timestamp != 113000 || s.events[1].Timestamp != 199999 {
		t.Fatalf("kept wrong events: %v", s.events)
	}
	if !s.pendingRewrite {
		t.Fatal("dropping events must force a rewrite")
	}
}

func TestCompactDropsRelativesOnceAnchored(t *testing.T) {
	s := &Store{keepDays: 0}
	s.events = []event.Event{
		event.NewRun(60, event.Key(1)),
		event.NewIncrease(80, event.Key(1), 5),
		event.NewPause(90, event.Key(1)),
		event.NewSetTime(100, event.Key(1), 500),
		event.NewIncrease(120, event.Key(1), 7),
	}
	s.compact(150)

	if len(s.events) != 2 {
		t.Fatalf("kept %d events, want 2: %v", len(s.events), s.events)
	}
	if s.events[0].Kind != event.KindSetTime || s.events[1].Timestamp != 120 {
		t.Fatalf("kept wrong events: %v", s.events)
	}
}

func TestCompactReplayEquivalence(t *testing.T) {
	original := []event.Event{
		event.NewRun(60, event.Key(1)),
		event.NewIncrease(80, event.Key(1), 5),
		event.NewPause(90, event.Key(1)),
		event.NewSetTime(100, event.Key(1), 500),
		event.NewIncrease(120, event.Key(1), 7),
	}
	s := &Store{keepDays: 0}
	s.events = append([]event.Event(nil), original...)
	s.compact(150)

	before, err := replay.Replay(original, 150)
	if err != nil {
		t.Fatalf("Replay(original) error = %v", err)
	}
	after, err := replay.Replay(s.events, 150)
	if err != nil {
		t.Fatalf("Replay(compacted) error = %v", err)
	}
	if b, a := before.CurrentSeconds(event.Key(1), 150), after.CurrentSeconds(event.Key(1), 150); b != a {
		t.Fatalf("compaction changed the replayed value: %d != %d", a, b)
	}
	if before.Running(event.Key(1)) != after.Running(event.Key(1)) {
		t.Fatal("compaction changed the running flag")
	}
}

func TestCompactKeepsBoundaryEvents(t *testing.T) {
	s := &Store{keepDays: 0}
	s.events = []event.Event{
		event.NewSetTime(100, event.Key(1), 500),
		event.NewIncrease(100, event.Key(1), 7),
	}
	s.compact(100) // boundary exactly at the events

	if len(s.events) != 2 {
		t.Fatalf("boundary events must be kept, got %v", s.events)
	}
	if s.pendingRewrite {
		t.Fatal("nothing dropped, no rewrite needed")
	}
}

func TestCompactKeepsUnanchoredRelatives(t *testing.T) {
	s := &Store{keepDays: 0}
	s.events = []event.Event{
		event.NewRun(60, event.Key(1)),
		event.NewPause(90, event.Key(1)),
	}
	s.compact(150)

	if len(s.events) != 2 {
		t.Fatalf("relatives without an absolute anchor must survive, got %v", s.events)
	}
}

func TestCompactDisabled(t *testing.T) {
	s := &Store{keepDays: -1}
	s.events = []event.Event{
		event.NewSetDescription(50, event.Key(1), "old"),
		event.NewSetDescription(100, event.Key(1), "new"),
	}
	s.compact(10000)

	if len(s.events) != 2 || s.pendingRewrite {
		t.Fatalf("negative keepDays must disable compaction, got %v", s.events)
	}
}

func TestCompactThroughStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "timekeeper.log")
	clock := &fakeClock{ts: 200}
	s, err := Open(Options{
		LogPath:  path,
		KeepDays: 0,
		Location: time.UTC,
		Now:      clock.Now,
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer s.Close()

	if err := s.SetDescription(event.Key(1), "old", 50); err != nil {
		t.Fatalf("SetDescription() error = %v", err)
	}
	if err := s.SetDescription(event.Key(1), "new", 100); err != nil {
		t.Fatalf("SetDescription() error = %v", err)
	}

	got := readLog(t, path)
	lines := strings.Split(strings.TrimSuffix(got, "\n"), "\n")
	if len(lines) != 1 || !strings.Contains(lines[0], "\tD\tnew\t") {
		t.Fatalf("log should hold only the superseding event:\n%s", got)
	}
	if got := s.Description(event.Key(1)); got != "new" {
		t.Fatalf("Description = %q, want %q", got, "new")
	}
}
