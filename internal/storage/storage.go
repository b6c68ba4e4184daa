// Package storage keeps the event log consistent between memory and disk:
// staleness detection against the file's mtime, exclusive locking around
// reads and writes, append-vs-rewrite selection, history compaction and
// best-effort backup mirroring.
package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/anne-gert/TimeKeeper/internal/debuglog"
	"github.com/anne-gert/TimeKeeper/internal/event"
	"github.com/anne-gert/TimeKeeper/internal/notify"
	"github.com/anne-gert/TimeKeeper/internal/replay"
	"github.com/anne-gert/TimeKeeper/internal/timeline"
)

var (
	// ErrConcurrentModification means the log file changed between the
	// staleness check and the write. The operation is abandoned, never
	// merged or retried.
	ErrConcurrentModification = errors.New("log file changed by another process")

	// ErrNotTimer rejects time operations on non-numeric keys.
	ErrNotTimer = errors.New("not a timer key")
)

// Options configures Open.
type Options struct {
	// LogPath is the event log file. Required.
	LogPath string
	// BackupPath, when set, receives a mirror of every write.
	BackupPath string
	// KeepDays bounds the retention window for compaction. Zero discards
	// superseded history immediately; negative disables compaction.
	KeepDays int
	// Location is the zone used when formatting timestamps. Nil means the
	// local zone.
	Location *time.Location
	// Now overrides the wall clock, for tests.
	Now func() time.Time
}

// Store owns the in-memory event log, its replayed snapshot and the change
// set, and synchronizes them with the on-disk log. One read-modify-write
// cycle completes before the next begins; cross-process safety comes from
// the file lock plus mtime verification.
type Store struct {
	logPath    string
	backupPath string
	keepDays   int
	loc        *time.Location
	now        func() time.Time

	mu             sync.Mutex
	events         []event.Event
	snapshot       *replay.Snapshot
	changes        *notify.Changes
	loaded         bool
	diskTime       time.Time
	pendingRewrite bool
	pendingAppend  int

	flk    *flock.Flock
	backup *backupWorker
}

// Open prepares a store for the given log file. The file is not touched
// until the first operation.
func Open(opts Options) (*Store, error) {
	if opts.LogPath == "" {
		return nil, errors.New("log path is required")
	}
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	s := &Store{
		logPath:    opts.LogPath,
		backupPath: opts.BackupPath,
		keepDays:   opts.KeepDays,
		loc:        loc,
		now:        now,
		snapshot:   replay.NewSnapshot(),
		changes:    notify.NewChanges(),
		flk:        flock.New(opts.LogPath + ".lock"),
	}
	if opts.BackupPath != "" {
		s.backup = newBackupWorker(opts.BackupPath)
	}
	return s, nil
}

// Close flushes the backup worker. The store must not be used afterwards.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.backup != nil {
		s.backup.close()
		s.backup = nil
	}
	return nil
}

// Refresh reloads the log from disk when its mtime moved since the last
// read. Callers use it before read-only queries; mutating operations
// refresh on their own.
func (s *Store) Refresh() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.syncFromDisk()
}

// syncFromDisk is step one of the read-modify-write cycle: when the on-disk
// file is newer than what was last read, reread it under the lock, replay,
// and conservatively mark every timer changed.
func (s *Store) syncFromDisk() error {
	st, err := os.Stat(s.logPath)
	if errors.Is(err, fs.ErrNotExist) {
		// First-time initialization: replay whatever is in memory and
		// leave disk alone until something is written.
		s.diskTime = time.Time{}
		if !s.loaded {
			s.loaded = true
			return s.rebuildAt(s.now().Unix())
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("stat %s: %w", s.logPath, err)
	}
	if s.loaded && st.ModTime().Equal(s.diskTime) {
		return nil
	}

	if err := s.flk.Lock(); err != nil {
		return fmt.Errorf("lock %s: %w", s.flk.Path(), err)
	}
	defer s.flk.Unlock()

	f, err := os.Open(s.logPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", s.logPath, err)
	}
	events, err := event.ParseLog(f)
	f.Close()
	if err != nil {
		return fmt.Errorf("read %s: %w", s.logPath, err)
	}
	st, err = os.Stat(s.logPath)
	if err != nil {
		return fmt.Errorf("stat %s: %w", s.logPath, err)
	}

	s.events = events
	s.diskTime = st.ModTime()
	s.loaded = true
	s.pendingRewrite = false
	s.pendingAppend = 0
	if err := s.rebuildAt(s.now().Unix()); err != nil {
		return err
	}
	s.changes.Mark(notify.AllFields, s.snapshot.Keys()...)
	return nil
}

// canonical returns a copy of the log in replay order: timestamp, then kind
// priority, then timer, with file order breaking full ties.
func (s *Store) canonical() []event.Event {
	out := make([]event.Event, len(s.events))
	copy(out, s.events)
	event.SortEvents(out)
	return out
}

func (s *Store) rebuildAt(now int64) error {
	snap, err := replay.Replay(s.canonical(), now)
	if err != nil {
		return err
	}
	s.snapshot = snap
	return nil
}

// insertEvent places ev in the log: appended when it does not predate the
// tail, spliced into timestamp position otherwise. Splicing means the file
// must be rewritten in full.
func (s *Store) insertEvent(ev event.Event) {
	n := len(s.events)
	if n == 0 || ev.Timestamp >= s.events[n-1].Timestamp {
		s.events = append(s.events, ev)
		s.pendingAppend++
		return
	}
	i := sort.Search(n, func(i int) bool { return s.events[i].Timestamp > ev.Timestamp })
	s.events = append(s.events, event.Event{})
	copy(s.events[i+1:], s.events[i:])
	s.events[i] = ev
	s.pendingRewrite = true
}

// patchSnapshot keeps the snapshot current without a full replay. A pause
// or a backdated event invalidates settled accrual for its timer, so that
// timer is resynced from its own history. Future-dated events interact
// with the save-point rules, which only a full replay evaluates correctly.
func (s *Store) patchSnapshot(ev event.Event, now int64) error {
	if ev.Timestamp > now || s.snapshot.LastTS > now {
		return s.rebuildAt(now)
	}
	if ev.Kind == event.KindPause || ev.Timestamp < s.snapshot.LastTS {
		st, err := replay.ReplayTimer(s.canonical(), ev.Timer, s.snapshot.LastTS)
		if err != nil {
			return err
		}
		s.snapshot.SetState(ev.Timer, st)
		return nil
	}
	s.snapshot.AdvanceTo(ev.Timestamp)
	return s.snapshot.Apply(ev)
}

// commit is the write half of the cycle: verify nobody else wrote since the
// read, take the lock, rewrite or append, remember the new mtime, and hand
// the result to the backup mirror.
func (s *Store) commit() error {
	if !s.pendingRewrite && s.pendingAppend == 0 {
		return nil
	}

	st, statErr := os.Stat(s.logPath)
	switch {
	case errors.Is(statErr, fs.ErrNotExist):
		if !s.diskTime.IsZero() {
			return fmt.Errorf("%w: %s is gone", ErrConcurrentModification, s.logPath)
		}
	case statErr != nil:
		return fmt.Errorf("stat %s: %w", s.logPath, statErr)
	default:
		if !st.ModTime().Equal(s.diskTime) {
			return fmt.Errorf("%w: %s", ErrConcurrentModification, s.logPath)
		}
	}

	if err := s.flk.Lock(); err != nil {
		return fmt.Errorf("lock %s: %w", s.flk.Path(), err)
	}
	defer s.flk.Unlock()

	if s.pendingRewrite || errors.Is(statErr, fs.ErrNotExist) {
		if err := os.WriteFile(s.logPath, event.FormatLog(s.events, s.loc), 0o644); err != nil {
			return fmt.Errorf("rewrite %s: %w", s.logPath, err)
		}
	} else {
		f, err := os.OpenFile(s.logPath, os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("append %s: %w", s.logPath, err)
		}
		appended := s.events[len(s.events)-s.pendingAppend:]
		_, err = f.Write(event.FormatLog(appended, s.loc))
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return fmt.Errorf("append %s: %w", s.logPath, err)
		}
	}

	st, err := os.Stat(s.logPath)
	if err != nil {
		return fmt.Errorf("stat %s: %w", s.logPath, err)
	}
	s.diskTime = st.ModTime()
	s.pendingRewrite = false
	s.pendingAppend = 0

	if s.backup != nil {
		s.backup.request(event.FormatLog(s.events, s.loc))
	} else if s.backupPath != "" {
		// Worker already stopped. Mirror synchronously rather than skip.
		if werr := os.WriteFile(s.backupPath, event.FormatLog(s.events, s.loc), 0o644); werr != nil {
			debuglog.Printf("backup write %s: %v", s.backupPath, werr)
		}
	}
	return nil
}

type opKind int

const (
	opSetTime opKind = iota
	opSetDescription
	opSetGroup
	opSetExtra
	opIncrease
	opTransfer
	opRun
	opPause
	opPauseAll
	opBatch
)

// command is one typed state mutation; execute dispatches on op inside a
// single read-modify-write cycle.
type command struct {
	op     opKind
	at     int64
	timers []event.TimerKey
	timer  event.TimerKey
	from   event.TimerKey
	to     event.TimerKey
	value  int64
	text   string
	name   string
	gtype  string
	batch  []event.Event
}

type result struct {
	newValue int64
	newFrom  int64
	newTo    int64
}

func (s *Store) execute(cmd command) (result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var res result
	if err := s.syncFromDisk(); err != nil {
		return res, err
	}
	now := s.now().Unix()
	if cmd.at == 0 {
		cmd.at = now
	}
	s.snapshot.AdvanceTo(now)

	if err := s.applyCommand(&cmd, &res, now); err != nil {
		return res, err
	}
	s.compact(now)
	if err := s.commit(); err != nil {
		return res, err
	}
	return res, nil
}

func (s *Store) record(ev event.Event, now int64) error {
	s.insertEvent(ev)
	return s.patchSnapshot(ev, now)
}

func (s *Store) applyCommand(cmd *command, res *result, now int64) error {
	switch cmd.op {
	case opSetTime:
		for _, timer := range cmd.timers {
			if err := s.record(event.NewSetTime(cmd.at, timer, cmd.value), now); err != nil {
				return err
			}
			s.changes.Mark(notify.FieldTime, timer)
		}
	case opSetDescription:
		if err := s.record(event.NewSetDescription(cmd.at, cmd.timer, cmd.text), now); err != nil {
			return err
		}
		s.changes.Mark(notify.FieldDescription, cmd.timer)
	case opSetGroup:
		if err := s.record(event.NewSetGroup(cmd.at, cmd.timer, cmd.name, cmd.gtype), now); err != nil {
			return err
		}
		s.changes.Mark(notify.FieldGroup, cmd.timer)
	case opSetExtra:
		if err := s.record(event.NewSetExtra(cmd.at, cmd.timer, cmd.name, cmd.text), now); err != nil {
			return err
		}
	case opIncrease:
		if err := s.record(event.NewIncrease(cmd.at, cmd.timer, cmd.value), now); err != nil {
			return err
		}
		s.changes.Mark(notify.FieldTime, cmd.timer)
		res.newValue = s.snapshot.CurrentSeconds(cmd.timer, now)
	case opTransfer:
		if err := s.record(event.NewIncrease(cmd.at, cmd.from, -cmd.value), now); err != nil {
			return err
		}
		if err := s.record(event.NewIncrease(cmd.at, cmd.to, cmd.value), now); err != nil {
			return err
		}
		s.changes.Mark(notify.FieldTime, cmd.from, cmd.to)
		res.newFrom = s.snapshot.CurrentSeconds(cmd.from, now)
		res.newTo = s.snapshot.CurrentSeconds(cmd.to, now)
	case opRun:
		if err := s.record(event.NewRun(cmd.at, cmd.timer), now); err != nil {
			return err
		}
		s.changes.Mark(notify.FieldTime, cmd.timer)
	case opPause:
		if err := s.record(event.NewPause(cmd.at, cmd.timer), now); err != nil {
			return err
		}
		s.changes.Mark(notify.FieldTime, cmd.timer)
	case opPauseAll:
		for _, timer := range s.snapshot.RunningKeys() {
			if err := s.record(event.NewPause(cmd.at, timer), now); err != nil {
				return err
			}
			s.changes.Mark(notify.FieldTime, timer)
		}
	case opBatch:
		for _, ev := range cmd.batch {
			if err := s.record(ev, now); err != nil {
				return err
			}
			s.changes.Mark(notify.FieldTime, ev.Timer)
		}
	default:
		return fmt.Errorf("unknown command %d", cmd.op)
	}
	return nil
}

// SetTime sets the accumulated seconds of each timer to the same absolute
// value. A zero at means now.
func (s *Store) SetTime(timers []event.TimerKey, seconds int64, at int64) error {
	for _, timer := range timers {
		if !timer.IsTimer() {
			return fmt.Errorf("%w: %q", ErrNotTimer, timer)
		}
	}
	_, err := s.execute(command{op: opSetTime, timers: timers, value: seconds, at: at})
	return err
}

// SetDescription replaces the description of a timer key.
func (s *Store) SetDescription(timer event.TimerKey, text string, at int64) error {
	_, err := s.execute(command{op: opSetDescription, timer: timer, text: text, at: at})
	return err
}

// SetGroup assigns a group name and type to a timer key.
func (s *Store) SetGroup(timer event.TimerKey, name, groupType string, at int64) error {
	_, err := s.execute(command{op: opSetGroup, timer: timer, name: name, gtype: groupType, at: at})
	return err
}

// SetExtra records an auxiliary (name, value) sample on a key. The key need
// not be a real timer.
func (s *Store) SetExtra(timer event.TimerKey, name, value string, at int64) error {
	_, err := s.execute(command{op: opSetExtra, timer: timer, name: name, text: value, at: at})
	return err
}

// IncreaseTime adjusts a timer by delta seconds and returns the new value.
func (s *Store) IncreaseTime(timer event.TimerKey, delta int64, at int64) (int64, error) {
	if !timer.IsTimer() {
		return 0, fmt.Errorf("%w: %q", ErrNotTimer, timer)
	}
	res, err := s.execute(command{op: opIncrease, timer: timer, value: delta, at: at})
	return res.newValue, err
}

// TransferTime moves delta seconds from one timer to another and returns
// both new values. The two adjustments share one timestamp, which is what
// lets the timeline recognize them as a transfer.
func (s *Store) TransferTime(from, to event.TimerKey, delta int64, at int64) (int64, int64, error) {
	if !from.IsTimer() {
		return 0, 0, fmt.Errorf("%w: %q", ErrNotTimer, from)
	}
	if !to.IsTimer() {
		return 0, 0, fmt.Errorf("%w: %q", ErrNotTimer, to)
	}
	if from == to {
		return 0, 0, fmt.Errorf("transfer needs two distinct timers, got %q twice", from)
	}
	res, err := s.execute(command{op: opTransfer, from: from, to: to, value: delta, at: at})
	return res.newFrom, res.newTo, err
}

// Run starts a timer.
func (s *Store) Run(timer event.TimerKey, at int64) error {
	if !timer.IsTimer() {
		return fmt.Errorf("%w: %q", ErrNotTimer, timer)
	}
	_, err := s.execute(command{op: opRun, timer: timer, at: at})
	return err
}

// Pause stops a timer.
func (s *Store) Pause(timer event.TimerKey, at int64) error {
	if !timer.IsTimer() {
		return fmt.Errorf("%w: %q", ErrNotTimer, timer)
	}
	_, err := s.execute(command{op: opPause, timer: timer, at: at})
	return err
}

// PauseAll stops every running timer in one cycle.
func (s *Store) PauseAll(at int64) error {
	_, err := s.execute(command{op: opPauseAll, at: at})
	return err
}

// ApplyRunPauseBatch records a prepared sequence of run/pause events, for
// callers that reconstruct activity from an external source. Only run and
// pause events are accepted.
func (s *Store) ApplyRunPauseBatch(batch []event.Event) error {
	for _, ev := range batch {
		if ev.Kind != event.KindRun && ev.Kind != event.KindPause {
			return fmt.Errorf("batch accepts only run and pause events, got %s", ev.Kind)
		}
		if !ev.Timer.IsTimer() {
			return fmt.Errorf("%w: %q", ErrNotTimer, ev.Timer)
		}
		if ev.Timestamp == 0 {
			return errors.New("batch events need explicit timestamps")
		}
	}
	_, err := s.execute(command{op: opBatch, batch: batch})
	return err
}

// CurrentTime returns a timer's accumulated seconds as of now.
func (s *Store) CurrentTime(timer event.TimerKey) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot.CurrentSeconds(timer, s.now().Unix())
}

// Description returns a key's current description.
func (s *Store) Description(timer event.TimerKey) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot.Description(timer)
}

// Group returns a key's current group name and type.
func (s *Store) Group(timer event.TimerKey) (name, groupType string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot.Group(timer)
}

// Running reports whether a timer is running.
func (s *Store) Running(timer event.TimerKey) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot.Running(timer)
}

// AllRunning returns the running timers in key order.
func (s *Store) AllRunning() []event.TimerKey {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot.RunningKeys()
}

// Keys returns every key that appears in the snapshot, timers and
// extra-info keys alike.
func (s *Store) Keys() []event.TimerKey {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot.Keys()
}

// Group identifies one (name, type) grouping of timers.
type Group struct {
	Name string
	Type string
}

// UsedGroups lists the distinct groups assigned to timers. With all set,
// every group that ever appeared in the log is included, not only the
// current assignments.
func (s *Store) UsedGroups(all bool) []Group {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[Group]bool)
	if all {
		for _, ev := range s.events {
			if ev.Kind != event.KindSetGroup {
				continue
			}
			g := Group{Name: ev.GroupName(), Type: ev.GroupType()}
			if g.Name != "" {
				seen[g] = true
			}
		}
	} else {
		for _, key := range s.snapshot.Keys() {
			name, typ := s.snapshot.Group(key)
			if name != "" {
				seen[Group{Name: name, Type: typ}] = true
			}
		}
	}

	groups := make([]Group, 0, len(seen))
	for g := range seen {
		groups = append(groups, g)
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].Name != groups[j].Name {
			return groups[i].Name < groups[j].Name
		}
		return groups[i].Type < groups[j].Type
	})
	return groups
}

// Extra returns the recorded samples for (timer, name) within [from, to];
// zero bounds are open.
func (s *Store) Extra(timer event.TimerKey, name string, from, to int64) []replay.ExtraSample {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot.Extra(timer, name, from, to)
}

// Events returns a copy of the log in canonical replay order.
func (s *Store) Events() []event.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canonical()
}

// MarkChanged records field changes for timers, on behalf of callers that
// mutate presentation state outside the store.
func (s *Store) MarkChanged(fields notify.Field, timers ...event.TimerKey) {
	s.changes.Mark(fields, timers...)
}

// PeekChanged returns pending change marks without clearing them.
func (s *Store) PeekChanged() []notify.Changed {
	return s.changes.Peek()
}

// DrainChanged returns pending change marks and clears them atomically.
func (s *Store) DrainChanged() []notify.Changed {
	return s.changes.Drain()
}

// Timeline derives the activity periods from the current log.
func (s *Store) Timeline(opts timeline.Options) ([]timeline.Period, error) {
	s.mu.Lock()
	events := s.canonical()
	if opts.Now == 0 {
		opts.Now = s.now().Unix()
	}
	if opts.Location == nil {
		opts.Location = s.loc
	}
	s.mu.Unlock()
	return timeline.Build(events, opts)
}

// Totals pairs the time visible in a timeline with the live counter value
// of the same timer.
type Totals struct {
	Period int64
	Live   int64
}

// TimelineTotals sums period durations per timer and annotates each with
// the timer's current counter.
func (s *Store) TimelineTotals(periods []timeline.Period) map[event.TimerKey]Totals {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().Unix()
	totals := make(map[event.TimerKey]Totals)
	for _, p := range periods {
		t := totals[p.Timer]
		t.Period += p.End - p.Start
		totals[p.Timer] = t
	}
	for timer, t := range totals {
		t.Live = s.snapshot.CurrentSeconds(timer, now)
		totals[timer] = t
	}
	return totals
}
