// Package replay projects an ordered event log into current-state
// snapshots: accumulated seconds, descriptions, groups, running flags and
// extra-info history per timer key.
package replay

import (
	"fmt"
	"sort"

	"github.com/anne-gert/TimeKeeper/internal/event"
)

// ExtraSample is one recorded (timestamp, value) pair for an extra-info
// name on a timer key.
type ExtraSample struct {
	Timestamp int64
	Value     string
}

// TimerState holds the projected state of one timer key.
type TimerState struct {
	Seconds     int64
	Description string
	GroupName   string
	GroupType   string
	Running     bool
	Extras      map[string][]ExtraSample
}

// Snapshot is the projection of an event log. Seconds fields are settled
// through LastTS; running timers accrue (now - LastTS) on top, which
// CurrentSeconds accounts for.
type Snapshot struct {
	LastTS int64
	timers map[event.TimerKey]*TimerState
}

// NewSnapshot returns an empty snapshot.
func NewSnapshot() *Snapshot {
	return &Snapshot{timers: make(map[event.TimerKey]*TimerState)}
}

// State returns the state for key, or nil when the key never appeared.
// The returned struct is owned by the snapshot; callers must not mutate it.
func (s *Snapshot) State(key event.TimerKey) *TimerState {
	return s.timers[key]
}

func (s *Snapshot) ensure(key event.TimerKey) *TimerState {
	st, ok := s.timers[key]
	if !ok {
		st = &TimerState{Extras: make(map[string][]ExtraSample)}
		s.timers[key] = st
	}
	return st
}

// SetState replaces the state for key, used when a single timer is resynced
// from a scoped replay.
func (s *Snapshot) SetState(key event.TimerKey, st *TimerState) {
	if st == nil {
		delete(s.timers, key)
		return
	}
	s.timers[key] = st
}

// Keys returns all known timer keys in canonical order.
func (s *Snapshot) Keys() []event.TimerKey {
	keys := make([]event.TimerKey, 0, len(s.timers))
	for key := range s.timers {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		return event.CompareKeys(keys[i], keys[j]) < 0
	})
	return keys
}

// AdvanceTo accrues (ts - LastTS) seconds onto every running timer and
// moves the settle point to ts. Earlier timestamps are a no-op.
func (s *Snapshot) AdvanceTo(ts int64) {
	if ts <= s.LastTS {
		return
	}
	dt := ts - s.LastTS
	for key, st := range s.timers {
		if st.Running && key.IsTimer() {
			st.Seconds += dt
		}
	}
	s.LastTS = ts
}

// Apply mutates the snapshot with the effect of one event. It does not
// advance the settle point; callers pass time first.
func (s *Snapshot) Apply(ev event.Event) error {
	st := s.ensure(ev.Timer)
	switch ev.Kind {
	case event.KindSetTime:
		v, err := ev.TimeValue()
		if err != nil {
			return err
		}
		st.Seconds = v
	case event.KindSetDescription:
		st.Description = ev.Description()
	case event.KindSetGroup:
		st.GroupName = ev.GroupName()
		st.GroupType = ev.GroupType()
	case event.KindSetExtra:
		name := ev.ExtraName()
		st.Extras[name] = append(st.Extras[name], ExtraSample{ev.Timestamp, ev.ExtraValue()})
	case event.KindIncrease:
		d, err := ev.Delta()
		if err != nil {
			return err
		}
		st.Seconds += d
	case event.KindRun:
		if ev.Timer.IsTimer() {
			st.Running = true
		}
	case event.KindPause:
		if ev.Timer.IsTimer() {
			st.Running = false
		}
	default:
		return fmt.Errorf("replay: unrecognized event kind %d (corrupt log)", ev.Kind)
	}
	return nil
}

func (s *Snapshot) runningFlags() map[event.TimerKey]bool {
	flags := make(map[event.TimerKey]bool, len(s.timers))
	for key, st := range s.timers {
		if st.Running {
			flags[key] = true
		}
	}
	return flags
}

// Replay walks events in canonical order and projects them into a fresh
// snapshot. Time passes onto running timers between events and finally up
// to now. When the walk crosses now (events dated in the future), the
// running flags at that instant are saved and restored after the walk, so a
// future run or pause never changes which timer appears active right now,
// while its elapsed time still lands in the totals.
func Replay(events []event.Event, now int64) (*Snapshot, error) {
	s := NewSnapshot()
	var saved map[event.TimerKey]bool

	for _, ev := range events {
		if saved == nil && ev.Timestamp > now {
			saved = s.runningFlags()
		}
		s.AdvanceTo(ev.Timestamp)
		if err := s.Apply(ev); err != nil {
			return nil, err
		}
	}
	s.AdvanceTo(now)

	if saved != nil {
		for key, st := range s.timers {
			st.Running = saved[key]
		}
	}
	return s, nil
}

// ReplayTimer replays only the events belonging to key, returning that
// timer's state as of now. Used to resync one timer cheaply after a
// targeted change.
func ReplayTimer(events []event.Event, key event.TimerKey, now int64) (*TimerState, error) {
	scoped := make([]event.Event, 0, 16)
	for _, ev := range events {
		if ev.Timer == key {
			scoped = append(scoped, ev)
		}
	}
	s, err := Replay(scoped, now)
	if err != nil {
		return nil, err
	}
	st := s.State(key)
	if st == nil {
		st = &TimerState{Extras: make(map[string][]ExtraSample)}
	}
	return st, nil
}

// CurrentSeconds returns key's accumulated seconds as of now, including the
// live accrual of a running timer.
func (s *Snapshot) CurrentSeconds(key event.TimerKey, now int64) int64 {
	st := s.timers[key]
	if st == nil {
		return 0
	}
	v := st.Seconds
	if st.Running && key.IsTimer() && now > s.LastTS {
		v += now - s.LastTS
	}
	return v
}

// Description returns key's current description.
func (s *Snapshot) Description(key event.TimerKey) string {
	if st := s.timers[key]; st != nil {
		return st.Description
	}
	return ""
}

// Group returns key's current group name and type.
func (s *Snapshot) Group(key event.TimerKey) (name, groupType string) {
	if st := s.timers[key]; st != nil {
		return st.GroupName, st.GroupType
	}
	return "", ""
}

// Running reports whether key is currently running.
func (s *Snapshot) Running(key event.TimerKey) bool {
	st := s.timers[key]
	return st != nil && st.Running && key.IsTimer()
}

// RunningKeys returns the running timers in canonical order.
func (s *Snapshot) RunningKeys() []event.TimerKey {
	var keys []event.TimerKey
	for _, key := range s.Keys() {
		if s.Running(key) {
			keys = append(keys, key)
		}
	}
	return keys
}

// Extra returns the recorded samples for (key, name) within [from, to].
// A zero from or to leaves that end of the range open.
func (s *Snapshot) Extra(key event.TimerKey, name string, from, to int64) []ExtraSample {
	st := s.timers[key]
	if st == nil {
		return nil
	}
	var out []ExtraSample
	for _, sample := range st.Extras[name] {
		if from != 0 && sample.Timestamp < from {
			continue
		}
		if to != 0 && sample.Timestamp > to {
			continue
		}
		out = append(out, sample)
	}
	return out
}
