// Package timeline converts run/pause history plus time adjustments into a
// sorted, non-overlapping list of activity periods for reporting.
package timeline

import (
	"sort"
	"time"

	"github.com/anne-gert/TimeKeeper/internal/event"
)

// Period is one contiguous stretch where a single timer was active.
type Period struct {
	Start int64
	End   int64
	Timer event.TimerKey
}

// Duration returns the period length in seconds.
func (p Period) Duration() int64 { return p.End - p.Start }

// Options controls how a timeline is built and smoothed.
type Options struct {
	// Now closes periods that are still open. Zero means the wall clock.
	Now int64
	// Cleanup enables the smoothing heuristics below.
	Cleanup bool
	// DropTimers removes these timers entirely, ahead of smoothing.
	DropTimers []event.TimerKey
	// MinGap closes gaps shorter than this many seconds by moving the
	// shared boundary proportionally into the gap.
	MinGap int64
	// MinPeriod removes periods shorter than this many seconds,
	// redistributing their span to the neighbors.
	MinPeriod int64
	// Round snaps boundaries to multiples of this many seconds.
	Round int64
	// SplitMidnight cuts periods at local midnight so no period spans
	// two calendar days.
	SplitMidnight bool
	// Location supplies the midnights for SplitMidnight. Nil means the
	// local zone.
	Location *time.Location
}

// modification is a pending time adjustment extracted from the log: a
// signed delta for one timer, or an amount moved between two timers.
type modification struct {
	ts       int64
	delta    int64
	amount   int64
	timer    event.TimerKey
	to       event.TimerKey
	transfer bool
	set      bool
}

// Build derives the activity periods from an event log. Events are sorted
// into canonical order first, so callers may pass the log as stored.
func Build(events []event.Event, opts Options) ([]Period, error) {
	if opts.Now == 0 {
		opts.Now = time.Now().Unix()
	}
	sorted := make([]event.Event, len(events))
	copy(sorted, events)
	event.SortEvents(sorted)

	periods, mods, err := extract(sorted, opts.Now)
	if err != nil {
		return nil, err
	}
	periods = normalize(periods)

	for _, m := range mods {
		switch {
		case m.transfer:
			periods = removeTime(periods, m.ts, m.amount, m.timer, m.to)
		case m.delta > 0:
			periods = insertIncrease(periods, m.ts, m.delta, m.timer)
		case m.delta < 0:
			periods = removeTime(periods, m.ts, -m.delta, m.timer, "")
		}
	}

	if opts.Cleanup {
		periods = cleanup(periods, opts)
	}
	return periods, nil
}

// extract walks the canonical event order once, producing raw periods from
// run/pause pairs and modification records from the time adjustments.
// Starting a timer closes whatever else is open: the timeline shows one
// active timer at a time even if the raw events overlap.
func extract(sorted []event.Event, now int64) ([]Period, []modification, error) {
	open := make(map[event.TimerKey]int64)
	var periods []Period
	var mods []modification

	closeOpen := func(timer event.TimerKey, at int64) {
		if start, ok := open[timer]; ok {
			periods = append(periods, Period{Start: start, End: at, Timer: timer})
			delete(open, timer)
		}
	}

	for _, ev := range sorted {
		if !ev.Timer.IsTimer() {
			continue
		}
		switch ev.Kind {
		case event.KindRun:
			for timer := range open {
				closeOpen(timer, ev.Timestamp)
			}
			open[ev.Timer] = ev.Timestamp
		case event.KindPause:
			if _, ok := open[ev.Timer]; !ok {
				// Implicit zero-length period, dropped by normalize.
				open[ev.Timer] = ev.Timestamp
			}
			closeOpen(ev.Timer, ev.Timestamp)
		case event.KindSetTime:
			v, err := ev.TimeValue()
			if err != nil {
				return nil, nil, err
			}
			// A reset supersedes the timer's earlier timeline: prior
			// periods and adjustments go, an open period restarts at
			// the reset instant, and the new value arrives as one
			// increase from zero.
			periods = dropPeriodsOf(periods, ev.Timer)
			mods = dropModsOf(mods, ev.Timer)
			if _, ok := open[ev.Timer]; ok {
				open[ev.Timer] = ev.Timestamp
			}
			if v != 0 {
				mods = append(mods, modification{ts: ev.Timestamp, delta: v, timer: ev.Timer, set: true})
			}
		case event.KindIncrease:
			d, err := ev.Delta()
			if err != nil {
				return nil, nil, err
			}
			if d == 0 {
				continue
			}
			if tryTransfer(mods, ev.Timestamp, ev.Timer, d) {
				continue
			}
			mods = append(mods, modification{ts: ev.Timestamp, delta: d, timer: ev.Timer})
		}
	}

	for timer, start := range open {
		end := now
		if start > end {
			end = start
		}
		periods = append(periods, Period{Start: start, End: end, Timer: timer})
	}
	return periods, mods, nil
}

// tryTransfer pairs a fresh increase with a same-timestamp opposite one for
// another timer, rewriting the earlier record into a transfer. Reports
// whether the pairing happened.
func tryTransfer(mods []modification, ts int64, timer event.TimerKey, delta int64) bool {
	for j := len(mods) - 1; j >= 0 && mods[j].ts == ts; j-- {
		m := &mods[j]
		if m.transfer || m.set || m.timer == timer || m.delta != -delta {
			continue
		}
		from, to, amount := m.timer, timer, delta
		if delta < 0 {
			from, to, amount = timer, m.timer, -delta
		}
		*m = modification{ts: ts, amount: amount, timer: from, to: to, transfer: true}
		return true
	}
	return false
}

func dropPeriodsOf(periods []Period, timer event.TimerKey) []Period {
	out := periods[:0]
	for _, p := range periods {
		if p.Timer != timer {
			out = append(out, p)
		}
	}
	return out
}

// dropModsOf clears a timer's pending adjustments. A transfer touching the
// timer keeps its other half: resetting the source still leaves the gained
// time on the destination, and the other way around.
func dropModsOf(mods []modification, timer event.TimerKey) []modification {
	var out []modification
	for _, m := range mods {
		switch {
		case m.transfer && m.timer == timer:
			out = append(out, modification{ts: m.ts, delta: m.amount, timer: m.to})
		case m.transfer && m.to == timer:
			out = append(out, modification{ts: m.ts, delta: -m.amount, timer: m.timer})
		case m.timer == timer:
			// dropped
		default:
			out = append(out, m)
		}
	}
	return out
}

// normalize sorts periods by (start, end, timer) and drops the zero-length
// ones.
func normalize(periods []Period) []Period {
	sort.SliceStable(periods, func(i, j int) bool {
		if periods[i].Start != periods[j].Start {
			return periods[i].Start < periods[j].Start
		}
		if periods[i].End != periods[j].End {
			return periods[i].End < periods[j].End
		}
		return event.CompareKeys(periods[i].Timer, periods[j].Timer) < 0
	})
	out := periods[:0]
	for _, p := range periods {
		if p.End != p.Start {
			out = append(out, p)
		}
	}
	return out
}

// insertIncrease places a new period of the given length so that it ends at
// ts, or failing that at the end of the nearest earlier gap that can hold
// it. With no room anywhere the period is prepended before all recorded
// history, representing backdated time with no matching run.
func insertIncrease(periods []Period, ts, amount int64, timer event.TimerKey) []Period {
	n := len(periods)
	if n == 0 {
		return []Period{{Start: ts - amount, End: ts, Timer: timer}}
	}
	for i := n; i > 0; i-- {
		lo := periods[i-1].End
		hi := ts
		if i < n && periods[i].Start < hi {
			hi = periods[i].Start
		}
		if hi <= lo || hi-lo < amount {
			continue
		}
		return insertAt(periods, i, Period{Start: hi - amount, End: hi, Timer: timer})
	}
	end := periods[0].Start
	if ts < end {
		end = ts
	}
	return insertAt(periods, 0, Period{Start: end - amount, End: end, Timer: timer})
}

// removeTime takes amount seconds away from the source timer, starting at
// the period straddling ts and walking backward through that timer's
// history. Each removed span becomes a period of the destination timer, or
// a gap when there is none. A deficit that cannot be covered turns into a
// synthetic negative-length period at the front.
func removeTime(periods []Period, ts, amount int64, from, to event.TimerKey) []Period {
	remaining := amount
	i := sort.Search(len(periods), func(k int) bool { return periods[k].Start > ts }) - 1
	for ; i >= 0 && remaining > 0; i-- {
		p := periods[i]
		if p.Timer != from {
			continue
		}
		end := p.End
		if ts < end {
			end = ts
		}
		take := end - p.Start
		if take <= 0 {
			continue
		}
		if take > remaining {
			take = remaining
		}
		remaining -= take

		segs := make([]Period, 0, 3)
		if end-take > p.Start {
			segs = append(segs, Period{Start: p.Start, End: end - take, Timer: from})
		}
		if to != "" {
			segs = append(segs, Period{Start: end - take, End: end, Timer: to})
		}
		if p.End > end {
			segs = append(segs, Period{Start: end, End: p.End, Timer: from})
		}
		periods = replaceAt(periods, i, segs)
	}

	if remaining > 0 {
		anchor := ts
		if len(periods) > 0 && periods[0].Start < anchor {
			anchor = periods[0].Start
		}
		var segs []Period
		if to != "" {
			segs = append(segs, Period{Start: anchor - remaining, End: anchor, Timer: to})
		}
		segs = append(segs, Period{Start: anchor, End: anchor - remaining, Timer: from})
		periods = append(segs, periods...)
	}
	return periods
}

func insertAt(periods []Period, i int, p Period) []Period {
	periods = append(periods, Period{})
	copy(periods[i+1:], periods[i:])
	periods[i] = p
	return periods
}

func replaceAt(periods []Period, i int, segs []Period) []Period {
	out := make([]Period, 0, len(periods)-1+len(segs))
	out = append(out, periods[:i]...)
	out = append(out, segs...)
	out = append(out, periods[i+1:]...)
	return out
}

// Totals sums period durations per timer.
func Totals(periods []Period) map[event.TimerKey]int64 {
	totals := make(map[event.TimerKey]int64)
	for _, p := range periods {
		totals[p.Timer] += p.End - p.Start
	}
	return totals
}
