package timeline

import (
	"math"
	"time"

	"github.com/anne-gert/TimeKeeper/internal/event"
)

// cleanup applies the smoothing heuristics in their fixed order: drop
// unwanted timers, close small gaps, remove fragments, round boundaries,
// and split at midnight last so no later step reintroduces day-spanning
// periods.
func cleanup(periods []Period, opts Options) []Period {
	periods = dropTimers(periods, opts.DropTimers)
	if opts.MinGap > 0 {
		periods = mergeGaps(periods, opts.MinGap)
	}
	if opts.MinPeriod > 0 {
		periods = removeShort(periods, opts.MinPeriod)
	}
	if opts.Round > 0 {
		periods = roundBoundaries(periods, opts.Round)
		periods = removeShort(periods, 1)
		periods = coalesceSameTimer(periods)
	}
	if opts.SplitMidnight {
		loc := opts.Location
		if loc == nil {
			loc = time.Local
		}
		periods = splitMidnight(periods, loc)
	}
	return periods
}

func dropTimers(periods []Period, drop []event.TimerKey) []Period {
	if len(drop) == 0 {
		return periods
	}
	skip := make(map[event.TimerKey]bool, len(drop))
	for _, timer := range drop {
		skip[timer] = true
	}
	out := periods[:0]
	for _, p := range periods {
		if !skip[p.Timer] {
			out = append(out, p)
		}
	}
	return out
}

// Distribute picks the point where the span (t2, t3) is divided between the
// neighboring periods (t1, t2) and (t3, t4), proportional to their sizes.
// When both neighbors are empty the span splits down the middle.
func Distribute(t1, t2, t3, t4 int64) int64 {
	left := t2 - t1
	if left < 0 {
		left = 0
	}
	right := t4 - t3
	if right < 0 {
		right = 0
	}
	if left+right == 0 {
		return t2 + (t3-t2)/2
	}
	share := math.Round(float64(t3-t2) * float64(left) / float64(left+right))
	return t2 + int64(share)
}

func mergeGaps(periods []Period, minGap int64) []Period {
	for i := 0; i+1 < len(periods); i++ {
		gap := periods[i+1].Start - periods[i].End
		if gap <= 0 || gap >= minGap {
			continue
		}
		b := Distribute(periods[i].Start, periods[i].End, periods[i+1].Start, periods[i+1].End)
		periods[i].End = b
		periods[i+1].Start = b
	}
	return periods
}

// removeShort deletes periods shorter than minPeriod. Touching short runs
// coalesce into one first, then each remaining short period hands its span
// to the neighbors: split proportionally when it has two, absorbed whole by
// a lone one, silently gone with none.
func removeShort(periods []Period, minPeriod int64) []Period {
	flagged := make([]bool, len(periods))
	any := false
	for i, p := range periods {
		if p.End-p.Start < minPeriod {
			flagged[i] = true
			any = true
		}
	}
	if !any {
		return periods
	}

	var merged []Period
	var flags []bool
	for i := 0; i < len(periods); i++ {
		p := periods[i]
		if flagged[i] {
			for i+1 < len(periods) && flagged[i+1] && periods[i+1].Start == p.End {
				p.End = periods[i+1].End
				i++
			}
		}
		merged = append(merged, p)
		flags = append(flags, flagged[i])
	}

	var out []Period
	for i := 0; i < len(merged); i++ {
		if !flags[i] {
			out = append(out, merged[i])
			continue
		}
		p := merged[i]
		hasLeft := len(out) > 0
		hasRight := i+1 < len(merged)
		switch {
		case hasLeft && hasRight:
			b := Distribute(out[len(out)-1].Start, p.Start, p.End, merged[i+1].End)
			out[len(out)-1].End = b
			merged[i+1].Start = b
		case hasLeft:
			out[len(out)-1].End = p.End
		case hasRight:
			merged[i+1].Start = p.Start
		}
	}
	return out
}

func roundBoundaries(periods []Period, grain int64) []Period {
	for i := range periods {
		periods[i].Start = roundTo(periods[i].Start, grain)
		periods[i].End = roundTo(periods[i].End, grain)
	}
	return periods
}

// roundTo snaps x to the nearest multiple of grain, halves away from zero.
func roundTo(x, grain int64) int64 {
	return int64(math.Round(float64(x)/float64(grain))) * grain
}

func coalesceSameTimer(periods []Period) []Period {
	var out []Period
	for _, p := range periods {
		if n := len(out); n > 0 && out[n-1].Timer == p.Timer && out[n-1].End == p.Start {
			out[n-1].End = p.End
			continue
		}
		out = append(out, p)
	}
	return out
}

// splitMidnight cuts every period at local midnight boundaries, one piece
// per calendar day. Day lengths vary across daylight-saving transitions, so
// boundaries come from the calendar, not from 86400-second arithmetic.
func splitMidnight(periods []Period, loc *time.Location) []Period {
	var out []Period
	for _, p := range periods {
		start := p.Start
		for {
			next := nextMidnight(start, loc)
			if next >= p.End {
				break
			}
			out = append(out, Period{Start: start, End: next, Timer: p.Timer})
			start = next
		}
		out = append(out, Period{Start: start, End: p.End, Timer: p.Timer})
	}
	return out
}

func nextMidnight(ts int64, loc *time.Location) int64 {
	t := time.Unix(ts, 0).In(loc)
	return time.Date(t.Year(), t.Month(), t.Day()+1, 0, 0, 0, 0, loc).Unix()
}
