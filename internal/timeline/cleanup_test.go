package timeline

import (
	"reflect"
	"testing"
	"time"

	"github.com/anne-gert/TimeKeeper/internal/event"
)

func TestDistribute(t *testing.T) {
	cases := []struct {
		t1, t2, t3, t4 int64
		want           int64
	}{
		{0, 100, 200, 300, 150},
		{0, 100, 100, 300, 100},
		{100, 100, 200, 200, 150},
		{0, 60, 100, 120, 90},
	}
	for _, c := range cases {
		if got := Distribute(c.t1, c.t2, c.t3, c.t4); got != c.want {
			t.Errorf("Distribute(%d,%d,%d,%d) = %d, want %d", c.t1, c.t2, c.t3, c.t4, got, c.want)
		}
	}
}

func TestMergeGapsSharesGapProportionally(t *testing.T) {
	periods := []Period{
		{Start: 0, End: 100, Timer: event.Key(1)},
		{Start: 200, End: 300, Timer: event.Key(2)},
	}
	got := mergeGaps(periods, 150)
	want := []Period{
		{Start: 0, End: 150, Timer: event.Key(1)},
		{Start: 150, End: 300, Timer: event.Key(2)},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("mergeGaps() = %v, want %v", got, want)
	}
}

func TestMergeGapsLeavesLargeAndZeroGaps(t *testing.T) {
	periods := []Period{
		{Start: 0, End: 100, Timer: event.Key(1)},
		{Start: 100, End: 150, Timer: event.Key(2)},
		{Start: 250, End: 300, Timer: event.Key(3)},
	}
	want := append([]Period(nil), periods...)
	if got := mergeGaps(periods, 50); !reflect.DeepEqual(got, want) {
		t.Fatalf("mergeGaps() = %v, want unchanged %v", got, want)
	}
}

func TestRemoveShortSplitsBetweenNeighbors(t *testing.T) {
	periods := []Period{
		{Start: 0, End: 100, Timer: event.Key(1)},
		{Start: 100, End: 110, Timer: event.Key(2)},
		{Start: 110, End: 210, Timer: event.Key(3)},
	}
	got := removeShort(periods, 30)
	want := []Period{
		{Start: 0, End: 105, Timer: event.Key(1)},
		{Start: 105, End: 210, Timer: event.Key(3)},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("removeShort() = %v, want %v", got, want)
	}
}

func TestRemoveShortCoalescesTouchingRuns(t *testing.T) {
	periods := []Period{
		{Start: 0, End: 100, Timer: event.Key(1)},
		{Start: 100, End: 110, Timer: event.Key(2)},
		{Start: 110, End: 120, Timer: event.Key(3)},
		{Start: 120, End: 220, Timer: event.Key(4)},
	}
	got := removeShort(periods, 30)
	want := []Period{
		{Start: 0, End: 110, Timer: event.Key(1)},
		{Start: 110, End: 220, Timer: event.Key(4)},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("removeShort() = %v, want %v", got, want)
	}
}

func TestRemoveShortAbsorbedByLoneNeighbor(t *testing.T) {
	left := removeShort([]Period{
		{Start: 0, End: 100, Timer: event.Key(1)},
		{Start: 100, End: 120, Timer: event.Key(2)},
	}, 30)
	if want := []Period{{Start: 0, End: 120, Timer: event.Key(1)}}; !reflect.DeepEqual(left, want) {
		t.Fatalf("left absorb = %v, want %v", left, want)
	}

	right := removeShort([]Period{
		{Start: 0, End: 20, Timer: event.Key(1)},
		{Start: 20, End: 120, Timer: event.Key(2)},
	}, 30)
	if want := []Period{{Start: 0, End: 120, Timer: event.Key(2)}}; !reflect.DeepEqual(right, want) {
		t.Fatalf("right absorb = %v, want %v", right, want)
	}
}

func TestRemoveShortWithoutNeighborsDeletes(t *testing.T) {
	if got := removeShort([]Period{{Start: 0, End: 10, Timer: event.Key(1)}}, 30); len(got) != 0 {
		t.Fatalf("removeShort() = %v, want empty", got)
	}
}

func TestRoundBoundariesHalfAwayFromZero(t *testing.T) {
	periods := []Period{
		{Start: -50, End: 149, Timer: event.Key(1)},
		{Start: 150, End: 249, Timer: event.Key(2)},
	}
	got := roundBoundaries(periods, 100)
	want := []Period{
		{Start: -100, End: 100, Timer: event.Key(1)},
		{Start: 200, End: 200, Timer: event.Key(2)},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("roundBoundaries() = %v, want %v", got, want)
	}
}

func TestRoundingSweepsArtifacts(t *testing.T) {
	periods := []Period{
		{Start: 0, End: 300, Timer: event.Key(1)},
		{Start: 310, End: 320, Timer: event.Key(2)},
		{Start: 330, End: 600, Timer: event.Key(3)},
	}
	got := cleanup(periods, Options{Round: 300})
	// Timer 2 rounds to nothing; the zero-length leftover must not survive.
	want := []Period{
		{Start: 0, End: 300, Timer: event.Key(1)},
		{Start: 300, End: 600, Timer: event.Key(3)},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("cleanup() = %v, want %v", got, want)
	}
}

func TestRoundingCoalescesSameTimer(t *testing.T) {
	periods := []Period{
		{Start: 0, End: 95, Timer: event.Key(1)},
		{Start: 95, End: 210, Timer: event.Key(1)},
	}
	got := cleanup(periods, Options{Round: 100})
	want := []Period{{Start: 0, End: 200, Timer: event.Key(1)}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("cleanup() = %v, want %v", got, want)
	}
}

func TestSplitMidnightPerCalendarDay(t *testing.T) {
	const day = 86400
	periods := []Period{
		{Start: day - 3600, End: day + 3600, Timer: event.Key(1)},
		{Start: day/2 + 2*day, End: day/2 + 4*day, Timer: event.Key(2)},
		{Start: 6 * day, End: 7 * day, Timer: event.Key(3)},
	}
	got := splitMidnight(periods, time.UTC)
	want := []Period{
		{Start: day - 3600, End: day, Timer: event.Key(1)},
		{Start: day, End: day + 3600, Timer: event.Key(1)},
		{Start: day/2 + 2*day, End: 3 * day, Timer: event.Key(2)},
		{Start: 3 * day, End: 4 * day, Timer: event.Key(2)},
		{Start: 4 * day, End: day/2 + 4*day, Timer: event.Key(2)},
		{Start: 6 * day, End: 7 * day, Timer: event.Key(3)},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("splitMidnight() = %v, want %v", got, want)
	}
}

func TestSplitMidnightHonorsDaylightSaving(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	// 2021-03-14 has only 23 local hours.
	start := time.Date(2021, 3, 13, 23, 0, 0, 0, loc).Unix()
	end := time.Date(2021, 3, 14, 23, 0, 0, 0, loc).Unix()
	midnight := time.Date(2021, 3, 14, 0, 0, 0, 0, loc).Unix()

	got := splitMidnight([]Period{{Start: start, End: end, Timer: event.Key(1)}}, loc)
	want := []Period{
		{Start: start, End: midnight, Timer: event.Key(1)},
		{Start: midnight, End: end, Timer: event.Key(1)},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("splitMidnight() = %v, want %v", got, want)
	}
	if got[0].Duration()+got[1].Duration() != end-start {
		t.Fatalf("pieces do not reconstruct the original span")
	}
}

func TestCleanupDropsTimers(t *testing.T) {
	periods := []Period{
		{Start: 0, End: 100, Timer: event.Key(1)},
		{Start: 100, End: 200, Timer: event.Key(0)},
	}
	got := cleanup(periods, Options{DropTimers: []event.TimerKey{event.Key(0)}})
	want := []Period{{Start: 0, End: 100, Timer: event.Key(1)}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("cleanup() = %v, want %v", got, want)
	}
}

func TestCleanupThroughBuild(t *testing.T) {
	events := []event.Event{
		event.NewRun(0, event.Key(1)),
		event.NewPause(3590, event.Key(1)),
		event.NewRun(3605, event.Key(2)),
		event.NewPause(7200, event.Key(2)),
		event.NewRun(7200, event.Key(0)),
		event.NewPause(7210, event.Key(0)),
	}
	got, err := Build(events, Options{
		Now:        7210,
		Cleanup:    true,
		DropTimers: []event.TimerKey{event.Key(0)},
		MinGap:     60,
		MinPeriod:  60,
	})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	want := []Period{
		{Start: 0, End: 3597, Timer: event.Key(1)},
		{Start: 3597, End: 7200, Timer: event.Key(2)},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Build() = %v, want %v", got, want)
	}
}
