package storage

import (
	"sort"

	"github.com/anne-gert/TimeKeeper/internal/event"
)

type dataPair struct {
	timer event.TimerKey
	item  string
}

// compact drops events older than the retention window once a newer
// absolute event for the same (timer, data item) pair supersedes them.
// Walking the log newest to oldest, the first absolute event found at or
// below the boundary is kept as the replay anchor for its pair; everything
// older for that pair, relative adjustments included, can go. Events inside
// the window are never touched. Any drop forces a full rewrite.
func (s *Store) compact(now int64) {
	if s.keepDays < 0 || len(s.events) == 0 {
		return
	}
	boundary := now - int64(s.keepDays)*86400

	idx := make([]int, len(s.events))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return event.Compare(s.events[idx[a]], s.events[idx[b]]) < 0
	})

	anchored := make(map[dataPair]bool)
	drop := make(map[int]bool)
	for k := len(idx) - 1; k >= 0; k-- {
		i := idx[k]
		ev := s.events[i]
		if ev.Timestamp > boundary {
			continue
		}
		pair := dataPair{timer: ev.Timer, item: ev.DataItem()}
		if ev.Timestamp < boundary && anchored[pair] {
			drop[i] = true
			continue
		}
		if ev.Kind.Absolute() && !anchored[pair] {
			anchored[pair] = true
		}
	}
	if len(drop) == 0 {
		return
	}

	kept := make([]event.Event, 0, len(s.events)-len(drop))
	for i, ev := range s.events {
		if !drop[i] {
			kept = append(kept, ev)
		}
	}
	s.events = kept
	s.pendingRewrite = true
}
