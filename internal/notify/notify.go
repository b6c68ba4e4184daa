// Package notify accumulates which timers' observable fields changed, so a
// UI layer can refresh only what it needs to.
package notify

import (
	"sort"
	"strings"
	"sync"

	"github.com/anne-gert/TimeKeeper/internal/event"
)

// Field tags one observable aspect of a timer. Values combine as a bitmask.
type Field uint8

const (
	FieldTime Field = 1 << iota
	FieldDescription
	FieldGroup
)

// AllFields marks every observable aspect at once, used for conservative
// invalidation after a full reload.
const AllFields = FieldTime | FieldDescription | FieldGroup

// Has reports whether f contains tag.
func (f Field) Has(tag Field) bool { return f&tag != 0 }

func (f Field) String() string {
	var parts []string
	if f.Has(FieldTime) {
		parts = append(parts, "time")
	}
	if f.Has(FieldDescription) {
		parts = append(parts, "description")
	}
	if f.Has(FieldGroup) {
		parts = append(parts, "group")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// Changed is one drained entry: a timer and the union of fields marked for
// it since the previous drain.
type Changed struct {
	Timer  event.TimerKey
	Fields Field
}

// Changes is a mutex-guarded accumulator of pending change marks. Marks are
// never lost: a drain atomically snapshots and clears, so a mark racing a
// drain lands either in that drain or in the next one, never nowhere.
type Changes struct {
	mu      sync.Mutex
	pending map[event.TimerKey]Field
}

func NewChanges() *Changes {
	return &Changes{pending: make(map[event.TimerKey]Field)}
}

// Mark records that fields changed on each of the given timers.
func (c *Changes) Mark(fields Field, timers ...event.TimerKey) {
	if fields == 0 || len(timers) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, timer := range timers {
		c.pending[timer] |= fields
	}
}

// Peek returns the pending entries sorted by timer key without clearing
// them.
func (c *Changes) Peek() []Changed {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Drain returns the pending entries sorted by timer key and clears the
// accumulator in the same critical section.
func (c *Changes) Drain() []Changed {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.snapshotLocked()
	c.pending = make(map[event.TimerKey]Field)
	return out
}

func (c *Changes) snapshotLocked() []Changed {
	out := make([]Changed, 0, len(c.pending))
	for timer, fields := range c.pending {
		out = append(out, Changed{Timer: timer, Fields: fields})
	}
	sort.Slice(out, func(i, j int) bool {
		return event.CompareKeys(out[i].Timer, out[j].Timer) < 0
	})
	return out
}
