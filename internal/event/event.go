// Package event defines the timer event model: the record shape stored in
// the on-disk log, the canonical ordering used by replay and timeline
// construction, and the tab-separated line codec.
package event

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Kind identifies the effect of an event on a timer.
type Kind int

const (
	// KindSetTime sets a timer's accumulated seconds to an absolute value.
	KindSetTime Kind = iota
	// KindSetDescription replaces a timer's description text.
	KindSetDescription
	// KindSetGroup replaces a timer's group name and group type.
	KindSetGroup
	// KindSetExtra records an auxiliary (timer, info-name) value sample.
	KindSetExtra
	// KindIncrease adjusts a timer's accumulated seconds by a signed delta.
	KindIncrease
	// KindRun marks a timer as running.
	KindRun
	// KindPause marks a timer as stopped.
	KindPause
)

// kindInfo carries the per-kind wire code and the sort priority applied
// between events that share a timestamp.
var kindInfo = map[Kind]struct {
	code     string
	priority int
	absolute bool
	name     string
}{
	KindSetGroup:       {"G", 1, true, "set-group"},
	KindSetDescription: {"D", 2, true, "set-description"},
	KindSetTime:        {"T", 3, true, "set-time"},
	KindPause:          {"p", 4, false, "pause"},
	KindRun:            {"r", 5, false, "run"},
	KindIncrease:       {"i", 6, false, "increase"},
	KindSetExtra:       {"E", 7, true, "set-extra"},
}

var codeToKind = map[string]Kind{}

func init() {
	for k, info := range kindInfo {
		codeToKind[info.code] = k
	}
}

// Code returns the single-letter code used in the log file.
func (k Kind) Code() string { return kindInfo[k].code }

// Priority returns the tie-break rank among events sharing a timestamp.
func (k Kind) Priority() int { return kindInfo[k].priority }

// Absolute reports whether the kind fully replaces its data item's value
// (as opposed to adjusting it incrementally).
func (k Kind) Absolute() bool { return kindInfo[k].absolute }

func (k Kind) String() string { return kindInfo[k].name }

// TimerKey identifies either a real timer (a small non-negative integer,
// stored in decimal form) or a non-numeric key used to attach auxiliary
// extra-info samples. Non-numeric keys never run and never appear in
// timelines.
type TimerKey string

// Key returns the TimerKey for the numeric timer n.
func Key(n int) TimerKey { return TimerKey(strconv.Itoa(n)) }

// ParseKey normalizes a raw key: numeric keys lose leading zeros so that
// "07" and "7" address the same timer.
func ParseKey(raw string) TimerKey {
	if n, err := strconv.Atoi(raw); err == nil && n >= 0 {
		return Key(n)
	}
	return TimerKey(raw)
}

// IsTimer reports whether the key addresses a real timer.
func (k TimerKey) IsTimer() bool {
	_, ok := k.Index()
	return ok
}

// Index returns the numeric timer index, if the key is numeric.
func (k TimerKey) Index() (int, bool) {
	if k == "" {
		return 0, false
	}
	n, err := strconv.Atoi(string(k))
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// CompareKeys orders numeric keys ascending before non-numeric keys,
// which sort lexicographically.
func CompareKeys(a, b TimerKey) int {
	ai, aok := a.Index()
	bi, bok := b.Index()
	switch {
	case aok && bok:
		return ai - bi
	case aok:
		return -1
	case bok:
		return 1
	default:
		return strings.Compare(string(a), string(b))
	}
}

// Event is one immutable record of a state change: a timestamp in Unix
// seconds, the affected timer, the kind of change, and kind-specific
// arguments in log order.
type Event struct {
	Timestamp int64
	Timer     TimerKey
	Kind      Kind
	Args      []string
}

// Compare produces the canonical total order: timestamp, then kind
// priority, then timer key. Full ties preserve insertion order when sorted
// with SortEvents.
func Compare(a, b Event) int {
	switch {
	case a.Timestamp < b.Timestamp:
		return -1
	case a.Timestamp > b.Timestamp:
		return 1
	}
	if d := a.Kind.Priority() - b.Kind.Priority(); d != 0 {
		return d
	}
	return CompareKeys(a.Timer, b.Timer)
}

// SortEvents sorts events into canonical order. The sort is stable so that
// events identical in (timestamp, kind, timer) keep their insertion order.
func SortEvents(events []Event) {
	sort.SliceStable(events, func(i, j int) bool {
		return Compare(events[i], events[j]) < 0
	})
}

// NewEventID returns a 16-hex-digit random token. Absolute events carry one
// as write-time provenance; nothing in the core consumes it.
func NewEventID() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Sprintf("event id entropy unavailable: %v", err))
	}
	return hex.EncodeToString(buf)
}

// sanitizeArg keeps string arguments representable in the tab-separated
// line format, which has no escaping.
func sanitizeArg(s string) string {
	s = strings.ReplaceAll(s, "\t", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.ReplaceAll(s, "\r", " ")
}

// NewSetTime builds an absolute set-time event.
func NewSetTime(ts int64, timer TimerKey, seconds int64) Event {
	return Event{ts, timer, KindSetTime, []string{strconv.FormatInt(seconds, 10), NewEventID()}}
}

// NewSetDescription builds an absolute set-description event.
func NewSetDescription(ts int64, timer TimerKey, text string) Event {
	return Event{ts, timer, KindSetDescription, []string{sanitizeArg(text), NewEventID()}}
}

// NewSetGroup builds an absolute set-group event.
func NewSetGroup(ts int64, timer TimerKey, name, groupType string) Event {
	return Event{ts, timer, KindSetGroup, []string{sanitizeArg(name), sanitizeArg(groupType), NewEventID()}}
}

// NewSetExtra builds an extra-info sample keyed by (timer, name).
func NewSetExtra(ts int64, timer TimerKey, name, value string) Event {
	return Event{ts, timer, KindSetExtra, []string{sanitizeArg(name), sanitizeArg(value)}}
}

// NewIncrease builds a relative time adjustment.
func NewIncrease(ts int64, timer TimerKey, delta int64) Event {
	return Event{ts, timer, KindIncrease, []string{strconv.FormatInt(delta, 10)}}
}

// NewRun builds a run toggle.
func NewRun(ts int64, timer TimerKey) Event {
	return Event{ts, timer, KindRun, nil}
}

// NewPause builds a pause toggle.
func NewPause(ts int64, timer TimerKey) Event {
	return Event{ts, timer, KindPause, nil}
}

func (e Event) intArg(i int) (int64, error) {
	if i >= len(e.Args) {
		return 0, fmt.Errorf("%s event at %d: missing argument %d", e.Kind, e.Timestamp, i)
	}
	n, err := strconv.ParseInt(e.Args[i], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s event at %d: argument %q is not an integer", e.Kind, e.Timestamp, e.Args[i])
	}
	return n, nil
}

func (e Event) strArg(i int) string {
	if i >= len(e.Args) {
		return ""
	}
	return e.Args[i]
}

// TimeValue returns the absolute seconds carried by a set-time event.
func (e Event) TimeValue() (int64, error) { return e.intArg(0) }

// Delta returns the signed adjustment carried by an increase event.
func (e Event) Delta() (int64, error) { return e.intArg(0) }

// Description returns the text carried by a set-description event.
func (e Event) Description() string { return e.strArg(0) }

// GroupName returns the group name carried by a set-group event.
func (e Event) GroupName() string { return e.strArg(0) }

// GroupType returns the group type carried by a set-group event.
func (e Event) GroupType() string { return e.strArg(1) }

// ExtraName returns the info name carried by a set-extra event.
func (e Event) ExtraName() string { return e.strArg(0) }

// ExtraValue returns the info value carried by a set-extra event.
func (e Event) ExtraValue() string { return e.strArg(1) }

// DataItem names the state slot the event affects, scoped to its timer.
// Run, pause, increase and set-time all act on the accumulated time;
// extra-info samples are scoped per info name.
func (e Event) DataItem() string {
	switch e.Kind {
	case KindSetDescription:
		return "description"
	case KindSetGroup:
		return "group"
	case KindSetExtra:
		return "extra\x00" + e.ExtraName()
	default:
		return "time"
	}
}
