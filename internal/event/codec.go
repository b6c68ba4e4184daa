package event

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// Log file line format, one event per line:
//
//	timestamp<TAB>timer<TAB>code[<TAB>arg]*
//
// Timestamps are written zone-qualified in local time; blank lines and
// lines starting with # are ignored on read.

// ErrMalformedLine is returned when a log line cannot be parsed at all.
// This indicates log corruption, not user error.
var ErrMalformedLine = errors.New("malformed log line")

// ErrUnknownCode is returned for an event code outside T D G E i r p.
var ErrUnknownCode = errors.New("unknown event code")

const timestampLayout = "2006-01-02 15:04:05 -0700"

// FormatTimestamp renders Unix seconds in the log's zone-qualified form,
// using loc (nil means the process-local zone).
func FormatTimestamp(ts int64, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return time.Unix(ts, 0).In(loc).Format(timestampLayout)
}

// ParseTimestamp accepts the zone-qualified form written by FormatTimestamp,
// a bare integer (raw Unix seconds), a trailing "UTC" marker, or a zoneless
// datetime interpreted in the process-local zone.
func ParseTimestamp(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("%w: empty timestamp", ErrMalformedLine)
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n, nil
	}
	if t, err := time.Parse(timestampLayout, raw); err == nil {
		return t.Unix(), nil
	}
	if stripped, ok := strings.CutSuffix(raw, " UTC"); ok {
		if t, err := time.ParseInLocation("2006-01-02 15:04:05", stripped, time.UTC); err == nil {
			return t.Unix(), nil
		}
	}
	if t, err := time.ParseInLocation("2006-01-02 15:04:05", raw, time.Local); err == nil {
		return t.Unix(), nil
	}
	return 0, fmt.Errorf("%w: unparseable timestamp %q", ErrMalformedLine, raw)
}

// FormatLine renders one event as a log line, without the trailing newline.
func FormatLine(e Event, loc *time.Location) string {
	fields := make([]string, 0, 3+len(e.Args))
	fields = append(fields, FormatTimestamp(e.Timestamp, loc), string(e.Timer), e.Kind.Code())
	fields = append(fields, e.Args...)
	return strings.Join(fields, "\t")
}

// FormatLog renders the whole event list as newline-terminated lines.
func FormatLog(events []Event, loc *time.Location) []byte {
	var buf bytes.Buffer
	for _, e := range events {
		buf.WriteString(FormatLine(e, loc))
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// ParseLine decodes one log line into an Event.
func ParseLine(line string) (Event, error) {
	fields := strings.Split(line, "\t")
	if len(fields) < 3 {
		return Event{}, fmt.Errorf("%w: want at least 3 tab-separated fields, got %d", ErrMalformedLine, len(fields))
	}

	ts, err := ParseTimestamp(fields[0])
	if err != nil {
		return Event{}, err
	}
	if fields[1] == "" {
		return Event{}, fmt.Errorf("%w: empty timer key", ErrMalformedLine)
	}

	kind, ok := codeToKind[fields[2]]
	if !ok {
		return Event{}, fmt.Errorf("%w: %q", ErrUnknownCode, fields[2])
	}

	var args []string
	if len(fields) > 3 {
		args = fields[3:]
	}
	return Event{Timestamp: ts, Timer: ParseKey(fields[1]), Kind: kind, Args: args}, nil
}

// ParseLog reads every event line from r. Comment lines (leading #) and
// blank lines are skipped; the first unparseable line aborts the read, since
// a damaged log must not be silently half-loaded.
func ParseLog(r io.Reader) ([]Event, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 1024), 1024*1024)

	var events []Event
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		ev, err := ParseLine(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		events = append(events, ev)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan log: %w", err)
	}
	return events, nil
}
