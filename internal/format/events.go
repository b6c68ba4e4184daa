package format

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/anne-gert/TimeKeeper/internal/event"
	"github.com/anne-gert/TimeKeeper/internal/replay"
)

// EventRow is the JSON shape of one parsed log line.
type EventRow struct {
	Time  string
	Unix  int64
	Timer string
	Code  string
	Kind  string
	Args  []string
}

func eventRows(events []event.Event, loc *time.Location) []EventRow {
	rows := make([]EventRow, 0, len(events))
	for _, ev := range events {
		rows = append(rows, EventRow{
			Time:  FormatTimestamp(ev.Timestamp, loc),
			Unix:  ev.Timestamp,
			Timer: string(ev.Timer),
			Code:  ev.Kind.Code(),
			Kind:  ev.Kind.String(),
			Args:  ev.Args,
		})
	}
	return rows
}

// WriteEvents renders parsed log events in the requested format. Plain
// mode emits the on-disk line format itself.
func WriteEvents(w io.Writer, events []event.Event, loc *time.Location, includeHeader bool, format string) error {
	switch strings.ToLower(format) {
	case "", "table":
		return writeEventsTable(w, events, loc, includeHeader)
	case "plain":
		for _, ev := range events {
			if _, err := fmt.Fprintln(w, event.FormatLine(ev, loc)); err != nil {
				return err
			}
		}
		return nil
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(eventRows(events, loc))
	case "jsonl":
		enc := json.NewEncoder(w)
		for _, row := range eventRows(events, loc) {
			if err := enc.Encode(row); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

func writeEventsTable(w io.Writer, events []event.Event, loc *time.Location, includeHeader bool) error {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleRounded)

	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignLeft, AlignHeader: text.AlignCenter},
		{Number: 2, Align: text.AlignRight, AlignHeader: text.AlignCenter},
		{Number: 3, Align: text.AlignLeft, AlignHeader: text.AlignCenter},
		{Number: 4, Align: text.AlignLeft, AlignHeader: text.AlignCenter, WidthMax: 60},
	})

	if includeHeader {
		tw.AppendHeader(table.Row{"Time", "Timer", "Event", "Args"})
	}
	for _, ev := range events {
		tw.AppendRow(table.Row{
			FormatTimestamp(ev.Timestamp, loc),
			ev.Timer,
			ev.Kind.String(),
			Truncate(escapeText(strings.Join(ev.Args, " ")), 60),
		})
	}
	if len(events) == 0 {
		tw.AppendRow(table.Row{"-", "-", "(no events)", "-"})
	}
	_ = tw.Render()
	return nil
}

// ExtraRow is the JSON shape of one extra-info sample.
type ExtraRow struct {
	Time  string
	Unix  int64
	Value string
}

// WriteExtras renders extra-info samples in the requested format.
func WriteExtras(w io.Writer, samples []replay.ExtraSample, loc *time.Location, includeHeader bool, format string) error {
	rows := make([]ExtraRow, 0, len(samples))
	for _, s := range samples {
		rows = append(rows, ExtraRow{Time: FormatTimestamp(s.Timestamp, loc), Unix: s.Timestamp, Value: s.Value})
	}

	switch strings.ToLower(format) {
	case "", "table":
		tw := table.NewWriter()
		tw.SetOutputMirror(w)
		tw.SetStyle(table.StyleRounded)
		if includeHeader {
			tw.AppendHeader(table.Row{"Time", "Value"})
		}
		for _, row := range rows {
			tw.AppendRow(table.Row{row.Time, Truncate(escapeText(row.Value), 60)})
		}
		if len(rows) == 0 {
			tw.AppendRow(table.Row{"-", "(no samples)"})
		}
		_ = tw.Render()
		return nil
	case "plain":
		if includeHeader {
			if _, err := fmt.Fprintln(w, "time\tvalue"); err != nil {
				return err
			}
		}
		for _, row := range rows {
			if _, err := fmt.Fprintf(w, "%s\t%s\n", row.Time, escapeText(row.Value)); err != nil {
				return err
			}
		}
		return nil
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	case "jsonl":
		enc := json.NewEncoder(w)
		for _, row := range rows {
			if err := enc.Encode(row); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}
