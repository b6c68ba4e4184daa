package format

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/anne-gert/TimeKeeper/internal/timeline"
)

// WritePeriods renders timeline periods in the requested format. JSON
// modes carry the raw Unix bounds; table and plain render them in loc.
func WritePeriods(w io.Writer, periods []timeline.Period, loc *time.Location, includeHeader bool, format string) error {
	switch strings.ToLower(format) {
	case "", "table":
		return writePeriodsTable(w, periods, loc, includeHeader)
	case "plain":
		if includeHeader {
			if _, err := fmt.Fprintln(w, "start\tend\tduration\ttimer"); err != nil {
				return err
			}
		}
		for _, p := range periods {
			line := fmt.Sprintf(
				"%s\t%s\t%s\t%s",
				FormatTimestamp(p.Start, loc),
				FormatTimestamp(p.End, loc),
				FormatDuration(p.Duration()),
				p.Timer,
			)
			if _, err := fmt.Fprintln(w, line); err != nil {
				return err
			}
		}
		return nil
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(periods)
	case "jsonl":
		enc := json.NewEncoder(w)
		for _, p := range periods {
			if err := enc.Encode(p); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

func writePeriodsTable(w io.Writer, periods []timeline.Period, loc *time.Location, includeHeader bool) error {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleRounded)

	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignLeft, AlignHeader: text.AlignCenter},
		{Number: 2, Align: text.AlignLeft, AlignHeader: text.AlignCenter},
		{Number: 3, Align: text.AlignRight, AlignHeader: text.AlignCenter},
		{Number: 4, Align: text.AlignRight, AlignHeader: text.AlignCenter},
	})

	if includeHeader {
		tw.AppendHeader(table.Row{"Start", "End", "Duration", "Timer"})
	}
	for _, p := range periods {
		tw.AppendRow(table.Row{
			FormatTimestamp(p.Start, loc),
			FormatTimestamp(p.End, loc),
			FormatDuration(p.Duration()),
			p.Timer,
		})
	}
	if len(periods) == 0 {
		tw.AppendRow(table.Row{"-", "-", "00:00:00", "(no periods)"})
	}
	_ = tw.Render()
	return nil
}
