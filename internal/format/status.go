package format

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/anne-gert/TimeKeeper/internal/event"
	"github.com/anne-gert/TimeKeeper/internal/storage"
)

// TimerStatus is one row of the status view.
type TimerStatus struct {
	Timer       event.TimerKey
	Running     bool
	Seconds     int64
	Description string
	GroupName   string
	GroupType   string
}

// StatusOptions configures status rendering.
type StatusOptions struct {
	Out           io.Writer
	OutFile       *os.File
	Format        string
	Wrap          int
	ForceColor    bool
	ForceNoColor  bool
	IncludeHeader bool
}

// WriteStatus renders per-timer state in the requested format.
func WriteStatus(items []TimerStatus, opts StatusOptions) error {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	switch strings.ToLower(opts.Format) {
	case "", "table":
		return writeStatusTable(items, opts)
	case "plain":
		return writeStatusPlain(items, opts)
	case "json":
		enc := json.NewEncoder(opts.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(items)
	case "jsonl":
		enc := json.NewEncoder(opts.Out)
		for _, item := range items {
			if err := enc.Encode(item); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("unsupported format: %s", opts.Format)
	}
}

func writeStatusPlain(items []TimerStatus, opts StatusOptions) error {
	if opts.IncludeHeader {
		if _, err := fmt.Fprintln(opts.Out, "timer\trunning\ttime\tdescription\tgroup\tgroup_type"); err != nil {
			return err
		}
	}
	for _, item := range items {
		marker := ""
		if item.Running {
			marker = "*"
		}
		line := fmt.Sprintf(
			"%s\t%s\t%s\t%s\t%s\t%s",
			item.Timer,
			marker,
			FormatDuration(item.Seconds),
			escapeText(item.Description),
			escapeText(item.GroupName),
			escapeText(item.GroupType),
		)
		if _, err := fmt.Fprintln(opts.Out, line); err != nil {
			return err
		}
	}
	return nil
}

func writeStatusTable(items []TimerStatus, opts StatusOptions) error {
	useColor := ResolveColor(opts.ForceColor, opts.ForceNoColor, opts.Out)

	tw := table.NewWriter()
	tw.SetOutputMirror(opts.Out)
	tw.SetStyle(table.StyleRounded)
	tw.Style().Options.SeparateHeader = true
	tw.Style().Options.DrawBorder = true
	tw.SetAllowedRowLength(Width(opts.OutFile, opts.Wrap))

	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight, AlignHeader: text.AlignCenter},
		{Number: 2, Align: text.AlignCenter, AlignHeader: text.AlignCenter},
		{Number: 3, Align: text.AlignRight, AlignHeader: text.AlignCenter},
		{Number: 4, Align: text.AlignLeft, AlignHeader: text.AlignCenter, WidthMax: 60},
		{Number: 5, Align: text.AlignLeft, AlignHeader: text.AlignCenter},
	})

	if opts.IncludeHeader {
		tw.AppendHeader(table.Row{"Timer", "Run", "Time", "Description", "Group"})
	}

	for _, item := range items {
		marker := ""
		if item.Running {
			marker = colorize(useColor, ansiRunning, "*")
		}
		group := item.GroupName
		if item.GroupType != "" {
			group = fmt.Sprintf("%s (%s)", item.GroupName, item.GroupType)
		}
		tw.AppendRow(table.Row{
			item.Timer,
			marker,
			FormatDuration(item.Seconds),
			Truncate(escapeText(item.Description), 60),
			group,
		})
	}

	if len(items) == 0 {
		tw.AppendRow(table.Row{"-", "", "00:00:00", "(no timers)", "-"})
	}

	_ = tw.Render()
	return nil
}

// WriteGroups renders the used (group name, group type) pairs.
func WriteGroups(w io.Writer, items []storage.Group, includeHeader bool, format string) error {
	switch strings.ToLower(format) {
	case "", "table":
		tw := table.NewWriter()
		tw.SetOutputMirror(w)
		tw.SetStyle(table.StyleRounded)
		if includeHeader {
			tw.AppendHeader(table.Row{"Group", "Type"})
		}
		for _, item := range items {
			tw.AppendRow(table.Row{item.Name, item.Type})
		}
		if len(items) == 0 {
			tw.AppendRow(table.Row{"(no groups)", "-"})
		}
		_ = tw.Render()
		return nil
	case "plain":
		if includeHeader {
			if _, err := fmt.Fprintln(w, "group\ttype"); err != nil {
				return err
			}
		}
		for _, item := range items {
			if _, err := fmt.Fprintf(w, "%s\t%s\n", escapeText(item.Name), escapeText(item.Type)); err != nil {
				return err
			}
		}
		return nil
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(items)
	case "jsonl":
		enc := json.NewEncoder(w)
		for _, item := range items {
			if err := enc.Encode(item); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

// TimerTotals pairs a timer's summed timeline periods with its live
// counter value.
type TimerTotals struct {
	Timer  event.TimerKey
	Period int64
	Live   int64
}

// WriteTotals renders per-timer totals in the requested format.
func WriteTotals(w io.Writer, items []TimerTotals, includeHeader bool, format string) error {
	switch strings.ToLower(format) {
	case "", "table":
		tw := table.NewWriter()
		tw.SetOutputMirror(w)
		tw.SetStyle(table.StyleRounded)
		tw.SetColumnConfigs([]table.ColumnConfig{
			{Number: 1, Align: text.AlignRight, AlignHeader: text.AlignCenter},
			{Number: 2, Align: text.AlignRight, AlignHeader: text.AlignCenter},
			{Number: 3, Align: text.AlignRight, AlignHeader: text.AlignCenter},
		})
		if includeHeader {
			tw.AppendHeader(table.Row{"Timer", "Period", "Live"})
		}
		for _, item := range items {
			tw.AppendRow(table.Row{item.Timer, FormatDuration(item.Period), FormatDuration(item.Live)})
		}
		if len(items) == 0 {
			tw.AppendRow(table.Row{"-", "00:00:00", "00:00:00"})
		}
		_ = tw.Render()
		return nil
	case "plain":
		if includeHeader {
			if _, err := fmt.Fprintln(w, "timer\tperiod\tlive"); err != nil {
				return err
			}
		}
		for _, item := range items {
			if _, err := fmt.Fprintf(w, "%s\t%s\t%s\n", item.Timer, FormatDuration(item.Period), FormatDuration(item.Live)); err != nil {
				return err
			}
		}
		return nil
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(items)
	case "jsonl":
		enc := json.NewEncoder(w)
		for _, item := range items {
			if err := enc.Encode(item); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}
