package main

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/anne-gert/TimeKeeper/internal/event"
	"github.com/anne-gert/TimeKeeper/internal/format"
	"github.com/anne-gert/TimeKeeper/internal/storage"

	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	var (
		formatFlag   string
		noHeader     bool
		wrap         int
		forceColor   bool
		forceNoColor bool
		changed      bool
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show every timer with its accumulated time and metadata",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, cfg, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()
			if err := st.Refresh(); err != nil {
				return err
			}

			if changed {
				for _, ch := range st.PeekChanged() {
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", ch.Timer, ch.Fields)
				}
				return nil
			}

			opts := format.StatusOptions{
				Out:           cmd.OutOrStdout(),
				Format:        formatFlag,
				Wrap:          wrap,
				ForceColor:    forceColor,
				ForceNoColor:  forceNoColor,
				IncludeHeader: !noHeader,
			}
			if f, ok := cmd.OutOrStdout().(*os.File); ok {
				opts.OutFile = f
			}
			return format.WriteStatus(statusRows(st, cfg.Timers), opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&formatFlag, "format", "table", "output format: table, plain, json, or jsonl")
	flags.BoolVar(&noHeader, "no-header", false, "omit the header row")
	flags.IntVar(&wrap, "wrap", 0, "wrap the table at this width (0 means terminal width)")
	flags.BoolVar(&forceColor, "color", false, "force colored output")
	flags.BoolVar(&forceNoColor, "no-color", false, "disable colored output")
	flags.BoolVar(&changed, "changed", false, "list timers with pending change notifications instead")
	return cmd
}

// statusRows collects the display state of the first count timers plus any
// other timer the log mentions, ordered by timer number.
func statusRows(st *storage.Store, count int) []format.TimerStatus {
	seen := make(map[event.TimerKey]bool, count)
	keys := make([]event.TimerKey, 0, count)
	for n := 0; n < count; n++ {
		key := event.Key(n)
		keys = append(keys, key)
		seen[key] = true
	}
	for _, key := range st.Keys() {
		if key.IsTimer() && !seen[key] {
			keys = append(keys, key)
			seen[key] = true
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		return event.CompareKeys(keys[i], keys[j]) < 0
	})

	rows := make([]format.TimerStatus, 0, len(keys))
	for _, key := range keys {
		name, groupType := st.Group(key)
		rows = append(rows, format.TimerStatus{
			Timer:       key,
			Running:     st.Running(key),
			Seconds:     st.CurrentTime(key),
			Description: st.Description(key),
			GroupName:   name,
			GroupType:   groupType,
		})
	}
	return rows
}

func newGroupsCmd() *cobra.Command {
	var (
		all        bool
		formatFlag string
		noHeader   bool
	)

	cmd := &cobra.Command{
		Use:   "groups",
		Short: "List the groups timers are assigned to",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, _, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()
			if err := st.Refresh(); err != nil {
				return err
			}
			return format.WriteGroups(cmd.OutOrStdout(), st.UsedGroups(all), !noHeader, formatFlag)
		},
	}

	flags := cmd.Flags()
	flags.BoolVar(&all, "all", false, "include groups no timer currently uses")
	flags.StringVar(&formatFlag, "format", "table", "output format: table, plain, json, or jsonl")
	flags.BoolVar(&noHeader, "no-header", false, "omit the header row")
	return cmd
}

func newExtraCmd() *cobra.Command {
	var (
		fromStr    string
		toStr      string
		formatFlag string
		noHeader   bool
	)

	cmd := &cobra.Command{
		Use:   "extra <key> <name>",
		Short: "Show the extra-info samples recorded on a key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			from, err := parseAt(fromStr)
			if err != nil {
				return fmt.Errorf("invalid --from value: %w", err)
			}
			to, err := parseAt(toStr)
			if err != nil {
				return fmt.Errorf("invalid --to value: %w", err)
			}
			st, _, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()
			if err := st.Refresh(); err != nil {
				return err
			}
			samples := st.Extra(event.ParseKey(args[0]), args[1], from, to)
			return format.WriteExtras(cmd.OutOrStdout(), samples, time.Local, !noHeader, formatFlag)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&fromStr, "from", "", "drop samples before this time")
	flags.StringVar(&toStr, "to", "", "drop samples after this time")
	flags.StringVar(&formatFlag, "format", "table", "output format: table, plain, json, or jsonl")
	flags.BoolVar(&noHeader, "no-header", false, "omit the header row")
	return cmd
}

func newLogCmd() *cobra.Command {
	var (
		limit      int
		formatFlag string
		noHeader   bool
	)

	cmd := &cobra.Command{
		Use:   "log",
		Short: "Dump the event log in canonical order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, _, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()
			if err := st.Refresh(); err != nil {
				return err
			}
			events := tailEvents(st.Events(), limit)
			return format.WriteEvents(cmd.OutOrStdout(), events, time.Local, !noHeader, formatFlag)
		},
	}

	flags := cmd.Flags()
	flags.IntVar(&limit, "limit", 0, "show only the last N events (0 means all)")
	flags.StringVar(&formatFlag, "format", "table", "output format: table, plain, json, or jsonl")
	flags.BoolVar(&noHeader, "no-header", false, "omit the header row")
	return cmd
}

// tailEvents returns the last limit events, or all of them when limit is
// not positive.
func tailEvents(events []event.Event, limit int) []event.Event {
	if limit <= 0 || len(events) <= limit {
		return events
	}
	return events[len(events)-limit:]
}
