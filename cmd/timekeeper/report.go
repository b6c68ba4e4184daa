package main

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/anne-gert/TimeKeeper/internal/config"
	"github.com/anne-gert/TimeKeeper/internal/event"
	"github.com/anne-gert/TimeKeeper/internal/export"
	"github.com/anne-gert/TimeKeeper/internal/format"
	"github.com/anne-gert/TimeKeeper/internal/timeline"

	"github.com/spf13/cobra"
)

// timelineFlags carries the cleanup knobs shared by the timeline, report
// and export commands. Negative numbers keep the configured value.
type timelineFlags struct {
	raw           bool
	minGap        int64
	minPeriod     int64
	round         int64
	drop          string
	splitMidnight bool
}

func addTimelineFlags(cmd *cobra.Command, tf *timelineFlags) {
	flags := cmd.Flags()
	flags.BoolVar(&tf.raw, "raw", false, "skip the cleanup pass entirely")
	flags.Int64Var(&tf.minGap, "min-gap", -1, "close gaps shorter than this many seconds (-1 means the configured value)")
	flags.Int64Var(&tf.minPeriod, "min-period", -1, "drop periods shorter than this many seconds (-1 means the configured value)")
	flags.Int64Var(&tf.round, "round", -1, "round period boundaries to this many seconds (-1 means the configured value)")
	flags.StringVar(&tf.drop, "drop", "", "comma separated timers to leave out (default: the rest timer; \"none\" keeps all)")
	flags.BoolVar(&tf.splitMidnight, "split-midnight", true, "split periods crossing local midnight")
}

func (tf timelineFlags) options(cfg config.Config) (timeline.Options, error) {
	opts := timeline.Options{
		Cleanup:       !tf.raw,
		MinGap:        cfg.Timeline.MinGap,
		MinPeriod:     cfg.Timeline.MinPeriod,
		Round:         cfg.Timeline.Round,
		SplitMidnight: tf.splitMidnight,
	}
	if tf.minGap >= 0 {
		opts.MinGap = tf.minGap
	}
	if tf.minPeriod >= 0 {
		opts.MinPeriod = tf.minPeriod
	}
	if tf.round >= 0 {
		opts.Round = tf.round
	}
	switch tf.drop {
	case "":
		opts.DropTimers = []event.TimerKey{event.Key(cfg.RestTimer)}
	case "none":
	default:
		timers, err := parseTimerList(tf.drop)
		if err != nil {
			return opts, err
		}
		opts.DropTimers = timers
	}
	return opts, nil
}

func newTimelineCmd() *cobra.Command {
	var (
		tf         timelineFlags
		formatFlag string
		noHeader   bool
	)

	cmd := &cobra.Command{
		Use:   "timeline",
		Short: "Derive the non-overlapping timeline from the event log",
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
			opts, err := tf.options(cfg)
			if err != nil {
				return err
			}
			periods, err := st.Timeline(opts)
			if err != nil {
				return err
			}
			return format.WritePeriods(cmd.OutOrStdout(), periods, time.Local, !noHeader, formatFlag)
		},
	}

	addTimelineFlags(cmd, &tf)
	flags := cmd.Flags()
	flags.StringVar(&formatFlag, "format", "table", "output format: table, plain, json, or jsonl")
	flags.BoolVar(&noHeader, "no-header", false, "omit the header row")
	return cmd
}

func newReportCmd() *cobra.Command {
	var (
		tf         timelineFlags
		day        bool
		week       bool
		all        bool
		formatFlag string
		noHeader   bool
	)

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Sum timeline periods per timer, next to the live counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			picked := 0
			for _, f := range []bool{day, week, all} {
				if f {
					picked++
				}
			}
			if picked > 1 {
				return errors.New("--day, --week and --all are mutually exclusive")
			}

			st, cfg, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()
			if err := st.Refresh(); err != nil {
				return err
			}
			opts, err := tf.options(cfg)
			if err != nil {
				return err
			}
			periods, err := st.Timeline(opts)
			if err != nil {
				return err
			}
			if !all {
				periods = clipPeriods(periods, windowStart(time.Now(), week))
			}

			totals := st.TimelineTotals(periods)
			items := make([]format.TimerTotals, 0, len(totals))
			for timer, tot := range totals {
				items = append(items, format.TimerTotals{Timer: timer, Period: tot.Period, Live: tot.Live})
			}
			sort.Slice(items, func(i, j int) bool {
				return event.CompareKeys(items[i].Timer, items[j].Timer) < 0
			})
			return format.WriteTotals(cmd.OutOrStdout(), items, !noHeader, formatFlag)
		},
	}

	addTimelineFlags(cmd, &tf)
	flags := cmd.Flags()
	flags.BoolVar(&day, "day", false, "restrict to periods from today (the default)")
	flags.BoolVar(&week, "week", false, "restrict to periods from the current week")
	flags.BoolVar(&all, "all", false, "include the whole history")
	flags.StringVar(&formatFlag, "format", "table", "output format: table, plain, json, or jsonl")
	flags.BoolVar(&noHeader, "no-header", false, "omit the header row")
	return cmd
}

// windowStart returns local midnight of today, or of the most recent
// Monday when week is set.
func windowStart(now time.Time, week bool) int64 {
	now = now.Local()
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.Local)
	if week {
		back := (int(start.Weekday()) + 6) % 7
		start = start.AddDate(0, 0, -back)
	}
	return start.Unix()
}

// clipPeriods keeps the part of each period that falls on or after from.
func clipPeriods(periods []timeline.Period, from int64) []timeline.Period {
	out := make([]timeline.Period, 0, len(periods))
	for _, p := range periods {
		if p.Start < from && p.End <= from {
			continue
		}
		if p.Start < from {
			p.Start = from
		}
		out = append(out, p)
	}
	return out
}

func newExportCmd() *cobra.Command {
	var (
		tf         timelineFlags
		formatFlag string
		outPath    string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the timeline as CSV or into a SQLite database",
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
			opts, err := tf.options(cfg)
			if err != nil {
				return err
			}
			periods, err := st.Timeline(opts)
			if err != nil {
				return err
			}

			switch strings.ToLower(formatFlag) {
			case "", "csv":
				if outPath == "" {
					return export.CSV(cmd.OutOrStdout(), periods, time.Local)
				}
				f, err := os.Create(outPath)
				if err != nil {
					return err
				}
				if err := export.CSV(f, periods, time.Local); err != nil {
					f.Close()
					return err
				}
				return f.Close()
			case "sqlite":
				if outPath == "" {
					return errors.New("--format sqlite needs --out")
				}
				return export.SQLite(outPath, periods, time.Local)
			default:
				return fmt.Errorf("unsupported format: %s", formatFlag)
			}
		},
	}

	addTimelineFlags(cmd, &tf)
	flags := cmd.Flags()
	flags.StringVar(&formatFlag, "format", "csv", "export format: csv or sqlite")
	flags.StringVar(&outPath, "out", "", "output file (csv defaults to stdout)")
	return cmd
}
