package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/anne-gert/TimeKeeper/internal/event"
	"github.com/anne-gert/TimeKeeper/internal/format"

	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	var at string

	cmd := &cobra.Command{
		Use:   "run <timer>",
		Short: "Start a timer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			timer, err := parseTimer(args[0])
			if err != nil {
				return err
			}
			ts, err := parseAt(at)
			if err != nil {
				return err
			}
			st, _, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()
			return st.Run(timer, ts)
		},
	}

	cmd.Flags().StringVar(&at, "at", "", "event time (default: now)")
	return cmd
}

func newPauseCmd() *cobra.Command {
	var (
		at  string
		all bool
	)

	cmd := &cobra.Command{
		Use:   "pause [<timer>]",
		Short: "Pause a timer, or every running timer",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if all && len(args) > 0 {
				return errors.New("--all cannot be combined with a timer argument")
			}
			if !all && len(args) == 0 {
				return errors.New("pause needs a timer argument or --all")
			}
			ts, err := parseAt(at)
			if err != nil {
				return err
			}
			st, _, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()
			if all {
				return st.PauseAll(ts)
			}
			timer, err := parseTimer(args[0])
			if err != nil {
				return err
			}
			return st.Pause(timer, ts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&at, "at", "", "event time (default: now)")
	flags.BoolVar(&all, "all", false, "pause every running timer")
	return cmd
}

func newSetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Set absolute timer state",
	}
	cmd.AddCommand(newSetTimeCmd())
	cmd.AddCommand(newSetDescriptionCmd())
	cmd.AddCommand(newSetGroupCmd())
	cmd.AddCommand(newSetExtraCmd())
	return cmd
}

func newSetTimeCmd() *cobra.Command {
	var at string

	cmd := &cobra.Command{
		Use:   "time <value> <timer> [<timer>...]",
		Short: "Set the accumulated time of one or more timers",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			seconds, err := parseSeconds(args[0])
			if err != nil {
				return err
			}
			timers := make([]event.TimerKey, 0, len(args)-1)
			for _, arg := range args[1:] {
				timer, err := parseTimer(arg)
				if err != nil {
					return err
				}
				timers = append(timers, timer)
			}
			ts, err := parseAt(at)
			if err != nil {
				return err
			}
			st, _, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()
			return st.SetTime(timers, seconds, ts)
		},
	}

	cmd.Flags().StringVar(&at, "at", "", "event time (default: now)")
	return cmd
}

func newSetDescriptionCmd() *cobra.Command {
	var at string

	cmd := &cobra.Command{
		Use:     "description <timer> [<text>...]",
		Aliases: []string{"desc"},
		Short:   "Set the text shown next to a timer (no text clears it)",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			timer, err := parseTimer(args[0])
			if err != nil {
				return err
			}
			ts, err := parseAt(at)
			if err != nil {
				return err
			}
			st, _, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()
			return st.SetDescription(timer, strings.Join(args[1:], " "), ts)
		},
	}

	cmd.Flags().StringVar(&at, "at", "", "event time (default: now)")
	return cmd
}

func newSetGroupCmd() *cobra.Command {
	var at string

	cmd := &cobra.Command{
		Use:   "group <timer> [<name> [<type>]]",
		Short: "Assign a timer to a group (no name clears the assignment)",
		Args:  cobra.RangeArgs(1, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			timer, err := parseTimer(args[0])
			if err != nil {
				return err
			}
			var name, groupType string
			if len(args) > 1 {
				name = args[1]
			}
			if len(args) > 2 {
				groupType = args[2]
			}
			ts, err := parseAt(at)
			if err != nil {
				return err
			}
			st, _, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()
			return st.SetGroup(timer, name, groupType, ts)
		},
	}

	cmd.Flags().StringVar(&at, "at", "", "event time (default: now)")
	return cmd
}

func newSetExtraCmd() *cobra.Command {
	var at string

	cmd := &cobra.Command{
		Use:   "extra <key> <name> <value>",
		Short: "Record a named extra-info sample on a key",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ts, err := parseAt(at)
			if err != nil {
				return err
			}
			st, _, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()
			return st.SetExtra(event.ParseKey(args[0]), args[1], args[2], ts)
		},
	}

	cmd.Flags().StringVar(&at, "at", "", "event time (default: now)")
	return cmd
}

func newAddCmd() *cobra.Command {
	var at string

	cmd := &cobra.Command{
		Use:   "add <timer> <delta>",
		Short: "Add time to a timer (a negative delta subtracts)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			timer, err := parseTimer(args[0])
			if err != nil {
				return err
			}
			delta, err := parseSeconds(args[1])
			if err != nil {
				return err
			}
			ts, err := parseAt(at)
			if err != nil {
				return err
			}
			st, _, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()
			value, err := st.IncreaseTime(timer, delta, ts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "timer %s: %s\n", timer, format.FormatDuration(value))
			return nil
		},
	}

	cmd.Flags().StringVar(&at, "at", "", "event time (default: now)")
	return cmd
}

func newTransferCmd() *cobra.Command {
	var at string

	cmd := &cobra.Command{
		Use:   "transfer <from> <to> <delta>",
		Short: "Move time from one timer to another",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			from, err := parseTimer(args[0])
			if err != nil {
				return err
			}
			to, err := parseTimer(args[1])
			if err != nil {
				return err
			}
			delta, err := parseSeconds(args[2])
			if err != nil {
				return err
			}
			ts, err := parseAt(at)
			if err != nil {
				return err
			}
			st, _, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()
			fromValue, toValue, err := st.TransferTime(from, to, delta, ts)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "timer %s: %s\n", from, format.FormatDuration(fromValue))
			fmt.Fprintf(out, "timer %s: %s\n", to, format.FormatDuration(toValue))
			return nil
		},
	}

	cmd.Flags().StringVar(&at, "at", "", "event time (default: now)")
	return cmd
}

func newBatchCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Apply run and pause lines in log format from stdin or a file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			in := cmd.InOrStdin()
			if file != "" {
				f, err := os.Open(file)
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			batch, err := event.ParseLog(in)
			if err != nil {
				return err
			}
			if len(batch) == 0 {
				return nil
			}
			st, _, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()
			return st.ApplyRunPauseBatch(batch)
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "read lines from this file instead of stdin")
	return cmd
}
