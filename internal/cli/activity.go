package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/naptrack/internal/engine"
	"github.com/roach88/naptrack/internal/event"
)

// actionResult is the presentation of one applied dispatcher action.
type actionResult struct {
	Action  string `json:"action"`
	Child   string `json:"child"`
	EventID string `json:"event_id"`
	Status  string `json:"status"`
}

// sessionOp runs one dispatcher operation inside a session and renders
// its outcome. All activity subcommands share this shape.
func sessionOp(opts *RootOptions, cmd *cobra.Command, action, childUID string,
	op func(ctx context.Context, e *engine.Engine) (event.Event, error)) error {

	out := formatter(opts, cmd)
	return withSession(opts, cmd, func(ctx context.Context, s *session) error {
		ev, err := op(ctx, s.engine)
		if err != nil {
			return out.Error(err)
		}

		res := actionResult{
			Action:  action,
			Child:   childUID,
			EventID: ev.ID,
			Status:  string(ev.Status),
		}
		if opts.Format == "json" {
			return out.Success(res)
		}
		fmt.Fprintf(out.Writer, "%s: %s (event %s)\n", res.Action, res.Status, res.EventID)
		return nil
	})
}

// parseAt parses the optional --at flag; empty means "now".
func parseAt(at string) (time.Time, error) {
	if at == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, at)
	if err != nil {
		return time.Time{}, NewExitError(ExitCommandError,
			fmt.Sprintf("invalid --at %q: want RFC3339, e.g. 2026-08-25T14:30:00Z", at))
	}
	return t, nil
}

// NewSleepCommand creates the sleep command group.
func NewSleepCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sleep",
		Short: "Drive a child's sleep session",
	}

	cmd.AddCommand(&cobra.Command{
		Use:           "start <child-uid>",
		Short:         "Start a sleep session",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return sessionOp(opts, cmd, "sleep start", args[0],
				func(ctx context.Context, e *engine.Engine) (event.Event, error) {
					return e.StartSleep(ctx, args[0])
				})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:           "pause <child-uid>",
		Short:         "Pause the in-progress sleep session",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return sessionOp(opts, cmd, "sleep pause", args[0],
				func(ctx context.Context, e *engine.Engine) (event.Event, error) {
					return e.PauseSleep(ctx, args[0])
				})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:           "resume <child-uid>",
		Short:         "Resume the paused sleep session",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return sessionOp(opts, cmd, "sleep resume", args[0],
				func(ctx context.Context, e *engine.Engine) (event.Event, error) {
					return e.ResumeSleep(ctx, args[0])
				})
		},
	})

	var completeAt string
	complete := &cobra.Command{
		Use:           "complete <child-uid>",
		Short:         "End the current sleep session",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			at, err := parseAt(completeAt)
			if err != nil {
				return err
			}
			return sessionOp(opts, cmd, "sleep complete", args[0],
				func(ctx context.Context, e *engine.Engine) (event.Event, error) {
					return e.CompleteSleep(ctx, args[0], at)
				})
		},
	}
	complete.Flags().StringVar(&completeAt, "at", "", "end time (RFC3339, default now)")
	cmd.AddCommand(complete)

	cmd.AddCommand(&cobra.Command{
		Use:           "cancel <child-uid>",
		Short:         "Discard the current sleep session",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return sessionOp(opts, cmd, "sleep cancel", args[0],
				func(ctx context.Context, e *engine.Engine) (event.Event, error) {
					return e.CancelSleep(ctx, args[0])
				})
		},
	})

	return cmd
}

// NewFeedCommand creates the feed command group.
func NewFeedCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "feed",
		Short: "Drive a child's feeding session",
	}

	var side string
	start := &cobra.Command{
		Use:           "start <child-uid>",
		Short:         "Start a nursing session",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s := event.Side(side)
			if s != event.SideLeft && s != event.SideRight {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid --side %q: want left or right", side))
			}
			return sessionOp(opts, cmd, "feed start", args[0],
				func(ctx context.Context, e *engine.Engine) (event.Event, error) {
					return e.StartFeeding(ctx, args[0], s)
				})
		},
	}
	start.Flags().StringVar(&side, "side", "left", "nursing side (left|right)")
	cmd.AddCommand(start)

	cmd.AddCommand(&cobra.Command{
		Use:           "pause <child-uid>",
		Short:         "Pause the in-progress feeding session",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return sessionOp(opts, cmd, "feed pause", args[0],
				func(ctx context.Context, e *engine.Engine) (event.Event, error) {
					return e.PauseFeeding(ctx, args[0])
				})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:           "resume <child-uid>",
		Short:         "Resume the paused feeding session",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return sessionOp(opts, cmd, "feed resume", args[0],
				func(ctx context.Context, e *engine.Engine) (event.Event, error) {
					return e.ResumeFeeding(ctx, args[0])
				})
		},
	})

	var completeAt string
	complete := &cobra.Command{
		Use:           "complete <child-uid>",
		Short:         "End the current feeding session",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			at, err := parseAt(completeAt)
			if err != nil {
				return err
			}
			return sessionOp(opts, cmd, "feed complete", args[0],
				func(ctx context.Context, e *engine.Engine) (event.Event, error) {
					return e.CompleteFeeding(ctx, args[0], at)
				})
		},
	}
	complete.Flags().StringVar(&completeAt, "at", "", "end time (RFC3339, default now)")
	cmd.AddCommand(complete)

	cmd.AddCommand(&cobra.Command{
		Use:           "cancel <child-uid>",
		Short:         "Discard the current feeding session",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return sessionOp(opts, cmd, "feed cancel", args[0],
				func(ctx context.Context, e *engine.Engine) (event.Event, error) {
					return e.CancelFeeding(ctx, args[0])
				})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:           "side <child-uid>",
		Short:         "Switch the nursing side of the in-progress session",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return sessionOp(opts, cmd, "feed side", args[0],
				func(ctx context.Context, e *engine.Engine) (event.Event, error) {
					return e.SwitchSide(ctx, args[0])
				})
		},
	})

	return cmd
}
