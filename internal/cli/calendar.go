package cli

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/naptrack/internal/calendar"
	"github.com/roach88/naptrack/internal/gateway"
)

// NewCalendarCommand creates the calendar command.
func NewCalendarCommand(opts *RootOptions) *cobra.Command {
	var (
		from     string
		to       string
		days     int
		upcoming bool
	)

	cmd := &cobra.Command{
		Use:   "calendar <child-uid>",
		Short: "Show a child's events in a time window",
		Long: `Show a child's events in a time window, rendered calendar-style.

Windows not yet mirrored locally are backfilled from the remote first.
Defaults to the last day; --days widens the window, --from/--to
(RFC3339) pin it exactly. With --upcoming, prints only the next event
starting after now.

Example:
  naptrack calendar mia --days 7
  naptrack calendar mia --from 2026-08-20T00:00:00Z --to 2026-08-21T00:00:00Z
  naptrack calendar mia --upcoming`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			window, err := resolveWindow(from, to, days)
			if err != nil {
				return err
			}
			return showCalendar(opts, cmd, args[0], window, upcoming)
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "window start (RFC3339)")
	cmd.Flags().StringVar(&to, "to", "", "window end (RFC3339)")
	cmd.Flags().IntVar(&days, "days", 1, "window length in days, ending now")
	cmd.Flags().BoolVar(&upcoming, "upcoming", false, "show only the next upcoming event")

	return cmd
}

type timeWindow struct {
	From time.Time
	To   time.Time
}

// resolveWindow turns the flag combination into a concrete [from, to)
// window. --from/--to must come as a pair; otherwise --days counts back
// from now.
func resolveWindow(from, to string, days int) (timeWindow, error) {
	if (from == "") != (to == "") {
		return timeWindow{}, NewExitError(ExitCommandError, "--from and --to must be given together")
	}

	if from != "" {
		f, err := time.Parse(time.RFC3339, from)
		if err != nil {
			return timeWindow{}, NewExitError(ExitCommandError, fmt.Sprintf("invalid --from %q: want RFC3339", from))
		}
		t, err := time.Parse(time.RFC3339, to)
		if err != nil {
			return timeWindow{}, NewExitError(ExitCommandError, fmt.Sprintf("invalid --to %q: want RFC3339", to))
		}
		if !t.After(f) {
			return timeWindow{}, NewExitError(ExitCommandError, "--to must be after --from")
		}
		return timeWindow{From: f, To: t}, nil
	}

	if days <= 0 {
		return timeWindow{}, NewExitError(ExitCommandError, "--days must be positive")
	}
	now := time.Now()
	return timeWindow{From: now.AddDate(0, 0, -days), To: now}, nil
}

func showCalendar(opts *RootOptions, cmd *cobra.Command, childUID string, w timeWindow, upcoming bool) error {
	out := formatter(opts, cmd)

	return withSession(opts, cmd, func(ctx context.Context, s *session) error {
		gw := opts.Gateway
		if gw == nil {
			gw = gateway.Unavailable{}
		}
		cache := calendar.New(s.store, gw, slog.Default())
		cache.SetTimeout(s.cfg.RemoteTimeout.Std())

		if upcoming {
			next, err := cache.NextUpcoming(ctx, childUID, time.Now(), w.To.Sub(w.From))
			if err != nil {
				return out.Error(err)
			}
			if next == nil {
				if opts.Format == "json" {
					return out.Success(nil)
				}
				fmt.Fprintln(out.Writer, "No upcoming events.")
				return nil
			}
			r := calendar.Render(*next)
			if opts.Format == "json" {
				return out.Success(r)
			}
			printRendered(out, r)
			return nil
		}

		evs, err := cache.EventsInRange(ctx, childUID, w.From, w.To)
		if err != nil {
			return out.Error(err)
		}

		rendered := calendar.RenderAll(evs)
		if opts.Format == "json" {
			return out.Success(rendered)
		}

		if len(rendered) == 0 {
			fmt.Fprintln(out.Writer, "No events in window.")
			return nil
		}
		for _, r := range rendered {
			printRendered(out, r)
		}
		return nil
	})
}

func printRendered(out *OutputFormatter, r calendar.RenderedEvent) {
	start := r.Start.Local().Format("Jan 2 15:04")
	if r.End.After(r.Start) {
		fmt.Fprintf(out.Writer, "%s - %s  %s\n", start, r.End.Local().Format("15:04"), r.Summary)
		return
	}
	fmt.Fprintf(out.Writer, "%s          %s\n", start, r.Summary)
}
