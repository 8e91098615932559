package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/naptrack/internal/calendar"
	"github.com/roach88/naptrack/internal/event"
)

// activityView is the status presentation of one session-shaped kind.
type activityView struct {
	Status  string     `json:"status"`
	EventID string     `json:"event_id,omitempty"`
	Since   *time.Time `json:"since,omitempty"`
}

// loggedView is the status presentation of a child's last logged event.
type loggedView struct {
	EventID string    `json:"event_id"`
	Summary string    `json:"summary"`
	At      time.Time `json:"at"`
}

// childStatus is the full status presentation of one child.
type childStatus struct {
	UID     string       `json:"uid"`
	Name    string       `json:"name"`
	Sleep   activityView `json:"sleep"`
	Feeding activityView `json:"feeding"`

	LastSleep  *loggedView `json:"last_sleep,omitempty"`
	LastFeed   *loggedView `json:"last_feed,omitempty"`
	LastDiaper *loggedView `json:"last_diaper,omitempty"`
	LastGrowth *loggedView `json:"last_growth,omitempty"`
}

// statusReport is the full status payload: per-child views plus mirror-wide
// stored event counts.
type statusReport struct {
	Children []childStatus      `json:"children"`
	Stored   map[event.Kind]int `json:"stored_events,omitempty"`
}

// NewStatusCommand creates the status command.
func NewStatusCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show per-child activity and last logged events",
		Long: `Show the current activity state and last logged event per kind for
every known child, from the local mirror.

Example:
  naptrack status
  naptrack status --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return showStatus(opts, cmd)
		},
	}

	return cmd
}

func showStatus(opts *RootOptions, cmd *cobra.Command) error {
	out := formatter(opts, cmd)

	return withSession(opts, cmd, func(ctx context.Context, s *session) error {
		children, err := s.engine.Children(ctx)
		if err != nil {
			return out.Error(err)
		}

		statuses := make([]childStatus, 0, len(children))
		for _, c := range children {
			cs, err := childStatusOf(ctx, s, c)
			if err != nil {
				return out.Error(err)
			}
			statuses = append(statuses, cs)
		}

		stats, err := s.store.Stats(ctx)
		if err != nil {
			return out.Error(err)
		}

		if opts.Format == "json" {
			return out.Success(statusReport{Children: statuses, Stored: stats})
		}

		if len(statuses) == 0 {
			fmt.Fprintln(out.Writer, "No children known. Run `naptrack resync` first.")
			return nil
		}
		for _, cs := range statuses {
			printChildStatus(out, cs)
		}
		printStats(out, stats)
		return nil
	})
}

func childStatusOf(ctx context.Context, s *session, c event.Child) (childStatus, error) {
	cs := childStatus{UID: c.UID, Name: c.Name}

	var err error
	if cs.Sleep, err = activityViewOf(ctx, s, c.UID, event.KindSleep); err != nil {
		return cs, err
	}
	if cs.Feeding, err = activityViewOf(ctx, s, c.UID, event.KindFeeding); err != nil {
		return cs, err
	}

	if cs.LastSleep, err = loggedViewOf(ctx, s, c.UID, event.KindSleep); err != nil {
		return cs, err
	}
	if cs.LastFeed, err = loggedViewOf(ctx, s, c.UID, event.KindFeeding); err != nil {
		return cs, err
	}
	if cs.LastDiaper, err = loggedViewOf(ctx, s, c.UID, event.KindDiaper); err != nil {
		return cs, err
	}
	if cs.LastGrowth, err = loggedViewOf(ctx, s, c.UID, event.KindGrowth); err != nil {
		return cs, err
	}
	return cs, nil
}

// activityViewOf derives the activity view from the stored active
// session, the same source the engine reconciles from.
func activityViewOf(ctx context.Context, s *session, childUID string, kind event.Kind) (activityView, error) {
	active, err := s.store.ActiveSession(ctx, childUID, kind)
	if err != nil {
		return activityView{}, err
	}
	if active == nil {
		return activityView{Status: "none"}, nil
	}

	status := "active"
	if active.Status == event.StatusPaused {
		status = "paused"
	}
	since := active.Start
	return activityView{Status: status, EventID: active.ID, Since: &since}, nil
}

func loggedViewOf(ctx context.Context, s *session, childUID string, kind event.Kind) (*loggedView, error) {
	last, err := s.engine.LastLogged(ctx, childUID, kind)
	if err != nil || last == nil {
		return nil, err
	}
	return &loggedView{
		EventID: last.ID,
		Summary: calendar.Render(*last).Summary,
		At:      last.EffectiveEnd(),
	}, nil
}

func printChildStatus(out *OutputFormatter, cs childStatus) {
	fmt.Fprintf(out.Writer, "%s (%s)\n", cs.Name, cs.UID)
	fmt.Fprintf(out.Writer, "  sleep:   %s\n", renderActivity(cs.Sleep))
	fmt.Fprintf(out.Writer, "  feeding: %s\n", renderActivity(cs.Feeding))

	printLogged := func(label string, v *loggedView) {
		if v == nil {
			return
		}
		fmt.Fprintf(out.Writer, "  last %s: %s at %s\n",
			label, v.Summary, v.At.Local().Format("Jan 2 15:04"))
	}
	printLogged("sleep", cs.LastSleep)
	printLogged("feed", cs.LastFeed)
	printLogged("diaper", cs.LastDiaper)
	printLogged("growth", cs.LastGrowth)
}

func printStats(out *OutputFormatter, stats map[event.Kind]int) {
	parts := make([]string, 0, len(event.Kinds))
	for _, k := range event.Kinds {
		if n := stats[k]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s %d", k, n))
		}
	}
	if len(parts) == 0 {
		return
	}
	fmt.Fprintf(out.Writer, "\nStored events: %s\n", strings.Join(parts, ", "))
}

func renderActivity(v activityView) string {
	if v.Status == "none" {
		return "none"
	}
	return fmt.Sprintf("%s since %s", v.Status, v.Since.Local().Format("15:04"))
}
