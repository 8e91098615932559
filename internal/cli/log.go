package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/naptrack/internal/engine"
	"github.com/roach88/naptrack/internal/event"
	"github.com/roach88/naptrack/internal/gateway"
)

// NewLogCommand creates the log command group for one-shot events.
func NewLogCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Record one-shot events (diaper, bottle, growth)",
	}

	cmd.AddCommand(newLogDiaperCommand(opts))
	cmd.AddCommand(newLogBottleCommand(opts))
	cmd.AddCommand(newLogGrowthCommand(opts))

	return cmd
}

func newLogDiaperCommand(opts *RootOptions) *cobra.Command {
	var (
		mode        string
		color       string
		consistency string
		amount      string
	)

	cmd := &cobra.Command{
		Use:   "diaper <child-uid>",
		Short: "Record a diaper change",
		Long: `Record a diaper change.

Example:
  naptrack log diaper mia --mode both --color yellow --amount medium`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			d := event.DiaperDetails{
				Mode:           event.DiaperMode(mode),
				PooColor:       color,
				PooConsistency: consistency,
				Amount:         amount,
			}
			if !d.Mode.Valid() {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid --mode %q: want pee, poo, both or dry", mode))
			}
			return sessionOp(opts, cmd, "log diaper", args[0],
				func(ctx context.Context, e *engine.Engine) (event.Event, error) {
					return e.LogDiaper(ctx, args[0], d)
				})
		},
	}

	cmd.Flags().StringVar(&mode, "mode", "", "diaper contents (pee|poo|both|dry)")
	cmd.Flags().StringVar(&color, "color", "", "poo color")
	cmd.Flags().StringVar(&consistency, "consistency", "", "poo consistency")
	cmd.Flags().StringVar(&amount, "amount", "", "amount (small|medium|large)")
	_ = cmd.MarkFlagRequired("mode")

	return cmd
}

func newLogBottleCommand(opts *RootOptions) *cobra.Command {
	var (
		amount     float64
		units      string
		bottleType string
	)

	cmd := &cobra.Command{
		Use:   "bottle <child-uid>",
		Short: "Record a bottle feed",
		Long: `Record a bottle feed. Bottles are one-shot: they never touch the
feeding session state machine.

Example:
  naptrack log bottle mia --amount 120 --units ml --type formula`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if amount <= 0 {
				return NewExitError(ExitCommandError, "--amount must be positive")
			}
			b := gateway.BottleDetails{Amount: amount, Units: units, Type: bottleType}
			return sessionOp(opts, cmd, "log bottle", args[0],
				func(ctx context.Context, e *engine.Engine) (event.Event, error) {
					return e.LogBottle(ctx, args[0], b)
				})
		},
	}

	cmd.Flags().Float64Var(&amount, "amount", 0, "amount fed (required)")
	cmd.Flags().StringVar(&units, "units", "ml", "amount units (ml|oz)")
	cmd.Flags().StringVar(&bottleType, "type", "", "bottle contents (formula|breast milk|...)")
	_ = cmd.MarkFlagRequired("amount")

	return cmd
}

func newLogGrowthCommand(opts *RootOptions) *cobra.Command {
	var (
		weight float64
		height float64
		head   float64
	)

	cmd := &cobra.Command{
		Use:   "growth <child-uid>",
		Short: "Record a growth measurement",
		Long: `Record a growth measurement. At least one of --weight, --height or
--head is required.

Example:
  naptrack log growth mia --weight 6.4 --height 62`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			g := event.GrowthDetails{}
			if cmd.Flags().Changed("weight") {
				g.Weight = &weight
			}
			if cmd.Flags().Changed("height") {
				g.Height = &height
			}
			if cmd.Flags().Changed("head") {
				g.HeadCircumference = &head
			}
			if g.Empty() {
				return NewExitError(ExitCommandError,
					"at least one of --weight, --height or --head is required")
			}
			return sessionOp(opts, cmd, "log growth", args[0],
				func(ctx context.Context, e *engine.Engine) (event.Event, error) {
					return e.LogGrowth(ctx, args[0], g)
				})
		},
	}

	cmd.Flags().Float64Var(&weight, "weight", 0, "weight")
	cmd.Flags().Float64Var(&height, "height", 0, "height")
	cmd.Flags().Float64Var(&head, "head", 0, "head circumference")

	return cmd
}
