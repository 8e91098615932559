package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// NewResyncCommand creates the resync command.
func NewResyncCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resync",
		Short: "Force a full resync from the remote",
		Long: `Force a full resync: refresh the child list, invalidate all cached
calendar ranges, refetch the resync window per child, and re-derive
every activity state. The same procedure runs automatically after every
reconnect.

Example:
  naptrack resync --config ~/.naptrack.yaml`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return doResync(opts, cmd)
		},
	}

	return cmd
}

func doResync(opts *RootOptions, cmd *cobra.Command) error {
	out := formatter(opts, cmd)

	return withSession(opts, cmd, func(ctx context.Context, s *session) error {
		if err := s.engine.Resync(ctx); err != nil {
			return out.Error(err)
		}

		children, err := s.engine.Children(ctx)
		if err != nil {
			return out.Error(err)
		}

		if opts.Format == "json" {
			return out.Success(map[string]any{"children": len(children)})
		}
		fmt.Fprintf(out.Writer, "Resync complete: %d children mirrored.\n", len(children))
		return nil
	})
}
