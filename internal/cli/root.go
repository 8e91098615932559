// Package cli implements the naptrack command line interface.
//
// Every command boots a short-lived engine session against the local
// store: load config, open the database, start the single-writer loop,
// execute the operation, shut down. The long-running `run` command adds
// the push subscription runner on top.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/naptrack/internal/gateway"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
	Config  string // config file path, "" for defaults

	// Gateway overrides the remote transport (for testing). If nil, the
	// unavailable gateway is used and remote-dependent commands fail with
	// a remote-unavailable error.
	Gateway gateway.Gateway
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the naptrack CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "naptrack",
		Short: "Baby activity tracker sync engine",
		Long: `naptrack keeps a local mirror of a baby-tracking account and drives
its activity state machines: sleep and feeding sessions, diaper, bottle
and growth logs, and a calendar view over the event history.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Config, "config", "", "path to YAML config file")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewStatusCommand(opts))
	cmd.AddCommand(NewSleepCommand(opts))
	cmd.AddCommand(NewFeedCommand(opts))
	cmd.AddCommand(NewLogCommand(opts))
	cmd.AddCommand(NewCalendarCommand(opts))
	cmd.AddCommand(NewResyncCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
