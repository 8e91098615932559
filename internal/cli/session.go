package cli

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/naptrack/internal/config"
	"github.com/roach88/naptrack/internal/engine"
	"github.com/roach88/naptrack/internal/gateway"
	"github.com/roach88/naptrack/internal/store"
)

// session is a booted engine over the local store, shared by every
// command. Short-lived commands open one, do their work, and close it;
// the run command keeps it open until signalled.
type session struct {
	cfg    config.Config
	store  *store.Store
	engine *engine.Engine

	cancel context.CancelFunc
	done   chan error
}

// setupLogging configures the process-wide logger from the global flags.
// Logs go to stderr so JSON output on stdout stays parseable.
func setupLogging(opts *RootOptions) {
	level := slog.LevelWarn
	if opts.Verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}

// loadConfig resolves the configuration: defaults when no --config flag
// was given, the file contents otherwise.
func loadConfig(opts *RootOptions) (config.Config, error) {
	if opts.Config == "" {
		return config.Default(), nil
	}
	return config.Load(opts.Config)
}

// openSession loads config, opens the store, and starts the engine loop
// in the background. The caller must Close the session.
func openSession(opts *RootOptions, cmd *cobra.Command) (*session, error) {
	setupLogging(opts)

	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}

	st, err := store.Open(cfg.Database)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	gw := opts.Gateway
	if gw == nil {
		gw = gateway.Unavailable{}
	}

	eng := engine.New(st, gw,
		engine.WithConflictWindow(cfg.ConflictWindow.Std()),
		engine.WithRemoteTimeout(cfg.RemoteTimeout.Std()),
		engine.WithResyncWindow(cfg.ResyncWindow()),
	)

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)

	s := &session{
		cfg:    cfg,
		store:  st,
		engine: eng,
		cancel: cancel,
		done:   make(chan error, 1),
	}
	go func() { s.done <- eng.Run(ctx) }()

	return s, nil
}

// Close stops the engine loop and closes the store.
func (s *session) Close() {
	s.cancel()
	select {
	case <-s.done:
	case <-time.After(5 * time.Second):
		slog.Error("engine did not stop in time")
	}
	if err := s.store.Close(); err != nil {
		slog.Error("error closing database", "error", err)
	}
}

// withSession runs fn inside a booted session, closing it afterwards.
func withSession(opts *RootOptions, cmd *cobra.Command, fn func(ctx context.Context, s *session) error) error {
	s, err := openSession(opts, cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return fn(ctx, s)
}

// formatter builds the output formatter for a command invocation.
func formatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}
