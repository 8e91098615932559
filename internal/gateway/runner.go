package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Sink receives the notifications and resync triggers the Runner produces.
// Implemented by engine.Engine.
type Sink interface {
	// EnqueueNotification hands one remote change to the engine loop.
	// Returns false if the engine has stopped.
	EnqueueNotification(n Notification) bool

	// Resync re-derives all local state from a fresh full fetch merged
	// with retained local contents. Called after every (re)connect.
	Resync(ctx context.Context) error
}

// Runner owns the push subscription lifecycle: subscribe, pump
// notifications into the sink, and on transport drop reconnect with
// exponential backoff. Every successful (re)connect triggers a full
// resync, so state lost to an outage converges again.
type Runner struct {
	gw     Gateway
	sink   Sink
	logger *slog.Logger

	// newBackOff allows tests to swap in an aggressive policy.
	newBackOff func() backoff.BackOff
}

// NewRunner creates a Runner pumping gw's subscription into sink.
func NewRunner(gw Gateway, sink Sink, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		gw:     gw,
		sink:   sink,
		logger: logger,
		newBackOff: func() backoff.BackOff {
			bo := backoff.NewExponentialBackOff()
			bo.InitialInterval = time.Second
			bo.MaxInterval = time.Minute
			bo.MaxElapsedTime = 0 // retry forever, the connection is the product
			return bo
		},
	}
}

// SetBackOffFactory overrides the reconnect policy. Test hook.
func (r *Runner) SetBackOffFactory(f func() backoff.BackOff) {
	r.newBackOff = f
}

// Run blocks pumping notifications until ctx is cancelled.
// Transport drops are not errors: Run logs, backs off, and reconnects.
func (r *Runner) Run(ctx context.Context) error {
	bo := backoff.WithContext(r.newBackOff(), ctx)

	for {
		var sub <-chan Notification
		err := backoff.RetryNotify(func() error {
			var err error
			sub, err = r.gw.Subscribe(ctx)
			return err
		}, bo, func(err error, wait time.Duration) {
			r.logger.Warn("subscribe failed, retrying", "error", err, "wait", wait)
		})
		if err != nil {
			// Only context cancellation escapes the retry loop.
			return fmt.Errorf("subscribe: %w", err)
		}

		r.logger.Info("subscribed to remote changes")

		// A (re)connect invalidates everything fetched before the drop.
		if err := r.sink.Resync(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.logger.Warn("resync after connect failed, reconnecting", "error", err)
			continue
		}
		bo.Reset()

		stopped, err := r.pump(ctx, sub)
		if err != nil {
			return err
		}
		if stopped {
			r.logger.Info("engine stopped, ending subscription")
			return nil
		}
		r.logger.Warn("subscription dropped, reconnecting")
	}
}

// pump forwards notifications until the channel closes (transport drop),
// the sink stops accepting, or ctx is cancelled.
func (r *Runner) pump(ctx context.Context, sub <-chan Notification) (stopped bool, err error) {
	for {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case n, ok := <-sub:
			if !ok {
				return false, nil
			}
			if !r.sink.EnqueueNotification(n) {
				return true, nil
			}
		}
	}
}
