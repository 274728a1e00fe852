package runner

import (
	"context"
	"time"
)

type WaitOptions struct {
	// Total time to wait for the sequence to complete. Zero waits forever.
	Timeout time.Duration
	// Time without any event being received before giving up. Zero disables it.
	Inactivity time.Duration
	// Stop the run when the sequence is complete
	StopOnComplete bool
}

// Wait until every event of the sequence has been received.
//
// The two timeouts are independent and checked every wait interval.
// Returns a *TimeoutError matching ErrWallClockTimeout or ErrInactivityTimeout if one of them expires.
// The run keeps going after a timeout, the caller decides whether to stop it.
func (r *Runner) Wait(ctx context.Context, opts WaitOptions) error {
	r.mu.Lock()
	s := r.state
	r.mu.Unlock()
	if s == idle {
		return ErrNotStarted
	}
	if r.coord == nil {
		return ErrStopped
	}

	start := time.Now()
	ticker := time.NewTicker(r.waitInterval)
	defer ticker.Stop()

	for {
		if r.coord.SequenceComplete() {
			r.logger.Info("run sequence complete", "elapsed", time.Since(start).String())
			if opts.StopOnComplete {
				return r.Stop(ctx)
			}
			return nil
		}
		if opts.Timeout > 0 && time.Since(start) >= opts.Timeout {
			return r.timeout(ErrWallClockTimeout, opts.Timeout)
		}
		if opts.Inactivity > 0 && time.Since(r.coord.LastReceived()) >= opts.Inactivity {
			return r.timeout(ErrInactivityTimeout, opts.Inactivity)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (r *Runner) timeout(err error, d time.Duration) error {
	pending := r.coord.Pending()
	r.logger.Warn("run timed out", "reason", err.Error(), "pending", pending)
	return &TimeoutError{Err: err, Timeout: d, Pending: pending}
}
