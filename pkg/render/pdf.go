package render

import (
	"context"
	"errors"
	"time"
)

// Converter is the external PDF rendering service.
//
// The export stage reports its cursor as items land in transient
// storage and then polls for the converted result; the service works
// from the same transient tree.
type Converter interface {
	// Report tells the converter how far the export has progressed.
	Report(ctx context.Context, jobID, cursor string) error

	// Ready reports whether the converted artifact for jobID is
	// available in the job's transient directory.
	Ready(ctx context.Context, jobID string) (bool, error)
}

// ErrConvertDeadline is returned when the converter does not become
// ready before the job's deadline.
var ErrConvertDeadline = errors.New("pdf conversion deadline exceeded")

// WaitReady polls the converter until it is ready, the context is
// cancelled, or deadline passes. The poll loop re-checks the deadline
// locally; everything else relies on cooperative cancellation through
// ctx.
func WaitReady(ctx context.Context, c Converter, jobID string, deadline time.Time, interval time.Duration) error {
	if interval <= 0 {
		interval = 5 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if !deadline.IsZero() && time.Now().After(deadline) {
			return ErrConvertDeadline
		}

		ready, err := c.Ready(ctx, jobID)
		if err != nil {
			return err
		}
		if ready {
			return nil
		}

		select {
		case <-ctx.Done():
			return context.Cause(ctx)
		case <-ticker.C:
		}
	}
}
