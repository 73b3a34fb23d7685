package watch

import (
	"context"
	"time"
)

// sleepCtx blocks for d or until ctx is done.
// Returns true if the sleep completed (context still alive).
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
