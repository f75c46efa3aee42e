package sync

import (
	"time"

	"github.com/sethvargo/go-retry"
)

// backoffDelay returns the wait before retrying an entry that has failed
// attempt times (1-based): an exponential series starting at base, capped.
func backoffDelay(attempt int, base, limit time.Duration) time.Duration {
	b := retry.WithCappedDuration(limit, retry.NewExponential(base))
	var d time.Duration
	for i := 0; i < attempt; i++ {
		next, stop := b.Next()
		if stop {
			break
		}
		d = next
	}
	return d
}
