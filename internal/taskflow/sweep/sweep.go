package sweep

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Sweeper evicts expired entries and reports how many went.
type Sweeper interface {
	Sweep() int
}

// Start periodically sweeps s until ctx is cancelled. It blocks, so callers
// run it in a goroutine. A non-positive interval returns immediately.
func Start(ctx context.Context, s Sweeper, interval time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				log.Debug().Int("evicted", n).Msg("cache sweep")
			}
		}
	}
}
