package browser

import (
	"context"
	"time"
)

// waitForStability gates control return after a navigation: wait at
// least the configured minimum, then poll for network idle up to the
// idle threshold, without ever exceeding the configured maximum.
// Failures to reach idle are not errors; a busy page is handed back to
// the caller once the cap is hit.
func (s *Session) waitForStability(ctx context.Context, page PageHandle) {
	minimum := secondsToDuration(s.cfg.MinimumWaitPageLoadTime)
	idle := secondsToDuration(s.cfg.WaitForNetworkIdlePageLoadTime)
	maximum := secondsToDuration(s.cfg.MaximumWaitPageLoadTime)

	start := time.Now()

	if minimum > 0 {
		select {
		case <-time.After(minimum):
		case <-ctx.Done():
			return
		}
	}

	remaining := maximum - time.Since(start)
	if remaining <= 0 {
		return
	}
	if idle > remaining {
		idle = remaining
	}
	if idle <= 0 {
		return
	}

	if err := page.WaitForNetworkIdle(ctx, idle); err != nil {
		s.logger.Debugf("session %s: page not idle after %s, continuing: %v", s.id, idle, err)
	}
}

func secondsToDuration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}
