package services

import (
	"context"
	"time"

	applog "github.com/levanlong25/Second-hand-EV-Battery-Trading-Platform/internal/log"
)

// RunScheduler drives the clock transitions (prepare → started, started →
// ended) until ctx is done.
func (s *AuctionService) RunScheduler(ctx context.Context, every time.Duration) {
	if every <= 0 {
		every = time.Second
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			started, ended, err := s.Tick(ctx, s.Now())
			if err != nil {
				applog.Error(nil, "auction.scheduler.tick", err, nil)
				continue
			}
			if started > 0 || ended > 0 {
				applog.Info(nil, "auction.scheduler.tick", map[string]any{"started": started, "ended": ended})
			}
		}
	}
}
