package app

import (
	"context"
	"log"
	"time"

	"github.com/MenopausaC/quiz-funnel-service/internal/metrics"
)

// SubscribeMetrics returns a channel fed with dashboard summaries: the
// current one immediately, then one per recorded view/lead/sale/clear.
// The caller must invoke cancel to avoid leaks.
func (s *FunnelService) SubscribeMetrics(ctx context.Context) (<-chan metrics.Summary, func(), error) {
	initial, err := s.metrics.Compute(ctx)
	if err != nil {
		return nil, nil, err
	}

	ch := make(chan metrics.Summary, 8)
	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	s.mu.Unlock()

	ch <- initial

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel, nil
}

// notify pushes a fresh summary to all subscribers. Skipped when nobody
// is listening so the write path never pays for aggregation.
func (s *FunnelService) notify(ctx context.Context) {
	s.mu.RLock()
	listening := len(s.subscribers) > 0
	s.mu.RUnlock()
	if !listening {
		return
	}

	if ctx == nil || ctx.Err() != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
	}
	summary, err := s.metrics.Compute(ctx)
	if err != nil {
		log.Printf("app: metrics refresh for subscribers failed: %v", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.subscribers {
		select {
		case ch <- summary:
		default:
			// Drop the stale update so slow dashboards never block writers.
			select {
			case <-ch:
			default:
			}
			ch <- summary
		}
	}
}
