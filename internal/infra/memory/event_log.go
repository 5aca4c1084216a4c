// Package memory provides in-process stores used when redis is not
// configured and as the degradation target when it is unreachable. The
// stores keep the same primary/backup split as the redis ones so the
// reconciler's repair paths behave identically in both modes.
package memory

import (
	"context"
	"sync"

	"github.com/MenopausaC/quiz-funnel-service/internal/domain"
)

// EventLog is an append-only in-memory event store with a backup mirror
// and redundant per-variant view counters.
type EventLog struct {
	mu       sync.RWMutex
	events   []domain.Event
	backup   []domain.Event
	counters map[string]int
}

func NewEventLog() *EventLog {
	return &EventLog{counters: make(map[string]int)}
}

func (l *EventLog) Append(_ context.Context, event domain.Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
	l.backup = append(l.backup, event)
	return nil
}

// ReadAll returns a copy of the log. When the primary slice was lost
// (cleared out of band) but the backup survived, the backup is promoted.
func (l *EventLog) ReadAll(_ context.Context) ([]domain.Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.events) == 0 && len(l.backup) > 0 {
		l.events = append([]domain.Event(nil), l.backup...)
	}
	return append([]domain.Event(nil), l.events...), nil
}

func (l *EventLog) IncrementView(_ context.Context, variant string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.counters[variant]++
	return nil
}

func (l *EventLog) ViewCounts(_ context.Context) (map[string]int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	counts := make(map[string]int, len(l.counters))
	for variant, count := range l.counters {
		counts[variant] = count
	}
	return counts, nil
}

func (l *EventLog) SyncViewCounts(_ context.Context, counts map[string]int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.counters = make(map[string]int, len(counts))
	for variant, count := range counts {
		l.counters[variant] = count
	}
	return nil
}

// Clear drops everything, backup included.
func (l *EventLog) Clear(_ context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = nil
	l.backup = nil
	l.counters = make(map[string]int)
	return nil
}
