// Package redis implements the local stores on namespaced redis keys.
// Each collection keeps a JSON-encoded primary key plus a backup copy;
// reads promote the backup when the primary is missing, and corrupt JSON
// is treated as no data rather than an error. Writes that fail degrade to
// an in-process fallback so the funnel keeps accepting traffic while
// redis is down.
package redis

import (
	"context"
	"encoding/json"
	"log"
	"strconv"

	"github.com/MenopausaC/quiz-funnel-service/internal/domain"
	"github.com/MenopausaC/quiz-funnel-service/internal/infra/memory"
	"github.com/redis/go-redis/v9"
)

// EventLog stores the append-only event list under <prefix>:events with a
// mirror at <prefix>:events:backup and per-variant view counters in the
// <prefix>:counters hash.
type EventLog struct {
	client   *redis.Client
	prefix   string
	fallback *memory.EventLog
}

func NewEventLog(client *redis.Client, prefix string) *EventLog {
	if prefix == "" {
		prefix = "funnel"
	}
	return &EventLog{
		client:   client,
		prefix:   prefix,
		fallback: memory.NewEventLog(),
	}
}

func (l *EventLog) key() string        { return l.prefix + ":events" }
func (l *EventLog) backupKey() string  { return l.prefix + ":events:backup" }
func (l *EventLog) counterKey() string { return l.prefix + ":counters" }

func (l *EventLog) Append(ctx context.Context, event domain.Event) error {
	events, err := l.readKey(ctx, l.key())
	if err != nil {
		log.Printf("redis: event append degraded to memory: %v", err)
		return l.fallback.Append(ctx, event)
	}
	events = append(events, event)
	if err := l.writeKey(ctx, l.key(), events); err != nil {
		log.Printf("redis: event append degraded to memory: %v", err)
		return l.fallback.Append(ctx, event)
	}
	// Backup mirror is best-effort.
	if err := l.writeKey(ctx, l.backupKey(), events); err != nil {
		log.Printf("redis: event backup write failed: %v", err)
	}
	return nil
}

func (l *EventLog) ReadAll(ctx context.Context) ([]domain.Event, error) {
	events, err := l.readKey(ctx, l.key())
	if err != nil {
		log.Printf("redis: event read degraded to memory: %v", err)
		return l.fallback.ReadAll(ctx)
	}
	if len(events) == 0 {
		backup, err := l.readKey(ctx, l.backupKey())
		if err == nil && len(backup) > 0 {
			events = backup
			if err := l.writeKey(ctx, l.key(), events); err != nil {
				log.Printf("redis: event restore write failed: %v", err)
			}
		}
	}
	if overflow, err := l.fallback.ReadAll(ctx); err == nil && len(overflow) > 0 {
		events = append(events, overflow...)
	}
	return events, nil
}

func (l *EventLog) IncrementView(ctx context.Context, variant string) error {
	if err := l.client.HIncrBy(ctx, l.counterKey(), variant, 1).Err(); err != nil {
		log.Printf("redis: view counter degraded to memory: %v", err)
		return l.fallback.IncrementView(ctx, variant)
	}
	return nil
}

func (l *EventLog) ViewCounts(ctx context.Context) (map[string]int, error) {
	raw, err := l.client.HGetAll(ctx, l.counterKey()).Result()
	if err != nil {
		log.Printf("redis: view counters degraded to memory: %v", err)
		return l.fallback.ViewCounts(ctx)
	}
	counts := make(map[string]int, len(raw))
	for variant, value := range raw {
		n, err := strconv.Atoi(value)
		if err != nil {
			continue
		}
		counts[variant] = n
	}
	if overflow, err := l.fallback.ViewCounts(ctx); err == nil {
		for variant, n := range overflow {
			counts[variant] += n
		}
	}
	return counts, nil
}

func (l *EventLog) SyncViewCounts(ctx context.Context, counts map[string]int) error {
	pairs := make([]interface{}, 0, len(counts)*2)
	for variant, n := range counts {
		pairs = append(pairs, variant, strconv.Itoa(n))
	}
	pipe := l.client.TxPipeline()
	pipe.Del(ctx, l.counterKey())
	if len(pairs) > 0 {
		pipe.HSet(ctx, l.counterKey(), pairs...)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("redis: counter sync degraded to memory: %v", err)
		return l.fallback.SyncViewCounts(ctx, counts)
	}
	_ = l.fallback.SyncViewCounts(ctx, map[string]int{})
	return nil
}

func (l *EventLog) Clear(ctx context.Context) error {
	if err := l.client.Del(ctx, l.key(), l.backupKey(), l.counterKey()).Err(); err != nil {
		return err
	}
	return l.fallback.Clear(ctx)
}

func (l *EventLog) readKey(ctx context.Context, key string) ([]domain.Event, error) {
	raw, err := l.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var events []domain.Event
	if err := json.Unmarshal([]byte(raw), &events); err != nil {
		log.Printf("redis: corrupt event data at %s, treating as empty: %v", key, err)
		return nil, nil
	}
	return events, nil
}

func (l *EventLog) writeKey(ctx context.Context, key string, events []domain.Event) error {
	data, err := json.Marshal(events)
	if err != nil {
		return err
	}
	return l.client.Set(ctx, key, data, 0).Err()
}
