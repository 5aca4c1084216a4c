package redis

import (
	"context"
	"encoding/json"
	"log"
	"strings"

	"github.com/MenopausaC/quiz-funnel-service/internal/domain"
	"github.com/MenopausaC/quiz-funnel-service/internal/infra/memory"
	"github.com/redis/go-redis/v9"
)

// LeadList stores the flat lead list under <prefix>:leads with a mirror at
// <prefix>:leads:backup.
type LeadList struct {
	client   *redis.Client
	prefix   string
	fallback *memory.LeadList
}

func NewLeadList(client *redis.Client, prefix string) *LeadList {
	if prefix == "" {
		prefix = "funnel"
	}
	return &LeadList{
		client:   client,
		prefix:   prefix,
		fallback: memory.NewLeadList(),
	}
}

func (l *LeadList) key() string       { return l.prefix + ":leads" }
func (l *LeadList) backupKey() string { return l.prefix + ":leads:backup" }

func (l *LeadList) Append(ctx context.Context, lead domain.Lead) error {
	leads, err := l.readKey(ctx, l.key())
	if err != nil {
		log.Printf("redis: lead append degraded to memory: %v", err)
		return l.fallback.Append(ctx, lead)
	}
	leads = append(leads, lead)
	if err := l.write(ctx, leads); err != nil {
		log.Printf("redis: lead append degraded to memory: %v", err)
		return l.fallback.Append(ctx, lead)
	}
	return nil
}

func (l *LeadList) ReadAll(ctx context.Context) ([]domain.Lead, error) {
	leads, err := l.readKey(ctx, l.key())
	if err != nil {
		log.Printf("redis: lead read degraded to memory: %v", err)
		return l.fallback.ReadAll(ctx)
	}
	if len(leads) == 0 {
		backup, err := l.readKey(ctx, l.backupKey())
		if err == nil && len(backup) > 0 {
			leads = backup
			if err := l.write(ctx, leads); err != nil {
				log.Printf("redis: lead restore write failed: %v", err)
			}
		}
	}
	if overflow, err := l.fallback.ReadAll(ctx); err == nil && len(overflow) > 0 {
		leads = append(leads, overflow...)
	}
	return leads, nil
}

func (l *LeadList) ReplaceAll(ctx context.Context, leads []domain.Lead) error {
	if err := l.write(ctx, leads); err != nil {
		log.Printf("redis: lead replace degraded to memory: %v", err)
		return l.fallback.ReplaceAll(ctx, leads)
	}
	_ = l.fallback.ReplaceAll(ctx, nil)
	return nil
}

func (l *LeadList) Update(ctx context.Context, id, email string, fn func(*domain.Lead)) (domain.Lead, error) {
	leads, err := l.readKey(ctx, l.key())
	if err != nil {
		log.Printf("redis: lead update degraded to memory: %v", err)
		return l.fallback.Update(ctx, id, email, fn)
	}
	idx := -1
	for i := range leads {
		if id != "" && leads[i].ID == id {
			idx = i
			break
		}
		if email != "" && strings.EqualFold(leads[i].Email, email) {
			idx = i
			break
		}
	}
	if idx < 0 {
		return l.fallback.Update(ctx, id, email, fn)
	}
	fn(&leads[idx])
	if err := l.write(ctx, leads); err != nil {
		return domain.Lead{}, err
	}
	return leads[idx], nil
}

func (l *LeadList) Clear(ctx context.Context) error {
	if err := l.client.Del(ctx, l.key(), l.backupKey()).Err(); err != nil {
		return err
	}
	return l.fallback.Clear(ctx)
}

func (l *LeadList) readKey(ctx context.Context, key string) ([]domain.Lead, error) {
	raw, err := l.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var leads []domain.Lead
	if err := json.Unmarshal([]byte(raw), &leads); err != nil {
		log.Printf("redis: corrupt lead data at %s, treating as empty: %v", key, err)
		return nil, nil
	}
	return leads, nil
}

func (l *LeadList) write(ctx context.Context, leads []domain.Lead) error {
	data, err := json.Marshal(leads)
	if err != nil {
		return err
	}
	pipe := l.client.TxPipeline()
	pipe.Set(ctx, l.key(), data, 0)
	pipe.Set(ctx, l.backupKey(), data, 0)
	_, err = pipe.Exec(ctx)
	return err
}
