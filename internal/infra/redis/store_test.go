package redis

import (
	"context"
	"testing"
	"time"

	"github.com/MenopausaC/quiz-funnel-service/internal/domain"
	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	return mr, redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestEventLogRoundTrip(t *testing.T) {
	ctx := context.Background()
	_, client := newTestClient(t)
	log := NewEventLog(client, "funnel")

	events := []domain.Event{
		{Type: domain.EventSessionStart, Variante: "testbx4", Timestamp: time.Now().UTC()},
		{Type: domain.EventQuizCompleted, Variante: "testbx4", Timestamp: time.Now().UTC()},
	}
	for _, e := range events {
		if err := log.Append(ctx, e); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	got, err := log.ReadAll(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 events, got %d", len(got))
	}
	if got[1].Type != domain.EventQuizCompleted {
		t.Fatalf("unexpected event order: %+v", got)
	}
}

func TestEventLogRestoresFromBackupKey(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestClient(t)
	log := NewEventLog(client, "funnel")

	if err := log.Append(ctx, domain.Event{Type: domain.EventSessionStart}); err != nil {
		t.Fatalf("append: %v", err)
	}

	// Primary key lost; backup survives.
	mr.Del("funnel:events")

	got, err := log.ReadAll(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected restore from backup, got %d events", len(got))
	}
	if !mr.Exists("funnel:events") {
		t.Fatalf("restore must rewrite the primary key")
	}
}

func TestEventLogCorruptDataTreatedAsEmpty(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestClient(t)
	log := NewEventLog(client, "funnel")

	mr.Set("funnel:events", "{not json")
	mr.Set("funnel:events:backup", "{not json either")

	got, err := log.ReadAll(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("corrupt data must read as empty, got %d events", len(got))
	}

	// And the log must keep accepting appends.
	if err := log.Append(ctx, domain.Event{Type: domain.EventSessionStart}); err != nil {
		t.Fatalf("append after corruption: %v", err)
	}
	got, _ = log.ReadAll(ctx)
	if len(got) != 1 {
		t.Fatalf("expected 1 event after re-append, got %d", len(got))
	}
}

func TestEventLogViewCounters(t *testing.T) {
	ctx := context.Background()
	_, client := newTestClient(t)
	log := NewEventLog(client, "funnel")

	_ = log.IncrementView(ctx, "testbx4")
	_ = log.IncrementView(ctx, "testbx4")
	_ = log.IncrementView(ctx, "testbx9")

	counts, err := log.ViewCounts(ctx)
	if err != nil {
		t.Fatalf("counts: %v", err)
	}
	if counts["testbx4"] != 2 || counts["testbx9"] != 1 {
		t.Fatalf("unexpected counts: %v", counts)
	}

	if err := log.SyncViewCounts(ctx, map[string]int{"testbx4": 12}); err != nil {
		t.Fatalf("sync: %v", err)
	}
	counts, _ = log.ViewCounts(ctx)
	if counts["testbx4"] != 12 || counts["testbx9"] != 0 {
		t.Fatalf("sync must replace the hash, got %v", counts)
	}
}

func TestEventLogDegradesToMemoryWhenRedisDown(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestClient(t)
	log := NewEventLog(client, "funnel")

	mr.Close()

	if err := log.Append(ctx, domain.Event{Type: domain.EventSessionStart, Variante: "default"}); err != nil {
		t.Fatalf("append must degrade, not fail: %v", err)
	}
	if err := log.IncrementView(ctx, "default"); err != nil {
		t.Fatalf("counter must degrade, not fail: %v", err)
	}

	got, err := log.ReadAll(ctx)
	if err != nil {
		t.Fatalf("read must degrade, not fail: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected degraded event retained, got %d", len(got))
	}
	counts, _ := log.ViewCounts(ctx)
	if counts["default"] != 1 {
		t.Fatalf("expected degraded counter retained, got %v", counts)
	}
}

func TestLeadListRoundTripAndClear(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestClient(t)
	list := NewLeadList(client, "funnel")

	if err := list.Append(ctx, domain.Lead{ID: "l1", Nome: "Maria", Email: "maria@exemplo.com"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := list.Append(ctx, domain.Lead{ID: "l2", Nome: "Joana", Email: "joana@exemplo.com"}); err != nil {
		t.Fatalf("append: %v", err)
	}

	got, err := list.ReadAll(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 leads, got %d", len(got))
	}

	if err := list.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if mr.Exists("funnel:leads") || mr.Exists("funnel:leads:backup") {
		t.Fatalf("clear must delete backup too")
	}
	got, _ = list.ReadAll(ctx)
	if len(got) != 0 {
		t.Fatalf("expected empty list after clear, got %d", len(got))
	}
}

func TestLeadListUpdateMarksConversion(t *testing.T) {
	ctx := context.Background()
	_, client := newTestClient(t)
	list := NewLeadList(client, "funnel")

	_ = list.Append(ctx, domain.Lead{ID: "l1", Nome: "Maria", Email: "maria@exemplo.com"})

	updated, err := list.Update(ctx, "", "MARIA@exemplo.com", func(lead *domain.Lead) {
		lead.Converteu = true
		lead.PaymentID = "pay_123"
		lead.ValorConversao = 297.5
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !updated.Converteu || updated.PaymentID != "pay_123" {
		t.Fatalf("update not applied: %+v", updated)
	}

	got, _ := list.ReadAll(ctx)
	if len(got) != 1 || !got[0].Converteu {
		t.Fatalf("update must persist: %+v", got)
	}
}

func TestLeadListUpdateMissingLead(t *testing.T) {
	_, client := newTestClient(t)
	list := NewLeadList(client, "funnel")

	_, err := list.Update(context.Background(), "", "ghost@exemplo.com", func(*domain.Lead) {})
	if err != domain.ErrLeadNotFound {
		t.Fatalf("expected ErrLeadNotFound, got %v", err)
	}
}

func TestLeadListReplaceAllOverwritesBackup(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestClient(t)
	list := NewLeadList(client, "funnel")

	_ = list.Append(ctx, domain.Lead{ID: "l1", Email: "a@exemplo.com"})
	repaired := []domain.Lead{
		{ID: "l1", Email: "a@exemplo.com"},
		{ID: "l2", Email: "b@exemplo.com"},
		{ID: "l3", Email: "c@exemplo.com"},
	}
	if err := list.ReplaceAll(ctx, repaired); err != nil {
		t.Fatalf("replace: %v", err)
	}

	mr.Del("funnel:leads")
	got, err := list.ReadAll(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("backup must hold the replaced list, got %d", len(got))
	}
}
