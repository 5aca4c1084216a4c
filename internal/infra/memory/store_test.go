package memory

import (
	"context"
	"testing"
	"time"

	"github.com/MenopausaC/quiz-funnel-service/internal/domain"
)

func TestEventLogAppendAndRead(t *testing.T) {
	ctx := context.Background()
	log := NewEventLog()

	for i := 0; i < 3; i++ {
		err := log.Append(ctx, domain.Event{Type: domain.EventSessionStart, Variante: "testbx4", Timestamp: time.Now()})
		if err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	events, err := log.ReadAll(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
}

func TestEventLogRestoresFromBackup(t *testing.T) {
	ctx := context.Background()
	log := NewEventLog()
	_ = log.Append(ctx, domain.Event{Type: domain.EventQuizCompleted})

	// Simulate loss of the primary slice only.
	log.mu.Lock()
	log.events = nil
	log.mu.Unlock()

	events, err := log.ReadAll(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected backup restore, got %d events", len(events))
	}
}

func TestEventLogViewCounters(t *testing.T) {
	ctx := context.Background()
	log := NewEventLog()
	_ = log.IncrementView(ctx, "testbx4")
	_ = log.IncrementView(ctx, "testbx4")
	_ = log.IncrementView(ctx, "default")

	counts, err := log.ViewCounts(ctx)
	if err != nil {
		t.Fatalf("counts: %v", err)
	}
	if counts["testbx4"] != 2 || counts["default"] != 1 {
		t.Fatalf("unexpected counts: %v", counts)
	}

	if err := log.SyncViewCounts(ctx, map[string]int{"testbx4": 9}); err != nil {
		t.Fatalf("sync: %v", err)
	}
	counts, _ = log.ViewCounts(ctx)
	if counts["testbx4"] != 9 || counts["default"] != 0 {
		t.Fatalf("sync must replace counters, got %v", counts)
	}
}

func TestEventLogClear(t *testing.T) {
	ctx := context.Background()
	log := NewEventLog()
	_ = log.Append(ctx, domain.Event{Type: domain.EventSessionStart})
	_ = log.IncrementView(ctx, "default")

	if err := log.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	events, _ := log.ReadAll(ctx)
	if len(events) != 0 {
		t.Fatalf("backup must be cleared too, got %d events", len(events))
	}
	counts, _ := log.ViewCounts(ctx)
	if len(counts) != 0 {
		t.Fatalf("counters must be cleared, got %v", counts)
	}
}

func TestLeadListReplaceAndRestore(t *testing.T) {
	ctx := context.Background()
	list := NewLeadList()
	_ = list.Append(ctx, domain.Lead{Nome: "Maria", Email: "maria@exemplo.com"})

	leads := []domain.Lead{
		{Nome: "Maria", Email: "maria@exemplo.com"},
		{Nome: "Joana", Email: "joana@exemplo.com"},
	}
	if err := list.ReplaceAll(ctx, leads); err != nil {
		t.Fatalf("replace: %v", err)
	}

	list.mu.Lock()
	list.leads = nil
	list.mu.Unlock()

	got, err := list.ReadAll(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected backup restore with 2 leads, got %d", len(got))
	}
}

func TestLeadListUpdateByEmail(t *testing.T) {
	ctx := context.Background()
	list := NewLeadList()
	_ = list.Append(ctx, domain.Lead{ID: "l1", Nome: "Maria", Email: "Maria@Exemplo.com"})

	updated, err := list.Update(ctx, "", "maria@exemplo.com", func(lead *domain.Lead) {
		lead.Converteu = true
		lead.ValorConversao = 197
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !updated.Converteu || updated.ValorConversao != 197 {
		t.Fatalf("update not applied: %+v", updated)
	}

	got, _ := list.ReadAll(ctx)
	if !got[0].Converteu {
		t.Fatalf("update must persist")
	}
}

func TestLeadListUpdateMissing(t *testing.T) {
	list := NewLeadList()
	_, err := list.Update(context.Background(), "nope", "nope@exemplo.com", func(*domain.Lead) {})
	if err != domain.ErrLeadNotFound {
		t.Fatalf("expected ErrLeadNotFound, got %v", err)
	}
}
