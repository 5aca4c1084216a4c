package app

import (
	"context"
	"testing"
	"time"

	"github.com/MenopausaC/quiz-funnel-service/internal/domain"
	"github.com/MenopausaC/quiz-funnel-service/internal/infra/memory"
	"github.com/MenopausaC/quiz-funnel-service/internal/metrics"
	"github.com/MenopausaC/quiz-funnel-service/internal/sink"
)

func newTestService() (*FunnelService, *memory.EventLog, *memory.LeadList) {
	events := memory.NewEventLog()
	leads := memory.NewLeadList()
	recorder := sink.New(nil, events, leads)
	agg := metrics.NewAggregator(nil, events, leads)
	return NewFunnelService(events, leads, recorder, agg), events, leads
}

func answer(pergunta string, pontos int) domain.Answer {
	return domain.Answer{Pergunta: pergunta, Resposta: "r", Pontos: pontos, TempoMs: 8000}
}

func TestQuizFlowProducesQualifiedLead(t *testing.T) {
	ctx := context.Background()
	svc, events, leads := newTestService()

	id, out := svc.StartSession(ctx, "testbx4", "Mozilla/5.0", "https://quiz.example/start")
	if id == "" {
		t.Fatalf("expected session id")
	}
	if out.Backend != sink.BackendLocal {
		t.Fatalf("no remote configured, expected local outcome, got %+v", out)
	}

	for q, pts := range map[string]int{"idade": 10, "sintomas": 15, "duracao": 20, "tratamento": 15, "impacto": 25} {
		if err := svc.RecordAnswer(ctx, id, answer(q, pts)); err != nil {
			t.Fatalf("record answer %s: %v", q, err)
		}
	}

	lead, _, err := svc.Complete(ctx, id, Contact{Nome: " Maria Silva ", Email: "Maria@Exemplo.com", Telefone: "(11) 98888-7777", Idade: 52})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if lead.Nome != "Maria Silva" || lead.Email != "maria@exemplo.com" {
		t.Fatalf("contact not normalized: %+v", lead)
	}
	if lead.Qualificacao.Score != 85 {
		t.Fatalf("expected score 85, got %d", lead.Qualificacao.Score)
	}
	if lead.Qualificacao.Categoria != domain.TierMuitoQuente {
		t.Fatalf("expected MUITO_QUENTE, got %s", lead.Qualificacao.Categoria)
	}

	stored, _ := leads.ReadAll(ctx)
	if len(stored) != 1 {
		t.Fatalf("expected 1 stored lead, got %d", len(stored))
	}

	logged, _ := events.ReadAll(ctx)
	var completions int
	for _, e := range logged {
		if e.Type == domain.EventQuizCompleted {
			completions++
		}
	}
	if completions != 1 {
		t.Fatalf("expected 1 completion event, got %d", completions)
	}
}

func TestCompleteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	svc, _, leads := newTestService()

	id, _ := svc.StartSession(ctx, "testbx4", "", "")
	_ = svc.RecordAnswer(ctx, id, answer("idade", 10))

	if _, _, err := svc.Complete(ctx, id, Contact{Nome: "Maria", Email: "m@exemplo.com"}); err != nil {
		t.Fatalf("first complete: %v", err)
	}
	if _, _, err := svc.Complete(ctx, id, Contact{Nome: "Maria", Email: "m@exemplo.com"}); err != domain.ErrAlreadyCompleted {
		t.Fatalf("expected ErrAlreadyCompleted, got %v", err)
	}

	stored, _ := leads.ReadAll(ctx)
	if len(stored) != 1 {
		t.Fatalf("duplicate completion must not register twice, got %d leads", len(stored))
	}
}

func TestRecordAnswerUnknownSession(t *testing.T) {
	svc, _, _ := newTestService()
	err := svc.RecordAnswer(context.Background(), "missing", answer("idade", 10))
	if err != domain.ErrSessionNotFound {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestBackNavigationFeedsQualification(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService()

	id, _ := svc.StartSession(ctx, "testbx4", "", "")
	_ = svc.RecordAnswer(ctx, id, answer("idade", 10))
	for i := 0; i < 3; i++ {
		if err := svc.TrackNavigation(ctx, id, true); err != nil {
			t.Fatalf("navigation: %v", err)
		}
	}

	lead, _, err := svc.Complete(ctx, id, Contact{Nome: "Maria", Email: "m@exemplo.com"})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if lead.Qualificacao.Comportamento.VoltasPerguntas != 3 {
		t.Fatalf("expected 3 back navigations, got %d", lead.Qualificacao.Comportamento.VoltasPerguntas)
	}
	found := false
	for _, m := range lead.Qualificacao.Motivos {
		if m == "Revisitou perguntas múltiplas vezes" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected revisit reason, got %v", lead.Qualificacao.Motivos)
	}
}

func TestProcessPaymentCorrelatesByEmail(t *testing.T) {
	ctx := context.Background()
	svc, _, leads := newTestService()

	created := time.Now().Add(-2 * time.Hour)
	lead, _ := svc.IngestLead(ctx, domain.Lead{
		Nome: "Maria Silva", Email: "maria@exemplo.com", Telefone: "11988887777",
		Variante: "testbx4", CriadoEm: created,
	})

	conv, found, _ := svc.ProcessPayment(ctx, PaymentEvent{
		EventType:     "payment.approved",
		PaymentID:     "pay_123",
		Status:        "approved",
		Amount:        197,
		CustomerEmail: "MARIA@exemplo.com",
	})
	if !found {
		t.Fatalf("expected correlation by email")
	}
	if conv.LeadID != lead.ID {
		t.Fatalf("conversion must reference the lead: %+v", conv)
	}
	if conv.TempoParaConversao <= 0 {
		t.Fatalf("expected positive time to conversion, got %d", conv.TempoParaConversao)
	}

	stored, _ := leads.ReadAll(ctx)
	if !stored[0].Converteu || stored[0].PaymentID != "pay_123" {
		t.Fatalf("lead must carry conversion: %+v", stored[0])
	}
}

func TestProcessPaymentCorrelatesByPhone(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService()

	_, _ = svc.IngestLead(ctx, domain.Lead{
		Nome: "Joana", Email: "joana@exemplo.com", Telefone: "(11) 97777-6666",
	})

	_, found, _ := svc.ProcessPayment(ctx, PaymentEvent{
		PaymentID:     "pay_456",
		CustomerEmail: "other@exemplo.com",
		CustomerPhone: "5511977776666",
	})
	if !found {
		t.Fatalf("expected correlation by phone digits")
	}
}

func TestProcessPaymentOrphanStillRecorded(t *testing.T) {
	ctx := context.Background()
	svc, events, _ := newTestService()

	conv, found, out := svc.ProcessPayment(ctx, PaymentEvent{
		PaymentID:     "pay_789",
		CustomerEmail: "ghost@exemplo.com",
		Amount:        97,
	})
	if found {
		t.Fatalf("no lead should match")
	}
	if conv.LeadID != "" {
		t.Fatalf("orphan conversion must not reference a lead: %+v", conv)
	}
	if out.Backend != sink.BackendLocal {
		t.Fatalf("expected local outcome, got %+v", out)
	}

	logged, _ := events.ReadAll(ctx)
	if len(logged) != 1 || logged[0].Type != domain.EventSaleRecorded {
		t.Fatalf("orphan payment must still be event-logged: %+v", logged)
	}
}

func TestDetectVendaMarksLead(t *testing.T) {
	ctx := context.Background()
	svc, _, leads := newTestService()

	_, _ = svc.IngestLead(ctx, domain.Lead{Nome: "Maria", Email: "maria@exemplo.com", Variante: "testbx9"})

	venda, matched, _ := svc.DetectVenda(ctx, domain.Venda{Email: "maria@exemplo.com", Valor: 197})
	if !matched {
		t.Fatalf("expected lead match")
	}
	if venda.Status != "detectada" || venda.Origem != "deteccao-automatica" {
		t.Fatalf("unexpected venda fields: %+v", venda)
	}
	if venda.Variante != "testbx9" {
		t.Fatalf("variant must come from the matched lead, got %q", venda.Variante)
	}

	stored, _ := leads.ReadAll(ctx)
	if !stored[0].Converteu || stored[0].ValorConversao != 197 {
		t.Fatalf("lead must be marked converted: %+v", stored[0])
	}
}

func TestSubscribeMetricsReceivesUpdates(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService()

	ch, cancel, err := svc.SubscribeMetrics(ctx)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	initial := <-ch
	if initial.TotalLeads != 0 {
		t.Fatalf("expected empty initial summary, got %+v", initial)
	}

	_, _ = svc.IngestLead(ctx, domain.Lead{Nome: "Maria", Email: "maria@exemplo.com"})

	select {
	case update := <-ch:
		if update.TotalLeads != 1 {
			t.Fatalf("expected 1 lead in pushed summary, got %d", update.TotalLeads)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no summary pushed after ingest")
	}
}

func TestClearTestDataResetsEverything(t *testing.T) {
	ctx := context.Background()
	svc, events, leads := newTestService()

	id, _ := svc.StartSession(ctx, "testbx4", "", "")
	_ = svc.RecordAnswer(ctx, id, answer("idade", 10))
	_, _, _ = svc.Complete(ctx, id, Contact{Nome: "Maria", Email: "m@exemplo.com"})

	if err := svc.ClearTestData(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}

	logged, _ := events.ReadAll(ctx)
	stored, _ := leads.ReadAll(ctx)
	if len(logged) != 0 || len(stored) != 0 {
		t.Fatalf("stores must be empty, got %d events %d leads", len(logged), len(stored))
	}

	summary, err := svc.Metrics(ctx)
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	if summary.TotalViews != 0 || summary.TotalLeads != 0 {
		t.Fatalf("expected zeroed metrics, got %+v", summary)
	}

	if err := svc.RecordAnswer(ctx, id, answer("idade", 10)); err != domain.ErrSessionNotFound {
		t.Fatalf("sessions must be reset, got %v", err)
	}
}
