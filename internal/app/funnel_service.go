package app

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/MenopausaC/quiz-funnel-service/internal/domain"
	"github.com/MenopausaC/quiz-funnel-service/internal/metrics"
	"github.com/MenopausaC/quiz-funnel-service/internal/scoring"
	"github.com/MenopausaC/quiz-funnel-service/internal/sink"
	"github.com/google/uuid"
)

// EventLog is the slice of the event store the service appends to.
type EventLog interface {
	Append(ctx context.Context, event domain.Event) error
}

// LeadList is the slice of the lead store the service reads and updates.
type LeadList interface {
	ReadAll(ctx context.Context) ([]domain.Lead, error)
	Update(ctx context.Context, id, email string, fn func(*domain.Lead)) (domain.Lead, error)
}

// Recorder persists funnel records and reports which backend took them.
type Recorder interface {
	RecordLead(ctx context.Context, lead domain.Lead) sink.Outcome
	RecordView(ctx context.Context, view domain.View) sink.Outcome
	RecordVenda(ctx context.Context, venda domain.Venda) sink.Outcome
	RecordConversion(ctx context.Context, conv domain.Conversao, lead *domain.Lead) sink.Outcome
	ClearTestData(ctx context.Context) error
}

// MetricsProvider recomputes the dashboard summary.
type MetricsProvider interface {
	Compute(ctx context.Context) (metrics.Summary, error)
}

// Contact is the identification block submitted at quiz completion.
type Contact struct {
	Nome     string
	Email    string
	Telefone string
	Idade    int
}

// PaymentEvent is a normalized payment-processor notification.
type PaymentEvent struct {
	EventType     string
	PaymentID     string
	Status        string
	Amount        float64
	Currency      string
	CustomerName  string
	CustomerEmail string
	CustomerPhone string
	ProductID     string
	ProductName   string
	PaidAt        time.Time
	Raw           map[string]any
}

type session struct {
	id        string
	variante  string
	startedAt time.Time
	answers   map[string]domain.Answer
	backNavs  int
	completed bool
}

// FunnelService holds the quiz sessions and coordinates scoring, storage
// and the dashboard broadcast.
type FunnelService struct {
	events  EventLog
	leads   LeadList
	sink    Recorder
	metrics MetricsProvider
	clock   func() time.Time
	newID   func() string

	mu          sync.RWMutex
	sessions    map[string]*session
	subscribers map[chan metrics.Summary]struct{}
}

func NewFunnelService(events EventLog, leads LeadList, recorder Recorder, provider MetricsProvider) *FunnelService {
	return &FunnelService{
		events:      events,
		leads:       leads,
		sink:        recorder,
		metrics:     provider,
		clock:       time.Now,
		newID:       uuid.NewString,
		sessions:    make(map[string]*session),
		subscribers: make(map[chan metrics.Summary]struct{}),
	}
}

// StartSession creates a quiz session and records its view. Session-start
// recording is explicit; nothing fires on construction.
func (s *FunnelService) StartSession(ctx context.Context, variante, userAgent, url string) (string, sink.Outcome) {
	if variante == "" {
		variante = metrics.DefaultVariant
	}
	id := s.newID()
	now := s.clock()

	s.mu.Lock()
	s.sessions[id] = &session{
		id:        id,
		variante:  variante,
		startedAt: now,
		answers:   make(map[string]domain.Answer),
	}
	s.mu.Unlock()

	out := s.sink.RecordView(ctx, domain.View{
		ID:        id,
		Variante:  variante,
		UserAgent: userAgent,
		URL:       url,
		CriadoEm:  now,
	})
	s.notify(ctx)
	return id, out
}

// RecordAnswer stores an answer in the session, keyed by question id so
// re-answering overwrites, and logs the event.
func (s *FunnelService) RecordAnswer(ctx context.Context, sessionID string, answer domain.Answer) error {
	s.mu.Lock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		s.mu.Unlock()
		return domain.ErrSessionNotFound
	}
	if sess.completed {
		s.mu.Unlock()
		return domain.ErrAlreadyCompleted
	}
	sess.answers[answer.Pergunta] = answer
	variante := sess.variante
	s.mu.Unlock()

	return s.events.Append(ctx, domain.Event{
		ID:        s.newID(),
		Type:      domain.EventQuestionAnswered,
		Variante:  variante,
		SessionID: sessionID,
		Timestamp: s.clock(),
		Data: map[string]any{
			"pergunta": answer.Pergunta,
			"resposta": answer.Resposta,
			"pontos":   answer.Pontos,
			"tempo":    answer.TempoMs,
		},
	})
}

// TrackNavigation logs a navigation event; back moves feed the
// qualification's back-navigation count.
func (s *FunnelService) TrackNavigation(ctx context.Context, sessionID string, back bool) error {
	s.mu.Lock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		s.mu.Unlock()
		return domain.ErrSessionNotFound
	}
	eventType := domain.EventNavigationNext
	if back {
		sess.backNavs++
		eventType = domain.EventNavigationBack
	}
	variante := sess.variante
	s.mu.Unlock()

	return s.events.Append(ctx, domain.Event{
		ID:        s.newID(),
		Type:      eventType,
		Variante:  variante,
		SessionID: sessionID,
		Timestamp: s.clock(),
	})
}

// TrackEvent logs an auxiliary interaction (input changes, CTA clicks).
func (s *FunnelService) TrackEvent(ctx context.Context, sessionID, eventType string, data map[string]any) error {
	s.mu.RLock()
	sess, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if !ok {
		return domain.ErrSessionNotFound
	}
	return s.events.Append(ctx, domain.Event{
		ID:        s.newID(),
		Type:      eventType,
		Variante:  sess.variante,
		SessionID: sessionID,
		Timestamp: s.clock(),
		Data:      data,
	})
}

// Complete qualifies the session's answers and registers the lead exactly
// once; a second call returns ErrAlreadyCompleted.
func (s *FunnelService) Complete(ctx context.Context, sessionID string, contact Contact) (domain.Lead, sink.Outcome, error) {
	s.mu.Lock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		s.mu.Unlock()
		return domain.Lead{}, sink.Outcome{}, domain.ErrSessionNotFound
	}
	if sess.completed {
		s.mu.Unlock()
		return domain.Lead{}, sink.Outcome{}, domain.ErrAlreadyCompleted
	}
	sess.completed = true
	answers := make(map[string]domain.Answer, len(sess.answers))
	for k, v := range sess.answers {
		answers[k] = v
	}
	backNavs := sess.backNavs
	variante := sess.variante
	elapsed := s.clock().Sub(sess.startedAt)
	s.mu.Unlock()

	qual := scoring.Qualify(answers, elapsed, backNavs, contact.Idade)
	lead := domain.Lead{
		ID:           s.newID(),
		Nome:         strings.TrimSpace(contact.Nome),
		Email:        strings.ToLower(strings.TrimSpace(contact.Email)),
		Telefone:     strings.TrimSpace(contact.Telefone),
		Idade:        contact.Idade,
		Variante:     variante,
		Qualificacao: qual,
		TempoTotalMs: elapsed.Milliseconds(),
		Respostas:    answers,
		CriadoEm:     s.clock(),
	}
	out := s.ingest(ctx, lead, sessionID)
	return lead, out, nil
}

// IngestLead registers an externally submitted lead (the capture webhook
// path, where no in-process session exists).
func (s *FunnelService) IngestLead(ctx context.Context, lead domain.Lead) (domain.Lead, sink.Outcome) {
	if lead.ID == "" {
		lead.ID = s.newID()
	}
	if lead.CriadoEm.IsZero() {
		lead.CriadoEm = s.clock()
	}
	out := s.ingest(ctx, lead, "")
	return lead, out
}

func (s *FunnelService) ingest(ctx context.Context, lead domain.Lead, sessionID string) sink.Outcome {
	_ = s.events.Append(ctx, domain.Event{
		ID:        lead.ID,
		Type:      domain.EventQuizCompleted,
		Variante:  metrics.VariantOf(lead),
		SessionID: sessionID,
		Timestamp: lead.CriadoEm,
		Data:      map[string]any{"lead": lead},
	})
	out := s.sink.RecordLead(ctx, lead)
	s.notify(ctx)
	return out
}

// RegisterView records a page view outside any session (static funnel
// pages hitting the view endpoint directly).
func (s *FunnelService) RegisterView(ctx context.Context, view domain.View) (domain.View, sink.Outcome) {
	if view.ID == "" {
		view.ID = s.newID()
	}
	if view.CriadoEm.IsZero() {
		view.CriadoEm = s.clock()
	}
	out := s.sink.RecordView(ctx, view)
	s.notify(ctx)
	return view, out
}

// RecordVenda registers a reported sale.
func (s *FunnelService) RecordVenda(ctx context.Context, venda domain.Venda) (domain.Venda, sink.Outcome) {
	if venda.ID == "" {
		venda.ID = s.newID()
	}
	if venda.CriadoEm.IsZero() {
		venda.CriadoEm = s.clock()
	}
	out := s.sink.RecordVenda(ctx, venda)
	s.notify(ctx)
	return venda, out
}

// DetectVenda marks the matching lead as converted (when one exists) and
// records the sale with the auto-detection origin.
func (s *FunnelService) DetectVenda(ctx context.Context, venda domain.Venda) (domain.Venda, bool, sink.Outcome) {
	venda.Origem = "deteccao-automatica"
	venda.Status = "detectada"
	matched := false
	if lead, ok := s.findLead(ctx, venda.Email, venda.Telefone, venda.Nome); ok {
		matched = true
		if venda.Variante == "" {
			venda.Variante = metrics.VariantOf(lead)
		}
		_, err := s.leads.Update(ctx, lead.ID, lead.Email, func(l *domain.Lead) {
			l.Converteu = true
			l.ValorConversao = venda.Valor
			l.DataConversao = s.clock()
		})
		matched = err == nil
	}
	recorded, out := s.RecordVenda(ctx, venda)
	return recorded, matched, out
}

// ProcessPayment correlates an approved payment with a lead (email first,
// then phone, then exact name) and records the conversion. A payment with
// no matching lead is still recorded; found reports the correlation.
func (s *FunnelService) ProcessPayment(ctx context.Context, p PaymentEvent) (domain.Conversao, bool, sink.Outcome) {
	now := s.clock()
	if p.PaidAt.IsZero() {
		p.PaidAt = now
	}

	conv := domain.Conversao{
		ID:              s.newID(),
		PaymentID:       p.PaymentID,
		PaymentStatus:   p.Status,
		PaymentAmount:   p.Amount,
		PaymentCurrency: p.Currency,
		CustomerName:    p.CustomerName,
		CustomerEmail:   strings.ToLower(strings.TrimSpace(p.CustomerEmail)),
		CustomerPhone:   p.CustomerPhone,
		ProductID:       p.ProductID,
		ProductName:     p.ProductName,
		EventoOrigem:    p.EventType,
		Metadata:        p.Raw,
		CriadoEm:        now,
	}

	lead, found := s.findLead(ctx, p.CustomerEmail, p.CustomerPhone, p.CustomerName)
	var updated *domain.Lead
	if found {
		conv.LeadID = lead.ID
		conv.LeadEmail = lead.Email
		conv.LeadNome = lead.Nome
		conv.LeadVariante = metrics.VariantOf(lead)
		if !lead.CriadoEm.IsZero() {
			conv.TempoParaConversao = p.PaidAt.Sub(lead.CriadoEm).Milliseconds()
		}
		after, err := s.leads.Update(ctx, lead.ID, lead.Email, func(l *domain.Lead) {
			l.Converteu = true
			l.PaymentID = p.PaymentID
			l.ValorConversao = p.Amount
			l.DataConversao = p.PaidAt
			l.TempoParaConversao = conv.TempoParaConversao
		})
		if err == nil {
			updated = &after
		}
	}

	out := s.sink.RecordConversion(ctx, conv, updated)
	s.notify(ctx)
	return conv, found, out
}

// findLead searches the flat list by email, then normalized phone, then
// exact case-insensitive name.
func (s *FunnelService) findLead(ctx context.Context, email, phone, name string) (domain.Lead, bool) {
	leads, err := s.leads.ReadAll(ctx)
	if err != nil || len(leads) == 0 {
		return domain.Lead{}, false
	}

	email = strings.ToLower(strings.TrimSpace(email))
	if email != "" {
		for _, lead := range leads {
			if strings.ToLower(lead.Email) == email {
				return lead, true
			}
		}
	}

	if digits := phoneDigits(phone); len(digits) >= 8 {
		for _, lead := range leads {
			candidate := phoneDigits(lead.Telefone)
			if len(candidate) < 8 {
				continue
			}
			if candidate == digits || strings.HasSuffix(candidate, digits) || strings.HasSuffix(digits, candidate) {
				return lead, true
			}
		}
	}

	name = strings.TrimSpace(name)
	if name != "" {
		for _, lead := range leads {
			if strings.EqualFold(lead.Nome, name) {
				return lead, true
			}
		}
	}
	return domain.Lead{}, false
}

func phoneDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Metrics recomputes the dashboard summary.
func (s *FunnelService) Metrics(ctx context.Context) (metrics.Summary, error) {
	return s.metrics.Compute(ctx)
}

// ClearTestData wipes every store and the in-process sessions.
func (s *FunnelService) ClearTestData(ctx context.Context) error {
	if err := s.sink.ClearTestData(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	s.sessions = make(map[string]*session)
	s.mu.Unlock()
	s.notify(ctx)
	return nil
}
