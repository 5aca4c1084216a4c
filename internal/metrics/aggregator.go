// Package metrics recomputes dashboard counters on demand from whichever
// stores hold data: the remote tables when configured and reachable, the
// local event log and lead list otherwise. Nothing here is cached between
// calls; the only write is the one-shot self-healing copy-back when local
// sources diverge.
package metrics

import (
	"context"
	"log"
	"math"
	"time"

	"github.com/MenopausaC/quiz-funnel-service/internal/domain"
	"golang.org/x/sync/singleflight"
)

// EventSource is the local event log as seen by the aggregator. Append is
// only used by the self-healing repair, which re-inserts quiz_completed
// events for leads present in the flat list but missing from the log.
type EventSource interface {
	ReadAll(ctx context.Context) ([]domain.Event, error)
	Append(ctx context.Context, event domain.Event) error
	ViewCounts(ctx context.Context) (map[string]int, error)
	SyncViewCounts(ctx context.Context, counts map[string]int) error
}

// LeadSource is the local flat lead list.
type LeadSource interface {
	ReadAll(ctx context.Context) ([]domain.Lead, error)
	ReplaceAll(ctx context.Context, leads []domain.Lead) error
}

// RemoteReader reads the hosted tables. A nil RemoteReader means local-only
// mode.
type RemoteReader interface {
	Ping(ctx context.Context) error
	Leads(ctx context.Context) ([]domain.Lead, error)
	Views(ctx context.Context) ([]domain.View, error)
	Conversions(ctx context.Context) ([]domain.Conversao, error)
}

// VariantStats is the per-variant tally block.
type VariantStats struct {
	Views          int     `json:"views"`
	Leads          int     `json:"leads"`
	Quentes        int     `json:"quentes"`
	MuitoQuentes   int     `json:"muitoQuentes"`
	Mornos         int     `json:"mornos"`
	Frios          int     `json:"frios"`
	ClassAAA       int     `json:"classificacaoAAA"`
	ClassAA        int     `json:"classificacaoAA"`
	ClassA         int     `json:"classificacaoA"`
	ClassB         int     `json:"classificacaoB"`
	Urgentes       int     `json:"urgentes"`
	PrioridadeAlta int     `json:"prioridadeAlta"`
	PontuacaoMedia int     `json:"pontuacaoMedia"`
	TempoMedioSeg  int     `json:"tempoMedio"`
	Conversoes     int     `json:"conversoes"`
	Receita        float64 `json:"receita"`
	TaxaConversao  float64 `json:"taxaConversao"`

	somaPontuacao  int
	pontuacaoCount int
	somaTempoMs    int64
	tempoCount     int
}

// Summary is the dashboard payload.
type Summary struct {
	TotalViews        int                      `json:"totalViews"`
	TotalLeads        int                      `json:"totalLeads"`
	TotalConversoes   int                      `json:"totalConversoes"`
	TaxaConversao     float64                  `json:"taxaConversao"`
	TaxaConversaoReal float64                  `json:"taxaConversaoReal"`
	ReceitaTotal      float64                  `json:"receitaTotal"`
	Variantes         map[string]*VariantStats `json:"variantes"`
	Leads             []domain.Lead            `json:"leads"`
	Mode              string                   `json:"mode"`
	GeradoEm          time.Time                `json:"geradoEm"`
}

// ConversionRate is leads/views as a percentage with one decimal place,
// zero when there are no views.
func ConversionRate(leads, views int) float64 {
	if views == 0 {
		return 0
	}
	return math.Round(float64(leads)/float64(views)*1000) / 10
}

// Aggregator derives Summary values from the configured sources.
type Aggregator struct {
	remote RemoteReader
	events EventSource
	leads  LeadSource
	sf     singleflight.Group
	clock  func() time.Time

	recentLimit int
}

func NewAggregator(remote RemoteReader, events EventSource, leads LeadSource) *Aggregator {
	return &Aggregator{
		remote:      remote,
		events:      events,
		leads:       leads,
		clock:       time.Now,
		recentLimit: 50,
	}
}

// Compute recalculates the summary. Concurrent callers (dashboard poll
// cycles) share one computation via singleflight. The call is a pure
// read-and-derive except for the local self-healing repair, which only
// writes when the local sources disagree and is therefore idempotent.
func (a *Aggregator) Compute(ctx context.Context) (Summary, error) {
	result, err, _ := a.sf.Do("metrics", func() (interface{}, error) {
		return a.compute(ctx)
	})
	if err != nil {
		return Summary{}, err
	}
	return result.(Summary), nil
}

func (a *Aggregator) compute(ctx context.Context) (Summary, error) {
	if a.remote != nil {
		if err := a.remote.Ping(ctx); err == nil {
			summary, err := a.computeRemote(ctx)
			if err == nil {
				return summary, nil
			}
			log.Printf("metrics: remote aggregation failed, falling back to local: %v", err)
		} else {
			log.Printf("metrics: remote store unreachable, using local sources: %v", err)
		}
	}
	return a.computeLocal(ctx)
}

func (a *Aggregator) computeRemote(ctx context.Context) (Summary, error) {
	leads, err := a.remote.Leads(ctx)
	if err != nil {
		return Summary{}, err
	}
	views, err := a.remote.Views(ctx)
	if err != nil {
		return Summary{}, err
	}
	conversions, err := a.remote.Conversions(ctx)
	if err != nil {
		// The conversions table may not exist yet; degrade to none.
		log.Printf("metrics: conversions unavailable: %v", err)
		conversions = nil
	}

	viewCounts := make(map[string]int)
	for _, v := range views {
		variant := v.Variante
		if variant == "" {
			variant = DefaultVariant
		}
		viewCounts[variant]++
	}

	return a.summarize(leads, viewCounts, conversions, "remote"), nil
}

func (a *Aggregator) computeLocal(ctx context.Context) (Summary, error) {
	events, err := a.events.ReadAll(ctx)
	if err != nil {
		log.Printf("metrics: event log read failed: %v", err)
		events = nil
	}
	listLeads, err := a.leads.ReadAll(ctx)
	if err != nil {
		log.Printf("metrics: lead list read failed: %v", err)
		listLeads = nil
	}

	eventLeads := leadsFromEvents(events)
	winner, source := Merge(eventLeads, listLeads)
	a.heal(ctx, winner, source, eventLeads, listLeads)

	viewCounts := viewCountsFromEvents(events)
	if counters, err := a.events.ViewCounts(ctx); err == nil {
		if reconcileViewCounts(viewCounts, counters) {
			_ = a.events.SyncViewCounts(ctx, viewCounts)
		}
	}

	conversions := conversionsFromLeads(winner)
	return a.summarize(winner, viewCounts, conversions, "local"), nil
}

// heal copies the richer local lead source over the poorer one. When the
// flat list lost entries it is replaced wholesale; when the event log lost
// entries the missing completions are re-appended (the log itself is never
// rewritten). Running heal on already-agreeing sources writes nothing.
func (a *Aggregator) heal(ctx context.Context, winner []domain.Lead, source Source, eventLeads, listLeads []domain.Lead) {
	if len(eventLeads) == len(listLeads) {
		return
	}
	switch source {
	case FromA: // event log won
		if err := a.leads.ReplaceAll(ctx, winner); err != nil {
			log.Printf("metrics: lead list repair failed: %v", err)
		} else {
			log.Printf("metrics: repaired lead list from event log (%d leads)", len(winner))
		}
	case FromB: // flat list won
		known := make(map[string]bool, len(eventLeads))
		for _, lead := range eventLeads {
			known[leadKey(lead)] = true
		}
		repaired := 0
		for _, lead := range winner {
			if known[leadKey(lead)] {
				continue
			}
			if err := a.events.Append(ctx, completionEvent(lead)); err != nil {
				log.Printf("metrics: event log repair failed: %v", err)
				return
			}
			repaired++
		}
		if repaired > 0 {
			log.Printf("metrics: re-appended %d missing completions to event log", repaired)
		}
	}
}

func leadKey(lead domain.Lead) string {
	if lead.ID != "" {
		return lead.ID
	}
	return lead.Email
}

func completionEvent(lead domain.Lead) domain.Event {
	return domain.Event{
		ID:        lead.ID,
		Type:      domain.EventQuizCompleted,
		Variante:  VariantOf(lead),
		Timestamp: lead.CriadoEm,
		Data:      map[string]any{"lead": lead},
	}
}

func (a *Aggregator) summarize(leads []domain.Lead, viewCounts map[string]int, conversions []domain.Conversao, mode string) Summary {
	variantes := make(map[string]*VariantStats)
	stats := func(variant string) *VariantStats {
		if s, ok := variantes[variant]; ok {
			return s
		}
		s := &VariantStats{}
		variantes[variant] = s
		return s
	}

	totalViews := 0
	for variant, count := range viewCounts {
		stats(variant).Views = count
		totalViews += count
	}

	for _, lead := range leads {
		s := stats(VariantOf(lead))
		s.Leads++

		switch lead.Qualificacao.Categoria {
		case domain.TierMuitoQuente:
			s.MuitoQuentes++
		case domain.TierQuente:
			s.Quentes++
		case domain.TierMorno:
			s.Mornos++
		case domain.TierFrio:
			s.Frios++
		}

		switch lead.Qualificacao.Classificacao {
		case domain.GradeAAA:
			s.ClassAAA++
		case domain.GradeAA:
			s.ClassAA++
		case domain.GradeA:
			s.ClassA++
		case domain.GradeB:
			s.ClassB++
		}

		if lead.Qualificacao.Urgencia == domain.UrgencyAlta {
			s.Urgentes++
		}
		if lead.Qualificacao.Prioridade >= 4 {
			s.PrioridadeAlta++
		}
		if lead.Qualificacao.Score > 0 {
			s.somaPontuacao += lead.Qualificacao.Score
			s.pontuacaoCount++
		}
		if lead.TempoTotalMs > 0 {
			s.somaTempoMs += lead.TempoTotalMs
			s.tempoCount++
		}
		if lead.Converteu {
			s.Conversoes++
			s.Receita += lead.ValorConversao
		}
	}

	receitaTotal := 0.0
	for _, conv := range conversions {
		receitaTotal += conv.PaymentAmount
	}

	for _, s := range variantes {
		if s.pontuacaoCount > 0 {
			s.PontuacaoMedia = int(math.Round(float64(s.somaPontuacao) / float64(s.pontuacaoCount)))
		}
		if s.tempoCount > 0 {
			s.TempoMedioSeg = int(math.Round(float64(s.somaTempoMs) / float64(s.tempoCount) / 1000))
		}
		s.TaxaConversao = ConversionRate(s.Leads, s.Views)
	}

	recent := leads
	if len(recent) > a.recentLimit {
		recent = recent[len(recent)-a.recentLimit:]
	}

	return Summary{
		TotalViews:        totalViews,
		TotalLeads:        len(leads),
		TotalConversoes:   len(conversions),
		TaxaConversao:     ConversionRate(len(leads), totalViews),
		TaxaConversaoReal: ConversionRate(len(conversions), len(leads)),
		ReceitaTotal:      receitaTotal,
		Variantes:         variantes,
		Leads:             recent,
		Mode:              mode,
		GeradoEm:          a.clock(),
	}
}

func leadsFromEvents(events []domain.Event) []domain.Lead {
	var leads []domain.Lead
	for _, e := range events {
		if e.Type != domain.EventQuizCompleted {
			continue
		}
		lead, ok := leadFromEvent(e)
		if !ok {
			continue
		}
		leads = append(leads, lead)
	}
	return leads
}

// leadFromEvent tolerates both native events (whose payload holds a
// domain.Lead) and legacy JSON-decoded events (payload is a raw map).
// Unparseable payloads are skipped, not fatal.
func leadFromEvent(e domain.Event) (domain.Lead, bool) {
	raw, ok := e.Data["lead"]
	if !ok {
		return domain.Lead{}, false
	}
	switch v := raw.(type) {
	case domain.Lead:
		return v, true
	case map[string]any:
		lead := domain.Lead{
			Nome:     stringField(v, "nome"),
			Email:    stringField(v, "email"),
			Variante: stringField(v, "variante"),
		}
		if lead.Variante == "" {
			lead.Variante = e.Variante
		}
		if id := stringField(v, "id"); id != "" {
			lead.ID = id
		} else {
			lead.ID = e.ID
		}
		return lead, lead.Email != "" || lead.Nome != ""
	default:
		return domain.Lead{}, false
	}
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func viewCountsFromEvents(events []domain.Event) map[string]int {
	counts := make(map[string]int)
	for _, e := range events {
		if e.Type != domain.EventSessionStart {
			continue
		}
		variant := e.Variante
		if variant == "" {
			variant = DefaultVariant
		}
		counts[variant]++
	}
	return counts
}

// reconcileViewCounts merges the redundant per-variant counters into the
// event-derived counts, keeping whichever is larger.
// reconcileViewCounts folds the persisted counters into the event-derived
// counts, bigger wins per variant. It reports whether the merged result
// differs from the persisted counters, so callers skip the write-back when
// the mirror is already correct.
func reconcileViewCounts(dst map[string]int, counters map[string]int) bool {
	for variant, count := range counters {
		if count > dst[variant] {
			dst[variant] = count
		}
	}
	if len(dst) != len(counters) {
		return true
	}
	for variant, count := range dst {
		if counters[variant] != count {
			return true
		}
	}
	return false
}

func conversionsFromLeads(leads []domain.Lead) []domain.Conversao {
	var out []domain.Conversao
	for _, lead := range leads {
		if !lead.Converteu {
			continue
		}
		out = append(out, domain.Conversao{
			LeadID:        lead.ID,
			LeadEmail:     lead.Email,
			LeadNome:      lead.Nome,
			LeadVariante:  VariantOf(lead),
			PaymentID:     lead.PaymentID,
			PaymentAmount: lead.ValorConversao,
		})
	}
	return out
}
