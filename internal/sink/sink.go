// Package sink persists funnel records. Every write lands in the local
// stores first (they are the source of truth for the reconciler) and is
// then pushed to the remote tables when a remote store is configured.
// Remote failures never propagate as errors; the caller gets an Outcome
// naming which backend ended up holding the record.
package sink

import (
	"context"
	"log"

	"github.com/MenopausaC/quiz-funnel-service/internal/domain"
)

// RemoteStore writes to the hosted tables.
type RemoteStore interface {
	Ping(ctx context.Context) error
	InsertLead(ctx context.Context, lead domain.Lead) error
	InsertView(ctx context.Context, view domain.View) error
	InsertVenda(ctx context.Context, venda domain.Venda) error
	InsertConversao(ctx context.Context, conv domain.Conversao) error
	MirrorDashboard(ctx context.Context, lead domain.Lead) error
	UpdateLeadConversion(ctx context.Context, lead domain.Lead) error
	ClearTestData(ctx context.Context) error
}

// EventLog is the slice of the local event store the sink writes to.
type EventLog interface {
	Append(ctx context.Context, event domain.Event) error
	IncrementView(ctx context.Context, variant string) error
	Clear(ctx context.Context) error
}

// LeadList is the slice of the local lead store the sink writes to.
type LeadList interface {
	Append(ctx context.Context, lead domain.Lead) error
	Clear(ctx context.Context) error
}

// Outcome reports where a record ended up. Backend is "remote" when the
// hosted insert succeeded and "local" when only the local stores hold the
// record; Err then carries the remote failure.
type Outcome struct {
	Backend string `json:"backend"`
	Err     error  `json:"-"`
}

const (
	BackendRemote = "remote"
	BackendLocal  = "local"
)

// Sink fans writes out to the local stores and, when configured, the
// remote ones.
type Sink struct {
	remote RemoteStore
	events EventLog
	leads  LeadList
}

func New(remote RemoteStore, events EventLog, leads LeadList) *Sink {
	return &Sink{remote: remote, events: events, leads: leads}
}

// RecordLead stores a completed lead. The local append happens
// unconditionally; the remote insert and its dashboard mirror are
// attempted afterwards.
func (s *Sink) RecordLead(ctx context.Context, lead domain.Lead) Outcome {
	if err := s.leads.Append(ctx, lead); err != nil {
		log.Printf("sink: local lead append failed: %v", err)
	}

	if s.remote == nil {
		return Outcome{Backend: BackendLocal}
	}
	if err := s.remote.InsertLead(ctx, lead); err != nil {
		log.Printf("sink: remote lead insert failed, lead kept locally: %v", err)
		return Outcome{Backend: BackendLocal, Err: err}
	}
	// The dashboard mirror table is secondary; a failure there does not
	// downgrade the outcome.
	if err := s.remote.MirrorDashboard(ctx, lead); err != nil {
		log.Printf("sink: dashboard mirror failed: %v", err)
	}
	return Outcome{Backend: BackendRemote}
}

// RecordView stores a page view: local event plus redundant counter, then
// the remote row.
func (s *Sink) RecordView(ctx context.Context, view domain.View) Outcome {
	variant := view.Variante
	if variant == "" {
		variant = "default"
	}
	if err := s.events.Append(ctx, domain.Event{
		ID:        view.ID,
		Type:      domain.EventSessionStart,
		SessionID: view.ID,
		Variante:  variant,
		Timestamp: view.CriadoEm,
		UserAgent: view.UserAgent,
		URL:       view.URL,
	}); err != nil {
		log.Printf("sink: local view event failed: %v", err)
	}
	if err := s.events.IncrementView(ctx, variant); err != nil {
		log.Printf("sink: view counter failed: %v", err)
	}

	if s.remote == nil {
		return Outcome{Backend: BackendLocal}
	}
	if err := s.remote.InsertView(ctx, view); err != nil {
		log.Printf("sink: remote view insert failed, view kept locally: %v", err)
		return Outcome{Backend: BackendLocal, Err: err}
	}
	return Outcome{Backend: BackendRemote}
}

// RecordVenda stores a reported sale as a local event plus the remote row.
func (s *Sink) RecordVenda(ctx context.Context, venda domain.Venda) Outcome {
	if err := s.events.Append(ctx, domain.Event{
		ID:        venda.ID,
		Type:      domain.EventSaleRecorded,
		Variante:  venda.Variante,
		Timestamp: venda.CriadoEm,
		Data:      map[string]any{"venda": venda},
	}); err != nil {
		log.Printf("sink: local sale event failed: %v", err)
	}

	if s.remote == nil {
		return Outcome{Backend: BackendLocal}
	}
	if err := s.remote.InsertVenda(ctx, venda); err != nil {
		log.Printf("sink: remote sale insert failed, sale kept locally: %v", err)
		return Outcome{Backend: BackendLocal, Err: err}
	}
	return Outcome{Backend: BackendRemote}
}

// RecordConversion stores a correlated payment. The updated lead, when
// present, is also pushed so the remote lead row carries the conversion
// fields.
func (s *Sink) RecordConversion(ctx context.Context, conv domain.Conversao, lead *domain.Lead) Outcome {
	if err := s.events.Append(ctx, domain.Event{
		ID:        conv.ID,
		Type:      domain.EventSaleRecorded,
		Variante:  conv.LeadVariante,
		Timestamp: conv.CriadoEm,
		Data:      map[string]any{"conversao": conv},
	}); err != nil {
		log.Printf("sink: local conversion event failed: %v", err)
	}

	if s.remote == nil {
		return Outcome{Backend: BackendLocal}
	}
	if err := s.remote.InsertConversao(ctx, conv); err != nil {
		log.Printf("sink: remote conversion insert failed, kept locally: %v", err)
		return Outcome{Backend: BackendLocal, Err: err}
	}
	if lead != nil {
		if err := s.remote.UpdateLeadConversion(ctx, *lead); err != nil {
			log.Printf("sink: remote lead conversion update failed: %v", err)
		}
	}
	return Outcome{Backend: BackendRemote}
}

// ClearTestData wipes the local stores and, when configured, the remote
// tables.
func (s *Sink) ClearTestData(ctx context.Context) error {
	if err := s.events.Clear(ctx); err != nil {
		return err
	}
	if err := s.leads.Clear(ctx); err != nil {
		return err
	}
	if s.remote != nil {
		if err := s.remote.ClearTestData(ctx); err != nil {
			return err
		}
	}
	return nil
}
