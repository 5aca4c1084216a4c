package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/MenopausaC/quiz-funnel-service/internal/domain"
)

// LeadList is the in-memory flat lead list with a backup mirror.
type LeadList struct {
	mu     sync.RWMutex
	leads  []domain.Lead
	backup []domain.Lead
}

func NewLeadList() *LeadList {
	return &LeadList{}
}

func (l *LeadList) Append(_ context.Context, lead domain.Lead) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.leads = append(l.leads, lead)
	l.backup = append(l.backup, lead)
	return nil
}

func (l *LeadList) ReadAll(_ context.Context) ([]domain.Lead, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.leads) == 0 && len(l.backup) > 0 {
		l.leads = append([]domain.Lead(nil), l.backup...)
	}
	return append([]domain.Lead(nil), l.leads...), nil
}

func (l *LeadList) ReplaceAll(_ context.Context, leads []domain.Lead) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.leads = append([]domain.Lead(nil), leads...)
	l.backup = append([]domain.Lead(nil), leads...)
	return nil
}

// Update finds a lead by id or, failing that, case-insensitive email and
// applies fn to it in place. Used by the conversion correlator.
func (l *LeadList) Update(_ context.Context, id, email string, fn func(*domain.Lead)) (domain.Lead, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	idx := -1
	for i := range l.leads {
		if id != "" && l.leads[i].ID == id {
			idx = i
			break
		}
		if email != "" && strings.EqualFold(l.leads[i].Email, email) {
			idx = i
			break
		}
	}
	if idx < 0 {
		return domain.Lead{}, domain.ErrLeadNotFound
	}
	fn(&l.leads[idx])
	l.backup = append([]domain.Lead(nil), l.leads...)
	return l.leads[idx], nil
}

func (l *LeadList) Clear(_ context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.leads = nil
	l.backup = nil
	return nil
}
