package metrics

import "github.com/MenopausaC/quiz-funnel-service/internal/domain"

// Source identifies which side of a merge won.
type Source int

const (
	FromA Source = iota
	FromB
)

// Merge picks the richer of two lead collections. There is no entry-level
// conflict resolution: the source with more entries wins wholesale, ties go
// to A. Pure; callers perform the copy-back repair.
func Merge(a, b []domain.Lead) ([]domain.Lead, Source) {
	if len(b) > len(a) {
		return b, FromB
	}
	return a, FromA
}
