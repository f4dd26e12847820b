package redis

import (
	"context"
	"sort"
	"time"

	"github.com/schoolhub/marksflow/internal/domain/assessment"
	"github.com/schoolhub/marksflow/internal/domain/shared"
	"github.com/schoolhub/marksflow/pkg/circuitbreaker"
)

// ══════════════════════════════════════════════════════════════════════════════
// PUBLISHED MARKSHEET CACHE
// ══════════════════════════════════════════════════════════════════════════════

// Marksheet is the cached read model a student's grade view renders: every
// published subject line for one exam plus the aggregate percentage.
// Only published records ever enter it; drafts and submitted rows stay
// invisible to students.
type Marksheet struct {
	ExamID           string          `json:"exam_id"`
	StudentID        string          `json:"student_id"`
	Lines            []MarksheetLine `json:"lines"`
	AggregatePercent float64         `json:"aggregate_percent"`
	GeneratedAt      time.Time       `json:"generated_at"`
}

// MarksheetLine is one published subject row.
type MarksheetLine struct {
	SubjectID string `json:"subject_id"`
	Internal  *int   `json:"internal,omitempty"`
	External  *int   `json:"external,omitempty"`
	Total     int    `json:"total"`
}

// BuildMarksheet assembles the cached document from a student's records.
// Non-published records are skipped; the aggregate covers published lines
// only, so it matches what the student actually sees.
func BuildMarksheet(examID shared.ExamID, studentID shared.StudentID, records []*assessment.AssessmentRecord, scheme assessment.ScoreScheme) Marksheet {
	sheet := Marksheet{
		ExamID:      examID.String(),
		StudentID:   studentID.String(),
		GeneratedAt: time.Now().UTC(),
	}

	var published []*assessment.AssessmentRecord
	for _, r := range records {
		if r.Status != assessment.StatusPublished {
			continue
		}
		published = append(published, r)
		sheet.Lines = append(sheet.Lines, MarksheetLine{
			SubjectID: r.Key.SubjectID.String(),
			Internal:  scoreValue(r.Internal),
			External:  scoreValue(r.External),
			Total:     r.Total,
		})
	}

	sort.Slice(sheet.Lines, func(i, j int) bool {
		return sheet.Lines[i].SubjectID < sheet.Lines[j].SubjectID
	})
	sheet.AggregatePercent = assessment.ComputeAggregatePercent(published, scheme)
	return sheet
}

func scoreValue(s shared.Score) *int {
	if !s.Entered() {
		return nil
	}
	v := s.Int()
	return &v
}

// MarksheetCache stores published marksheets keyed by (exam, student).
// The publish event handler writes entries eagerly; grade views read them
// and fall back to the record store on a miss. Calls go through a circuit
// breaker so a dead Redis degrades to cache misses instead of piling up
// timeouts.
type MarksheetCache struct {
	cache   *Cache
	breaker *circuitbreaker.CircuitBreaker
	ttl     time.Duration
}

// NewMarksheetCache creates a new MarksheetCache. A non-positive ttl falls
// back to TTLMarksheet.
func NewMarksheetCache(cache *Cache, ttl time.Duration) *MarksheetCache {
	if ttl <= 0 {
		ttl = TTLMarksheet
	}
	return &MarksheetCache{
		cache:   cache,
		breaker: circuitbreaker.CacheBreaker(nil),
		ttl:     ttl,
	}
}

// Get returns the cached marksheet, or ErrCacheMiss. An open breaker also
// reports a miss so callers fall back to the record store.
func (m *MarksheetCache) Get(ctx context.Context, examID shared.ExamID, studentID shared.StudentID) (*Marksheet, error) {
	var sheet Marksheet
	key := MarksheetKey(examID.String(), studentID.String())
	err := m.breaker.Execute(ctx, func(ctx context.Context) error {
		return m.cache.Get(ctx, key, &sheet)
	})
	if err != nil {
		if circuitbreaker.IsCircuitOpen(err) {
			return nil, ErrCacheMiss
		}
		return nil, err
	}
	return &sheet, nil
}

// Set stores a marksheet.
func (m *MarksheetCache) Set(ctx context.Context, sheet Marksheet) error {
	key := MarksheetKey(sheet.ExamID, sheet.StudentID)
	return m.breaker.Execute(ctx, func(ctx context.Context) error {
		return m.cache.Set(ctx, key, sheet, m.ttl)
	})
}

// Invalidate removes one student's cached marksheet.
func (m *MarksheetCache) Invalidate(ctx context.Context, examID shared.ExamID, studentID shared.StudentID) error {
	return m.breaker.Execute(ctx, func(ctx context.Context) error {
		return m.cache.Delete(ctx, MarksheetKey(examID.String(), studentID.String()))
	})
}

// InvalidateExam removes every cached marksheet for an exam.
func (m *MarksheetCache) InvalidateExam(ctx context.Context, examID shared.ExamID) error {
	return m.cache.DeleteByPattern(ctx, PrefixMarksheet+examID.String()+":*")
}
