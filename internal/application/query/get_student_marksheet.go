// Package query contains read operations (CQRS - Queries).
package query

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/schoolhub/marksflow/internal/domain/assessment"
	"github.com/schoolhub/marksflow/internal/domain/shared"
	"github.com/schoolhub/marksflow/internal/infrastructure/persistence/redis"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET STUDENT MARKSHEET QUERY
//
// The student/parent grade view. Serves the cached marksheet when one
// exists; otherwise reads the record store, exposes published lines only,
// and backfills the cache best-effort.
// ══════════════════════════════════════════════════════════════════════════════

// GetStudentMarksheetQuery contains the parameters of a marksheet lookup.
type GetStudentMarksheetQuery struct {
	// ExamID identifies the exam cycle.
	ExamID shared.ExamID

	// StudentID identifies the student.
	StudentID shared.StudentID
}

// Validate checks the query parameters.
func (q *GetStudentMarksheetQuery) Validate() error {
	if !q.ExamID.IsValid() {
		return errors.New("exam_id is required")
	}
	if !q.StudentID.IsValid() {
		return errors.New("student_id is required")
	}
	return nil
}

// SubjectLineDTO is one published subject row of the marksheet.
type SubjectLineDTO struct {
	// SubjectID identifies the subject.
	SubjectID string `json:"subject_id"`

	// Internal is the internal component; nil when never entered.
	Internal *int `json:"internal,omitempty"`

	// External is the external component; nil when never entered.
	External *int `json:"external,omitempty"`

	// Total is the stored sum of the components.
	Total int `json:"total"`
}

// MarksheetDTO is the grade view's read model.
type MarksheetDTO struct {
	// ExamID identifies the exam cycle.
	ExamID string `json:"exam_id"`

	// StudentID identifies the student.
	StudentID string `json:"student_id"`

	// Lines holds the published subject rows, sorted by subject.
	Lines []SubjectLineDTO `json:"lines"`

	// AggregatePercent is the overall percentage across published lines.
	AggregatePercent float64 `json:"aggregate_percent"`

	// GeneratedAt is when this view was assembled.
	GeneratedAt time.Time `json:"generated_at"`

	// FromCache reports whether the cache served this view.
	FromCache bool `json:"from_cache"`
}

// SheetReader is the slice of the marksheet cache the query reads.
type SheetReader interface {
	Get(ctx context.Context, examID shared.ExamID, studentID shared.StudentID) (*redis.Marksheet, error)
	Set(ctx context.Context, sheet redis.Marksheet) error
}

// GetStudentMarksheetHandler executes marksheet lookups.
type GetStudentMarksheetHandler struct {
	store  assessment.RecordStore
	cache  SheetReader
	scheme assessment.ScoreScheme
	logger *slog.Logger
}

// NewGetStudentMarksheetHandler creates the handler. cache may be nil, in
// which case every lookup reads the store.
func NewGetStudentMarksheetHandler(store assessment.RecordStore, cache SheetReader, scheme assessment.ScoreScheme, logger *slog.Logger) *GetStudentMarksheetHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &GetStudentMarksheetHandler{
		store:  store,
		cache:  cache,
		scheme: scheme,
		logger: logger,
	}
}

// Execute runs the query. Drafts and submitted records never appear in the
// result; a student with no published records gets an empty marksheet, not
// an error.
func (h *GetStudentMarksheetHandler) Execute(ctx context.Context, q GetStudentMarksheetQuery) (*MarksheetDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	if h.cache != nil {
		sheet, err := h.cache.Get(ctx, q.ExamID, q.StudentID)
		if err == nil {
			return toDTO(*sheet, true), nil
		}
		if !errors.Is(err, redis.ErrCacheMiss) {
			h.logger.Warn("marksheet cache read failed, falling back to store",
				"exam_id", q.ExamID.String(),
				"student_id", q.StudentID.String(),
				"error", err,
			)
		}
	}

	records, err := h.store.FetchRecords(ctx, q.ExamID, assessment.RecordFilter{
		StudentIDs: []shared.StudentID{q.StudentID},
	})
	if err != nil {
		return nil, shared.WrapError("query", "GetStudentMarksheet", shared.ErrPersistence, "failed to load records", err)
	}

	sheet := redis.BuildMarksheet(q.ExamID, q.StudentID, records, h.scheme)

	if h.cache != nil && len(sheet.Lines) > 0 {
		if err := h.cache.Set(ctx, sheet); err != nil {
			h.logger.Warn("marksheet cache backfill failed",
				"exam_id", q.ExamID.String(),
				"student_id", q.StudentID.String(),
				"error", err,
			)
		}
	}

	return toDTO(sheet, false), nil
}

func toDTO(sheet redis.Marksheet, fromCache bool) *MarksheetDTO {
	dto := &MarksheetDTO{
		ExamID:           sheet.ExamID,
		StudentID:        sheet.StudentID,
		AggregatePercent: sheet.AggregatePercent,
		GeneratedAt:      sheet.GeneratedAt,
		FromCache:        fromCache,
	}
	for _, line := range sheet.Lines {
		dto.Lines = append(dto.Lines, SubjectLineDTO{
			SubjectID: line.SubjectID,
			Internal:  line.Internal,
			External:  line.External,
			Total:     line.Total,
		})
	}
	return dto
}
