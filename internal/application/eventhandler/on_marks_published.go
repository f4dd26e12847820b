// Package eventhandler contains the subscribers that react to assessment
// lifecycle events. Handlers are fire-and-forget consumers: a failure is
// logged, never propagated back to the workflow that emitted the event.
package eventhandler

import (
	"context"
	"log/slog"
	"time"

	"github.com/schoolhub/marksflow/internal/domain/assessment"
	"github.com/schoolhub/marksflow/internal/domain/shared"
	"github.com/schoolhub/marksflow/internal/infrastructure/persistence/redis"
)

// ══════════════════════════════════════════════════════════════════════════════
// ON MARKS PUBLISHED HANDLER
//
// Keeps the published-marksheet cache in step with the record store:
// 1. marks.published — rebuild the student's marksheet so grade views read
//    fresh data immediately.
// 2. marks.rejected — drop the cached marksheet; a rejection after a partial
//    publish must not leave stale published lines visible.
// ══════════════════════════════════════════════════════════════════════════════

// SheetCache is the slice of the marksheet cache this handler writes.
type SheetCache interface {
	Set(ctx context.Context, sheet redis.Marksheet) error
	Invalidate(ctx context.Context, examID shared.ExamID, studentID shared.StudentID) error
}

// OnMarksPublishedHandler maintains the published-results cache.
type OnMarksPublishedHandler struct {
	store  assessment.RecordStore
	cache  SheetCache
	scheme assessment.ScoreScheme
	logger *slog.Logger

	// Timeout bounds each cache refresh; events carry no caller context.
	Timeout time.Duration
}

// NewOnMarksPublishedHandler creates the handler.
func NewOnMarksPublishedHandler(store assessment.RecordStore, cache SheetCache, scheme assessment.ScoreScheme, logger *slog.Logger) *OnMarksPublishedHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &OnMarksPublishedHandler{
		store:   store,
		cache:   cache,
		scheme:  scheme,
		logger:  logger.With("handler", "on_marks_published"),
		Timeout: 10 * time.Second,
	}
}

// Handle implements shared.EventHandler (via method value). Events may
// arrive as typed StatusChangedEvents locally or as reconstructed envelope
// events from the Redis bus, so the key is read from the payload.
func (h *OnMarksPublishedHandler) Handle(event shared.Event) error {
	eventType := event.EventType()
	if eventType != assessment.EventMarksPublished && eventType != assessment.EventMarksRejected {
		return nil
	}

	examID, studentID, ok := recordScope(event)
	if !ok {
		h.logger.Warn("event payload missing exam or student id",
			"event_type", eventType,
			"aggregate_id", event.AggregateID(),
		)
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.Timeout)
	defer cancel()

	switch eventType {
	case assessment.EventMarksPublished:
		h.refresh(ctx, examID, studentID)
	case assessment.EventMarksRejected:
		h.invalidate(ctx, examID, studentID)
	}
	return nil
}

func (h *OnMarksPublishedHandler) refresh(ctx context.Context, examID shared.ExamID, studentID shared.StudentID) {
	records, err := h.store.FetchRecords(ctx, examID, assessment.RecordFilter{
		StudentIDs: []shared.StudentID{studentID},
	})
	if err != nil {
		h.logger.Error("failed to load records for marksheet refresh",
			"exam_id", examID.String(),
			"student_id", studentID.String(),
			"error", err,
		)
		return
	}

	sheet := redis.BuildMarksheet(examID, studentID, records, h.scheme)
	if err := h.cache.Set(ctx, sheet); err != nil {
		h.logger.Error("failed to write marksheet cache",
			"exam_id", examID.String(),
			"student_id", studentID.String(),
			"error", err,
		)
		return
	}

	h.logger.Info("marksheet cache refreshed",
		"exam_id", examID.String(),
		"student_id", studentID.String(),
		"lines", len(sheet.Lines),
	)
}

func (h *OnMarksPublishedHandler) invalidate(ctx context.Context, examID shared.ExamID, studentID shared.StudentID) {
	if err := h.cache.Invalidate(ctx, examID, studentID); err != nil {
		h.logger.Error("failed to invalidate marksheet cache",
			"exam_id", examID.String(),
			"student_id", studentID.String(),
			"error", err,
		)
		return
	}

	h.logger.Info("marksheet cache invalidated",
		"exam_id", examID.String(),
		"student_id", studentID.String(),
	)
}

// recordScope extracts the exam and student identifiers from the payload.
func recordScope(event shared.Event) (shared.ExamID, shared.StudentID, bool) {
	payload := event.Payload()

	exam, ok := payload["exam_id"].(string)
	if !ok || exam == "" {
		return "", "", false
	}
	student, ok := payload["student_id"].(string)
	if !ok || student == "" {
		return "", "", false
	}
	return shared.ExamID(exam), shared.StudentID(student), true
}
