// Package workflow is the effectful half of the assessment status machine.
// It owns every legal transition end to end: authorization at the boundary,
// the lifecycle rules from the domain layer, atomic batch persistence
// through the record store, and fire-and-forget event emission afterwards.
package workflow

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/schoolhub/marksflow/internal/domain/assessment"
	"github.com/schoolhub/marksflow/internal/domain/shared"
)

// Service drives status transitions for assessment records.
//
// All mutating methods follow the same shape: authorize, check the
// transition against the lifecycle rules, persist the whole batch in one
// atomic upsert, then emit one StatusChangedEvent per record. A failed
// upsert leaves no partial state ("0 of N succeeded") and the caller's
// records untouched - the service only ever mutates clones.
type Service struct {
	store     assessment.RecordStore
	directory assessment.ReviewerDirectory
	publisher shared.EventPublisher
	scheme    assessment.ScoreScheme
	logger    *slog.Logger
	now       func() time.Time
}

// Config contains the service dependencies.
type Config struct {
	Store     assessment.RecordStore
	Directory assessment.ReviewerDirectory
	Publisher shared.EventPublisher
	Scheme    assessment.ScoreScheme
	Logger    *slog.Logger
}

// NewService creates a workflow service.
func NewService(cfg Config) *Service {
	if cfg.Publisher == nil {
		cfg.Publisher = shared.NopPublisher{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Scheme.MaxTotal() == 0 {
		cfg.Scheme = assessment.DefaultScheme()
	}
	return &Service{
		store:     cfg.Store,
		directory: cfg.Directory,
		publisher: cfg.Publisher,
		scheme:    cfg.Scheme,
		logger:    cfg.Logger,
		now:       time.Now,
	}
}

// Scheme returns the configured score scheme.
func (s *Service) Scheme() assessment.ScoreScheme { return s.scheme }

// BatchResult summarizes one per-student review action.
type BatchResult struct {
	ExamID         shared.ExamID
	StudentID      shared.StudentID
	NewStatus      assessment.Status
	RecordsUpdated int
}

// ─────────────────────────────────────────────────────────────────────────────
// Teacher-side transitions
// ─────────────────────────────────────────────────────────────────────────────

// SaveDraft persists a batch of records with status draft. Upsert semantics:
// records that never existed are created, existing drafts are overwritten,
// so re-saving the same draft is idempotent. Records already submitted or
// published are locked and fail the batch.
func (s *Service) SaveDraft(ctx context.Context, actor assessment.Actor, records []*assessment.AssessmentRecord) error {
	if len(records) == 0 {
		return nil
	}
	if err := s.authorizeAuthor(actor, records); err != nil {
		return err
	}

	batch := make([]*assessment.AssessmentRecord, 0, len(records))
	prev := make([]assessment.Status, 0, len(records))
	for _, r := range records {
		if !r.Status.Editable() {
			return assessment.ErrRecordLocked
		}
		cp := r.Clone()
		cp.Status = assessment.StatusDraft
		cp.RecordedBy = actor.ID
		cp.RecomputeTotal()
		cp.UpdatedAt = s.now()
		prev = append(prev, r.Status)
		batch = append(batch, cp)
	}

	if err := s.upsert(ctx, "SaveDraft", batch); err != nil {
		return err
	}
	for i, cp := range batch {
		s.emit(assessment.NewSavedEvent(cp.Key, prev[i], actor.ID))
	}
	return nil
}

// Submit moves a batch of draft records to submitted. This is the one point
// where score validation becomes a hard gate: if any record in the batch
// carries an out-of-range score the whole batch fails and nothing is
// persisted, including valid records for other students.
func (s *Service) Submit(ctx context.Context, actor assessment.Actor, records []*assessment.AssessmentRecord) error {
	if len(records) == 0 {
		return nil
	}
	if err := s.authorizeAuthor(actor, records); err != nil {
		return err
	}
	for _, r := range records {
		if len(s.scheme.ValidateRecord(r)) > 0 {
			return assessment.ErrScoresInvalid
		}
	}

	batch := make([]*assessment.AssessmentRecord, 0, len(records))
	prev := make([]assessment.Status, 0, len(records))
	for _, r := range records {
		from := r.Status
		if from == "" {
			from = assessment.StatusDraft
		}
		if !from.CanTransition(assessment.StatusSubmitted) {
			return assessment.ErrIllegalTransition
		}
		cp := r.Clone()
		cp.Status = assessment.StatusSubmitted
		cp.RejectionComment = ""
		cp.RecordedBy = actor.ID
		cp.RecomputeTotal()
		cp.UpdatedAt = s.now()
		prev = append(prev, r.Status)
		batch = append(batch, cp)
	}

	if err := s.upsert(ctx, "Submit", batch); err != nil {
		return err
	}
	for i, cp := range batch {
		s.emit(assessment.NewStatusChangedEvent(cp.Key, prev[i], assessment.StatusSubmitted, actor.ID))
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Reviewer-side transitions
// ─────────────────────────────────────────────────────────────────────────────

// RejectStudent returns a student's submitted records to draft with the
// reviewer's comment attached, across every subject of the exam at once.
// The comment is mandatory. Records still in draft (subjects not yet
// submitted) are left untouched.
func (s *Service) RejectStudent(ctx context.Context, actor assessment.Actor, examID shared.ExamID, studentID shared.StudentID, comment string) (*BatchResult, error) {
	if strings.TrimSpace(comment) == "" {
		return nil, assessment.ErrCommentRequired
	}

	records, err := s.loadStudentBatch(ctx, examID, studentID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeReviewer(ctx, actor, records); err != nil {
		return nil, err
	}

	batch := make([]*assessment.AssessmentRecord, 0, len(records))
	for _, r := range records {
		if r.Status != assessment.StatusSubmitted {
			continue
		}
		cp := r.Clone()
		cp.Reject(comment)
		cp.UpdatedAt = s.now()
		batch = append(batch, cp)
	}
	if len(batch) == 0 {
		return nil, assessment.ErrNotSubmitted
	}

	if err := s.upsert(ctx, "RejectStudent", batch); err != nil {
		return nil, err
	}
	for _, cp := range batch {
		s.emit(assessment.NewStatusChangedEvent(cp.Key, assessment.StatusSubmitted, assessment.StatusDraft, actor.ID))
	}
	return &BatchResult{
		ExamID:         examID,
		StudentID:      studentID,
		NewStatus:      assessment.StatusDraft,
		RecordsUpdated: len(batch),
	}, nil
}

// PublishStudent approve-publishes a student's full report: every subject
// record of the exam moves from submitted to published in one atomic batch.
// Any record not in submitted state fails the whole action, so a review can
// never leave some subjects published and others behind.
func (s *Service) PublishStudent(ctx context.Context, actor assessment.Actor, examID shared.ExamID, studentID shared.StudentID) (*BatchResult, error) {
	records, err := s.loadStudentBatch(ctx, examID, studentID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeReviewer(ctx, actor, records); err != nil {
		return nil, err
	}

	batch := make([]*assessment.AssessmentRecord, 0, len(records))
	for _, r := range records {
		if r.Status != assessment.StatusSubmitted {
			return nil, assessment.ErrNotSubmitted
		}
		cp := r.Clone()
		cp.Status = assessment.StatusPublished
		cp.RejectionComment = ""
		cp.UpdatedAt = s.now()
		batch = append(batch, cp)
	}
	if len(batch) == 0 {
		return nil, assessment.ErrNotSubmitted
	}

	if err := s.upsert(ctx, "PublishStudent", batch); err != nil {
		return nil, err
	}
	for _, cp := range batch {
		s.emit(assessment.NewStatusChangedEvent(cp.Key, assessment.StatusSubmitted, assessment.StatusPublished, actor.ID))
	}
	return &BatchResult{
		ExamID:         examID,
		StudentID:      studentID,
		NewStatus:      assessment.StatusPublished,
		RecordsUpdated: len(batch),
	}, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Internals
// ─────────────────────────────────────────────────────────────────────────────

func (s *Service) authorizeAuthor(actor assessment.Actor, records []*assessment.AssessmentRecord) error {
	for _, r := range records {
		if !actor.CanEnter(r.Key.SubjectID) {
			return assessment.ErrActorNotAllowed
		}
		if !r.RecordedBy.IsEmpty() && r.RecordedBy != actor.ID {
			return assessment.ErrActorNotAllowed
		}
	}
	return nil
}

// authorizeReviewer checks that the acting class teacher is the one assigned
// to the records' class+section. A missing assignment surfaces as
// ErrNoReviewerAssigned so the caller can point the user at the fix.
func (s *Service) authorizeReviewer(ctx context.Context, actor assessment.Actor, records []*assessment.AssessmentRecord) error {
	if len(records) == 0 {
		return assessment.ErrNotSubmitted
	}
	classID, sectionID := records[0].ClassID, records[0].SectionID
	if !actor.CanReview(classID, sectionID) {
		return assessment.ErrActorNotAllowed
	}
	assigned, err := s.directory.ClassTeacher(ctx, classID, sectionID)
	if err != nil {
		return err
	}
	if assigned != actor.ID {
		return assessment.ErrActorNotAllowed
	}
	return nil
}

func (s *Service) loadStudentBatch(ctx context.Context, examID shared.ExamID, studentID shared.StudentID) ([]*assessment.AssessmentRecord, error) {
	records, err := s.store.FetchRecords(ctx, examID, assessment.RecordFilter{
		StudentIDs: []shared.StudentID{studentID},
	})
	if err != nil {
		return nil, shared.WrapError("workflow", "FetchRecords", shared.ErrPersistence, "failed to load student records", err)
	}
	if len(records) == 0 {
		return nil, assessment.ErrNotSubmitted
	}
	return records, nil
}

func (s *Service) upsert(ctx context.Context, op string, batch []*assessment.AssessmentRecord) error {
	if err := s.store.UpsertRecords(ctx, batch); err != nil {
		s.logger.Error("batch upsert failed",
			"op", op,
			"records", len(batch),
			"error", err,
		)
		return shared.WrapError("workflow", op, shared.ErrPersistence, "0 of N records persisted", err)
	}
	return nil
}

// emit publishes a status-change event. Emission is fire-and-forget: the
// transition already persisted, so a bus failure is logged and dropped.
func (s *Service) emit(event assessment.StatusChangedEvent) {
	if err := s.publisher.Publish(event); err != nil {
		s.logger.Error("event publish failed",
			"event_type", event.EventType(),
			"record", event.Key.String(),
			"error", err,
		)
	}
}
