// Package review rolls per-subject assessment records up to per-student
// display statuses for class-teacher oversight, and routes the resulting
// approve/reject decisions to the workflow service.
package review

import (
	"context"
	"log/slog"

	"github.com/schoolhub/marksflow/internal/application/workflow"
	"github.com/schoolhub/marksflow/internal/domain/assessment"
	"github.com/schoolhub/marksflow/internal/domain/shared"
)

// Context scopes one review pass. The class teacher aggregates every subject
// taught to their class+section, irrespective of which subject teacher
// entered each record.
type Context struct {
	ExamID    shared.ExamID
	ClassID   shared.ClassID
	SectionID shared.SectionID
	Reviewer  assessment.Actor
}

// Validate checks the context before a pass runs.
func (c Context) Validate() error {
	if !c.ExamID.IsValid() || !c.ClassID.IsValid() || !c.SectionID.IsValid() {
		return shared.NewDomainError("review", "Validate", shared.ErrInvalidInput, "exam, class and section are required")
	}
	if !c.Reviewer.CanReview(c.ClassID, c.SectionID) {
		return assessment.ErrActorNotAllowed
	}
	return nil
}

// StudentStatus is the single display status summarizing one student's
// per-subject record statuses.
type StudentStatus string

// Precedence, highest first. The ordering decides which students the class
// teacher is prompted to act on, so it must hold exactly: a student with
// any submitted subject is ready_to_review even if others are published.
const (
	// StatusPublished - every subject is published.
	StatusPublished StudentStatus = "published"

	// StatusReadyToReview - at least one subject is submitted.
	StatusReadyToReview StudentStatus = "ready_to_review"

	// StatusInProgress - at least one subject is in draft and none submitted.
	StatusInProgress StudentStatus = "in_progress"

	// StatusNoData - no records exist for the student yet.
	StatusNoData StudentStatus = "no_data"
)

// Decision is a class teacher's verdict on one student's full report.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// IsValid checks the decision is known.
func (d Decision) IsValid() bool {
	return d == DecisionApprove || d == DecisionReject
}

// StudentSummary is one row of the class teacher's review table.
type StudentSummary struct {
	StudentID        shared.StudentID
	DisplayName      string
	RollNumber       int
	Status           StudentStatus
	SubjectCount     int
	SubmittedCount   int
	PublishedCount   int
	AggregatePercent float64
}

// Aggregator summarizes record statuses per student and executes review
// decisions through the workflow service.
type Aggregator struct {
	store    assessment.RecordStore
	workflow *workflow.Service
	scheme   assessment.ScoreScheme
	logger   *slog.Logger
}

// NewAggregator creates a review aggregator.
func NewAggregator(store assessment.RecordStore, svc *workflow.Service, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{
		store:    store,
		workflow: svc,
		scheme:   svc.Scheme(),
		logger:   logger,
	}
}

// ListStudentStatuses returns one summary per roster entry, in roster order.
func (a *Aggregator) ListStudentStatuses(ctx context.Context, rctx Context, roster []assessment.RosterEntry) ([]StudentSummary, error) {
	if err := rctx.Validate(); err != nil {
		return nil, err
	}

	records, err := a.store.FetchRecords(ctx, rctx.ExamID, assessment.RecordFilter{
		ClassID:   rctx.ClassID,
		SectionID: rctx.SectionID,
	})
	if err != nil {
		return nil, shared.WrapError("review", "ListStudentStatuses", shared.ErrPersistence, "failed to load class records", err)
	}

	byStudent := make(map[shared.StudentID][]*assessment.AssessmentRecord)
	for _, r := range records {
		byStudent[r.Key.StudentID] = append(byStudent[r.Key.StudentID], r)
	}

	summaries := make([]StudentSummary, 0, len(roster))
	for _, re := range roster {
		recs := byStudent[re.StudentID]
		sum := StudentSummary{
			StudentID:        re.StudentID,
			DisplayName:      re.DisplayName,
			RollNumber:       re.RollNumber,
			Status:           Summarize(recs),
			SubjectCount:     len(recs),
			AggregatePercent: assessment.ComputeAggregatePercent(recs, a.scheme),
		}
		for _, r := range recs {
			switch r.Status {
			case assessment.StatusSubmitted:
				sum.SubmittedCount++
			case assessment.StatusPublished:
				sum.PublishedCount++
			}
		}
		summaries = append(summaries, sum)
	}
	return summaries, nil
}

// ReviewStudent executes one decision on a student's full report. Reject
// requires a non-empty comment; both decisions apply atomically across every
// subject record via the workflow service.
func (a *Aggregator) ReviewStudent(ctx context.Context, rctx Context, studentID shared.StudentID, decision Decision, comment string) (*workflow.BatchResult, error) {
	if err := rctx.Validate(); err != nil {
		return nil, err
	}
	if !decision.IsValid() {
		return nil, shared.NewDomainError("review", "ReviewStudent", shared.ErrInvalidInput, "unknown decision")
	}

	var (
		result *workflow.BatchResult
		err    error
	)
	switch decision {
	case DecisionReject:
		result, err = a.workflow.RejectStudent(ctx, rctx.Reviewer, rctx.ExamID, studentID, comment)
	case DecisionApprove:
		result, err = a.workflow.PublishStudent(ctx, rctx.Reviewer, rctx.ExamID, studentID)
	}
	if err != nil {
		return nil, err
	}

	a.logger.Info("review decision applied",
		"exam_id", rctx.ExamID.String(),
		"student_id", studentID.String(),
		"decision", string(decision),
		"records", result.RecordsUpdated,
	)
	return result, nil
}

// Summarize collapses per-subject statuses into the display status.
func Summarize(records []*assessment.AssessmentRecord) StudentStatus {
	if len(records) == 0 {
		return StatusNoData
	}
	allPublished := true
	anySubmitted := false
	for _, r := range records {
		if r.Status != assessment.StatusPublished {
			allPublished = false
		}
		if r.Status == assessment.StatusSubmitted {
			anySubmitted = true
		}
	}
	switch {
	case allPublished:
		return StatusPublished
	case anySubmitted:
		return StatusReadyToReview
	default:
		return StatusInProgress
	}
}
