// Package projections implements read models for CQRS pattern.
package projections

import (
	"sync"
	"time"

	"github.com/schoolhub/marksflow/internal/domain/assessment"
	"github.com/schoolhub/marksflow/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REVIEW BOARD VIEW - Denormalized Read Model for Review Progress
// ══════════════════════════════════════════════════════════════════════════════

// ReviewBoardView tracks per-student record statuses for each exam, fed by
// the status-changed events on the bus. It answers "who still needs review"
// without a store round trip, so dashboards can poll it cheaply.
//
// The view is eventually consistent: it reflects events applied so far, and
// an instance that joins late sees only transitions from that point on.
// Authoritative answers still come from the record store.
type ReviewBoardView struct {
	mu sync.RWMutex

	// exams holds per-exam boards indexed by exam ID.
	exams map[shared.ExamID]*examBoard

	// lastUpdated is the timestamp of the last applied event.
	lastUpdated time.Time

	// version is incremented on each applied event.
	version int64
}

// examBoard holds one exam's per-student subject statuses.
type examBoard struct {
	students map[shared.StudentID]map[shared.SubjectID]assessment.Status
}

// StudentBoardRow is a snapshot of one student's review progress.
type StudentBoardRow struct {
	StudentID      shared.StudentID `json:"student_id"`
	SubjectCount   int              `json:"subject_count"`
	DraftCount     int              `json:"draft_count"`
	SubmittedCount int              `json:"submitted_count"`
	PublishedCount int              `json:"published_count"`
}

// ReadyForReview reports whether any subject awaits the class teacher.
func (r StudentBoardRow) ReadyForReview() bool {
	return r.SubmittedCount > 0
}

// FullyPublished reports whether every tracked subject is published.
func (r StudentBoardRow) FullyPublished() bool {
	return r.SubjectCount > 0 && r.PublishedCount == r.SubjectCount
}

// NewReviewBoardView creates an empty view.
func NewReviewBoardView() *ReviewBoardView {
	return &ReviewBoardView{
		exams: make(map[shared.ExamID]*examBoard),
	}
}

// ApplyEvent implements shared.EventHandler (via method value). Events other
// than marks lifecycle events are ignored, so the view can be subscribed
// with SubscribeAll.
func (v *ReviewBoardView) ApplyEvent(event shared.Event) error {
	switch event.EventType() {
	case assessment.EventMarksSaved,
		assessment.EventMarksSubmitted,
		assessment.EventMarksRejected,
		assessment.EventMarksPublished:
	default:
		return nil
	}

	payload := event.Payload()
	exam, _ := payload["exam_id"].(string)
	student, _ := payload["student_id"].(string)
	subject, _ := payload["subject_id"].(string)
	newStatus, _ := payload["new_status"].(string)

	status, ok := assessment.ParseStatus(newStatus)
	if exam == "" || student == "" || subject == "" || !ok {
		return nil
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	board := v.exams[shared.ExamID(exam)]
	if board == nil {
		board = &examBoard{students: make(map[shared.StudentID]map[shared.SubjectID]assessment.Status)}
		v.exams[shared.ExamID(exam)] = board
	}

	subjects := board.students[shared.StudentID(student)]
	if subjects == nil {
		subjects = make(map[shared.SubjectID]assessment.Status)
		board.students[shared.StudentID(student)] = subjects
	}
	subjects[shared.SubjectID(subject)] = status

	v.lastUpdated = event.OccurredAt()
	v.version++
	return nil
}

// StudentRow returns one student's snapshot, or ok=false when the view has
// seen no events for them.
func (v *ReviewBoardView) StudentRow(examID shared.ExamID, studentID shared.StudentID) (StudentBoardRow, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	board := v.exams[examID]
	if board == nil {
		return StudentBoardRow{}, false
	}
	subjects := board.students[studentID]
	if subjects == nil {
		return StudentBoardRow{}, false
	}
	return buildRow(studentID, subjects), true
}

// PendingReview returns every student with at least one submitted subject.
func (v *ReviewBoardView) PendingReview(examID shared.ExamID) []StudentBoardRow {
	v.mu.RLock()
	defer v.mu.RUnlock()

	board := v.exams[examID]
	if board == nil {
		return nil
	}

	var rows []StudentBoardRow
	for studentID, subjects := range board.students {
		row := buildRow(studentID, subjects)
		if row.ReadyForReview() {
			rows = append(rows, row)
		}
	}
	return rows
}

// DropExam discards an exam's board once its cycle is over.
func (v *ReviewBoardView) DropExam(examID shared.ExamID) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.exams, examID)
}

// Version returns the number of applied events.
func (v *ReviewBoardView) Version() int64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.version
}

// LastUpdated returns the occurrence time of the last applied event.
func (v *ReviewBoardView) LastUpdated() time.Time {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.lastUpdated
}

func buildRow(studentID shared.StudentID, subjects map[shared.SubjectID]assessment.Status) StudentBoardRow {
	row := StudentBoardRow{
		StudentID:    studentID,
		SubjectCount: len(subjects),
	}
	for _, status := range subjects {
		switch status {
		case assessment.StatusDraft:
			row.DraftCount++
		case assessment.StatusSubmitted:
			row.SubmittedCount++
		case assessment.StatusPublished:
			row.PublishedCount++
		}
	}
	return row
}
