package assessment

import (
	"strings"
	"time"

	"github.com/schoolhub/marksflow/internal/domain/shared"
)

// AssessmentRecord is the unit of truth: one student's marks for one subject
// in one exam. Records are created implicitly the first time a teacher saves
// a score for the (exam, student, subject) triple and are never physically
// deleted - a rejection regresses the status back to draft instead.
type AssessmentRecord struct {
	// Key is the composite identity (exam, student, subject).
	Key shared.RecordKey

	// Internal is the internal-assessment component of the mark.
	Internal shared.Score

	// External is the external-exam component of the mark.
	External shared.Score

	// Total is always Internal + External as of the last save.
	// It is derived, never independently edited.
	Total int

	// Status is the lifecycle state.
	Status Status

	// ClassID and SectionID locate the student for review authorization.
	ClassID   shared.ClassID
	SectionID shared.SectionID

	// RecordedBy is the subject teacher who authored the scores.
	RecordedBy shared.TeacherID

	// RejectionComment is the class teacher's correction note. Present only
	// while the record sits in draft after a rejection; cleared whenever the
	// status advances past draft.
	RejectionComment string

	// CreatedAt is when the record was first persisted.
	CreatedAt time.Time

	// UpdatedAt is when the record was last persisted.
	UpdatedAt time.Time
}

// NewRecord returns a fresh draft record for the given key and placement.
func NewRecord(key shared.RecordKey, classID shared.ClassID, sectionID shared.SectionID, recordedBy shared.TeacherID) *AssessmentRecord {
	return &AssessmentRecord{
		Key:        key,
		Internal:   shared.NoScore(),
		External:   shared.NoScore(),
		Status:     StatusDraft,
		ClassID:    classID,
		SectionID:  sectionID,
		RecordedBy: recordedBy,
	}
}

// SetScores replaces both components and recomputes the total.
// This is the only way the total changes.
func (r *AssessmentRecord) SetScores(internal, external shared.Score) {
	r.Internal = internal
	r.External = external
	r.Total = ComputeTotal(internal, external)
}

// RecomputeTotal re-derives the total from the stored components.
// Kept separate from SetScores for records hydrated from storage.
func (r *AssessmentRecord) RecomputeTotal() {
	r.Total = ComputeTotal(r.Internal, r.External)
}

// advance moves the record to the next status, maintaining the
// rejection-comment invariant. Callers must have checked legality.
func (r *AssessmentRecord) advance(next Status) {
	r.Status = next
	if next != StatusDraft {
		r.RejectionComment = ""
	}
}

// Reject returns the record to draft with the reviewer's comment attached.
func (r *AssessmentRecord) Reject(comment string) {
	r.Status = StatusDraft
	r.RejectionComment = strings.TrimSpace(comment)
}

// Clone returns a deep copy. The workflow service mutates clones so a failed
// persistence attempt leaves the caller's records untouched.
func (r *AssessmentRecord) Clone() *AssessmentRecord {
	cp := *r
	return &cp
}

// Validate checks the structural invariants of the record.
func (r *AssessmentRecord) Validate() error {
	if !r.Key.IsValid() {
		return ErrInvalidRecordKey
	}
	if r.Status != "" && !r.Status.IsValid() {
		return ErrUnknownStatus
	}
	return nil
}

// RosterEntry is a student in the context currently being graded.
// It is read-only input owned by the external student directory.
type RosterEntry struct {
	StudentID   shared.StudentID
	DisplayName string
	RollNumber  int
}
