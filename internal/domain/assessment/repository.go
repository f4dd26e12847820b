package assessment

import (
	"context"

	"github.com/schoolhub/marksflow/internal/domain/shared"
)

// ═══════════════════════════════════════════════════════════════════════════
// COLLABORATOR CONTRACTS
// These interfaces define what the workflow requires from its surroundings.
// Implementations live in infrastructure/persistence.
// ═══════════════════════════════════════════════════════════════════════════

// RecordFilter narrows a fetch within one exam. Zero-valued fields are
// ignored; an empty filter returns every record of the exam.
type RecordFilter struct {
	StudentIDs []shared.StudentID
	SubjectID  shared.SubjectID
	ClassID    shared.ClassID
	SectionID  shared.SectionID
}

// RecordStore is the abstract persistent table of assessment records.
type RecordStore interface {
	// FetchRecords returns the records of an exam matching the filter.
	FetchRecords(ctx context.Context, examID shared.ExamID, filter RecordFilter) ([]*AssessmentRecord, error)

	// UpsertRecords persists a batch keyed by (exam, student, subject).
	// The batch is atomic: either every record is written or none is.
	// Failures surface as errors wrapping shared.ErrPersistence.
	UpsertRecords(ctx context.Context, records []*AssessmentRecord) error
}

// ReviewerDirectory resolves the class teacher assigned to a class+section.
type ReviewerDirectory interface {
	// ClassTeacher returns the assigned class teacher, or an error wrapping
	// shared.ErrNoReviewerAssigned when the assignment is missing.
	ClassTeacher(ctx context.Context, classID shared.ClassID, sectionID shared.SectionID) (shared.TeacherID, error)
}

// RosterProvider lists the students of a class+section in roll-number order.
// Owned by the external student directory; read-only here.
type RosterProvider interface {
	Roster(ctx context.Context, classID shared.ClassID, sectionID shared.SectionID) ([]RosterEntry, error)
}
