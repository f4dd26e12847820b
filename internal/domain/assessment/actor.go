package assessment

import (
	"github.com/schoolhub/marksflow/internal/domain/shared"
)

// Role determines which lifecycle operations an actor may invoke.
type Role string

const (
	// RoleSubjectTeacher - enters and submits scores for their own subjects.
	RoleSubjectTeacher Role = "subject_teacher"

	// RoleClassTeacher - rejects or approve-publishes records for students
	// of their assigned class+section, across every subject.
	RoleClassTeacher Role = "class_teacher"
)

// IsValid checks that the role is known.
func (r Role) IsValid() bool {
	return r == RoleSubjectTeacher || r == RoleClassTeacher
}

// Actor is the single authorization value checked at the application
// boundary. Role scoping is resolved once, up front, instead of being
// re-derived ad hoc inside each operation.
type Actor struct {
	// ID is the teacher identity behind the action.
	ID shared.TeacherID

	// Role is the capacity the actor is acting in.
	Role Role

	// ScopeClassID / ScopeSectionID bound a class teacher's review scope.
	ScopeClassID   shared.ClassID
	ScopeSectionID shared.SectionID

	// ScopeSubjects lists the subjects a subject teacher may enter marks
	// for. Empty means no subjects.
	ScopeSubjects []shared.SubjectID
}

// CanEnter reports whether the actor may save/submit scores for the given
// subject. Only the originating subject teacher may author records.
func (a Actor) CanEnter(subjectID shared.SubjectID) bool {
	if a.Role != RoleSubjectTeacher || a.ID.IsEmpty() {
		return false
	}
	for _, s := range a.ScopeSubjects {
		if s == subjectID {
			return true
		}
	}
	return false
}

// CanReview reports whether the actor may reject/approve-publish records for
// students of the given class+section.
func (a Actor) CanReview(classID shared.ClassID, sectionID shared.SectionID) bool {
	if a.Role != RoleClassTeacher || a.ID.IsEmpty() {
		return false
	}
	return a.ScopeClassID == classID && a.ScopeSectionID == sectionID
}
