// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"fmt"
	"strings"
)

// ═══════════════════════════════════════════════════════════════════════════
// ID Value Objects
// ═══════════════════════════════════════════════════════════════════════════

// ExamID identifies a named assessment event (e.g. a term's mid-term test).
type ExamID string

// IsValid checks that the exam ID is non-empty.
func (e ExamID) IsValid() bool { return strings.TrimSpace(string(e)) != "" }

// String returns the string representation.
func (e ExamID) String() string { return string(e) }

// StudentID identifies a student in the external student directory.
type StudentID string

// IsValid checks that the student ID is non-empty.
func (s StudentID) IsValid() bool { return strings.TrimSpace(string(s)) != "" }

// String returns the string representation.
func (s StudentID) String() string { return string(s) }

// SubjectID identifies a subject taught to a class.
type SubjectID string

// IsValid checks that the subject ID is non-empty.
func (s SubjectID) IsValid() bool { return strings.TrimSpace(string(s)) != "" }

// String returns the string representation.
func (s SubjectID) String() string { return string(s) }

// ClassID identifies a class (grade/form).
type ClassID string

// IsValid checks that the class ID is non-empty.
func (c ClassID) IsValid() bool { return strings.TrimSpace(string(c)) != "" }

// String returns the string representation.
func (c ClassID) String() string { return string(c) }

// SectionID identifies a section within a class.
type SectionID string

// IsValid checks that the section ID is non-empty.
func (s SectionID) IsValid() bool { return strings.TrimSpace(string(s)) != "" }

// String returns the string representation.
func (s SectionID) String() string { return string(s) }

// TeacherID identifies a teacher account.
type TeacherID string

// IsValid checks that the teacher ID is non-empty.
func (t TeacherID) IsValid() bool { return strings.TrimSpace(string(t)) != "" }

// String returns the string representation.
func (t TeacherID) String() string { return string(t) }

// IsEmpty checks if the teacher ID is empty.
func (t TeacherID) IsEmpty() bool { return strings.TrimSpace(string(t)) == "" }

// ═══════════════════════════════════════════════════════════════════════════
// RecordKey Value Object
// ═══════════════════════════════════════════════════════════════════════════

// RecordKey is the composite identity of an assessment record.
// Exactly one record exists per (exam, student, subject) triple; persistence
// is upsert-by-key, so creating and updating are the same operation.
type RecordKey struct {
	ExamID    ExamID
	StudentID StudentID
	SubjectID SubjectID
}

// IsValid checks that every component of the key is present.
func (k RecordKey) IsValid() bool {
	return k.ExamID.IsValid() && k.StudentID.IsValid() && k.SubjectID.IsValid()
}

// String returns a stable textual form, usable as a cache or event key.
func (k RecordKey) String() string {
	return fmt.Sprintf("%s/%s/%s", k.ExamID, k.StudentID, k.SubjectID)
}

// ═══════════════════════════════════════════════════════════════════════════
// Score Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Score is one mark component (internal or external) for a record.
// It is tri-state: a score is either not yet entered, or an entered integer.
// An entered zero is meaningfully different from "not entered" - the UI shows
// a blank field for the latter - so the two must never collapse into one.
type Score struct {
	value   int
	entered bool
}

// NoScore returns the "not yet entered" score.
func NoScore() Score { return Score{} }

// ScoreOf returns an entered score with the given value.
// No range checking happens here; bounds are the scoring scheme's concern.
func ScoreOf(v int) Score { return Score{value: v, entered: true} }

// Entered reports whether a value has been entered.
func (s Score) Entered() bool { return s.entered }

// Int returns the entered value, or 0 when not entered.
// Not-entered scores contribute zero to totals.
func (s Score) Int() int {
	if !s.entered {
		return 0
	}
	return s.value
}

// String returns the entered value as text, or "" when not entered.
func (s Score) String() string {
	if !s.entered {
		return ""
	}
	return fmt.Sprintf("%d", s.value)
}

// Equal compares two scores including the entered flag.
func (s Score) Equal(other Score) bool {
	return s.entered == other.entered && s.value == other.value
}
