// Package postgres implements the PostgreSQL persistence layer for the
// marks workflow.
package postgres

import (
	"context"

	"github.com/schoolhub/marksflow/internal/domain/assessment"
	"github.com/schoolhub/marksflow/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// DIRECTORY REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// DirectoryRepository implements assessment.ReviewerDirectory and
// assessment.RosterProvider against the school directory tables. The data
// is owned by the surrounding application; this repository only reads it.
type DirectoryRepository struct {
	conn *Connection
}

// NewDirectoryRepository creates a new DirectoryRepository.
func NewDirectoryRepository(conn *Connection) *DirectoryRepository {
	return &DirectoryRepository{conn: conn}
}

// ClassTeacher returns the class teacher assigned to a class+section.
// A missing assignment is a distinct condition, not a transient store
// failure: the user must fix the assignment rather than retry.
func (r *DirectoryRepository) ClassTeacher(ctx context.Context, classID shared.ClassID, sectionID shared.SectionID) (shared.TeacherID, error) {
	const query = `
		SELECT teacher_id FROM class_teachers
		WHERE class_id = $1 AND section_id = $2
	`

	var teacherID string
	err := r.conn.QueryRow(ctx, query, classID.String(), sectionID.String()).Scan(&teacherID)
	if err != nil {
		if IsNoRows(err) {
			return "", assessment.ErrNoReviewerAssigned
		}
		return "", shared.WrapError("postgres", "ClassTeacher", shared.ErrPersistence, "lookup failed", err)
	}
	return shared.TeacherID(teacherID), nil
}

// Roster returns the students of a class+section in roll-number order.
func (r *DirectoryRepository) Roster(ctx context.Context, classID shared.ClassID, sectionID shared.SectionID) ([]assessment.RosterEntry, error) {
	const query = `
		SELECT id, display_name, roll_number FROM students
		WHERE class_id = $1 AND section_id = $2
		ORDER BY roll_number, id
	`

	rows, err := r.conn.Query(ctx, query, classID.String(), sectionID.String())
	if err != nil {
		return nil, shared.WrapError("postgres", "Roster", shared.ErrPersistence, "query failed", err)
	}
	defer rows.Close()

	var roster []assessment.RosterEntry
	for rows.Next() {
		var (
			id   string
			name string
			roll int
		)
		if err := rows.Scan(&id, &name, &roll); err != nil {
			return nil, shared.WrapError("postgres", "Roster", shared.ErrPersistence, "scan failed", err)
		}
		roster = append(roster, assessment.RosterEntry{
			StudentID:   shared.StudentID(id),
			DisplayName: name,
			RollNumber:  roll,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, shared.WrapError("postgres", "Roster", shared.ErrPersistence, "row iteration failed", err)
	}
	return roster, nil
}
