// Package postgres implements the PostgreSQL persistence layer for the
// marks workflow.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/schoolhub/marksflow/internal/domain/assessment"
	"github.com/schoolhub/marksflow/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECORD REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// RecordRepository implements assessment.RecordStore for PostgreSQL.
//
// UpsertRecords runs the whole batch inside a single transaction, so the
// store contract's all-or-nothing guarantee holds: a failure on any row
// rolls back every row.
type RecordRepository struct {
	conn *Connection
}

// NewRecordRepository creates a new RecordRepository.
func NewRecordRepository(conn *Connection) *RecordRepository {
	return &RecordRepository{conn: conn}
}

const recordColumns = `
	exam_id, student_id, subject_id, internal_score, external_score,
	total_score, status, class_id, section_id, recorded_by,
	rejection_comment, created_at, updated_at
`

// FetchRecords returns the records of an exam matching the filter.
func (r *RecordRepository) FetchRecords(ctx context.Context, examID shared.ExamID, filter assessment.RecordFilter) ([]*assessment.AssessmentRecord, error) {
	query := fmt.Sprintf("SELECT %s FROM assessment_records WHERE exam_id = $1", recordColumns)
	args := []interface{}{examID.String()}

	if len(filter.StudentIDs) > 0 {
		ids := make([]string, 0, len(filter.StudentIDs))
		for _, id := range filter.StudentIDs {
			ids = append(ids, id.String())
		}
		args = append(args, ids)
		query += fmt.Sprintf(" AND student_id = ANY($%d)", len(args))
	}
	if filter.SubjectID.IsValid() {
		args = append(args, filter.SubjectID.String())
		query += fmt.Sprintf(" AND subject_id = $%d", len(args))
	}
	if filter.ClassID.IsValid() {
		args = append(args, filter.ClassID.String())
		query += fmt.Sprintf(" AND class_id = $%d", len(args))
	}
	if filter.SectionID.IsValid() {
		args = append(args, filter.SectionID.String())
		query += fmt.Sprintf(" AND section_id = $%d", len(args))
	}
	query += " ORDER BY student_id, subject_id"

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, shared.WrapError("postgres", "FetchRecords", shared.ErrPersistence, "query failed", err)
	}
	defer rows.Close()

	var records []*assessment.AssessmentRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, shared.WrapError("postgres", "FetchRecords", shared.ErrPersistence, "scan failed", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.WrapError("postgres", "FetchRecords", shared.ErrPersistence, "row iteration failed", err)
	}
	return records, nil
}

// UpsertRecords persists a batch keyed by (exam, student, subject).
// All rows are written in one transaction; any failure rolls the whole
// batch back and surfaces as a persistence error.
func (r *RecordRepository) UpsertRecords(ctx context.Context, records []*assessment.AssessmentRecord) error {
	if len(records) == 0 {
		return nil
	}

	const query = `
		INSERT INTO assessment_records (
			exam_id, student_id, subject_id, internal_score, external_score,
			total_score, status, class_id, section_id, recorded_by,
			rejection_comment, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (exam_id, student_id, subject_id) DO UPDATE SET
			internal_score = EXCLUDED.internal_score,
			external_score = EXCLUDED.external_score,
			total_score = EXCLUDED.total_score,
			status = EXCLUDED.status,
			class_id = EXCLUDED.class_id,
			section_id = EXCLUDED.section_id,
			recorded_by = EXCLUDED.recorded_by,
			rejection_comment = EXCLUDED.rejection_comment,
			updated_at = EXCLUDED.updated_at
	`

	err := r.conn.WithTx(ctx, func(tx pgx.Tx) error {
		now := time.Now().UTC()
		for _, rec := range records {
			updatedAt := rec.UpdatedAt
			if updatedAt.IsZero() {
				updatedAt = now
			}
			_, err := tx.Exec(ctx, query,
				rec.Key.ExamID.String(),
				rec.Key.StudentID.String(),
				rec.Key.SubjectID.String(),
				scoreToDB(rec.Internal),
				scoreToDB(rec.External),
				rec.Total,
				string(rec.Status),
				rec.ClassID.String(),
				rec.SectionID.String(),
				rec.RecordedBy.String(),
				rec.RejectionComment,
				now,
				updatedAt,
			)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return shared.WrapError("postgres", "UpsertRecords", shared.ErrPersistence, "batch upsert failed", err)
	}
	return nil
}

// scanRecord hydrates one record from a row.
func scanRecord(row pgx.Row) (*assessment.AssessmentRecord, error) {
	var (
		rec              assessment.AssessmentRecord
		examID           string
		studentID        string
		subjectID        string
		internal         *int
		external         *int
		status           string
		classID          string
		sectionID        string
		recordedBy       string
		rejectionComment string
	)

	err := row.Scan(
		&examID, &studentID, &subjectID, &internal, &external,
		&rec.Total, &status, &classID, &sectionID, &recordedBy,
		&rejectionComment, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	rec.Key = shared.RecordKey{
		ExamID:    shared.ExamID(examID),
		StudentID: shared.StudentID(studentID),
		SubjectID: shared.SubjectID(subjectID),
	}
	rec.Internal = scoreFromDB(internal)
	rec.External = scoreFromDB(external)
	rec.ClassID = shared.ClassID(classID)
	rec.SectionID = shared.SectionID(sectionID)
	rec.RecordedBy = shared.TeacherID(recordedBy)
	rec.RejectionComment = rejectionComment

	st, ok := assessment.ParseStatus(status)
	if !ok {
		return nil, fmt.Errorf("unknown status %q for record %s", status, rec.Key)
	}
	rec.Status = st
	return &rec, nil
}

// scoreToDB maps a tri-state score to a nullable column.
// NULL means "not yet entered" and is distinct from an explicit 0.
func scoreToDB(s shared.Score) *int {
	if !s.Entered() {
		return nil
	}
	v := s.Int()
	return &v
}

// scoreFromDB maps a nullable column back to the tri-state score.
func scoreFromDB(v *int) shared.Score {
	if v == nil {
		return shared.NoScore()
	}
	return shared.ScoreOf(*v)
}
