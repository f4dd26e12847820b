// Package postgres implements the PostgreSQL persistence layer for the
// marks workflow.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: CREATE ASSESSMENT RECORDS
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
-- Migration: Create assessment_records table
-- Version: 001

-- One row per (exam, student, subject). Rows are created implicitly by the
-- first save (upsert) and never deleted; a rejection moves status back to
-- 'draft' instead.
CREATE TABLE IF NOT EXISTS assessment_records (
    exam_id VARCHAR(64) NOT NULL,
    student_id VARCHAR(64) NOT NULL,
    subject_id VARCHAR(64) NOT NULL,
    internal_score INTEGER,
    external_score INTEGER,
    total_score INTEGER NOT NULL DEFAULT 0,
    status VARCHAR(20) NOT NULL DEFAULT 'draft',
    class_id VARCHAR(64) NOT NULL,
    section_id VARCHAR(64) NOT NULL,
    recorded_by VARCHAR(64) NOT NULL,
    rejection_comment TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    PRIMARY KEY (exam_id, student_id, subject_id),

    CONSTRAINT valid_record_status CHECK (status IN ('draft', 'submitted', 'published'))
);

-- NULL score columns mean "not yet entered", distinct from an explicit 0.

CREATE INDEX IF NOT EXISTS idx_assessment_records_exam_student ON assessment_records(exam_id, student_id);
CREATE INDEX IF NOT EXISTS idx_assessment_records_exam_class ON assessment_records(exam_id, class_id, section_id);
CREATE INDEX IF NOT EXISTS idx_assessment_records_status ON assessment_records(exam_id, status);
`

const migration001Down = `
DROP TABLE IF EXISTS assessment_records;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: CREATE DIRECTORY TABLES
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
-- Migration: Create directory tables
-- Version: 002
-- Purpose: class-teacher assignments and the student roster the review
-- workflow reads. Ownership of this data belongs to the surrounding school
-- application; the workflow only consumes it.

CREATE TABLE IF NOT EXISTS class_teachers (
    class_id VARCHAR(64) NOT NULL,
    section_id VARCHAR(64) NOT NULL,
    teacher_id VARCHAR(64) NOT NULL,
    assigned_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    PRIMARY KEY (class_id, section_id)
);

CREATE TABLE IF NOT EXISTS students (
    id VARCHAR(64) PRIMARY KEY,
    display_name VARCHAR(100) NOT NULL,
    roll_number INTEGER NOT NULL DEFAULT 0,
    class_id VARCHAR(64) NOT NULL,
    section_id VARCHAR(64) NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_students_class_section ON students(class_id, section_id, roll_number);
`

const migration002Down = `
DROP TABLE IF EXISTS students;
DROP TABLE IF EXISTS class_teachers;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATOR
// ══════════════════════════════════════════════════════════════════════════════

// Migration represents a database migration.
type Migration struct {
	Version int
	Name    string
	UpSQL   string
	DownSQL string
}

// GetMigrations returns all embedded migrations in order.
func GetMigrations() []Migration {
	return []Migration{
		{Version: 1, Name: "create_assessment_records", UpSQL: migration001Up, DownSQL: migration001Down},
		{Version: 2, Name: "create_directory_tables", UpSQL: migration002Up, DownSQL: migration002Down},
	}
}

// Migrator applies embedded migrations idempotently.
type Migrator struct {
	conn       *Connection
	migrations []Migration
	tableName  string
}

// NewMigrator creates a new migrator with embedded migrations.
func NewMigrator(conn *Connection) *Migrator {
	return &Migrator{
		conn:       conn,
		migrations: GetMigrations(),
		tableName:  "schema_migrations",
	}
}

// Up applies every pending migration inside its own transaction.
func (m *Migrator) Up(ctx context.Context) error {
	if err := m.ensureTable(ctx); err != nil {
		return err
	}

	applied, err := m.appliedVersions(ctx)
	if err != nil {
		return err
	}

	for _, mig := range m.migrations {
		if applied[mig.Version] {
			continue
		}
		if err := m.apply(ctx, mig); err != nil {
			return fmt.Errorf("%w: version %d (%s): %v", ErrMigrationFailed, mig.Version, mig.Name, err)
		}
	}
	return nil
}

func (m *Migrator) ensureTable(ctx context.Context) error {
	_, err := m.conn.Exec(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			version INTEGER PRIMARY KEY,
			name VARCHAR(100) NOT NULL,
			applied_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)
	`, m.tableName))
	if err != nil {
		return fmt.Errorf("%w: create %s: %v", ErrMigrationFailed, m.tableName, err)
	}
	return nil
}

func (m *Migrator) appliedVersions(ctx context.Context) (map[int]bool, error) {
	rows, err := m.conn.Query(ctx, fmt.Sprintf("SELECT version FROM %s", m.tableName))
	if err != nil {
		return nil, fmt.Errorf("%w: read applied versions: %v", ErrMigrationFailed, err)
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("%w: scan version: %v", ErrMigrationFailed, err)
		}
		applied[v] = true
	}
	return applied, rows.Err()
}

func (m *Migrator) apply(ctx context.Context, mig Migration) error {
	return m.conn.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, mig.UpSQL); err != nil {
			return err
		}
		_, err := tx.Exec(ctx,
			fmt.Sprintf("INSERT INTO %s (version, name, applied_at) VALUES ($1, $2, $3)", m.tableName),
			mig.Version, mig.Name, time.Now().UTC(),
		)
		return err
	})
}
