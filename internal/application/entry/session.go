// Package entry implements the marks entry session: one subject teacher's
// in-progress edit of a roster for one (exam, subject, class, section)
// context. The session owns the draft state explicitly - there is no global
// marks map - and dies with the editing screen that opened it.
package entry

import (
	"context"
	"log/slog"
	"sync"

	"github.com/schoolhub/marksflow/internal/application/workflow"
	"github.com/schoolhub/marksflow/internal/domain/assessment"
	"github.com/schoolhub/marksflow/internal/domain/shared"
)

// Session errors.
var (
	// ErrSaveInFlight - a persistence call for this session is already
	// outstanding. Calls are serialized per session to avoid interleaved
	// partial writes under the same composite keys.
	ErrSaveInFlight = shared.NewDomainError("entry", "Persist", shared.ErrInvalidState, "a persistence call is already in flight")

	// ErrUnknownStudent - the student is not part of this session's roster.
	ErrUnknownStudent = shared.NewDomainError("entry", "SetScore", shared.ErrNotFound, "student is not in the roster")
)

// Context scopes one entry session.
type Context struct {
	ExamID    shared.ExamID
	SubjectID shared.SubjectID
	ClassID   shared.ClassID
	SectionID shared.SectionID

	// Teacher is the acting subject teacher. Authorization is checked once
	// here and again by the workflow service at persist time.
	Teacher assessment.Actor
}

// Validate checks the context before a session opens.
func (c Context) Validate() error {
	if !c.ExamID.IsValid() || !c.SubjectID.IsValid() || !c.ClassID.IsValid() || !c.SectionID.IsValid() {
		return shared.NewDomainError("entry", "Open", shared.ErrInvalidInput, "exam, subject, class and section are required")
	}
	if !c.Teacher.CanEnter(c.SubjectID) {
		return assessment.ErrActorNotAllowed
	}
	return nil
}

// FieldState is one score field of the draft: the raw value as entered plus
// its validity. Invalid values are kept and shown next to an error
// indicator; they are state to display, not errors to raise, and they never
// block edits to other students.
type FieldState struct {
	Score    shared.Score
	RangeErr *assessment.RangeError
}

// Valid reports whether the field may be submitted.
func (f FieldState) Valid() bool { return f.RangeErr == nil }

// Entry is the UI-facing snapshot of one student's draft row.
type Entry struct {
	Student          assessment.RosterEntry
	Internal         FieldState
	External         FieldState
	Total            int
	Status           assessment.Status
	RejectionComment string
	Dirty            bool
}

// Editable reports whether the row accepts edits: submitted and published
// records are read-only until a rejection returns them to draft.
func (e Entry) Editable() bool { return e.Status.Editable() }

type draftEntry struct {
	student   assessment.RosterEntry
	internal  FieldState
	external  FieldState
	status    assessment.Status // last persisted status
	comment   string
	dirty     bool
	persisted bool // a record exists in the store for this student
}

// Session manages one teacher's draft edits for a roster before commit.
type Session struct {
	ctx      Context
	workflow *workflow.Service
	scheme   assessment.ScoreScheme
	logger   *slog.Logger

	entries map[shared.StudentID]*draftEntry
	order   []shared.StudentID

	mu     sync.Mutex
	saving bool
}

// Open loads existing records for the context and seeds the draft map.
// Students with no prior record start with empty scores and implicit draft
// status.
func Open(ctx context.Context, svc *workflow.Service, store assessment.RecordStore, ectx Context, roster []assessment.RosterEntry, logger *slog.Logger) (*Session, error) {
	if err := ectx.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	studentIDs := make([]shared.StudentID, 0, len(roster))
	for _, r := range roster {
		studentIDs = append(studentIDs, r.StudentID)
	}
	records, err := store.FetchRecords(ctx, ectx.ExamID, assessment.RecordFilter{
		StudentIDs: studentIDs,
		SubjectID:  ectx.SubjectID,
	})
	if err != nil {
		return nil, shared.WrapError("entry", "Open", shared.ErrPersistence, "failed to load existing records", err)
	}

	byStudent := make(map[shared.StudentID]*assessment.AssessmentRecord, len(records))
	for _, r := range records {
		byStudent[r.Key.StudentID] = r
	}

	s := &Session{
		ctx:      ectx,
		workflow: svc,
		scheme:   svc.Scheme(),
		logger:   logger,
		entries:  make(map[shared.StudentID]*draftEntry, len(roster)),
		order:    studentIDs,
	}
	for _, re := range roster {
		de := &draftEntry{student: re, status: assessment.StatusDraft}
		if rec, ok := byStudent[re.StudentID]; ok {
			de.internal = FieldState{Score: rec.Internal}
			de.external = FieldState{Score: rec.External}
			de.status = rec.Status
			de.comment = rec.RejectionComment
			de.persisted = true
		}
		s.entries[re.StudentID] = de
	}
	return s, nil
}

// Context returns the session's scoping tuple.
func (s *Session) Context() Context { return s.ctx }

// SetScore records one field edit. The value is validated against the score
// scheme but an out-of-range value is stored anyway, flagged invalid, so the
// UI can show it next to an error indicator. Edits are last-write-wins per
// field. The only hard failure is editing a row whose persisted status is
// submitted or published.
func (s *Session) SetScore(studentID shared.StudentID, kind assessment.ScoreKind, score shared.Score) error {
	de, ok := s.entries[studentID]
	if !ok {
		return ErrUnknownStudent
	}
	if !de.status.Editable() {
		return assessment.ErrRecordLocked
	}

	fs := FieldState{
		Score:    score,
		RangeErr: s.scheme.ValidateScore(kind, score),
	}
	if kind == assessment.ScoreExternal {
		de.external = fs
	} else {
		de.internal = fs
	}
	de.dirty = true
	return nil
}

// Entries returns the draft rows in roster order for display.
func (s *Session) Entries() []Entry {
	out := make([]Entry, 0, len(s.order))
	for _, id := range s.order {
		de := s.entries[id]
		out = append(out, Entry{
			Student:          de.student,
			Internal:         de.internal,
			External:         de.external,
			Total:            assessment.ComputeTotal(de.internal.Score, de.external.Score),
			Status:           de.status,
			RejectionComment: de.comment,
			Dirty:            de.dirty,
		})
	}
	return out
}

// HasInvalidFields reports whether any field in the session is out of range.
func (s *Session) HasInvalidFields() bool {
	for _, de := range s.entries {
		if !de.internal.Valid() || !de.external.Valid() {
			return true
		}
	}
	return false
}

// SaveDraft persists every edited row with status draft. Saving the same
// draft twice stores the same rows (upsert by composite key). The draft map
// is kept intact on failure so the teacher can retry without data loss.
func (s *Session) SaveDraft(ctx context.Context) error {
	release, err := s.acquire()
	if err != nil {
		return err
	}
	defer release()

	batch := s.collect(func(de *draftEntry) bool { return de.dirty && de.status.Editable() })
	if len(batch) == 0 {
		return nil
	}
	if err := s.workflow.SaveDraft(ctx, s.ctx.Teacher, batch); err != nil {
		return err
	}
	for _, r := range batch {
		de := s.entries[r.Key.StudentID]
		de.dirty = false
		de.persisted = true
		de.status = assessment.StatusDraft
	}
	return nil
}

// SubmitForReview persists every editable row with status submitted. This is
// the one point where validation is a hard gate: a single invalid field
// anywhere in the session fails the whole batch and nothing is persisted,
// including valid rows for other students.
func (s *Session) SubmitForReview(ctx context.Context) error {
	release, err := s.acquire()
	if err != nil {
		return err
	}
	defer release()

	if s.HasInvalidFields() {
		return assessment.ErrScoresInvalid
	}

	batch := s.collect(func(de *draftEntry) bool {
		return de.status.Editable() && (de.dirty || de.persisted)
	})
	if len(batch) == 0 {
		return nil
	}
	if err := s.workflow.Submit(ctx, s.ctx.Teacher, batch); err != nil {
		return err
	}
	for _, r := range batch {
		de := s.entries[r.Key.StudentID]
		de.dirty = false
		de.persisted = true
		de.status = assessment.StatusSubmitted
		de.comment = ""
	}
	return nil
}

// collect builds workflow-ready records from the draft rows matching want.
func (s *Session) collect(want func(*draftEntry) bool) []*assessment.AssessmentRecord {
	var batch []*assessment.AssessmentRecord
	for _, id := range s.order {
		de := s.entries[id]
		if !want(de) {
			continue
		}
		rec := assessment.NewRecord(shared.RecordKey{
			ExamID:    s.ctx.ExamID,
			StudentID: id,
			SubjectID: s.ctx.SubjectID,
		}, s.ctx.ClassID, s.ctx.SectionID, s.ctx.Teacher.ID)
		rec.Status = de.status
		rec.RejectionComment = de.comment
		rec.SetScores(de.internal.Score, de.external.Score)
		batch = append(batch, rec)
	}
	return batch
}

// acquire serializes persistence calls for this session.
func (s *Session) acquire() (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saving {
		return nil, ErrSaveInFlight
	}
	s.saving = true
	return func() {
		s.mu.Lock()
		s.saving = false
		s.mu.Unlock()
	}, nil
}
