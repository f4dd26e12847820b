package workflow

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/schoolhub/marksflow/internal/domain/assessment"
	"github.com/schoolhub/marksflow/internal/domain/shared"
)

// ─────────────────────────────────────────────────────────────────────────────
// Fakes
// ─────────────────────────────────────────────────────────────────────────────

type fakeStore struct {
	records   map[shared.RecordKey]*assessment.AssessmentRecord
	upsertErr error
	upserts   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: make(map[shared.RecordKey]*assessment.AssessmentRecord)}
}

func (f *fakeStore) FetchRecords(_ context.Context, examID shared.ExamID, filter assessment.RecordFilter) ([]*assessment.AssessmentRecord, error) {
	var out []*assessment.AssessmentRecord
	for _, r := range f.records {
		if r.Key.ExamID != examID {
			continue
		}
		if len(filter.StudentIDs) > 0 && !containsStudent(filter.StudentIDs, r.Key.StudentID) {
			continue
		}
		if filter.SubjectID.IsValid() && r.Key.SubjectID != filter.SubjectID {
			continue
		}
		out = append(out, r.Clone())
	}
	return out, nil
}

func (f *fakeStore) UpsertRecords(_ context.Context, records []*assessment.AssessmentRecord) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	for _, r := range records {
		f.records[r.Key] = r.Clone()
	}
	f.upserts++
	return nil
}

func containsStudent(ids []shared.StudentID, id shared.StudentID) bool {
	for _, s := range ids {
		if s == id {
			return true
		}
	}
	return false
}

type fakeDirectory struct {
	teacher shared.TeacherID
	err     error
}

func (f *fakeDirectory) ClassTeacher(context.Context, shared.ClassID, shared.SectionID) (shared.TeacherID, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.teacher, nil
}

type capturePublisher struct {
	events []shared.Event
	err    error
}

func (p *capturePublisher) Publish(e shared.Event) error {
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, e)
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Fixtures
// ─────────────────────────────────────────────────────────────────────────────

func subjectTeacher(id shared.TeacherID, subjects ...shared.SubjectID) assessment.Actor {
	return assessment.Actor{ID: id, Role: assessment.RoleSubjectTeacher, ScopeSubjects: subjects}
}

func classTeacher(id shared.TeacherID) assessment.Actor {
	return assessment.Actor{ID: id, Role: assessment.RoleClassTeacher, ScopeClassID: "c8", ScopeSectionID: "A"}
}

func makeRecord(student shared.StudentID, subject shared.SubjectID, status assessment.Status) *assessment.AssessmentRecord {
	rec := assessment.NewRecord(shared.RecordKey{
		ExamID:    "mid-1",
		StudentID: student,
		SubjectID: subject,
	}, "c8", "A", "t-math")
	rec.SetScores(shared.ScoreOf(15), shared.ScoreOf(60))
	rec.Status = status
	return rec
}

func newTestService(store *fakeStore, dir *fakeDirectory, pub *capturePublisher) *Service {
	return NewService(Config{Store: store, Directory: dir, Publisher: pub})
}

// ─────────────────────────────────────────────────────────────────────────────
// SaveDraft / Submit
// ─────────────────────────────────────────────────────────────────────────────

func TestSaveDraftPersistsAndEmits(t *testing.T) {
	store := newFakeStore()
	pub := &capturePublisher{}
	svc := newTestService(store, &fakeDirectory{}, pub)

	rec := makeRecord("s1", "math", assessment.StatusDraft)
	err := svc.SaveDraft(context.Background(), subjectTeacher("t-math", "math"), []*assessment.AssessmentRecord{rec})

	assert.NoError(t, err)
	stored := store.records[rec.Key]
	assert.Equal(t, assessment.StatusDraft, stored.Status)
	assert.Equal(t, 75, stored.Total)
	assert.Len(t, pub.events, 1)
	assert.Equal(t, assessment.EventMarksSaved, pub.events[0].EventType())
}

func TestSaveDraftIsIdempotent(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, &fakeDirectory{}, &capturePublisher{})
	actor := subjectTeacher("t-math", "math")
	rec := makeRecord("s1", "math", assessment.StatusDraft)

	assert.NoError(t, svc.SaveDraft(context.Background(), actor, []*assessment.AssessmentRecord{rec}))
	assert.NoError(t, svc.SaveDraft(context.Background(), actor, []*assessment.AssessmentRecord{rec}))

	assert.Len(t, store.records, 1)
	assert.Equal(t, 75, store.records[rec.Key].Total)
}

func TestSaveDraftLockedRecord(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, &fakeDirectory{}, &capturePublisher{})

	rec := makeRecord("s1", "math", assessment.StatusSubmitted)
	err := svc.SaveDraft(context.Background(), subjectTeacher("t-math", "math"), []*assessment.AssessmentRecord{rec})

	assert.ErrorIs(t, err, assessment.ErrRecordLocked)
	assert.Empty(t, store.records)
}

func TestSaveDraftWrongSubject(t *testing.T) {
	svc := newTestService(newFakeStore(), &fakeDirectory{}, &capturePublisher{})

	rec := makeRecord("s1", "math", assessment.StatusDraft)
	err := svc.SaveDraft(context.Background(), subjectTeacher("t-hist", "history"), []*assessment.AssessmentRecord{rec})

	assert.ErrorIs(t, err, assessment.ErrActorNotAllowed)
}

func TestSaveDraftOtherAuthorsRecord(t *testing.T) {
	svc := newTestService(newFakeStore(), &fakeDirectory{}, &capturePublisher{})

	rec := makeRecord("s1", "math", assessment.StatusDraft) // recorded by t-math
	err := svc.SaveDraft(context.Background(), subjectTeacher("t-other", "math"), []*assessment.AssessmentRecord{rec})

	assert.ErrorIs(t, err, assessment.ErrActorNotAllowed)
}

func TestSubmitValidationGateFailsWholeBatch(t *testing.T) {
	store := newFakeStore()
	pub := &capturePublisher{}
	svc := newTestService(store, &fakeDirectory{}, pub)

	good := makeRecord("s1", "math", assessment.StatusDraft)
	bad := makeRecord("s2", "math", assessment.StatusDraft)
	bad.SetScores(shared.ScoreOf(25), shared.ScoreOf(60)) // internal above 20

	err := svc.Submit(context.Background(), subjectTeacher("t-math", "math"), []*assessment.AssessmentRecord{good, bad})

	assert.ErrorIs(t, err, assessment.ErrScoresInvalid)
	assert.Empty(t, store.records, "a single invalid score must keep every record out of the store")
	assert.Empty(t, pub.events)
}

func TestSubmitClearsRejectionComment(t *testing.T) {
	store := newFakeStore()
	pub := &capturePublisher{}
	svc := newTestService(store, &fakeDirectory{}, pub)

	rec := makeRecord("s1", "math", assessment.StatusDraft)
	rec.RejectionComment = "swap the scores back"

	err := svc.Submit(context.Background(), subjectTeacher("t-math", "math"), []*assessment.AssessmentRecord{rec})

	assert.NoError(t, err)
	stored := store.records[rec.Key]
	assert.Equal(t, assessment.StatusSubmitted, stored.Status)
	assert.Empty(t, stored.RejectionComment)
	assert.Len(t, pub.events, 1)
	assert.Equal(t, assessment.EventMarksSubmitted, pub.events[0].EventType())
}

func TestSubmitFromSubmittedIsIllegal(t *testing.T) {
	svc := newTestService(newFakeStore(), &fakeDirectory{}, &capturePublisher{})

	rec := makeRecord("s1", "math", assessment.StatusSubmitted)
	err := svc.Submit(context.Background(), subjectTeacher("t-math", "math"), []*assessment.AssessmentRecord{rec})

	assert.ErrorIs(t, err, assessment.ErrIllegalTransition)
}

func TestSubmitStoreFailureWrapsPersistence(t *testing.T) {
	store := newFakeStore()
	store.upsertErr = errors.New("connection reset")
	pub := &capturePublisher{}
	svc := newTestService(store, &fakeDirectory{}, pub)

	rec := makeRecord("s1", "math", assessment.StatusDraft)
	err := svc.Submit(context.Background(), subjectTeacher("t-math", "math"), []*assessment.AssessmentRecord{rec})

	assert.ErrorIs(t, err, shared.ErrPersistence)
	assert.Empty(t, pub.events, "no events after a failed upsert")
	assert.Equal(t, assessment.StatusDraft, rec.Status, "caller's record must stay untouched")
}

// ─────────────────────────────────────────────────────────────────────────────
// RejectStudent / PublishStudent
// ─────────────────────────────────────────────────────────────────────────────

func seedStudentBatch(store *fakeStore, statuses map[shared.SubjectID]assessment.Status) {
	for subject, status := range statuses {
		rec := makeRecord("s1", subject, status)
		store.records[rec.Key] = rec
	}
}

func TestRejectStudentRequiresComment(t *testing.T) {
	svc := newTestService(newFakeStore(), &fakeDirectory{teacher: "t-class"}, &capturePublisher{})

	_, err := svc.RejectStudent(context.Background(), classTeacher("t-class"), "mid-1", "s1", "   ")
	assert.ErrorIs(t, err, assessment.ErrCommentRequired)
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestRejectStudentRegressesSubmittedOnly(t *testing.T) {
	store := newFakeStore()
	pub := &capturePublisher{}
	svc := newTestService(store, &fakeDirectory{teacher: "t-class"}, pub)
	seedStudentBatch(store, map[shared.SubjectID]assessment.Status{
		"math":    assessment.StatusSubmitted,
		"science": assessment.StatusSubmitted,
		"history": assessment.StatusDraft,
	})

	result, err := svc.RejectStudent(context.Background(), classTeacher("t-class"), "mid-1", "s1", "totals look off")

	assert.NoError(t, err)
	assert.Equal(t, 2, result.RecordsUpdated)
	assert.Equal(t, assessment.StatusDraft, result.NewStatus)

	for subject, want := range map[shared.SubjectID]string{
		"math":    "totals look off",
		"science": "totals look off",
		"history": "",
	} {
		rec := store.records[shared.RecordKey{ExamID: "mid-1", StudentID: "s1", SubjectID: subject}]
		assert.Equal(t, assessment.StatusDraft, rec.Status, subject)
		assert.Equal(t, want, rec.RejectionComment, subject)
	}

	assert.Len(t, pub.events, 2)
	for _, e := range pub.events {
		assert.Equal(t, assessment.EventMarksRejected, e.EventType())
	}
}

func TestRejectStudentNothingSubmitted(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, &fakeDirectory{teacher: "t-class"}, &capturePublisher{})
	seedStudentBatch(store, map[shared.SubjectID]assessment.Status{
		"math": assessment.StatusDraft,
	})

	_, err := svc.RejectStudent(context.Background(), classTeacher("t-class"), "mid-1", "s1", "why")
	assert.ErrorIs(t, err, assessment.ErrNotSubmitted)
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestPublishStudentAllSubjects(t *testing.T) {
	store := newFakeStore()
	pub := &capturePublisher{}
	svc := newTestService(store, &fakeDirectory{teacher: "t-class"}, pub)
	seedStudentBatch(store, map[shared.SubjectID]assessment.Status{
		"math":    assessment.StatusSubmitted,
		"science": assessment.StatusSubmitted,
	})

	result, err := svc.PublishStudent(context.Background(), classTeacher("t-class"), "mid-1", "s1")

	assert.NoError(t, err)
	assert.Equal(t, 2, result.RecordsUpdated)
	assert.Equal(t, assessment.StatusPublished, result.NewStatus)
	for _, rec := range store.records {
		assert.Equal(t, assessment.StatusPublished, rec.Status)
		assert.Empty(t, rec.RejectionComment)
	}
	assert.Len(t, pub.events, 2)
	for _, e := range pub.events {
		assert.Equal(t, assessment.EventMarksPublished, e.EventType())
	}
}

func TestPublishStudentRequiresEverySubjectSubmitted(t *testing.T) {
	store := newFakeStore()
	pub := &capturePublisher{}
	svc := newTestService(store, &fakeDirectory{teacher: "t-class"}, pub)
	seedStudentBatch(store, map[shared.SubjectID]assessment.Status{
		"math":    assessment.StatusSubmitted,
		"science": assessment.StatusDraft,
	})

	_, err := svc.PublishStudent(context.Background(), classTeacher("t-class"), "mid-1", "s1")

	assert.ErrorIs(t, err, assessment.ErrNotSubmitted)
	mathKey := shared.RecordKey{ExamID: "mid-1", StudentID: "s1", SubjectID: "math"}
	assert.Equal(t, assessment.StatusSubmitted, store.records[mathKey].Status,
		"a partial batch must publish nothing")
	assert.Empty(t, pub.events)
}

func TestPublishStudentAtomicOnStoreFailure(t *testing.T) {
	store := newFakeStore()
	pub := &capturePublisher{}
	svc := newTestService(store, &fakeDirectory{teacher: "t-class"}, pub)
	seedStudentBatch(store, map[shared.SubjectID]assessment.Status{
		"math": assessment.StatusSubmitted,
	})
	store.upsertErr = errors.New("deadlock detected")

	_, err := svc.PublishStudent(context.Background(), classTeacher("t-class"), "mid-1", "s1")

	assert.ErrorIs(t, err, shared.ErrPersistence)
	mathKey := shared.RecordKey{ExamID: "mid-1", StudentID: "s1", SubjectID: "math"}
	assert.Equal(t, assessment.StatusSubmitted, store.records[mathKey].Status)
	assert.Empty(t, pub.events)
}

func TestReviewRequiresAssignedClassTeacher(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, &fakeDirectory{teacher: "t-someone-else"}, &capturePublisher{})
	seedStudentBatch(store, map[shared.SubjectID]assessment.Status{
		"math": assessment.StatusSubmitted,
	})

	_, err := svc.PublishStudent(context.Background(), classTeacher("t-class"), "mid-1", "s1")
	assert.ErrorIs(t, err, assessment.ErrActorNotAllowed)
}

func TestReviewNoReviewerAssigned(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, &fakeDirectory{err: assessment.ErrNoReviewerAssigned}, &capturePublisher{})
	seedStudentBatch(store, map[shared.SubjectID]assessment.Status{
		"math": assessment.StatusSubmitted,
	})

	_, err := svc.RejectStudent(context.Background(), classTeacher("t-class"), "mid-1", "s1", "why")
	assert.ErrorIs(t, err, assessment.ErrNoReviewerAssigned)
}

func TestPublishFailedBusIsSwallowed(t *testing.T) {
	store := newFakeStore()
	pub := &capturePublisher{err: errors.New("bus down")}
	svc := newTestService(store, &fakeDirectory{teacher: "t-class"}, pub)
	seedStudentBatch(store, map[shared.SubjectID]assessment.Status{
		"math": assessment.StatusSubmitted,
	})

	result, err := svc.PublishStudent(context.Background(), classTeacher("t-class"), "mid-1", "s1")

	assert.NoError(t, err, "event delivery failure must not fail the transition")
	assert.Equal(t, 1, result.RecordsUpdated)
	mathKey := shared.RecordKey{ExamID: "mid-1", StudentID: "s1", SubjectID: "math"}
	assert.Equal(t, assessment.StatusPublished, store.records[mathKey].Status)
}

func TestRejectThenResubmitRoundTrip(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, &fakeDirectory{teacher: "t-class"}, &capturePublisher{})
	seedStudentBatch(store, map[shared.SubjectID]assessment.Status{
		"math": assessment.StatusSubmitted,
	})

	_, err := svc.RejectStudent(context.Background(), classTeacher("t-class"), "mid-1", "s1", "recheck external")
	assert.NoError(t, err)

	mathKey := shared.RecordKey{ExamID: "mid-1", StudentID: "s1", SubjectID: "math"}
	bounced := store.records[mathKey].Clone()
	assert.Equal(t, "recheck external", bounced.RejectionComment)

	err = svc.Submit(context.Background(), subjectTeacher("t-math", "math"), []*assessment.AssessmentRecord{bounced})
	assert.NoError(t, err)
	assert.Equal(t, assessment.StatusSubmitted, store.records[mathKey].Status)
	assert.Empty(t, store.records[mathKey].RejectionComment)
}
