package review

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/schoolhub/marksflow/internal/application/workflow"
	"github.com/schoolhub/marksflow/internal/domain/assessment"
	"github.com/schoolhub/marksflow/internal/domain/shared"
)

type memStore struct {
	records map[shared.RecordKey]*assessment.AssessmentRecord
}

func newMemStore() *memStore {
	return &memStore{records: make(map[shared.RecordKey]*assessment.AssessmentRecord)}
}

func (m *memStore) FetchRecords(_ context.Context, examID shared.ExamID, filter assessment.RecordFilter) ([]*assessment.AssessmentRecord, error) {
	var out []*assessment.AssessmentRecord
	for _, r := range m.records {
		if r.Key.ExamID != examID {
			continue
		}
		if len(filter.StudentIDs) == 1 && r.Key.StudentID != filter.StudentIDs[0] {
			continue
		}
		out = append(out, r.Clone())
	}
	return out, nil
}

func (m *memStore) UpsertRecords(_ context.Context, records []*assessment.AssessmentRecord) error {
	for _, r := range records {
		m.records[r.Key] = r.Clone()
	}
	return nil
}

func (m *memStore) add(student shared.StudentID, subject shared.SubjectID, status assessment.Status, total int) {
	rec := assessment.NewRecord(shared.RecordKey{ExamID: "mid-1", StudentID: student, SubjectID: subject}, "c8", "A", "t-subj")
	rec.Status = status
	rec.Total = total
	m.records[rec.Key] = rec
}

type stubDirectory struct{ teacher shared.TeacherID }

func (d stubDirectory) ClassTeacher(context.Context, shared.ClassID, shared.SectionID) (shared.TeacherID, error) {
	return d.teacher, nil
}

func reviewContext() Context {
	return Context{
		ExamID:    "mid-1",
		ClassID:   "c8",
		SectionID: "A",
		Reviewer:  assessment.Actor{ID: "t-class", Role: assessment.RoleClassTeacher, ScopeClassID: "c8", ScopeSectionID: "A"},
	}
}

func newAggregator(store *memStore) *Aggregator {
	svc := workflow.NewService(workflow.Config{Store: store, Directory: stubDirectory{teacher: "t-class"}})
	return NewAggregator(store, svc, nil)
}

func TestSummarize(t *testing.T) {
	mk := func(statuses ...assessment.Status) []*assessment.AssessmentRecord {
		var out []*assessment.AssessmentRecord
		for i, st := range statuses {
			rec := assessment.NewRecord(shared.RecordKey{
				ExamID:    "mid-1",
				StudentID: "s1",
				SubjectID: shared.SubjectID(rune('a' + i)),
			}, "c8", "A", "t1")
			rec.Status = st
			out = append(out, rec)
		}
		return out
	}

	tests := []struct {
		name    string
		records []*assessment.AssessmentRecord
		want    StudentStatus
	}{
		{"no records", nil, StatusNoData},
		{"all drafts", mk(assessment.StatusDraft, assessment.StatusDraft), StatusInProgress},
		{"one submitted among drafts", mk(assessment.StatusDraft, assessment.StatusSubmitted), StatusReadyToReview},
		{"all submitted", mk(assessment.StatusSubmitted, assessment.StatusSubmitted), StatusReadyToReview},
		{"all published", mk(assessment.StatusPublished, assessment.StatusPublished), StatusPublished},
		// Submitted outranks published: a late resubmission pulls the
		// student back into the review queue.
		{"submitted beats published", mk(assessment.StatusPublished, assessment.StatusSubmitted), StatusReadyToReview},
		{"published with draft leftovers", mk(assessment.StatusPublished, assessment.StatusDraft), StatusInProgress},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Summarize(tt.records))
		})
	}
}

func TestListStudentStatusesKeepsRosterOrder(t *testing.T) {
	store := newMemStore()
	store.add("s2", "math", assessment.StatusSubmitted, 70)
	store.add("s2", "science", assessment.StatusSubmitted, 80)
	store.add("s3", "math", assessment.StatusDraft, 40)

	roster := []assessment.RosterEntry{
		{StudentID: "s1", DisplayName: "Aliya", RollNumber: 1},
		{StudentID: "s2", DisplayName: "Bolat", RollNumber: 2},
		{StudentID: "s3", DisplayName: "Carla", RollNumber: 3},
	}

	summaries, err := newAggregator(store).ListStudentStatuses(context.Background(), reviewContext(), roster)
	assert.NoError(t, err)
	assert.Len(t, summaries, 3)

	assert.Equal(t, shared.StudentID("s1"), summaries[0].StudentID)
	assert.Equal(t, StatusNoData, summaries[0].Status)
	assert.Zero(t, summaries[0].SubjectCount)

	assert.Equal(t, StatusReadyToReview, summaries[1].Status)
	assert.Equal(t, 2, summaries[1].SubjectCount)
	assert.Equal(t, 2, summaries[1].SubmittedCount)
	// 150 of 200 across two subjects.
	assert.InDelta(t, 75.0, summaries[1].AggregatePercent, 0.0001)

	assert.Equal(t, StatusInProgress, summaries[2].Status)
	assert.Zero(t, summaries[2].SubmittedCount)
}

func TestListStudentStatusesRejectsForeignReviewer(t *testing.T) {
	rctx := reviewContext()
	rctx.Reviewer.ScopeSectionID = "B"

	_, err := newAggregator(newMemStore()).ListStudentStatuses(context.Background(), rctx, nil)
	assert.ErrorIs(t, err, assessment.ErrActorNotAllowed)
}

func TestReviewStudentApprove(t *testing.T) {
	store := newMemStore()
	store.add("s1", "math", assessment.StatusSubmitted, 70)
	store.add("s1", "science", assessment.StatusSubmitted, 85)

	result, err := newAggregator(store).ReviewStudent(context.Background(), reviewContext(), "s1", DecisionApprove, "")

	assert.NoError(t, err)
	assert.Equal(t, assessment.StatusPublished, result.NewStatus)
	assert.Equal(t, 2, result.RecordsUpdated)
	for _, rec := range store.records {
		assert.Equal(t, assessment.StatusPublished, rec.Status)
	}
}

func TestReviewStudentRejectNeedsComment(t *testing.T) {
	store := newMemStore()
	store.add("s1", "math", assessment.StatusSubmitted, 70)

	agg := newAggregator(store)
	_, err := agg.ReviewStudent(context.Background(), reviewContext(), "s1", DecisionReject, "")
	assert.ErrorIs(t, err, assessment.ErrCommentRequired)

	result, err := agg.ReviewStudent(context.Background(), reviewContext(), "s1", DecisionReject, "recheck the totals")
	assert.NoError(t, err)
	assert.Equal(t, assessment.StatusDraft, result.NewStatus)

	rec := store.records[shared.RecordKey{ExamID: "mid-1", StudentID: "s1", SubjectID: "math"}]
	assert.Equal(t, "recheck the totals", rec.RejectionComment)
}

func TestReviewStudentUnknownDecision(t *testing.T) {
	store := newMemStore()
	store.add("s1", "math", assessment.StatusSubmitted, 70)

	_, err := newAggregator(store).ReviewStudent(context.Background(), reviewContext(), "s1", Decision("defer"), "")
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}
