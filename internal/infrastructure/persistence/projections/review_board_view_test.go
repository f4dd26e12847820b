package projections

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/schoolhub/marksflow/internal/domain/assessment"
	"github.com/schoolhub/marksflow/internal/domain/shared"
)

type plainEvent struct{ shared.BaseEvent }

func (plainEvent) Payload() map[string]interface{} { return nil }

func transition(student shared.StudentID, subject shared.SubjectID, from, to assessment.Status) shared.Event {
	return assessment.NewStatusChangedEvent(
		shared.RecordKey{ExamID: "mid-1", StudentID: student, SubjectID: subject},
		from, to, "t1",
	)
}

func TestReviewBoardTracksTransitions(t *testing.T) {
	view := NewReviewBoardView()

	assert.NoError(t, view.ApplyEvent(transition("s1", "math", "", assessment.StatusSubmitted)))
	assert.NoError(t, view.ApplyEvent(transition("s1", "science", "", assessment.StatusSubmitted)))
	assert.NoError(t, view.ApplyEvent(transition("s1", "math", assessment.StatusSubmitted, assessment.StatusPublished)))

	row, ok := view.StudentRow("mid-1", "s1")
	assert.True(t, ok)
	assert.Equal(t, 2, row.SubjectCount)
	assert.Equal(t, 1, row.SubmittedCount)
	assert.Equal(t, 1, row.PublishedCount)
	assert.True(t, row.ReadyForReview())
	assert.False(t, row.FullyPublished())
	assert.Equal(t, int64(3), view.Version())
}

func TestReviewBoardFullyPublished(t *testing.T) {
	view := NewReviewBoardView()

	assert.NoError(t, view.ApplyEvent(transition("s1", "math", assessment.StatusSubmitted, assessment.StatusPublished)))
	assert.NoError(t, view.ApplyEvent(transition("s1", "science", assessment.StatusSubmitted, assessment.StatusPublished)))

	row, ok := view.StudentRow("mid-1", "s1")
	assert.True(t, ok)
	assert.True(t, row.FullyPublished())
	assert.False(t, row.ReadyForReview())
}

func TestReviewBoardRejectionReturnsToDraft(t *testing.T) {
	view := NewReviewBoardView()

	assert.NoError(t, view.ApplyEvent(transition("s1", "math", "", assessment.StatusSubmitted)))
	assert.NoError(t, view.ApplyEvent(transition("s1", "math", assessment.StatusSubmitted, assessment.StatusDraft)))

	row, _ := view.StudentRow("mid-1", "s1")
	assert.Equal(t, 1, row.DraftCount)
	assert.Zero(t, row.SubmittedCount)
	assert.False(t, row.ReadyForReview())
}

func TestReviewBoardPendingReview(t *testing.T) {
	view := NewReviewBoardView()

	assert.NoError(t, view.ApplyEvent(transition("s1", "math", "", assessment.StatusSubmitted)))
	assert.NoError(t, view.ApplyEvent(transition("s2", "math", "", assessment.StatusDraft)))
	assert.NoError(t, view.ApplyEvent(transition("s3", "math", assessment.StatusSubmitted, assessment.StatusPublished)))

	pending := view.PendingReview("mid-1")
	assert.Len(t, pending, 1)
	assert.Equal(t, shared.StudentID("s1"), pending[0].StudentID)

	assert.Nil(t, view.PendingReview("unknown-exam"))
}

func TestReviewBoardIgnoresForeignEvents(t *testing.T) {
	view := NewReviewBoardView()

	foreign := plainEvent{shared.NewBaseEvent("system.heartbeat", "worker-1")}
	assert.NoError(t, view.ApplyEvent(foreign))
	assert.Zero(t, view.Version())

	_, ok := view.StudentRow("mid-1", "s1")
	assert.False(t, ok)
}

func TestReviewBoardDropExam(t *testing.T) {
	view := NewReviewBoardView()
	assert.NoError(t, view.ApplyEvent(transition("s1", "math", "", assessment.StatusSubmitted)))

	view.DropExam("mid-1")
	_, ok := view.StudentRow("mid-1", "s1")
	assert.False(t, ok)
}
