package redis

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/schoolhub/marksflow/internal/domain/assessment"
	"github.com/schoolhub/marksflow/internal/domain/shared"
)

func sheetRecord(subject shared.SubjectID, status assessment.Status, internal, external int) *assessment.AssessmentRecord {
	rec := assessment.NewRecord(shared.RecordKey{
		ExamID:    "mid-1",
		StudentID: "s1",
		SubjectID: subject,
	}, "c8", "A", "t1")
	rec.SetScores(shared.ScoreOf(internal), shared.ScoreOf(external))
	rec.Status = status
	return rec
}

func TestBuildMarksheetPublishedOnly(t *testing.T) {
	records := []*assessment.AssessmentRecord{
		sheetRecord("math", assessment.StatusPublished, 18, 72),
		sheetRecord("science", assessment.StatusSubmitted, 15, 60),
		sheetRecord("history", assessment.StatusDraft, 10, 40),
	}

	sheet := BuildMarksheet("mid-1", "s1", records, assessment.DefaultScheme())

	assert.Equal(t, "mid-1", sheet.ExamID)
	assert.Equal(t, "s1", sheet.StudentID)
	assert.Len(t, sheet.Lines, 1, "drafts and submitted rows never reach the student view")
	assert.Equal(t, "math", sheet.Lines[0].SubjectID)
	assert.Equal(t, 90, sheet.Lines[0].Total)
	// One published subject at 90/100.
	assert.InDelta(t, 90.0, sheet.AggregatePercent, 0.0001)
	assert.False(t, sheet.GeneratedAt.IsZero())
}

func TestBuildMarksheetSortsBySubject(t *testing.T) {
	records := []*assessment.AssessmentRecord{
		sheetRecord("science", assessment.StatusPublished, 15, 60),
		sheetRecord("english", assessment.StatusPublished, 12, 55),
		sheetRecord("math", assessment.StatusPublished, 18, 72),
	}

	sheet := BuildMarksheet("mid-1", "s1", records, assessment.DefaultScheme())

	assert.Len(t, sheet.Lines, 3)
	assert.Equal(t, "english", sheet.Lines[0].SubjectID)
	assert.Equal(t, "math", sheet.Lines[1].SubjectID)
	assert.Equal(t, "science", sheet.Lines[2].SubjectID)
}

func TestBuildMarksheetAbsentComponent(t *testing.T) {
	rec := sheetRecord("math", assessment.StatusPublished, 0, 0)
	rec.SetScores(shared.ScoreOf(0), shared.NoScore())
	rec.Status = assessment.StatusPublished

	sheet := BuildMarksheet("mid-1", "s1", []*assessment.AssessmentRecord{rec}, assessment.DefaultScheme())

	line := sheet.Lines[0]
	// An explicit zero serializes as 0; a never-entered score is omitted.
	if assert.NotNil(t, line.Internal) {
		assert.Zero(t, *line.Internal)
	}
	assert.Nil(t, line.External)
	assert.Zero(t, line.Total)
}

func TestBuildMarksheetEmpty(t *testing.T) {
	sheet := BuildMarksheet("mid-1", "s1", nil, assessment.DefaultScheme())
	assert.Empty(t, sheet.Lines)
	assert.Zero(t, sheet.AggregatePercent)
}

func TestMarksheetKey(t *testing.T) {
	assert.Equal(t, "marksheet:mid-1:s1", MarksheetKey("mid-1", "s1"))
}
