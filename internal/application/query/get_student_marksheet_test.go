package query

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/schoolhub/marksflow/internal/domain/assessment"
	"github.com/schoolhub/marksflow/internal/domain/shared"
	"github.com/schoolhub/marksflow/internal/infrastructure/persistence/redis"
)

type fakeStore struct {
	records  []*assessment.AssessmentRecord
	fetchErr error
	fetches  int
}

func (f *fakeStore) FetchRecords(_ context.Context, examID shared.ExamID, filter assessment.RecordFilter) ([]*assessment.AssessmentRecord, error) {
	f.fetches++
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	var out []*assessment.AssessmentRecord
	for _, r := range f.records {
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

func (f *fakeStore) UpsertRecords(context.Context, []*assessment.AssessmentRecord) error {
	return nil
}

type fakeSheetCache struct {
	sheets map[string]*redis.Marksheet
	getErr error
	sets   []redis.Marksheet
	setErr error
}

func newFakeSheetCache() *fakeSheetCache {
	return &fakeSheetCache{sheets: make(map[string]*redis.Marksheet)}
}

func (f *fakeSheetCache) Get(_ context.Context, examID shared.ExamID, studentID shared.StudentID) (*redis.Marksheet, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	sheet, ok := f.sheets[examID.String()+"/"+studentID.String()]
	if !ok {
		return nil, redis.ErrCacheMiss
	}
	return sheet, nil
}

func (f *fakeSheetCache) Set(_ context.Context, sheet redis.Marksheet) error {
	if f.setErr != nil {
		return f.setErr
	}
	f.sets = append(f.sets, sheet)
	return nil
}

func storeWithPublished() *fakeStore {
	mk := func(subject shared.SubjectID, status assessment.Status, internal, external int) *assessment.AssessmentRecord {
		rec := assessment.NewRecord(shared.RecordKey{ExamID: "mid-1", StudentID: "s1", SubjectID: subject}, "c8", "A", "t1")
		rec.SetScores(shared.ScoreOf(internal), shared.ScoreOf(external))
		rec.Status = status
		return rec
	}
	return &fakeStore{records: []*assessment.AssessmentRecord{
		mk("math", assessment.StatusPublished, 18, 72),
		mk("science", assessment.StatusPublished, 15, 60),
		mk("history", assessment.StatusSubmitted, 10, 40),
	}}
}

func TestExecuteValidates(t *testing.T) {
	h := NewGetStudentMarksheetHandler(&fakeStore{}, nil, assessment.DefaultScheme(), nil)

	_, err := h.Execute(context.Background(), GetStudentMarksheetQuery{StudentID: "s1"})
	assert.Error(t, err)
	_, err = h.Execute(context.Background(), GetStudentMarksheetQuery{ExamID: "mid-1"})
	assert.Error(t, err)
}

func TestExecuteWithoutCacheReadsStore(t *testing.T) {
	store := storeWithPublished()
	h := NewGetStudentMarksheetHandler(store, nil, assessment.DefaultScheme(), nil)

	dto, err := h.Execute(context.Background(), GetStudentMarksheetQuery{ExamID: "mid-1", StudentID: "s1"})

	assert.NoError(t, err)
	assert.False(t, dto.FromCache)
	assert.Len(t, dto.Lines, 2, "the submitted subject stays invisible")
	assert.Equal(t, "math", dto.Lines[0].SubjectID)
	assert.Equal(t, "science", dto.Lines[1].SubjectID)
	// 90 + 75 of 200.
	assert.InDelta(t, 82.5, dto.AggregatePercent, 0.0001)
}

func TestExecuteCacheHitSkipsStore(t *testing.T) {
	store := storeWithPublished()
	cache := newFakeSheetCache()
	cache.sheets["mid-1/s1"] = &redis.Marksheet{
		ExamID:           "mid-1",
		StudentID:        "s1",
		Lines:            []redis.MarksheetLine{{SubjectID: "math", Total: 90}},
		AggregatePercent: 90,
		GeneratedAt:      time.Now(),
	}
	h := NewGetStudentMarksheetHandler(store, cache, assessment.DefaultScheme(), nil)

	dto, err := h.Execute(context.Background(), GetStudentMarksheetQuery{ExamID: "mid-1", StudentID: "s1"})

	assert.NoError(t, err)
	assert.True(t, dto.FromCache)
	assert.Len(t, dto.Lines, 1)
	assert.Zero(t, store.fetches, "a cache hit must not touch the store")
}

func TestExecuteMissBackfillsCache(t *testing.T) {
	store := storeWithPublished()
	cache := newFakeSheetCache()
	h := NewGetStudentMarksheetHandler(store, cache, assessment.DefaultScheme(), nil)

	dto, err := h.Execute(context.Background(), GetStudentMarksheetQuery{ExamID: "mid-1", StudentID: "s1"})

	assert.NoError(t, err)
	assert.False(t, dto.FromCache)
	assert.Len(t, cache.sets, 1)
	assert.Len(t, cache.sets[0].Lines, 2)
}

func TestExecuteNoPublishedRecords(t *testing.T) {
	cache := newFakeSheetCache()
	h := NewGetStudentMarksheetHandler(&fakeStore{}, cache, assessment.DefaultScheme(), nil)

	dto, err := h.Execute(context.Background(), GetStudentMarksheetQuery{ExamID: "mid-1", StudentID: "s1"})

	assert.NoError(t, err, "no published marks is an empty sheet, not an error")
	assert.Empty(t, dto.Lines)
	assert.Empty(t, cache.sets, "empty sheets are not cached")
}

func TestExecuteCacheFailureFallsBack(t *testing.T) {
	store := storeWithPublished()
	cache := newFakeSheetCache()
	cache.getErr = errors.New("connection refused")
	cache.setErr = errors.New("connection refused")
	h := NewGetStudentMarksheetHandler(store, cache, assessment.DefaultScheme(), nil)

	dto, err := h.Execute(context.Background(), GetStudentMarksheetQuery{ExamID: "mid-1", StudentID: "s1"})

	assert.NoError(t, err, "a broken cache degrades, it does not fail the view")
	assert.False(t, dto.FromCache)
	assert.Len(t, dto.Lines, 2)
}

func TestExecuteStoreFailure(t *testing.T) {
	store := &fakeStore{fetchErr: errors.New("connection refused")}
	h := NewGetStudentMarksheetHandler(store, nil, assessment.DefaultScheme(), nil)

	_, err := h.Execute(context.Background(), GetStudentMarksheetQuery{ExamID: "mid-1", StudentID: "s1"})
	assert.ErrorIs(t, err, shared.ErrPersistence)
}
