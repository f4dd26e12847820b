package assessment

import (
	"fmt"

	"github.com/schoolhub/marksflow/internal/domain/shared"
)

// ScoreKind distinguishes the two additive components of a subject mark.
type ScoreKind string

const (
	// ScoreInternal - internal assessment (coursework, class tests).
	ScoreInternal ScoreKind = "internal"

	// ScoreExternal - external examination.
	ScoreExternal ScoreKind = "external"
)

// Default component maxima. These are configuration defaults, not constants
// of the design; institutions override them through config.
const (
	DefaultInternalMax = 20
	DefaultExternalMax = 80
)

// ScoreScheme holds the configured maxima for the two score components.
type ScoreScheme struct {
	InternalMax int
	ExternalMax int
}

// DefaultScheme returns the 20/80 split used when nothing is configured.
func DefaultScheme() ScoreScheme {
	return ScoreScheme{InternalMax: DefaultInternalMax, ExternalMax: DefaultExternalMax}
}

// Max returns the configured maximum for the given component.
func (s ScoreScheme) Max(kind ScoreKind) int {
	if kind == ScoreExternal {
		return s.ExternalMax
	}
	return s.InternalMax
}

// MaxTotal returns the maximum achievable total per subject.
func (s ScoreScheme) MaxTotal() int {
	return s.InternalMax + s.ExternalMax
}

// RangeError reports a score outside its configured bound. It is display
// state for the editing UI, not a Go error: an invalid value stays in the
// draft alongside this indicator and never blocks other fields.
type RangeError struct {
	Kind  ScoreKind
	Max   int
	Value int
}

// String returns the per-field message shown next to the offending input.
func (e *RangeError) String() string {
	return fmt.Sprintf("%s score must be between 0 and %d", e.Kind, e.Max)
}

// ValidateScore checks one component against its configured maximum.
// A not-entered score is not an error: it means "not yet entered" and
// contributes zero to totals. Out-of-range values are reported, never
// silently clamped.
func (s ScoreScheme) ValidateScore(kind ScoreKind, score shared.Score) *RangeError {
	if !score.Entered() {
		return nil
	}
	max := s.Max(kind)
	if score.Int() < 0 || score.Int() > max {
		return &RangeError{Kind: kind, Max: max, Value: score.Int()}
	}
	return nil
}

// ValidateRecord checks both components of a record.
// Returns nil when every entered score is in range.
func (s ScoreScheme) ValidateRecord(r *AssessmentRecord) []*RangeError {
	var errs []*RangeError
	if e := s.ValidateScore(ScoreInternal, r.Internal); e != nil {
		errs = append(errs, e)
	}
	if e := s.ValidateScore(ScoreExternal, r.External); e != nil {
		errs = append(errs, e)
	}
	return errs
}

// ComputeTotal returns the pure sum of the two components.
// Not-entered components contribute zero.
func ComputeTotal(internal, external shared.Score) int {
	return internal.Int() + external.Int()
}

// ComputeAggregatePercent returns the student's aggregate across records:
// sum of totals over sum of per-subject maxima, as a percentage.
// An empty record set yields 0 rather than dividing by zero.
func ComputeAggregatePercent(records []*AssessmentRecord, scheme ScoreScheme) float64 {
	if len(records) == 0 {
		return 0
	}
	sum := 0
	for _, r := range records {
		sum += r.Total
	}
	max := scheme.MaxTotal() * len(records)
	if max == 0 {
		return 0
	}
	return float64(sum) / float64(max) * 100
}
