package assessment

// Status is the lifecycle state of one assessment record.
//
// The reviewer's approve action and the publish that makes the record
// visible to students/parents are a single operation, so approval is
// persisted directly as published rather than as a distinct state.
type Status string

const (
	// StatusDraft - scores are being entered or were returned for correction.
	StatusDraft Status = "draft"

	// StatusSubmitted - scores are in front of the class teacher for review.
	// The authoring teacher can no longer edit them.
	StatusSubmitted Status = "submitted"

	// StatusPublished - scores were approved and are visible to
	// student/parent views. Terminal within this subsystem.
	StatusPublished Status = "published"
)

// IsValid checks that the status is one of the known states.
func (s Status) IsValid() bool {
	switch s {
	case StatusDraft, StatusSubmitted, StatusPublished:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (s Status) String() string { return string(s) }

// Editable reports whether the authoring teacher may still change scores.
// Once a record is submitted its fields are read-only until a rejection
// returns it to draft.
func (s Status) Editable() bool {
	return s == "" || s == StatusDraft
}

// Terminal reports whether no further transitions are permitted.
func (s Status) Terminal() bool {
	return s == StatusPublished
}

// VisibleToStudents reports whether student/parent views may read the record.
func (s Status) VisibleToStudents() bool {
	return s == StatusPublished
}

// CanTransition reports whether moving from s to next is a legal lifecycle
// step. The zero status (a record that does not exist yet) may only become
// draft via the implicit create-on-first-save.
//
//	(none) → draft        save (upsert)
//	draft  → draft        save again (idempotent)
//	draft  → submitted    submit for review
//	submitted → draft     reject (requires comment)
//	submitted → published approve-publish
func (s Status) CanTransition(next Status) bool {
	switch s {
	case "":
		return next == StatusDraft
	case StatusDraft:
		return next == StatusDraft || next == StatusSubmitted
	case StatusSubmitted:
		return next == StatusDraft || next == StatusPublished
	case StatusPublished:
		return false
	default:
		return false
	}
}

// ParseStatus parses a stored status string.
func ParseStatus(s string) (Status, bool) {
	st := Status(s)
	return st, st.IsValid()
}
