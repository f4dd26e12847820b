package assessment

import (
	"github.com/schoolhub/marksflow/internal/domain/shared"
)

// Event types emitted after successful status transitions. Downstream
// consumers (grade views, dashboards, caches) subscribe to these; delivery
// never blocks or rolls back the persistence that already happened.
const (
	EventMarksSaved     shared.EventType = "marks.saved"
	EventMarksSubmitted shared.EventType = "marks.submitted"
	EventMarksRejected  shared.EventType = "marks.rejected"
	EventMarksPublished shared.EventType = "marks.published"
)

// StatusChangedEvent is emitted once per record for every successful
// transition.
type StatusChangedEvent struct {
	shared.BaseEvent
	Key            shared.RecordKey `json:"key"`
	PreviousStatus Status           `json:"previous_status"`
	NewStatus      Status           `json:"new_status"`
	ActorID        shared.TeacherID `json:"actor_id"`
}

// Payload implements shared.Event.
func (e StatusChangedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"exam_id":         e.Key.ExamID.String(),
		"student_id":      e.Key.StudentID.String(),
		"subject_id":      e.Key.SubjectID.String(),
		"previous_status": string(e.PreviousStatus),
		"new_status":      string(e.NewStatus),
		"actor_id":        e.ActorID.String(),
	}
}

// NewStatusChangedEvent creates the event for one record transition.
// The aggregate ID is the record key so per-record consumers can filter.
func NewStatusChangedEvent(key shared.RecordKey, prev, next Status, actor shared.TeacherID) StatusChangedEvent {
	return StatusChangedEvent{
		BaseEvent:      shared.NewBaseEvent(eventTypeFor(next), key.String()),
		Key:            key,
		PreviousStatus: prev,
		NewStatus:      next,
		ActorID:        actor,
	}
}

func eventTypeFor(next Status) shared.EventType {
	switch next {
	case StatusSubmitted:
		return EventMarksSubmitted
	case StatusPublished:
		return EventMarksPublished
	case StatusDraft:
		return EventMarksRejected
	default:
		return EventMarksSaved
	}
}

// NewSavedEvent creates the event for a draft save, where the status does
// not move past draft and eventTypeFor would report a rejection.
func NewSavedEvent(key shared.RecordKey, prev Status, actor shared.TeacherID) StatusChangedEvent {
	return StatusChangedEvent{
		BaseEvent:      shared.NewBaseEvent(EventMarksSaved, key.String()),
		Key:            key,
		PreviousStatus: prev,
		NewStatus:      StatusDraft,
		ActorID:        actor,
	}
}
