package assessment

import (
	"github.com/schoolhub/marksflow/internal/domain/shared"
)

// Assessment domain errors. All are built on the shared base sentinels so
// callers can classify them with errors.Is / the shared.IsX helpers.
var (
	ErrInvalidRecordKey = shared.NewDomainError("assessment", "Validate", shared.ErrInvalidID, "record key must have exam, student and subject")
	ErrUnknownStatus    = shared.NewDomainError("assessment", "Validate", shared.ErrInvalidState, "unknown record status")

	ErrIllegalTransition = shared.NewDomainError("assessment", "Transition", shared.ErrIllegalTransition, "status transition not permitted")
	ErrRecordLocked      = shared.NewDomainError("assessment", "Edit", shared.ErrRecordLocked, "record already submitted for review")

	ErrCommentRequired = shared.NewDomainError("assessment", "Reject", shared.ErrValidation, "rejection requires a non-empty comment")
	ErrScoresInvalid   = shared.NewDomainError("assessment", "Submit", shared.ErrValidation, "batch contains out-of-range scores")

	ErrNoReviewerAssigned = shared.NewDomainError("assessment", "Review", shared.ErrNoReviewerAssigned, "class/section has no class teacher assigned")
	ErrActorNotAllowed    = shared.NewDomainError("assessment", "Authorize", shared.ErrActorNotAllowed, "actor may not perform this operation")

	// ErrNotSubmitted - a review action needs submitted records. Built on
	// ErrValidation: the precondition for the transition is missing, which
	// the caller can fix, unlike a store failure.
	ErrNotSubmitted = shared.NewDomainError("assessment", "Review", shared.ErrValidation, "student has no records submitted for review")
)
