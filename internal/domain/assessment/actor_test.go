package assessment

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/schoolhub/marksflow/internal/domain/shared"
)

func TestActorCanEnter(t *testing.T) {
	subjectTeacher := Actor{
		ID:            "t1",
		Role:          RoleSubjectTeacher,
		ScopeSubjects: []shared.SubjectID{"math", "physics"},
	}

	assert.True(t, subjectTeacher.CanEnter("math"))
	assert.True(t, subjectTeacher.CanEnter("physics"))
	assert.False(t, subjectTeacher.CanEnter("history"))

	classTeacher := Actor{ID: "t2", Role: RoleClassTeacher, ScopeClassID: "c8", ScopeSectionID: "A"}
	assert.False(t, classTeacher.CanEnter("math"), "class teachers do not author marks")

	anonymous := Actor{Role: RoleSubjectTeacher, ScopeSubjects: []shared.SubjectID{"math"}}
	assert.False(t, anonymous.CanEnter("math"), "an actor without identity is never authorized")
}

func TestActorCanReview(t *testing.T) {
	classTeacher := Actor{ID: "t2", Role: RoleClassTeacher, ScopeClassID: "c8", ScopeSectionID: "A"}

	assert.True(t, classTeacher.CanReview("c8", "A"))
	assert.False(t, classTeacher.CanReview("c8", "B"))
	assert.False(t, classTeacher.CanReview("c9", "A"))

	subjectTeacher := Actor{ID: "t1", Role: RoleSubjectTeacher, ScopeSubjects: []shared.SubjectID{"math"}}
	assert.False(t, subjectTeacher.CanReview("c8", "A"), "subject teachers do not review")
}
