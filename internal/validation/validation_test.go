package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pastebox/internal/apperr"
)

type sample struct {
	Name  string  `json:"username" validate:"required,alphanum,max=200"`
	Email string  `json:"email" validate:"required,email"`
	Title *string `json:"title" validate:"omitempty,min=1,max=5"`
}

func TestStructCollectsReasons(t *testing.T) {
	long := "abcdefg"
	err := Struct(sample{Name: "a b", Title: &long})
	require.Error(t, err)
	assert.True(t, apperr.IsCode(err, apperr.CodeValidation))
	assert.ElementsMatch(t, []string{
		"username must contain only letters and digits",
		"email is required",
		"title must be at most 5 characters",
	}, apperr.ReasonsOf(err))
}

func TestStructAcceptsValid(t *testing.T) {
	assert.NoError(t, Struct(sample{Name: "alice", Email: "a@example.com"}))
	title := strings.Repeat("ä", 5)
	assert.NoError(t, Struct(sample{Name: "alice", Email: "a@example.com", Title: &title}))
}
