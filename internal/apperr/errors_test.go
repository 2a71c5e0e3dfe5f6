package apperr

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMatchesSentinel(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
		code     Code
	}{
		{"invalid", InvalidParameter("keywords must not be empty"), ErrInvalidParameter, CodeInvalidParameter},
		{"not found", NotFound("opportunity", "X-1"), ErrNotFound, CodeNotFound},
		{"ordering", OrderingViolation("abstract", []string{"need"}), ErrOrderingViolation, CodeOrderingViolation},
		{"persistence", Persistence("write store", io.ErrUnexpectedEOF), ErrPersistence, CodePersistence},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("handler: %w", tt.err)
			assert.True(t, errors.Is(wrapped, tt.sentinel))
			assert.Equal(t, tt.code, CodeOf(wrapped))
		})
	}
}

func TestPersistenceUnwrapsCause(t *testing.T) {
	err := Persistence("read store", io.ErrUnexpectedEOF)
	assert.True(t, errors.Is(err, io.ErrUnexpectedEOF))
	assert.False(t, errors.Is(err, ErrNotFound))
}

func TestOrderingViolationListsMissing(t *testing.T) {
	err := OrderingViolation("abstract", []string{"budget", "capacity"})
	assert.Equal(t, []string{"budget", "capacity"}, err.Missing)
	assert.Contains(t, err.Error(), "budget, capacity")
}

func TestCodeOfForeignError(t *testing.T) {
	assert.Equal(t, Code(""), CodeOf(errors.New("boom")))
}
