package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTypedErrors_Matching(t *testing.T) {
	nf := fmt.Errorf("обёртка: %w", NewNotFoundError("order", "42"))
	assert.ErrorIs(t, nf, ErrNotFound)
	assert.NotErrorIs(t, nf, ErrConflict)

	cf := NewConflictError("42", "ready", "статус уже изменён")
	assert.ErrorIs(t, cf, ErrConflict)

	pe := NewPersistenceError("update_status", errors.New("connection reset"))
	assert.True(t, IsPersistence(pe))
	assert.False(t, IsValidation(pe))

	ve := NewValidationError("42", "delivered", "pending", "admin", "терминальный статус")
	assert.True(t, IsValidation(fmt.Errorf("%w", ve)))
	assert.Contains(t, ve.Error(), "delivered → pending")
}
