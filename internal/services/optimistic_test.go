package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	apperrors "order-dispatch/pkg/errors"
)

func TestRunOptimistic(t *testing.T) {
	value := 1
	run := func(persistErr error) (int, error) {
		return RunOptimistic(context.Background(), Optimistic[int, int]{
			Op: "test",
			Apply: func() (int, error) {
				before := value
				value = 2
				return before, nil
			},
			Persist: func(ctx context.Context) (int, error) {
				if persistErr != nil {
					return 0, persistErr
				}
				return 3, nil
			},
			Rollback: func(before int) { value = before },
			Commit:   func(r int) { value = r },
		})
	}

	res, err := run(nil)
	assert.NoError(t, err)
	assert.Equal(t, 3, res)
	assert.Equal(t, 3, value)

	value = 1
	_, err = run(errors.New("timeout"))
	assert.True(t, apperrors.IsPersistence(err))
	assert.Equal(t, 1, value, "откат к снимку")

	value = 1
	_, err = run(apperrors.NewConflictError("o", "ready", "гонка"))
	assert.ErrorIs(t, err, apperrors.ErrConflict)
	assert.False(t, apperrors.IsPersistence(err))
	assert.Equal(t, 1, value)
}

func TestRunOptimistic_ApplyErrorSkipsPersist(t *testing.T) {
	persisted := false
	_, err := RunOptimistic(context.Background(), Optimistic[int, int]{
		Op: "test",
		Apply: func() (int, error) {
			return 0, apperrors.NewValidationError("o", "a", "b", "kitchen", "нельзя")
		},
		Persist: func(ctx context.Context) (int, error) {
			persisted = true
			return 0, nil
		},
		Rollback: func(int) {
			t.Fatal("откат без применения")
		},
	})
	assert.True(t, apperrors.IsValidation(err))
	assert.False(t, persisted)
}
