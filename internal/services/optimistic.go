package services

import (
	"context"
	"errors"

	apperrors "order-dispatch/pkg/errors"
)

// Optimistic описывает одну оптимистичную мутацию над снимком S.
// Apply меняет локальное состояние и возвращает снимок «до»; ошибка Apply прерывает мутацию до записи.
// Rollback возвращает снимок обратно, Commit принимает подтверждённый хранилищем результат.
type Optimistic[S any, R any] struct {
	Op       string
	Apply    func() (S, error)
	Persist  func(ctx context.Context) (R, error)
	Rollback func(before S)
	Commit   func(result R)
}

// RunOptimistic: снимок → локальное применение → запись → откат при ошибке.
// Ошибки предметной области (не найдено, конфликт, валидация) возвращаются как есть, остальные
// оборачиваются в PersistenceError.
func RunOptimistic[S any, R any](ctx context.Context, m Optimistic[S, R]) (R, error) {
	var zero R
	before, err := m.Apply()
	if err != nil {
		return zero, err
	}

	result, err := m.Persist(ctx)
	if err != nil {
		m.Rollback(before)
		if isDomainError(err) {
			return zero, err
		}
		return zero, apperrors.NewPersistenceError(m.Op, err)
	}

	if m.Commit != nil {
		m.Commit(result)
	}
	return result, nil
}

func isDomainError(err error) bool {
	return errors.Is(err, apperrors.ErrNotFound) ||
		errors.Is(err, apperrors.ErrConflict) ||
		apperrors.IsValidation(err) ||
		apperrors.IsPersistence(err)
}
