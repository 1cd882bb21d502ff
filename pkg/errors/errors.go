package errors

import (
	"errors"
	"fmt"
)

var (
	// Общие
	ErrNotFound   = fmt.Errorf("запись не найдена")
	ErrConflict   = fmt.Errorf("конфликт состояния записи")
	ErrBadRequest = fmt.Errorf("неверный запрос")

	// Звук
	ErrAudioLocked  = fmt.Errorf("звук не разблокирован жестом пользователя")
	ErrUnknownSound = fmt.Errorf("неизвестный идентификатор звука")

	// Лента изменений
	ErrFeedClosed = fmt.Errorf("подписка на ленту изменений закрыта")
)

// ValidationError - переход статуса запрещён для роли или текущего статуса. Заказ не меняется.
type ValidationError struct {
	OrderID string
	From    string
	To      string
	Role    string
	Reason  string
}

func (e *ValidationError) Error() string {
	if e.OrderID == "" {
		return e.Reason
	}
	return fmt.Sprintf("заказ %s: переход %s → %s для роли %s отклонён: %s", e.OrderID, e.From, e.To, e.Role, e.Reason)
}

func NewValidationError(orderID, from, to, role, reason string) error {
	return &ValidationError{OrderID: orderID, From: from, To: to, Role: role, Reason: reason}
}

// NotFoundError - заказа больше нет (обычно проигранная гонка с удалением).
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s не найден", e.Entity, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

func NewNotFoundError(entity, id string) error {
	return &NotFoundError{Entity: entity, ID: id}
}

// ConflictError - хранилище уже содержит другое состояние (проигранная гонка переходов).
type ConflictError struct {
	ID      string
	Current string
	Reason  string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("заказ %s: конфликт (текущий статус %s): %s", e.ID, e.Current, e.Reason)
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

func NewConflictError(id, current, reason string) error {
	return &ConflictError{ID: id, Current: current, Reason: reason}
}

// PersistenceError - запись в хранилище не удалась после валидации; локальное состояние откатывается.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("ошибка записи в хранилище (%s): %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func NewPersistenceError(op string, err error) error {
	return &PersistenceError{Op: op, Err: err}
}

// PlaybackError - звук не воспроизведён. Никогда не ломает операцию над заказом.
type PlaybackError struct {
	Panel string
	Err   error
}

func (e *PlaybackError) Error() string {
	return fmt.Sprintf("панель %s: звук не воспроизведён: %v", e.Panel, e.Err)
}

func (e *PlaybackError) Unwrap() error { return e.Err }

// SubscriptionError - транспорт ленты изменений оборвался.
type SubscriptionError struct {
	Entity string
	Err    error
}

func (e *SubscriptionError) Error() string {
	return fmt.Sprintf("лента %s: %v", e.Entity, e.Err)
}

func (e *SubscriptionError) Unwrap() error { return e.Err }

// HttpError - ошибка HTTP-слоя: код, сообщение для пользователя и внутренняя причина для логов.
type HttpError struct {
	Code    int
	Message string
	Err     error
	Context map[string]interface{}
	Details interface{}
}

func (e *HttpError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *HttpError) Unwrap() error { return e.Err }

func NewHttpError(code int, message string, err error, ctx map[string]interface{}) *HttpError {
	return &HttpError{Code: code, Message: message, Err: err, Context: ctx}
}

// Кастомные типы ошибок
type InvalidInputError struct {
	Message string
}

func (e *InvalidInputError) Error() string { return e.Message }

func NewInvalidInputError(format string, args ...interface{}) error {
	return &InvalidInputError{Message: fmt.Sprintf(format, args...)}
}

// IsValidation сообщает, что ошибка - отказ автомата статусов.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsPersistence сообщает, что ошибка пришла из хранилища после успешной валидации.
func IsPersistence(err error) bool {
	var p *PersistenceError
	return errors.As(err, &p)
}
