package utils

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	apperrors "order-dispatch/pkg/errors"
)

func TestStatusFor(t *testing.T) {
	type sample struct {
		Name string `validate:"required"`
	}
	validationErrs := validator.New().Struct(sample{})
	require.Error(t, validationErrs)

	tests := []struct {
		name string
		err  error
		code int
	}{
		{"http error keeps its code", apperrors.NewHttpError(http.StatusForbidden, "нет", nil, nil), http.StatusForbidden},
		{"validator errors", validationErrs, http.StatusBadRequest},
		{"rejected transition", apperrors.NewValidationError("o1", "ready", "pending", "kitchen", "назад нельзя"), http.StatusBadRequest},
		{"invalid input", apperrors.NewInvalidInputError("плохой ввод"), http.StatusBadRequest},
		{"unknown sound", fmt.Errorf("настройки: %w", apperrors.ErrUnknownSound), http.StatusBadRequest},
		{"not found", apperrors.NewNotFoundError("order", "o1"), http.StatusNotFound},
		{"conflict", apperrors.NewConflictError("o1", "delivered", "заказ завершён"), http.StatusConflict},
		{"persistence", apperrors.NewPersistenceError("update", errors.New("connection reset")), http.StatusBadGateway},
		{"anything else", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, msg := StatusFor(tt.err)
			assert.Equal(t, tt.code, code)
			assert.NotEmpty(t, msg)
		})
	}
}

func TestStatusFor_HidesInternalDetails(t *testing.T) {
	_, msg := StatusFor(apperrors.NewPersistenceError("update", errors.New("password=secret")))
	assert.NotContains(t, msg, "secret")

	_, msg = StatusFor(errors.New("stack trace here"))
	assert.NotContains(t, msg, "stack")
}

func TestErrorResponse(t *testing.T) {
	e := echo.New()

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	require.NoError(t, ErrorResponse(c, apperrors.NewNotFoundError("order", "o1"), zap.NewNop()))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":false`)

	rec = httptest.NewRecorder()
	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	httpErr := apperrors.NewHttpError(http.StatusBadRequest, "Неверный формат запроса", errors.New("eof"), nil)
	httpErr.Details = map[string]string{"field": "items"}
	require.NoError(t, ErrorResponse(c, httpErr, zap.NewNop()))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Неверный формат запроса")
	assert.Contains(t, rec.Body.String(), `"field":"items"`)
}
