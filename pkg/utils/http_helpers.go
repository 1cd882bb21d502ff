package utils

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	apperrors "order-dispatch/pkg/errors"
)

type HTTPResponse struct {
	Status  bool        `json:"status"`
	Body    interface{} `json:"body,omitempty"`
	Message string      `json:"message"`
}

func SuccessResponse(ctx echo.Context, body interface{}, message string, code int) error {
	return ctx.JSON(code, &HTTPResponse{Status: true, Message: message, Body: body})
}

// StatusFor сопоставляет ошибку с HTTP-кодом и сообщением для клиента.
// Используется и REST-ответами, и результатами команд панелей.
func StatusFor(err error) (int, string) {
	var httpErr *apperrors.HttpError
	if errors.As(err, &httpErr) {
		return httpErr.Code, httpErr.Message
	}

	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		msgs := make([]string, 0, len(validationErrors))
		for _, e := range validationErrors {
			msgs = append(msgs, fmt.Sprintf("Поле '%s' не прошло проверку '%s'", e.Field(), e.Tag()))
		}
		return http.StatusBadRequest, "Ошибка валидации: " + strings.Join(msgs, "; ")
	}

	var invalid *apperrors.InvalidInputError
	switch {
	case apperrors.IsValidation(err), errors.As(err, &invalid), errors.Is(err, apperrors.ErrBadRequest),
		errors.Is(err, apperrors.ErrUnknownSound):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, apperrors.ErrNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, apperrors.ErrConflict):
		return http.StatusConflict, err.Error()
	case apperrors.IsPersistence(err):
		return http.StatusBadGateway, "Хранилище заказов недоступно, изменения отменены"
	}
	return http.StatusInternalServerError, "Внутренняя ошибка сервера"
}

func ErrorResponse(c echo.Context, err error, logger *zap.Logger) error {
	code, message := StatusFor(err)

	var httpErr *apperrors.HttpError
	if errors.As(err, &httpErr) {
		if httpErr.Err != nil {
			logger.Error("HTTP Error",
				zap.Int("code", httpErr.Code),
				zap.String("message", httpErr.Message),
				zap.Error(httpErr.Err),
				zap.Any("context", httpErr.Context),
			)
		}
		response := map[string]interface{}{
			"status":  false,
			"message": httpErr.Message,
		}
		if httpErr.Details != nil {
			response["body"] = httpErr.Details
		}
		return c.JSON(httpErr.Code, response)
	}

	switch {
	case code >= http.StatusInternalServerError:
		logger.Error("Unexpected Error", zap.Int("code", code), zap.Error(err))
	case code != http.StatusBadRequest:
		logger.Warn("Запрос отклонён", zap.Int("code", code), zap.Error(err))
	}
	return c.JSON(code, map[string]interface{}{
		"status":  false,
		"message": message,
	})
}
