package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"order-dispatch/pkg/constants"
	"order-dispatch/pkg/contextkeys"
	apperrors "order-dispatch/pkg/errors"
	"order-dispatch/pkg/utils"
)

// ActorRoleHeader - заголовок с ролью вызывающего. Аутентификации нет, роль принимается как есть.
const ActorRoleHeader = "X-Actor-Role"

type RoleMiddleware struct {
	logger *zap.Logger
}

func NewRoleMiddleware(logger *zap.Logger) *RoleMiddleware {
	return &RoleMiddleware{logger: logger}
}

// Require читает роль из заголовка и пропускает только перечисленные роли.
// Без списка подходит любая известная роль.
func (m *RoleMiddleware) Require(allowed ...constants.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := strings.ToLower(strings.TrimSpace(c.Request().Header.Get(ActorRoleHeader)))
			role := constants.Role(raw)
			if !role.Valid() {
				return utils.ErrorResponse(c,
					apperrors.NewHttpError(http.StatusBadRequest, "Не указана или неизвестна роль в заголовке "+ActorRoleHeader, nil,
						map[string]interface{}{"role": raw}),
					m.logger)
			}
			if len(allowed) > 0 && !roleIn(role, allowed) {
				m.logger.Warn("RoleMiddleware: роль не допущена", zap.String("role", raw), zap.String("path", c.Path()))
				return utils.ErrorResponse(c,
					apperrors.NewHttpError(http.StatusForbidden, "Действие недоступно для роли "+raw, nil, nil),
					m.logger)
			}

			ctx := context.WithValue(c.Request().Context(), contextkeys.ActorRoleKey, role)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

func roleIn(role constants.Role, allowed []constants.Role) bool {
	for _, r := range allowed {
		if r == role {
			return true
		}
	}
	return false
}

// ActorRole достаёт роль, положенную Require.
func ActorRole(ctx context.Context) (constants.Role, bool) {
	role, ok := ctx.Value(contextkeys.ActorRoleKey).(constants.Role)
	return role, ok
}
