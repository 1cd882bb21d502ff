// Файл: pkg/customvalidator/validator.go

package customvalidator

import (
	"github.com/go-playground/validator/v10"

	"order-dispatch/pkg/constants"
)

// RegisterCustomValidations регистрирует наши правила в переданном валидаторе.
func RegisterCustomValidations(v *validator.Validate) error {
	if err := v.RegisterValidation("panel", isAlertPanel); err != nil {
		return err
	}
	if err := v.RegisterValidation("order_status", isOrderStatus); err != nil {
		return err
	}
	return nil
}

// panel: одна из панелей со звуком (admin, kitchen, courier).
func isAlertPanel(fl validator.FieldLevel) bool {
	return constants.Panel(fl.Field().String()).HasAlerts()
}

func isOrderStatus(fl validator.FieldLevel) bool {
	return constants.OrderStatus(fl.Field().String()).Valid()
}
