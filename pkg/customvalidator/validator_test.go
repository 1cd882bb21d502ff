package customvalidator

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type probe struct {
	Panel  string `validate:"omitempty,panel"`
	Status string `validate:"omitempty,order_status"`
}

func TestRegisterCustomValidations(t *testing.T) {
	v := validator.New()
	require.NoError(t, RegisterCustomValidations(v))

	assert.NoError(t, v.Struct(probe{Panel: "kitchen", Status: "out_for_delivery"}))
	assert.NoError(t, v.Struct(probe{}))

	assert.Error(t, v.Struct(probe{Panel: "storefront"}), "у витрины нет звука")
	assert.Error(t, v.Struct(probe{Panel: "bar"}))
	assert.Error(t, v.Struct(probe{Status: "lost"}))
}
