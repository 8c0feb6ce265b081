package core

import (
	"testing"

	"seopilot/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type registerPayload struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=8"`
}

type checkoutPayload struct {
	Plan string `validate:"required,purchasable"`
}

type planPayload struct {
	Plan string `validate:"required,plantier"`
}

func TestValidateStruct_Passes(t *testing.T) {
	v := NewValidator()
	err := v.ValidateStruct(registerPayload{Email: "a@example.com", Password: "longenough"})
	assert.NoError(t, err)
}

func TestValidateStruct_InvalidEmail(t *testing.T) {
	v := NewValidator()
	err := v.ValidateStruct(registerPayload{Email: "nope", Password: "longenough"})

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeValidationInvalidEmail, appErr.Code)

	fields, ok := appErr.Details["fields"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, fields, "email")
}

func TestValidateStruct_ShortPassword(t *testing.T) {
	v := NewValidator()
	err := v.ValidateStruct(registerPayload{Email: "a@example.com", Password: "short"})

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeValidationPassword, appErr.Code)
}

func TestValidateStruct_MissingFieldsListed(t *testing.T) {
	v := NewValidator()
	err := v.ValidateStruct(registerPayload{})

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)

	fields, ok := appErr.Details["fields"].(map[string]any)
	require.True(t, ok)
	assert.Len(t, fields, 2)
	assert.Equal(t, "is required", fields["email"])
	assert.Equal(t, "is required", fields["password"])
}

func TestValidateStruct_PlanTierTag(t *testing.T) {
	v := NewValidator()

	assert.NoError(t, v.ValidateStruct(planPayload{Plan: string(types.PlanFree)}))

	err := v.ValidateStruct(planPayload{Plan: "platinum"})
	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeValidationInvalidPlan, appErr.Code)
}

func TestValidateStruct_PurchasableExcludesFree(t *testing.T) {
	v := NewValidator()

	assert.NoError(t, v.ValidateStruct(checkoutPayload{Plan: string(types.PlanPro)}))

	err := v.ValidateStruct(checkoutPayload{Plan: string(types.PlanFree)})
	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeValidationInvalidPlan, appErr.Code)
}
