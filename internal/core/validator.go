package core

import (
	"errors"
	"fmt"
	"strings"

	"seopilot/internal/types"

	"github.com/go-playground/validator/v10"
)

// Validator wraps go-playground/validator and registers domain-specific
// rules. Struct tags carry the contract; here they are translated into the
// application error taxonomy.
type Validator struct {
	validate *validator.Validate
}

// NewValidator registers custom tags: "plantier" accepts known plan tiers,
// "purchasable" additionally excludes the free tier.
func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	_ = v.RegisterValidation("plantier", func(fl validator.FieldLevel) bool {
		return types.PlanTier(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("purchasable", func(fl validator.FieldLevel) bool {
		tier := types.PlanTier(fl.Field().String())
		return tier.Valid() && tier.Paid()
	})

	return &Validator{validate: v}
}

// ValidateStruct checks dst against its validate tags, returning a 400
// AppError naming every failing field.
func (v *Validator) ValidateStruct(dst any) error {
	err := v.validate.Struct(dst)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "validation could not run", err)
	}

	fields := make(map[string]any, len(verrs))
	for _, fe := range verrs {
		fields[strings.ToLower(fe.Field())] = describeFieldError(fe)
	}

	return types.NewAppErrorWithDetails(
		codeForFields(verrs),
		"request validation failed",
		nil,
		map[string]any{"fields": fields},
	)
}

// codeForFields picks the most specific error code the failures allow.
func codeForFields(verrs validator.ValidationErrors) types.ErrorCode {
	for _, fe := range verrs {
		switch fe.Tag() {
		case "email":
			return types.ErrCodeValidationInvalidEmail
		case "plantier", "purchasable":
			return types.ErrCodeValidationInvalidPlan
		case "min":
			if strings.Contains(strings.ToLower(fe.Field()), "password") {
				return types.ErrCodeValidationPassword
			}
		}
	}
	return types.ErrCodeValidationMissingField
}

func describeFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "plantier":
		return "must be a known plan"
	case "purchasable":
		return "must be a purchasable plan"
	default:
		return fmt.Sprintf("failed the %s rule", fe.Tag())
	}
}
