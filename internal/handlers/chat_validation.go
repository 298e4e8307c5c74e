package handlers

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var requestValidator = newRequestValidator()

func newRequestValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateRequest returns the first violation as a client-facing message, or
// an empty string when req is valid.
func validateRequest(req any) string {
	err := requestValidator.Struct(req)
	if err == nil {
		return ""
	}

	var violations validator.ValidationErrors
	if !errors.As(err, &violations) || len(violations) == 0 {
		return "invalid request"
	}

	violation := violations[0]
	switch violation.Tag() {
	case "required":
		return violation.Field() + " is required"
	case "gt":
		return violation.Field() + " must be greater than " + violation.Param()
	default:
		return violation.Field() + " is invalid"
	}
}
