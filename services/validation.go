package services

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func displayName(field string) string {
	return strings.ReplaceAll(field, "_", " ")
}

// fieldKey maps "roles[1]" to "roles".
func fieldKey(fe validator.FieldError) string {
	field := fe.Field()
	if i := strings.IndexByte(field, '['); i >= 0 {
		field = field[:i]
	}
	return field
}

func fieldMessage(fe validator.FieldError) string {
	name := displayName(fieldKey(fe))
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("The %s field is required.", name)
	case "email":
		return fmt.Sprintf("The %s must be a valid email address.", name)
	case "max":
		return fmt.Sprintf("The %s may not be greater than %s characters.", name, fe.Param())
	case "eqfield":
		return "The password confirmation does not match."
	default:
		return fmt.Sprintf("The %s field is invalid.", name)
	}
}

// validateStruct runs the tag rules of input and records failures in verr.
func validateStruct(input interface{}, verr *ValidationError) error {
	err := validate.Struct(input)
	if err == nil {
		return nil
	}
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return fmt.Errorf("validating input: %w", err)
	}
	for _, fe := range errs {
		verr.add(fieldKey(fe), fieldMessage(fe))
	}
	return nil
}
