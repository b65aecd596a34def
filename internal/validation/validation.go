// Package validation applies the user field constraints with
// go-playground/validator and turns failures into field-level messages.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"wenlock/internal/apperrors"
)

var personNameRegex = regexp.MustCompile(`^[A-Za-zÀ-ÖØ-öø-ÿ ]+$`)

// Validator validates request payloads.
type Validator struct {
	validate *validator.Validate
}

// New creates a Validator with the custom user rules registered.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report json names so messages match the wire format.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})

	if err := v.RegisterValidation("personname", isPersonName); err != nil {
		panic(fmt.Sprintf("register personname validation: %v", err))
	}

	return &Validator{validate: v}
}

// isPersonName accepts letters (including accented Latin letters) and spaces,
// with at least one letter.
func isPersonName(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	return personNameRegex.MatchString(s) && strings.TrimSpace(s) != ""
}

// Struct validates s and returns a *apperrors.ValidationError listing every
// failed field, or nil.
func (v *Validator) Struct(s any) error {
	return v.convert(s, v.validate.Struct(s))
}

// StructExcept validates s skipping the named Go fields.
func (v *Validator) StructExcept(s any, fields ...string) error {
	return v.convert(s, v.validate.StructExcept(s, fields...))
}

func (v *Validator) convert(s any, err error) error {
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("validate %T: %w", s, err)
	}
	out := &apperrors.ValidationError{Fields: make(map[string]string, len(fieldErrs))}
	for _, fe := range fieldErrs {
		out.Fields[fe.Field()] = message(fe)
	}
	return out
}

func message(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "len":
		return fmt.Sprintf("%s must be exactly %s characters", field, fe.Param())
	case "email":
		return fmt.Sprintf("%s must be a valid email", field)
	case "personname":
		return fmt.Sprintf("%s must contain only letters and spaces", field)
	case "number":
		return fmt.Sprintf("%s must contain only digits", field)
	case "alphanum":
		return fmt.Sprintf("%s must be alphanumeric", field)
	default:
		return fmt.Sprintf("%s is invalid (%s)", field, fe.Tag())
	}
}
