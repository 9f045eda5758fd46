// Package validation checks request and input structs with go-playground/validator
// and converts failures into VALIDATION domain errors.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	domainerrors "github.com/listenupapp/tagnotes/internal/errors"
)

// tagTextPattern is words of letters, digits, dashes and underscores
// separated by single spaces.
var tagTextPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+( [a-zA-Z0-9_-]+)*$`)

// Validator wraps go-playground/validator with domain error conversion.
type Validator struct {
	v *validator.Validate
}

// New creates a validator that reports JSON field names and understands
// the "notblank" tag (non-empty after trimming whitespace) and the "tagtext"
// tag (a tag label made of simple words).
func New() *Validator {
	v := validator.New()

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})

	// RegisterValidation only fails for an empty tag or a baked-in name.
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		f := fl.Field()
		if f.Kind() != reflect.String {
			return !f.IsZero()
		}
		return strings.TrimSpace(f.String()) != ""
	})

	_ = v.RegisterValidation("tagtext", func(fl validator.FieldLevel) bool {
		return tagTextPattern.MatchString(fl.Field().String())
	})

	return &Validator{v: v}
}

// Validate validates a struct and returns a domain error listing every bad field.
func (v *Validator) Validate(s any) error {
	return v.Check(s, "validation failed")
}

// Check is Validate with a caller-chosen message, for inputs whose failure
// has a fixed user-facing wording.
func (v *Validator) Check(s any, msg string) error {
	if err := v.v.Struct(s); err != nil {
		return v.formatError(err, msg)
	}
	return nil
}

func (v *Validator) formatError(err error, msg string) error {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err
	}

	fieldErrors := make(map[string]string, len(validationErrs))
	names := make([]string, 0, len(validationErrs))
	for _, e := range validationErrs {
		fieldErrors[e.Field()] = friendlyMessage(e)
		names = append(names, e.Field())
	}

	return domainerrors.ValidationWithDetails(msg, fieldErrors).
		WithCause(fmt.Errorf("invalid fields: %s", strings.Join(names, ", ")))
}

func friendlyMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required", "notblank":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return fmt.Sprintf("must be at least %s characters", e.Param())
	case "max":
		return fmt.Sprintf("must not exceed %s characters", e.Param())
	case "tagtext":
		return "must be letters, digits, dashes or underscores"
	case "url":
		return "must be a valid URL"
	case "oneof":
		return "must be one of: " + e.Param()
	case "gte":
		return "must be greater than or equal to " + e.Param()
	case "gt":
		return "must be greater than " + e.Param()
	default:
		return "is invalid"
	}
}
