// Package validation checks request payloads with go-playground/validator
// struct tags and reports failures as apperr validation errors.
package validation

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/clinic/clinic/internal/platform/apperr"
)

var validate = newValidate()

func newValidate() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			name = strings.SplitN(f.Tag.Get("form"), ",", 2)[0]
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// Struct validates s against its `validate` tags. The first failing field
// is reported.
func Struct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return apperr.Validation("invalid request: %v", err)
	}
	return fieldError(verrs[0])
}

func fieldError(fe validator.FieldError) *apperr.Error {
	field := fe.Field()
	var e *apperr.Error
	switch fe.Tag() {
	case "required", "required_if", "required_without":
		return apperr.Required(field)
	case "oneof":
		e = apperr.Validation("%s must be one of [%s]", field, fe.Param())
	case "min":
		if fe.Kind() == reflect.Slice {
			e = apperr.Validation("%s must not be empty", field)
		} else {
			e = apperr.Validation("%s must be at least %s", field, fe.Param())
		}
	case "max":
		if fe.Kind() == reflect.String {
			e = apperr.Validation("%s must be at most %s characters", field, fe.Param())
		} else {
			e = apperr.Validation("%s must be at most %s", field, fe.Param())
		}
	case "unique":
		e = apperr.Validation("%s must not contain duplicates", field)
	case "gt":
		e = apperr.Validation("%s must be greater than %s", field, fe.Param())
	case "email":
		e = apperr.Validation("%s must be a valid email address", field)
	default:
		e = apperr.Validation("%s is invalid (%s)", field, fe.Tag())
	}
	return e.WithDetail("field", field)
}

// Bind decodes the request into dst, mapping decode failures to a
// validation error instead of echo's bare 400.
func Bind(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		var he *echo.HTTPError
		if errors.As(err, &he) {
			return apperr.Validation("invalid request body: %v", he.Message)
		}
		return apperr.Validation("invalid request body: %v", err)
	}
	return nil
}

// Duplicate returns the first repeated value in ids, if any.
func Duplicate(ids []string) (string, bool) {
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			return id, true
		}
		seen[id] = struct{}{}
	}
	return "", false
}

// Blank reports whether s is empty after trimming.
func Blank(s string) bool {
	return strings.TrimSpace(s) == ""
}
