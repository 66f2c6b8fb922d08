package handler

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/iliyamo/natours-api/internal/validate"
)

// RequestValidator validates request DTOs through their `validate` tags and
// reports failures as validate.Errors.
type RequestValidator struct {
	v *validator.Validate
}

func NewRequestValidator() *RequestValidator {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &RequestValidator{v: v}
}

func (rv *RequestValidator) Validate(i any) error {
	err := rv.v.Struct(i)
	var fe validator.ValidationErrors
	if !errors.As(err, &fe) {
		return err
	}
	out := make(validate.Errors, 0, len(fe))
	for _, f := range fe {
		out = append(out, validate.Violation{Field: f.Field(), Message: message(f)})
	}
	return out
}

func message(f validator.FieldError) string {
	field := f.Field()
	switch f.Tag() {
	case "required":
		return "Please provide " + field
	case "email":
		return "Please provide a valid email"
	case "min":
		return field + " must have at least " + f.Param() + " characters"
	case "eqfield":
		return "Passwords are not the same!"
	}
	return field + " is invalid"
}
