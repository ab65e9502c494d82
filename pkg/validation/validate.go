// Package validation wraps go-playground/validator with the rules fern's inputs use.
package validation

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/go-playground/validator/v10"
)

var tableNamePattern = regexp.MustCompile(`^[a-z0-9_]+$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// table names end up in URL paths
	_ = v.RegisterValidation("table_name", func(fl validator.FieldLevel) bool {
		return tableNamePattern.MatchString(fl.Field().String())
	})

	return v
}

// Validate checks the struct tags of value
func Validate[T any](value T) (T, error) {
	if err := validate.Struct(value); err != nil {
		return value, ValidationErrorToString(value, err)
	}

	return value, nil
}

// ValidateValue checks a single value against a tag such as "required,table_name"
func ValidateValue(value any, tag string) error {
	err := validate.Var(value, tag)
	if err != nil {
		return ValidationErrorToString(value, err)
	}
	return nil
}

// ValidateHTTP is Validate with the failure returned as a 400 HTTP error
func ValidateHTTP[T any](value T) (T, error) {
	value, err := Validate(value)
	if err != nil {
		return value, httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return value, nil
}

func ValidationErrorToString(input any, err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("failed %T validation for field '%s': rule '%s' expected '%s', got '%v'", input, fe.StructField(), fe.Tag(), fe.Param(), fe.Value()))
	}
	return errors.New(strings.Join(msgs, "; "))
}
