// Package validation содержит проверку входных данных HTTP API.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/marketplace-payouts/internal/model"
)

var (
	validate = newValidator()

	paymentReferencePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._/-]*$`)
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	// Денежные суммы и проценты сравниваются как числа.
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})

	_ = v.RegisterValidation("payment_reference", validatePaymentReference)

	return v
}

// FieldError описывает ошибку проверки одного поля.
type FieldError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

// Struct проверяет структуру по тегам validate. Ошибка оборачивает model.ErrInvalidInput.
func Struct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	fields := Errors(err)
	if len(fields) == 0 {
		return fmt.Errorf("%w: %v", model.ErrInvalidInput, err)
	}

	msgs := make([]string, 0, len(fields))
	for _, f := range fields {
		msgs = append(msgs, f.Message)
	}
	return fmt.Errorf("%w: %s", model.ErrInvalidInput, strings.Join(msgs, "; "))
}

// Errors раскладывает ошибку валидатора по полям.
func Errors(err error) []FieldError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}

	res := make([]FieldError, 0, len(verrs))
	for _, e := range verrs {
		res = append(res, FieldError{
			Field:   e.Field(),
			Tag:     e.Tag(),
			Message: message(e),
		})
	}
	return res
}

func message(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return e.Field() + " is required"
	case "gt":
		return e.Field() + " must be greater than " + e.Param()
	case "gte":
		return e.Field() + " must be at least " + e.Param()
	case "lte":
		return e.Field() + " must be at most " + e.Param()
	case "min":
		return e.Field() + " must have at least " + e.Param() + " elements"
	case "max":
		return e.Field() + " is too long"
	case "oneof":
		return e.Field() + " must be one of: " + e.Param()
	case "payment_reference":
		return e.Field() + " may contain only letters, digits and . _ / -"
	default:
		return e.Field() + " is invalid"
	}
}

func validatePaymentReference(fl validator.FieldLevel) bool {
	return paymentReferencePattern.MatchString(strings.TrimSpace(fl.Field().String()))
}
