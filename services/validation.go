package services

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(jsonFieldName)
	return v
}

// Validator exposes the shared instance so request DTOs are checked with the
// same rules and field names as service inputs.
func Validator() *validator.Validate {
	return validate
}

// ValidateStruct runs struct-tag validation and converts failures into a
// *ValidationError.
func ValidateStruct(obj any) error {
	err := validate.Struct(obj)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	verr := &ValidationError{}
	for _, fe := range fieldErrs {
		verr.Add(fe.Field(), fe.Tag(), fieldErrorMessage(fe))
	}
	return verr
}

func fieldErrorMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required"
	case "email":
		return "Invalid email format"
	case "min":
		return "Value is too short (minimum " + fe.Param() + ")"
	case "max":
		return "Value is too long (maximum " + fe.Param() + ")"
	case "gt":
		return "Value must be greater than " + fe.Param()
	case "gte":
		return "Value must be greater than or equal to " + fe.Param()
	case "oneof":
		return "Value must be one of: " + fe.Param()
	default:
		return "Invalid value"
	}
}

func jsonFieldName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	if name == "-" || name == "" {
		return fld.Name
	}
	return name
}

// checkMoney validates a monetary amount: it must be positive (or
// non-negative when allowZero) and fit decimal(15,2).
func checkMoney(verr *ValidationError, field string, amount decimal.Decimal, allowZero bool) {
	switch {
	case amount.IsNegative():
		verr.Add(field, "gte", "Value must not be negative")
		return
	case amount.IsZero() && !allowZero:
		verr.Add(field, "gt", "Value must be greater than 0")
		return
	}
	if amount.Exponent() < -2 && !amount.Equal(amount.Round(2)) {
		verr.Add(field, "decimal", "Ensure that there are no more than 2 decimal places")
	}
	if amount.Abs().GreaterThanOrEqual(maxMoney) {
		verr.Add(field, "max", "Ensure that there are no more than 15 digits in total")
	}
}

// decimal(15,2) holds at most 13 integer digits.
var maxMoney = decimal.New(1, 13)

func oneOf(value string, allowed []string) bool {
	for _, a := range allowed {
		if value == a {
			return true
		}
	}
	return false
}
