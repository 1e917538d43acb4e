// Package validation содержит проверку входных данных до обращения к хранилищу.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// В ошибках поле называется так же, как в JSON.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})

	// Денежные суммы проверяются по строковому представлению decimal.
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			return d.String()
		}
		return nil
	}, decimal.Decimal{})

	_ = v.RegisterValidation("client_class", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return s == "legal" || s == "individual"
	})
	_ = v.RegisterValidation("decimal_gte0", func(fl validator.FieldLevel) bool {
		d, err := decimal.NewFromString(fl.Field().String())
		return err == nil && !d.IsNegative()
	})
	_ = v.RegisterValidation("decimal_gt0", func(fl validator.FieldLevel) bool {
		d, err := decimal.NewFromString(fl.Field().String())
		return err == nil && d.IsPositive()
	})
	return v
}

// FieldError описывает ошибку одного поля.
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
}

// Error описывает ошибку валидации входных данных.
type Error struct {
	Fields []FieldError
}

func (e *Error) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Rule)
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

// New создаёт ошибку валидации для одного поля.
func New(field, rule string) *Error {
	return &Error{Fields: []FieldError{{Field: field, Rule: rule}}}
}

// Struct проверяет структуру по тегам validate и возвращает *Error при нарушениях.
func Struct(s any) error {
	return convert(validate.Struct(s), "")
}

// Var проверяет одиночное значение по тегу; field задаёт имя поля в ошибке.
func Var(field string, value any, tag string) error {
	return convert(validate.Var(value, tag), field)
}

func convert(err error, field string) error {
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate: %w", err)
	}

	res := &Error{Fields: make([]FieldError, 0, len(verrs))}
	for _, fe := range verrs {
		name := fe.Field()
		if field != "" {
			name = field
		}
		res.Fields = append(res.Fields, FieldError{Field: name, Rule: fe.Tag()})
	}
	return res
}

// AsError извлекает ошибку валидации из цепочки err.
func AsError(err error) (*Error, bool) {
	var verr *Error
	if errors.As(err, &verr) {
		return verr, true
	}
	return nil, false
}
