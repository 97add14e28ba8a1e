// Package validation содержит чистые правила проверки заказов и критериев поиска.
// Функции не изменяют состояние и возвращают полный список нарушений.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-sql/civil"

	"github.com/vladislavdragonenkov/inventory/internal/domain"
)

const (
	tagNotBlank  = "notblank"
	tagDateRange = "daterange"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	// Даты и моменты времени проверяются как строки: пустая строка означает «не задано».
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		d, ok := field.Interface().(civil.Date)
		if !ok || !d.IsValid() || !d.After(domain.MinOrderDate) {
			return ""
		}
		return d.String()
	}, civil.Date{})
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		t, ok := field.Interface().(time.Time)
		if !ok || t.IsZero() {
			return ""
		}
		return t.Format(time.RFC3339Nano)
	}, time.Time{})

	if err := v.RegisterValidation(tagNotBlank, func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	}); err != nil {
		panic(fmt.Sprintf("register %s validation: %v", tagNotBlank, err))
	}

	v.RegisterStructValidation(func(sl validator.StructLevel) {
		criteria, ok := sl.Current().Interface().(domain.SearchCriteria)
		if !ok {
			return
		}
		from, to := criteria.OrderDateFrom, criteria.OrderDateTo
		if from != nil && to != nil && from.After(*to) {
			sl.ReportError(criteria.OrderDateFrom, "order_date_from", "OrderDateFrom", tagDateRange, "order_date_to")
		}
	}, domain.SearchCriteria{})

	return v
}

// ValidateOrder проверяет заказ по правилам полей и возвращает все нарушения.
// Пустой результат означает, что заказ корректен.
func ValidateOrder(order domain.Order) []domain.Violation {
	return toViolations(validate.Struct(order))
}

// ValidateSearch проверяет критерии постраничного поиска.
func ValidateSearch(criteria domain.SearchCriteria) []domain.Violation {
	return toViolations(validate.Struct(criteria))
}

func toViolations(err error) []domain.Violation {
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		// InvalidValidationError возможен только при ошибке программиста (nil/не структура).
		return []domain.Violation{{Field: "request", Message: err.Error()}}
	}
	out := make([]domain.Violation, 0, len(ve))
	for _, fe := range ve {
		out = append(out, domain.Violation{
			Field:   fe.Field(),
			Message: formatFieldError(fe),
		})
	}
	return out
}

func formatFieldError(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s must be set", field)
	case tagNotBlank:
		return fmt.Sprintf("%s must not be empty", field)
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at most %s characters long", field, fe.Param())
		}
		return fmt.Sprintf("%s must be less than or equal to %s", field, fe.Param())
	case "min":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case tagDateRange:
		return fmt.Sprintf("%s must be less than or equal to %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed on '%s'", field, fe.Tag())
	}
}
