package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

var (
	// ErrOrderNotFound возвращается, если заказ не найден в хранилище.
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderExists возвращается при попытке вставить заказ с уже занятым ID.
	ErrOrderExists = errors.New("order already exists")
	// ErrValidation — базовая ошибка для нарушений правил одного заказа или критериев поиска.
	ErrValidation = errors.New("validation failed")
	// ErrBatchValidation — базовая ошибка для накопленных нарушений пакетного upsert.
	ErrBatchValidation = errors.New("batch validation failed")
	// ErrInvalidSeedCount — некорректное количество записей для генерации.
	ErrInvalidSeedCount = errors.New("seed count must be between 1 and 1000000")
	// ErrMalformedInput — входные данные не удалось разобрать (например, некорректный JSON).
	ErrMalformedInput = errors.New("malformed input")
	// ErrStoreNotInitialized — хранилище не инициализировано.
	ErrStoreNotInitialized = errors.New("order store is not initialized")
)

// Violation описывает нарушение одного правила для конкретного поля.
type Violation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v Violation) String() string {
	return v.Field + ": " + v.Message
}

// ValidationError возвращается до любых изменений в хранилище и содержит все нарушения, а не только первое.
type ValidationError struct {
	Violations []Violation
}

// NewValidationError оборачивает список нарушений в ошибку; для пустого списка возвращает nil.
func NewValidationError(violations []Violation) error {
	if len(violations) == 0 {
		return nil
	}
	return &ValidationError{Violations: violations}
}

func (e *ValidationError) Error() string {
	return ErrValidation.Error() + ": " + joinViolations(e.Violations)
}

// Is позволяет сопоставлять ошибку с ErrValidation через errors.Is.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// RecordFailure — нарушения одной записи из входного потока пакетного upsert.
type RecordFailure struct {
	// Index — порядковый номер записи во входном потоке (с нуля).
	Index      int         `json:"index"`
	OrderID    uuid.UUID   `json:"order_id,omitempty"`
	Violations []Violation `json:"violations"`
}

// BatchValidationError содержит все отклонённые записи, накопленные к моменту прерывания.
type BatchValidationError struct {
	Failures []RecordFailure
}

func (e *BatchValidationError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("record %d: %s", f.Index, joinViolations(f.Violations)))
	}
	return fmt.Sprintf("%s: %d rejected record(s): %s", ErrBatchValidation.Error(), len(e.Failures), strings.Join(parts, "; "))
}

// Is позволяет сопоставлять ошибку с ErrBatchValidation через errors.Is.
func (e *BatchValidationError) Is(target error) bool {
	return target == ErrBatchValidation
}

// Violations возвращает плоский список нарушений всех записей.
func (e *BatchValidationError) Violations() []Violation {
	var out []Violation
	for _, f := range e.Failures {
		for _, v := range f.Violations {
			out = append(out, Violation{
				Field:   fmt.Sprintf("[%d].%s", f.Index, v.Field),
				Message: v.Message,
			})
		}
	}
	return out
}

// IsNotFound проверяет, означает ли ошибка отсутствие заказа.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrOrderNotFound)
}

// AsViolations извлекает нарушения из ValidationError или BatchValidationError.
func AsViolations(err error) ([]Violation, bool) {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr.Violations, true
	}
	var berr *BatchValidationError
	if errors.As(err, &berr) {
		return berr.Violations(), true
	}
	return nil, false
}

func joinViolations(violations []Violation) string {
	builder := strings.Builder{}
	for i, v := range violations {
		builder.WriteString(v.String())
		if i < len(violations)-1 {
			builder.WriteString("; ")
		}
	}
	return builder.String()
}
