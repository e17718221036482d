package recurring

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound: шаблон или предстоящий экземпляр не найден.
	ErrNotFound = errors.New("not found")
	// ErrValidation совпадает с любым *ValidationError через errors.Is.
	ErrValidation = errors.New("validation failed")
)

// ValidationError сообщает о некорректном поле шаблона. Возникает до
// генератора и хранилища.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// StoreError оборачивает ошибку хранилища. Материализация идемпотентна,
// повтор того же вызова безопасен.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// IsRetryable сообщает, стоит ли повторить вызов после err.
func IsRetryable(err error) bool {
	var storeErr *StoreError
	return errors.As(err, &storeErr)
}
