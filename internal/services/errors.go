package services

import (
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/shopspring/decimal"
)

var (
	ErrValidation          = errors.New("validation failed")
	ErrNotFound            = errors.New("resource not found")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrUnauthorized        = errors.New("unauthorized")
)

// ValidationError is a malformed or rule-breaking request
type ValidationError struct {
	Message string
	Fields  map[string]string
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func newValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// NotFoundError covers both missing rows and rows owned by another user
type NotFoundError struct {
	Resource string
}

func (e *NotFoundError) Error() string { return e.Resource + " not found" }

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// InsufficientBalanceError carries the balance computed at rejection time
type InsufficientBalanceError struct {
	WalletID int64
	Balance  decimal.Decimal
	Required decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("Insufficient balance in wallet %d: available %s, required %s",
		e.WalletID, e.Balance.String(), e.Required.String())
}

func (e *InsufficientBalanceError) Is(target error) bool { return target == ErrInsufficientBalance }

// WriteServiceError converts a service error into the uniform error envelope.
// Unexpected errors become 500s; their cause is only exposed when
// exposeInternal is set.
func WriteServiceError(w http.ResponseWriter, err error, exposeInternal bool) {
	var validationErr *ValidationError

	switch {
	case errors.As(err, &validationErr):
		writeErrorResponse(w, http.StatusBadRequest, validationErr.Message, validationErr.Fields)
	case errors.Is(err, ErrNotFound):
		writeErrorResponse(w, http.StatusNotFound, err.Error(), nil)
	case errors.Is(err, ErrInsufficientBalance):
		writeErrorResponse(w, http.StatusBadRequest, err.Error(), nil)
	case errors.Is(err, ErrUnauthorized):
		writeErrorResponse(w, http.StatusUnauthorized, "Unauthorized", nil)
	default:
		log.Printf("[ERROR] Internal error: %v", err)
		var details map[string]string
		if exposeInternal {
			details = map[string]string{"cause": err.Error()}
		}
		writeErrorResponse(w, http.StatusInternalServerError, "Internal server error", details)
	}
}
