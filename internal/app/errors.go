package app

import (
	"errors"
	"fmt"
	"net/http"

	"flamekeeper/bot/internal/guardians"
)

type DomainError struct {
	Status  int
	Message string
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

func domainError(status int, message string) *DomainError {
	return &DomainError{Status: status, Message: message}
}

// mapError converts a service error into an HTTP status and a client-safe
// message. Backend details never leak to the caller.
func mapError(err error, fallback string) (int, string) {
	var domain *DomainError
	if errors.As(err, &domain) {
		return domain.Status, domain.Message
	}
	if errors.Is(err, guardians.ErrNotFound) {
		return http.StatusNotFound, "not pending"
	}
	return http.StatusInternalServerError, fallback
}
