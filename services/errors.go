package services

import "fmt"

// ValidationError signale une entree invalide (montant negatif, cle manquante).
// Mappe sur un 400 par les controllers.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func NewValidationError(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// NotFoundError signale une ressource inconnue ou hors tenant. Mappe sur 404.
type NotFoundError struct {
	Resource string
	ID       interface{}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %v not found", e.Resource, e.ID)
}

// IllegalTransitionError is raised when a payment transition falls outside the
// legal graph. Callers can tell "already terminal, ignore" apart from a
// programming bug; controllers map it to 400 and it is logged as a correctness
// signal.
type IllegalTransitionError struct {
	From  string
	Event string
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("illegal payment transition: %s on status %s", e.Event, e.From)
}

// ProviderError carries a normalized gateway failure. It never escapes as an
// unhandled error: the payment lands on FAILED with the code/message recorded.
type ProviderError struct {
	Provider string
	Code     string
	Message  string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s: %s (%s)", e.Provider, e.Message, e.Code)
}
