package entity

import "errors"

var (
	// NotFound class
	ErrEventNotFound      = errors.New("event not found")
	ErrSectionNotFound    = errors.New("section not found")
	ErrTicketTypeNotFound = errors.New("ticket type not found")
	ErrSeatNotFound       = errors.New("seat not found")
	ErrPurchaseNotFound   = errors.New("purchase not found")
	ErrTicketNotFound     = errors.New("ticket not found")

	// Conflict class
	ErrSeatUnavailable  = errors.New("seat is not available")
	ErrNotEnoughTickets = errors.New("not enough tickets available")

	// InvalidRequest class
	ErrSectionNotAllowed  = errors.New("seat section not allowed for ticket type")
	ErrInvalidRequest     = errors.New("invalid request")
	ErrPurchaseNotPending = errors.New("purchase is not pending")
	ErrTicketNotPending   = errors.New("ticket is not pending")
	ErrPurchaseNotExpired = errors.New("purchase has not expired yet")
	ErrDuplicateSeat      = errors.New("duplicate seat in request")
)

// Stable error codes consumed by API clients. Clients branch on these
// instead of matching message text.
const (
	CodeNotFound       = "not_found"
	CodeConflict       = "conflict"
	CodeInvalidRequest = "invalid_request"
	CodeStorageFailure = "storage_failure"
)

// Code maps an error to its stable taxonomy code. Anything outside the
// known domain errors is treated as a storage failure.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrEventNotFound),
		errors.Is(err, ErrSectionNotFound),
		errors.Is(err, ErrTicketTypeNotFound),
		errors.Is(err, ErrSeatNotFound),
		errors.Is(err, ErrPurchaseNotFound),
		errors.Is(err, ErrTicketNotFound):
		return CodeNotFound
	case errors.Is(err, ErrSeatUnavailable),
		errors.Is(err, ErrNotEnoughTickets):
		return CodeConflict
	case errors.Is(err, ErrSectionNotAllowed),
		errors.Is(err, ErrInvalidRequest),
		errors.Is(err, ErrPurchaseNotPending),
		errors.Is(err, ErrTicketNotPending),
		errors.Is(err, ErrPurchaseNotExpired),
		errors.Is(err, ErrDuplicateSeat):
		return CodeInvalidRequest
	default:
		return CodeStorageFailure
	}
}
