package cassa

import (
	"errors"
	"net/http"
)

type Category string

const (
	CategoryValidation      Category = "validation"
	CategoryRateLimited     Category = "rate_limited"
	CategoryDuplicate       Category = "duplicate"
	CategoryCapacity        Category = "capacity"
	CategoryStoreClosed     Category = "store_closed"
	CategoryEmailUnverified Category = "email_unverified"
)

// HTTPStatus maps a rejection category to the status a transport should answer with.
func (c Category) HTTPStatus() int {
	switch c {
	case CategoryRateLimited, CategoryDuplicate:
		return http.StatusTooManyRequests
	case CategoryCapacity:
		return http.StatusServiceUnavailable
	case CategoryEmailUnverified:
		return http.StatusForbidden
	default:
		return http.StatusBadRequest
	}
}

// Rejection is a policy refusal of an order. Its Reason is meant for the
// customer and is surfaced verbatim.
type Rejection struct {
	Category         Category
	Reason           string
	InvalidItems     []string
	UnavailableItems []string
	StoreStatus      *StoreStatus
}

func (r *Rejection) Error() string {
	return string(r.Category) + ": " + r.Reason
}

func reject(category Category, reason string) *Rejection {
	return &Rejection{Category: category, Reason: reason}
}

// AsRejection reports whether err carries a Rejection.
func AsRejection(err error) (*Rejection, bool) {
	var rej *Rejection
	if errors.As(err, &rej) {
		return rej, true
	}
	return nil, false
}
