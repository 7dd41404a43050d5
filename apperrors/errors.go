package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// Sentinel errors for the cart/order core. Services wrap these with
// fmt.Errorf("%w: ...") so callers can match with errors.Is.
var (
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrInvalidState     = errors.New("invalid state")
	ErrNotFound         = errors.New("resource not found")
	ErrPermissionDenied = errors.New("permission denied")
)

// StockShortage describes one order line that failed stock validation.
type StockShortage struct {
	ProductID uuid.UUID  `json:"product_id"`
	VariantID *uuid.UUID `json:"variant_id,omitempty"`
	Name      string     `json:"name"` // product name, or variant sku
	Requested int        `json:"requested"`
	Available int        `json:"available"`
}

// InsufficientStockError carries every offending line, not just the first,
// so the client can resolve the whole cart in one round trip.
type InsufficientStockError struct {
	Lines []StockShortage
}

func (e *InsufficientStockError) Error() string {
	parts := make([]string, 0, len(e.Lines))
	for _, l := range e.Lines {
		parts = append(parts, fmt.Sprintf("%s (requested: %d, available: %d)",
			l.Name, l.Requested, l.Available))
	}
	return "insufficient stock for: " + strings.Join(parts, ", ")
}

// HTTPStatus maps a service error to a response status. Permission and
// not-found failures deliberately stay generic so callers cannot probe
// for resource existence.
func HTTPStatus(err error) int {
	var stockErr *InsufficientStockError
	switch {
	case errors.As(err, &stockErr):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrPermissionDenied):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
