package orders

import (
	"github.com/goliatone/go-errors"

	orderfsm "github.com/goliatone/go-orderfsm"
)

const (
	ErrCodeOrderNotFound = "ORDER_NOT_FOUND"
	ErrCodeOrderExists   = "ORDER_EXISTS"
)

var (
	ErrOrderNotFound = errors.New("order not found", errors.CategoryNotFound).
				WithTextCode(ErrCodeOrderNotFound)
	ErrOrderExists = errors.New("order already exists", errors.CategoryConflict).
			WithTextCode(ErrCodeOrderExists)
)

// IsOrderNotFound reports whether err names an unknown order.
func IsOrderNotFound(err error) bool {
	return orderfsm.HasErrorCode(err, ErrCodeOrderNotFound)
}

// IsOrderExists reports whether err names a duplicate order id.
func IsOrderExists(err error) bool {
	return orderfsm.HasErrorCode(err, ErrCodeOrderExists)
}

func orderNotFound(orderID string) error {
	return orderfsm.CloneError(ErrOrderNotFound, "order "+orderID+" not found", nil, map[string]any{
		"order_id": orderID,
	})
}

func orderExists(orderID string, source error) error {
	return orderfsm.CloneError(ErrOrderExists, "order "+orderID+" already exists", source, map[string]any{
		"order_id": orderID,
	})
}
