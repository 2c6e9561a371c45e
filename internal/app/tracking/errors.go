package tracking

import "errors"

var (
	ErrOrderNotFound        = errors.New("order not found")
	ErrDuplicateOrderNumber = errors.New("order number already exists")
	ErrForbidden            = errors.New("operator is not allowed to change orders")
	ErrOrderBusy            = errors.New("order is being changed by another operator")
	ErrConfirmationMismatch = errors.New("confirmation does not match the order number")
)
