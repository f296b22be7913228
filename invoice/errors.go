package invoice

import "errors"

var (
	ErrNotFound          = errors.New("invoice: not found")
	ErrOrderNotSubmitted = errors.New("invoice: order not submitted")
	ErrCannotCancelPaid  = errors.New("invoice: cannot cancel paid invoice")
	ErrInvalidTransition = errors.New("invoice: invalid status transition")
)
