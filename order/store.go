package order

import (
	"context"

	"github.com/xraph/settle/id"
)

// ListOpts filters and paginates order listings.
type ListOpts struct {
	Status Status
	Limit  int
	Offset int
}

// Store persists orders together with their items.
type Store interface {
	CreateOrder(ctx context.Context, o *Order) error
	GetOrder(ctx context.Context, orderID id.OrderID) (*Order, error)
	// UpdateOrder saves o only if the stored version equals o.Version, then
	// increments o.Version. A stale version fails with ErrConcurrentUpdate.
	UpdateOrder(ctx context.Context, o *Order) error
	DeleteOrder(ctx context.Context, orderID id.OrderID) error
	ListOrders(ctx context.Context, customerID string, opts ListOpts) ([]*Order, error)
}
