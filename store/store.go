// Package store defines the aggregate persistence contract implemented by
// the memory, postgres, sqlite and mongo backends.
package store

import (
	"context"
	"errors"

	"github.com/xraph/settle/invoice"
	"github.com/xraph/settle/order"
	"github.com/xraph/settle/payment"
)

// Store persists every settle entity. Paid amounts and balances are never
// stored; they are derived from the payment rows on every read.
type Store interface {
	order.Store
	payment.Store
	invoice.Store

	// Migrate brings the schema up to date.
	Migrate(ctx context.Context) error
	// Ping checks backend connectivity.
	Ping(ctx context.Context) error
	// Close releases backend resources.
	Close() error
}

// ErrAlreadyExists is returned when creating an entity whose id is taken.
var ErrAlreadyExists = errors.New("settle/store: already exists")
