// Package customer is the customer directory collaborator consulted when an
// order is created.
package customer

import (
	"context"
	"errors"
	"sync"
)

// ErrNotFound is returned by callers when Exists reports false.
var ErrNotFound = errors.New("customer: not found")

// Directory answers whether a customer exists.
type Directory interface {
	Exists(ctx context.Context, customerID string) (bool, error)
}

// DirectoryFunc adapts a function to Directory.
type DirectoryFunc func(ctx context.Context, customerID string) (bool, error)

// Exists implements Directory.
func (f DirectoryFunc) Exists(ctx context.Context, customerID string) (bool, error) {
	return f(ctx, customerID)
}

// AllowAll accepts every non-empty customer id.
var AllowAll Directory = DirectoryFunc(func(_ context.Context, customerID string) (bool, error) {
	return customerID != "", nil
})

// StaticDirectory is an in-memory Directory.
type StaticDirectory struct {
	mu  sync.RWMutex
	ids map[string]struct{}
}

// NewStaticDirectory returns a directory containing ids.
func NewStaticDirectory(ids ...string) *StaticDirectory {
	d := &StaticDirectory{ids: make(map[string]struct{}, len(ids))}
	for _, id := range ids {
		d.ids[id] = struct{}{}
	}
	return d
}

// Add registers a customer id.
func (d *StaticDirectory) Add(customerID string) {
	d.mu.Lock()
	d.ids[customerID] = struct{}{}
	d.mu.Unlock()
}

// Exists implements Directory.
func (d *StaticDirectory) Exists(_ context.Context, customerID string) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.ids[customerID]
	return ok, nil
}
