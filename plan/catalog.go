package plan

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var (
	ErrNotFound = errors.New("plan: not found")
	ErrInactive = errors.New("plan: not available")
)

// Catalog looks up plan prices.
type Catalog interface {
	Price(ctx context.Context, planID string) (*Plan, error)
}

// CatalogFunc adapts a function to Catalog.
type CatalogFunc func(ctx context.Context, planID string) (*Plan, error)

// Price implements Catalog.
func (f CatalogFunc) Price(ctx context.Context, planID string) (*Plan, error) { return f(ctx, planID) }

// StaticCatalog is an in-memory Catalog.
type StaticCatalog struct {
	mu    sync.RWMutex
	plans map[string]Plan
}

// NewStaticCatalog returns a catalog holding plans.
func NewStaticCatalog(plans ...Plan) *StaticCatalog {
	c := &StaticCatalog{plans: make(map[string]Plan, len(plans))}
	for _, p := range plans {
		c.Put(p)
	}
	return c
}

// Put adds or replaces a plan.
func (c *StaticCatalog) Put(p Plan) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.plans[p.ID] = p
}

// Price implements Catalog. Inactive plans cannot be priced.
func (c *StaticCatalog) Price(_ context.Context, planID string) (*Plan, error) {
	c.mu.RLock()
	p, ok := c.plans[planID]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, planID)
	}
	if !p.Active {
		return nil, fmt.Errorf("%w: %s", ErrInactive, planID)
	}
	return &p, nil
}
