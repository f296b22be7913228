// Package memory is an in-process store.Store. Entities are cloned on the
// way in and out so callers never share state with the store.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/xraph/settle/id"
	"github.com/xraph/settle/invoice"
	"github.com/xraph/settle/order"
	"github.com/xraph/settle/payment"
	"github.com/xraph/settle/store"
)

var _ store.Store = (*Store)(nil)

type Store struct {
	mu sync.RWMutex

	orders   map[string]*order.Order
	payments map[string]*payment.Attempt
	invoices map[string]*invoice.Invoice

	// Insertion order per parent order, oldest first.
	paymentsByOrder map[string][]string
	invoicesByOrder map[string][]string
}

func New() *Store {
	return &Store{
		orders:          make(map[string]*order.Order),
		payments:        make(map[string]*payment.Attempt),
		invoices:        make(map[string]*invoice.Invoice),
		paymentsByOrder: make(map[string][]string),
		invoicesByOrder: make(map[string][]string),
	}
}

// ──────────────────────────────────────────────────
// Orders
// ──────────────────────────────────────────────────

func (s *Store) CreateOrder(_ context.Context, o *order.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := o.ID.String()
	if _, exists := s.orders[key]; exists {
		return fmt.Errorf("%w: order %s", store.ErrAlreadyExists, key)
	}
	s.orders[key] = o.Clone()
	return nil
}

func (s *Store) GetOrder(_ context.Context, orderID id.OrderID) (*order.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if o, ok := s.orders[orderID.String()]; ok {
		return o.Clone(), nil
	}
	return nil, order.ErrNotFound
}

func (s *Store) UpdateOrder(_ context.Context, o *order.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.orders[o.ID.String()]
	if !ok {
		return order.ErrNotFound
	}
	if current.Version != o.Version {
		return fmt.Errorf("%w: order %s at version %d, update from %d",
			order.ErrConcurrentUpdate, o.ID, current.Version, o.Version)
	}
	o.Version++
	s.orders[o.ID.String()] = o.Clone()
	return nil
}

func (s *Store) DeleteOrder(_ context.Context, orderID id.OrderID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := orderID.String()
	if _, ok := s.orders[key]; !ok {
		return order.ErrNotFound
	}
	delete(s.orders, key)
	return nil
}

// ListOrders returns the customer's orders newest first. An empty
// customerID lists every order.
func (s *Store) ListOrders(_ context.Context, customerID string, opts order.ListOpts) ([]*order.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*order.Order, 0)
	for _, o := range s.orders {
		if customerID != "" && o.CustomerID != customerID {
			continue
		}
		if opts.Status != "" && o.Status != opts.Status {
			continue
		}
		result = append(result, o.Clone())
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID.String() > result[j].ID.String()
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	return page(result, opts.Offset, opts.Limit), nil
}

// ──────────────────────────────────────────────────
// Payments
// ──────────────────────────────────────────────────

func (s *Store) CreatePayment(_ context.Context, a *payment.Attempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := a.ID.String()
	if _, exists := s.payments[key]; exists {
		return fmt.Errorf("%w: payment %s", store.ErrAlreadyExists, key)
	}
	s.payments[key] = a.Clone()
	s.paymentsByOrder[a.OrderID.String()] = append(s.paymentsByOrder[a.OrderID.String()], key)
	return nil
}

func (s *Store) GetPayment(_ context.Context, paymentID id.PaymentID) (*payment.Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if a, ok := s.payments[paymentID.String()]; ok {
		return a.Clone(), nil
	}
	return nil, payment.ErrNotFound
}

func (s *Store) UpdatePayment(_ context.Context, a *payment.Attempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.payments[a.ID.String()]; !ok {
		return payment.ErrNotFound
	}
	s.payments[a.ID.String()] = a.Clone()
	return nil
}

func (s *Store) ListPayments(_ context.Context, orderID id.OrderID) ([]*payment.Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := s.paymentsByOrder[orderID.String()]
	result := make([]*payment.Attempt, 0, len(keys))
	for _, k := range keys {
		result = append(result, s.payments[k].Clone())
	}
	return result, nil
}

// ──────────────────────────────────────────────────
// Invoices
// ──────────────────────────────────────────────────

func (s *Store) CreateInvoice(_ context.Context, inv *invoice.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := inv.ID.String()
	if _, exists := s.invoices[key]; exists {
		return fmt.Errorf("%w: invoice %s", store.ErrAlreadyExists, key)
	}
	s.invoices[key] = inv.Clone()
	s.invoicesByOrder[inv.OrderID.String()] = append(s.invoicesByOrder[inv.OrderID.String()], key)
	return nil
}

func (s *Store) GetInvoice(_ context.Context, invID id.InvoiceID) (*invoice.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if inv, ok := s.invoices[invID.String()]; ok {
		return inv.Clone(), nil
	}
	return nil, invoice.ErrNotFound
}

func (s *Store) UpdateInvoice(_ context.Context, inv *invoice.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.invoices[inv.ID.String()]; !ok {
		return invoice.ErrNotFound
	}
	s.invoices[inv.ID.String()] = inv.Clone()
	return nil
}

func (s *Store) ListInvoices(_ context.Context, orderID id.OrderID) ([]*invoice.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := s.invoicesByOrder[orderID.String()]
	result := make([]*invoice.Invoice, 0, len(keys))
	for _, k := range keys {
		result = append(result, s.invoices[k].Clone())
	}
	return result, nil
}

// ──────────────────────────────────────────────────
// Lifecycle
// ──────────────────────────────────────────────────

func (s *Store) Migrate(_ context.Context) error { return nil }

func (s *Store) Ping(_ context.Context) error { return nil }

func (s *Store) Close() error { return nil }

func page[T any](items []T, offset, limit int) []T {
	start := offset
	if start > len(items) {
		start = len(items)
	}
	end := start + limit
	if limit <= 0 || end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
