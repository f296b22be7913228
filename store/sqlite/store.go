package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/sqlitedriver"
	"github.com/xraph/grove/migrate"

	"github.com/xraph/settle/id"
	"github.com/xraph/settle/invoice"
	"github.com/xraph/settle/order"
	"github.com/xraph/settle/payment"
	"github.com/xraph/settle/store"
)

// compile-time interface check
var _ store.Store = (*Store)(nil)

// Store implements store.Store using SQLite via Grove ORM.
type Store struct {
	db  *grove.DB
	sdb *sqlitedriver.SqliteDB
}

// New creates a new SQLite store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		sdb: sqlitedriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.sdb)
	if err != nil {
		return fmt.Errorf("settle/sqlite: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("settle/sqlite: migration failed: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Order Store ====================

func (s *Store) CreateOrder(ctx context.Context, o *order.Order) error {
	m, err := toOrderModel(o)
	if err != nil {
		return err
	}
	if _, err := s.sdb.NewInsert(m).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: order %s", store.ErrAlreadyExists, o.ID)
		}
		return fmt.Errorf("settle/sqlite: create order: %w", err)
	}
	return nil
}

func (s *Store) GetOrder(ctx context.Context, orderID id.OrderID) (*order.Order, error) {
	m := new(orderModel)
	err := s.sdb.NewSelect(m).
		Where("id = ?", orderID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("%w: %s", order.ErrNotFound, orderID)
		}
		return nil, fmt.Errorf("settle/sqlite: get order: %w", err)
	}
	return fromOrderModel(m)
}

// UpdateOrder writes the mutable columns only when the stored version still
// matches o.Version.
func (s *Store) UpdateOrder(ctx context.Context, o *order.Order) error {
	m, err := toOrderModel(o)
	if err != nil {
		return err
	}
	q := s.sdb.NewUpdate((*orderModel)(nil))
	set := func(col string, v any) {
		q = q.Set(col+" = ?", v)
	}
	set("items", m.Items)
	set("subtotal_amount", m.Subtotal)
	set("tax_amount", m.TaxAmount)
	set("discount_amount", m.DiscountAmount)
	set("total_amount", m.Total)
	set("promo_code", m.PromoCode)
	set("status", m.Status)
	set("effective_date", m.EffectiveDate)
	set("expiration_date", m.ExpirationDate)
	set("submitted_at", m.SubmittedAt)
	set("completed_at", m.CompletedAt)
	set("cancelled_at", m.CancelledAt)
	set("cancellation_reason", m.CancellationReason)
	set("notes", m.Notes)
	set("metadata", m.Metadata)
	set("updated_at", m.UpdatedAt)
	set("version", o.Version+1)

	res, err := q.
		Where("id = ?", m.ID).
		Where("version = ?", o.Version).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("settle/sqlite: update order: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		if _, err := s.GetOrder(ctx, o.ID); err != nil {
			return err
		}
		return fmt.Errorf("%w: order %s at version %d", order.ErrConcurrentUpdate, o.ID, o.Version)
	}
	o.Version++
	return nil
}

func (s *Store) DeleteOrder(ctx context.Context, orderID id.OrderID) error {
	res, err := s.sdb.NewDelete((*orderModel)(nil)).
		Where("id = ?", orderID.String()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("settle/sqlite: delete order: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", order.ErrNotFound, orderID)
	}
	return nil
}

func (s *Store) ListOrders(ctx context.Context, customerID string, opts order.ListOpts) ([]*order.Order, error) {
	var models []orderModel
	q := s.sdb.NewSelect(&models)

	if customerID != "" {
		q = q.Where("customer_id = ?", customerID)
	}
	if opts.Status != "" {
		q = q.Where("status = ?", string(opts.Status))
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("created_at DESC, id DESC")

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("settle/sqlite: list orders: %w", err)
	}

	result := make([]*order.Order, len(models))
	for i := range models {
		o, err := fromOrderModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = o
	}
	return result, nil
}

// ==================== Payment Store ====================

func (s *Store) CreatePayment(ctx context.Context, a *payment.Attempt) error {
	m, err := toPaymentModel(a)
	if err != nil {
		return err
	}
	if _, err := s.sdb.NewInsert(m).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: payment %s", store.ErrAlreadyExists, a.ID)
		}
		return fmt.Errorf("settle/sqlite: create payment: %w", err)
	}
	return nil
}

func (s *Store) GetPayment(ctx context.Context, paymentID id.PaymentID) (*payment.Attempt, error) {
	m := new(paymentModel)
	err := s.sdb.NewSelect(m).
		Where("id = ?", paymentID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("%w: %s", payment.ErrNotFound, paymentID)
		}
		return nil, fmt.Errorf("settle/sqlite: get payment: %w", err)
	}
	return fromPaymentModel(m)
}

func (s *Store) UpdatePayment(ctx context.Context, a *payment.Attempt) error {
	m, err := toPaymentModel(a)
	if err != nil {
		return err
	}
	res, err := s.sdb.NewUpdate(m).WherePK().Exec(ctx)
	if err != nil {
		return fmt.Errorf("settle/sqlite: update payment: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", payment.ErrNotFound, a.ID)
	}
	return nil
}

func (s *Store) ListPayments(ctx context.Context, orderID id.OrderID) ([]*payment.Attempt, error) {
	var models []paymentModel
	err := s.sdb.NewSelect(&models).
		Where("order_id = ?", orderID.String()).
		OrderExpr("created_at ASC, id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("settle/sqlite: list payments: %w", err)
	}

	result := make([]*payment.Attempt, len(models))
	for i := range models {
		a, err := fromPaymentModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = a
	}
	return result, nil
}

// ==================== Invoice Store ====================

func (s *Store) CreateInvoice(ctx context.Context, inv *invoice.Invoice) error {
	m, err := toInvoiceModel(inv)
	if err != nil {
		return err
	}
	if _, err := s.sdb.NewInsert(m).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: invoice %s", store.ErrAlreadyExists, inv.ID)
		}
		return fmt.Errorf("settle/sqlite: create invoice: %w", err)
	}
	return nil
}

func (s *Store) GetInvoice(ctx context.Context, invID id.InvoiceID) (*invoice.Invoice, error) {
	m := new(invoiceModel)
	err := s.sdb.NewSelect(m).
		Where("id = ?", invID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("%w: %s", invoice.ErrNotFound, invID)
		}
		return nil, fmt.Errorf("settle/sqlite: get invoice: %w", err)
	}
	return fromInvoiceModel(m)
}

func (s *Store) UpdateInvoice(ctx context.Context, inv *invoice.Invoice) error {
	m, err := toInvoiceModel(inv)
	if err != nil {
		return err
	}
	res, err := s.sdb.NewUpdate(m).WherePK().Exec(ctx)
	if err != nil {
		return fmt.Errorf("settle/sqlite: update invoice: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", invoice.ErrNotFound, inv.ID)
	}
	return nil
}

func (s *Store) ListInvoices(ctx context.Context, orderID id.OrderID) ([]*invoice.Invoice, error) {
	var models []invoiceModel
	err := s.sdb.NewSelect(&models).
		Where("order_id = ?", orderID.String()).
		OrderExpr("created_at ASC, id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("settle/sqlite: list invoices: %w", err)
	}

	result := make([]*invoice.Invoice, len(models))
	for i := range models {
		inv, err := fromInvoiceModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = inv
	}
	return result, nil
}

// ==================== Helpers ====================

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// isUniqueViolation matches SQLite's constraint message without importing
// the driver's error type.
func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
