package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	"github.com/xraph/settle/id"
	"github.com/xraph/settle/invoice"
	"github.com/xraph/settle/order"
	"github.com/xraph/settle/payment"
	"github.com/xraph/settle/store"
)

// Collection name constants.
const (
	colOrders   = "settle_orders"
	colPayments = "settle_payments"
	colInvoices = "settle_invoices"
)

// compile-time interface check
var _ store.Store = (*Store)(nil)

// Store implements store.Store using MongoDB via Grove ORM.
type Store struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		mdb: mongodriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates indexes for all settle collections.
func (s *Store) Migrate(ctx context.Context) error {
	for col, models := range migrationIndexes() {
		if len(models) == 0 {
			continue
		}
		if _, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("settle/mongo: migrate %s indexes: %w", col, err)
		}
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
	if _, err := s.mdb.NewInsert(toOrderModel(o)).Exec(ctx); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: order %s", store.ErrAlreadyExists, o.ID)
		}
		return fmt.Errorf("settle/mongo: create order: %w", err)
	}
	return nil
}

func (s *Store) GetOrder(ctx context.Context, orderID id.OrderID) (*order.Order, error) {
	var m orderModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": orderID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, fmt.Errorf("%w: %s", order.ErrNotFound, orderID)
		}
		return nil, fmt.Errorf("settle/mongo: get order: %w", err)
	}
	return fromOrderModel(&m)
}

// UpdateOrder matches on both id and version so a stale writer never
// overwrites a newer document.
func (s *Store) UpdateOrder(ctx context.Context, o *order.Order) error {
	m := toOrderModel(o)
	res, err := s.mdb.NewUpdate((*orderModel)(nil)).
		Filter(bson.M{"_id": m.ID, "version": o.Version}).
		Set("items", m.Items).
		Set("subtotal_cents", m.SubtotalCents).
		Set("tax_cents", m.TaxCents).
		Set("discount_cents", m.DiscountCents).
		Set("total_cents", m.TotalCents).
		Set("promo_code", m.PromoCode).
		Set("status", m.Status).
		Set("effective_date", m.EffectiveDate).
		Set("expiration_date", m.ExpirationDate).
		Set("submitted_at", m.SubmittedAt).
		Set("completed_at", m.CompletedAt).
		Set("cancelled_at", m.CancelledAt).
		Set("cancellation_reason", m.CancellationReason).
		Set("notes", m.Notes).
		Set("metadata", m.Metadata).
		Set("updated_at", m.UpdatedAt).
		Set("version", o.Version+1).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("settle/mongo: update order: %w", err)
	}
	if res.MatchedCount() == 0 {
		if _, err := s.GetOrder(ctx, o.ID); err != nil {
			return err
		}
		return fmt.Errorf("%w: order %s at version %d", order.ErrConcurrentUpdate, o.ID, o.Version)
	}
	o.Version++
	return nil
}

func (s *Store) DeleteOrder(ctx context.Context, orderID id.OrderID) error {
	res, err := s.mdb.NewDelete((*orderModel)(nil)).
		Filter(bson.M{"_id": orderID.String()}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("settle/mongo: delete order: %w", err)
	}
	if res.DeletedCount() == 0 {
		return fmt.Errorf("%w: %s", order.ErrNotFound, orderID)
	}
	return nil
}

func (s *Store) ListOrders(ctx context.Context, customerID string, opts order.ListOpts) ([]*order.Order, error) {
	var models []orderModel
	filter := bson.M{}
	if customerID != "" {
		filter["customer_id"] = customerID
	}
	if opts.Status != "" {
		filter["status"] = string(opts.Status)
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("settle/mongo: list orders: %w", err)
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
	if _, err := s.mdb.NewInsert(toPaymentModel(a)).Exec(ctx); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: payment %s", store.ErrAlreadyExists, a.ID)
		}
		return fmt.Errorf("settle/mongo: create payment: %w", err)
	}
	return nil
}

func (s *Store) GetPayment(ctx context.Context, paymentID id.PaymentID) (*payment.Attempt, error) {
	var m paymentModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": paymentID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, fmt.Errorf("%w: %s", payment.ErrNotFound, paymentID)
		}
		return nil, fmt.Errorf("settle/mongo: get payment: %w", err)
	}
	return fromPaymentModel(&m)
}

func (s *Store) UpdatePayment(ctx context.Context, a *payment.Attempt) error {
	m := toPaymentModel(a)
	res, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"_id": m.ID}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("settle/mongo: update payment: %w", err)
	}
	if res.MatchedCount() == 0 {
		return fmt.Errorf("%w: %s", payment.ErrNotFound, a.ID)
	}
	return nil
}

func (s *Store) ListPayments(ctx context.Context, orderID id.OrderID) ([]*payment.Attempt, error) {
	var models []paymentModel
	err := s.mdb.NewFind(&models).
		Filter(bson.M{"order_id": orderID.String()}).
		Sort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("settle/mongo: list payments: %w", err)
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
	if _, err := s.mdb.NewInsert(toInvoiceModel(inv)).Exec(ctx); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: invoice %s", store.ErrAlreadyExists, inv.ID)
		}
		return fmt.Errorf("settle/mongo: create invoice: %w", err)
	}
	return nil
}

func (s *Store) GetInvoice(ctx context.Context, invID id.InvoiceID) (*invoice.Invoice, error) {
	var m invoiceModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": invID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, fmt.Errorf("%w: %s", invoice.ErrNotFound, invID)
		}
		return nil, fmt.Errorf("settle/mongo: get invoice: %w", err)
	}
	return fromInvoiceModel(&m)
}

func (s *Store) UpdateInvoice(ctx context.Context, inv *invoice.Invoice) error {
	m := toInvoiceModel(inv)
	res, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"_id": m.ID}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("settle/mongo: update invoice: %w", err)
	}
	if res.MatchedCount() == 0 {
		return fmt.Errorf("%w: %s", invoice.ErrNotFound, inv.ID)
	}
	return nil
}

func (s *Store) ListInvoices(ctx context.Context, orderID id.OrderID) ([]*invoice.Invoice, error) {
	var models []invoiceModel
	err := s.mdb.NewFind(&models).
		Filter(bson.M{"order_id": orderID.String()}).
		Sort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("settle/mongo: list invoices: %w", err)
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

// isNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for all settle collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colOrders: {
			{
				Keys:    bson.D{{Key: "number", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "customer_id", Value: 1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "customer_id", Value: 1}, {Key: "status", Value: 1}}},
		},
		colPayments: {
			{Keys: bson.D{{Key: "order_id", Value: 1}, {Key: "created_at", Value: 1}}},
			{
				Keys:    bson.D{{Key: "idempotency_key", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
		colInvoices: {
			{Keys: bson.D{{Key: "order_id", Value: 1}, {Key: "created_at", Value: 1}}},
			{
				Keys:    bson.D{{Key: "number", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
	}
}
