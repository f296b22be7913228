// Package settle provides an order financial reconciliation engine for
// health insurance enrollment orders.
//
// Settle is designed as a library, not a service. Import it directly into
// your Go application, or mount the HTTP handlers in package api. It provides:
//
//   - Priced orders with line items, tax, discounts and promo codes
//   - An append-only payment ledger with partial payments and refunds
//   - Gateway timeouts recorded as failures and reconciled before retry
//   - Frozen invoice snapshots reconciled against the ledger
//   - Per-order serialisation, in process or across processes via Redis
//   - Plugin hooks for auditing, metrics and event publishing
//
// # Quick Start
//
//	import (
//	    "github.com/xraph/settle"
//	    "github.com/xraph/settle/store/postgres"
//	)
//
//	s := postgres.New(db)
//	engine := settle.New(s, settle.WithGateway(gw))
//	if err := engine.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer engine.Stop(ctx)
//
// # Core Concepts
//
// Orders are built as drafts and then submitted:
//
//	o, err := engine.CreateOrder(ctx, settle.NewOrder{
//	    CustomerID: "cust_123",
//	    Items: []settle.OrderItem{
//	        {PlanID: "silver-ppo", Quantity: 1, UnitPrice: settle.USD(45000)},
//	    },
//	})
//	o, err = engine.SubmitOrder(ctx, o.ID)
//
// Payments charge the balance due through the configured gateway. A declined
// charge returns a Failed attempt, not an error:
//
//	a, err := engine.RecordPayment(ctx, o.ID, settle.PaymentRequest{
//	    Amount: settle.USD(45000),
//	    Method: payment.MethodCreditCard,
//	})
//	if a.Status == payment.StatusFailed {
//	    a, err = engine.RetryPayment(ctx, a.ID, settle.RetryRequest{})
//	}
//
// The amount paid is never stored on the order. It is always derived from the
// ledger: completed attempts minus their refunds.
//
// # Money
//
// All monetary calculations use integer arithmetic in the smallest currency
// unit (cents for USD). Percentages are computed with shopspring/decimal and
// rounded half-up exactly once.
//
// # TypeID
//
// All entities use TypeID for globally unique, type-safe identifiers:
//
//	ord_01h2xcejqtf2nbrexx3vqjhp41  // Order ID
//	pay_01h2xcejqtf2nbrexx3vqjhp41  // Payment attempt ID
//	inv_01h455vb4pex5vsknk084sn02q  // Invoice ID
//
// Human-facing document numbers such as ORD-20260210-QJHP41 are derived from
// the creation date and the ID suffix.
package settle
