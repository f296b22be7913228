package settle

import (
	"github.com/xraph/settle/invoice"
	"github.com/xraph/settle/order"
	"github.com/xraph/settle/payment"
	"github.com/xraph/settle/types"
)

// Re-export common types for convenience so users don't have to import the
// subpackages for everyday use.

// Money is re-exported from types package.
type Money = types.Money

// Entity is re-exported from types package.
type Entity = types.Entity

type (
	Order          = order.Order
	OrderItem      = order.Item
	OrderStatus    = order.Status
	PaymentAttempt = payment.Attempt
	Refund         = payment.Refund
	Instrument     = payment.Instrument
	Invoice        = invoice.Invoice
)

// Re-export Money constructors
var (
	USD        = types.USD
	EUR        = types.EUR
	GBP        = types.GBP
	JPY        = types.JPY
	Zero       = types.Zero
	Sum        = types.Sum
	ParseMoney = types.ParseMoney
)
