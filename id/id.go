// Package id defines TypeID-based identity types for all settle entities.
//
// Every entity in settle uses a single ID struct with a prefix that identifies
// the entity type. IDs are K-sortable (UUIDv7-based), globally unique,
// and URL-safe in the format "prefix_suffix".
package id

import (
	"database/sql/driver"
	"fmt"

	"go.jetify.com/typeid/v2"
)

// Prefix identifies the entity type encoded in a TypeID.
type Prefix string

// Prefix constants for all settle entity types.
const (
	PrefixOrder     Prefix = "ord"  // Order aggregate
	PrefixOrderItem Prefix = "oitm" // Order line item
	PrefixPayment   Prefix = "pay"  // Payment attempt
	PrefixRefund    Prefix = "rfnd" // Refund against a payment attempt
	PrefixInvoice   Prefix = "inv"  // Invoice
	PrefixLineItem  Prefix = "li"   // Invoice line item
	PrefixCoupon    Prefix = "cpn"  // Promo code
)

// ID is the primary identifier type for all settle entities.
// It wraps a TypeID providing a prefix-qualified, globally unique,
// sortable, URL-safe identifier in the format "prefix_suffix".
//
//nolint:recvcheck // Value receivers for read-only methods, pointer receivers for UnmarshalText/Scan.
type ID struct {
	inner typeid.TypeID
	valid bool
}

// Nil is the zero-value ID.
var Nil ID

// New generates a new globally unique ID with the given prefix.
// It panics if prefix is not a valid TypeID prefix (programming error).
func New(prefix Prefix) ID {
	tid, err := typeid.Generate(string(prefix))
	if err != nil {
		panic(fmt.Sprintf("id: invalid prefix %q: %v", prefix, err))
	}

	return ID{inner: tid, valid: true}
}

// Parse parses a TypeID string (e.g., "ord_01h2xcejqtf2nbrexx3vqjhp41")
// into an ID. Returns an error if the string is not valid.
func Parse(s string) (ID, error) {
	if s == "" {
		return Nil, fmt.Errorf("id: parse %q: empty string", s)
	}

	tid, err := typeid.Parse(s)
	if err != nil {
		return Nil, fmt.Errorf("id: parse %q: %w", s, err)
	}

	return ID{inner: tid, valid: true}, nil
}

// ParseWithPrefix parses a TypeID string and validates that its prefix
// matches the expected value.
func ParseWithPrefix(s string, expected Prefix) (ID, error) {
	parsed, err := Parse(s)
	if err != nil {
		return Nil, err
	}

	if parsed.Prefix() != expected {
		return Nil, fmt.Errorf("id: expected prefix %q, got %q", expected, parsed.Prefix())
	}

	return parsed, nil
}

// ──────────────────────────────────────────────────
// Type aliases
// ──────────────────────────────────────────────────

// OrderID identifies an order (prefix: "ord").
type OrderID = ID

// OrderItemID identifies an order item (prefix: "oitm").
type OrderItemID = ID

// PaymentID identifies a payment attempt (prefix: "pay").
type PaymentID = ID

// RefundID identifies a refund (prefix: "rfnd").
type RefundID = ID

// InvoiceID identifies an invoice (prefix: "inv").
type InvoiceID = ID

// LineItemID identifies an invoice line item (prefix: "li").
type LineItemID = ID

// CouponID identifies a promo code (prefix: "cpn").
type CouponID = ID

// Constructors for IDs minted outside an injected Generator, mostly in
// tests and fixtures. The engine itself goes through Generator.

// NewOrderID generates a new unique order ID.
func NewOrderID() ID { return New(PrefixOrder) }

// NewPaymentID generates a new unique payment attempt ID.
func NewPaymentID() ID { return New(PrefixPayment) }

// NewRefundID generates a new unique refund ID.
func NewRefundID() ID { return New(PrefixRefund) }

// NewInvoiceID generates a new unique invoice ID.
func NewInvoiceID() ID { return New(PrefixInvoice) }

// NewLineItemID generates a new unique line item ID.
func NewLineItemID() ID { return New(PrefixLineItem) }

// Parsers used at the HTTP and storage boundaries.

// ParseOrderID parses a string and validates the "ord" prefix.
func ParseOrderID(s string) (ID, error) { return ParseWithPrefix(s, PrefixOrder) }

// ParseOrderItemID parses a string and validates the "oitm" prefix.
func ParseOrderItemID(s string) (ID, error) { return ParseWithPrefix(s, PrefixOrderItem) }

// ParsePaymentID parses a string and validates the "pay" prefix.
func ParsePaymentID(s string) (ID, error) { return ParseWithPrefix(s, PrefixPayment) }

// ParseRefundID parses a string and validates the "rfnd" prefix.
func ParseRefundID(s string) (ID, error) { return ParseWithPrefix(s, PrefixRefund) }

// ParseInvoiceID parses a string and validates the "inv" prefix.
func ParseInvoiceID(s string) (ID, error) { return ParseWithPrefix(s, PrefixInvoice) }

// ParseLineItemID parses a string and validates the "li" prefix.
func ParseLineItemID(s string) (ID, error) { return ParseWithPrefix(s, PrefixLineItem) }

// ──────────────────────────────────────────────────
// ID methods
// ──────────────────────────────────────────────────

// String returns the full TypeID string representation (prefix_suffix).
// Returns an empty string for the Nil ID.
func (i ID) String() string {
	if !i.valid {
		return ""
	}

	return i.inner.String()
}

// Prefix returns the prefix component of this ID.
func (i ID) Prefix() Prefix {
	if !i.valid {
		return ""
	}

	return Prefix(i.inner.Prefix())
}

// IsNil reports whether this ID is the zero value.
func (i ID) IsNil() bool {
	return !i.valid
}

// MarshalText implements encoding.TextMarshaler.
func (i ID) MarshalText() ([]byte, error) {
	if !i.valid {
		return []byte{}, nil
	}

	return []byte(i.inner.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (i *ID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*i = Nil

		return nil
	}

	parsed, err := Parse(string(data))
	if err != nil {
		return err
	}

	*i = parsed

	return nil
}

// Value implements driver.Valuer for database storage.
// Returns nil for the Nil ID so that optional foreign key columns store NULL.
func (i ID) Value() (driver.Value, error) {
	if !i.valid {
		return nil, nil //nolint:nilnil // nil is the canonical NULL for driver.Valuer
	}

	return i.inner.String(), nil
}

// Scan implements sql.Scanner for database retrieval. NULL and empty
// values scan to Nil.
func (i *ID) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*i = Nil
		return nil
	case string:
		return i.UnmarshalText([]byte(v))
	case []byte:
		return i.UnmarshalText(v)
	default:
		return fmt.Errorf("id: cannot scan %T into ID", src)
	}
}
