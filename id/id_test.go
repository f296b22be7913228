package id_test

import (
	"strings"
	"testing"
	"time"

	"github.com/xraph/settle/id"
)

func TestConstructors(t *testing.T) {
	tests := []struct {
		name   string
		newFn  func() id.ID
		prefix string
	}{
		{"OrderID", id.NewOrderID, "ord_"},
		{"PaymentID", id.NewPaymentID, "pay_"},
		{"RefundID", id.NewRefundID, "rfnd_"},
		{"InvoiceID", id.NewInvoiceID, "inv_"},
		{"LineItemID", id.NewLineItemID, "li_"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.newFn().String()
			if !strings.HasPrefix(got, tt.prefix) {
				t.Errorf("expected prefix %q, got %q", tt.prefix, got)
			}
		})
	}
}

func TestParseRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		newFn   func() id.ID
		parseFn func(string) (id.ID, error)
	}{
		{"OrderID", id.NewOrderID, id.ParseOrderID},
		{"OrderItemID", func() id.ID { return id.New(id.PrefixOrderItem) }, id.ParseOrderItemID},
		{"PaymentID", id.NewPaymentID, id.ParsePaymentID},
		{"RefundID", id.NewRefundID, id.ParseRefundID},
		{"InvoiceID", id.NewInvoiceID, id.ParseInvoiceID},
		{"LineItemID", id.NewLineItemID, id.ParseLineItemID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			original := tt.newFn()
			parsed, err := tt.parseFn(original.String())
			if err != nil {
				t.Fatalf("parse failed: %v", err)
			}
			if parsed.String() != original.String() {
				t.Errorf("round-trip mismatch: %q != %q", parsed.String(), original.String())
			}
		})
	}
}

func TestCrossTypeRejection(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		parseFn func(string) (id.ID, error)
	}{
		{"ParseOrderID rejects pay_", id.NewPaymentID().String(), id.ParseOrderID},
		{"ParsePaymentID rejects rfnd_", id.NewRefundID().String(), id.ParsePaymentID},
		{"ParseInvoiceID rejects ord_", id.NewOrderID().String(), id.ParseInvoiceID},
		{"ParseOrderItemID rejects li_", id.NewLineItemID().String(), id.ParseOrderItemID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.parseFn(tt.input); err == nil {
				t.Errorf("expected error for cross-type parse of %q, got nil", tt.input)
			}
		})
	}
}

func TestParseErrors(t *testing.T) {
	for _, in := range []string{"", "not-an-id", "ord_"} {
		t.Run(in, func(t *testing.T) {
			if _, err := id.Parse(in); err == nil {
				t.Errorf("Parse(%q): expected error", in)
			}
		})
	}
}

func TestSuffix(t *testing.T) {
	i := id.NewOrderID()
	if got := i.Suffix(); got == "" || strings.Contains(got, "_") {
		t.Errorf("Suffix: got %q", got)
	}
	if got := id.Nil.Suffix(); got != "" {
		t.Errorf("Nil.Suffix: got %q", got)
	}
}

func TestDocumentNumber(t *testing.T) {
	i := id.NewOrderID()
	at := time.Date(2026, 1, 15, 23, 0, 0, 0, time.UTC)
	got := id.DocumentNumber("ORD", at, i)
	if !strings.HasPrefix(got, "ORD-20260115-") || len(got) != len("ORD-20260115-")+6 {
		t.Fatalf("DocumentNumber: got %q", got)
	}
	if got != strings.ToUpper(got) {
		t.Errorf("expected upper case, got %q", got)
	}
}

func TestTextRoundTrip(t *testing.T) {
	original := id.NewInvoiceID()
	data, err := original.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText: %v", err)
	}

	var back id.ID
	if err := back.UnmarshalText(data); err != nil {
		t.Fatalf("UnmarshalText: %v", err)
	}
	if back.String() != original.String() {
		t.Errorf("got %q, want %q", back.String(), original.String())
	}

	var empty id.ID
	if err := empty.UnmarshalText(nil); err != nil || !empty.IsNil() {
		t.Errorf("empty text should give Nil, got %q err=%v", empty.String(), err)
	}
}

func TestScan(t *testing.T) {
	original := id.NewPaymentID()

	tests := []struct {
		name    string
		src     any
		want    string
		wantErr bool
	}{
		{"string", original.String(), original.String(), false},
		{"bytes", []byte(original.String()), original.String(), false},
		{"nil", nil, "", false},
		{"empty", "", "", false},
		{"int", 42, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got id.ID
			err := got.Scan(tt.src)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Scan err = %v, wantErr %v", err, tt.wantErr)
			}
			if got.String() != tt.want {
				t.Errorf("got %q, want %q", got.String(), tt.want)
			}
		})
	}
}

func TestGeneratorFunc(t *testing.T) {
	fixed := id.NewOrderID()
	gen := id.GeneratorFunc(func(id.Prefix) id.ID { return fixed })
	if got := gen.New(id.PrefixOrder); got.String() != fixed.String() {
		t.Errorf("got %q, want %q", got.String(), fixed.String())
	}
	if got := (id.TypeIDGenerator{}).New(id.PrefixRefund); got.Prefix() != id.PrefixRefund {
		t.Errorf("prefix: got %q", got.Prefix())
	}
}
