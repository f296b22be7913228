package payment

import (
	"strings"
	"unicode"
)

// Instrument holds the masked, storable view of a payment instrument. The
// gateway token is passed through to Charge but never persisted.
type Instrument struct {
	Token        string `json:"-"`
	CardBrand    string `json:"card_brand,omitempty"`
	CardLast4    string `json:"card_last4,omitempty"`
	CardExpMonth int    `json:"card_exp_month,omitempty"`
	CardExpYear  int    `json:"card_exp_year,omitempty"`
	BillingName  string `json:"billing_name,omitempty"`
	BillingZip   string `json:"billing_zip,omitempty"`
	BankName     string `json:"bank_name,omitempty"`
	AccountLast4 string `json:"account_last4,omitempty"`
	RoutingLast4 string `json:"routing_last4,omitempty"`
}

// CardDetails are the raw card fields supplied by a caller.
type CardDetails struct {
	Number     string
	ExpMonth   int
	ExpYear    int
	HolderName string
	BillingZip string
}

// BankDetails are the raw bank account fields supplied by a caller.
type BankDetails struct {
	BankName      string
	AccountNumber string
	RoutingNumber string
}

// CardInstrument masks c and pairs it with a gateway token.
func CardInstrument(token string, c CardDetails) Instrument {
	digits := onlyDigits(c.Number)
	return Instrument{
		Token:        token,
		CardBrand:    DetectCardBrand(digits),
		CardLast4:    last4(digits),
		CardExpMonth: c.ExpMonth,
		CardExpYear:  c.ExpYear,
		BillingName:  c.HolderName,
		BillingZip:   c.BillingZip,
	}
}

// BankInstrument masks b and pairs it with a gateway token.
func BankInstrument(token string, b BankDetails) Instrument {
	return Instrument{
		Token:        token,
		BankName:     b.BankName,
		AccountLast4: last4(onlyDigits(b.AccountNumber)),
		RoutingLast4: last4(onlyDigits(b.RoutingNumber)),
	}
}

// DetectCardBrand infers the network from the card number prefix.
func DetectCardBrand(number string) string {
	n := onlyDigits(number)
	switch {
	case strings.HasPrefix(n, "4"):
		return "VISA"
	case hasPrefixInRange(n, 2, 51, 55), hasPrefixInRange(n, 4, 2221, 2720):
		return "MASTERCARD"
	case strings.HasPrefix(n, "34"), strings.HasPrefix(n, "37"):
		return "AMEX"
	case strings.HasPrefix(n, "6011"), strings.HasPrefix(n, "65"), hasPrefixInRange(n, 3, 644, 649):
		return "DISCOVER"
	default:
		return "UNKNOWN"
	}
}

func hasPrefixInRange(n string, width, lo, hi int) bool {
	if len(n) < width {
		return false
	}
	v := 0
	for _, r := range n[:width] {
		v = v*10 + int(r-'0')
	}
	return v >= lo && v <= hi
}

func onlyDigits(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, s)
}

func last4(s string) string {
	if len(s) <= 4 {
		return s
	}
	return s[len(s)-4:]
}
