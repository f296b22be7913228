package coupon

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound    = errors.New("coupon: code not found")
	ErrNotActive   = errors.New("coupon: not yet active")
	ErrExpired     = errors.New("coupon: expired")
	ErrExhausted   = errors.New("coupon: redemption limit reached")
	ErrInvalidType = errors.New("coupon: invalid type")
)

// Book resolves promo codes.
type Book interface {
	// Redeem validates code at now and counts one redemption.
	Redeem(ctx context.Context, code string, now time.Time) (*Coupon, error)
}

// MemoryBook is an in-memory Book keyed by upper-cased code. When Fallback
// is set, unknown codes resolve to it.
type MemoryBook struct {
	mu       sync.Mutex
	coupons  map[string]*Coupon
	fallback *Coupon
}

// NewMemoryBook returns a book holding coupons.
func NewMemoryBook(coupons ...Coupon) *MemoryBook {
	b := &MemoryBook{coupons: make(map[string]*Coupon, len(coupons))}
	for _, c := range coupons {
		b.Add(c)
	}
	return b
}

// DefaultBook returns the stock promo codes with a 10% fallback for any
// other non-empty code.
func DefaultBook() *MemoryBook {
	pct := func(code string, p int64) Coupon {
		return Coupon{Code: code, Name: code, Type: CouponTypePercentage, Percentage: decimal.NewFromInt(p)}
	}
	b := NewMemoryBook(
		pct("SAVE10", 10), pct("WELCOME15", 15), pct("NEWUSER20", 20),
		pct("HEALTH25", 25), pct("FAMILY10", 10),
	)
	fb := pct("", 10)
	b.fallback = &fb
	return b
}

// Add adds or replaces c.
func (b *MemoryBook) Add(c Coupon) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.coupons[normalize(c.Code)] = &c
}

// Redeem implements Book.
func (b *MemoryBook) Redeem(_ context.Context, code string, now time.Time) (*Coupon, error) {
	key := normalize(code)
	b.mu.Lock()
	defer b.mu.Unlock()

	c, ok := b.coupons[key]
	if !ok {
		if b.fallback == nil || key == "" {
			return nil, fmt.Errorf("%w: %q", ErrNotFound, code)
		}
		fb := *b.fallback
		fb.Code = key
		return &fb, nil
	}
	if err := c.Valid(now); err != nil {
		return nil, fmt.Errorf("%w: %s", err, key)
	}
	c.TimesRedeemed++
	out := *c
	return &out, nil
}

func normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
