// Package coupon resolves promo codes into order discounts.
package coupon

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/xraph/settle/id"
	"github.com/xraph/settle/types"
)

// Coupon is a promo code worth either a percentage of the subtotal or a
// fixed amount.
type Coupon struct {
	ID             id.CouponID     `json:"id"`
	Code           string          `json:"code"`
	Name           string          `json:"name"`
	Type           CouponType      `json:"type"`
	Amount         types.Money     `json:"amount,omitempty"`
	Percentage     decimal.Decimal `json:"percentage,omitempty"`
	MaxRedemptions int             `json:"max_redemptions"`
	TimesRedeemed  int             `json:"times_redeemed"`
	ValidFrom      *time.Time      `json:"valid_from,omitempty"`
	ValidUntil     *time.Time      `json:"valid_until,omitempty"`
}

type CouponType string

const (
	CouponTypePercentage CouponType = "percentage"
	CouponTypeAmount     CouponType = "amount"
)

// Discount returns the discount this coupon grants on subtotal. Percentages
// round half-up once; fixed amounts are capped at the subtotal.
func (c *Coupon) Discount(subtotal types.Money) (types.Money, error) {
	switch c.Type {
	case CouponTypePercentage:
		return subtotal.Percent(c.Percentage), nil
	case CouponTypeAmount:
		cmp, err := c.Amount.Compare(subtotal)
		if err != nil {
			return types.Money{}, err
		}
		if cmp > 0 {
			return subtotal, nil
		}
		return c.Amount, nil
	default:
		return types.Money{}, ErrInvalidType
	}
}

// Valid reports whether the coupon can be redeemed at now.
func (c *Coupon) Valid(now time.Time) error {
	if c.ValidFrom != nil && now.Before(*c.ValidFrom) {
		return ErrNotActive
	}
	if c.ValidUntil != nil && now.After(*c.ValidUntil) {
		return ErrExpired
	}
	if c.MaxRedemptions > 0 && c.TimesRedeemed >= c.MaxRedemptions {
		return ErrExhausted
	}
	return nil
}
