// Package plan is the plan catalog collaborator used to price order items.
package plan

import (
	"github.com/xraph/settle/types"
)

// Plan is a priced insurance plan as exposed by the catalog.
type Plan struct {
	ID             string      `json:"id"`
	Code           string      `json:"code"`
	Name           string      `json:"name"`
	Year           int         `json:"year"`
	MetalTier      string      `json:"metal_tier,omitempty"`
	MonthlyPremium types.Money `json:"monthly_premium"`
	Active         bool        `json:"active"`
}
