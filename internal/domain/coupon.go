package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

type ScopeKind string

const (
	ScopeGlobal   ScopeKind = "global"
	ScopeTargeted ScopeKind = "targeted"
)

// CouponScope is either the whole cart or a fixed set of item ids.
type CouponScope struct {
	Kind    ScopeKind `json:"kind"`
	ItemIDs []string  `json:"item_ids,omitempty"`
}

func GlobalScope() CouponScope {
	return CouponScope{Kind: ScopeGlobal}
}

func TargetedScope(itemIDs ...string) CouponScope {
	return CouponScope{Kind: ScopeTargeted, ItemIDs: append([]string{}, itemIDs...)}
}

func (s CouponScope) IsTargeted() bool {
	return s.Kind == ScopeTargeted
}

// Covers reports whether the scope includes itemID. Global scopes cover everything.
func (s CouponScope) Covers(itemID string) bool {
	if !s.IsTargeted() {
		return true
	}
	for _, id := range s.ItemIDs {
		if id == itemID {
			return true
		}
	}
	return false
}

type AppliedCoupon struct {
	Code            string           `json:"code"`
	DiscountType    DiscountType     `json:"discount_type"`
	DiscountValue   decimal.Decimal  `json:"discount_value"`
	Scope           CouponScope      `json:"scope"`
	MinimumAmount   *decimal.Decimal `json:"minimum_amount,omitempty"`
	MaximumDiscount *decimal.Decimal `json:"maximum_discount,omitempty"`
	AppliedAt       time.Time        `json:"applied_at"`
	ValidFrom       *time.Time       `json:"valid_from,omitempty"`
	ValidUntil      *time.Time       `json:"valid_until,omitempty"`
}

func (c AppliedCoupon) Clone() AppliedCoupon {
	out := c
	out.Scope.ItemIDs = append([]string(nil), c.Scope.ItemIDs...)
	if c.MinimumAmount != nil {
		v := *c.MinimumAmount
		out.MinimumAmount = &v
	}
	if c.MaximumDiscount != nil {
		v := *c.MaximumDiscount
		out.MaximumDiscount = &v
	}
	out.ValidFrom = cloneTime(c.ValidFrom)
	out.ValidUntil = cloneTime(c.ValidUntil)
	return out
}
