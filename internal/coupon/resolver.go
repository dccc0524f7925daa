// Package coupon prices coupons against cart contents.
//
// Every coupon is evaluated on its own against the items' original prices and the
// contributions are summed. Discounts are additive, not compounding: two 50% global
// coupons on a subtotal of 100 discount the full 100 rather than 75.
package coupon

import (
	"time"

	"github.com/fjod/go_cart/cart-engine/internal/domain"
	"github.com/fjod/go_cart/cart-engine/internal/money"
	"github.com/shopspring/decimal"
)

// Totals are the derived amounts of a cart.
type Totals struct {
	Original decimal.Decimal
	Amount   decimal.Decimal
	Discount decimal.Decimal
}

// Line is one coupon's contribution in application order.
type Line struct {
	Code   string          `json:"code"`
	Amount decimal.Decimal `json:"amount"`
}

// Subtotal is the sum of list prices.
func Subtotal(items []domain.CartItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.ListPrice)
	}
	return total
}

// Contribution computes the discount a single coupon adds, ignoring every other coupon.
func Contribution(items []domain.CartItem, c domain.AppliedCoupon) decimal.Decimal {
	if len(items) == 0 {
		return decimal.Zero
	}
	subtotal := Subtotal(items)
	if c.MinimumAmount != nil && subtotal.LessThan(*c.MinimumAmount) {
		return decimal.Zero
	}

	if !c.Scope.IsTargeted() {
		return lineDiscount(subtotal, c)
	}

	total := decimal.Zero
	for _, it := range items {
		if !c.Scope.Covers(it.ItemID) {
			continue
		}
		total = total.Add(lineDiscount(it.UnitPrice, c))
	}
	return total
}

// lineDiscount prices c against one base and keeps the result inside [0, base].
func lineDiscount(base decimal.Decimal, c domain.AppliedCoupon) decimal.Decimal {
	base = money.NonNegative(base)
	var raw decimal.Decimal
	switch c.DiscountType {
	case domain.DiscountPercentage:
		raw = money.Percent(base, c.DiscountValue)
	case domain.DiscountFixed:
		raw = c.DiscountValue
	default:
		return decimal.Zero
	}
	raw = money.CapAt(raw, c.MaximumDiscount)
	return money.Clamp(raw, decimal.Zero, base)
}

// Breakdown lists every coupon's contribution in the order the coupons were applied.
func Breakdown(items []domain.CartItem, coupons []domain.AppliedCoupon) []Line {
	lines := make([]Line, 0, len(coupons))
	for _, c := range coupons {
		lines = append(lines, Line{Code: c.Code, Amount: Contribution(items, c)})
	}
	return lines
}

// Compute derives the cart totals from its items and coupons.
func Compute(items []domain.CartItem, coupons []domain.AppliedCoupon) Totals {
	original := Subtotal(items)
	discounts := decimal.Zero
	for _, line := range Breakdown(items, coupons) {
		discounts = discounts.Add(line.Amount)
	}
	amount := money.NonNegative(original.Sub(discounts))
	return Totals{
		Original: original,
		Amount:   amount,
		Discount: original.Sub(amount),
	}
}

// Validate checks a coupon before it is attached to a cart holding items.
func Validate(items []domain.CartItem, c domain.AppliedCoupon, now time.Time) error {
	if c.Code == "" {
		return domain.CouponError(domain.ErrInvalidCoupon, "", c.Code, "code is required")
	}
	switch c.DiscountType {
	case domain.DiscountPercentage:
		if c.DiscountValue.IsNegative() || c.DiscountValue.GreaterThan(decimal.NewFromInt(100)) {
			return domain.CouponError(domain.ErrInvalidCoupon, "", c.Code, "percentage must be 0-100")
		}
	case domain.DiscountFixed:
		if c.DiscountValue.IsNegative() {
			return domain.CouponError(domain.ErrInvalidCoupon, "", c.Code, "fixed discount cannot be negative")
		}
	default:
		return domain.CouponError(domain.ErrInvalidCoupon, "", c.Code, "unknown discount type")
	}
	if c.MaximumDiscount != nil && c.MaximumDiscount.IsNegative() {
		return domain.CouponError(domain.ErrInvalidCoupon, "", c.Code, "maximum discount cannot be negative")
	}
	for _, amount := range []*decimal.Decimal{&c.DiscountValue, c.MinimumAmount, c.MaximumDiscount} {
		if amount != nil && !money.InCents(*amount) {
			return domain.CouponError(domain.ErrInvalidCoupon, "", c.Code, "amounts have at most two decimal places")
		}
	}
	if c.ValidUntil != nil && now.After(*c.ValidUntil) {
		return domain.CouponError(domain.ErrCouponExpired, "", c.Code, "validity window has passed")
	}
	if c.ValidFrom != nil && now.Before(*c.ValidFrom) {
		return domain.CouponError(domain.ErrCouponNotApplicable, "", c.Code, "not valid yet")
	}

	switch c.Scope.Kind {
	case domain.ScopeGlobal:
		return nil
	case domain.ScopeTargeted:
		if len(c.Scope.ItemIDs) == 0 {
			return domain.CouponError(domain.ErrInvalidCoupon, "", c.Code, "targeted coupon needs item ids")
		}
		for _, it := range items {
			if c.Scope.Covers(it.ItemID) {
				return nil
			}
		}
		return domain.CouponError(domain.ErrCouponNotApplicable, "", c.Code, "no targeted item in cart")
	default:
		return domain.CouponError(domain.ErrInvalidCoupon, "", c.Code, "unknown scope")
	}
}

// StampItems sets each item's CouponCode to the last applied targeted coupon covering it.
func StampItems(items []domain.CartItem, coupons []domain.AppliedCoupon) {
	for i := range items {
		items[i].CouponCode = ""
		for _, c := range coupons {
			if c.Scope.IsTargeted() && c.Scope.Covers(items[i].ItemID) {
				items[i].CouponCode = c.Code
			}
		}
	}
}
