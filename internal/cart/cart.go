// Package cart holds the buyer mutations of a cart as pure functions.
//
// Each function takes the current cart value, never modifies it, and returns the next value
// with totals recomputed, or an error and no new value. Persisting the result under the
// owner's lock is the caller's job.
package cart

import (
	"errors"
	"time"

	"github.com/fjod/go_cart/cart-engine/internal/coupon"
	"github.com/fjod/go_cart/cart-engine/internal/domain"
	"github.com/fjod/go_cart/cart-engine/internal/money"
	"github.com/shopspring/decimal"
)

// Recompute refreshes the derived fields of c in place: item coupon stamps and the three totals.
func Recompute(c *domain.Cart) {
	coupon.StampItems(c.Items, c.AppliedCoupons)
	totals := coupon.Compute(c.Items, c.AppliedCoupons)
	c.TotalOriginalAmount = totals.Original
	c.TotalAmount = totals.Amount
	c.TotalDiscount = totals.Discount
}

// touch finalises a buyer mutation.
func touch(c *domain.Cart, now time.Time) {
	Recompute(c)
	c.LastUpdated = now
}

func ensureUsable(c domain.Cart, now time.Time) error {
	if c.IsExpired(now) {
		return domain.CartErrorf(domain.ErrCartExpired, c.OwnerID, "expired at %s", c.ExpiresAt().Format(time.RFC3339))
	}
	return nil
}

func validatePrice(ownerID, itemID string, prices ...decimal.Decimal) error {
	for _, p := range prices {
		if p.IsNegative() {
			return &domain.CartError{Kind: domain.ErrInvalidPrice, OwnerID: ownerID, ItemID: itemID, Detail: "price cannot be negative"}
		}
		if !money.InCents(p) {
			return &domain.CartError{Kind: domain.ErrInvalidPrice, OwnerID: ownerID, ItemID: itemID, Detail: "price has more than two decimal places"}
		}
	}
	return nil
}

// withOwner attaches the owner to coupon validation failures.
func withOwner(err error, ownerID string) error {
	var ce *domain.CartError
	if errors.As(err, &ce) && ce.OwnerID == "" {
		ce.OwnerID = ownerID
	}
	return err
}

// CheckCurrency rejects pricing an item in a currency other than the cart's.
func CheckCurrency(c domain.Cart, itemID string, currency money.Currency) error {
	if currency == "" || c.Currency == "" || currency == c.Currency {
		return nil
	}
	return &domain.CartError{
		Kind:    domain.ErrCurrencyMismatch,
		OwnerID: c.OwnerID,
		ItemID:  itemID,
		Detail:  "cart is priced in " + c.Currency.String() + ", item in " + currency.String(),
	}
}
