package cart

import (
	"time"

	"github.com/fjod/go_cart/cart-engine/internal/coupon"
	"github.com/fjod/go_cart/cart-engine/internal/domain"
)

// ApplyCoupon validates c against the current items and attaches it. A coupon with the same
// code replaces the earlier one and takes the last position in application order.
func ApplyCoupon(c domain.Cart, cp domain.AppliedCoupon, now time.Time) (domain.Cart, error) {
	if err := ensureUsable(c, now); err != nil {
		return domain.Cart{}, err
	}
	if err := coupon.Validate(c.Items, cp, now); err != nil {
		return domain.Cart{}, withOwner(err, c.OwnerID)
	}

	next := c.Clone()
	if i := next.CouponIndex(cp.Code); i >= 0 {
		next.AppliedCoupons = append(next.AppliedCoupons[:i], next.AppliedCoupons[i+1:]...)
	}
	applied := cp.Clone()
	applied.AppliedAt = now
	next.AppliedCoupons = append(next.AppliedCoupons, applied)
	touch(&next, now)
	return next, nil
}

// RemoveCoupon detaches code. Removing a coupon that is not applied changes nothing.
func RemoveCoupon(c domain.Cart, code string, now time.Time) domain.Cart {
	i := c.CouponIndex(code)
	if i < 0 {
		return c.Clone()
	}
	next := c.Clone()
	next.AppliedCoupons = append(next.AppliedCoupons[:i], next.AppliedCoupons[i+1:]...)
	touch(&next, now)
	return next
}
