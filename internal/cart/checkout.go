package cart

import (
	"time"

	"github.com/fjod/go_cart/cart-engine/internal/domain"
)

// MarkCheckoutAttempt records a checkout try. Items, totals and LastUpdated are left alone.
func MarkCheckoutAttempt(c domain.Cart, now time.Time) domain.Cart {
	next := c.Clone()
	next.CheckoutAttempts++
	next.LastCheckoutAttempt = &now
	return next
}

// BeginCheckout records an attempt and captures what the checkout collaborator is handed.
func BeginCheckout(c domain.Cart, now time.Time) (domain.Cart, domain.CheckoutSnapshot, error) {
	if c.IsEmpty() {
		return domain.Cart{}, domain.CheckoutSnapshot{}, domain.CartErrorf(domain.ErrEmptyCart, c.OwnerID, "no items")
	}
	next := MarkCheckoutAttempt(c, now)
	return next, domain.NewCheckoutSnapshot(next, now), nil
}

// CompleteCheckout empties and deactivates the cart once checkout succeeded.
// The abandonment episode ends with it.
func CompleteCheckout(c domain.Cart, now time.Time) domain.Cart {
	next := Clear(c, now)
	next.IsActive = false
	return ResetAbandonment(next)
}

// Archive deactivates the cart and keeps its contents for the record.
func Archive(c domain.Cart, now time.Time) domain.Cart {
	next := c.Clone()
	next.IsActive = false
	next.LastUpdated = now
	return next
}

// ResetAbandonment clears the abandonment mark and the recovery flags, starting a new episode.
func ResetAbandonment(c domain.Cart) domain.Cart {
	next := c.Clone()
	next.AbandonedAt = nil
	next.RecoveryNotificationSent = false
	next.RecoveryNotificationSentAt = nil
	return next
}
