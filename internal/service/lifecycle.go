package service

import (
	"context"
	"time"

	"github.com/fjod/go_cart/cart-engine/internal/domain"
)

// Transition is a scheduler-side change. It reports false when the cart needs no write.
type Transition func(c domain.Cart, now time.Time) (domain.Cart, bool)

func (s *CartService) ActiveCarts(ctx context.Context) ([]domain.Cart, error) {
	return s.repo.ListActiveCarts(ctx)
}

// ApplyTransition runs t against the owner's active cart with the same locking and version
// check as buyer mutations. Nothing happens if the active cart is no longer cartID.
func (s *CartService) ApplyTransition(ctx context.Context, ownerID, cartID string, t Transition) (*domain.Cart, bool, error) {
	changed := false
	next, err := s.mutate(ctx, ownerID, "lifecycle", requireCart, "", func(c domain.Cart, now time.Time) (domain.Cart, error) {
		changed = false
		if c.ID != cartID {
			return c, errUnchanged
		}
		out, ok := t(c, now)
		if !ok {
			return c, errUnchanged
		}
		changed = true
		return out, nil
	})
	if err != nil {
		return nil, false, err
	}
	return next, changed, nil
}

// PurgeExpired hard-deletes deactivated carts past their expiry.
func (s *CartService) PurgeExpired(ctx context.Context) (int64, error) {
	return s.repo.DeleteInactiveExpired(ctx, s.now())
}

// Now is the service clock, shared with the scheduler so both agree on time.
func (s *CartService) Now() time.Time {
	return s.now()
}
