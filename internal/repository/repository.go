package repository

import (
	"context"
	"errors"
	"time"

	"github.com/fjod/go_cart/cart-engine/internal/domain"
)

var (
	ErrCartNotFound           = errors.New("cart not found")
	ErrConcurrentModification = errors.New("cart was modified concurrently")
)

// CartRepository persists whole cart values. Writes are compare-and-swap on Cart.Version so
// two writers can never interleave a read-modify-write of the same cart.
type CartRepository interface {
	// GetActiveCart returns the owner's active cart or ErrCartNotFound.
	GetActiveCart(ctx context.Context, ownerID string) (*domain.Cart, error)
	// CreateCart inserts a new cart and sets its Version. It fails with domain.ErrDuplicateOwner
	// when the owner already has an active cart.
	CreateCart(ctx context.Context, cart *domain.Cart) error
	// SaveCart replaces the stored cart if its version still matches, then bumps cart.Version.
	SaveCart(ctx context.Context, cart *domain.Cart) error
	ListActiveCarts(ctx context.Context) ([]domain.Cart, error)
	// DeleteInactiveExpired hard-deletes carts that are inactive and past expiry.
	DeleteInactiveExpired(ctx context.Context, now time.Time) (int64, error)
}

func duplicateOwner(ownerID string) error {
	return domain.CartErrorf(domain.ErrDuplicateOwner, ownerID, "an active cart already exists")
}
