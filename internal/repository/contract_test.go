package repository

import (
	"context"
	"testing"
	"time"

	"github.com/fjod/go_cart/cart-engine/internal/domain"
	"github.com/fjod/go_cart/cart-engine/internal/money"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)

func newTestCart(ownerID string) *domain.Cart {
	c := domain.NewCart(uuid.NewString(), ownerID, money.USD, baseTime)
	c.Items = []domain.CartItem{{
		ItemID:    "sku-1",
		UnitPrice: money.MustParse("19.99"),
		ListPrice: money.MustParse("24.99"),
		AddedAt:   baseTime,
	}}
	limit := money.MustParse("10")
	c.AppliedCoupons = []domain.AppliedCoupon{{
		Code:            "SAVE5",
		DiscountType:    domain.DiscountFixed,
		DiscountValue:   money.MustParse("5"),
		Scope:           domain.TargetedScope("sku-1"),
		MaximumDiscount: &limit,
		AppliedAt:       baseTime,
	}}
	c.TotalOriginalAmount = money.MustParse("24.99")
	c.TotalDiscount = money.MustParse("5")
	c.TotalAmount = money.MustParse("19.99")
	return &c
}

// runContract exercises the behaviour every CartRepository must share.
func runContract(t *testing.T, repo CartRepository) {
	ctx := context.Background()

	t.Run("missing cart", func(t *testing.T) {
		c, err := repo.GetActiveCart(ctx, "nobody")
		assert.ErrorIs(t, err, ErrCartNotFound)
		assert.Nil(t, c)
	})

	t.Run("create and read back", func(t *testing.T) {
		c := newTestCart("alice")
		require.NoError(t, repo.CreateCart(ctx, c))
		assert.Equal(t, int64(1), c.Version)

		got, err := repo.GetActiveCart(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, c.ID, got.ID)
		assert.Equal(t, int64(1), got.Version)
		require.Len(t, got.Items, 1)
		assert.True(t, money.MustParse("19.99").Equal(got.Items[0].UnitPrice))
		assert.True(t, money.MustParse("24.99").Equal(got.Items[0].ListPrice))
		require.Len(t, got.AppliedCoupons, 1)
		assert.Equal(t, domain.ScopeTargeted, got.AppliedCoupons[0].Scope.Kind)
		assert.Equal(t, []string{"sku-1"}, got.AppliedCoupons[0].Scope.ItemIDs)
		require.NotNil(t, got.AppliedCoupons[0].MaximumDiscount)
		assert.True(t, money.MustParse("10").Equal(*got.AppliedCoupons[0].MaximumDiscount))
		assert.Nil(t, got.AppliedCoupons[0].MinimumAmount)
		assert.True(t, money.MustParse("19.99").Equal(got.TotalAmount))
		assert.Equal(t, money.USD, got.Currency)
		assert.WithinDuration(t, baseTime, got.CreatedAt, time.Millisecond)
	})

	t.Run("second active cart for owner is rejected", func(t *testing.T) {
		require.NoError(t, repo.CreateCart(ctx, newTestCart("bob")))
		err := repo.CreateCart(ctx, newTestCart("bob"))
		assert.ErrorIs(t, err, domain.ErrDuplicateOwner)
	})

	t.Run("save bumps version and detects stale writes", func(t *testing.T) {
		c := newTestCart("carol")
		require.NoError(t, repo.CreateCart(ctx, c))

		first, err := repo.GetActiveCart(ctx, "carol")
		require.NoError(t, err)
		second, err := repo.GetActiveCart(ctx, "carol")
		require.NoError(t, err)

		first.CheckoutAttempts = 1
		require.NoError(t, repo.SaveCart(ctx, first))
		assert.Equal(t, int64(2), first.Version)

		second.CheckoutAttempts = 7
		assert.ErrorIs(t, repo.SaveCart(ctx, second), ErrConcurrentModification)

		got, err := repo.GetActiveCart(ctx, "carol")
		require.NoError(t, err)
		assert.Equal(t, 1, got.CheckoutAttempts)
		assert.Equal(t, int64(2), got.Version)
	})

	t.Run("save of unknown cart", func(t *testing.T) {
		c := newTestCart("ghost")
		c.Version = 1
		assert.ErrorIs(t, repo.SaveCart(ctx, c), ErrCartNotFound)
	})

	t.Run("deactivated cart frees the owner slot", func(t *testing.T) {
		c := newTestCart("dave")
		require.NoError(t, repo.CreateCart(ctx, c))
		c.IsActive = false
		require.NoError(t, repo.SaveCart(ctx, c))

		_, err := repo.GetActiveCart(ctx, "dave")
		assert.ErrorIs(t, err, ErrCartNotFound)

		require.NoError(t, repo.CreateCart(ctx, newTestCart("dave")))
	})

	t.Run("list active carts", func(t *testing.T) {
		carts, err := repo.ListActiveCarts(ctx)
		require.NoError(t, err)
		owners := make([]string, 0, len(carts))
		for _, c := range carts {
			assert.True(t, c.IsActive)
			owners = append(owners, c.OwnerID)
		}
		assert.Equal(t, []string{"alice", "bob", "carol", "dave"}, owners)
	})

	t.Run("delete inactive expired", func(t *testing.T) {
		c := newTestCart("erin")
		require.NoError(t, repo.CreateCart(ctx, c))
		c.IsActive = false
		require.NoError(t, repo.SaveCart(ctx, c))

		n, err := repo.DeleteInactiveExpired(ctx, baseTime.Add(domain.ExpiryWindow-time.Hour))
		require.NoError(t, err)
		assert.Zero(t, n, "not expired yet")

		// two inactive carts exist by now: dave's first and erin's
		n, err = repo.DeleteInactiveExpired(ctx, baseTime.Add(domain.ExpiryWindow+time.Hour))
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)

		active, err := repo.ListActiveCarts(ctx)
		require.NoError(t, err)
		assert.Len(t, active, 4, "active carts are never swept")
	})
}
