package cart

import (
	"testing"
	"time"

	"github.com/fjod/go_cart/cart-engine/internal/domain"
	"github.com/fjod/go_cart/cart-engine/internal/money"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

func d(s string) decimal.Decimal {
	return money.MustParse(s)
}

func listPrice(s string) AddItemOptions {
	v := d(s)
	return AddItemOptions{ListPrice: &v}
}

func newCart() domain.Cart {
	return domain.NewCart("cart-1", "user-1", money.USD, t0)
}

func percentCoupon(code, value string, scope domain.CouponScope) domain.AppliedCoupon {
	return domain.AppliedCoupon{Code: code, DiscountType: domain.DiscountPercentage, DiscountValue: d(value), Scope: scope}
}

func fixedCoupon(code, value string) domain.AppliedCoupon {
	return domain.AppliedCoupon{Code: code, DiscountType: domain.DiscountFixed, DiscountValue: d(value), Scope: domain.GlobalScope()}
}

func assertTotals(t *testing.T, c domain.Cart, original, amount, discount string) {
	t.Helper()
	assert.True(t, d(original).Equal(c.TotalOriginalAmount), "original: want %s got %s", original, c.TotalOriginalAmount)
	assert.True(t, d(amount).Equal(c.TotalAmount), "amount: want %s got %s", amount, c.TotalAmount)
	assert.True(t, d(discount).Equal(c.TotalDiscount), "discount: want %s got %s", discount, c.TotalDiscount)
}

func assertInvariants(t *testing.T, c domain.Cart) {
	t.Helper()
	seen := map[string]bool{}
	sum := decimal.Zero
	for _, it := range c.Items {
		assert.False(t, seen[it.ItemID], "duplicate item %s", it.ItemID)
		seen[it.ItemID] = true
		sum = sum.Add(it.ListPrice)
	}
	assert.True(t, sum.Equal(c.TotalOriginalAmount))
	assert.False(t, c.TotalAmount.IsNegative())
	assert.True(t, c.TotalDiscount.Equal(c.TotalOriginalAmount.Sub(c.TotalAmount)))
	assert.True(t, c.TotalAmount.Equal(money.NonNegative(c.TotalOriginalAmount.Sub(c.TotalDiscount))))
	if c.IsEmpty() {
		assert.True(t, c.TotalAmount.IsZero())
		assert.True(t, c.TotalOriginalAmount.IsZero())
		assert.True(t, c.TotalDiscount.IsZero())
	}
}

func TestEndToEndScenario(t *testing.T) {
	c := newCart()
	now := t0.Add(time.Minute)

	c, err := AddItem(c, "A", d("50"), listPrice("60"), now)
	require.NoError(t, err)
	c, err = AddItem(c, "B", d("30"), listPrice("30"), now)
	require.NoError(t, err)
	assertTotals(t, c, "90", "90", "0")

	c, err = ApplyCoupon(c, percentCoupon("SAVE10", "10", domain.GlobalScope()), now)
	require.NoError(t, err)
	assertTotals(t, c, "90", "81", "9")

	c, err = RemoveItem(c, "B", now)
	require.NoError(t, err)
	assertTotals(t, c, "60", "54", "6")
	assertInvariants(t, c)
}

func TestAddItem_IdempotentReAdd(t *testing.T) {
	c, err := AddItem(newCart(), "X", d("10"), listPrice("12"), t0)
	require.NoError(t, err)
	c, err = AddItem(c, "X", d("8"), AddItemOptions{ListPrice: ptr(d("9")), Priority: 3, IsGift: true, GiftRecipient: "Kim"}, t0.Add(time.Minute))
	require.NoError(t, err)

	require.Len(t, c.Items, 1)
	it := c.Items[0]
	assert.True(t, d("8").Equal(it.UnitPrice))
	assert.True(t, d("9").Equal(it.ListPrice))
	assert.Equal(t, 3, it.Priority)
	assert.True(t, it.IsGift)
	assert.Equal(t, "Kim", it.GiftRecipient)
	assert.Equal(t, t0, it.AddedAt)
	assertTotals(t, c, "9", "9", "0")
}

func TestAddItem_ListPriceDefaultsToUnitPrice(t *testing.T) {
	c, err := AddItem(newCart(), "X", d("10"), AddItemOptions{}, t0)
	require.NoError(t, err)
	assert.True(t, d("10").Equal(c.Items[0].ListPrice))
}

func TestAddItem_DoesNotMutateInput(t *testing.T) {
	orig := newCart()
	next, err := AddItem(orig, "X", d("10"), AddItemOptions{}, t0.Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, orig.Items)
	assert.Equal(t, t0, orig.LastUpdated)
	assert.Equal(t, t0.Add(time.Hour), next.LastUpdated)
}

func TestAddItem_NegativePrice(t *testing.T) {
	_, err := AddItem(newCart(), "X", d("-1"), AddItemOptions{}, t0)
	assert.ErrorIs(t, err, domain.ErrInvalidPrice)
}

func TestAddItem_PriceBeyondCents(t *testing.T) {
	orig := newCart()
	_, err := AddItem(orig, "X", d("0.0000000000000000000000000000000000001"), AddItemOptions{}, t0)
	assert.ErrorIs(t, err, domain.ErrInvalidPrice)

	_, err = AddItem(orig, "X", d("10"), listPrice("10.005"), t0)
	assert.ErrorIs(t, err, domain.ErrInvalidPrice)
	assert.Empty(t, orig.Items)

	// trailing zeros are fine
	next, err := AddItem(orig, "X", d("10.500"), AddItemOptions{}, t0)
	require.NoError(t, err)
	assertTotals(t, next, "10.5", "10.5", "0")
}

func TestAddItem_ExpiredCart(t *testing.T) {
	c := newCart()
	past := t0.Add(domain.ExpiryWindow + time.Hour)
	_, err := AddItem(c, "X", d("1"), AddItemOptions{}, past)
	assert.ErrorIs(t, err, domain.ErrCartExpired)

	_, err = ApplyCoupon(c, fixedCoupon("F", "1"), past)
	assert.ErrorIs(t, err, domain.ErrCartExpired)
}

func TestRemoveItem_NotFound(t *testing.T) {
	_, err := RemoveItem(newCart(), "ghost", t0)
	assert.ErrorIs(t, err, domain.ErrItemNotFound)
}

func TestApplyCoupon_ReplacesSameCode(t *testing.T) {
	c, _ := AddItem(newCart(), "A", d("100"), AddItemOptions{}, t0)
	c, err := ApplyCoupon(c, percentCoupon("PROMO", "10", domain.GlobalScope()), t0)
	require.NoError(t, err)
	c, err = ApplyCoupon(c, fixedCoupon("OTHER", "1"), t0)
	require.NoError(t, err)
	c, err = ApplyCoupon(c, percentCoupon("PROMO", "20", domain.GlobalScope()), t0.Add(time.Minute))
	require.NoError(t, err)

	require.Len(t, c.AppliedCoupons, 2)
	assert.Equal(t, "OTHER", c.AppliedCoupons[0].Code)
	assert.Equal(t, "PROMO", c.AppliedCoupons[1].Code)
	assert.Equal(t, t0.Add(time.Minute), c.AppliedCoupons[1].AppliedAt)
	assertTotals(t, c, "100", "79", "21")
}

func TestApplyCoupon_FailureLeavesCartUnchanged(t *testing.T) {
	c, _ := AddItem(newCart(), "A", d("100"), AddItemOptions{}, t0)
	_, err := ApplyCoupon(c, percentCoupon("T", "10", domain.TargetedScope("nope")), t0)
	require.ErrorIs(t, err, domain.ErrCouponNotApplicable)

	var ce *domain.CartError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "user-1", ce.OwnerID)
	assert.Equal(t, "T", ce.CouponCode)
	assert.Empty(t, c.AppliedCoupons)
}

func TestApplyCoupon_AdditiveStacking(t *testing.T) {
	c, _ := AddItem(newCart(), "A", d("100"), AddItemOptions{}, t0)
	c, _ = ApplyCoupon(c, percentCoupon("H1", "50", domain.GlobalScope()), t0)
	c, _ = ApplyCoupon(c, percentCoupon("H2", "50", domain.GlobalScope()), t0)
	assertTotals(t, c, "100", "0", "100")
	assertInvariants(t, c)
}

func TestTargetedCoupon_StampsAndIsolation(t *testing.T) {
	c, _ := AddItem(newCart(), "X", d("40"), AddItemOptions{}, t0)
	c, _ = AddItem(c, "Y", d("60"), AddItemOptions{}, t0)
	c, err := ApplyCoupon(c, percentCoupon("XONLY", "50", domain.TargetedScope("X")), t0)
	require.NoError(t, err)

	assert.Equal(t, "XONLY", c.Items[0].CouponCode)
	assert.Empty(t, c.Items[1].CouponCode)
	assertTotals(t, c, "100", "80", "20")

	c = RemoveCoupon(c, "XONLY", t0)
	assert.Empty(t, c.Items[0].CouponCode)
	assertTotals(t, c, "100", "100", "0")
}

func TestRemoveCoupon_AbsentIsNoop(t *testing.T) {
	c, _ := AddItem(newCart(), "A", d("5"), AddItemOptions{}, t0)
	next := RemoveCoupon(c, "MISSING", t0.Add(time.Hour))
	assert.Equal(t, c.LastUpdated, next.LastUpdated)
	assertTotals(t, next, "5", "5", "0")
}

func TestSavedForLater_RoundTrip(t *testing.T) {
	c, _ := AddItem(newCart(), "A", d("50"), listPrice("60"), t0)
	c, _ = AddItem(c, "B", d("30"), AddItemOptions{}, t0)
	c, _ = ApplyCoupon(c, percentCoupon("SAVE10", "10", domain.GlobalScope()), t0)
	before := c

	c, err := MoveToSavedForLater(c, "A", "too pricey", t0.Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, c.SavedForLater, 1)
	assert.True(t, d("60").Equal(c.SavedForLater[0].OriginalPrice))
	assert.Equal(t, "too pricey", c.SavedForLater[0].Reason)
	assertTotals(t, c, "30", "27", "3")
	assertInvariants(t, c)

	c, err = MoveFromSavedForLater(c, "A", t0.Add(2*time.Minute))
	require.NoError(t, err)
	assert.Empty(t, c.SavedForLater)
	require.Len(t, c.Items, 2)
	restored := c.Items[c.ItemIndex("A")]
	assert.True(t, d("60").Equal(restored.UnitPrice))
	assert.True(t, d("60").Equal(restored.ListPrice))
	assertTotals(t, c, before.TotalOriginalAmount.String(), before.TotalAmount.String(), before.TotalDiscount.String())
}

func TestSavedForLater_NotFound(t *testing.T) {
	_, err := MoveToSavedForLater(newCart(), "A", "", t0)
	assert.ErrorIs(t, err, domain.ErrItemNotFound)
	_, err = MoveFromSavedForLater(newCart(), "A", t0)
	assert.ErrorIs(t, err, domain.ErrItemNotFound)
	_, err = RemoveSavedItem(newCart(), "A", t0)
	assert.ErrorIs(t, err, domain.ErrItemNotFound)
}

func TestRemoveSavedItem(t *testing.T) {
	c, _ := AddItem(newCart(), "A", d("5"), AddItemOptions{}, t0)
	c, _ = MoveToSavedForLater(c, "A", "", t0)
	c, err := RemoveSavedItem(c, "A", t0)
	require.NoError(t, err)
	assert.Empty(t, c.SavedForLater)
}

func TestClear_KeepsSavedForLater(t *testing.T) {
	c, _ := AddItem(newCart(), "A", d("5"), AddItemOptions{}, t0)
	c, _ = AddItem(c, "B", d("7"), AddItemOptions{}, t0)
	c, _ = MoveToSavedForLater(c, "B", "", t0)
	c, _ = ApplyCoupon(c, fixedCoupon("F", "1"), t0)

	c = Clear(c, t0)
	assert.Empty(t, c.Items)
	assert.Empty(t, c.AppliedCoupons)
	assert.Len(t, c.SavedForLater, 1)
	assertTotals(t, c, "0", "0", "0")
}

func TestEmptyCart_CouponsStayAttached(t *testing.T) {
	c, _ := AddItem(newCart(), "A", d("5"), AddItemOptions{}, t0)
	c, _ = ApplyCoupon(c, fixedCoupon("F", "2"), t0)
	c, err := RemoveItem(c, "A", t0)
	require.NoError(t, err)
	assert.Len(t, c.AppliedCoupons, 1)
	assertTotals(t, c, "0", "0", "0")
	assertInvariants(t, c)
}

func TestMarkCheckoutAttempt(t *testing.T) {
	c, _ := AddItem(newCart(), "A", d("5"), AddItemOptions{}, t0)
	at := t0.Add(time.Hour)
	next := MarkCheckoutAttempt(c, at)
	assert.Equal(t, 1, next.CheckoutAttempts)
	require.NotNil(t, next.LastCheckoutAttempt)
	assert.Equal(t, at, *next.LastCheckoutAttempt)
	assert.Equal(t, c.LastUpdated, next.LastUpdated)
	assert.True(t, c.TotalAmount.Equal(next.TotalAmount))
	assert.Equal(t, 0, c.CheckoutAttempts)
}

func TestBeginCheckout(t *testing.T) {
	_, _, err := BeginCheckout(newCart(), t0)
	assert.ErrorIs(t, err, domain.ErrEmptyCart)

	c, _ := AddItem(newCart(), "A", d("5"), AddItemOptions{}, t0)
	next, snap, err := BeginCheckout(c, t0)
	require.NoError(t, err)
	assert.Equal(t, 1, next.CheckoutAttempts)
	assert.True(t, d("5").Equal(snap.TotalAmount))
	assert.Len(t, snap.Items, 1)
}

func TestCompleteCheckout(t *testing.T) {
	c, _ := AddItem(newCart(), "A", d("5"), AddItemOptions{}, t0)
	abandoned := t0.Add(25 * time.Hour)
	c.AbandonedAt = &abandoned
	c.RecoveryNotificationSent = true

	done := CompleteCheckout(c, t0.Add(26*time.Hour))
	assert.False(t, done.IsActive)
	assert.Empty(t, done.Items)
	assert.Nil(t, done.AbandonedAt)
	assert.False(t, done.RecoveryNotificationSent)
}

func TestArchive_KeepsContents(t *testing.T) {
	c, _ := AddItem(newCart(), "A", d("5"), AddItemOptions{}, t0)
	archived := Archive(c, t0)
	assert.False(t, archived.IsActive)
	assert.Len(t, archived.Items, 1)
	assert.True(t, c.IsActive)
}

func TestCheckCurrency(t *testing.T) {
	c := newCart()
	assert.NoError(t, CheckCurrency(c, "A", money.USD))
	assert.NoError(t, CheckCurrency(c, "A", ""))
	assert.ErrorIs(t, CheckCurrency(c, "A", money.EUR), domain.ErrCurrencyMismatch)
}

func TestInvariants_MutationSequence(t *testing.T) {
	c := newCart()
	steps := []func(domain.Cart) (domain.Cart, error){
		func(c domain.Cart) (domain.Cart, error) { return AddItem(c, "A", d("19.99"), listPrice("24.99"), t0) },
		func(c domain.Cart) (domain.Cart, error) { return AddItem(c, "B", d("5"), AddItemOptions{}, t0) },
		func(c domain.Cart) (domain.Cart, error) {
			return ApplyCoupon(c, percentCoupon("P15", "15", domain.GlobalScope()), t0)
		},
		func(c domain.Cart) (domain.Cart, error) { return ApplyCoupon(c, fixedCoupon("F40", "40"), t0) },
		func(c domain.Cart) (domain.Cart, error) { return MoveToSavedForLater(c, "A", "later", t0) },
		func(c domain.Cart) (domain.Cart, error) {
			return ApplyCoupon(c, percentCoupon("B50", "50", domain.TargetedScope("B")), t0)
		},
		func(c domain.Cart) (domain.Cart, error) { return MoveFromSavedForLater(c, "A", t0) },
		func(c domain.Cart) (domain.Cart, error) { return RemoveCoupon(c, "F40", t0), nil },
		func(c domain.Cart) (domain.Cart, error) { return AddItem(c, "A", d("1"), AddItemOptions{}, t0) },
		func(c domain.Cart) (domain.Cart, error) { return RemoveItem(c, "B", t0) },
		func(c domain.Cart) (domain.Cart, error) { return Clear(c, t0), nil },
	}
	for i, step := range steps {
		next, err := step(c)
		require.NoError(t, err, "step %d", i)
		assertInvariants(t, next)
		c = next
	}
}

func ptr(v decimal.Decimal) *decimal.Decimal {
	return &v
}
