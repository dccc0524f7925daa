package cart

import (
	"time"

	"github.com/fjod/go_cart/cart-engine/internal/domain"
	"github.com/shopspring/decimal"
)

// AddItemOptions carries the optional metadata of add_item.
type AddItemOptions struct {
	// ListPrice defaults to the unit price when nil.
	ListPrice     *decimal.Decimal
	Priority      int
	IsGift        bool
	GiftRecipient string
}

// AddItem stages itemID at unitPrice. Adding an item already in the cart replaces its
// price and metadata in place.
func AddItem(c domain.Cart, itemID string, unitPrice decimal.Decimal, opts AddItemOptions, now time.Time) (domain.Cart, error) {
	if err := ensureUsable(c, now); err != nil {
		return domain.Cart{}, err
	}
	if itemID == "" {
		return domain.Cart{}, domain.ItemError(domain.ErrItemNotFound, c.OwnerID, itemID)
	}
	listPrice := unitPrice
	if opts.ListPrice != nil {
		listPrice = *opts.ListPrice
	}
	if err := validatePrice(c.OwnerID, itemID, unitPrice, listPrice); err != nil {
		return domain.Cart{}, err
	}

	next := c.Clone()
	if i := next.ItemIndex(itemID); i >= 0 {
		it := &next.Items[i]
		it.UnitPrice = unitPrice
		it.ListPrice = listPrice
		it.Priority = opts.Priority
		it.IsGift = opts.IsGift
		it.GiftRecipient = opts.GiftRecipient
	} else {
		next.Items = append(next.Items, domain.CartItem{
			ItemID:        itemID,
			UnitPrice:     unitPrice,
			ListPrice:     listPrice,
			AddedAt:       now,
			Priority:      opts.Priority,
			IsGift:        opts.IsGift,
			GiftRecipient: opts.GiftRecipient,
		})
	}
	touch(&next, now)
	return next, nil
}

// RemoveItem drops itemID from the active items.
func RemoveItem(c domain.Cart, itemID string, now time.Time) (domain.Cart, error) {
	i := c.ItemIndex(itemID)
	if i < 0 {
		return domain.Cart{}, domain.ItemError(domain.ErrItemNotFound, c.OwnerID, itemID)
	}
	next := c.Clone()
	next.Items = append(next.Items[:i], next.Items[i+1:]...)
	touch(&next, now)
	return next, nil
}

// Clear empties items and coupons. Saved-for-later items stay.
func Clear(c domain.Cart, now time.Time) domain.Cart {
	next := c.Clone()
	next.Items = []domain.CartItem{}
	next.AppliedCoupons = []domain.AppliedCoupon{}
	touch(&next, now)
	return next
}
