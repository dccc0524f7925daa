package cart

import (
	"time"

	"github.com/fjod/go_cart/cart-engine/internal/domain"
)

// MoveToSavedForLater takes itemID out of the purchase and parks it with its list price.
func MoveToSavedForLater(c domain.Cart, itemID, reason string, now time.Time) (domain.Cart, error) {
	i := c.ItemIndex(itemID)
	if i < 0 {
		return domain.Cart{}, domain.ItemError(domain.ErrItemNotFound, c.OwnerID, itemID)
	}
	next := c.Clone()
	moved := next.Items[i]
	next.Items = append(next.Items[:i], next.Items[i+1:]...)

	saved := domain.SavedForLaterItem{
		ItemID:        itemID,
		SavedAt:       now,
		OriginalPrice: moved.ListPrice,
		Reason:        reason,
	}
	if j := next.SavedIndex(itemID); j >= 0 {
		next.SavedForLater[j] = saved
	} else {
		next.SavedForLater = append(next.SavedForLater, saved)
	}
	touch(&next, now)
	return next, nil
}

// MoveFromSavedForLater puts a parked item back at its saved price. Prices are not refreshed
// from the catalog here.
func MoveFromSavedForLater(c domain.Cart, itemID string, now time.Time) (domain.Cart, error) {
	if err := ensureUsable(c, now); err != nil {
		return domain.Cart{}, err
	}
	j := c.SavedIndex(itemID)
	if j < 0 {
		return domain.Cart{}, domain.ItemError(domain.ErrItemNotFound, c.OwnerID, itemID)
	}
	saved := c.SavedForLater[j]

	next := c.Clone()
	next.SavedForLater = append(next.SavedForLater[:j], next.SavedForLater[j+1:]...)
	restored := domain.CartItem{
		ItemID:    itemID,
		UnitPrice: saved.OriginalPrice,
		ListPrice: saved.OriginalPrice,
		AddedAt:   now,
	}
	if i := next.ItemIndex(itemID); i >= 0 {
		restored.AddedAt = next.Items[i].AddedAt
		restored.Priority = next.Items[i].Priority
		restored.IsGift = next.Items[i].IsGift
		restored.GiftRecipient = next.Items[i].GiftRecipient
		next.Items[i] = restored
	} else {
		next.Items = append(next.Items, restored)
	}
	touch(&next, now)
	return next, nil
}

// RemoveSavedItem discards a parked item for good.
func RemoveSavedItem(c domain.Cart, itemID string, now time.Time) (domain.Cart, error) {
	j := c.SavedIndex(itemID)
	if j < 0 {
		return domain.Cart{}, domain.ItemError(domain.ErrItemNotFound, c.OwnerID, itemID)
	}
	next := c.Clone()
	next.SavedForLater = append(next.SavedForLater[:j], next.SavedForLater[j+1:]...)
	touch(&next, now)
	return next, nil
}
