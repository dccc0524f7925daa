package domain

import (
	"time"

	"github.com/fjod/go_cart/cart-engine/internal/money"
	"github.com/shopspring/decimal"
)

const (
	// ExpiryWindow is how long a cart stays usable after it was created.
	ExpiryWindow = 30 * 24 * time.Hour

	// AbandonAfter is the buyer inactivity after which a non-empty cart counts as abandoned.
	AbandonAfter = 24 * time.Hour
)

// Cart is the aggregate root: one active cart per owner.
// Totals are derived from Items and AppliedCoupons and are never set by callers.
type Cart struct {
	ID             string              `json:"id"`
	OwnerID        string              `json:"owner_id"`
	Items          []CartItem          `json:"items"`
	SavedForLater  []SavedForLaterItem `json:"saved_for_later"`
	AppliedCoupons []AppliedCoupon     `json:"applied_coupons"`

	TotalOriginalAmount decimal.Decimal `json:"total_original_amount"`
	TotalAmount         decimal.Decimal `json:"total_amount"`
	TotalDiscount       decimal.Decimal `json:"total_discount"`
	Currency            money.Currency  `json:"currency"`

	CreatedAt   time.Time `json:"created_at"`
	LastUpdated time.Time `json:"last_updated"`
	IsActive    bool      `json:"is_active"`

	CheckoutAttempts    int        `json:"checkout_attempts"`
	LastCheckoutAttempt *time.Time `json:"last_checkout_attempt,omitempty"`

	AbandonedAt                *time.Time `json:"abandoned_at,omitempty"`
	RecoveryNotificationSent   bool       `json:"recovery_notification_sent"`
	RecoveryNotificationSentAt *time.Time `json:"recovery_notification_sent_at,omitempty"`

	// Version is bumped by the repository on every successful write.
	Version int64 `json:"version"`
}

type CartItem struct {
	ItemID        string          `json:"item_id"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	ListPrice     decimal.Decimal `json:"list_price"`
	AddedAt       time.Time       `json:"added_at"`
	Priority      int             `json:"priority"`
	CouponCode    string          `json:"coupon_code,omitempty"`
	IsGift        bool            `json:"is_gift"`
	GiftRecipient string          `json:"gift_recipient,omitempty"`
}

type SavedForLaterItem struct {
	ItemID        string          `json:"item_id"`
	SavedAt       time.Time       `json:"saved_at"`
	OriginalPrice decimal.Decimal `json:"original_price"`
	Reason        string          `json:"reason,omitempty"`
}

// NewCart returns an empty active cart. It is only persisted once the first item lands in it.
func NewCart(id, ownerID string, currency money.Currency, now time.Time) Cart {
	return Cart{
		ID:                  id,
		OwnerID:             ownerID,
		Items:               []CartItem{},
		SavedForLater:       []SavedForLaterItem{},
		AppliedCoupons:      []AppliedCoupon{},
		TotalOriginalAmount: decimal.Zero,
		TotalAmount:         decimal.Zero,
		TotalDiscount:       decimal.Zero,
		Currency:            currency,
		CreatedAt:           now,
		LastUpdated:         now,
		IsActive:            true,
	}
}

// ExpiresAt is fixed policy: creation time plus ExpiryWindow.
func (c Cart) ExpiresAt() time.Time {
	return c.CreatedAt.Add(ExpiryWindow)
}

func (c Cart) IsExpired(now time.Time) bool {
	return c.ExpiresAt().Before(now)
}

func (c Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// ItemIndex returns the position of itemID in Items or -1.
func (c Cart) ItemIndex(itemID string) int {
	for i := range c.Items {
		if c.Items[i].ItemID == itemID {
			return i
		}
	}
	return -1
}

// SavedIndex returns the position of itemID in SavedForLater or -1.
func (c Cart) SavedIndex(itemID string) int {
	for i := range c.SavedForLater {
		if c.SavedForLater[i].ItemID == itemID {
			return i
		}
	}
	return -1
}

// CouponIndex returns the position of code in AppliedCoupons or -1.
func (c Cart) CouponIndex(code string) int {
	for i := range c.AppliedCoupons {
		if c.AppliedCoupons[i].Code == code {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy so mutations never alias the caller's slices or timestamps.
func (c Cart) Clone() Cart {
	out := c
	out.Items = append([]CartItem{}, c.Items...)
	out.SavedForLater = append([]SavedForLaterItem{}, c.SavedForLater...)
	out.AppliedCoupons = make([]AppliedCoupon, len(c.AppliedCoupons))
	for i, cp := range c.AppliedCoupons {
		out.AppliedCoupons[i] = cp.Clone()
	}
	out.LastCheckoutAttempt = cloneTime(c.LastCheckoutAttempt)
	out.AbandonedAt = cloneTime(c.AbandonedAt)
	out.RecoveryNotificationSentAt = cloneTime(c.RecoveryNotificationSentAt)
	return out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
