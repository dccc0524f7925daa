package domain

import (
	"time"

	"github.com/fjod/go_cart/cart-engine/internal/money"
	"github.com/shopspring/decimal"
)

type CheckoutSnapshotItem struct {
	ItemID        string          `json:"item_id"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	ListPrice     decimal.Decimal `json:"list_price"`
	CouponCode    string          `json:"coupon_code,omitempty"`
	IsGift        bool            `json:"is_gift"`
	GiftRecipient string          `json:"gift_recipient,omitempty"`
}

// CheckoutSnapshot is what the checkout collaborator receives when checkout begins.
type CheckoutSnapshot struct {
	CartID              string                 `json:"cart_id"`
	OwnerID             string                 `json:"owner_id"`
	Items               []CheckoutSnapshotItem `json:"items"`
	CouponCodes         []string               `json:"coupon_codes"`
	TotalOriginalAmount decimal.Decimal        `json:"total_original_amount"`
	TotalDiscount       decimal.Decimal        `json:"total_discount"`
	TotalAmount         decimal.Decimal        `json:"total_amount"`
	Currency            money.Currency         `json:"currency"`
	CapturedAt          time.Time              `json:"captured_at"`
}

func NewCheckoutSnapshot(c Cart, now time.Time) CheckoutSnapshot {
	s := CheckoutSnapshot{
		CartID:              c.ID,
		OwnerID:             c.OwnerID,
		Items:               make([]CheckoutSnapshotItem, 0, len(c.Items)),
		CouponCodes:         make([]string, 0, len(c.AppliedCoupons)),
		TotalOriginalAmount: c.TotalOriginalAmount,
		TotalDiscount:       c.TotalDiscount,
		TotalAmount:         c.TotalAmount,
		Currency:            c.Currency,
		CapturedAt:          now,
	}
	for _, it := range c.Items {
		s.Items = append(s.Items, CheckoutSnapshotItem{
			ItemID:        it.ItemID,
			UnitPrice:     it.UnitPrice,
			ListPrice:     it.ListPrice,
			CouponCode:    it.CouponCode,
			IsGift:        it.IsGift,
			GiftRecipient: it.GiftRecipient,
		})
	}
	for _, cp := range c.AppliedCoupons {
		s.CouponCodes = append(s.CouponCodes, cp.Code)
	}
	return s
}
