package repository

import (
	"fmt"
	"time"

	"github.com/fjod/go_cart/cart-engine/internal/domain"
	"github.com/fjod/go_cart/cart-engine/internal/money"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// cartDocument is the stored shape of a cart. Amounts are Decimal128 so they stay exact in
// the database and remain queryable.
type cartDocument struct {
	ID             string           `bson:"_id"`
	OwnerID        string           `bson:"owner_id"`
	Items          []itemDocument   `bson:"items"`
	SavedForLater  []savedDocument  `bson:"saved_for_later"`
	AppliedCoupons []couponDocument `bson:"applied_coupons"`

	TotalOriginalAmount primitive.Decimal128 `bson:"total_original_amount"`
	TotalAmount         primitive.Decimal128 `bson:"total_amount"`
	TotalDiscount       primitive.Decimal128 `bson:"total_discount"`
	Currency            string               `bson:"currency"`

	CreatedAt   time.Time `bson:"created_at"`
	LastUpdated time.Time `bson:"last_updated"`
	ExpiresAt   time.Time `bson:"expires_at"`
	IsActive    bool      `bson:"is_active"`

	CheckoutAttempts    int        `bson:"checkout_attempts"`
	LastCheckoutAttempt *time.Time `bson:"last_checkout_attempt,omitempty"`

	AbandonedAt                *time.Time `bson:"abandoned_at,omitempty"`
	RecoveryNotificationSent   bool       `bson:"recovery_notification_sent"`
	RecoveryNotificationSentAt *time.Time `bson:"recovery_notification_sent_at,omitempty"`

	Version int64 `bson:"version"`
}

type itemDocument struct {
	ItemID        string               `bson:"item_id"`
	UnitPrice     primitive.Decimal128 `bson:"unit_price"`
	ListPrice     primitive.Decimal128 `bson:"list_price"`
	AddedAt       time.Time            `bson:"added_at"`
	Priority      int                  `bson:"priority"`
	CouponCode    string               `bson:"coupon_code,omitempty"`
	IsGift        bool                 `bson:"is_gift"`
	GiftRecipient string               `bson:"gift_recipient,omitempty"`
}

type savedDocument struct {
	ItemID        string               `bson:"item_id"`
	SavedAt       time.Time            `bson:"saved_at"`
	OriginalPrice primitive.Decimal128 `bson:"original_price"`
	Reason        string               `bson:"reason,omitempty"`
}

type couponDocument struct {
	Code            string                `bson:"code"`
	DiscountType    string                `bson:"discount_type"`
	DiscountValue   primitive.Decimal128  `bson:"discount_value"`
	ScopeKind       string                `bson:"scope_kind"`
	ScopeItemIDs    []string              `bson:"scope_item_ids,omitempty"`
	MinimumAmount   *primitive.Decimal128 `bson:"minimum_amount,omitempty"`
	MaximumDiscount *primitive.Decimal128 `bson:"maximum_discount,omitempty"`
	AppliedAt       time.Time             `bson:"applied_at"`
	ValidFrom       *time.Time            `bson:"valid_from,omitempty"`
	ValidUntil      *time.Time            `bson:"valid_until,omitempty"`
}

// amountEncoder converts amounts to Decimal128 and keeps the first failure, so toDocument
// can build the whole document before checking once.
type amountEncoder struct {
	err error
}

func (e *amountEncoder) dec(d decimal.Decimal) primitive.Decimal128 {
	v, err := primitive.ParseDecimal128(d.String())
	if err != nil && e.err == nil {
		e.err = fmt.Errorf("convert %s to decimal128: %w", d, err)
	}
	return v
}

func (e *amountEncoder) decPtr(d *decimal.Decimal) *primitive.Decimal128 {
	if d == nil {
		return nil
	}
	v := e.dec(*d)
	return &v
}

func fromDecimal128(v primitive.Decimal128) (decimal.Decimal, error) {
	return decimal.NewFromString(v.String())
}

func fromDecimal128Ptr(v *primitive.Decimal128) (*decimal.Decimal, error) {
	if v == nil {
		return nil, nil
	}
	d, err := fromDecimal128(*v)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func toDocument(c *domain.Cart) (cartDocument, error) {
	var enc amountEncoder
	doc := cartDocument{
		ID:                         c.ID,
		OwnerID:                    c.OwnerID,
		Items:                      make([]itemDocument, 0, len(c.Items)),
		SavedForLater:              make([]savedDocument, 0, len(c.SavedForLater)),
		AppliedCoupons:             make([]couponDocument, 0, len(c.AppliedCoupons)),
		TotalOriginalAmount:        enc.dec(c.TotalOriginalAmount),
		TotalAmount:                enc.dec(c.TotalAmount),
		TotalDiscount:              enc.dec(c.TotalDiscount),
		Currency:                   c.Currency.String(),
		CreatedAt:                  c.CreatedAt,
		LastUpdated:                c.LastUpdated,
		ExpiresAt:                  c.ExpiresAt(),
		IsActive:                   c.IsActive,
		CheckoutAttempts:           c.CheckoutAttempts,
		LastCheckoutAttempt:        c.LastCheckoutAttempt,
		AbandonedAt:                c.AbandonedAt,
		RecoveryNotificationSent:   c.RecoveryNotificationSent,
		RecoveryNotificationSentAt: c.RecoveryNotificationSentAt,
		Version:                    c.Version,
	}
	for _, it := range c.Items {
		doc.Items = append(doc.Items, itemDocument{
			ItemID:        it.ItemID,
			UnitPrice:     enc.dec(it.UnitPrice),
			ListPrice:     enc.dec(it.ListPrice),
			AddedAt:       it.AddedAt,
			Priority:      it.Priority,
			CouponCode:    it.CouponCode,
			IsGift:        it.IsGift,
			GiftRecipient: it.GiftRecipient,
		})
	}
	for _, s := range c.SavedForLater {
		doc.SavedForLater = append(doc.SavedForLater, savedDocument{
			ItemID:        s.ItemID,
			SavedAt:       s.SavedAt,
			OriginalPrice: enc.dec(s.OriginalPrice),
			Reason:        s.Reason,
		})
	}
	for _, cp := range c.AppliedCoupons {
		doc.AppliedCoupons = append(doc.AppliedCoupons, couponDocument{
			Code:            cp.Code,
			DiscountType:    string(cp.DiscountType),
			DiscountValue:   enc.dec(cp.DiscountValue),
			ScopeKind:       string(cp.Scope.Kind),
			ScopeItemIDs:    cp.Scope.ItemIDs,
			MinimumAmount:   enc.decPtr(cp.MinimumAmount),
			MaximumDiscount: enc.decPtr(cp.MaximumDiscount),
			AppliedAt:       cp.AppliedAt,
			ValidFrom:       cp.ValidFrom,
			ValidUntil:      cp.ValidUntil,
		})
	}
	if enc.err != nil {
		return cartDocument{}, enc.err
	}
	return doc, nil
}

func (doc cartDocument) toDomain() (*domain.Cart, error) {
	var err error
	c := &domain.Cart{
		ID:                         doc.ID,
		OwnerID:                    doc.OwnerID,
		Items:                      make([]domain.CartItem, 0, len(doc.Items)),
		SavedForLater:              make([]domain.SavedForLaterItem, 0, len(doc.SavedForLater)),
		AppliedCoupons:             make([]domain.AppliedCoupon, 0, len(doc.AppliedCoupons)),
		Currency:                   money.Currency(doc.Currency),
		CreatedAt:                  doc.CreatedAt,
		LastUpdated:                doc.LastUpdated,
		IsActive:                   doc.IsActive,
		CheckoutAttempts:           doc.CheckoutAttempts,
		LastCheckoutAttempt:        doc.LastCheckoutAttempt,
		AbandonedAt:                doc.AbandonedAt,
		RecoveryNotificationSent:   doc.RecoveryNotificationSent,
		RecoveryNotificationSentAt: doc.RecoveryNotificationSentAt,
		Version:                    doc.Version,
	}
	if c.TotalOriginalAmount, err = fromDecimal128(doc.TotalOriginalAmount); err != nil {
		return nil, fmt.Errorf("decode total_original_amount: %w", err)
	}
	if c.TotalAmount, err = fromDecimal128(doc.TotalAmount); err != nil {
		return nil, fmt.Errorf("decode total_amount: %w", err)
	}
	if c.TotalDiscount, err = fromDecimal128(doc.TotalDiscount); err != nil {
		return nil, fmt.Errorf("decode total_discount: %w", err)
	}

	for _, it := range doc.Items {
		item := domain.CartItem{
			ItemID:        it.ItemID,
			AddedAt:       it.AddedAt,
			Priority:      it.Priority,
			CouponCode:    it.CouponCode,
			IsGift:        it.IsGift,
			GiftRecipient: it.GiftRecipient,
		}
		if item.UnitPrice, err = fromDecimal128(it.UnitPrice); err != nil {
			return nil, fmt.Errorf("decode unit_price of %s: %w", it.ItemID, err)
		}
		if item.ListPrice, err = fromDecimal128(it.ListPrice); err != nil {
			return nil, fmt.Errorf("decode list_price of %s: %w", it.ItemID, err)
		}
		c.Items = append(c.Items, item)
	}
	for _, s := range doc.SavedForLater {
		saved := domain.SavedForLaterItem{ItemID: s.ItemID, SavedAt: s.SavedAt, Reason: s.Reason}
		if saved.OriginalPrice, err = fromDecimal128(s.OriginalPrice); err != nil {
			return nil, fmt.Errorf("decode original_price of %s: %w", s.ItemID, err)
		}
		c.SavedForLater = append(c.SavedForLater, saved)
	}
	for _, cd := range doc.AppliedCoupons {
		cp := domain.AppliedCoupon{
			Code:         cd.Code,
			DiscountType: domain.DiscountType(cd.DiscountType),
			Scope:        domain.CouponScope{Kind: domain.ScopeKind(cd.ScopeKind), ItemIDs: cd.ScopeItemIDs},
			AppliedAt:    cd.AppliedAt,
			ValidFrom:    cd.ValidFrom,
			ValidUntil:   cd.ValidUntil,
		}
		if cp.DiscountValue, err = fromDecimal128(cd.DiscountValue); err != nil {
			return nil, fmt.Errorf("decode discount_value of %s: %w", cd.Code, err)
		}
		if cp.MinimumAmount, err = fromDecimal128Ptr(cd.MinimumAmount); err != nil {
			return nil, fmt.Errorf("decode minimum_amount of %s: %w", cd.Code, err)
		}
		if cp.MaximumDiscount, err = fromDecimal128Ptr(cd.MaximumDiscount); err != nil {
			return nil, fmt.Errorf("decode maximum_discount of %s: %w", cd.Code, err)
		}
		c.AppliedCoupons = append(c.AppliedCoupons, cp)
	}
	return c, nil
}
