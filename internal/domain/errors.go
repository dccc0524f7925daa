package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Failure kinds. Match them with errors.Is; the concrete value is a *CartError carrying context.
var (
	ErrItemNotFound        = errors.New("item not found")
	ErrItemUnavailable     = errors.New("item unavailable")
	ErrCouponExpired       = errors.New("coupon expired")
	ErrCouponNotApplicable = errors.New("coupon not applicable")
	ErrInvalidCoupon       = errors.New("invalid coupon")
	ErrCartExpired         = errors.New("cart expired")
	ErrCartNotFound        = errors.New("cart not found")
	ErrDuplicateOwner      = errors.New("owner already has an active cart")
	ErrInvalidPrice        = errors.New("invalid price")
	ErrCurrencyMismatch    = errors.New("currency mismatch")
	ErrEmptyCart           = errors.New("cart is empty, nothing to checkout")
)

// CartError classifies a failure and names what it was about so callers can render a message.
type CartError struct {
	Kind       error
	OwnerID    string
	ItemID     string
	CouponCode string
	Detail     string
}

func (e *CartError) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.OwnerID != "" {
		fmt.Fprintf(&b, " owner=%s", e.OwnerID)
	}
	if e.ItemID != "" {
		fmt.Fprintf(&b, " item=%s", e.ItemID)
	}
	if e.CouponCode != "" {
		fmt.Fprintf(&b, " coupon=%s", e.CouponCode)
	}
	if e.Detail != "" {
		fmt.Fprintf(&b, ": %s", e.Detail)
	}
	return b.String()
}

func (e *CartError) Unwrap() error {
	return e.Kind
}

func ItemError(kind error, ownerID, itemID string) *CartError {
	return &CartError{Kind: kind, OwnerID: ownerID, ItemID: itemID}
}

func CouponError(kind error, ownerID, code, detail string) *CartError {
	return &CartError{Kind: kind, OwnerID: ownerID, CouponCode: code, Detail: detail}
}

func CartErrorf(kind error, ownerID, format string, args ...interface{}) *CartError {
	return &CartError{Kind: kind, OwnerID: ownerID, Detail: fmt.Sprintf(format, args...)}
}
