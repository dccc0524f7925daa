package coupon

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/fjod/go_cart/cart-engine/internal/domain"
)

var ErrUnknownCoupon = errors.New("unknown coupon code")

// Directory resolves a buyer-entered code to the coupon definition.
type Directory interface {
	Lookup(ctx context.Context, code string) (domain.AppliedCoupon, error)
}

// StaticDirectory serves coupon definitions loaded from configuration.
type StaticDirectory struct {
	mu      sync.RWMutex
	coupons map[string]domain.AppliedCoupon
}

func NewStaticDirectory(coupons ...domain.AppliedCoupon) *StaticDirectory {
	d := &StaticDirectory{coupons: make(map[string]domain.AppliedCoupon, len(coupons))}
	for _, c := range coupons {
		d.Put(c)
	}
	return d
}

// Put adds or replaces a definition. Codes are case-insensitive.
func (d *StaticDirectory) Put(c domain.AppliedCoupon) {
	d.mu.Lock()
	defer d.mu.Unlock()
	c.Code = normalize(c.Code)
	d.coupons[c.Code] = c.Clone()
}

func (d *StaticDirectory) Lookup(_ context.Context, code string) (domain.AppliedCoupon, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	c, ok := d.coupons[normalize(code)]
	if !ok {
		return domain.AppliedCoupon{}, fmt.Errorf("%w: %s", ErrUnknownCoupon, code)
	}
	return c.Clone(), nil
}

func normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
