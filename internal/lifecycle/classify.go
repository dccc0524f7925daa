// Package lifecycle decides and drives the time-based state of carts: abandonment,
// recovery notification, expiry and cleanup.
package lifecycle

import (
	"time"

	"github.com/fjod/go_cart/cart-engine/internal/domain"
)

// Decision is what is due for a cart at a given instant.
type Decision struct {
	MarkAbandoned bool
	SendRecovery  bool
	Expired       bool
	Deletable     bool
}

// NeedsWrite reports whether the decision changes the stored cart.
func (d Decision) NeedsWrite() bool {
	return d.MarkAbandoned || d.SendRecovery
}

// Classify is pure: the same cart and instant always give the same decision.
func Classify(c domain.Cart, now time.Time) Decision {
	d := Decision{Expired: c.IsExpired(now)}
	if !c.IsActive {
		d.Deletable = d.Expired
		return d
	}
	if c.IsEmpty() {
		return d
	}

	abandoned := c.AbandonedAt != nil
	if !abandoned && now.Sub(c.LastUpdated) > domain.AbandonAfter {
		d.MarkAbandoned = true
		abandoned = true
	}
	d.SendRecovery = abandoned && !c.RecoveryNotificationSent
	return d
}

// Apply records d on a copy of c. LastUpdated is buyer activity and is left alone.
func Apply(c domain.Cart, d Decision, now time.Time) domain.Cart {
	next := c.Clone()
	if d.MarkAbandoned && next.AbandonedAt == nil {
		at := now
		next.AbandonedAt = &at
	}
	if d.SendRecovery && !next.RecoveryNotificationSent {
		at := now
		next.RecoveryNotificationSent = true
		next.RecoveryNotificationSentAt = &at
	}
	return next
}
