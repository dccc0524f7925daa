// Package notify delivers abandoned-cart recovery notices. Delivery is best effort: the
// scheduler marks a notice as sent before handing it over and only logs failures.
package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/fjod/go_cart/cart-engine/internal/domain"
	"github.com/fjod/go_cart/cart-engine/internal/logging"
	"github.com/fjod/go_cart/cart-engine/internal/money"
	"github.com/shopspring/decimal"
)

// Recovery is what the buyer is reminded of.
type Recovery struct {
	OwnerID     string            `json:"owner_id"`
	CartID      string            `json:"cart_id"`
	Items       []domain.CartItem `json:"items"`
	TotalAmount decimal.Decimal   `json:"total_amount"`
	Currency    money.Currency    `json:"currency"`
	AbandonedAt time.Time         `json:"abandoned_at"`
}

func NewRecovery(c domain.Cart) Recovery {
	r := Recovery{
		OwnerID:     c.OwnerID,
		CartID:      c.ID,
		Items:       append([]domain.CartItem{}, c.Items...),
		TotalAmount: c.TotalAmount,
		Currency:    c.Currency,
	}
	if c.AbandonedAt != nil {
		r.AbandonedAt = *c.AbandonedAt
	}
	return r
}

type Notifier interface {
	NotifyAbandoned(ctx context.Context, r Recovery) error
}

// LogNotifier only writes the notice to the log. It is the default when no channel is set up.
type LogNotifier struct {
	log *slog.Logger
}

func NewLogNotifier() *LogNotifier {
	return &LogNotifier{log: logging.New("notify")}
}

func (n *LogNotifier) NotifyAbandoned(_ context.Context, r Recovery) error {
	n.log.Info("abandoned cart",
		"owner_id", r.OwnerID,
		"cart_id", r.CartID,
		"items", len(r.Items),
		"total_amount", r.TotalAmount.StringFixed(money.Scale),
		"currency", r.Currency)
	return nil
}
