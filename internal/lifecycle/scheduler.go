package lifecycle

import (
	"context"
	"log/slog"
	"time"

	"github.com/fjod/go_cart/cart-engine/internal/domain"
	"github.com/fjod/go_cart/cart-engine/internal/logging"
	"github.com/fjod/go_cart/cart-engine/internal/notify"
	"github.com/fjod/go_cart/cart-engine/internal/service"
)

// Store is the slice of the cart service the scheduler works through.
type Store interface {
	ActiveCarts(ctx context.Context) ([]domain.Cart, error)
	ApplyTransition(ctx context.Context, ownerID, cartID string, t service.Transition) (*domain.Cart, bool, error)
	PurgeExpired(ctx context.Context) (int64, error)
	Now() time.Time
}

// Report summarises one sweep.
type Report struct {
	Scanned   int
	Abandoned int
	Notified  int
	Expired   int
	Deleted   int64
	Failed    int
}

type Scheduler struct {
	store    Store
	notifier notify.Notifier
	interval time.Duration
	timeout  time.Duration
	log      *slog.Logger
}

func NewScheduler(store Store, notifier notify.Notifier, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Scheduler{
		store:    store,
		notifier: notifier,
		interval: interval,
		timeout:  10 * time.Second,
		log:      logging.New("lifecycle"),
	}
}

func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r := s.Sweep(ctx)
			s.log.Info("sweep finished",
				"scanned", r.Scanned,
				"abandoned", r.Abandoned,
				"notified", r.Notified,
				"expired", r.Expired,
				"deleted", r.Deleted,
				"failed", r.Failed)
		case <-ctx.Done():
			return
		}
	}
}

// Sweep classifies every active cart once, persists due transitions, sends recovery notices
// and purges deactivated carts past expiry.
func (s *Scheduler) Sweep(ctx context.Context) Report {
	var r Report

	carts, err := s.store.ActiveCarts(ctx)
	if err != nil {
		s.log.Error("failed to list active carts", "error", err)
		r.Failed++
	}

	now := s.store.Now()
	for _, c := range carts {
		if ctx.Err() != nil {
			return r
		}
		r.Scanned++
		d := Classify(c, now)
		if d.Expired {
			r.Expired++
		}
		if !d.NeedsWrite() {
			continue
		}
		s.advance(ctx, c, &r)
	}

	deleted, err := s.store.PurgeExpired(ctx)
	if err != nil {
		s.log.Error("failed to purge expired carts", "error", err)
		r.Failed++
	}
	r.Deleted = deleted
	return r
}

// advance re-classifies the cart under the owner lock so a buyer write that landed after
// the listing is taken into account.
func (s *Scheduler) advance(ctx context.Context, c domain.Cart, r *Report) {
	var applied Decision
	next, changed, err := s.store.ApplyTransition(ctx, c.OwnerID, c.ID, func(cur domain.Cart, now time.Time) (domain.Cart, bool) {
		applied = Classify(cur, now)
		if !applied.NeedsWrite() {
			return cur, false
		}
		return Apply(cur, applied, now), true
	})
	if err != nil {
		s.log.Error("failed to advance cart", "owner_id", c.OwnerID, "cart_id", c.ID, "error", err)
		r.Failed++
		return
	}
	if !changed {
		return
	}
	if applied.MarkAbandoned {
		r.Abandoned++
	}
	if !applied.SendRecovery {
		return
	}

	nctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.notifier.NotifyAbandoned(nctx, notify.NewRecovery(*next)); err != nil {
		s.log.Warn("recovery notification failed", "owner_id", c.OwnerID, "cart_id", c.ID, "error", err)
		r.Failed++
		return
	}
	r.Notified++
}
