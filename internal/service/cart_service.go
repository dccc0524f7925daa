package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fjod/go_cart/cart-engine/internal/cache"
	"github.com/fjod/go_cart/cart-engine/internal/cart"
	"github.com/fjod/go_cart/cart-engine/internal/catalog"
	"github.com/fjod/go_cart/cart-engine/internal/coupon"
	"github.com/fjod/go_cart/cart-engine/internal/domain"
	"github.com/fjod/go_cart/cart-engine/internal/logging"
	"github.com/fjod/go_cart/cart-engine/internal/money"
	"github.com/fjod/go_cart/cart-engine/internal/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
)

var ErrOwnerRequired = errors.New("owner id is required")

// maxWriteAttempts bounds the retries of a write that lost a version race to another process.
const maxWriteAttempts = 3

type CartService struct {
	repo    repository.CartRepository
	cache   cache.CartCache
	catalog catalog.Lookup
	coupons coupon.Directory

	locks  *ownerLocks
	epochs writeEpochs
	sfg    singleflight.Group // Prevents cache stampede

	now             func() time.Time
	newID           func() string
	defaultCurrency money.Currency
	log             *slog.Logger
}

type Option func(*CartService)

func WithClock(now func() time.Time) Option {
	return func(s *CartService) { s.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(s *CartService) { s.newID = newID }
}

// WithDefaultCurrency sets the currency of carts whose first item carries none.
func WithDefaultCurrency(c money.Currency) Option {
	return func(s *CartService) { s.defaultCurrency = c }
}

func WithCouponDirectory(d coupon.Directory) Option {
	return func(s *CartService) { s.coupons = d }
}

func NewCartService(repo repository.CartRepository, c cache.CartCache, lookup catalog.Lookup, opts ...Option) *CartService {
	if c == nil {
		c = cache.Noop{}
	}
	s := &CartService{
		repo:            repo,
		cache:           c,
		catalog:         lookup,
		coupons:         coupon.NewStaticDirectory(),
		locks:           newOwnerLocks(),
		now:             func() time.Time { return time.Now().UTC() },
		newID:           uuid.NewString,
		defaultCurrency: money.USD,
		log:             logging.New("cart-service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddItemRequest describes an add_item call. Nil prices are taken from the catalog.
type AddItemRequest struct {
	ItemID        string
	UnitPrice     *decimal.Decimal
	ListPrice     *decimal.Decimal
	Priority      int
	IsGift        bool
	GiftRecipient string
}

// missingPolicy says what a mutation does when the owner has no active cart.
type missingPolicy int

const (
	requireCart   missingPolicy = iota // fail with CartNotFound
	createCart                         // create and persist a new cart
	transientCart                      // run against an empty cart that is never saved
)

type mutation func(c domain.Cart, now time.Time) (domain.Cart, error)

// errUnchanged lets a mutation finish without writing.
var errUnchanged = errors.New("cart unchanged")

func (s *CartService) GetCart(ctx context.Context, ownerID string) (*domain.Cart, error) {
	if ownerID == "" {
		return nil, ErrOwnerRequired
	}
	v, err, _ := s.sfg.Do(ownerID, func() (interface{}, error) {
		c, err := s.cache.Get(ctx, ownerID)
		if err == nil {
			return c, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.log.Warn("cache get failed", "owner_id", ownerID, "error", err)
		}

		epoch := s.epochs.of(ownerID)
		start := epoch.Load()
		c, err = s.repo.GetActiveCart(ctx, ownerID)
		if errors.Is(err, repository.ErrCartNotFound) {
			empty := domain.NewCart("", ownerID, s.defaultCurrency, s.now())
			return &empty, nil
		}
		if err != nil {
			s.log.Error("repo get cart failed", "owner_id", ownerID, "error", err)
			return nil, fmt.Errorf("load cart: %w", err)
		}

		setCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		defer cancel()
		if err := s.cache.Set(setCtx, ownerID, c); err != nil {
			s.log.Warn("cache set failed", "owner_id", ownerID, "error", err)
		} else if epoch.Load() != start {
			// a write landed while loading, the entry may predate it
			if err := s.cache.Delete(setCtx, ownerID); err != nil {
				s.log.Warn("cache invalidate failed", "owner_id", ownerID, "error", err)
			}
		}
		return c, nil
	})
	if err != nil {
		return nil, err
	}

	// callers sharing a flight must not share slices
	out := v.(*domain.Cart).Clone()
	return &out, nil
}

func (s *CartService) AddItem(ctx context.Context, ownerID string, req AddItemRequest) (*domain.Cart, error) {
	if ownerID == "" {
		return nil, ErrOwnerRequired
	}
	item, err := s.catalog.GetItem(ctx, req.ItemID)
	if errors.Is(err, catalog.ErrNotFound) {
		return nil, domain.ItemError(domain.ErrItemNotFound, ownerID, req.ItemID)
	}
	if err != nil {
		s.log.Error("catalog lookup failed", "owner_id", ownerID, "item_id", req.ItemID, "error", err)
		return nil, fmt.Errorf("catalog lookup %s: %w", req.ItemID, err)
	}
	if !item.Available {
		return nil, domain.ItemError(domain.ErrItemUnavailable, ownerID, req.ItemID)
	}

	unit, opts := s.priceItem(item, req)
	currency := item.Currency
	if currency == "" {
		currency = s.defaultCurrency
	}

	return s.mutate(ctx, ownerID, "add_item", createCart, currency, func(c domain.Cart, now time.Time) (domain.Cart, error) {
		if err := cart.CheckCurrency(c, req.ItemID, item.Currency); err != nil {
			return domain.Cart{}, err
		}
		return cart.AddItem(c, req.ItemID, unit, opts, now)
	})
}

func (s *CartService) priceItem(item catalog.Item, req AddItemRequest) (decimal.Decimal, cart.AddItemOptions) {
	opts := cart.AddItemOptions{
		ListPrice:     req.ListPrice,
		Priority:      req.Priority,
		IsGift:        req.IsGift,
		GiftRecipient: req.GiftRecipient,
	}
	if req.UnitPrice != nil {
		return *req.UnitPrice, opts
	}
	if opts.ListPrice == nil && !item.ListPrice.IsZero() {
		lp := item.ListPrice
		opts.ListPrice = &lp
	}
	return item.Price, opts
}

func (s *CartService) RemoveItem(ctx context.Context, ownerID, itemID string) (*domain.Cart, error) {
	return s.mutate(ctx, ownerID, "remove_item", transientCart, "", func(c domain.Cart, now time.Time) (domain.Cart, error) {
		return cart.RemoveItem(c, itemID, now)
	})
}

func (s *CartService) ApplyCoupon(ctx context.Context, ownerID string, cp domain.AppliedCoupon) (*domain.Cart, error) {
	return s.mutate(ctx, ownerID, "apply_coupon", requireCart, "", func(c domain.Cart, now time.Time) (domain.Cart, error) {
		return cart.ApplyCoupon(c, cp, now)
	})
}

// ApplyCouponCode resolves code through the coupon directory and applies it.
func (s *CartService) ApplyCouponCode(ctx context.Context, ownerID, code string) (*domain.Cart, error) {
	cp, err := s.coupons.Lookup(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("apply coupon: %w", err)
	}
	return s.ApplyCoupon(ctx, ownerID, cp)
}

func (s *CartService) RemoveCoupon(ctx context.Context, ownerID, code string) (*domain.Cart, error) {
	return s.mutate(ctx, ownerID, "remove_coupon", transientCart, "", func(c domain.Cart, now time.Time) (domain.Cart, error) {
		if c.CouponIndex(code) < 0 {
			return c, errUnchanged
		}
		return cart.RemoveCoupon(c, code, now), nil
	})
}

func (s *CartService) MoveToSavedForLater(ctx context.Context, ownerID, itemID, reason string) (*domain.Cart, error) {
	return s.mutate(ctx, ownerID, "move_to_saved_for_later", transientCart, "", func(c domain.Cart, now time.Time) (domain.Cart, error) {
		return cart.MoveToSavedForLater(c, itemID, reason, now)
	})
}

func (s *CartService) MoveFromSavedForLater(ctx context.Context, ownerID, itemID string) (*domain.Cart, error) {
	return s.mutate(ctx, ownerID, "move_from_saved_for_later", transientCart, "", func(c domain.Cart, now time.Time) (domain.Cart, error) {
		return cart.MoveFromSavedForLater(c, itemID, now)
	})
}

func (s *CartService) RemoveSavedItem(ctx context.Context, ownerID, itemID string) (*domain.Cart, error) {
	return s.mutate(ctx, ownerID, "remove_saved_item", transientCart, "", func(c domain.Cart, now time.Time) (domain.Cart, error) {
		return cart.RemoveSavedItem(c, itemID, now)
	})
}

func (s *CartService) Clear(ctx context.Context, ownerID string) (*domain.Cart, error) {
	return s.mutate(ctx, ownerID, "clear", transientCart, "", func(c domain.Cart, now time.Time) (domain.Cart, error) {
		return cart.Clear(c, now), nil
	})
}

func (s *CartService) MarkCheckoutAttempt(ctx context.Context, ownerID string) (*domain.Cart, error) {
	return s.mutate(ctx, ownerID, "mark_checkout_attempt", requireCart, "", func(c domain.Cart, now time.Time) (domain.Cart, error) {
		return cart.MarkCheckoutAttempt(c, now), nil
	})
}

// BeginCheckout records a checkout attempt and returns what the checkout collaborator gets.
func (s *CartService) BeginCheckout(ctx context.Context, ownerID string) (*domain.CheckoutSnapshot, error) {
	var snap domain.CheckoutSnapshot
	_, err := s.mutate(ctx, ownerID, "begin_checkout", requireCart, "", func(c domain.Cart, now time.Time) (domain.Cart, error) {
		next, taken, err := cart.BeginCheckout(c, now)
		if err != nil {
			return domain.Cart{}, err
		}
		snap = taken
		return next, nil
	})
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

// CompleteCheckout is called once the checkout collaborator succeeded: the cart is cleared
// and deactivated, and the owner's next add_item starts a fresh cart.
func (s *CartService) CompleteCheckout(ctx context.Context, ownerID string) (*domain.Cart, error) {
	return s.CompleteCheckoutFor(ctx, ownerID, "")
}

// CompleteCheckoutFor completes checkout only if cartID is still the owner's active cart, so a
// late event for an earlier checkout cannot close the cart the buyer started since.
// An empty cartID matches any active cart.
func (s *CartService) CompleteCheckoutFor(ctx context.Context, ownerID, cartID string) (*domain.Cart, error) {
	return s.mutate(ctx, ownerID, "complete_checkout", requireCart, "", func(c domain.Cart, now time.Time) (domain.Cart, error) {
		if cartID != "" && c.ID != cartID {
			return domain.Cart{}, domain.CartErrorf(domain.ErrCartNotFound, ownerID, "cart %s is no longer active", cartID)
		}
		return cart.CompleteCheckout(c, now), nil
	})
}

func (s *CartService) Archive(ctx context.Context, ownerID string) (*domain.Cart, error) {
	return s.mutate(ctx, ownerID, "archive", requireCart, "", func(c domain.Cart, now time.Time) (domain.Cart, error) {
		return cart.Archive(c, now), nil
	})
}

func (s *CartService) ResetAbandonment(ctx context.Context, ownerID string) (*domain.Cart, error) {
	return s.mutate(ctx, ownerID, "reset_abandonment", requireCart, "", func(c domain.Cart, _ time.Time) (domain.Cart, error) {
		return cart.ResetAbandonment(c), nil
	})
}

// mutate runs fn against the owner's active cart under the owner lock and persists the result.
// A version conflict means another process wrote in between; the whole read-modify-write is
// retried on the fresh value.
func (s *CartService) mutate(ctx context.Context, ownerID, op string, policy missingPolicy, currency money.Currency, fn mutation) (*domain.Cart, error) {
	if ownerID == "" {
		return nil, ErrOwnerRequired
	}
	unlock := s.locks.Lock(ownerID)
	defer unlock()

	for attempt := 1; ; attempt++ {
		next, err := s.mutateOnce(ctx, ownerID, policy, currency, fn)
		if err == nil {
			return next, nil
		}
		if isWriteConflict(err) && attempt < maxWriteAttempts {
			s.log.Warn("write conflict, retrying", "op", op, "owner_id", ownerID, "attempt", attempt)
			continue
		}
		var ce *domain.CartError
		if !errors.As(err, &ce) {
			s.log.Error("cart mutation failed", "op", op, "owner_id", ownerID, "error", err)
		}
		return nil, err
	}
}

func (s *CartService) mutateOnce(ctx context.Context, ownerID string, policy missingPolicy, currency money.Currency, fn mutation) (*domain.Cart, error) {
	now := s.now()

	current, err := s.repo.GetActiveCart(ctx, ownerID)
	isNew := false
	switch {
	case err == nil:
	case errors.Is(err, repository.ErrCartNotFound):
		if policy == requireCart {
			return nil, domain.CartErrorf(domain.ErrCartNotFound, ownerID, "no active cart")
		}
		if currency == "" {
			currency = s.defaultCurrency
		}
		id := ""
		if policy == createCart {
			id = s.newID()
		}
		fresh := domain.NewCart(id, ownerID, currency, now)
		current, isNew = &fresh, true
	default:
		return nil, fmt.Errorf("load cart: %w", err)
	}

	next, err := fn(*current, now)
	if errors.Is(err, errUnchanged) {
		return current, nil
	}
	if err != nil {
		return nil, err
	}

	switch {
	case isNew && policy == transientCart:
		return &next, nil
	case isNew:
		err = s.repo.CreateCart(ctx, &next)
	default:
		err = s.repo.SaveCart(ctx, &next)
	}
	if err != nil {
		return nil, fmt.Errorf("persist cart: %w", err)
	}

	s.invalidateCache(ownerID)
	return &next, nil
}

func isWriteConflict(err error) bool {
	return errors.Is(err, repository.ErrConcurrentModification) || errors.Is(err, domain.ErrDuplicateOwner)
}

func (s *CartService) invalidateCache(ownerID string) {
	s.epochs.of(ownerID).Add(1)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.cache.Delete(ctx, ownerID); err != nil {
		s.log.Warn("cache invalidate failed", "owner_id", ownerID, "error", err)
	}
}
