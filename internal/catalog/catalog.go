// Package catalog is the engine's view of the item catalog: current prices and whether an
// item can still be bought.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/fjod/go_cart/cart-engine/internal/money"
	"github.com/shopspring/decimal"
)

var ErrNotFound = errors.New("catalog item not found")

type Item struct {
	ItemID    string          `json:"item_id"`
	Price     decimal.Decimal `json:"price"`
	ListPrice decimal.Decimal `json:"list_price"`
	Available bool            `json:"available"`
	Currency  money.Currency  `json:"currency"`
}

// Lookup is implemented by anything that can answer for a single item.
type Lookup interface {
	GetItem(ctx context.Context, itemID string) (Item, error)
}

// StaticCatalog is an in-process catalog, used for local runs and tests.
type StaticCatalog struct {
	mu    sync.RWMutex
	items map[string]Item
}

func NewStaticCatalog(items ...Item) *StaticCatalog {
	s := &StaticCatalog{items: make(map[string]Item, len(items))}
	for _, it := range items {
		s.items[it.ItemID] = it
	}
	return s
}

func (s *StaticCatalog) Put(it Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[it.ItemID] = it
}

func (s *StaticCatalog) GetItem(_ context.Context, itemID string) (Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	it, ok := s.items[itemID]
	if !ok {
		return Item{}, fmt.Errorf("%w: %s", ErrNotFound, itemID)
	}
	return it, nil
}
