package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/fjod/go_cart/cart-engine/internal/domain"
)

// MemoryRepository keeps carts in process memory. It backs local runs and tests.
type MemoryRepository struct {
	mu      sync.RWMutex
	carts   map[string]domain.Cart // cartID -> cart
	byOwner map[string]string      // ownerID -> active cartID
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		carts:   make(map[string]domain.Cart),
		byOwner: make(map[string]string),
	}
}

func (m *MemoryRepository) GetActiveCart(ctx context.Context, ownerID string) (*domain.Cart, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byOwner[ownerID]
	if !ok {
		return nil, ErrCartNotFound
	}
	c := m.carts[id].Clone()
	return &c, nil
}

func (m *MemoryRepository) CreateCart(ctx context.Context, cart *domain.Cart) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.carts[cart.ID]; exists {
		return fmt.Errorf("cart %s already exists", cart.ID)
	}
	if cart.IsActive {
		if _, taken := m.byOwner[cart.OwnerID]; taken {
			return duplicateOwner(cart.OwnerID)
		}
		m.byOwner[cart.OwnerID] = cart.ID
	}
	cart.Version = 1
	m.carts[cart.ID] = cart.Clone()
	return nil
}

func (m *MemoryRepository) SaveCart(ctx context.Context, cart *domain.Cart) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.carts[cart.ID]
	if !ok {
		return ErrCartNotFound
	}
	if stored.Version != cart.Version {
		return ErrConcurrentModification
	}

	activeID, hasActive := m.byOwner[cart.OwnerID]
	switch {
	case cart.IsActive && hasActive && activeID != cart.ID:
		return duplicateOwner(cart.OwnerID)
	case cart.IsActive:
		m.byOwner[cart.OwnerID] = cart.ID
	case hasActive && activeID == cart.ID:
		delete(m.byOwner, cart.OwnerID)
	}

	cart.Version++
	m.carts[cart.ID] = cart.Clone()
	return nil
}

func (m *MemoryRepository) ListActiveCarts(ctx context.Context) ([]domain.Cart, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]domain.Cart, 0, len(m.byOwner))
	for _, id := range m.byOwner {
		out = append(out, m.carts[id].Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OwnerID < out[j].OwnerID })
	return out, nil
}

func (m *MemoryRepository) DeleteInactiveExpired(ctx context.Context, now time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var deleted int64
	for id, c := range m.carts {
		if !c.IsActive && c.IsExpired(now) {
			delete(m.carts, id)
			deleted++
		}
	}
	return deleted, nil
}

// Count reports how many carts are stored, active or not.
func (m *MemoryRepository) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.carts)
}
