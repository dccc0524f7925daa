package service

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/fjod/go_cart/cart-engine/internal/cache"
	"github.com/fjod/go_cart/cart-engine/internal/domain"
	"github.com/fjod/go_cart/cart-engine/internal/repository"
)

type mockCache struct {
	m       sync.RWMutex
	carts   map[string]*domain.Cart
	err     error
	deletes int
}

func newMockCache() *mockCache {
	return &mockCache{carts: map[string]*domain.Cart{}}
}

func (m *mockCache) Get(_ context.Context, ownerID string) (*domain.Cart, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	c, ok := m.carts[ownerID]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return c, nil
}

func (m *mockCache) Set(_ context.Context, ownerID string, c *domain.Cart) error {
	m.m.Lock()
	defer m.m.Unlock()
	m.carts[ownerID] = c
	return nil
}

func (m *mockCache) Delete(_ context.Context, ownerID string) error {
	m.m.Lock()
	defer m.m.Unlock()
	delete(m.carts, ownerID)
	m.deletes++
	return nil
}

func (m *mockCache) has(ownerID string) bool {
	m.m.RLock()
	defer m.m.RUnlock()
	_, ok := m.carts[ownerID]
	return ok
}

func (m *mockCache) deleteCount() int {
	m.m.RLock()
	defer m.m.RUnlock()
	return m.deletes
}

// flakyRepository wraps the memory store and fails selected calls.
type flakyRepository struct {
	*repository.MemoryRepository

	m         sync.Mutex
	getErr    error
	conflicts int // SaveCart calls to reject with a version conflict
	saveCalls int
}

func newFlakyRepository() *flakyRepository {
	return &flakyRepository{MemoryRepository: repository.NewMemoryRepository()}
}

func (f *flakyRepository) GetActiveCart(ctx context.Context, ownerID string) (*domain.Cart, error) {
	f.m.Lock()
	err := f.getErr
	f.m.Unlock()
	if err != nil {
		return nil, err
	}
	return f.MemoryRepository.GetActiveCart(ctx, ownerID)
}

func (f *flakyRepository) SaveCart(ctx context.Context, c *domain.Cart) error {
	f.m.Lock()
	f.saveCalls++
	reject := f.conflicts > 0
	if reject {
		f.conflicts--
	}
	f.m.Unlock()

	if reject {
		return repository.ErrConcurrentModification
	}
	return f.MemoryRepository.SaveCart(ctx, c)
}

func (f *flakyRepository) saves() int {
	f.m.Lock()
	defer f.m.Unlock()
	return f.saveCalls
}

// interleavedRepository runs onLoad once, after the first GetActiveCart has read its copy.
type interleavedRepository struct {
	*repository.MemoryRepository
	fired  atomic.Bool
	onLoad func()
}

func (r *interleavedRepository) GetActiveCart(ctx context.Context, ownerID string) (*domain.Cart, error) {
	c, err := r.MemoryRepository.GetActiveCart(ctx, ownerID)
	if r.onLoad != nil && r.fired.CompareAndSwap(false, true) {
		r.onLoad()
	}
	return c, err
}
