// Package catalog отвечает за снимок каталога: локальную копию активных
// товаров (и покупателей для кассы) на момент последней загрузки.
package catalog

import (
	"context"
	"sync"
	"time"

	"panaderia/internal/domain"
)

// Snapshot неизменяемый снимок каталога. Остатки в нём достоверны только на
// момент загрузки; при перезагрузке снимок заменяется целиком, без слияния.
type Snapshot struct {
	Products  []domain.Product
	Customers []domain.Customer
	FetchedAt time.Time

	byID map[int64]domain.Product
}

// NewSnapshot собирает снимок из готовых списков; время снимка — сейчас
func NewSnapshot(products []domain.Product, customers []domain.Customer) *Snapshot {
	s := &Snapshot{
		Products:  products,
		Customers: customers,
		FetchedAt: time.Now().UTC(),
		byID:      make(map[int64]domain.Product, len(products)),
	}
	for _, p := range products {
		s.byID[p.ID] = p
	}
	return s
}

// Product ищет товар в снимке
func (s *Snapshot) Product(id int64) (domain.Product, bool) {
	p, ok := s.byID[id]
	return p, ok
}

// Customer ищет покупателя в снимке
func (s *Snapshot) Customer(id int64) (domain.Customer, bool) {
	for _, c := range s.Customers {
		if c.ID == id {
			return c, true
		}
	}
	return domain.Customer{}, false
}

// Loader источник снимков каталога
type Loader interface {
	Load(ctx context.Context) (*Snapshot, error)
}

// Cache текущий снимок каталога. Reload заменяет снимок целиком; при ошибке
// загрузки прежний снимок сохраняется, чтобы касса не осталась без каталога.
type Cache struct {
	mu      sync.RWMutex
	loader  Loader
	current *Snapshot
}

func NewCache(loader Loader) *Cache { return &Cache{loader: loader} }

// Current возвращает снимок; nil, если каталог ещё ни разу не загружался
func (c *Cache) Current() *Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// Reload загружает свежий снимок и подменяет текущий
func (c *Cache) Reload(ctx context.Context) (*Snapshot, error) {
	snap, err := c.loader.Load(ctx)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.current = snap
	c.mu.Unlock()
	return snap, nil
}

// Ensure получает снимок, загружая его при первом обращении
func (c *Cache) Ensure(ctx context.Context) (*Snapshot, error) {
	if snap := c.Current(); snap != nil {
		return snap, nil
	}
	return c.Reload(ctx)
}
