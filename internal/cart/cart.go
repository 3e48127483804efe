// Package cart содержит корзину кассы: позиции с зафиксированной ценой,
// контроль остатков и счётчик количества перед добавлением.
package cart

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"panaderia/internal/domain"
)

// ErrOutOfStock товар закончился на момент снимка каталога
var ErrOutOfStock = errors.New("producto agotado")

// ErrLineNotFound позиция отсутствует в корзине
var ErrLineNotFound = errors.New("line not found")

// InsufficientStockError запрошенное количество превышает потолок позиции.
// Remaining считается свежим: ceiling - текущее количество.
type InsufficientStockError struct {
	ProductID int64
	Name      string
	Remaining int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("stock insuficiente para %s: quedan %d unidades", e.Name, e.Remaining)
}

// Line позиция корзины. Цена и потолок остатка фиксируются при первом добавлении
// и не обновляются до следующего снимка каталога.
type Line struct {
	ProductID int64   `json:"productoId"`
	Name      string  `json:"nombre"`
	UnitPrice float64 `json:"precio"`
	Quantity  int64   `json:"cantidad"`
	Ceiling   int64   `json:"stockDisponible"`
}

// Subtotal сумма позиции без округления
func (l Line) Subtotal() float64 { return l.UnitPrice * float64(l.Quantity) }

// Cart корзина одной кассовой сессии. Порядок позиций — порядок добавления,
// изменение количества позицию не переставляет.
type Cart struct {
	mu    sync.Mutex
	lines []Line
}

func New() *Cart { return &Cart{} }

func (c *Cart) find(productID int64) int {
	for i := range c.lines {
		if c.lines[i].ProductID == productID {
			return i
		}
	}
	return -1
}

// Add добавляет товар из снимка каталога. Для новой позиции количество
// ограничивается доступным остатком; для существующей превышение потолка —
// ошибка без изменения состояния.
func (c *Cart) Add(p domain.Product, qty int64) error {
	if qty < 1 {
		qty = 1
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if p.Stock <= 0 {
		return ErrOutOfStock
	}

	if i := c.find(p.ID); i >= 0 {
		line := &c.lines[i]
		if line.Quantity+qty > line.Ceiling {
			return &InsufficientStockError{ProductID: p.ID, Name: line.Name, Remaining: line.Ceiling - line.Quantity}
		}
		line.Quantity += qty
		return nil
	}

	if qty > p.Stock {
		qty = p.Stock
	}
	c.lines = append(c.lines, Line{
		ProductID: p.ID,
		Name:      p.Name,
		UnitPrice: p.Price,
		Quantity:  qty,
		Ceiling:   p.Stock,
	})
	return nil
}

// SetQuantity устанавливает количество позиции. n <= 0 удаляет позицию.
func (c *Cart) SetQuantity(productID, n int64) error {
	if n <= 0 {
		c.Remove(productID)
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.find(productID)
	if i < 0 {
		return ErrLineNotFound
	}
	line := &c.lines[i]
	if n > line.Ceiling {
		return &InsufficientStockError{ProductID: productID, Name: line.Name, Remaining: line.Ceiling - line.Quantity}
	}
	line.Quantity = n
	return nil
}

// Remove удаляет позицию; отсутствие позиции не ошибка
func (c *Cart) Remove(productID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i := c.find(productID); i >= 0 {
		c.lines = append(c.lines[:i], c.lines[i+1:]...)
	}
}

// Clear очищает корзину
func (c *Cart) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = nil
}

// Lines возвращает копию позиций в порядке добавления
func (c *Cart) Lines() []Line {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Line, len(c.lines))
	copy(out, c.lines)
	return out
}

func (c *Cart) Empty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.lines) == 0
}

// Total сумма корзины. Накопление без округления, результат округляется
// до 2 знаков только для отображения.
func (c *Cart) Total() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	var sum float64
	for _, l := range c.lines {
		sum += l.Subtotal()
	}
	return math.Round(sum*100) / 100
}

// Items представление корзины для тела заказа
func (c *Cart) Items() []domain.OrderItem {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.OrderItem, 0, len(c.lines))
	for _, l := range c.lines {
		out = append(out, domain.OrderItem{ProductID: l.ProductID, Quantity: l.Quantity, UnitPrice: l.UnitPrice})
	}
	return out
}

// restore используется хранилищем корзин при десериализации
func (c *Cart) restore(lines []Line) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = lines
}

// QuantitySelector количество, выбранное перед добавлением в корзину.
// По умолчанию 1; значения меньше 1 игнорируются. Сбрасывается в 1 только
// после успешного добавления.
type QuantitySelector struct {
	mu  sync.Mutex
	qty map[int64]int64
}

func NewQuantitySelector() *QuantitySelector {
	return &QuantitySelector{qty: make(map[int64]int64)}
}

func (s *QuantitySelector) Get(productID int64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n, ok := s.qty[productID]; ok {
		return n
	}
	return 1
}

func (s *QuantitySelector) Set(productID, n int64) {
	if n < 1 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.qty[productID] = n
}

// Reset возвращает счётчик товара к 1
func (s *QuantitySelector) Reset(productID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.qty, productID)
}

func (s *QuantitySelector) snapshot() map[int64]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int64]int64, len(s.qty))
	for k, v := range s.qty {
		out[k] = v
	}
	return out
}

// ResetAll очищает все счётчики (после успешного оформления заказа)
func (s *QuantitySelector) ResetAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.qty = make(map[int64]int64)
}
