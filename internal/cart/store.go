package cart

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

// ErrSessionNotFound сессия кассы не найдена или истекла
var ErrSessionNotFound = errors.New("session not found")

// Session корзина и счётчики количества одной кассовой сессии
type Session struct {
	ID       string
	Cart     *Cart
	Selector *QuantitySelector
}

// Store хранилище кассовых сессий. Save нужен только реализациям с
// внешней персистентностью; in-memory версия мутирует сессию на месте.
type Store interface {
	Create(ctx context.Context) (*Session, error)
	Get(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id string) error
}

// MemorySessions сессии в памяти процесса
type MemorySessions struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewMemorySessions() *MemorySessions {
	return &MemorySessions{sessions: make(map[string]*Session)}
}

var _ Store = (*MemorySessions)(nil)

func (m *MemorySessions) Create(ctx context.Context) (*Session, error) {
	s := &Session{
		ID:       uuid.New().String(),
		Cart:     New(),
		Selector: NewQuantitySelector(),
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s
	return s, nil
}

func (m *MemorySessions) Get(ctx context.Context, id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

func (m *MemorySessions) Save(ctx context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[s.ID]; !ok {
		return ErrSessionNotFound
	}
	m.sessions[s.ID] = s
	return nil
}

func (m *MemorySessions) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}
