package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// RedisSessions хранит содержимое корзин в Redis, поэтому сессии переживают
// перезапуск сервиса. Автомат отправки живёт в памяти процесса: подтверждение
// QR должно прийти на тот же экземпляр, который его открыл.
type RedisSessions struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisSessions подключается к Redis и проверяет соединение
func NewRedisSessions(url string, ttl time.Duration) (*RedisSessions, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &RedisSessions{client: client, ttl: ttl}, nil
}

var _ Store = (*RedisSessions)(nil)

// sessionPayload сериализуемое состояние сессии
type sessionPayload struct {
	Lines      []Line          `json:"lines"`
	Quantities map[int64]int64 `json:"quantities"`
}

func (r *RedisSessions) key(id string) string { return "carrito:" + id }

func (r *RedisSessions) Create(ctx context.Context) (*Session, error) {
	s := &Session{
		ID:       uuid.New().String(),
		Cart:     New(),
		Selector: NewQuantitySelector(),
	}
	if err := r.Save(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

func (r *RedisSessions) Get(ctx context.Context, id string) (*Session, error) {
	raw, err := r.client.Get(ctx, r.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	var p sessionPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("corrupt session %s: %w", id, err)
	}
	s := &Session{ID: id, Cart: New(), Selector: NewQuantitySelector()}
	s.Cart.restore(p.Lines)
	if p.Quantities != nil {
		s.Selector.qty = p.Quantities
	}
	return s, nil
}

func (r *RedisSessions) Save(ctx context.Context, s *Session) error {
	p := sessionPayload{Lines: s.Cart.Lines(), Quantities: s.Selector.snapshot()}
	raw, err := json.Marshal(p)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, r.key(s.ID), raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (r *RedisSessions) Delete(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, r.key(id)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
