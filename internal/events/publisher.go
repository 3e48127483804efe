// Package events публикует события заказов в RabbitMQ для внешних
// потребителей (кухня, уведомления). Отключается конфигурацией.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"panaderia/internal/domain"
)

const exchange = "pedidos_topic"

// Config параметры подключения к RabbitMQ
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	VHost    string // default "/"
}

// AMQPPublisher публикует pedido.creado с publisher confirms
type AMQPPublisher struct {
	conn *amqp.Connection
	ch   *amqp.Channel
	acks chan amqp.Confirmation

	mu sync.Mutex // сериализуем Publish: подтверждения читаются по одному
}

// Dial подключается, включает confirms и объявляет topic exchange
func Dial(cfg Config) (*AMQPPublisher, error) {
	if cfg.VHost == "" {
		cfg.VHost = "/"
	}
	url := fmt.Sprintf("amqp://%s:%s@%s:%d/%s", cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.VHost)

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	acks := ch.NotifyPublish(make(chan amqp.Confirmation, 1))
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	return &AMQPPublisher{conn: conn, ch: ch, acks: acks}, nil
}

func (p *AMQPPublisher) Close() {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
}

// OrderCreated публикует созданный заказ с ключом pedido.creado.<entrega>
func (p *AMQPPublisher) OrderCreated(ctx context.Context, o *domain.Order) error {
	body, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("failed to marshal order event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	routingKey := fmt.Sprintf("pedido.creado.%s", o.Delivery)
	err = p.ch.PublishWithContext(
		ctx,
		exchange,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			DeliveryMode:  amqp.Persistent,
			ContentType:   "application/json",
			Body:          body,
			MessageId:     fmt.Sprintf("%d", time.Now().UnixNano()),
			CorrelationId: o.Number,
			Timestamp:     time.Now().UTC(),
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish order event: %w", err)
	}

	// ждём подтверждение брокера: без него событие могло потеряться
	select {
	case confirm, ok := <-p.acks:
		if !ok {
			return fmt.Errorf("confirmation channel closed for order %s", o.Number)
		}
		if !confirm.Ack {
			return fmt.Errorf("broker rejected order event %s", o.Number)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("timeout waiting for broker confirmation of order %s: %w", o.Number, ctx.Err())
	}
}

// Noop заглушка, когда RabbitMQ не настроен
type Noop struct{}

func (Noop) OrderCreated(context.Context, *domain.Order) error { return nil }
