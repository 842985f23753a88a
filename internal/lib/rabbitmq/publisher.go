package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/career-entitlements/internal/models"
)

// Channel часть amqp.Channel, нужная для публикации.
type Channel interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// PublishMessage публикует сообщение в RabbitMQ.
func PublishMessage(ch Channel, exchange string, routingkey string, message any) error {
	const op = "rabbitmq.PublishMessage"
	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	err = ch.Publish(
		exchange,
		routingkey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
		},
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Publisher публикует события биллинга в обменник BillingExchange.
// Публикации через один канал сериализуются.
type Publisher struct {
	mu sync.Mutex
	ch Channel
}

// NewPublisher создаёт Publisher поверх канала ch.
func NewPublisher(ch Channel) *Publisher {
	return &Publisher{ch: ch}
}

// PublishUnresolved отправляет событие, которое не удалось применить, операторам.
func (p *Publisher) PublishUnresolved(ctx context.Context, msg models.UnresolvedEventMessage) error {
	return p.publish(ctx, RoutingUnresolved, msg)
}

// PublishTierChanged сообщает о смене тарифа аккаунта.
func (p *Publisher) PublishTierChanged(ctx context.Context, msg models.TierChangedMessage) error {
	return p.publish(ctx, RoutingTierChanged, msg)
}

func (p *Publisher) publish(ctx context.Context, routingKey string, msg any) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("rabbitmq.Publisher: %w", err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return PublishMessage(p.ch, BillingExchange, routingKey, msg)
}
