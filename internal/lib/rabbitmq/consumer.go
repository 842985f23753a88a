package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/career-entitlements/internal/lib/sl"
)

// ErrPoisonMessage оборачивает ошибку обработчика, если сообщение
// не имеет смысла отдавать повторно. Такое сообщение отбрасывается.
var ErrPoisonMessage = errors.New("poison message")

// Acknowledger подтверждает или возвращает доставку.
type Acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

// ConsumerMessage запускает потребителя очереди queueName. Сообщения
// обрабатываются не более чем workers горутинами одновременно. Возвращённый
// WaitGroup завершается, когда все обработчики закончили работу после
// отмены ctx или закрытия канала.
func ConsumerMessage(ctx context.Context, ch *amqp.Channel, queueName string, workers int, log *slog.Logger, handler func([]byte) error) (*sync.WaitGroup, error) {
	const op = "rabbitmq.ConsumerMessage"
	delivery, err := ch.Consume(
		queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	log = log.With(slog.String("op", op), slog.String("queue", queueName))
	sem := make(chan struct{}, max(workers, 1))
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case d, ok := <-delivery:
				if !ok {
					return
				}
				sem <- struct{}{}
				wg.Add(1)
				go func(delivery amqp.Delivery) {
					defer wg.Done()
					defer func() { <-sem }()
					Handle(log, delivery, delivery.Body, handler)
				}(d)
			case <-ctx.Done():
				return
			}
		}
	}()
	return &wg, nil
}

// Handle вызывает handler и подтверждает доставку. Ошибка с ErrPoisonMessage
// отбрасывает сообщение, любая другая возвращает его в очередь.
func Handle(log *slog.Logger, ack Acknowledger, body []byte, handler func([]byte) error) {
	err := handler(body)
	if err == nil {
		if ackErr := ack.Ack(false); ackErr != nil {
			log.Error("failed to ack message", sl.Err(ackErr))
		}
		return
	}

	requeue := !errors.Is(err, ErrPoisonMessage)
	log.Warn("message handler failed", slog.Bool("requeue", requeue), sl.Err(err))
	if nackErr := ack.Nack(false, requeue); nackErr != nil {
		log.Error("failed to nack message", sl.Err(nackErr))
	}
}
