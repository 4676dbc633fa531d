package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
)

// Publisher публикует доменные события в RabbitMQ.
// Ошибки публикации логируются и возвращаются вызывающей стороне,
// которая может их игнорировать, не прерывая основной поток запроса.
type Publisher struct {
	conn   *amqp.Connection
	logger *zap.Logger
}

// NewPublisher подключается к брокеру с повторами и объявляет очереди событий.
func NewPublisher(ctx context.Context, url string, logger *zap.Logger) (*Publisher, error) {
	var conn *amqp.Connection

	backoff := retry.WithMaxRetries(5, retry.NewExponential(500*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var dialErr error
		conn, dialErr = amqp.Dial(url)
		if dialErr != nil {
			logger.Warn("amqp dial failed, retrying", zap.Error(dialErr))
			return retry.RetryableError(dialErr)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()

	queues := []string{
		QueueReservationCreated,
		QueueReservationPaid,
		QueueReservationExpired,
		QueueReservationCancelled,
		QueueInvoiceIssued,
	}
	for _, name := range queues {
		if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
			conn.Close()
			return nil, fmt.Errorf("declare queue %s: %w", name, err)
		}
	}

	return &Publisher{conn: conn, logger: logger}, nil
}

// Close закрывает соединение с брокером.
func (p *Publisher) Close() error {
	return p.conn.Close()
}

// Publish сериализует событие и публикует его в указанную очередь.
// Сообщения помечаются persistent и переживают перезапуск брокера.
func (p *Publisher) Publish(ctx context.Context, queueName string, event any) error {
	if p == nil {
		return nil
	}

	body, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("marshal event failed", zap.String("queue", queueName), zap.Error(err))
		return fmt.Errorf("marshal event: %w", err)
	}

	ch, err := p.conn.Channel()
	if err != nil {
		p.logger.Error("open channel failed", zap.String("queue", queueName), zap.Error(err))
		return fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}

	if err := ch.PublishWithContext(ctx, "", queueName, false, false, pub); err != nil {
		p.logger.Error("publish failed", zap.String("queue", queueName), zap.Error(err))
		return fmt.Errorf("publish: %w", err)
	}

	return nil
}
