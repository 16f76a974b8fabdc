package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Publisher publishes reservation events to RabbitMQ. The broker connection
// is dialed lazily and re-dialed after it drops; a channel is opened per
// publish. Errors are logged and returned so the caller can choose to
// ignore them.
type Publisher struct {
	url    string
	logger *zap.Logger

	mu   sync.Mutex
	conn *amqp.Connection
}

// NewPublisher returns a Publisher for the broker at url. No connection is
// made until the first Publish.
func NewPublisher(url string, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{url: url, logger: logger}
}

func (p *Publisher) connection() (*amqp.Connection, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn != nil && !p.conn.IsClosed() {
		return p.conn, nil
	}
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return nil, fmt.Errorf("dial broker: %w", err)
	}
	p.conn = conn
	return conn, nil
}

// Publish sends ev to the reservation.events queue as a persistent JSON
// message.
func (p *Publisher) Publish(ctx context.Context, ev ReservationEvent) error {
	conn, err := p.connection()
	if err != nil {
		p.logger.Warn("rabbitmq: connect failed", zap.Error(err))
		return err
	}

	ch, err := conn.Channel()
	if err != nil {
		p.logger.Warn("rabbitmq: channel open failed", zap.Error(err))
		return err
	}
	defer func() { _ = ch.Close() }()

	// Ensure the queue exists (idempotent). Durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(
		QueueName, // name
		true,      // durable
		false,     // autoDelete
		false,     // exclusive
		false,     // noWait
		nil,       // args
	); err != nil {
		p.logger.Warn("rabbitmq: queue declare failed", zap.Error(err))
		return err
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ev.EventID,
		Type:         string(ev.Type),
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx,
		"",        // default exchange
		QueueName, // routing key = queue name
		false,     // mandatory
		false,     // immediate
		pub,
	); err != nil {
		p.logger.Warn("rabbitmq: publish failed", zap.Error(err), zap.String("event_id", ev.EventID))
		return err
	}
	return nil
}

// Close releases the broker connection if one is open.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil || p.conn.IsClosed() {
		return nil
	}
	return p.conn.Close()
}
