package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// ActivityConsumer listens to the reservation.events queue and appends one
// line per event to an activity log file.
type ActivityConsumer struct {
	url     string
	logPath string
	logger  *zap.Logger
}

// NewActivityConsumer returns a consumer for the broker at url writing to logPath.
func NewActivityConsumer(url, logPath string, logger *zap.Logger) *ActivityConsumer {
	return &ActivityConsumer{url: url, logPath: logPath, logger: logger}
}

// Run connects to RabbitMQ and consumes until ctx is cancelled. Dial
// failures and dropped connections are retried with exponential backoff
// capped at 30s. Messages that cannot be handled are rejected without
// requeue so a poison message cannot stall the queue.
func (c *ActivityConsumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		conn, err := amqp.Dial(c.url)
		if err != nil {
			c.logger.Warn("activity-consumer: dial failed", zap.Error(err), zap.Duration("retry_in", backoff))
			if !sleepCtx(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consumeLoop(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Warn("activity-consumer: consume loop ended, reconnecting", zap.Error(err))
		if !sleepCtx(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (c *ActivityConsumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		c.logger.Warn("activity-consumer: set QoS failed", zap.Error(err))
	}
	if _, err := ch.QueueDeclare(QueueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(QueueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := c.handleMessage(d.Body); err != nil {
				c.logger.Warn("activity-consumer: handle message failed", zap.Error(err))
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func (c *ActivityConsumer) handleMessage(body []byte) error {
	var ev ReservationEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(c.logPath), 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	f, err := os.OpenFile(c.logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(FormatActivityLine(ev)); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

// FormatActivityLine renders ev as a single human-readable log line.
func FormatActivityLine(ev ReservationEvent) string {
	action := "Reservation created"
	if ev.Type == EventReservationCancelled {
		action = "Reservation cancelled"
	}
	return fmt.Sprintf("[%s] %s | reservation_id=%d | client_id=%d | class_id=%d | class=%q | starts_at=%s | occupancy=%d/%d | event_id=%s\n",
		ev.OccurredAt, action, ev.ReservationID, ev.ClientID, ev.ClassID, ev.ClassTitle,
		ev.StartsAt, ev.ReservedCount, ev.Capacity, ev.EventID)
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
