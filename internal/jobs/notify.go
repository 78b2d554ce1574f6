package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/Abrar11050/exam-conductor/internal/model"
)

// Notifier announces finished jobs.
type Notifier interface {
	Notify(ctx context.Context, d model.JobDescriptor) error
	Close() error
}

// DefaultExchange is the topic exchange gradesheet events are published on.
const DefaultExchange = "exco.gradesheets"

// AMQPNotifier publishes gradesheet.done and gradesheet.error events to a
// topic exchange. With an empty URL it is disabled and drops events.
type AMQPNotifier struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	enabled  bool
}

// NewAMQPNotifier connects to url and declares a durable topic exchange.
func NewAMQPNotifier(url, exchange string) (*AMQPNotifier, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}
	if url == "" {
		slog.Info("amqp url not set, gradesheet events disabled")
		return &AMQPNotifier{exchange: exchange}, nil
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	slog.Info("gradesheet events enabled", "exchange", exchange)
	return &AMQPNotifier{conn: conn, channel: ch, exchange: exchange, enabled: true}, nil
}

// RoutingKey returns the event name for a finished descriptor.
func RoutingKey(d model.JobDescriptor) string {
	if d.Status == model.JobError {
		return "gradesheet.error"
	}
	return "gradesheet.done"
}

func (n *AMQPNotifier) Notify(ctx context.Context, d model.JobDescriptor) error {
	if !n.enabled {
		return nil
	}
	body, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	err = n.channel.PublishWithContext(ctx, n.exchange, RoutingKey(d), false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         body,
		Headers: amqp.Table{
			"job_id":   d.JobID,
			"owner_id": d.OwnerID,
			"exam_id":  d.ExamID,
		},
	})
	if err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

func (n *AMQPNotifier) Close() error {
	if !n.enabled {
		return nil
	}
	if err := n.channel.Close(); err != nil {
		n.conn.Close()
		return err
	}
	return n.conn.Close()
}
