// Package events publishes processing outcomes to RabbitMQ.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/streadway/amqp"

	"github.com/rpattn/ecomdata/internal/domain"
)

// Config locates the broker and queue.
type Config struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url" validate:"required_if=Enabled true"`
	Queue   string `mapstructure:"queue" validate:"required_if=Enabled true"`
}

// channel is the subset of *amqp.Channel used for publishing.
type channel interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher sends each terminal ProcessingLog as JSON to a durable queue.
type Publisher struct {
	mu      sync.Mutex
	conn    *amqp.Connection
	channel channel
	queue   string
}

// Dial connects to the broker and declares the queue.
func Dial(cfg Config) (*Publisher, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	if _, err := ch.QueueDeclare(cfg.Queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("failed to declare queue %s: %w", cfg.Queue, err)
	}
	slog.Info("rabbitmq connected", "queue", cfg.Queue)
	return &Publisher{conn: conn, channel: ch, queue: cfg.Queue}, nil
}

func newPublisher(ch channel, queue string) *Publisher {
	return &Publisher{channel: ch, queue: queue}
}

// Publish implements the ingestion notifier.
func (p *Publisher) Publish(ctx context.Context, entry domain.ProcessingLog) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	body, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode processing log: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.channel.Publish("", p.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    entry.ID.String(),
		Timestamp:    time.Now().UTC(),
		Type:         "processing_log." + string(entry.Status),
		Body:         body,
	})
}

// Close closes the channel and connection for graceful shutdown.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.channel != nil {
		if err := p.channel.Close(); err != nil {
			return err
		}
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
