// Package events publishes order lifecycle notifications to an external broker.
package events

import (
	"context"
	"fmt"
	"strconv"
	"time"
)

const (
	OrderPlaced     = "order.placed"
	OrderCancelled  = "order.cancelled"
	OrderDeleted    = "order.deleted"
	OrderStatus     = "order.status_changed"
	PaymentVerified = "payment.verified"
	PaymentFailed   = "payment.failed"
)

type Event struct {
	Type       string         `json:"type"`
	OrderID    int64          `json:"order_id"`
	UserID     string         `json:"user_id,omitempty"`
	Status     string         `json:"status,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Key is the partition/routing key: events of one order stay ordered.
func (e Event) Key() string { return strconv.FormatInt(e.OrderID, 10) }

type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

type nop struct{}

// Nop returns a Publisher that drops every event.
func Nop() Publisher { return nop{} }

func (nop) Publish(context.Context, Event) error { return nil }
func (nop) Close() error                         { return nil }

// Options selects and configures a backend.
type Options struct {
	Backend      string
	KafkaBrokers []string
	KafkaTopic   string
	AMQPURL      string
	AMQPExchange string
}

// New builds the publisher named by opts.Backend ("", "none", "kafka", "rabbitmq").
func New(opts Options) (Publisher, error) {
	switch opts.Backend {
	case "", "none":
		return Nop(), nil
	case "kafka":
		if len(opts.KafkaBrokers) == 0 {
			return nil, fmt.Errorf("events: kafka backend requires KAFKA_BROKERS")
		}
		return NewKafkaPublisher(opts.KafkaBrokers, opts.KafkaTopic), nil
	case "rabbitmq":
		return DialRabbitMQ(opts.AMQPURL, opts.AMQPExchange)
	default:
		return nil, fmt.Errorf("events: unknown backend %q", opts.Backend)
	}
}
