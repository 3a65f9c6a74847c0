package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Channel is the subset of *amqp.Channel the publisher uses.
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQP publishes events on a topic exchange keyed by event kind.
type AMQP struct {
	ch       Channel
	exchange string
	closer   func() error
}

// DialAMQP connects, opens a channel and declares the exchange.
func DialAMQP(url, exchange string) (*AMQP, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	p, err := NewAMQP(ch, exchange)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	p.closer = func() error {
		_ = ch.Close()
		return conn.Close()
	}
	log.Printf("[events] publishing to exchange %s", exchange)
	return p, nil
}

func NewAMQP(ch Channel, exchange string) (*AMQP, error) {
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return &AMQP{ch: ch, exchange: exchange}, nil
}

func (p *AMQP) Publish(ctx context.Context, e Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return err
	}
	err = p.ch.PublishWithContext(ctx, p.exchange, string(e.Kind), false, false, amqp.Publishing{
		ContentType: "application/json",
		MessageId:   e.ID,
		Timestamp:   e.At,
		Body:        body,
	})
	if err != nil {
		return fmt.Errorf("failed to publish to exchange %s: %w", p.exchange, err)
	}
	return nil
}

func (p *AMQP) Close() error {
	if p.closer == nil {
		return nil
	}
	return p.closer()
}
