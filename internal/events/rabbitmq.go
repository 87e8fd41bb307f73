package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

const dialTimeout = 10 * time.Second

// RabbitMQ publishes JSON events to a durable topic exchange
type RabbitMQ struct {
	exchange string

	mu      sync.Mutex
	conn    *amqp091.Connection
	channel *amqp091.Channel
}

func NewRabbitMQ(amqpURL string, exchange string) (*RabbitMQ, error) {
	u, err := url.Parse(strings.TrimSpace(amqpURL))
	if err != nil {
		return nil, fmt.Errorf("invalid amqp url. Err: %w", err)
	}
	if u.Scheme != "amqp" && u.Scheme != "amqps" {
		return nil, errors.New("amqp url scheme must be either 'amqp://' or 'amqps://'")
	}

	conn, err := amqp091.DialConfig(u.String(), amqp091.Config{Dial: amqp091.DefaultDial(dialTimeout)})
	if err != nil {
		return nil, fmt.Errorf("error while connecting to broker. Err: %w", err)
	}

	p := &RabbitMQ{exchange: exchange, conn: conn}
	if err := p.reopen(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return p, nil
}

// reopen opens a fresh channel and declares the exchange, must be called with mu held or before sharing
func (p *RabbitMQ) reopen() error {
	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("error while opening channel. Err: %w", err)
	}

	err = ch.ExchangeDeclare(
		p.exchange, // name
		"topic",    // kind
		true,       // durable
		false,      // autoDelete
		false,      // internal
		false,      // noWait
		nil,        // args
	)
	if err != nil {
		_ = ch.Close()
		return fmt.Errorf("error while declaring exchange. Err: %w", err)
	}

	p.channel = ch
	return nil
}

// Publish sends event as JSON. A closed channel is reopened once.
func (p *RabbitMQ) Publish(ctx context.Context, routingKey string, event any) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("error while encoding event. Err: %w", err)
	}

	msg := amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		Timestamp:    time.Now(),
		Body:         body,
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.channel == nil || p.channel.IsClosed() {
		if err := p.reopen(); err != nil {
			return err
		}
	}

	err = p.channel.PublishWithContext(ctx, p.exchange, routingKey, false, false, msg)
	if err == nil {
		return nil
	}

	if !p.channel.IsClosed() {
		return fmt.Errorf("error while publishing event. Err: %w", err)
	}
	if err := p.reopen(); err != nil {
		return err
	}
	return p.channel.PublishWithContext(ctx, p.exchange, routingKey, false, false, msg)
}

func (p *RabbitMQ) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	if p.channel != nil && !p.channel.IsClosed() {
		errs = append(errs, p.channel.Close())
	}
	if p.conn != nil && !p.conn.IsClosed() {
		errs = append(errs, p.conn.Close())
	}
	return errors.Join(errs...)
}
