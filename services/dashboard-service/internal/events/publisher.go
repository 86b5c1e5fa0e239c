package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/streadway/amqp"
)

// Event types
const (
	FileUploaded  = "file.uploaded"
	FileDeleted   = "file.deleted"
	LeadsQueued   = "leads.queued"
	LeadsScraping = "leads.scraping"
)

// DefaultExchange is the fanout exchange events are published to
const DefaultExchange = "leaddesk_events"

// Event is a notification about a dashboard state change
type Event struct {
	Type     string     `json:"type"`
	OwnerID  uuid.UUID  `json:"owner_id"`
	FileID   *uuid.UUID `json:"file_id,omitempty"`
	FileName string     `json:"file_name,omitempty"`
	Count    int        `json:"count,omitempty"`
	At       time.Time  `json:"at"`
}

// Publisher delivers events to interested consumers
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// NopPublisher drops every event
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
func (NopPublisher) Close() error                         { return nil }

// DialOptions controls connection retries
type DialOptions struct {
	Exchange string
	Attempts int
	Delay    time.Duration
}

// AMQPPublisher publishes JSON events to a durable fanout exchange
type AMQPPublisher struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
}

// Dial connects to the broker, retrying a fixed number of times, and
// declares the exchange
func Dial(url string, opts DialOptions) (*AMQPPublisher, error) {
	if opts.Exchange == "" {
		opts.Exchange = DefaultExchange
	}
	if opts.Attempts <= 0 {
		opts.Attempts = 5
	}
	if opts.Delay <= 0 {
		opts.Delay = 10 * time.Second
	}

	var conn *amqp.Connection
	var err error
	for i := 0; i < opts.Attempts; i++ {
		conn, err = amqp.Dial(url)
		if err == nil {
			break
		}
		log.Printf("Failed to connect to broker, retrying in %s... (%d/%d)", opts.Delay, i+1, opts.Attempts)
		if i < opts.Attempts-1 {
			time.Sleep(opts.Delay)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to broker after retries: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		opts.Exchange,
		"fanout",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	return &AMQPPublisher{conn: conn, ch: ch, exchange: opts.Exchange}, nil
}

func (p *AMQPPublisher) Publish(ctx context.Context, event Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	body, err := Encode(event)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	err = p.ch.Publish(
		p.exchange,
		"",
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Type:         event.Type,
			Timestamp:    event.At,
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish %s: %w", event.Type, err)
	}
	return nil
}

func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ch.Close(); err != nil {
		p.conn.Close()
		return err
	}
	return p.conn.Close()
}

// Encode serializes an event, stamping it with the current time when unset
func Encode(event Event) ([]byte, error) {
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}
	body, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize event: %w", err)
	}
	return body, nil
}
