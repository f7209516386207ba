/**
 * @description
 * Publishes payment lifecycle events to a durable RabbitMQ topic exchange so
 * downstream consumers (notifications, reporting) can follow settlement without
 * polling the ledger.
 *
 * @dependencies
 * - github.com/rabbitmq/amqp091-go: The RabbitMQ client library.
 */
package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"github.com/shopspring/decimal"
)

// Routing keys for payment lifecycle events.
const (
	RoutingPaymentStarted                = "payment.started"
	RoutingPaymentConfirmed              = "payment.confirmed"
	RoutingPaymentFailed                 = "payment.failed"
	RoutingPaymentReversed               = "payment.reversed"
	RoutingPaymentReversalFailed         = "payment.reversal_failed"
	RoutingPaymentReconciliationRequired = "payment.reconciliation.required"
)

// PaymentEvent is the payload published for every payment state change.
type PaymentEvent struct {
	PaymentID       int64           `json:"payment_id"`
	UserID          int64           `json:"user_id"`
	AccountID       int64           `json:"account_id"`
	ReferenceNumber string          `json:"reference_number"`
	Status          string          `json:"status"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	Currency        string          `json:"currency"`
	TransactionID   string          `json:"transaction_id,omitempty"`
	Reason          string          `json:"reason,omitempty"`
	Timestamp       time.Time       `json:"timestamp"`
}

// Publisher is the interface implemented by types that can publish events.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, body interface{}) error
	PublishPaymentEvent(ctx context.Context, routingKey string, event PaymentEvent) error
	Close()
}

// EventProducerFallback is a no-op publisher used when RabbitMQ is unavailable at startup.
type EventProducerFallback struct {
	Logger *slog.Logger
}

func (p *EventProducerFallback) Publish(ctx context.Context, routingKey string, body interface{}) error {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.WarnContext(ctx, "publish skipped", "component", "rabbitmq_producer", "mode", "fallback", "routing_key", routingKey)
	return nil
}

func (p *EventProducerFallback) PublishPaymentEvent(ctx context.Context, routingKey string, event PaymentEvent) error {
	return p.Publish(ctx, routingKey, event)
}

func (p *EventProducerFallback) Close() {}

// EventProducer holds the RabbitMQ connection and channel for publishing messages.
type EventProducer struct {
	mu       sync.Mutex
	conn     *amqp091.Connection
	channel  *amqp091.Channel
	exchange string
	logger   *slog.Logger
}

func sanitizeAMQPURL(raw string) (string, error) {
	clean := strings.TrimSpace(raw)
	clean = strings.Trim(clean, "\"'")
	// If any stray characters precede the scheme, slice from first occurrence of amqp
	idx := strings.Index(strings.ToLower(clean), "amqp")
	if idx > 0 {
		clean = clean[idx:]
	}
	u, err := url.Parse(clean)
	if err != nil {
		return "", err
	}
	if u.Scheme != "amqp" && u.Scheme != "amqps" {
		return "", errors.New("AMQP scheme must be either 'amqp://' or 'amqps://'")
	}
	return clean, nil
}

// NewEventProducer dials RabbitMQ and declares the events exchange.
func NewEventProducer(amqpURL, exchange string, logger *slog.Logger) (*EventProducer, error) {
	cleanURL, err := sanitizeAMQPURL(amqpURL)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	// Use a bounded dial timeout so startup does not hang indefinitely
	conn, err := amqp091.DialConfig(cleanURL, amqp091.Config{Dial: amqp091.DefaultDial(10 * time.Second)})
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	if err := declareExchange(ch, exchange); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	return &EventProducer{
		conn:     conn,
		channel:  ch,
		exchange: exchange,
		logger:   logger.With("component", "rabbitmq_producer"),
	}, nil
}

func declareExchange(ch *amqp091.Channel, exchange string) error {
	return ch.ExchangeDeclare(
		exchange, // name
		"topic",  // type
		true,     // durable
		false,    // autoDelete
		false,    // internal
		false,    // noWait
		nil,      // args
	)
}

// Publish sends body as JSON to the events exchange with routingKey. A failed
// publish reopens the channel and retries once.
func (p *EventProducer) Publish(ctx context.Context, routingKey string, body interface{}) error {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		p.logger.ErrorContext(ctx, "json marshal failed", "routing_key", routingKey, "err", err)
		return err
	}
	msg := amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		Timestamp:    time.Now(),
		Body:         jsonBody,
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.channel.PublishWithContext(ctx, p.exchange, routingKey, false, false, msg)
	if err == nil {
		return nil
	}
	p.logger.WarnContext(ctx, "publish failed; reopening channel", "routing_key", routingKey, "err", err)

	ch, chErr := p.conn.Channel()
	if chErr != nil {
		return chErr
	}
	p.channel = ch
	if exErr := declareExchange(ch, p.exchange); exErr != nil {
		return exErr
	}
	return p.channel.PublishWithContext(ctx, p.exchange, routingKey, false, false, msg)
}

// PublishPaymentEvent publishes a payment lifecycle event.
func (p *EventProducer) PublishPaymentEvent(ctx context.Context, routingKey string, event PaymentEvent) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	return p.Publish(ctx, routingKey, event)
}

// Close gracefully closes the channel and connection to RabbitMQ.
func (p *EventProducer) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}
