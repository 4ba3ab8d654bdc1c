// Package event fans domain events out to a topic exchange.
package event

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/streadway/amqp"
	"go.uber.org/zap"
)

// Routing keys.
const (
	ResultRecorded = "result.recorded"
	RestartGranted = "restart.granted"
)

// Publisher is what domain packages depend on. A nil Publisher is never
// passed around; use Discard instead.
type Publisher interface {
	Publish(ctx context.Context, eventType string, payload any) error
}

// Envelope is the JSON body of every message.
type Envelope struct {
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurredAt"`
	Payload    any       `json:"payload"`
}

type AMQPPublisher struct {
	mu       sync.Mutex // amqp.Channel is not safe for concurrent publishes
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	log      *zap.Logger
}

// NewAMQPPublisher dials url and declares a durable topic exchange.
func NewAMQPPublisher(url, exchange string, log *zap.Logger) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}
	return &AMQPPublisher{conn: conn, channel: ch, exchange: exchange, log: log}, nil
}

func (p *AMQPPublisher) Publish(_ context.Context, eventType string, payload any) error {
	body, err := json.Marshal(Envelope{Type: eventType, OccurredAt: time.Now().UTC(), Payload: payload})
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	err = p.channel.Publish(p.exchange, eventType, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         body,
	})
	if err != nil {
		return err
	}
	p.log.Debug("event published", zap.String("type", eventType), zap.Int("bytes", len(body)))
	return nil
}

func (p *AMQPPublisher) Close() {
	if p.channel != nil {
		_ = p.channel.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
}

// Discard drops every event. It is used when no broker is configured.
var Discard Publisher = discard{}

type discard struct{}

func (discard) Publish(context.Context, string, any) error { return nil }

// Recorder keeps published events in memory; tests use it.
type Recorder struct {
	mu     sync.Mutex
	Events []Envelope
}

func (r *Recorder) Publish(_ context.Context, eventType string, payload any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Events = append(r.Events, Envelope{Type: eventType, OccurredAt: time.Now().UTC(), Payload: payload})
	return nil
}

// Types lists the recorded event types in order.
func (r *Recorder) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.Events))
	for i, e := range r.Events {
		out[i] = e.Type
	}
	return out
}
