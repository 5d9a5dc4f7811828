package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	// DefaultExchangeName is the topic exchange todo events are published to
	DefaultExchangeName = "taskflow.events"
	// DefaultQueueName retains events for downstream consumers
	DefaultQueueName = "taskflow.todo_events"
	// DefaultDLQName receives events rejected by consumers
	DefaultDLQName = "taskflow.todo_events.dlq"
	// todoBindingKey matches every todo event type
	todoBindingKey = "todo.#"
	dlqRoutingKey  = "dlq"
)

// ErrPublisherClosed is returned once the connection is gone
var ErrPublisherClosed = errors.New("event publisher connection is closed")

// RabbitMQPublisher publishes todo events to a RabbitMQ topic exchange
type RabbitMQPublisher struct {
	mu           sync.Mutex
	conn         *amqp.Connection
	channel      *amqp.Channel
	exchangeName string
	queueName    string
	dlqName      string
}

// NewRabbitMQPublisher connects to RabbitMQ and declares the event topology
func NewRabbitMQPublisher(amqpURL string) (*RabbitMQPublisher, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	p := &RabbitMQPublisher{
		conn:         conn,
		channel:      ch,
		exchangeName: DefaultExchangeName,
		queueName:    DefaultQueueName,
		dlqName:      DefaultDLQName,
	}

	if err := p.setup(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to setup event topology: %w", err)
	}

	return p, nil
}

// setup declares the exchange, the retention queue and its dead letter queue
func (p *RabbitMQPublisher) setup() error {
	err := p.channel.ExchangeDeclare(
		p.exchangeName,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to declare exchange: %w", err)
	}

	if _, err := p.channel.QueueDeclare(p.dlqName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare DLQ: %w", err)
	}
	if err := p.channel.QueueBind(p.dlqName, dlqRoutingKey, p.exchangeName, false, nil); err != nil {
		return fmt.Errorf("failed to bind DLQ: %w", err)
	}

	queueArgs := amqp.Table{
		"x-dead-letter-exchange":    p.exchangeName,
		"x-dead-letter-routing-key": dlqRoutingKey,
	}
	if _, err := p.channel.QueueDeclare(p.queueName, true, false, false, false, queueArgs); err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}
	if err := p.channel.QueueBind(p.queueName, todoBindingKey, p.exchangeName, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue to exchange: %w", err)
	}

	return nil
}

// Publish sends the event as a persistent JSON message routed by its type
func (p *RabbitMQPublisher) Publish(ctx context.Context, event *Event) error {
	publishing, err := toPublishing(event)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn == nil || p.conn.IsClosed() {
		return ErrPublisherClosed
	}

	if err := p.channel.PublishWithContext(ctx, p.exchangeName, string(event.Type), false, false, publishing); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", event.Type, err)
	}
	return nil
}

func toPublishing(event *Event) (amqp.Publishing, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("failed to marshal event: %w", err)
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
		MessageId:    event.ID.String(),
		Timestamp:    event.OccurredAt,
		Type:         string(event.Type),
	}, nil
}

// Consume streams events from the retention queue until ctx is cancelled.
// Each delivery is acked once decoded; undecodable messages are dead-lettered.
func (p *RabbitMQPublisher) Consume(ctx context.Context, prefetchCount int) (<-chan *Event, <-chan error, error) {
	consumeCh, err := p.conn.Channel()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create consumer channel: %w", err)
	}
	if err := consumeCh.Qos(prefetchCount, 0, false); err != nil {
		_ = consumeCh.Close()
		return nil, nil, fmt.Errorf("failed to set QoS: %w", err)
	}

	deliveries, err := consumeCh.Consume(p.queueName, "", false, false, false, false, nil)
	if err != nil {
		_ = consumeCh.Close()
		return nil, nil, fmt.Errorf("failed to start consuming: %w", err)
	}

	eventCh := make(chan *Event, prefetchCount)
	errCh := make(chan error, 1)

	go func() {
		defer func() { _ = consumeCh.Close() }()
		decodeDeliveries(ctx, deliveries, eventCh, errCh)
	}()

	return eventCh, errCh, nil
}

// decodeDeliveries forwards decoded events until ctx is done or deliveries
// closes, then closes both output channels. Errors are dropped when errCh is full.
func decodeDeliveries(ctx context.Context, deliveries <-chan amqp.Delivery, eventCh chan<- *Event, errCh chan<- error) {
	defer close(eventCh)
	defer close(errCh)

	report := func(err error) {
		select {
		case errCh <- err:
		default:
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case delivery, ok := <-deliveries:
			if !ok {
				report(fmt.Errorf("delivery channel closed"))
				return
			}

			var event Event
			if err := json.Unmarshal(delivery.Body, &event); err != nil {
				_ = delivery.Nack(false, false)
				report(fmt.Errorf("failed to unmarshal event: %w", err))
				continue
			}

			select {
			case <-ctx.Done():
				_ = delivery.Nack(false, true)
				return
			case eventCh <- &event:
				_ = delivery.Ack(false)
			}
		}
	}
}

// HealthCheck verifies the connection is still open
func (p *RabbitMQPublisher) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil || p.conn.IsClosed() || p.channel == nil || p.channel.IsClosed() {
		return ErrPublisherClosed
	}
	return nil
}

// Close closes the channel and the connection
func (p *RabbitMQPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var err error
	if p.channel != nil {
		err = p.channel.Close()
	}
	if p.conn != nil {
		if closeErr := p.conn.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}
	return err
}
