// Package bus moves audit events across the message bus that decouples
// the runtime audit writer from the post-execution audit service (spec
// §4.8): a durable "sql-audit" topic exchange, one queue per producer
// application (the "partition" from §5's per-partition ordering
// guarantee), bound by routing key on the application name.
package bus

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"sqlsentry/audit"
)

const exchangeName = "sql-audit"

// queueName derives the per-application partition queue name. One queue
// per app keeps each application's events strictly ordered for the
// service's single-threaded-per-partition consumer (§5).
func queueName(app string) string {
	return "sql-audit." + app
}

// Publisher publishes audit events onto the sql-audit exchange, routed by
// application name.
type Publisher struct {
	conn *amqp.Connection
	ch   *amqp.Channel
}

// Dial connects to RabbitMQ and declares the topic exchange.
func Dial(amqpURL string) (*Publisher, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("bus: dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("bus: open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchangeName, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("bus: declare exchange: %w", err)
	}
	return &Publisher{conn: conn, ch: ch}, nil
}

// Close releases the channel and connection.
func (p *Publisher) Close() error {
	chErr := p.ch.Close()
	connErr := p.conn.Close()
	if chErr != nil {
		return chErr
	}
	return connErr
}

// Publish serializes e (via its canonical MarshalJSON) and publishes it
// routed on e.App. The queue for that app must already be declared and
// bound by a prior Consumer.Open call, or RabbitMQ drops the message if
// the exchange has no matching binding.
func (p *Publisher) Publish(ctx context.Context, e audit.Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("bus: marshal event: %w", err)
	}
	return p.ch.PublishWithContext(ctx, exchangeName, e.App, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
}

// Consumer reads audit events from one application's partition queue.
type Consumer struct {
	conn *amqp.Connection
	ch   *amqp.Channel
	app  string
}

// Open connects, declares the exchange and the per-app partition queue,
// binds the queue to the exchange by app name, and returns a Consumer
// ready to Consume.
func Open(amqpURL, app string) (*Consumer, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("bus: dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("bus: open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchangeName, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("bus: declare exchange: %w", err)
	}
	q, err := ch.QueueDeclare(queueName(app), true, false, false, false, nil)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("bus: declare queue: %w", err)
	}
	if err := ch.QueueBind(q.Name, app, exchangeName, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("bus: bind queue: %w", err)
	}
	if err := ch.Qos(32, 0, false); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("bus: set qos: %w", err)
	}
	return &Consumer{conn: conn, ch: ch, app: app}, nil
}

// Close releases the channel and connection.
func (c *Consumer) Close() error {
	chErr := c.ch.Close()
	connErr := c.conn.Close()
	if chErr != nil {
		return chErr
	}
	return connErr
}

// RawMessage is a delivered audit event plus the underlying amqp.Delivery
// so the caller can Ack/Nack after processing.
type RawMessage struct {
	Event    audit.Event
	Delivery amqp.Delivery
}

// Consume starts a goroutine that forwards the queue's deliveries onto the
// returned channel. The
// caller's processing loop is responsible for calling Delivery.Ack/Nack
// once a message's checkers have run, per the single-threaded-per-
// partition ordering contract (spec §5): the caller must not Ack message
// N+1 before message N.
func (c *Consumer) Consume(ctx context.Context) (<-chan RawMessage, error) {
	deliveries, err := c.ch.Consume(queueName(c.app), "", false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("bus: consume: %w", err)
	}
	out := make(chan RawMessage)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}
				var e audit.Event
				if err := json.Unmarshal(d.Body, &e); err != nil {
					d.Nack(false, false)
					continue
				}
				select {
				case out <- RawMessage{Event: e, Delivery: d}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
