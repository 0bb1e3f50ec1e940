package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// AMQPQueue publishes persistent JSON messages to a durable queue and
// consumes them with manual acknowledgement, one at a time.
type AMQPQueue struct {
	conn        *amqp.Connection
	ch          *amqp.Channel
	name        string
	pollTimeout time.Duration

	consumeOnce sync.Once
	consumeErr  error
	deliveries  <-chan amqp.Delivery
}

// NewAMQPQueue dials url and declares the durable queue name.
func NewAMQPQueue(url, name string, pollTimeout time.Duration) (*AMQPQueue, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}

	if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("amqp queue declare: %w", err)
	}

	// One unacked publication per worker.
	if err := ch.Qos(1, 0, false); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("amqp qos: %w", err)
	}

	if pollTimeout <= 0 {
		pollTimeout = 5 * time.Second
	}
	return &AMQPQueue{conn: conn, ch: ch, name: name, pollTimeout: pollTimeout}, nil
}

// Enqueue implements Enqueuer.
func (q *AMQPQueue) Enqueue(ctx context.Context, t Task) error {
	body, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("encode task: %w", err)
	}

	return q.ch.PublishWithContext(ctx,
		"", q.name, false, false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    t.ID,
			Type:         t.Name,
			Timestamp:    t.EnqueuedAt,
			Body:         body,
		},
	)
}

// Dequeue implements Dequeuer.
func (q *AMQPQueue) Dequeue(ctx context.Context) (*Delivery, error) {
	q.consumeOnce.Do(func() {
		q.deliveries, q.consumeErr = q.ch.Consume(q.name, "", false, false, false, false, nil)
	})
	if q.consumeErr != nil {
		return nil, fmt.Errorf("amqp consume: %w", q.consumeErr)
	}

	timer := time.NewTimer(q.pollTimeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, ErrNoTask
	case d, ok := <-q.deliveries:
		if !ok {
			return nil, fmt.Errorf("amqp consume: channel closed")
		}
		var t Task
		if err := json.Unmarshal(d.Body, &t); err != nil {
			d.Nack(false, false) //nolint:errcheck
			return nil, fmt.Errorf("decode task: %w", err)
		}
		return &Delivery{
			Task: t,
			ack:  func() error { return d.Ack(false) },
			nack: func() error { return d.Nack(false, false) },
		}, nil
	}
}

// Ping reports whether the broker connection is still open.
func (q *AMQPQueue) Ping(context.Context) error {
	if q.conn.IsClosed() {
		return amqp.ErrClosed
	}
	return nil
}

// Close closes the channel and connection.
func (q *AMQPQueue) Close() error {
	q.ch.Close()
	return q.conn.Close()
}
