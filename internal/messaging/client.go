package messaging

import (
	"context"
	"errors"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Channel is the subset of *amqp.Channel used by this package.
type Channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Qos(prefetchCount, prefetchSize int, global bool) error
	Close() error
}

// Client owns one broker connection and channel shared by every in-flight
// request of the process.
type Client struct {
	conn *amqp.Connection
	ch   Channel
	// mu serializes publishes; frames of concurrent publishes on one channel
	// must not interleave.
	mu sync.Mutex
}

// Dial opens the TCP connection and a channel on it.
func Dial(url string) (*Client, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	return &Client{conn: conn, ch: ch}, nil
}

// NewClient wraps an already opened channel.
func NewClient(ch Channel) *Client {
	return &Client{ch: ch}
}

// DeclareQueue prepares a durable queue.
func (c *Client) DeclareQueue(name string) error {
	_, err := c.ch.QueueDeclare(
		name,  // name of queue
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	return err
}

// DeclareReplyQueue creates a server-named, exclusive, auto-deleted queue.
func (c *Client) DeclareReplyQueue() (string, error) {
	q, err := c.ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return "", err
	}
	return q.Name, nil
}

// Prefetch bounds the number of unacknowledged deliveries per consumer.
func (c *Client) Prefetch(count int) error {
	return c.ch.Qos(count, 0, false)
}

// Publish sends a message to a queue through the default exchange.
func (c *Client) Publish(ctx context.Context, queue string, msg amqp.Publishing) error {
	if msg.ContentType == "" {
		msg.ContentType = "application/json"
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ch.PublishWithContext(ctx,
		"",    // exchange
		queue, // routing key (queue name)
		false, // mandatory
		false, // immediate
		msg,
	)
}

// Consume starts listening on a queue. autoAck is used for reply queues where
// redelivery has no meaning.
func (c *Client) Consume(queue string, autoAck bool) (<-chan amqp.Delivery, error) {
	return c.ch.Consume(
		queue,   // queue
		"",      // consumer
		autoAck, // auto-ack
		false,   // exclusive
		false,   // no-local
		false,   // no-wait
		nil,     // args
	)
}

// Ping reports whether the underlying connection is still open.
func (c *Client) Ping() error {
	if c == nil || c.ch == nil {
		return errors.New("rabbitmq not configured")
	}
	if c.conn != nil && c.conn.IsClosed() {
		return errors.New("rabbitmq connection closed")
	}
	return nil
}

// Close cleans up the channel and connection.
func (c *Client) Close() error {
	if c == nil || c.ch == nil {
		return nil
	}
	if err := c.ch.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
		return err
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			return err
		}
	}
	return nil
}
