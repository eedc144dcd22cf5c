package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/spec-kit/storefront/internal/observability"
	apperrors "github.com/spec-kit/storefront/pkg/util/errorutil"
)

var (
	// ErrTimeout means no reply arrived within the call's deadline.
	ErrTimeout = errors.New("rpc: no reply before deadline")
	// ErrUnavailable means the request could not be sent or the reply queue is gone.
	ErrUnavailable = errors.New("rpc: broker unavailable")
)

type callResult struct {
	reply Reply
	err   error
}

// RPCClient sends request-reply messages. Replies are matched to callers by
// correlation id on a private reply queue.
type RPCClient struct {
	client     *Client
	queue      string
	replyQueue string
	timeout    time.Duration
	logger     *zap.Logger
	metrics    *observability.Metrics

	mu      sync.Mutex
	pending map[string]chan callResult
	closed  bool
	lost    chan struct{}
}

// NewRPCClient declares a reply queue and starts routing replies until ctx is
// done or the broker drops the consumer.
func NewRPCClient(ctx context.Context, client *Client, queue string, timeout time.Duration, logger *zap.Logger, metrics *observability.Metrics) (*RPCClient, error) {
	replyQueue, err := client.DeclareReplyQueue()
	if err != nil {
		return nil, fmt.Errorf("declare reply queue: %w", err)
	}
	replies, err := client.Consume(replyQueue, true)
	if err != nil {
		return nil, fmt.Errorf("consume reply queue: %w", err)
	}

	c := &RPCClient{
		client:     client,
		queue:      queue,
		replyQueue: replyQueue,
		timeout:    timeout,
		logger:     logger,
		metrics:    metrics,
		pending:    make(map[string]chan callResult),
		lost:       make(chan struct{}),
	}
	go c.route(ctx, replies)
	return c, nil
}

func (c *RPCClient) route(ctx context.Context, replies <-chan amqp.Delivery) {
	defer c.failPending()
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-replies:
			if !ok {
				c.logger.Error("rpc reply channel closed", zap.String("queue", c.replyQueue))
				close(c.lost)
				return
			}
			var reply Reply
			err := json.Unmarshal(d.Body, &reply)

			c.mu.Lock()
			ch, found := c.pending[d.CorrelationId]
			delete(c.pending, d.CorrelationId)
			c.mu.Unlock()

			if !found {
				c.logger.Debug("dropping late rpc reply", zap.String("correlation_id", d.CorrelationId))
				continue
			}
			ch <- callResult{reply: reply, err: err}
		}
	}
}

// Wait blocks until ctx is done or the reply consumer is lost. Once the
// consumer is gone every Call fails, so the loss is returned as ErrUnavailable.
func (c *RPCClient) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return nil
	case <-c.lost:
		return fmt.Errorf("%w: reply channel closed on %s", ErrUnavailable, c.replyQueue)
	}
}

func (c *RPCClient) failPending() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	for id, ch := range c.pending {
		ch <- callResult{err: ErrUnavailable}
		delete(c.pending, id)
	}
}

// Call sends payload under pattern and decodes the response into out. It
// waits at most the client timeout, or less if ctx expires sooner. A reply
// carrying an error is returned as the matching DomainError.
func (c *RPCClient) Call(ctx context.Context, pattern string, payload any, out any) (err error) {
	start := time.Now()
	defer func() {
		c.metrics.RecordRPC(pattern, outcome(err), time.Since(start))
	}()

	body, err := encodeRequest(pattern, payload)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	id := uuid.NewString()
	ch := make(chan callResult, 1)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrUnavailable
	}
	c.pending[id] = ch
	c.mu.Unlock()
	defer c.forget(id)

	err = c.client.Publish(ctx, c.queue, amqp.Publishing{
		CorrelationId: id,
		ReplyTo:       c.replyQueue,
		Expiration:    strconv.FormatInt(c.timeout.Milliseconds(), 10),
		Body:          body,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	select {
	case <-ctx.Done():
		return ErrTimeout
	case res := <-ch:
		if res.err != nil {
			return res.err
		}
		if res.reply.Err != nil {
			return apperrors.FromCode(res.reply.Err.Code, res.reply.Err.Message)
		}
		if out == nil {
			return nil
		}
		return json.Unmarshal(res.reply.Response, out)
	}
}

func (c *RPCClient) forget(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pending, id)
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}
