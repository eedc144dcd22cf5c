package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// HandlerFunc serves one request pattern.
type HandlerFunc func(ctx context.Context, data json.RawMessage) (any, error)

// RPCServer answers request-reply messages arriving on a queue.
type RPCServer struct {
	client   *Client
	queue    string
	timeout  time.Duration
	logger   *zap.Logger
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
}

// NewRPCServer declares queue and returns a server for it. timeout bounds
// each handler invocation.
func NewRPCServer(client *Client, queue string, timeout time.Duration, logger *zap.Logger) (*RPCServer, error) {
	if err := client.DeclareQueue(queue); err != nil {
		return nil, err
	}
	return &RPCServer{
		client:   client,
		queue:    queue,
		timeout:  timeout,
		logger:   logger,
		handlers: make(map[string]HandlerFunc),
	}, nil
}

// Handle registers h for pattern.
func (s *RPCServer) Handle(pattern string, h HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[pattern] = h
}

// Run serves requests until ctx is done or the delivery channel closes.
// Each delivery is handled on its own goroutine; Run waits for in-flight
// handlers before returning. A closed delivery channel returns ErrUnavailable.
func (s *RPCServer) Run(ctx context.Context) error {
	deliveries, err := s.client.Consume(s.queue, false)
	if err != nil {
		return err
	}
	s.logger.Info("rpc server started", zap.String("queue", s.queue))

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				s.logger.Error("rpc delivery channel closed", zap.String("queue", s.queue))
				return fmt.Errorf("%w: delivery channel closed on %s", ErrUnavailable, s.queue)
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				s.serve(ctx, d)
			}()
		}
	}
}

func (s *RPCServer) serve(ctx context.Context, d amqp.Delivery) {
	req, err := decodeRequest(d.Body)
	if err != nil {
		s.logger.Warn("dropping malformed rpc request", zap.Error(err), zap.String("correlation_id", d.CorrelationId))
		_ = d.Nack(false, false)
		return
	}

	s.mu.RLock()
	handler, ok := s.handlers[req.Pattern]
	s.mu.RUnlock()

	var result any
	if ok {
		handlerCtx, cancel := context.WithTimeout(ctx, s.timeout)
		result, err = handler(handlerCtx, req.Data)
		cancel()
	} else {
		err = fmt.Errorf("no handler for pattern %q", req.Pattern)
		s.logger.Warn("unknown rpc pattern", zap.String("pattern", req.Pattern))
	}

	if d.ReplyTo != "" {
		if replyErr := s.reply(ctx, d, result, err); replyErr != nil {
			s.logger.Error("rpc reply failed", zap.String("pattern", req.Pattern), zap.Error(replyErr))
		}
	}
	_ = d.Ack(false)
}

func (s *RPCServer) reply(ctx context.Context, d amqp.Delivery, result any, handlerErr error) error {
	body, err := encodeReply(result, handlerErr)
	if err != nil {
		return err
	}
	return s.client.Publish(ctx, d.ReplyTo, amqp.Publishing{
		CorrelationId: d.CorrelationId,
		Body:          body,
	})
}
