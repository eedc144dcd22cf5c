package messaging

import (
	"context"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

// fakeChannel routes publishes on the default exchange straight into
// per-queue delivery channels.
type fakeChannel struct {
	mu     sync.Mutex
	queues map[string]chan amqp.Delivery
	seq    int
	tag    uint64
	ackers []*fakeAcker
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{queues: make(map[string]chan amqp.Delivery)}
}

func (f *fakeChannel) queue(name string) chan amqp.Delivery {
	q, ok := f.queues[name]
	if !ok {
		q = make(chan amqp.Delivery, 64)
		f.queues[name] = q
	}
	return q
}

func (f *fakeChannel) QueueDeclare(name string, _, _, _, _ bool, _ amqp.Table) (amqp.Queue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if name == "" {
		f.seq++
		name = fmt.Sprintf("amq.gen-%d", f.seq)
	}
	f.queue(name)
	return amqp.Queue{Name: name}, nil
}

func (f *fakeChannel) Consume(queue, _ string, _, _, _, _ bool, _ amqp.Table) (<-chan amqp.Delivery, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queue(queue), nil
}

func (f *fakeChannel) PublishWithContext(_ context.Context, _, key string, _, _ bool, msg amqp.Publishing) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tag++
	d := amqp.Delivery{
		ContentType:   msg.ContentType,
		CorrelationId: msg.CorrelationId,
		ReplyTo:       msg.ReplyTo,
		MessageId:     msg.MessageId,
		Type:          msg.Type,
		Body:          msg.Body,
		DeliveryTag:   f.tag,
		RoutingKey:    key,
	}
	acker := &fakeAcker{channel: f, delivery: d}
	d.Acknowledger = acker
	f.ackers = append(f.ackers, acker)
	f.queue(key) <- d
	return nil
}

func (f *fakeChannel) lastAcker() *fakeAcker {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ackers[len(f.ackers)-1]
}

func (f *fakeChannel) Qos(int, int, bool) error { return nil }

func (f *fakeChannel) Close() error { return nil }

func (f *fakeChannel) closeQueue(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	close(f.queue(name))
}

func (f *fakeChannel) redeliver(d amqp.Delivery) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d.Redelivered = true
	d.Acknowledger = &fakeAcker{channel: f, delivery: d}
	f.queue(d.RoutingKey) <- d
}

type fakeAcker struct {
	channel  *fakeChannel
	delivery amqp.Delivery

	mu      sync.Mutex
	acked   bool
	nacked  bool
	requeue bool
}

func (a *fakeAcker) Ack(uint64, bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.acked = true
	return nil
}

func (a *fakeAcker) Nack(_ uint64, _ bool, requeue bool) error {
	a.mu.Lock()
	a.nacked = true
	a.requeue = requeue
	a.mu.Unlock()
	if requeue {
		a.channel.redeliver(a.delivery)
	}
	return nil
}

func (a *fakeAcker) Reject(tag uint64, requeue bool) error {
	return a.Nack(tag, false, requeue)
}
