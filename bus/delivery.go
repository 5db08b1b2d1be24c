package bus

import (
	"context"
	"sync/atomic"

	"github.com/nats-io/nats.go/jetstream"
)

// PublishFunc is the capability handed to message handlers. Holders can
// publish to the bus and do nothing else; the producer itself is never
// shared.
type PublishFunc func(ctx context.Context, subject string, data []byte) error

// NopPublish returns a publish capability that drops events. The consumer
// runs with this when no producer is configured.
func NopPublish() PublishFunc {
	return func(context.Context, string, []byte) error { return nil }
}

// Delivery is one inbound message on its way through the worker pool. The
// handler reads Subject and Data and may publish through the capability;
// acknowledgement stays with the consumer, which maps the handler's error
// to a disposition after the handler returns.
type Delivery struct {
	Subject string
	Data    []byte
	Publish PublishFunc

	// Redeliveries counts prior delivery attempts, 0 for the first.
	Redeliveries uint64

	disposed atomic.Bool
	ackFn    func() error
	nakFn    func() error
	termFn   func() error
}

// newDelivery wraps a JetStream message. The publish capability defaults
// to a no-op so handlers never see a nil Publish.
func newDelivery(msg jetstream.Msg, publish PublishFunc) *Delivery {
	if publish == nil {
		publish = NopPublish()
	}

	d := &Delivery{
		Subject: msg.Subject(),
		Data:    msg.Data(),
		Publish: publish,
		ackFn:   msg.Ack,
		nakFn:   msg.Nak,
		termFn:  msg.Term,
	}

	if meta, err := msg.Metadata(); err == nil && meta.NumDelivered > 0 {
		d.Redeliveries = meta.NumDelivered - 1
	}

	return d
}

// ack acknowledges the delivery. Each delivery is disposed at most once;
// later calls are no-ops.
func (d *Delivery) ack() error {
	if !d.disposed.CompareAndSwap(false, true) || d.ackFn == nil {
		return nil
	}
	return d.ackFn()
}

// nak requests redelivery.
func (d *Delivery) nak() error {
	if !d.disposed.CompareAndSwap(false, true) || d.nakFn == nil {
		return nil
	}
	return d.nakFn()
}

// term terminates the delivery so it is never redelivered. Used for poison
// messages that would fail identically every time.
func (d *Delivery) term() error {
	if !d.disposed.CompareAndSwap(false, true) || d.termFn == nil {
		return nil
	}
	return d.termFn()
}
