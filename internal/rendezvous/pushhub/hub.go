// Package pushhub is the Push Hub: a best-effort notification fan-out that
// lets a WS-connected client learn about a new message without polling
// recv (spec §4.D). It is never the system of record — a dropped or
// missed notification only costs latency, because the message itself
// already landed in the Mailbox Store via Coordinator.Send/Join.
//
// Two backends share the Hub interface. NewLocal (local.go) is an
// in-process per-mailbox actor, the registry package's Virtual Cell
// architecture repurposed for mailbox IDs. NewAMQP fans the same
// notification out over RabbitMQ via watermill-amqp so every replica's
// WS-connected clients get notified regardless of which replica handled
// the triggering Send/Join, using routing key = mailbox ID.
package pushhub

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	wamqp "github.com/ThreeDotsLabs/watermill-amqp/v3/pkg/amqp"
	"github.com/ThreeDotsLabs/watermill/message"
)

// Hub lets transports subscribe to a mailbox's notifications and lets the
// Coordinator's callers publish one.
type Hub interface {
	// Subscribe returns a channel of raw JSON payloads for mailboxID and an
	// unsubscribe func the caller must invoke when done. The channel is
	// closed after unsubscribe.
	Subscribe(ctx context.Context, mailboxID string) (<-chan []byte, func(), error)

	// Notify publishes payload to mailboxID's subscribers. It never blocks
	// on a slow consumer, matching the "push is an optimization, never a
	// guarantee" principle (spec §4.D).
	Notify(ctx context.Context, mailboxID string, payload []byte) error

	// Close releases backend resources.
	Close() error
}

// NewLocal builds an in-process Hub: see local.go for the actor
// implementation. Fine for a single-replica deployment; no messages survive
// a restart, which is correct for a push optimization layer.
func NewLocal() (Hub, error) {
	return newLocalHub(), nil
}

type amqpHub struct {
	pub message.Publisher
	sub message.Subscriber
}

// NewAMQP builds a Hub backed by RabbitMQ via watermill-amqp, so every
// replica behind the same broker sees every notification regardless of
// which replica accepted the triggering Send/Join.
func NewAMQP(amqpURL string) (Hub, error) {
	logger := watermill.NewStdLogger(false, false)

	cfg := wamqp.NewDurablePubSubConfig(amqpURL, wamqp.GenerateQueueNameTopicNameWithSuffix("pushhub"))

	pub, err := wamqp.NewPublisher(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("pushhub: amqp publisher: %w", err)
	}
	sub, err := wamqp.NewSubscriber(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("pushhub: amqp subscriber: %w", err)
	}
	return &amqpHub{pub: pub, sub: sub}, nil
}

func (h *amqpHub) Subscribe(ctx context.Context, mailboxID string) (<-chan []byte, func(), error) {
	msgs, err := h.sub.Subscribe(ctx, mailboxID)
	if err != nil {
		return nil, nil, fmt.Errorf("pushhub: subscribe: %w", err)
	}

	out := make(chan []byte, 16)
	done := make(chan struct{})

	go func() {
		defer close(out)
		for {
			select {
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				select {
				case out <- msg.Payload:
				default:
					// slow consumer: drop rather than block the fan-out loop
				}
				msg.Ack()
			case <-done:
				return
			}
		}
	}()

	unsubscribe := func() {
		close(done)
	}
	return out, unsubscribe, nil
}

func (h *amqpHub) Notify(_ context.Context, mailboxID string, payload []byte) error {
	msg := message.NewMessage(watermill.NewUUID(), payload)
	if err := h.pub.Publish(mailboxID, msg); err != nil {
		return fmt.Errorf("pushhub: publish: %w", err)
	}
	return nil
}

func (h *amqpHub) Close() error {
	if err := h.pub.Close(); err != nil {
		return err
	}
	return h.sub.Close()
}

var _ Hub = (*amqpHub)(nil)
