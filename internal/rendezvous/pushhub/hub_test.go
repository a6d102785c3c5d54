package pushhub

import (
	"context"
	"testing"
	"time"
)

func TestLocalHubDeliversNotifyToSubscriber(t *testing.T) {
	h, err := NewLocal()
	if err != nil {
		t.Fatalf("NewLocal returned error: %v", err)
	}
	defer h.Close()

	ctx := context.Background()
	msgs, unsubscribe, err := h.Subscribe(ctx, "mbx1")
	if err != nil {
		t.Fatalf("Subscribe returned error: %v", err)
	}
	defer unsubscribe()

	// Subscribe attaches synchronously; the short pause only lets the
	// cell's delivery goroutine start before the first Notify.
	time.Sleep(20 * time.Millisecond)

	if err := h.Notify(ctx, "mbx1", []byte("hello")); err != nil {
		t.Fatalf("Notify returned error: %v", err)
	}

	select {
	case payload := <-msgs:
		if string(payload) != "hello" {
			t.Fatalf("received payload %q, expected %q", payload, "hello")
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for notification")
	}
}

func TestLocalHubDoesNotDeliverToOtherMailbox(t *testing.T) {
	h, err := NewLocal()
	if err != nil {
		t.Fatalf("NewLocal returned error: %v", err)
	}
	defer h.Close()

	ctx := context.Background()
	msgs, unsubscribe, err := h.Subscribe(ctx, "mbx1")
	if err != nil {
		t.Fatalf("Subscribe returned error: %v", err)
	}
	defer unsubscribe()

	time.Sleep(20 * time.Millisecond)

	if err := h.Notify(ctx, "mbx2", []byte("not for you")); err != nil {
		t.Fatalf("Notify returned error: %v", err)
	}

	select {
	case payload := <-msgs:
		t.Fatalf("unexpectedly received payload %q for a different mailbox", payload)
	case <-time.After(100 * time.Millisecond):
		// expected: no delivery
	}
}
