package pushhub

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// localCell is a per-mailbox actor: an isolated delivery unit that decouples
// Notify callers from WS fan-out. This is the registry package's Virtual
// Cell shape repurposed for mailbox IDs instead of user IDs and opaque byte
// payloads instead of typed events — a bounded inbox channel, batch
// draining on wakeup, and idle-based reclamation.
type localCell struct {
	mailboxID string
	inbox     chan []byte

	mu   sync.RWMutex
	subs map[uuid.UUID]chan []byte

	doneCh           chan struct{}
	lastActivityUnix int64
}

func newLocalCell(mailboxID string, bufferSize int) *localCell {
	c := &localCell{
		mailboxID:        mailboxID,
		inbox:            make(chan []byte, bufferSize),
		subs:             make(map[uuid.UUID]chan []byte),
		doneCh:           make(chan struct{}),
		lastActivityUnix: time.Now().Unix(),
	}
	go c.loop()
	return c
}

func (c *localCell) touch() {
	atomic.StoreInt64(&c.lastActivityUnix, time.Now().Unix())
}

// isIdle reports whether this cell has no attached subscriber and has seen
// no traffic for timeout; used by the janitor to reclaim abandoned cells
// (a mailbox whose WS client disconnected and whose peer stopped sending).
func (c *localCell) isIdle(timeout time.Duration) bool {
	c.mu.RLock()
	hasSubs := len(c.subs) > 0
	c.mu.RUnlock()
	if hasSubs {
		return false
	}
	return time.Since(time.Unix(atomic.LoadInt64(&c.lastActivityUnix), 0)) > timeout
}

// push enqueues payload for delivery. A full inbox drops the notification —
// push is a latency optimization, never the system of record.
func (c *localCell) push(payload []byte) bool {
	c.touch()
	select {
	case c.inbox <- payload:
		return true
	default:
		return false
	}
}

func (c *localCell) attach(bufferSize int) (uuid.UUID, chan []byte) {
	id := uuid.New()
	ch := make(chan []byte, bufferSize)
	c.mu.Lock()
	c.subs[id] = ch
	c.mu.Unlock()
	c.touch()
	return id, ch
}

func (c *localCell) detach(id uuid.UUID) {
	c.mu.Lock()
	if ch, ok := c.subs[id]; ok {
		delete(c.subs, id)
		close(ch)
	}
	c.mu.Unlock()
	c.touch()
}

func (c *localCell) loop() {
	for {
		select {
		case <-c.doneCh:
			return
		case payload := <-c.inbox:
			c.deliver(payload)
			for range 64 {
				select {
				case next := <-c.inbox:
					c.deliver(next)
				default:
					goto wait
				}
			}
		wait:
		}
	}
}

func (c *localCell) deliver(payload []byte) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, ch := range c.subs {
		select {
		case ch <- payload:
		default:
			// slow consumer: drop rather than stall the cell loop
		}
	}
}

func (c *localCell) stop() {
	close(c.doneCh)
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, ch := range c.subs {
		close(ch)
		delete(c.subs, id)
	}
}

// localHub is the single-replica Hub backend: a sync.Map of mailbox ID to
// localCell with a janitor goroutine reclaiming idle cells, the same shape
// as the registry package's Hub/runEvictor.
type localHub struct {
	cells sync.Map

	evictionInterval time.Duration
	idleTimeout      time.Duration
	mailboxSize      int
	stopCh           chan struct{}
}

type localOption func(*localHub)

func withEvictionInterval(d time.Duration) localOption { return func(h *localHub) { h.evictionInterval = d } }
func withIdleTimeout(d time.Duration) localOption       { return func(h *localHub) { h.idleTimeout = d } }
func withMailboxSize(n int) localOption                 { return func(h *localHub) { h.mailboxSize = n } }

func newLocalHub(opts ...localOption) *localHub {
	h := &localHub{
		evictionInterval: time.Minute,
		idleTimeout:      5 * time.Minute,
		mailboxSize:      64,
		stopCh:           make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	go h.runEvictor()
	return h
}

func (h *localHub) cellFor(mailboxID string) *localCell {
	val, _ := h.cells.LoadOrStore(mailboxID, newLocalCell(mailboxID, h.mailboxSize))
	return val.(*localCell)
}

func (h *localHub) Subscribe(_ context.Context, mailboxID string) (<-chan []byte, func(), error) {
	cell := h.cellFor(mailboxID)
	id, ch := cell.attach(16)
	return ch, func() { cell.detach(id) }, nil
}

func (h *localHub) Notify(_ context.Context, mailboxID string, payload []byte) error {
	h.cellFor(mailboxID).push(payload)
	return nil
}

func (h *localHub) runEvictor() {
	ticker := time.NewTicker(h.evictionInterval)
	defer ticker.Stop()
	for {
		select {
		case <-h.stopCh:
			return
		case <-ticker.C:
			h.performEviction()
		}
	}
}

func (h *localHub) performEviction() {
	h.cells.Range(func(key, value any) bool {
		cell := value.(*localCell)
		if cell.isIdle(h.idleTimeout) {
			cell.stop()
			h.cells.Delete(key)
		}
		return true
	})
}

func (h *localHub) Close() error {
	close(h.stopCh)
	h.cells.Range(func(key, value any) bool {
		value.(*localCell).stop()
		return true
	})
	return nil
}

var _ Hub = (*localHub)(nil)
