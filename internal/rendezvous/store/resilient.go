package store

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sony/gobreaker"

	"github.com/dsk1ra/rendezvous-signal/internal/rendezvous/model"
)

// Resilient wraps a Store with a read-path cache-aside (hot GetMeta lookups,
// the same pattern the enrichment service uses for peer identities) and a
// circuit breaker around the backend so a struggling networked backend
// fails fast instead of piling up latency on every caller.
type Resilient struct {
	inner Store
	cache *lru.Cache[string, *model.MailboxState]
	cb    *gobreaker.CircuitBreaker
}

// ResilientOption configures a Resilient store at construction time.
type ResilientOption func(*Resilient)

// WithCacheSize overrides the default metadata cache capacity.
func WithCacheSize(n int) ResilientOption {
	return func(r *Resilient) {
		r.cache, _ = lru.New[string, *model.MailboxState](n)
	}
}

// NewResilient wraps inner with caching and breaker behavior. inner must be
// the ground-truth backend; Resilient never bypasses TTL semantics, it only
// memoizes reads.
func NewResilient(inner Store, opts ...ResilientOption) *Resilient {
	cache, _ := lru.New[string, *model.MailboxState](4096)
	r := &Resilient{inner: inner, cache: cache}
	r.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "mailbox_store",
		MaxRequests: 1,
		Interval:    30 * time.Second,
		Timeout:     5 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// retryOnce calls fn, and on failure calls it exactly once more before
// giving up — store reads (GetMeta, ListLen, ReadList) are idempotent, so a
// single retry absorbs a transient hiccup without amplifying load under
// sustained failure (the breaker handles that case).
func retryOnce[T any](fn func() (T, error)) (T, error) {
	v, err := fn()
	if err == nil {
		return v, nil
	}
	return fn()
}

func (r *Resilient) PutMeta(ctx context.Context, mailboxID string, state *model.MailboxState, ttlMs int64) error {
	_, err := r.cb.Execute(func() (any, error) {
		return nil, r.inner.PutMeta(ctx, mailboxID, state, ttlMs)
	})
	if err == nil {
		r.cache.Add(mailboxID, state)
	} else {
		r.cache.Remove(mailboxID)
	}
	return err
}

func (r *Resilient) GetMeta(ctx context.Context, mailboxID string) (*model.MailboxState, error) {
	if v, ok := r.cache.Get(mailboxID); ok {
		if v.ExpiresAtMs > time.Now().UnixMilli() {
			return v, nil
		}
		// cached entry has outlived the mailbox's own TTL; the cache must
		// never hand back a stale hit past ExpiresAtMs. Fall through to the
		// backend, which is the source of truth for whether it still exists.
		r.cache.Remove(mailboxID)
	}
	state, err := retryOnce(func() (*model.MailboxState, error) {
		v, err := r.cb.Execute(func() (any, error) {
			return r.inner.GetMeta(ctx, mailboxID)
		})
		if err != nil {
			return nil, err
		}
		s, _ := v.(*model.MailboxState)
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	if state != nil {
		r.cache.Add(mailboxID, state)
	}
	return state, nil
}

func (r *Resilient) PutRendezvous(ctx context.Context, token, mailboxID string, ttlMs int64) error {
	_, err := r.cb.Execute(func() (any, error) {
		return nil, r.inner.PutRendezvous(ctx, token, mailboxID, ttlMs)
	})
	return err
}

func (r *Resilient) TakeRendezvous(ctx context.Context, token string) (string, bool, error) {
	type result struct {
		id string
		ok bool
	}
	v, err := r.cb.Execute(func() (any, error) {
		id, ok, err := r.inner.TakeRendezvous(ctx, token)
		return result{id, ok}, err
	})
	if err != nil {
		return "", false, err
	}
	res := v.(result)
	return res.id, res.ok, nil
}

func (r *Resilient) ClearList(ctx context.Context, mailboxID string) error {
	_, err := r.cb.Execute(func() (any, error) {
		return nil, r.inner.ClearList(ctx, mailboxID)
	})
	return err
}

func (r *Resilient) Append(ctx context.Context, mailboxID string, msg model.MailboxMessage, ttlMs int64) (int, error) {
	v, err := r.cb.Execute(func() (any, error) {
		return r.inner.Append(ctx, mailboxID, msg, ttlMs)
	})
	if err != nil {
		return 0, err
	}
	return v.(int), nil
}

func (r *Resilient) ListLen(ctx context.Context, mailboxID string) (int, error) {
	return retryOnce(func() (int, error) {
		v, err := r.cb.Execute(func() (any, error) {
			return r.inner.ListLen(ctx, mailboxID)
		})
		if err != nil {
			return 0, err
		}
		return v.(int), nil
	})
}

func (r *Resilient) ReadList(ctx context.Context, mailboxID string) ([]model.MailboxMessage, error) {
	return retryOnce(func() ([]model.MailboxMessage, error) {
		v, err := r.cb.Execute(func() (any, error) {
			return r.inner.ReadList(ctx, mailboxID)
		})
		if err != nil {
			return nil, err
		}
		return v.([]model.MailboxMessage), nil
	})
}

var _ Store = (*Resilient)(nil)
