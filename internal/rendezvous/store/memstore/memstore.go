// Package memstore is an in-process implementation of store.Store. Entries
// live in a sharded map with per-key expiry; a janitor goroutine reclaims
// expired entries on an interval, the same active-eviction shape the
// registry package uses for idle connection cells (shard count and buckets
// replace user cells, expiry replaces idle timeout).
//
// It is meant for single-replica deployments and tests. Multi-replica
// deployments need a networked backend behind the same store.Store
// interface (see SPEC_FULL.md §D) — none is wired here because the example
// pack carries no Redis (or similar) client to ground one on.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/dsk1ra/rendezvous-signal/internal/rendezvous/model"
	"github.com/dsk1ra/rendezvous-signal/internal/rendezvous/store"
)

const shardCount = 32

type entry struct {
	meta      *model.MailboxState
	rendez    string // mailboxID this token resolves to; "" if not a rendezvous key
	list      []model.MailboxMessage
	expiresAt time.Time
}

func (e *entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

type shard struct {
	mu   sync.Mutex
	data map[string]*entry
}

// Store is a sharded, mutex-guarded in-memory implementation of
// store.Store.
type Store struct {
	shards        [shardCount]*shard
	janitorPeriod time.Duration
	keyPrefix     string
	stopCh        chan struct{}
}

// Option configures a Store at construction time.
type Option func(*Store)

// WithJanitorPeriod overrides the default eviction sweep interval.
func WithJanitorPeriod(d time.Duration) Option {
	return func(s *Store) { s.janitorPeriod = d }
}

// WithKeyPrefix overrides the default namespace prefix ("sig") every key is
// built under, so the store can be shared with unrelated workloads.
func WithKeyPrefix(prefix string) Option {
	return func(s *Store) { s.keyPrefix = prefix }
}

// New constructs a Store and starts its janitor goroutine.
func New(opts ...Option) *Store {
	s := &Store{
		janitorPeriod: 30 * time.Second,
		keyPrefix:     "sig",
		stopCh:        make(chan struct{}),
	}
	for i := range s.shards {
		s.shards[i] = &shard{data: make(map[string]*entry)}
	}
	for _, opt := range opts {
		opt(s)
	}
	go s.runJanitor()
	return s
}

// Close stops the janitor goroutine. Safe to call once.
func (s *Store) Close() {
	close(s.stopCh)
}

func (s *Store) shardFor(key string) *shard {
	var h uint32 = 2166136261
	for i := 0; i < len(key); i++ {
		h ^= uint32(key[i])
		h *= 16777619
	}
	return s.shards[h%shardCount]
}

func (s *Store) runJanitor() {
	ticker := time.NewTicker(s.janitorPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *Store) sweep() {
	now := time.Now()
	for _, sh := range s.shards {
		sh.mu.Lock()
		for k, e := range sh.data {
			if e.expired(now) {
				delete(sh.data, k)
			}
		}
		sh.mu.Unlock()
	}
}

// Key layout: {prefix}:mailbox_meta:{mailbox_id}, {prefix}:mailbox_msgs:{mailbox_id},
// {prefix}:rendezvous:{token}.
func (s *Store) metaKey(mailboxID string) string { return s.keyPrefix + ":mailbox_meta:" + mailboxID }
func (s *Store) listKey(mailboxID string) string { return s.keyPrefix + ":mailbox_msgs:" + mailboxID }
func (s *Store) rendezKey(token string) string   { return s.keyPrefix + ":rendezvous:" + token }

func (s *Store) PutMeta(_ context.Context, mailboxID string, state *model.MailboxState, ttlMs int64) error {
	key := s.metaKey(mailboxID)
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	sh.data[key] = &entry{meta: state, expiresAt: time.Now().Add(time.Duration(ttlMs) * time.Millisecond)}
	return nil
}

func (s *Store) GetMeta(_ context.Context, mailboxID string) (*model.MailboxState, error) {
	key := s.metaKey(mailboxID)
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	e, ok := sh.data[key]
	if !ok || e.expired(time.Now()) {
		return nil, nil
	}
	return e.meta, nil
}

func (s *Store) PutRendezvous(_ context.Context, token, mailboxID string, ttlMs int64) error {
	key := s.rendezKey(token)
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if e, ok := sh.data[key]; ok && !e.expired(time.Now()) {
		return store.ErrTokenExists
	}
	sh.data[key] = &entry{rendez: mailboxID, expiresAt: time.Now().Add(time.Duration(ttlMs) * time.Millisecond)}
	return nil
}

func (s *Store) TakeRendezvous(_ context.Context, token string) (string, bool, error) {
	key := s.rendezKey(token)
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	e, ok := sh.data[key]
	if !ok || e.expired(time.Now()) {
		return "", false, nil
	}
	delete(sh.data, key)
	return e.rendez, true, nil
}

func (s *Store) ClearList(_ context.Context, mailboxID string) error {
	key := s.listKey(mailboxID)
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	delete(sh.data, key)
	return nil
}

func (s *Store) Append(_ context.Context, mailboxID string, msg model.MailboxMessage, ttlMs int64) (int, error) {
	key := s.listKey(mailboxID)
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	e, ok := sh.data[key]
	if !ok || e.expired(time.Now()) {
		e = &entry{}
		sh.data[key] = e
	}
	msg.Sequence = uint64(len(e.list))
	e.list = append(e.list, msg)
	e.expiresAt = time.Now().Add(time.Duration(ttlMs) * time.Millisecond)
	return len(e.list), nil
}

func (s *Store) ListLen(_ context.Context, mailboxID string) (int, error) {
	key := s.listKey(mailboxID)
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	e, ok := sh.data[key]
	if !ok || e.expired(time.Now()) {
		return 0, nil
	}
	return len(e.list), nil
}

func (s *Store) ReadList(_ context.Context, mailboxID string) ([]model.MailboxMessage, error) {
	key := s.listKey(mailboxID)
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	e, ok := sh.data[key]
	if !ok || e.expired(time.Now()) {
		return nil, nil
	}
	out := make([]model.MailboxMessage, len(e.list))
	copy(out, e.list)
	return out, nil
}

var _ store.Store = (*Store)(nil)
