// Package store defines the Mailbox Store contract (spec §4.A): a keyed
// store with atomic set-with-TTL, atomic get-then-delete, append-to-list,
// list read, and list length. Every key is namespaced with a configurable
// prefix so the store can be shared with unrelated workloads.
package store

import (
	"context"
	"errors"

	"github.com/dsk1ra/rendezvous-signal/internal/rendezvous/model"
)

// ErrBackend is the sentinel for transport-level failures (store
// unreachable, serialization failure), distinct from a clean "not found"
// result. No backend in this repository returns it: memstore operations
// never fail, and Resilient returns the circuit breaker's own errors.
var ErrBackend = errors.New("store: backend error")

// ErrTokenExists is returned by PutRendezvous when the token key already
// exists; callers must pick a fresh token.
var ErrTokenExists = errors.New("store: rendezvous token already exists")

// Store is the abstract contract the Coordinator is built against. It has
// no opinion about the concrete backend (in-process map, Redis, etc.) — see
// SPEC_FULL.md §D.
type Store interface {
	// PutMeta overwrites mailbox metadata; expiry is reset to ttlMs.
	PutMeta(ctx context.Context, mailboxID string, state *model.MailboxState, ttlMs int64) error

	// GetMeta returns (nil, nil) if the key is absent.
	GetMeta(ctx context.Context, mailboxID string) (*model.MailboxState, error)

	// PutRendezvous creates token -> mailboxID. It fails with ErrTokenExists
	// if the key is already present (token-reuse protection).
	PutRendezvous(ctx context.Context, token, mailboxID string, ttlMs int64) error

	// TakeRendezvous atomically reads and deletes the token mapping so that
	// concurrent joins produce at most one success. Returns ("", false, nil)
	// if absent.
	TakeRendezvous(ctx context.Context, token string) (mailboxID string, ok bool, err error)

	// ClearList removes all entries from a mailbox's message list.
	ClearList(ctx context.Context, mailboxID string) error

	// Append adds entry to the mailbox's list, resets the list's TTL to
	// ttlMs, and returns the new list length. The Coordinator derives
	// Sequence from this return value (newLength-1) so that sequence
	// assignment is atomic per recipient list (spec §9 "recommended
	// redesign").
	Append(ctx context.Context, mailboxID string, entry model.MailboxMessage, ttlMs int64) (newLength int, err error)

	// ListLen returns the current length of a mailbox's list.
	ListLen(ctx context.Context, mailboxID string) (int, error)

	// ReadList returns the full current list in insertion order.
	ReadList(ctx context.Context, mailboxID string) ([]model.MailboxMessage, error)
}
