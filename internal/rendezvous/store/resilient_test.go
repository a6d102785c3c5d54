package store

import (
	"context"
	"testing"
	"time"

	"github.com/dsk1ra/rendezvous-signal/internal/rendezvous/model"
	"github.com/dsk1ra/rendezvous-signal/internal/rendezvous/store/memstore"
)

func TestResilientGetMetaCachesHit(t *testing.T) {
	inner := memstore.New()
	defer inner.Close()
	r := NewResilient(inner)
	ctx := context.Background()

	state := &model.MailboxState{MailboxID: "abc", ExpiresAtMs: time.Now().Add(time.Hour).UnixMilli()}
	if err := r.PutMeta(ctx, "abc", state, time.Hour.Milliseconds()); err != nil {
		t.Fatalf("PutMeta returned error: %v", err)
	}

	got, err := r.GetMeta(ctx, "abc")
	if err != nil {
		t.Fatalf("GetMeta returned error: %v", err)
	}
	if got == nil || got.MailboxID != "abc" {
		t.Fatalf("GetMeta returned %+v, expected mailbox abc", got)
	}
	if _, ok := r.cache.Get("abc"); !ok {
		t.Fatalf("expected abc to be cached after GetMeta")
	}
}

// TestResilientGetMetaDoesNotServeStaleCacheAfterExpiry guards the fix for
// the cache handing back a mailbox past its own ExpiresAtMs: once expired,
// GetMeta must fall through to the backend rather than trust a stale hit.
func TestResilientGetMetaDoesNotServeStaleCacheAfterExpiry(t *testing.T) {
	inner := memstore.New()
	defer inner.Close()
	r := NewResilient(inner)
	ctx := context.Background()

	expiresAt := time.Now().Add(20 * time.Millisecond).UnixMilli()
	state := &model.MailboxState{MailboxID: "abc", ExpiresAtMs: expiresAt}
	if err := r.PutMeta(ctx, "abc", state, 20); err != nil {
		t.Fatalf("PutMeta returned error: %v", err)
	}

	// warm the cache
	if _, err := r.GetMeta(ctx, "abc"); err != nil {
		t.Fatalf("GetMeta returned error: %v", err)
	}

	time.Sleep(40 * time.Millisecond)

	got, err := r.GetMeta(ctx, "abc")
	if err != nil {
		t.Fatalf("GetMeta returned error: %v", err)
	}
	if got != nil {
		t.Fatalf("GetMeta returned %+v after ExpiresAtMs and backend TTL both elapsed, expected nil", got)
	}
}

func TestResilientPutMetaWarmsCacheOnSuccess(t *testing.T) {
	inner := memstore.New()
	defer inner.Close()
	r := NewResilient(inner)
	ctx := context.Background()

	state := &model.MailboxState{MailboxID: "abc", ExpiresAtMs: time.Now().Add(time.Hour).UnixMilli()}
	if err := r.PutMeta(ctx, "abc", state, time.Hour.Milliseconds()); err != nil {
		t.Fatalf("PutMeta returned error: %v", err)
	}
	if _, ok := r.cache.Get("abc"); !ok {
		t.Fatalf("expected abc to be cached after a successful PutMeta")
	}
}

var _ Store = (*Resilient)(nil)
