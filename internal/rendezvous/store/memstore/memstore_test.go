package memstore

import (
	"context"
	"testing"
	"time"

	"github.com/dsk1ra/rendezvous-signal/internal/rendezvous/model"
	"github.com/dsk1ra/rendezvous-signal/internal/rendezvous/store"
)

func TestPutGetMeta(t *testing.T) {
	s := New()
	defer s.Close()
	ctx := context.Background()

	state := &model.MailboxState{MailboxID: "abc", CreatedAtMs: 1}
	if err := s.PutMeta(ctx, "abc", state, 1000); err != nil {
		t.Fatalf("PutMeta returned error: %v", err)
	}

	got, err := s.GetMeta(ctx, "abc")
	if err != nil {
		t.Fatalf("GetMeta returned error: %v", err)
	}
	if got == nil || got.MailboxID != "abc" {
		t.Fatalf("GetMeta returned %+v, expected mailbox abc", got)
	}
}

func TestGetMetaMissing(t *testing.T) {
	s := New()
	defer s.Close()

	got, err := s.GetMeta(context.Background(), "missing")
	if err != nil {
		t.Fatalf("GetMeta returned error: %v", err)
	}
	if got != nil {
		t.Fatalf("GetMeta returned %+v, expected nil", got)
	}
}

func TestMetaExpires(t *testing.T) {
	s := New()
	defer s.Close()
	ctx := context.Background()

	if err := s.PutMeta(ctx, "abc", &model.MailboxState{MailboxID: "abc"}, 10); err != nil {
		t.Fatalf("PutMeta returned error: %v", err)
	}
	time.Sleep(30 * time.Millisecond)

	got, err := s.GetMeta(ctx, "abc")
	if err != nil {
		t.Fatalf("GetMeta returned error: %v", err)
	}
	if got != nil {
		t.Fatalf("GetMeta returned %+v after TTL expiry, expected nil", got)
	}
}

func TestPutRendezvousConflict(t *testing.T) {
	s := New()
	defer s.Close()
	ctx := context.Background()

	if err := s.PutRendezvous(ctx, "tok", "mbx1", 1000); err != nil {
		t.Fatalf("first PutRendezvous returned error: %v", err)
	}
	if err := s.PutRendezvous(ctx, "tok", "mbx2", 1000); err != store.ErrTokenExists {
		t.Fatalf("second PutRendezvous returned %v, expected ErrTokenExists", err)
	}
}

func TestTakeRendezvousIsSingleUse(t *testing.T) {
	s := New()
	defer s.Close()
	ctx := context.Background()

	if err := s.PutRendezvous(ctx, "tok", "mbx1", 1000); err != nil {
		t.Fatalf("PutRendezvous returned error: %v", err)
	}

	id, ok, err := s.TakeRendezvous(ctx, "tok")
	if err != nil || !ok || id != "mbx1" {
		t.Fatalf("first TakeRendezvous returned (%q, %v, %v), expected (mbx1, true, nil)", id, ok, err)
	}

	id, ok, err = s.TakeRendezvous(ctx, "tok")
	if err != nil || ok || id != "" {
		t.Fatalf("second TakeRendezvous returned (%q, %v, %v), expected (\"\", false, nil)", id, ok, err)
	}
}

func TestAppendSequenceIsDenseAndIncreasing(t *testing.T) {
	s := New()
	defer s.Close()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		n, err := s.Append(ctx, "mbx1", model.MailboxMessage{CiphertextB64: "x"}, 1000)
		if err != nil {
			t.Fatalf("Append returned error: %v", err)
		}
		if n != i+1 {
			t.Fatalf("Append returned length %d, expected %d", n, i+1)
		}
	}

	list, err := s.ReadList(ctx, "mbx1")
	if err != nil {
		t.Fatalf("ReadList returned error: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("ReadList returned %d entries, expected 3", len(list))
	}
	for i, msg := range list {
		if msg.Sequence != uint64(i) {
			t.Fatalf("entry %d has sequence %d, expected %d", i, msg.Sequence, i)
		}
	}
}

func TestDefaultKeyPrefixIsSig(t *testing.T) {
	s := New()
	defer s.Close()

	if got := s.metaKey("abc"); got != "sig:mailbox_meta:abc" {
		t.Fatalf("metaKey = %q, expected sig:mailbox_meta:abc", got)
	}
}

func TestWithKeyPrefixNamespacesKeys(t *testing.T) {
	s := New(WithKeyPrefix("custom"))
	defer s.Close()

	if got := s.metaKey("abc"); got != "custom:mailbox_meta:abc" {
		t.Fatalf("metaKey = %q, expected custom:mailbox_meta:abc", got)
	}
	if got := s.listKey("abc"); got != "custom:mailbox_msgs:abc" {
		t.Fatalf("listKey = %q, expected custom:mailbox_msgs:abc", got)
	}
	if got := s.rendezKey("tok"); got != "custom:rendezvous:tok" {
		t.Fatalf("rendezKey = %q, expected custom:rendezvous:tok", got)
	}
}

func TestClearList(t *testing.T) {
	s := New()
	defer s.Close()
	ctx := context.Background()

	if _, err := s.Append(ctx, "mbx1", model.MailboxMessage{}, 1000); err != nil {
		t.Fatalf("Append returned error: %v", err)
	}
	if err := s.ClearList(ctx, "mbx1"); err != nil {
		t.Fatalf("ClearList returned error: %v", err)
	}
	n, err := s.ListLen(ctx, "mbx1")
	if err != nil {
		t.Fatalf("ListLen returned error: %v", err)
	}
	if n != 0 {
		t.Fatalf("ListLen returned %d after clear, expected 0", n)
	}
}
