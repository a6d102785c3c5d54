// Package model holds the data shapes shared by the rendezvous store,
// coordinator, and transport layers. Nothing in here touches ciphertext
// content: the server only ever moves opaque base64 blobs around.
package model

// MailboxState is the metadata for one side of a rendezvous pair.
//
// [INVARIANT] PeerMailboxID transitions absent -> present exactly once and
// is never cleared afterwards. Both sides of a linked pair carry the same
// ExpiresAtMs.
type MailboxState struct {
	MailboxID     string `json:"mailbox_id"`
	PeerMailboxID string `json:"peer_mailbox_id,omitempty"`
	CreatedAtMs   int64  `json:"created_at_ms"`
	ExpiresAtMs   int64  `json:"expires_at_ms"`
}

// HasPeer reports whether the pair has been linked by join.
func (s *MailboxState) HasPeer() bool {
	return s != nil && s.PeerMailboxID != ""
}

// MailboxMessage is a single opaque append entry in a mailbox's list.
//
// [INVARIANT] Within one mailbox's list, Sequence values are dense from 0
// and strictly increasing; they are assigned by the store at append time
// from the list length, never supplied by the caller.
type MailboxMessage struct {
	FromMailboxID string `json:"from_mailbox_id"`
	CiphertextB64 string `json:"ciphertext_b64"`
	Sequence      uint64 `json:"sequence"`
	TimestampMs   int64  `json:"timestamp_epoch_ms"`
}
