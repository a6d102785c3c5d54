// Package coordinator implements the rendezvous state machine: Init, Join,
// Send, Recv and the WS pre-upgrade existence check (spec §4.C). It never
// talks HTTP — every operation returns a *model.Error, leaving status-code
// translation entirely to the Transport Front (spec §7).
package coordinator

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dsk1ra/rendezvous-signal/internal/rendezvous/idgen"
	"github.com/dsk1ra/rendezvous-signal/internal/rendezvous/model"
	"github.com/dsk1ra/rendezvous-signal/internal/rendezvous/store"
)

// Coordinator is safe for concurrent use; all state lives in the Store.
type Coordinator struct {
	store     store.Store
	idgen     *idgen.Generator
	mailboxTTL    time.Duration
	rendezvousTTL time.Duration
}

// Option configures a Coordinator at construction time.
type Option func(*Coordinator)

func WithMailboxTTL(d time.Duration) Option    { return func(c *Coordinator) { c.mailboxTTL = d } }
func WithRendezvousTTL(d time.Duration) Option  { return func(c *Coordinator) { c.rendezvousTTL = d } }

// New constructs a Coordinator over the given store and ID generator.
func New(s store.Store, g *idgen.Generator, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:         s,
		idgen:         g,
		mailboxTTL:    30 * time.Second,
		rendezvousTTL: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// InitResult is the outcome of Init.
type InitResult struct {
	MailboxID   string
	ExpiresAtMs int64
}

// Init creates a fresh mailbox, clears any stale message list under its ID,
// and binds the given single-use rendezvous token to it (spec §4.C.Init).
// The token itself is chosen by the client: the Transport Front passes the
// request's rendezvous_id_b64 through unchanged.
func (c *Coordinator) Init(ctx context.Context, rendezvousToken string) (*InitResult, *model.Error) {
	mailboxID, err := c.idgen.MailboxID()
	if err != nil {
		return nil, model.ErrInternal(err)
	}

	now := time.Now().UnixMilli()
	expires := now + c.mailboxTTL.Milliseconds()

	state := &model.MailboxState{
		MailboxID:   mailboxID,
		CreatedAtMs: now,
		ExpiresAtMs: expires,
	}

	if err := c.store.PutMeta(ctx, mailboxID, state, c.mailboxTTL.Milliseconds()); err != nil {
		return nil, model.ErrInternal(err)
	}
	if err := c.store.ClearList(ctx, mailboxID); err != nil {
		return nil, model.ErrInternal(err)
	}
	if err := c.store.PutRendezvous(ctx, rendezvousToken, mailboxID, c.rendezvousTTL.Milliseconds()); err != nil {
		if err == store.ErrTokenExists {
			return nil, model.ErrTokenConflict()
		}
		return nil, model.ErrInternal(err)
	}

	return &InitResult{MailboxID: mailboxID, ExpiresAtMs: expires}, nil
}

// JoinResult is the outcome of Join, plus the notification to fan out to
// the initiator's Push Hub subscribers.
type JoinResult struct {
	MailboxID   string
	ExpiresAtMs int64

	// InitiatorMailboxID and PushNotify are for the caller to hand to the
	// Push Hub after Join succeeds; Join itself never touches the hub so it
	// stays testable in isolation.
	InitiatorMailboxID string
	PushNotify         model.MailboxMessage
}

// Join consumes a single-use rendezvous token, mints a responder mailbox,
// links both sides, and appends a zero-length "peer joined" marker message
// to the initiator's list (spec §4.C.Join). The token is deleted atomically
// by TakeRendezvous so a replayed join request always fails with
// invalid_token (spec §8 invariant).
func (c *Coordinator) Join(ctx context.Context, rendezvousToken string) (*JoinResult, *model.Error) {
	initiatorMailboxID, ok, err := c.store.TakeRendezvous(ctx, rendezvousToken)
	if err != nil {
		return nil, model.ErrInternal(err)
	}
	if !ok {
		return nil, model.ErrInvalidToken()
	}

	initiatorState, err := c.store.GetMeta(ctx, initiatorMailboxID)
	if err != nil {
		return nil, model.ErrInternal(err)
	}
	if initiatorState == nil {
		return nil, model.ErrMailboxNotFound()
	}
	if initiatorState.HasPeer() {
		return nil, model.ErrAlreadyPaired()
	}

	responderMailboxID, err := c.idgen.MailboxID()
	if err != nil {
		return nil, model.ErrInternal(err)
	}

	initiatorState.PeerMailboxID = responderMailboxID
	responderState := &model.MailboxState{
		MailboxID:     responderMailboxID,
		PeerMailboxID: initiatorMailboxID,
		CreatedAtMs:   initiatorState.CreatedAtMs,
		ExpiresAtMs:   initiatorState.ExpiresAtMs,
	}

	// Link both sides concurrently, the same fan-out-and-join shape the
	// enrichment service uses to resolve two peers at once.
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return c.store.PutMeta(gCtx, initiatorMailboxID, initiatorState, c.mailboxTTL.Milliseconds())
	})
	g.Go(func() error {
		if err := c.store.PutMeta(gCtx, responderMailboxID, responderState, c.mailboxTTL.Milliseconds()); err != nil {
			return err
		}
		return c.store.ClearList(gCtx, responderMailboxID)
	})
	if err := g.Wait(); err != nil {
		return nil, model.ErrInternal(err)
	}

	joinMsg := model.MailboxMessage{
		FromMailboxID: responderMailboxID,
		CiphertextB64: "",
		TimestampMs:   time.Now().UnixMilli(),
	}
	newLen, err := c.store.Append(ctx, initiatorMailboxID, joinMsg, c.mailboxTTL.Milliseconds())
	if err != nil {
		return nil, model.ErrInternal(err)
	}
	joinMsg.Sequence = uint64(newLen - 1)

	return &JoinResult{
		MailboxID:           responderMailboxID,
		ExpiresAtMs:          responderState.ExpiresAtMs,
		InitiatorMailboxID:  initiatorMailboxID,
		PushNotify:           joinMsg,
	}, nil
}

// SendResult carries the peer mailbox and stored message so the caller can
// fan it out through the Push Hub.
type SendResult struct {
	PeerMailboxID string
	Message       model.MailboxMessage
}

// Send appends ciphertext to the sender's linked peer mailbox (spec
// §4.C.Send). The ciphertext is opaque to the server; Send never inspects
// or decodes it.
func (c *Coordinator) Send(ctx context.Context, mailboxID, ciphertextB64 string) (*SendResult, *model.Error) {
	state, err := c.store.GetMeta(ctx, mailboxID)
	if err != nil {
		return nil, model.ErrInternal(err)
	}
	if state == nil {
		return nil, model.ErrMailboxNotFound()
	}
	if !state.HasPeer() {
		return nil, model.ErrNoPeer()
	}

	now := time.Now().UnixMilli()
	if now >= state.ExpiresAtMs {
		return nil, model.ErrSessionExpired()
	}

	msg := model.MailboxMessage{
		FromMailboxID: mailboxID,
		CiphertextB64: ciphertextB64,
		TimestampMs:   now,
	}
	newLen, err := c.store.Append(ctx, state.PeerMailboxID, msg, c.mailboxTTL.Milliseconds())
	if err != nil {
		return nil, model.ErrInternal(err)
	}
	msg.Sequence = uint64(newLen - 1)

	return &SendResult{PeerMailboxID: state.PeerMailboxID, Message: msg}, nil
}

// RecvResult is the outcome of Recv.
type RecvResult struct {
	Messages     []model.MailboxMessage
	LastSequence uint64
}

// Recv returns every message currently queued in a mailbox (spec
// §4.C.Recv). It does not drain the list — recv is a poll, not a pop; the
// mailbox's own TTL governs retention.
func (c *Coordinator) Recv(ctx context.Context, mailboxID string) (*RecvResult, *model.Error) {
	state, err := c.store.GetMeta(ctx, mailboxID)
	if err != nil {
		return nil, model.ErrInternal(err)
	}
	if state == nil {
		return nil, model.ErrMailboxNotFound()
	}

	messages, err := c.store.ReadList(ctx, mailboxID)
	if err != nil {
		return nil, model.ErrInternal(err)
	}

	var last uint64
	if len(messages) > 0 {
		last = messages[len(messages)-1].Sequence
	}

	return &RecvResult{Messages: messages, LastSequence: last}, nil
}

// VerifyMailbox reports whether a mailbox currently exists, used by the WS
// transport's existence-check-before-upgrade (spec §4.E).
func (c *Coordinator) VerifyMailbox(ctx context.Context, mailboxID string) *model.Error {
	state, err := c.store.GetMeta(ctx, mailboxID)
	if err != nil {
		return model.ErrInternal(err)
	}
	if state == nil {
		return model.ErrMailboxNotFound()
	}
	return nil
}
