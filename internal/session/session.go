// Package session implements the Session Shell (spec §4.F): an
// authentication wrapper around init/send that is deliberately orthogonal
// to the rendezvous state machine. It has its own in-memory store with its
// own lazy-pruning lifecycle, never the Mailbox Store's TTL mechanism.
package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Record is one registered client's bookkeeping.
type Record struct {
	ClientID       uuid.UUID
	DeviceLabel    string
	SessionToken   string
	RegisteredAt   time.Time
	LastHeartbeat  time.Time
}

// Registry holds active client sessions in memory, pruning stale entries
// lazily on every call — the same pattern original_source's SessionRegistry
// uses, rather than a separate ticker.
type Registry struct {
	mu                sync.Mutex
	clients           map[uuid.UUID]*Record
	sessionTTL        time.Duration
	heartbeatInterval time.Duration
}

// New constructs an empty Registry.
func New(sessionTTL, heartbeatInterval time.Duration) *Registry {
	return &Registry{
		clients:           make(map[uuid.UUID]*Record),
		sessionTTL:        sessionTTL,
		heartbeatInterval: heartbeatInterval,
	}
}

// RegisterResult is the response body for POST /register.
type RegisterResult struct {
	ClientID          uuid.UUID
	SessionToken      string
	HeartbeatIntervalSecs int64
	DisplayName       string
}

// Register issues a fresh client_id/session_token pair and assigns a
// sequential display name, exactly as original_source's register does.
func (r *Registry) Register(deviceLabel string) RegisterResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pruneLocked()

	clientID := uuid.New()
	token := uuid.NewString()
	now := time.Now()

	r.clients[clientID] = &Record{
		ClientID:      clientID,
		DeviceLabel:   deviceLabel,
		SessionToken:  token,
		RegisteredAt:  now,
		LastHeartbeat: now,
	}

	return RegisterResult{
		ClientID:              clientID,
		SessionToken:          token,
		HeartbeatIntervalSecs: int64(r.heartbeatInterval.Seconds()),
		DisplayName:           fmt.Sprintf("Client %d", len(r.clients)),
	}
}

// ErrClientNotFound and ErrInvalidToken mirror original_source's
// RegistryError variants.
var (
	ErrClientNotFound = fmt.Errorf("session: client not found")
	ErrInvalidToken   = fmt.Errorf("session: session token rejected")
)

// Verify checks a (client_id, session_token) pair without mutating
// heartbeat state; used as init/send's auth pre-check.
func (r *Registry) Verify(clientID uuid.UUID, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pruneLocked()
	return r.verifyLocked(clientID, token)
}

func (r *Registry) verifyLocked(clientID uuid.UUID, token string) error {
	rec, ok := r.clients[clientID]
	if !ok {
		return ErrClientNotFound
	}
	if rec.SessionToken != token {
		return ErrInvalidToken
	}
	return nil
}

// HeartbeatResult is the response body for POST /heartbeat.
type HeartbeatResult struct {
	NextHeartbeatSecs int64
}

// Heartbeat verifies the session and refreshes LastHeartbeat.
func (r *Registry) Heartbeat(clientID uuid.UUID, token string) (HeartbeatResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pruneLocked()

	if err := r.verifyLocked(clientID, token); err != nil {
		return HeartbeatResult{}, err
	}
	r.clients[clientID].LastHeartbeat = time.Now()

	return HeartbeatResult{NextHeartbeatSecs: int64(r.heartbeatInterval.Seconds())}, nil
}

// pruneLocked removes clients whose last heartbeat is older than
// sessionTTL. Caller must hold r.mu.
func (r *Registry) pruneLocked() {
	cutoff := time.Now().Add(-r.sessionTTL)
	for id, rec := range r.clients {
		if rec.LastHeartbeat.Before(cutoff) {
			delete(r.clients, id)
		}
	}
}
