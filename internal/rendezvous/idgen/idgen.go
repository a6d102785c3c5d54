// Package idgen produces the two high-entropy identifiers the rendezvous
// protocol depends on: the single-use rendezvous token and the opaque
// mailbox ID. Both come from crypto/rand — the only CSPRNG source stdlib
// offers and the one every security-sensitive generator in the pack
// ultimately bottoms out on. Neither is ever derived from user input or a
// sequenced counter (spec §4.B).
package idgen

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

const (
	// RendezvousTokenBytes is 256 bits of entropy per spec §4.B.
	RendezvousTokenBytes = 32
	// MailboxIDBytes is 128 bits of entropy per spec §4.B.
	MailboxIDBytes = 16
)

// Generator mints rendezvous tokens and mailbox IDs. It is stateless and
// safe for concurrent use.
type Generator struct{}

func New() *Generator { return &Generator{} }

// RendezvousToken returns 32 bytes of CSPRNG output, URL-safe base64 without
// padding.
func (g *Generator) RendezvousToken() (string, error) {
	buf := make([]byte, RendezvousTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("idgen: rendezvous token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// MailboxID returns 16 bytes of CSPRNG output, lowercase hex.
func (g *Generator) MailboxID() (string, error) {
	buf := make([]byte, MailboxIDBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("idgen: mailbox id: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
