// Package session tracks per-connection state shared between the framer, the
// dialect decoders, and the event pipeline.
package session

import (
	"time"

	"github.com/google/uuid"

	"github.com/fleetgrid/tracker-receiver/internal/store"
	"github.com/fleetgrid/tracker-receiver/internal/types"
)

// Session is the mutable state of one tracker connection. A session is owned
// by a single connection goroutine; no internal locking.
type Session struct {
	ID         string
	RemoteAddr string
	OpenedAt   time.Time

	// Dialect is fixed after the first packet is sniffed. Unknown until then.
	Dialect types.Dialect

	// ModemID is the raw identifier the device reported, empty before login.
	ModemID string

	// Identity is set once the resolver accepts ModemID.
	Identity *store.DeviceIdentity

	// Decoders stash dialect-specific parse state here between packets.
	DialectState any

	PacketCount int
	EventCount  int
	ErrorCount  int
}

func New(remoteAddr string) *Session {
	return &Session{
		ID:         uuid.New().String(),
		RemoteAddr: remoteAddr,
		OpenedAt:   time.Now(),
		Dialect:    types.DialectUnknown,
	}
}

// Authenticated reports whether a device identity has been resolved.
func (s *Session) Authenticated() bool {
	return s.Identity != nil
}
