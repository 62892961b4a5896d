// Package protocols routes framed packets to the dialect decoder that
// understands them.
package protocols

import (
	"github.com/fleetgrid/tracker-receiver/internal/session"
	"github.com/fleetgrid/tracker-receiver/internal/types"
)

// Result is what one framed packet decodes to. A handshake packet has no
// Fixes; a data packet may also carry a Reply. Binary dialects can pack
// several reports into one frame.
type Result struct {
	Fixes      []*types.NormalizedFix
	Reply      []byte
	Disconnect bool
}

// One wraps a single fix in a Result.
func One(fix *types.NormalizedFix) *Result {
	return &Result{Fixes: []*types.NormalizedFix{fix}}
}

// Decoder parses the framed packets of one dialect family. Decoders mutate
// the session (modem ID, sub-dialect) as packets reveal more.
type Decoder interface {
	Dialect() types.Dialect
	Decode(packet []byte, s *session.Session) (*Result, error)
}
