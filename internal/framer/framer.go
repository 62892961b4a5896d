// Package framer decides packet boundaries in the raw connection stream
// before any dialect decoding happens.
package framer

import (
	"bytes"
	"encoding/binary"

	"github.com/fleetgrid/tracker-receiver/internal/types"
)

// Kind tells the session loop how to consume the buffered bytes.
type Kind int

const (
	// NeedMore asks for at least N more bytes before deciding again.
	NeedMore Kind = iota
	// Complete marks the first N buffered bytes as one packet.
	Complete
	// Discard drops the first N buffered bytes without decoding them.
	Discard
	// ReadLine consumes through the next CR or LF as one packet.
	ReadLine
	// ReadToEOF consumes everything until the peer closes.
	ReadToEOF
)

// nanoBinaryLen is the fixed frame length of the '$'-prefixed binary dialect.
const nanoBinaryLen = 32

type Decision struct {
	Kind Kind
	N    int
}

func needMore(n int) Decision { return Decision{Kind: NeedMore, N: n} }
func complete(n int) Decision { return Decision{Kind: Complete, N: n} }
func discard(n int) Decision  { return Decision{Kind: Discard, N: n} }

// Decide examines the buffered bytes and returns how to frame the next
// packet. The dialect is the session's locked dialect, Unknown on the first
// packet. endOfStream selects stream-end framing over line framing for the
// line-oriented ASCII branches. At least two bytes are buffered before any
// terminator scan so a lone leading byte never matches its own terminator.
func Decide(buf []byte, dialect types.Dialect, endOfStream bool) Decision {
	if len(buf) == 0 {
		return needMore(1)
	}

	// Astra frames are pure binary; once locked, never sniff by character.
	if dialect == types.DialectAstra {
		return decideAstra(buf)
	}

	b0 := buf[0]

	// Stray control bytes between packets (CR, LF, NUL keepalives).
	if b0 < 0x20 {
		return discard(1)
	}

	if len(buf) < 2 {
		return needMore(1)
	}

	line := Decision{Kind: ReadLine}
	if endOfStream {
		line = Decision{Kind: ReadToEOF}
	}

	switch {
	case b0 == '[':
		return delimited(buf, ']')
	case b0 == '(':
		return delimited(buf, ')')
	case b0 == '*':
		return delimited(buf, '#')
	case b0 == '>':
		return delimited(buf, '<')
	case b0 == 'C' || b0 == 'K' || b0 == 'M':
		return decideAstra(buf)
	case b0 == '$':
		// '$G' opens an NMEA sentence; anything else is the fixed-length
		// binary variant. A locked binary session never re-sniffs.
		if dialect != types.DialectTKNano2 && buf[1] == 'G' {
			return line
		}
		if len(buf) < nanoBinaryLen {
			return needMore(nanoBinaryLen - len(buf))
		}
		return complete(nanoBinaryLen)
	case b0 == '#' || b0 == 'i' || b0 == 'I':
		return line
	case b0 >= '0' && b0 <= '9':
		return line
	default:
		return discard(1)
	}
}

// delimited frames a packet that runs through a terminator character,
// terminator included.
func delimited(buf []byte, term byte) Decision {
	if i := bytes.IndexByte(buf[1:], term); i >= 0 {
		return complete(i + 2)
	}
	return needMore(1)
}

// decideAstra frames a binary packet: one protocol letter, then a big-endian
// 16-bit total length that includes the header itself.
func decideAstra(buf []byte) Decision {
	if len(buf) < 3 {
		return needMore(3 - len(buf))
	}
	if buf[0] != 'C' && buf[0] != 'K' && buf[0] != 'M' {
		return discard(1)
	}
	total := int(binary.BigEndian.Uint16(buf[1:3]))
	if total < 3 {
		return discard(1)
	}
	if len(buf) < total {
		return needMore(total - len(buf))
	}
	return complete(total)
}
