package protocols

import (
	"bytes"

	"github.com/fleetgrid/tracker-receiver/internal/types"
)

// Sniff guesses the dialect of a complete framed packet. The guess picks the
// decoder family; decoders refine the sub-dialect themselves.
func Sniff(packet []byte) types.Dialect {
	s := bytes.TrimSpace(packet)
	if len(s) == 0 {
		return types.DialectUnknown
	}

	switch s[0] {
	case '[':
		return types.DialectTK102B
	case '(':
		if bytes.IndexByte(s, ',') >= 0 {
			return types.DialectVJoy
		}
		return types.DialectTK103_3
	case '*':
		return types.DialectTKNano1
	case '#':
		// "##,imei:..." keep-alive
		return types.DialectTK103_2
	case '>':
		return types.DialectLantrix
	case 'C', 'K', 'M':
		return types.DialectAstra
	case '$':
		if bytes.HasPrefix(s, []byte("$GPRMC")) {
			return types.DialectGPRMC
		}
		return types.DialectTKNano2
	}

	if bytes.HasPrefix(s, []byte("imei:")) {
		return types.DialectTK103_2
	}

	if s[0] >= '0' && s[0] <= '9' {
		if len(s) == 15 && allDigits(s) {
			// bare IMEI login
			return types.DialectTK103_1
		}
		if bytes.Contains(s, []byte("GPRMC")) || bytes.Contains(s, []byte("imei:")) {
			return types.DialectTK102
		}
		if looksCommaASCII(s) {
			return types.DialectGPRMC
		}
		return types.DialectTK102
	}

	return types.DialectUnknown
}

func allDigits(s []byte) bool {
	for _, b := range s {
		if b < '0' || b > '9' {
			return false
		}
	}
	return true
}

// looksCommaASCII recognizes the plain comma-separated report
// "<id>,<YYYY/MM/DD>,<HH:MM:SS>,<lat>,<lon>,<speed>,<heading>".
func looksCommaASCII(s []byte) bool {
	fld := bytes.Split(s, []byte(","))
	if len(fld) < 7 {
		return false
	}
	return bytes.Count(fld[1], []byte("/")) == 2 && bytes.Count(fld[2], []byte(":")) == 2
}
