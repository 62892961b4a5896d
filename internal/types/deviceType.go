package types

// Dialect identifies the vendor packet format a connection speaks. It is
// sniffed from the first unambiguous byte of a session and then pinned on the
// session, except where a dialect explicitly allows mid-session refinement
// (the paren-delimited family splits into TK103-3 and VJoy).
type Dialect int

const (
	DialectUnknown Dialect = iota
	DialectTK102
	DialectTK102B
	DialectTK103_1
	DialectTK103_2
	DialectTK103_3
	DialectVJoy
	DialectTKNano1
	DialectTKNano2
	DialectGPRMC
	DialectLantrix
	DialectAstra
)

func (d Dialect) String() string {
	switch d {
	case DialectTK102:
		return "tk102"
	case DialectTK102B:
		return "tk102b"
	case DialectTK103_1:
		return "tk103-1"
	case DialectTK103_2:
		return "tk103-2"
	case DialectTK103_3:
		return "tk103-3"
	case DialectVJoy:
		return "vjoy"
	case DialectTKNano1:
		return "tknano-1"
	case DialectTKNano2:
		return "tknano-2"
	case DialectGPRMC:
		return "gprmc"
	case DialectLantrix:
		return "lantrix"
	case DialectAstra:
		return "astra"
	default:
		return "unknown"
	}
}

// IsUnknown reports whether the dialect has not been sniffed yet.
func (d Dialect) IsUnknown() bool { return d == DialectUnknown }

// ConfigKey returns the dialect-config section name covering this dialect.
// The TK10x sub-variants share one section, matching how they share one
// communication server.
func (d Dialect) ConfigKey() string {
	switch d {
	case DialectTK102, DialectTK102B, DialectTK103_1, DialectTK103_2,
		DialectTK103_3, DialectVJoy, DialectTKNano1, DialectTKNano2:
		return "tk10x"
	case DialectGPRMC:
		return "gprmc"
	case DialectLantrix:
		return "lantrix"
	case DialectAstra:
		return "astra"
	default:
		return "default"
	}
}
