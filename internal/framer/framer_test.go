package framer

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fleetgrid/tracker-receiver/internal/types"
)

func TestDecideEmptyBuffer(t *testing.T) {
	d := Decide(nil, types.DialectUnknown, false)
	assert.Equal(t, NeedMore, d.Kind)
}

func TestDecideControlBytesDiscarded(t *testing.T) {
	for _, b := range []byte{'\r', '\n', 0x00} {
		d := Decide([]byte{b, '1'}, types.DialectUnknown, false)
		assert.Equal(t, Discard, d.Kind)
		assert.Equal(t, 1, d.N)
	}
}

func TestDecideDelimitedFrames(t *testing.T) {
	testCases := []struct {
		packet string
	}{
		{"[!0000000081,1000000000]"},
		{"(013612345678BP05000013612345678060905A3536.3640N14222.2958E027.0074725224.80000000000L000450AC)"},
		{"*HQ,1234567890,V1,074726,A,3536.3640,N,14222.2958,E,14.5,224,050906,FFFFFBFF#"},
		{">RGP190805211932-3457215-058493640000000FF7F2100;ID=1234;#2122;*54<"},
	}

	for _, tc := range testCases {
		buf := []byte(tc.packet)

		// Full packet spans exactly itself.
		d := Decide(buf, types.DialectUnknown, false)
		assert.Equal(t, Complete, d.Kind, tc.packet)
		assert.Equal(t, len(buf), d.N, tc.packet)

		// Any prefix short of the terminator asks for more.
		d = Decide(buf[:len(buf)-1], types.DialectUnknown, false)
		assert.Equal(t, NeedMore, d.Kind, tc.packet)

		// Trailing bytes of the next packet do not extend the span.
		d = Decide(append(append([]byte{}, buf...), '('), types.DialectUnknown, false)
		assert.Equal(t, Complete, d.Kind, tc.packet)
		assert.Equal(t, len(buf), d.N, tc.packet)
	}
}

func TestDecideLoneDelimiterNeedsSecondByte(t *testing.T) {
	for _, b := range []byte{'[', '(', '*', '>'} {
		d := Decide([]byte{b}, types.DialectUnknown, false)
		assert.Equal(t, NeedMore, d.Kind)
	}
}

func TestDecideLineOrientedDialects(t *testing.T) {
	for _, prefix := range []string{
		"$GPRMC,074726.000,A,",
		"imei:13612345678,tracker,",
		"##,imei:13612345678,A",
		"123456789012345,2006/09/05,07:47:26,35.3640,-142.2958,27.0,224.8",
	} {
		d := Decide([]byte(prefix), types.DialectUnknown, false)
		assert.Equal(t, ReadLine, d.Kind, prefix)
	}
}

func TestDecideAstraLengthFraming(t *testing.T) {
	// 'K', length 0x0010, then 13 payload bytes.
	packet, _ := hex.DecodeString("4b001000000000000000000000000000")
	assert.Len(t, packet, 16)

	d := Decide(packet[:1], types.DialectUnknown, false)
	assert.Equal(t, NeedMore, d.Kind)

	d = Decide(packet[:5], types.DialectUnknown, false)
	assert.Equal(t, NeedMore, d.Kind)
	assert.Equal(t, 11, d.N)

	d = Decide(packet, types.DialectUnknown, false)
	assert.Equal(t, Complete, d.Kind)
	assert.Equal(t, 16, d.N)

	// Once the dialect is locked, framing stays binary even for a payload
	// that starts with a printable digit.
	locked := append(append([]byte{}, packet...), '1')
	d = Decide(locked, types.DialectAstra, false)
	assert.Equal(t, Complete, d.Kind)
	assert.Equal(t, 16, d.N)
}

func TestDecideGarbageLeadDiscarded(t *testing.T) {
	d := Decide([]byte{0xFF, 0x01}, types.DialectUnknown, false)
	assert.Equal(t, Discard, d.Kind)
	assert.Equal(t, 1, d.N)
}

func TestDecideDollarBinaryFixedLength(t *testing.T) {
	packet := make([]byte, nanoBinaryLen)
	packet[0] = '$'
	packet[1] = 0x81

	d := Decide(packet[:10], types.DialectUnknown, false)
	assert.Equal(t, NeedMore, d.Kind)
	assert.Equal(t, nanoBinaryLen-10, d.N)

	d = Decide(packet, types.DialectUnknown, false)
	assert.Equal(t, Complete, d.Kind)
	assert.Equal(t, nanoBinaryLen, d.N)

	// Trailing bytes of the next frame do not extend the span.
	d = Decide(append(append([]byte{}, packet...), '$'), types.DialectUnknown, false)
	assert.Equal(t, Complete, d.Kind)
	assert.Equal(t, nanoBinaryLen, d.N)

	// A locked binary session stays fixed-length even when the payload
	// happens to carry 'G' after the '$'.
	packet[1] = 'G'
	d = Decide(packet, types.DialectTKNano2, false)
	assert.Equal(t, Complete, d.Kind)
	assert.Equal(t, nanoBinaryLen, d.N)
}

func TestDecideEndOfStreamPreference(t *testing.T) {
	line := []byte("imei:13612345678,tracker,0000,,F,025000.000,A,2234.0297,N,11405.9101,E,0.00,")

	d := Decide(line, types.DialectTK103_2, false)
	assert.Equal(t, ReadLine, d.Kind)

	d = Decide(line, types.DialectTK103_2, true)
	assert.Equal(t, ReadToEOF, d.Kind)

	// Delimiter-framed dialects ignore the preference.
	d = Decide([]byte(">RGP1908;ID=8247;*54<"), types.DialectLantrix, true)
	assert.Equal(t, Complete, d.Kind)
}
