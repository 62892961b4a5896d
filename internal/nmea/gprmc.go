// Package nmea parses the $GPRMC sentences that many ASCII trackers embed in
// their reports.
package nmea

import (
	"strconv"
	"strings"

	"github.com/fleetgrid/tracker-receiver/internal/crc"
	"github.com/fleetgrid/tracker-receiver/internal/errors"
	"github.com/fleetgrid/tracker-receiver/internal/geo"
	"github.com/fleetgrid/tracker-receiver/internal/gpstime"
	"github.com/fleetgrid/tracker-receiver/internal/types"
)

// RMC holds the fields of a parsed $GPRMC sentence.
type RMC struct {
	Timestamp  int64 // unix seconds, 0 when the sentence carried no date
	Valid      bool  // status field 'A'
	Location   geo.GeoPoint
	SpeedKPH   float64
	HeadingDeg float64 // -1 when not reported
	HMS        int64   // raw HHMMSS, for callers that reconcile dates themselves
	DMY        int64   // raw DDMMYY, 0 when absent
}

// ParseRMC parses a $GPRMC sentence. The sentence may carry a trailing
// "*XX" checksum; when present it is verified. Fields after the date
// (magnetic variation, mode) are ignored.
func ParseRMC(sentence string) (*RMC, error) {
	sentence = strings.TrimSpace(sentence)
	if !strings.HasPrefix(sentence, "$GPRMC") {
		return nil, errors.ErrNotRMC
	}

	body := sentence[1:]
	if star := strings.LastIndexByte(body, '*'); star >= 0 {
		if !crc.VerifyXor8Hex(body[:star], body[star+1:]) {
			return nil, errors.ErrBadChecksum
		}
		body = body[:star]
	}

	// $GPRMC,HHMMSS.sss,A,DDmm.mmmm,N,DDDmm.mmmm,E,kts,deg,DDMMYY,...
	fld := strings.Split(body, ",")
	if len(fld) < 10 {
		return nil, errors.ErrBadPacket
	}

	r := &RMC{HeadingDeg: -1}
	r.HMS = parseIntPrefix(fld[1])
	r.DMY = parseIntPrefix(fld[9])
	r.Valid = strings.HasPrefix(fld[2], "A")
	r.Timestamp = gpstime.FromDMYHMS(r.DMY, r.HMS)

	r.Location = geo.GeoPoint{
		Latitude:  geo.ParseLatitude(fld[3], fld[4]),
		Longitude: geo.ParseLongitude(fld[5], fld[6]),
	}
	if !r.Location.IsValid() {
		r.Valid = false
	}

	if kts, err := strconv.ParseFloat(fld[7], 64); err == nil && kts >= 0 {
		r.SpeedKPH = kts * types.KilometersPerKnot
	}
	if deg, err := strconv.ParseFloat(fld[8], 64); err == nil && deg >= 0 {
		r.HeadingDeg = deg
	}
	return r, nil
}

// parseIntPrefix parses the leading integer of s, stopping at a decimal
// point. "074726.000" yields 74726.
func parseIntPrefix(s string) int64 {
	if dot := strings.IndexByte(s, '.'); dot >= 0 {
		s = s[:dot]
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil || v < 0 {
		return 0
	}
	return v
}
