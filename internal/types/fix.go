package types

import (
	"github.com/fleetgrid/tracker-receiver/internal/geo"
)

// KilometersPerKnot converts NMEA speed-over-ground to km/h.
const KilometersPerKnot = 1.852

// CellTower describes the serving cell reported alongside a fix.
type CellTower struct {
	MCC int // mobile country code
	MNC int // mobile network code
	LAC int // location area code
	CID int // cell tower id
}

// NormalizedFix is the canonical decoded record produced by every dialect
// decoder and consumed by the post-processing pipeline. It is never persisted
// directly; the pipeline derives zero or more events from it.
type NormalizedFix struct {
	// Device addressing. Either ModemID, or an explicit Account/Device pair.
	ModemID string
	Account string
	Device  string

	Timestamp  int64 // unix seconds, UTC; <=0 means "unknown"
	Status     StatusCode
	Location   geo.GeoPoint
	ValidGPS   bool
	SpeedKPH   float64 // >= 0
	HeadingDeg float64 // 0..360, -1 means unknown
	AltitudeM  float64
	OdometerKM float64 // 0 means "not supplied"
	InputMask  int64   // digital input bits, -1 means absent
	GpsAgeSec  int64
	HDOP       float64
	SatCount   int

	BatteryVolts float64
	BatteryLevel float64 // 0..1

	EngineTempC float64
	FaultCodes  []string

	Cell *CellTower // nil when no serving-cell data

	// StatusSet carries extra codes the decoder wants persisted alongside
	// the primary status in the same cycle. Never contains StatusLocation.
	StatusSet []StatusCode
}

// ClampSpeed zeroes speed and heading together when the decoded speed is
// below the dialect minimum. Speed and heading are always corrected as a
// pair; a stationary fix must not keep a stale heading. A heading of -1
// (unknown) on a moving fix is left for the pipeline to backfill.
func (f *NormalizedFix) ClampSpeed(minimumKPH float64) {
	if f.SpeedKPH < minimumKPH {
		f.SpeedKPH = 0.0
		f.HeadingDeg = 0.0
	}
}
