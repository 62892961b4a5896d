// Package astra decodes the binary C/K/M report protocols. A frame is one
// protocol letter, a big-endian total length, a 7-byte IMEI header, one or
// more fixed-size reports, and a trailing CRC-16/MODBUS.
package astra

import (
	"encoding/binary"
	"fmt"

	"go.uber.org/zap"

	"github.com/fleetgrid/tracker-receiver/internal/config"
	"github.com/fleetgrid/tracker-receiver/internal/crc"
	"github.com/fleetgrid/tracker-receiver/internal/errors"
	"github.com/fleetgrid/tracker-receiver/internal/geo"
	"github.com/fleetgrid/tracker-receiver/internal/gpstime"
	configuredLogger "github.com/fleetgrid/tracker-receiver/internal/logger"
	"github.com/fleetgrid/tracker-receiver/internal/protocols"
	"github.com/fleetgrid/tracker-receiver/internal/session"
	"github.com/fleetgrid/tracker-receiver/internal/types"
)

var logger = configuredLogger.Logger

// report reason flags
const (
	reasonTimeElapsed    = 0x01
	reasonDistTravelled  = 0x02
	reasonPosOnDemand    = 0x04
	reasonGeoFence       = 0x08
	reasonPanicSwitch    = 0x10
	reasonExtInput       = 0x20
	reasonJourneyStart   = 0x40
	reasonJourneyStop    = 0x80
	reasonHeadingChange  = 0x100
	reasonLowBattery     = 0x200
	reasonExtPowerEvent  = 0x400
	reasonIdlingStart    = 0x800
	reasonIdlingEnd      = 0x1000
	reasonIdlingOngoing  = 0x2000
	reasonPowerOn        = 0x4000
	reasonOverSpeed      = 0x8000
	reasonTowingAlarm    = 0x10000
	reasonUnauthorised   = 0x20000
	reasonCollision      = 0x40000
	reasonAccelMax       = 0x80000
	reasonCorneringMax   = 0x100000
	reasonDecelMax       = 0x200000
	reasonGPSReacquired  = 0x400000
)

// report status flags
const (
	statusIgnitionOn      = 0x01
	statusReportsToFollow = 0x10
	statusExtraData       = 0x100
)

// geofence field: bit 7 set on entry, clear on exit
const geofenceEntered = 0x80

// report sizes per protocol letter
const (
	reportLenC      = 33
	reportLenK      = 38
	reportLenKExtra = 50
	reportLenM      = 41
	reportLenMExtra = 53
)

var ackReply = []byte{0x06}
var nakReply = []byte{0x15}

type Decoder struct {
	cfg config.Dialect
}

func NewDecoder(cfg config.Dialect) *Decoder {
	return &Decoder{cfg: cfg}
}

func (d *Decoder) Dialect() types.Dialect {
	return types.DialectAstra
}

func (d *Decoder) Decode(packet []byte, s *session.Session) (*protocols.Result, error) {
	if len(packet) < 12 {
		return nil, errors.ErrBadPacket
	}
	proto := packet[0]
	if proto != 'C' && proto != 'K' && proto != 'M' {
		return nil, errors.ErrBadPacket
	}
	s.Dialect = types.DialectAstra

	if int(binary.BigEndian.Uint16(packet[1:3])) != len(packet) {
		return nil, errors.ErrBadPacket
	}

	// trailing big-endian CRC over everything before it
	want := binary.BigEndian.Uint16(packet[len(packet)-2:])
	if got := crc.Crc16_Modbus(packet[:len(packet)-2]); got != want {
		logger.Warn("bad checksum",
			zap.String("want", fmt.Sprintf("%04X", want)),
			zap.String("got", fmt.Sprintf("%04X", got)))
		return &protocols.Result{Reply: nakReply}, errors.ErrBadChecksum
	}

	// IMEI: 4-byte TAC and 3-byte serial, both big-endian, concatenated in
	// decimal form
	tac := binary.BigEndian.Uint32(packet[3:7])
	msn := uint32(packet[7])<<16 | uint32(packet[8])<<8 | uint32(packet[9])
	s.ModemID = fmt.Sprintf("%d%d", tac, msn)

	result := &protocols.Result{Reply: ackReply}
	index := 10
	for {
		var fix *types.NormalizedFix
		var repStatus int
		var err error
		switch proto {
		case 'C':
			fix, repStatus, err = d.decodeReportC(packet, index)
		default:
			fix, repStatus, err = d.decodeReportKM(packet, index, proto)
		}
		if err != nil {
			return nil, err
		}
		fix.ModemID = s.ModemID
		result.Fixes = append(result.Fixes, fix)

		if repStatus&statusReportsToFollow == 0 {
			break
		}
		index += reportLen(proto, repStatus)
		if len(packet)-index <= 2 {
			break
		}
	}
	return result, nil
}

func reportLen(proto byte, repStatus int) int {
	switch proto {
	case 'C':
		return reportLenC
	case 'K':
		if repStatus&statusExtraData != 0 {
			return reportLenKExtra
		}
		return reportLenK
	default:
		if repStatus&statusExtraData != 0 {
			return reportLenMExtra
		}
		return reportLenM
	}
}

// decodeReportC parses one 33-byte C report starting at index.
func (d *Decoder) decodeReportC(packet []byte, index int) (*types.NormalizedFix, int, error) {
	if len(packet)-index < reportLenC+2 {
		return nil, 0, errors.ErrBadPacket
	}
	r := packet[index:]

	fix := d.newFix(r)

	repReason := int(binary.BigEndian.Uint16(r[16:18]))
	repStatus := int(r[18])
	geoFence := int(r[19])
	fix.InputMask = int64(r[20])
	// r[21] digital changes, r[22] adc2, r[23] adc1
	fix.BatteryLevel = float64(r[24]) / 100.0
	extPwr := float64(r[25]) / 5.0
	// r[26] max speed, r[27:29] accelerometer
	fix.OdometerKM = float64(binary.BigEndian.Uint16(r[29:31])) / 10.0
	// r[31:33] journey idle time

	fix.AltitudeM = float64(r[15]) * 20.0
	d.finish(fix, repReason, repStatus, extPwr, geoFence)
	return fix, repStatus, nil
}

// decodeReportKM parses one K (38-byte) or M (41-byte) report starting at
// index. The M layout inserts a 3-byte digital block and a second ADC.
func (d *Decoder) decodeReportKM(packet []byte, index int, proto byte) (*types.NormalizedFix, int, error) {
	basic := reportLenK
	if proto == 'M' {
		basic = reportLenM
	}
	if len(packet)-index < basic+2 {
		return nil, 0, errors.ErrBadPacket
	}
	r := packet[index:]

	fix := d.newFix(r)

	repReason := int(r[15])<<16 | int(r[16])<<8 | int(r[17])
	repStatus := int(binary.BigEndian.Uint16(r[18:20]))

	p := 20
	if proto == 'M' {
		// 3-byte little-endian digital state
		fix.InputMask = int64(r[p]) | int64(r[p+1])<<8 | int64(r[p+2])<<16
		p += 3
		p++ // adc1
		p++ // adc2
	} else {
		fix.InputMask = int64(r[p])
		p++
		p++ // adc1
	}
	fix.BatteryLevel = float64(r[p]) / 100.0
	p++
	extPwr := float64(r[p]) / 5.0
	p++
	p++     // max speed
	p += 6  // accelerometer min/max X, Y, Z
	fix.OdometerKM = float64(binary.BigEndian.Uint16(r[p:p+2])) / 10.0
	p += 2
	p += 2 // journey idle time
	fix.AltitudeM = float64(r[p]) * 20.0
	p++
	fix.SatCount = int(r[p] & 0x0F)
	p++
	geoFence := int(r[p])

	if repStatus&statusExtraData != 0 {
		// start/stop reports append the lifetime odometer in km
		off := index + 45
		if proto == 'M' {
			off = index + 48
		}
		if len(packet) >= off+3 {
			fix.OdometerKM = float64(int(packet[off])<<16 | int(packet[off+1])<<8 | int(packet[off+2]))
		}
	}

	d.finish(fix, repReason, repStatus, extPwr, geoFence)
	return fix, repStatus, nil
}

// newFix parses the fields every report layout shares: sequence, position,
// GPS-epoch time, speed and heading.
func (d *Decoder) newFix(r []byte) *types.NormalizedFix {
	fix := &types.NormalizedFix{
		Status:    types.StatusLocation,
		InputMask: -1,
	}
	fix.Location = geo.GeoPoint{
		Latitude:  float64(int32(binary.BigEndian.Uint32(r[1:5]))) / 1000000.0,
		Longitude: float64(int32(binary.BigEndian.Uint32(r[5:9]))) / 1000000.0,
	}
	fix.Timestamp = gpstime.FromGPSSeconds(int64(binary.BigEndian.Uint32(r[9:13])))
	fix.SpeedKPH = float64(r[13]) * 2.0
	fix.HeadingDeg = float64(r[14]) * 2.0
	return fix
}

func (d *Decoder) finish(fix *types.NormalizedFix, repReason, repStatus int, extPwr float64, geoFence int) {
	fix.ValidGPS = fix.Location.IsValid()
	if !fix.ValidGPS {
		fix.Location = geo.InvalidGeoPoint
	}
	fix.ClampSpeed(d.cfg.MinimumSpeedKPH)
	fix.Status = statusFor(repReason, repStatus, extPwr, geoFence)
}

// statusFor picks the single most relevant status code for a report. The
// reason field is a bitmask; precedence runs journey edges first, then
// motion, then alarms.
func statusFor(repReason, repStatus int, extPwr float64, geoFence int) types.StatusCode {
	switch {
	case repReason&reasonJourneyStart != 0:
		return types.StatusIgnitionOn
	case repReason&reasonJourneyStop != 0:
		return types.StatusIgnitionOff
	case repReason&reasonTimeElapsed != 0:
		if repStatus&statusIgnitionOn != 0 {
			if repReason&reasonIdlingOngoing != 0 {
				return types.StatusExcessIdle
			}
			return types.StatusInMotion
		}
		return types.StatusDormant
	case repReason&reasonIdlingStart != 0:
		return types.StatusIdle
	case repReason&reasonIdlingEnd != 0:
		return types.StatusMotionStart
	case repReason&reasonDistTravelled != 0:
		return types.StatusMoving
	case repReason&reasonHeadingChange != 0:
		return types.StatusHeading
	case repReason&reasonOverSpeed != 0:
		return types.StatusExcessSpeed
	case repReason&reasonPanicSwitch != 0:
		return types.StatusPanicOn
	case repReason&reasonExtPowerEvent != 0:
		if extPwr > 7.0 {
			return types.StatusPowerOn
		}
		return types.StatusPowerOff
	case repReason&reasonExtInput != 0:
		return types.StatusInputState
	case repReason&reasonLowBattery != 0:
		return types.StatusLowBattery
	case repReason&reasonAccelMax != 0:
		return types.StatusExcessAccel
	case repReason&reasonDecelMax != 0:
		return types.StatusExcessBraking
	case repReason&reasonCorneringMax != 0:
		return types.StatusExcessCornering
	case repReason&reasonCollision != 0:
		return types.StatusImpact
	case repReason&reasonTowingAlarm != 0:
		return types.StatusTowingStart
	case repReason&reasonGeoFence != 0:
		if geoFence&geofenceEntered != 0 {
			return types.StatusGeofenceArrive
		}
		return types.StatusGeofenceDepart
	case repReason&reasonPowerOn != 0:
		return types.StatusInitialized
	case repReason&reasonGPSReacquired != 0:
		return types.StatusHeartbeat
	case repReason&reasonPosOnDemand != 0:
		return types.StatusQuery
	case repReason&reasonUnauthorised != 0:
		return types.StatusBreachOn
	default:
		return types.StatusNotify
	}
}
