package astra

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fleetgrid/tracker-receiver/internal/config"
	"github.com/fleetgrid/tracker-receiver/internal/crc"
	"github.com/fleetgrid/tracker-receiver/internal/errors"
	"github.com/fleetgrid/tracker-receiver/internal/session"
	"github.com/fleetgrid/tracker-receiver/internal/types"
)

func buildFrame(proto byte, reports ...[]byte) []byte {
	body := []byte{}
	for _, r := range reports {
		body = append(body, r...)
	}
	total := 1 + 2 + 7 + len(body) + 2
	frame := make([]byte, 0, total)
	frame = append(frame, proto)
	frame = binary.BigEndian.AppendUint16(frame, uint16(total))
	frame = binary.BigEndian.AppendUint32(frame, 12345678) // TAC
	frame = append(frame, 0x89, 0x5E, 0x79)               // serial 9002617
	frame = append(frame, body...)
	frame = binary.BigEndian.AppendUint16(frame, crc.Crc16_Modbus(frame))
	return frame
}

// 2006-09-05T07:47:26Z expressed as seconds since the GPS epoch
const gpsSecs = 1157442446 - 315964800

func reportHead(seq byte, lat, lon int32, speed, heading byte) []byte {
	r := []byte{seq}
	r = binary.BigEndian.AppendUint32(r, uint32(lat))
	r = binary.BigEndian.AppendUint32(r, uint32(lon))
	r = binary.BigEndian.AppendUint32(r, gpsSecs)
	return append(r, speed, heading)
}

func reportC(seq byte, reason uint16, status, geoFence, digitals byte) []byte {
	r := reportHead(seq, 51512345, -123456, 30, 45)
	r = append(r, 25) // altitude, x20 meters
	r = binary.BigEndian.AppendUint16(r, reason)
	r = append(r, status, geoFence, digitals)
	r = append(r, 0)        // digital changes
	r = append(r, 0, 0)     // adc2, adc1
	r = append(r, 80)       // battery percent
	r = append(r, 62)       // external supply, x0.2 volts
	r = append(r, 0)        // max speed
	r = append(r, 0, 0)     // accelerometer
	r = binary.BigEndian.AppendUint16(r, 152) // journey distance, x0.1 km
	r = binary.BigEndian.AppendUint16(r, 0)   // idle time
	return r
}

func reportK(seq byte, reason int, status uint16, digitals, geoFence byte) []byte {
	r := reportHead(seq, 51512345, -123456, 30, 45)
	r = append(r, byte(reason>>16), byte(reason>>8), byte(reason))
	r = binary.BigEndian.AppendUint16(r, status)
	r = append(r, digitals)
	r = append(r, 0)                  // adc1
	r = append(r, 80, 62, 0)          // battery, ext supply, max speed
	r = append(r, 0, 0, 0, 0, 0, 0)   // accelerometer min/max
	r = binary.BigEndian.AppendUint16(r, 152)
	r = binary.BigEndian.AppendUint16(r, 0)
	r = append(r, 25)   // altitude
	r = append(r, 0x3A) // GSM quality 3, 10 satellites
	return append(r, geoFence)
}

func reportM(seq byte, reason int, status uint16, digitals uint32, geoFence byte) []byte {
	r := reportHead(seq, 51512345, -123456, 30, 45)
	r = append(r, byte(reason>>16), byte(reason>>8), byte(reason))
	r = binary.BigEndian.AppendUint16(r, status)
	r = append(r, byte(digitals), byte(digitals>>8), byte(digitals>>16))
	r = append(r, 0, 0)               // adc1, adc2
	r = append(r, 80, 62, 0)          // battery, ext supply, max speed
	r = append(r, 0, 0, 0, 0, 0, 0)   // accelerometer min/max
	r = binary.BigEndian.AppendUint16(r, 152)
	r = binary.BigEndian.AppendUint16(r, 0)
	r = append(r, 25)   // altitude
	r = append(r, 0x3A)
	return append(r, geoFence)
}

func TestDecodeReportC(t *testing.T) {
	frame := buildFrame('C', reportC(1, reasonDistTravelled, statusIgnitionOn, 0, 0x05))
	s := session.New("test")
	d := NewDecoder(config.Dialect{MinimumSpeedKPH: 3.0})

	res, err := d.Decode(frame, s)
	assert.NoError(t, err)
	assert.Equal(t, "123456789002617", s.ModemID)
	assert.Equal(t, []byte{0x06}, res.Reply)
	assert.Len(t, res.Fixes, 1)

	fix := res.Fixes[0]
	assert.Equal(t, int64(1157442446), fix.Timestamp)
	assert.InDelta(t, 51.512345, fix.Location.Latitude, 1e-9)
	assert.InDelta(t, -0.123456, fix.Location.Longitude, 1e-9)
	assert.True(t, fix.ValidGPS)
	assert.Equal(t, 60.0, fix.SpeedKPH)
	assert.Equal(t, 90.0, fix.HeadingDeg)
	assert.Equal(t, 500.0, fix.AltitudeM)
	assert.Equal(t, int64(0x05), fix.InputMask)
	assert.Equal(t, 0.8, fix.BatteryLevel)
	assert.Equal(t, 15.2, fix.OdometerKM)
	assert.Equal(t, types.StatusMoving, fix.Status)
}

func TestDecodeReportK(t *testing.T) {
	frame := buildFrame('K', reportK(7, reasonJourneyStart, statusIgnitionOn, 0x03, 0))
	s := session.New("test")
	d := NewDecoder(config.Dialect{MinimumSpeedKPH: 3.0})

	res, err := d.Decode(frame, s)
	assert.NoError(t, err)
	assert.Len(t, res.Fixes, 1)

	fix := res.Fixes[0]
	assert.Equal(t, types.StatusIgnitionOn, fix.Status)
	assert.Equal(t, int64(0x03), fix.InputMask)
	assert.Equal(t, 10, fix.SatCount)
	assert.Equal(t, 15.2, fix.OdometerKM)
}

func TestDecodeReportM(t *testing.T) {
	// 3-byte digital field is little-endian in the M layout
	frame := buildFrame('M', reportM(2, reasonGeoFence, 0, 0x010203, 0x81))
	s := session.New("test")
	d := NewDecoder(config.Dialect{MinimumSpeedKPH: 3.0})

	res, err := d.Decode(frame, s)
	assert.NoError(t, err)
	assert.Len(t, res.Fixes, 1)

	fix := res.Fixes[0]
	assert.Equal(t, int64(0x010203), fix.InputMask)
	assert.Equal(t, types.StatusGeofenceArrive, fix.Status)
}

func TestDecodeMultipleReports(t *testing.T) {
	first := reportK(1, reasonTimeElapsed, statusIgnitionOn|statusReportsToFollow, 0, 0)
	second := reportK(2, reasonPanicSwitch, 0, 0, 0)
	frame := buildFrame('K', first, second)
	s := session.New("test")
	d := NewDecoder(config.Dialect{MinimumSpeedKPH: 3.0})

	res, err := d.Decode(frame, s)
	assert.NoError(t, err)
	assert.Len(t, res.Fixes, 2)
	assert.Equal(t, types.StatusInMotion, res.Fixes[0].Status)
	assert.Equal(t, types.StatusPanicOn, res.Fixes[1].Status)
}

func TestDecodeBadChecksum(t *testing.T) {
	frame := buildFrame('C', reportC(1, reasonTimeElapsed, 0, 0, 0))
	frame[len(frame)-1] ^= 0xFF
	s := session.New("test")
	d := NewDecoder(config.Dialect{})

	result, err := d.Decode(frame, s)
	assert.ErrorIs(t, err, errors.ErrBadChecksum)
	assert.NotNil(t, result)
	assert.Equal(t, []byte{0x15}, result.Reply)
}

func TestDecodeTruncated(t *testing.T) {
	frame := buildFrame('K', reportK(1, reasonTimeElapsed, 0, 0, 0))
	short := frame[:20]
	s := session.New("test")
	d := NewDecoder(config.Dialect{})

	_, err := d.Decode(short, s)
	assert.ErrorIs(t, err, errors.ErrBadPacket)
}

func TestStatusPriority(t *testing.T) {
	assert.Equal(t, types.StatusIgnitionOff, statusFor(reasonJourneyStop|reasonTimeElapsed, 0, 0, 0))
	assert.Equal(t, types.StatusDormant, statusFor(reasonTimeElapsed, 0, 0, 0))
	assert.Equal(t, types.StatusExcessIdle, statusFor(reasonTimeElapsed|reasonIdlingOngoing, statusIgnitionOn, 0, 0))
	assert.Equal(t, types.StatusPowerOn, statusFor(reasonExtPowerEvent, 0, 12.4, 0))
	assert.Equal(t, types.StatusPowerOff, statusFor(reasonExtPowerEvent, 0, 0.0, 0))
	assert.Equal(t, types.StatusGeofenceDepart, statusFor(reasonGeoFence, 0, 0, 0x01))
	assert.Equal(t, types.StatusNotify, statusFor(0, 0, 0, 0))
}
