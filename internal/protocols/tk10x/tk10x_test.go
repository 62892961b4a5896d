package tk10x

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fleetgrid/tracker-receiver/internal/config"
	"github.com/fleetgrid/tracker-receiver/internal/errors"
	"github.com/fleetgrid/tracker-receiver/internal/session"
	"github.com/fleetgrid/tracker-receiver/internal/types"
)

func newDecoder() *Decoder {
	return NewDecoder(config.Dialect{MinimumSpeedKPH: 3.0})
}

func decode(t *testing.T, s *session.Session, line string) *types.NormalizedFix {
	t.Helper()
	res, err := newDecoder().Decode([]byte(line), s)
	assert.NoError(t, err)
	assert.Len(t, res.Fixes, 1)
	return res.Fixes[0]
}

func TestKeepAlive(t *testing.T) {
	s := session.New("test")
	res, err := newDecoder().Decode([]byte("##,imei:123451042191239,A;"), s)
	assert.NoError(t, err)
	assert.Empty(t, res.Fixes)
	assert.Equal(t, "LOAD", string(res.Reply))
	assert.Equal(t, types.DialectTK103_2, s.Dialect)
}

func TestBareImeiLogin(t *testing.T) {
	s := session.New("test")
	res, err := newDecoder().Decode([]byte("123456789012345"), s)
	assert.NoError(t, err)
	assert.Equal(t, "ON", string(res.Reply))
	assert.Equal(t, "123456789012345", s.ModemID)
	assert.Equal(t, types.DialectTK103_1, s.Dialect)
}

func TestTK103_2GPS(t *testing.T) {
	line := "imei:123451042191239,tracker ,1107090553,9735551234,F,215314.000,A,4103.7641,N,14244.9450,W,0.08,;"
	s := session.New("test")
	fix := decode(t, s, line)

	assert.Equal(t, "123451042191239", s.ModemID)
	assert.Equal(t, types.DialectTK103_2, s.Dialect)
	// local clock 05:53 on 2011-07-09, GMT time-of-day 21:53:14: the GMT
	// day is one behind the device's local day
	assert.Equal(t, int64(1310161994), fix.Timestamp, "2011-07-08T21:53:14Z")
	assert.True(t, fix.ValidGPS)
	assert.InDelta(t, 41.062735, fix.Location.Latitude, 1e-4)
	assert.InDelta(t, -142.749083, fix.Location.Longitude, 1e-4)
	assert.Equal(t, 0.0, fix.SpeedKPH, "0.08 knots is below the minimum")
	assert.Equal(t, types.StatusLocation, fix.Status)
}

func TestTK103_2CellOnly(t *testing.T) {
	line := "imei:123451042191239,tracker,1107090553,9735551234,L,,,28B5,,F9B0,,"
	s := session.New("test")
	fix := decode(t, s, line)

	assert.False(t, fix.ValidGPS)
	if assert.NotNil(t, fix.Cell) {
		assert.Equal(t, 0x28B5, fix.Cell.LAC)
		assert.Equal(t, 0xF9B0, fix.Cell.CID)
	}
}

func TestTK103_2Alarm(t *testing.T) {
	line := "imei:123451042191239,help me!,1107090553,9735551234,F,215314.000,A,4103.7641,N,14244.9450,W,0.08,;"
	s := session.New("test")
	fix := decode(t, s, line)
	assert.Equal(t, types.StatusPanicOn, fix.Status)
}

func TestTK103_2IgnitionOffOrdering(t *testing.T) {
	line := "imei:123451042191239,acc off,1107090553,9735551234,F,215314.000,A,4103.7641,N,14244.9450,W,0.08,;"
	s := session.New("test")
	fix := decode(t, s, line)
	assert.Equal(t, types.StatusIgnitionOff, fix.Status)
	// shifted a second back so it sorts before an ignition-on at the same time
	assert.Equal(t, int64(1310161993), fix.Timestamp)
}

func TestTK103_2OBD(t *testing.T) {
	line := "imei:123451042191239,OBD,110709055300,,,,,,,,,,P0133,U0155,XX"
	s := session.New("test")
	fix := decode(t, s, line)

	assert.Equal(t, int64(1310190780), fix.Timestamp, "2011-07-09T05:53:00Z")
	assert.Equal(t, []string{"P0133", "U0155"}, fix.FaultCodes)
	assert.False(t, fix.ValidGPS)
}

func TestTK103_3Position(t *testing.T) {
	line := "(013612345678BP05000013612345678060905A3536.3640N14222.2958E027.0074725224.8000000011L0000EA60)"
	s := session.New("test")
	fix := decode(t, s, line)

	assert.Equal(t, types.DialectTK103_3, s.Dialect)
	assert.Equal(t, "000013612345678", s.ModemID)
	assert.Equal(t, int64(1157442445), fix.Timestamp, "2006-09-05T07:47:25Z")
	assert.True(t, fix.ValidGPS)
	assert.InDelta(t, 35.60607, fix.Location.Latitude, 1e-4)
	assert.InDelta(t, 142.37160, fix.Location.Longitude, 1e-4)
	assert.Equal(t, 27.0, fix.SpeedKPH)
	assert.Equal(t, 224.8, fix.HeadingDeg)
	assert.Equal(t, int64(0x03), fix.InputMask, "last two gpio characters set")
	assert.Equal(t, 60.0, fix.OdometerKM)
}

func TestTK103_3Handshake(t *testing.T) {
	s := session.New("test")
	res, err := newDecoder().Decode([]byte("(013612345678BP00000013612345678HSO)"), s)
	assert.NoError(t, err)
	assert.Empty(t, res.Fixes)
	assert.Equal(t, "(013612345678AP01HSO)", string(res.Reply))
	assert.Equal(t, "000013612345678", s.ModemID)
}

func TestVJoy(t *testing.T) {
	line := "(013632651491,ZC13,040613,A,2234.0297N,11405.9101E,000.0,040137,178.48)"
	s := session.New("test")
	res, err := newDecoder().Decode([]byte(line), s)
	assert.NoError(t, err)
	assert.Equal(t, types.DialectVJoy, s.Dialect)
	assert.Equal(t, "013632651491", s.ModemID)
	assert.Equal(t, "ok", string(res.Reply))
	assert.Len(t, res.Fixes, 1)

	fix := res.Fixes[0]
	assert.Equal(t, types.StatusPowerAlarm, fix.Status)
	assert.Equal(t, int64(1370318497), fix.Timestamp, "2013-06-04T04:01:37Z")
	assert.InDelta(t, 22.56716, fix.Location.Latitude, 1e-4)
	assert.InDelta(t, 114.09850, fix.Location.Longitude, 1e-4)
}

func TestTKnano(t *testing.T) {
	line := "*HQ,1234567890,V1,074726,A,3536.3640,N,14222.2958,E,14.5,224,050906,FFFFFBFF#"
	s := session.New("test")
	fix := decode(t, s, line)

	assert.Equal(t, types.DialectTKNano1, s.Dialect)
	assert.Equal(t, "1234567890", s.ModemID)
	assert.Equal(t, int64(1157442446), fix.Timestamp)
	assert.InDelta(t, 26.854, fix.SpeedKPH, 1e-9)
	assert.Equal(t, 224.0, fix.HeadingDeg)
}

func TestTK102BLogin(t *testing.T) {
	s := session.New("test")
	res, err := newDecoder().Decode([]byte("[!0000000081.(13612345678,ODO:123)]"), s)
	assert.NoError(t, err)
	assert.Equal(t, "13612345678", s.ModemID)
	assert.Equal(t, `["0000000001(13612345678,ODO:123)]`, string(res.Reply))
}

func TestTK102BData(t *testing.T) {
	line := "[;0000000081.(000074726A3536.3640N14222.2958E014.5220509060950000)]"
	s := session.New("test")
	s.ModemID = "13612345678"
	fix := decode(t, s, line)

	assert.Equal(t, int64(1157442446), fix.Timestamp)
	assert.True(t, fix.ValidGPS)
	assert.InDelta(t, 35.60607, fix.Location.Latitude, 1e-4)
	assert.InDelta(t, 142.37160, fix.Location.Longitude, 1e-4)
	assert.InDelta(t, 26.854, fix.SpeedKPH, 1e-9)
	assert.Equal(t, 220.0, fix.HeadingDeg)
	assert.Equal(t, 0.95, fix.BatteryLevel)
}

func TestTK102BQuit(t *testing.T) {
	s := session.New("test")
	res, err := newDecoder().Decode([]byte("[#0000000081.(13612345678)]"), s)
	assert.NoError(t, err)
	assert.True(t, res.Disconnect)
	assert.Equal(t, "[$0000000081.(13612345678)]", string(res.Reply))
}

func TestTK102(t *testing.T) {
	line := "1203292316,0031698765432,GPRMC,211657.000,A,5213.0247,N,00516.7757,E,0.00,273.30,290312,,,A*62,F,imei:123456789012345,04,481.2,F:4.15V,0,139,2689,310,26,971B,3B45"
	s := session.New("test")
	fix := decode(t, s, line)

	assert.Equal(t, "123456789012345", s.ModemID)
	assert.Equal(t, int64(1333055817), fix.Timestamp, "2012-03-29T21:16:57Z")
	assert.True(t, fix.ValidGPS)
	assert.InDelta(t, 52.21708, fix.Location.Latitude, 1e-4)
	assert.InDelta(t, 5.27960, fix.Location.Longitude, 1e-4)
	assert.Equal(t, 0.0, fix.SpeedKPH)
	assert.Equal(t, 4, fix.SatCount)
	assert.Equal(t, 481.2, fix.AltitudeM)
	assert.Equal(t, 4.15, fix.BatteryVolts)
	if assert.NotNil(t, fix.Cell) {
		assert.Equal(t, 310, fix.Cell.MCC)
		assert.Equal(t, 26, fix.Cell.MNC)
		assert.Equal(t, 0x971B, fix.Cell.LAC)
		assert.Equal(t, 0x3B45, fix.Cell.CID)
	}
	assert.Equal(t, types.StatusLocation, fix.Status)
}

func TestTK102NoFixWithCell(t *testing.T) {
	// no GPS fix but a serving cell: the event is retagged as a cell location
	line := "1203292316,0031698765432,GPRMC,211657.000,V,,,,,,,290312,,,A*62,F,imei:123456789012345,04,481.2,F:4.15V,0,139,2689,310,26,971B,3B45"
	s := session.New("test")
	fix := decode(t, s, line)

	assert.False(t, fix.ValidGPS)
	assert.Equal(t, types.StatusCellLocation, fix.Status)
	assert.NotNil(t, fix.Cell)
}

func TestShortPacket(t *testing.T) {
	s := session.New("test")
	_, err := newDecoder().Decode([]byte("garbage"), s)
	assert.ErrorIs(t, err, errors.ErrBadPacket)

	// a lone stray byte on an identified session is tolerated
	s.Dialect = types.DialectTK103_2
	res, err := newDecoder().Decode([]byte(";"), s)
	assert.NoError(t, err)
	assert.Empty(t, res.Fixes)
}
