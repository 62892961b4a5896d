// Package gprmc decodes the generic ASCII report dialect: a plain
// comma-separated position line, or a $GPRMC sentence optionally prefixed
// with "account/device/".
package gprmc

import (
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/fleetgrid/tracker-receiver/internal/config"
	"github.com/fleetgrid/tracker-receiver/internal/errors"
	"github.com/fleetgrid/tracker-receiver/internal/geo"
	"github.com/fleetgrid/tracker-receiver/internal/gpstime"
	configuredLogger "github.com/fleetgrid/tracker-receiver/internal/logger"
	"github.com/fleetgrid/tracker-receiver/internal/nmea"
	"github.com/fleetgrid/tracker-receiver/internal/protocols"
	"github.com/fleetgrid/tracker-receiver/internal/session"
	"github.com/fleetgrid/tracker-receiver/internal/types"
)

var logger = configuredLogger.Logger

type Decoder struct {
	cfg config.Dialect
}

func NewDecoder(cfg config.Dialect) *Decoder {
	return &Decoder{cfg: cfg}
}

func (d *Decoder) Dialect() types.Dialect {
	return types.DialectGPRMC
}

func (d *Decoder) Decode(packet []byte, s *session.Session) (*protocols.Result, error) {
	line := strings.TrimSpace(string(packet))
	if line == "" {
		return &protocols.Result{}, nil
	}
	s.Dialect = types.DialectGPRMC

	if strings.HasPrefix(line, "$GPRMC") {
		return d.decodeRMC(line, "", "", s)
	}
	if fld := strings.SplitN(line, "/", 3); len(fld) == 3 && strings.HasPrefix(fld[2], "$GPRMC") {
		return d.decodeRMC(fld[2], strings.ToLower(fld[0]), strings.ToLower(fld[1]), s)
	}
	return d.decodePlain(line, s)
}

// decodePlain parses the position line:
//
//	<MobileID>,<YYYY/MM/DD>,<HH:MM:SS>,<Latitude>,<Longitude>,<Speed>,<Heading>,<AltitudeM>
//
// Latitude and longitude are signed decimal degrees, speed is km/h, date and
// time are GMT.
func (d *Decoder) decodePlain(line string, s *session.Session) (*protocols.Result, error) {
	fld := strings.Split(line, ",")
	if len(fld) < 5 {
		return nil, errors.ErrBadPacket
	}

	s.ModemID = strings.ToLower(strings.TrimSpace(fld[0]))
	if s.ModemID == "" {
		return nil, errors.ErrNoDeviceID
	}

	fix := &types.NormalizedFix{
		ModemID:   s.ModemID,
		Status:    types.StatusLocation,
		Timestamp: parseDate(fld[1], fld[2]),
		InputMask: -1,
	}
	fix.Location = geo.GeoPoint{
		Latitude:  parseFloat(fld[3], 0),
		Longitude: parseFloat(fld[4], 0),
	}
	fix.ValidGPS = fix.Location.IsValid()
	if len(fld) > 5 {
		fix.SpeedKPH = parseFloat(fld[5], 0)
	}
	if len(fld) > 6 {
		fix.HeadingDeg = parseFloat(fld[6], 0)
	}
	if len(fld) > 7 {
		fix.AltitudeM = parseFloat(fld[7], 0)
	}

	d.finish(fix)
	return protocols.One(fix), nil
}

// decodeRMC parses a $GPRMC sentence. Without an account/device prefix the
// session must already know the modem ID.
func (d *Decoder) decodeRMC(sentence, account, device string, s *session.Session) (*protocols.Result, error) {
	if account == "" && device == "" && s.ModemID == "" {
		return nil, errors.ErrNoDeviceID
	}

	rmc, err := nmea.ParseRMC(sentence)
	if err != nil {
		return nil, err
	}

	fix := &types.NormalizedFix{
		ModemID:    s.ModemID,
		Account:    account,
		Device:     device,
		Status:     types.StatusLocation,
		Timestamp:  rmc.Timestamp,
		Location:   rmc.Location,
		ValidGPS:   rmc.Valid,
		SpeedKPH:   rmc.SpeedKPH,
		HeadingDeg: rmc.HeadingDeg,
		InputMask:  -1,
	}
	d.finish(fix)
	return protocols.One(fix), nil
}

func (d *Decoder) finish(fix *types.NormalizedFix) {
	if fix.Timestamp <= 0 {
		logger.Warn("invalid date, using current time", zap.String("modemId", fix.ModemID))
		fix.Timestamp = gpstime.Now()
	}
	if fix.ValidGPS && !fix.Location.IsValid() {
		fix.Location = geo.InvalidGeoPoint
		fix.ValidGPS = false
	}
	fix.ClampSpeed(d.cfg.MinimumSpeedKPH)
	if fix.HeadingDeg < 0 {
		fix.HeadingDeg = 0
	}
}

// parseDate converts "YYYY/MM/DD" and "HH:MM:SS" (GMT) to unix seconds.
func parseDate(ymd, hms string) int64 {
	df := strings.Split(ymd, "/")
	tf := strings.Split(hms, ":")
	if len(df) != 3 || len(tf) != 3 {
		return 0
	}
	return gpstime.FromCalendar(
		int(parseFloat(df[0], 0)), int(parseFloat(df[1], 0)), int(parseFloat(df[2], 0)),
		int(parseFloat(tf[0], 0)), int(parseFloat(tf[1], 0)), int(parseFloat(tf[2], 0)))
}

func parseFloat(s string, dft float64) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return dft
	}
	return v
}
