// Package lantrix decodes the TAIP-style ">RGP...<" reports.
//
//	>RGP190805211932-3457215-058493640000000FFBF0300;ID=8247;#2122;*54<
//
// The RGP body is fixed-width: DDMMYY, HHMMSS, latitude and longitude in
// hundred-thousandths of a degree, speed, heading, GPS source, data age,
// digital inputs, event count and HDOP. The ID and sentence-number segments
// follow, separated by semicolons.
package lantrix

import (
	"strconv"
	"strings"

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

type Decoder struct {
	cfg config.Dialect
}

func NewDecoder(cfg config.Dialect) *Decoder {
	return &Decoder{cfg: cfg}
}

func (d *Decoder) Dialect() types.Dialect {
	return types.DialectLantrix
}

func (d *Decoder) Decode(packet []byte, s *session.Session) (*protocols.Result, error) {
	line := strings.TrimSpace(string(packet))
	if len(line) < 5 || !strings.HasPrefix(line, ">") {
		return nil, errors.ErrBadPacket
	}
	s.Dialect = types.DialectLantrix

	line = strings.TrimPrefix(line, ">")
	line = strings.TrimSuffix(line, "<")
	seg := strings.Split(line, ";")

	body := seg[0]
	if len(body) < 33 {
		return nil, errors.ErrBadPacket
	}

	var modemID, sentence string
	for _, part := range seg[1:] {
		if strings.HasPrefix(part, "ID=") && modemID == "" {
			modemID = part[3:]
		}
		if strings.HasPrefix(part, "#") && sentence == "" {
			sentence = part[1:]
		}
	}
	if modemID == "" {
		return nil, errors.ErrNoDeviceID
	}
	s.ModemID = modemID

	ackBody := ">ACK;ID=" + modemID + ";#" + sentence + ";*"
	ack := []byte(ackBody + crc.Taip(ackBody) + "<\r\n")

	fix := &types.NormalizedFix{
		ModemID:   modemID,
		Status:    types.StatusLocation,
		InputMask: 0,
	}

	dmy := parseInt(body[3:9], 0)
	hms := parseInt(body[9:15], 0)
	fix.Timestamp = gpstime.FromDMYHMS(dmy, hms)
	if fix.Timestamp <= 0 {
		logger.Warn("invalid date, using current time", zap.String("modemId", modemID))
		fix.Timestamp = gpstime.Now()
	}

	fix.Location = geo.GeoPoint{
		Latitude:  float64(parseInt(body[15:23], 0)) / 100000.0,
		Longitude: float64(parseInt(body[23:32], 0)) / 100000.0,
	}
	fix.SpeedKPH = parseFloat(body[32:35], 0)
	if len(body) >= 38 {
		fix.HeadingDeg = parseFloat(body[35:38], 0)
	}
	if len(body) >= 41 {
		fix.GpsAgeSec = parseHex(body[39:41], 0)
	}
	if len(body) >= 43 {
		fix.InputMask = parseHex(body[41:43], 0)
	}
	if len(body) >= 47 {
		fix.HDOP = float64(parseInt(body[45:47], 0))
	}

	fix.ValidGPS = fix.Location.IsValid()
	if !fix.ValidGPS {
		logger.Warn("invalid lat/lon",
			zap.Float64("lat", fix.Location.Latitude),
			zap.Float64("lon", fix.Location.Longitude))
		fix.Location = geo.InvalidGeoPoint
		fix.SpeedKPH = 0
		fix.HeadingDeg = 0
	}

	fix.ClampSpeed(d.cfg.MinimumSpeedKPH)
	if fix.HeadingDeg < 0 {
		fix.HeadingDeg = 0
	}

	return &protocols.Result{Fixes: []*types.NormalizedFix{fix}, Reply: ack}, nil
}

func parseInt(s string, dft int64) int64 {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return dft
	}
	return v
}

func parseHex(s string, dft int64) int64 {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 16, 64)
	if err != nil {
		return dft
	}
	return v
}

func parseFloat(s string, dft float64) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return dft
	}
	return v
}
