// Package tk10x decodes the TK102/TK103 family of ASCII tracker reports,
// including the TK102B bracketed and TKnano star-delimited variants.
package tk10x

import (
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/fleetgrid/tracker-receiver/internal/config"
	"github.com/fleetgrid/tracker-receiver/internal/errors"
	"github.com/fleetgrid/tracker-receiver/internal/geo"
	"github.com/fleetgrid/tracker-receiver/internal/gpstime"
	configuredLogger "github.com/fleetgrid/tracker-receiver/internal/logger"
	"github.com/fleetgrid/tracker-receiver/internal/protocols"
	"github.com/fleetgrid/tracker-receiver/internal/session"
	"github.com/fleetgrid/tracker-receiver/internal/types"
)

var logger = configuredLogger.Logger

// eventCodes maps the alarm keywords these trackers send in place of a
// status field.
var eventCodes = map[string]types.StatusCode{
	"tracker":      types.StatusLocation,
	"help me":      types.StatusPanicOn,
	"low battery":  types.StatusLowBattery,
	"move":         types.StatusInMotion,
	"speed":        types.StatusExcessSpeed,
	"stockade":     types.StatusGeofenceDepart,
	"acc on":       types.StatusIgnitionOn,
	"acc off":      types.StatusIgnitionOff,
	"ac alarm":     types.StatusPowerAlarm,
	"door alarm":   types.StatusIntrusionOn,
	"sensor alarm": types.StatusAlarmOn,
}

type Decoder struct {
	cfg config.Dialect
}

func NewDecoder(cfg config.Dialect) *Decoder {
	return &Decoder{cfg: cfg}
}

func (d *Decoder) Dialect() types.Dialect {
	return types.DialectTK102
}

func (d *Decoder) Decode(packet []byte, s *session.Session) (*protocols.Result, error) {
	line := strings.TrimSpace(string(packet))
	if len(line) < 11 {
		if len(line) <= 1 && !s.Dialect.IsUnknown() {
			// stray bytes between packets from a known device
			return &protocols.Result{}, nil
		}
		return nil, errors.ErrBadPacket
	}

	switch {
	case strings.HasPrefix(line, "##"):
		// keep-alive: ##,imei:123451042191239,A;
		s.Dialect = types.DialectTK103_2
		return &protocols.Result{Reply: []byte("LOAD")}, nil
	case strings.HasPrefix(line, "imei:"):
		s.Dialect = types.DialectTK103_2
		return d.decodeTK103_2(line, s)
	case strings.HasPrefix(line, "("):
		if strings.ContainsRune(line, ',') {
			s.Dialect = types.DialectVJoy
			return d.decodeVJoy(line, s)
		}
		s.Dialect = types.DialectTK103_3
		return d.decodeTK103_3(line, s)
	case strings.HasPrefix(line, "*"):
		s.Dialect = types.DialectTKNano1
		return d.decodeTKnano1(line, s)
	case strings.HasPrefix(line, "$"):
		// TKnano-2 binary, not supported
		s.Dialect = types.DialectTKNano2
		return &protocols.Result{}, nil
	case len(line) == 15 && isNumeric(line):
		// bare IMEI login
		if s.Dialect.IsUnknown() || s.Dialect == types.DialectTK102 {
			s.Dialect = types.DialectTK103_1
		}
		s.ModemID = line
		return &protocols.Result{Reply: []byte("ON")}, nil
	case strings.HasPrefix(line, "["):
		s.Dialect = types.DialectTK102B
		return d.decodeTK102B(line, s)
	default:
		if s.Dialect.IsUnknown() {
			s.Dialect = types.DialectTK102
		}
		return d.decodeTK102(line, s)
	}
}

// decodeTK103_2 parses the "imei:" data line:
//
//	imei:123451042191239,tracker ,1107090553,9735551234,F,215314.000,A,4103.7641,N,14244.9450,W,0.08,;
func (d *Decoder) decodeTK103_2(line string, s *session.Session) (*protocols.Result, error) {
	fld := strings.Split(line, ",")
	if len(fld) < 2 {
		return nil, errors.ErrBadPacket
	}

	modemID := strings.TrimSpace(strings.TrimPrefix(fld[0], "imei:"))
	if modemID == "" {
		return nil, errors.ErrNoDeviceID
	}
	s.ModemID = modemID

	eventCode := strings.ToLower(strings.TrimSuffix(strings.TrimSpace(fld[1]), "!"))
	isOBD := strings.EqualFold(eventCode, "obd")
	if isOBD && len(fld) < 13 {
		return nil, errors.ErrBadPacket
	}
	if !isOBD && len(fld) < 12 {
		return nil, errors.ErrBadPacket
	}

	// local date/time, 10 or 12 digits
	var locYMDhms int64
	if len(fld[2]) >= 12 {
		locYMDhms = parseInt(fld[2][:12], 0)
	} else if len(fld[2]) >= 10 {
		locYMDhms = parseInt(fld[2][:10], 0) * 100
	}

	var fixtime int64
	if isOBD {
		fixtime = gpstime.FromYYMMDDhhmmss(locYMDhms)
	} else if gmtHMS := parseInt(strings.SplitN(fld[5], ".", 2)[0], -1); gmtHMS >= 0 {
		fixtime = gpstime.ReconcileLocalGMT(locYMDhms, gmtHMS)
	} else {
		fixtime = gpstime.FromYYMMDDhhmmss(locYMDhms)
	}
	if fixtime <= 0 {
		logger.Warn("invalid date, using current time", zap.String("date", fld[2]))
		fixtime = gpstime.Now()
	}

	fix := &types.NormalizedFix{
		ModemID:    modemID,
		Timestamp:  fixtime,
		Status:     types.StatusLocation,
		HeadingDeg: -1,
		SpeedKPH:   -1,
		InputMask:  -1,
	}

	switch {
	case isOBD:
		fix.FaultCodes = faultCodes(fld[12:])
	case fld[4] == "L":
		// cell only, no GPS
		lac := int(parseHex(fld[7], -1))
		var cid int
		if len(fld) > 9 {
			cid = int(parseHex(fld[9], 0))
		}
		if lac >= 0 && cid > 0 {
			fix.Cell = &types.CellTower{LAC: lac, CID: cid}
		}
	default: // "F"
		fix.ValidGPS = strings.EqualFold(fld[6], "A")
		if fix.ValidGPS {
			fix.Location = geo.GeoPoint{
				Latitude:  geo.ParseLatitude(fld[7], fld[8]),
				Longitude: geo.ParseLongitude(fld[9], fld[10]),
			}
			if kts := parseFloat(fld[11], -1); kts >= 0 {
				fix.SpeedKPH = kts * types.KilometersPerKnot
			}
			if len(fld) > 12 {
				fix.HeadingDeg = parseFloat(fld[12], -1)
			}
		}
	}

	validateGPS(fix)
	fix.ClampSpeed(d.cfg.MinimumSpeedKPH)

	if code, ok := eventCodes[eventCode]; ok {
		fix.Status = code
	}
	if fix.Status == types.StatusIgnitionOff {
		// keep ordered before an "acc on" at the same GPS second
		fix.Timestamp--
	}
	return protocols.One(fix), nil
}

// decodeTK103_3 parses the fixed-width parenthesized report:
//
//	(013612345678BP05000013612345678060905A3536.3640N14222.2958E027.0074725224.80000000000L000450AC)
func (d *Decoder) decodeTK103_3(line string, s *session.Session) (*protocols.Result, error) {
	if len(line) < 17 {
		return nil, errors.ErrBadPacket
	}
	rp := 0
	if strings.HasSuffix(line, ")") {
		rp = 1
	}
	runNum := line[1:13]
	msgType := line[13:17]
	ack := []byte("(" + runNum + "AP01HSO)")

	var g int
	status := types.StatusLocation
	switch msgType {
	case "BP05":
		if len(line) < 32 {
			return nil, errors.ErrBadPacket
		}
		s.ModemID = line[17:32]
		g = 32
	case "BR00", "BR02", "BP04":
		if s.ModemID == "" {
			logger.Warn("no modem id from a previous login packet")
		}
		g = 17
	case "BP00":
		// handshake, ACK only
		if len(line) >= 32 {
			s.ModemID = line[17:32]
		}
		return &protocols.Result{Reply: ack}, nil
	case "BO01":
		if len(line) < 18 {
			return nil, errors.ErrBadPacket
		}
		// 0=PowerOff 1=Arrive 2=SOS 3=AntiTheft 5=Overspeed 6=Depart
		switch line[17] {
		case '0':
			status = types.StatusPowerOff
		case '1':
			status = types.StatusGeofenceArrive
		case '2':
			status = types.StatusPanicOn
		case '3':
			status = types.StatusIntrusionOn
		case '5':
			status = types.StatusExcessSpeed
		case '6':
			status = types.StatusGeofenceDepart
		}
		g = 18
	default:
		logger.Warn("unsupported message type", zap.String("msgType", msgType))
		return &protocols.Result{}, nil
	}

	if len(line) < g+62+rp {
		return nil, errors.ErrBadPacket
	}

	fix := &types.NormalizedFix{
		ModemID:   s.ModemID,
		Status:    status,
		InputMask: -1,
	}
	fix.Timestamp = gpstime.FromYMDHMS(parseInt(line[g:g+6], 0), parseInt(line[g+33:g+39], 0))
	fix.ValidGPS = strings.EqualFold(line[g+6:g+7], "A")
	fix.Location = geo.GeoPoint{
		Latitude:  geo.ParseLatitude(line[g+7:g+16], line[g+16:g+17]),
		Longitude: geo.ParseLongitude(line[g+17:g+27], line[g+27:g+28]),
	}
	fix.SpeedKPH = parseFloat(line[g+28:g+33], 0)
	fix.HeadingDeg = parseFloat(line[g+39:g+45], 0)

	// inputs: eight '0'/'1' characters, last character is bit 0
	gpioStr := line[g+45 : g+53]
	fix.InputMask = 0
	for i := 0; i <= 7; i++ {
		if gpioStr[7-i] != '0' {
			fix.InputMask |= 1 << i
		}
	}

	if strings.EqualFold(line[g+53:g+54], "L") {
		if odo, err := strconv.ParseInt(line[g+54:g+62], 16, 64); err == nil {
			fix.OdometerKM = float64(odo) / 1000.0
		}
	}

	validateGPS(fix)
	fix.ClampSpeed(d.cfg.MinimumSpeedKPH)
	if fix.HeadingDeg < 0 {
		fix.HeadingDeg = 0
	}
	return protocols.One(fix), nil
}

// decodeVJoy parses the comma-separated parenthesized report:
//
//	(013632651491,ZC13,040613,A,2234.0297N,11405.9101E,000.0,040137,178.48)
func (d *Decoder) decodeVJoy(line string, s *session.Session) (*protocols.Result, error) {
	line = strings.TrimPrefix(line, "(")
	line = strings.TrimSuffix(line, ")")
	fld := strings.Split(line, ",")
	if len(fld) < 2 {
		return nil, errors.ErrBadPacket
	}

	s.ModemID = strings.TrimSpace(fld[0])
	ack := []byte("ok")

	var status types.StatusCode
	switch strings.ToUpper(strings.TrimSpace(fld[1])) {
	case "BP05", "ZC07", "ZC08", "ZC09":
		status = types.StatusLocation
	case "ZC11":
		status = types.StatusAlarmOn
	case "ZC12":
		status = types.StatusLowBattery
	case "ZC13":
		status = types.StatusPowerAlarm
	default:
		logger.Warn("unsupported event code", zap.String("eventCode", fld[1]))
		return &protocols.Result{Reply: ack}, nil
	}

	if len(fld) < 9 {
		return &protocols.Result{Reply: ack}, nil
	}

	fix := &types.NormalizedFix{
		ModemID:   s.ModemID,
		Status:    status,
		InputMask: -1,
	}
	fix.Timestamp = gpstime.FromDMYHMS(parseInt(fld[2], 0), parseInt(fld[7], 0))
	if fix.Timestamp <= 0 {
		fix.Timestamp = gpstime.Now()
	}
	fix.ValidGPS = strings.EqualFold(fld[3], "A")
	if fix.ValidGPS {
		lat, latH := splitHemisphere(fld[4])
		lon, lonH := splitHemisphere(fld[5])
		fix.Location = geo.GeoPoint{
			Latitude:  geo.ParseLatitude(lat, latH),
			Longitude: geo.ParseLongitude(lon, lonH),
		}
	}
	fix.SpeedKPH = parseFloat(fld[6], 0)
	fix.HeadingDeg = parseFloat(fld[8], 0)

	validateGPS(fix)
	fix.ClampSpeed(d.cfg.MinimumSpeedKPH)
	if fix.HeadingDeg < 0 {
		fix.HeadingDeg = 0
	}
	return &protocols.Result{Fixes: []*types.NormalizedFix{fix}, Reply: ack}, nil
}

// decodeTKnano1 parses the star-delimited report:
//
//	*HQ,1234567890,V1,074726,A,3536.3640,N,14222.2958,E,14.5,224,050906,FFFFFBFF#
func (d *Decoder) decodeTKnano1(line string, s *session.Session) (*protocols.Result, error) {
	line = strings.TrimSuffix(line, "#")
	fld := strings.Split(line, ",")
	if len(fld) < 13 {
		return nil, errors.ErrBadPacket
	}

	s.ModemID = strings.TrimSpace(fld[1])

	fix := &types.NormalizedFix{
		ModemID:   s.ModemID,
		Status:    types.StatusLocation,
		InputMask: -1,
	}
	fix.Timestamp = gpstime.FromDMYHMS(parseInt(fld[11], 0), parseInt(fld[3], 0))
	if fix.Timestamp <= 0 {
		fix.Timestamp = gpstime.Now()
	}
	fix.ValidGPS = strings.EqualFold(fld[4], "A")
	if fix.ValidGPS {
		fix.Location = geo.GeoPoint{
			Latitude:  geo.ParseLatitude(fld[5], fld[6]),
			Longitude: geo.ParseLongitude(fld[7], fld[8]),
		}
	}
	fix.SpeedKPH = parseFloat(fld[9], 0) * types.KilometersPerKnot
	fix.HeadingDeg = parseFloat(fld[10], 0)

	validateGPS(fix)
	fix.ClampSpeed(d.cfg.MinimumSpeedKPH)
	if fix.HeadingDeg < 0 {
		fix.HeadingDeg = 0
	}
	return protocols.One(fix), nil
}

// decodeTK102B parses the bracketed TK102B frame. The second character
// selects the packet type: '!' login, '#' quit, ';'/'=' data.
func (d *Decoder) decodeTK102B(line string, s *session.Session) (*protocols.Result, error) {
	if !strings.HasPrefix(line, "[") || !strings.HasSuffix(line, ")]") {
		return nil, errors.ErrBadPacket
	}
	if len(line) <= 13 || line[13] != '(' {
		return nil, errors.ErrBadPacket
	}

	switch header := line[1]; header {
	case '!':
		// login: [!0000000081.(13612345678,...)]
		imeiS := 14
		imeiE := strings.Index(line[imeiS:], ",")
		if imeiE <= 0 || imeiE > 15 {
			return nil, errors.ErrNoDeviceID
		}
		s.ModemID = line[imeiS : imeiS+imeiE]
		return &protocols.Result{Reply: []byte(`["0000000001` + line[13:])}, nil
	case '#':
		// quit request: echo with '$' header
		reply := []byte(line)
		reply[1] = '$'
		return &protocols.Result{Reply: reply, Disconnect: true}, nil
	case '%', 'J':
		return &protocols.Result{}, nil
	case ';', '=':
		// data, continue below
	default:
		logger.Warn("ignoring unrecognized packet header", zap.String("header", string(header)))
		return &protocols.Result{}, nil
	}

	if len(line) < 66 {
		return nil, errors.ErrBadPacket
	}

	fix := &types.NormalizedFix{
		ModemID:   s.ModemID,
		Status:    types.StatusLocation,
		InputMask: -1,
	}
	fix.ValidGPS = strings.EqualFold(line[23:24], "A")
	fix.Location = geo.GeoPoint{
		Latitude:  geo.ParseLatitude(line[24:33], line[33:34]),
		Longitude: geo.ParseLongitude(line[34:44], line[44:45]),
	}
	fix.SpeedKPH = parseFloat(line[45:50], 0) * types.KilometersPerKnot
	fix.HeadingDeg = parseFloat(line[50:52], 0) * 10.0
	fix.BatteryLevel = parseFloat(line[58:61], 0) / 100.0
	fix.Timestamp = gpstime.FromDMYHMS(parseInt(line[52:58], 0), parseInt(line[17:23], 0))

	validateGPS(fix)
	fix.ClampSpeed(d.cfg.MinimumSpeedKPH)
	if fix.HeadingDeg < 0 {
		fix.HeadingDeg = 0
	}
	return protocols.One(fix), nil
}

// decodeTK102 parses the free-form comma line carrying an embedded GPRMC
// block and an "imei:" field:
//
//	1203292316,0031698765432,GPRMC,211657.000,A,5213.0247,N,00516.7757,E,0.00,273.30,290312,,,A*62,F,imei:123456789012345,04,481.2,F:4.15V,0,139,2689,310,26,971B,3B45
func (d *Decoder) decodeTK102(line string, s *session.Session) (*protocols.Result, error) {
	fld := strings.Split(line, ",")
	if len(fld) < 15 {
		return nil, errors.ErrBadPacket
	}

	imeiNdx := -1
	for f := range fld {
		if strings.HasPrefix(fld[f], "imei:") {
			s.ModemID = strings.TrimSpace(strings.TrimPrefix(fld[f], "imei:"))
			imeiNdx = f
			break
		}
	}
	if s.ModemID == "" {
		return nil, errors.ErrNoDeviceID
	}

	gpx := 0
	for ; gpx < len(fld) && !strings.EqualFold(fld[gpx], "GPRMC"); gpx++ {
	}
	if gpx >= len(fld) || gpx+12 >= len(fld) {
		return nil, errors.ErrBadPacket
	}

	fix := &types.NormalizedFix{
		ModemID:    s.ModemID,
		Status:     types.StatusLocation,
		SpeedKPH:   -1,
		HeadingDeg: 0,
		InputMask:  -1,
	}
	hms := parseInt(strings.SplitN(fld[gpx+1], ".", 2)[0], 0)
	dmy := parseInt(fld[gpx+9], 0)
	fix.Timestamp = gpstime.FromDMYHMS(dmy, hms)
	fix.ValidGPS = strings.EqualFold(fld[gpx+2], "A")
	if fix.ValidGPS {
		fix.Location = geo.GeoPoint{
			Latitude:  geo.ParseLatitude(fld[gpx+3], fld[gpx+4]),
			Longitude: geo.ParseLongitude(fld[gpx+5], fld[gpx+6]),
		}
		if kts := parseFloat(fld[gpx+7], -1); kts >= 0 {
			fix.SpeedKPH = kts * types.KilometersPerKnot
		}
		fix.HeadingDeg = parseFloat(fld[gpx+8], -1)
	}

	if imeiNdx+1 < len(fld) {
		fix.SatCount = int(parseInt(fld[imeiNdx+1], 0))
		if fix.SatCount > 13 {
			// "100" has been observed here
			fix.SatCount = 0
		}
	}
	if imeiNdx+2 < len(fld) {
		fix.AltitudeM = parseFloat(fld[imeiNdx+2], 0)
	}
	if imeiNdx+3 < len(fld) {
		battV := fld[imeiNdx+3]
		if strings.HasPrefix(battV, "F:") || strings.HasPrefix(battV, "L:") {
			fix.BatteryVolts = parseFloat(strings.TrimSuffix(battV[2:], "V"), 0)
		}
	}

	// serving cell: MCC,MNC,LAC,CID with LAC/CID in hex
	if imeiNdx+10 < len(fld) {
		mcc := int(parseInt(fld[imeiNdx+7], 0))
		mnc := int(parseInt(fld[imeiNdx+8], 0))
		lac := int(parseHex(fld[imeiNdx+9], 0))
		cid := int(parseHex(fld[imeiNdx+10], 0))
		if mcc >= 0 && mnc >= 0 && lac >= 0 && cid > 0 {
			fix.Cell = &types.CellTower{MCC: mcc, MNC: mnc, LAC: lac, CID: cid}
		}
	}

	if fix.Timestamp <= 0 {
		logger.Warn("invalid date, using current time", zap.String("date", fld[gpx+9]))
		fix.Timestamp = gpstime.Now()
	}

	validateGPS(fix)
	fix.ClampSpeed(d.cfg.MinimumSpeedKPH)

	if gpx+14 < len(fld) {
		if code, ok := eventCodes[strings.ToLower(strings.TrimSpace(fld[gpx+14]))]; ok {
			fix.Status = code
		}
	}
	if !fix.ValidGPS && fix.Status == types.StatusLocation && fix.Cell != nil {
		fix.Status = types.StatusCellLocation
	}
	return protocols.One(fix), nil
}

// validateGPS clears a claimed-valid fix whose coordinates did not parse.
func validateGPS(fix *types.NormalizedFix) {
	if fix.ValidGPS && !fix.Location.IsValid() {
		logger.Warn("invalid lat/lon", zap.Float64("lat", fix.Location.Latitude), zap.Float64("lon", fix.Location.Longitude))
		fix.Location = geo.InvalidGeoPoint
		fix.ValidGPS = false
	}
}

func faultCodes(fld []string) []string {
	var dtc []string
	for _, f := range fld {
		f = strings.TrimSpace(f)
		if len(f) == 5 && strings.ContainsRune("PCBU", rune(f[0])) {
			dtc = append(dtc, f)
		}
	}
	return dtc
}

func splitHemisphere(s string) (string, string) {
	if n := len(s); n > 0 {
		switch s[n-1] {
		case 'N', 'S', 'E', 'W', 'n', 's', 'e', 'w':
			return s[:n-1], strings.ToUpper(s[n-1:])
		}
	}
	return s, ""
}

func isNumeric(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
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
