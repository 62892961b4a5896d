// Package pipeline turns decoded fixes into persisted events. It owns the
// per-device state cycle: identity resolution, invalid-GPS fallbacks, heading
// and odometer repair, geozone and digital-input event synthesis, and the
// final status arbitration. State is read once per fix and written back once.
package pipeline

import (
	"context"
	"net"

	pkgerrors "github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/fleetgrid/tracker-receiver/internal/config"
	"github.com/fleetgrid/tracker-receiver/internal/errors"
	"github.com/fleetgrid/tracker-receiver/internal/geo"
	"github.com/fleetgrid/tracker-receiver/internal/gpstime"
	configuredLogger "github.com/fleetgrid/tracker-receiver/internal/logger"
	"github.com/fleetgrid/tracker-receiver/internal/session"
	"github.com/fleetgrid/tracker-receiver/internal/store"
	"github.com/fleetgrid/tracker-receiver/internal/types"
)

var logger = configuredLogger.Logger

type Pipeline struct {
	Resolver store.DeviceResolver
	States   store.StateStore
	Events   store.EventStore
	Zones    *geo.ZoneIndex
	Config   *config.Config
}

func New(resolver store.DeviceResolver, states store.StateStore, events store.EventStore,
	zones *geo.ZoneIndex, cfg *config.Config) *Pipeline {
	return &Pipeline{
		Resolver: resolver,
		States:   states,
		Events:   events,
		Zones:    zones,
		Config:   cfg,
	}
}

// Process handles the fixes decoded from one packet. It returns the number
// of events persisted.
func (p *Pipeline) Process(ctx context.Context, s *session.Session, fixes []*types.NormalizedFix) (int, error) {
	total := 0
	// one dedup scope per packet, shared by every fix it carried
	emitted := map[eventKey]bool{}
	for _, fix := range fixes {
		ident, err := p.identify(ctx, s, fix)
		if err != nil {
			return total, err
		}
		n, err := p.processFix(ctx, s, ident, fix, emitted)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// identify resolves the device a fix belongs to. Resolution is cached on the
// session; a fix carrying an explicit account/device pair resolves by pair
// instead of by modem ID. Both paths enforce the device IP allow-list.
func (p *Pipeline) identify(ctx context.Context, s *session.Session, fix *types.NormalizedFix) (*store.DeviceIdentity, error) {
	if fix.Account != "" && fix.Device != "" {
		if s.Identity != nil && s.Identity.AccountID == fix.Account && s.Identity.DeviceID == fix.Device {
			return s.Identity, nil
		}
		ident, err := p.Resolver.ResolveAccountDevice(ctx, fix.Account, fix.Device)
		if err != nil {
			return nil, pkgerrors.Wrapf(err, "resolving device %s/%s", fix.Account, fix.Device)
		}
		if !addrAllowed(s.RemoteAddr, ident.AllowedIPs) {
			return nil, pkgerrors.Wrapf(errors.ErrIPNotAllowed,
				"device %q from %s", ident.DeviceID, s.RemoteAddr)
		}
		if ident.ModemID == "" {
			ident.ModemID = fix.ModemID
		}
		s.Identity = ident
		return ident, nil
	}

	modemID := fix.ModemID
	if modemID == "" {
		modemID = s.ModemID
	}
	if s.Identity != nil && s.Identity.ModemID == modemID {
		return s.Identity, nil
	}

	ident, err := p.Resolver.ResolveDevice(ctx, modemID)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "resolving modem id %q", modemID)
	}
	if !addrAllowed(s.RemoteAddr, ident.AllowedIPs) {
		return nil, pkgerrors.Wrapf(errors.ErrIPNotAllowed,
			"device %q from %s", ident.DeviceID, s.RemoteAddr)
	}
	s.Identity = ident
	return ident, nil
}

// addrAllowed checks remoteAddr ("host:port" or bare host) against the
// device allow-list. An empty list admits any address.
func addrAllowed(remoteAddr string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	for _, a := range allowed {
		if a == host {
			return true
		}
	}
	return false
}

// cycle carries the working values of one fix through the processing steps.
type cycle struct {
	ident    *store.DeviceIdentity
	state    *store.DeviceState
	fix      *types.NormalizedFix
	dialect  string
	cfg      config.Dialect
	status   types.StatusCode
	validGPS bool
	location geo.GeoPoint
	speedKPH float64
	heading  float64
	gpsAge   int64
	odomKM   float64
	emitted  map[eventKey]bool
	inserted int
}

type eventKey struct {
	timestamp int64
	status    types.StatusCode
}

func (p *Pipeline) processFix(ctx context.Context, s *session.Session, ident *store.DeviceIdentity, fix *types.NormalizedFix, emitted map[eventKey]bool) (int, error) {
	cfg := p.Config.DialectConfig(s.Dialect.ConfigKey())

	if fix.Timestamp <= 0 {
		fix.Timestamp = gpstime.Now()
	}

	state, err := p.States.LoadState(ctx, ident.DeviceID)
	if err != nil {
		return 0, pkgerrors.Wrapf(err, "loading state for device %q", ident.DeviceID)
	}
	state.DeviceID = ident.DeviceID

	c := &cycle{
		ident:    ident,
		state:    state,
		fix:      fix,
		dialect:  s.Dialect.String(),
		cfg:      cfg,
		status:   fix.Status,
		validGPS: fix.ValidGPS,
		location: fix.Location,
		speedKPH: fix.SpeedKPH,
		heading:  fix.HeadingDeg,
		gpsAge:   fix.GpsAgeSec,
		emitted:  emitted,
	}
	if c.speedKPH < 0 {
		c.speedKPH = 0
	}

	if cfg.MaximumHDOP > 0 && fix.HDOP > cfg.MaximumHDOP {
		logger.Debug("fix rejected for hdop",
			zap.String("deviceId", ident.DeviceID), zap.Float64("hdop", fix.HDOP))
		c.validGPS = false
	}

	p.fallbackLocation(c)
	p.repairHeading(c)
	p.repairOdometer(c)
	p.simulateGeozones(c)
	p.simulateInputs(c)

	for _, code := range fix.StatusSet {
		p.emit(c, code, fix.Timestamp, false)
		if code == c.status {
			c.status = types.StatusIgnore
		}
	}
	if c.status == types.StatusLocation && len(fix.StatusSet) > 0 {
		c.status = types.StatusIgnore
	}

	p.arbitrate(c)

	if c.validGPS {
		state.LastValidLocation = c.location
		state.LastValidTimestamp = fix.Timestamp
		state.LastValidSpeedKPH = c.speedKPH
		state.LastValidHeading = c.heading
	}
	state.OdometerKM = c.odomKM
	switch fix.Status {
	case types.StatusIgnitionOn:
		state.IgnitionOn = true
	case types.StatusIgnitionOff:
		state.IgnitionOn = false
	}
	if fix.Timestamp > state.LastEventTime {
		state.LastEventTime = fix.Timestamp
	}
	state.LastConnectAddr = s.RemoteAddr
	state.LastConnectTime = s.OpenedAt.Unix()

	if err := p.States.SaveState(ctx, state); err != nil {
		return c.inserted, pkgerrors.Wrapf(err, "saving state for device %q", ident.DeviceID)
	}
	return c.inserted, nil
}

// fallbackLocation substitutes the last known position for an invalid fix,
// or retags a cell-only fix. The GPS-valid flag stays false either way.
func (p *Pipeline) fallbackLocation(c *cycle) {
	if c.validGPS {
		return
	}
	if c.cfg.UseLastValidGPS && c.state.LastValidLocation.IsValid() {
		c.location = c.state.LastValidLocation
		c.speedKPH = c.state.LastValidSpeedKPH
		c.heading = c.state.LastValidHeading
		c.gpsAge = gpstime.Now() - c.state.LastValidTimestamp
		if c.gpsAge < 0 {
			c.gpsAge = 0
		}
		if c.status == types.StatusLocation {
			c.status = types.StatusLastLocation
		}
		return
	}
	c.location = geo.InvalidGeoPoint
	c.speedKPH = 0
	c.heading = 0
	if c.fix.Cell != nil && c.status == types.StatusLocation {
		c.status = types.StatusCellLocation
	}
}

// repairHeading backfills an unknown heading from the bearing off the last
// valid position when the device is moving.
func (p *Pipeline) repairHeading(c *cycle) {
	if c.heading >= 0 {
		return
	}
	c.heading = 0
	if c.validGPS && c.speedKPH > 0 && c.state.LastValidLocation.IsValid() {
		c.heading = c.state.LastValidLocation.HeadingTo(c.location)
	}
}

// repairOdometer fills a missing odometer from the stored value, optionally
// advanced by the distance from the last valid position, and rejects
// implausible device-reported values.
func (p *Pipeline) repairOdometer(c *cycle) {
	c.odomKM = c.fix.OdometerKM
	if c.odomKM <= 0 {
		c.odomKM = c.state.OdometerKM
		if c.cfg.EstimateOdometer && c.validGPS && c.state.LastValidLocation.IsValid() {
			c.odomKM += c.state.LastValidLocation.DistanceKM(c.location)
		}
		return
	}
	if c.cfg.MaximumOdometerKM > 0 && c.odomKM > c.cfg.MaximumOdometerKM {
		logger.Warn("odometer exceeds maximum, keeping stored value",
			zap.String("deviceId", c.state.DeviceID), zap.Float64("odometerKm", c.odomKM))
		c.odomKM = c.state.OdometerKM
	}
}

// simulateGeozones emits arrive/depart events when a valid fix crosses a
// configured zone boundary.
func (p *Pipeline) simulateGeozones(c *cycle) {
	if !c.cfg.SimulateGeozones || !c.validGPS || p.Zones == nil {
		return
	}
	zoneID := p.Zones.ZoneFor(c.ident.AccountID, c.location)
	if zoneID == c.state.GeozoneID {
		return
	}
	if c.state.GeozoneID != "" {
		p.emitZone(c, types.StatusGeofenceDepart, c.state.GeozoneID)
	}
	if zoneID != "" {
		p.emitZone(c, types.StatusGeofenceArrive, zoneID)
	}
	c.state.GeozoneID = zoneID
}

func (p *Pipeline) emitZone(c *cycle, code types.StatusCode, zoneID string) {
	ev := p.buildEvent(c, code, c.fix.Timestamp, true)
	ev.GeozoneID = zoneID
	p.send(c, ev)
}

// simulateInputs emits input-on/off events for the digital input bits that
// changed since the previous report. The stored mask is updated whenever a
// report carries one, even with edge synthesis disabled.
func (p *Pipeline) simulateInputs(c *cycle) {
	if c.fix.InputMask < 0 {
		return
	}
	if c.cfg.DigitalInputMask != 0 {
		last := c.state.InputMask
		if last < 0 {
			last = 0
		}
		changed := (last ^ c.fix.InputMask) & c.cfg.DigitalInputMask
		for bit := 0; bit <= 7; bit++ {
			if changed&(1<<bit) == 0 {
				continue
			}
			if c.fix.InputMask&(1<<bit) != 0 {
				p.emit(c, types.StatusInputOn(bit), c.fix.Timestamp, true)
			} else {
				p.emit(c, types.StatusInputOff(bit), c.fix.Timestamp, true)
			}
		}
	}
	c.state.InputMask = c.fix.InputMask & 0xFFFF
}

// arbitrate decides whether the primary status of the fix becomes an event
// of its own, after the synthesized events have been accounted for.
func (p *Pipeline) arbitrate(c *cycle) {
	switch {
	case c.status < 0:
		// explicitly ignored
	case c.inserted > 0 && (c.status == types.StatusLocation || c.status == types.StatusNone):
		// the synthesized events already carry this fix
	case c.status == types.StatusNone:
		if c.speedKPH > 0 {
			p.emit(c, types.StatusInMotion, c.fix.Timestamp, false)
		} else {
			p.emit(c, types.StatusLocation, c.fix.Timestamp, false)
		}
	case c.status != types.StatusLocation:
		p.emit(c, c.status, c.fix.Timestamp, false)
	case c.cfg.StatusLocationInMotion && c.speedKPH > 0:
		p.emit(c, types.StatusInMotion, c.fix.Timestamp, false)
	case c.validGPS && p.movedEnough(c):
		p.emit(c, types.StatusLocation, c.fix.Timestamp, false)
	}
}

// movedEnough reports whether the fix is far enough from the last valid
// position to be worth another plain location event.
func (p *Pipeline) movedEnough(c *cycle) bool {
	if !c.state.LastValidLocation.IsValid() || c.cfg.MinimumMovedMeters <= 0 {
		return true
	}
	return c.state.LastValidLocation.MetersTo(c.location) >= c.cfg.MinimumMovedMeters
}

func (p *Pipeline) emit(c *cycle, code types.StatusCode, timestamp int64, synthesized bool) {
	p.send(c, p.buildEvent(c, code, timestamp, synthesized))
}

func (p *Pipeline) buildEvent(c *cycle, code types.StatusCode, timestamp int64, synthesized bool) store.Event {
	return store.Event{
		AccountID:   c.ident.AccountID,
		DeviceID:    c.ident.DeviceID,
		ModemID:     c.ident.ModemID,
		Timestamp:   timestamp,
		Status:      code,
		StatusName:  code.String(),
		Latitude:    c.location.Latitude,
		Longitude:   c.location.Longitude,
		ValidGPS:    c.validGPS,
		SpeedKPH:    c.speedKPH,
		HeadingDeg:  c.heading,
		AltitudeM:   c.fix.AltitudeM,
		OdometerKM:  c.odomKM,
		InputMask:   c.fix.InputMask,
		GpsAgeSec:   c.gpsAge,
		HDOP:        c.fix.HDOP,
		SatCount:    c.fix.SatCount,
		Battery:     c.fix.BatteryVolts,
		Cell:        c.fix.Cell,
		FaultCodes:  c.fix.FaultCodes,
		GeozoneID:   c.state.GeozoneID,
		Synthesized: synthesized,
		RawDialect:  c.dialect,
	}
}

// send delivers the event unless an identical (timestamp, status) pair was
// already emitted in this cycle.
func (p *Pipeline) send(c *cycle, ev store.Event) {
	key := eventKey{timestamp: ev.Timestamp, status: ev.Status}
	if c.emitted[key] {
		return
	}
	c.emitted[key] = true
	p.Events.GetProcessChan() <- ev
	c.inserted++
}
