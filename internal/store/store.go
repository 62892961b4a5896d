// Package store defines the persistence contracts of the receiver: device
// identity resolution, per-device pipeline state, and the event sink.
package store

import (
	"context"

	"github.com/fleetgrid/tracker-receiver/internal/geo"
	"github.com/fleetgrid/tracker-receiver/internal/types"
)

// DeviceIdentity is the account-scoped identity a modem ID resolves to.
type DeviceIdentity struct {
	AccountID   string `json:"accountId"`
	DeviceID    string `json:"deviceId"`
	ModemID     string `json:"modemId"`
	Description string `json:"description,omitempty"`

	// AllowedIPs restricts which source addresses may speak for this
	// device. Empty means any.
	AllowedIPs []string `json:"allowedIps,omitempty"`
}

// DeviceState is the per-device state the pipeline reads at the start of a
// packet cycle and writes back once at the end.
type DeviceState struct {
	DeviceID string `json:"deviceId"`

	LastValidLocation  geo.GeoPoint `json:"lastValidLocation"`
	LastValidTimestamp int64        `json:"lastValidTimestamp"`
	LastValidSpeedKPH  float64      `json:"lastValidSpeedKph"`
	LastValidHeading   float64      `json:"lastValidHeading"`

	OdometerKM    float64 `json:"odometerKm"`
	InputMask     int64   `json:"inputMask"`
	GeozoneID     string  `json:"geozoneId,omitempty"`
	IgnitionOn    bool    `json:"ignitionOn"`
	LastEventTime int64   `json:"lastEventTime"`

	LastConnectAddr string `json:"lastConnectAddr,omitempty"`
	LastConnectTime int64  `json:"lastConnectTime,omitempty"`
}

// Event is one persisted record: a device identity plus a normalized fix
// carrying a single status code.
type Event struct {
	AccountID   string               `json:"accountId"`
	DeviceID    string               `json:"deviceId"`
	ModemID     string               `json:"modemId"`
	Timestamp   int64                `json:"timestamp"`
	Status      types.StatusCode     `json:"statusCode"`
	StatusName  string               `json:"statusName"`
	Latitude    float64              `json:"latitude"`
	Longitude   float64              `json:"longitude"`
	ValidGPS    bool                 `json:"validGps"`
	SpeedKPH    float64              `json:"speedKph"`
	HeadingDeg  float64              `json:"headingDeg"`
	AltitudeM   float64              `json:"altitudeM"`
	OdometerKM  float64              `json:"odometerKm"`
	InputMask   int64                `json:"inputMask"`
	GpsAgeSec   int64                `json:"gpsAgeSec,omitempty"`
	HDOP        float64              `json:"hdop,omitempty"`
	SatCount    int                  `json:"satCount,omitempty"`
	Battery     float64              `json:"batteryVolts,omitempty"`
	Cell        *types.CellTower     `json:"cell,omitempty"`
	FaultCodes  []string             `json:"faultCodes,omitempty"`
	GeozoneID   string               `json:"geozoneId,omitempty"`
	Synthesized bool                 `json:"synthesized,omitempty"`
	RawDialect  string               `json:"dialect"`
}

// DeviceResolver decides whether a reported modem ID, or an explicit
// account/device pair, belongs to a known device. Decoders must not emit
// events for an unresolved session.
type DeviceResolver interface {
	ResolveDevice(ctx context.Context, modemID string) (*DeviceIdentity, error)
	ResolveAccountDevice(ctx context.Context, accountID, deviceID string) (*DeviceIdentity, error)
}

// StateStore loads and saves per-device pipeline state. LoadState returns a
// zero-valued state for a device it has never seen.
type StateStore interface {
	LoadState(ctx context.Context, deviceID string) (*DeviceState, error)
	SaveState(ctx context.Context, state *DeviceState) error
}

// EventStore consumes events through a channel owned by a Process goroutine.
type EventStore interface {
	Process()
	GetProcessChan() chan Event
	GetCloseChan() chan bool
}
