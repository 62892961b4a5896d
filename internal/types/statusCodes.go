package types

import "fmt"

// StatusCode classifies a persisted event. The numeric vocabulary follows the
// OpenGTS status code space so that downstream consumers keep working against
// existing report definitions.
type StatusCode int32

const (
	// StatusIgnore suppresses an event entirely. Event-code maps may bind a
	// dialect code to this value to drop chatty vendor events.
	StatusIgnore StatusCode = -1

	// StatusNone means the dialect supplied no specific code. The pipeline
	// retargets it to StatusInMotion or StatusLocation before persisting.
	StatusNone StatusCode = 0x0000

	StatusInitialized StatusCode = 0xF010

	StatusLocation     StatusCode = 0xF020
	StatusLastLocation StatusCode = 0xF025
	StatusCellLocation StatusCode = 0xF029

	StatusQuery     StatusCode = 0xF040
	StatusNotify    StatusCode = 0xF044
	StatusHeartbeat StatusCode = 0xF060

	StatusMotionStart StatusCode = 0xF111
	StatusInMotion    StatusCode = 0xF112
	StatusDormant     StatusCode = 0xF114
	StatusIdle        StatusCode = 0xF116
	StatusExcessIdle  StatusCode = 0xF118
	StatusExcessSpeed StatusCode = 0xF11A
	StatusMoving      StatusCode = 0xF11C
	StatusHeading     StatusCode = 0xF11F

	StatusGeofenceArrive StatusCode = 0xF210
	StatusGeofenceDepart StatusCode = 0xF230

	StatusInputState  StatusCode = 0xF400
	StatusIgnitionOn  StatusCode = 0xF401
	StatusIgnitionOff StatusCode = 0xF403

	// Digital input edges, one code per bit 0..15.
	StatusInputOn00  StatusCode = 0xF420
	StatusInputOff00 StatusCode = 0xF440

	StatusPanicOn     StatusCode = 0xF841
	StatusAlarmOn     StatusCode = 0xF847
	StatusTowingStart StatusCode = 0xF871
	StatusIntrusionOn StatusCode = 0xF881
	StatusBreachOn    StatusCode = 0xF889

	StatusExcessBraking   StatusCode = 0xF930
	StatusExcessCornering StatusCode = 0xF937
	StatusImpact          StatusCode = 0xF941
	StatusExcessAccel     StatusCode = 0xF960

	StatusLowBattery StatusCode = 0xFD10
	StatusPowerAlarm StatusCode = 0xFD14
	StatusPowerOff   StatusCode = 0xFD17
	StatusPowerOn    StatusCode = 0xFD19
)

// StatusInputOn returns the input-on code for the given digital input bit.
func StatusInputOn(bit int) StatusCode {
	return StatusInputOn00 + StatusCode(bit&0x0F)
}

// StatusInputOff returns the input-off code for the given digital input bit.
func StatusInputOff(bit int) StatusCode {
	return StatusInputOff00 + StatusCode(bit&0x0F)
}

func (c StatusCode) String() string {
	switch c {
	case StatusIgnore:
		return "ignore"
	case StatusNone:
		return "none"
	case StatusLocation:
		return "location"
	case StatusLastLocation:
		return "last-location"
	case StatusCellLocation:
		return "cell-location"
	case StatusInMotion:
		return "in-motion"
	case StatusExcessSpeed:
		return "excess-speed"
	case StatusGeofenceArrive:
		return "geofence-arrive"
	case StatusGeofenceDepart:
		return "geofence-depart"
	case StatusIgnitionOn:
		return "ignition-on"
	case StatusIgnitionOff:
		return "ignition-off"
	case StatusAlarmOn:
		return "alarm-on"
	case StatusPanicOn:
		return "panic-on"
	case StatusIntrusionOn:
		return "intrusion-on"
	case StatusLowBattery:
		return "low-battery"
	case StatusPowerAlarm:
		return "power-alarm"
	case StatusPowerOff:
		return "power-off"
	case StatusPowerOn:
		return "power-on"
	case StatusInitialized:
		return "initialized"
	case StatusQuery:
		return "query"
	case StatusNotify:
		return "notify"
	case StatusHeartbeat:
		return "heartbeat"
	case StatusMotionStart:
		return "motion-start"
	case StatusDormant:
		return "dormant"
	case StatusIdle:
		return "idle"
	case StatusExcessIdle:
		return "excess-idle"
	case StatusMoving:
		return "moving"
	case StatusHeading:
		return "heading-change"
	case StatusInputState:
		return "input-state"
	case StatusTowingStart:
		return "towing-start"
	case StatusBreachOn:
		return "breach-on"
	case StatusExcessBraking:
		return "excess-braking"
	case StatusExcessCornering:
		return "excess-cornering"
	case StatusImpact:
		return "impact"
	case StatusExcessAccel:
		return "excess-accel"
	}
	if c >= StatusInputOn00 && c < StatusInputOn00+16 {
		return fmt.Sprintf("input-on-%02d", int(c-StatusInputOn00))
	}
	if c >= StatusInputOff00 && c < StatusInputOff00+16 {
		return fmt.Sprintf("input-off-%02d", int(c-StatusInputOff00))
	}
	return fmt.Sprintf("0x%04X", int32(c))
}
