package errors

import "errors"

var ErrUnknownDialect = errors.New("unknown tracker dialect")
var ErrBadPacket = errors.New("malformed packet")
var ErrBadChecksum = errors.New("bad packet checksum")
var ErrNotRMC = errors.New("not a $GPRMC sentence")
var ErrNoDeviceID = errors.New("packet carries no device id")
var ErrUnknownDevice = errors.New("device not registered")
var ErrIPNotAllowed = errors.New("connecting address not in device allow-list")
var ErrSessionClosed = errors.New("session closed")
var ErrStoreClosed = errors.New("event store closed")
