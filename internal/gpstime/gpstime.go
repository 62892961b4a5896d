// Package gpstime reconstructs UTC epoch timestamps from the partial and
// sometimes timezone-ambiguous date/time fields GPS trackers report.
package gpstime

import "time"

const (
	daySeconds     = 86400
	rolloverWindow = 12 * 3600 // beyond this, assume a UTC day boundary was crossed

	// gpsEpochOffset is the unix timestamp of the GPS epoch (1980-01-06).
	gpsEpochOffset = 315964800
)

// FromGPSSeconds converts seconds since the GPS epoch to unix seconds.
// Leap seconds are ignored; the trackers that use this base do the same.
func FromGPSSeconds(gps int64) int64 {
	if gps <= 0 {
		return 0
	}
	return gps + gpsEpochOffset
}

// Now is the clock used when a packet supplies no date. Tests override it.
var Now = func() int64 { return time.Now().Unix() }

// todSeconds converts an HHMMSS integer to seconds-of-day.
func todSeconds(hms int64) int64 {
	hh := (hms / 10000) % 100
	mm := (hms / 100) % 100
	ss := hms % 100
	return hh*3600 + mm*60 + ss
}

// dayNumber converts a calendar date to days since the unix epoch.
func dayNumber(year, month, day int) int64 {
	yr := int64(year)*1000 + int64((month-3)*1000)/12
	return (367*yr+625)/1000 - 2*(yr/1000) +
		yr/4000 - yr/100000 + yr/400000 +
		int64(day) - 719469
}

// adjustDay applies the day-rollover heuristic: refTOD is a time-of-day known
// to belong to the given day, tod is the authoritative time-of-day. When the
// two differ by more than 12 hours the packet straddled a UTC day boundary
// and the day is shifted toward the larger time-of-day.
func adjustDay(day, refTOD, tod int64) int64 {
	dif := refTOD - tod
	if dif < 0 {
		dif = -dif
	}
	if dif > rolloverWindow {
		if refTOD > tod {
			day++
		} else {
			day--
		}
	}
	return day
}

// FromDMYHMS converts a DDMMYY date and HHMMSS time (both GMT) to unix
// seconds. When dmy is zero the day is inferred from the current UTC day,
// shifted by the rollover heuristic. Returns 0 for an invalid date.
func FromDMYHMS(dmy, hms int64) int64 {
	tod := todSeconds(hms)
	var day int64
	if dmy > 0 {
		yy := int(dmy%100) + 2000
		mm := int((dmy / 100) % 100)
		dd := int((dmy / 10000) % 100)
		if mm < 1 || mm > 12 || dd < 1 || dd > 31 {
			return 0
		}
		day = dayNumber(yy, mm, dd)
	} else {
		utc := Now()
		day = adjustDay(utc/daySeconds, utc%daySeconds, tod)
	}
	return day*daySeconds + tod
}

// FromYMDHMS converts a YYMMDD date and HHMMSS time (both GMT) to unix
// seconds. Returns 0 for an invalid date.
func FromYMDHMS(ymd, hms int64) int64 {
	if ymd <= 0 {
		return 0
	}
	yy := int((ymd/10000)%100) + 2000
	mm := int((ymd / 100) % 100)
	dd := int(ymd % 100)
	if mm < 1 || mm > 12 || dd < 1 || dd > 31 {
		return 0
	}
	return dayNumber(yy, mm, dd)*daySeconds + todSeconds(hms)
}

// FromYYMMDDhhmmss converts a combined YYMMDDhhmmss value (GMT) to unix
// seconds. Returns 0 when the value is not positive.
func FromYYMMDDhhmmss(v int64) int64 {
	if v <= 0 {
		return 0
	}
	return FromYMDHMS(v/1000000, v%1000000)
}

// ReconcileLocalGMT resolves the UTC timestamp of a packet that reports a
// local-timezone YYMMDDhhmmss alongside a GMT HHMMSS time-of-day. The GMT
// time-of-day is authoritative; the local date supplies the day, shifted by
// one when the two times-of-day differ by more than 12 hours (the device
// crossed a UTC day boundary relative to its configured timezone). With no
// date at all, the day is inferred from the current UTC day the same way.
func ReconcileLocalGMT(locYMDhms, gmtHMS int64) int64 {
	gmtTOD := todSeconds(gmtHMS)
	locTOD := todSeconds(locYMDhms)

	ymd := locYMDhms / 1000000
	var day int64
	if ymd > 0 {
		yy := int((ymd/10000)%100) + 2000
		mm := int((ymd / 100) % 100)
		dd := int(ymd % 100)
		day = adjustDay(dayNumber(yy, mm, dd), locTOD, gmtTOD)
	} else {
		utc := Now()
		day = adjustDay(utc/daySeconds, utc%daySeconds, gmtTOD)
	}
	return day*daySeconds + gmtTOD
}

// FromCalendar converts explicit GMT calendar fields to unix seconds.
// Two-digit years are taken as 20YY.
func FromCalendar(year, month, day, hour, min, sec int) int64 {
	if year < 100 {
		year += 2000
	}
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return 0
	}
	return dayNumber(year, month, day)*daySeconds +
		int64(hour)*3600 + int64(min)*60 + int64(sec)
}
