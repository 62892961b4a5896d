package gpstime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// 2006-09-05T07:47:26Z
const refTime = int64(1157442446)

func TestFromDMYHMS(t *testing.T) {
	assert.Equal(t, refTime, FromDMYHMS(50906, 74726))
	assert.Equal(t, int64(0), FromDMYHMS(54306, 74726), "month out of range")
	assert.Equal(t, int64(0), FromDMYHMS(990906, 74726), "day out of range")
}

func TestFromYMDHMS(t *testing.T) {
	assert.Equal(t, refTime, FromYMDHMS(60905, 74726))
	assert.Equal(t, refTime, FromYYMMDDhhmmss(60905074726))
	assert.Equal(t, int64(0), FromYYMMDDhhmmss(0))
}

func TestFromCalendar(t *testing.T) {
	assert.Equal(t, refTime, FromCalendar(2006, 9, 5, 7, 47, 26))
	assert.Equal(t, refTime, FromCalendar(6, 9, 5, 7, 47, 26), "two-digit year")
	assert.Equal(t, int64(0), FromCalendar(2006, 13, 5, 7, 47, 26))

	// unix epoch day zero
	assert.Equal(t, int64(0), FromCalendar(1970, 1, 1, 0, 0, 0))
	// leap day
	assert.Equal(t, time.Date(2024, 2, 29, 12, 0, 0, 0, time.UTC).Unix(),
		FromCalendar(2024, 2, 29, 12, 0, 0))
}

func TestFromGPSSeconds(t *testing.T) {
	assert.Equal(t, refTime, FromGPSSeconds(refTime-315964800))
	assert.Equal(t, int64(0), FromGPSSeconds(0))
	assert.Equal(t, int64(0), FromGPSSeconds(-5))
}

func TestReconcileLocalGMT(t *testing.T) {
	// same day: local 09:47:26 with GMT 07:47:26, offset under 12h
	assert.Equal(t, refTime, ReconcileLocalGMT(60905094726, 74726))

	// device local clock still on 2006-09-05 at 23:58, GMT already at 00:02
	// of the next day
	sept6Midnight := refTime - 28046 + 86400
	assert.Equal(t, sept6Midnight+120, ReconcileLocalGMT(60905235800, 200))

	// the reverse crossing: local 00:05 on the 6th, GMT 23:58 still on the 5th
	assert.Equal(t, sept6Midnight-120, ReconcileLocalGMT(60906000500, 235800))
}

func TestDateInferredFromClock(t *testing.T) {
	defer func(orig func() int64) { Now = orig }(Now)

	// receiver clock a few seconds past the packet time
	Now = func() int64 { return refTime + 9 }
	assert.Equal(t, refTime, FromDMYHMS(0, 74726))
	assert.Equal(t, refTime, ReconcileLocalGMT(235800, 74726))

	// packet sent just before midnight, received just after: day shifts back
	Now = func() int64 { return refTime - 28046 }
	assert.Equal(t, refTime-28046-120, FromDMYHMS(0, 235800))
}
