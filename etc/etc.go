package etc

import (
	"math"
	"time"

	"github.com/nrednav/cuid2"
)

func NewFreshID() string {
	return cuid2.Generate()
}

// Julian day number of the Unix epoch.
const julianEpoch = 2440587.5

// JulianDayToTime converts SQLite's julianday() values.
func JulianDayToTime(f float64) time.Time {
	unixTime := (f - julianEpoch) * 86400.0
	return time.Unix(
		int64(math.Floor(unixTime)),
		int64((unixTime-math.Floor(unixTime))*1e9),
	).UTC()
}

func TimeToJulianDay(t time.Time) float64 {
	return float64(t.UnixNano())/86400e9 + julianEpoch
}
