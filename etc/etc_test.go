package etc

import (
	"testing"
	"time"
)

func TestJulianDayToTime(t *testing.T) {
	got := JulianDayToTime(2440587.5)
	if !got.Equal(time.Unix(0, 0)) {
		t.Errorf("epoch = %v", got)
	}

	want := time.Date(2025, 6, 17, 12, 30, 0, 0, time.UTC)
	back := JulianDayToTime(TimeToJulianDay(want))
	if d := back.Sub(want); d < -time.Millisecond || d > time.Millisecond {
		t.Errorf("round trip = %v, want %v", back, want)
	}
}

func TestNewFreshID(t *testing.T) {
	a, b := NewFreshID(), NewFreshID()
	if a == "" || a == b {
		t.Errorf("ids %q and %q", a, b)
	}
}
