package utils

import (
	"time"
)

const (
	DateLayout  = "2006-01-02"
	ClockLayout = "15:04"
)

// DateAndClock splits t, in loc, into the date and HH:MM strings rides and
// requests are scheduled with. Both sort lexically in time order.
func DateAndClock(t time.Time, loc *time.Location) (string, string) {
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	return local.Format(DateLayout), local.Format(ClockLayout)
}

func IsValidDate(value string) bool {
	_, err := time.Parse(DateLayout, value)
	return err == nil
}

func IsValidClock(value string) bool {
	_, err := time.Parse(ClockLayout, value)
	return err == nil
}
