package utils

import "time"

// Clock returns the current time. Components take one so tests can freeze time.
type Clock func() time.Time

// SystemClock is the wall clock in UTC.
func SystemClock() time.Time {
	return time.Now().UTC()
}

func PrettyDate(date time.Time) string {
	return date.UTC().Format("02 Jan 2006 - 15:04 UTC")
}

// UnixMs converts a time to exchange milliseconds.
func UnixMs(t time.Time) int64 {
	return t.UnixNano() / int64(time.Millisecond)
}
