package timeutil

import (
	"time"
)

// London is the business timezone for appointments, callbacks and the PDF sheet
var London *time.Location

func init() {
	var err error
	London, err = time.LoadLocation("Europe/London")
	if err != nil {
		// Fallback when tzdata is missing: GMT without DST
		London = time.FixedZone("GMT", 0)
	}
}

// LondonTZ is the IANA name handed to the calendar provider and ICS builder
const LondonTZ = "Europe/London"

// Now returns the current time in London
func Now() time.Time {
	return time.Now().In(London)
}

// ToLondon converts any time to London
func ToLondon(t time.Time) time.Time {
	return t.In(London)
}

// ParseInLondon parses a wall-clock time string as London local time
func ParseInLondon(layout, value string) (time.Time, error) {
	t, err := time.ParseInLocation(layout, value, London)
	if err != nil {
		return time.Time{}, err
	}
	return t, nil
}

// FormatLondon formats a time in London using the given layout
func FormatLondon(t time.Time, layout string) string {
	return t.In(London).Format(layout)
}

// StartOfDay returns 00:00:00 London time for the given instant
func StartOfDay(t time.Time) time.Time {
	l := t.In(London)
	return time.Date(l.Year(), l.Month(), l.Day(), 0, 0, 0, 0, London)
}

// Common layouts
const (
	DateLayout     = "2006-01-02"
	TimeLayout     = "15:04:05"
	DateTimeLayout = "2006-01-02 15:04:05"
	DisplayLayout  = "Monday 02 January 2006, 3:04 PM"
)
