package domain

import (
	"slices"
	"strings"
	"time"

	// Embedded zone database so timezone names resolve on hosts without one.
	_ "time/tzdata"
)

// Normalized is the absolute instant of a reading and the owner's age then.
type Normalized struct {
	ObservedAt time.Time
	AgeYears   *int
}

// Normalize localizes a wall-clock date and time into tzName and derives the
// age in whole years from dob. Seconds are always zero. A wall clock repeated
// by a backward shift takes the standard-time offset; one skipped by a forward
// shift is read with the standard offset, so 02:30 on a spring-forward night
// in New York becomes 03:30 EDT.
func Normalize(rawDate, rawTime, tzName string, dob *time.Time) (Normalized, error) {
	day, err := time.Parse(DateLayout, rawDate)
	if err != nil {
		return Normalized{}, ErrInvalidDate
	}
	clock, err := time.Parse(TimeLayout, rawTime)
	if err != nil || len(rawTime) != len(TimeLayout) {
		return Normalized{}, ErrInvalidTime
	}
	loc, err := LoadTimezone(tzName)
	if err != nil {
		return Normalized{}, err
	}

	observed := localize(time.Date(day.Year(), day.Month(), day.Day(), clock.Hour(), clock.Minute(), 0, 0, time.UTC), loc)

	var age *int
	if dob != nil {
		a := AgeInYears(day, *dob)
		age = &a
	}
	return Normalized{ObservedAt: observed, AgeYears: age}, nil
}

type zoneOffset struct {
	seconds int
	dst     bool
}

// localize interprets the wall clock in wall (carried as UTC) in loc,
// preferring the standard-time offset when the wall clock is ambiguous or
// does not exist.
func localize(wall time.Time, loc *time.Location) time.Time {
	var zones []zoneOffset
	for _, near := range []time.Time{wall.Add(-24 * time.Hour), wall, wall.Add(24 * time.Hour)} {
		t := near.In(loc)
		_, off := t.Zone()
		z := zoneOffset{seconds: off, dst: t.IsDST()}
		if !slices.Contains(zones, z) {
			zones = append(zones, z)
		}
	}

	var fits []zoneOffset
	for _, z := range zones {
		if _, off := wall.Add(-time.Duration(z.seconds) * time.Second).In(loc).Zone(); off == z.seconds {
			fits = append(fits, z)
		}
	}
	if len(fits) == 0 {
		// Skipped by a forward shift.
		fits = zones
	}

	pick := fits[0]
	for _, z := range fits {
		if !z.dst {
			pick = z
			break
		}
	}
	return wall.Add(-time.Duration(pick.seconds) * time.Second).In(loc)
}

// LoadTimezone resolves an IANA zone name. The empty name and "Local" are
// rejected since they do not identify a zone.
func LoadTimezone(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" || name == "Local" {
		return nil, ErrInvalidTimezone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, ErrInvalidTimezone
	}
	return loc, nil
}

// AgeInYears returns floor(days between the two calendar dates / 365).
// Only the year, month and day of each argument are used.
func AgeInYears(observed, dob time.Time) int {
	days := civilDays(observed) - civilDays(dob)
	age := days / 365
	if days%365 != 0 && days < 0 {
		age--
	}
	return age
}

func civilDays(t time.Time) int {
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return int(d.Unix() / 86400)
}
