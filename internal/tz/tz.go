// Package tz converts local wall-clock times into absolute instants using
// IANA timezone rules.
package tz

import (
	"fmt"
	"sync"
	"time"
	_ "time/tzdata" // IANA database for hosts without one

	"eventcal/internal/diag"
	"eventcal/internal/model"
)

var (
	mu    sync.Mutex
	cache = map[string]*time.Location{}
)

// Load returns the location for an IANA identifier. The process-local zone
// is rejected so output never depends on the machine running the build.
func Load(name string) (*time.Location, error) {
	if name == "" || name == "Local" {
		return nil, diag.New(diag.InvalidTimezone, "timezone", "%q is not an IANA timezone identifier", name)
	}
	mu.Lock()
	defer mu.Unlock()
	if loc, ok := cache[name]; ok {
		return loc, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		x := diag.Wrap(diag.InvalidTimezone, "timezone", err)
		x.Message = fmt.Sprintf("unknown timezone %q", name)
		x.Err = nil
		return nil, x
	}
	cache[name] = loc
	return loc, nil
}

func offsetAt(t time.Time, loc *time.Location) time.Duration {
	_, off := t.In(loc).Zone()
	return time.Duration(off) * time.Second
}

// Localize returns the absolute instant of the wall time (date, clock) in loc.
//
// When the wall time occurs twice (the clocks fall back) the later instant
// is used. When it does not occur at all (the clocks spring forward) it is
// read with the offset from before the gap, which lands just past the
// transition: 02:30 on a spring-forward night becomes 03:30 daylight time.
// Either way the result carries the offset in effect after the transition.
func Localize(date model.Date, clock model.Clock, loc *time.Location) time.Time {
	wall := date.Midnight().Add(time.Duration(clock) * time.Minute)

	// Transitions are at least a few weeks apart in every zone, so the
	// offsets a day either side are the two that can apply.
	offBefore := offsetAt(wall.Add(-24*time.Hour), loc)
	offAfter := offsetAt(wall.Add(24*time.Hour), loc)

	later := wall.Add(-offAfter)
	if offsetAt(later, loc) == offAfter {
		return later.In(loc)
	}
	earlier := wall.Add(-offBefore)
	// In a gap neither candidate reads back as the requested wall time and
	// earlier is the instant past the transition.
	return earlier.In(loc)
}

// Normalize converts an occurrence's local start into absolute start and end
// instants. The duration is elapsed time, so the wall-clock end may shift
// across a daylight-saving change but end-start always equals duration.
func Normalize(date model.Date, clock model.Clock, duration time.Duration, zone string) (start, end time.Time, err error) {
	loc, err := Load(zone)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	start = Localize(date, clock, loc)
	return start, start.Add(duration), nil
}
