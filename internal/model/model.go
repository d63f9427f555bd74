package model

import "time"

// Status is the confirmation state of a single occurrence.
type Status string

const (
	StatusConfirmed   Status = "confirmed"
	StatusUnconfirmed Status = "unconfirmed"
)

// Occurrence represents a single concrete instance of an event
// (after recurrence expansion and timezone normalization).
type Occurrence struct {
	EventID string // source file stem
	UID     string // stable per (event, date)

	Date   Date
	Status Status

	// Start / End are absolute instants of the default-language resolution,
	// expressed in the event's own timezone.
	Start time.Time
	End   time.Time

	// Languages holds one projection per supported language, in the
	// calendar's language order.
	Languages []Projection
}

// Projection is one language's view of an occurrence.
type Projection struct {
	Language Language
	Fields   ResolvedFields
	Start    time.Time
	End      time.Time
}

// Projection returns the projection for lang, if present.
func (o *Occurrence) Projection(lang Language) (Projection, bool) {
	for _, p := range o.Languages {
		if p.Language == lang {
			return p, true
		}
	}
	return Projection{}, false
}

// Window is an inclusive range of civil dates to generate occurrences for.
type Window struct {
	Start Date
	End   Date
}

func (w Window) Contains(d Date) bool {
	return !d.Before(w.Start) && !d.After(w.End)
}

// CompiledCalendar is the aggregate output of one compile.
type CompiledCalendar struct {
	Meta   CalendarMeta
	Window Window

	// Languages lists the supported languages, default language first.
	Languages []Language

	// Occurrences are ordered by start instant, then event ID, then date.
	Occurrences []Occurrence
}
