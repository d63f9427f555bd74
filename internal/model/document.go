package model

import (
	"sort"
	"time"
)

// Opt is an optionally-set field value. A field is "set" at a layer only if
// the author wrote it there.
type Opt[T any] struct {
	Value T
	Set   bool
}

func Some[T any](v T) Opt[T] { return Opt[T]{Value: v, Set: true} }

type Platform string

const (
	PlatformPC    Platform = "pc"
	PlatformQuest Platform = "quest"
)

// User is an entry of an event's join list.
type User struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

// World references the place an event is hosted.
type World struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

// Layer holds the partial field overrides of one scope (base, weekday,
// language, or weekday+language). Collection fields are replaced wholesale
// by the most specific layer that sets them.
type Layer struct {
	Name        Opt[string]
	Description Opt[string]
	Web         Opt[string]
	Poster      Opt[string]
	Hashtag     Opt[string]
	Twitter     Opt[string]
	Discord     Opt[string]
	Group       Opt[string]
	Platforms   Opt[[]Platform]
	Join        Opt[[]User]
	World       Opt[World]
	Weeks       Opt[[]int]
	Timezone    Opt[string]
	Start       Opt[Clock]
	Duration    Opt[time.Duration]
}

// DayLanguage keys a combined weekday+language override layer.
type DayLanguage struct {
	Weekday  time.Weekday
	Language Language
}

// DateSet is an explicit exception list, or a blanket "all"/"none".
type DateSet struct {
	All   bool
	Dates []Date
}

func (s DateSet) Contains(d Date) bool {
	if s.All {
		return true
	}
	for _, x := range s.Dates {
		if x == d {
			return true
		}
	}
	return false
}

func (s DateSet) IsEmpty() bool { return !s.All && len(s.Dates) == 0 }

// EventDocument is one event's raw, unresolved data.
type EventDocument struct {
	ID     string // file stem; default display name
	Source string // path relative to the input directory

	Base         Layer
	Days         map[time.Weekday]Layer
	Languages    map[Language]Layer
	DayLanguages map[DayLanguage]Layer

	StartDate Opt[Date]
	EndDate   Opt[Date]

	Confirmed DateSet
	Canceled  DateSet
}

// DaySet returns the weekdays the event is declared on, Monday first. An
// empty result means the event runs daily.
func (d *EventDocument) DaySet() []time.Weekday {
	out := make([]time.Weekday, 0, len(d.Days))
	for _, wd := range Weekdays {
		if _, ok := d.Days[wd]; ok {
			out = append(out, wd)
		}
	}
	return out
}

// LanguageKeys returns every language the document overrides, sorted.
func (d *EventDocument) LanguageKeys() []Language {
	seen := map[Language]bool{}
	for l := range d.Languages {
		seen[l] = true
	}
	for k := range d.DayLanguages {
		seen[k.Language] = true
	}
	out := make([]Language, 0, len(seen))
	for l := range seen {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// MetaText is the translatable part of the calendar metadata.
type MetaText struct {
	Title       Opt[string]
	Description Opt[string]
	Link        Opt[string]
}

// CalendarMeta is the calendar-wide metadata document.
type CalendarMeta struct {
	Title       string
	Description string
	Link        string
	Languages   map[Language]MetaText
}

// Hashtag is a resolved hashtag with its URL-safe form.
type Hashtag struct {
	Display string `json:"display"`
	Escaped string `json:"escaped"`
}

// ResolvedFields is the fully merged, language- and weekday-specific view of
// an event. Timezone, Start and Duration are always set.
type ResolvedFields struct {
	Name        string
	Description string
	Web         string
	Poster      string // source path of the poster, relative to the input directory
	Hashtag     *Hashtag
	Twitter     string
	Discord     string
	Group       string
	Platforms   []Platform
	Join        []User
	World       *World
	Weeks       []int
	Timezone    string
	Start       Clock
	Duration    time.Duration
}
