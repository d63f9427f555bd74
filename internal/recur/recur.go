// Package recur expands an event's recurrence pattern into the civil dates
// it occurs on inside a bounded window.
package recur

import (
	"fmt"
	"sort"
	"time"

	"github.com/teambition/rrule-go"

	"eventcal/internal/diag"
	"eventcal/internal/model"
)

// DayRule is one weekday of an event's day set, optionally limited to
// weeks of the month (1..5, 5 meaning the fifth occurrence of that weekday).
type DayRule struct {
	Weekday time.Weekday
	Weeks   []int
}

// Pattern is the resolved, language-independent recurrence of one event.
type Pattern struct {
	Rules []DayRule
	Daily bool // set when the event declares no weekdays

	StartDate model.Opt[model.Date]
	EndDate   model.Opt[model.Date]

	Confirmed model.DateSet
	Canceled  model.DateSet
}

// Entry is one occurrence date with its confirmation status.
type Entry struct {
	Date   model.Date
	Status model.Status
}

var rruleWeekdays = [...]rrule.Weekday{
	time.Sunday:    rrule.SU,
	time.Monday:    rrule.MO,
	time.Tuesday:   rrule.TU,
	time.Wednesday: rrule.WE,
	time.Thursday:  rrule.TH,
	time.Friday:    rrule.FR,
	time.Saturday:  rrule.SA,
}

// Bounds intersects the event's own date range with w. ok is false when the
// intersection is empty.
func (p Pattern) Bounds(w model.Window) (lo, hi model.Date, ok bool) {
	lo, hi = w.Start, w.End
	if p.StartDate.Set && p.StartDate.Value.After(lo) {
		lo = p.StartDate.Value
	}
	if p.EndDate.Set && p.EndDate.Value.Before(hi) {
		hi = p.EndDate.Value
	}
	return lo, hi, !hi.Before(lo)
}

// rules builds one rrule per day rule, or a single daily rule, starting at lo
// and ending at hi inclusive.
func (p Pattern) rules(lo, hi model.Date) ([]*rrule.RRule, error) {
	base := rrule.ROption{
		Dtstart: lo.Midnight(),
		Until:   hi.Midnight(),
	}
	if p.Daily || len(p.Rules) == 0 {
		opt := base
		opt.Freq = rrule.DAILY
		r, err := rrule.NewRRule(opt)
		if err != nil {
			return nil, fmt.Errorf("recur: daily rule: %w", err)
		}
		return []*rrule.RRule{r}, nil
	}

	out := make([]*rrule.RRule, 0, len(p.Rules))
	for _, dr := range p.Rules {
		opt := base
		wd := rruleWeekdays[dr.Weekday]
		if len(dr.Weeks) == 0 {
			opt.Freq = rrule.WEEKLY
			opt.Byweekday = []rrule.Weekday{wd}
		} else {
			opt.Freq = rrule.MONTHLY
			for _, n := range dr.Weeks {
				opt.Byweekday = append(opt.Byweekday, wd.Nth(n))
			}
		}
		r, err := rrule.NewRRule(opt)
		if err != nil {
			return nil, fmt.Errorf("recur: %s rule: %w", model.WeekdayName(dr.Weekday), err)
		}
		out = append(out, r)
	}
	return out, nil
}

// hits returns the pattern dates in [lo, hi], canceled dates excluded.
func (p Pattern) hits(lo, hi model.Date) (map[model.Date]bool, error) {
	rs, err := p.rules(lo, hi)
	if err != nil {
		return nil, err
	}
	out := map[model.Date]bool{}
	for _, r := range rs {
		var set rrule.Set
		set.RRule(r)
		for _, d := range p.Canceled.Dates {
			set.ExDate(d.Midnight())
		}
		for _, t := range set.Between(lo.Midnight(), hi.Midnight(), true) {
			out[model.DateOf(t)] = true
		}
	}
	return out, nil
}

// Expand returns the occurrence dates of p inside w, sorted and without
// duplicates. Canceled dates never appear. Confirmed dates inside the event's
// bounds appear as confirmed even when they do not match the day pattern.
func Expand(p Pattern, w model.Window) ([]Entry, error) {
	if p.Canceled.All {
		return nil, nil
	}
	lo, hi, ok := p.Bounds(w)
	if !ok {
		return nil, nil
	}
	hit, err := p.hits(lo, hi)
	if err != nil {
		return nil, err
	}

	status := make(map[model.Date]model.Status, len(hit))
	for d := range hit {
		if p.Confirmed.Contains(d) {
			status[d] = model.StatusConfirmed
		} else {
			status[d] = model.StatusUnconfirmed
		}
	}
	for _, d := range p.Confirmed.Dates {
		if d.Before(lo) || d.After(hi) || p.Canceled.Contains(d) {
			continue
		}
		status[d] = model.StatusConfirmed
	}

	out := make([]Entry, 0, len(status))
	for d, s := range status {
		out = append(out, Entry{Date: d, Status: s})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// Matches reports whether d is a day-pattern hit within the event's own
// bounds, ignoring the confirmed and canceled sets.
func (p Pattern) Matches(d model.Date) bool {
	q := p
	q.Canceled = model.DateSet{}
	lo, hi, ok := q.Bounds(model.Window{Start: d, End: d})
	if !ok {
		return false
	}
	hit, err := q.hits(lo, hi)
	return err == nil && hit[d]
}

// Lint reports exception dates that can have no effect: confirmed dates
// outside the event's start/end bounds and canceled dates the event never
// occurs on.
func Lint(p Pattern) []*diag.Diagnostic {
	var out []*diag.Diagnostic
	for _, d := range p.Confirmed.Dates {
		if (p.StartDate.Set && d.Before(p.StartDate.Value)) || (p.EndDate.Set && d.After(p.EndDate.Value)) {
			out = append(out, diag.Warn(diag.OutOfRangeException, "confirmed",
				"the event is confirmed for %s, but that is outside the event's date range", d))
		}
	}
	for _, d := range p.Canceled.Dates {
		if p.Matches(d) || p.Confirmed.Contains(d) && !p.Confirmed.All {
			continue
		}
		out = append(out, diag.Warn(diag.OutOfRangeException, "canceled",
			"the event is canceled for %s, but it does not happen on that day", d))
	}
	return out
}
