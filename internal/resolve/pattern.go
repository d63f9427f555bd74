package resolve

import (
	"eventcal/internal/diag"
	"eventcal/internal/model"
	"eventcal/internal/recur"
)

// Pattern builds the language-independent recurrence pattern of doc.
func Pattern(doc *model.EventDocument) recur.Pattern {
	p := recur.Pattern{
		StartDate: doc.StartDate,
		EndDate:   doc.EndDate,
		Confirmed: doc.Confirmed,
		Canceled:  doc.Canceled,
	}
	days := doc.DaySet()
	if len(days) == 0 {
		p.Daily = true
		return p
	}
	for _, wd := range days {
		p.Rules = append(p.Rules, recur.DayRule{Weekday: wd, Weeks: weeks(doc, wd).Value})
	}
	return p
}

// Lint reports layer fields that can never take effect.
func Lint(doc *model.EventDocument) []*diag.Diagnostic {
	var out []*diag.Diagnostic
	if len(doc.Days) == 0 && doc.Base.Weeks.Set {
		out = append(out, diag.Warn(diag.UnusedOverride, "weeks", "weeks has no effect on an event without a days table").In(doc.Source))
	}
	for _, x := range recur.Lint(Pattern(doc)) {
		out = append(out, x.In(doc.Source))
	}
	return out
}
