package publish

import (
	"fmt"
	"strings"

	ical "github.com/arran4/golang-ical"

	"eventcal/internal/model"
)

// CalendarFile is the per-language iCalendar feed name.
func CalendarFile(lang model.Language) string {
	return fmt.Sprintf("calendar.%s.ics", lang)
}

// encodeICS renders one language's occurrences as an iCalendar feed. DTSTAMP
// is pinned to the window start so the feed only changes with its content.
func encodeICS(cal *model.CompiledCalendar, lang model.Language) []byte {
	c := ical.NewCalendarFor("eventcal")
	c.SetMethod(ical.MethodPublish)
	title, description, link := MetaText(cal.Meta, lang)
	c.SetName(title)
	c.SetXWRCalName(title)
	if description != "" {
		c.SetDescription(description)
	}
	if link != "" {
		c.SetUrl(link)
	}

	stamp := cal.Window.Start.Midnight()
	for _, occ := range cal.Occurrences {
		p, ok := occ.Projection(lang)
		if !ok {
			continue
		}
		f := p.Fields
		ev := c.AddEvent(occ.UID)
		ev.SetDtStampTime(stamp)
		ev.SetStartAt(p.Start)
		ev.SetEndAt(p.End)
		ev.SetSummary(f.Name)
		if desc := icsDescription(f); desc != "" {
			ev.SetDescription(desc)
		}
		if f.World != nil {
			ev.SetLocation(f.World.Name)
		}
		if f.Web != "" {
			ev.SetURL(f.Web)
		}
		if occ.Status == model.StatusConfirmed {
			ev.SetStatus(ical.ObjectStatusConfirmed)
		} else {
			ev.SetStatus(ical.ObjectStatusTentative)
		}
	}
	return []byte(c.Serialize())
}

func icsDescription(f model.ResolvedFields) string {
	var lines []string
	if f.Description != "" {
		lines = append(lines, f.Description)
	}
	if f.Group != "" {
		lines = append(lines, "Group: "+f.Group)
	}
	if len(f.Platforms) > 0 {
		ps := make([]string, len(f.Platforms))
		for i, p := range f.Platforms {
			ps[i] = string(p)
		}
		lines = append(lines, "Platforms: "+strings.Join(ps, ", "))
	}
	if len(f.Join) > 0 {
		names := make([]string, len(f.Join))
		for i, u := range f.Join {
			names[i] = u.Name
		}
		lines = append(lines, "Join: "+strings.Join(names, ", "))
	}
	if f.Hashtag != nil {
		lines = append(lines, "#"+f.Hashtag.Display)
	}
	return strings.Join(lines, "\n")
}
