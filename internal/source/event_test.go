package source

import (
	"strings"
	"testing"
	"time"

	"eventcal/internal/diag"
	"eventcal/internal/model"
)

const fullEvent = `
name = "Language Exchange"
timezone = "America/New_York"
start = "17:00"
duration = "1:30"
start_date = 2024-01-01
end_date = "2024-06-30"
platforms = ["pc", "quest", "pc"]
hashtag = "lang ex"
world = { name = "Cafe", id = "wrld_1" }
join = [{ name = "Host", id = "usr_1" }]
confirmed = ["2024-02-01", 2024-01-15]
canceled = true

[days.monday]
start = 18:30:00

[days.friday]
weeks = [3, 1]

[languages.de]
name = "Sprachaustausch"

[languages.de.days.monday]
description = "Montags"
`

func TestParseEventFull(t *testing.T) {
	doc, diags := ParseEvent("lang-ex", "lang-ex.toml", []byte(fullEvent))
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	if doc.Base.Name.Value != "Language Exchange" || doc.Base.Timezone.Value != "America/New_York" {
		t.Fatalf("base strings: %+v", doc.Base)
	}
	if doc.Base.Start.Value != model.Clock(17*60) || doc.Base.Duration.Value != 90*time.Minute {
		t.Fatalf("times: start=%v duration=%v", doc.Base.Start.Value, doc.Base.Duration.Value)
	}
	if got := doc.Base.Platforms.Value; len(got) != 2 || got[0] != model.PlatformPC || got[1] != model.PlatformQuest {
		t.Fatalf("platforms: %v", got)
	}
	if doc.Base.World.Value.ID != "wrld_1" || len(doc.Base.Join.Value) != 1 {
		t.Fatalf("world/join: %+v %+v", doc.Base.World, doc.Base.Join)
	}
	if doc.StartDate.Value != (model.Date{Year: 2024, Month: 1, Day: 1}) || doc.EndDate.Value.String() != "2024-06-30" {
		t.Fatalf("bounds: %v %v", doc.StartDate, doc.EndDate)
	}
	if len(doc.Confirmed.Dates) != 2 || doc.Confirmed.Dates[0].String() != "2024-01-15" {
		t.Fatalf("confirmed not sorted: %v", doc.Confirmed.Dates)
	}
	if !doc.Canceled.All {
		t.Fatalf("canceled = true not decoded")
	}
	if mon := doc.Days[time.Monday]; mon.Start.Value != model.Clock(18*60+30) {
		t.Fatalf("monday start: %v", mon.Start)
	}
	if fri := doc.Days[time.Friday]; len(fri.Weeks.Value) != 2 || fri.Weeks.Value[0] != 1 {
		t.Fatalf("friday weeks: %v", fri.Weeks)
	}
	if days := doc.DaySet(); len(days) != 2 || days[0] != time.Monday || days[1] != time.Friday {
		t.Fatalf("day set: %v", days)
	}
	if doc.Languages["de"].Name.Value != "Sprachaustausch" {
		t.Fatalf("language layer: %+v", doc.Languages["de"])
	}
	dl := doc.DayLanguages[model.DayLanguage{Weekday: time.Monday, Language: "de"}]
	if dl.Description.Value != "Montags" {
		t.Fatalf("weekday+language layer: %+v", dl)
	}
}

func TestParseEventCollectsAllFieldErrors(t *testing.T) {
	src := `
timezone = 5
start = "25:00"
duration = "0:00"
colour = "red"
platforms = ["switch"]
start_date = "2023-02-30"

[days.funday]
start = "10:00"

[languages.EN]
name = "x"

[languages.de.days.tuesday]
start = "1:5"
`
	_, diags := ParseEvent("bad", "bad.toml", []byte(src))
	want := map[string]diag.Kind{
		"timezone":                        diag.ParseError,
		"start":                           diag.InvalidDateOrTime,
		"duration":                        diag.InvalidDateOrTime,
		"colour":                          diag.ParseError,
		"platforms[0]":                    diag.ParseError,
		"start_date":                      diag.InvalidDateOrTime,
		"days.funday":                     diag.ParseError,
		"languages.EN":                    diag.ParseError,
		"languages.de.days.tuesday.start": diag.InvalidDateOrTime,
	}
	got := map[string]diag.Kind{}
	for _, d := range diags {
		if d.Source != "bad.toml" {
			t.Fatalf("diagnostic without source: %v", d)
		}
		got[d.Field] = d.Kind
	}
	for field, kind := range want {
		if got[field] != kind {
			t.Fatalf("field %s: got %v want %v (all: %v)", field, got[field], kind, diags)
		}
	}
}

func TestParseEventAttributesContext(t *testing.T) {
	src := `
[languages.de.days.monday]
start = "99:00"
`
	_, diags := ParseEvent("ctx", "ctx.toml", []byte(src))
	if len(diags) != 1 {
		t.Fatalf("want one diagnostic, got %v", diags)
	}
	d := diags[0]
	if d.Weekday != "monday" || d.Language != "de" || d.Field != "languages.de.days.monday.start" {
		t.Fatalf("context not attached: %+v", d)
	}
}

func TestParseEventSyntaxError(t *testing.T) {
	doc, diags := ParseEvent("x", "x.toml", []byte("start = \n"))
	if doc != nil {
		t.Fatalf("no document expected for invalid TOML")
	}
	if len(diags) != 1 || diags[0].Kind != diag.ParseError || !strings.Contains(diags[0].Error(), "x.toml") {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
}

func TestParseEventEndBeforeStart(t *testing.T) {
	_, diags := ParseEvent("x", "x.toml", []byte(`start_date = 2024-02-01
end_date = 2024-01-01`))
	if len(diags) != 1 || diags[0].Field != "end_date" || diags[0].Kind != diag.InvalidDateOrTime {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
}

func TestParseEventMinutesForms(t *testing.T) {
	doc, diags := ParseEvent("x", "x.toml", []byte(`start = 600
duration = "45"`))
	if len(diags) != 0 {
		t.Fatalf("diagnostics: %v", diags)
	}
	if doc.Base.Start.Value != 600 || doc.Base.Duration.Value != 45*time.Minute {
		t.Fatalf("got start=%v duration=%v", doc.Base.Start.Value, doc.Base.Duration.Value)
	}
}

func TestParseEventWeeksInLanguageWarns(t *testing.T) {
	_, diags := ParseEvent("x", "x.toml", []byte(`[languages.de]
weeks = [1]`))
	if len(diags) != 1 || diags[0].Severity != diag.SeverityWarning || diags[0].Kind != diag.UnusedOverride {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
}
