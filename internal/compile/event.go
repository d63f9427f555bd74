package compile

import (
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/google/uuid"

	"eventcal/internal/diag"
	appLog "eventcal/internal/log"
	"eventcal/internal/model"
	"eventcal/internal/recur"
	"eventcal/internal/resolve"
	"eventcal/internal/source"
	"eventcal/internal/tz"
)

// occurrenceNamespace scopes occurrence UIDs; a UID is the name-based UUID
// of "<event id>/<date>" inside it.
var occurrenceNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("urn:eventcal:occurrence"))

// OccurrenceUID is stable for an event and date across runs.
func OccurrenceUID(eventID string, date model.Date) string {
	return uuid.NewSHA1(occurrenceNamespace, []byte(eventID+"/"+date.String())).String()
}

// shared is the read-only state every event worker sees.
type shared struct {
	in        billy.Filesystem
	window    model.Window
	languages []model.Language
	posters   map[string]string // stem -> discovered poster
	exts      []string
}

type eventResult struct {
	occurrences []model.Occurrence
	diags       diag.List
}

type scopeKey struct {
	weekday  time.Weekday
	language model.Language
}

func compileEvent(sh *shared, f source.File) eventResult {
	var res eventResult
	doc, diags := source.ParseEvent(f.Stem, f.Path, f.Data)
	res.diags.Add(diags...)
	if doc == nil || diags.HasErrors() {
		return res
	}
	res.diags.Add(resolve.Lint(doc)...)
	res.diags.Add(unusedLanguages(doc, sh.languages)...)

	pattern := resolve.Pattern(doc)
	entries, err := recur.Expand(pattern, sh.window)
	if err != nil {
		res.diags.Add(diag.Wrap(diag.InvalidDateOrTime, "", err).In(doc.Source))
		return res
	}

	// Resolve every weekday the event can occur on, not only the ones inside
	// the window, so a broken layer is reported regardless of the date.
	weekdays := doc.DaySet()
	if len(weekdays) == 0 {
		weekdays = model.Weekdays
	}
	// Off-pattern weekdays only matter for confirmed dates that can still be
	// emitted; stale confirmations outside the bounds are lint warnings.
	if lo, hi, ok := pattern.Bounds(sh.window); ok {
		for _, d := range doc.Confirmed.Dates {
			if d.Before(lo) || d.After(hi) || doc.Canceled.Contains(d) {
				continue
			}
			weekdays = appendWeekday(weekdays, d.Weekday())
		}
	}

	defaults := resolve.Defaults{Name: doc.ID, Poster: sh.posters[doc.ID]}
	fields := map[scopeKey]model.ResolvedFields{}
	var problems []*diag.Diagnostic
	for _, wd := range weekdays {
		for _, lang := range sh.languages {
			rf, err := resolve.Resolve(doc, wd, lang, defaults)
			if err == nil {
				err = checkFields(sh, doc, rf)
			}
			if err != nil {
				x := contextual(err, doc.Source, wd, lang)
				problems = append(problems, x)
				continue
			}
			fields[scopeKey{wd, lang}] = rf
		}
	}
	res.diags.Add(collapse(problems, weekdays, sh.languages)...)
	if res.diags.HasErrors() {
		return res
	}

	def := sh.languages[0]
	for _, e := range entries {
		wd := e.Date.Weekday()
		occ := model.Occurrence{
			EventID: doc.ID,
			UID:     OccurrenceUID(doc.ID, e.Date),
			Date:    e.Date,
			Status:  e.Status,
		}
		for _, lang := range sh.languages {
			rf := fields[scopeKey{wd, lang}]
			start, end, err := tz.Normalize(e.Date, rf.Start, rf.Duration, rf.Timezone)
			if err != nil {
				res.diags.Add(contextual(err, doc.Source, wd, lang))
				return res
			}
			occ.Languages = append(occ.Languages, model.Projection{Language: lang, Fields: rf, Start: start, End: end})
			if lang == def {
				occ.Start, occ.End = start, end
			}
		}
		res.occurrences = append(res.occurrences, occ)
	}
	appLog.Debug("event compiled", "event", doc.ID, "occurrences", len(res.occurrences))
	return res
}

func appendWeekday(wds []time.Weekday, wd time.Weekday) []time.Weekday {
	for _, x := range wds {
		if x == wd {
			return wds
		}
	}
	return append(append([]time.Weekday(nil), wds...), wd)
}

// checkFields validates resolved values that depend on more than one
// document: the timezone database and the input directory.
func checkFields(sh *shared, doc *model.EventDocument, rf model.ResolvedFields) error {
	if _, err := tz.Load(rf.Timezone); err != nil {
		return err
	}
	if rf.Poster == "" || rf.Poster == sh.posters[doc.ID] {
		return nil
	}
	name := path.Clean(rf.Poster)
	if path.IsAbs(name) || name == ".." || strings.HasPrefix(name, "../") {
		return diag.New(diag.ParseError, "poster", "poster %q must be inside the input directory", rf.Poster)
	}
	if _, ok := source.IsPosterExtension(strings.ToLower(name), sh.exts); !ok {
		return diag.New(diag.ParseError, "poster", "poster %q does not have a recognized image extension", rf.Poster)
	}
	if _, err := sh.in.Stat(name); err != nil {
		return diag.Wrap(diag.FileSystemError, "poster", fmt.Errorf("poster %q: %w", rf.Poster, err))
	}
	return nil
}

func contextual(err error, src string, wd time.Weekday, lang model.Language) *diag.Diagnostic {
	var x *diag.Diagnostic
	if !errors.As(err, &x) {
		x = diag.Wrap(diag.InvalidDateOrTime, "", err)
	}
	c := *x
	c.Source = src
	if c.Weekday == "" {
		c.Weekday = model.WeekdayName(wd)
	}
	if c.Language == "" {
		c.Language = string(lang)
	}
	return &c
}

// collapse merges identical problems found in several resolution scopes.
// A problem present for every scope is reported once without context, one
// present for every weekday of a language once with only that language, and
// likewise for every language of a weekday.
func collapse(problems []*diag.Diagnostic, weekdays []time.Weekday, languages []model.Language) []*diag.Diagnostic {
	type key struct {
		kind  diag.Kind
		field string
		text  string
	}
	groups := map[key][]*diag.Diagnostic{}
	var order []key
	for _, p := range problems {
		k := key{p.Kind, p.Field, messageOf(p)}
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], p)
	}

	var out []*diag.Diagnostic
	for _, k := range order {
		g := groups[k]
		if len(g) == len(weekdays)*len(languages) {
			x := *g[0]
			x.Weekday, x.Language = "", ""
			out = append(out, &x)
			continue
		}
		byLang := map[string]int{}
		byDay := map[string]int{}
		for _, p := range g {
			byLang[p.Language]++
			byDay[p.Weekday]++
		}
		emitted := map[string]bool{}
		for _, p := range g {
			switch {
			case byLang[p.Language] == len(weekdays):
				if !emitted["l:"+p.Language] {
					emitted["l:"+p.Language] = true
					x := *p
					x.Weekday = ""
					out = append(out, &x)
				}
			case byDay[p.Weekday] == len(languages):
				if !emitted["d:"+p.Weekday] {
					emitted["d:"+p.Weekday] = true
					x := *p
					x.Language = ""
					out = append(out, &x)
				}
			default:
				out = append(out, p)
			}
		}
	}
	return out
}

func messageOf(d *diag.Diagnostic) string {
	if d.Err != nil {
		return d.Message + ": " + d.Err.Error()
	}
	return d.Message
}

// unusedLanguages warns about overrides for languages the calendar does not
// publish.
func unusedLanguages(doc *model.EventDocument, supported []model.Language) []*diag.Diagnostic {
	ok := map[model.Language]bool{}
	for _, l := range supported {
		ok[l] = true
	}
	var out []*diag.Diagnostic
	for _, l := range doc.LanguageKeys() {
		if ok[l] {
			continue
		}
		x := diag.Warn(diag.UnusedOverride, "languages."+string(l),
			"language %s is not declared in the calendar metadata and is ignored", l)
		x.Language = string(l)
		out = append(out, x.In(doc.Source))
	}
	return out
}
