// Package resolve merges an event's override layers into the field values
// that apply to one weekday and language.
package resolve

import (
	"time"

	"eventcal/internal/diag"
	"eventcal/internal/model"
)

// Defaults are the values supplied from outside the document: the file stem
// and the discovered poster file.
type Defaults struct {
	Name   string
	Poster string
}

// DefaultPlatforms applies when no layer sets platforms.
var DefaultPlatforms = []model.Platform{model.PlatformPC}

// layers returns the layers that apply to (wd, lang), most specific first:
// weekday+language, language, weekday, base.
func layers(doc *model.EventDocument, wd time.Weekday, lang model.Language) []model.Layer {
	out := make([]model.Layer, 0, 4)
	if l, ok := doc.DayLanguages[model.DayLanguage{Weekday: wd, Language: lang}]; ok {
		out = append(out, l)
	}
	if l, ok := doc.Languages[lang]; ok {
		out = append(out, l)
	}
	if l, ok := doc.Days[wd]; ok {
		out = append(out, l)
	}
	return append(out, doc.Base)
}

// pick returns the first set value of one field across ls.
func pick[T any](ls []model.Layer, get func(*model.Layer) model.Opt[T]) model.Opt[T] {
	for i := range ls {
		if v := get(&ls[i]); v.Set {
			return v
		}
	}
	return model.Opt[T]{}
}

func or[T any](o model.Opt[T], def T) T {
	if o.Set {
		return o.Value
	}
	return def
}

// Resolve merges doc for weekday wd and language lang. Each field takes the
// value of the most specific layer that sets it; collections are replaced
// wholesale, never combined. Missing timezone, start or duration is a
// MissingRequiredField diagnostic carrying the weekday/language context.
func Resolve(doc *model.EventDocument, wd time.Weekday, lang model.Language, def Defaults) (model.ResolvedFields, error) {
	ls := layers(doc, wd, lang)

	f := model.ResolvedFields{
		Name:        or(pick(ls, func(l *model.Layer) model.Opt[string] { return l.Name }), def.Name),
		Description: pick(ls, func(l *model.Layer) model.Opt[string] { return l.Description }).Value,
		Web:         pick(ls, func(l *model.Layer) model.Opt[string] { return l.Web }).Value,
		Poster:      or(pick(ls, func(l *model.Layer) model.Opt[string] { return l.Poster }), def.Poster),
		Twitter:     pick(ls, func(l *model.Layer) model.Opt[string] { return l.Twitter }).Value,
		Discord:     pick(ls, func(l *model.Layer) model.Opt[string] { return l.Discord }).Value,
		Group:       pick(ls, func(l *model.Layer) model.Opt[string] { return l.Group }).Value,
		Platforms:   or(pick(ls, func(l *model.Layer) model.Opt[[]model.Platform] { return l.Platforms }), DefaultPlatforms),
		Join:        pick(ls, func(l *model.Layer) model.Opt[[]model.User] { return l.Join }).Value,
		Weeks:       weeks(doc, wd).Value,
	}
	if h := pick(ls, func(l *model.Layer) model.Opt[string] { return l.Hashtag }); h.Set {
		f.Hashtag = NewHashtag(h.Value)
	}
	if w := pick(ls, func(l *model.Layer) model.Opt[model.World] { return l.World }); w.Set {
		world := w.Value
		f.World = &world
	}

	tz := pick(ls, func(l *model.Layer) model.Opt[string] { return l.Timezone })
	start := pick(ls, func(l *model.Layer) model.Opt[model.Clock] { return l.Start })
	dur := pick(ls, func(l *model.Layer) model.Opt[time.Duration] { return l.Duration })
	for _, req := range []struct {
		name string
		set  bool
	}{{"timezone", tz.Set}, {"start", start.Set}, {"duration", dur.Set}} {
		if !req.set {
			x := diag.New(diag.MissingRequiredField, req.name, "required field is not set by any layer")
			x.Source = doc.Source
			x.Weekday = model.WeekdayName(wd)
			x.Language = string(lang)
			return model.ResolvedFields{}, x
		}
	}
	f.Timezone = tz.Value
	f.Start = start.Value
	f.Duration = dur.Value
	return f, nil
}

// weeks resolves the week-of-month filter. It is part of the recurrence
// pattern and so only honors the weekday and base layers.
func weeks(doc *model.EventDocument, wd time.Weekday) model.Opt[[]int] {
	if l, ok := doc.Days[wd]; ok && l.Weeks.Set {
		return l.Weeks
	}
	return doc.Base.Weeks
}
