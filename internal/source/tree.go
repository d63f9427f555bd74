package source

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"eventcal/internal/diag"
	"eventcal/internal/model"
)

// decoder walks the string-keyed tree produced by the TOML decoder and
// collects every problem it finds instead of stopping at the first one.
type decoder struct {
	source string
	diags  diag.List
}

// scope is the weekday/language context of the layer being decoded.
type scope struct {
	weekday  string
	language string
}

func (d *decoder) report(kind diag.Kind, sc scope, path, format string, args ...any) {
	x := diag.New(kind, path, format, args...)
	x.Source = d.source
	x.Weekday = sc.weekday
	x.Language = sc.language
	d.diags.Add(x)
}

func (d *decoder) warn(kind diag.Kind, sc scope, path, format string, args ...any) {
	x := diag.Warn(kind, path, format, args...)
	x.Source = d.source
	x.Weekday = sc.weekday
	x.Language = sc.language
	d.diags.Add(x)
}

func join(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func typeName(v any) string {
	switch v.(type) {
	case string:
		return "string"
	case int64:
		return "integer"
	case float64:
		return "float"
	case bool:
		return "boolean"
	case time.Time:
		return "datetime"
	case []any, []map[string]any:
		return "array"
	case map[string]any:
		return "table"
	default:
		return fmt.Sprintf("%T", v)
	}
}

func (d *decoder) table(sc scope, path string, v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		d.report(diag.ParseError, sc, path, "expected a table, found %s", typeName(v))
	}
	return m, ok
}

func (d *decoder) str(sc scope, path string, v any) (string, bool) {
	s, ok := v.(string)
	if !ok {
		d.report(diag.ParseError, sc, path, "expected a string, found %s", typeName(v))
	}
	return s, ok
}

func (d *decoder) array(sc scope, path string, v any) ([]any, bool) {
	switch a := v.(type) {
	case []any:
		return a, true
	case []map[string]any:
		out := make([]any, len(a))
		for i := range a {
			out[i] = a[i]
		}
		return out, true
	default:
		d.report(diag.ParseError, sc, path, "expected an array, found %s", typeName(v))
		return nil, false
	}
}

// minutes accepts "H:MM", a plain minute count (string or integer), or a
// TOML local time without seconds.
func (d *decoder) minutes(sc scope, path string, v any) (int, bool) {
	switch x := v.(type) {
	case int64:
		if x < 0 {
			d.report(diag.InvalidDateOrTime, sc, path, "must not be negative")
			return 0, false
		}
		return int(x), true
	case string:
		s := strings.TrimSpace(x)
		if h, m, ok := strings.Cut(s, ":"); ok {
			hours, err1 := strconv.Atoi(h)
			mins, err2 := strconv.Atoi(m)
			if err1 != nil || err2 != nil || hours < 0 || mins < 0 || mins > 59 || len(m) != 2 {
				d.report(diag.InvalidDateOrTime, sc, path, "invalid time %q: want H:MM", x)
				return 0, false
			}
			return hours*60 + mins, true
		}
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			d.report(diag.InvalidDateOrTime, sc, path, "invalid time %q: want H:MM or minutes", x)
			return 0, false
		}
		return n, true
	case time.Time:
		if x.Year() != 0 || x.Month() != time.January || x.Day() != 1 {
			d.report(diag.InvalidDateOrTime, sc, path, "time must not have a date")
			return 0, false
		}
		if x.Second() != 0 || x.Nanosecond() != 0 {
			d.report(diag.InvalidDateOrTime, sc, path, "time must contain whole minutes")
			return 0, false
		}
		return x.Hour()*60 + x.Minute(), true
	default:
		d.report(diag.ParseError, sc, path, "expected a time, found %s", typeName(v))
		return 0, false
	}
}

func (d *decoder) clock(sc scope, path string, v any) (model.Clock, bool) {
	n, ok := d.minutes(sc, path, v)
	if !ok {
		return 0, false
	}
	c := model.Clock(n)
	if !c.Valid() {
		d.report(diag.InvalidDateOrTime, sc, path, "start time must be before 24:00")
		return 0, false
	}
	return c, true
}

func (d *decoder) duration(sc scope, path string, v any) (time.Duration, bool) {
	n, ok := d.minutes(sc, path, v)
	if !ok {
		return 0, false
	}
	if n == 0 {
		d.report(diag.InvalidDateOrTime, sc, path, "duration must be positive")
		return 0, false
	}
	return time.Duration(n) * time.Minute, true
}

func (d *decoder) date(sc scope, path string, v any) (model.Date, bool) {
	switch x := v.(type) {
	case string:
		dt, err := model.ParseDate(x)
		if err != nil {
			d.report(diag.InvalidDateOrTime, sc, path, "%v", err)
			return model.Date{}, false
		}
		return dt, true
	case time.Time:
		if x.Hour() != 0 || x.Minute() != 0 || x.Second() != 0 || x.Nanosecond() != 0 {
			d.report(diag.InvalidDateOrTime, sc, path, "date must not have a time")
			return model.Date{}, false
		}
		return model.DateOf(x), true
	default:
		d.report(diag.ParseError, sc, path, "expected a date, found %s", typeName(v))
		return model.Date{}, false
	}
}

// dateSet accepts true/false or a list of dates.
func (d *decoder) dateSet(sc scope, path string, v any) model.DateSet {
	if b, ok := v.(bool); ok {
		return model.DateSet{All: b}
	}
	items, ok := d.array(sc, path, v)
	if !ok {
		return model.DateSet{}
	}
	var set model.DateSet
	seen := map[model.Date]bool{}
	for i, item := range items {
		dt, ok := d.date(sc, fmt.Sprintf("%s[%d]", path, i), item)
		if !ok || seen[dt] {
			continue
		}
		seen[dt] = true
		set.Dates = append(set.Dates, dt)
	}
	sort.Slice(set.Dates, func(i, j int) bool { return set.Dates[i].Before(set.Dates[j]) })
	return set
}

func (d *decoder) idPair(sc scope, path string, v any) (name, id string, ok bool) {
	m, ok := d.table(sc, path, v)
	if !ok {
		return "", "", false
	}
	ok = true
	for _, k := range sortedKeys(m) {
		switch k {
		case "name", "id":
		default:
			d.report(diag.ParseError, sc, join(path, k), "unknown field")
			ok = false
		}
	}
	for _, k := range []string{"name", "id"} {
		raw, present := m[k]
		if !present {
			d.report(diag.ParseError, sc, join(path, k), "required field is missing")
			ok = false
			continue
		}
		s, isStr := d.str(sc, join(path, k), raw)
		if !isStr {
			ok = false
			continue
		}
		if k == "name" {
			name = s
		} else {
			id = s
		}
	}
	return name, id, ok
}

// field decodes one layer field into l. It reports false for keys that are
// not layer fields so the caller can handle structural keys.
func (d *decoder) field(sc scope, l *model.Layer, path, key string, v any) bool {
	p := join(path, key)
	setStr := func(dst *model.Opt[string]) {
		if s, ok := d.str(sc, p, v); ok {
			*dst = model.Some(s)
		}
	}
	switch key {
	case "name":
		setStr(&l.Name)
	case "description":
		setStr(&l.Description)
	case "web":
		setStr(&l.Web)
	case "poster":
		setStr(&l.Poster)
	case "hashtag":
		setStr(&l.Hashtag)
	case "twitter":
		setStr(&l.Twitter)
	case "discord":
		setStr(&l.Discord)
	case "group":
		setStr(&l.Group)
	case "timezone":
		setStr(&l.Timezone)
	case "start":
		if c, ok := d.clock(sc, p, v); ok {
			l.Start = model.Some(c)
		}
	case "duration":
		if dur, ok := d.duration(sc, p, v); ok {
			l.Duration = model.Some(dur)
		}
	case "platforms":
		d.platforms(sc, l, p, v)
	case "join":
		d.joinList(sc, l, p, v)
	case "world":
		if name, id, ok := d.idPair(sc, p, v); ok {
			l.World = model.Some(model.World{Name: name, ID: id})
		}
	case "weeks":
		d.weeks(sc, l, p, v)
	default:
		return false
	}
	return true
}

func (d *decoder) platforms(sc scope, l *model.Layer, path string, v any) {
	items, ok := d.array(sc, path, v)
	if !ok {
		return
	}
	out := make([]model.Platform, 0, len(items))
	seen := map[model.Platform]bool{}
	for i, item := range items {
		p := fmt.Sprintf("%s[%d]", path, i)
		s, ok := d.str(sc, p, item)
		if !ok {
			return
		}
		pl := model.Platform(s)
		switch pl {
		case model.PlatformPC, model.PlatformQuest:
		default:
			d.report(diag.ParseError, sc, p, "unknown platform %q (want pc or quest)", s)
			return
		}
		if !seen[pl] {
			seen[pl] = true
			out = append(out, pl)
		}
	}
	l.Platforms = model.Some(out)
}

func (d *decoder) joinList(sc scope, l *model.Layer, path string, v any) {
	items, ok := d.array(sc, path, v)
	if !ok {
		return
	}
	out := make([]model.User, 0, len(items))
	for i, item := range items {
		name, id, ok := d.idPair(sc, fmt.Sprintf("%s[%d]", path, i), item)
		if !ok {
			return
		}
		out = append(out, model.User{Name: name, ID: id})
	}
	l.Join = model.Some(out)
}

func (d *decoder) weeks(sc scope, l *model.Layer, path string, v any) {
	items, ok := d.array(sc, path, v)
	if !ok {
		return
	}
	seen := map[int]bool{}
	out := make([]int, 0, len(items))
	for i, item := range items {
		p := fmt.Sprintf("%s[%d]", path, i)
		n, ok := item.(int64)
		if !ok {
			d.report(diag.ParseError, sc, p, "expected an integer, found %s", typeName(item))
			return
		}
		if n < 1 || n > 5 {
			d.report(diag.InvalidDateOrTime, sc, p, "week of month must be between 1 and 5")
			return
		}
		if !seen[int(n)] {
			seen[int(n)] = true
			out = append(out, int(n))
		}
	}
	sort.Ints(out)
	l.Weeks = model.Some(out)
}
