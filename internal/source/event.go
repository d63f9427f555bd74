package source

import (
	"errors"
	"fmt"
	"time"

	"github.com/BurntSushi/toml"

	"eventcal/internal/diag"
	"eventcal/internal/model"
)

// decodeTree decodes a TOML document into its string-keyed tree.
func decodeTree(source string, data []byte) (map[string]any, *diag.Diagnostic) {
	tree := map[string]any{}
	if _, err := toml.Decode(string(data), &tree); err != nil {
		x := diag.Wrap(diag.ParseError, "", err)
		var perr toml.ParseError
		if errors.As(err, &perr) {
			x.Err = nil
			x.Message = fmt.Sprintf("line %d: %s", perr.Position.Line, perr.Message)
		}
		return nil, x.In(source)
	}
	return tree, nil
}

// ParseEvent decodes one event document. id is the file stem and source the
// path used in diagnostics. A nil document is returned only when the file
// is not valid TOML; field-level problems are reported as diagnostics next
// to a best-effort document.
func ParseEvent(id, source string, data []byte) (*model.EventDocument, diag.List) {
	tree, perr := decodeTree(source, data)
	if perr != nil {
		return nil, diag.List{perr}
	}

	d := &decoder{source: source}
	doc := &model.EventDocument{
		ID:           id,
		Source:       source,
		Days:         map[time.Weekday]model.Layer{},
		Languages:    map[model.Language]model.Layer{},
		DayLanguages: map[model.DayLanguage]model.Layer{},
	}

	root := scope{}
	for _, key := range sortedKeys(tree) {
		v := tree[key]
		if d.field(root, &doc.Base, "", key, v) {
			continue
		}
		switch key {
		case "start_date":
			if dt, ok := d.date(root, key, v); ok {
				doc.StartDate = model.Some(dt)
			}
		case "end_date":
			if dt, ok := d.date(root, key, v); ok {
				doc.EndDate = model.Some(dt)
			}
		case "confirmed":
			doc.Confirmed = d.dateSet(root, key, v)
		case "canceled":
			doc.Canceled = d.dateSet(root, key, v)
		case "days":
			d.days(root, key, v, func(wd time.Weekday, l model.Layer) {
				doc.Days[wd] = l
			})
		case "languages":
			d.languages(doc, key, v)
		default:
			d.report(diag.ParseError, root, key, "unknown field")
		}
	}

	if doc.StartDate.Set && doc.EndDate.Set && doc.EndDate.Value.Before(doc.StartDate.Value) {
		d.report(diag.InvalidDateOrTime, root, "end_date", "end_date %s is before start_date %s",
			doc.EndDate.Value, doc.StartDate.Value)
	}

	return doc, d.diags
}

// days decodes a table of weekday layers.
func (d *decoder) days(parent scope, path string, v any, put func(time.Weekday, model.Layer)) {
	tbl, ok := d.table(parent, path, v)
	if !ok {
		return
	}
	for _, key := range sortedKeys(tbl) {
		p := join(path, key)
		wd, ok := model.ParseWeekday(key)
		if !ok {
			d.report(diag.ParseError, parent, p, "unknown weekday %q", key)
			continue
		}
		sc := scope{weekday: key, language: parent.language}
		day, ok := d.table(sc, p, tbl[key])
		if !ok {
			continue
		}
		var l model.Layer
		for _, fk := range sortedKeys(day) {
			if !d.field(sc, &l, p, fk, day[fk]) {
				d.report(diag.ParseError, sc, join(p, fk), "unknown field")
			}
		}
		if sc.language != "" && l.Weeks.Set {
			d.warn(diag.UnusedOverride, sc, join(p, "weeks"), "weeks only applies from the base and weekday layers")
		}
		put(wd, l)
	}
}

func (d *decoder) languages(doc *model.EventDocument, path string, v any) {
	tbl, ok := d.table(scope{}, path, v)
	if !ok {
		return
	}
	for _, key := range sortedKeys(tbl) {
		p := join(path, key)
		lang, err := model.ParseLanguage(key)
		if err != nil {
			d.report(diag.ParseError, scope{}, p, "%v", err)
			continue
		}
		sc := scope{language: key}
		body, ok := d.table(sc, p, tbl[key])
		if !ok {
			continue
		}
		var l model.Layer
		for _, fk := range sortedKeys(body) {
			fv := body[fk]
			if d.field(sc, &l, p, fk, fv) {
				continue
			}
			if fk == "days" {
				d.days(sc, join(p, fk), fv, func(wd time.Weekday, dl model.Layer) {
					doc.DayLanguages[model.DayLanguage{Weekday: wd, Language: lang}] = dl
				})
				continue
			}
			d.report(diag.ParseError, sc, join(p, fk), "unknown field")
		}
		if l.Weeks.Set {
			d.warn(diag.UnusedOverride, sc, join(p, "weeks"), "weeks only applies from the base and weekday layers")
		}
		doc.Languages[lang] = l
	}
}
