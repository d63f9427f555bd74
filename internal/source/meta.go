package source

import (
	"eventcal/internal/diag"
	"eventcal/internal/model"
)

// ParseMeta decodes the calendar metadata document.
func ParseMeta(source string, data []byte) (*model.CalendarMeta, diag.List) {
	tree, perr := decodeTree(source, data)
	if perr != nil {
		return nil, diag.List{perr}
	}
	d := &decoder{source: source}
	meta := &model.CalendarMeta{Languages: map[model.Language]model.MetaText{}}

	root := scope{}
	var base model.MetaText
	for _, key := range sortedKeys(tree) {
		v := tree[key]
		if d.metaText(root, &base, "", key, v) {
			continue
		}
		if key != "languages" {
			d.report(diag.ParseError, root, key, "unknown field")
			continue
		}
		tbl, ok := d.table(root, key, v)
		if !ok {
			continue
		}
		for _, code := range sortedKeys(tbl) {
			p := join(key, code)
			lang, err := model.ParseLanguage(code)
			if err != nil {
				d.report(diag.ParseError, root, p, "%v", err)
				continue
			}
			sc := scope{language: code}
			body, ok := d.table(sc, p, tbl[code])
			if !ok {
				continue
			}
			var text model.MetaText
			for _, fk := range sortedKeys(body) {
				if !d.metaText(sc, &text, p, fk, body[fk]) {
					d.report(diag.ParseError, sc, join(p, fk), "unknown field")
				}
			}
			meta.Languages[lang] = text
		}
	}

	if !base.Title.Set {
		d.report(diag.MissingRequiredField, root, "title", "required field is not set")
	}
	meta.Title = base.Title.Value
	meta.Description = base.Description.Value
	meta.Link = base.Link.Value
	return meta, d.diags
}

func (d *decoder) metaText(sc scope, t *model.MetaText, path, key string, v any) bool {
	var dst *model.Opt[string]
	switch key {
	case "title":
		dst = &t.Title
	case "description":
		dst = &t.Description
	case "link":
		dst = &t.Link
	default:
		return false
	}
	if s, ok := d.str(sc, join(path, key), v); ok {
		*dst = model.Some(s)
	}
	return true
}
