package publish

import (
	"encoding/json"
	"time"

	"eventcal/internal/model"
)

const (
	DataFile = "data.json"

	// DataVersion is bumped whenever the shape of DataFile changes.
	DataVersion = 1
)

type dataDocument struct {
	Version     int              `json:"version"`
	Window      dataWindow       `json:"window"`
	Meta        dataMeta         `json:"meta"`
	Languages   []model.Language `json:"languages"`
	Occurrences []dataOccurrence `json:"occurrences"`
}

type dataWindow struct {
	Start model.Date `json:"start"`
	End   model.Date `json:"end"`
}

type dataMetaText struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Link        string `json:"link,omitempty"`
}

type dataMeta struct {
	dataMetaText
	Languages map[model.Language]dataMetaText `json:"languages,omitempty"`
}

type dataFields struct {
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Web         string           `json:"web,omitempty"`
	Poster      string           `json:"poster,omitempty"`
	Hashtag     *model.Hashtag   `json:"hashtag,omitempty"`
	Twitter     string           `json:"twitter,omitempty"`
	Discord     string           `json:"discord,omitempty"`
	Group       string           `json:"group,omitempty"`
	Platforms   []model.Platform `json:"platforms"`
	World       *model.World     `json:"world,omitempty"`
	Join        []model.User     `json:"join,omitempty"`
	Timezone    string           `json:"timezone"`
	Start       string           `json:"start"`
	End         string           `json:"end"`
	Duration    int              `json:"duration"` // minutes
}

type dataOccurrence struct {
	UID    string       `json:"uid"`
	Event  string       `json:"event"`
	Date   model.Date   `json:"date"`
	Status model.Status `json:"status"`
	dataFields

	// Lang holds the other supported languages; the default language is
	// inlined above.
	Lang map[model.Language]dataFields `json:"lang,omitempty"`
}

// MetaText returns the calendar metadata as seen in lang.
func MetaText(meta model.CalendarMeta, lang model.Language) (title, description, link string) {
	title, description, link = meta.Title, meta.Description, meta.Link
	if t, ok := meta.Languages[lang]; ok {
		if t.Title.Set {
			title = t.Title.Value
		}
		if t.Description.Set {
			description = t.Description.Value
		}
		if t.Link.Set {
			link = t.Link.Value
		}
	}
	return title, description, link
}

func fieldsOf(p model.Projection, posterName string) dataFields {
	f := p.Fields
	return dataFields{
		Name:        f.Name,
		Description: f.Description,
		Web:         f.Web,
		Poster:      posterName,
		Hashtag:     f.Hashtag,
		Twitter:     f.Twitter,
		Discord:     f.Discord,
		Group:       f.Group,
		Platforms:   f.Platforms,
		World:       f.World,
		Join:        f.Join,
		Timezone:    f.Timezone,
		Start:       p.Start.Format(time.RFC3339),
		End:         p.End.Format(time.RFC3339),
		Duration:    int(f.Duration / time.Minute),
	}
}

// encodeData renders the viewer document. published maps a poster source
// path to its path inside the output directory. The encoding depends only on
// its inputs so repeated runs are byte-identical.
func encodeData(cal *model.CompiledCalendar, published map[string]string) ([]byte, error) {
	doc := dataDocument{
		Version:     DataVersion,
		Window:      dataWindow{Start: cal.Window.Start, End: cal.Window.End},
		Languages:   cal.Languages,
		Occurrences: make([]dataOccurrence, 0, len(cal.Occurrences)),
	}
	def := cal.Languages[0]
	doc.Meta.Title, doc.Meta.Description, doc.Meta.Link = MetaText(cal.Meta, def)
	for _, lang := range cal.Languages[1:] {
		var t dataMetaText
		t.Title, t.Description, t.Link = MetaText(cal.Meta, lang)
		if doc.Meta.Languages == nil {
			doc.Meta.Languages = map[model.Language]dataMetaText{}
		}
		doc.Meta.Languages[lang] = t
	}

	for _, occ := range cal.Occurrences {
		o := dataOccurrence{
			UID:    occ.UID,
			Event:  occ.EventID,
			Date:   occ.Date,
			Status: occ.Status,
		}
		for _, p := range occ.Languages {
			f := fieldsOf(p, published[p.Fields.Poster])
			if p.Language == def {
				o.dataFields = f
				continue
			}
			if o.Lang == nil {
				o.Lang = map[model.Language]dataFields{}
			}
			o.Lang[p.Language] = f
		}
		doc.Occurrences = append(doc.Occurrences, o)
	}

	data, err := json.MarshalIndent(&doc, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}
