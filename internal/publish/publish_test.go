package publish

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
	_ "time/tzdata"

	ical "github.com/arran4/golang-ical"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"

	"eventcal/internal/diag"
	"eventcal/internal/model"
	"eventcal/internal/source"
)

func occurrence(id, date, poster string, langs ...model.Language) model.Occurrence {
	d, _ := model.ParseDate(date)
	loc, _ := time.LoadLocation("America/New_York")
	start := time.Date(d.Year, d.Month, d.Day, 17, 0, 0, 0, loc)
	occ := model.Occurrence{
		EventID: id,
		UID:     id + "-" + date,
		Date:    d,
		Status:  model.StatusUnconfirmed,
		Start:   start,
		End:     start.Add(time.Hour),
	}
	for _, l := range langs {
		occ.Languages = append(occ.Languages, model.Projection{
			Language: l,
			Start:    start,
			End:      start.Add(time.Hour),
			Fields: model.ResolvedFields{
				Name:      id + " " + string(l),
				Poster:    poster,
				Platforms: []model.Platform{model.PlatformPC},
				Timezone:  "America/New_York",
				Start:     17 * 60,
				Duration:  time.Hour,
			},
		})
	}
	return occ
}

func calendar(occs ...model.Occurrence) *model.CompiledCalendar {
	return &model.CompiledCalendar{
		Meta: model.CalendarMeta{
			Title: "Events",
			Languages: map[model.Language]model.MetaText{
				"de": {Title: model.Some("Veranstaltungen")},
			},
		},
		Window:      model.Window{Start: model.Date{Year: 2024, Month: 1, Day: 1}, End: model.Date{Year: 2024, Month: 1, Day: 31}},
		Languages:   []model.Language{"en", "de"},
		Occurrences: occs,
	}
}

func readAll(t *testing.T, fs billy.Filesystem, name string) []byte {
	t.Helper()
	data, err := source.ReadFile(fs, name)
	if err != nil {
		t.Fatalf("read %s: %v", name, err)
	}
	return data
}

func publish(t *testing.T, out billy.Filesystem, cal *model.CompiledCalendar, posters map[string][]byte) *Plan {
	t.Helper()
	prev, err := LoadManifest(out)
	if err != nil {
		t.Fatalf("LoadManifest: %v", err)
	}
	plan, err := NewPlan(cal, posters, prev, Options{ICS: true})
	if err != nil {
		t.Fatalf("NewPlan: %v", err)
	}
	if err := Apply(out, plan); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	return plan
}

func TestPublishIsIdempotent(t *testing.T) {
	cal := calendar(occurrence("quiz", "2024-01-08", "quiz.png", "en", "de"))
	posters := map[string][]byte{"quiz.png": []byte("png bytes")}
	out := memfs.New()

	first := publish(t, out, cal, posters)
	snapshot := map[string][]byte{}
	for _, name := range []string{DataFile, ManifestFile, CalendarFile("en"), CalendarFile("de")} {
		snapshot[name] = readAll(t, out, name)
	}

	second := publish(t, out, cal, posters)
	for name, want := range snapshot {
		if got := readAll(t, out, name); !bytes.Equal(got, want) {
			t.Fatalf("%s changed between runs", name)
		}
	}
	if len(second.Assets) != 1 || !second.Assets[0].Reused || second.Assets[0].Filename != first.Assets[0].Filename {
		t.Fatalf("poster not reused: %+v", second.Assets)
	}
	if len(second.Stale) != 0 {
		t.Fatalf("unexpected stale assets: %v", second.Stale)
	}
}

func TestPublishDeduplicatesIdenticalPosters(t *testing.T) {
	cal := calendar(
		occurrence("a", "2024-01-08", "a.png", "en"),
		occurrence("b", "2024-01-09", "b.png", "en"),
	)
	cal.Languages = []model.Language{"en"}
	same := []byte("identical")
	plan, err := NewPlan(cal, map[string][]byte{"a.png": same, "b.png": same}, NewManifest(), Options{})
	if err != nil {
		t.Fatalf("NewPlan: %v", err)
	}
	if len(plan.Assets) != 1 || len(plan.Manifest.Posters) != 1 {
		t.Fatalf("want one asset, got %+v", plan.Assets)
	}
	want := ContentHash(same) + ".png"
	if plan.Assets[0].Filename != want {
		t.Fatalf("filename %s want %s", plan.Assets[0].Filename, want)
	}

	var doc struct {
		Occurrences []struct {
			Poster string `json:"poster"`
		} `json:"occurrences"`
	}
	if err := json.Unmarshal(plan.Documents[0].Data, &doc); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	for _, o := range doc.Occurrences {
		if o.Poster != "posters/"+want {
			t.Fatalf("poster reference %q", o.Poster)
		}
	}
}

func TestPublishRemovesStaleAfterWriting(t *testing.T) {
	out := memfs.New()
	cal := calendar(occurrence("quiz", "2024-01-08", "quiz.png", "en", "de"))
	old := publish(t, out, cal, map[string][]byte{"quiz.png": []byte("v1")})
	oldName := "posters/" + old.Assets[0].Filename
	if _, err := out.Stat(oldName); err != nil {
		t.Fatalf("first poster not written: %v", err)
	}

	plan := publish(t, out, cal, map[string][]byte{"quiz.png": []byte("v2")})
	if len(plan.Stale) != 1 || plan.Stale[0] != old.Assets[0].Filename {
		t.Fatalf("stale: %v", plan.Stale)
	}
	if _, err := out.Stat(oldName); err == nil {
		t.Fatalf("stale poster %s still present", oldName)
	}
	if got := readAll(t, out, "posters/"+plan.Assets[0].Filename); string(got) != "v2" {
		t.Fatalf("new poster content %q", got)
	}
	m, err := LoadManifest(out)
	if err != nil {
		t.Fatalf("LoadManifest: %v", err)
	}
	if len(m.Posters) != 1 || m.Posters[ContentHash([]byte("v2"))] != plan.Assets[0].Filename {
		t.Fatalf("manifest: %+v", m)
	}
}

func TestPublishReusesManifestFilename(t *testing.T) {
	data := []byte("poster")
	prev := NewManifest()
	prev.Posters[ContentHash(data)] = "legacy-name.webp"
	cal := calendar(occurrence("quiz", "2024-01-08", "quiz.png", "en"))

	plan, err := NewPlan(cal, map[string][]byte{"quiz.png": data}, prev, Options{})
	if err != nil {
		t.Fatalf("NewPlan: %v", err)
	}
	if plan.Assets[0].Filename != "legacy-name.webp" || !plan.Assets[0].Reused {
		t.Fatalf("asset: %+v", plan.Assets[0])
	}

	// A reused asset missing from the output directory is rewritten.
	out := memfs.New()
	if err := Apply(out, plan); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if got := readAll(t, out, "posters/legacy-name.webp"); string(got) != "poster" {
		t.Fatalf("content %q", got)
	}
}

func TestPlanMissingPoster(t *testing.T) {
	cal := calendar(occurrence("quiz", "2024-01-08", "quiz.png", "en"))
	_, err := NewPlan(cal, nil, NewManifest(), Options{})
	var x *diag.Diagnostic
	if !errors.As(err, &x) || x.Kind != diag.FileSystemError {
		t.Fatalf("want FileSystemError, got %v", err)
	}
}

func TestDataDocumentShape(t *testing.T) {
	cal := calendar(occurrence("quiz", "2024-01-08", "", "en", "de"))
	plan, err := NewPlan(cal, nil, NewManifest(), Options{})
	if err != nil {
		t.Fatalf("NewPlan: %v", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(plan.Documents[0].Data, &doc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if doc["version"].(float64) != DataVersion {
		t.Fatalf("version %v", doc["version"])
	}
	meta := doc["meta"].(map[string]any)
	if meta["title"] != "Events" || meta["languages"].(map[string]any)["de"].(map[string]any)["title"] != "Veranstaltungen" {
		t.Fatalf("meta %v", meta)
	}
	occ := doc["occurrences"].([]any)[0].(map[string]any)
	if occ["name"] != "quiz en" || occ["start"] != "2024-01-08T17:00:00-05:00" || occ["date"] != "2024-01-08" {
		t.Fatalf("occurrence %v", occ)
	}
	if occ["lang"].(map[string]any)["de"].(map[string]any)["name"] != "quiz de" {
		t.Fatalf("language projection %v", occ["lang"])
	}
}

func TestCalendarFeed(t *testing.T) {
	occ := occurrence("quiz", "2024-01-08", "", "en", "de")
	occ.Status = model.StatusConfirmed
	data := encodeICS(calendar(occ), "de")

	parsed, err := ical.ParseCalendar(strings.NewReader(string(data)))
	if err != nil {
		t.Fatalf("parse feed: %v", err)
	}
	events := parsed.Events()
	if len(events) != 1 {
		t.Fatalf("events: %d", len(events))
	}
	ev := events[0]
	if p := ev.GetProperty(ical.ComponentPropertySummary); p == nil || p.Value != "quiz de" {
		t.Fatalf("summary %v", p)
	}
	if p := ev.GetProperty(ical.ComponentPropertyStatus); p == nil || p.Value != string(ical.ObjectStatusConfirmed) {
		t.Fatalf("status %v", p)
	}
	if p := ev.GetProperty(ical.ComponentPropertyDtStart); p == nil || p.Value != "20240108T220000Z" {
		t.Fatalf("dtstart %v", p)
	}
}

func TestDecodeManifestRejectsUnknownVersion(t *testing.T) {
	if _, err := DecodeManifest([]byte(`{"version":2,"posters":{}}`)); err == nil {
		t.Fatalf("version 2 accepted")
	}
	fs := memfs.New()
	if err := util.WriteFile(fs, ManifestFile, []byte("{"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadManifest(fs); err == nil {
		t.Fatalf("corrupt manifest accepted")
	}
}

// renameFails fails every rename into target.
type renameFails struct {
	billy.Filesystem
	target string
	err    error
}

func (fs renameFails) Rename(from, to string) error {
	if to == fs.target {
		return fs.err
	}
	return fs.Filesystem.Rename(from, to)
}

func TestApplyFailureKeepsPreviousOutput(t *testing.T) {
	out := memfs.New()
	cal := calendar(occurrence("quiz", "2024-01-08", "quiz.png", "en", "de"))
	old := publish(t, out, cal, map[string][]byte{"quiz.png": []byte("v1")})
	oldName := "posters/" + old.Assets[0].Filename
	manifest := readAll(t, out, ManifestFile)

	prev, err := LoadManifest(out)
	if err != nil {
		t.Fatalf("LoadManifest: %v", err)
	}
	plan, err := NewPlan(cal, map[string][]byte{"quiz.png": []byte("v2")}, prev, Options{ICS: true})
	if err != nil {
		t.Fatalf("NewPlan: %v", err)
	}
	diskFull := errors.New("disk full")
	err = Apply(renameFails{Filesystem: out, target: DataFile, err: diskFull}, plan)

	var x *diag.Diagnostic
	if !errors.As(err, &x) || x.Kind != diag.FileSystemError || x.Source != DataFile {
		t.Fatalf("want FileSystemError in %s, got %v", DataFile, err)
	}
	if !errors.Is(err, diskFull) {
		t.Fatalf("cause lost: %v", err)
	}
	if got := readAll(t, out, oldName); string(got) != "v1" {
		t.Fatalf("previous poster content %q", got)
	}
	if got := readAll(t, out, ManifestFile); !bytes.Equal(got, manifest) {
		t.Fatalf("manifest changed by failed run:\n%s", got)
	}
	newName := "posters/" + plan.Assets[0].Filename
	if _, err := out.Stat(newName); err == nil {
		t.Fatalf("unpublished poster %s left behind", newName)
	}
	entries, err := out.ReadDir(PosterDir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != old.Assets[0].Filename {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Fatalf("posters after failed run: %v", names)
	}

	// The next successful run publishes normally.
	publish(t, out, cal, map[string][]byte{"quiz.png": []byte("v2")})
	if _, err := out.Stat(oldName); err == nil {
		t.Fatalf("stale poster %s still present", oldName)
	}
}

func TestDecodeManifestRejectsUnsafeFilenames(t *testing.T) {
	hash := ContentHash([]byte("poster"))
	for _, name := range []string{
		"../keep.txt",
		"sub/" + hash + ".png",
		hash + ".png/..",
		"..",
		hash,
		hash + ".",
		hash + ".PNG",
		"other.png",
	} {
		data, _ := json.Marshal(Manifest{Version: ManifestVersion, Posters: map[string]string{hash: name}})
		_, err := DecodeManifest(data)
		var x *diag.Diagnostic
		if !errors.As(err, &x) || x.Kind != diag.FileSystemError || x.Source != ManifestFile {
			t.Errorf("%q: want FileSystemError in %s, got %v", name, ManifestFile, err)
		}
	}
	if _, err := DecodeManifest([]byte(`{"version":1,"posters":{"../x":"../x.png"}}`)); err == nil {
		t.Errorf("non-hash key accepted")
	}
	ok := `{"version":1,"posters":{"` + hash + `":"` + hash + `.webp"}}`
	if _, err := DecodeManifest([]byte(ok)); err != nil {
		t.Errorf("valid manifest rejected: %v", err)
	}
}

func TestTamperedManifestRemovesNothing(t *testing.T) {
	out := memfs.New()
	if err := util.WriteFile(out, "keep.txt", []byte("keep"), 0o644); err != nil {
		t.Fatal(err)
	}
	tampered := `{"version":1,"posters":{"` + ContentHash([]byte("x")) + `":"../keep.txt"}}`
	if err := util.WriteFile(out, ManifestFile, []byte(tampered), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadManifest(out); err == nil {
		t.Fatalf("tampered manifest accepted")
	}
	if got := readAll(t, out, "keep.txt"); string(got) != "keep" {
		t.Fatalf("keep.txt content %q", got)
	}
}
