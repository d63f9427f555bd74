// Package compile runs the whole pipeline: enumerate inputs, parse and
// resolve every event, expand and normalize occurrences, aggregate them into
// one calendar and publish it.
package compile

import (
	"errors"
	"sort"
	"sync"

	"github.com/go-git/go-billy/v5"

	"eventcal/internal/diag"
	appLog "eventcal/internal/log"
	"eventcal/internal/model"
	"eventcal/internal/publish"
	"eventcal/internal/source"
)

// Options configures one compile.
type Options struct {
	Window          model.Window
	DefaultLanguage model.Language

	MetaFile         string
	ConfigFile       string
	PosterExtensions []string
	StrictPosters    bool

	Workers int
	ICS     bool
}

// Result is the outcome of Build. Plan is nil whenever Diagnostics holds an
// error.
type Result struct {
	Calendar    *model.CompiledCalendar
	Plan        *publish.Plan
	Diagnostics diag.List
}

// Compile builds the calendar in in and, when no error was found, publishes
// it to out. Nothing is written to out if any error is collected.
func Compile(in, out billy.Filesystem, opts Options) diag.List {
	prev, err := publish.LoadManifest(out)
	if err != nil {
		return diag.List{asDiagnostic(err)}
	}
	res := Build(in, prev, opts)
	if res.Diagnostics.HasErrors() {
		appLog.Warn("compile failed; output left untouched", "errors", len(res.Diagnostics.Errors()))
		return res.Diagnostics
	}
	if err := publish.Apply(out, res.Plan); err != nil {
		res.Diagnostics.Add(asDiagnostic(err))
		res.Diagnostics.Sort()
	}
	return res.Diagnostics
}

// Build is the filesystem-read-only part of a compile: it reads in and the
// previous manifest and produces the publication plan without writing.
func Build(in billy.Filesystem, prev publish.Manifest, opts Options) *Result {
	if opts.DefaultLanguage == "" {
		opts.DefaultLanguage = "en"
	}
	res := &Result{}
	defer func() { res.Diagnostics.Sort() }()

	if opts.Window.End.Before(opts.Window.Start) {
		res.Diagnostics.Add(diag.New(diag.InvalidDateOrTime, "window",
			"window end %s is before its start %s", opts.Window.End, opts.Window.Start))
		return res
	}

	inputs, diags := source.Load(in, source.LoadOptions{
		MetaFile:         opts.MetaFile,
		ConfigFile:       opts.ConfigFile,
		PosterExtensions: opts.PosterExtensions,
		StrictPosters:    opts.StrictPosters,
	})
	res.Diagnostics.Add(diags...)
	if inputs == nil {
		return res
	}

	meta := &model.CalendarMeta{}
	if inputs.Meta.Path != "" {
		m, diags := source.ParseMeta(inputs.Meta.Path, inputs.Meta.Data)
		res.Diagnostics.Add(diags...)
		if m != nil {
			meta = m
		}
	}
	others := make([]model.Language, 0, len(meta.Languages))
	for l := range meta.Languages {
		others = append(others, l)
	}
	languages := model.SortLanguages(opts.DefaultLanguage, others)

	sh := &shared{
		in:        in,
		window:    opts.Window,
		languages: languages,
		posters:   inputs.Posters,
		exts:      opts.PosterExtensions,
	}
	results := runEvents(sh, inputs.Events, opts.Workers)

	cal := &model.CompiledCalendar{Meta: *meta, Window: opts.Window, Languages: languages}
	for _, r := range results {
		res.Diagnostics.Add(r.diags...)
		cal.Occurrences = append(cal.Occurrences, r.occurrences...)
	}
	sortOccurrences(cal.Occurrences)
	res.Calendar = cal

	if res.Diagnostics.HasErrors() {
		return res
	}

	posters, diags := readPosters(in, cal)
	res.Diagnostics.Add(diags...)
	if diags.HasErrors() {
		return res
	}

	plan, err := publish.NewPlan(cal, posters, prev, publish.Options{ICS: opts.ICS})
	if err != nil {
		res.Diagnostics.Add(asDiagnostic(err))
		return res
	}
	res.Plan = plan
	appLog.Info("calendar compiled",
		"events", len(inputs.Events),
		"occurrences", len(cal.Occurrences),
		"languages", len(languages),
		"warnings", len(res.Diagnostics.Warnings()),
	)
	return res
}

// runEvents compiles every event on a bounded pool of workers. Results are
// indexed by input position so aggregation does not depend on scheduling.
func runEvents(sh *shared, events []source.File, workers int) []eventResult {
	results := make([]eventResult, len(events))
	sem := make(chan struct{}, max(1, workers))
	var wg sync.WaitGroup
	for i, f := range events {
		i, f := i, f
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = compileEvent(sh, f)
		}()
	}
	wg.Wait()
	return results
}

// sortOccurrences orders by start instant, then event ID, then civil date.
func sortOccurrences(occs []model.Occurrence) {
	sort.SliceStable(occs, func(i, j int) bool {
		a, b := occs[i], occs[j]
		if !a.Start.Equal(b.Start) {
			return a.Start.Before(b.Start)
		}
		if a.EventID != b.EventID {
			return a.EventID < b.EventID
		}
		return a.Date.Before(b.Date)
	})
}

// readPosters loads every poster referenced by the calendar, serially.
func readPosters(in billy.Filesystem, cal *model.CompiledCalendar) (map[string][]byte, diag.List) {
	var diags diag.List
	out := map[string][]byte{}
	for _, occ := range cal.Occurrences {
		for _, p := range occ.Languages {
			name := p.Fields.Poster
			if name == "" {
				continue
			}
			if _, done := out[name]; done {
				continue
			}
			data, err := source.ReadFile(in, name)
			if err != nil {
				diags.Add(diag.Wrap(diag.FileSystemError, "poster", err).In(name))
				out[name] = nil
				continue
			}
			out[name] = data
		}
	}
	return out, diags
}

func asDiagnostic(err error) *diag.Diagnostic {
	var x *diag.Diagnostic
	if errors.As(err, &x) {
		return x
	}
	return diag.Wrap(diag.FileSystemError, "", err)
}
