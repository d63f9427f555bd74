// Package publish turns a compiled calendar into output documents and
// content-addressed poster assets, and writes them to an output directory.
package publish

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"eventcal/internal/diag"
	"eventcal/internal/model"
)

// Document is one output file written at the output root.
type Document struct {
	Name string
	Data []byte
}

// Asset is one published poster. Reused assets were already published by an
// earlier run and are only rewritten if missing from the output directory.
type Asset struct {
	Hash     string
	Filename string // inside PosterDir
	Data     []byte
	Reused   bool
}

// Plan is everything a publication writes and removes. Building it touches
// no filesystem.
type Plan struct {
	Documents []Document
	Assets    []Asset
	Manifest  Manifest

	// Stale are previously published filenames inside PosterDir that the new
	// manifest no longer references.
	Stale []string
}

// Options controls which documents a plan contains.
type Options struct {
	ICS bool // one iCalendar feed per language
}

// NewPlan computes the publication of cal. posters holds the bytes of every
// poster source path referenced by cal; prev is the previous run's manifest.
func NewPlan(cal *model.CompiledCalendar, posters map[string][]byte, prev Manifest, opts Options) (*Plan, error) {
	if len(cal.Languages) == 0 {
		return nil, fmt.Errorf("publish: calendar has no languages")
	}
	plan := &Plan{Manifest: NewManifest()}

	// Poster source paths in first-use order.
	var refs []string
	seen := map[string]bool{}
	for _, occ := range cal.Occurrences {
		for _, p := range occ.Languages {
			src := p.Fields.Poster
			if src == "" || seen[src] {
				continue
			}
			seen[src] = true
			refs = append(refs, src)
		}
	}

	published := make(map[string]string, len(refs))
	for _, src := range refs {
		data, ok := posters[src]
		if !ok {
			return nil, diag.New(diag.FileSystemError, "poster", "poster %s was not loaded", src).In(src)
		}
		hash := ContentHash(data)
		name, have := plan.Manifest.Posters[hash]
		if !have {
			reused := false
			if prevName, ok := prev.Posters[hash]; ok {
				name, reused = prevName, true
			} else {
				name = hash + strings.ToLower(path.Ext(src))
			}
			plan.Manifest.Posters[hash] = name
			plan.Assets = append(plan.Assets, Asset{Hash: hash, Filename: name, Data: data, Reused: reused})
		}
		published[src] = path.Join(PosterDir, name)
	}
	sort.Slice(plan.Assets, func(i, j int) bool { return plan.Assets[i].Filename < plan.Assets[j].Filename })

	live := map[string]bool{}
	for _, name := range plan.Manifest.Posters {
		live[name] = true
	}
	for _, name := range prev.Filenames() {
		if !live[name] {
			plan.Stale = append(plan.Stale, name)
		}
	}

	data, err := encodeData(cal, published)
	if err != nil {
		return nil, fmt.Errorf("publish: encode %s: %w", DataFile, err)
	}
	plan.Documents = append(plan.Documents, Document{Name: DataFile, Data: data})
	if opts.ICS {
		for _, lang := range cal.Languages {
			plan.Documents = append(plan.Documents, Document{Name: CalendarFile(lang), Data: encodeICS(cal, lang)})
		}
	}
	return plan, nil
}
