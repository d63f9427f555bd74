package source

import (
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/go-git/go-billy/v5"

	"eventcal/internal/diag"
	appLog "eventcal/internal/log"
)

// DefaultPosterExtensions is the poster lookup order. The first match wins,
// but more than one match is reported since the order hides mistakes.
var DefaultPosterExtensions = []string{"webp", "jpeg", "jpg", "png"}

// File is one raw input document.
type File struct {
	Path string // relative to the input root
	Stem string
	Data []byte
}

// Inputs is the enumerated content of an input directory.
type Inputs struct {
	Meta   File
	Events []File // sorted by path

	// Posters maps an event stem to its discovered poster file.
	Posters map[string]string
}

// LoadOptions controls input enumeration.
type LoadOptions struct {
	MetaFile         string   // default "meta.toml"
	ConfigFile       string   // skipped when enumerating events
	PosterExtensions []string // default DefaultPosterExtensions
	StrictPosters    bool     // ambiguous posters are errors rather than warnings
}

// Load enumerates the root of fs: the metadata document, every other *.toml
// file as an event document, and poster files sharing an event's stem.
func Load(fs billy.Filesystem, opts LoadOptions) (*Inputs, diag.List) {
	if opts.MetaFile == "" {
		opts.MetaFile = "meta.toml"
	}
	if len(opts.PosterExtensions) == 0 {
		opts.PosterExtensions = DefaultPosterExtensions
	}

	var diags diag.List
	entries, err := fs.ReadDir(".")
	if err != nil {
		diags.Add(diag.Wrap(diag.FileSystemError, "", fmt.Errorf("read input directory: %w", err)))
		return nil, diags
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	in := &Inputs{Posters: map[string]string{}}
	present := map[string]bool{}
	metaFound := false
	for _, name := range names {
		present[name] = true
		if name == opts.MetaFile {
			data, err := ReadFile(fs, name)
			if err != nil {
				diags.Add(diag.Wrap(diag.FileSystemError, "", err).In(name))
				continue
			}
			in.Meta = File{Path: name, Stem: stem(name), Data: data}
			metaFound = true
			continue
		}
		if name == opts.ConfigFile || path.Ext(name) != ".toml" {
			continue
		}
		data, err := ReadFile(fs, name)
		if err != nil {
			diags.Add(diag.Wrap(diag.FileSystemError, "", err).In(name))
			continue
		}
		in.Events = append(in.Events, File{Path: name, Stem: stem(name), Data: data})
	}
	if !metaFound {
		diags.Add(diag.New(diag.FileSystemError, "", "calendar metadata document %s not found", opts.MetaFile))
	}

	for _, ev := range in.Events {
		var found []string
		for _, ext := range opts.PosterExtensions {
			candidate := ev.Stem + "." + ext
			if present[candidate] {
				found = append(found, candidate)
			}
		}
		if len(found) == 0 {
			continue
		}
		in.Posters[ev.Stem] = found[0]
		if len(found) > 1 {
			var x *diag.Diagnostic
			msg := "more than one poster file matches this event: %s"
			if opts.StrictPosters {
				x = diag.New(diag.AmbiguousPosterFormat, "poster", msg, strings.Join(found, ", "))
			} else {
				x = diag.Warn(diag.AmbiguousPosterFormat, "poster", msg+"; using %s", strings.Join(found, ", "), found[0])
			}
			diags.Add(x.In(ev.Path))
		}
	}

	appLog.Debug("inputs enumerated", "events", len(in.Events), "posters", len(in.Posters))
	return in, diags
}

// ReadFile reads a whole file from a billy filesystem.
func ReadFile(fs billy.Basic, name string) ([]byte, error) {
	f, err := fs.Open(name)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return data, nil
}

func stem(name string) string {
	return strings.TrimSuffix(name, path.Ext(name))
}

// IsPosterExtension reports whether name has one of the recognized poster
// extensions, returning the extension without the dot.
func IsPosterExtension(name string, exts []string) (string, bool) {
	if len(exts) == 0 {
		exts = DefaultPosterExtensions
	}
	ext := strings.TrimPrefix(path.Ext(name), ".")
	for _, e := range exts {
		if ext == e {
			return ext, true
		}
	}
	return "", false
}
