// Package diag defines the compile error taxonomy. Every problem found while
// compiling is a *Diagnostic attributed to a source file, a field path and
// the weekday/language context it was found in.
package diag

import (
	"fmt"
	"sort"
	"strings"
)

type Kind int

const (
	ParseError Kind = iota + 1
	MissingRequiredField
	InvalidTimezone
	InvalidDateOrTime
	AmbiguousPosterFormat
	FileSystemError

	// Warning-only kinds.
	OutOfRangeException
	UnusedOverride
)

func (k Kind) String() string {
	switch k {
	case ParseError:
		return "ParseError"
	case MissingRequiredField:
		return "MissingRequiredField"
	case InvalidTimezone:
		return "InvalidTimezone"
	case InvalidDateOrTime:
		return "InvalidDateOrTime"
	case AmbiguousPosterFormat:
		return "AmbiguousPosterFormat"
	case FileSystemError:
		return "FileSystemError"
	case OutOfRangeException:
		return "OutOfRangeException"
	case UnusedOverride:
		return "UnusedOverride"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
)

func (s Severity) String() string {
	if s == SeverityWarning {
		return "warning"
	}
	return "error"
}

// Diagnostic is a single attributed compile problem. It implements error so
// component functions can return it directly and callers can errors.As it.
type Diagnostic struct {
	Kind     Kind
	Severity Severity

	Source   string // input file, relative to the input directory
	Field    string // dotted field path, e.g. "languages.de.days.monday.start"
	Weekday  string
	Language string

	Message string
	Err     error
}

func (d *Diagnostic) Error() string {
	var b strings.Builder
	b.WriteString(d.Severity.String())
	b.WriteString(" [")
	b.WriteString(d.Kind.String())
	b.WriteString("]")
	if d.Source != "" {
		b.WriteString(" " + d.Source)
	}
	if d.Field != "" {
		b.WriteString(": " + d.Field)
	}
	var ctx []string
	if d.Weekday != "" {
		ctx = append(ctx, "weekday="+d.Weekday)
	}
	if d.Language != "" {
		ctx = append(ctx, "language="+d.Language)
	}
	if len(ctx) > 0 {
		b.WriteString(" (" + strings.Join(ctx, ", ") + ")")
	}
	if d.Message != "" {
		b.WriteString(": " + d.Message)
	}
	if d.Err != nil {
		b.WriteString(": " + d.Err.Error())
	}
	return b.String()
}

func (d *Diagnostic) Unwrap() error { return d.Err }

// New builds an error-severity diagnostic.
func New(kind Kind, field, format string, args ...any) *Diagnostic {
	return &Diagnostic{Kind: kind, Field: field, Message: fmt.Sprintf(format, args...)}
}

// Warn builds a warning-severity diagnostic.
func Warn(kind Kind, field, format string, args ...any) *Diagnostic {
	d := New(kind, field, format, args...)
	d.Severity = SeverityWarning
	return d
}

// Wrap builds an error-severity diagnostic around an underlying error.
func Wrap(kind Kind, field string, err error) *Diagnostic {
	return &Diagnostic{Kind: kind, Field: field, Err: err}
}

// In returns d attributed to source, keeping any context already set.
func (d *Diagnostic) In(source string) *Diagnostic {
	if d.Source == "" {
		d.Source = source
	}
	return d
}

// List collects diagnostics across a whole compile.
type List []*Diagnostic

func (l *List) Add(d ...*Diagnostic) {
	*l = append(*l, d...)
}

// HasErrors reports whether any collected diagnostic blocks publication.
func (l List) HasErrors() bool {
	for _, d := range l {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}

func (l List) Errors() List {
	var out List
	for _, d := range l {
		if d.Severity == SeverityError {
			out = append(out, d)
		}
	}
	return out
}

func (l List) Warnings() List {
	var out List
	for _, d := range l {
		if d.Severity == SeverityWarning {
			out = append(out, d)
		}
	}
	return out
}

// Sort orders diagnostics by source, then field, then message so reports are
// stable across runs regardless of worker scheduling.
func (l List) Sort() {
	sort.SliceStable(l, func(i, j int) bool {
		a, b := l[i], l[j]
		if a.Source != b.Source {
			return a.Source < b.Source
		}
		if a.Field != b.Field {
			return a.Field < b.Field
		}
		if a.Weekday != b.Weekday {
			return a.Weekday < b.Weekday
		}
		if a.Language != b.Language {
			return a.Language < b.Language
		}
		return a.Error() < b.Error()
	})
}
