package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-git/go-billy/v5/osfs"

	"eventcal/internal/compile"
	"eventcal/internal/config"
	"eventcal/internal/diag"
	appLog "eventcal/internal/log"
	"eventcal/internal/model"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

func main() {
	os.Exit(run(os.Args[1:], os.Stderr, time.Now()))
}

func run(args []string, stderr io.Writer, now time.Time) int {
	fset := flag.NewFlagSet("eventcal", flag.ContinueOnError)
	fset.SetOutput(stderr)
	fset.Usage = func() {
		fmt.Fprintln(stderr, "usage: eventcal <input-dir> <output-dir>")
	}
	if err := fset.Parse(args); err != nil {
		return exitUsage
	}
	if fset.NArg() != 2 {
		fset.Usage()
		return exitUsage
	}
	inDir, outDir := fset.Arg(0), fset.Arg(1)

	if st, err := os.Stat(inDir); err != nil || !st.IsDir() {
		if err == nil {
			err = fmt.Errorf("%s is not a directory", inDir)
		}
		report(stderr, diag.List{diag.Wrap(diag.FileSystemError, "", err)})
		return exitError
	}
	in := osfs.New(inDir)
	out := osfs.New(outDir)

	conf, err := config.Load(in, config.FileName)
	if err != nil {
		appLog.Error("failed to load config", err, "path", config.FileName)
		return exitError
	}
	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))

	window := conf.WindowFor(model.DateOf(now.UTC()))
	appLog.Info("effective config",
		"input", inDir,
		"output", outDir,
		"default_language", conf.DefaultLanguage,
		"window_start", window.Start,
		"window_end", window.End,
		"workers", conf.Workers,
		"ics", *conf.ICS,
	)

	diags := compile.Compile(in, out, compile.Options{
		Window:           window,
		DefaultLanguage:  model.Language(conf.DefaultLanguage),
		ConfigFile:       config.FileName,
		PosterExtensions: conf.PosterExtensions,
		StrictPosters:    *conf.StrictPosters,
		Workers:          conf.Workers,
		ICS:              *conf.ICS,
	})
	report(stderr, diags)
	if diags.HasErrors() {
		return exitError
	}
	return exitOK
}

func report(w io.Writer, diags diag.List) {
	for _, d := range diags {
		fmt.Fprintln(w, d.Error())
	}
	if n := len(diags.Errors()); n > 0 {
		fmt.Fprintf(w, "%d error(s), %d warning(s); output not written\n", n, len(diags.Warnings()))
	}
}
