package publish

import (
	"errors"
	"fmt"
	"os"
	"path"

	"github.com/go-git/go-billy/v5"

	"eventcal/internal/diag"
	appLog "eventcal/internal/log"
)

func fsError(name string, err error) error {
	return diag.Wrap(diag.FileSystemError, "", err).In(name)
}

// Apply writes plan to out: new poster assets first, then the documents and
// finally the manifest, each through a temporary file renamed into place.
// Stale assets are removed only once everything else is written, so the
// published documents never reference a missing poster. The first failure
// aborts with a FileSystemError; posters first published by the aborted run
// are removed again, and the previous manifest stays in place.
func Apply(out billy.Filesystem, plan *Plan) (err error) {
	if err := out.MkdirAll(PosterDir, 0o755); err != nil {
		return fsError(PosterDir, err)
	}

	var fresh []string
	defer func() {
		if err == nil {
			return
		}
		for _, name := range fresh {
			if rmErr := out.Remove(name); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
				appLog.Warn("failed to remove unpublished poster", "file", name, "error", rmErr)
			}
		}
	}()

	written := 0
	for _, a := range plan.Assets {
		name := path.Join(PosterDir, a.Filename)
		if a.Reused {
			if _, err := out.Stat(name); err == nil {
				continue
			} else if !errors.Is(err, os.ErrNotExist) {
				return fsError(name, err)
			}
			appLog.Warn("published poster missing, rewriting", "file", name)
		}
		if err := writeAtomic(out, name, a.Data); err != nil {
			return fsError(name, err)
		}
		if !a.Reused {
			fresh = append(fresh, name)
		}
		written++
	}

	for _, d := range plan.Documents {
		if err := writeAtomic(out, d.Name, d.Data); err != nil {
			return fsError(d.Name, err)
		}
	}

	manifest, err := plan.Manifest.encode()
	if err != nil {
		return fsError(ManifestFile, err)
	}
	if err := writeAtomic(out, ManifestFile, manifest); err != nil {
		return fsError(ManifestFile, err)
	}
	fresh = nil

	for _, name := range plan.Stale {
		p := path.Join(PosterDir, name)
		if err := out.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fsError(p, err)
		}
	}

	appLog.Info("output published",
		"documents", len(plan.Documents),
		"posters", len(plan.Assets),
		"posters_written", written,
		"stale_removed", len(plan.Stale),
	)
	return nil
}

// writeAtomic writes data to a temporary file next to name and renames it
// over name.
func writeAtomic(fs billy.Filesystem, name string, data []byte) error {
	tmp, err := fs.TempFile(path.Dir(name), ".eventcal-tmp-")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		fs.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		fs.Remove(tmpName)
		return err
	}
	if err := fs.Rename(tmpName, name); err != nil {
		fs.Remove(tmpName)
		return fmt.Errorf("rename %s: %w", tmpName, err)
	}
	return nil
}
