package publish

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/go-git/go-billy/v5"

	"eventcal/internal/diag"
	"eventcal/internal/source"
)

const (
	ManifestFile    = "manifest.json"
	ManifestVersion = 1
	PosterDir       = "posters"
)

// Manifest maps a poster's content hash to its published filename inside
// PosterDir. It is the only record of what earlier runs published; the
// output directory is never enumerated.
type Manifest struct {
	Version int               `json:"version"`
	Posters map[string]string `json:"posters"`
}

func NewManifest() Manifest {
	return Manifest{Version: ManifestVersion, Posters: map[string]string{}}
}

// Filenames returns the published filenames, sorted.
func (m Manifest) Filenames() []string {
	out := make([]string, 0, len(m.Posters))
	for _, name := range m.Posters {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// LoadManifest reads the manifest of the previous run from out. A missing
// manifest is an empty one.
func LoadManifest(out billy.Filesystem) (Manifest, error) {
	data, err := source.ReadFile(out, ManifestFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return NewManifest(), nil
		}
		return Manifest{}, diag.Wrap(diag.FileSystemError, "", err).In(ManifestFile)
	}
	return DecodeManifest(data)
}

func DecodeManifest(data []byte) (Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return Manifest{}, diag.Wrap(diag.FileSystemError, "", fmt.Errorf("decode manifest: %w", err)).In(ManifestFile)
	}
	if m.Version != ManifestVersion {
		return Manifest{}, diag.New(diag.FileSystemError, "version", "unsupported manifest version %d", m.Version).In(ManifestFile)
	}
	if m.Posters == nil {
		m.Posters = map[string]string{}
	}
	for _, hash := range sortedHashes(m.Posters) {
		if name := m.Posters[hash]; !validAsset(hash, name) {
			return Manifest{}, diag.New(diag.FileSystemError, "posters."+hash,
				"invalid published filename %q: want <sha256>.<ext>", name).In(ManifestFile)
		}
	}
	return m, nil
}

func sortedHashes(posters map[string]string) []string {
	out := make([]string, 0, len(posters))
	for h := range posters {
		out = append(out, h)
	}
	sort.Strings(out)
	return out
}

// validAsset reports whether name is the filename published for hash: the
// hash itself followed by a lowercase alphanumeric extension.
func validAsset(hash, name string) bool {
	if len(hash) != sha256.Size*2 || strings.Trim(hash, "0123456789abcdef") != "" {
		return false
	}
	ext, ok := strings.CutPrefix(name, hash+".")
	if !ok || ext == "" {
		return false
	}
	return strings.Trim(ext, "0123456789abcdefghijklmnopqrstuvwxyz") == ""
}

func (m Manifest) encode() ([]byte, error) {
	data, err := json.MarshalIndent(&m, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// ContentHash is the hex SHA-256 of data.
func ContentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
