package manifest

import (
	"encoding/json"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/aleister1102/waymirror/internal/errorwrapper"
	"github.com/aleister1102/waymirror/internal/urlhandler"
)

// ManifestFileName is the manifest's name inside an archive directory.
const ManifestFileName = "manifest.json"

// Store persists archive copies: downloaded resources and the manifest
// describing them. Backed by afero so tests run against an in-memory
// filesystem.
type Store struct {
	fs     afero.Fs
	logger zerolog.Logger
}

// NewStore creates a manifest store over the given filesystem.
func NewStore(fs afero.Fs, logger zerolog.Logger) *Store {
	return &Store{
		fs:     fs,
		logger: logger.With().Str("component", "ManifestStore").Logger(),
	}
}

// Fs exposes the underlying filesystem for collaborators that operate on
// the same archive tree.
func (s *Store) Fs() afero.Fs {
	return s.fs
}

// Load reads the manifest of an archive directory. A missing manifest
// reports ErrManifestNotFound.
func (s *Store) Load(outputDir string) (*Manifest, error) {
	path := filepath.Join(outputDir, ManifestFileName)
	exists, err := afero.Exists(s.fs, path)
	if err != nil {
		return nil, errorwrapper.WrapError(err, "checking manifest at "+path)
	}
	if !exists {
		return nil, errorwrapper.WrapError(errorwrapper.ErrManifestNotFound, path)
	}

	body, err := afero.ReadFile(s.fs, path)
	if err != nil {
		return nil, errorwrapper.WrapError(err, "reading manifest at "+path)
	}

	var m Manifest
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, errorwrapper.WrapError(err, "decoding manifest at "+path)
	}
	return &m, nil
}

// Save writes the manifest into an archive directory.
func (s *Store) Save(outputDir string, m *Manifest) error {
	body, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return errorwrapper.WrapError(err, "encoding manifest")
	}
	if err := s.fs.MkdirAll(outputDir, 0o755); err != nil {
		return errorwrapper.WrapError(err, "creating archive directory "+outputDir)
	}
	path := filepath.Join(outputDir, ManifestFileName)
	if err := afero.WriteFile(s.fs, path, body, 0o644); err != nil {
		return errorwrapper.WrapError(err, "writing manifest at "+path)
	}
	return nil
}

// WriteResource saves a downloaded payload under its deterministic local
// path and returns that relative path.
func (s *Store) WriteResource(outputDir, rawURL string, body []byte, mime string) (string, error) {
	localRel := urlhandler.LocalPathForURL(rawURL, mime)
	fullPath := filepath.Join(outputDir, filepath.FromSlash(localRel))
	if err := s.fs.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return "", errorwrapper.WrapError(err, "creating directory for "+fullPath)
	}
	if err := afero.WriteFile(s.fs, fullPath, body, 0o644); err != nil {
		return "", errorwrapper.WrapError(err, "writing "+fullPath)
	}
	return localRel, nil
}

// ResourceSize reports the on-disk size of one manifest file entry, or 0
// when the file is absent.
func (s *Store) ResourceSize(outputDir, localPath string) int64 {
	info, err := s.fs.Stat(filepath.Join(outputDir, filepath.FromSlash(localPath)))
	if err != nil || info.IsDir() {
		return 0
	}
	return info.Size()
}

// ResolveOutputDir finds the archive directory for a host and snapshot.
// The search tries, in order: the conventional <root>/<host>_<snapshot>
// directory, the root itself (the user pointed straight at an archive),
// a sibling of the root when the root already is a host directory, and
// finally any <host>_* directory under the root, preferring an exact
// snapshot match and otherwise the newest. When nothing holds a manifest
// the conventional directory is returned for the caller to report on.
func (s *Store) ResolveOutputDir(outputRoot, hostSlug, snapshot string) string {
	prefix := hostSlug + "_"
	direct := filepath.Join(outputRoot, prefix+snapshot)
	if s.hasManifest(direct) {
		return direct
	}

	if s.hasManifest(outputRoot) {
		return outputRoot
	}

	if strings.HasPrefix(filepath.Base(outputRoot), prefix) {
		sibling := filepath.Join(filepath.Dir(outputRoot), prefix+snapshot)
		if s.hasManifest(sibling) {
			return sibling
		}
	}

	matches, err := afero.Glob(s.fs, filepath.Join(outputRoot, prefix+"*", ManifestFileName))
	if err == nil && len(matches) > 0 {
		sort.Strings(matches)
		for _, match := range matches {
			if filepath.Base(filepath.Dir(match)) == prefix+snapshot {
				return filepath.Dir(match)
			}
		}
		return filepath.Dir(matches[len(matches)-1])
	}

	return direct
}

func (s *Store) hasManifest(dir string) bool {
	exists, err := afero.Exists(s.fs, filepath.Join(dir, ManifestFileName))
	return err == nil && exists
}
