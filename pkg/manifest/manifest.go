package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/zeebo/xxh3"
	"gopkg.in/yaml.v3"

	"github.com/cmmoran/jvmobf/internal/mapping"
)

var (
	ErrNoVersion      = errors.New("release needs a version")
	ErrNoMapping      = errors.New("release needs a mapping file")
	ErrUnknownVersion = errors.New("version not recorded")
	ErrMappingChanged = errors.New("mapping file changed since it was recorded")
)

// Release represents one obfuscated release entry in the manifest. Mapping
// is stored relative to the manifest when it lives below it.
type Release struct {
	Name    string `yaml:"name" json:"name"`
	Version string `yaml:"version" json:"version"`
	Mapping string `yaml:"mapping" json:"mapping"`
	Digest  string `yaml:"digest" json:"digest"`
	Classes int    `yaml:"classes" json:"classes"`
	Members int    `yaml:"members" json:"members"`
	Output  string `yaml:"output,omitempty" json:"output,omitempty"`
}

// Manifest tracks the mapping files of released builds, so stack traces from
// any shipped version can still be translated back.
type Manifest struct {
	CurrentVersion  string    `yaml:"current_version" json:"current_version"`
	PreviousVersion string    `yaml:"previous_version" json:"previous_version"`
	Releases        []Release `yaml:"releases" json:"releases"`

	dir string
}

// Load reads the manifest at path. A missing file yields an empty manifest
// rooted next to path.
func Load(path string) (*Manifest, error) {
	m := &Manifest{dir: filepath.Dir(path)}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return m, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	if err := yaml.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("unmarshal manifest: %w", err)
	}
	for _, v := range []string{m.CurrentVersion, m.PreviousVersion} {
		if v != "" && m.release(v) == nil {
			return nil, fmt.Errorf("manifest %s: %w: %s", path, ErrUnknownVersion, v)
		}
	}
	return m, nil
}

// Save writes the manifest through a temporary file so a failed write never
// loses recorded releases. Mapping paths are rebased onto the new location.
func (m *Manifest) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create manifest directory: %w", err)
	}
	if m.dir != dir {
		for i := range m.Releases {
			m.Releases[i].Mapping = m.relative(dir, m.resolve(m.Releases[i].Mapping))
		}
		m.dir = dir
	}

	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".manifest-*")
	if err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write manifest: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

// AddRelease records a release after checking that its mapping file parses.
// The file's digest and entry counts are stored with it. Re-recording a
// version replaces that entry; the previous pointer only moves when the
// current version changes.
func (m *Manifest) AddRelease(r Release) error {
	if r.Version == "" {
		return ErrNoVersion
	}
	if r.Mapping == "" {
		return ErrNoMapping
	}
	path := m.resolve(r.Mapping)
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("mapping file: %w", err)
	}
	t, err := mapping.Read(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("mapping file %s: %w", path, err)
	}
	r.Mapping = m.relative(m.dir, path)
	r.Digest = digest(data)
	r.Classes = len(t.Classes())
	r.Members = len(t.Fields()) + len(t.Methods())

	if m.CurrentVersion != "" && m.CurrentVersion != r.Version {
		m.PreviousVersion = m.CurrentVersion
	}
	m.CurrentVersion = r.Version

	if prev := m.release(r.Version); prev != nil {
		*prev = r
		return nil
	}
	m.Releases = append(m.Releases, r)
	return nil
}

// MappingFile returns the mapping path recorded for version, resolved against
// the manifest location, or "" when the version is unknown.
func (m *Manifest) MappingFile(version string) string {
	if r := m.release(version); r != nil {
		return m.resolve(r.Mapping)
	}
	return ""
}

// Verify checks that the mapping file of version still has the recorded digest.
func (m *Manifest) Verify(version string) error {
	r := m.release(version)
	if r == nil {
		return fmt.Errorf("%w: %s", ErrUnknownVersion, version)
	}
	data, err := os.ReadFile(m.resolve(r.Mapping))
	if err != nil {
		return fmt.Errorf("mapping file: %w", err)
	}
	if digest(data) != r.Digest {
		return fmt.Errorf("%s: %w", version, ErrMappingChanged)
	}
	return nil
}

func (m *Manifest) release(version string) *Release {
	for i := range m.Releases {
		if m.Releases[i].Version == version {
			return &m.Releases[i]
		}
	}
	return nil
}

func (m *Manifest) resolve(p string) string {
	if filepath.IsAbs(p) || m.dir == "" {
		return filepath.Clean(p)
	}
	return filepath.Join(m.dir, p)
}

// relative keeps paths below dir relative and everything else absolute.
func (m *Manifest) relative(dir, p string) string {
	abs, err := filepath.Abs(p)
	if err != nil {
		return filepath.Clean(p)
	}
	base, err := filepath.Abs(dir)
	if err != nil {
		return abs
	}
	rel, err := filepath.Rel(base, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return abs
	}
	return rel
}

func digest(data []byte) string {
	return "xxh3:" + strconv.FormatUint(xxh3.Hash(data), 16)
}
