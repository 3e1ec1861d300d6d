package release

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/go-cmp/cmp"

	"github.com/cmmoran/jvmobf/internal/mapping"
	"github.com/cmmoran/jvmobf/pkg/manifest"
)

// Record adds a release with its mapping file to the manifest. A relative
// mappingFile is taken relative to the working directory.
func Record(manifestPath, name, version, mappingFile, output string) error {
	m, err := manifest.Load(manifestPath)
	if err != nil {
		return err
	}
	if mappingFile != "" {
		if mappingFile, err = filepath.Abs(mappingFile); err != nil {
			return err
		}
	}
	if err := m.AddRelease(manifest.Release{Name: name, Version: version, Mapping: mappingFile, Output: output}); err != nil {
		return err
	}

	return m.Save(manifestPath)
}

// List returns all releases recorded in the manifest.
func List(manifestPath string) (*manifest.Manifest, error) {
	return manifest.Load(manifestPath)
}

// decisions is the comparable form of a mapping file.
type decisions struct {
	Classes []mapping.ClassEntry
	Fields  []mapping.MemberEntry
	Methods []mapping.MemberEntry
}

func readDecisions(path string) (*decisions, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	t, err := mapping.Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &decisions{Classes: t.Classes(), Fields: t.Fields(), Methods: t.Methods()}, nil
}

// DiffCurrentWithPrevious loads the manifest, locates the current and previous
// mapping files, and returns a diff of the rename decisions they hold.
func DiffCurrentWithPrevious(manifestPath string) (string, error) {
	m, err := manifest.Load(manifestPath)
	if err != nil {
		return "", err
	}

	if m.CurrentVersion == "" || m.PreviousVersion == "" {
		return "", fmt.Errorf("no current/previous releases recorded")
	}

	currentPath := m.MappingFile(m.CurrentVersion)
	previousPath := m.MappingFile(m.PreviousVersion)

	if currentPath == "" || previousPath == "" {
		return "", fmt.Errorf("mapping files not found in manifest")
	}

	for _, v := range []string{m.PreviousVersion, m.CurrentVersion} {
		if err := m.Verify(v); err != nil {
			return "", err
		}
	}

	current, err := readDecisions(currentPath)
	if err != nil {
		return "", fmt.Errorf("read current mapping: %w", err)
	}

	previous, err := readDecisions(previousPath)
	if err != nil {
		return "", fmt.Errorf("read previous mapping: %w", err)
	}

	return cmp.Diff(previous, current), nil
}
