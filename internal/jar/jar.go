// Package jar reads class inputs from jars, jmods and directories and writes
// the obfuscated jar.
package jar

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/zip"
)

const (
	classSuffix    = ".class"
	manifestName   = "META-INF/MANIFEST.MF"
	jmodClassesDir = "classes/"
	versionsDir    = "META-INF/versions/"
)

// jmodMagic precedes the zip payload of a jmod file.
var jmodMagic = []byte{'J', 'M', 1, 0}

var ErrUnsupportedInput = errors.New("unsupported input")

// Entry is one file of an input or output archive.
type Entry struct {
	Name     string
	Data     []byte
	Modified time.Time
}

// Class reports whether e holds a class file that should be loaded.
// module-info and multi-release variants are carried as resources.
func (e Entry) Class() bool {
	return strings.HasSuffix(e.Name, classSuffix) &&
		!strings.HasSuffix(e.Name, "module-info.class") &&
		!strings.HasPrefix(e.Name, versionsDir)
}

// Archive is the flattened content of one input path.
type Archive struct {
	Path      string
	Classes   []Entry
	Resources []Entry
}

// Manifest returns the manifest entry, if any.
func (a *Archive) Manifest() ([]byte, bool) { return Manifest(a.Resources) }

// Manifest returns the data of the first manifest among entries.
func Manifest(entries []Entry) ([]byte, bool) {
	for _, r := range entries {
		if r.Name == manifestName {
			return r.Data, true
		}
	}
	return nil, false
}

// Open reads a jar, a jmod or a directory. Directories are walked; nested
// jars and jmods are opened as well and merged in walk order.
func Open(path string) (*Archive, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	a := &Archive{Path: path}
	if fi.IsDir() {
		err = a.addDir(path)
	} else {
		err = a.addFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return a, nil
}

func (a *Archive) add(e Entry) {
	if e.Class() {
		a.Classes = append(a.Classes, e)
		return
	}
	a.Resources = append(a.Resources, e)
}

func (a *Archive) addFile(path string) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jar", ".zip", ".war":
		return a.addZip(path, 0, "")
	case ".jmod":
		return a.addZip(path, int64(len(jmodMagic)), jmodClassesDir)
	case classSuffix:
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		a.Classes = append(a.Classes, Entry{Name: filepath.Base(path), Data: data})
		return nil
	}
	return fmt.Errorf("%w: %s", ErrUnsupportedInput, path)
}

func (a *Archive) addDir(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".jar", ".jmod":
			return a.addFile(path)
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		a.add(Entry{Name: filepath.ToSlash(rel), Data: data, Modified: info.ModTime()})
		return nil
	})
}

// addZip reads the zip payload starting at offset. With a prefix, only
// entries below it are kept and the prefix is cut off their names.
func (a *Archive) addZip(path string, offset int64, prefix string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	fi, err := f.Stat()
	if err != nil {
		return err
	}
	if offset > 0 {
		head := make([]byte, offset)
		if _, err := io.ReadFull(f, head); err != nil {
			return err
		}
		if !bytes.Equal(head, jmodMagic) {
			return fmt.Errorf("%w: %s is not a jmod", ErrUnsupportedInput, path)
		}
	}
	zr, err := zip.NewReader(io.NewSectionReader(f, offset, fi.Size()-offset), fi.Size()-offset)
	if err != nil {
		return err
	}
	for _, zf := range zr.File {
		if zf.FileInfo().IsDir() {
			continue
		}
		name := zf.Name
		if prefix != "" {
			if !strings.HasPrefix(name, prefix) {
				continue
			}
			name = strings.TrimPrefix(name, prefix)
		}
		data, err := readZipFile(zf)
		if err != nil {
			return fmt.Errorf("%s: %w", zf.Name, err)
		}
		a.add(Entry{Name: name, Data: data, Modified: zf.Modified})
	}
	return nil
}

func readZipFile(zf *zip.File) ([]byte, error) {
	rc, err := zf.Open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()
	return io.ReadAll(rc)
}
