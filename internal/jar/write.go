package jar

import (
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"

	"github.com/cmmoran/jvmobf/internal/registry"
)

// Output describes what goes into the written jar.
type Output struct {
	Registry  *registry.Registry
	Resources []Entry
	// MainClass, when set, replaces the manifest's Main-Class header.
	MainClass registry.ClassReference
}

// signatureFile reports jar signing artifacts, which no longer verify once
// classes change.
func signatureFile(name string) bool {
	dir, file := path.Split(name)
	if dir != "META-INF/" {
		return false
	}
	switch strings.ToUpper(path.Ext(file)) {
	case ".SF", ".RSA", ".DSA", ".EC":
		return true
	}
	return strings.HasPrefix(strings.ToUpper(file), "SIG-")
}

// Write emits the manifest first, then the other resources in input order,
// then every application class sorted by name.
func Write(w io.Writer, out Output) error {
	zw := zip.NewWriter(w)
	resources := make([]Entry, 0, len(out.Resources))
	for _, r := range out.Resources {
		if signatureFile(r.Name) {
			continue
		}
		if r.Name == manifestName {
			if out.MainClass != "" {
				r.Data = RewriteMainClass(r.Data, string(out.MainClass))
			}
			resources = append([]Entry{r}, resources...)
			continue
		}
		resources = append(resources, r)
	}
	for _, r := range resources {
		if err := writeEntry(zw, r); err != nil {
			return err
		}
	}
	for _, d := range out.Registry.Application() {
		data, err := d.Class.Bytes()
		if err != nil {
			return fmt.Errorf("serialize %s: %w", d.Ref, err)
		}
		if err := writeEntry(zw, Entry{Name: string(d.Ref) + classSuffix, Data: data}); err != nil {
			return err
		}
	}
	return zw.Close()
}

func writeEntry(zw *zip.Writer, e Entry) error {
	fw, err := zw.CreateHeader(&zip.FileHeader{Name: e.Name, Method: zip.Deflate, Modified: e.Modified})
	if err != nil {
		return fmt.Errorf("create %s: %w", e.Name, err)
	}
	if _, err := fw.Write(e.Data); err != nil {
		return fmt.Errorf("write %s: %w", e.Name, err)
	}
	return nil
}

// WriteFile writes the jar to name, replacing it only once fully written.
func WriteFile(name string, out Output) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(name), ".jvmobf-*.jar")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()
	if err = Write(tmp, out); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), name)
}
