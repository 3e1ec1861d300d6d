package jar

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/require"

	"github.com/cmmoran/jvmobf/internal/classfile"
	"github.com/cmmoran/jvmobf/internal/registry"
)

func classBytes(t *testing.T, name, super string) []byte {
	t.Helper()
	raw, err := classfile.New(classfile.AccPublic, name, super).Bytes()
	require.NoError(t, err)
	return raw
}

func zipBytes(t *testing.T, files map[string][]byte, order ...string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range order {
		fw, err := zw.Create(name)
		require.NoError(t, err)
		_, err = fw.Write(files[name])
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

const manifest = "Manifest-Version: 1.0\r\nMain-Class: com.acme.Main\r\nCreated-By: test\r\n\r\n"

func writeInputs(t *testing.T) (dir, appJar, libJmod string) {
	t.Helper()
	dir = t.TempDir()

	appJar = filepath.Join(dir, "app.jar")
	require.NoError(t, os.WriteFile(appJar, zipBytes(t, map[string][]byte{
		"META-INF/MANIFEST.MF":       []byte(manifest),
		"META-INF/APP.SF":            []byte("signature"),
		"com/acme/Main.class":        classBytes(t, "com/acme/Main", "java/lang/Object"),
		"com/acme/config.properties": []byte("a=b"),
		"module-info.class":          []byte("not parsed"),
	}, "META-INF/MANIFEST.MF", "META-INF/APP.SF", "com/acme/Main.class", "com/acme/config.properties", "module-info.class"), 0o644))

	payload := zipBytes(t, map[string][]byte{
		"classes/java/lang/Object.class": classBytes(t, "java/lang/Object", ""),
		"classes/module-info.class":      []byte("not parsed"),
		"legal/LICENSE":                  []byte("license"),
	}, "classes/java/lang/Object.class", "classes/module-info.class", "legal/LICENSE")
	libJmod = filepath.Join(dir, "java.base.jmod")
	require.NoError(t, os.WriteFile(libJmod, append(append([]byte{}, jmodMagic...), payload...), 0o644))
	return dir, appJar, libJmod
}

func TestOpen(t *testing.T) {
	t.Parallel()

	_, appJar, libJmod := writeInputs(t)

	a, err := Open(appJar)
	require.NoError(t, err)
	require.Len(t, a.Classes, 1)
	require.Equal(t, "com/acme/Main.class", a.Classes[0].Name)
	var names []string
	for _, r := range a.Resources {
		names = append(names, r.Name)
	}
	require.Empty(t, cmp.Diff([]string{"META-INF/MANIFEST.MF", "META-INF/APP.SF", "com/acme/config.properties", "module-info.class"}, names))
	mf, ok := a.Manifest()
	require.True(t, ok)
	require.Equal(t, "com/acme/Main", MainClass(mf))

	jm, err := Open(libJmod)
	require.NoError(t, err)
	require.Len(t, jm.Classes, 1)
	require.Equal(t, "java/lang/Object.class", jm.Classes[0].Name)

	_, err = Open(filepath.Join(t.TempDir(), "notes.txt"))
	require.Error(t, err)
}

func TestOpenDirectory(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "com", "acme"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "com", "acme", "Util.class"), classBytes(t, "com/acme/Util", "java/lang/Object"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "readme.txt"), []byte("hi"), 0o644))

	a, err := Open(dir)
	require.NoError(t, err)
	require.Len(t, a.Classes, 1)
	require.Equal(t, "com/acme/Util.class", a.Classes[0].Name)
	require.Len(t, a.Resources, 1)
}

func TestLoadAndWrite(t *testing.T) {
	t.Parallel()

	dir, appJar, libJmod := writeInputs(t)
	reg := registry.New()
	ld := NewLoader(reg, nil)

	require.NoError(t, ld.Libraries(context.Background(), libJmod))
	resources, err := ld.Application(context.Background(), appJar)
	require.NoError(t, err)
	require.Len(t, reg.Application(), 1)
	require.Len(t, reg.Libraries(), 1)

	// Simulate a rename of the entry point.
	main, _ := reg.Get("com/acme/Main")
	main.Class.Pool.SetClassName(main.Class.ThisClass, "a/a")
	renamed := registry.New()
	renamed.Put(registry.NewDescriptor(main.Class, main.Raw, false))

	out := filepath.Join(dir, "out.jar")
	require.NoError(t, WriteFile(out, Output{Registry: renamed, Resources: resources, MainClass: "a/a"}))

	written, err := Open(out)
	require.NoError(t, err)
	var names []string
	for _, e := range append(written.Resources, written.Classes...) {
		names = append(names, e.Name)
	}
	require.Empty(t, cmp.Diff([]string{
		"META-INF/MANIFEST.MF",
		"com/acme/config.properties",
		"module-info.class",
		"a/a.class",
	}, names))
	mf, ok := written.Manifest()
	require.True(t, ok)
	require.Equal(t, "a/a", MainClass(mf))
	require.Contains(t, string(mf), "Created-By: test\r\n")
}

func TestDuplicateApplicationClass(t *testing.T) {
	t.Parallel()

	_, appJar, _ := writeInputs(t)
	ld := NewLoader(registry.New(), nil)
	_, err := ld.Application(context.Background(), appJar, appJar)
	require.ErrorContains(t, err, "duplicate class")
}

func TestRewriteMainClass(t *testing.T) {
	t.Parallel()

	long := "com/acme/" + string(bytes.Repeat([]byte("x"), 80))
	for _, tt := range []struct {
		name, in, main, want string
	}{
		{
			name: "simple",
			in:   manifest,
			main: "a/b",
			want: "Manifest-Version: 1.0\r\nMain-Class: a.b\r\nCreated-By: test\r\n\r\n",
		},
		{
			name: "continuation",
			in:   "Manifest-Version: 1.0\nMain-Class: com.acme\n .Main\n\nName: x\nMain-Class: other\n",
			main: "z",
			want: "Manifest-Version: 1.0\r\nMain-Class: z\r\n\r\nName: x\r\nMain-Class: other\r\n\r\n",
		},
		{
			name: "no header",
			in:   "Manifest-Version: 1.0\r\n\r\n",
			main: "a/b",
			want: "Manifest-Version: 1.0\r\n\r\n",
		},
	} {
		t.Run(tt.name, func(ttt *testing.T) {
			ttt.Parallel()
			require.Empty(ttt, cmp.Diff(tt.want, string(RewriteMainClass([]byte(tt.in), tt.main))))
		})
	}

	folded := RewriteMainClass([]byte(manifest), long)
	for _, line := range bytes.Split(folded, []byte("\r\n")) {
		require.LessOrEqual(t, len(line), manifestLineLimit)
	}
	require.Equal(t, long, MainClass(folded))
}
