package rename

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cmmoran/jvmobf/internal/classfile"
	"github.com/cmmoran/jvmobf/internal/exclusion"
	"github.com/cmmoran/jvmobf/internal/hierarchy"
	"github.com/cmmoran/jvmobf/internal/job"
	"github.com/cmmoran/jvmobf/internal/mapping"
	"github.com/cmmoran/jvmobf/internal/registry"
)

type input struct {
	cls     *classfile.Class
	library bool
}

func app(c *classfile.Class) input { return input{cls: c} }
func lib(c *classfile.Class) input { return input{cls: c, library: true} }

func object() input { return lib(classfile.New(classfile.AccPublic, "java/lang/Object", "")) }

func newJob(t *testing.T, acceptMissing bool, rules *exclusion.Rules, in ...input) *job.Context {
	t.Helper()
	reg := registry.New()
	for _, i := range in {
		require.NoError(t, reg.Add(registry.NewDescriptor(i.cls, nil, i.library)))
	}
	return job.New(reg, rules, acceptMissing, nil, nil)
}

func members() Config {
	return Config{Fields: true, Methods: true, WidenAccess: true}
}

func method(j *job.Context, owner, name, desc string) (string, bool) {
	return j.Mapping.Method(mapping.MemberKey{Owner: registry.ClassReference(owner), Name: name, Descriptor: desc})
}

func field(j *job.Context, owner, name, desc string) (string, bool) {
	return j.Mapping.Field(mapping.MemberKey{Owner: registry.ClassReference(owner), Name: name, Descriptor: desc})
}

func TestOverrideConsistency(t *testing.T) {
	t.Parallel()

	// Registry order is alphabetical, so the second case visits Sub first.
	for _, tt := range []struct {
		name      string
		base, sub string
	}{
		{name: "base first", base: "a/Base", sub: "b/Sub"},
		{name: "sub first", base: "z/Base", sub: "b/Sub"},
	} {
		t.Run(tt.name, func(ttt *testing.T) {
			ttt.Parallel()

			base := classfile.New(classfile.AccPublic, tt.base, "java/lang/Object")
			base.AddMethod(classfile.AccPublic, "foo", "()V")
			base.AddField(classfile.AccProtected, "count", "I")
			sub := classfile.New(classfile.AccPublic, tt.sub, tt.base)
			sub.AddMethod(classfile.AccPublic, "foo", "()V")
			sub.AddField(classfile.AccProtected, "count", "I")

			j := newJob(ttt, false, nil, object(), app(base), app(sub))
			res, err := New(j, members()).Run()
			require.NoError(ttt, err)

			baseFoo, ok := method(j, tt.base, "foo", "()V")
			require.True(ttt, ok)
			subFoo, ok := method(j, tt.sub, "foo", "()V")
			require.True(ttt, ok)
			require.Equal(ttt, baseFoo, subFoo)
			require.NotEqual(ttt, "foo", baseFoo)

			baseCount, _ := field(j, tt.base, "count", "I")
			subCount, _ := field(j, tt.sub, "count", "I")
			require.Equal(ttt, baseCount, subCount)

			require.Equal(ttt, 1, res.Methods)
			require.Equal(ttt, 1, res.Fields)
			require.True(ttt, j.Mapping.Frozen())
		})
	}
}

func TestInterfaceDiamond(t *testing.T) {
	t.Parallel()

	left := classfile.New(classfile.AccPublic|classfile.AccInterface|classfile.AccAbstract, "a/Left", "java/lang/Object")
	left.AddMethod(classfile.AccPublic|classfile.AccAbstract, "run", "()V")
	right := classfile.New(classfile.AccPublic|classfile.AccInterface|classfile.AccAbstract, "a/Right", "java/lang/Object")
	right.AddMethod(classfile.AccPublic|classfile.AccAbstract, "run", "()V")
	impl := classfile.New(classfile.AccPublic, "a/Impl", "java/lang/Object", "a/Left", "a/Right")
	impl.AddMethod(classfile.AccPublic, "run", "()V")

	j := newJob(t, false, nil, object(), app(left), app(right), app(impl))
	_, err := New(j, members()).Run()
	require.NoError(t, err)

	want, _ := method(j, "a/Impl", "run", "()V")
	for _, owner := range []string{"a/Left", "a/Right"} {
		got, ok := method(j, owner, "run", "()V")
		require.True(t, ok, owner)
		require.Equal(t, want, got, owner)
	}
}

func TestLibraryBoundary(t *testing.T) {
	t.Parallel()

	libCls := classfile.New(classfile.AccPublic, "lib/Lib", "java/lang/Object")
	libCls.AddMethod(classfile.AccPublic, "bar", "()V")
	libCls.AddMethod(classfile.AccPublic, "other", "()V")

	appCls := classfile.New(classfile.AccPublic, "com/acme/App", "lib/Lib")
	appCls.AddMethod(classfile.AccPublic, "baz", "()V")
	overrider := classfile.New(classfile.AccPublic, "com/acme/Over", "com/acme/App")
	overrider.AddMethod(classfile.AccPublic, "bar", "()V")
	overrider.AddMethod(classfile.AccPublic, "baz", "()V")

	j := newJob(t, false, nil, object(), lib(libCls), app(appCls), app(overrider))
	_, err := New(j, members()).Run()
	require.NoError(t, err)

	for _, owner := range []string{"lib/Lib", "com/acme/App", "com/acme/Over"} {
		_, ok := method(j, owner, "bar", "()V")
		require.False(t, ok, owner)
	}
	appBaz, ok := method(j, "com/acme/App", "baz", "()V")
	require.True(t, ok)
	overBaz, _ := method(j, "com/acme/Over", "baz", "()V")
	require.Equal(t, appBaz, overBaz)
	// Names declared on the library ancestor are never handed out.
	require.NotContains(t, []string{"bar", "other"}, appBaz)
}

func TestNativeClassIsIdentityMapped(t *testing.T) {
	t.Parallel()

	peer := classfile.New(classfile.AccPublic, "com/acme/Peer", "java/lang/Object")
	peer.AddMethod(classfile.AccPublic, "callback", "()V")
	peer.AddField(classfile.AccProtected, "flags", "I")
	jni := classfile.New(classfile.AccPublic, "com/acme/Jni", "com/acme/Peer")
	jni.AddMethod(classfile.AccPublic|classfile.AccNative, "load", "(Ljava/lang/String;)V")
	jni.AddMethod(classfile.AccPublic, "helper", "()I")
	jni.AddField(classfile.AccPrivate, "handle", "J")
	sub := classfile.New(classfile.AccPublic, "com/acme/JniSub", "com/acme/Jni")
	sub.AddMethod(classfile.AccPublic, "helper", "()I")
	sub.AddMethod(classfile.AccPublic, "own", "()V")

	j := newJob(t, false, nil, object(), app(peer), app(jni), app(sub))
	cfg := members()
	cfg.Classes = true
	res, err := New(j, cfg).Run()
	require.NoError(t, err)
	require.Equal(t, 1, res.Native)

	to, ok := j.Mapping.Class("com/acme/Jni")
	require.True(t, ok)
	require.Equal(t, registry.ClassReference("com/acme/Jni"), to)
	for _, m := range jni.Methods {
		_, ok := method(j, "com/acme/Jni", m.Name(jni.Pool), m.Descriptor(jni.Pool))
		require.False(t, ok, m.Name(jni.Pool))
	}
	_, ok = field(j, "com/acme/Jni", "handle", "J")
	require.False(t, ok)
	// Native code may call what the class inherits, so the superclass keeps those names.
	for _, owner := range []string{"com/acme/Peer", "com/acme/Jni", "com/acme/JniSub"} {
		_, ok = method(j, owner, "callback", "()V")
		require.False(t, ok, owner)
		_, ok = field(j, owner, "flags", "I")
		require.False(t, ok, owner)
	}
	for _, e := range append(j.Mapping.Fields(), j.Mapping.Methods()...) {
		require.NotEqual(t, registry.ClassReference("com/acme/Jni"), e.Owner, e.Name)
	}

	// The override chain reaches the native class, so the subclass keeps it too.
	_, ok = method(j, "com/acme/JniSub", "helper", "()I")
	require.False(t, ok)
	_, ok = method(j, "com/acme/JniSub", "own", "()V")
	require.True(t, ok)
	// The native class pins its package, so the subclass keeps it as well.
	renamed, ok := j.Mapping.Class("com/acme/JniSub")
	require.True(t, ok)
	require.Equal(t, "com/acme", renamed.Package())
}

func TestMissingSupertype(t *testing.T) {
	t.Parallel()

	build := func() []input {
		orphan := classfile.New(classfile.AccPublic, "com/acme/Orphan", "gone/Parent")
		orphan.AddMethod(classfile.AccPublic, "run", "()V")
		orphan.AddField(classfile.AccPublic, "state", "I")
		child := classfile.New(classfile.AccPublic, "com/acme/Child", "com/acme/Orphan")
		child.AddMethod(classfile.AccPublic, "run", "()V")
		child.AddMethod(classfile.AccPublic, "own", "()V")
		healthy := classfile.New(classfile.AccPublic, "com/other/Healthy", "java/lang/Object")
		healthy.AddMethod(classfile.AccPublic, "work", "()V")
		return []input{object(), app(orphan), app(child), app(healthy)}
	}

	t.Run("fatal", func(ttt *testing.T) {
		ttt.Parallel()
		j := newJob(ttt, false, nil, build()...)
		_, err := New(j, members()).Run()
		require.ErrorIs(ttt, err, hierarchy.ErrMissingSuperClass)
	})

	t.Run("accepted", func(ttt *testing.T) {
		ttt.Parallel()
		j := newJob(ttt, true, nil, build()...)
		cfg := members()
		cfg.Classes = true
		_, err := New(j, cfg).Run()
		require.NoError(ttt, err)

		for _, owner := range []registry.ClassReference{"com/acme/Orphan", "com/acme/Child"} {
			for _, e := range append(j.Mapping.Fields(), j.Mapping.Methods()...) {
				require.NotEqual(ttt, owner, e.Owner)
			}
			_, ok := j.Mapping.Class(owner)
			require.False(ttt, ok, owner)
		}
		_, ok := method(j, "com/other/Healthy", "work", "()V")
		require.True(ttt, ok)
		_, ok = j.Mapping.Class("com/other/Healthy")
		require.True(ttt, ok)
	})
}

func TestCollisionFreedom(t *testing.T) {
	t.Parallel()

	base := classfile.New(classfile.AccPublic, "p/Base", "java/lang/Object")
	base.AddMethod(classfile.AccPublic, "<init>", "()V")
	base.AddMethod(classfile.AccPublic|classfile.AccStatic, "main", "([Ljava/lang/String;)V")
	base.AddField(classfile.AccPrivate, "x", "I")
	base.AddField(classfile.AccPrivate, "y", "I")
	base.AddField(classfile.AccPrivate, "z", "Ljava/lang/String;")
	base.AddMethod(classfile.AccPublic, "m", "()V")
	base.AddMethod(classfile.AccPublic, "m", "(I)V")
	base.AddMethod(classfile.AccPublic, "n", "()I")
	sub := classfile.New(classfile.AccPublic, "p/Sub", "p/Base")
	sub.AddMethod(classfile.AccPublic, "m", "()V")
	sub.AddMethod(classfile.AccPublic, "q", "()V")
	sub.AddField(classfile.AccPrivate, "w", "J")

	j := newJob(t, false, nil, object(), app(base), app(sub))
	_, err := New(j, members()).Run()
	require.NoError(t, err)

	for _, cls := range []*classfile.Class{base, sub} {
		owner := cls.Name()
		seen := map[string]string{}
		check := func(kind, name, desc, final string) {
			key := kind + " " + name + desc
			prev, dup := seen[final]
			require.False(t, dup, "%s: %s and %s both map to %q", owner, prev, key, final)
			seen[final] = key
		}
		for _, f := range cls.Fields {
			name, desc := f.Name(cls.Pool), f.Descriptor(cls.Pool)
			check("field", name, desc, j.Mapping.MapField(owner, name, desc))
		}
		for _, m := range cls.Methods {
			name, desc := m.Name(cls.Pool), m.Descriptor(cls.Pool)
			check("method", name, desc, j.Mapping.MapMethod(owner, name, desc))
		}
	}

	// Sub's own members must not shadow anything it inherits from Base.
	subQ, _ := method(j, "p/Sub", "q", "()V")
	for _, m := range base.Methods {
		name, desc := m.Name(base.Pool), m.Descriptor(base.Pool)
		require.NotEqual(t, j.Mapping.MapMethod("p/Base", name, desc), subQ)
	}
	_, ok := method(j, "p/Base", "<init>", "()V")
	require.False(t, ok)
	_, ok = method(j, "p/Base", "main", "([Ljava/lang/String;)V")
	require.False(t, ok)
}

func TestReservedMembers(t *testing.T) {
	t.Parallel()

	enum := classfile.New(classfile.AccPublic|classfile.AccEnum|classfile.AccFinal, "p/Color", "java/lang/Enum")
	enum.AddMethod(classfile.AccPublic|classfile.AccStatic, "values", "()[Lp/Color;")
	enum.AddMethod(classfile.AccPublic|classfile.AccStatic, "valueOf", "(Ljava/lang/String;)Lp/Color;")
	enum.AddMethod(classfile.AccPublic, "shade", "()I")

	ann := classfile.New(classfile.AccPublic|classfile.AccInterface|classfile.AccAbstract|classfile.AccAnnotation,
		"p/Marker", "java/lang/Object", "java/lang/annotation/Annotation")
	ann.AddMethod(classfile.AccPublic|classfile.AccAbstract, "value", "()Ljava/lang/String;")
	ann.AddMethod(classfile.AccPublic|classfile.AccAbstract, "level", "()I")

	ser := classfile.New(classfile.AccPublic, "p/Data", "java/lang/Object", "java/io/Serializable")
	ser.AddField(classfile.AccPrivate|classfile.AccStatic|classfile.AccFinal, "serialVersionUID", "J")
	ser.AddField(classfile.AccPrivate, "payload", "[B")
	ser.AddMethod(classfile.AccPrivate, "writeObject", "(Ljava/io/ObjectOutputStream;)V")
	ser.AddMethod(classfile.AccPrivate, "readResolve", "()Ljava/lang/Object;")

	j := newJob(t, false, nil,
		object(),
		lib(classfile.New(classfile.AccPublic|classfile.AccAbstract, "java/lang/Enum", "java/lang/Object")),
		lib(classfile.New(classfile.AccPublic|classfile.AccInterface, "java/lang/annotation/Annotation", "java/lang/Object")),
		lib(classfile.New(classfile.AccPublic|classfile.AccInterface, "java/io/Serializable", "java/lang/Object")),
		app(enum), app(ann), app(ser),
	)
	_, err := New(j, members()).Run()
	require.NoError(t, err)

	for _, tt := range []struct {
		owner, name, desc string
		renamed           bool
	}{
		{owner: "p/Color", name: "values", desc: "()[Lp/Color;"},
		{owner: "p/Color", name: "valueOf", desc: "(Ljava/lang/String;)Lp/Color;"},
		{owner: "p/Color", name: "shade", desc: "()I", renamed: true},
		{owner: "p/Marker", name: "value", desc: "()Ljava/lang/String;"},
		{owner: "p/Marker", name: "level", desc: "()I"},
		{owner: "p/Data", name: "writeObject", desc: "(Ljava/io/ObjectOutputStream;)V"},
		{owner: "p/Data", name: "readResolve", desc: "()Ljava/lang/Object;"},
	} {
		_, ok := method(j, tt.owner, tt.name, tt.desc)
		require.Equal(t, tt.renamed, ok, "%s.%s%s", tt.owner, tt.name, tt.desc)
	}
	_, ok := field(j, "p/Data", "serialVersionUID", "J")
	require.False(t, ok)
	_, ok = field(j, "p/Data", "payload", "[B")
	require.True(t, ok)
}

func TestExclusions(t *testing.T) {
	t.Parallel()

	rules, err := exclusion.NewRules(
		[]string{"# public api\ncom.acme.api.**"},
		[]string{"com.acme.core.Service.keep*"},
		[]string{"com.acme.core.*/id"},
	)
	require.NoError(t, err)

	api := classfile.New(classfile.AccPublic|classfile.AccInterface|classfile.AccAbstract, "com/acme/api/v1/Handler", "java/lang/Object")
	api.AddMethod(classfile.AccPublic|classfile.AccAbstract, "handle", "()V")
	svc := classfile.New(classfile.AccPublic, "com/acme/core/Service", "java/lang/Object", "com/acme/api/v1/Handler")
	svc.AddMethod(classfile.AccPublic, "handle", "()V")
	svc.AddMethod(classfile.AccPublic, "keepAlive", "()V")
	svc.AddMethod(classfile.AccPublic, "drop", "()V")
	svc.AddField(classfile.AccPrivate, "id", "J")
	svc.AddField(classfile.AccPrivate, "size", "I")

	base := classfile.New(classfile.AccPublic, "com/acme/impl/Base", "java/lang/Object")
	base.AddMethod(classfile.AccPublic, "doIt", "()V")
	widget := classfile.New(classfile.AccPublic, "com/acme/api/Widget", "com/acme/impl/Base")
	other := classfile.New(classfile.AccPublic, "com/acme/impl/Other", "com/acme/impl/Base")
	other.AddMethod(classfile.AccPublic, "own", "()V")

	j := newJob(t, false, rules, object(), app(api), app(svc), app(base), app(widget), app(other))
	cfg := members()
	cfg.Classes = true
	_, err = New(j, cfg).Run()
	require.NoError(t, err)

	_, ok := j.Mapping.Class("com/acme/api/v1/Handler")
	require.False(t, ok)
	_, ok = method(j, "com/acme/core/Service", "handle", "()V")
	require.False(t, ok, "implements an excluded interface method")
	_, ok = method(j, "com/acme/core/Service", "keepAlive", "()V")
	require.False(t, ok)
	_, ok = method(j, "com/acme/core/Service", "drop", "()V")
	require.True(t, ok)
	_, ok = field(j, "com/acme/core/Service", "id", "J")
	require.False(t, ok)
	_, ok = field(j, "com/acme/core/Service", "size", "I")
	require.True(t, ok)

	// The excluded Widget exposes the doIt it inherits, so Base keeps that name.
	for _, owner := range []string{"com/acme/impl/Base", "com/acme/api/Widget", "com/acme/impl/Other"} {
		_, ok = method(j, owner, "doIt", "()V")
		require.False(t, ok, owner)
	}
	for _, e := range j.Mapping.Methods() {
		require.NotEqual(t, registry.ClassReference("com/acme/api/Widget"), e.Owner, e.Name)
	}
	// Members the excluded class never sees are still renamed.
	_, ok = method(j, "com/acme/impl/Other", "own", "()V")
	require.True(t, ok)
}

func TestWidenAccess(t *testing.T) {
	t.Parallel()

	cls := classfile.New(0, "p/Hidden", "java/lang/Object")
	pkgPrivate := cls.AddMethod(0, "a", "()V")
	protected := cls.AddField(classfile.AccProtected|classfile.AccStatic, "b", "I")
	private := cls.AddMethod(classfile.AccPrivate, "c", "()V")

	j := newJob(t, false, nil, object(), app(cls))
	res, err := New(j, Config{WidenAccess: true}).Run()
	require.NoError(t, err)

	require.True(t, cls.Is(classfile.AccPublic))
	require.Equal(t, uint16(classfile.AccPublic), pkgPrivate.AccessFlags)
	require.Equal(t, uint16(classfile.AccPublic|classfile.AccStatic), protected.AccessFlags)
	require.Equal(t, uint16(classfile.AccPrivate), private.AccessFlags)
	require.Equal(t, 2, res.Widened)
}

func TestRenameMembersIsIdempotent(t *testing.T) {
	t.Parallel()

	base := classfile.New(classfile.AccPublic, "p/Base", "java/lang/Object")
	base.AddMethod(classfile.AccPublic, "foo", "()V")
	sub := classfile.New(classfile.AccPublic, "p/Sub", "p/Base")
	sub.AddMethod(classfile.AccPublic, "foo", "()V")
	j := newJob(t, false, nil, object(), app(base), app(sub))

	e := New(j, members())
	names, err := NewNames(Alphabet, 7)
	require.NoError(t, err)
	e.names = names
	for _, d := range j.Registry.Application() {
		_, err := j.Hierarchy.Build(d)
		require.NoError(t, err)
	}
	baseDesc, _ := j.Registry.Get("p/Base")
	subDesc, _ := j.Registry.Get("p/Sub")

	require.NoError(t, e.renameMembers(subDesc, methodKind))
	first := j.Mapping.Methods()
	require.NoError(t, e.renameMembers(baseDesc, methodKind))
	require.NoError(t, e.renameMembers(subDesc, methodKind))
	require.Equal(t, first, j.Mapping.Methods())
	require.Equal(t, 1, e.result.Methods)
}

func nestHost(c *classfile.Class, host string) {
	data := binary.BigEndian.AppendUint16(nil, c.Pool.AddClass(host))
	c.Attributes = c.AddAttribute(c.Attributes, classfile.AttrNestHost, data)
}

func nestMembers(c *classfile.Class, members ...string) {
	data := binary.BigEndian.AppendUint16(nil, uint16(len(members)))
	for _, m := range members {
		data = binary.BigEndian.AppendUint16(data, c.Pool.AddClass(m))
	}
	c.Attributes = c.AddAttribute(c.Attributes, classfile.AttrNestMembers, data)
}

func classInputs() []input {
	outer := classfile.New(classfile.AccPublic, "com/acme/Outer", "java/lang/Object")
	nestMembers(outer, "com/acme/Outer$In")
	inner := classfile.New(classfile.AccPublic, "com/acme/Outer$In", "java/lang/Object")
	nestHost(inner, "com/acme/Outer")
	return []input{
		object(),
		app(outer), app(inner),
		app(classfile.New(classfile.AccPublic, "com/acme/Main", "java/lang/Object")),
		app(classfile.New(classfile.AccPublic, "com/other/Util", "java/lang/Object")),
		app(classfile.New(classfile.AccPublic, "com/kept/Api", "java/lang/Object")),
		app(classfile.New(classfile.AccPublic, "com/kept/Impl", "java/lang/Object")),
	}
}

func TestClassRename(t *testing.T) {
	t.Parallel()

	rules, err := exclusion.NewRules([]string{"com.kept.Api"}, nil, nil)
	require.NoError(t, err)

	for _, tt := range []struct {
		name  string
		cfg   Config
		check func(t *testing.T, pkgOf func(string) string)
	}{
		{
			name: "keep",
			cfg:  Config{Classes: true, Repackage: Keep},
			check: func(t *testing.T, pkgOf func(string) string) {
				require.Equal(t, "com/acme", pkgOf("com/acme/Outer"))
				require.Equal(t, "com/other", pkgOf("com/other/Util"))
			},
		},
		{
			name: "flatten",
			cfg:  Config{Classes: true, Repackage: Flatten, TargetPackage: "x.y"},
			check: func(t *testing.T, pkgOf func(string) string) {
				for _, c := range []string{"com/acme/Outer", "com/acme/Outer$In", "com/acme/Main", "com/other/Util"} {
					require.Equal(t, "x/y", pkgOf(c), c)
				}
			},
		},
		{
			name: "random",
			cfg:  Config{Classes: true, Repackage: Random, PackagePool: 3, TargetPackage: "r"},
			check: func(t *testing.T, pkgOf func(string) string) {
				require.Equal(t, pkgOf("com/acme/Outer"), pkgOf("com/acme/Outer$In"))
				require.Equal(t, pkgOf("com/acme/Outer"), pkgOf("com/acme/Main"))
				require.Equal(t, "r", registry.ClassReference(pkgOf("com/other/Util")).Package())
			},
		},
	} {
		t.Run(tt.name, func(ttt *testing.T) {
			ttt.Parallel()

			j := newJob(ttt, false, rules, classInputs()...)
			tt.cfg.MainClass = "com/acme/Main"
			res, err := New(j, tt.cfg).Run()
			require.NoError(ttt, err)
			require.Equal(ttt, 5, res.Classes)

			pkgOf := func(ref string) string {
				to, ok := j.Mapping.Class(registry.ClassReference(ref))
				require.True(ttt, ok, ref)
				require.NotEqual(ttt, registry.ClassReference(ref), to)
				return to.Package()
			}
			tt.check(ttt, pkgOf)

			main, _ := j.Mapping.Class("com/acme/Main")
			require.Equal(ttt, main, res.MainClass)

			// The excluded class keeps its name and pins its package.
			_, ok := j.Mapping.Class("com/kept/Api")
			require.False(ttt, ok)
			require.Equal(ttt, "com/kept", pkgOf("com/kept/Impl"))

			targets := map[registry.ClassReference]bool{}
			for _, e := range j.Mapping.Classes() {
				require.False(ttt, targets[e.New], "duplicate target %s", e.New)
				targets[e.New] = true
			}
		})
	}
}

func TestFreshNameSuffix(t *testing.T) {
	t.Parallel()

	names, err := NewNames(Alphabet, 1)
	require.NoError(t, err)
	first := "p/" + names.Name(0)
	cn := &classNamer{
		taken:    map[registry.ClassReference]struct{}{registry.ClassReference(first): {}, registry.ClassReference(first + "$1"): {}},
		counters: map[string]int{},
	}
	require.Equal(t, registry.ClassReference(first+"$2"), cn.fresh("p", names))
	require.Equal(t, registry.ClassReference("p/"+names.Name(1)), cn.fresh("p", names))
	require.Equal(t, registry.ClassReference(names.Name(0)), cn.fresh("", names))
}

func TestNames(t *testing.T) {
	t.Parallel()

	n, err := NewNames(Alphabet, 42)
	require.NoError(t, err)
	seen := map[string]bool{}
	for i := range 26 + 26*26 {
		name := n.Name(i)
		require.False(t, seen[name], name)
		seen[name] = true
		if i < 26 {
			require.Len(t, name, 1)
		} else {
			require.Len(t, name, 2)
		}
	}

	again, _ := NewNames(Alphabet, 42)
	require.Equal(t, n.Name(100), again.Name(100))

	confusable, err := NewNames(Confusable, 42)
	require.NoError(t, err)
	require.Regexp(t, `^[Il]+$`, confusable.Name(57))

	_, err = NewNames("emoji", 1)
	require.Error(t, err)

	require.Equal(t,
		DeriveSeed([]registry.ClassReference{"a/B", "c/D"}),
		DeriveSeed([]registry.ClassReference{"c/D", "a/B"}),
	)
}
