package hierarchy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cmmoran/jvmobf/internal/classfile"
	"github.com/cmmoran/jvmobf/internal/pipeline"
	"github.com/cmmoran/jvmobf/internal/registry"
)

type classDef struct {
	name, super string
	ifaces      []string
	library     bool
}

func buildRegistry(t *testing.T, defs ...classDef) *registry.Registry {
	t.Helper()
	reg := registry.New()
	for _, s := range defs {
		cls := classfile.New(classfile.AccPublic, s.name, s.super, s.ifaces...)
		require.NoError(t, reg.Add(registry.NewDescriptor(cls, nil, s.library)))
	}
	return reg
}

func get(t *testing.T, reg *registry.Registry, ref registry.ClassReference) *registry.ClassDescriptor {
	t.Helper()
	d, ok := reg.Get(ref)
	require.True(t, ok, ref)
	return d
}

func TestBuildIsIdempotent(t *testing.T) {
	t.Parallel()

	reg := buildRegistry(t,
		classDef{name: "java/lang/Object", library: true},
		classDef{name: "a/Base", super: "java/lang/Object"},
	)
	c := NewCache(reg, false, nil)
	first, err := c.Build(get(t, reg, "a/Base"))
	require.NoError(t, err)
	second, err := c.Build(get(t, reg, "a/Base"))
	require.NoError(t, err)
	require.Same(t, first, second)
	require.Equal(t, 2, c.Len())
}

func TestBuildIsBidirectional(t *testing.T) {
	t.Parallel()

	reg := buildRegistry(t,
		classDef{name: "java/lang/Object", library: true},
		classDef{name: "java/lang/Runnable", super: "java/lang/Object", library: true},
		classDef{name: "a/Base", super: "java/lang/Object"},
		classDef{name: "a/Sub", super: "a/Base", ifaces: []string{"java/lang/Runnable"}},
		classDef{name: "a/Other", super: "a/Base"},
	)
	c := NewCache(reg, false, nil)
	sub, err := c.Build(get(t, reg, "a/Sub"))
	require.NoError(t, err)
	_, err = c.Build(get(t, reg, "a/Other"))
	require.NoError(t, err)

	require.Equal(t, []registry.ClassReference{"a/Base", "java/lang/Runnable"}, sub.SortedParents())
	base, ok := c.Get("a/Base")
	require.True(t, ok)
	require.Equal(t, []registry.ClassReference{"a/Other", "a/Sub"}, base.SortedSubs())
	require.Equal(t, []registry.ClassReference{"java/lang/Object"}, base.SortedParents())

	runnable, _ := c.Get("java/lang/Runnable")
	require.True(t, runnable.Library())
	require.Equal(t, []registry.ClassReference{"a/Sub"}, runnable.SortedSubs())

	// A requesting subtype is recorded even when the node already exists.
	extra, err := c.BuildFrom(get(t, reg, "a/Base"), "a/Late")
	require.NoError(t, err)
	require.Same(t, base, extra)
	require.Contains(t, base.Subs, registry.ClassReference("a/Late"))
}

func TestMissingSuperClassIsFatal(t *testing.T) {
	t.Parallel()

	reg := buildRegistry(t, classDef{name: "a/Orphan", super: "gone/Parent"})
	_, err := NewCache(reg, false, nil).Build(get(t, reg, "a/Orphan"))
	require.ErrorIs(t, err, ErrMissingSuperClass)
	require.ErrorContains(t, err, "gone/Parent")
}

func TestMissingSuperClassTaintsSubtree(t *testing.T) {
	t.Parallel()

	reg := buildRegistry(t,
		classDef{name: "a/Orphan", super: "gone/Parent"},
		classDef{name: "a/Child", super: "a/Orphan"},
		classDef{name: "a/GrandChild", super: "a/Child"},
		classDef{name: "a/Clean", super: ""},
	)
	c := NewCache(reg, true, nil)
	grand, err := c.Build(get(t, reg, "a/GrandChild"))
	require.NoError(t, err)
	require.True(t, grand.MissingSuperClass)

	orphan, _ := c.Get("a/Orphan")
	require.True(t, orphan.MissingSuperClass)
	require.Empty(t, orphan.Parents)

	clean, err := c.Build(get(t, reg, "a/Clean"))
	require.NoError(t, err)
	require.False(t, clean.MissingSuperClass)
}

func TestCyclicHierarchy(t *testing.T) {
	t.Parallel()

	reg := buildRegistry(t,
		classDef{name: "a/A", super: "a/B"},
		classDef{name: "a/B", super: "a/A"},
	)
	_, err := NewCache(reg, false, nil).Build(get(t, reg, "a/A"))
	require.ErrorIs(t, err, ErrCyclicHierarchy)
}

func TestProcessorBuildsConcurrently(t *testing.T) {
	t.Parallel()

	specs := []classDef{{name: "java/lang/Object", library: true}, {name: "a/Root", super: "java/lang/Object"}}
	prev := "a/Root"
	for _, n := range []string{"a/L1", "a/L2", "a/L3", "a/L4", "a/L5", "a/L6"} {
		specs = append(specs, classDef{name: n, super: prev}, classDef{name: n + "x", super: prev})
		prev = n
	}
	reg := buildRegistry(t, specs...)
	c := NewCache(reg, false, nil)

	_, err := (&pipeline.Pipeline{Threads: 4}).Run(context.Background(), reg, c.Processor())
	require.NoError(t, err)
	require.Equal(t, reg.Len(), c.Len())

	l3, _ := c.Get("a/L3")
	require.Equal(t, []registry.ClassReference{"a/L4", "a/L4x"}, l3.SortedSubs())
}
