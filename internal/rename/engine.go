// Package rename decides new names for classes, fields and methods so that
// every class sharing a member through inheritance agrees on its new name.
//
// The engine is single threaded: it reads and writes the hierarchy cache and
// the mapping table with cross-class dependencies, and it finishes by freezing
// the table for the parallel remapping phase.
package rename

import (
	"fmt"
	"math/rand/v2"

	"github.com/cmmoran/jvmobf/internal/classfile"
	"github.com/cmmoran/jvmobf/internal/hierarchy"
	"github.com/cmmoran/jvmobf/internal/job"
	"github.com/cmmoran/jvmobf/internal/registry"
)

// Repackage controls where renamed classes go.
type Repackage string

const (
	// Keep leaves renamed classes in their original package.
	Keep Repackage = "keep"
	// Flatten moves every renamed class into Config.TargetPackage.
	Flatten Repackage = "flatten"
	// Random spreads renamed classes over a pool of generated packages.
	Random Repackage = "random"
)

type Config struct {
	Classes bool
	Methods bool
	Fields  bool
	// WidenAccess makes renamed classes and their non-private members public
	// so they stay reachable after moving packages.
	WidenAccess bool

	Repackage     Repackage
	TargetPackage string
	PackagePool   int

	Dictionary Dictionary
	// Seed 0 derives a seed from the input class set.
	Seed uint64

	// MainClass is the launch entry point; its rename is reported in Result.
	MainClass registry.ClassReference
}

// Result summarizes one rename pass.
type Result struct {
	// MainClass is the new name of Config.MainClass, "" when it kept its name.
	MainClass registry.ClassReference
	Classes   int
	Fields    int
	Methods   int
	Native    int
	Widened   int
}

type Engine struct {
	job   *job.Context
	cfg   Config
	names *Names
	rnd   *rand.Rand

	// frozen classes keep their name and every member name.
	frozen   map[registry.ClassReference]string
	occupied map[registry.ClassReference]map[string]struct{}
	result   Result
}

func New(j *job.Context, cfg Config) *Engine {
	return &Engine{
		job:      j,
		cfg:      cfg,
		frozen:   make(map[registry.ClassReference]string),
		occupied: make(map[registry.ClassReference]map[string]struct{}),
	}
}

// Run executes the whole pass and freezes the mapping table. It is meant to
// run once per job, after every class is registered.
func (e *Engine) Run() (*Result, error) {
	l := e.job.Log
	apps := e.job.Registry.Application()

	seed := e.cfg.Seed
	if seed == 0 {
		refs := make([]registry.ClassReference, len(apps))
		for i, d := range apps {
			refs[i] = d.Ref
		}
		seed = DeriveSeed(refs)
	}
	names, err := NewNames(e.cfg.Dictionary, seed)
	if err != nil {
		return nil, err
	}
	e.names = names
	e.rnd = rand.New(rand.NewPCG(seed, ^seed))

	for _, d := range apps {
		if _, err := e.job.Hierarchy.Build(d); err != nil {
			return nil, fmt.Errorf("build hierarchy: %w", err)
		}
	}

	for _, d := range apps {
		switch {
		case e.job.Rules.ClassExcluded(string(d.Ref)):
			e.frozen[d.Ref] = "excluded"
		case !e.job.Enabled(d.Ref):
			e.frozen[d.Ref] = "disabled"
		case e.node(d.Ref).MissingSuperClass:
			e.frozen[d.Ref] = "missing supertype"
		case d.Class.HasNativeMethod():
			e.frozen[d.Ref] = "native"
			if _, err := e.job.Mapping.PutClass(d.Ref, d.Ref); err != nil {
				return nil, err
			}
			e.result.Native++
		}
		if reason, ok := e.frozen[d.Ref]; ok {
			l.With("class", d.Ref, "reason", reason).Debug("class kept")
			continue
		}
		if e.cfg.WidenAccess {
			e.widen(d.Class)
		}
	}

	if e.cfg.Fields {
		for _, d := range apps {
			if err := e.renameMembers(d, fieldKind); err != nil {
				return nil, err
			}
		}
	}
	if e.cfg.Methods {
		for _, d := range apps {
			if err := e.renameMembers(d, methodKind); err != nil {
				return nil, err
			}
		}
	}
	if e.cfg.Classes {
		if err := e.renameClasses(apps); err != nil {
			return nil, err
		}
	}

	e.job.Mapping.Freeze()
	l.With("classes", e.result.Classes, "fields", e.result.Fields, "methods", e.result.Methods,
		"native", e.result.Native, "widened", e.result.Widened).Info("rename pass done")
	return &e.result, nil
}

func (e *Engine) node(ref registry.ClassReference) *hierarchy.Node {
	n, _ := e.job.Hierarchy.Get(ref)
	return n
}

// widen drops private/protected from the class and makes non-private members public.
func (e *Engine) widen(cls *classfile.Class) {
	const hide = classfile.AccPrivate | classfile.AccProtected
	cls.AccessFlags = cls.AccessFlags&^hide | classfile.AccPublic
	for _, members := range [][]*classfile.Member{cls.Fields, cls.Methods} {
		for _, m := range members {
			if m.Is(classfile.AccPrivate) || m.Is(classfile.AccPublic) {
				continue
			}
			m.AccessFlags = m.AccessFlags&^classfile.AccProtected | classfile.AccPublic
			e.result.Widened++
		}
	}
}

// occupiedNames returns every name declared on ref plus the names already
// handed out to it.
func (e *Engine) occupiedNames(n *hierarchy.Node) map[string]struct{} {
	if set, ok := e.occupied[n.Ref]; ok {
		return set
	}
	set := make(map[string]struct{})
	cls := n.Class.Class
	for _, members := range [][]*classfile.Member{cls.Fields, cls.Methods} {
		for _, m := range members {
			set[m.Name(cls.Pool)] = struct{}{}
		}
	}
	e.occupied[n.Ref] = set
	return set
}
