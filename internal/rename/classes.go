package rename

import (
	"strconv"
	"strings"

	"github.com/cmmoran/jvmobf/internal/registry"
)

const defaultPackagePool = 4

type classNamer struct {
	taken    map[registry.ClassReference]struct{}
	counters map[string]int
	random   map[string]string
	pool     []string
	// pinned packages and nests hold a kept class and stay where they are,
	// otherwise package-private access between them and the moved classes breaks.
	pinnedPackages map[string]struct{}
	pinnedNests    map[registry.ClassReference]struct{}
	hosts          map[registry.ClassReference]registry.ClassReference
}

func (e *Engine) renameClasses(apps []*registry.ClassDescriptor) error {
	cn := &classNamer{
		taken:          make(map[registry.ClassReference]struct{}),
		counters:       make(map[string]int),
		random:         make(map[string]string),
		pinnedPackages: make(map[string]struct{}),
		pinnedNests:    make(map[registry.ClassReference]struct{}),
		hosts:          make(map[registry.ClassReference]registry.ClassReference),
	}
	for _, ref := range e.job.Registry.Refs() {
		cn.taken[ref] = struct{}{}
	}
	for _, d := range apps {
		if h := d.Class.NestHost(); h != "" {
			cn.hosts[d.Ref] = registry.ClassReference(h)
		}
	}
	for ref := range e.frozen {
		cn.pinnedPackages[ref.Package()] = struct{}{}
		cn.pinnedNests[cn.nest(ref)] = struct{}{}
	}

	for _, d := range apps {
		if _, ok := e.frozen[d.Ref]; ok {
			continue
		}
		if _, ok := e.job.Mapping.Class(d.Ref); ok {
			continue
		}
		pkg := e.targetPackage(cn, d.Ref)
		next := cn.fresh(pkg, e.names)
		if _, err := e.job.Mapping.PutClass(d.Ref, next); err != nil {
			return err
		}
		cn.taken[next] = struct{}{}
		e.result.Classes++
		if d.Ref == e.cfg.MainClass {
			e.result.MainClass = next
		}
		e.job.Log.With("class", d.Ref, "to", next).Debug("class renamed")
	}
	return nil
}

// nest returns the nest host of ref, or ref itself.
func (cn *classNamer) nest(ref registry.ClassReference) registry.ClassReference {
	if h, ok := cn.hosts[ref]; ok {
		return h
	}
	return ref
}

// targetPackage decides the package of a renamed class. Nest members resolve
// through their host so a nest never gets split across packages.
func (e *Engine) targetPackage(cn *classNamer, ref registry.ClassReference) string {
	host := cn.nest(ref)
	pkg := host.Package()
	if _, ok := cn.pinnedNests[host]; ok {
		return pkg
	}
	if _, ok := cn.pinnedPackages[pkg]; ok {
		return pkg
	}
	switch e.cfg.Repackage {
	case Flatten:
		return normalizePackage(e.cfg.TargetPackage)
	case Random:
		if p, ok := cn.random[pkg]; ok {
			return p
		}
		if cn.pool == nil {
			cn.pool = e.packagePool()
		}
		p := cn.pool[e.rnd.IntN(len(cn.pool))]
		cn.random[pkg] = p
		return p
	}
	return pkg
}

func (e *Engine) packagePool() []string {
	n := e.cfg.PackagePool
	if n <= 0 {
		n = defaultPackagePool
	}
	base := normalizePackage(e.cfg.TargetPackage)
	pool := make([]string, n)
	for i := range pool {
		pool[i] = join(base, e.names.Name(i))
	}
	return pool
}

// fresh returns the next generated name in pkg, suffixed with $n while it
// collides with a known or already assigned class.
func (cn *classNamer) fresh(pkg string, names *Names) registry.ClassReference {
	i := cn.counters[pkg]
	cn.counters[pkg] = i + 1
	base := join(pkg, names.Name(i))
	name := registry.ClassReference(base)
	for n := 1; ; n++ {
		if _, ok := cn.taken[name]; !ok {
			return name
		}
		name = registry.ClassReference(base + "$" + strconv.Itoa(n))
	}
}

func normalizePackage(p string) string {
	return strings.Trim(strings.ReplaceAll(p, ".", "/"), "/")
}

func join(pkg, simple string) string {
	if pkg == "" {
		return simple
	}
	return pkg + "/" + simple
}
