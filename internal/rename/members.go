package rename

import (
	"fmt"

	"github.com/cmmoran/jvmobf/internal/classfile"
	"github.com/cmmoran/jvmobf/internal/hierarchy"
	"github.com/cmmoran/jvmobf/internal/mapping"
	"github.com/cmmoran/jvmobf/internal/registry"
)

type kind int

const (
	fieldKind kind = iota
	methodKind
)

func (k kind) String() string {
	if k == methodKind {
		return "method"
	}
	return "field"
}

type visited map[*hierarchy.Node]struct{}

func (v visited) seen(n *hierarchy.Node) bool {
	_, ok := v[n]
	return ok
}

func (e *Engine) declared(n *hierarchy.Node, k kind, name, desc string) *classfile.Member {
	if k == methodKind {
		return n.Class.Class.Method(name, desc)
	}
	return n.Class.Class.Field(name, desc)
}

func (e *Engine) committed(ref registry.ClassReference, k kind, name, desc string) (string, bool) {
	key := mapping.MemberKey{Owner: ref, Name: name, Descriptor: desc}
	if k == methodKind {
		return e.job.Mapping.Method(key)
	}
	return e.job.Mapping.Field(key)
}

func (e *Engine) commit(ref registry.ClassReference, k kind, name, desc, newName string) error {
	key := mapping.MemberKey{Owner: ref, Name: name, Descriptor: desc}
	put := e.job.Mapping.PutField
	if k == methodKind {
		put = e.job.Mapping.PutMethod
	}
	ok, err := put(key, newName)
	if err != nil {
		return err
	}
	if !ok {
		if prev, _ := e.committed(ref, k, name, desc); prev != newName {
			return fmt.Errorf("%s %s.%s%s already mapped to %q, refusing %q", k, ref, name, desc, prev, newName)
		}
	}
	return nil
}

// blocked is the single eligibility check shared by canRename and propagate,
// so both phases agree on which (class, member) pairs must keep their name.
// A kept class pins every member it declares or inherits.
func (e *Engine) blocked(n *hierarchy.Node, k kind, name, desc string) bool {
	if n.MissingSuperClass {
		return true
	}
	if _, ok := e.frozen[n.Ref]; ok {
		return e.inherits(n, k, name, desc, visited{})
	}
	m := e.declared(n, k, name, desc)
	if m == nil {
		return false
	}
	owner := string(n.Ref)
	if k == methodKind {
		return e.job.Rules.MethodExcluded(owner, name) || methodReserved(n.Class.Class, m, name, desc)
	}
	return e.job.Rules.FieldExcluded(owner, name) || fieldReserved(name, desc)
}

// inherits reports whether n or one of its supertypes declares the member.
func (e *Engine) inherits(n *hierarchy.Node, k kind, name, desc string, seen visited) bool {
	if n == nil || seen.seen(n) {
		return false
	}
	seen[n] = struct{}{}
	if e.declared(n, k, name, desc) != nil {
		return true
	}
	for _, ref := range n.SortedParents() {
		if e.inherits(e.node(ref), k, name, desc, seen) {
			return true
		}
	}
	return false
}

// methodReserved lists methods the JVM or the class library look up by name.
func methodReserved(cls *classfile.Class, m *classfile.Member, name, desc string) bool {
	if m.Is(classfile.AccNative) || (len(name) > 0 && name[0] == '<') {
		return true
	}
	// Annotation elements are stored by name in every annotation use site,
	// single-member value() included.
	if cls.Is(classfile.AccAnnotation) {
		return true
	}
	if cls.Is(classfile.AccEnum) {
		self := "L" + cls.Name() + ";"
		if (name == "values" && desc == "()["+self) || (name == "valueOf" && desc == "(Ljava/lang/String;)"+self) {
			return true
		}
	}
	switch name + desc {
	case "main([Ljava/lang/String;)V":
		return m.Is(classfile.AccStatic)
	case "writeObject(Ljava/io/ObjectOutputStream;)V",
		"readObject(Ljava/io/ObjectInputStream;)V",
		"readObjectNoData()V",
		"writeReplace()Ljava/lang/Object;",
		"readResolve()Ljava/lang/Object;":
		return true
	}
	return false
}

func fieldReserved(name, desc string) bool {
	switch name + ":" + desc {
	case "serialVersionUID:J", "serialPersistentFields:[Ljava/io/ObjectStreamField;":
		return true
	}
	return false
}

// canRename walks every parent and sub edge from n and reports whether all
// reachable classes allow renaming the member. Library classes are walked
// upwards only; a library declaring the member pins its name.
func (e *Engine) canRename(n *hierarchy.Node, k kind, name, desc string, seen visited) bool {
	if n == nil || n.MissingSuperClass {
		return false
	}
	seen[n] = struct{}{}

	if n.Library() {
		if e.declared(n, k, name, desc) != nil {
			return false
		}
		for _, ref := range n.SortedParents() {
			p := e.node(ref)
			if p != nil && seen.seen(p) {
				continue
			}
			if !e.canRename(p, k, name, desc, seen) {
				return false
			}
		}
		return true
	}

	if e.blocked(n, k, name, desc) {
		return false
	}
	if _, ok := e.committed(n.Ref, k, name, desc); ok {
		return true
	}
	for _, ref := range append(n.SortedParents(), n.SortedSubs()...) {
		p := e.node(ref)
		if p != nil && seen.seen(p) {
			continue
		}
		if !e.canRename(p, k, name, desc, seen) {
			return false
		}
	}
	return true
}

// propagate commits newName on n before recursing, so every class sharing the
// member ends up with the same name whatever order the walk takes.
func (e *Engine) propagate(n *hierarchy.Node, k kind, name, desc, newName string, seen visited) error {
	seen[n] = struct{}{}
	if e.blocked(n, k, name, desc) {
		return fmt.Errorf("%s %s.%s%s reached a class that must keep the name", k, n.Ref, name, desc)
	}
	// A kept class only passes the walk on when it does not see the member.
	if _, kept := e.frozen[n.Ref]; !kept {
		if err := e.commit(n.Ref, k, name, desc, newName); err != nil {
			return err
		}
		e.occupiedNames(n)[newName] = struct{}{}
	}

	for _, ref := range append(n.SortedParents(), n.SortedSubs()...) {
		p := e.node(ref)
		if p == nil || p.Library() || seen.seen(p) {
			continue
		}
		if err := e.propagate(p, k, name, desc, newName, seen); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) renameMembers(d *registry.ClassDescriptor, k kind) error {
	if _, ok := e.frozen[d.Ref]; ok {
		return nil
	}
	n := e.node(d.Ref)
	if n == nil {
		return fmt.Errorf("no hierarchy node for %s", d.Ref)
	}
	cls := d.Class
	members := cls.Fields
	if k == methodKind {
		members = cls.Methods
	}
	for _, m := range members {
		name, desc := m.Name(cls.Pool), m.Descriptor(cls.Pool)
		if _, ok := e.committed(d.Ref, k, name, desc); ok {
			continue
		}
		seen := visited{}
		if !e.canRename(n, k, name, desc, seen) {
			continue
		}
		newName := e.freeName(seen)
		if err := e.propagate(n, k, name, desc, newName, visited{}); err != nil {
			return err
		}
		if k == methodKind {
			e.result.Methods++
		} else {
			e.result.Fields++
		}
	}
	return nil
}

// freeName picks the first generated name unused by every class related to
// the group: the group members themselves plus all their ancestors and
// descendants, so a rename never introduces an accidental override or clash.
func (e *Engine) freeName(group visited) string {
	ancestors, descendants := visited{}, visited{}
	for n := range group {
		if n.Library() {
			continue
		}
		e.collect(n, ancestors, true)
		e.collect(n, descendants, false)
	}
	for i := 0; ; i++ {
		cand := e.names.Name(i)
		if !e.used(ancestors, cand) && !e.used(descendants, cand) {
			return cand
		}
	}
}

func (e *Engine) used(nodes visited, name string) bool {
	for n := range nodes {
		if _, ok := e.occupiedNames(n)[name]; ok {
			return true
		}
	}
	return false
}

func (e *Engine) collect(n *hierarchy.Node, into visited, up bool) {
	if into.seen(n) {
		return
	}
	into[n] = struct{}{}
	edges := n.Subs
	if up {
		edges = n.Parents
	}
	for ref := range edges {
		if p := e.node(ref); p != nil {
			e.collect(p, into, up)
		}
	}
}
