// Package mapping holds the committed rename decisions of a job.
package mapping

import (
	"errors"
	"sort"
	"sync"

	"github.com/cmmoran/jvmobf/internal/registry"
)

var ErrFrozen = errors.New("mapping table is frozen")

// MemberKey identifies a field or method by its original owner, name and descriptor.
type MemberKey struct {
	Owner      registry.ClassReference
	Name       string
	Descriptor string
}

// Table is write-once per key: the first committed decision is authoritative.
// It is frozen once the rename pass completes and read concurrently afterwards.
type Table struct {
	mu      sync.RWMutex
	frozen  bool
	classes map[registry.ClassReference]registry.ClassReference
	fields  map[MemberKey]string
	methods map[MemberKey]string
}

func NewTable() *Table {
	return &Table{
		classes: make(map[registry.ClassReference]registry.ClassReference),
		fields:  make(map[MemberKey]string),
		methods: make(map[MemberKey]string),
	}
}

// PutClass commits a class decision. It reports false if the key was already committed.
func (t *Table) PutClass(old, renamed registry.ClassReference) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.frozen {
		return false, ErrFrozen
	}
	if _, ok := t.classes[old]; ok {
		return false, nil
	}
	t.classes[old] = renamed
	return true, nil
}

// PutField commits a field decision.
func (t *Table) PutField(k MemberKey, name string) (bool, error) {
	return t.put(t.fields, k, name)
}

// PutMethod commits a method decision.
func (t *Table) PutMethod(k MemberKey, name string) (bool, error) {
	return t.put(t.methods, k, name)
}

func (t *Table) put(m map[MemberKey]string, k MemberKey, name string) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.frozen {
		return false, ErrFrozen
	}
	if _, ok := m[k]; ok {
		return false, nil
	}
	m[k] = name
	return true, nil
}

// Class returns the committed decision for old, if any.
func (t *Table) Class(old registry.ClassReference) (registry.ClassReference, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n, ok := t.classes[old]
	return n, ok
}

// MapClass returns the new name of old, or old itself.
func (t *Table) MapClass(old string) string {
	if n, ok := t.Class(registry.ClassReference(old)); ok {
		return string(n)
	}
	return old
}

// Field returns the committed decision for k, if any.
func (t *Table) Field(k MemberKey) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n, ok := t.fields[k]
	return n, ok
}

// Method returns the committed decision for k, if any.
func (t *Table) Method(k MemberKey) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n, ok := t.methods[k]
	return n, ok
}

// MapField returns the new field name, or name itself.
func (t *Table) MapField(owner, name, desc string) string {
	if n, ok := t.Field(MemberKey{registry.ClassReference(owner), name, desc}); ok {
		return n
	}
	return name
}

// MapMethod returns the new method name, or name itself.
func (t *Table) MapMethod(owner, name, desc string) string {
	if n, ok := t.Method(MemberKey{registry.ClassReference(owner), name, desc}); ok {
		return n
	}
	return name
}

// Freeze makes the table read-only.
func (t *Table) Freeze() {
	t.mu.Lock()
	t.frozen = true
	t.mu.Unlock()
}

func (t *Table) Frozen() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.frozen
}

// ClassEntry is one class decision.
type ClassEntry struct {
	Old, New registry.ClassReference
}

// MemberEntry is one member decision.
type MemberEntry struct {
	MemberKey
	New string
}

// Classes returns every class decision sorted by old name.
func (t *Table) Classes() []ClassEntry {
	t.mu.RLock()
	out := make([]ClassEntry, 0, len(t.classes))
	for o, n := range t.classes {
		out = append(out, ClassEntry{Old: o, New: n})
	}
	t.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Old < out[j].Old })
	return out
}

// Fields returns every field decision in key order.
func (t *Table) Fields() []MemberEntry { return t.entries(t.fields) }

// Methods returns every method decision in key order.
func (t *Table) Methods() []MemberEntry { return t.entries(t.methods) }

func (t *Table) entries(m map[MemberKey]string) []MemberEntry {
	t.mu.RLock()
	out := make([]MemberEntry, 0, len(m))
	for k, n := range m {
		out = append(out, MemberEntry{MemberKey: k, New: n})
	}
	t.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].MemberKey, out[j].MemberKey
		if a.Owner != b.Owner {
			return a.Owner < b.Owner
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.Descriptor < b.Descriptor
	})
	return out
}
