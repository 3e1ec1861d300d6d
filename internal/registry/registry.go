// Package registry holds every known class of a job, keyed by ClassReference.
package registry

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/cmmoran/jvmobf/internal/classfile"
)

// ClassReference is the internal name of a class ("com/acme/Widget").
type ClassReference string

func (r ClassReference) String() string { return string(r) }

// Dotted returns the Java source form ("com.acme.Widget").
func (r ClassReference) Dotted() string { return strings.ReplaceAll(string(r), "/", ".") }

// Package returns the internal package name, "" for the default package.
func (r ClassReference) Package() string { return classfile.PackageOf(string(r)) }

// ClassDescriptor pairs a class identity with its IR. Header facts are
// snapshotted at construction so hierarchy construction never reads an IR a
// pass is mutating.
type ClassDescriptor struct {
	Ref        ClassReference
	Super      ClassReference
	Interfaces []ClassReference
	Access     uint16
	Library    bool

	Class *classfile.Class
	Raw   []byte

	// ComputeFrames is set when a pass asked for stack map frame recomputation.
	ComputeFrames bool
}

// NewDescriptor wraps a parsed class.
func NewDescriptor(cls *classfile.Class, raw []byte, library bool) *ClassDescriptor {
	d := &ClassDescriptor{
		Ref:     ClassReference(cls.Name()),
		Super:   ClassReference(cls.SuperName()),
		Access:  cls.AccessFlags,
		Library: library,
		Class:   cls,
		Raw:     raw,
	}
	for _, i := range cls.InterfaceNames() {
		d.Interfaces = append(d.Interfaces, ClassReference(i))
	}
	return d
}

// Parse decodes raw class bytes into a descriptor.
func Parse(raw []byte, library bool) (*ClassDescriptor, error) {
	cls, err := classfile.Parse(raw)
	if err != nil {
		return nil, err
	}
	return NewDescriptor(cls, raw, library), nil
}

// Supertypes returns the direct superclass (if any) followed by the interfaces.
func (d *ClassDescriptor) Supertypes() []ClassReference {
	out := make([]ClassReference, 0, len(d.Interfaces)+1)
	if d.Super != "" {
		out = append(out, d.Super)
	}
	return append(out, d.Interfaces...)
}

// Restore re-parses the original bytes, discarding every change made to the IR.
func (d *ClassDescriptor) Restore() (*ClassDescriptor, error) {
	if d.Raw == nil {
		return nil, fmt.Errorf("restore %s: no original bytes", d.Ref)
	}
	return Parse(d.Raw, d.Library)
}

// Registry is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	classes map[ClassReference]*ClassDescriptor
}

func New() *Registry {
	return &Registry{classes: make(map[ClassReference]*ClassDescriptor)}
}

// Add inserts d. An application class replaces a library class of the same
// name; any other duplicate is an error.
func (r *Registry) Add(d *ClassDescriptor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.classes[d.Ref]; ok {
		switch {
		case prev.Library && !d.Library:
		case !prev.Library && d.Library:
			return nil
		default:
			return fmt.Errorf("duplicate class %s", d.Ref)
		}
	}
	r.classes[d.Ref] = d
	return nil
}

// Put inserts or replaces d unconditionally.
func (r *Registry) Put(d *ClassDescriptor) {
	r.mu.Lock()
	r.classes[d.Ref] = d
	r.mu.Unlock()
}

// Get resolves a reference.
func (r *Registry) Get(ref ClassReference) (*ClassDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.classes[ref]
	return d, ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.classes)
}

// Refs returns every reference in sorted order.
func (r *Registry) Refs() []ClassReference {
	r.mu.RLock()
	out := make([]ClassReference, 0, len(r.classes))
	for ref := range r.classes {
		out = append(out, ref)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Application returns the non-library descriptors sorted by reference.
func (r *Registry) Application() []*ClassDescriptor {
	return r.filter(func(d *ClassDescriptor) bool { return !d.Library })
}

// Libraries returns the library descriptors sorted by reference.
func (r *Registry) Libraries() []*ClassDescriptor {
	return r.filter(func(d *ClassDescriptor) bool { return d.Library })
}

func (r *Registry) filter(keep func(*ClassDescriptor) bool) []*ClassDescriptor {
	r.mu.RLock()
	out := make([]*ClassDescriptor, 0, len(r.classes))
	for _, d := range r.classes {
		if keep(d) {
			out = append(out, d)
		}
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Ref < out[j].Ref })
	return out
}
