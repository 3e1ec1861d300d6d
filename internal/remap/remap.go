// Package remap applies a frozen mapping table to class files.
//
// All rewriting happens in the constant pool and in the few attributes that
// hold names outside of it. Existing entries are never edited in place, only
// repointed at appended ones, so bytecode and stack map frames keep their
// indices.
package remap

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/cmmoran/jvmobf/internal/classfile"
	"github.com/cmmoran/jvmobf/internal/mapping"
	"github.com/cmmoran/jvmobf/internal/pipeline"
	"github.com/cmmoran/jvmobf/internal/registry"
)

var ErrNotFrozen = errors.New("mapping table is not frozen")

const (
	lambdaMetafactory = "java/lang/invoke/LambdaMetafactory"
	refInvokeStatic   = 6
)

type Remapper struct {
	table *mapping.Table
	log   *slog.Logger
}

// New returns a remapper over t. The table must be frozen so concurrent
// workers only ever read it.
func New(t *mapping.Table, l *slog.Logger) (*Remapper, error) {
	if !t.Frozen() {
		return nil, ErrNotFrozen
	}
	if l == nil {
		l = slog.Default()
	}
	return &Remapper{table: t, log: l}, nil
}

// Processor wraps Apply for the pipeline.
func (r *Remapper) Processor() pipeline.Processor {
	return pipeline.ProcessorFunc{
		ID: "remap",
		Fn: func(cls *classfile.Class, _ pipeline.Callback) error { return r.Apply(cls) },
	}
}

func (r *Remapper) mapClass(name string) string { return r.table.MapClass(name) }

func (r *Remapper) desc(d string) string { return classfile.MapDescriptor(d, r.mapClass) }

func (r *Remapper) sig(s string) string { return classfile.MapSignature(s, r.mapClass) }

// snapshot holds the original pool contents. Entries share Utf8, Class and
// NameAndType slots, so every lookup has to see the names from before the
// first repoint.
type snapshot struct {
	classes     map[uint16]string
	refs        map[uint16][3]string
	methodTypes map[uint16]string
	dynamics    map[uint16][2]string
}

func take(cp *classfile.ConstantPool) *snapshot {
	s := &snapshot{
		classes:     make(map[uint16]string),
		refs:        make(map[uint16][3]string),
		methodTypes: make(map[uint16]string),
		dynamics:    make(map[uint16][2]string),
	}
	cp.Each(func(idx uint16, c classfile.Constant) {
		switch e := c.(type) {
		case *classfile.ConstantClass:
			s.classes[idx] = cp.Utf8(e.NameIndex)
		case *classfile.ConstantRef:
			owner, name, desc := cp.Ref(idx)
			s.refs[idx] = [3]string{owner, name, desc}
		case *classfile.ConstantMethodType:
			s.methodTypes[idx] = cp.Utf8(e.DescriptorIndex)
		case *classfile.ConstantDynamic:
			name, desc := cp.NameAndType(e.NameAndTypeIndex)
			s.dynamics[idx] = [2]string{name, desc}
		}
	})
	return s
}

// Apply rewrites cls in place.
func (r *Remapper) Apply(cls *classfile.Class) error {
	cp := cls.Pool
	self := cls.Name()
	snap := take(cp)

	indyNames, err := r.lambdaNames(cls, snap)
	if err != nil {
		return err
	}

	// Indices are visited in order so appended entries come out identical
	// from run to run.
	for _, idx := range slices.Sorted(maps.Keys(snap.refs)) {
		owner, name, desc := snap.refs[idx][0], snap.refs[idx][1], snap.refs[idx][2]
		e := cp.Get(idx).(*classfile.ConstantRef)
		var newName string
		if e.Kind == classfile.TagFieldref {
			newName = r.table.MapField(owner, name, desc)
		} else {
			newName = r.table.MapMethod(owner, name, desc)
		}
		if newDesc := r.desc(desc); newName != name || newDesc != desc {
			e.NameAndTypeIndex = cp.AddNameAndType(newName, newDesc)
		}
	}

	for _, idx := range slices.Sorted(maps.Keys(snap.dynamics)) {
		e := cp.Get(idx).(*classfile.ConstantDynamic)
		name, desc := snap.dynamics[idx][0], snap.dynamics[idx][1]
		newName := name
		if n, ok := indyNames[idx]; ok {
			newName = n
		}
		if newDesc := r.desc(desc); newName != name || newDesc != desc {
			e.NameAndTypeIndex = cp.AddNameAndType(newName, newDesc)
		}
	}

	for _, idx := range slices.Sorted(maps.Keys(snap.methodTypes)) {
		d := snap.methodTypes[idx]
		if nd := r.desc(d); nd != d {
			cp.Get(idx).(*classfile.ConstantMethodType).DescriptorIndex = cp.AddUtf8(nd)
		}
	}

	for _, f := range cls.Fields {
		r.member(cp, f, self, r.table.MapField)
	}
	for _, m := range cls.Methods {
		r.member(cp, m, self, r.table.MapMethod)
	}

	if err := r.attributes(cls, cls.Attributes, snap); err != nil {
		return err
	}
	for _, members := range [][]*classfile.Member{cls.Fields, cls.Methods} {
		for _, m := range members {
			if err := r.attributes(cls, m.Attributes, snap); err != nil {
				return err
			}
		}
	}

	// Class entries go last: everything above resolved owners by their old names.
	for _, idx := range slices.Sorted(maps.Keys(snap.classes)) {
		name := snap.classes[idx]
		if nn := classfile.MapClassConstant(name, r.mapClass); nn != name {
			cp.SetClassName(idx, nn)
		}
	}

	if to := cls.Name(); to != self {
		r.log.With("class", self, "to", to).Debug("class remapped")
	}
	return nil
}

func (r *Remapper) member(cp *classfile.ConstantPool, m *classfile.Member, owner string, lookup func(owner, name, desc string) string) {
	name, desc := m.Name(cp), m.Descriptor(cp)
	if nn := lookup(owner, name, desc); nn != name {
		m.NameIndex = cp.AddUtf8(nn)
	}
	if nd := r.desc(desc); nd != desc {
		m.DescriptorIndex = cp.AddUtf8(nd)
	}
}

// lambdaNames resolves the interface method implemented by every
// LambdaMetafactory call site. The invokedynamic name is the functional
// interface method; its owner is the call site's return type and its
// erased descriptor is the first bootstrap argument.
func (r *Remapper) lambdaNames(cls *classfile.Class, snap *snapshot) (map[uint16]string, error) {
	if len(snap.dynamics) == 0 {
		return nil, nil
	}
	bsms, err := cls.BootstrapMethods()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", cls.Name(), err)
	}
	out := make(map[uint16]string)
	for idx := range snap.dynamics {
		e := cls.Pool.Get(idx).(*classfile.ConstantDynamic)
		if e.Kind != classfile.TagInvokeDynamic || int(e.BootstrapMethodAttrIndex) >= len(bsms) {
			continue
		}
		bsm := bsms[e.BootstrapMethodAttrIndex]
		h, ok := cls.Pool.Get(bsm.MethodRef).(*classfile.ConstantMethodHandle)
		if !ok || h.ReferenceKind != refInvokeStatic || snap.refs[h.ReferenceIndex][0] != lambdaMetafactory {
			continue
		}
		if len(bsm.Arguments) == 0 {
			continue
		}
		samDesc, ok := snap.methodTypes[bsm.Arguments[0]]
		if !ok {
			continue
		}
		name, desc := snap.dynamics[idx][0], snap.dynamics[idx][1]
		iface := classfile.ObjectType(classfile.ReturnType(desc))
		if iface == "" {
			continue
		}
		if nn := r.table.MapMethod(iface, name, samDesc); nn != name {
			out[idx] = nn
		}
	}
	return out, nil
}

func (r *Remapper) attributes(cls *classfile.Class, attrs []*classfile.Attribute, snap *snapshot) error {
	cp := cls.Pool
	for _, a := range attrs {
		switch name := cp.Utf8(a.NameIndex); name {
		case classfile.AttrSignature:
			r.repoint(cp, a.Data, 0, r.sig)
		case classfile.AttrEnclosingMethod:
			r.enclosingMethod(cp, a.Data, snap)
		case classfile.AttrInnerClasses:
			r.innerClasses(cp, a.Data, snap)
		case classfile.AttrRuntimeVisibleAnnotations, classfile.AttrRuntimeInvisibleAnnotations,
			classfile.AttrRuntimeVisibleParameterAnnotations, classfile.AttrRuntimeInvisibleParameterAnnotations,
			classfile.AttrAnnotationDefault:
			if err := r.descriptors(cp, name, a.Data, r.desc); err != nil {
				return fmt.Errorf("%s: %w", cls.Name(), err)
			}
		case classfile.AttrCode:
			if err := r.code(cls, a); err != nil {
				return err
			}
		}
	}
	return nil
}

// repoint replaces the Utf8 index at off with the index of fn(old).
func (r *Remapper) repoint(cp *classfile.ConstantPool, data []byte, off int, fn func(string) string) {
	if off+2 > len(data) {
		return
	}
	idx := uint16(data[off])<<8 | uint16(data[off+1])
	old := cp.Utf8(idx)
	if nv := fn(old); nv != old {
		classfile.PatchU2(data, off, cp.AddUtf8(nv))
	}
}

func (r *Remapper) descriptors(cp *classfile.ConstantPool, name string, data []byte, fn func(string) string) error {
	offs, err := classfile.DescriptorOffsets(name, data)
	if err != nil {
		return err
	}
	for _, off := range offs {
		r.repoint(cp, data, off, fn)
	}
	return nil
}

// enclosingMethod renames the method part; the class part is a Class entry.
func (r *Remapper) enclosingMethod(cp *classfile.ConstantPool, data []byte, snap *snapshot) {
	if len(data) < 4 {
		return
	}
	owner := snap.classes[uint16(data[0])<<8|uint16(data[1])]
	nat := uint16(data[2])<<8 | uint16(data[3])
	if nat == 0 {
		return
	}
	name, desc := cp.NameAndType(nat)
	newName, newDesc := r.table.MapMethod(owner, name, desc), r.desc(desc)
	if newName != name || newDesc != desc {
		classfile.PatchU2(data, 2, cp.AddNameAndType(newName, newDesc))
	}
}

// innerClasses keeps each inner_name in step with the renamed inner class.
func (r *Remapper) innerClasses(cp *classfile.ConstantPool, data []byte, snap *snapshot) {
	if len(data) < 2 {
		return
	}
	n := int(data[0])<<8 | int(data[1])
	for i := 0; i < n && 2+8*i+8 <= len(data); i++ {
		off := 2 + 8*i
		inner := snap.classes[uint16(data[off])<<8|uint16(data[off+1])]
		nameIdx := uint16(data[off+4])<<8 | uint16(data[off+5])
		if nameIdx == 0 {
			continue
		}
		to, ok := r.table.Class(registry.ClassReference(inner))
		if !ok || string(to) == inner {
			continue
		}
		classfile.PatchU2(data, off+4, cp.AddUtf8(classfile.SimpleName(string(to))))
	}
}

// code rewrites local variable descriptors and signatures left in the Code
// attribute when debug information is kept.
func (r *Remapper) code(cls *classfile.Class, a *classfile.Attribute) error {
	cp := cls.Pool
	var tables []*classfile.Attribute
	code, err := classfile.DecodeCode(a.Data)
	if err != nil {
		return fmt.Errorf("%s: %w", cls.Name(), err)
	}
	for _, ca := range code.Attributes {
		switch cp.Utf8(ca.NameIndex) {
		case classfile.AttrLocalVariableTable, classfile.AttrLocalVariableTypeTable:
			tables = append(tables, ca)
		}
	}
	if len(tables) == 0 {
		return nil
	}
	for _, t := range tables {
		fn := r.desc
		name := cp.Utf8(t.NameIndex)
		if name == classfile.AttrLocalVariableTypeTable {
			fn = r.sig
		}
		if err := r.descriptors(cp, name, t.Data, fn); err != nil {
			return fmt.Errorf("%s: %w", cls.Name(), err)
		}
	}
	a.Data = code.Encode()
	return nil
}
