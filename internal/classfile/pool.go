package classfile

// ConstantPool is 1-indexed; slot 0 and the slot after a Long or Double are nil.
type ConstantPool struct {
	entries []Constant

	utf8s map[string]uint16
	nats  map[[2]uint16]uint16
	class map[uint16]uint16
}

// NewConstantPool returns an empty pool with the reserved slot 0.
func NewConstantPool() *ConstantPool {
	return &ConstantPool{entries: []Constant{nil}}
}

// Count is the constant_pool_count written to the class file.
func (cp *ConstantPool) Count() int { return len(cp.entries) }

// Get returns the entry at idx, or nil for reserved or out of range slots.
func (cp *ConstantPool) Get(idx uint16) Constant {
	if int(idx) >= len(cp.entries) {
		return nil
	}
	return cp.entries[idx]
}

// Utf8 returns the string at idx, or "" if idx is not a Utf8 entry.
func (cp *ConstantPool) Utf8(idx uint16) string {
	if u, ok := cp.Get(idx).(*ConstantUtf8); ok {
		return u.Value
	}
	return ""
}

// ClassName resolves a Class entry to its internal name.
func (cp *ConstantPool) ClassName(idx uint16) string {
	if c, ok := cp.Get(idx).(*ConstantClass); ok {
		return cp.Utf8(c.NameIndex)
	}
	return ""
}

// NameAndType resolves a NameAndType entry.
func (cp *ConstantPool) NameAndType(idx uint16) (name, desc string) {
	if nt, ok := cp.Get(idx).(*ConstantNameAndType); ok {
		return cp.Utf8(nt.NameIndex), cp.Utf8(nt.DescriptorIndex)
	}
	return "", ""
}

// Ref resolves a Fieldref/Methodref/InterfaceMethodref entry.
func (cp *ConstantPool) Ref(idx uint16) (owner, name, desc string) {
	r, ok := cp.Get(idx).(*ConstantRef)
	if !ok {
		return "", "", ""
	}
	name, desc = cp.NameAndType(r.NameAndTypeIndex)
	return cp.ClassName(r.ClassIndex), name, desc
}

func (cp *ConstantPool) add(c Constant) uint16 {
	idx := uint16(len(cp.entries))
	cp.entries = append(cp.entries, c)
	if t := c.Tag(); t == TagLong || t == TagDouble {
		cp.entries = append(cp.entries, nil)
	}
	return idx
}

// AddUtf8 returns the index of an existing identical Utf8 entry or appends one.
func (cp *ConstantPool) AddUtf8(s string) uint16 {
	if cp.utf8s == nil {
		cp.utf8s = make(map[string]uint16)
		for i, e := range cp.entries {
			if u, ok := e.(*ConstantUtf8); ok {
				if _, seen := cp.utf8s[u.Value]; !seen {
					cp.utf8s[u.Value] = uint16(i)
				}
			}
		}
	}
	if idx, ok := cp.utf8s[s]; ok {
		return idx
	}
	idx := cp.add(&ConstantUtf8{Value: s})
	cp.utf8s[s] = idx
	return idx
}

// AddClass returns the index of a Class entry naming name.
func (cp *ConstantPool) AddClass(name string) uint16 {
	nameIdx := cp.AddUtf8(name)
	if cp.class == nil {
		cp.class = make(map[uint16]uint16)
		for i, e := range cp.entries {
			if c, ok := e.(*ConstantClass); ok {
				if _, seen := cp.class[c.NameIndex]; !seen {
					cp.class[c.NameIndex] = uint16(i)
				}
			}
		}
	}
	if idx, ok := cp.class[nameIdx]; ok {
		return idx
	}
	idx := cp.add(&ConstantClass{NameIndex: nameIdx})
	cp.class[nameIdx] = idx
	return idx
}

// AddNameAndType returns the index of a NameAndType entry for name and desc.
func (cp *ConstantPool) AddNameAndType(name, desc string) uint16 {
	key := [2]uint16{cp.AddUtf8(name), cp.AddUtf8(desc)}
	if cp.nats == nil {
		cp.nats = make(map[[2]uint16]uint16)
		for i, e := range cp.entries {
			if nt, ok := e.(*ConstantNameAndType); ok {
				k := [2]uint16{nt.NameIndex, nt.DescriptorIndex}
				if _, seen := cp.nats[k]; !seen {
					cp.nats[k] = uint16(i)
				}
			}
		}
	}
	if idx, ok := cp.nats[key]; ok {
		return idx
	}
	idx := cp.add(&ConstantNameAndType{NameIndex: key[0], DescriptorIndex: key[1]})
	cp.nats[key] = idx
	return idx
}

// SetClassName repoints the Class entry at idx to name.
func (cp *ConstantPool) SetClassName(idx uint16, name string) {
	c, ok := cp.Get(idx).(*ConstantClass)
	if !ok {
		return
	}
	c.NameIndex = cp.AddUtf8(name)
	cp.class = nil
}

// AddFieldref appends a Fieldref entry.
func (cp *ConstantPool) AddFieldref(owner, name, desc string) uint16 {
	return cp.addRef(TagFieldref, owner, name, desc)
}

// AddMethodref appends a Methodref entry.
func (cp *ConstantPool) AddMethodref(owner, name, desc string) uint16 {
	return cp.addRef(TagMethodref, owner, name, desc)
}

// AddInterfaceMethodref appends an InterfaceMethodref entry.
func (cp *ConstantPool) AddInterfaceMethodref(owner, name, desc string) uint16 {
	return cp.addRef(TagInterfaceMethodref, owner, name, desc)
}

func (cp *ConstantPool) addRef(kind Tag, owner, name, desc string) uint16 {
	return cp.add(&ConstantRef{
		Kind:             kind,
		ClassIndex:       cp.AddClass(owner),
		NameAndTypeIndex: cp.AddNameAndType(name, desc),
	})
}

// AddString appends a String entry.
func (cp *ConstantPool) AddString(s string) uint16 {
	return cp.add(&ConstantString{StringIndex: cp.AddUtf8(s)})
}

// AddMethodType appends a MethodType entry.
func (cp *ConstantPool) AddMethodType(desc string) uint16 {
	return cp.add(&ConstantMethodType{DescriptorIndex: cp.AddUtf8(desc)})
}

// AddMethodHandle appends a MethodHandle entry pointing at ref.
func (cp *ConstantPool) AddMethodHandle(kind uint8, ref uint16) uint16 {
	return cp.add(&ConstantMethodHandle{ReferenceKind: kind, ReferenceIndex: ref})
}

// AddInvokeDynamic appends an InvokeDynamic entry.
func (cp *ConstantPool) AddInvokeDynamic(bootstrap uint16, name, desc string) uint16 {
	return cp.add(&ConstantDynamic{
		Kind:                     TagInvokeDynamic,
		BootstrapMethodAttrIndex: bootstrap,
		NameAndTypeIndex:         cp.AddNameAndType(name, desc),
	})
}

// Each calls fn for every non-nil entry in index order.
func (cp *ConstantPool) Each(fn func(idx uint16, c Constant)) {
	for i, e := range cp.entries {
		if e != nil {
			fn(uint16(i), e)
		}
	}
}
