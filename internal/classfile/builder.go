package classfile

// Java 8 class file version; generated classes do not need newer features.
const (
	DefaultMajorVersion = 52
	DefaultMinorVersion = 0
)

// New builds an empty class. super may be "" only for java/lang/Object.
func New(access uint16, name, super string, interfaces ...string) *Class {
	cp := NewConstantPool()
	c := &Class{
		MinorVersion: DefaultMinorVersion,
		MajorVersion: DefaultMajorVersion,
		Pool:         cp,
		AccessFlags:  access,
		ThisClass:    cp.AddClass(name),
	}
	if super != "" {
		c.SuperClass = cp.AddClass(super)
	}
	for _, i := range interfaces {
		c.Interfaces = append(c.Interfaces, cp.AddClass(i))
	}
	return c
}

// AddField declares a field and returns it.
func (c *Class) AddField(access uint16, name, desc string) *Member {
	m := &Member{
		AccessFlags:     access,
		NameIndex:       c.Pool.AddUtf8(name),
		DescriptorIndex: c.Pool.AddUtf8(desc),
	}
	c.Fields = append(c.Fields, m)
	return m
}

// AddMethod declares a method and returns it.
func (c *Class) AddMethod(access uint16, name, desc string) *Member {
	m := &Member{
		AccessFlags:     access,
		NameIndex:       c.Pool.AddUtf8(name),
		DescriptorIndex: c.Pool.AddUtf8(desc),
	}
	c.Methods = append(c.Methods, m)
	return m
}

// AddAttribute appends a raw attribute to attrs and returns the new slice.
func (c *Class) AddAttribute(attrs []*Attribute, name string, data []byte) []*Attribute {
	return append(attrs, &Attribute{NameIndex: c.Pool.AddUtf8(name), Data: data})
}

// SetSignature attaches a Signature attribute to m, or to the class when m is nil.
func (c *Class) SetSignature(m *Member, sig string) {
	data := put16(nil, c.Pool.AddUtf8(sig))
	if m == nil {
		c.Attributes = c.AddAttribute(c.Attributes, AttrSignature, data)
		return
	}
	m.Attributes = c.AddAttribute(m.Attributes, AttrSignature, data)
}

func put16(b []byte, v uint16) []byte { return append(b, byte(v>>8), byte(v)) }
