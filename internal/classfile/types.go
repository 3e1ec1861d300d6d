// Package classfile reads, writes and builds JVM class files.
//
// The model keeps constant pool indices stable: transformations only append new
// entries and repoint existing ones, so Code, StackMapTable and BootstrapMethods
// attributes stay valid without being decoded.
package classfile

// Magic is the leading u4 of every class file.
const Magic = 0xCAFEBABE

// Access flags shared by classes, fields and methods.
const (
	AccPublic       = 0x0001
	AccPrivate      = 0x0002
	AccProtected    = 0x0004
	AccStatic       = 0x0008
	AccFinal        = 0x0010
	AccSuper        = 0x0020
	AccSynchronized = 0x0020
	AccVolatile     = 0x0040
	AccBridge       = 0x0040
	AccTransient    = 0x0080
	AccVarargs      = 0x0080
	AccNative       = 0x0100
	AccInterface    = 0x0200
	AccAbstract     = 0x0400
	AccStrict       = 0x0800
	AccSynthetic    = 0x1000
	AccAnnotation   = 0x2000
	AccEnum         = 0x4000
	AccModule       = 0x8000
)

// Tag identifies the kind of a constant pool entry.
type Tag uint8

const (
	TagUtf8               Tag = 1
	TagInteger            Tag = 3
	TagFloat              Tag = 4
	TagLong               Tag = 5
	TagDouble             Tag = 6
	TagClass              Tag = 7
	TagString             Tag = 8
	TagFieldref           Tag = 9
	TagMethodref          Tag = 10
	TagInterfaceMethodref Tag = 11
	TagNameAndType        Tag = 12
	TagMethodHandle       Tag = 15
	TagMethodType         Tag = 16
	TagDynamic            Tag = 17
	TagInvokeDynamic      Tag = 18
	TagModule             Tag = 19
	TagPackage            Tag = 20
)

// Attribute names the remapper and passes care about.
const (
	AttrCode                   = "Code"
	AttrSignature              = "Signature"
	AttrSourceFile             = "SourceFile"
	AttrSourceDebugExtension   = "SourceDebugExtension"
	AttrLineNumberTable        = "LineNumberTable"
	AttrLocalVariableTable     = "LocalVariableTable"
	AttrLocalVariableTypeTable = "LocalVariableTypeTable"
	AttrBootstrapMethods       = "BootstrapMethods"
	AttrEnclosingMethod        = "EnclosingMethod"
	AttrNestHost               = "NestHost"
	AttrNestMembers            = "NestMembers"
	AttrInnerClasses           = "InnerClasses"
	AttrAnnotationDefault      = "AnnotationDefault"

	AttrRuntimeVisibleAnnotations            = "RuntimeVisibleAnnotations"
	AttrRuntimeInvisibleAnnotations          = "RuntimeInvisibleAnnotations"
	AttrRuntimeVisibleParameterAnnotations   = "RuntimeVisibleParameterAnnotations"
	AttrRuntimeInvisibleParameterAnnotations = "RuntimeInvisibleParameterAnnotations"
)

// Constant is implemented by all constant pool entry types.
type Constant interface {
	Tag() Tag
}

// ConstantUtf8 holds the raw modified UTF-8 bytes of the entry. Identifiers
// produced by this module are ASCII, for which both encodings agree.
type ConstantUtf8 struct {
	Value string
}

func (c *ConstantUtf8) Tag() Tag { return TagUtf8 }

type ConstantInteger struct {
	Bits uint32
}

func (c *ConstantInteger) Tag() Tag { return TagInteger }

type ConstantFloat struct {
	Bits uint32
}

func (c *ConstantFloat) Tag() Tag { return TagFloat }

type ConstantLong struct {
	Bits uint64
}

func (c *ConstantLong) Tag() Tag { return TagLong }

type ConstantDouble struct {
	Bits uint64
}

func (c *ConstantDouble) Tag() Tag { return TagDouble }

type ConstantClass struct {
	NameIndex uint16
}

func (c *ConstantClass) Tag() Tag { return TagClass }

type ConstantString struct {
	StringIndex uint16
}

func (c *ConstantString) Tag() Tag { return TagString }

// ConstantRef is a Fieldref, Methodref or InterfaceMethodref.
type ConstantRef struct {
	Kind             Tag
	ClassIndex       uint16
	NameAndTypeIndex uint16
}

func (c *ConstantRef) Tag() Tag { return c.Kind }

type ConstantNameAndType struct {
	NameIndex       uint16
	DescriptorIndex uint16
}

func (c *ConstantNameAndType) Tag() Tag { return TagNameAndType }

type ConstantMethodHandle struct {
	ReferenceKind  uint8
	ReferenceIndex uint16
}

func (c *ConstantMethodHandle) Tag() Tag { return TagMethodHandle }

type ConstantMethodType struct {
	DescriptorIndex uint16
}

func (c *ConstantMethodType) Tag() Tag { return TagMethodType }

// ConstantDynamic is a Dynamic or InvokeDynamic entry.
type ConstantDynamic struct {
	Kind                     Tag
	BootstrapMethodAttrIndex uint16
	NameAndTypeIndex         uint16
}

func (c *ConstantDynamic) Tag() Tag { return c.Kind }

// ConstantNamed is a Module or Package entry.
type ConstantNamed struct {
	Kind      Tag
	NameIndex uint16
}

func (c *ConstantNamed) Tag() Tag { return c.Kind }

// Attribute is kept undecoded; helpers decode the few kinds that carry names.
type Attribute struct {
	NameIndex uint16
	Data      []byte
}

// Member is a field_info or method_info.
type Member struct {
	AccessFlags     uint16
	NameIndex       uint16
	DescriptorIndex uint16
	Attributes      []*Attribute
}

func (m *Member) Name(cp *ConstantPool) string       { return cp.Utf8(m.NameIndex) }
func (m *Member) Descriptor(cp *ConstantPool) string { return cp.Utf8(m.DescriptorIndex) }
func (m *Member) Is(flag uint16) bool                { return m.AccessFlags&flag != 0 }

// Class is the in-memory form of a class file.
type Class struct {
	MinorVersion uint16
	MajorVersion uint16
	Pool         *ConstantPool
	AccessFlags  uint16
	ThisClass    uint16
	SuperClass   uint16
	Interfaces   []uint16
	Fields       []*Member
	Methods      []*Member
	Attributes   []*Attribute
}

// Name returns the internal name of the class.
func (c *Class) Name() string { return c.Pool.ClassName(c.ThisClass) }

// SuperName returns "" for java/lang/Object and module-info.
func (c *Class) SuperName() string {
	if c.SuperClass == 0 {
		return ""
	}
	return c.Pool.ClassName(c.SuperClass)
}

func (c *Class) InterfaceNames() []string {
	out := make([]string, 0, len(c.Interfaces))
	for _, idx := range c.Interfaces {
		out = append(out, c.Pool.ClassName(idx))
	}
	return out
}

func (c *Class) Is(flag uint16) bool { return c.AccessFlags&flag != 0 }

// Field returns the field declared with name and descriptor, or nil.
func (c *Class) Field(name, desc string) *Member {
	return c.find(c.Fields, name, desc)
}

// Method returns the method declared with name and descriptor, or nil.
func (c *Class) Method(name, desc string) *Member {
	return c.find(c.Methods, name, desc)
}

func (c *Class) find(members []*Member, name, desc string) *Member {
	for _, m := range members {
		if m.Name(c.Pool) == name && m.Descriptor(c.Pool) == desc {
			return m
		}
	}
	return nil
}

// HasNativeMethod reports whether any declared method is native.
func (c *Class) HasNativeMethod() bool {
	for _, m := range c.Methods {
		if m.Is(AccNative) {
			return true
		}
	}
	return false
}

// Attribute returns the first attribute with the given name in attrs.
func (c *Class) Attribute(attrs []*Attribute, name string) *Attribute {
	for _, a := range attrs {
		if c.Pool.Utf8(a.NameIndex) == name {
			return a
		}
	}
	return nil
}

// RemoveAttributes drops every attribute whose name is in names.
func (c *Class) RemoveAttributes(attrs []*Attribute, names ...string) []*Attribute {
	out := attrs[:0]
	for _, a := range attrs {
		drop := false
		n := c.Pool.Utf8(a.NameIndex)
		for _, name := range names {
			if n == name {
				drop = true
				break
			}
		}
		if !drop {
			out = append(out, a)
		}
	}
	return out
}

// NestHost returns the NestHost attribute target, or "" when the class is its own host.
func (c *Class) NestHost() string {
	a := c.Attribute(c.Attributes, AttrNestHost)
	if a == nil || len(a.Data) < 2 {
		return ""
	}
	return c.Pool.ClassName(be16(a.Data))
}

// NestMembers returns the classes listed in the NestMembers attribute.
func (c *Class) NestMembers() []string {
	a := c.Attribute(c.Attributes, AttrNestMembers)
	if a == nil || len(a.Data) < 2 {
		return nil
	}
	n := int(be16(a.Data))
	out := make([]string, 0, n)
	for i := 0; i < n && 2+2*i+2 <= len(a.Data); i++ {
		out = append(out, c.Pool.ClassName(be16(a.Data[2+2*i:])))
	}
	return out
}
