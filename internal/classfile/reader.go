package classfile

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	ErrBadMagic  = errors.New("not a class file")
	ErrTruncated = errors.New("truncated class file")
	ErrBadTag    = errors.New("unknown constant pool tag")
	ErrTooLarge  = errors.New("constant pool overflow")
)

type reader struct {
	buf []byte
	off int
	err error
}

func (r *reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || r.off+n > len(r.buf) {
		r.err = fmt.Errorf("%w at offset %d", ErrTruncated, r.off)
		return nil
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b
}

func (r *reader) u1() uint8 {
	if b := r.take(1); b != nil {
		return b[0]
	}
	return 0
}

func (r *reader) u2() uint16 {
	if b := r.take(2); b != nil {
		return binary.BigEndian.Uint16(b)
	}
	return 0
}

func (r *reader) u4() uint32 {
	if b := r.take(4); b != nil {
		return binary.BigEndian.Uint32(b)
	}
	return 0
}

func (r *reader) u8() uint64 {
	if b := r.take(8); b != nil {
		return binary.BigEndian.Uint64(b)
	}
	return 0
}

// Parse decodes a class file. Attribute payloads are copied, so data may be
// reused by the caller.
func Parse(data []byte) (*Class, error) {
	r := &reader{buf: data}
	if r.u4() != Magic {
		if r.err != nil {
			return nil, r.err
		}
		return nil, ErrBadMagic
	}
	c := &Class{
		MinorVersion: r.u2(),
		MajorVersion: r.u2(),
	}
	pool, err := readPool(r)
	if err != nil {
		return nil, err
	}
	c.Pool = pool
	c.AccessFlags = r.u2()
	c.ThisClass = r.u2()
	c.SuperClass = r.u2()
	n := int(r.u2())
	c.Interfaces = make([]uint16, 0, n)
	for range n {
		c.Interfaces = append(c.Interfaces, r.u2())
	}
	c.Fields = readMembers(r)
	c.Methods = readMembers(r)
	c.Attributes = readAttributes(r)
	if r.err != nil {
		return nil, r.err
	}
	if _, ok := c.Pool.Get(c.ThisClass).(*ConstantClass); !ok {
		return nil, fmt.Errorf("this_class #%d is not a Class constant", c.ThisClass)
	}
	return c, nil
}

func readPool(r *reader) (*ConstantPool, error) {
	count := int(r.u2())
	cp := &ConstantPool{entries: make([]Constant, 1, max(count, 1))}
	for len(cp.entries) < count {
		tag := Tag(r.u1())
		var c Constant
		switch tag {
		case TagUtf8:
			n := int(r.u2())
			c = &ConstantUtf8{Value: string(r.take(n))}
		case TagInteger:
			c = &ConstantInteger{Bits: r.u4()}
		case TagFloat:
			c = &ConstantFloat{Bits: r.u4()}
		case TagLong:
			c = &ConstantLong{Bits: r.u8()}
		case TagDouble:
			c = &ConstantDouble{Bits: r.u8()}
		case TagClass:
			c = &ConstantClass{NameIndex: r.u2()}
		case TagString:
			c = &ConstantString{StringIndex: r.u2()}
		case TagFieldref, TagMethodref, TagInterfaceMethodref:
			c = &ConstantRef{Kind: tag, ClassIndex: r.u2(), NameAndTypeIndex: r.u2()}
		case TagNameAndType:
			c = &ConstantNameAndType{NameIndex: r.u2(), DescriptorIndex: r.u2()}
		case TagMethodHandle:
			c = &ConstantMethodHandle{ReferenceKind: r.u1(), ReferenceIndex: r.u2()}
		case TagMethodType:
			c = &ConstantMethodType{DescriptorIndex: r.u2()}
		case TagDynamic, TagInvokeDynamic:
			c = &ConstantDynamic{Kind: tag, BootstrapMethodAttrIndex: r.u2(), NameAndTypeIndex: r.u2()}
		case TagModule, TagPackage:
			c = &ConstantNamed{Kind: tag, NameIndex: r.u2()}
		default:
			if r.err != nil {
				return nil, r.err
			}
			return nil, fmt.Errorf("%w %d at index %d", ErrBadTag, tag, len(cp.entries))
		}
		if r.err != nil {
			return nil, r.err
		}
		cp.add(c)
	}
	return cp, r.err
}

func readMembers(r *reader) []*Member {
	n := int(r.u2())
	out := make([]*Member, 0, n)
	for i := 0; i < n && r.err == nil; i++ {
		out = append(out, &Member{
			AccessFlags:     r.u2(),
			NameIndex:       r.u2(),
			DescriptorIndex: r.u2(),
			Attributes:      readAttributes(r),
		})
	}
	return out
}

func readAttributes(r *reader) []*Attribute {
	n := int(r.u2())
	out := make([]*Attribute, 0, n)
	for i := 0; i < n && r.err == nil; i++ {
		name := r.u2()
		size := int(r.u4())
		data := r.take(size)
		out = append(out, &Attribute{NameIndex: name, Data: append([]byte(nil), data...)})
	}
	return out
}

func be16(b []byte) uint16 { return binary.BigEndian.Uint16(b) }
