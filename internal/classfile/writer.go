package classfile

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

type writer struct {
	bytes.Buffer
}

func (w *writer) u1(v uint8)  { w.WriteByte(v) }
func (w *writer) u2(v uint16) { w.Write(binary.BigEndian.AppendUint16(nil, v)) }
func (w *writer) u4(v uint32) { w.Write(binary.BigEndian.AppendUint32(nil, v)) }
func (w *writer) u8(v uint64) { w.Write(binary.BigEndian.AppendUint64(nil, v)) }

// Bytes serializes the class. It fails when an index or length no longer fits
// the class file format.
func (c *Class) Bytes() ([]byte, error) {
	if c.Pool.Count() > math.MaxUint16 {
		return nil, fmt.Errorf("%w: %d entries", ErrTooLarge, c.Pool.Count())
	}
	w := &writer{}
	w.u4(Magic)
	w.u2(c.MinorVersion)
	w.u2(c.MajorVersion)
	w.u2(uint16(c.Pool.Count()))
	for _, e := range c.Pool.entries {
		if e == nil {
			continue
		}
		if err := writeConstant(w, e); err != nil {
			return nil, err
		}
	}
	w.u2(c.AccessFlags)
	w.u2(c.ThisClass)
	w.u2(c.SuperClass)
	w.u2(uint16(len(c.Interfaces)))
	for _, i := range c.Interfaces {
		w.u2(i)
	}
	for _, members := range [][]*Member{c.Fields, c.Methods} {
		w.u2(uint16(len(members)))
		for _, m := range members {
			w.u2(m.AccessFlags)
			w.u2(m.NameIndex)
			w.u2(m.DescriptorIndex)
			writeAttributes(w, m.Attributes)
		}
	}
	writeAttributes(w, c.Attributes)
	return w.Buffer.Bytes(), nil
}

func writeConstant(w *writer, e Constant) error {
	w.u1(uint8(e.Tag()))
	switch c := e.(type) {
	case *ConstantUtf8:
		if len(c.Value) > math.MaxUint16 {
			return fmt.Errorf("utf8 constant of %d bytes exceeds u2 length", len(c.Value))
		}
		w.u2(uint16(len(c.Value)))
		w.WriteString(c.Value)
	case *ConstantInteger:
		w.u4(c.Bits)
	case *ConstantFloat:
		w.u4(c.Bits)
	case *ConstantLong:
		w.u8(c.Bits)
	case *ConstantDouble:
		w.u8(c.Bits)
	case *ConstantClass:
		w.u2(c.NameIndex)
	case *ConstantString:
		w.u2(c.StringIndex)
	case *ConstantRef:
		w.u2(c.ClassIndex)
		w.u2(c.NameAndTypeIndex)
	case *ConstantNameAndType:
		w.u2(c.NameIndex)
		w.u2(c.DescriptorIndex)
	case *ConstantMethodHandle:
		w.u1(c.ReferenceKind)
		w.u2(c.ReferenceIndex)
	case *ConstantMethodType:
		w.u2(c.DescriptorIndex)
	case *ConstantDynamic:
		w.u2(c.BootstrapMethodAttrIndex)
		w.u2(c.NameAndTypeIndex)
	case *ConstantNamed:
		w.u2(c.NameIndex)
	default:
		return fmt.Errorf("%w %d", ErrBadTag, e.Tag())
	}
	return nil
}

func writeAttributes(w *writer, attrs []*Attribute) {
	w.u2(uint16(len(attrs)))
	for _, a := range attrs {
		w.u2(a.NameIndex)
		w.u4(uint32(len(a.Data)))
		w.Write(a.Data)
	}
}
