package classfile

import (
	"encoding/binary"
	"fmt"
)

// Code is the decoded Code attribute. Bytecode and the exception table are
// kept opaque; only nested attributes are exposed.
type Code struct {
	MaxStack       uint16
	MaxLocals      uint16
	Bytecode       []byte
	ExceptionTable []byte
	Attributes     []*Attribute
}

// DecodeCode parses the payload of a Code attribute.
func DecodeCode(data []byte) (*Code, error) {
	r := &reader{buf: data}
	code := &Code{
		MaxStack:  r.u2(),
		MaxLocals: r.u2(),
	}
	code.Bytecode = append([]byte(nil), r.take(int(r.u4()))...)
	code.ExceptionTable = append([]byte(nil), r.take(int(r.u2())*8)...)
	code.Attributes = readAttributes(r)
	if r.err != nil {
		return nil, fmt.Errorf("decode Code attribute: %w", r.err)
	}
	return code, nil
}

// Encode serializes the Code attribute payload.
func (code *Code) Encode() []byte {
	w := &writer{}
	w.u2(code.MaxStack)
	w.u2(code.MaxLocals)
	w.u4(uint32(len(code.Bytecode)))
	w.Write(code.Bytecode)
	w.u2(uint16(len(code.ExceptionTable) / 8))
	w.Write(code.ExceptionTable)
	writeAttributes(w, code.Attributes)
	return w.Buffer.Bytes()
}

// BootstrapMethod is one entry of the BootstrapMethods attribute.
type BootstrapMethod struct {
	MethodRef uint16
	Arguments []uint16
}

// BootstrapMethods decodes the class's BootstrapMethods attribute, if present.
func (c *Class) BootstrapMethods() ([]BootstrapMethod, error) {
	a := c.Attribute(c.Attributes, AttrBootstrapMethods)
	if a == nil {
		return nil, nil
	}
	r := &reader{buf: a.Data}
	n := int(r.u2())
	out := make([]BootstrapMethod, 0, n)
	for i := 0; i < n && r.err == nil; i++ {
		bm := BootstrapMethod{MethodRef: r.u2()}
		argc := int(r.u2())
		for range argc {
			bm.Arguments = append(bm.Arguments, r.u2())
		}
		out = append(out, bm)
	}
	if r.err != nil {
		return nil, fmt.Errorf("decode BootstrapMethods: %w", r.err)
	}
	return out, nil
}

// PatchU2 overwrites the big-endian u2 at off.
func PatchU2(data []byte, off int, v uint16) {
	binary.BigEndian.PutUint16(data[off:], v)
}
