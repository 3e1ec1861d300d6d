package classfile

import "fmt"

// DescriptorOffsets returns the offsets of every u2 in an annotation-bearing
// attribute payload that indexes a descriptor Utf8: annotation types, enum
// types and class values. Element names and enum constant names are not
// included. name selects the payload layout.
func DescriptorOffsets(name string, data []byte) ([]int, error) {
	r := &reader{buf: data}
	var offs []int
	switch name {
	case AttrRuntimeVisibleAnnotations, AttrRuntimeInvisibleAnnotations:
		annotations(r, &offs)
	case AttrRuntimeVisibleParameterAnnotations, AttrRuntimeInvisibleParameterAnnotations:
		for n := int(r.u1()); n > 0 && r.err == nil; n-- {
			annotations(r, &offs)
		}
	case AttrAnnotationDefault:
		elementValue(r, &offs)
	case AttrLocalVariableTable, AttrLocalVariableTypeTable:
		for n := int(r.u2()); n > 0 && r.err == nil; n-- {
			r.take(6)
			offs = append(offs, r.off)
			r.take(4)
		}
	default:
		return nil, fmt.Errorf("attribute %s carries no descriptors", name)
	}
	if r.err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, r.err)
	}
	return offs, nil
}

func annotations(r *reader, offs *[]int) {
	for n := int(r.u2()); n > 0 && r.err == nil; n-- {
		annotation(r, offs)
	}
}

func annotation(r *reader, offs *[]int) {
	*offs = append(*offs, r.off)
	r.u2()
	for n := int(r.u2()); n > 0 && r.err == nil; n-- {
		r.u2()
		elementValue(r, offs)
	}
}

func elementValue(r *reader, offs *[]int) {
	switch tag := r.u1(); tag {
	case 'B', 'C', 'D', 'F', 'I', 'J', 'S', 'Z', 's':
		r.u2()
	case 'e':
		*offs = append(*offs, r.off)
		r.u2()
		r.u2()
	case 'c':
		*offs = append(*offs, r.off)
		r.u2()
	case '@':
		annotation(r, offs)
	case '[':
		for n := int(r.u2()); n > 0 && r.err == nil; n-- {
			elementValue(r, offs)
		}
	default:
		if r.err == nil {
			r.err = fmt.Errorf("unknown element value tag %q at offset %d", tag, r.off-1)
		}
	}
}
