package mapping

import (
	"bufio"
	"fmt"
	"io"

	"github.com/cmmoran/jvmobf/internal/classfile"
	"github.com/cmmoran/jvmobf/internal/registry"
)

// Write emits the human readable mapping file:
//
//	CL: <newName> <oldName>
//	FD: <newOwner>/<newName> <oldOwner>/<oldName> <descriptor>
//	MD: <newOwner>/<newName> <newDesc> <oldOwner>/<oldName> <oldDesc>
//
// Identity decisions are skipped, and members are only listed on the class
// that declares them; reg must still hold the classes under their original names.
func Write(w io.Writer, t *Table, reg *registry.Registry) error {
	bw := bufio.NewWriter(w)
	for _, e := range t.Classes() {
		if e.Old == e.New {
			continue
		}
		fmt.Fprintf(bw, "CL: %s %s\n", e.New, e.Old)
	}
	for _, e := range t.Fields() {
		if e.Name == e.New || !declares(reg, e.MemberKey, false) {
			continue
		}
		fmt.Fprintf(bw, "FD: %s/%s %s/%s %s\n", t.MapClass(string(e.Owner)), e.New, e.Owner, e.Name, e.Descriptor)
	}
	for _, e := range t.Methods() {
		if e.Name == e.New || !declares(reg, e.MemberKey, true) {
			continue
		}
		fmt.Fprintf(bw, "MD: %s/%s %s %s/%s %s\n",
			t.MapClass(string(e.Owner)), e.New, classfile.MapDescriptor(e.Descriptor, t.MapClass),
			e.Owner, e.Name, e.Descriptor)
	}
	return bw.Flush()
}

func declares(reg *registry.Registry, k MemberKey, method bool) bool {
	d, ok := reg.Get(k.Owner)
	if !ok || d.Class == nil {
		return false
	}
	if method {
		return d.Class.Method(k.Name, k.Descriptor) != nil
	}
	return d.Class.Field(k.Name, k.Descriptor) != nil
}
