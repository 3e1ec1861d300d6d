package mapping

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/cmmoran/jvmobf/internal/registry"
)

// Read parses a mapping file written by Write back into an unfrozen table.
// Members are keyed by their original owner, name and descriptor.
func Read(r io.Reader) (*Table, error) {
	t := NewTable()
	sc := bufio.NewScanner(r)
	for line := 1; sc.Scan(); line++ {
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		if err := t.readLine(text); err != nil {
			return nil, fmt.Errorf("mapping line %d: %w", line, err)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Table) readLine(text string) error {
	f := strings.Fields(text)
	var err error
	switch {
	case f[0] == "CL:" && len(f) == 3:
		_, err = t.PutClass(registry.ClassReference(f[2]), registry.ClassReference(f[1]))
	case f[0] == "FD:" && len(f) == 4:
		k, ok := splitMember(f[2], f[3])
		if !ok {
			return fmt.Errorf("malformed field %q", f[2])
		}
		_, err = t.PutField(k, memberName(f[1]))
	case f[0] == "MD:" && len(f) == 5:
		k, ok := splitMember(f[3], f[4])
		if !ok {
			return fmt.Errorf("malformed method %q", f[3])
		}
		_, err = t.PutMethod(k, memberName(f[1]))
	default:
		return fmt.Errorf("unrecognized entry %q", text)
	}
	return err
}

func splitMember(qualified, desc string) (MemberKey, bool) {
	i := strings.LastIndexByte(qualified, '/')
	if i <= 0 || i == len(qualified)-1 {
		return MemberKey{}, false
	}
	return MemberKey{Owner: registry.ClassReference(qualified[:i]), Name: qualified[i+1:], Descriptor: desc}, true
}

func memberName(qualified string) string {
	return qualified[strings.LastIndexByte(qualified, '/')+1:]
}
