package classfile

import "strings"

// MapDescriptor rewrites every class name in a field or method descriptor.
func MapDescriptor(desc string, mapClass func(string) string) string {
	if !strings.Contains(desc, "L") {
		return desc
	}
	var b strings.Builder
	b.Grow(len(desc))
	for i := 0; i < len(desc); i++ {
		if desc[i] != 'L' {
			b.WriteByte(desc[i])
			continue
		}
		end := strings.IndexByte(desc[i:], ';')
		if end < 0 {
			return desc
		}
		b.WriteByte('L')
		b.WriteString(mapClass(desc[i+1 : i+end]))
		b.WriteByte(';')
		i += end
	}
	return b.String()
}

// MapClassConstant maps the name held by a Class constant, which is either an
// internal name or an array descriptor.
func MapClassConstant(name string, mapClass func(string) string) string {
	if strings.HasPrefix(name, "[") {
		return MapDescriptor(name, mapClass)
	}
	return mapClass(name)
}

// ReturnType returns the return part of a method descriptor.
func ReturnType(desc string) string {
	if i := strings.LastIndexByte(desc, ')'); i >= 0 {
		return desc[i+1:]
	}
	return ""
}

// ObjectType returns the internal name of an L...; descriptor, or "".
func ObjectType(desc string) string {
	if len(desc) > 2 && desc[0] == 'L' && desc[len(desc)-1] == ';' {
		return desc[1 : len(desc)-1]
	}
	return ""
}

// PackageOf returns the package part of an internal name ("" for the default package).
func PackageOf(name string) string {
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		return name[:i]
	}
	return ""
}

// SimpleName returns the part of an internal name after the last '/'.
func SimpleName(name string) string {
	return name[strings.LastIndexByte(name, '/')+1:]
}
