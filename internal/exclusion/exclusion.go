// Package exclusion compiles the glob-like exclusion language into matchers.
//
//	.   package separator
//	**  any sequence of characters, across packages
//	*   any sequence within one package segment
//
// Patterns match the whole internal name: "io.netty.**" matches
// io/netty/buffer/ByteBuf, "io.netty.*" does not. Members are matched as
// owner/name.
package exclusion

import (
	"fmt"
	"regexp"
	"strings"
)

// Category selects which rule list applies.
type Category int

const (
	Class Category = iota
	Method
	Field
)

func (c Category) String() string {
	switch c {
	case Method:
		return "method"
	case Field:
		return "field"
	}
	return "class"
}

// Pattern is a compiled exclusion pattern.
type Pattern struct {
	Source string
	re     *regexp.Regexp
}

func (p *Pattern) Match(name string) bool { return p.re.MatchString(name) }

// Compile translates one pattern into an anchored regular expression.
func Compile(pattern string) (*Pattern, error) {
	var b strings.Builder
	b.WriteString("^")
	for i := 0; i < len(pattern); i++ {
		switch c := pattern[i]; c {
		case '*':
			if i+1 < len(pattern) && pattern[i+1] == '*' {
				b.WriteString(".*")
				i++
			} else {
				b.WriteString("[^/]*")
			}
		case '.':
			b.WriteByte('/')
		default:
			b.WriteString(regexp.QuoteMeta(string(c)))
		}
	}
	b.WriteString("$")
	re, err := regexp.Compile(b.String())
	if err != nil {
		return nil, fmt.Errorf("compile exclusion %q: %w", pattern, err)
	}
	return &Pattern{Source: pattern, re: re}, nil
}

// Rules holds the compiled patterns of every category.
type Rules struct {
	byCategory map[Category][]*Pattern
}

// NewRules compiles text blocks per category. Every block is split into
// lines; blank lines and lines starting with '#' are ignored.
func NewRules(classes, methods, fields []string) (*Rules, error) {
	r := &Rules{byCategory: make(map[Category][]*Pattern)}
	for cat, blocks := range map[Category][]string{Class: classes, Method: methods, Field: fields} {
		for _, block := range blocks {
			for _, line := range strings.Split(block, "\n") {
				line = strings.TrimSpace(line)
				if line == "" || strings.HasPrefix(line, "#") {
					continue
				}
				p, err := Compile(line)
				if err != nil {
					return nil, fmt.Errorf("%s exclusions: %w", cat, err)
				}
				r.byCategory[cat] = append(r.byCategory[cat], p)
			}
		}
	}
	return r, nil
}

// Excluded reports whether name matches any pattern of cat. A nil Rules
// excludes nothing.
func (r *Rules) Excluded(cat Category, name string) bool {
	if r == nil {
		return false
	}
	for _, p := range r.byCategory[cat] {
		if p.Match(name) {
			return true
		}
	}
	return false
}

// ClassExcluded matches an internal class name.
func (r *Rules) ClassExcluded(owner string) bool { return r.Excluded(Class, owner) }

// MethodExcluded matches owner/name.
func (r *Rules) MethodExcluded(owner, name string) bool { return r.Excluded(Method, owner+"/"+name) }

// FieldExcluded matches owner/name.
func (r *Rules) FieldExcluded(owner, name string) bool { return r.Excluded(Field, owner+"/"+name) }

// Len returns the number of compiled patterns in cat.
func (r *Rules) Len(cat Category) int {
	if r == nil {
		return 0
	}
	return len(r.byCategory[cat])
}
