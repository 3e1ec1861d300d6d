package classfile

import "strings"

// MapSignature rewrites class names inside a generic Signature attribute
// (class, method or field form). A signature that does not parse is returned
// unchanged.
func MapSignature(sig string, mapClass func(string) string) string {
	p := &sigParser{s: sig, mapClass: mapClass, out: make([]byte, 0, len(sig))}
	if p.peek() == '<' && !p.typeParams() {
		return sig
	}
	for p.pos < len(p.s) {
		switch c := p.s[p.pos]; c {
		case '(', ')', '^', 'B', 'C', 'D', 'F', 'I', 'J', 'S', 'Z', 'V':
			p.out = append(p.out, c)
			p.pos++
		default:
			if !p.refType() {
				return sig
			}
		}
	}
	return string(p.out)
}

type sigParser struct {
	s        string
	pos      int
	out      []byte
	mapClass func(string) string
}

func (p *sigParser) peek() byte {
	if p.pos < len(p.s) {
		return p.s[p.pos]
	}
	return 0
}

func (p *sigParser) ident(stops string) (string, bool) {
	start := p.pos
	for p.pos < len(p.s) && !strings.ContainsRune(stops, rune(p.s[p.pos])) {
		p.pos++
	}
	if p.pos >= len(p.s) || p.pos == start {
		return "", false
	}
	return p.s[start:p.pos], true
}

func (p *sigParser) typeParams() bool {
	p.out = append(p.out, '<')
	p.pos++
	for p.peek() != '>' {
		name, ok := p.ident(":")
		if !ok {
			return false
		}
		p.out = append(p.out, name...)
		for p.peek() == ':' {
			p.out = append(p.out, ':')
			p.pos++
			if c := p.peek(); c == 'L' || c == 'T' || c == '[' {
				if !p.refType() {
					return false
				}
			}
		}
		if p.pos >= len(p.s) {
			return false
		}
	}
	p.out = append(p.out, '>')
	p.pos++
	return true
}

func (p *sigParser) refType() bool {
	switch p.peek() {
	case 'L':
		return p.classType()
	case 'T':
		v, ok := p.ident(";")
		if !ok {
			return false
		}
		p.out = append(p.out, v...)
		p.out = append(p.out, ';')
		p.pos++
		return true
	case '[':
		p.out = append(p.out, '[')
		p.pos++
		switch c := p.peek(); c {
		case 'B', 'C', 'D', 'F', 'I', 'J', 'S', 'Z':
			p.out = append(p.out, c)
			p.pos++
			return true
		}
		return p.refType()
	}
	return false
}

func (p *sigParser) classType() bool {
	start := len(p.out)
	p.pos++
	name, ok := p.ident("<.;")
	if !ok {
		return false
	}
	mapped := p.mapClass(name)
	p.out = append(p.out, 'L')
	p.out = append(p.out, mapped...)
	for {
		if p.peek() == '<' && !p.typeArgs() {
			return false
		}
		switch p.peek() {
		case '.':
			p.pos++
			inner, ok := p.ident("<.;")
			if !ok {
				return false
			}
			name = name + "$" + inner
			mappedInner := p.mapClass(name)
			if rest, found := strings.CutPrefix(mappedInner, mapped+"$"); found {
				p.out = append(p.out, '.')
				p.out = append(p.out, rest...)
			} else {
				// Not expressible as Outer.Inner any more: fall back to the erased form.
				p.out = append(p.out[:start], 'L')
				p.out = append(p.out, mappedInner...)
			}
			mapped = mappedInner
		case ';':
			p.pos++
			p.out = append(p.out, ';')
			return true
		default:
			return false
		}
	}
}

func (p *sigParser) typeArgs() bool {
	p.out = append(p.out, '<')
	p.pos++
	for p.peek() != '>' {
		switch c := p.peek(); c {
		case '*':
			p.out = append(p.out, c)
			p.pos++
		case '+', '-':
			p.out = append(p.out, c)
			p.pos++
			if !p.refType() {
				return false
			}
		default:
			if !p.refType() {
				return false
			}
		}
	}
	p.out = append(p.out, '>')
	p.pos++
	return true
}
