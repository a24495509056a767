package ast

import (
	"fmt"
	"strings"
	"unicode"
)

// TypeExpr is a type annotation as written in source.
//
//	int                      {Name: "int"}
//	list[int]                {Name: "list", Params: [int]}
//	dict[string, `v]         {Name: "dict", Params: [string, {Var: "v"}]}
//	func(int, bool) -> str   {Name: "func", Params: [int, bool], Return: str}
type TypeExpr struct {
	Name   string
	Var    string
	Params []*TypeExpr
	Return *TypeExpr
}

// IsVar reports whether the annotation names a type variable.
func (t *TypeExpr) IsVar() bool { return t != nil && t.Var != "" }

func (t *TypeExpr) String() string {
	if t == nil {
		return ""
	}
	if t.Var != "" {
		return "`" + t.Var
	}
	params := make([]string, len(t.Params))
	for i, p := range t.Params {
		params[i] = p.String()
	}
	if t.Name == "func" {
		ret := "void"
		if t.Return != nil {
			ret = t.Return.String()
		}
		return fmt.Sprintf("func(%s) -> %s", strings.Join(params, ", "), ret)
	}
	if len(params) == 0 {
		return t.Name
	}
	return fmt.Sprintf("%s[%s]", t.Name, strings.Join(params, ", "))
}

// ParseTypeExpr parses the textual annotation form used in schema files and
// serialized parse trees.
func ParseTypeExpr(s string) (*TypeExpr, error) {
	p := &typeParser{src: s}
	t, err := p.parse()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return nil, fmt.Errorf("unexpected %q at offset %d in type %q", p.src[p.pos:], p.pos, s)
	}
	return t, nil
}

// MustParseTypeExpr is ParseTypeExpr for literals known to be valid.
func MustParseTypeExpr(s string) *TypeExpr {
	t, err := ParseTypeExpr(s)
	if err != nil {
		panic(err)
	}
	return t
}

type typeParser struct {
	src string
	pos int
}

func (p *typeParser) skipSpace() {
	for p.pos < len(p.src) && p.src[p.pos] == ' ' {
		p.pos++
	}
}

func (p *typeParser) peek() byte {
	p.skipSpace()
	if p.pos >= len(p.src) {
		return 0
	}
	return p.src[p.pos]
}

func (p *typeParser) expect(tok string) error {
	p.skipSpace()
	if !strings.HasPrefix(p.src[p.pos:], tok) {
		return fmt.Errorf("expected %q at offset %d in type %q", tok, p.pos, p.src)
	}
	p.pos += len(tok)
	return nil
}

func (p *typeParser) ident() string {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.src) {
		r := rune(p.src[p.pos])
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			break
		}
		p.pos++
	}
	return p.src[start:p.pos]
}

func (p *typeParser) parse() (*TypeExpr, error) {
	if p.peek() == '`' {
		p.pos++
		name := p.ident()
		if name == "" {
			return nil, fmt.Errorf("empty type variable in %q", p.src)
		}
		return &TypeExpr{Var: name}, nil
	}
	name := p.ident()
	if name == "" {
		return nil, fmt.Errorf("expected type name at offset %d in %q", p.pos, p.src)
	}
	t := &TypeExpr{Name: name}
	switch {
	case name == "func":
		if err := p.expect("("); err != nil {
			return nil, err
		}
		params, err := p.list(')')
		if err != nil {
			return nil, err
		}
		t.Params = params
		if p.peek() == '-' {
			if err := p.expect("->"); err != nil {
				return nil, err
			}
			ret, err := p.parse()
			if err != nil {
				return nil, err
			}
			t.Return = ret
		}
	case p.peek() == '[':
		p.pos++
		params, err := p.list(']')
		if err != nil {
			return nil, err
		}
		t.Params = params
	}
	return t, nil
}

func (p *typeParser) list(closer byte) ([]*TypeExpr, error) {
	var out []*TypeExpr
	if p.peek() == closer {
		p.pos++
		return out, nil
	}
	for {
		item, err := p.parse()
		if err != nil {
			return nil, err
		}
		out = append(out, item)
		switch p.peek() {
		case ',':
			p.pos++
		case closer:
			p.pos++
			return out, nil
		default:
			return nil, fmt.Errorf("expected ',' or %q at offset %d in type %q", closer, p.pos, p.src)
		}
	}
}
