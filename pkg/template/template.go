package template

import (
	"sort"
	"strings"

	"github.com/getmockd/serialmock/pkg/function"
)

// Template is an immutable, fixed-length sequence of tokens built from one
// repeat-file line or from a raw buffer.
type Template struct {
	tokens    []Token
	variables map[byte]int
	functions map[int]function.Instance
}

// newTemplate assembles a Template and derives the variable index map in one
// pass. functions must be keyed by origin index.
func newTemplate(tokens []Token, functions map[int]function.Instance) *Template {
	t := &Template{
		tokens:    tokens,
		variables: make(map[byte]int),
		functions: functions,
	}
	for i, tok := range tokens {
		if tok.IsVariable() {
			// last occurrence wins
			t.variables[tok.VariableID()] = i
		}
	}
	return t
}

// FromBytes wraps buf as a literal-only Template. buf is copied.
func FromBytes(buf []byte) *Template {
	tokens := make([]Token, len(buf))
	for i, b := range buf {
		tokens[i] = Literal(b)
	}
	return newTemplate(tokens, nil)
}

// Len returns the number of byte positions.
func (t *Template) Len() int { return len(t.tokens) }

// At returns the token at position i.
func (t *Template) At(i int) Token { return t.tokens[i] }

// Tokens returns a copy of the token sequence.
func (t *Template) Tokens() []Token {
	out := make([]Token, len(t.tokens))
	copy(out, t.tokens)
	return out
}

// Variables returns a copy of the variable id to position map.
func (t *Template) Variables() map[byte]int {
	out := make(map[byte]int, len(t.variables))
	for id, idx := range t.variables {
		out[id] = idx
	}
	return out
}

// VariableIndex returns the position capturing variable id.
func (t *Template) VariableIndex(id byte) (int, bool) {
	idx, ok := t.variables[id]
	return idx, ok
}

// Function returns the function whose origin is at position i.
func (t *Template) Function(i int) (function.Instance, bool) {
	f, ok := t.functions[i]
	return f, ok
}

// Functions returns all function instances ordered by position.
func (t *Template) Functions() []function.Instance {
	out := make([]function.Instance, 0, len(t.functions))
	for _, f := range t.functions {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out
}

// IsLiteral reports whether every position is a literal byte.
func (t *Template) IsLiteral() bool {
	for _, tok := range t.tokens {
		if !tok.IsLiteral() {
			return false
		}
	}
	return true
}

// Bytes returns the literal bytes of t, with zero for every non-literal slot.
func (t *Template) Bytes() []byte {
	out := make([]byte, len(t.tokens))
	for i, tok := range t.tokens {
		if tok.IsLiteral() {
			out[i] = tok.Byte()
		}
	}
	return out
}

// Matches reports whether t and o are equal under wildcard rules: same length,
// and every position where both tokens are literals holds the same byte.
func (t *Template) Matches(o *Template) bool {
	if t == nil || o == nil || len(t.tokens) != len(o.tokens) {
		return false
	}
	for i, a := range t.tokens {
		b := o.tokens[i]
		if a.IsLiteral() && b.IsLiteral() && a != b {
			return false
		}
	}
	return true
}

// String renders t in the delimited grammar. Parsing the result yields an
// equivalent Template.
func (t *Template) String() string {
	parts := make([]string, 0, len(t.tokens))
	for i, tok := range t.tokens {
		switch {
		case tok.IsFunction():
			if f, ok := t.functions[i]; ok {
				parts = append(parts, f.String())
			} else {
				parts = append(parts, tok.String())
			}
		case tok.IsFunctionArea():
			// covered by the origin
		default:
			parts = append(parts, tok.String())
		}
	}
	return strings.Join(parts, " ")
}
