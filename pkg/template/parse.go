package template

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/getmockd/serialmock/pkg/function"
)

// Grammar identifies the syntax of a repeat-file line.
type Grammar int

// Supported grammars.
const (
	GrammarDelimited Grammar = iota + 1
	GrammarContiguous
	GrammarASCII
)

// String returns the grammar name.
func (g Grammar) String() string {
	switch g {
	case GrammarDelimited:
		return "delimited"
	case GrammarContiguous:
		return "contiguous"
	case GrammarASCII:
		return "ascii"
	default:
		return "unknown"
	}
}

// DetectGrammar classifies a line. A line whose first field starts with 0x,
// $ or @ is delimited; a line made only of hex digits is contiguous; anything
// else is ASCII. Detection looks at the first field only, so a delimited line
// with a bad later token still parses as delimited and fails on that token.
func DetectGrammar(line string) Grammar {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return GrammarASCII
	}

	if first := fields[0]; hasHexPrefix(first) || first[0] == '$' || first[0] == '@' {
		return GrammarDelimited
	}

	if len(fields) == 1 && isHexDigits(fields[0]) {
		return GrammarContiguous
	}
	return GrammarASCII
}

// Parse parses one line, detecting its grammar. ASCII lines are rejected
// with ErrFormat.
func Parse(text string) (*Template, error) {
	line := strings.TrimSpace(text)
	switch DetectGrammar(line) {
	case GrammarDelimited:
		return ParseDelimited(line)
	case GrammarContiguous:
		return ParseContiguous(line)
	default:
		if line == "" {
			return nil, formatError("", 0, "empty line")
		}
		return nil, formatError("", 0, "line is neither delimited nor contiguous hex")
	}
}

// ParseDelimited parses a whitespace separated line of 0xHH, $N and @name tokens.
func ParseDelimited(text string) (*Template, error) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return nil, formatError("", 0, "empty line")
	}

	tokens := make([]Token, 0, len(fields))
	var functions map[int]function.Instance

	for i, field := range fields {
		column := i + 1
		switch {
		case hasHexPrefix(field):
			b, err := parseHexByte(field[2:])
			if err != nil {
				return nil, formatError(field, column, "%v", err)
			}
			tokens = append(tokens, Literal(b))

		case field[0] == '$':
			id, err := parseVariableID(field[1:])
			if err != nil {
				return nil, formatError(field, column, "%v", err)
			}
			tokens = append(tokens, Variable(id))

		case field[0] == '@':
			f, err := parseFunction(field[1:], len(tokens))
			if err != nil {
				return nil, &ParseError{Token: field, Column: column, Err: err}
			}
			if functions == nil {
				functions = make(map[int]function.Instance)
			}
			functions[f.Position] = f
			tokens = append(tokens, FunctionOrigin())
			for k := 1; k < f.Size(); k++ {
				tokens = append(tokens, FunctionContinuation(k))
			}

		default:
			return nil, formatError(field, column, "expected 0xHH, $N or @function")
		}
	}

	return newTemplate(tokens, functions), nil
}

// ParseContiguous parses an even-length run of hex digits, two per byte.
func ParseContiguous(text string) (*Template, error) {
	line := strings.TrimSpace(text)
	if line == "" {
		return nil, formatError("", 0, "empty line")
	}
	if !isHexDigits(line) {
		return nil, formatError("", 0, "contiguous hex contains non-hex characters")
	}
	if len(line)%2 == 1 {
		return nil, formatError("", 0, "odd number of hex digits (%d)", len(line))
	}
	buf, err := hex.DecodeString(line)
	if err != nil {
		return nil, formatError("", 0, "%v", err)
	}
	return FromBytes(buf), nil
}

// parseFunction parses "name" or "name[a..b]" into an instance at position.
func parseFunction(call string, position int) (function.Instance, error) {
	name, rng := call, ""
	if i := strings.IndexByte(call, '['); i >= 0 {
		name, rng = call[:i], call[i:]
	}
	if name == "" {
		return function.Instance{}, fmt.Errorf("%w: missing function name", ErrFormat)
	}

	f, err := function.Resolve(name, position)
	if err != nil {
		return function.Instance{}, err
	}
	if rng == "" {
		return f, nil
	}

	start, end, err := function.ParseRange(rng)
	if err != nil {
		return function.Instance{}, err
	}
	f.Start, f.End = start, end
	return f, nil
}

func parseHexByte(s string) (byte, error) {
	if len(s) < 1 || len(s) > 2 || !isHexDigits(s) {
		return 0, fmt.Errorf("expected 1-2 hex digits after 0x, got %q", s)
	}
	v, err := strconv.ParseUint(s, 16, 8)
	if err != nil {
		return 0, err
	}
	return byte(v), nil
}

func parseVariableID(s string) (byte, error) {
	if s == "" || len(s) > 3 {
		return 0, fmt.Errorf("expected variable id 0-255, got %q", s)
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, fmt.Errorf("expected variable id 0-255, got %q", s)
		}
	}
	v, err := strconv.ParseUint(s, 10, 8)
	if err != nil {
		return 0, fmt.Errorf("variable id %q out of range 0-255", s)
	}
	return byte(v), nil
}

func hasHexPrefix(s string) bool {
	return len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X')
}

func isHexDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !('0' <= c && c <= '9' || 'a' <= c && c <= 'f' || 'A' <= c && c <= 'F') {
			return false
		}
	}
	return true
}
