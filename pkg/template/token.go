package template

import (
	"fmt"
	"strconv"
)

// Token describes one byte position of a Template. See the package
// documentation for the bit layout.
type Token uint16

// Token flag bits.
const (
	FlagVariable Token = 0x100
	FlagFunction Token = 0x200

	flagMask Token = FlagVariable | FlagFunction
)

// Literal returns a token for the literal byte b.
func Literal(b byte) Token { return Token(b) }

// Variable returns a token for variable id.
func Variable(id byte) Token { return FlagVariable | Token(id) }

// FunctionOrigin returns the token marking the slot where a function writes.
func FunctionOrigin() Token { return FlagFunction }

// FunctionContinuation returns the token for the offset-th byte of a
// multi-byte function output. Offset must be in 1..255.
func FunctionContinuation(offset int) Token { return FlagFunction | Token(offset&0xFF) }

// IsLiteral reports whether t carries neither the variable nor the function flag.
func (t Token) IsLiteral() bool { return t&flagMask == 0 }

// IsVariable reports whether t is a variable slot.
func (t Token) IsVariable() bool { return t&FlagVariable == FlagVariable }

// IsFunction reports whether t is a function origin.
func (t Token) IsFunction() bool { return t&0x2FF == 0x200 }

// IsFunctionArea reports whether t belongs to a function output, origin or continuation.
func (t Token) IsFunctionArea() bool { return t&FlagFunction == FlagFunction }

// Byte returns the literal value of t.
func (t Token) Byte() byte { return byte(t & 0xFF) }

// VariableID returns the variable id of t.
func (t Token) VariableID() byte { return byte(t & 0xFF) }

// Offset returns the offset of a function slot; 0 for the origin.
func (t Token) Offset() int { return int(t & 0xFF) }

// String renders the token for diagnostics: 0x1F, $3, @ or @+1.
func (t Token) String() string {
	switch {
	case t.IsVariable():
		return "$" + strconv.Itoa(int(t.VariableID()))
	case t.IsFunction():
		return "@"
	case t.IsFunctionArea():
		return "@+" + strconv.Itoa(t.Offset())
	default:
		return fmt.Sprintf("0x%02X", t.Byte())
	}
}
