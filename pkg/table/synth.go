package table

import (
	mathrand "math/rand/v2"

	"github.com/getmockd/serialmock/pkg/template"
)

// Synthesize builds the answer for incoming, which must have matched ask.
// The result always has answer.Len() bytes; slots that cannot be resolved
// are zero. rng feeds @rand slots; nil uses the global generator.
func Synthesize(ask, answer *template.Template, incoming []byte, rng *mathrand.Rand) []byte {
	out := make([]byte, answer.Len())

	for i := range out {
		tok := answer.At(i)
		switch {
		case tok.IsVariable():
			if ask == nil {
				continue
			}
			if j, ok := ask.VariableIndex(tok.VariableID()); ok && j < len(incoming) {
				out[i] = incoming[j]
			}
		case tok.IsFunction():
			if f, ok := answer.Function(i); ok {
				f.Compute(out, rng)
			}
		case tok.IsFunctionArea():
			// written by the origin
		default:
			out[i] = tok.Byte()
		}
	}

	return out
}
