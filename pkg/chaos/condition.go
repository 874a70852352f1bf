package chaos

import (
	"encoding/hex"
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// condition is a compiled rule "when" expression. It sees the frame as
// frame (a list of byte values), size (its length) and hex (lowercase hex).
type condition struct {
	source  string
	program *vm.Program
}

func frameEnv(frame []byte) map[string]any {
	values := make([]int, len(frame))
	for i, b := range frame {
		values[i] = int(b)
	}
	return map[string]any{
		"frame": values,
		"size":  len(frame),
		"hex":   hex.EncodeToString(frame),
	}
}

func compileCondition(source string) (*condition, error) {
	program, err := expr.Compile(source, expr.Env(frameEnv(nil)), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("when: %w", err)
	}
	return &condition{source: source, program: program}, nil
}

// eval reports whether frame satisfies the condition. Runtime errors, such as
// indexing past the end of a short frame, count as false.
func (c *condition) eval(frame []byte) bool {
	out, err := expr.Run(c.program, frameEnv(frame))
	if err != nil {
		return false
	}
	ok, _ := out.(bool)
	return ok
}
