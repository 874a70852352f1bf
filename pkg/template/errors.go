package template

import (
	"errors"
	"fmt"

	"github.com/getmockd/serialmock/pkg/function"
)

// Error classes. Use errors.Is to classify a *ParseError.
var (
	// ErrFormat is returned for malformed hex, unknown token syntax,
	// odd-length contiguous hex or an unrecognized grammar.
	ErrFormat = errors.New("invalid format")

	// ErrConfiguration is returned for an unsupported function name.
	ErrConfiguration = function.ErrConfiguration

	// ErrArgument is returned for a malformed function range.
	ErrArgument = function.ErrArgument
)

// ParseError describes why a line could not be parsed.
type ParseError struct {
	// Token is the offending source token, empty for line-level errors.
	Token string

	// Column is the 1-based index of Token among the line's fields.
	Column int

	// Err wraps ErrFormat, ErrConfiguration or ErrArgument.
	Err error
}

func (e *ParseError) Error() string {
	if e.Token != "" {
		return fmt.Sprintf("token %d %q: %v", e.Column, e.Token, e.Err)
	}
	return e.Err.Error()
}

func (e *ParseError) Unwrap() error { return e.Err }

func formatError(token string, column int, format string, args ...any) *ParseError {
	return &ParseError{
		Token:  token,
		Column: column,
		Err:    fmt.Errorf("%w: "+format, append([]any{ErrFormat}, args...)...),
	}
}
