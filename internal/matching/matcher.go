package matching

import (
	"github.com/getmockd/serialmock/pkg/template"
)

// Equal reports whether a and b are equal under wildcard rules.
// Templates of different length are never equal.
func Equal(a, b *template.Template) bool {
	return a.Matches(b)
}

// MatchResult is the position-by-position comparison of an ask template with
// an incoming frame.
type MatchResult struct {
	// Matched is true when the ask accepts the frame.
	Matched bool

	// LengthMismatch is set when the frame has a different length; no
	// positions are compared in that case.
	LengthMismatch bool

	// Literals is the number of literal positions in the ask.
	Literals int

	// Score is the number of literal positions that matched.
	Score int

	// FirstMismatch is the first literal position that differs, or -1.
	FirstMismatch int

	// Expected and Actual hold the bytes at FirstMismatch.
	Expected byte
	Actual   byte
}

// Compare evaluates every literal position of ask against frame without
// short-circuiting.
func Compare(ask *template.Template, frame []byte) MatchResult {
	res := MatchResult{FirstMismatch: -1}
	if ask.Len() != len(frame) {
		res.LengthMismatch = true
		return res
	}

	for i := 0; i < ask.Len(); i++ {
		tok := ask.At(i)
		if !tok.IsLiteral() {
			continue
		}
		res.Literals++
		if tok.Byte() == frame[i] {
			res.Score++
			continue
		}
		if res.FirstMismatch < 0 {
			res.FirstMismatch = i
			res.Expected = tok.Byte()
			res.Actual = frame[i]
		}
	}
	res.Matched = res.FirstMismatch < 0
	return res
}

// Percentage returns the share of literal positions that matched, 0-100.
// An ask without literals scores 100 when the length fits.
func (r MatchResult) Percentage() int {
	if r.LengthMismatch {
		return 0
	}
	if r.Literals == 0 {
		return 100
	}
	return r.Score * 100 / r.Literals
}
