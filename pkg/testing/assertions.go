package testing

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/getmockd/serialmock/internal/matching"
	"github.com/getmockd/serialmock/pkg/logging"
	"github.com/getmockd/serialmock/pkg/template"
)

// Frame is one received frame and what the device did with it.
type Frame struct {
	// Rx is the received frame.
	Rx []byte
	// Tx is the answer, nil when unanswered.
	Tx []byte
	// Pair is the index of the answering pair, -1 when unanswered.
	Pair int
	// At is the receive time.
	At time.Time
}

// AssertAnswered asserts that the frame got an answer.
func (f *Frame) AssertAnswered(t testing.TB) {
	t.Helper()
	if f.Tx == nil {
		t.Errorf("expected frame %s to be answered", logging.HexDump(f.Rx))
	}
}

// AssertUnanswered asserts that no pair answered the frame.
func (f *Frame) AssertUnanswered(t testing.TB) {
	t.Helper()
	if f.Tx != nil {
		t.Errorf("expected frame %s to stay unanswered, got %s", logging.HexDump(f.Rx), logging.HexDump(f.Tx))
	}
}

// AssertAnswer asserts the exact answer bytes, given as literal hex.
func (f *Frame) AssertAnswer(t testing.TB, expected string) {
	t.Helper()
	want, ok := parseLiteral(expected)
	if !ok {
		t.Errorf("expected answer %q is not literal hex", expected)
		return
	}
	if !bytes.Equal(f.Tx, want) {
		t.Errorf("expected answer %s, got %s", logging.HexDump(want), logging.HexDump(f.Tx))
	}
}

// parseLiteral accepts "0x01 0x02", "0102" and "01 02".
func parseLiteral(s string) ([]byte, bool) {
	text := s
	if bare := strings.Join(strings.Fields(s), ""); template.DetectGrammar(bare) == template.GrammarContiguous {
		text = bare
	}
	tmpl, err := template.Parse(text)
	if err != nil || !tmpl.IsLiteral() {
		return nil, false
	}
	return tmpl.Bytes(), true
}

// AssertAsked asserts that a frame matching pattern was received at least
// once. pattern uses ask syntax, so $N matches any byte.
func (d *Device) AssertAsked(t testing.TB, pattern string) {
	t.Helper()
	if d.countFrames(t, pattern) == 0 {
		t.Errorf("expected a frame matching %s, but none was received", pattern)
	}
}

// AssertAskedTimes asserts that exactly n frames matched pattern.
func (d *Device) AssertAskedTimes(t testing.TB, pattern string, n int) {
	t.Helper()
	if count := d.countFrames(t, pattern); count != n {
		t.Errorf("expected %d frames matching %s, got %d", n, pattern, count)
	}
}

// AssertNotAsked asserts that no frame matched pattern.
func (d *Device) AssertNotAsked(t testing.TB, pattern string) {
	t.Helper()
	if count := d.countFrames(t, pattern); count > 0 {
		t.Errorf("expected no frame matching %s, got %d", pattern, count)
	}
}

func (d *Device) countFrames(t testing.TB, pattern string) int {
	t.Helper()
	want, err := template.Parse(pattern)
	if err != nil {
		t.Errorf("invalid pattern %q: %v", pattern, err)
		return 0
	}
	count := 0
	for _, f := range d.Frames() {
		if matching.Equal(want, template.FromBytes(f.Rx)) {
			count++
		}
	}
	return count
}
