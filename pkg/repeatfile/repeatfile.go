package repeatfile

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/getmockd/serialmock/internal/matching"
	"github.com/getmockd/serialmock/pkg/table"
	"github.com/getmockd/serialmock/pkg/template"
)

// Errors returned while loading a repeat file.
var (
	ErrFileNotFound = errors.New("repeat file not found")
	ErrEmptyFile    = errors.New("repeat file is empty")
	ErrNoPairs      = errors.New("repeat file has no ask/answer pairs")
	ErrOddLines     = errors.New("ask has no answer line")
	ErrMixedGrammar = fmt.Errorf("%w: line does not match the file grammar", template.ErrFormat)
	ErrDuplicateAsk = table.ErrDuplicateAsk
)

// maxLineSize bounds a single repeat-file line.
const maxLineSize = 1 << 20

// LineError reports the line a load failed on.
type LineError struct {
	Line int
	Text string
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *LineError) Unwrap() error { return e.Err }

// ASCIIPair is an ask/answer pair of an ASCII repeat file.
type ASCIIPair struct {
	Ask    string
	Answer string
	// Line is the line number of the ask.
	Line int
}

// File is a parsed repeat file.
type File struct {
	// Path is set by Load.
	Path    string
	Grammar template.Grammar

	// Pairs holds the templates of a hex file in file order.
	Pairs []table.Pair

	// ASCII holds the pairs of an ASCII file in file order.
	ASCII []ASCIIPair

	// Lines is the number of data lines read.
	Lines int
}

// Len returns the number of ask/answer pairs.
func (f *File) Len() int {
	if f.Grammar == template.GrammarASCII {
		return len(f.ASCII)
	}
	return len(f.Pairs)
}

// Load reads and parses the repeat file at path.
func Load(path string) (*File, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("failed to stat repeat file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("path is a directory, not a file: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read repeat file: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyFile, path)
	}

	f, err := ParseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	f.Path = path
	return f, nil
}

// ParseBytes parses repeat-file content.
func ParseBytes(data []byte) (*File, error) {
	return Parse(bytes.NewReader(data))
}

// Parse reads a repeat file from r.
func Parse(r io.Reader) (*File, error) {
	p := &parser{f: &File{}}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), maxLineSize)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		if err := p.line(lineNo, strings.TrimRight(sc.Text(), "\r")); err != nil {
			return nil, err
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read repeat file: %w", err)
	}

	return p.finish()
}

type parser struct {
	f *File

	pendingLine int
	pendingText string
	pendingAsk  *template.Template
}

func (p *parser) line(n int, raw string) error {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return nil
	}

	if p.f.Grammar == 0 {
		p.f.Grammar = template.DetectGrammar(trimmed)
	}
	p.f.Lines++
	isAsk := p.f.Lines%2 == 1

	if p.f.Grammar == template.GrammarASCII {
		return p.ascii(n, raw, isAsk)
	}

	var (
		tmpl *template.Template
		err  error
	)
	if p.f.Grammar == template.GrammarDelimited {
		tmpl, err = template.ParseDelimited(trimmed)
	} else {
		tmpl, err = template.ParseContiguous(trimmed)
	}
	if err != nil {
		// A line written in the other hex grammar gets a clearer message.
		if g := template.DetectGrammar(trimmed); g != p.f.Grammar && g != template.GrammarASCII {
			err = fmt.Errorf("%w: expected %s hex: %w", ErrMixedGrammar, p.f.Grammar, err)
		}
		return &LineError{Line: n, Text: raw, Err: err}
	}

	if isAsk {
		for i, prev := range p.f.Pairs {
			if matching.Equal(prev.Ask, tmpl) {
				return &LineError{Line: n, Text: raw, Err: fmt.Errorf("%w: same as pair %d", ErrDuplicateAsk, i+1)}
			}
		}
		p.pendingLine, p.pendingText, p.pendingAsk = n, raw, tmpl
		return nil
	}

	p.f.Pairs = append(p.f.Pairs, table.Pair{Ask: p.pendingAsk, Answer: tmpl})
	p.pendingAsk = nil
	return nil
}

func (p *parser) ascii(n int, raw string, isAsk bool) error {
	if isAsk {
		for i, prev := range p.f.ASCII {
			if prev.Ask == raw {
				return &LineError{Line: n, Text: raw, Err: fmt.Errorf("%w: same as pair %d", ErrDuplicateAsk, i+1)}
			}
		}
		p.pendingLine, p.pendingText = n, raw
		return nil
	}
	p.f.ASCII = append(p.f.ASCII, ASCIIPair{Ask: p.pendingText, Answer: raw, Line: p.pendingLine})
	return nil
}

func (p *parser) finish() (*File, error) {
	if p.f.Lines%2 == 1 {
		return nil, &LineError{Line: p.pendingLine, Text: p.pendingText, Err: ErrOddLines}
	}
	if p.f.Lines == 0 {
		return nil, ErrNoPairs
	}
	return p.f, nil
}
