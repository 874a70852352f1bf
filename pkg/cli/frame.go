package cli

import (
	"errors"
	"strings"

	"github.com/getmockd/serialmock/pkg/template"
)

var errNotLiteral = errors.New("frame must contain literal bytes only")

// parseFrame reads a frame given on the command line. Arguments may be
// delimited tokens ("0x01 0x03") or bare hex ("01 03" or "0103").
func parseFrame(args []string) ([]byte, error) {
	if len(args) == 0 {
		return nil, errors.New("frame is required")
	}

	var (
		tmpl *template.Template
		err  error
	)
	if bare := strings.Join(args, ""); template.DetectGrammar(bare) == template.GrammarContiguous {
		tmpl, err = template.ParseContiguous(bare)
	} else {
		tmpl, err = template.Parse(strings.Join(args, " "))
	}
	if err != nil {
		return nil, err
	}
	if !tmpl.IsLiteral() {
		return nil, errNotLiteral
	}
	return tmpl.Bytes(), nil
}
