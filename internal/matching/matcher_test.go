package matching

import (
	"strings"
	"testing"

	"github.com/getmockd/serialmock/pkg/template"
)

func mustParse(t *testing.T, line string) *template.Template {
	t.Helper()
	tmpl, err := template.Parse(line)
	if err != nil {
		t.Fatalf("Parse(%q) error = %v", line, err)
	}
	return tmpl
}

func TestEqual(t *testing.T) {
	ask := mustParse(t, "0x10 0x58 $1 0x5B 0x16")

	tests := []struct {
		name  string
		frame []byte
		want  bool
	}{
		{"variable captures anything", []byte{0x10, 0x58, 0xFC, 0x5B, 0x16}, true},
		{"variable zero", []byte{0x10, 0x58, 0x00, 0x5B, 0x16}, true},
		{"literal differs", []byte{0x10, 0x58, 0xFC, 0x5C, 0x16}, false},
		{"shorter", []byte{0x10, 0x58, 0xFC, 0x5B}, false},
		{"longer", []byte{0x10, 0x58, 0xFC, 0x5B, 0x16, 0x00}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Equal(ask, template.FromBytes(tt.frame)); got != tt.want {
				t.Errorf("Equal() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEqual_Reflexive(t *testing.T) {
	frames := [][]byte{{}, {0x00}, {0xFF, 0x00, 0x7E}, []byte("hello")}
	for _, f := range frames {
		tmpl := template.FromBytes(f)
		if !Equal(tmpl, tmpl) {
			t.Errorf("Equal(%x, itself) = false", f)
		}
	}
}

func TestCompare(t *testing.T) {
	ask := mustParse(t, "0x10 0x58 $1 0x5B @sum")

	res := Compare(ask, []byte{0x10, 0x58, 0xAA, 0x5C, 0x00})
	if res.Matched {
		t.Fatal("Compare() matched, want mismatch")
	}
	if res.Literals != 3 || res.Score != 2 {
		t.Errorf("Literals/Score = %d/%d, want 3/2", res.Literals, res.Score)
	}
	if res.FirstMismatch != 3 || res.Expected != 0x5B || res.Actual != 0x5C {
		t.Errorf("mismatch = %d %#x %#x, want 3 0x5b 0x5c", res.FirstMismatch, res.Expected, res.Actual)
	}
	if got := res.Percentage(); got != 66 {
		t.Errorf("Percentage() = %d, want 66", got)
	}

	res = Compare(ask, []byte{0x10})
	if !res.LengthMismatch || res.Percentage() != 0 {
		t.Errorf("short frame: %+v", res)
	}

	res = Compare(mustParse(t, "$1 $2"), []byte{1, 2})
	if !res.Matched || res.Percentage() != 100 {
		t.Errorf("wildcard-only ask: %+v", res)
	}
}

func TestCollectNearMisses(t *testing.T) {
	asks := []*template.Template{
		mustParse(t, "0x01 0x02 0x03 0x04"),
		mustParse(t, "0x01 0x02 0x09 0x09"),
		mustParse(t, "0x01 0x09 0x09 0x09"),
		mustParse(t, "0x01 0x02"),
	}

	got := CollectNearMisses(asks, []byte{0x01, 0x02, 0x03, 0x05}, 2)
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].Index != 0 || got[0].Score != 3 {
		t.Errorf("best = %+v, want index 0 score 3", got[0])
	}
	if got[1].Index != 1 {
		t.Errorf("second = %+v, want index 1", got[1])
	}
	if !strings.Contains(got[0].Reason, "byte 3 expected 0x04, got 0x05") {
		t.Errorf("Reason = %q", got[0].Reason)
	}
}

func TestCollectNearMisses_FallsBackToLength(t *testing.T) {
	asks := []*template.Template{
		mustParse(t, "0x01 0x02 0x03 0x04 0x05"),
		mustParse(t, "0x01 0x02 0x03"),
	}

	got := CollectNearMisses(asks, []byte{0xAA, 0xBB}, 0)
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].Index != 1 {
		t.Errorf("closest length = index %d, want 1", got[0].Index)
	}
	if got[0].Reason != "length expected 3, got 2" {
		t.Errorf("Reason = %q", got[0].Reason)
	}
}

func TestCollectNearMisses_Empty(t *testing.T) {
	if got := CollectNearMisses(nil, []byte{1}, 3); len(got) != 0 {
		t.Errorf("CollectNearMisses(nil) = %v, want empty", got)
	}
}
