package table

import (
	"testing"

	"github.com/getmockd/serialmock/pkg/template"
)

func TestSynthesize(t *testing.T) {
	tests := []struct {
		name     string
		ask      string
		answer   string
		incoming []byte
		want     []byte
	}{
		{
			name:     "literals only",
			ask:      "0x01",
			answer:   "0x0A 0x0B",
			incoming: []byte{0x01},
			want:     []byte{0x0A, 0x0B},
		},
		{
			name:     "variables reordered",
			ask:      "$1 $2 $3",
			answer:   "$3 $2 $1 $1",
			incoming: []byte{0x11, 0x22, 0x33},
			want:     []byte{0x33, 0x22, 0x11, 0x11},
		},
		{
			name:     "uncaptured variable is zero",
			ask:      "0x01 $1",
			answer:   "$1 $7",
			incoming: []byte{0x01, 0x55},
			want:     []byte{0x55, 0x00},
		},
		{
			name:     "functions read the answer, not the request",
			ask:      "$1 $2",
			answer:   "0x01 0x02 @sum",
			incoming: []byte{0xF0, 0xF0},
			want:     []byte{0x01, 0x02, 0x03},
		},
		{
			name:     "sum with closed range",
			ask:      "0x00",
			answer:   "0x01 0x02 0x04 0x08 @sum[1..2]",
			incoming: []byte{0x00},
			want:     []byte{0x01, 0x02, 0x04, 0x08, 0x06},
		},
		{
			name:     "crc16 then trailer",
			ask:      "0x00",
			answer:   "0x01 0x03 0x00 0x00 0x00 0x0A @crc16 0x7E",
			incoming: []byte{0x00},
			want:     []byte{0x01, 0x03, 0x00, 0x00, 0x00, 0x0A, 0xC5, 0xCD, 0x7E},
		},
		{
			name:     "crc8",
			ask:      "0x00",
			answer:   "0x31 0x32 0x33 0x34 0x35 0x36 0x37 0x38 0x39 @crc8",
			incoming: []byte{0x00},
			want:     []byte("123456789\xF4"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ask := mustParse(t, tt.ask)
			answer := mustParse(t, tt.answer)
			got := Synthesize(ask, answer, tt.incoming, nil)
			if string(got) != string(tt.want) {
				t.Errorf("Synthesize() = % X, want % X", got, tt.want)
			}
		})
	}
}

func TestSynthesize_ShortIncomingNeverPanics(t *testing.T) {
	ask := mustParse(t, "0x01 0x02 $1")
	answer := mustParse(t, "$1 0xFF")
	got := Synthesize(ask, answer, []byte{0x01}, nil)
	if len(got) != 2 || got[0] != 0 || got[1] != 0xFF {
		t.Errorf("Synthesize() = % X, want 00 FF", got)
	}
}

func TestSynthesize_NilAsk(t *testing.T) {
	answer := mustParse(t, "$1 0x01")
	got := Synthesize(nil, answer, nil, nil)
	if len(got) != 2 || got[0] != 0 || got[1] != 1 {
		t.Errorf("Synthesize() = % X, want 00 01", got)
	}
}

func TestSynthesize_LiteralAnswerFromContiguous(t *testing.T) {
	ask := template.FromBytes([]byte{0xAB})
	answer, err := template.Parse("CAFEBABE")
	if err != nil {
		t.Fatal(err)
	}
	got := Synthesize(ask, answer, []byte{0xAB}, nil)
	if string(got) != "\xCA\xFE\xBA\xBE" {
		t.Errorf("Synthesize() = % X", got)
	}
}
