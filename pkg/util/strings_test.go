package util

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTruncateFrame(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		size    int
		maxSize int
		wantLen int
		wantCut int
	}{
		{"empty", 0, 10, 0, 0},
		{"under limit", 5, 10, 5, 0},
		{"at limit", 10, 10, 10, 0},
		{"over limit", 15, 10, 10, 5},
		{"default limit", MaxLogFrameSize + 1, 0, MaxLogFrameSize, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			b := bytes.Repeat([]byte{0xAB}, tt.size)
			got, cut := TruncateFrame(b, tt.maxSize)
			assert.Len(t, got, tt.wantLen)
			assert.Equal(t, tt.wantCut, cut)
		})
	}
}

func TestTruncateString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "AT+GMR", TruncateString("AT+GMR", 10))
	assert.Equal(t, "AT+G...(truncated)", TruncateString("AT+GMR", 4))

	long := strings.Repeat("x", MaxLogFrameSize+5)
	got := TruncateString(long, 0)
	assert.True(t, strings.HasSuffix(got, "...(truncated)"))
	assert.Len(t, got, MaxLogFrameSize+len("...(truncated)"))
}
