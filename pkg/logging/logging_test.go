package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
	}{
		// Lowercase
		{"debug", LevelDebug},
		{"info", LevelInfo},
		{"warn", LevelWarn},
		{"warning", LevelWarn},
		{"error", LevelError},

		// Uppercase
		{"DEBUG", LevelDebug},
		{"INFO", LevelInfo},
		{"WARN", LevelWarn},
		{"WARNING", LevelWarn},
		{"ERROR", LevelError},

		// Mixed case
		{"Debug", LevelDebug},
		{"Info", LevelInfo},
		{"Warn", LevelWarn},
		{"Warning", LevelWarn},
		{"Error", LevelError},
		{"dEbUg", LevelDebug},

		// Empty string defaults to Info
		{"", LevelInfo},

		// Unrecognized defaults to Info
		{"trace", LevelInfo},
		{"fatal", LevelInfo},
		{"unknown", LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := ParseLevel(tt.input)
			if result != tt.expected {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, result, tt.expected)
			}
		})
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		input    string
		expected Format
	}{
		{"json", FormatJSON},
		{"JSON", FormatJSON},
		{"Json", FormatJSON},
		{"text", FormatText},
		{"TEXT", FormatText},
		{"", FormatText},
		{"yaml", FormatText}, // unrecognized defaults to text
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := ParseFormat(tt.input)
			if result != tt.expected {
				t.Errorf("ParseFormat(%q) = %v, want %v", tt.input, result, tt.expected)
			}
		})
	}
}

func TestHexDump(t *testing.T) {
	tests := []struct {
		in   []byte
		want string
	}{
		{nil, ""},
		{[]byte{0x0A}, "0A"},
		{[]byte{0x10, 0x58, 0xFC, 0x5B, 0x16}, "10 58 FC 5B 16"},
	}
	for _, tt := range tests {
		if got := HexDump(tt.in); got != tt.want {
			t.Errorf("HexDump(%x) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestHexDumpLimit(t *testing.T) {
	if got := HexDumpLimit([]byte{0x01, 0x02}, 4); got != "01 02" {
		t.Errorf("HexDumpLimit() = %q", got)
	}
	if got := HexDumpLimit([]byte{0x01, 0x02, 0x03, 0x04, 0x05}, 2); got != "01 02 ...(+3 bytes)" {
		t.Errorf("HexDumpLimit() = %q", got)
	}

	long := bytes.Repeat([]byte{0xFF}, 300)
	attr := Frame("rx", long)
	if !strings.HasSuffix(attr.Value.String(), "...(+44 bytes)") {
		t.Errorf("Frame() did not cap a long frame: %q", attr.Value.String())
	}
}

func TestNew_Tee(t *testing.T) {
	var out, tee bytes.Buffer
	logger := New(Config{Level: LevelInfo, Format: FormatText, Output: &out, Tee: &tee})

	logger.Debug("dropped")
	logger.Info("unknown ask", Frame("rx", []byte{0x01, 0xFF}))

	if !strings.Contains(out.String(), `rx="01 FF"`) {
		t.Errorf("text output = %q", out.String())
	}
	if !strings.Contains(tee.String(), `"rx":"01 FF"`) {
		t.Errorf("tee output = %q", tee.String())
	}
	if strings.Contains(out.String()+tee.String(), "dropped") {
		t.Error("debug record passed an info level")
	}
}
