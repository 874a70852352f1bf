package logging

import (
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/getmockd/serialmock/pkg/util"
)

// Level represents a log level.
type Level = slog.Level

// Log levels.
const (
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
)

// Format represents the log output format.
type Format string

// Output formats.
const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// Config holds logging configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level Level

	// Format is the output format (text or json).
	Format Format

	// Output is the writer to send logs to. Defaults to os.Stderr.
	Output io.Writer

	// Tee, when set, receives a JSON copy of every record. The serve command
	// points it at the traffic log file.
	Tee io.Writer

	// AddSource adds source file and line to log entries.
	AddSource bool
}

// DefaultConfig returns sensible defaults for logging.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Format: FormatText,
		Output: os.Stderr,
	}
}

// New creates a new slog.Logger with the given configuration.
func New(cfg Config) *slog.Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}

	opts := &slog.HandlerOptions{
		Level:     cfg.Level,
		AddSource: cfg.AddSource,
	}

	var handler slog.Handler
	switch cfg.Format {
	case FormatJSON:
		handler = slog.NewJSONHandler(cfg.Output, opts)
	default:
		handler = slog.NewTextHandler(cfg.Output, opts)
	}

	if cfg.Tee != nil {
		handler = NewMultiHandler(handler, slog.NewJSONHandler(cfg.Tee, opts))
	}

	return slog.New(handler)
}

// Nop returns a no-op logger that discards all output.
// Use this when a logger is required but logging is disabled.
func Nop() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ParseLevel parses a log level string, ignoring case.
// Valid values: "debug", "info", "warn", "warning", "error".
// Returns LevelInfo if the string is not recognized.
func ParseLevel(s string) Level {
	switch strings.ToLower(s) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// ParseFormat parses a log format string, ignoring case.
// Returns FormatText if the string is not recognized.
func ParseFormat(s string) Format {
	if strings.EqualFold(s, "json") {
		return FormatJSON
	}
	return FormatText
}

// Frame returns an attribute holding b as space-separated uppercase hex,
// the notation repeat files use. Long frames are cut after
// util.MaxLogFrameSize bytes.
func Frame(key string, b []byte) slog.Attr {
	return slog.String(key, HexDumpLimit(b, util.MaxLogFrameSize))
}

// HexDumpLimit is HexDump of at most maxSize leading bytes, noting how many
// were left out.
func HexDumpLimit(b []byte, maxSize int) string {
	head, cut := util.TruncateFrame(b, maxSize)
	if cut == 0 {
		return HexDump(head)
	}
	return fmt.Sprintf("%s ...(+%d bytes)", HexDump(head), cut)
}

// HexDump formats b as "10 58 FC".
func HexDump(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.Grow(len(b) * 3)
	for i, c := range b {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(strings.ToUpper(hex.EncodeToString([]byte{c})))
	}
	return sb.String()
}
