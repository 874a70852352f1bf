package util

// MaxLogFrameSize is the number of frame bytes rendered in log lines.
const MaxLogFrameSize = 256

// MaxHistoryFrameSize is the number of frame bytes kept per history entry.
const MaxHistoryFrameSize = 4096

// TruncateFrame returns at most maxSize leading bytes of b and how many bytes
// were cut. If maxSize <= 0, MaxLogFrameSize is used.
func TruncateFrame(b []byte, maxSize int) ([]byte, int) {
	if maxSize <= 0 {
		maxSize = MaxLogFrameSize
	}
	if len(b) <= maxSize {
		return b, 0
	}
	return b[:maxSize], len(b) - maxSize
}

// TruncateString truncates s to maxSize bytes, appending "...(truncated)" if
// truncated. If maxSize <= 0, MaxLogFrameSize is used.
func TruncateString(s string, maxSize int) string {
	if maxSize <= 0 {
		maxSize = MaxLogFrameSize
	}
	if len(s) > maxSize {
		return s[:maxSize] + "...(truncated)"
	}
	return s
}
