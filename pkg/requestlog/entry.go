package requestlog

import "time"

// Transport names used in entries.
const (
	TransportTCP       = "tcp"
	TransportWebSocket = "websocket"
	TransportMQTT      = "mqtt"
	TransportQUIC      = "quic"
	TransportPTY       = "pty"
)

// Entry is one received frame and its outcome.
type Entry struct {
	// ID is assigned by the store when empty.
	ID string `json:"id"`

	// Timestamp is when the frame was received.
	Timestamp time.Time `json:"timestamp"`

	// Transport is the transport name (tcp, websocket, mqtt, quic, pty).
	Transport string `json:"transport"`

	// Conn identifies the connection or MQTT client.
	Conn string `json:"conn"`

	// Frame is the received frame as a hex dump ("10 58 FC").
	Frame string `json:"frame"`

	// FrameSize is the frame length in bytes.
	FrameSize int `json:"frameSize"`

	// Matched is true when an ask matched.
	Matched bool `json:"matched"`

	// Answer is the answer as a hex dump.
	Answer string `json:"answer,omitempty"`

	// DurationUs is lookup plus synthesis time in microseconds.
	DurationUs int64 `json:"durationUs"`

	// NearMisses explains an unmatched frame, closest ask first.
	NearMisses []NearMissInfo `json:"nearMisses,omitempty"`
}
