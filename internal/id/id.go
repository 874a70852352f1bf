package id

import (
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// UUID generates a random UUID v4 in canonical form.
func UUID() string {
	return uuid.NewString()
}

// Short generates an 8-character hex ID for log correlation.
func Short() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// Conn returns a connection id tagged with the transport name, e.g.
// "tcp-1a2b3c4d".
func Conn(transport string) string {
	return transport + "-" + Short()
}

// Stream returns the id of the n-th stream of a multiplexed connection, e.g.
// "quic-1a2b3c4d/0".
func Stream(connID string, n int) string {
	return connID + "/" + strconv.Itoa(n)
}
