package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/getmockd/serialmock/pkg/tls"
)

//go:embed schema.json
var schemaJSON []byte

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

// ValidationError is a single configuration problem.
type ValidationError struct {
	Path    string // e.g. "mqtt.requestTopic"
	Message string
}

func (e ValidationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	}
	return e.Message
}

// ValidationResult collects every problem found. It is returned as an error
// that matches ErrInvalid.
type ValidationResult struct {
	Errors []ValidationError
}

// IsValid returns true if there are no validation errors.
func (r *ValidationResult) IsValid() bool {
	return len(r.Errors) == 0
}

// Error returns the problems one per line.
func (r *ValidationResult) Error() string {
	msgs := make([]string, len(r.Errors))
	for i, e := range r.Errors {
		msgs[i] = e.Error()
	}
	return ErrInvalid.Error() + ":\n  " + strings.Join(msgs, "\n  ")
}

// Is reports whether target is ErrInvalid.
func (r *ValidationResult) Is(target error) bool {
	return target == ErrInvalid
}

// AddError adds a validation error.
func (r *ValidationResult) AddError(path, message string) {
	r.Errors = append(r.Errors, ValidationError{Path: path, Message: message})
}

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020
		if err := compiler.AddResource("serialmock.schema.json", bytes.NewReader(schemaJSON)); err != nil {
			schemaErr = fmt.Errorf("failed to add schema resource: %w", err)
			return
		}
		schema, schemaErr = compiler.Compile("serialmock.schema.json")
	})
	return schema, schemaErr
}

func validateSchema(doc any) *ValidationResult {
	res := &ValidationResult{}

	s, err := compiledSchema()
	if err != nil {
		res.AddError("", fmt.Sprintf("schema compilation error: %v", err))
		return res
	}

	err = s.Validate(doc)
	if err == nil {
		return res
	}
	var verr *jsonschema.ValidationError
	if errors.As(err, &verr) {
		collectSchemaErrors(verr, res)
	} else {
		res.AddError("", err.Error())
	}
	if res.IsValid() {
		res.AddError("", err.Error())
	}
	return res
}

func collectSchemaErrors(err *jsonschema.ValidationError, res *ValidationResult) {
	if len(err.Causes) == 0 {
		res.AddError(pointerToPath(err.InstanceLocation), err.Message)
		return
	}
	for _, cause := range err.Causes {
		collectSchemaErrors(cause, res)
	}
}

// pointerToPath turns a JSON pointer into dot notation.
func pointerToPath(p string) string {
	p = strings.TrimPrefix(p, "/")
	return strings.ReplaceAll(p, "/", ".")
}

// Validate checks what the schema cannot: required fields for the enabled
// features and consistency between them.
func (c *Config) Validate() error {
	res := &ValidationResult{}

	if c.RepeatFile == "" {
		res.AddError("repeatFile", "required")
	}
	if len(c.Transports()) == 0 {
		res.AddError("", "no transport enabled (tcp, websocket, mqtt, quic or pty)")
	}
	if c.Watch {
		if c.WatchInterval <= 0 {
			res.AddError("watchInterval", "must be positive")
		}
		if c.Debounce < 0 {
			res.AddError("debounce", "must not be negative")
		}
	}
	if c.ShutdownTimeout <= 0 {
		res.AddError("shutdownTimeout", "must be positive")
	}
	if c.History < 0 {
		res.AddError("history", "must not be negative")
	}
	if err := c.Chaos.Validate(); err != nil {
		res.AddError("chaos", err.Error())
	}

	if c.TCP.Enabled {
		validateAddress("tcp.address", c.TCP.Address, res)
		if c.TCP.GapTolerance <= 0 {
			res.AddError("tcp.gapTolerance", "must be positive")
		}
		validateTLS("tcp.tls", &c.TCP.TLS, res)
	}
	if c.WebSocket.Enabled {
		validateAddress("websocket.address", c.WebSocket.Address, res)
		if !strings.HasPrefix(c.WebSocket.Path, "/") {
			res.AddError("websocket.path", "must start with /")
		}
		validateTLS("websocket.tls", &c.WebSocket.TLS, res)
	}
	if c.MQTT.Enabled {
		validateAddress("mqtt.address", c.MQTT.Address, res)
		if c.MQTT.RequestTopic == "" {
			res.AddError("mqtt.requestTopic", "required")
		}
		if c.MQTT.RequestTopic == c.MQTT.ResponseTopic {
			res.AddError("mqtt.responseTopic", "must differ from requestTopic")
		}
		if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
			res.AddError("mqtt.qos", "must be 0, 1 or 2")
		}
		validateTLS("mqtt.tls", &c.MQTT.TLS, res)
	}
	if c.QUIC.Enabled {
		validateAddress("quic.address", c.QUIC.Address, res)
		if c.QUIC.GapTolerance <= 0 {
			res.AddError("quic.gapTolerance", "must be positive")
		}
		if c.QUIC.IdleTimeout <= 0 {
			res.AddError("quic.idleTimeout", "must be positive")
		}
		qtls := c.QUIC.TLS()
		validateTLS("quic", &qtls, res)
	}
	if c.PTY.Enabled && c.PTY.GapTolerance <= 0 {
		res.AddError("pty.gapTolerance", "must be positive")
	}

	// TCP ports only; quic is the sole UDP listener.
	enabled := map[string]string{}
	for _, t := range []struct {
		name, addr string
		on         bool
	}{
		{"tcp", c.TCP.Address, c.TCP.Enabled},
		{"websocket", c.WebSocket.Address, c.WebSocket.Enabled},
		{"mqtt", c.MQTT.Address, c.MQTT.Enabled},
	} {
		if !t.on || strings.HasSuffix(t.addr, ":0") {
			continue
		}
		if other, dup := enabled[t.addr]; dup {
			res.AddError(t.name+".address", fmt.Sprintf("%s already used by %s", t.addr, other))
			continue
		}
		enabled[t.addr] = t.name
	}

	if !res.IsValid() {
		return res
	}
	return nil
}

func validateTLS(path string, c *tls.Config, res *ValidationResult) {
	if err := c.Validate(); err != nil {
		res.AddError(path, err.Error())
	}
}

func validateAddress(path, addr string, res *ValidationResult) {
	if _, _, err := net.SplitHostPort(addr); err != nil {
		res.AddError(path, fmt.Sprintf("invalid address %q: want host:port", addr))
	}
}
