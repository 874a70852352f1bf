package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/getmockd/serialmock/pkg/chaos"
	"github.com/getmockd/serialmock/pkg/tls"
)

// EnvRepeatFile overrides Config.RepeatFile when set.
const EnvRepeatFile = "SERIALMOCK_REPEAT_FILE"

// Duration is a time.Duration written as a Go duration string ("20ms").
type Duration time.Duration

// D returns d as a time.Duration.
func (d Duration) D() time.Duration { return time.Duration(d) }

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: invalid duration %q", value.Line, s)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Config is the daemon configuration.
type Config struct {
	// RepeatFile is the repeat file to serve.
	RepeatFile string `yaml:"repeatFile"`

	// Watch reloads the repeat file when it changes.
	Watch         bool     `yaml:"watch"`
	WatchInterval Duration `yaml:"watchInterval"`
	Debounce      Duration `yaml:"debounce"`

	// Seed makes @rand reproducible. 0 leaves it unseeded.
	Seed uint64 `yaml:"seed"`

	// ShutdownTimeout bounds transport shutdown.
	ShutdownTimeout Duration `yaml:"shutdownTimeout"`

	// History is how many received frames are kept for /frames. 0 disables it.
	History int `yaml:"history"`

	Log       LogConfig       `yaml:"log"`
	TCP       TCPConfig       `yaml:"tcp"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	QUIC      QUICConfig      `yaml:"quic"`
	PTY       PTYConfig       `yaml:"pty"`

	// Chaos injects faults into answers.
	Chaos chaos.Config `yaml:"chaos"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`

	// File, when set, receives a JSON copy of the log.
	File string `yaml:"file,omitempty"`
}

// TCPConfig configures the raw TCP transport.
type TCPConfig struct {
	Enabled      bool       `yaml:"enabled"`
	Address      string     `yaml:"address"`
	GapTolerance Duration   `yaml:"gapTolerance"`
	TLS          tls.Config `yaml:"tls"`
}

// WebSocketConfig configures the WebSocket transport.
type WebSocketConfig struct {
	Enabled bool       `yaml:"enabled"`
	Address string     `yaml:"address"`
	Path    string     `yaml:"path"`
	TLS     tls.Config `yaml:"tls"`
}

// MQTTConfig configures the embedded MQTT broker.
type MQTTConfig struct {
	Enabled       bool       `yaml:"enabled"`
	Address       string     `yaml:"address"`
	RequestTopic  string     `yaml:"requestTopic"`
	ResponseTopic string     `yaml:"responseTopic"`
	QoS           int        `yaml:"qos"`
	TLS           tls.Config `yaml:"tls"`
}

// QUICConfig configures the QUIC transport. It always uses TLS; without
// certFile and keyFile a self-signed certificate is generated.
type QUICConfig struct {
	Enabled      bool     `yaml:"enabled"`
	Address      string   `yaml:"address"`
	GapTolerance Duration `yaml:"gapTolerance"`
	IdleTimeout  Duration `yaml:"idleTimeout"`
	CertFile     string   `yaml:"certFile,omitempty"`
	KeyFile      string   `yaml:"keyFile,omitempty"`
}

// TLS returns the certificate settings as an enabled tls.Config.
func (q *QUICConfig) TLS() tls.Config {
	return tls.Config{Enabled: true, CertFile: q.CertFile, KeyFile: q.KeyFile}
}

// PTYConfig configures the pseudo-terminal transport.
type PTYConfig struct {
	Enabled      bool     `yaml:"enabled"`
	Link         string   `yaml:"link,omitempty"`
	GapTolerance Duration `yaml:"gapTolerance"`
}

// Default returns the configuration used for unset fields.
func Default() *Config {
	return &Config{
		WatchInterval:   Duration(500 * time.Millisecond),
		Debounce:        Duration(250 * time.Millisecond),
		ShutdownTimeout: Duration(5 * time.Second),
		History:         1000,
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		TCP: TCPConfig{
			Enabled:      true,
			Address:      ":7000",
			GapTolerance: Duration(20 * time.Millisecond),
		},
		WebSocket: WebSocketConfig{
			Address: ":7001",
			Path:    "/ws",
		},
		MQTT: MQTTConfig{
			Address:       ":1883",
			RequestTopic:  "serial/rx",
			ResponseTopic: "serial/tx",
		},
		QUIC: QUICConfig{
			Address:      ":7002",
			GapTolerance: Duration(20 * time.Millisecond),
			IdleTimeout:  Duration(30 * time.Second),
		},
		PTY: PTYConfig{
			GapTolerance: Duration(20 * time.Millisecond),
		},
	}
}

// Transports returns the names of the enabled transports.
func (c *Config) Transports() []string {
	var out []string
	if c.TCP.Enabled {
		out = append(out, "tcp")
	}
	if c.WebSocket.Enabled {
		out = append(out, "websocket")
	}
	if c.MQTT.Enabled {
		out = append(out, "mqtt")
	}
	if c.QUIC.Enabled {
		out = append(out, "quic")
	}
	if c.PTY.Enabled {
		out = append(out, "pty")
	}
	return out
}

// Marshal renders c as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
