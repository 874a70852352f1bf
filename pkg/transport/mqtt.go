package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	mqtt "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"
	"github.com/mochi-mqtt/server/v2/packets"

	"github.com/getmockd/serialmock/pkg/requestlog"
)

// Default MQTT topics.
const (
	DefaultRequestTopic  = "serial/rx"
	DefaultResponseTopic = "serial/tx"
)

// MQTTConfig configures an MQTTBroker.
type MQTTConfig struct {
	// Address is the listen address, e.g. ":1883".
	Address string

	// RequestTopic receives frames. Each publish payload is one frame.
	RequestTopic string

	// ResponseTopic carries the answers.
	ResponseTopic string

	// QoS of published answers.
	QoS byte

	// TLS, when set, makes the listener accept MQTT over TLS only.
	TLS *tls.Config
}

// MQTTBroker is an embedded MQTT broker that answers publishes on the
// request topic.
type MQTTBroker struct {
	base
	config MQTTConfig
	server *mqtt.Server

	mu      sync.Mutex
	running bool
	addr    string
	pending sync.WaitGroup
}

var _ Handler = (*MQTTBroker)(nil)

// NewMQTTBroker creates the broker. Request and response topics must differ
// or answers would be fed back as requests.
func NewMQTTBroker(cfg MQTTConfig, r Responder, opts ...Option) (*MQTTBroker, error) {
	if r == nil {
		return nil, ErrNilResponder
	}
	if cfg.RequestTopic == "" {
		cfg.RequestTopic = DefaultRequestTopic
	}
	if cfg.ResponseTopic == "" {
		cfg.ResponseTopic = DefaultResponseTopic
	}
	if cfg.RequestTopic == cfg.ResponseTopic {
		return nil, fmt.Errorf("request and response topic are both %q", cfg.RequestTopic)
	}
	if cfg.QoS > 2 {
		return nil, fmt.Errorf("invalid QoS %d", cfg.QoS)
	}

	server := mqtt.New(&mqtt.Options{
		InlineClient: true,
	})
	b := &MQTTBroker{
		base:   newBase(requestlog.TransportMQTT, r, opts),
		config: cfg,
		server: server,
	}

	// mochi-mqtt requires an auth hook
	if err := server.AddHook(new(auth.AllowHook), nil); err != nil {
		return nil, fmt.Errorf("failed to add allow hook: %w", err)
	}
	if err := server.AddHook(&frameHook{broker: b}, nil); err != nil {
		return nil, fmt.Errorf("failed to add frame hook: %w", err)
	}
	return b, nil
}

// Name returns "mqtt".
func (b *MQTTBroker) Name() string { return b.name }

// Addr returns the listen address.
func (b *MQTTBroker) Addr() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.addr != "" {
		return b.addr
	}
	return b.config.Address
}

// Topics returns the request and response topic.
func (b *MQTTBroker) Topics() (request, response string) {
	return b.config.RequestTopic, b.config.ResponseTopic
}

// Start adds the TCP listener and serves in the background.
func (b *MQTTBroker) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.running {
		return ErrAlreadyRunning
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	// Resolve port 0 up front so Addr reports the real port.
	addr, err := resolveAddress(b.config.Address)
	if err != nil {
		return err
	}

	listener := listeners.NewTCP(listeners.Config{
		ID:        "serialmock-" + addr,
		Address:   addr,
		TLSConfig: b.config.TLS,
	})
	if err := b.server.AddListener(listener); err != nil {
		return fmt.Errorf("failed to add listener: %w", err)
	}

	go func() {
		if err := b.server.Serve(); err != nil {
			b.log.Error("MQTT server error", "error", err)
		}
	}()

	b.running = true
	b.addr = addr
	b.log.Info("listening", "address", addr, "request", b.config.RequestTopic, "response", b.config.ResponseTopic, "tls", b.config.TLS != nil)
	return nil
}

// Stop closes the broker. A stopped broker cannot be started again.
func (b *MQTTBroker) Stop(ctx context.Context, timeout time.Duration) error {
	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		return nil
	}
	b.running = false
	b.mu.Unlock()

	shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		b.pending.Wait()
		done <- b.server.Close()
	}()

	select {
	case err := <-done:
		return err
	case <-shutdownCtx.Done():
		return fmt.Errorf("shutdown timed out: %w", shutdownCtx.Err())
	}
}

func (b *MQTTBroker) isRunning() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.running
}

// track registers a pending answer. It returns false once Stop has begun.
func (b *MQTTBroker) track() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.running {
		return false
	}
	b.pending.Add(1)
	return true
}

// answer handles one request publish from clientID.
func (b *MQTTBroker) answer(clientID string, payload []byte) {
	defer b.pending.Done()

	answer, ok := b.handle(clientID, payload)
	if !ok || len(answer) == 0 || !b.isRunning() {
		return
	}
	if err := b.server.Publish(b.config.ResponseTopic, answer, false, b.config.QoS); err != nil {
		b.log.Error("failed to publish answer", "topic", b.config.ResponseTopic, "error", err)
	}
}

// frameHook feeds publishes on the request topic to the broker.
type frameHook struct {
	mqtt.HookBase
	broker *MQTTBroker
}

func (h *frameHook) ID() string { return "serialmock-frames" }

func (h *frameHook) Provides(b byte) bool {
	//nolint:gocritic // argument order is intentional
	return bytes.Contains([]byte{mqtt.OnPublish}, []byte{b})
}

// OnPublish answers outside the hook so the publishing client is not blocked
// by its own answer.
func (h *frameHook) OnPublish(cl *mqtt.Client, pk packets.Packet) (packets.Packet, error) {
	if pk.TopicName != h.broker.config.RequestTopic || !h.broker.track() {
		return pk, nil
	}

	payload := make([]byte, len(pk.Payload))
	copy(payload, pk.Payload)
	go h.broker.answer(cl.ID, payload)
	return pk, nil
}

// resolveAddress replaces port 0 with a free port.
func resolveAddress(addr string) (string, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "", fmt.Errorf("invalid MQTT address %q: %w", addr, err)
	}
	if port != "0" {
		return addr, nil
	}

	ln, err := net.Listen("tcp", net.JoinHostPort(host, "0"))
	if err != nil {
		return "", err
	}
	defer func() { _ = ln.Close() }()

	tcpAddr, ok := ln.Addr().(*net.TCPAddr)
	if !ok {
		return ln.Addr().String(), nil
	}
	return net.JoinHostPort(host, strconv.Itoa(tcpAddr.Port)), nil
}
