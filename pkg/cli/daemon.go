package cli

import (
	"context"
	"fmt"
	"log/slog"
	mathrand "math/rand/v2"
	"sync"

	"github.com/getmockd/serialmock/pkg/chaos"
	"github.com/getmockd/serialmock/pkg/config"
	"github.com/getmockd/serialmock/pkg/function"
	"github.com/getmockd/serialmock/pkg/metrics"
	"github.com/getmockd/serialmock/pkg/repeater"
	"github.com/getmockd/serialmock/pkg/requestlog"
	"github.com/getmockd/serialmock/pkg/tls"
	"github.com/getmockd/serialmock/pkg/transport"
	"github.com/getmockd/serialmock/pkg/watch"
)

// daemon wires the repeater to its transports and the file watcher.
type daemon struct {
	cfg      *config.Config
	log      *slog.Logger
	metrics  *metrics.Set
	repeater *repeater.Repeater
	chaos    *chaos.Injector
	history  *requestlog.MemoryStore
	group    *transport.Group
	watcher  *watch.Watcher

	wg sync.WaitGroup
}

// newDaemon loads the repeat file and builds the enabled transports. A repeat
// file that fails to load is fatal at startup; later reloads are not.
func newDaemon(cfg *config.Config, log *slog.Logger) (*daemon, error) {
	set := metrics.NewSet(metrics.NewRegistry())

	ropts := []repeater.Option{repeater.WithLogger(log), repeater.WithMetrics(set)}
	if cfg.Seed != 0 {
		ropts = append(ropts, repeater.WithRand(function.NewRand(cfg.Seed)))
	}
	rep := repeater.New(ropts...)
	if err := rep.Load(cfg.RepeatFile); err != nil {
		return nil, err
	}

	d := &daemon{
		cfg:      cfg,
		log:      log,
		metrics:  set,
		repeater: rep,
		group:    transport.NewGroup(),
	}

	var responder transport.Responder = rep
	if cfg.Chaos.Enabled {
		var rng *mathrand.Rand
		if cfg.Seed != 0 {
			rng = function.NewRand(cfg.Seed + 1)
		}
		inj, err := chaos.NewInjector(&cfg.Chaos, rng)
		if err != nil {
			return nil, err
		}
		d.chaos = inj.WithMetrics(set)
		responder = inj.Wrap(rep)
		log.Warn("chaos enabled", "profile", cfg.Chaos.Profile, "rules", len(cfg.Chaos.Rules))
	}

	topts := []transport.Option{transport.WithLogger(log), transport.WithMetrics(set)}
	if cfg.History > 0 {
		d.history = requestlog.NewMemoryStore(cfg.History)
		topts = append(topts, transport.WithFrameLog(d.history))
	}

	if cfg.TCP.Enabled {
		tlsCfg, err := tls.ServerConfig(&cfg.TCP.TLS)
		if err != nil {
			return nil, fmt.Errorf("tcp: %w", err)
		}
		h, err := transport.NewTCPServer(transport.TCPConfig{
			Address:      cfg.TCP.Address,
			GapTolerance: cfg.TCP.GapTolerance.D(),
			TLS:          tlsCfg,
		}, responder, topts...)
		if err != nil {
			return nil, err
		}
		d.group.Add(h)
	}
	if cfg.WebSocket.Enabled {
		tlsCfg, err := tls.ServerConfig(&cfg.WebSocket.TLS)
		if err != nil {
			return nil, fmt.Errorf("websocket: %w", err)
		}
		wcfg := transport.WebSocketConfig{
			Address: cfg.WebSocket.Address,
			Path:    cfg.WebSocket.Path,
			Status:  d.status,
			TLS:     tlsCfg,
		}
		if d.history != nil {
			wcfg.History = d.history
		}
		h, err := transport.NewWebSocketServer(wcfg, responder, topts...)
		if err != nil {
			return nil, err
		}
		d.group.Add(h)
	}
	if cfg.MQTT.Enabled {
		tlsCfg, err := tls.ServerConfig(&cfg.MQTT.TLS)
		if err != nil {
			return nil, fmt.Errorf("mqtt: %w", err)
		}
		h, err := transport.NewMQTTBroker(transport.MQTTConfig{
			Address:       cfg.MQTT.Address,
			RequestTopic:  cfg.MQTT.RequestTopic,
			ResponseTopic: cfg.MQTT.ResponseTopic,
			QoS:           byte(cfg.MQTT.QoS),
			TLS:           tlsCfg,
		}, responder, topts...)
		if err != nil {
			return nil, err
		}
		d.group.Add(h)
	}

	if cfg.QUIC.Enabled {
		qtls := cfg.QUIC.TLS()
		tlsCfg, err := tls.ServerConfig(&qtls)
		if err != nil {
			return nil, fmt.Errorf("quic: %w", err)
		}
		h, err := transport.NewQUICServer(transport.QUICConfig{
			Address:      cfg.QUIC.Address,
			GapTolerance: cfg.QUIC.GapTolerance.D(),
			IdleTimeout:  cfg.QUIC.IdleTimeout.D(),
			TLS:          tlsCfg,
		}, responder, topts...)
		if err != nil {
			return nil, err
		}
		d.group.Add(h)
	}
	if cfg.PTY.Enabled {
		h, err := transport.NewPTYServer(transport.PTYConfig{
			Link:         cfg.PTY.Link,
			GapTolerance: cfg.PTY.GapTolerance.D(),
		}, responder, topts...)
		if err != nil {
			return nil, err
		}
		d.group.Add(h)
	}

	if cfg.Watch {
		d.watcher = watch.New(cfg.RepeatFile, cfg.WatchInterval.D(), cfg.Debounce.D())
	}
	return d, nil
}

// status is served under /healthz.
func (d *daemon) status() map[string]any {
	out := map[string]any{"repeater": d.repeater.Stats()}
	if d.chaos != nil {
		out["chaos"] = d.chaos.Stats()
	}
	return out
}

// tlsTransports returns the enabled transports that serve TLS.
func (d *daemon) tlsTransports() []string {
	var out []string
	for _, t := range []struct {
		name    string
		enabled bool
		tls     bool
	}{
		{"tcp", d.cfg.TCP.Enabled, d.cfg.TCP.TLS.Enabled},
		{"websocket", d.cfg.WebSocket.Enabled, d.cfg.WebSocket.TLS.Enabled},
		{"mqtt", d.cfg.MQTT.Enabled, d.cfg.MQTT.TLS.Enabled},
		{"quic", d.cfg.QUIC.Enabled, true},
	} {
		if t.enabled && t.tls {
			out = append(out, t.name)
		}
	}
	return out
}

// Start starts the transports, then the watcher.
func (d *daemon) Start(ctx context.Context) error {
	if err := d.group.Start(ctx); err != nil {
		return err
	}
	if d.watcher != nil {
		events := d.watcher.Start(ctx)
		d.wg.Add(1)
		go d.reloadLoop(events)
		d.log.Info("watching repeat file", "path", d.watcher.Path())
	}
	return nil
}

// Stop stops the watcher and then the transports in reverse start order.
func (d *daemon) Stop(ctx context.Context) error {
	if d.watcher != nil {
		d.watcher.Stop()
	}
	d.wg.Wait()
	return d.group.Stop(ctx, d.cfg.ShutdownTimeout.D())
}

// Addrs returns the bound address of every transport by name.
func (d *daemon) Addrs() map[string]string {
	out := make(map[string]string)
	for _, h := range d.group.Handlers() {
		out[h.Name()] = h.Addr()
	}
	return out
}

func (d *daemon) reloadLoop(events <-chan watch.Event) {
	defer d.wg.Done()
	for ev := range events {
		switch {
		case ev.Error != nil:
			d.log.Warn("watch failed", "path", ev.Path, "error", ev.Error)
		case ev.Type == watch.Deleted:
			d.log.Warn("repeat file deleted, keeping the loaded pairs", "path", ev.Path)
		default:
			d.log.Info("repeat file changed", "path", ev.Path, "event", ev.Type)
			// Load logs and counts failures itself; the previous file stays active.
			_ = d.repeater.Load(ev.Path)
		}
	}
}
