package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/getmockd/serialmock/pkg/chaos"
	"github.com/getmockd/serialmock/pkg/config"
	"github.com/getmockd/serialmock/pkg/logging"
	"github.com/getmockd/serialmock/pkg/tls"
	"github.com/spf13/cobra"
)

type serveFlags struct {
	configPath   string
	repeatFile   string
	tcpAddr      string
	noTCP        bool
	gapTolerance time.Duration
	wsAddr       string
	wsPath       string
	mqttAddr     string
	requestTopic string
	replyTopic   string
	quicAddr     string
	pty          bool
	ptyLink      string
	watch        bool
	seed         uint64
	history      int
	logFile      string
	chaosProfile string
	latency      string
	dropRate     float64
	tls          bool
	tlsCert      string
	tlsKey       string
}

func newServeCmd(g *globalFlags) *cobra.Command {
	f := &serveFlags{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Answer frames from a repeat file",
		Long: `Load a repeat file and answer matching frames until interrupted.

Settings come from the config file (-c), then SERIALMOCK_REPEAT_FILE, then
flags. Setting a transport address enables that transport.`,
		Example: `  serialmock serve -c serialmock.yaml
  serialmock serve -r device.txt --tcp :7000 --watch
  serialmock serve -r device.txt --no-tcp --mqtt :1883 --seed 42
  serialmock serve -r device.txt --no-tcp --pty-link /tmp/ttyMOCK0`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := buildServeConfig(cmd, g, f)
			if err != nil {
				return err
			}

			log, closeLog, err := newLogger(cfg.Log, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer closeLog()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return serve(ctx, cfg, log, func(d *daemon) {
				printStartup(cmd.OutOrStdout(), d)
			})
		},
	}

	fl := cmd.Flags()
	fl.StringVarP(&f.configPath, "config", "c", "", "Config file path")
	fl.StringVarP(&f.repeatFile, "repeat-file", "r", "", "Repeat file to serve")
	fl.StringVar(&f.tcpAddr, "tcp", "", "TCP listen address (e.g. :7000)")
	fl.BoolVar(&f.noTCP, "no-tcp", false, "Disable the TCP transport")
	fl.DurationVar(&f.gapTolerance, "gap-tolerance", 0, "Idle gap that ends a TCP frame")
	fl.StringVar(&f.wsAddr, "ws", "", "WebSocket listen address (e.g. :7001)")
	fl.StringVar(&f.wsPath, "ws-path", "", "WebSocket upgrade path")
	fl.StringVar(&f.mqttAddr, "mqtt", "", "MQTT broker listen address (e.g. :1883)")
	fl.StringVar(&f.requestTopic, "mqtt-request-topic", "", "MQTT topic carrying frames")
	fl.StringVar(&f.replyTopic, "mqtt-response-topic", "", "MQTT topic carrying answers")
	fl.StringVar(&f.quicAddr, "quic", "", "QUIC listen address (UDP, e.g. :7002)")
	fl.BoolVar(&f.pty, "pty", false, "Serve on a pseudo-terminal (Linux)")
	fl.StringVar(&f.ptyLink, "pty-link", "", "Symlink to the pseudo-terminal device (implies --pty)")
	fl.BoolVar(&f.watch, "watch", false, "Reload the repeat file when it changes")
	fl.Uint64Var(&f.seed, "seed", 0, "Seed for @rand (0 = unseeded)")
	fl.IntVar(&f.history, "history", 0, "Frames kept for /frames on the WebSocket listener (config default 1000, 0 = off)")
	fl.StringVar(&f.logFile, "log-file", "", "Append a JSON copy of the log to this file")
	fl.StringVar(&f.chaosProfile, "chaos-profile", "", "Inject faults from a built-in profile (see 'serialmock chaos profiles')")
	fl.StringVar(&f.latency, "latency", "", "Delay every answer by a random duration (e.g. \"10ms-100ms\")")
	fl.Float64Var(&f.dropRate, "drop-rate", 0, "Fraction of answers to drop (0.0-1.0)")
	fl.BoolVar(&f.tls, "tls", false, "Serve every enabled transport over TLS (self-signed unless --tls-cert is set)")
	fl.StringVar(&f.tlsCert, "tls-cert", "", "TLS certificate file (PEM)")
	fl.StringVar(&f.tlsKey, "tls-key", "", "TLS private key file (PEM)")

	return cmd
}

// buildServeConfig layers defaults, the config file, the environment and
// flags, then validates the result.
func buildServeConfig(cmd *cobra.Command, g *globalFlags, f *serveFlags) (*config.Config, error) {
	cfg := config.Default()
	if f.configPath != "" {
		var err error
		if cfg, err = config.Read(f.configPath); err != nil {
			return nil, err
		}
	}
	cfg.ApplyEnv()

	changed := cmd.Flags().Changed
	if changed("repeat-file") {
		cfg.RepeatFile = f.repeatFile
	}
	if changed("tcp") {
		cfg.TCP.Enabled = true
		cfg.TCP.Address = f.tcpAddr
	}
	if f.noTCP {
		cfg.TCP.Enabled = false
	}
	if changed("gap-tolerance") {
		cfg.TCP.GapTolerance = config.Duration(f.gapTolerance)
	}
	if changed("ws") {
		cfg.WebSocket.Enabled = true
		cfg.WebSocket.Address = f.wsAddr
	}
	if changed("ws-path") {
		cfg.WebSocket.Path = f.wsPath
	}
	if changed("mqtt") {
		cfg.MQTT.Enabled = true
		cfg.MQTT.Address = f.mqttAddr
	}
	if changed("mqtt-request-topic") {
		cfg.MQTT.RequestTopic = f.requestTopic
	}
	if changed("mqtt-response-topic") {
		cfg.MQTT.ResponseTopic = f.replyTopic
	}
	if changed("quic") {
		cfg.QUIC.Enabled = true
		cfg.QUIC.Address = f.quicAddr
	}
	if changed("pty") {
		cfg.PTY.Enabled = f.pty
	}
	if changed("pty-link") {
		cfg.PTY.Enabled = true
		cfg.PTY.Link = f.ptyLink
	}
	if changed("watch") {
		cfg.Watch = f.watch
	}
	if changed("seed") {
		cfg.Seed = f.seed
	}
	if changed("history") {
		cfg.History = f.history
	}
	if changed("log-file") {
		cfg.Log.File = f.logFile
	}
	applyChaosFlags(cmd, f, &cfg.Chaos)
	applyTLSFlags(cmd, f, cfg)
	if g.logLevel != "" {
		cfg.Log.Level = g.logLevel
	}
	if g.logFormat != "" {
		cfg.Log.Format = g.logFormat
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyChaosFlags enables fault injection when any chaos flag is set. Flag
// faults replace the configured global faults.
func applyChaosFlags(cmd *cobra.Command, f *serveFlags, c *chaos.Config) {
	changed := cmd.Flags().Changed
	if !changed("chaos-profile") && !changed("latency") && !changed("drop-rate") {
		return
	}
	c.Enabled = true
	if changed("chaos-profile") {
		c.Profile = f.chaosProfile
		c.Global = nil
	}
	if !changed("latency") && !changed("drop-rate") {
		return
	}

	global := &chaos.Faults{}
	if changed("latency") {
		lo, hi := parseLatencyRange(f.latency)
		global.Latency = &chaos.LatencyFault{Min: lo, Max: hi, Probability: 1}
	}
	if changed("drop-rate") {
		global.Drop = &chaos.DropFault{Probability: f.dropRate}
	}
	c.Global = global
}

// applyTLSFlags sets the same TLS settings on every transport.
func applyTLSFlags(cmd *cobra.Command, f *serveFlags, cfg *config.Config) {
	changed := cmd.Flags().Changed
	if !changed("tls") && !changed("tls-cert") && !changed("tls-key") {
		return
	}
	t := tls.Config{
		Enabled:  f.tls || f.tlsCert != "" || f.tlsKey != "",
		CertFile: f.tlsCert,
		KeyFile:  f.tlsKey,
	}
	cfg.TCP.TLS = t
	cfg.WebSocket.TLS = t
	cfg.MQTT.TLS = t
	cfg.QUIC.CertFile = f.tlsCert
	cfg.QUIC.KeyFile = f.tlsKey
}

// parseLatencyRange splits "10ms-100ms". A single value is used for both ends.
func parseLatencyRange(s string) (lo, hi string) {
	if a, b, ok := strings.Cut(s, "-"); ok {
		return strings.TrimSpace(a), strings.TrimSpace(b)
	}
	return s, s
}

// newLogger builds the daemon logger. The returned func closes the log file.
func newLogger(lc config.LogConfig, w io.Writer) (*slog.Logger, func(), error) {
	lcfg := logging.Config{
		Level:  logging.ParseLevel(lc.Level),
		Format: logging.ParseFormat(lc.Format),
		Output: w,
	}
	if lc.File == "" {
		return logging.New(lcfg), func() {}, nil
	}

	file, err := os.OpenFile(lc.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}
	lcfg.Tee = file
	return logging.New(lcfg), func() { _ = file.Close() }, nil
}

// serve runs a daemon until ctx is done. ready is called once the
// transports are listening.
func serve(ctx context.Context, cfg *config.Config, log *slog.Logger, ready func(*daemon)) error {
	d, err := newDaemon(cfg, log)
	if err != nil {
		return err
	}
	if err := d.Start(ctx); err != nil {
		return err
	}
	if ready != nil {
		ready(d)
	}

	<-ctx.Done()
	log.Info("shutting down")

	// ctx is already cancelled; the shutdown timeout bounds Stop.
	if err := d.Stop(context.Background()); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func printStartup(w io.Writer, d *daemon) {
	st := d.repeater.Stats()
	fmt.Fprintf(w, "serialmock serving %d pairs (%s) from %s\n", st.Pairs, st.Grammar, st.Path)

	addrs := d.Addrs()
	names := make([]string, 0, len(addrs))
	for name := range addrs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %-10s %s\n", name, addrs[name])
	}
	if d.watcher != nil {
		fmt.Fprintln(w, "  watching for changes")
	}
	if d.history != nil {
		fmt.Fprintf(w, "  keeping the last %d frames\n", d.cfg.History)
	}
	if d.chaos != nil {
		fmt.Fprintln(w, "  chaos enabled, answers may be delayed, dropped or damaged")
	}
	if tlsNames := d.tlsTransports(); len(tlsNames) > 0 {
		fmt.Fprintf(w, "  tls on %s\n", strings.Join(tlsNames, ", "))
	}
}
