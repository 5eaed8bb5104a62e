// File: cmd/wsc/dial.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"dario.cat/mergo"
	units "github.com/docker/go-units"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/momentics/hioload-wsc/client"
	"github.com/momentics/hioload-wsc/control"
	"github.com/momentics/hioload-wsc/internal/logging"
)

type dialOptions struct {
	configPath  string
	metricsAddr string
	headers     []string
	sendRate    float64
	noAutoPing  bool
	flags       client.Config
}

func newDialCmd() *cobra.Command {
	var o dialOptions
	cmd := &cobra.Command{
		Use:   "dial <url>",
		Short: "Connect, print received messages and send stdin lines",
		Long: `Connect to a WebSocket endpoint. Each stdin line is sent as a text message.
Lines starting with a slash are commands:
  /ping [payload]         send a ping
  /close [code] [reason]  start the closing handshake
  /binary <text>          send text bytes as a binary message`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			o.flags.URL = args[0]
			cfg, err := o.config()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return runDial(ctx, cfg, o, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	f := cmd.Flags()
	f.StringVarP(&o.configPath, "config", "c", "", "YAML config file")
	f.StringVar(&o.flags.Version, "version", "", "protocol version: rfc6455, hybi10, hybi00 or auto")
	f.StringVar(&o.flags.Origin, "origin", "", "Origin header")
	f.StringVar(&o.flags.SubProtocol, "subprotocol", "", "Sec-WebSocket-Protocol value")
	f.StringArrayVarP(&o.headers, "header", "H", nil, "extra handshake header as key=value (repeatable)")
	f.DurationVar(&o.flags.PingInterval, "ping-interval", 0, "heartbeat interval")
	f.BoolVar(&o.noAutoPing, "no-auto-ping", false, "disable the heartbeat")
	f.StringVar(&o.flags.Proxy, "proxy", "", "http:// CONNECT or socks5:// proxy")
	f.BoolVar(&o.flags.TLS.InsecureSkipVerify, "insecure", false, "skip TLS certificate verification")
	f.StringVar(&o.flags.TLS.CAFile, "ca-file", "", "CA bundle for wss://")
	f.StringVar(&o.flags.MaxRetainedPayload, "max-payload", "", "largest payload kept in memory, e.g. 25MiB")
	f.StringVar(&o.flags.LogLevel, "log-level", "", "debug, info, warn or error")
	f.StringVar(&o.flags.LogFormat, "log-format", "", "text or json")
	f.StringVar(&o.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	f.Float64Var(&o.sendRate, "rate", 0, "max stdin messages per second (0 = unlimited)")
	return cmd
}

// config layers flags over the config file over defaults.
func (o *dialOptions) config() (client.Config, error) {
	cfg := client.DefaultConfig()
	if o.configPath != "" {
		var err error
		if cfg, err = client.LoadConfig(o.configPath); err != nil {
			return cfg, err
		}
	}
	flags := o.flags
	if len(o.headers) > 0 {
		flags.Headers = make(map[string]string, len(o.headers))
		for _, h := range o.headers {
			k, v, ok := strings.Cut(h, "=")
			if !ok {
				return cfg, fmt.Errorf("header %q: want key=value", h)
			}
			flags.Headers[strings.TrimSpace(k)] = strings.TrimSpace(v)
		}
	}
	if err := mergo.Merge(&cfg, flags, mergo.WithOverride); err != nil {
		return cfg, fmt.Errorf("merge flags: %w", err)
	}
	if o.noAutoPing {
		cfg.AutoPing = false
	}
	return cfg, cfg.Validate()
}

func runDial(ctx context.Context, cfg client.Config, o dialOptions, in io.Reader, out io.Writer) error {
	log := logging.New(logging.Config{
		Level:  logging.ParseLevel(cfg.LogLevel),
		Format: logging.ParseFormat(cfg.LogFormat),
		Output: os.Stderr,
	})
	metrics := control.NewMetricsRegistry()
	probes := control.NewDebugProbes()
	control.RegisterRuntimeProbes(probes)
	closed := make(chan string, 1)

	s, err := client.NewSession(cfg, nil,
		client.WithLogger(log),
		client.WithMetrics(metrics),
		client.WithProbes(probes),
		client.WithHandlers(client.Handlers{
			OnOpened: func(s *client.Session) {
				fmt.Fprintf(out, "connected (%s)\n", s.Version())
			},
			OnMessage: func(_ *client.Session, text string) {
				fmt.Fprintf(out, "< %s\n", text)
			},
			OnData: func(_ *client.Session, p []byte) {
				fmt.Fprintf(out, "< [binary %s]\n", units.HumanSize(float64(len(p))))
			},
			OnError: func(_ *client.Session, err error) {
				log.Error("session error", "err", err)
			},
			OnClosed: func(_ *client.Session, code int, reason string) {
				closed <- fmt.Sprintf("closed: %d %s", code, reason)
			},
		}),
	)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	if o.metricsAddr != "" {
		srv := metricsServer(o.metricsAddr, metrics, probes)
		g.Go(func() error {
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			select {
			case <-gctx.Done():
			case <-s.Done():
			}
			sctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			return srv.Shutdown(sctx)
		})
	}

	if err := s.Open(ctx); err != nil {
		_ = g.Wait()
		return err
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		sc.Buffer(make([]byte, 64*1024), 16<<20)
		for sc.Scan() {
			lines <- sc.Text()
		}
	}()

	g.Go(func() error {
		limit := rate.Inf
		if o.sendRate > 0 {
			limit = rate.Limit(o.sendRate)
		}
		return pump(gctx, s, lines, rate.NewLimiter(limit, 1), log)
	})
	g.Go(func() error {
		select {
		case <-s.Done():
		case <-gctx.Done():
			_ = s.CloseWithReason("interrupted")
			<-s.Done()
		}
		return nil
	})

	err = g.Wait()
	select {
	case msg := <-closed:
		fmt.Fprintln(out, msg)
	default:
	}
	st := s.Stats()
	fmt.Fprintf(out, "sent %s in %d frames, received %s in %d messages\n",
		units.HumanSize(float64(st.BytesSent)), st.FramesSent,
		units.HumanSize(float64(st.BytesReceived)), st.MessagesReceived)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// pump forwards stdin lines until the session ends. EOF on stdin closes
// the session normally.
func pump(ctx context.Context, s *client.Session, lines <-chan string, lim *rate.Limiter, log *slog.Logger) error {
	select {
	case <-s.Opened():
	case <-s.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
	for {
		select {
		case <-s.Done():
			return nil
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				_ = s.CloseWithReason("")
				return nil
			}
			if err := lim.Wait(ctx); err != nil {
				return err
			}
			if err := execLine(s, line); err != nil {
				log.Warn("send failed", "err", err)
			}
		}
	}
}

// lineCommand is a parsed stdin line.
type lineCommand struct {
	name string
	code int
	arg  string
}

func parseLine(line string) (lineCommand, error) {
	if !strings.HasPrefix(line, "/") {
		return lineCommand{name: "text", arg: line}, nil
	}
	name, rest, _ := strings.Cut(line[1:], " ")
	switch name {
	case "ping", "binary":
		return lineCommand{name: name, arg: rest}, nil
	case "close":
		c := lineCommand{name: name}
		if rest == "" {
			return c, nil
		}
		codeText, reason, _ := strings.Cut(rest, " ")
		code, err := strconv.Atoi(codeText)
		if err != nil {
			return c, fmt.Errorf("close code %q: %w", codeText, err)
		}
		c.code, c.arg = code, reason
		return c, nil
	}
	return lineCommand{}, fmt.Errorf("unknown command /%s", name)
}

func execLine(s *client.Session, line string) error {
	c, err := parseLine(line)
	if err != nil {
		return err
	}
	switch c.name {
	case "ping":
		return s.Ping(c.arg)
	case "binary":
		return s.SendBinary([]byte(c.arg))
	case "close":
		if c.code == 0 {
			return s.CloseWithReason(c.arg)
		}
		return s.Close(c.code, c.arg)
	}
	return s.Send(c.arg)
}

// metricsServer exposes the registry at /metrics and probe output as JSON
// at /debug/probes.
func metricsServer(addr string, reg *control.MetricsRegistry, probes *control.DebugProbes) *http.Server {
	pr := prometheus.NewRegistry()
	pr.MustRegister(control.NewCollector("wsc", reg, nil))
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(pr, promhttp.HandlerOpts{}))
	mux.HandleFunc("/debug/probes", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(probes.DumpState())
	})
	return &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
}
