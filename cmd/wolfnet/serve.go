package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/TheDushan/OpenWolf-Engine-sub001/internal/config"
	"github.com/TheDushan/OpenWolf-Engine-sub001/internal/errors"
	"github.com/TheDushan/OpenWolf-Engine-sub001/internal/simworld"
	"github.com/TheDushan/OpenWolf-Engine-sub001/pkg/netchan"
	"github.com/TheDushan/OpenWolf-Engine-sub001/pkg/protocol"
	"github.com/TheDushan/OpenWolf-Engine-sub001/pkg/server"
	"github.com/TheDushan/OpenWolf-Engine-sub001/pkg/telemetry"
	"github.com/TheDushan/OpenWolf-Engine-sub001/pkg/transport"
)

func serveCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the game server",
		Long: `Run the game server on the simulated arena.

Every flag can also be set as an environment variable, e.g.
WOLFNET_MAX_CLIENTS=8 or WOLFNET_HTTP=:9090.

Examples:
  wolfnet serve
  wolfnet serve --listen=:27961 --fps=30
  wolfnet serve --latency=80ms --loss=0.05
  wolfnet serve --demo-dir=demos --record=0`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadServeConfig(v)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg, slog.Default())
		},
	}

	f := cmd.Flags()
	f.String("listen", "", "UDP address for game clients (default from wolfnet.json)")
	f.String("http", "", "Address for /status, /metrics and /ws")
	f.String("hostname", "", "Server name reported to clients")
	f.Int("max-clients", 0, "Number of client slots")
	f.Int("fps", 0, "Server frames per second")
	f.String("rcon-password", "", "Enable remote console with this password")
	f.Bool("websocket", false, "Accept game clients on /ws")
	f.String("latency", "", "Simulated outgoing latency (e.g. 50ms)")
	f.String("jitter", "", "Simulated extra random latency")
	f.Float64("loss", 0, "Simulated packet loss in [0, 1]")
	f.String("demo-dir", "", "Archive recorded demos in this directory")
	f.Int("record", -1, "Record this client slot when it enters the game")
	f.Bool("metrics", true, "Serve Prometheus metrics on /metrics")
	return cmd
}

// loadServeConfig reads the config file and applies every setting given
// by environment or flag on top.
func loadServeConfig(v *viper.Viper) (*config.Config, error) {
	path := v.GetString("config")
	var cfg *config.Config
	var err error
	if v.IsSet("config") {
		cfg, err = config.LoadFile(path)
	} else {
		cfg, err = config.LoadOptional(path)
	}
	if err != nil {
		return nil, err
	}
	applyOverrides(v, cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyOverrides(v *viper.Viper, cfg *config.Config) {
	setString := func(key string, dst *string) {
		if v.IsSet(key) {
			*dst = v.GetString(key)
		}
	}
	setInt := func(key string, dst *int) {
		if v.IsSet(key) {
			*dst = v.GetInt(key)
		}
	}
	setBool := func(key string, dst *bool) {
		if v.IsSet(key) {
			*dst = v.GetBool(key)
		}
	}
	setString("listen", &cfg.Server.Listen)
	setString("http", &cfg.HTTP.Addr)
	setString("hostname", &cfg.Server.Hostname)
	setInt("max-clients", &cfg.Server.MaxClients)
	setInt("fps", &cfg.Server.FPS)
	setString("rcon-password", &cfg.Server.RconPassword)
	setBool("websocket", &cfg.HTTP.WebSocket)
	setString("latency", &cfg.Net.Latency)
	setString("jitter", &cfg.Net.Jitter)
	if v.IsSet("loss") {
		cfg.Net.Loss = v.GetFloat64("loss")
	}
	setString("demo-dir", &cfg.Demo.Dir)
	setInt("record", &cfg.Demo.Record)
	setBool("metrics", &cfg.Telemetry.Metrics)
}

// app holds everything runServe starts.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	world    *simworld.World
	srv      *server.Server
	mux      *transport.Mux
	udp      *transport.UDP
	http     *http.Server
	archiver *archiver
}

func newApp(cfg *config.Config, logger *slog.Logger) (*app, error) {
	sc, err := cfg.ServerConfig()
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger}

	a.udp, err = transport.ListenUDP(cfg.Server.Listen, logger)
	if err != nil {
		return nil, errors.New("W200").Wrap(err)
	}
	var game netchan.Transport = a.udp
	if cfg.SimulateLink() {
		opts, _ := cfg.DelayedOptions()
		game = transport.NewDelayed(a.udp, opts)
		logger.Warn("simulating a bad link", "latency", opts.Latency, "jitter", opts.Jitter, "loss", opts.Loss)
	}
	a.mux = transport.NewMux().Route(netchan.AddrIP, game)

	a.world, err = simworld.New(simworld.Config{MaxClients: sc.MaxClients}, logger)
	if err != nil {
		a.mux.Close()
		return nil, err
	}

	opts := []server.Option{
		server.WithGame(a.world),
		server.WithLogger(logger),
		server.WithTracer(telemetry.NewTracer(telemetry.WithIncludeAddress(cfg.Telemetry.TraceAddresses))),
	}
	if cfg.HTTP.WebSocket {
		trusted, _ := cfg.TrustedProxies()
		ws := transport.NewWebSocketServer(transport.WebSocketOptions{
			TrustedProxies: trusted,
			Logger:         logger,
		})
		a.mux.Route(netchan.AddrWebSocket, ws)
		opts = append(opts, server.WithWebSocket(ws))
	}
	if cfg.Telemetry.Metrics {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		metrics := telemetry.NewPrometheus(
			telemetry.WithRegistry(reg),
			telemetry.WithNamespace(cfg.Telemetry.Namespace),
		)
		opts = append(opts, server.WithMetrics(metrics), server.WithGatherer(reg))
	}

	a.archiver, err = newArchiver(cfg, logger)
	if err != nil {
		a.mux.Close()
		return nil, err
	}
	if a.archiver != nil {
		opts = append(opts, server.WithRecordingDone(a.archiver.done))
	}

	a.srv, err = server.New(sc, a.world, a.mux, opts...)
	if err != nil {
		a.mux.Close()
		return nil, errors.New("W102").Wrap(err)
	}
	a.world.OnSay = func(_ int, name, text string) {
		a.srv.AddServerCommand(nil, "print "+protocol.Quote(name+": "+text))
	}

	if cfg.HTTP.Addr != "" {
		a.http = &http.Server{
			Addr:              cfg.HTTP.Addr,
			Handler:           a.srv.HTTPHandler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
	}
	return a, nil
}

// tick runs one server frame of msec milliseconds.
func (a *app) tick(ctx context.Context, msec int) {
	a.world.Advance(msec)
	if n := a.cfg.Demo.Record; a.archiver != nil && n >= 0 {
		a.archiver.maybeStart(a.srv, n)
	}
	if err := a.srv.Frame(ctx, msec); err != nil {
		a.logger.Debug("frame", "error", err)
	}
}

// shutdown drops every client, which also ends and archives recordings.
func (a *app) shutdown() error {
	for num := range a.srv.Config().MaxClients {
		if c := a.srv.Client(num); c != nil && c.State >= server.StateConnected {
			a.srv.DropClient(c, protocol.ReasonServerShutdown)
		}
	}
	var errs []error
	if a.http != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		errs = append(errs, a.http.Shutdown(ctx))
	}
	// Push out the disconnects still held by a simulated link.
	a.mux.Flush(time.Now().Add(time.Hour))
	errs = append(errs, a.mux.Close())
	if a.archiver != nil {
		a.archiver.wait()
	}
	return stderrors.Join(errs...)
}

func runServe(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}

	printBanner()
	success("Serving %q on udp %s", cfg.Server.Hostname, a.udp.LocalAddr())
	httpErr := make(chan error, 1)
	if a.http != nil {
		info("HTTP on %s (/status%s%s)", cfg.HTTP.Addr, suffix(cfg.Telemetry.Metrics, ", /metrics"), suffix(cfg.HTTP.WebSocket, ", /ws"))
		go func() {
			if err := a.http.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
				httpErr <- errors.New("W201").Wrap(err)
			}
		}()
	}
	fmt.Println()

	sc := a.srv.Config()
	msec := 1000 / sc.FPS
	ticker := time.NewTicker(time.Duration(msec) * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down")
			return a.shutdown()
		case err := <-httpErr:
			a.shutdown()
			return err
		case <-ticker.C:
			a.tick(ctx, msec)
		}
	}
}

func suffix(on bool, s string) string {
	if on {
		return s
	}
	return ""
}
