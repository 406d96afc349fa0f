package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
)

const version = "1.0.0"

func printVersion() {
	fmt.Printf("qdecd v%s\n", version)
	fmt.Println("Quadrature rotary encoder daemon")
}

func printUsage() {
	printVersion()
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Println("  qdecd [OPTIONS]")
	fmt.Println()
	fmt.Println("DESCRIPTION:")
	fmt.Println("  Decodes one or more quadrature rotary encoders from GPIO lines and")
	fmt.Println("  publishes their rotation (ticks or degrees) over a Unix socket, an")
	fmt.Println("  HTTP API and a state WebSocket. Readings can also be exported to InfluxDB.")
	fmt.Println()
	fmt.Println("OPTIONS:")
	fmt.Println("  -config string")
	fmt.Println("        Path to YAML config file (optional)")
	fmt.Println()
	fmt.Println("  -ipc-socket string")
	fmt.Println("        Unix domain socket path for IPC (default \"/tmp/qdecd.sock\")")
	fmt.Println()
	fmt.Println("  -http-addr string")
	fmt.Println("        HTTP listen address; empty disables HTTP (default \":3002\")")
	fmt.Println()
	fmt.Println("  -report-hz int")
	fmt.Printf("        Rate at which encoders are read and published (default %d)\n", defaultReportHz)
	fmt.Println()
	fmt.Println("  -log-level string")
	fmt.Println("        Log level: error, warn, info, debug (default \"info\")")
	fmt.Println()
	fmt.Println("  -log-format string")
	fmt.Println("        Log format: text, json, pretty (default \"text\")")
	fmt.Println()
	fmt.Println("  -version")
	fmt.Println("        Print version and exit")
	fmt.Println()
	fmt.Println("  -help")
	fmt.Println("        Print this help message")
	fmt.Println()
	fmt.Println("EXAMPLES:")
	fmt.Println("  # Run with a config file")
	fmt.Println("  qdecd -config /etc/qdecd.yaml")
	fmt.Println()
	fmt.Println("  # Read and reset an encoder")
	fmt.Println("  qdec-ctl read knob")
	fmt.Println()
	fmt.Println("NOTES:")
	fmt.Println("  - The cdev backend needs access to /dev/gpiochipN (gpio group or root)")
	fmt.Println("  - Backend \"sim\" drives a simulated encoder; turn it with qdec-ctl sim-step")
	fmt.Println()
}

func main() {
	var (
		configPath    = flag.String("config", "", "Path to YAML config file (optional)")
		ipcSocketPath = flag.String("ipc-socket", "", "Unix domain socket path for IPC")
		httpAddr      = flag.String("http-addr", "", "HTTP listen address; empty disables HTTP")
		reportHz      = flag.Int("report-hz", 0, "Rate at which encoders are read and published")
		logLevelStr   = flag.String("log-level", "", "Log level: error, warn, info, debug")
		logFormat     = flag.String("log-format", "", "Log format: text, json, pretty")
		showVersion   = flag.Bool("version", false, "Print version and exit")
		showHelp      = flag.Bool("help", false, "Print help message")
	)

	flag.Usage = printUsage
	flag.Parse()

	if *showHelp {
		printUsage()
		return
	}
	if *showVersion {
		printVersion()
		return
	}

	cfg := DefaultConfig()
	if *configPath != "" {
		loaded, err := LoadConfigFile(*configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	// Only flags the user actually passed override the file.
	var ov FlagOverrides
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "ipc-socket":
			ov.IPCSocketPath = ipcSocketPath
		case "http-addr":
			ov.HTTPAddr = httpAddr
		case "report-hz":
			ov.ReportHz = reportHz
		case "log-level":
			ov.LogLevel = logLevelStr
		case "log-format":
			ov.LogFormat = logFormat
		}
	})
	ov.Apply(&cfg)

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "error: invalid config:", err)
		os.Exit(1)
	}

	logLevel, err := parseLogLevel(cfg.Logging.Level)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	logger := setupLogger(logLevel, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("qdecd stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

// run starts every component and blocks until ctx is canceled or one of
// them fails.
func run(ctx context.Context, cfg Config, logger *slog.Logger) error {
	events := make(chan Event, eventQueueSize)

	onIdle := func(name string) {
		select {
		case events <- EncoderIdle{Encoder: name, At: time.Now()}:
		default:
			logger.Warn("event queue full; dropping idle notification", "encoder", name)
		}
	}

	set, err := OpenEncoders(cfg.Encoders, onIdle, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := set.Close(); err != nil {
			logger.Warn("closing encoders", "error", err)
		}
	}()

	var sinks []chan<- StateBroadcast

	var wsBroadcasts chan StateBroadcast
	if cfg.HTTP.Enabled {
		wsBroadcasts = make(chan StateBroadcast, broadcastQueueSize)
		sinks = append(sinks, wsBroadcasts)
	}

	var exporter *InfluxExporter
	var influxBroadcasts chan StateBroadcast
	if cfg.Influx.Enabled {
		exporter, err = NewInfluxExporter(cfg.Influx, logger)
		if err != nil {
			return err
		}
		influxBroadcasts = make(chan StateBroadcast, broadcastQueueSize)
		sinks = append(sinks, influxBroadcasts)
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := set.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("encoders: %w", err)
		}
		return nil
	})

	state := NewDaemonState(set.Infos())
	g.Go(func() error {
		runDaemon(ctx, events, set, state, cfg.Report.Hz, sinks, logger)
		return nil
	})

	g.Go(func() error {
		return runIPCServer(ctx, cfg.IPC.SocketPath, events, logger)
	})

	if cfg.HTTP.Enabled {
		ws := NewStateServer(logger, events, HubConfig{})
		g.Go(func() error {
			ws.Hub().Run(ctx)
			return nil
		})
		g.Go(func() error {
			RunBroadcaster(ctx, ws.Hub(), wsBroadcasts, logger)
			return nil
		})
		g.Go(func() error {
			return runHTTPServer(ctx, cfg.HTTP.Addr, newRouter(events, ws, logger), logger)
		})
	}

	if exporter != nil {
		g.Go(func() error {
			exporter.Run(ctx, influxBroadcasts)
			return nil
		})
	}

	logger.Info("qdecd started",
		"version", version,
		"encoders", set.Names(),
		"report_hz", cfg.Report.Hz,
		"ipc", cfg.IPC.SocketPath,
		"http", cfg.HTTP.Enabled,
		"http_addr", cfg.HTTP.Addr,
		"influx", cfg.Influx.Enabled)

	return g.Wait()
}
