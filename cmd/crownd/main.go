package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"
)

const version = "1.0.0"

func printVersion() {
	fmt.Printf("crownd v%s\n", version)
	fmt.Println("Crown dial daemon: maps keyboard crown events to shell commands")
}

func printUsage() {
	printVersion()
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Println("  crownd [OPTIONS]")
	fmt.Println()
	fmt.Println("DESCRIPTION:")
	fmt.Println("  Daemon that reads raw HID reports from a keyboard crown dial,")
	fmt.Println("  classifies them into logical events (rotate, press, long-press,")
	fmt.Println("  release, touch), and executes the shell command bound to each")
	fmt.Println("  event in the configuration file.")
	fmt.Println()
	fmt.Println("OPTIONS:")
	fmt.Println("  -config string")
	fmt.Println("        Path to the YAML configuration file")
	fmt.Println()
	fmt.Println("  -device string")
	fmt.Println("        Explicit hidraw device node (default: enumerate by vendor/product id)")
	fmt.Println()
	fmt.Println("  -eventws-port int")
	fmt.Println("        Port for the websocket event feed (0 disables, default 0)")
	fmt.Println()
	fmt.Println("  -log-level string")
	fmt.Println("        Log level: error, warn, info, debug (default \"info\")")
	fmt.Println()
	fmt.Println("  -version")
	fmt.Println("        Print version and exit")
	fmt.Println()
	fmt.Println("  -help")
	fmt.Println("        Print this help message")
	fmt.Println()
	fmt.Println("CONFIGURATION:")
	fmt.Println("  Bindings map (event, modifier) pairs to commands, for example:")
	fmt.Println()
	fmt.Println("    crown:")
	fmt.Println("      long_press_ms: 500")
	fmt.Println("      ratchet: ratcheted")
	fmt.Println("    bindings:")
	fmt.Println("      - on: rotate_cw")
	fmt.Println("        command: pactl")
	fmt.Println("        args: [\"set-sink-volume\", \"@DEFAULT_SINK@\", \"+2%\"]")
	fmt.Println("      - on: press")
	fmt.Println("        modifier: ctrl")
	fmt.Println("        command: playerctl")
	fmt.Println("        args: [\"play-pause\"]")
	fmt.Println("        policy: tracked")
	fmt.Println()
	fmt.Println("NOTES:")
	fmt.Println("  - Requires read/write access to the hidraw node (run as root or add")
	fmt.Println("    a udev rule granting your user access)")
	fmt.Println("  - Duplicate (on, modifier) binding pairs are a startup error")
	fmt.Println("  - Exit code is 0 on clean shutdown, non-zero on configuration or")
	fmt.Println("    fatal device errors")
	fmt.Println()
}

func main() {
	// Check for version/help flags early
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" {
			printVersion()
			return
		}
		if arg == "-help" || arg == "--help" || arg == "-h" {
			printUsage()
			return
		}
	}

	var (
		configPath  = flag.String("config", "", "Path to the YAML configuration file")
		devicePath  = flag.String("device", "", "Explicit hidraw device node")
		eventwsPort = flag.Int("eventws-port", 0, "Port for the websocket event feed (0 disables)")
		logLevelStr = flag.String("log-level", "info", "Log level: error, warn, info, debug")
		showVersion = flag.Bool("version", false, "Print version and exit")
		showHelp    = flag.Bool("help", false, "Print help message")
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

	// Load config: defaults, then file, then flag overrides.
	cfg := DefaultConfig()
	if *configPath != "" {
		var err error
		cfg, err = LoadConfigFile(*configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
	}

	var overrides FlagOverrides
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "device":
			overrides.DevicePath = devicePath
		case "eventws-port":
			overrides.EventWSPort = eventwsPort
		case "log-level":
			overrides.LogLevel = logLevelStr
		}
	})
	overrides.Apply(&cfg)

	logLevel, err := parseLogLevel(cfg.Logging.Level)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	logger := setupLogger(logLevel)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	// Build the binding table up front; duplicate or malformed bindings must
	// fail here, never mid-run.
	resolver, err := newResolver(cfg.Bindings)
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	if len(cfg.Bindings) == 0 {
		logger.Warn("no bindings configured; events will be classified but nothing dispatched")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Optional event feed.
	var hub *Hub
	if cfg.EventWS.Port > 0 {
		hub = NewHub(logger, HubConfig{})
		go hub.Run(ctx)
		go func() {
			if err := runEventFeed(ctx, cfg.EventWS.Port, hub, logger); err != nil {
				logger.Error("event feed error", "error", err)
			}
		}()
	}

	ratcheted := cfg.Crown.Ratchet == RatchetModeRatcheted
	device := newCrownDevice(cfg.Device, ratcheted, logger)

	reports := make(chan RawReport, reportChanBuf)
	devErr := make(chan error, 1)
	go func() {
		devErr <- device.Run(ctx, reports)
	}()

	executor := newExecutor(logger, nil)
	pipeline := &Pipeline{
		logger:     logger,
		decoder:    &Decoder{},
		classifier: newClassifier(time.Duration(cfg.Crown.LongPressMS)*time.Millisecond, ratcheted, logger),
		resolver:   resolver,
		executor:   executor,
		feed:       hub,
		onConnect:  device.ApplyRatchet,
	}

	logger.Info("crownd starting",
		"version", version,
		"vendor_id", fmt.Sprintf("%04x", cfg.Device.VendorID),
		"product_id", fmt.Sprintf("%04x", cfg.Device.ProductID),
		"device_path", cfg.Device.Path,
		"bindings", len(cfg.Bindings),
		"ratchet", cfg.Crown.Ratchet,
		"long_press_ms", cfg.Crown.LongPressMS,
		"eventws_port", cfg.EventWS.Port)

	runErr := runDispatch(ctx, reports, devErr, pipeline)

	// Tracked actions get a bounded grace period; fire-and-forget processes
	// are left to the OS.
	grace := time.Duration(cfg.Executor.ShutdownGraceMS) * time.Millisecond
	if !executor.Drain(grace) {
		logger.Warn("shutdown grace expired with tracked actions still running", "grace", grace)
	}

	if runErr != nil {
		logger.Error("fatal device error", "error", runErr)
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}
