package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/pkg/browser"
	"golang.org/x/sync/errgroup"
)

const version = "0.4.0"

func printVersion() {
	fmt.Printf("santokud v%s\n", version)
	fmt.Println("Host daemon for the Santoku split keyboard: pointing stick, settings menu and OLED model")
}

func printUsage() {
	printVersion()
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Println("  santokud [OPTIONS]")
	fmt.Println("  santokud list-devices")
	fmt.Println()
	fmt.Println("DESCRIPTION:")
	fmt.Println("  Grabs the keyboard, pointing-stick and scroll-encoder input devices, applies")
	fmt.Println("  rotation, acceleration and drag-scroll limiting to pointer motion, runs the")
	fmt.Println("  settings menu and alt-tab/overview key actions, and re-emits everything")
	fmt.Println("  through a virtual uinput keyboard/mouse.")
	fmt.Println()
	fmt.Println("OPTIONS:")
	fmt.Println("  -config string")
	fmt.Println("        Path to YAML or TOML config file (.toml extension selects TOML)")
	fmt.Println()
	fmt.Println("  -device path[:role[:grab|nograb]]")
	fmt.Println("        Input device (repeatable; replaces input.devices). Role: keyboard, pointer, encoder")
	fmt.Println()
	fmt.Println("  -tick-hz int")
	fmt.Printf("        Daemon tick rate in Hz (default %d)\n", defaultTickHz)
	fmt.Println()
	fmt.Println("  -ipc-socket string")
	fmt.Printf("        Unix domain socket path for IPC (default %q)\n", defaultIPCSocket)
	fmt.Println()
	fmt.Println("  -http-listen string")
	fmt.Printf("        Display page and state websocket listen address (default %q)\n", defaultHTTPListen)
	fmt.Println()
	fmt.Println("  -no-http")
	fmt.Println("        Disable the HTTP display server")
	fmt.Println()
	fmt.Println("  -no-output")
	fmt.Println("        Do not create the virtual uinput device (dry run)")
	fmt.Println()
	fmt.Println("  -open-display")
	fmt.Println("        Open the display page in a browser once the HTTP server is up")
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
	fmt.Println("SUBCOMMANDS:")
	fmt.Println("  list-devices")
	fmt.Println("        List evdev input devices with a suggested role")
	fmt.Println()
	fmt.Println("KEY ACTIONS (keymap.base / keymap.settings values):")
	fmt.Printf("  %s\n", strings.Join(keyActionList(), ", "))
	fmt.Println()
	fmt.Println("EXAMPLES:")
	fmt.Println("  santokud -config ~/.config/santokud/config.yaml")
	fmt.Println("  santokud -device /dev/input/event3:keyboard -device /dev/input/event5:pointer")
	fmt.Println("  santokud list-devices")
	fmt.Println()
	fmt.Println("NOTES:")
	fmt.Println("  - Requires read access to the input devices and write access to /dev/uinput")
	fmt.Println("  - Editing the config file re-seeds the tuning values and log level at runtime")
	fmt.Println()
}

// deviceFlags collects repeated -device flags.
type deviceFlags []InputDeviceConfig

func (d *deviceFlags) String() string {
	parts := make([]string, 0, len(*d))
	for _, dev := range *d {
		parts = append(parts, dev.Path+":"+dev.Role)
	}
	return strings.Join(parts, ",")
}

func (d *deviceFlags) Set(s string) error {
	dev, err := parseDeviceFlag(s)
	if err != nil {
		return err
	}
	*d = append(*d, dev)
	return nil
}

func main() {
	if len(os.Args) > 1 && os.Args[1] == "list-devices" {
		if err := runListDevices(os.Stdout); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
		return
	}

	var devices deviceFlags
	var (
		configPath    = flag.String("config", "", "Path to YAML or TOML config file")
		tickHz        = flag.Int("tick-hz", defaultTickHz, "Daemon tick rate in Hz")
		ipcSocketPath = flag.String("ipc-socket", defaultIPCSocket, "Unix domain socket path for IPC")
		httpListen    = flag.String("http-listen", defaultHTTPListen, "Display page and state websocket listen address")
		noHTTP        = flag.Bool("no-http", false, "Disable the HTTP display server")
		noOutput      = flag.Bool("no-output", false, "Do not create the virtual uinput device")
		openDisplay   = flag.Bool("open-display", false, "Open the display page in a browser")
		logLevelStr   = flag.String("log-level", "info", "Log level: error, warn, info, debug")
		showVersion   = flag.Bool("version", false, "Print version and exit")
		showHelp      = flag.Bool("help", false, "Print help message")
	)
	flag.Var(&devices, "device", "Input device path[:role[:grab|nograb]] (repeatable)")

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

	// Only flags given explicitly override the file.
	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })

	var overrides FlagOverrides
	if set["device"] {
		overrides.InputDevices = (*[]InputDeviceConfig)(&devices)
	}
	if set["tick-hz"] {
		overrides.TickHz = tickHz
	}
	if set["ipc-socket"] {
		overrides.IPCSocketPath = ipcSocketPath
	}
	if set["http-listen"] {
		overrides.HTTPListen = httpListen
	}
	if set["no-http"] {
		enabled := !*noHTTP
		overrides.HTTPEnabled = &enabled
	}
	if set["no-output"] {
		enabled := !*noOutput
		overrides.OutputEnabled = &enabled
	}
	if set["log-level"] {
		overrides.LogLevel = logLevelStr
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
	overrides.Apply(&cfg)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "error: invalid configuration:", err)
		os.Exit(1)
	}

	logLevel, _ := parseLogLevel(cfg.Logging.Level)
	logger, levelVar := setupLogger(logLevel)

	if err := run(cfg, *configPath, set["log-level"], *openDisplay, logger, levelVar); err != nil {
		logger.Error("santokud stopped", "error", err)
		os.Exit(1)
	}
}

// run starts every component and blocks until a signal arrives or one of
// them fails.
func run(cfg Config, configPath string, levelFromFlag, openDisplay bool, logger *slog.Logger, levelVar *slog.LevelVar) error {
	logger.Debug("starting santokud", "version", version)
	logger.Debug("configuration",
		"devices", len(cfg.Input.Devices),
		"tick_hz", cfg.Daemon.TickHz,
		"ipc_socket", cfg.IPC.SocketPath,
		"http_enabled", cfg.HTTP.Enabled,
		"http_listen", cfg.HTTP.Listen,
		"output_enabled", cfg.Output.Enabled,
		"tuning", fmt.Sprintf("%+v", cfg.Tuning))

	// Virtual HID device
	var out HIDOutput
	if cfg.Output.Enabled {
		dev, err := newUinputOutput(cfg.Output.Name, logger)
		if err != nil {
			return fmt.Errorf("%w (tip: write access to /dev/uinput is required)", err)
		}
		defer dev.Close()
		out = dev
	} else {
		logger.Warn("virtual output disabled; transformed input is discarded")
	}

	// Input devices
	devs, err := openInputDevices(cfg.Input.Devices)
	if err != nil {
		return fmt.Errorf("%w (tip: run as root or add user to 'input' group)", err)
	}
	defer closeInputDevices(devs)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	// Central event bus
	events := make(chan Event, 256)

	rcfg := cfg.ToReducerConfig()
	state := NewDaemonState(cfg.Tuning, time.Now())

	var broadcasts chan StateBroadcast
	if cfg.HTTP.Enabled {
		broadcasts = make(chan StateBroadcast, 64)
	}

	g.Go(func() error {
		runDaemon(gctx, events, out, rcfg, state, cfg.Daemon.TickHz, broadcasts, logger)
		return nil
	})

	g.Go(func() error {
		return readInputEventsEpoll(gctx, devs, events, logger)
	})

	g.Go(func() error {
		return runIPCServer(gctx, ExpandPath(cfg.IPC.SocketPath), events, logger)
	})

	if cfg.HTTP.Enabled {
		stateServer := NewStateServer(logger, events, HubConfig{})
		ready := make(chan struct{})

		g.Go(func() error {
			stateServer.Hub().Run(gctx)
			return nil
		})
		g.Go(func() error {
			RunBroadcaster(gctx, stateServer.Hub(), broadcasts, logger)
			return nil
		})
		g.Go(func() error {
			return runHTTPServer(gctx, cfg.HTTP.Listen, newHTTPMux(stateServer), ready, logger)
		})

		if openDisplay {
			g.Go(func() error {
				select {
				case <-ready:
				case <-gctx.Done():
					return nil
				}
				url := displayURL(cfg.HTTP.Listen)
				if err := browser.OpenURL(url); err != nil {
					logger.Warn("could not open display page", "url", url, "error", err)
				}
				return nil
			})
		}
	}

	if configPath != "" {
		lv := levelVar
		if levelFromFlag {
			lv = nil
		}
		g.Go(func() error {
			return runConfigWatcher(gctx, configPath, events, lv, logger)
		})
	}

	listenInfo := []any{"devices", len(devs), "ipc", cfg.IPC.SocketPath, "tick_hz", cfg.Daemon.TickHz}
	if cfg.HTTP.Enabled {
		listenInfo = append(listenInfo, "display", displayURL(cfg.HTTP.Listen))
	}
	logger.Info("listening", listenInfo...)

	err = g.Wait()
	if ctx.Err() != nil {
		logger.Info("shutting down")
	}
	return err
}
