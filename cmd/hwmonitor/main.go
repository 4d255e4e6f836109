// Command hwmonitor runs the monitor side of the hardware monitor protocol.
//
// Without -serial it listens for editors on the network; with -serial it serves
// a single editor over the given serial port.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/hwmon/monitor/arbiter"
	"github.com/hwmon/monitor/config"
	"github.com/hwmon/monitor/display"
	"github.com/hwmon/monitor/logger"
	"github.com/hwmon/monitor/metrics"
	"github.com/hwmon/monitor/monitor"
	"github.com/hwmon/monitor/network"
	"github.com/hwmon/monitor/platform"
	"github.com/hwmon/monitor/serial"
)

func main() {
	if err := run(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

type flags struct {
	config      string
	serial      string
	logLevel    string
	logFile     string
	consoleLog  bool
	metricsAddr string
	listPorts   bool
}

func parseFlags() flags {
	var f flags
	flag.StringVar(&f.config, "config", config.DefaultPath, "path to the configuration file")
	flag.StringVar(&f.serial, "serial", "", "serve an editor on this serial port instead of the network")
	flag.StringVar(&f.logLevel, "log-level", "", "log level: debug, info, warn or error")
	flag.StringVar(&f.logFile, "log-file", "", "also write logs to this rotated file")
	flag.BoolVar(&f.consoleLog, "console-log", false, "human readable log output")
	flag.StringVar(&f.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	flag.BoolVar(&f.listPorts, "list-ports", false, "list serial ports and exit")
	flag.Parse()

	return f
}

// apply overrides the configuration file with flags given on the command line.
func (f flags) apply(cfg *config.Config) {
	if f.serial != "" {
		cfg.Serial.Port = f.serial
	}
	if f.logLevel != "" {
		cfg.Log.Level = f.logLevel
	}
	if f.logFile != "" {
		cfg.Log.File = f.logFile
	}
	if f.consoleLog {
		cfg.Log.Console = true
	}
	if f.metricsAddr != "" {
		cfg.Metrics.Addr = f.metricsAddr
	}
}

func run() error {
	f := parseFlags()

	if f.listPorts {
		ports, err := serial.ListPorts()
		if err != nil {
			return err
		}
		for _, p := range ports {
			fmt.Println(p)
		}
		return nil
	}

	osFs := afero.NewOsFs()
	cfg, err := config.Load(osFs, f.config)
	if err != nil {
		return err
	}
	f.apply(&cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	l := logger.New(
		logger.WithLevel(cfg.LogLevel()),
		logger.WithConsole(cfg.Log.Console || os.Getenv("ENV") == "development"),
		logger.WithFile(cfg.Log.File),
	)
	logger.SetLogger(l)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	arb := arbiter.New()
	renderer := display.NewLogRenderer(l.With("component", "renderer"))
	dispatcher := display.NewDispatcher(l)
	scheduler := display.NewScheduler(renderer, dispatcher,
		display.WithTickInterval(cfg.Display.TickInterval.Duration),
		display.WithLogger(l.With("component", "scheduler")),
	)
	core := monitor.New(scheduler, dispatcher, renderer, arb,
		monitor.WithFileStore(platform.NewDirStore(osFs, cfg.Display.FileDir)),
		monitor.WithLogger(l),
	)

	reg := prometheus.NewRegistry()
	if err := metrics.Register(reg, metrics.DisplayCollectors(scheduler)...); err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return core.Run(ctx) })

	if cfg.SerialMode() {
		if err := startSerial(ctx, g, cfg, l, arb, core, reg); err != nil {
			return err
		}
	} else {
		if err := startNetwork(ctx, g, cfg, l, osFs, arb, core, reg); err != nil {
			return err
		}
	}

	if cfg.Metrics.Addr != "" {
		g.Go(func() error { return metrics.Serve(ctx, cfg.Metrics.Addr, reg, l) })
	}

	l.Info("monitor started", "serial", cfg.SerialMode(), "config", f.config)
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	l.Info("monitor stopped")

	return nil
}

func startSerial(
	ctx context.Context,
	g *errgroup.Group,
	cfg config.Config,
	l logger.Logger,
	arb *arbiter.Arbiter,
	core *monitor.Core,
	reg prometheus.Registerer,
) error {
	serialCfg, err := serial.NewConfig(cfg.Serial.Port, cfg.SerialOptions(l)...)
	if err != nil {
		return err
	}
	tr := serial.New(serialCfg, nil, arb, core)
	if err := metrics.Register(reg, metrics.SerialCollectors(tr.Metrics())...); err != nil {
		return err
	}
	g.Go(func() error { return tr.Run(ctx) })

	return nil
}

func startNetwork(
	ctx context.Context,
	g *errgroup.Group,
	cfg config.Config,
	l logger.Logger,
	fs afero.Fs,
	arb *arbiter.Arbiter,
	core *monitor.Core,
	reg prometheus.Registerer,
) error {
	netCfg, err := network.NewConfig(cfg.NetworkOptions(l)...)
	if err != nil {
		return err
	}

	var power platform.DisplayPower = platform.NewNoopPower()
	if cfg.Display.BacklightDir != "" {
		if bl := platform.NewBacklightPower(fs, cfg.Display.BacklightDir); bl.Available() {
			power = bl
		} else {
			l.Info("no backlight control, display power is not switched", "dir", cfg.Display.BacklightDir)
		}
	}

	srv := network.NewServer(netCfg, arb, core, power, platform.SystemResolver{})
	if err := metrics.Register(reg, metrics.NetworkCollectors(srv.Metrics())...); err != nil {
		return err
	}
	g.Go(func() error {
		err := srv.Run(ctx)
		if errors.Is(err, network.ErrServerClosed) {
			return nil
		}
		return err
	})

	return nil
}
