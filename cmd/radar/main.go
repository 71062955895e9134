package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rjboer/GoRadar/internal/app"
	"github.com/rjboer/GoRadar/internal/logging"
	"github.com/rjboer/GoRadar/internal/mdns"
	"github.com/rjboer/GoRadar/internal/sdr"
	"github.com/rjboer/GoRadar/internal/telemetry"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "radar: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flags, err := parseFlags(args)
	if err != nil {
		return err
	}
	s, err := loadSettings(flags)
	if err != nil {
		return err
	}
	logger, err := logging.FromStrings(s.Log.Level, s.Log.Format, os.Stderr)
	if err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	logging.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if flags.discover {
		return discover(ctx, logger)
	}

	if s.source == "" {
		logger.Warn("no configuration file found, using defaults", logging.Field{Key: "path", Value: flags.configPath})
	}
	if err := s.validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	for _, w := range s.warnings() {
		logger.Warn(w)
	}
	cfg := s.acquisitionConfig()
	if rounded := app.RoundPulses(cfg.Pulses, cfg.Presums); rounded != cfg.Pulses {
		logger.Warn("num_pulses rounded up to a whole number of periods",
			logging.Field{Key: "num_pulses", Value: cfg.Pulses},
			logging.Field{Key: "rounded", Value: rounded})
	}

	waveform, err := sdr.LoadWaveform(s.Files.ChirpLoc, s.txSamples())
	if err != nil {
		return err
	}
	port, err := selectBackend(s)
	if err != nil {
		return err
	}
	defer port.Close()

	var (
		reporters []telemetry.Reporter
		hub       *telemetry.Hub
	)
	if s.Telemetry.WebAddr != "" {
		hub = telemetry.NewHub(s.Telemetry.History, logger)
		reporters = append(reporters, hub)
	} else {
		reporters = append(reporters, telemetry.NewLogReporter(logger))
	}

	acq, err := app.NewAcquisition(cfg, port, waveform, telemetry.MultiReporter(reporters), logger)
	if err != nil {
		return err
	}

	if hub != nil {
		hub.SetCounters(acq.Counters)
		stopWeb, err := serveTelemetry(ctx, hub, s, acq.RunID(), logger)
		if err != nil {
			return err
		}
		defer stopWeb()
	}

	summary, err := acq.Run(ctx)
	logger.Info("acquisition finished",
		logging.Field{Key: "run", Value: summary.RunID},
		logging.Field{Key: "pulses_scheduled", Value: summary.Scheduled},
		logging.Field{Key: "pulses_received", Value: summary.Received},
		logging.Field{Key: "error_count", Value: summary.Errors},
		logging.Field{Key: "periods", Value: summary.Periods},
		logging.Field{Key: "files", Value: strings.Join(summary.Files, ",")},
		logging.Field{Key: "elapsed", Value: summary.Elapsed.Round(time.Millisecond)})
	if err != nil {
		return fmt.Errorf("acquisition: %w", err)
	}
	return nil
}

// serveTelemetry starts the web server and, if configured, advertises it.
// The returned function stops both.
func serveTelemetry(ctx context.Context, hub *telemetry.Hub, s settings, runID string, logger logging.Logger) (func(), error) {
	srv := telemetry.NewWebServer(s.Telemetry.WebAddr, hub)
	addr, err := srv.Listen()
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", s.Telemetry.WebAddr, err)
	}
	webCtx, cancel := context.WithCancel(context.Background())
	go func() {
		if err := srv.Start(webCtx); err != nil {
			logger.Error("web telemetry server error", logging.Err(err))
		}
	}()
	logger.Info("web interface", logging.Field{Key: "addr", Value: addr.String()})

	var ad *mdns.Advertisement
	if tcp, ok := addr.(*net.TCPAddr); ok && s.Telemetry.Advertise {
		host, _ := os.Hostname()
		txt := mdns.TXT(map[string]string{"run": runID, "path": "/api/ws", "save": s.Files.SaveLoc})
		ad, err = mdns.Advertise(ctx, "radar on "+host, tcp.Port, txt, 5, logger)
		if err != nil {
			logger.Warn("telemetry not advertised", logging.Err(err))
		}
	}
	return func() {
		ad.Shutdown()
		cancel()
	}, nil
}

func discover(ctx context.Context, logger logging.Logger) error {
	hosts, err := mdns.Discover(ctx, 3*time.Second)
	if err != nil {
		return err
	}
	if len(hosts) == 0 {
		logger.Info("no radar acquisitions found")
		return nil
	}
	for _, h := range hosts {
		addrs := make([]string, 0, len(h.Addresses))
		for _, a := range h.Addresses {
			addrs = append(addrs, a.String())
		}
		fmt.Printf("%s\t%s:%d\t%s\t%s\n", h.Instance, h.Hostname, h.Port, strings.Join(addrs, ","), strings.Join(h.TXT, " "))
	}
	return nil
}
