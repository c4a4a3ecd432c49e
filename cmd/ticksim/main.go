package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"

	"ticksim/internal/clock"
	"ticksim/internal/colony"
	"ticksim/internal/job"
	"ticksim/internal/monitor"
	"ticksim/internal/sched"
)

func main() {
	configPath := flag.String("config", "config.yml", "path to the YAML config")
	ticks := flag.Uint64("ticks", 0, "stop after this many pulses (0 = until interrupted)")
	buildings := flag.Int("buildings", 8, "number of buildings to simulate")
	csvPath := flag.String("csv", "", "write status events to this CSV file")
	monitorAddr := flag.String("monitor", "", "serve the websocket status feed on this address")
	flag.Parse()

	// Read the configuration
	cfg := sched.Load(*configPath)
	if *csvPath != "" {
		cfg.CSVPath = *csvPath
	}
	if *monitorAddr != "" {
		cfg.MonitorAddr = *monitorAddr
	}

	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.TimeOnly,
		Prefix:          "ticksim",
	})
	if level, err := log.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	} else {
		logger.Warn("unknown log level, keeping info", "level", cfg.LogLevel)
	}

	if err := run(cfg, logger, *ticks, *buildings); err != nil {
		logger.Error("ticksim failed", "err", err)
		os.Exit(1)
	}
}

func run(cfg sched.Config, logger *log.Logger, ticks uint64, buildings int) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b := sched.New(cfg, logger)
	defer b.Stop()

	if cfg.CSVPath != "" {
		if err := b.EnableCSVLogging(cfg.CSVPath); err != nil {
			return fmt.Errorf("csv log: %w", err)
		}
	}

	mc := clock.New(b.Config(), b, logger)

	if cfg.MonitorAddr != "" {
		hub := monitor.NewHub(logger)
		go hub.Run(ctx)
		go hub.Feed(ctx, mc.RunID().String(), b.Events())

		srv := &http.Server{Addr: cfg.MonitorAddr, Handler: hub}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("monitor server failed", "err", err)
			}
		}()
		defer srv.Close()
		logger.Info("monitor listening", "addr", cfg.MonitorAddr)
	}

	env := colony.NewEnvironment(colony.MaxIrradiance / 2)
	kinds := []colony.HeatKind{colony.SolarHeat, colony.ElectricHeat, colony.FuelHeat, colony.ThermalNuclear}
	for i := range buildings {
		b.Add(colony.NewBuilding(fmt.Sprintf("hab-%02d", i+1), env,
			colony.HeatSource{Kind: kinds[i%len(kinds)], MaxHeat: 10, Load: 0.5}))
	}
	// a slow entity that only needs a pulse every second
	b.AddThrottled(job.SleepWork("greenhouse", 5), time.Second)

	if err := mc.Run(ctx, ticks); err != nil {
		return err
	}

	st := b.Stats()
	logger.Info("simulation finished",
		"pulses", mc.Generator().Total(),
		"delivered", st.Delivered,
		"failed", st.Failed,
		"skipped", st.Skipped,
		"timed_out", st.TimedOut,
	)
	return nil
}
