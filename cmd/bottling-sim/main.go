// Command bottling-sim runs the ISA-95 bottling-line digital twin: a
// virtual-time tick loop that drives a Modbus TCP register bank and an
// append-only transaction event log (spec.md §1, §6).
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/SparkyLarks/ISA95-bottling-simulator/internal/catalogue"
	"github.com/SparkyLarks/ISA95-bottling-simulator/internal/clock"
	"github.com/SparkyLarks/ISA95-bottling-simulator/internal/config"
	"github.com/SparkyLarks/ISA95-bottling-simulator/internal/events"
	"github.com/SparkyLarks/ISA95-bottling-simulator/internal/logging"
	"github.com/SparkyLarks/ISA95-bottling-simulator/internal/mbserver"
	"github.com/SparkyLarks/ISA95-bottling-simulator/internal/registers"
	"github.com/SparkyLarks/ISA95-bottling-simulator/internal/schedule"
	"github.com/SparkyLarks/ISA95-bottling-simulator/internal/simulator"
)

// Exit codes per spec.md §6.
const (
	exitOK             = 0
	exitConfigError    = 1
	exitScheduleError  = 2
	exitPortBindError  = 3
	exitCatalogueError = 4
)

func main() {
	os.Exit(run())
}

func run() int {
	var configPath string
	var speedOverride float64
	var portOverride int

	root := &cobra.Command{
		Use:   "bottling-sim",
		Short: "Simulates an ISA-95 bottling line and exposes it over Modbus TCP",
	}
	root.Flags().StringVar(&configPath, "config", "", "path to the YAML configuration file")
	root.Flags().Float64Var(&speedOverride, "speed", 0, "override config speed_factor (virtual seconds per wall second)")
	root.Flags().IntVar(&portOverride, "port", 0, "override config modbus.port")

	exitCode := exitOK

	root.RunE = func(cmd *cobra.Command, args []string) error {
		code, err := runSimulator(cmd.Context(), configPath, speedOverride, portOverride)
		exitCode = code
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		if exitCode == exitOK {
			exitCode = exitConfigError
		}
		fmt.Fprintln(os.Stderr, "bottling-sim:", err)
	}

	return exitCode
}

func runSimulator(ctx context.Context, configPath string, speedOverride float64, portOverride int) (int, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return exitConfigError, err
	}
	if speedOverride > 0 {
		cfg.SpeedFactor = speedOverride
	}
	if portOverride > 0 {
		cfg.Modbus.Port = portOverride
	}

	logger, baseZap, err := logging.NewProduction("bottling-sim")
	if err != nil {
		return exitConfigError, fmt.Errorf("building logger: %w", err)
	}
	defer baseZap.Sync()

	cat, err := catalogue.FileLoader{Path: cfg.CataloguePath}.Load()
	if err != nil {
		return exitCatalogueError, err
	}

	sched, err := schedule.FileLoader{Path: cfg.SchedulePath}.Load()
	if err != nil {
		return exitScheduleError, err
	}

	bank := registers.New()

	emitter, err := events.Open(cfg.LogPath, 256, logger)
	if err != nil {
		return exitConfigError, err
	}
	draining := false
	defer func() {
		if !draining {
			emitter.Close()
		}
	}()

	clk := clock.New(cfg.SpeedFactor, time.Now())

	sim := simulator.New(clk, bank, emitter, cat, sched, cfg, logger)

	srv := mbserver.New(bank, logger, time.Duration(cfg.Modbus.TimeoutSeconds)*time.Second, uint(cfg.Modbus.MaxClients))
	listener, boundPort, err := listenWithFallback(cfg.Modbus.Port, cfg.Modbus.FallbackPort)
	if err != nil {
		return exitPortBindError, err
	}
	if err := srv.Start(listener); err != nil {
		return exitPortBindError, err
	}
	logger.Infof("modbus server listening on port %d", boundPort)
	defer srv.Stop()

	logger.Infof("bottling-sim starting, speed_factor=%.2f", cfg.SpeedFactor)
	if err := sim.Run(ctx); err != nil {
		return exitConfigError, err
	}

	// Graceful shutdown: give the emitter's flusher goroutine a bounded
	// grace period to drain its queue before Close blocks indefinitely
	// (spec.md §5).
	draining = true
	done := make(chan struct{})
	go func() {
		emitter.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		logger.Warning("transaction log did not drain within the shutdown grace period")
	}

	return exitOK, nil
}

// listenWithFallback binds port, retrying on fallbackPort if the first bind
// fails (spec.md §6: "if modbus.port is unavailable, retry once on
// modbus.fallback_port before exiting 3").
func listenWithFallback(port, fallbackPort int) (net.Listener, int, error) {
	l, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err == nil {
		return l, port, nil
	}
	if fallbackPort == 0 || fallbackPort == port {
		return nil, 0, fmt.Errorf("binding modbus port %d: %w", port, err)
	}

	l2, err2 := net.Listen("tcp", fmt.Sprintf(":%d", fallbackPort))
	if err2 != nil {
		return nil, 0, fmt.Errorf("binding modbus port %d: %w; fallback port %d also failed: %w", port, err, fallbackPort, err2)
	}
	return l2, fallbackPort, nil
}
