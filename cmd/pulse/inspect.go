package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vango-dev/pulse"
	"github.com/vango-dev/pulse/internal/config"
)

func inspectCmd(load func() (*config.Config, error)) *cobra.Command {
	var (
		addr     string
		interval time.Duration
		size     int
		seed     int64
		verbose  bool
	)

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Run a live workload with the inspector server",
		Long: `Starts a runtime on the real clock with the inspector enabled and
drives the demo workload from a ticker until interrupted.

The inspector serves:
  /metrics          Prometheus metrics
  /debug/stats      aggregate counters
  /debug/history    recorded engine events
  /debug/events     live event stream (WebSocket)
  /debug/capture    export a capture (POST)`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			cfg.Inspector.Enabled = true
			if addr != "" {
				cfg.Inspector.Addr = addr
			}
			return runInspect(cfg, interval, size, seed, verbose)
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "Inspector listen address (default from config)")
	cmd.Flags().DurationVar(&interval, "interval", 500*time.Millisecond, "Time between workload steps")
	cmd.Flags().IntVar(&size, "size", 8, "Initial list size")
	cmd.Flags().Int64Var(&seed, "seed", time.Now().UnixNano(), "Random seed")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	return cmd
}

func runInspect(cfg *config.Config, interval time.Duration, size int, seed int64, verbose bool) error {
	printBanner()

	logger := newLogger(cfg, verbose)
	rt, err := pulse.New(cfg, pulse.WithLogger(logger))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The workload is built and driven on the loop goroutine.
	var w *workload
	ready := make(chan error, 1)
	if err := rt.Dispatch(func() {
		var err error
		w, err = newWorkload(rt, seed, size)
		if err == nil {
			err = w.mount()
		}
		ready <- err
	}); err != nil {
		return err
	}

	go func() {
		if err := <-ready; err != nil {
			logger.Error("workload failed", "error", err)
			stop()
			return
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := rt.Dispatch(func() { w.step() }); err != nil {
					logger.Warn("dispatch failed", "error", err)
				}
			}
		}
	}()

	success("Inspector listening on %s", cfg.Inspector.Addr)
	info("Press Ctrl+C to stop")

	err = rt.Run(ctx)
	rt.Close()
	if err != nil {
		return err
	}
	success("Stopped")
	return nil
}
