package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/vango-dev/pulse"
	"github.com/vango-dev/pulse/internal/config"
	"github.com/vango-dev/pulse/pkg/frame"
)

func demoCmd(load func() (*config.Config, error)) *cobra.Command {
	var (
		steps   int
		size    int
		seed    int64
		verbose bool
	)

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run a scripted workload against an in-memory host",
		Long: `Runs a deterministic workload on a manual clock: a keyed list whose
items fade in and out, and a spring following a random target.

After every step the container order, the spring value and the number
of frames needed to settle are printed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			cfg.Inspector.Enabled = false
			return runDemo(cfg, steps, size, seed, verbose)
		},
	}

	cmd.Flags().IntVarP(&steps, "steps", "n", 10, "Number of workload steps")
	cmd.Flags().IntVar(&size, "size", 5, "Initial list size")
	cmd.Flags().Int64Var(&seed, "seed", 1, "Random seed")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	return cmd
}

func runDemo(cfg *config.Config, steps, size int, seed int64, verbose bool) error {
	printBanner()

	clock := frame.NewManualClock(time.Unix(0, 0))
	rt, err := pulse.New(cfg, pulse.WithClock(clock), pulse.WithLogger(newLogger(cfg, verbose)))
	if err != nil {
		return err
	}
	defer rt.Close()

	w, err := newWorkload(rt, seed, size)
	if err != nil {
		return err
	}
	defer w.close()

	if err := w.mount(); err != nil {
		return err
	}
	interval := rt.Frames().FrameInterval()
	advance := func() time.Time { return clock.Advance(interval) }

	frames := rt.Settle(settleLimit, advance)
	info("initial  [%s] settled in %d frames", w.order(), frames)

	for i := 1; i <= steps; i++ {
		w.step()
		n := rt.Settle(settleLimit, advance)
		info("step %-3d [%s] cursor=%s settled in %d frames",
			i, w.order(), trimFloat(w.cursor.Get()), n)
	}

	stats := rt.Recorder().Stats()
	fmt.Println()
	success("Demo finished")
	info("flushes:      %d", stats.Flushes)
	info("updates:      %d", stats.ComponentUpdates)
	info("frames:       %d", stats.Frames)
	info("transitions:  %d", stats.Transitions)
	info("reconciles:   %d", stats.Reconciles)
	return nil
}

// settleLimit bounds how many frames a demo step may take to come to rest.
const settleLimit = 10_000
