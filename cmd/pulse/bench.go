package main

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/spf13/cobra"

	"github.com/vango-dev/pulse"
	"github.com/vango-dev/pulse/internal/config"
	"github.com/vango-dev/pulse/pkg/bitset"
	"github.com/vango-dev/pulse/pkg/enginetest"
	"github.com/vango-dev/pulse/pkg/frame"
	"github.com/vango-dev/pulse/pkg/keyed"
	"github.com/vango-dev/pulse/pkg/scheduler"
)

func benchCmd(load func() (*config.Config, error)) *cobra.Command {
	var (
		size   int
		rounds int
		seed   int64
	)

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Benchmark the keyed reconciler and the scheduler",
		Long: `Reconciles random permutations of a keyed list and flushes batches of
dirty components, reporting the time per operation.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			cfg.Inspector.Enabled = false
			if size <= 0 || rounds <= 0 {
				return fmt.Errorf("size and rounds must be positive")
			}
			return runBench(cfg, size, rounds, seed)
		},
	}

	cmd.Flags().IntVar(&size, "size", 1000, "Number of list items / components")
	cmd.Flags().IntVar(&rounds, "rounds", 100, "Number of rounds")
	cmd.Flags().Int64Var(&seed, "seed", 1, "Random seed")

	return cmd
}

func runBench(cfg *config.Config, size, rounds int, seed int64) error {
	printBanner()

	rt, err := pulse.New(cfg, pulse.WithClock(frame.NewManualClock(time.Unix(0, 0))))
	if err != nil {
		return err
	}
	defer rt.Close()

	reconcile := benchReconcile(rt, size, rounds, seed)
	info("reconcile  %6d items  %s/round  %.1f moves/round",
		size, reconcile.perRound, reconcile.movesPerRound)

	flush, err := benchFlush(rt, size, rounds)
	if err != nil {
		return err
	}
	info("flush      %6d comps  %s/round", size, flush)

	success("Benchmark finished")
	return nil
}

type reconcileResult struct {
	perRound      time.Duration
	movesPerRound float64
}

// benchReconcile shuffles a keyed list of size items rounds times.
func benchReconcile(rt *pulse.Runtime, size, rounds int, seed int64) reconcileResult {
	h := enginetest.NewHost()
	root := h.NewContainer("bench")
	list := keyed.NewList(
		func(i int) int { return i },
		func(key, _ int) keyed.Block[int] { return enginetest.NewBlock(h, key) },
		keyed.WithObserver[int, int](rt.Recorder()),
	)

	items := make([]int, size)
	for i := range items {
		items[i] = i
	}
	list.Update(root, nil, items, bitset.All())

	rng := rand.New(rand.NewSource(seed))
	var (
		took  time.Duration
		moves int
	)
	for r := 0; r < rounds; r++ {
		rng.Shuffle(len(items), func(i, j int) { items[i], items[j] = items[j], items[i] })
		start := time.Now()
		stats := list.Update(root, nil, items, bitset.All())
		took += time.Since(start)
		moves += stats.Moved
	}
	list.Destroy(true)

	return reconcileResult{
		perRound:      took / time.Duration(rounds),
		movesPerRound: float64(moves) / float64(rounds),
	}
}

// benchFlush marks size components dirty and flushes them, rounds times.
func benchFlush(rt *pulse.Runtime, size, rounds int) (time.Duration, error) {
	h := enginetest.NewHost()
	root := h.NewContainer("bench")
	sched := rt.Scheduler()

	comps := make([]*scheduler.Component, size)
	for i := range comps {
		comps[i] = sched.NewComponent(scheduler.ComponentOptions{
			Name: fmt.Sprintf("c%d", i),
			Unit: h.NewUnit(fmt.Sprintf("c%d", i)),
		})
		if err := comps[i].Mount(root, nil); err != nil {
			return 0, err
		}
	}

	var took time.Duration
	for r := 0; r < rounds; r++ {
		for i, c := range comps {
			c.MarkDirty(i % 64)
		}
		start := time.Now()
		if err := sched.Flush(); err != nil {
			return 0, err
		}
		took += time.Since(start)
	}
	rt.Loop().RunMicrotasks()

	for _, c := range comps {
		c.Destroy(true)
	}
	return took / time.Duration(rounds), nil
}
