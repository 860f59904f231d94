package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/irisdrone/pipewatch/internal/detection"
	"github.com/irisdrone/pipewatch/internal/registry"
	"github.com/spf13/cobra"
)

var simulateFlags struct {
	cycles           int
	seed             uint64
	issueProbability float64
	delay            time.Duration
	asJSON           bool
}

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run an offline session against the synthetic detection generator",
	RunE:  runSimulate,
}

func init() {
	f := simulateCmd.Flags()
	f.IntVarP(&simulateFlags.cycles, "cycles", "n", 5, "number of refresh cycles")
	f.Uint64Var(&simulateFlags.seed, "seed", 0, "random seed (0 uses the clock)")
	f.Float64Var(&simulateFlags.issueProbability, "issue-probability", 0.8, "probability that a cycle produces detections")
	f.DurationVar(&simulateFlags.delay, "delay", 0, "pause between cycles")
	f.BoolVar(&simulateFlags.asJSON, "json", false, "print the final registry as JSON")
}

// simulate runs cycles refreshes of a seeded session and returns the final
// registry. Each update is passed to listener.
func simulate(ctx context.Context, cycles int, seed uint64, p float64, delay time.Duration, listener registry.Listener) ([]registry.Defect, error) {
	gen := detection.NewGenerator(detection.NewSeededRand(seed), detection.WithIssueProbability(p))
	rnd := detection.NewSeededRand(seed)
	if seed != 0 {
		rnd = detection.NewSeededRand(seed + 1)
	}
	opts := []registry.Option{registry.WithInitial(registry.Seed())}
	if listener != nil {
		opts = append(opts, registry.WithListener(listener))
	}
	sess := registry.NewSession(registry.NewReconciler(registry.NewIDAllocator(), rnd), gen, opts...)
	defer sess.Close()

	for i := 0; i < cycles; i++ {
		if i > 0 && delay > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}
		if err := sess.Refresh(ctx); err != nil {
			return nil, fmt.Errorf("cycle %d: %w", i+1, err)
		}
	}
	return sess.Defects(), nil
}

func runSimulate(cmd *cobra.Command, _ []string) error {
	if simulateFlags.cycles < 1 {
		return fmt.Errorf("--cycles must be at least 1")
	}
	if simulateFlags.issueProbability < 0 || simulateFlags.issueProbability > 1 {
		return fmt.Errorf("--issue-probability must be between 0 and 1")
	}

	out := cmd.OutOrStdout()
	var listener registry.Listener
	if !simulateFlags.asJSON {
		r := stdoutRenderer(out)
		cycle := 0
		listener = func(u registry.Update) {
			cycle++
			fmt.Fprintf(out, "\n== cycle %d/%d ==\n", cycle, simulateFlags.cycles)
			r.Snapshot(u.Snapshot)
			r.Registry(u.Defects, u.At)
		}
	}

	defects, err := simulate(cmd.Context(), simulateFlags.cycles, simulateFlags.seed, simulateFlags.issueProbability, simulateFlags.delay, listener)
	if err != nil {
		return err
	}
	if simulateFlags.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(defects)
	}
	return nil
}
