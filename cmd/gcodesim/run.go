package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Davec6505/gocnc-motion/dispatcher"
	"github.com/Davec6505/gocnc-motion/executor"
	"github.com/Davec6505/gocnc-motion/gcodeadapter"
	"github.com/Davec6505/gocnc-motion/internal/logging"
	"github.com/Davec6505/gocnc-motion/machine"
	"github.com/Davec6505/gocnc-motion/planner"
	"github.com/Davec6505/gocnc-motion/settings"
)

var (
	settingsPath string
	tickInterval time.Duration
	pulseTick    time.Duration
	verbose      bool
)

var runCmd = &cobra.Command{
	Use:   "run <file.gcode>",
	Short: "Feed a G-code file through the simulated motion core",
	Args:  cobra.ExactArgs(1),
	RunE:  runGcodesim,
}

func init() {
	runCmd.Flags().StringVar(&settingsPath, "settings", "gcodesim-settings.toml", "path to the TOML settings file (created with defaults if absent)")
	runCmd.Flags().DurationVar(&tickInterval, "tick", 5*time.Millisecond, "executor prep / dispatcher poll cadence")
	runCmd.Flags().DurationVar(&pulseTick, "pulse", 100*time.Microsecond, "simulated hardware timer tick period")
	runCmd.Flags().BoolVar(&verbose, "verbose", false, "use a human-readable development logger instead of JSON")
}

// runGcodesim wires one Core against the in-memory simulation
// hardware backend and drives it with three cooperating loops, each in
// its own errgroup goroutine — append, prep/dispatch poll, and the
// simulated pulse clock — coordinated by an errgroup so a failure or the file
// finishing cleanly shuts every loop down together.
func runGcodesim(cmd *cobra.Command, args []string) error {
	log, err := newLogger()
	if err != nil {
		return fmt.Errorf("gcodesim: building logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	store, err := settings.Open(settingsPath, log)
	if err != nil {
		return fmt.Errorf("gcodesim: opening settings: %w", err)
	}
	defer func() { _ = store.Close() }()
	if err := store.Watch(); err != nil {
		return fmt.Errorf("gcodesim: watching settings: %w", err)
	}

	p := planner.New(store, log)
	e := executor.New(p, store, log)
	hw, gens := dispatcher.NewSimHardware()
	d := dispatcher.New(hw, e, log)
	core := machine.New(p, e, d, store, log)

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("gcodesim: opening %s: %w", args[0], err)
	}
	defer f.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error { return tickLoop(ctx, core) })
	group.Go(func() error {
		dispatcher.RunSimClock(ctx, d, gens, pulseTick)
		return nil
	})
	group.Go(func() error {
		defer cancel() // feeding finished (or failed): let the other loops drain and stop
		return feedFile(ctx, f, core, log)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Infow("run complete", "status", core.Status())
	return nil
}

func newLogger() (*zap.SugaredLogger, error) {
	if verbose {
		return logging.NewDevelopment()
	}
	return logging.New()
}

// tickLoop runs Core.Tick on tickInterval until ctx is cancelled —
// the cooperative "main loop" context spec §4.2 calls prep from.
func tickLoop(ctx context.Context, core *machine.Core) error {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			core.Tick()
		}
	}
}

// feedFile reads one line at a time, parses it, and appends it via
// LineFeeder, spin-waiting on BufferFull exactly as spec §6 describes
// the host-side flow control: the line is resubmitted, unchanged,
// until the planner accepts it or permanently rejects it. Once every
// line is fed, it waits for the block and segment rings to fully
// drain before returning, so the run doesn't exit mid-motion.
func feedFile(ctx context.Context, r *os.File, core *machine.Core, log *zap.SugaredLogger) error {
	feeder := gcodeadapter.NewLineFeeder(core, log)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, ";") {
			continue
		}
		for feeder.Handle(line) {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(tickInterval):
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("gcodesim: reading input: %w", err)
	}

	for core.Status().BlockRingCount > 0 || core.Status().State == machine.StateRunning {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(tickInterval):
		}
	}
	return nil
}
