package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/phil-mansfield/cfdem/lib"
	"github.com/phil-mansfield/cfdem/lib/config"
	"github.com/phil-mansfield/cfdem/lib/errs"
	"github.com/phil-mansfield/cfdem/lib/evolve"
)

func main() {
	args, err := lib.ParseCommandLine(os.Args[1:])
	if err != nil {
		errs.External("%s\n\n%s", err.Error(), lib.Usage)
	}

	switch args.Mode {
	case lib.HelpMode:
		fmt.Print(lib.Usage)
	case lib.VersionMode:
		fmt.Println(lib.VersionString())
	case lib.ExampleMode:
		fmt.Print(config.ExampleFile)
	case lib.CheckMode:
		Check(args)
	case lib.RunMode:
		Run(args)
	}
}

// Check runs cfdem's "check" mode which tests for errors in the configuration
// arguments.
func Check(args *lib.Args) *config.Config {
	cfg, warnings, err := lib.Check(args)
	if err != nil {
		errs.Report(err)
	}
	for _, w := range warnings {
		fmt.Fprintln(os.Stderr, "Warning:", w)
	}
	if args.Mode == lib.CheckMode {
		fmt.Println("No errors detected.")
	}
	return cfg
}

// Run runs cfdem's "run" mode, which evolves the simulation until it
// terminates. An interrupt stops the run after the current step and writes
// the final output.
func Run(args *lib.Args) {
	cfg := Check(args)
	if err := lib.SetThreads(cfg.Amr.Threads); err != nil {
		errs.External("%s", err.Error())
	}

	logger := newLogger(cfg.Run.Verbose)
	logger.Info("starting", slog.String("version", lib.VersionString()),
		slog.String("config", args.ConfigFile))

	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer stop()

	sim, err := evolve.New(cfg, evolve.WithObserver(
		evolve.NewLoggingObserver(logger, cfg.Run.Verbose >= 1)))
	if err != nil {
		errs.Report(err)
	}
	_, err = sim.Run(ctx)
	if cerr := sim.Close(); err == nil {
		err = cerr
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		errs.Report(err)
	}
}

// newLogger maps [Run] Verbose to a log level: 0 is warnings only, 1 logs
// every step, and 2 or more adds debugging output.
func newLogger(verbose int) *slog.Logger {
	level := slog.LevelInfo
	switch {
	case verbose <= 0:
		level = slog.LevelWarn
	case verbose >= 2:
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr,
		&slog.HandlerOptions{Level: level}))
}
