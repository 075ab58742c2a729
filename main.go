// core-pulse samples per-core CPU utilisation from /proc/stat and renders
// smoothed, colour-coded percentages to the terminal.
//
// Usage:
//
//	core-pulse [flags]
//
// Flags:
//
//	-config string    Path to configuration file (default: ~/.config/core-pulse/config.yaml)
//	-interval string  Sampling interval override (e.g. 200ms)
//	-window int       Analysis cycles per rendered frame override
//	-color string     Colour mode override (auto|always|never)
//	-tui              Launch the interactive Bubbletea front end
//	-verbose          Enable debug logging
//	-version          Print version and exit
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/term"

	"gitlab.com/tinyland/lab/core-pulse/collectors/procstat"
	"gitlab.com/tinyland/lab/core-pulse/config"
	"gitlab.com/tinyland/lab/core-pulse/display/color"
	"gitlab.com/tinyland/lab/core-pulse/display/frame"
	"gitlab.com/tinyland/lab/core-pulse/display/tui"
	"gitlab.com/tinyland/lab/core-pulse/pipeline"
)

const (
	exitOK      = 0
	exitFailure = 1
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		configPath  = flag.String("config", "", "Path to configuration file (default: ~/.config/core-pulse/config.yaml)")
		interval    = flag.String("interval", "", "Sampling interval override (e.g. 200ms)")
		window      = flag.Int("window", 0, "Analysis cycles per rendered frame override")
		colorFlag   = flag.String("color", "", "Colour mode override (auto|always|never)")
		runTUI      = flag.Bool("tui", false, "Launch the interactive Bubbletea front end")
		verbose     = flag.Bool("verbose", false, "Enable debug logging")
		showVersion = flag.Bool("version", false, "Print version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("core-pulse %s (%s) built %s\n", version, commit, date)
		return exitOK
	}

	// ---------------------------------------------------------------
	// Configuration
	// ---------------------------------------------------------------

	path := *configPath
	if path == "" {
		path = config.DefaultPath()
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return exitFailure
	}
	applyFlags(cfg, *interval, *window, *colorFlag, *runTUI, *verbose)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		return exitFailure
	}

	tuiMode := cfg.Display.Mode == config.ModeTUI
	logger, closeLog, err := newLogger(cfg, tuiMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open log: %v\n", err)
		return exitFailure
	}
	defer closeLog()

	mode, err := color.ParseMode(cfg.Display.Color)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		return exitFailure
	}
	color.Apply(mode, os.Stdout)

	// ---------------------------------------------------------------
	// Context with signal handling
	// ---------------------------------------------------------------

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()

	// ---------------------------------------------------------------
	// Statistics table and counter source
	// ---------------------------------------------------------------

	cores, err := procstat.DetectCores(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "core-pulse: %v\n", err)
		return exitFailure
	}
	src, err := procstat.NewSource(cores)
	if err != nil {
		fmt.Fprintf(os.Stderr, "core-pulse: %v\n", err)
		return exitFailure
	}
	table, err := pipeline.NewTable(src.Lines(), cfg.Sampling.Window)
	if err != nil {
		fmt.Fprintf(os.Stderr, "core-pulse: %v\n", err)
		return exitFailure
	}
	logger.Debug("pipeline initialised",
		"source", src.Path(),
		"cores", cores,
		"lines", table.Lines(),
		"interval", cfg.SampleInterval().String(),
		"window", table.WindowSize(),
	)

	if tuiMode {
		err = runInteractive(ctx, cancel, src, table, cfg, logger)
	} else {
		err = runTerminal(ctx, src, table, cfg, logger)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "core-pulse: %v\n", err)
		return exitFailure
	}

	if !tuiMode {
		fmt.Println("Bye!")
	}
	return exitOK
}

// applyFlags overrides configuration values with non-empty CLI flags.
func applyFlags(cfg *config.Config, interval string, window int, colorMode string, tuiMode, verbose bool) {
	if interval != "" {
		cfg.Sampling.Interval = interval
	}
	if window > 0 {
		cfg.Sampling.Window = window
	}
	if colorMode != "" {
		cfg.Display.Color = colorMode
	}
	if tuiMode {
		cfg.Display.Mode = config.ModeTUI
	}
	if verbose {
		cfg.Log.Level = "debug"
	}
}

// runTerminal renders frames straight to stdout until ctx is cancelled or
// a worker fails.
func runTerminal(ctx context.Context, src *procstat.Source, table *pipeline.Table, cfg *config.Config, logger *slog.Logger) error {
	sink := frame.NewTerminalSink(os.Stdout, term.IsTerminal(os.Stdout.Fd()))
	p := pipeline.New(src, sink, table, cfg.SampleInterval(), logger)
	return p.Run(ctx)
}

// runInteractive runs the pipeline behind the Bubbletea front end. Quitting
// the program cancels the pipeline; a pipeline failure quits the program.
func runInteractive(ctx context.Context, cancel context.CancelFunc, src *procstat.Source, table *pipeline.Table, cfg *config.Config, logger *slog.Logger) error {
	if !term.IsTerminal(os.Stdout.Fd()) {
		return errors.New("-tui requires a terminal on stdout")
	}

	prog := tea.NewProgram(tui.NewModel(), tea.WithAltScreen())
	p := pipeline.New(src, tui.NewSink(prog), table, cfg.SampleInterval(), logger)

	errc := make(chan error, 1)
	go func() {
		err := p.Run(ctx)
		prog.Quit()
		errc <- err
	}()

	_, progErr := prog.Run()
	cancel()
	runErr := <-errc
	if progErr != nil && !errors.Is(progErr, tea.ErrProgramKilled) && !errors.Is(progErr, tea.ErrInterrupted) {
		return fmt.Errorf("tui: %w", progErr)
	}
	return runErr
}

// discardLogger is used where log output would corrupt the screen.
func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
