package main

import (
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"rove/internal/config"
	"rove/internal/engine"
	"rove/internal/fsops"
	"rove/internal/log"
	"rove/internal/task"
	"rove/internal/tui"
	"rove/internal/watch"
)

var (
	version = "dev"
)

// Entry point for the application
func main() {
	var (
		configPath string
		debug      bool
		showHidden bool
	)

	rootCmd := &cobra.Command{
		Use:     "rove [directory]",
		Short:   "A keyboard-driven terminal file manager",
		Long:    `Rove is a modal terminal file manager with vim-style keys, background filesystem tasks, and live directory watching.`,
		Version: version,
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfiguration(configPath)
			if err != nil {
				fmt.Printf("Warning: Could not load config: %v. Using default settings.\n", err)
				cfg = config.New()
			}
			if cmd.Flags().Changed("debug") {
				cfg.General.Debug = debug
			}
			if cmd.Flags().Changed("hidden") {
				cfg.General.ShowHidden = showHidden
			}

			startDir, err := resolveStartDir(cfg, args)
			if err != nil {
				return err
			}
			return run(cfg, startDir)
		},
	}

	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to the configuration file")
	rootCmd.Flags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rootCmd.Flags().BoolVar(&showHidden, "hidden", false, "Show hidden files")

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func loadConfiguration(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadConfigFile(path)
	}
	return config.LoadConfig()
}

func resolveStartDir(cfg *config.Config, args []string) (string, error) {
	dir := cfg.General.StartDir
	if len(args) > 0 {
		dir = args[0]
	}
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("error getting current directory: %w", err)
		}
		dir = wd
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("error resolving directory %s: %w", dir, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("error accessing directory: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%s is not a directory", abs)
	}
	return abs, nil
}

func run(cfg *config.Config, startDir string) error {
	log.SetDebug(cfg.General.Debug)
	if sink, err := log.OpenFileSink(); err != nil {
		fmt.Printf("Warning: Could not open log file: %v\n", err)
	} else {
		defer sink.Close()
	}
	log.LogWithFields(log.F("directory", startDir), log.F("version", version)).
		Info("Starting rove")

	ignore, err := cfg.CompileIgnore()
	if err != nil {
		return err
	}

	machine := engine.NewMachine(startDir, engine.Options{
		Aliases: cfg.Aliases,
		Fuzzy:   cfg.Search.Fuzzy,
		List: fsops.ListOptions{
			ShowHidden: cfg.General.ShowHidden,
			Ignore:     ignore,
			Sort:       fsops.ParseSortMode(cfg.General.Sort),
		},
	})

	timeoutTicks := 0
	if cfg.Timing.TickIntervalMs > 0 {
		timeoutTicks = cfg.Timing.SequenceTimeoutMs / cfg.Timing.TickIntervalMs
	}
	interp := engine.NewInterpreter(cfg.Keymap, timeoutTicks)
	queue := task.NewQueue(cfg.DebounceWindow(), cfg.Timing.WorkerCount)

	driver := &deferredDriver{}
	dispatcher := engine.NewDispatcher(machine, interp, queue, driver, nil)

	watcher, err := watch.New(dispatcher)
	if err != nil {
		log.Warnf("Directory watching unavailable: %v", err)
	} else {
		dispatcher.SetWatcher(watcher)
		if err := watcher.Start(); err != nil {
			log.Warnf("Could not start watcher: %v", err)
		}
		defer watcher.Stop()
	}

	model := tui.New(dispatcher, cfg.TickInterval())
	program := tea.NewProgram(model, tea.WithAltScreen())
	driver.set(tui.NewDriver(program))

	go dispatcher.Run()
	defer dispatcher.Stop()

	if _, err := program.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}
	return nil
}

// deferredDriver lets the dispatcher be constructed before the bubbletea
// program exists. Frames published before set() are dropped; the first
// tick triggers a fresh one.
type deferredDriver struct {
	inner engine.Notifier
}

func (d *deferredDriver) set(n engine.Notifier) {
	d.inner = n
}

func (d *deferredDriver) Notify(f engine.Frame) {
	if d.inner != nil {
		d.inner.Notify(f)
	}
}

func (d *deferredDriver) RunExternal(e engine.ExternalEffect) {
	if d.inner != nil {
		d.inner.RunExternal(e)
	}
}
