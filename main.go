package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"github.com/entro314-labs/spacemap/internal/config"
	"github.com/entro314-labs/spacemap/internal/layout"
	"github.com/entro314-labs/spacemap/internal/logging"
	"github.com/entro314-labs/spacemap/internal/version"
)

type cliFlags struct {
	mode          string
	aspect        float64
	grid          int
	workers       int
	depth         int
	configPath    string
	allocated     bool
	oneFileSystem bool
	noAggregate   bool
	skip          []string
	logLevel      string
	logFile       string
}

var flags cliFlags

var rootCmd = &cobra.Command{
	Use:   "spacemap [PATH]",
	Short: "Interactive treemap of disk usage",
	Long: `spacemap crawls a directory tree with a pool of workers and draws it as a
squarified treemap while the crawl is still running.

Click a directory to open it, double-click to open it one level deeper,
right-click to zoom into it and backspace to zoom out again.`,
	Args:    cobra.MaximumNArgs(1),
	Version: version.Full(),
	RunE:    runTUI,
}

func init() {
	flags.register(rootCmd)
	rootCmd.AddCommand(scanCmd, versionCmd)
}

// register binds the shared flags as persistent flags of cmd.
func (f *cliFlags) register(cmd *cobra.Command) {
	fl := cmd.PersistentFlags()
	fl.StringVar(&f.mode, "mode", "", "Layout mode: grid or gutter")
	fl.Float64Var(&f.aspect, "aspect", 0, "Largest accepted tile aspect ratio (> 1)")
	fl.IntVar(&f.grid, "grid", 0, "Grid cells along the long side in grid mode")
	fl.IntVarP(&f.workers, "workers", "w", 0, "Crawler workers (0 = 3 per CPU)")
	fl.IntVar(&f.depth, "depth", 0, "Maximum drill depth below the zoom root")
	fl.StringVarP(&f.configPath, "config", "c", "", "Path to a JSON config file")
	fl.BoolVar(&f.allocated, "allocated", false, "Count allocated blocks instead of apparent size")
	fl.BoolVarP(&f.oneFileSystem, "one-file-system", "x", false, "Do not cross into other file systems")
	fl.BoolVar(&f.noAggregate, "no-aggregate", false, "Draw every item, however small")
	fl.StringSliceVar(&f.skip, "skip", nil, "Directory names to skip (repeatable)")
	fl.StringVar(&f.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	fl.StringVar(&f.logFile, "log-file", "", "Write logs to this file")
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintln(cmd.OutOrStdout(), "spacemap", version.Full())
	},
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := fang.Execute(ctx, rootCmd, fang.WithVersion(version.Full())); err != nil {
		os.Exit(1)
	}
}

func rootArg(args []string) (string, error) {
	root := "."
	if len(args) > 0 {
		root = args[0]
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolve path: %w", err)
	}
	return abs, nil
}

// resolveConfig loads defaults, the config file and the environment, then
// applies the flags the user actually set.
func resolveConfig(cmd *cobra.Command, root string) (config.Config, error) {
	cfg, err := config.Resolve(root, flags.configPath)
	if err != nil {
		return config.Config{}, err
	}
	if err := flags.apply(cmd, &cfg); err != nil {
		return config.Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func (f cliFlags) apply(cmd *cobra.Command, cfg *config.Config) error {
	set := cmd.Flags().Changed
	if set("mode") {
		mode, err := layout.ParseMode(f.mode)
		if err != nil {
			return err
		}
		cfg.Layout.Mode = mode
	}
	if set("aspect") {
		cfg.Layout.AspectRatio = f.aspect
	}
	if set("grid") {
		cfg.Layout.GridSize = f.grid
	}
	if set("workers") {
		cfg.Workers = f.workers
	}
	if set("depth") {
		cfg.Nav.MaxDepth = f.depth
	}
	if set("allocated") {
		cfg.Scan.Allocated = f.allocated
	}
	if set("one-file-system") {
		cfg.Scan.OneFileSystem = f.oneFileSystem
	}
	if set("no-aggregate") {
		cfg.Aggregate.Enabled = !f.noAggregate
	}
	if set("skip") {
		cfg.MergeSkip(f.skip...)
	}
	if set("log-level") {
		cfg.Log.Level = f.logLevel
	}
	if set("log-file") {
		cfg.Log.OutputPath = f.logFile
	}
	return nil
}

func runTUI(cmd *cobra.Command, args []string) error {
	root, err := rootArg(args)
	if err != nil {
		return err
	}
	cfg, err := resolveConfig(cmd, root)
	if err != nil {
		return err
	}

	// The alternate screen owns the terminal; logs only go to a file.
	switch cfg.Log.OutputPath {
	case "", "stdout", "stderr":
		cfg.Log.OutputPath = "off"
	}
	if err := logging.Init(cfg.Log); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer logging.Sync()

	m := newModel(cmd.Context(), root, cfg)
	if _, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion()).Run(); err != nil {
		return fmt.Errorf("run program: %w", err)
	}
	return nil
}
