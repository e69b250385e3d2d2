package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fenilsonani/filesearch/internal/cache"
	"github.com/fenilsonani/filesearch/internal/config"
	"github.com/fenilsonani/filesearch/internal/duplicates"
	"github.com/fenilsonani/filesearch/internal/engine"
	"github.com/fenilsonani/filesearch/internal/logger"
	"github.com/fenilsonani/filesearch/internal/platform"
	"github.com/fenilsonani/filesearch/internal/reporter"
	"github.com/fenilsonani/filesearch/internal/ui"
)

var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

var (
	configPath string
	verbose    bool
	outputFmt  string
	outputFile string
	noProgress bool
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	_ = logger.Sync()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "filesearch",
	Short: "Desktop file search with cached traversal",
	Long: `filesearch finds files and folders by name, type, date, size and content,
reusing cached directory snapshots so repeated searches of the same tree are fast.
It can also group duplicates and compare two saved searches.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildTime),
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVarP(&outputFmt, "output", "o", "table", "output format (table, summary, plain, json, yaml)")
	rootCmd.PersistentFlags().StringVar(&outputFile, "file", "", "save report to file")
	rootCmd.PersistentFlags().BoolVar(&noProgress, "no-progress", false, "do not show progress")

	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(dupesCmd)
	rootCmd.AddCommand(compareCmd)
	rootCmd.AddCommand(reloadCmd)
	rootCmd.AddCommand(searchesCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(presetCmd)
	rootCmd.AddCommand(configCmd)
}

func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.Load(configPath)
	}

	cfgPath, err := config.GetConfigPath()
	if err != nil {
		return nil, err
	}

	return config.Load(cfgPath)
}

// app is everything a command needs, built from the loaded config.
type app struct {
	cfg      *config.Config
	store    *cache.Store
	engine   *engine.Engine
	coord    *engine.Coordinator
	searches *config.SearchStore
	log      *zap.Logger
}

func newApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := logger.Init(logger.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		OutputPath: cfg.Logging.OutputPath,
	}); err != nil {
		return nil, fmt.Errorf("failed to init logger: %w", err)
	}
	if verbose {
		logger.SetLevel("debug")
	}

	platformInfo, err := platform.GetInfo()
	if err != nil {
		return nil, fmt.Errorf("failed to get platform info: %w", err)
	}

	cacheDir, err := cfg.CacheDir()
	if err != nil {
		return nil, err
	}
	store, err := cache.New(cacheDir, cache.WithLogger(logger.Named("cache")))
	if err != nil {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}

	searchesDir, err := cfg.SearchesDir()
	if err != nil {
		return nil, err
	}
	searches, err := config.NewSearchStore(searchesDir)
	if err != nil {
		return nil, err
	}

	hashBuffer, err := cfg.HashBufferBytes()
	if err != nil {
		return nil, err
	}

	e := engine.New(store, platformInfo,
		engine.WithDuplicateOptions(
			duplicates.WithWorkers(cfg.Search.Workers),
			duplicates.WithHashBuffer(hashBuffer),
			duplicates.WithAlgorithms(cfg.Algorithms()...),
		),
	)

	return &app{
		cfg:      cfg,
		store:    store,
		engine:   e,
		coord:    engine.NewCoordinator(e, cfg.Search.Workers),
		searches: searches,
		log:      logger.Named("cli"),
	}, nil
}

// run submits job and follows its progress on stderr until it finishes.
func run[T any](ctx context.Context, a *app, title string, job engine.Job) (T, error) {
	s := a.coord.Submit(ctx, job)
	if noProgress {
		<-s.Done()
	} else if err := ui.Follow(title, s, os.Stderr, a.log); err != nil {
		var zero T
		return zero, err
	}
	return engine.Await[T](s)
}

func newReporter() (*reporter.Reporter, *os.File, error) {
	format, err := reporter.ParseFormat(outputFmt)
	if err != nil {
		return nil, nil, err
	}
	if outputFile == "" {
		return reporter.New(os.Stdout, format), nil, nil
	}
	f, err := os.Create(outputFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create report file: %w", err)
	}
	return reporter.New(f, format), f, nil
}

// report writes one report to stdout or --file.
func report(write func(r *reporter.Reporter) error) error {
	r, f, err := newReporter()
	if err != nil {
		return err
	}
	if f != nil {
		defer f.Close()
	}
	if err := write(r); err != nil {
		return fmt.Errorf("failed to generate report: %w", err)
	}
	if f != nil {
		fmt.Fprintf(os.Stderr, "Report saved to: %s\n", outputFile)
	}
	return nil
}
