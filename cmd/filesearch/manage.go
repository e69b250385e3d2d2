package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/fenilsonani/filesearch/internal/config"
	"github.com/fenilsonani/filesearch/internal/reporter"
	"github.com/fenilsonani/filesearch/pkg/utils"
)

var (
	cleanDays  int
	pruneAge   time.Duration
	presetSpec specFlags
)

var searchesCmd = &cobra.Command{
	Use:   "searches",
	Short: "Manage saved searches",
}

var searchesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved searches, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		searches, err := a.searches.List()
		if err != nil {
			return err
		}
		for _, s := range searches {
			fmt.Printf("%s  %s  %s results  %s\n",
				s.ID, s.Created.Format("2006-01-02 15:04"), utils.FormatCount(len(s.Paths)), s.Directory)
		}
		if len(searches) == 0 {
			fmt.Println("No saved searches.")
		}
		return nil
	},
}

var searchesShowCmd = &cobra.Command{
	Use:   "show <search>",
	Short: "Print a saved search",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		saved, _, err := resolveSaved(a, args[0])
		if err != nil {
			return err
		}
		result, err := a.engine.OpenSaved(saved)
		if err != nil {
			return err
		}
		return report(func(r *reporter.Reporter) error { return r.ReportSearch(result) })
	},
}

var searchesDeleteCmd = &cobra.Command{
	Use:   "delete <id>...",
	Short: "Delete saved searches",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		for _, id := range args {
			if err := a.searches.Delete(id); err != nil {
				return err
			}
		}
		return nil
	},
}

var searchesCleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Delete saved searches older than --days",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		removed, err := a.searches.CleanOld(cleanDays)
		if err != nil {
			return err
		}
		fmt.Printf("Removed %d saved searches\n", removed)
		return nil
	},
}

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage cached directory snapshots",
}

var cacheListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cached directories",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		metas, err := a.store.Keys()
		if err != nil {
			return err
		}
		return report(func(r *reporter.Reporter) error { return r.ReportCaches(metas) })
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every cached snapshot",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		if err := a.store.ClearAll(); err != nil {
			return fmt.Errorf("failed to clear cache: %w", err)
		}
		fmt.Println("Cache cleared")
		return nil
	},
}

var cachePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove snapshots older than --older-than or the configured max age",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		age := a.cfg.Cache.MaxAge
		if cmd.Flags().Changed("older-than") {
			age = pruneAge
		}
		if age <= 0 {
			return fmt.Errorf("no max age configured, pass --older-than")
		}
		removed, err := a.store.Prune(age)
		if err != nil {
			return err
		}
		fmt.Printf("Removed %d cached snapshots\n", removed)
		return nil
	},
}

var cacheInvalidateCmd = &cobra.Command{
	Use:   "invalidate <dir> <path>...",
	Short: "Drop moved or deleted paths from the cache of dir",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		abs := make([]string, 0, len(args))
		for _, p := range args {
			full, err := filepath.Abs(p)
			if err != nil {
				return err
			}
			abs = append(abs, full)
		}
		return a.engine.NotifyRemoved(abs[0], abs[1:]...)
	},
}

var presetCmd = &cobra.Command{
	Use:   "preset",
	Short: "Manage filter presets",
}

var presetSaveCmd = &cobra.Command{
	Use:   "save <name>",
	Short: "Save the given filter flags as a preset",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		spec, err := presetSpec.build(cmd.Flags(), cfg)
		if err != nil {
			return err
		}
		dir, err := cfg.PresetsDir()
		if err != nil {
			return err
		}
		path := config.PresetPath(dir, args[0])
		if err := config.SavePreset(path, spec); err != nil {
			return err
		}
		fmt.Printf("Preset saved to: %s\n", path)
		return nil
	},
}

var presetListCmd = &cobra.Command{
	Use:   "list",
	Short: "List presets",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		dir, err := cfg.PresetsDir()
		if err != nil {
			return err
		}
		names, err := config.ListPresets(dir)
		if err != nil {
			return err
		}
		for _, name := range names {
			fmt.Println(name)
		}
		return nil
	},
}

var presetShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Print a preset",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		dir, err := cfg.PresetsDir()
		if err != nil {
			return err
		}
		spec, err := config.LoadPreset(config.PresetPath(dir, args[0]))
		if err != nil {
			return err
		}
		encoder := yaml.NewEncoder(os.Stdout)
		defer encoder.Close()
		return encoder.Encode(spec)
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Display current configuration",
	Long:  `Shows the config file in use and the effective configuration.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfgPath := configPath
		if cfgPath == "" {
			var err error
			if cfgPath, err = config.GetConfigPath(); err != nil {
				return err
			}
		}

		fmt.Printf("Config file: %s\n", cfgPath)
		if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
			fmt.Println("Config file does not exist. Using default configuration.")
			fmt.Println("Run `filesearch config init` to create one.")
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		fmt.Println()
		encoder := yaml.NewEncoder(os.Stdout)
		defer encoder.Close()
		return encoder.Encode(cfg)
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default config file if none exists",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := config.EnsureConfigExists()
		if err != nil {
			return err
		}
		fmt.Printf("Config file: %s\n", path)
		return nil
	},
}

var configExampleCmd = &cobra.Command{
	Use:   "example",
	Short: "Print an annotated example config",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Print(config.GetExampleConfig())
	},
}

func init() {
	searchesCleanCmd.Flags().IntVar(&cleanDays, "days", 30, "age in days")
	searchesCmd.AddCommand(searchesListCmd, searchesShowCmd, searchesDeleteCmd, searchesCleanCmd)

	cachePruneCmd.Flags().DurationVar(&pruneAge, "older-than", 0, "maximum snapshot age, e.g. 72h")
	cacheCmd.AddCommand(cacheListCmd, cacheClearCmd, cachePruneCmd, cacheInvalidateCmd)

	presetSpec.register(presetSaveCmd.Flags())
	presetCmd.AddCommand(presetSaveCmd, presetListCmd, presetShowCmd)

	configCmd.AddCommand(configInitCmd, configExampleCmd)
}
