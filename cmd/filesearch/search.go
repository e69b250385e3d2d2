package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fenilsonani/filesearch/internal/config"
	"github.com/fenilsonani/filesearch/internal/duplicates"
	"github.com/fenilsonani/filesearch/internal/engine"
	"github.com/fenilsonani/filesearch/internal/model"
	"github.com/fenilsonani/filesearch/internal/reporter"
	"github.com/fenilsonani/filesearch/internal/sorter"
)

var (
	searchFlags specFlags
	saveResult  bool

	dupesFlags specFlags
	dupesBy    []string
	nameMatch  int
	sizeMatch  int
	similar    bool
	dupesFrom  string
	selectOnly bool

	updateSaved bool
)

var searchCmd = &cobra.Command{
	Use:   "search [dir]",
	Short: "Search a directory",
	Long: `Searches dir (default: the working directory) with the given filters.
The traversal is cached, so later searches of dir or any folder beneath it
reuse the snapshot until --fresh is passed.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		dir, err := dirArg(args)
		if err != nil {
			return err
		}
		spec, err := searchFlags.build(cmd.Flags(), a.cfg)
		if err != nil {
			return err
		}

		result, err := run[*model.SearchResult](cmd.Context(), a, "Searching "+dir, engine.SearchJob(dir, spec))
		if err != nil {
			return fmt.Errorf("search failed: %w", err)
		}

		if saveResult {
			path, err := a.searches.Save(config.NewSavedSearch(result))
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "Search saved to: %s\n", path)
		}

		return report(func(r *reporter.Reporter) error { return r.ReportSearch(result) })
	},
}

var dupesCmd = &cobra.Command{
	Use:   "dupes [dir]",
	Short: "Find duplicate files and folders",
	Long: `Searches dir with the given filters, or loads a saved search with --from,
and groups the results by name, size and content.

Use --select to print only the members that are not the first of their group.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}

		criteria, err := buildCriteria(cmd, a.cfg)
		if err != nil {
			return err
		}

		var result *model.SearchResult
		if dupesFrom != "" {
			saved, _, err := resolveSaved(a, dupesFrom)
			if err != nil {
				return err
			}
			if result, err = a.engine.OpenSaved(saved); err != nil {
				return err
			}
		} else {
			dir, err := dirArg(args)
			if err != nil {
				return err
			}
			spec, err := dupesFlags.build(cmd.Flags(), a.cfg)
			if err != nil {
				return err
			}
			result, err = run[*model.SearchResult](cmd.Context(), a, "Searching "+dir, engine.SearchJob(dir, spec))
			if err != nil {
				return fmt.Errorf("search failed: %w", err)
			}
		}

		groups, err := run[*duplicates.Result](cmd.Context(), a, "Finding duplicates", engine.DuplicatesJob(result.Paths, criteria))
		if err != nil {
			return fmt.Errorf("duplicate search failed: %w", err)
		}

		if selectOnly {
			view := a.engine.DuplicatesView(result.Directory, groups)
			for _, p := range view.Selection() {
				fmt.Println(p)
			}
			return nil
		}
		return report(func(r *reporter.Reporter) error { return r.ReportDuplicates(groups) })
	},
}

// buildCriteria maps --by and the match flags onto duplicate criteria.
func buildCriteria(cmd *cobra.Command, cfg *config.Config) (duplicates.Criteria, error) {
	namePercent, sizePercent := nameMatch, sizeMatch
	if similar {
		if !cmd.Flags().Changed("name-match") {
			namePercent = cfg.Duplicates.NamePercent
		}
		if !cmd.Flags().Changed("size-match") {
			sizePercent = cfg.Duplicates.SizePercent
		}
	}

	mode, err := sorter.ParseMode(dupesFlags.sort)
	if err != nil {
		return duplicates.Criteria{}, err
	}

	c := duplicates.Criteria{Sort: mode, Reverse: dupesFlags.reverse}
	for _, by := range dupesBy {
		switch strings.ToLower(strings.TrimSpace(by)) {
		case "name":
			c.Name = matchSetting(namePercent)
		case "size":
			c.Size = matchSetting(sizePercent)
		case "content":
			c.Content = duplicates.Exact()
		default:
			return c, fmt.Errorf("unknown duplicate criterion %q (want name, size or content)", by)
		}
	}
	return c, c.Validate()
}

func matchSetting(percent int) duplicates.ModeSetting {
	if percent >= 100 {
		return duplicates.Exact()
	}
	return duplicates.Fuzzy(percent)
}

var compareCmd = &cobra.Command{
	Use:   "compare <a> <b>",
	Short: "Compare two saved searches",
	Long: `Lists the paths found by only one of two saved searches. Each argument is a
saved search ID, a saved search file, or "latest".`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}

		var results [2]*model.SearchResult
		for i, ref := range args {
			saved, _, err := resolveSaved(a, ref)
			if err != nil {
				return err
			}
			if results[i], err = a.engine.OpenSaved(saved); err != nil {
				return err
			}
		}

		diff, err := run[*engine.CompareResult](cmd.Context(), a, "Comparing", engine.CompareJob(results[0], results[1]))
		if err != nil {
			return fmt.Errorf("compare failed: %w", err)
		}
		return report(func(r *reporter.Reporter) error { return r.ReportCompare(diff) })
	},
}

var reloadCmd = &cobra.Command{
	Use:   "reload <search>",
	Short: "Drop vanished paths from a saved search",
	Long: `Re-checks every path of a saved search, drops those that no longer exist
from the result and from the cache, and prints what is left. Use --update
to write the reloaded result back.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}

		saved, file, err := resolveSaved(a, args[0])
		if err != nil {
			return err
		}
		result, err := a.engine.OpenSaved(saved)
		if err != nil {
			return err
		}

		view := a.engine.SearchView(result)
		removed, err := run[[]string](cmd.Context(), a, "Reloading", engine.ReloadJob(view))
		if err != nil {
			return fmt.Errorf("reload failed: %w", err)
		}
		fmt.Fprintf(os.Stderr, "Removed %d missing paths\n", len(removed))

		if updateSaved && len(removed) > 0 {
			updated := config.NewSavedSearch(view.Search())
			updated.ID, updated.Created = saved.ID, saved.Created
			if file != "" {
				err = config.WriteSavedSearch(file, updated)
			} else {
				_, err = a.searches.Save(updated)
			}
			if err != nil {
				return err
			}
		}

		return report(func(r *reporter.Reporter) error { return r.ReportSearch(view.Search()) })
	},
}

// resolveSaved loads ref as "latest", a file path, or a saved search ID.
// file is set when ref named a file.
func resolveSaved(a *app, ref string) (s *config.SavedSearch, file string, err error) {
	if ref == "latest" {
		s, err = a.searches.GetLatest()
		return s, "", err
	}
	if info, statErr := os.Stat(ref); statErr == nil && !info.IsDir() {
		s, err = config.ReadSavedSearch(ref)
		return s, ref, err
	}
	s, err = a.searches.Load(ref)
	if err != nil {
		return nil, "", fmt.Errorf("no saved search %q: %w", ref, err)
	}
	return s, "", nil
}

func init() {
	searchFlags.register(searchCmd.Flags())
	searchCmd.Flags().BoolVar(&saveResult, "save", false, "save the result for later reload or compare")

	dupesFlags.register(dupesCmd.Flags())
	dupesCmd.Flags().StringSliceVar(&dupesBy, "by", []string{"size", "content"}, "criteria: name, size, content")
	dupesCmd.Flags().IntVar(&nameMatch, "name-match", 100, "name similarity percent, 100 is exact")
	dupesCmd.Flags().IntVar(&sizeMatch, "size-match", 100, "size similarity percent, 100 is exact")
	dupesCmd.Flags().BoolVar(&similar, "similar", false, "use the configured fuzzy percentages")
	dupesCmd.Flags().StringVar(&dupesFrom, "from", "", "group a saved search instead of searching")
	dupesCmd.Flags().BoolVar(&selectOnly, "select", false, "print every member except the first of each group")

	reloadCmd.Flags().BoolVar(&updateSaved, "update", false, "write the reloaded result back")
}
