package filter

import (
	"errors"
	"fmt"
	"os"
	"regexp"

	"github.com/fenilsonani/filesearch/internal/pathutil"
	"github.com/fenilsonani/filesearch/internal/platform"
	"github.com/fenilsonani/filesearch/internal/sorter"
	"github.com/fenilsonani/filesearch/pkg/utils"
)

// ErrValidation is wrapped by every ValidationError.
var ErrValidation = errors.New("invalid search")

// Reason categorizes why a Spec was rejected
type Reason int

const (
	ReasonNameConflict Reason = iota
	ReasonInvalidDirectory
	ReasonSizeBound
	ReasonCreatedRange
	ReasonModifiedRange
	ReasonSystemScope
	ReasonEmptyTypes
	ReasonExcludedScope
	ReasonInvalidRegex
	ReasonInvalidGlob
	ReasonFuzzyPercent
	ReasonInvalidOption
)

// String returns a human-readable reason
func (r Reason) String() string {
	switch r {
	case ReasonNameConflict:
		return "Conflicting name filter"
	case ReasonInvalidDirectory:
		return "Invalid directory"
	case ReasonSizeBound:
		return "Invalid size range"
	case ReasonCreatedRange:
		return "Invalid creation date range"
	case ReasonModifiedRange:
		return "Invalid modification date range"
	case ReasonSystemScope:
		return "Directory is a system location"
	case ReasonEmptyTypes:
		return "No file type selected"
	case ReasonExcludedScope:
		return "Directory is excluded"
	case ReasonInvalidRegex:
		return "Invalid regular expression"
	case ReasonInvalidGlob:
		return "Invalid wildcard pattern"
	case ReasonFuzzyPercent:
		return "Invalid match percentage"
	case ReasonInvalidOption:
		return "Invalid option"
	default:
		return "Unspecified problem"
	}
}

// ValidationError is a user-correctable problem found before a search
// starts.
type ValidationError struct {
	Reason  Reason
	Message string
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Reason, e.Message)
}

// Unwrap makes errors.Is(err, ErrValidation) hold.
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func invalid(reason Reason, format string, args ...any) error {
	return &ValidationError{Reason: reason, Message: fmt.Sprintf(format, args...)}
}

// Validate checks spec against the search root before any work starts.
// The first problem found is returned as a *ValidationError.
func Validate(spec Spec, root string, info *platform.Info, today Date) error {
	if err := validateDirectory(root); err != nil {
		return err
	}
	root, _ = pathutil.Canonical(root)

	if err := validateName(spec); err != nil {
		return err
	}

	if err := validateOptions(spec); err != nil {
		return err
	}

	if err := validateSizes(spec); err != nil {
		return err
	}

	if err := validateRange(spec.Created, today, ReasonCreatedRange, "created"); err != nil {
		return err
	}
	if err := validateRange(spec.Modified, today, ReasonModifiedRange, "modified"); err != nil {
		return err
	}

	if !spec.SystemFiles && info != nil {
		if sysRoot, ok := info.SystemRootFor(root); ok {
			return invalid(ReasonSystemScope,
				"%s is inside the system location %s; enable system files to search it", root, sysRoot)
		}
	}

	if spec.TypeFilter {
		if len(spec.TypeGroups) == 0 && len(ParseCustomExtensions(spec.CustomExtensions)) == 0 {
			return invalid(ReasonEmptyTypes, "select at least one file type or custom extension")
		}
		for _, g := range spec.TypeGroups {
			if !IsGroup(g) {
				return invalid(ReasonInvalidOption, "unknown file type group %q", g)
			}
		}
	}

	for _, dir := range spec.ExcludedDirs {
		excluded, err := pathutil.Canonical(dir)
		if err != nil {
			continue
		}
		if pathutil.IsWithin(excluded, root) {
			return invalid(ReasonExcludedScope, "%s is inside the excluded directory %s", root, excluded)
		}
	}

	return nil
}

func validateDirectory(root string) error {
	if root == "" {
		return invalid(ReasonInvalidDirectory, "no directory given")
	}
	info, err := os.Stat(root)
	if err != nil {
		return invalid(ReasonInvalidDirectory, "%s: %v", root, err)
	}
	if !info.IsDir() {
		return invalid(ReasonInvalidDirectory, "%s is not a directory", root)
	}
	return nil
}

func validateName(spec Spec) error {
	if !spec.NameActive() {
		return nil
	}

	switch spec.NameMode {
	case NameExact, "":
		// A literal file name already fixes the extension and type.
		if !pathutil.HasWildcard(spec.Name) && (spec.Extension != "" || spec.TypeFilter) {
			return invalid(ReasonNameConflict,
				"the exact name %q cannot be combined with extension or type filters; use wildcards such as *%s*",
				spec.Name, spec.Name)
		}
		if err := pathutil.ValidateGlobPattern(spec.Name); err != nil {
			return invalid(ReasonInvalidGlob, "%v", err)
		}
	case NameRegex:
		if _, err := compileRegex(spec); err != nil {
			return invalid(ReasonInvalidRegex, "%v", err)
		}
	case NameFuzzy:
		if spec.FuzzyPercent < 1 || spec.FuzzyPercent > 100 {
			return invalid(ReasonFuzzyPercent, "match percentage must be between 1 and 100, got %d", spec.FuzzyPercent)
		}
		if spec.FuzzyLimit < 0 {
			return invalid(ReasonInvalidOption, "fuzzy limit must be >= 0")
		}
	case NameContains, NameBegins, NameEnds, NameNotContains:
	default:
		return invalid(ReasonInvalidOption, "unknown name mode %q", spec.NameMode)
	}
	return nil
}

func validateOptions(spec Spec) error {
	switch spec.Kind {
	case KindBoth, KindFiles, KindFolders, "":
	default:
		return invalid(ReasonInvalidOption, "unknown kind %q", spec.Kind)
	}
	if _, err := sorter.ParseMode(string(spec.Sort)); err != nil {
		return invalid(ReasonInvalidOption, "%v", err)
	}
	if spec.MaxDepth < 0 {
		return invalid(ReasonInvalidOption, "max depth must be >= 0")
	}
	return nil
}

func validateSizes(spec Spec) error {
	var lo, hi int64 = -1, -1
	var err error

	if spec.SizeMin != "" {
		if lo, err = utils.ParseSize(spec.SizeMin); err != nil {
			return invalid(ReasonSizeBound, "minimum size: %v", err)
		}
	}
	if spec.SizeMax != "" {
		if hi, err = utils.ParseSize(spec.SizeMax); err != nil {
			return invalid(ReasonSizeBound, "maximum size: %v", err)
		}
	}
	if lo >= 0 && hi >= 0 && lo >= hi {
		return invalid(ReasonSizeBound, "minimum size %s must be smaller than maximum size %s", spec.SizeMin, spec.SizeMax)
	}
	return nil
}

func validateRange(r DateRange, today Date, reason Reason, label string) error {
	if !r.Active(today) {
		return nil
	}
	from, to := r.bounds(today)
	if !from.Before(to) {
		return invalid(reason, "%s from %s must be before %s", label, from, to)
	}
	return nil
}

func compileRegex(spec Spec) (*regexp.Regexp, error) {
	pattern := spec.Name
	if !spec.CaseSensitive {
		pattern = "(?i)" + pattern
	}
	return regexp.Compile(pattern)
}
