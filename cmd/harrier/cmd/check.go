package cmd

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/harrier-dev/harrier/internal/config"
	"github.com/harrier-dev/harrier/internal/core/db"
	"github.com/harrier-dev/harrier/internal/core/diagnostic"
	"github.com/harrier-dev/harrier/internal/core/lint"
	"github.com/harrier-dev/harrier/internal/core/source"
	"github.com/harrier-dev/harrier/internal/rules"
	"github.com/harrier-dev/harrier/token"
)

type checkFlags struct {
	selectCodes    []string
	ignoreCodes    []string
	extendSelect   []string
	fix            bool
	unsafeFixes    bool
	outputFormat   string
	configPath     string
	lineLength     int
	targetVersion  string
	isolated       bool
	noCache        bool
	watch          bool
	errorOnWarning bool
	showSettings   bool
}

func newCheckCmd() *cobra.Command {
	flags := &checkFlags{}
	cmd := &cobra.Command{
		Use:   "check <paths>...",
		Short: "run the lint and type engines over Python files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, flags, args)
		},
	}

	f := cmd.Flags()
	addSelectionFlags(f, flags)
	addFixFlags(f, flags)
	addRunFlags(f, flags)
	return cmd
}

func runCheck(cmd *cobra.Command, flags *checkFlags, args []string) error {
	settings, err := loadSettings(flags, args)
	if err != nil {
		return err
	}

	if flags.showSettings {
		printSettings(cmd, settings)
		return nil
	}

	files, err := collectPythonFiles(args)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no Python files found under %s", strings.Join(args, ", "))
	}

	format, ok := diagnostic.ParseFormat(firstNonEmpty(flags.outputFormat, settings.OutputFormat))
	if !ok {
		return fmt.Errorf("unknown output format %q", flags.outputFormat)
	}

	loader := source.NewOSLoader()
	reg := source.NewRegistry(map[source.Kind]source.Loader{
		source.KindSystem:   loader,
		source.KindVendored: source.NewVendoredLoader(),
	})
	database := db.New(reg)
	ruleReg := rules.NewRegistry()

	run := func() (int, error) {
		diags, err := checkFiles(database, ruleReg, settings, files, flags)
		if err != nil {
			return 2, err
		}
		if err := diagnostic.Render(cmd.OutOrStdout(), format, diags, token.UTF8); err != nil {
			return 2, err
		}
		return diagnostic.ExitCode(diags, flags.errorOnWarning), nil
	}

	code, err := run()
	if err != nil {
		return err
	}

	if flags.watch {
		return watchLoop(cmd, loader, reg, files, run)
	}
	if code != 0 {
		return exitCodeError(code)
	}
	return nil
}

func loadSettings(flags *checkFlags, args []string) (*config.Settings, error) {
	var settings *config.Settings
	switch {
	case flags.isolated:
		settings = &config.Settings{}
	case flags.configPath != "":
		if strings.ContainsAny(flags.configPath, "=\n") {
			s, err := config.LoadInline(flags.configPath)
			if err != nil {
				return nil, err
			}
			settings = s
		} else {
			s, err := config.Load(flags.configPath)
			if err != nil {
				return nil, err
			}
			settings = s
		}
	default:
		start := args[0]
		if st, err := os.Stat(start); err == nil && !st.IsDir() {
			start = filepath.Dir(start)
		}
		s, err := config.Load(config.Discover(start)...)
		if err != nil {
			return nil, err
		}
		settings = s
	}

	// Command-line selections append after file configuration, so
	// they shadow it the same way a nearer file would.
	settings.Select = append(settings.Select, flags.selectCodes...)
	settings.Ignore = append(settings.Ignore, flags.ignoreCodes...)
	settings.ExtendSelect = append(settings.ExtendSelect, flags.extendSelect...)
	if flags.lineLength != 0 {
		settings.LineLength = flags.lineLength
	}
	if flags.targetVersion != "" {
		settings.TargetVersion = flags.targetVersion
	}
	return settings, nil
}

// checkKey keys the memoized per-file lint+type run, so watch-mode
// re-runs only recompute files whose inputs changed.
type checkKey struct {
	file *source.File
}

func checkFiles(database *db.Database, ruleReg *lint.Registry, settings *config.Settings, paths []string, flags *checkFlags) ([]diagnostic.Diagnostic, error) {
	fileQuery := &db.Query{
		Name: "cli.checkFile",
		Compute: func(ctx *db.Context, key any) any {
			k := key.(checkKey)
			sel := settings.ForFile(k.file.Path().String())
			return lint.Run(ctx, k.file, ruleReg, sel)
		},
	}

	files := make([]*source.File, len(paths))
	for i, p := range paths {
		files[i] = database.Sources.File(p, source.KindSystem)
		if flags.noCache {
			database.Sources.Touch(files[i], mustRead(p))
		}
	}

	// One driver query fans the per-file checks out across workers.
	// Each file's result stays independently memoized, so a watch-mode
	// re-run only recomputes files whose inputs changed.
	driver := &db.Query{
		Name: "cli.check",
		Compute: func(ctx *db.Context, key any) any {
			results := make([][]diagnostic.Diagnostic, len(files))
			db.Parallel(ctx, len(files), runtime.NumCPU(), func(sub *db.Context, i int) {
				results[i] = db.GetTyped[[]diagnostic.Diagnostic](sub, fileQuery, checkKey{files[i]})
			})
			return results
		},
	}
	v, err := database.Execute(driver, len(paths))
	if err != nil {
		return nil, err
	}
	results, _ := v.([][]diagnostic.Diagnostic)

	pipeline := diagnostic.Pipeline{}
	for i, p := range paths {
		var diags []diagnostic.Diagnostic
		if i < len(results) {
			// Copy before resolving severities: results[i] is the
			// memoized query value and must stay untouched.
			diags = append(diags, results[i]...)
		}
		// Severity overrides resolve against each file's own settings
		// before the diagnostics join the shared pipeline.
		sel := settings.ForFile(p)
		for j := range diags {
			diags[j].Severity = sel.Severity.Resolve(diags[j].Code, diags[j].Severity)
		}

		if flags.fix {
			diags = applyFixesToFile(database, files[i], diags, flags.unsafeFixes)
		}
		pipeline.AddAll(diags)
	}
	return pipeline.Finish(), nil
}

func mustRead(path string) []byte {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	return content
}

// applyFixesToFile composes the diagnostics' fixes, rewrites the file
// on disk, and feeds the new content back through Touch so later
// queries see it.
func applyFixesToFile(database *db.Database, file *source.File, diags []diagnostic.Diagnostic, unsafe bool) []diagnostic.Diagnostic {
	text := database.Sources.Read(file)
	result := lint.ApplyFixes(text.Content, diags, unsafe)
	if len(result.Applied) == 0 {
		return diags
	}
	if err := os.WriteFile(file.Path().String(), result.Source, 0o644); err == nil {
		database.Sources.Touch(file, result.Source)
	}
	return diags
}

func collectPythonFiles(args []string) ([]string, error) {
	var files []string
	for _, arg := range args {
		st, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", arg, err)
		}
		if !st.IsDir() {
			files = append(files, arg)
			continue
		}
		err = filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				name := d.Name()
				if name != arg && (strings.HasPrefix(name, ".") || name == "__pycache__") {
					return filepath.SkipDir
				}
				return nil
			}
			if strings.HasSuffix(path, ".py") || strings.HasSuffix(path, ".pyi") {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	sort.Strings(files)
	return files, nil
}

// watchLoop re-runs the check whenever a watched file's content
// actually changes; mtime-only events are filtered by the loader's
// hash comparison inside Sync.
func watchLoop(cmd *cobra.Command, loader *source.OSLoader, reg *source.Registry, files []string, run func() (int, error)) error {
	changed := make(chan string, 16)
	stop := make(chan struct{})
	defer close(stop)

	if err := loader.Watch(files, func(path string) { changed <- path }, stop); err != nil {
		return err
	}
	fmt.Fprintln(cmd.ErrOrStderr(), "watching for changes...")

	byPath := make(map[string]*source.File, len(files))
	for _, p := range files {
		byPath[p] = reg.File(p, source.KindSystem)
	}
	for path := range changed {
		f, ok := byPath[path]
		if !ok {
			continue
		}
		if !reg.Sync(f) {
			continue
		}
		if _, err := run(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "harrier: %v\n", err)
		}
	}
	return nil
}

// printSettings dumps the resolved configuration, for debugging which
// files and overrides actually took effect.
func printSettings(cmd *cobra.Command, s *config.Settings) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "root = %q\n", s.Root)
	fmt.Fprintf(out, "select = %v\n", s.Select)
	fmt.Fprintf(out, "ignore = %v\n", s.Ignore)
	fmt.Fprintf(out, "extend-select = %v\n", s.ExtendSelect)
	fmt.Fprintf(out, "line-length = %d\n", s.LineLength)
	fmt.Fprintf(out, "target-version = %q\n", s.TargetVersion)
	fmt.Fprintf(out, "output-format = %q\n", s.OutputFormat)
	fmt.Fprintf(out, "overrides = %d\n", len(s.Overrides))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
