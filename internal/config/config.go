// Package config loads Harrier's TOML configuration: a
// `[tool.harrier]` table in pyproject.toml or a standalone
// harrier.toml, discovered by walking upward from each input path.
// Later (more specific) files override earlier ones, except for
// list-typed options, whose higher-precedence entries are appended so
// they can shadow earlier matches.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/harrier-dev/harrier/errors"
	"github.com/harrier-dev/harrier/internal/core/lint"
)

// Options is the user-settable option surface, one table per file.
type Options struct {
	Select       []string          `toml:"select"`
	Ignore       []string          `toml:"ignore"`
	ExtendSelect []string          `toml:"extend-select"`
	LineLength   int               `toml:"line-length"`
	TargetVersion string           `toml:"target-version"`
	OutputFormat string            `toml:"output-format"`
	Severity     map[string]string `toml:"severity"`
	Overrides    []Override        `toml:"overrides"`
}

// Override narrows options to paths matching a glob pattern. When
// multiple overrides match a file they combine in declaration order;
// later overrides win.
type Override struct {
	Files   []string `toml:"files"`
	Options Options  `toml:"options"`
}

// Settings is the merged configuration for one run.
type Settings struct {
	Options

	// Root is the directory the highest-precedence file was found in.
	Root string

	// Revision distinguishes settings states for memoized per-file
	// resolution; it bumps every time settings are reloaded.
	Revision int

	selMu    sync.Mutex
	selCache map[string]*lint.Selection
	selRev   int
}

// pyprojectFile mirrors the pyproject.toml nesting down to the tool
// table.
type pyprojectFile struct {
	Tool struct {
		Harrier *Options `toml:"harrier"`
	} `toml:"tool"`
}

const standaloneName = "harrier.toml"

// Discover walks upward from dir collecting configuration files,
// outermost first, so callers can merge with nearer files winning.
func Discover(dir string) []string {
	var found []string
	dir, err := filepath.Abs(dir)
	if err != nil {
		return nil
	}
	for {
		if st, err := os.Stat(filepath.Join(dir, standaloneName)); err == nil && !st.IsDir() {
			found = append(found, filepath.Join(dir, standaloneName))
		} else if st, err := os.Stat(filepath.Join(dir, "pyproject.toml")); err == nil && !st.IsDir() {
			found = append(found, filepath.Join(dir, "pyproject.toml"))
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	// Reverse: the walk found nearest-first, merging wants
	// outermost-first.
	for i, j := 0, len(found)-1; i < j; i, j = i+1, j-1 {
		found[i], found[j] = found[j], found[i]
	}
	return found
}

// Load reads and merges the given configuration files in order. A
// file that fails to parse or carries an unknown key is an input
// error: fatal to the invocation, never a diagnostic.
func Load(paths ...string) (*Settings, error) {
	s := &Settings{}
	for _, p := range paths {
		opts, err := loadOne(p)
		if err != nil {
			return nil, err
		}
		if opts == nil {
			continue
		}
		s.merge(opts)
		s.Root = filepath.Dir(p)
	}
	return s, nil
}

// LoadInline parses an inline TOML document (--config '...').
func LoadInline(text string) (*Settings, error) {
	var opts Options
	dec := toml.NewDecoder(strings.NewReader(text))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&opts); err != nil {
		return nil, fmt.Errorf("invalid inline configuration: %w", err)
	}
	s := &Settings{}
	s.merge(&opts)
	return s, nil
}

func loadOne(path string) (*Options, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Promote(err, "reading configuration")
	}
	if filepath.Base(path) == "pyproject.toml" {
		var py pyprojectFile
		// pyproject.toml hosts many tools; only our table is
		// validated strictly.
		if err := toml.Unmarshal(content, &py); err != nil {
			return nil, decodeError(path, err)
		}
		return py.Tool.Harrier, nil
	}
	var opts Options
	dec := toml.NewDecoder(bytes.NewReader(content))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&opts); err != nil {
		return nil, decodeError(path, err)
	}
	return &opts, nil
}

// decodeError attaches the file position go-toml reports to the
// message, so a malformed file prints a precise location.
func decodeError(path string, err error) error {
	var derr *toml.DecodeError
	if errors.As(err, &derr) {
		row, col := derr.Position()
		return fmt.Errorf("%s:%d:%d: %s", path, row, col, derr.Error())
	}
	var serr *toml.StrictMissingError
	if errors.As(err, &serr) {
		return fmt.Errorf("%s: unknown configuration key:\n%s", path, serr.String())
	}
	return fmt.Errorf("%s: %w", path, err)
}

// merge folds higher-precedence options into s: scalars replace,
// lists append (so later entries shadow by position), maps overlay.
func (s *Settings) merge(o *Options) {
	if len(o.Select) > 0 {
		s.Select = append(s.Select, o.Select...)
	}
	if len(o.Ignore) > 0 {
		s.Ignore = append(s.Ignore, o.Ignore...)
	}
	if len(o.ExtendSelect) > 0 {
		s.ExtendSelect = append(s.ExtendSelect, o.ExtendSelect...)
	}
	if o.LineLength != 0 {
		s.LineLength = o.LineLength
	}
	if o.TargetVersion != "" {
		s.TargetVersion = o.TargetVersion
	}
	if o.OutputFormat != "" {
		s.OutputFormat = o.OutputFormat
	}
	if len(o.Severity) > 0 {
		if s.Severity == nil {
			s.Severity = make(map[string]string)
		}
		for k, v := range o.Severity {
			s.Severity[k] = v
		}
	}
	s.Overrides = append(s.Overrides, o.Overrides...)
}
