package config

import (
	"path/filepath"
	"strings"

	"github.com/harrier-dev/harrier/internal/core/diagnostic"
	"github.com/harrier-dev/harrier/internal/core/lint"
)

// ForFile resolves the effective rule selection for one file path:
// the base options combined with every matching override in
// declaration order, later overrides winning. Results are memoized
// per (path, settings revision); bumping Revision drops the cache.
func (s *Settings) ForFile(path string) *lint.Selection {
	s.selMu.Lock()
	defer s.selMu.Unlock()
	if s.selCache == nil || s.selRev != s.Revision {
		s.selCache = make(map[string]*lint.Selection)
		s.selRev = s.Revision
	}
	if sel, ok := s.selCache[path]; ok {
		return sel
	}
	sel := s.resolve(path)
	s.selCache[path] = sel
	return sel
}

func (s *Settings) resolve(path string) *lint.Selection {
	effective := Options{
		Select:       s.Select,
		Ignore:       s.Ignore,
		ExtendSelect: s.ExtendSelect,
		LineLength:   s.LineLength,
		Severity:     s.Severity,
	}
	for _, ov := range s.Overrides {
		if !ov.matches(path, s.Root) {
			continue
		}
		o := ov.Options
		if len(o.Select) > 0 {
			effective.Select = append(effective.Select, o.Select...)
		}
		if len(o.Ignore) > 0 {
			effective.Ignore = append(effective.Ignore, o.Ignore...)
		}
		if len(o.ExtendSelect) > 0 {
			effective.ExtendSelect = append(effective.ExtendSelect, o.ExtendSelect...)
		}
		if o.LineLength != 0 {
			effective.LineLength = o.LineLength
		}
		if len(o.Severity) > 0 {
			merged := make(map[string]string, len(effective.Severity)+len(o.Severity))
			for k, v := range effective.Severity {
				merged[k] = v
			}
			for k, v := range o.Severity {
				merged[k] = v
			}
			effective.Severity = merged
		}
	}
	return effective.selection()
}

// matches tests the override's file globs against the path, both as
// given and relative to the configuration root.
func (ov *Override) matches(path, root string) bool {
	rel := path
	if root != "" {
		if r, err := filepath.Rel(root, path); err == nil {
			rel = r
		}
	}
	for _, pat := range ov.Files {
		if ok, _ := filepath.Match(pat, filepath.ToSlash(rel)); ok {
			return true
		}
		if ok, _ := filepath.Match(pat, filepath.Base(path)); ok {
			return true
		}
	}
	return false
}

// selection compiles an option set into the lint engine's form.
func (o *Options) selection() *lint.Selection {
	sel := &lint.Selection{LineLength: o.LineLength}

	// Selection semantics: an empty select enables everything;
	// otherwise a code runs iff a select (or extend-select) entry
	// prefixes it. Ignore entries then remove, last match winning by
	// construction since ignore is applied after selection.
	selectPrefixes := append(append([]string{}, o.Select...), o.ExtendSelect...)
	ignorePrefixes := append([]string{}, o.Ignore...)
	sel.Enabled = func(code string) bool {
		enabled := len(o.Select) == 0
		for _, p := range selectPrefixes {
			if strings.HasPrefix(code, p) || p == "ALL" {
				enabled = true
				break
			}
		}
		if !enabled {
			return false
		}
		for _, p := range ignorePrefixes {
			if strings.HasPrefix(code, p) || p == "ALL" {
				return false
			}
		}
		return true
	}

	if len(o.Severity) > 0 {
		sel.Severity = make(diagnostic.SeverityOverrides, len(o.Severity))
		for code, name := range o.Severity {
			if sev, ok := diagnostic.ParseSeverity(name); ok {
				sel.Severity[code] = sev
			}
		}
	}
	return sel
}
