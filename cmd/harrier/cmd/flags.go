package cmd

import "github.com/spf13/pflag"

// Flag registration is split from command construction so the check
// and watch surfaces stay in sync over one flag set.

func addSelectionFlags(f *pflag.FlagSet, flags *checkFlags) {
	f.StringSliceVar(&flags.selectCodes, "select", nil, "rule codes or prefixes to enable")
	f.StringSliceVar(&flags.ignoreCodes, "ignore", nil, "rule codes or prefixes to disable")
	f.StringSliceVar(&flags.extendSelect, "extend-select", nil, "rule codes to enable in addition to the configured set")
}

func addFixFlags(f *pflag.FlagSet, flags *checkFlags) {
	f.BoolVar(&flags.fix, "fix", false, "apply safe fixes and rewrite files")
	f.BoolVar(&flags.unsafeFixes, "unsafe-fixes", false, "also apply fixes marked unsafe (they stay reported as unsafe)")
}

func addRunFlags(f *pflag.FlagSet, flags *checkFlags) {
	f.StringVar(&flags.outputFormat, "output-format", "", "concise, grouped, json, sarif, junit, or gitlab")
	f.StringVar(&flags.configPath, "config", "", "configuration file path, or an inline TOML document")
	f.IntVar(&flags.lineLength, "line-length", 0, "maximum line length")
	f.StringVar(&flags.targetVersion, "target-version", "", "Python version to check against (py38..py313)")
	f.BoolVar(&flags.isolated, "isolated", false, "ignore configuration files")
	f.BoolVar(&flags.noCache, "no-cache", false, "discard cached results between files")
	f.BoolVar(&flags.watch, "watch", false, "re-run on file changes")
	f.BoolVar(&flags.errorOnWarning, "error-on-warning", false, "exit non-zero when warnings are reported")
	f.BoolVar(&flags.showSettings, "show-settings", false, "print the resolved configuration and exit")
}
