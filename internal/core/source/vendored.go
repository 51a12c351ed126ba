package source

import (
	"embed"
	"io/fs"
	"sync"

	"gopkg.in/yaml.v3"
)

// A read-only bundle of standard-library type stubs is compiled into
// the binary and served through the same [Loader] interface as real
// files, under [KindVendored]. The manifest maps Python module names
// to stub paths inside the bundle so the type checker can resolve
// `import typing` without touching the user's machine.

//go:embed stubs
var stubBundle embed.FS

//go:embed stubs/manifest.yaml
var stubManifest []byte

// VendoredLoader serves the embedded stub bundle.
type VendoredLoader struct {
	fsys fs.FS

	once     sync.Once
	manifest map[string]string // module name -> bundle path
	err      error
}

// NewVendoredLoader returns the loader for the embedded stub bundle.
func NewVendoredLoader() *VendoredLoader {
	return &VendoredLoader{fsys: stubBundle}
}

// Load implements [Loader].
func (l *VendoredLoader) Load(path string) ([]byte, bool) {
	content, err := fs.ReadFile(l.fsys, path)
	if err != nil {
		return nil, false
	}
	return content, true
}

// Changed implements [Loader]: the bundle is immutable for the life of
// the process.
func (l *VendoredLoader) Changed(path string, prev []byte) bool { return false }

// StubPath resolves a Python module name (e.g. "builtins") to the
// bundle path of its stub, or ok=false if the bundle has no stub for
// it.
func (l *VendoredLoader) StubPath(module string) (path string, ok bool) {
	l.once.Do(func() {
		var m struct {
			Stubs map[string]string `yaml:"stubs"`
		}
		l.err = yaml.Unmarshal(stubManifest, &m)
		l.manifest = m.Stubs
	})
	if l.err != nil {
		return "", false
	}
	path, ok = l.manifest[module]
	return path, ok
}
