// Package manifest handles htn.toml project configuration.
package manifest

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/chazu/htn/vm"
)

// FileName is the name of the project configuration file.
const FileName = "htn.toml"

// Manifest represents an htn.toml project configuration.
type Manifest struct {
	Project  Project        `toml:"project"`
	Source   Source         `toml:"source"`
	Runtime  Runtime        `toml:"runtime"`
	Store    Store          `toml:"store"`
	Globals  map[string]any `toml:"globals"`
	Bindings map[string]any `toml:"bindings"`

	// Dir is the directory containing the htn.toml file (set at load time).
	Dir string `toml:"-"`

	// order maps dotted key paths to their position in the file, so tables
	// convert to records in declaration order.
	order map[string]int
}

// Project contains project metadata.
type Project struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
}

// Source configures script locations.
type Source struct {
	Dirs  []string `toml:"dirs"`
	Entry string   `toml:"entry"`
}

// Runtime configures the virtual machine.
type Runtime struct {
	MaxOps    int  `toml:"max-ops"`   // reject longer programs; 0 means unlimited
	Ticks     int  `toml:"ticks"`     // default tick count for htn run
	Trace     bool `toml:"trace"`     // log every dispatched operation
	Verbosity int  `toml:"verbosity"` // commonlog verbosity
}

// Store configures the SQLite store.
type Store struct {
	Path  string `toml:"path"`
	Scope string `toml:"scope"`
}

// Defaults applied by Load and Default.
const (
	DefaultSourceDir = "scripts"
	DefaultStorePath = ".htn/htn.db"
	DefaultScope     = "default"
)

// Default returns the configuration used when no htn.toml exists.
func Default(dir string) *Manifest {
	m := &Manifest{Dir: dir}
	m.applyDefaults()
	return m
}

// Load parses an htn.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	m, err := Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}
	return m, nil
}

// Parse decodes manifest text. Unknown keys outside [globals] and [bindings]
// are rejected so that typos do not silently fall back to defaults.
func Parse(text string) (*Manifest, error) {
	var m Manifest
	meta, err := toml.Decode(text, &m)
	if err != nil {
		return nil, err
	}
	var unknown []string
	for _, k := range meta.Undecoded() {
		if len(k) > 0 && (k[0] == "globals" || k[0] == "bindings") {
			continue
		}
		unknown = append(unknown, k.String())
	}
	if len(unknown) > 0 {
		return nil, fmt.Errorf("unknown keys: %s", strings.Join(unknown, ", "))
	}

	m.order = make(map[string]int)
	for i, k := range meta.Keys() {
		m.order[k.String()] = i
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}
	m.applyDefaults()
	return &m, nil
}

// Validate checks value ranges.
func (m *Manifest) Validate() error {
	if m.Runtime.MaxOps < 0 {
		return fmt.Errorf("runtime.max-ops must not be negative, got %d", m.Runtime.MaxOps)
	}
	if m.Runtime.Ticks < 0 {
		return fmt.Errorf("runtime.ticks must not be negative, got %d", m.Runtime.Ticks)
	}
	return nil
}

func (m *Manifest) applyDefaults() {
	if len(m.Source.Dirs) == 0 {
		m.Source.Dirs = []string{DefaultSourceDir}
	}
	if m.Runtime.Ticks == 0 {
		m.Runtime.Ticks = 1
	}
	if m.Store.Path == "" {
		m.Store.Path = DefaultStorePath
	}
	if m.Store.Scope == "" {
		if m.Project.Name != "" {
			m.Store.Scope = m.Project.Name
		} else {
			m.Store.Scope = DefaultScope
		}
	}
}

// FindAndLoad walks up from startDir to find an htn.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// SourceDirPaths returns absolute paths for the configured source directories.
func (m *Manifest) SourceDirPaths() []string {
	var paths []string
	for _, d := range m.Source.Dirs {
		paths = append(paths, m.resolve(d))
	}
	return paths
}

// EntryPath returns the path of the entry script, or "" if none is set.
func (m *Manifest) EntryPath() string {
	if m.Source.Entry == "" {
		return ""
	}
	if filepath.IsAbs(m.Source.Entry) {
		return m.Source.Entry
	}
	for _, d := range m.SourceDirPaths() {
		path := filepath.Join(d, m.Source.Entry)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return m.resolve(m.Source.Entry)
}

// StorePath returns the path of the SQLite store.
func (m *Manifest) StorePath() string {
	return m.resolve(m.Store.Path)
}

// SourceFiles lists every .htn file under the source directories, sorted.
// Missing directories are skipped.
func (m *Manifest) SourceFiles() ([]string, error) {
	var files []string
	for _, root := range m.SourceDirPaths() {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if path == root && os.IsNotExist(err) {
					return filepath.SkipDir
				}
				return err
			}
			if !d.IsDir() && strings.HasSuffix(path, ".htn") {
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

func (m *Manifest) resolve(p string) string {
	if filepath.IsAbs(p) || m.Dir == "" {
		return p
	}
	return filepath.Join(m.Dir, p)
}

// ---------------------------------------------------------------------------
// Globals and bindings
// ---------------------------------------------------------------------------

// GlobalObjects converts [globals] to native objects for vm.NativeHost.
func (m *Manifest) GlobalObjects() map[string]vm.Object {
	return m.objects("globals", m.Globals)
}

// BindingObjects converts [bindings] to native objects for Machine.Tick.
func (m *Manifest) BindingObjects() map[string]vm.Object {
	return m.objects("bindings", m.Bindings)
}

func (m *Manifest) objects(table string, values map[string]any) map[string]vm.Object {
	out := make(map[string]vm.Object, len(values))
	for k, v := range values {
		out[k] = m.toObject(table+"."+quoteKey(k), v)
	}
	return out
}

// toObject converts a decoded TOML value. Integers become int64, floats
// float64, arrays []vm.Object and tables *vm.Record with keys in file order.
// Dates and times become their TOML text.
func (m *Manifest) toObject(path string, v any) vm.Object {
	switch t := v.(type) {
	case int64, float64, string, bool:
		return t
	case []any:
		list := make([]vm.Object, len(t))
		for i, item := range t {
			list[i] = m.toObject(path, item)
		}
		return list
	case []map[string]any:
		list := make([]vm.Object, len(t))
		for i, item := range t {
			list[i] = m.toObject(path, item)
		}
		return list
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool {
			oi, iok := m.order[path+"."+quoteKey(keys[i])]
			oj, jok := m.order[path+"."+quoteKey(keys[j])]
			if iok && jok && oi != oj {
				return oi < oj
			}
			return keys[i] < keys[j]
		})
		rec := vm.NewRecord()
		for _, k := range keys {
			rec.Set(k, m.toObject(path+"."+quoteKey(k), t[k]))
		}
		return rec
	}
	return fmt.Sprint(v)
}

// quoteKey renders one key the way toml.Key.String does.
func quoteKey(k string) string {
	return toml.Key{k}.String()
}
