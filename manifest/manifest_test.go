package manifest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chazu/htn/vm"
)

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	tomlContent := `
[project]
name = "colony"
version = "0.1.0"

[source]
dirs = ["scripts", "lib"]
entry = "main.htn"

[runtime]
max-ops = 4096
ticks = 3
trace = true
verbosity = 2

[store]
path = "state/colony.db"
scope = "room-1"

[globals]
tick_rate = 20
gravity = 9.5

[globals.spawn]
x = 10
y = 4
name = "home"

[bindings]
enemies = ["goblin", "orc"]
`
	if err := os.WriteFile(filepath.Join(dir, "htn.toml"), []byte(tomlContent), 0644); err != nil {
		t.Fatal(err)
	}

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if m.Project.Name != "colony" {
		t.Errorf("project name = %q, want colony", m.Project.Name)
	}
	if m.Project.Version != "0.1.0" {
		t.Errorf("project version = %q, want 0.1.0", m.Project.Version)
	}
	if len(m.Source.Dirs) != 2 {
		t.Errorf("source dirs count = %d, want 2", len(m.Source.Dirs))
	}
	if m.Source.Entry != "main.htn" {
		t.Errorf("source entry = %q, want main.htn", m.Source.Entry)
	}
	if m.Runtime.MaxOps != 4096 || m.Runtime.Ticks != 3 || !m.Runtime.Trace || m.Runtime.Verbosity != 2 {
		t.Errorf("runtime = %+v", m.Runtime)
	}
	if m.Store.Scope != "room-1" {
		t.Errorf("store scope = %q, want room-1", m.Store.Scope)
	}
	if want := filepath.Join(m.Dir, "state", "colony.db"); m.StorePath() != want {
		t.Errorf("store path = %q, want %q", m.StorePath(), want)
	}

	globals := m.GlobalObjects()
	if globals["tick_rate"] != int64(20) {
		t.Errorf("tick_rate = %#v, want int64 20", globals["tick_rate"])
	}
	if globals["gravity"] != 9.5 {
		t.Errorf("gravity = %#v, want 9.5", globals["gravity"])
	}
	spawn, ok := globals["spawn"].(*vm.Record)
	if !ok {
		t.Fatalf("spawn = %#v, want *vm.Record", globals["spawn"])
	}
	if keys := strings.Join(spawn.Keys(), ","); keys != "x,y,name" {
		t.Errorf("spawn keys = %s, want x,y,name", keys)
	}

	enemies, ok := m.BindingObjects()["enemies"].([]vm.Object)
	if !ok || len(enemies) != 2 || enemies[1] != "orc" {
		t.Errorf("enemies = %#v", m.BindingObjects()["enemies"])
	}
}

func TestLoadManifestDefaults(t *testing.T) {
	dir := t.TempDir()
	tomlContent := `
[project]
name = "minimal"
`
	if err := os.WriteFile(filepath.Join(dir, "htn.toml"), []byte(tomlContent), 0644); err != nil {
		t.Fatal(err)
	}

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if len(m.Source.Dirs) != 1 || m.Source.Dirs[0] != "scripts" {
		t.Errorf("default source dirs = %v, want [scripts]", m.Source.Dirs)
	}
	if m.Runtime.Ticks != 1 {
		t.Errorf("default ticks = %d, want 1", m.Runtime.Ticks)
	}
	if m.Runtime.MaxOps != 0 {
		t.Errorf("default max-ops = %d, want 0", m.Runtime.MaxOps)
	}
	if m.Store.Path != DefaultStorePath {
		t.Errorf("default store path = %q", m.Store.Path)
	}
	if m.Store.Scope != "minimal" {
		t.Errorf("default scope = %q, want project name", m.Store.Scope)
	}
	if m.EntryPath() != "" {
		t.Errorf("entry path = %q, want empty", m.EntryPath())
	}
	if len(m.GlobalObjects()) != 0 {
		t.Errorf("globals = %v, want none", m.GlobalObjects())
	}
}

func TestDefault(t *testing.T) {
	m := Default("/work")
	if m.Store.Scope != DefaultScope {
		t.Errorf("scope = %q, want %q", m.Store.Scope, DefaultScope)
	}
	if got := m.StorePath(); got != filepath.Join("/work", DefaultStorePath) {
		t.Errorf("store path = %q", got)
	}
	if got := m.SourceDirPaths(); len(got) != 1 || got[0] != filepath.Join("/work", "scripts") {
		t.Errorf("source dirs = %v", got)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"syntax", "[project\nname = 1", ""},
		{"unknown key", "[runtime]\nmax-opz = 3", "unknown keys: runtime.max-opz"},
		{"negative max-ops", "[runtime]\nmax-ops = -1", "max-ops must not be negative"},
		{"negative ticks", "[runtime]\nticks = -5", "ticks must not be negative"},
		{"wrong type", "[runtime]\nticks = \"many\"", ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(tc.content)
			if err == nil {
				t.Fatal("expected error")
			}
			if tc.want != "" && !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error = %q, want it to contain %q", err, tc.want)
			}
		})
	}
}

func TestParseAllowsNestedGlobals(t *testing.T) {
	m, err := Parse(`
[globals.world]
size = 64
[globals.world.origin]
x = 1
`)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	world, ok := m.GlobalObjects()["world"].(*vm.Record)
	if !ok {
		t.Fatalf("world = %#v", m.GlobalObjects()["world"])
	}
	origin, _ := world.Get("origin")
	if rec, ok := origin.(*vm.Record); !ok || rec.Len() != 1 {
		t.Errorf("origin = %#v", origin)
	}
}

func TestFindAndLoad(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "htn.toml"), []byte("[project]\nname = \"found\"\n"), 0644); err != nil {
		t.Fatal(err)
	}
	nested := filepath.Join(root, "scripts", "ai")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}

	m, err := FindAndLoad(nested)
	if err != nil {
		t.Fatalf("FindAndLoad failed: %v", err)
	}
	if m == nil || m.Project.Name != "found" {
		t.Fatalf("manifest = %+v, want project found", m)
	}
	if m.Dir != root {
		t.Errorf("dir = %q, want %q", m.Dir, root)
	}
}

func TestFindAndLoadNotFound(t *testing.T) {
	m, err := FindAndLoad(t.TempDir())
	if err != nil {
		t.Fatalf("FindAndLoad failed: %v", err)
	}
	if m != nil {
		// A stray htn.toml above the temp dir would be found; that is not
		// this test's concern.
		t.Skipf("found a manifest in %s", m.Dir)
	}
}

func TestSourceFiles(t *testing.T) {
	dir := t.TempDir()
	write := func(rel string) {
		path := filepath.Join(dir, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte("exit Success;"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	write("scripts/b.htn")
	write("scripts/sub/a.htn")
	write("scripts/readme.md")

	m := Default(dir)
	m.Source.Dirs = []string{"scripts", "missing"}
	m.Source.Entry = "sub/a.htn"

	files, err := m.SourceFiles()
	if err != nil {
		t.Fatalf("SourceFiles failed: %v", err)
	}
	want := []string{
		filepath.Join(dir, "scripts", "b.htn"),
		filepath.Join(dir, "scripts", "sub", "a.htn"),
	}
	if strings.Join(files, "\n") != strings.Join(want, "\n") {
		t.Errorf("files = %v, want %v", files, want)
	}
	if got := m.EntryPath(); got != want[1] {
		t.Errorf("entry path = %q, want %q", got, want[1])
	}
}
