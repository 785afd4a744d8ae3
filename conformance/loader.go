// Package conformance runs YAML-described scripts through the compiler and
// machine and checks what they do.
package conformance

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// TestPath is the directory holding the bundled suites, relative to this
// package.
const TestPath = "testdata"

// LoadedTest represents a test with its source file path
type LoadedTest struct {
	File  string
	Suite *TestSuite
	Test  TestCase
}

// LoadAllTests walks dir and loads every test case from its .yaml files,
// ordered by file name. A file that does not parse is an error.
func LoadAllTests(dir string) ([]LoadedTest, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && (filepath.Ext(path) == ".yaml" || filepath.Ext(path) == ".yml") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)

	var loaded []LoadedTest
	for _, path := range files {
		suite, err := LoadSuite(path)
		if err != nil {
			return nil, err
		}
		// Get relative path for cleaner test names
		relPath, err := filepath.Rel(dir, path)
		if err != nil {
			relPath = path
		}
		for _, test := range suite.Tests {
			loaded = append(loaded, LoadedTest{
				File:  relPath,
				Suite: suite,
				Test:  test,
			})
		}
	}
	return loaded, nil
}

// LoadSuite parses a single YAML file.
func LoadSuite(path string) (*TestSuite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	suite, err := ParseSuite(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return suite, nil
}

// ParseSuite decodes a suite from YAML. Unknown fields are rejected.
func ParseSuite(data []byte) (*TestSuite, error) {
	var suite TestSuite
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&suite); err != nil {
		return nil, err
	}
	for i, tc := range suite.Tests {
		if tc.Name == "" {
			return nil, fmt.Errorf("test %d has no name", i+1)
		}
	}
	return &suite, nil
}
