package conformance

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/chazu/htn/vm"
)

// TestSuite represents a complete YAML test file
type TestSuite struct {
	Name        string     `yaml:"name"`
	Description string     `yaml:"description,omitempty"`
	Globals     Values     `yaml:"globals,omitempty"`  // host globals for every test
	Fixtures    []string   `yaml:"fixtures,omitempty"` // host objects placed on every blackboard
	Tests       []TestCase `yaml:"tests"`
}

// TestCase represents a single test within a suite
type TestCase struct {
	Name        string      `yaml:"name"`
	Description string      `yaml:"description,omitempty"`
	Skip        any         `yaml:"skip,omitempty"` // bool or string
	Source      string      `yaml:"source"`
	Ticks       int         `yaml:"ticks,omitempty"`      // default 1
	MaxOps      int         `yaml:"max_ops,omitempty"`    // program length ceiling; 0 means none
	Blackboard  Values      `yaml:"blackboard,omitempty"` // initial entries
	Bindings    Values      `yaml:"bindings,omitempty"`   // injected for each tick, then restored
	Globals     Values      `yaml:"globals,omitempty"`
	Fixtures    []string    `yaml:"fixtures,omitempty"`
	Expect      Expectation `yaml:"expect"`
}

// Expectation defines what a test must observe. Every field that is set is
// checked.
type Expectation struct {
	State      string   `yaml:"state,omitempty"`      // end state of the last tick
	States     []string `yaml:"states,omitempty"`     // end state of every tick
	Error      string   `yaml:"error,omitempty"`      // ParseError, StackUnderflow, BadType, ...
	Message    string   `yaml:"message,omitempty"`    // substring of the error text
	IP         *int     `yaml:"ip,omitempty"`         // offset of the failing operation
	Blackboard Values   `yaml:"blackboard,omitempty"` // entries that must be present and equal
	Absent     []string `yaml:"absent,omitempty"`     // keys that must not be present
	Ops        []string `yaml:"ops,omitempty"`        // disassembly of the compiled program
	Debug      []string `yaml:"debug,omitempty"`      // values dumped by $
}

// IsSkipped returns true if this test should be skipped
func (tc *TestCase) IsSkipped() (bool, string) {
	switch v := tc.Skip.(type) {
	case bool:
		if v {
			return true, "skipped"
		}
	case string:
		return true, v
	}
	return false, ""
}

// Values is a YAML mapping decoded into host objects. Keys keep document
// order, and nested mappings become records in document order too.
type Values struct {
	Keys    []string
	Objects map[string]vm.Object
}

// Len returns the number of entries.
func (v Values) Len() int {
	return len(v.Keys)
}

// Map returns the entries as a plain map.
func (v Values) Map() map[string]vm.Object {
	out := make(map[string]vm.Object, len(v.Keys))
	for _, k := range v.Keys {
		out[k] = v.Objects[k]
	}
	return out
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (v *Values) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.AliasNode {
		node = node.Alias
	}
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: expected a mapping", node.Line)
	}
	v.Keys = nil
	v.Objects = make(map[string]vm.Object)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i].Value
		obj, err := nodeToObject(node.Content[i+1])
		if err != nil {
			return err
		}
		if _, dup := v.Objects[key]; !dup {
			v.Keys = append(v.Keys, key)
		}
		v.Objects[key] = obj
	}
	return nil
}

// nodeToObject converts a YAML node to the native host's object model:
// integers become int64, floats float64, sequences []vm.Object and mappings
// *vm.Record.
func nodeToObject(node *yaml.Node) (vm.Object, error) {
	switch node.Kind {
	case yaml.AliasNode:
		return nodeToObject(node.Alias)
	case yaml.SequenceNode:
		list := make([]vm.Object, 0, len(node.Content))
		for _, item := range node.Content {
			obj, err := nodeToObject(item)
			if err != nil {
				return nil, err
			}
			list = append(list, obj)
		}
		return list, nil
	case yaml.MappingNode:
		rec := vm.NewRecord()
		for i := 0; i+1 < len(node.Content); i += 2 {
			obj, err := nodeToObject(node.Content[i+1])
			if err != nil {
				return nil, err
			}
			rec.Set(node.Content[i].Value, obj)
		}
		return rec, nil
	case yaml.ScalarNode:
		switch node.ShortTag() {
		case "!!null":
			return nil, nil
		case "!!bool":
			var b bool
			err := node.Decode(&b)
			return b, err
		case "!!int":
			var i int64
			err := node.Decode(&i)
			return i, err
		case "!!float":
			var f float64
			err := node.Decode(&f)
			return f, err
		}
		return node.Value, nil
	}
	return nil, fmt.Errorf("line %d: unsupported YAML node", node.Line)
}
