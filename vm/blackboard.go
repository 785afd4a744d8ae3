package vm

import "sort"

// Blackboard is the persistent named-variable store read and written by
// GetBlackBoard and SetBlackBoard. It is owned by the embedding application
// and outlives any single tick. Keys are unique and keep insertion order.
//
// A Blackboard performs no locking; concurrent ticks against the same
// blackboard need external synchronization.
type Blackboard struct {
	keys   []string
	values map[string]Object
}

// NewBlackboard returns an empty blackboard.
func NewBlackboard() *Blackboard {
	return &Blackboard{values: make(map[string]Object)}
}

// Get returns the entry for key.
func (b *Blackboard) Get(key string) (Object, bool) {
	v, ok := b.values[key]
	return v, ok
}

// Set stores val under key, overwriting any previous entry.
func (b *Blackboard) Set(key string, val Object) {
	if _, ok := b.values[key]; !ok {
		b.keys = append(b.keys, key)
	}
	b.values[key] = val
}

// Delete removes key, reporting whether it was present.
func (b *Blackboard) Delete(key string) bool {
	if _, ok := b.values[key]; !ok {
		return false
	}
	delete(b.values, key)
	for i, k := range b.keys {
		if k == key {
			b.keys = append(b.keys[:i], b.keys[i+1:]...)
			break
		}
	}
	return true
}

// Keys returns the keys in insertion order.
func (b *Blackboard) Keys() []string {
	out := make([]string, len(b.keys))
	copy(out, b.keys)
	return out
}

// Len returns the number of entries.
func (b *Blackboard) Len() int {
	return len(b.keys)
}

// Bind injects execution-scoped bindings and returns a function that puts
// the blackboard back the way it was: keys that existed get their previous
// value, keys that did not are removed. New keys are added in sorted order.
func (b *Blackboard) Bind(bindings map[string]Object) (restore func()) {
	type saved struct {
		key     string
		value   Object
		present bool
	}
	keys := make([]string, 0, len(bindings))
	for k := range bindings {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	prev := make([]saved, 0, len(keys))
	for _, k := range keys {
		old, ok := b.values[k]
		prev = append(prev, saved{key: k, value: old, present: ok})
		b.Set(k, bindings[k])
	}
	return func() {
		for _, s := range prev {
			if s.present {
				b.Set(s.key, s.value)
			} else {
				b.Delete(s.key)
			}
		}
	}
}
