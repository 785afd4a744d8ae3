package vm

// ---------------------------------------------------------------------------
// Host bridge
// ---------------------------------------------------------------------------

// Object is a host-owned runtime value. The machine never inspects objects
// itself; every question about one goes through the Host.
type Object = any

// Host is the bridge between the machine and the embedding application's
// object model. The machine borrows the host for the duration of a tick and
// calls it synchronously.
type Host interface {
	// Project converts a bytecode literal into a host object. The machine
	// never needs the inverse.
	Project(v Value) Object

	// NewObject returns a fresh empty object, used for DefineObj and for
	// blackboard reads of absent keys.
	NewObject() Object

	// IsNull reports whether o is the host's null/undefined.
	IsNull(o Object) bool

	// Truthy is the boolean coercion used by SkipIf, Not, And and Or.
	Truthy(o Object) bool

	// Has reports whether o exposes property key.
	Has(o Object, key string) (bool, error)

	// Get reads property key of o.
	Get(o Object, key string) (Object, error)

	// Index reads o[key] where key is itself a runtime value.
	Index(o Object, key Object) (Object, error)

	// Set assigns property key of o.
	Set(o Object, key string, val Object) error

	// Invoke calls fn. For method calls recv is the receiver and method is
	// true. A value that cannot be called yields ErrNotCallable; any other
	// error is treated as the host function failing.
	Invoke(fn Object, recv Object, method bool, args []Object) (Object, error)

	// Global looks key up in the host's global namespace.
	Global(key string) (Object, error)

	// Binary applies a two-operand opcode to left and right.
	Binary(op Opcode, left, right Object) (Object, error)

	// Describe renders o for diagnostics such as Dbg.
	Describe(o Object) string
}

// Func is the native callable type. this is the receiver for method calls and
// nil otherwise.
type Func func(this Object, args []Object) (Object, error)
