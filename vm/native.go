package vm

import (
	"errors"
	"fmt"
	"reflect"
	"unicode"
	"unicode/utf8"
)

// ---------------------------------------------------------------------------
// NativeHost: the default Host over plain Go values
// ---------------------------------------------------------------------------

// NativeHost implements Host with Go values as objects:
//
//	Null   -> nil
//	Bool   -> bool
//	Int    -> int64
//	Float  -> float64
//	String -> string
//	List   -> []Object
//	Map    -> *Record
//
// Application handles (structs, maps, funcs) placed on the blackboard are
// reflected: exported fields and methods are readable properties and Go
// functions are callable with argument conversion.
type NativeHost struct {
	// Globals backs GetGlobal when GlobalLookup is nil. Missing keys read as
	// null.
	Globals map[string]Object

	// GlobalLookup, when set, replaces Globals. Its errors surface as BadType.
	GlobalLookup func(key string) (Object, error)
}

// NewNativeHost returns a host with an empty global namespace.
func NewNativeHost() *NativeHost {
	return &NativeHost{Globals: make(map[string]Object)}
}

// Project converts a literal into a native object.
func (h *NativeHost) Project(v Value) Object {
	switch v.Kind {
	case KindBool:
		return v.Bool
	case KindInt:
		return int64(v.Int)
	case KindFloat:
		return float64(v.Float)
	case KindString:
		return v.Str
	case KindList:
		list := make([]Object, len(v.List))
		for i, item := range v.List {
			list[i] = h.Project(item)
		}
		return list
	case KindMap:
		rec := NewRecord()
		for _, f := range v.Map {
			rec.Set(f.Key, h.Project(f.Value))
		}
		return rec
	}
	return nil
}

// NewObject returns an empty *Record.
func (h *NativeHost) NewObject() Object {
	return NewRecord()
}

// IsNull reports whether o is nil or a nil pointer, map, slice or func.
func (h *NativeHost) IsNull(o Object) bool {
	return isNil(o)
}

// Truthy treats nil, false, numeric zero, NaN and "" as false.
func (h *NativeHost) Truthy(o Object) bool {
	return truthy(o)
}

// Describe renders o for diagnostics.
func (h *NativeHost) Describe(o Object) string {
	return describe(o, false)
}

// Global looks key up in the host's global namespace.
func (h *NativeHost) Global(key string) (Object, error) {
	if h.GlobalLookup != nil {
		return h.GlobalLookup(key)
	}
	return h.Globals[key], nil
}

// ---------------------------------------------------------------------------
// Property reflection
// ---------------------------------------------------------------------------

// Has reports whether o exposes property key.
func (h *NativeHost) Has(o Object, key string) (bool, error) {
	switch t := o.(type) {
	case nil:
		return false, ErrNoProperty
	case *Record:
		return t.Has(key), nil
	case string:
		return key == "length", nil
	}

	rv := reflect.ValueOf(o)
	if isNil(o) {
		return false, ErrNoProperty
	}
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		return key == "length", nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return false, ErrNoProperty
		}
		return rv.MapIndex(reflect.ValueOf(key).Convert(rv.Type().Key())).IsValid(), nil
	case reflect.Struct, reflect.Pointer, reflect.Interface, reflect.Func:
		_, ok := reflectMember(rv, key)
		return ok, nil
	}
	return false, ErrNoProperty
}

// Get reads property key of o. Absent properties read as null.
func (h *NativeHost) Get(o Object, key string) (Object, error) {
	switch t := o.(type) {
	case nil:
		return nil, ErrNoProperty
	case *Record:
		v, _ := t.Get(key)
		return v, nil
	case string:
		if key == "length" {
			return int64(utf8.RuneCountInString(t)), nil
		}
		return nil, nil
	}

	if isNil(o) {
		return nil, ErrNoProperty
	}
	rv := reflect.ValueOf(o)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		if key == "length" {
			return int64(rv.Len()), nil
		}
		return nil, nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, ErrNoProperty
		}
		mv := rv.MapIndex(reflect.ValueOf(key).Convert(rv.Type().Key()))
		if !mv.IsValid() {
			return nil, nil
		}
		return nativize(mv.Interface()), nil
	case reflect.Struct, reflect.Pointer, reflect.Interface, reflect.Func:
		if mv, ok := reflectMember(rv, key); ok {
			return nativize(mv.Interface()), nil
		}
		return nil, nil
	}
	return nil, ErrNoProperty
}

// Index reads o[key]. String keys behave like Get; integer keys index lists
// and strings, with out-of-range positions reading as null.
func (h *NativeHost) Index(o Object, key Object) (Object, error) {
	if s, ok := key.(string); ok {
		return h.Get(o, s)
	}
	n, ok := toNumber(key)
	if !ok {
		return nil, badType("cannot index with %s", typeName(key))
	}
	if !n.isInt {
		if n.f != float64(int64(n.f)) {
			return nil, nil
		}
		n.i = int64(n.f)
	}
	i := n.i

	if s, ok := o.(string); ok {
		runes := []rune(s)
		if i < 0 || i >= int64(len(runes)) {
			return nil, nil
		}
		return string(runes[i]), nil
	}
	if isNil(o) {
		return nil, ErrNoProperty
	}
	rv := reflect.ValueOf(o)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		if i < 0 || i >= int64(rv.Len()) {
			return nil, nil
		}
		return nativize(rv.Index(int(i)).Interface()), nil
	}
	return nil, badType("cannot index %s with a number", typeName(o))
}

// Set assigns property key of o. Records, string-keyed maps and settable
// struct fields behind pointers can be assigned.
func (h *NativeHost) Set(o Object, key string, val Object) error {
	if rec, ok := o.(*Record); ok {
		rec.Set(key, val)
		return nil
	}
	if isNil(o) {
		return ErrNoProperty
	}
	rv := reflect.ValueOf(o)
	switch rv.Kind() {
	case reflect.Map:
		kt, vt := rv.Type().Key(), rv.Type().Elem()
		if kt.Kind() != reflect.String {
			return ErrNoProperty
		}
		cv, err := convertArg(val, vt)
		if err != nil {
			return err
		}
		rv.SetMapIndex(reflect.ValueOf(key).Convert(kt), cv)
		return nil
	case reflect.Pointer:
		elem := rv.Elem()
		if elem.Kind() != reflect.Struct {
			return ErrNoProperty
		}
		for _, name := range memberNames(key) {
			f := elem.FieldByName(name)
			if f.IsValid() && f.CanSet() {
				cv, err := convertArg(val, f.Type())
				if err != nil {
					return err
				}
				f.Set(cv)
				return nil
			}
		}
	}
	return ErrNoProperty
}

// memberNames returns the Go names a script property may refer to: the name
// as written and, if different, with its first letter capitalised.
func memberNames(key string) []string {
	r, size := utf8.DecodeRuneInString(key)
	if r == utf8.RuneError || unicode.IsUpper(r) {
		return []string{key}
	}
	return []string{key, string(unicode.ToUpper(r)) + key[size:]}
}

// reflectMember finds an exported field or method called key on rv.
// Methods are returned bound to their receiver.
func reflectMember(rv reflect.Value, key string) (reflect.Value, bool) {
	for _, name := range memberNames(key) {
		if m := rv.MethodByName(name); m.IsValid() {
			return m, true
		}
		v := rv
		for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
			if v.IsNil() {
				return reflect.Value{}, false
			}
			v = v.Elem()
		}
		if m := v.MethodByName(name); m.IsValid() {
			return m, true
		}
		if v.Kind() == reflect.Struct {
			if sf, ok := v.Type().FieldByName(name); ok && sf.IsExported() {
				return v.FieldByIndex(sf.Index), true
			}
		}
	}
	return reflect.Value{}, false
}

// ---------------------------------------------------------------------------
// Invocation
// ---------------------------------------------------------------------------

// Invoke calls fn. Func values receive recv as this; other Go functions are
// called through reflection with argument conversion. Panics raised by the
// callee are recovered and reported as call failures.
func (h *NativeHost) Invoke(fn Object, recv Object, method bool, args []Object) (result Object, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			if e, ok := r.(error); ok {
				err = fmt.Errorf("panic: %w", e)
			} else {
				err = fmt.Errorf("panic: %v", r)
			}
		}
	}()

	if !method {
		recv = nil
	}
	switch f := fn.(type) {
	case Func:
		if f == nil {
			return nil, ErrNotCallable
		}
		return f(recv, args)
	case func(Object, []Object) (Object, error):
		if f == nil {
			return nil, ErrNotCallable
		}
		return f(recv, args)
	case nil:
		return nil, ErrNotCallable
	}

	rv := reflect.ValueOf(fn)
	if rv.Kind() != reflect.Func || rv.IsNil() {
		return nil, ErrNotCallable
	}
	return callReflect(rv, args)
}

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// callReflect converts args to fn's parameter types, calls it and folds the
// results: a trailing error result becomes the call error and the first
// remaining result, if any, becomes the value.
func callReflect(fn reflect.Value, args []Object) (Object, error) {
	ft := fn.Type()
	in := make([]reflect.Value, 0, len(args))
	for i, arg := range args {
		var pt reflect.Type
		switch {
		case ft.IsVariadic() && i >= ft.NumIn()-1:
			pt = ft.In(ft.NumIn() - 1).Elem()
		case i < ft.NumIn():
			pt = ft.In(i)
		default:
			return nil, fmt.Errorf("too many arguments: got %d, want %d", len(args), ft.NumIn())
		}
		cv, err := convertArg(arg, pt)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i+1, err)
		}
		in = append(in, cv)
	}
	minArgs := ft.NumIn()
	if ft.IsVariadic() {
		minArgs--
	}
	if len(in) < minArgs {
		return nil, fmt.Errorf("not enough arguments: got %d, want %d", len(in), minArgs)
	}

	out := fn.Call(in)
	if n := len(out); n > 0 && ft.Out(n-1) == errorType {
		if e := out[n-1]; !e.IsNil() {
			return nil, e.Interface().(error)
		}
		out = out[:n-1]
	}
	if len(out) == 0 {
		return nil, nil
	}
	return nativize(out[0].Interface()), nil
}

// convertArg converts a native object to a value of type t.
func convertArg(o Object, t reflect.Type) (reflect.Value, error) {
	if o == nil {
		switch t.Kind() {
		case reflect.Interface, reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
			return reflect.Zero(t), nil
		}
		return reflect.Value{}, fmt.Errorf("cannot use null as %s", t)
	}
	v := reflect.ValueOf(o)
	if v.Type().AssignableTo(t) {
		return v, nil
	}
	if isNumericKind(v.Kind()) && isNumericKind(t.Kind()) {
		return v.Convert(t), nil
	}
	if t.Kind() == reflect.Slice {
		if list, ok := o.([]Object); ok {
			out := reflect.MakeSlice(t, len(list), len(list))
			for i, item := range list {
				cv, err := convertArg(item, t.Elem())
				if err != nil {
					return reflect.Value{}, err
				}
				out.Index(i).Set(cv)
			}
			return out, nil
		}
	}
	return reflect.Value{}, fmt.Errorf("cannot use %s as %s", typeName(o), t)
}

// nativize normalizes Go values returned by reflection into the native
// object model: every integer becomes int64 and every float float64.
func nativize(o any) Object {
	switch t := o.(type) {
	case nil, bool, int64, float64, string, *Record, []Object:
		return o
	case int:
		return int64(t)
	case int8:
		return int64(t)
	case int16:
		return int64(t)
	case int32:
		return int64(t)
	case uint:
		return int64(t)
	case uint8:
		return int64(t)
	case uint16:
		return int64(t)
	case uint32:
		return int64(t)
	case uint64:
		return int64(t)
	case float32:
		return float64(t)
	case error:
		return t.Error()
	}
	return o
}

// isNil reports whether o is nil or a typed nil.
func isNil(o Object) bool {
	if o == nil {
		return true
	}
	rv := reflect.ValueOf(o)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

func isNumericKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

// typeName names a native object's type for error messages.
func typeName(o Object) string {
	switch o.(type) {
	case nil:
		return "null"
	case bool:
		return "bool"
	case int64:
		return "int"
	case float64:
		return "float"
	case string:
		return "string"
	case *Record:
		return "object"
	case []Object:
		return "list"
	case Func:
		return "function"
	}
	return fmt.Sprintf("%T", o)
}

// IsBadType reports whether err is, or wraps, a host error that the machine
// reports as BadType.
func IsBadType(err error) bool {
	return errors.Is(err, ErrBadType) || errors.Is(err, ErrNoProperty) || errors.Is(err, ErrNotCallable)
}
