package vm

import (
	"github.com/kerbonaut11/muna/internal/runtime"
	"github.com/kerbonaut11/muna/internal/value"
)

// installBuiltins wires every native binding compileIterSource and
// ordinary call expressions expect to find as a global: ipairs/
// kvpairs/range (§4.5's for-in iteration sources — each a factory
// that, given the loop's driver value, returns the actual per-
// iteration iterator function) and setmetatable/getmetatable (spec
// §8 scenario 4's metatable wiring).
func (vm *VM) installBuiltins() {
	vm.defineGlobal("ipairs", 1, vm.nativeIPairs)
	vm.defineGlobal("kvpairs", 1, vm.nativeKVPairs)
	vm.defineGlobal("range", 1, vm.nativeRange)
	vm.defineGlobal("setmetatable", 2, nativeSetMetaTable)
	vm.defineGlobal("getmetatable", 1, nativeGetMetaTable)
}

// defineGlobal installs fn under name, declaring its real argument
// count so vm.call's Nil-padding/truncation (applied uniformly to
// native and script callees alike) doesn't drop a genuine argument —
// setmetatable needs both of its two arguments to survive that pass.
func (vm *VM) defineGlobal(name string, argCount uint8, fn runtime.NativeFn) {
	fo := runtime.AllocFunction(runtime.Function{Native: fn, ArgCount: argCount, RetCount: 1})
	_ = vm.globals.Get().Set(value.StringOf(name), value.ObjOf(fo))
}

func nativeFunc(argCount uint8, fn runtime.NativeFn) value.Value {
	return value.ObjOf(runtime.AllocFunction(runtime.Function{Native: fn, ArgCount: argCount}))
}

// nativeIPairs(t) returns a 0-arg iterator walking t's array part in
// order, yielding (index, value) pairs starting at 1 and stopping
// (first result Nil) once the array is exhausted.
func (vm *VM) nativeIPairs(args []value.Value) ([]value.Value, error) {
	t, ok := args[0].AsObj().(runtime.TableRef)
	if !ok {
		return nil, unaryTypeErr("ipairs", args[0].Type())
	}
	i := 0
	iter := func([]value.Value) ([]value.Value, error) {
		arr := t.Get().Array
		if i >= len(arr) {
			return []value.Value{value.Nil, value.Nil}, nil
		}
		i++
		return []value.Value{value.IntOf(int64(i)), arr[i-1]}, nil
	}
	return []value.Value{nativeFunc(0, iter)}, nil
}

// nativeKVPairs(t) returns a 0-arg iterator walking every key of t —
// array part first (integer keys 1..len(Array)), then the map part in
// whatever order Go's map iteration gives (the map half of a table has
// no ordering guarantee in the first place) — yielding (key, value)
// until every entry has been visited once.
func (vm *VM) nativeKVPairs(args []value.Value) ([]value.Value, error) {
	t, ok := args[0].AsObj().(runtime.TableRef)
	if !ok {
		return nil, unaryTypeErr("kvpairs", args[0].Type())
	}
	tbl := t.Get()
	keys := make([]value.Value, 0, len(tbl.Array)+len(tbl.Map))
	for i := range tbl.Array {
		keys = append(keys, value.IntOf(int64(i+1)))
	}
	for k := range tbl.Map {
		keys = append(keys, k.Value())
	}
	i := 0
	iter := func([]value.Value) ([]value.Value, error) {
		if i >= len(keys) {
			return []value.Value{value.Nil, value.Nil}, nil
		}
		k := keys[i]
		i++
		v, err := tbl.Get(k)
		if err != nil {
			return nil, err
		}
		return []value.Value{k, v}, nil
	}
	return []value.Value{nativeFunc(0, iter)}, nil
}

// nativeRange(n) returns a 0-arg iterator counting from 1 to n
// inclusive, yielding (i, i) each step — there is no separate "value"
// distinct from the counter itself for a bare numeric range.
func (vm *VM) nativeRange(args []value.Value) ([]value.Value, error) {
	n, err := vm.toInt(args[0])
	if err != nil {
		return nil, err
	}
	i := int64(0)
	iter := func([]value.Value) ([]value.Value, error) {
		if i >= n {
			return []value.Value{value.Nil, value.Nil}, nil
		}
		i++
		return []value.Value{value.IntOf(i), value.IntOf(i)}, nil
	}
	return []value.Value{nativeFunc(0, iter)}, nil
}

// nativeSetMetaTable(obj, meta) installs meta as obj's metatable and
// returns obj, matching the chaining-friendly convention of the
// original's own builtin of the same name.
func nativeSetMetaTable(args []value.Value) ([]value.Value, error) {
	meta, ok := args[1].AsObj().(runtime.TableRef)
	if !ok {
		return nil, unaryTypeErr("setmetatable", args[1].Type())
	}
	switch obj := args[0].AsObj().(type) {
	case runtime.TableRef:
		obj.Get().SetMetaTable(meta)
	case runtime.UserDataRef:
		obj.Get().SetMetaTable(meta)
	default:
		return nil, unaryTypeErr("setmetatable", args[0].Type())
	}
	return []value.Value{args[0]}, nil
}

// nativeGetMetaTable(obj) returns obj's metatable, or Nil if unset.
func nativeGetMetaTable(args []value.Value) ([]value.Value, error) {
	switch obj := args[0].AsObj().(type) {
	case runtime.TableRef:
		if meta, ok := obj.Get().MetaTable(); ok {
			return []value.Value{value.ObjOf(meta)}, nil
		}
	case runtime.UserDataRef:
		if meta, ok := obj.Get().MetaTable(); ok {
			return []value.Value{value.ObjOf(meta)}, nil
		}
	}
	return []value.Value{value.Nil}, nil
}

// finalizeUserData is installed as runtime.GCFinalizeHook: each GC
// cycle, the first time the collector's mark phase walks into a live
// UserData, it invokes `__gc` on its metatable (spec §4.9's MarkDown
// hook). Errors from a finalizer are swallowed — there is no live
// caller frame left to propagate them to.
func (vm *VM) finalizeUserData(ref runtime.UserDataRef) {
	meta, ok := ref.Get().MetaTable()
	if !ok {
		return
	}
	fn := meta.Get().GetStr("__gc")
	if fn.Type() != value.TypeFunction {
		return
	}
	_, _ = vm.call(fn, []value.Value{value.ObjOf(ref)}, 0, stateMeta)
}
