package vm

import (
	"github.com/kerbonaut11/muna/internal/runtime"
	"github.com/kerbonaut11/muna/internal/value"
)

// indexGet implements spec §4.5's Get: a Table answers from its own
// array/map store first; a miss (or a UserData, which has no store of
// its own at all) falls through to `__idx` on the metatable, called as
// a 2-arg/1-return meta call (obj, key). A value with neither a store
// nor an `__idx` metamethod is an IndexedInvalidType error.
func (vm *VM) indexGet(obj, key value.Value) (value.Value, error) {
	if obj.Type() == value.TypeTable {
		t := obj.AsObj().(runtime.TableRef).Get()
		v, err := t.Get(key)
		if err != nil {
			return value.Nil, wrap(InvalidKey, "Get", err.Error())
		}
		if !v.IsNil() {
			return v, nil
		}
		if r, ok, err := vm.metaBinary("__idx", obj, key); ok {
			return r, err
		}
		return value.Nil, nil
	}

	if r, ok, err := vm.metaBinary("__idx", obj, key); ok {
		return r, err
	}
	return value.Nil, wrap(IndexedInvalidType, "Get", "", obj.Type())
}

// indexSet implements Set/SetPop: a Table writes straight into its own
// store for a key that's already present there; `__newidx`, when set,
// only comes into play for a key the store doesn't have yet — the same
// "previously unset" condition spec's Set rule names, and the ordinary
// Lua-family meaning of `__newindex` (it never fires on an existing
// key). A non-Table always needs `__newidx`, since it has no store of
// its own.
func (vm *VM) indexSet(obj, key, val value.Value) error {
	if obj.Type() == value.TypeTable {
		t := obj.AsObj().(runtime.TableRef).Get()
		existing, err := t.Get(key)
		if err != nil {
			return wrap(InvalidKey, "Set", err.Error())
		}
		if existing.IsNil() {
			if meta, has := t.MetaTable(); has {
				if fn := meta.Get().GetStr("__newidx"); fn.Type() == value.TypeFunction {
					_, err := vm.call(fn, []value.Value{obj, key, val}, 0, stateMeta)
					return err
				}
			}
		}
		if err := t.Set(key, val); err != nil {
			return wrap(InvalidKey, "Set", err.Error())
		}
		return nil
	}

	if ok, err := vm.metaTernary("__newidx", obj, key, val); ok {
		return err
	}
	return wrap(IndexedInvalidType, "Set", "", obj.Type())
}
