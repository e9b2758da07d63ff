package runtime

import "github.com/kerbonaut11/muna/internal/value"

// MarkValue walks v and, if it is a heap kind, marks it and recurses
// into whatever it references — the Go rendition of the original's
// `MarkDown` trait. Table → each element plus its metatable; Function
// → each captured upvalue; UpValue → its stored value; UserData →
// its metatable, plus a `__gc` dispatch via GCFinalizeHook. Every
// branch checks IsMarked first so a cycle terminates on its second
// visit.
func MarkValue(v value.Value) {
	switch obj := v.AsObj().(type) {
	case TableRef:
		markTable(obj.Get())
	case FunctionRef:
		markFunction(obj.Get())
	case UpValueRef:
		markUpValue(obj.Get())
	case UserDataRef:
		markUserData(obj)
	}
}

func markTable(t *Table) {
	if t.IsMarked() {
		return
	}
	t.Mark()
	if meta, ok := t.MetaTable(); ok {
		markTable(meta.Get())
	}
	for _, v := range t.Array {
		MarkValue(v)
	}
	for _, v := range t.Map {
		MarkValue(v)
	}
}

func markFunction(f *Function) {
	if f.IsMarked() {
		return
	}
	f.Mark()
	for _, uv := range f.UpVals {
		markUpValue(uv.Get())
	}
}

func markUpValue(u *UpValue) {
	if u.IsMarked() {
		return
	}
	u.Mark()
	MarkValue(u.Value())
}

func markUserData(ref UserDataRef) {
	u := ref.Get()
	if u.IsMarked() {
		return
	}
	u.Mark()
	if meta, ok := u.MetaTable(); ok {
		markTable(meta.Get())
	}
	if GCFinalizeHook != nil {
		GCFinalizeHook(ref)
	}
}

// SweepAll runs one mark/sweep pass across every per-type pool. The
// caller (internal/vm) must have already marked every value reachable
// from its live roots (call stack, registers, evaluation stack) via
// MarkValue before calling this.
func SweepAll() {
	Tables.Sweep()
	Functions.Sweep()
	UpValues.Sweep()
	UserDatas.Sweep()
}
