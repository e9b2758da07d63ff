// Package runtime implements muna's heap-allocated value kinds —
// Table, Function, UpValue, UserData — each living in its own
// internal/gc.Pool and reachable from a value.Value via the
// value.HeapObject seam. String is deliberately NOT one of them: its
// dual small/large form (internal/value.RStr) is a plain Go value
// copied by the host's own garbage collector, so it never needs a
// mark bit or a page slot of its own — see DESIGN.md.
package runtime

import (
	"github.com/kerbonaut11/muna/internal/gc"
	"github.com/kerbonaut11/muna/internal/value"
)

// Tables is the process-wide page allocator for Table, mirroring the
// original's global TableAlloc singleton.
var Tables gc.Pool[Table]

// TableRef is a handle to a heap-allocated Table, and the concrete
// type a Value holds in its TypeTable arm.
type TableRef struct{ gc.Ref[Table] }

func (r TableRef) HeapType() value.Type { return value.TypeTable }

// Table is muna's array+hash hybrid container: a dense 1-based array
// prefix plus an open-addressed map for every other key.
type Table struct {
	marked bool
	meta   *TableRef

	Array []value.Value
	Map   map[value.Key]value.Value
}

// NewTable builds an empty table.
func NewTable() Table { return Table{Map: make(map[value.Key]value.Value)} }

// NewTableWithCapacity pre-sizes both parts — the target of the
// NewTable opcode's array/map capacity hint.
func NewTableWithCapacity(arrayCap, mapCap int) Table {
	return Table{Array: make([]value.Value, 0, arrayCap), Map: make(map[value.Key]value.Value, mapCap)}
}

// AllocTable stores t in the Tables pool and returns a handle to it.
func AllocTable(t Table) TableRef { return TableRef{Tables.Alloc(t)} }

func (t *Table) IsMarked() bool { return t.marked }
func (t *Table) Mark()          { t.marked = true }
func (t *Table) Unmark()        { t.marked = false }

// MetaTable returns t's metatable, if one is set. Spec §4.6 packs the
// GC mark bit into the low bit of this same pointer word; this port
// keeps them as two plain fields instead (`marked` above, `meta`
// here) — Go's precise, moving-capable garbage collector gives no
// safe way to steal bits out of a pointer the way the original's
// `usize` transmute does, so packing them would only reintroduce
// `unsafe` for no benefit under Go's memory model.
func (t *Table) MetaTable() (TableRef, bool) {
	if t.meta == nil {
		return TableRef{}, false
	}
	return *t.meta, true
}

// SetMetaTable installs meta as t's metatable.
func (t *Table) SetMetaTable(meta TableRef) { t.meta = &meta }

// Set implements §4.6's Set(k,v): a positive int key within
// `1..=len(Array)+1` extends or overwrites the array; every other
// valid key goes to the map. The original's array-bound check used
// strict `<`, which can never extend the array — not replicated here.
func (t *Table) Set(key, val value.Value) error {
	if key.Type() == value.TypeInt {
		i := key.AsInt()
		if i > 0 && int(i) <= len(t.Array)+1 {
			idx := int(i) - 1
			if idx == len(t.Array) {
				t.Array = append(t.Array, val)
			} else {
				t.Array[idx] = val
			}
			return nil
		}
	}
	k, err := value.KeyOf(key)
	if err != nil {
		return err
	}
	t.Map[k] = val
	return nil
}

// Get mirrors Set; an absent key returns Nil rather than an error.
func (t *Table) Get(key value.Value) (value.Value, error) {
	if key.Type() == value.TypeInt {
		i := key.AsInt()
		if i > 0 && int(i) <= len(t.Array) {
			return t.Array[i-1], nil
		}
	}
	k, err := value.KeyOf(key)
	if err != nil {
		return value.Nil, err
	}
	if v, ok := t.Map[k]; ok {
		return v, nil
	}
	return value.Nil, nil
}

// GetStr is a fast-path entry point for metamethod/name lookups that
// avoids constructing a Value for the key.
func (t *Table) GetStr(s string) value.Value {
	k, _ := value.KeyOf(value.StringOf(s)) // a string key is always valid
	if v, ok := t.Map[k]; ok {
		return v
	}
	return value.Nil
}

// Push appends to the array part.
func (t *Table) Push(val value.Value) { t.Array = append(t.Array, val) }

// Pop removes and returns the last array element.
func (t *Table) Pop() value.Value {
	n := len(t.Array)
	v := t.Array[n-1]
	t.Array = t.Array[:n-1]
	return v
}

// Len is the array-part length (spec §4.5's Len rule for tables).
func (t *Table) Len() int { return len(t.Array) }

// StructurallyEqual implements the metamethod-free half of §4.5's
// table equality rule: equal array length and map size, with every
// corresponding element recursively equal. The `__eq`-present and
// `__eq`-absent-but-tables-differ cases are the vm package's job,
// since only it can look up and invoke a metamethod.
func (t *Table) StructurallyEqual(other *Table) bool {
	if len(t.Array) != len(other.Array) || len(t.Map) != len(other.Map) {
		return false
	}
	for i := range t.Array {
		if !valuesRecursivelyEqual(t.Array[i], other.Array[i]) {
			return false
		}
	}
	for k, v := range t.Map {
		ov, ok := other.Map[k]
		if !ok || !valuesRecursivelyEqual(v, ov) {
			return false
		}
	}
	return true
}

func valuesRecursivelyEqual(a, b value.Value) bool {
	if a.Type() == value.TypeTable && b.Type() == value.TypeTable {
		ta := a.AsObj().(TableRef).Get()
		tb := b.AsObj().(TableRef).Get()
		return ta.StructurallyEqual(tb)
	}
	return value.Equal(a, b)
}
