package runtime

import (
	"github.com/kerbonaut11/muna/internal/gc"
	"github.com/kerbonaut11/muna/internal/value"
)

// UpValues is the process-wide page allocator for UpValue.
var UpValues gc.Pool[UpValue]

// UpValueRef is a handle to a heap-allocated UpValue cell.
type UpValueRef struct{ gc.Ref[UpValue] }

func (r UpValueRef) HeapType() value.Type { return value.TypeUpValue }

// UpValue is a single Value slot shared by every closure that
// captures the same source local. Spec §4.8/§4.9 packs its mark bit
// into bit 127 of a 128-bit word; this port uses a plain bool instead,
// for the same reason Table.MetaTable does — there is no safe way to
// steal a bit from a Go value's representation the way the original's
// `u128` transmute does.
type UpValue struct {
	marked bool
	val    value.Value
}

// NewUpValue boxes val as an open upvalue cell.
func NewUpValue(val value.Value) UpValue { return UpValue{val: val} }

// AllocUpValue stores u in the UpValues pool and returns a handle.
func AllocUpValue(u UpValue) UpValueRef { return UpValueRef{UpValues.Alloc(u)} }

func (u *UpValue) IsMarked() bool { return u.marked }
func (u *UpValue) Mark()          { u.marked = true }
func (u *UpValue) Unmark()        { u.marked = false }

// Value reads the cell's current value.
func (u *UpValue) Value() value.Value { return u.val }

// SetValue writes through the cell. Every closure sharing this cell
// observes the write — that sharing IS the capture.
func (u *UpValue) SetValue(v value.Value) { u.val = v }
