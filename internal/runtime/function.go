package runtime

import (
	"github.com/kerbonaut11/muna/internal/gc"
	"github.com/kerbonaut11/muna/internal/value"
)

// Functions is the process-wide page allocator for Function.
var Functions gc.Pool[Function]

// FunctionRef is a handle to a heap-allocated Function.
type FunctionRef struct{ gc.Ref[Function] }

func (r FunctionRef) HeapType() value.Type { return value.TypeFunction }

// NativeFn is the calling contract for a host-provided callback: it
// receives the arguments already Nil-padded/truncated to ArgCount and
// returns up to RetCount results. The original instead hands a native
// callback the live `&mut Vm` and lets it poke registers directly
// (`fn(&mut Vm) -> Result<()>`); that contract can't be expressed here
// without internal/runtime importing internal/vm, which would cycle
// back against vm's own dependency on runtime's Table/Function types.
// internal/vm's call dispatch marshals its register window into this
// slice-based contract and back, so the effective behavior is the
// same.
type NativeFn func(args []value.Value) ([]value.Value, error)

// Function is either a script function (Entry is an instruction-word
// offset into the owning module) or a native callback, distinguished
// by Native being non-nil. Equality is by identity — two Functions
// are equal iff they are the same heap object, matching spec §4.5's
// "equal iff their code addresses coincide" (a script function's
// identity IS its code address there; here identity is the Go heap
// object's own address, reachable via FunctionRef equality).
type Function struct {
	marked bool

	Entry    int
	Native   NativeFn
	ArgCount uint8
	RetCount uint8
	UpVals   []UpValueRef
}

// AllocFunction stores f in the Functions pool and returns a handle.
func AllocFunction(f Function) FunctionRef { return FunctionRef{Functions.Alloc(f)} }

func (f *Function) IsMarked() bool { return f.marked }
func (f *Function) Mark()          { f.marked = true }
func (f *Function) Unmark()        { f.marked = false }

// IsNative reports whether this is a host callback rather than a
// script function.
func (f *Function) IsNative() bool { return f.Native != nil }
