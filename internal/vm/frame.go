package vm

import (
	"github.com/kerbonaut11/muna/internal/runtime"
	"github.com/kerbonaut11/muna/internal/value"
)

// callState mirrors spec §4.11's Normal/Meta frame tag. It carries no
// control-flow weight here — a Meta frame pops back to its caller the
// same way a Normal one does, since call/loop (see vm.go) already
// returns synchronously to whichever Go call initiated it — but it is
// kept for disassembly/debugging clarity and to document which frames
// were pushed by bytecode versus by a metamethod dispatch.
type callState int

const (
	stateNormal callState = iota
	stateMeta
)

// frame is one function activation: its own growable local/register
// slot array (sized to at least the callee's declared argument count,
// growing further exactly like Table.Set's array-extend rule as new
// locals/temps are declared beyond that), a lazily-populated map of
// which slots have been promoted to heap upvalue cells, and its
// program counter into the module's flat instruction stream.
type frame struct {
	fn          runtime.FunctionRef
	locals      []value.Value
	boxed       map[uint16]runtime.UpValueRef
	pc          int
	expectedRet int
	state       callState
}

// local reads slot idx, consulting boxed first: once BindUpval has
// promoted a slot to a shared cell, every subsequent Load/Write of
// that slot must observe the cell, not the frame's own backing array,
// since Closure may have captured it by reference.
func (fr *frame) local(idx uint16) value.Value {
	if fr.boxed != nil {
		if uv, ok := fr.boxed[idx]; ok {
			return uv.Get().Value()
		}
	}
	fr.growTo(idx)
	return fr.locals[idx]
}

func (fr *frame) setLocal(idx uint16, v value.Value) {
	if fr.boxed != nil {
		if uv, ok := fr.boxed[idx]; ok {
			uv.Get().SetValue(v)
			return
		}
	}
	fr.growTo(idx)
	fr.locals[idx] = v
}

// growTo extends locals so slot idx is addressable, the same
// write-extends pattern Table.Set uses for its array part — the
// compiler never emits a local-count operand for the VM to pre-size
// against, so the frame grows on demand instead of the Rust source's
// fixed 14-register bank.
func (fr *frame) growTo(idx uint16) {
	if int(idx) >= len(fr.locals) {
		grown := make([]value.Value, int(idx)+1)
		copy(grown, fr.locals)
		fr.locals = grown
	}
}

// box promotes slot idx to a heap UpValue cell the first time it is
// captured, seeding the cell with whatever value currently lives
// there, and returns the cell. Later BindUpval calls for the same
// slot (e.g. two sibling closures both capturing the same local)
// return the same cell, so they observe each other's writes.
func (fr *frame) box(idx uint16) runtime.UpValueRef {
	if fr.boxed == nil {
		fr.boxed = make(map[uint16]runtime.UpValueRef)
	}
	if uv, ok := fr.boxed[idx]; ok {
		return uv
	}
	fr.growTo(idx)
	uv := runtime.AllocUpValue(runtime.NewUpValue(fr.locals[idx]))
	fr.boxed[idx] = uv
	return uv
}
