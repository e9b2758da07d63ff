package compiler

import (
	"github.com/kerbonaut11/muna/internal/ast"
	"github.com/kerbonaut11/muna/internal/bytecode"
)

// localVar is one declared local (or argument) slot, tracked alongside
// the scope depth it was declared at so downScope knows which ones to
// drop.
type localVar struct {
	name  string
	slot  uint16
	depth int
}

// upvalEntry records where this function's i-th captured upvalue comes
// from in the enclosing function: either a Load of one of its locals,
// or a GetUpval of one of its own already-captured upvalues. The
// Closure instruction that constructs this function emits exactly one
// of those two, followed by BindUpval(i), for each entry in order.
type upvalEntry struct {
	name      string
	fromLocal bool
	parentIdx uint16
}

// identKind distinguishes where compileIdentLoad/
// compileIdentStoreFromTemp should read or write an identifier's value.
type identKind int

const (
	identLocal identKind = iota
	identUpvalue
)

type identRef struct {
	kind identKind
	idx  uint16
}

// FunctionCtx is the compile-time state the code generator keeps for
// one function body under compilation — spec §4.3's "for every
// function under compilation it maintains": a scoped local-variable
// stack, a lazily-built upvalue list, and a back-pointer to the
// enclosing function (nil for the module's implicit top-level
// function).
type FunctionCtx struct {
	c     *Compiler
	chunk int
	prev  *FunctionCtx

	locals     []localVar
	scopeDepth int
	nextSlot   uint16

	upvals     []upvalEntry
	upvalIndex map[string]int

	breakLabels []label
}

func newFunctionCtx(c *Compiler, chunk int, prev *FunctionCtx) *FunctionCtx {
	return &FunctionCtx{c: c, chunk: chunk, prev: prev, upvalIndex: make(map[string]int)}
}

// declareLocal allocates a fresh slot for name at the current scope
// depth. Slots are never reused across scopes within one function — a
// deliberate simplicity-over-density tradeoff: correctness doesn't
// depend on compacting the slot space, only on never aliasing two live
// locals onto the same slot.
func (f *FunctionCtx) declareLocal(name string) uint16 {
	slot := f.nextSlot
	f.nextSlot++
	f.locals = append(f.locals, localVar{name: name, slot: slot, depth: f.scopeDepth})
	return slot
}

// newTemp allocates a compiler-private slot invisible to user code
// (it is not added to the locals list, so no identifier resolves to
// it), used to
// hold a value that must be read back more than once while compiling
// a single expression or statement (a table literal's own reference,
// or a multi-assignment's evaluated right-hand sides).
func (f *FunctionCtx) newTemp() uint16 {
	slot := f.nextSlot
	f.nextSlot++
	return slot
}

func (f *FunctionCtx) upScope() { f.scopeDepth++ }

func (f *FunctionCtx) downScope() {
	depth := f.scopeDepth
	i := len(f.locals)
	for i > 0 && f.locals[i-1].depth == depth {
		i--
	}
	f.locals = f.locals[:i]
	f.scopeDepth--
}

// resolveName implements kind_of_ident (spec §4.3): search locals in
// the current frame innermost-out; then its own already-captured
// upvalues; otherwise recurse into the enclosing frame, and if it
// resolves there, record a fresh upvalue entry here referencing it and
// return that. The root frame's failure to resolve is reported via ok
// == false — that's the signal to the caller that name is a global,
// resolved via the captured `_ENV` table instead (see
// compileIdentLoad/compileIdentStoreFromTemp).
func (f *FunctionCtx) resolveName(name string) (identRef, bool) {
	for i := len(f.locals) - 1; i >= 0; i-- {
		if f.locals[i].name == name {
			return identRef{kind: identLocal, idx: f.locals[i].slot}, true
		}
	}
	if idx, ok := f.upvalIndex[name]; ok {
		return identRef{kind: identUpvalue, idx: uint16(idx)}, true
	}
	if f.prev == nil {
		return identRef{}, false
	}
	parentRef, ok := f.prev.resolveName(name)
	if !ok {
		return identRef{}, false
	}
	idx := len(f.upvals)
	f.upvals = append(f.upvals, upvalEntry{
		name:      name,
		fromLocal: parentRef.kind == identLocal,
		parentIdx: parentRef.idx,
	})
	f.upvalIndex[name] = idx
	return identRef{kind: identUpvalue, idx: uint16(idx)}, true
}

// emitLoadRef pushes the value a previously-resolved identRef refers
// to.
func (f *FunctionCtx) emitLoadRef(ref identRef) {
	switch ref.kind {
	case identLocal:
		f.c.emit(f.chunk, bytecode.Instruction{Op: bytecode.OpLoad, Slot: ref.idx})
	case identUpvalue:
		f.c.emit(f.chunk, bytecode.Instruction{Op: bytecode.OpGetUpval, Slot: ref.idx})
	}
}

// emitStoreRef pops the top of the stack into a previously-resolved
// identRef.
func (f *FunctionCtx) emitStoreRef(ref identRef) {
	switch ref.kind {
	case identLocal:
		f.c.emit(f.chunk, bytecode.Instruction{Op: bytecode.OpWrite, Slot: ref.idx})
	case identUpvalue:
		f.c.emit(f.chunk, bytecode.Instruction{Op: bytecode.OpSetUpval, Slot: ref.idx})
	}
}

// resolveEnv resolves the module-wide `_ENV` local declared by Compile
// on the root frame, capturing it as an upvalue down through every
// enclosing function between here and the root exactly like any other
// captured name. Global identifier access is not a distinct identRef
// kind — it is ordinary Get/SetPop indexing against whatever `_ENV`
// resolves to here.
func (f *FunctionCtx) resolveEnv() identRef {
	ref, ok := f.resolveName("_ENV")
	if !ok {
		// Unreachable: the root frame always declares _ENV first, so
		// every frame's chain terminates in it.
		panic("compiler: _ENV not in scope")
	}
	return ref
}

// compileClosureInto compiles args/body as a new nested function chunk
// and emits a Closure instruction (plus its BindUpval sequence) into
// the current function, leaving the constructed Function value on top
// of the stack.
func (f *FunctionCtx) compileClosureInto(args []string, body ast.Block) error {
	nested := newFunctionCtx(f.c, f.c.newChunk(), f)
	entry := f.c.mintLabel()
	f.c.placeLabel(nested.chunk, entry)

	for _, a := range args {
		nested.declareLocal(a)
	}
	if err := nested.compileBlock(body); err != nil {
		return err
	}
	f.c.emit(nested.chunk, bytecode.Instruction{Op: bytecode.OpLoadNil})
	f.c.emit(nested.chunk, bytecode.Instruction{Op: bytecode.OpRet})

	f.c.emitClosure(f.chunk, uint8(len(nested.upvals)), uint8(len(args)), entry)
	for i, uv := range nested.upvals {
		if uv.fromLocal {
			f.c.emit(f.chunk, bytecode.Instruction{Op: bytecode.OpLoad, Slot: uv.parentIdx})
		} else {
			f.c.emit(f.chunk, bytecode.Instruction{Op: bytecode.OpGetUpval, Slot: uv.parentIdx})
		}
		f.c.emit(f.chunk, bytecode.Instruction{Op: bytecode.OpBindUpval, Slot: uint16(i)})
	}
	return nil
}
