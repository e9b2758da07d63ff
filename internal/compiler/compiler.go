// Package compiler lowers an AST (internal/ast) into a bytecode.Module:
// a single-pass code generator that manages lexical scopes, resolves
// identifiers into local slots / upvalue slots / a captured global
// environment, emits closures, and relocates forward jump targets via
// a label scheme — the whole module is one flat instruction stream,
// with each compiled function's body appended as its own contiguous
// run of words (spec §4.3/§4.4).
package compiler

import (
	"github.com/kerbonaut11/muna/internal/ast"
	"github.com/kerbonaut11/muna/internal/bytecode"
)

// label is an opaque identifier minted by the Compiler; it is resolved
// to a concrete word offset only after every chunk has been emitted.
type label int

type labelPos struct {
	chunk    int
	instrIdx int
}

// fixup records an emitted instruction whose branch-offset operand
// (Offset for Jump/JumpTrue/JumpFalse, Lit32 for Closure) still needs
// patching once its target label's position is known.
type fixup struct {
	chunk    int
	instrIdx int
	label    label
}

// Compiler accumulates one or more function chunks (the main chunk is
// always chunks[0]) plus a flat name pool shared by every LoadStr and
// GetMethod operand, and flattens them into a single bytecode.Module
// once every chunk has finished compiling.
type Compiler struct {
	chunks [][]bytecode.Instruction

	names    []string
	nameIdxs map[string]uint16

	labelDefs     map[label]labelPos
	jumpFixups    []fixup
	closureFixups []fixup
	nextLabel     label
}

// NewCompiler returns an empty Compiler ready to compile a top-level
// block via Compile.
func NewCompiler() *Compiler {
	return &Compiler{
		nameIdxs:  make(map[string]uint16),
		labelDefs: make(map[label]labelPos),
	}
}

// Compile lowers block — a whole module's top-level statements — into
// a bytecode.Module. The top-level block runs as an implicit function
// whose sole local is `_ENV`, bound by the embedder before execution
// begins (see resolveName in funcctx.go); it ends in Halt rather than
// Ret, per spec §4.4's "fetch and execute one instruction at a time
// until Halt or fatal error".
func (c *Compiler) Compile(block ast.Block) (*bytecode.Module, error) {
	chunk := c.newChunk()
	root := newFunctionCtx(c, chunk, nil)
	root.declareLocal("_ENV")

	if err := root.compileBlock(block); err != nil {
		return nil, err
	}
	c.emit(chunk, bytecode.Instruction{Op: bytecode.OpHalt})

	return c.finish(), nil
}

// newChunk opens a new, initially empty instruction buffer and returns
// its index. chunks[0] is always the main/top-level chunk; every
// nested function gets its own chunk, appended to the final flat
// stream in the order it was compiled.
func (c *Compiler) newChunk() int {
	c.chunks = append(c.chunks, nil)
	return len(c.chunks) - 1
}

// emit appends ins to chunk and returns its index within that chunk.
func (c *Compiler) emit(chunk int, ins bytecode.Instruction) int {
	c.chunks[chunk] = append(c.chunks[chunk], ins)
	return len(c.chunks[chunk]) - 1
}

// mintLabel allocates a new, as-yet-unplaced label identifier.
func (c *Compiler) mintLabel() label {
	l := c.nextLabel
	c.nextLabel++
	return l
}

// placeLabel records that l refers to the next instruction about to be
// emitted into chunk. Every label placed this way is guaranteed to
// resolve to a real instruction by the time finish runs: every block
// this package compiles is followed by at least one more instruction
// (the enclosing construct's own jump/pop, or the function's trailing
// Ret/Halt), so a label placed at "the end of a block" never dangles
// past the final instruction of its chunk.
func (c *Compiler) placeLabel(chunk int, l label) {
	c.labelDefs[l] = labelPos{chunk: chunk, instrIdx: len(c.chunks[chunk])}
}

// emitJump emits a branch instruction of op (Jump/JumpTrue/JumpFalse)
// with a placeholder offset, recording a fixup to patch it once target
// is placed.
func (c *Compiler) emitJump(chunk int, op bytecode.OpCode, target label) {
	idx := c.emit(chunk, bytecode.Instruction{Op: op})
	c.jumpFixups = append(c.jumpFixups, fixup{chunk: chunk, instrIdx: idx, label: target})
}

// emitClosure emits a Closure instruction with a placeholder entry
// offset, recording a fixup to patch it once target (the nested
// function's entry label) is placed.
func (c *Compiler) emitClosure(chunk int, upvalCap, argCount uint8, target label) {
	idx := c.emit(chunk, bytecode.Instruction{Op: bytecode.OpClosure, UpvalCap: upvalCap, ArgCount: argCount})
	c.closureFixups = append(c.closureFixups, fixup{chunk: chunk, instrIdx: idx, label: target})
}

// nameIdx interns s into the shared name pool, returning its index.
// Identical strings share one entry, the way the original asm encoder
// deduplicates its string table.
func (c *Compiler) nameIdx(s string) uint16 {
	if idx, ok := c.nameIdxs[s]; ok {
		return idx
	}
	idx := uint16(len(c.names))
	c.names = append(c.names, s)
	c.nameIdxs[s] = idx
	return idx
}

// finish computes each chunk's word offset within the flattened
// stream, patches every jump/closure fixup with its relocated signed
// offset (spec §4.3: `target − (here + width)`), and concatenates the
// chunks into one Module.
func (c *Compiler) finish() *bytecode.Module {
	chunkWordStart := make([]int, len(c.chunks))
	instrWordStart := make([][]int, len(c.chunks))
	offset := 0
	for ci, chunk := range c.chunks {
		chunkWordStart[ci] = offset
		starts := make([]int, len(chunk))
		for ii, ins := range chunk {
			starts[ii] = offset
			offset += ins.Op.Width()
		}
		instrWordStart[ci] = starts
	}

	wordOf := func(p labelPos) int { return instrWordStart[p.chunk][p.instrIdx] }

	for _, fx := range c.jumpFixups {
		here := instrWordStart[fx.chunk][fx.instrIdx]
		ins := &c.chunks[fx.chunk][fx.instrIdx]
		target := wordOf(c.labelDefs[fx.label])
		ins.Offset = int16(target - (here + ins.Op.Width()))
	}
	for _, fx := range c.closureFixups {
		here := instrWordStart[fx.chunk][fx.instrIdx]
		ins := &c.chunks[fx.chunk][fx.instrIdx]
		target := wordOf(c.labelDefs[fx.label])
		ins.Lit32 = int32(target - (here + ins.Op.Width()))
	}

	var code []bytecode.Instruction
	for _, chunk := range c.chunks {
		code = append(code, chunk...)
	}
	return &bytecode.Module{Names: c.names, Code: code}
}
