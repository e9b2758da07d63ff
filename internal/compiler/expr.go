package compiler

import (
	"github.com/kerbonaut11/muna/internal/ast"
	"github.com/kerbonaut11/muna/internal/bytecode"
)

// compileExpr emits code that leaves exactly one value on top of the
// evaluation stack.
func (f *FunctionCtx) compileExpr(e ast.Expr) error {
	switch x := e.(type) {
	case *ast.NilLit:
		f.c.emit(f.chunk, bytecode.Instruction{Op: bytecode.OpLoadNil})
		return nil
	case *ast.BoolLit:
		op := bytecode.OpLoadFalse
		if x.Value {
			op = bytecode.OpLoadTrue
		}
		f.c.emit(f.chunk, bytecode.Instruction{Op: op})
		return nil
	case *ast.IntLit:
		f.c.emit(f.chunk, bytecode.LoadIntOf(int32(x.Value)))
		return nil
	case *ast.FloatLit:
		f.c.emit(f.chunk, bytecode.LoadFloatOf(x.Value))
		return nil
	case *ast.StrLit:
		idx := f.c.nameIdx(x.Value)
		f.c.emit(f.chunk, bytecode.Instruction{Op: bytecode.OpLoadStr, Slot: idx})
		return nil
	case *ast.Ident:
		f.compileIdentLoad(x.Name)
		return nil
	case *ast.TableLit:
		return f.compileTableLit(x)
	case *ast.FuncLit:
		return f.compileClosureInto(x.Args, x.Body)
	case *ast.Unary:
		return f.compileUnary(x)
	case *ast.Binary:
		return f.compileBinary(x)
	case *ast.Index:
		if err := f.compileExpr(x.Table); err != nil {
			return err
		}
		if err := f.compileExpr(x.Idx); err != nil {
			return err
		}
		f.c.emit(f.chunk, bytecode.Instruction{Op: bytecode.OpGet})
		return nil
	case *ast.Call:
		return f.compileCall(x, 1)
	case *ast.MethodCall:
		return f.compileMethodCall(x, 1)
	default:
		return wrap(UnknownNode, 0, "expression")
	}
}

// compileIdentLoad pushes name's value: a Load/GetUpval if it resolves
// lexically, otherwise an indexed read of the captured `_ENV` table.
func (f *FunctionCtx) compileIdentLoad(name string) {
	if ref, ok := f.resolveName(name); ok {
		f.emitLoadRef(ref)
		return
	}
	f.emitLoadRef(f.resolveEnv())
	idx := f.c.nameIdx(name)
	f.c.emit(f.chunk, bytecode.Instruction{Op: bytecode.OpLoadStr, Slot: idx})
	f.c.emit(f.chunk, bytecode.Instruction{Op: bytecode.OpGet})
}

// compileIdentStoreFromTemp stores the value held in local slot
// valueSlot into name: a Load of valueSlot then Write/SetUpval if name
// resolves lexically, otherwise a SetPop of it against the captured
// `_ENV` table. The caller must already have written the value into
// valueSlot.
func (f *FunctionCtx) compileIdentStoreFromTemp(name string, valueSlot uint16) {
	if ref, ok := f.resolveName(name); ok {
		f.c.emit(f.chunk, bytecode.Instruction{Op: bytecode.OpLoad, Slot: valueSlot})
		f.emitStoreRef(ref)
		return
	}
	f.emitLoadRef(f.resolveEnv())
	idx := f.c.nameIdx(name)
	f.c.emit(f.chunk, bytecode.Instruction{Op: bytecode.OpLoadStr, Slot: idx})
	f.c.emit(f.chunk, bytecode.Instruction{Op: bytecode.OpLoad, Slot: valueSlot})
	f.c.emit(f.chunk, bytecode.Instruction{Op: bytecode.OpSetPop})
}

func (f *FunctionCtx) compileUnary(u *ast.Unary) error {
	if err := f.compileExpr(u.X); err != nil {
		return err
	}
	var op bytecode.OpCode
	switch u.Op {
	case ast.UnNeg:
		op = bytecode.OpNeg
	case ast.UnNot:
		op = bytecode.OpNot
	case ast.UnBoolNot:
		op = bytecode.OpBoolNot
	case ast.UnLen:
		op = bytecode.OpLen
	default:
		return wrap(UnknownNode, u.Line, "unary operator")
	}
	f.c.emit(f.chunk, bytecode.Instruction{Op: op})
	return nil
}

// compileBinary handles every BinOp. Comparisons reuse Less/LessEq/Eq
// with a polarity flag for their negated forms (>=, >, ~=), per
// opcode.go's doc comment on OpLess/OpLessEq/OpEq. BoolAnd/BoolOr are
// plain eager binary ops here, not short-circuiting control flow —
// the bytecode gives them a dedicated opcode each rather than a
// jump-based lowering, so both operands are always evaluated.
func (f *FunctionCtx) compileBinary(b *ast.Binary) error {
	if err := f.compileExpr(b.Lhs); err != nil {
		return err
	}
	if err := f.compileExpr(b.Rhs); err != nil {
		return err
	}
	switch b.Op {
	case ast.BinAdd:
		f.c.emit(f.chunk, bytecode.Instruction{Op: bytecode.OpAdd})
	case ast.BinSub:
		f.c.emit(f.chunk, bytecode.Instruction{Op: bytecode.OpSub})
	case ast.BinMul:
		f.c.emit(f.chunk, bytecode.Instruction{Op: bytecode.OpMul})
	case ast.BinDiv:
		f.c.emit(f.chunk, bytecode.Instruction{Op: bytecode.OpDiv})
	case ast.BinIDiv:
		f.c.emit(f.chunk, bytecode.Instruction{Op: bytecode.OpIDiv})
	case ast.BinMod:
		f.c.emit(f.chunk, bytecode.Instruction{Op: bytecode.OpMod})
	case ast.BinPow:
		f.c.emit(f.chunk, bytecode.Instruction{Op: bytecode.OpPow})
	case ast.BinConcat:
		f.c.emit(f.chunk, bytecode.Instruction{Op: bytecode.OpConcat})
	case ast.BinAnd:
		f.c.emit(f.chunk, bytecode.Instruction{Op: bytecode.OpAnd})
	case ast.BinOr:
		f.c.emit(f.chunk, bytecode.Instruction{Op: bytecode.OpOr})
	case ast.BinXor:
		f.c.emit(f.chunk, bytecode.Instruction{Op: bytecode.OpXor})
	case ast.BinShl:
		f.c.emit(f.chunk, bytecode.Instruction{Op: bytecode.OpShl})
	case ast.BinShr:
		f.c.emit(f.chunk, bytecode.Instruction{Op: bytecode.OpShr})
	case ast.BinBoolAnd:
		f.c.emit(f.chunk, bytecode.Instruction{Op: bytecode.OpBoolAnd})
	case ast.BinBoolOr:
		f.c.emit(f.chunk, bytecode.Instruction{Op: bytecode.OpBoolOr})
	case ast.BinEq:
		f.c.emit(f.chunk, bytecode.Instruction{Op: bytecode.OpEq, Polarity: true})
	case ast.BinNotEq:
		f.c.emit(f.chunk, bytecode.Instruction{Op: bytecode.OpEq, Polarity: false})
	case ast.BinLess:
		f.c.emit(f.chunk, bytecode.Instruction{Op: bytecode.OpLess, Polarity: true})
	case ast.BinGreaterEq:
		f.c.emit(f.chunk, bytecode.Instruction{Op: bytecode.OpLess, Polarity: false})
	case ast.BinLessEq:
		f.c.emit(f.chunk, bytecode.Instruction{Op: bytecode.OpLessEq, Polarity: true})
	case ast.BinGreater:
		f.c.emit(f.chunk, bytecode.Instruction{Op: bytecode.OpLessEq, Polarity: false})
	default:
		return wrap(UnknownNode, b.Line, "binary operator")
	}
	return nil
}

// compileCall pushes the callee, then each argument in order, then
// Call. Call's Slot packs both the number of arguments just pushed
// (low byte) and the caller's expected return count (high byte, 1 in
// expression position, 0 as a bare statement) — the same two-halves
// convention compileTableLit's NewTable uses, and the only way the VM
// can tell how many stack entries belong to this call when the callee
// is resolved dynamically and its declared argument count may differ
// from the call site's.
func (f *FunctionCtx) compileCall(call *ast.Call, expected int) error {
	if err := f.compileExpr(call.Fn); err != nil {
		return err
	}
	for _, a := range call.Args {
		if err := f.compileExpr(a); err != nil {
			return err
		}
	}
	f.c.emit(f.chunk, bytecode.Instruction{Op: bytecode.OpCall, Slot: callSlot(len(call.Args), expected)})
	return nil
}

// compileMethodCall desugars `recv:name(args...)`: GetMethod pops the
// receiver and pushes the resolved method function followed by the
// receiver again as the implicit self argument, so the stack is ready
// for a normal Call once the remaining arguments are pushed — self
// counts as one more argument in the packed Call.Slot.
func (f *FunctionCtx) compileMethodCall(mc *ast.MethodCall, expected int) error {
	if err := f.compileExpr(mc.Recv); err != nil {
		return err
	}
	idx := f.c.nameIdx(mc.Name)
	f.c.emit(f.chunk, bytecode.Instruction{Op: bytecode.OpGetMethod, Slot: idx})
	for _, a := range mc.Args {
		if err := f.compileExpr(a); err != nil {
			return err
		}
	}
	f.c.emit(f.chunk, bytecode.Instruction{Op: bytecode.OpCall, Slot: callSlot(len(mc.Args)+1, expected)})
	return nil
}

// callSlot packs a Call instruction's two halves: argCount in the low
// byte, expectedReturns in the high byte.
func callSlot(argCount, expectedReturns int) uint16 {
	return uint16(argCount) | uint16(expectedReturns)<<8
}

// compileTableLit builds the table in a temp slot so each field's Set
// can re-load the table reference without a Dup opcode (the
// instruction set has none): NewTable, stash it, then for each field
// push table/key/value and SetPop.
func (f *FunctionCtx) compileTableLit(lit *ast.TableLit) error {
	var arrayCap, mapCap int
	for _, fld := range lit.Fields {
		if fld.Key == nil {
			arrayCap++
		} else {
			mapCap++
		}
	}
	if arrayCap > 255 {
		arrayCap = 255
	}
	if mapCap > 255 {
		mapCap = 255
	}
	f.c.emit(f.chunk, bytecode.Instruction{Op: bytecode.OpNewTable, Slot: uint16(arrayCap) | uint16(mapCap)<<8})

	tmp := f.newTemp()
	f.c.emit(f.chunk, bytecode.Instruction{Op: bytecode.OpWrite, Slot: tmp})

	nextIndex := int64(1)
	for _, fld := range lit.Fields {
		f.c.emit(f.chunk, bytecode.Instruction{Op: bytecode.OpLoad, Slot: tmp})
		if fld.Key == nil {
			f.c.emit(f.chunk, bytecode.LoadIntOf(int32(nextIndex)))
			nextIndex++
		} else if err := f.compileExpr(fld.Key); err != nil {
			return err
		}
		if err := f.compileExpr(fld.Value); err != nil {
			return err
		}
		f.c.emit(f.chunk, bytecode.Instruction{Op: bytecode.OpSetPop})
	}

	f.c.emit(f.chunk, bytecode.Instruction{Op: bytecode.OpLoad, Slot: tmp})
	return nil
}
