package compiler

import (
	"github.com/kerbonaut11/muna/internal/ast"
	"github.com/kerbonaut11/muna/internal/bytecode"
)

// compileBlock compiles b inside a fresh lexical scope. Local function
// declarations are pre-bound in a first sweep (their slot exists
// before any statement runs, so mutually-recursive and self-recursive
// local functions resolve correctly), matching spec §4.3's "discovered
// in a first sweep" rule for function definitions.
func (f *FunctionCtx) compileBlock(b ast.Block) error {
	f.upScope()
	defer f.downScope()

	for _, st := range b {
		if fd, ok := st.(*ast.FuncDecl); ok && fd.IsLocal {
			f.declareLocal(fd.Name)
		}
	}
	for _, st := range b {
		if err := f.compileStmt(st); err != nil {
			return err
		}
	}
	return nil
}

func (f *FunctionCtx) compileStmt(s ast.Stmt) error {
	switch st := s.(type) {
	case *ast.Declaration:
		return f.compileDeclaration(st)
	case *ast.Assign:
		return f.compileAssign(st)
	case *ast.ExprStmt:
		return f.compileExprStmt(st)
	case *ast.IfStmt:
		return f.compileIf(st)
	case *ast.WhileStmt:
		return f.compileWhile(st)
	case *ast.ForStmt:
		return f.compileFor(st)
	case *ast.BreakStmt:
		return f.compileBreak(st)
	case *ast.ReturnStmt:
		return f.compileReturn(st)
	case *ast.FuncDecl:
		return f.compileFuncDecl(st)
	default:
		return wrap(UnknownNode, 0, "statement")
	}
}

func (f *FunctionCtx) compileExprStmt(s *ast.ExprStmt) error {
	switch call := s.X.(type) {
	case *ast.Call:
		return f.compileCall(call, 0)
	case *ast.MethodCall:
		return f.compileMethodCall(call, 0)
	default:
		if err := f.compileExpr(s.X); err != nil {
			return err
		}
		f.c.emit(f.chunk, bytecode.Instruction{Op: bytecode.OpPop})
		return nil
	}
}

// compileDeclaration evaluates every right-hand side first (padding
// with Nil for any name lacking one), THEN declares the new local
// slots — so `local x = x + 1` reads the outer `x`, not the
// not-yet-declared one — and assigns in reverse push order, which
// lines up with the values' LIFO position on the stack.
func (f *FunctionCtx) compileDeclaration(s *ast.Declaration) error {
	for i := range s.Names {
		if i < len(s.Rhs) {
			if err := f.compileExpr(s.Rhs[i]); err != nil {
				return err
			}
		} else {
			f.c.emit(f.chunk, bytecode.Instruction{Op: bytecode.OpLoadNil})
		}
	}
	slots := make([]uint16, len(s.Names))
	for i, name := range s.Names {
		slots[i] = f.declareLocal(name)
	}
	for i := len(s.Names) - 1; i >= 0; i-- {
		f.c.emit(f.chunk, bytecode.Instruction{Op: bytecode.OpWrite, Slot: slots[i]})
	}
	return nil
}

// compileAssign evaluates every right-hand side into a fresh temp slot
// (so all of them observe pre-assignment state, matching Lua's
// evaluate-then-assign semantics for `a, b = b, a`-style swaps), then
// stores each temp into its left-hand target in left-to-right order.
func (f *FunctionCtx) compileAssign(s *ast.Assign) error {
	temps := make([]uint16, len(s.Rhs))
	for i, rhs := range s.Rhs {
		if err := f.compileExpr(rhs); err != nil {
			return err
		}
		temps[i] = f.newTemp()
		f.c.emit(f.chunk, bytecode.Instruction{Op: bytecode.OpWrite, Slot: temps[i]})
	}
	for i, lhs := range s.Lhs {
		valueSlot := temps[0]
		if i < len(temps) {
			valueSlot = temps[i]
		}
		if err := f.compileStoreInto(lhs, valueSlot); err != nil {
			return err
		}
	}
	return nil
}

// compileStoreInto stores the value held in valueSlot into lhs, which
// is either an identifier or an indexed (`t[k]`/`t.field`) target.
func (f *FunctionCtx) compileStoreInto(lhs ast.Expr, valueSlot uint16) error {
	switch x := lhs.(type) {
	case *ast.Ident:
		f.compileIdentStoreFromTemp(x.Name, valueSlot)
		return nil
	case *ast.Index:
		if err := f.compileExpr(x.Table); err != nil {
			return err
		}
		if err := f.compileExpr(x.Idx); err != nil {
			return err
		}
		f.c.emit(f.chunk, bytecode.Instruction{Op: bytecode.OpLoad, Slot: valueSlot})
		f.c.emit(f.chunk, bytecode.Instruction{Op: bytecode.OpSetPop})
		return nil
	default:
		return wrap(UnknownNode, 0, "assignment target")
	}
}

// compileIf lowers the Cond/Next chain: each arm emits a JumpFalse to
// its own else-label and a Jump to the whole chain's shared end-label
// after its body, per spec §4.3.
func (f *FunctionCtx) compileIf(s *ast.IfStmt) error {
	end := f.c.mintLabel()
	if err := f.compileIfArm(s, end); err != nil {
		return err
	}
	f.c.placeLabel(f.chunk, end)
	return nil
}

func (f *FunctionCtx) compileIfArm(s *ast.IfStmt, end label) error {
	if s.Cond == nil {
		return f.compileBlock(s.Body)
	}
	next := f.c.mintLabel()
	if err := f.compileExpr(s.Cond); err != nil {
		return err
	}
	f.c.emitJump(f.chunk, bytecode.OpJumpFalse, next)
	if err := f.compileBlock(s.Body); err != nil {
		return err
	}
	f.c.emitJump(f.chunk, bytecode.OpJump, end)
	f.c.placeLabel(f.chunk, next)
	if s.Next != nil {
		return f.compileIfArm(s.Next, end)
	}
	return nil
}

func (f *FunctionCtx) compileWhile(s *ast.WhileStmt) error {
	start := f.c.mintLabel()
	end := f.c.mintLabel()
	f.c.placeLabel(f.chunk, start)
	if err := f.compileExpr(s.Cond); err != nil {
		return err
	}
	f.c.emitJump(f.chunk, bytecode.OpJumpFalse, end)

	f.breakLabels = append(f.breakLabels, end)
	err := f.compileBlock(s.Body)
	f.breakLabels = f.breakLabels[:len(f.breakLabels)-1]
	if err != nil {
		return err
	}

	f.c.emitJump(f.chunk, bytecode.OpJump, start)
	f.c.placeLabel(f.chunk, end)
	return nil
}

// compileFor lowers all four iteration kinds (ipairs/kvpairs/range/
// generic) to the same shape: obtain an iterator function, then
// repeatedly Call it (expecting up to 2 returns) until it yields Nil
// as its first result — the generic-for desugaring Lua itself uses
// for `pairs`/`ipairs`. ipairs/kvpairs/range differ only in how the
// iterator function is obtained; `range`/`ipairs`/`kvpairs` are
// reserved keywords rather than ordinary identifiers (see the parser),
// so each is modeled here as a call to a same-named global the host
// VM provides as a builtin, with the parsed driver expression as its
// sole argument.
func (f *FunctionCtx) compileFor(s *ast.ForStmt) error {
	iterFn := f.newTemp()
	if err := f.compileIterSource(s); err != nil {
		return err
	}
	f.c.emit(f.chunk, bytecode.Instruction{Op: bytecode.OpWrite, Slot: iterFn})

	var1 := f.newTemp()
	var2 := f.newTemp()

	start := f.c.mintLabel()
	end := f.c.mintLabel()
	f.c.placeLabel(f.chunk, start)

	f.c.emit(f.chunk, bytecode.Instruction{Op: bytecode.OpLoad, Slot: iterFn})
	f.c.emit(f.chunk, bytecode.Instruction{Op: bytecode.OpCall, Slot: callSlot(0, 2)})
	f.c.emit(f.chunk, bytecode.Instruction{Op: bytecode.OpWrite, Slot: var2})
	f.c.emit(f.chunk, bytecode.Instruction{Op: bytecode.OpWrite, Slot: var1})

	f.c.emit(f.chunk, bytecode.Instruction{Op: bytecode.OpLoad, Slot: var1})
	f.c.emit(f.chunk, bytecode.Instruction{Op: bytecode.OpLoadNil})
	f.c.emit(f.chunk, bytecode.Instruction{Op: bytecode.OpEq, Polarity: true})
	f.c.emitJump(f.chunk, bytecode.OpJumpTrue, end)

	f.upScope()
	f.declareLoopVar(s.Var1, var1)
	if s.Var2 != "" {
		f.declareLoopVar(s.Var2, var2)
	}
	f.breakLabels = append(f.breakLabels, end)
	err := f.compileBlock(s.Body)
	f.breakLabels = f.breakLabels[:len(f.breakLabels)-1]
	f.downScope()
	if err != nil {
		return err
	}

	f.c.emitJump(f.chunk, bytecode.OpJump, start)
	f.c.placeLabel(f.chunk, end)
	return nil
}

// declareLoopVar aliases name directly onto an existing temp slot
// (var1/var2), rather than allocating a new one and copying — the
// loop body reads/writes the iteration variable in place.
func (f *FunctionCtx) declareLoopVar(name string, slot uint16) {
	f.locals = append(f.locals, localVar{name: name, slot: slot, depth: f.scopeDepth})
}

// compileIterSource pushes the iterator function the for-loop will
// call repeatedly.
func (f *FunctionCtx) compileIterSource(s *ast.ForStmt) error {
	var builtin string
	switch s.Kind {
	case ast.IterGeneric:
		return f.compileExpr(s.Driver)
	case ast.IterIPairs:
		builtin = "ipairs"
	case ast.IterKVPairs:
		builtin = "kvpairs"
	case ast.IterRange:
		builtin = "range"
	default:
		return wrap(UnknownNode, s.Line, "for-in iteration kind")
	}
	f.compileIdentLoad(builtin)
	if err := f.compileExpr(s.Driver); err != nil {
		return err
	}
	f.c.emit(f.chunk, bytecode.Instruction{Op: bytecode.OpCall, Slot: callSlot(1, 1)})
	return nil
}

func (f *FunctionCtx) compileBreak(s *ast.BreakStmt) error {
	if len(f.breakLabels) == 0 {
		return wrap(BreakOutsideLoop, s.Line, "")
	}
	f.c.emitJump(f.chunk, bytecode.OpJump, f.breakLabels[len(f.breakLabels)-1])
	return nil
}

// compileReturn always leaves exactly one value for Ret: a function's
// declared return count is fixed at 1 (the call protocol's "nil return
// slot" the caller pre-pushes, per spec §4.7), so a bare `return;`
// pushes Nil explicitly rather than leaving the slot's caller-supplied
// default untouched.
func (f *FunctionCtx) compileReturn(s *ast.ReturnStmt) error {
	if s.X != nil {
		if err := f.compileExpr(s.X); err != nil {
			return err
		}
	} else {
		f.c.emit(f.chunk, bytecode.Instruction{Op: bytecode.OpLoadNil})
	}
	f.c.emit(f.chunk, bytecode.Instruction{Op: bytecode.OpRet})
	return nil
}

// compileFuncDecl builds the closure and stores it: into an
// already-declared (by compileBlock's pre-sweep) local slot for a
// local function, or into the captured `_ENV` table under its name
// for a global one. A global function's own body resolves its own
// name as an ordinary global at call time, so direct and mutual
// recursion both work without any special pre-binding there.
func (f *FunctionCtx) compileFuncDecl(s *ast.FuncDecl) error {
	if s.IsLocal {
		ref, ok := f.resolveName(s.Name)
		if !ok {
			// Defensive: compileBlock's pre-sweep should have declared
			// this already for every local FuncDecl it contains.
			ref = identRef{kind: identLocal, idx: f.declareLocal(s.Name)}
		}
		if err := f.compileClosureInto(s.Args, s.Body); err != nil {
			return err
		}
		f.emitStoreRef(ref)
		return nil
	}

	f.emitLoadRef(f.resolveEnv())
	idx := f.c.nameIdx(s.Name)
	f.c.emit(f.chunk, bytecode.Instruction{Op: bytecode.OpLoadStr, Slot: idx})
	if err := f.compileClosureInto(s.Args, s.Body); err != nil {
		return err
	}
	f.c.emit(f.chunk, bytecode.Instruction{Op: bytecode.OpSetPop})
	return nil
}
