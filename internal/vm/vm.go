package vm

import (
	"fmt"

	"github.com/kerbonaut11/muna/internal/bytecode"
	"github.com/kerbonaut11/muna/internal/config"
	"github.com/kerbonaut11/muna/internal/runtime"
	"github.com/kerbonaut11/muna/internal/value"
)

// VM executes a compiled bytecode.Module. It owns the evaluation stack
// shared by every active frame (intermediate expression results, call
// argument/return marshalling) and the call stack of frames, plus the
// global environment `_ENV` is bound to at startup.
type VM struct {
	module  *bytecode.Module
	globals runtime.TableRef

	stack  []value.Value
	frames []*frame

	// pendingReturn carries the padded/truncated results of whichever
	// frame's Ret (or Halt-as-empty-return) last popped, read back by
	// call once its own stopDepth is reached.
	pendingReturn []value.Value

	// rootLocals is the top-level chunk's local slot array, captured at
	// Halt just before its frame is discarded — the only way to observe
	// a script's top-level `local` declarations once Run has returned.
	rootLocals []value.Value

	gc           gcPolicy
	maxCallDepth int
}

// RootLocal reads slot idx of the top-level chunk's locals, valid only
// after Run has returned. Slot 0 is always `_ENV`; every top-level
// `local` declaration after that gets the next slot in declaration
// order.
func (vm *VM) RootLocal(idx uint16) value.Value {
	if int(idx) >= len(vm.rootLocals) {
		return value.Nil
	}
	return vm.rootLocals[idx]
}

// New builds a VM ready to run m with config.Default()'s tunables. See
// NewWithConfig.
func New(m *bytecode.Module) *VM {
	return NewWithConfig(m, config.Default())
}

// NewWithConfig builds a VM ready to run m: installs a fresh global
// table pre-populated with the builtins (spec's SUPPLEMENTED FEATURES:
// ipairs/kvpairs/range/setmetatable/getmetatable), wires
// runtime.GCFinalizeHook so `__gc` metamethods are dispatched through
// this VM's own call machinery, and sizes the stack/call-stack/GC
// threshold from cfg instead of a hardcoded constant — the knobs a
// real embedder would want exposed without recompiling.
func NewWithConfig(m *bytecode.Module, cfg config.Config) *VM {
	vm := &VM{
		module:       m,
		globals:      runtime.AllocTable(runtime.NewTable()),
		stack:        make([]value.Value, 0, cfg.StackCapacity),
		frames:       make([]*frame, 0, cfg.FrameCapacity),
		gc:           gcPolicy{threshold: cfg.GCInitialThreshold},
		maxCallDepth: cfg.MaxCallDepth,
	}
	vm.installBuiltins()
	runtime.GCFinalizeHook = vm.finalizeUserData
	return vm
}

// Run executes m from its first instruction to Halt, using
// config.Default()'s tunables. The module's implicit top-level
// function declares exactly one local, `_ENV` (compiler.Compile's
// root.declareLocal("_ENV")), which Run binds to the VM's global table
// before fetching a single instruction — every other global access
// throughout the module is ordinary upvalue capture of this same root
// slot (see internal/compiler's resolveEnv).
func Run(m *bytecode.Module) (*VM, error) {
	return RunWithConfig(m, config.Default())
}

// RunWithConfig is Run with an explicit config, for an embedder that
// loaded one via config.Load.
func RunWithConfig(m *bytecode.Module, cfg config.Config) (*VM, error) {
	vm := NewWithConfig(m, cfg)
	if err := vm.run(); err != nil {
		return vm, err
	}
	return vm, nil
}

func (vm *VM) run() error {
	root := &frame{
		locals: []value.Value{value.ObjOf(vm.globals)},
		pc:     0,
	}
	vm.frames = append(vm.frames, root)
	return vm.loop(0)
}

// Globals exposes the VM's global table, e.g. for a CLI front end to
// seed extra host bindings or read back a script's top-level results.
func (vm *VM) Globals() runtime.TableRef { return vm.globals }

// loop runs instructions until the call stack depth drops back to
// stopDepth — 0 for the root Run, or len(vm.frames)-1 at the moment a
// nested call pushed its own frame (see call below). Every script call
// — whether triggered by OpCall/OpGetMethod in the instruction stream
// or by a Go-level metamethod dispatch in ops.go/index.go — funnels
// through this same helper, so a nested call's "return to whoever
// invoked it" falls out of ordinary Go call-stack recursion instead of
// the original interpreter's Halt-sentinel/state-machine scheme (spec
// §4.10/§4.11's Normal/Suspended/Meta states are preserved on frame
// for disassembly/debugging, but carry no control-flow weight here).
func (vm *VM) loop(stopDepth int) error {
	for len(vm.frames) > stopDepth {
		if err := vm.step(); err != nil {
			return err
		}
		if vm.gc.shouldCollect() {
			vm.collectGarbage()
		}
	}
	return nil
}

// step fetches, decodes, and executes exactly one instruction from the
// top frame.
func (vm *VM) step() error {
	fr := vm.frames[len(vm.frames)-1]
	ins := vm.module.Code[fr.pc]
	fr.pc += ins.Op.Width()

	switch ins.Op {
	case bytecode.OpLoadNil:
		vm.push(value.Nil)
	case bytecode.OpLoadTrue:
		vm.push(value.BoolOf(true))
	case bytecode.OpLoadFalse:
		vm.push(value.BoolOf(false))
	case bytecode.OpLoadInt:
		vm.push(value.IntOf(int64(ins.IntLit())))
	case bytecode.OpLoadFloat:
		vm.push(value.FloatOf(float64(ins.FloatLit())))
	case bytecode.OpLoadStr:
		vm.push(value.StringOf(vm.module.Names[ins.Slot]))
	case bytecode.OpLoad:
		vm.push(fr.local(ins.Slot))
	case bytecode.OpWrite:
		fr.setLocal(ins.Slot, vm.pop())
	case bytecode.OpPop:
		vm.pop()

	case bytecode.OpAdd, bytecode.OpSub, bytecode.OpMul, bytecode.OpDiv, bytecode.OpIDiv,
		bytecode.OpPow, bytecode.OpMod, bytecode.OpConcat,
		bytecode.OpAnd, bytecode.OpOr, bytecode.OpXor, bytecode.OpShl, bytecode.OpShr,
		bytecode.OpBoolAnd, bytecode.OpBoolOr:
		rhs := vm.pop()
		lhs := vm.pop()
		result, err := vm.binaryOp(ins.Op, lhs, rhs)
		if err != nil {
			return err
		}
		vm.push(result)
	case bytecode.OpNeg, bytecode.OpNot, bytecode.OpBoolNot, bytecode.OpLen:
		x := vm.pop()
		result, err := vm.unaryOp(ins.Op, x)
		if err != nil {
			return err
		}
		vm.push(result)

	case bytecode.OpLess, bytecode.OpLessEq, bytecode.OpEq:
		rhs := vm.pop()
		lhs := vm.pop()
		result, err := vm.compareOp(ins.Op, lhs, rhs, ins.Polarity)
		if err != nil {
			return err
		}
		vm.push(value.BoolOf(result))

	case bytecode.OpJump:
		fr.pc += int(ins.Offset)
	case bytecode.OpJumpTrue:
		truthy, err := vm.truthy(vm.pop())
		if err != nil {
			return err
		}
		if truthy {
			fr.pc += int(ins.Offset)
		}
	case bytecode.OpJumpFalse:
		truthy, err := vm.truthy(vm.pop())
		if err != nil {
			return err
		}
		if !truthy {
			fr.pc += int(ins.Offset)
		}

	case bytecode.OpClosure:
		vm.execClosure(fr, ins)
	case bytecode.OpBindUpval:
		vm.pop() // the captured value Load/GetUpval just pushed; the
		// cell itself is recovered below, not this snapshot.
		fnVal := vm.stack[len(vm.stack)-1]
		fo := fnVal.AsObj().(runtime.FunctionRef).Get()
		// The source of a capture isn't an operand of BindUpval itself —
		// it rides on whichever Load/GetUpval immediately preceded it
		// (compileClosureInto always emits that exact pair), so recover
		// it by looking one instruction back.
		prev := vm.module.Code[fr.pc-2]
		var uv runtime.UpValueRef
		switch prev.Op {
		case bytecode.OpLoad:
			uv = fr.box(prev.Slot)
		case bytecode.OpGetUpval:
			uv = fr.fn.Get().UpVals[prev.Slot]
		}
		fo.UpVals[ins.Slot] = uv
	case bytecode.OpGetUpval:
		vm.push(vm.currentUpval(fr, ins.Slot).Value())
	case bytecode.OpSetUpval:
		vm.currentUpval(fr, ins.Slot).SetValue(vm.pop())

	case bytecode.OpCall:
		return vm.execCall(ins)
	case bytecode.OpRet:
		return vm.execRet(fr)
	case bytecode.OpHalt:
		if len(vm.frames) == 1 {
			// The root frame is about to vanish — snapshot its locals so a
			// host (the CLI, or a test) can still inspect top-level
			// `local` declarations after Run returns. A slot that a closure
			// captured is read through its upvalue cell, as frame.local does.
			vm.rootLocals = fr.locals
			for idx, uv := range fr.boxed {
				vm.rootLocals[idx] = uv.Get().Value()
			}
		}
		vm.frames = vm.frames[:len(vm.frames)-1]
		vm.pendingReturn = nil

	case bytecode.OpNewTable:
		arrayCap := int(ins.Slot & 0xFF)
		mapCap := int(ins.Slot >> 8)
		vm.push(value.ObjOf(runtime.AllocTable(runtime.NewTableWithCapacity(arrayCap, mapCap))))
	case bytecode.OpGet:
		key := vm.pop()
		obj := vm.pop()
		v, err := vm.indexGet(obj, key)
		if err != nil {
			return err
		}
		vm.push(v)
	case bytecode.OpSet:
		val := vm.pop()
		key := vm.pop()
		obj := vm.pop()
		if err := vm.indexSet(obj, key, val); err != nil {
			return err
		}
		vm.push(obj)
	case bytecode.OpSetPop:
		val := vm.pop()
		key := vm.pop()
		obj := vm.pop()
		if err := vm.indexSet(obj, key, val); err != nil {
			return err
		}
	case bytecode.OpGetMethod:
		recv := vm.pop()
		name := value.StringOf(vm.module.Names[ins.Slot])
		fn, err := vm.indexGet(recv, name)
		if err != nil {
			return err
		}
		vm.push(fn)
		vm.push(recv)

	default:
		return wrap(StackUnderflow, ins.Op.String(), "unhandled opcode")
	}
	return nil
}

// currentUpval resolves upvalue slot idx of fr's own closure — fr.fn
// is the FunctionRef this frame is an activation of, whose UpVals were
// populated by the Closure/BindUpval sequence that constructed it
// before this frame ever existed.
func (vm *VM) currentUpval(fr *frame, idx uint16) *runtime.UpValue {
	return fr.fn.Get().UpVals[idx].Get()
}

// execClosure constructs a new Function value from a Closure
// instruction. Its entry PC is computed the same way the compiler
// computed the Lit32 operand in the first place (spec §4.3's
// `target - (here + width)` relocation): the word position
// immediately following this 2-word instruction, plus the signed
// offset.
func (vm *VM) execClosure(fr *frame, ins bytecode.Instruction) {
	// fr.pc already sits just past this 2-word Closure instruction (see
	// step's unconditional pc advance), which is exactly the "here +
	// width" the compiler measured Lit32's offset from.
	entry := fr.pc + int(ins.Lit32)
	fo := runtime.AllocFunction(runtime.Function{
		Entry:    entry,
		ArgCount: ins.ArgCount,
		RetCount: 1,
		UpVals:   make([]runtime.UpValueRef, ins.UpvalCap),
	})
	vm.push(value.ObjOf(fo))
}

// execCall decodes OpCall's packed Slot (argCount low byte, expected
// return count high byte — see internal/compiler's callSlot), pops
// that many arguments and the callee off the shared stack, invokes it,
// and pushes the (padded/truncated) results back.
func (vm *VM) execCall(ins bytecode.Instruction) error {
	argCount := int(ins.Slot & 0xFF)
	expectedRet := int(ins.Slot >> 8)

	args := vm.popN(argCount)
	callee := vm.pop()

	results, err := vm.call(callee, args, expectedRet, stateNormal)
	if err != nil {
		return err
	}
	for _, r := range results {
		vm.push(r)
	}
	return nil
}

// execRet pops this frame's one produced value (every script function
// has RetCount == 1, spec §4.7/DESIGN.md), pads or truncates it to the
// frame's own expectedRet, records it as pendingReturn for whichever
// call invocation is waiting on this exact frame, and pops the frame.
func (vm *VM) execRet(fr *frame) error {
	produced := vm.pop()
	vm.frames = vm.frames[:len(vm.frames)-1]
	vm.pendingReturn = padValues([]value.Value{produced}, fr.expectedRet)
	return nil
}

// call is the single entry point for invoking a Function value, used
// uniformly by execCall (an OpCall in the instruction stream) and by
// every Go-level metamethod dispatch in ops.go/index.go. A native
// callback runs immediately with no frame pushed; a script function
// pushes its own frame and runs loop until that exact frame pops back
// down, then returns synchronously with its Ret's pendingReturn.
func (vm *VM) call(callee value.Value, args []value.Value, expectedRet int, state callState) ([]value.Value, error) {
	fnRef, ok := callee.AsObj().(runtime.FunctionRef)
	if !ok {
		return nil, wrap(NotCallable, "call", "", callee.Type())
	}
	fo := fnRef.Get()

	if fo.IsNative() {
		padded := padValues(args, int(fo.ArgCount))
		results, err := fo.Native(padded)
		if err != nil {
			return nil, err
		}
		return padValues(results, expectedRet), nil
	}

	if len(vm.frames) >= vm.maxCallDepth {
		return nil, wrap(StackOverflow, "call", fmt.Sprintf("%d", vm.maxCallDepth))
	}

	locals := padValues(args, int(fo.ArgCount))
	vm.frames = append(vm.frames, &frame{
		fn:          fnRef,
		locals:      locals,
		pc:          fo.Entry,
		expectedRet: expectedRet,
		state:       state,
	})
	stopDepth := len(vm.frames) - 1
	if err := vm.loop(stopDepth); err != nil {
		return nil, err
	}
	return vm.pendingReturn, nil
}

// padValues copies src into a slice of exactly n elements, truncating
// or Nil-padding as needed — the call protocol's "nil return slot"
// rule (spec §4.7) applied uniformly to both argument and return
// marshalling.
func padValues(src []value.Value, n int) []value.Value {
	out := make([]value.Value, n)
	copy(out, src)
	return out
}

func (vm *VM) push(v value.Value) { vm.stack = append(vm.stack, v) }

func (vm *VM) pop() value.Value {
	n := len(vm.stack) - 1
	v := vm.stack[n]
	vm.stack = vm.stack[:n]
	return v
}

// popN pops count values off the stack, returning them in their
// original push order.
func (vm *VM) popN(count int) []value.Value {
	n := len(vm.stack) - count
	out := make([]value.Value, count)
	copy(out, vm.stack[n:])
	vm.stack = vm.stack[:n]
	return out
}
