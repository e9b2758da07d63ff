package bytecode

import (
	"fmt"
	"strings"
)

// Disassemble renders m as a human-readable listing, one line per
// instruction, with the name table resolved inline for LoadStr and
// GetMethod operands. Load/Write/BindUpval/GetUpval/SetUpval operands
// are looked up in the same table, but the compiler emits a register
// or upvalue index there, not a name index, so the name shown for
// those opcodes need not be the variable's own.
func Disassemble(m *Module) string {
	var sb strings.Builder
	pc := 0
	for _, ins := range m.Code {
		fmt.Fprintf(&sb, "%4d  %s\n", pc, disasmOne(m, ins))
		pc += ins.Op.Width()
	}
	return sb.String()
}

func disasmOne(m *Module, ins Instruction) string {
	name := func(idx uint16) string {
		if int(idx) < len(m.Names) {
			return m.Names[idx]
		}
		return fmt.Sprintf("<%d>", idx)
	}

	switch ins.Op {
	case OpLoadInt:
		return fmt.Sprintf("LoadInt   %d", ins.IntLit())
	case OpLoadFloat:
		return fmt.Sprintf("LoadFloat %g", ins.FloatLit())
	case OpLoadStr:
		return fmt.Sprintf("LoadStr   %q", name(ins.Slot))
	case OpLoad, OpWrite, OpBindUpval, OpGetUpval, OpSetUpval, OpGetMethod:
		return fmt.Sprintf("%-9s %s", ins.Op, name(ins.Slot))
	case OpNewTable:
		return fmt.Sprintf("NewTable  arrayCap=%d mapCap=%d", ins.Slot&0xff, ins.Slot>>8)
	case OpJump, OpJumpTrue, OpJumpFalse:
		return fmt.Sprintf("%-9s %+d", ins.Op, ins.Offset)
	case OpLess, OpLessEq, OpEq:
		return fmt.Sprintf("%-9s polarity=%v", ins.Op, ins.Polarity)
	case OpClosure:
		return fmt.Sprintf("Closure   upvals=%d args=%d entry=%+d", ins.UpvalCap, ins.ArgCount, ins.Lit32)
	case OpCall:
		return fmt.Sprintf("Call      args=%d expectRet=%d", ins.Slot&0xff, ins.Slot>>8)
	default:
		return ins.Op.String()
	}
}
