// Package bytecode defines muna's instruction set and binary module
// format: 32-bit fixed-width instruction words, with the opcode byte
// rotated into byte position 2 of the little-endian word (see
// EncodeInstruction), and a name-table-prefixed on-disk layout (see
// Module).
package bytecode

// OpCode identifies an instruction. Numeric values are fixed (not
// iota-assigned) so that a compiled module's opcode bytes are portable
// across builds — gaps at 5, 29, and 45 are deliberate and reserved.
type OpCode byte

const (
	// OpLoadNil pushes Nil into the instruction's target register.
	// Format: [op][0][0][0]
	OpLoadNil OpCode = 0
	// OpLoadTrue pushes Bool(true).
	OpLoadTrue OpCode = 1
	// OpLoadFalse pushes Bool(false).
	OpLoadFalse OpCode = 2
	// OpLoadInt pushes Int(n), where n is the signed 32-bit literal in
	// the following word. 2-word instruction.
	OpLoadInt OpCode = 3
	// OpLoadFloat pushes Float(n), where n is the IEEE-754 float32
	// literal in the following word. 2-word instruction.
	OpLoadFloat OpCode = 4

	// OpLoadStr pushes String(name_table[idx]).
	// Format: [op][idx low][idx high]
	OpLoadStr OpCode = 6
	// OpLoad reads local/register slot `idx`.
	OpLoad OpCode = 7
	// OpWrite writes the top value into local/register slot `idx`.
	OpWrite OpCode = 8

	// Arithmetic family (spec §6: 9-16, in this exact order).
	OpAdd    OpCode = 9
	OpSub    OpCode = 10
	OpMul    OpCode = 11
	OpDiv    OpCode = 12
	OpIDiv   OpCode = 13
	OpPow    OpCode = 14
	OpMod    OpCode = 15
	OpConcat OpCode = 16

	// OpClosure constructs a Function value bound to UpvalCap upvalue
	// cells, declaring ArgCount arguments, whose first instruction is
	// at the signed word-offset carried in the second word. 2-word
	// instruction; must be followed by UpvalCap BindUpval instructions.
	OpClosure OpCode = 17
	// OpCall invokes the callee that sits on the stack below its
	// arguments. The instruction's Slot operand packs the argument
	// count (low byte) and the expected return count (high byte), see
	// DESIGN.md's Open Question resolution.
	OpCall OpCode = 18
	// OpRet pops the current call frame, padding or truncating to the
	// caller's expected return count.
	OpRet OpCode = 19

	OpBindUpval OpCode = 20
	OpGetUpval  OpCode = 21
	OpSetUpval  OpCode = 22

	// OpJump/OpJumpTrue/OpJumpFalse carry a signed 16-bit offset, in
	// instruction-words, applied to the program counter after fetch.
	OpJump      OpCode = 23
	OpJumpTrue  OpCode = 24
	OpJumpFalse OpCode = 25

	// OpLess/OpLessEq/OpEq carry a one-byte Polarity: true performs the
	// named comparison, false performs its negation (>=, >, ~=).
	OpLess   OpCode = 26
	OpLessEq OpCode = 27
	OpEq     OpCode = 28

	// OpHalt terminates execution; the interpreter loop recognizes it
	// as a sentinel, not a real error.
	OpHalt OpCode = 30

	OpAnd     OpCode = 31
	OpOr      OpCode = 32
	OpXor     OpCode = 33
	OpBoolAnd OpCode = 34
	OpBoolOr  OpCode = 35
	OpNeg     OpCode = 36
	OpNot     OpCode = 37
	OpBoolNot OpCode = 38
	OpLen     OpCode = 39
	OpShl     OpCode = 40
	OpShr     OpCode = 41

	// OpNewTable constructs an empty table with the array/map capacity
	// hint packed into Slot (array_cap in the low byte, map_cap in the
	// high byte). The original asm encoder never wired this opcode into
	// its u16-packing match arm; here it is packed the same way as
	// Load/Write for consistency (see DESIGN.md).
	OpNewTable OpCode = 42
	OpPop      OpCode = 43
	OpGet      OpCode = 44
	OpSet      OpCode = 46
	// OpSetPop consumes table, key, and value (three stack entries) in
	// one instruction — the codegen emission target for indexed lvalue
	// assignment (spec §4.3).
	OpSetPop    OpCode = 47
	OpGetMethod OpCode = 48
)

// Width reports how many consecutive 32-bit words an instruction of
// this opcode occupies.
func (op OpCode) Width() int {
	switch op {
	case OpLoadInt, OpLoadFloat, OpClosure:
		return 2
	default:
		return 1
	}
}

var names = map[OpCode]string{
	OpLoadNil: "LoadNil", OpLoadTrue: "LoadTrue", OpLoadFalse: "LoadFalse",
	OpLoadInt: "LoadInt", OpLoadFloat: "LoadFloat", OpLoadStr: "LoadStr",
	OpLoad: "Load", OpWrite: "Write",
	OpAdd: "Add", OpSub: "Sub", OpMul: "Mul", OpDiv: "Div", OpIDiv: "IDiv",
	OpPow: "Pow", OpMod: "Mod", OpConcat: "Concat",
	OpClosure: "Closure", OpCall: "Call", OpRet: "Ret",
	OpBindUpval: "BindUpval", OpGetUpval: "GetUpval", OpSetUpval: "SetUpval",
	OpJump: "Jump", OpJumpTrue: "JumpTrue", OpJumpFalse: "JumpFalse",
	OpLess: "Less", OpLessEq: "LessEq", OpEq: "Eq",
	OpHalt: "Halt",
	OpAnd:  "And", OpOr: "Or", OpXor: "Xor", OpBoolAnd: "BoolAnd", OpBoolOr: "BoolOr",
	OpNeg: "Neg", OpNot: "Not", OpBoolNot: "BoolNot", OpLen: "Len",
	OpShl: "Shl", OpShr: "Shr",
	OpNewTable: "NewTable", OpPop: "Pop", OpGet: "Get", OpSet: "Set",
	OpSetPop: "SetPop", OpGetMethod: "GetMethod",
}

func (op OpCode) String() string {
	if s, ok := names[op]; ok {
		return s
	}
	return "UNKNOWN"
}
