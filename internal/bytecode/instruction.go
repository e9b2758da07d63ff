package bytecode

import "math"

// Instruction is the decoded, in-memory form of one opcode plus its
// operands. Which fields are meaningful depends on Op; unused fields
// are zero. This is the unit the compiler emits and the disassembler
// prints; EncodeInstruction/DecodeInstruction convert to and from the
// on-disk 32-bit word form.
type Instruction struct {
	Op OpCode

	// Slot is the u16 operand for Load/Write/LoadStr/BindUpval/
	// GetUpval/SetUpval/NewTable.
	Slot uint16

	// Offset is the signed word-delta operand for Jump/JumpTrue/
	// JumpFalse, relative to the instruction following this one.
	Offset int16

	// Polarity is the comparison-sense operand for Less/LessEq/Eq:
	// true performs the named comparison, false its negation.
	Polarity bool

	// UpvalCap and ArgCount are Closure's one-byte operands.
	UpvalCap uint8
	ArgCount uint8

	// Lit32 carries a 2-word instruction's trailing word: LoadInt's
	// literal, the IEEE-754 bits of LoadFloat's literal, or Closure's
	// signed word-offset to the function's first instruction.
	Lit32 int32
}

// EncodeInstruction produces the on-disk word(s) for ins. Opcode byte
// is rotated into byte index 2 of the little-endian first word,
// matching the original asm encoder's bit layout; the remaining bytes
// carry whichever operand ins.Op uses.
func EncodeInstruction(ins Instruction) []uint32 {
	var b [4]byte
	b[2] = byte(ins.Op)

	switch ins.Op {
	case OpLoadStr, OpLoad, OpWrite, OpBindUpval, OpGetUpval, OpSetUpval, OpNewTable, OpCall, OpGetMethod:
		b[0] = byte(ins.Slot)
		b[1] = byte(ins.Slot >> 8)
	case OpJump, OpJumpTrue, OpJumpFalse:
		u := uint16(ins.Offset)
		b[0] = byte(u)
		b[1] = byte(u >> 8)
	case OpLess, OpLessEq, OpEq:
		if ins.Polarity {
			b[0] = 1
		}
	case OpClosure:
		b[0] = ins.UpvalCap
		b[1] = ins.ArgCount
	}

	word := uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
	if ins.Op.Width() == 1 {
		return []uint32{word}
	}
	return []uint32{word, uint32(ins.Lit32)}
}

// DecodeInstruction reads one instruction starting at words[0],
// returning it along with the word count consumed (1 or 2).
func DecodeInstruction(words []uint32) (Instruction, int) {
	word := words[0]
	b := [4]byte{
		byte(word), byte(word >> 8), byte(word >> 16), byte(word >> 24),
	}
	op := OpCode(b[2])
	ins := Instruction{Op: op}

	switch op {
	case OpLoadStr, OpLoad, OpWrite, OpBindUpval, OpGetUpval, OpSetUpval, OpNewTable, OpCall, OpGetMethod:
		ins.Slot = uint16(b[0]) | uint16(b[1])<<8
	case OpJump, OpJumpTrue, OpJumpFalse:
		ins.Offset = int16(uint16(b[0]) | uint16(b[1])<<8)
	case OpLess, OpLessEq, OpEq:
		ins.Polarity = b[0] != 0
	case OpClosure:
		ins.UpvalCap = b[0]
		ins.ArgCount = b[1]
	}

	if op.Width() == 1 {
		return ins, 1
	}
	ins.Lit32 = int32(words[1])
	return ins, 2
}

// LoadIntOf builds a LoadInt instruction for the literal n.
func LoadIntOf(n int32) Instruction { return Instruction{Op: OpLoadInt, Lit32: n} }

// LoadFloatOf builds a LoadFloat instruction for the literal f,
// truncated to float32 as the wire format requires.
func LoadFloatOf(f float64) Instruction {
	return Instruction{Op: OpLoadFloat, Lit32: int32(math.Float32bits(float32(f)))}
}

// IntLit reads back a LoadInt instruction's literal.
func (ins Instruction) IntLit() int32 { return ins.Lit32 }

// FloatLit reads back a LoadFloat instruction's literal.
func (ins Instruction) FloatLit() float32 { return math.Float32frombits(uint32(ins.Lit32)) }
