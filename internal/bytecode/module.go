package bytecode

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/maruel/natural"
	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Module is a compiled program: its string-literal/identifier name
// table followed by its instruction stream. The name table is one
// pool shared by every operand that carries a name index (LoadStr and
// GetMethod), matching the original asm encoder's single shared pool
// rather than per-kind tables; Load/Write and upvalue operands are
// register/upvalue indices and get no entry of their own.
type Module struct {
	Names []string
	Code  []Instruction
}

// Encode writes m in the on-disk layout fixed by §6: a little-endian
// u16 name count, that many NUL-terminated names, then the
// instruction stream as little-endian u32 words running to the end of
// the buffer (no trailing length field — the instruction section is
// everything after the name table).
func (m *Module) Encode() []byte {
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, uint16(len(m.Names)))
	for _, name := range m.Names {
		buf.WriteString(name)
		buf.WriteByte(0)
	}
	for _, ins := range m.Code {
		for _, w := range EncodeInstruction(ins) {
			binary.Write(&buf, binary.LittleEndian, w)
		}
	}
	return buf.Bytes()
}

// DecodeModule parses the on-disk form produced by Module.Encode.
func DecodeModule(data []byte) (*Module, error) {
	r := bytes.NewReader(data)

	var nameCount uint16
	if err := binary.Read(r, binary.LittleEndian, &nameCount); err != nil {
		return nil, errors.WithStack(fmt.Errorf("bytecode: reading name count: %w", err))
	}
	names := make([]string, nameCount)
	for i := range names {
		s, err := readNulString(r)
		if err != nil {
			return nil, errors.WithStack(fmt.Errorf("bytecode: reading name %d: %w", i, err))
		}
		names[i] = s
	}

	rest := data[len(data)-r.Len():]
	if len(rest)%4 != 0 {
		return nil, errors.WithStack(fmt.Errorf("bytecode: instruction section length %d not a multiple of 4", len(rest)))
	}
	words := make([]uint32, len(rest)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(rest[i*4:])
	}

	code, err := decodeStream(words)
	if err != nil {
		return nil, err
	}
	return &Module{Names: names, Code: code}, nil
}

func readNulString(r *bytes.Reader) (string, error) {
	var sb bytes.Buffer
	for {
		b, err := r.ReadByte()
		if err != nil {
			return "", err
		}
		if b == 0 {
			return sb.String(), nil
		}
		sb.WriteByte(b)
	}
}

func decodeStream(words []uint32) ([]Instruction, error) {
	var code []Instruction
	for i := 0; i < len(words); {
		if OpCode(byte(words[i]>>16)).Width() == 2 && i+1 >= len(words) {
			return nil, errors.WithStack(fmt.Errorf("bytecode: truncated 2-word instruction at word %d", i))
		}
		ins, n := DecodeInstruction(words[i:])
		code = append(code, ins)
		i += n
	}
	return code, nil
}

// DumpJSON renders m's metadata (name table, sorted in natural order,
// plus instruction count) as JSON, the document QueryJSON (and so
// `disasm --query`) reads from; instruction-level detail stays in
// Disassemble's text form.
func (m *Module) DumpJSON() string {
	sorted := append([]string(nil), m.Names...)
	sort.Sort(natural.StringSlice(sorted))

	doc := `{"names":[],"instructionCount":0}`
	doc, _ = sjson.Set(doc, "instructionCount", len(m.Code))
	for i, name := range sorted {
		doc, _ = sjson.Set(doc, fmt.Sprintf("names.%d", i), name)
	}
	return doc
}

// QueryJSON runs a gjson path expression against m's JSON metadata
// dump, e.g. "names.0" or "instructionCount".
func (m *Module) QueryJSON(path string) gjson.Result {
	return gjson.Get(m.DumpJSON(), path)
}
