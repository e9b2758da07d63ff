package bytecode

import "testing"

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []Instruction{
		{Op: OpLoadNil},
		{Op: OpLoadStr, Slot: 7},
		LoadIntOf(-12345),
		LoadFloatOf(3.5),
		{Op: OpJump, Offset: -9},
		{Op: OpLess, Polarity: false},
		{Op: OpClosure, UpvalCap: 2, ArgCount: 3, Lit32: 41},
		{Op: OpCall, Slot: 2},
		{Op: OpGetMethod, Slot: 5},
	}
	for _, want := range cases {
		words := EncodeInstruction(want)
		if len(words) != want.Op.Width() {
			t.Fatalf("%v: encoded to %d words, want %d", want.Op, len(words), want.Op.Width())
		}
		got, n := DecodeInstruction(words)
		if n != want.Op.Width() {
			t.Fatalf("%v: decoded width %d, want %d", want.Op, n, want.Op.Width())
		}
		if got != want {
			t.Fatalf("round trip mismatch: got %+v, want %+v", got, want)
		}
	}
}

func TestOpcodeByteAtIndex2(t *testing.T) {
	words := EncodeInstruction(Instruction{Op: OpAdd})
	if byte(words[0]>>16) != byte(OpAdd) {
		t.Fatalf("opcode byte not at word index 2: word=%08x", words[0])
	}
}

func TestModuleEncodeDecodeRoundTrip(t *testing.T) {
	m := &Module{
		Names: []string{"x", "foo", "bar"},
		Code: []Instruction{
			LoadIntOf(10),
			{Op: OpLoadStr, Slot: 1},
			{Op: OpAdd},
			{Op: OpCall, Slot: 1},
			{Op: OpHalt},
		},
	}
	data := m.Encode()
	got, err := DecodeModule(data)
	if err != nil {
		t.Fatalf("DecodeModule: %v", err)
	}
	if len(got.Names) != len(m.Names) || len(got.Code) != len(m.Code) {
		t.Fatalf("round trip shape mismatch: %+v", got)
	}
	for i, name := range m.Names {
		if got.Names[i] != name {
			t.Fatalf("name %d: got %q, want %q", i, got.Names[i], name)
		}
	}
}

func TestDecodeModuleRejectsTruncatedInput(t *testing.T) {
	if _, err := DecodeModule([]byte{0x01}); err == nil {
		t.Fatal("expected an error for a truncated name count")
	}
}

func TestDisassembleResolvesNames(t *testing.T) {
	m := &Module{
		Names: []string{"greeting"},
		Code:  []Instruction{{Op: OpLoadStr, Slot: 0}, {Op: OpHalt}},
	}
	out := Disassemble(m)
	if !contains(out, `"greeting"`) {
		t.Fatalf("expected resolved name in disassembly, got:\n%s", out)
	}
}

func contains(s, sub string) bool {
	return len(s) >= len(sub) && (func() bool {
		for i := 0; i+len(sub) <= len(s); i++ {
			if s[i:i+len(sub)] == sub {
				return true
			}
		}
		return false
	})()
}
