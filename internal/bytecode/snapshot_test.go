package bytecode

import (
	"encoding/hex"
	"testing"

	"github.com/gkampitakis/go-snaps/snaps"
)

// snapshotModule is a small but representative module — a handful of
// names, a mix of single- and double-word instructions, a jump — whose
// disassembly and binary layout are worth pinning down the same way
// go-dws snapshot-tests its own bytecode serializer.
func snapshotModule() *Module {
	return &Module{
		Names: []string{"counter", "step", "total"},
		Code: []Instruction{
			LoadIntOf(0),
			{Op: OpWrite, Slot: 0},
			LoadIntOf(1),
			{Op: OpWrite, Slot: 1},
			{Op: OpLoad, Slot: 0},
			{Op: OpLoad, Slot: 1},
			{Op: OpAdd},
			{Op: OpWrite, Slot: 0},
			{Op: OpJump, Offset: -6},
			{Op: OpHalt},
		},
	}
}

func TestDisassembleSnapshot(t *testing.T) {
	snaps.MatchSnapshot(t, Disassemble(snapshotModule()))
}

func TestModuleEncodeSnapshot(t *testing.T) {
	snaps.MatchSnapshot(t, hex.EncodeToString(snapshotModule().Encode()))
}
