package runtime

import (
	"testing"

	"github.com/kerbonaut11/muna/internal/value"
)

func TestTableArraySetExtendsOneAtATime(t *testing.T) {
	tbl := NewTable()
	if err := tbl.Set(value.IntOf(1), value.StringOf("a")); err != nil {
		t.Fatal(err)
	}
	if err := tbl.Set(value.IntOf(2), value.StringOf("b")); err != nil {
		t.Fatal(err)
	}
	if tbl.Len() != 2 {
		t.Fatalf("expected array length 2, got %d", tbl.Len())
	}
	if err := tbl.Set(value.IntOf(4), value.StringOf("skips to map")); err != nil {
		t.Fatal(err)
	}
	if tbl.Len() != 2 {
		t.Fatal("a key past len+1 must go to the map, not extend the array")
	}
	got, err := tbl.Get(value.IntOf(4))
	if err != nil || !value.Equal(got, value.StringOf("skips to map")) {
		t.Fatalf("Get(4) = %v, %v", got, err)
	}
}

func TestTableRejectsNilAndNaNKeys(t *testing.T) {
	tbl := NewTable()
	if err := tbl.Set(value.Nil, value.IntOf(1)); err == nil {
		t.Fatal("expected an InvalidKeyNil error")
	}
	if err := tbl.Set(value.FloatOf(nan()), value.IntOf(1)); err == nil {
		t.Fatal("expected an InvalidKeyNaN error")
	}
}

func nan() float64 {
	var zero float64
	return zero / zero
}

func TestTableGetStrFastPath(t *testing.T) {
	tbl := NewTable()
	if err := tbl.Set(value.StringOf("name"), value.StringOf("muna")); err != nil {
		t.Fatal(err)
	}
	got := tbl.GetStr("name")
	if !value.Equal(got, value.StringOf("muna")) {
		t.Fatalf("GetStr mismatch: %v", got)
	}
}

func TestTableStructuralEquality(t *testing.T) {
	a := NewTable()
	a.Push(value.IntOf(1))
	b := NewTable()
	b.Push(value.IntOf(1))
	if !a.StructurallyEqual(&b) {
		t.Fatal("tables with equal array contents should be structurally equal")
	}
	b.Push(value.IntOf(2))
	if a.StructurallyEqual(&b) {
		t.Fatal("tables of different array length must not be equal")
	}
}

func TestUpValueSharedAcrossReferences(t *testing.T) {
	ref := AllocUpValue(NewUpValue(value.IntOf(1)))
	ref.Get().SetValue(value.IntOf(2))
	if ref.Get().Value().AsInt() != 2 {
		t.Fatal("writes through the cell must be visible via the same ref")
	}
}

func TestMarkSweepReclaimsUnreachable(t *testing.T) {
	live := AllocTable(NewTable())
	AllocTable(NewTable()) // unreachable

	MarkValue(value.ObjOf(live))
	Tables.Sweep()

	if Tables.Live() != 1 {
		t.Fatalf("expected exactly the reachable table to survive, got %d live", Tables.Live())
	}
}
