package value

import (
	"fmt"
	"math"
)

// InvalidKeyKind identifies why a Value cannot serve as a table key.
type InvalidKeyKind int

const (
	InvalidKeyNil InvalidKeyKind = iota
	InvalidKeyNaN
)

// InvalidKeyError is returned by KeyOf for Nil and NaN.
type InvalidKeyError struct{ Kind InvalidKeyKind }

func (e *InvalidKeyError) Error() string {
	switch e.Kind {
	case InvalidKeyNil:
		return "invalid table key: nil"
	case InvalidKeyNaN:
		return "invalid table key: NaN"
	default:
		return fmt.Sprintf("invalid table key: kind %d", e.Kind)
	}
}

// Key is the comparable encoding of a Value used as a map-part table
// key. It is deliberately its own type rather than Value itself:
// Value's float field participates in equality bit-for-bit, which
// would let 2 and 2.0 occupy distinct map slots and would let two
// NaNs (which must never be keys at all) collide by luck of bit
// pattern. KeyOf is the single place that normalization happens, so
// every insert and lookup path observes the same folding — the
// original implementation applied the float-is-integer-valued test
// inconsistently between those two paths, which this closes.
type Key struct {
	kind Type
	num  int64
	str  string
	obj  HeapObject
}

// KeyOf encodes v as a table key, or reports why v cannot be one.
func KeyOf(v Value) (Key, error) {
	switch v.typ {
	case TypeNil:
		return Key{}, &InvalidKeyError{Kind: InvalidKeyNil}
	case TypeBool:
		return Key{kind: TypeBool, num: v.i}, nil
	case TypeInt:
		return Key{kind: TypeInt, num: v.i}, nil
	case TypeFloat:
		if math.IsNaN(v.f) {
			return Key{}, &InvalidKeyError{Kind: InvalidKeyNaN}
		}
		if i, ok := exactInt(v.f); ok {
			return Key{kind: TypeInt, num: i}, nil
		}
		return Key{kind: TypeFloat, num: int64(math.Float64bits(v.f))}, nil
	case TypeString:
		return Key{kind: TypeString, str: v.s.String()}, nil
	default:
		return Key{kind: v.typ, obj: v.obj}, nil
	}
}

// Value reconstructs the original Value a Key was built from —
// used by kvpairs-style iteration, which needs to hand callers back a
// real key Value, not just the map's internal comparable encoding.
func (k Key) Value() Value {
	switch k.kind {
	case TypeBool:
		return BoolOf(k.num != 0)
	case TypeInt:
		return IntOf(k.num)
	case TypeFloat:
		return FloatOf(math.Float64frombits(uint64(k.num)))
	case TypeString:
		return StringOf(k.str)
	default:
		return ObjOf(k.obj)
	}
}

// exactInt reports whether f has an exact int64 representation.
func exactInt(f float64) (int64, bool) {
	if f != math.Trunc(f) || f < math.MinInt64 || f > math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}
