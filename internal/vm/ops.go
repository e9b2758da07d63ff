package vm

import (
	"fmt"
	"math"
	"strconv"

	"github.com/kerbonaut11/muna/internal/bytecode"
	"github.com/kerbonaut11/muna/internal/runtime"
	"github.com/kerbonaut11/muna/internal/value"
)

// metatableOf returns v's metatable, if v is a Table or UserData and
// has one set.
func metatableOf(v value.Value) (runtime.TableRef, bool) {
	switch obj := v.AsObj().(type) {
	case runtime.TableRef:
		return obj.Get().MetaTable()
	case runtime.UserDataRef:
		return obj.Get().MetaTable()
	default:
		return runtime.TableRef{}, false
	}
}

// metaUnary looks up name in v's metatable and, if present and a
// Function, invokes it as a unary meta call (1 arg, 1 return — spec
// §4.7). ok is false when no applicable metamethod exists, letting the
// caller fall through to its own TypeErr.
func (vm *VM) metaUnary(name string, v value.Value) (result value.Value, ok bool, err error) {
	meta, has := metatableOf(v)
	if !has {
		return value.Nil, false, nil
	}
	fn := meta.Get().GetStr(name)
	if fn.Type() != value.TypeFunction {
		return value.Nil, false, nil
	}
	results, err := vm.call(fn, []value.Value{v}, 1, stateMeta)
	if err != nil {
		return value.Nil, true, err
	}
	return results[0], true, nil
}

// metaBinary is metaUnary's 2-arg/1-return counterpart, consulting
// only the left operand's metatable — matching the original's
// `lhs.meta_call(rhs, name, self)` shape, which never falls back to
// checking the right operand.
func (vm *VM) metaBinary(name string, lhs, rhs value.Value) (result value.Value, ok bool, err error) {
	meta, has := metatableOf(lhs)
	if !has {
		return value.Nil, false, nil
	}
	fn := meta.Get().GetStr(name)
	if fn.Type() != value.TypeFunction {
		return value.Nil, false, nil
	}
	results, err := vm.call(fn, []value.Value{lhs, rhs}, 1, stateMeta)
	if err != nil {
		return value.Nil, true, err
	}
	return results[0], true, nil
}

// metaTernary is __newidx's 3-arg/0-return shape.
func (vm *VM) metaTernary(name string, a, b, c value.Value) (ok bool, err error) {
	meta, has := metatableOf(a)
	if !has {
		return false, nil
	}
	fn := meta.Get().GetStr(name)
	if fn.Type() != value.TypeFunction {
		return false, nil
	}
	if _, err := vm.call(fn, []value.Value{a, b, c}, 0, stateMeta); err != nil {
		return true, err
	}
	return true, nil
}

func metaNameFor(op bytecode.OpCode) string {
	switch op {
	case bytecode.OpAdd:
		return "__add"
	case bytecode.OpSub:
		return "__sub"
	case bytecode.OpMul:
		return "__mul"
	case bytecode.OpDiv:
		return "__div"
	case bytecode.OpIDiv:
		return "__idiv"
	case bytecode.OpMod:
		return "__mod"
	case bytecode.OpPow:
		return "__pow"
	case bytecode.OpConcat:
		return "__concat"
	case bytecode.OpAnd:
		return "__and"
	case bytecode.OpOr:
		return "__or"
	case bytecode.OpXor:
		return "__xor"
	case bytecode.OpShl:
		return "__shl"
	case bytecode.OpShr:
		return "__shr"
	case bytecode.OpNeg:
		return "__neg"
	case bytecode.OpNot:
		return "__not"
	case bytecode.OpLen:
		return "__len"
	default:
		return ""
	}
}

// binaryOp dispatches Add/Sub/.../BoolOr per op's numeric-promotion
// rule, falling back to op's metamethod on a Table/UserData left
// operand, and finally a TypeErr.
func (vm *VM) binaryOp(op bytecode.OpCode, lhs, rhs value.Value) (value.Value, error) {
	switch op {
	case bytecode.OpAdd:
		return vm.arith(op, lhs, rhs, func(a, b int64) int64 { return a + b }, func(a, b float64) float64 { return a + b })
	case bytecode.OpSub:
		return vm.arith(op, lhs, rhs, func(a, b int64) int64 { return a - b }, func(a, b float64) float64 { return a - b })
	case bytecode.OpMul:
		return vm.arith(op, lhs, rhs, func(a, b int64) int64 { return a * b }, func(a, b float64) float64 { return a * b })
	case bytecode.OpDiv:
		return vm.div(lhs, rhs)
	case bytecode.OpIDiv:
		return vm.idiv(lhs, rhs)
	case bytecode.OpMod:
		return vm.mod(lhs, rhs)
	case bytecode.OpPow:
		return vm.pow(lhs, rhs)
	case bytecode.OpConcat:
		return vm.concat(lhs, rhs)
	case bytecode.OpAnd:
		return vm.bitwise(op, lhs, rhs, func(a, b int64) int64 { return a & b })
	case bytecode.OpOr:
		return vm.bitwise(op, lhs, rhs, func(a, b int64) int64 { return a | b })
	case bytecode.OpXor:
		return vm.bitwise(op, lhs, rhs, func(a, b int64) int64 { return a ^ b })
	case bytecode.OpShl:
		return vm.bitwise(op, lhs, rhs, func(a, b int64) int64 { return a << uint64(b) })
	case bytecode.OpShr:
		return vm.bitwise(op, lhs, rhs, func(a, b int64) int64 { return a >> uint64(b) })
	case bytecode.OpBoolAnd:
		l, err := vm.truthy(lhs)
		if err != nil {
			return value.Nil, err
		}
		r, err := vm.truthy(rhs)
		if err != nil {
			return value.Nil, err
		}
		return value.BoolOf(l && r), nil
	case bytecode.OpBoolOr:
		l, err := vm.truthy(lhs)
		if err != nil {
			return value.Nil, err
		}
		r, err := vm.truthy(rhs)
		if err != nil {
			return value.Nil, err
		}
		return value.BoolOf(l || r), nil
	default:
		return value.Nil, wrap(StackUnderflow, op.String(), "not a binary op")
	}
}

// arith implements Add/Sub/Mul's shared promotion rule: Int∘Int stays
// Int, either operand Float promotes both to Float.
func (vm *VM) arith(op bytecode.OpCode, lhs, rhs value.Value, intOp func(a, b int64) int64, floatOp func(a, b float64) float64) (value.Value, error) {
	switch {
	case lhs.IsInt() && rhs.IsInt():
		return value.IntOf(intOp(lhs.AsInt(), rhs.AsInt())), nil
	case lhs.IsInt() && rhs.IsFloat():
		return value.FloatOf(floatOp(float64(lhs.AsInt()), rhs.AsFloat())), nil
	case lhs.IsFloat() && rhs.IsInt():
		return value.FloatOf(floatOp(lhs.AsFloat(), float64(rhs.AsInt()))), nil
	case lhs.IsFloat() && rhs.IsFloat():
		return value.FloatOf(floatOp(lhs.AsFloat(), rhs.AsFloat())), nil
	}
	if r, ok, err := vm.metaBinary(metaNameFor(op), lhs, rhs); ok {
		return r, err
	}
	return value.Nil, typeErr(op.String(), lhs.Type(), rhs.Type())
}

// div: Int/Int returns Int when the quotient is exact, else Float —
// the original's "does this divide evenly" rule; every other numeric
// combination always yields Float.
func (vm *VM) div(lhs, rhs value.Value) (value.Value, error) {
	switch {
	case lhs.IsInt() && rhs.IsInt():
		if rhs.AsInt() == 0 {
			return value.Nil, wrap(DivByZero, "Div", "", lhs.Type(), rhs.Type())
		}
		x := float64(lhs.AsInt()) / float64(rhs.AsInt())
		if math.Mod(x, 1.0) == 0.0 {
			return value.IntOf(int64(x)), nil
		}
		return value.FloatOf(x), nil
	case lhs.IsInt() && rhs.IsFloat():
		return value.FloatOf(float64(lhs.AsInt()) / rhs.AsFloat()), nil
	case lhs.IsFloat() && rhs.IsInt():
		return value.FloatOf(lhs.AsFloat() / float64(rhs.AsInt())), nil
	case lhs.IsFloat() && rhs.IsFloat():
		return value.FloatOf(lhs.AsFloat() / rhs.AsFloat()), nil
	}
	if r, ok, err := vm.metaBinary("__div", lhs, rhs); ok {
		return r, err
	}
	return value.Nil, typeErr("Div", lhs.Type(), rhs.Type())
}

// idiv follows the general numeric-promotion rule (Int/Int stays Int,
// any Float operand promotes both to Float) rather than Div's own
// exactness carve-out: a Float operand floors the quotient instead of
// erroring.
func (vm *VM) idiv(lhs, rhs value.Value) (value.Value, error) {
	switch {
	case lhs.IsInt() && rhs.IsInt():
		if rhs.AsInt() == 0 {
			return value.Nil, wrap(DivByZero, "IDiv", "", lhs.Type(), rhs.Type())
		}
		return value.IntOf(lhs.AsInt() / rhs.AsInt()), nil
	case lhs.IsInt() && rhs.IsFloat():
		return value.FloatOf(math.Floor(float64(lhs.AsInt()) / rhs.AsFloat())), nil
	case lhs.IsFloat() && rhs.IsInt():
		return value.FloatOf(math.Floor(lhs.AsFloat() / float64(rhs.AsInt()))), nil
	case lhs.IsFloat() && rhs.IsFloat():
		return value.FloatOf(math.Floor(lhs.AsFloat() / rhs.AsFloat())), nil
	}
	if r, ok, err := vm.metaBinary("__idiv", lhs, rhs); ok {
		return r, err
	}
	return value.Nil, typeErr("IDiv", lhs.Type(), rhs.Type())
}

// mod uses the host's native %, matching the original's sign-of-
// dividend Rust `%`.
func (vm *VM) mod(lhs, rhs value.Value) (value.Value, error) {
	switch {
	case lhs.IsInt() && rhs.IsInt():
		if rhs.AsInt() == 0 {
			return value.Nil, wrap(DivByZero, "Mod", "", lhs.Type(), rhs.Type())
		}
		return value.IntOf(lhs.AsInt() % rhs.AsInt()), nil
	case lhs.IsInt() && rhs.IsFloat():
		return value.FloatOf(math.Mod(float64(lhs.AsInt()), rhs.AsFloat())), nil
	case lhs.IsFloat() && rhs.IsInt():
		return value.FloatOf(math.Mod(lhs.AsFloat(), float64(rhs.AsInt()))), nil
	case lhs.IsFloat() && rhs.IsFloat():
		return value.FloatOf(math.Mod(lhs.AsFloat(), rhs.AsFloat())), nil
	}
	if r, ok, err := vm.metaBinary("__mod", lhs, rhs); ok {
		return r, err
	}
	return value.Nil, typeErr("Mod", lhs.Type(), rhs.Type())
}

// pow always produces Float, regardless of operand types.
func (vm *VM) pow(lhs, rhs value.Value) (value.Value, error) {
	toF := func(v value.Value) (float64, bool) {
		if v.IsInt() {
			return float64(v.AsInt()), true
		}
		if v.IsFloat() {
			return v.AsFloat(), true
		}
		return 0, false
	}
	lf, lok := toF(lhs)
	rf, rok := toF(rhs)
	if lok && rok {
		return value.FloatOf(math.Pow(lf, rf)), nil
	}
	if r, ok, err := vm.metaBinary("__pow", lhs, rhs); ok {
		return r, err
	}
	return value.Nil, typeErr("Pow", lhs.Type(), rhs.Type())
}

// bitwise implements And/Or/Xor/Shl/Shr: strictly Int-only, with no
// Int/Float promotion at all (unlike arith's numeric fast path) —
// any non-Int/Int combination goes straight to the metamethod check.
func (vm *VM) bitwise(op bytecode.OpCode, lhs, rhs value.Value, intOp func(a, b int64) int64) (value.Value, error) {
	if lhs.IsInt() && rhs.IsInt() {
		return value.IntOf(intOp(lhs.AsInt(), rhs.AsInt())), nil
	}
	if r, ok, err := vm.metaBinary(metaNameFor(op), lhs, rhs); ok {
		return r, err
	}
	return value.Nil, typeErr(op.String(), lhs.Type(), rhs.Type())
}

// concat coerces both operands to their string form (via toStr, which
// already handles __str) and joins them.
func (vm *VM) concat(lhs, rhs value.Value) (value.Value, error) {
	ls, err := vm.toStr(lhs)
	if err != nil {
		return value.Nil, err
	}
	rs, err := vm.toStr(rhs)
	if err != nil {
		return value.Nil, err
	}
	return value.StringOf(ls + rs), nil
}

// unaryOp dispatches Neg/Not(bitwise complement)/BoolNot/Len.
func (vm *VM) unaryOp(op bytecode.OpCode, x value.Value) (value.Value, error) {
	switch op {
	case bytecode.OpNeg:
		switch {
		case x.IsInt():
			return value.IntOf(-x.AsInt()), nil
		case x.IsFloat():
			return value.FloatOf(-x.AsFloat()), nil
		}
		if r, ok, err := vm.metaUnary("__neg", x); ok {
			return r, err
		}
		return value.Nil, unaryTypeErr("Neg", x.Type())
	case bytecode.OpNot:
		if x.IsInt() {
			return value.IntOf(^x.AsInt()), nil
		}
		if r, ok, err := vm.metaUnary("__not", x); ok {
			return r, err
		}
		return value.Nil, unaryTypeErr("Not", x.Type())
	case bytecode.OpBoolNot:
		t, err := vm.truthy(x)
		if err != nil {
			return value.Nil, err
		}
		return value.BoolOf(!t), nil
	case bytecode.OpLen:
		return vm.length(x)
	default:
		return value.Nil, wrap(StackUnderflow, op.String(), "not a unary op")
	}
}

// length implements spec §4.5's Len rule: String -> byte length,
// Table -> array-part length (authoritative, never overridden — a
// table always has a real length of its own), UserData -> __len (it
// has no intrinsic length at all). The original omits the __len
// fallback entirely despite listing it as a real metamethod name;
// this port adds it for UserData, consistent with the general
// metamethod-dispatch rule the rest of §4.5 states.
func (vm *VM) length(x value.Value) (value.Value, error) {
	switch {
	case x.IsString():
		return value.IntOf(int64(x.AsString().Len())), nil
	case x.Type() == value.TypeTable:
		return value.IntOf(int64(x.AsObj().(runtime.TableRef).Get().Len())), nil
	}
	if r, ok, err := vm.metaUnary("__len", x); ok {
		return r, err
	}
	return value.Nil, unaryTypeErr("Len", x.Type())
}

// compareOp dispatches Less/LessEq/Eq, applying polarity's negation
// afterward — false performs the named comparison's opposite (>=, >,
// ~=), per opcode.go's doc comment.
func (vm *VM) compareOp(op bytecode.OpCode, lhs, rhs value.Value, polarity bool) (bool, error) {
	var base bool
	var err error
	switch op {
	case bytecode.OpEq:
		base, err = vm.eq(lhs, rhs)
	case bytecode.OpLess:
		base, err = vm.less(lhs, rhs)
	case bytecode.OpLessEq:
		base, err = vm.lessEq(lhs, rhs)
	default:
		return false, wrap(StackUnderflow, op.String(), "not a comparison op")
	}
	if err != nil {
		return false, err
	}
	if !polarity {
		return !base, nil
	}
	return base, nil
}

// eq implements spec §4.5's equality rule. Scalars and Function
// delegate to value.Equal, whose own doc comment documents that Table
// needs metatable dispatch it doesn't have — handled here instead.
func (vm *VM) eq(lhs, rhs value.Value) (bool, error) {
	if lhs.Type() == value.TypeTable {
		return vm.tableEq(lhs, rhs)
	}
	if lhs.Type() == value.TypeUserData {
		return vm.userDataEq(lhs, rhs)
	}
	return value.Equal(lhs, rhs), nil
}

func (vm *VM) tableEq(lhs, rhs value.Value) (bool, error) {
	if r, ok, err := vm.metaBinary("__eq", lhs, rhs); ok {
		if err != nil {
			return false, err
		}
		return vm.tryToBool(r, "__eq")
	}
	if rhs.Type() != value.TypeTable {
		return false, nil
	}
	lt := lhs.AsObj().(runtime.TableRef).Get()
	rt := rhs.AsObj().(runtime.TableRef).Get()
	if lt == rt {
		return true, nil
	}
	return lt.StructurallyEqual(rt), nil
}

// userDataEq: __eq if present, else identity against another UserData
// only — a UserData is never equal to a Table, even by address,
// unlike the original's apparent (and almost certainly mistaken)
// cross-kind address comparison in that branch.
func (vm *VM) userDataEq(lhs, rhs value.Value) (bool, error) {
	if r, ok, err := vm.metaBinary("__eq", lhs, rhs); ok {
		if err != nil {
			return false, err
		}
		return vm.tryToBool(r, "__eq")
	}
	if rhs.Type() != value.TypeUserData {
		return false, nil
	}
	lu := lhs.AsObj().(runtime.UserDataRef).Get()
	ru := rhs.AsObj().(runtime.UserDataRef).Get()
	return lu.Equal(ru), nil
}

func (vm *VM) less(lhs, rhs value.Value) (bool, error) {
	switch {
	case lhs.IsInt() && rhs.IsInt():
		return lhs.AsInt() < rhs.AsInt(), nil
	case lhs.IsInt() && rhs.IsFloat():
		return float64(lhs.AsInt()) < rhs.AsFloat(), nil
	case lhs.IsFloat() && rhs.IsInt():
		return lhs.AsFloat() < float64(rhs.AsInt()), nil
	case lhs.IsFloat() && rhs.IsFloat():
		return lhs.AsFloat() < rhs.AsFloat(), nil
	}
	if r, ok, err := vm.metaBinary("__less", lhs, rhs); ok {
		if err != nil {
			return false, err
		}
		return vm.tryToBool(r, "__less")
	}
	return false, typeErr("Less", lhs.Type(), rhs.Type())
}

func (vm *VM) lessEq(lhs, rhs value.Value) (bool, error) {
	switch {
	case lhs.IsInt() && rhs.IsInt():
		return lhs.AsInt() <= rhs.AsInt(), nil
	case lhs.IsInt() && rhs.IsFloat():
		return float64(lhs.AsInt()) <= rhs.AsFloat(), nil
	case lhs.IsFloat() && rhs.IsInt():
		return lhs.AsFloat() <= float64(rhs.AsInt()), nil
	case lhs.IsFloat() && rhs.IsFloat():
		return lhs.AsFloat() <= rhs.AsFloat(), nil
	}
	if r, ok, err := vm.metaBinary("__leq", lhs, rhs); ok {
		if err != nil {
			return false, err
		}
		return vm.tryToBool(r, "__leq")
	}
	return false, typeErr("LessEq", lhs.Type(), rhs.Type())
}

func (vm *VM) tryToBool(v value.Value, op string) (bool, error) {
	if v.Type() != value.TypeBool {
		return false, wrap(CompMetaReturnedNonBool, op, "", v.Type())
	}
	return v.AsBool(), nil
}

// truthy implements spec §4.5's truthiness rule: Nil/false are falsy,
// everything else truthy, unless a __tty metamethod overrides it.
func (vm *VM) truthy(v value.Value) (bool, error) {
	if meta, has := metatableOf(v); has {
		fn := meta.Get().GetStr("__tty")
		if fn.Type() == value.TypeFunction {
			results, err := vm.call(fn, []value.Value{v}, 1, stateMeta)
			if err != nil {
				return false, err
			}
			if results[0].Type() != value.TypeBool {
				return false, wrap(TruthyMetaReturnedNonBool, "__tty", "", results[0].Type())
			}
			return results[0].AsBool(), nil
		}
	}
	return v.Truthy(), nil
}

// toBool, toInt, toFloat, toStr implement the cast/coercion family
// (spec §4.5's __bool/__int/__float/__str), grounded on the original's
// exact per-type rules: Bool/Int/Float scalars convert directly
// (Int 0/1 only for toBool), String parses, Table/UserData fall back
// to the matching metamethod.

func (vm *VM) toBool(v value.Value) (bool, error) {
	switch {
	case v.Type() == value.TypeBool:
		return v.AsBool(), nil
	case v.IsInt():
		switch v.AsInt() {
		case 0:
			return false, nil
		case 1:
			return true, nil
		}
		return false, wrap(InvalidBoolCast, "to_bool", "int must be 0 or 1", v.Type())
	case v.IsFloat():
		switch v.AsFloat() {
		case 0.0:
			return false, nil
		case 1.0:
			return true, nil
		}
		return false, wrap(InvalidBoolCast, "to_bool", "float must be 0.0 or 1.0", v.Type())
	case v.IsString():
		b, err := strconv.ParseBool(v.AsString().String())
		if err != nil {
			return false, wrap(InvalidBoolCast, "to_bool", err.Error(), v.Type())
		}
		return b, nil
	}
	if r, ok, err := vm.metaUnary("__bool", v); ok {
		if err != nil {
			return false, err
		}
		if r.Type() != value.TypeBool {
			return false, wrap(CastMetaReturnedWrongType, "__bool", r.Type().String(), r.Type())
		}
		return r.AsBool(), nil
	}
	return false, unaryTypeErr("to_bool", v.Type())
}

func (vm *VM) toInt(v value.Value) (int64, error) {
	switch {
	case v.Type() == value.TypeBool:
		if v.AsBool() {
			return 1, nil
		}
		return 0, nil
	case v.IsInt():
		return v.AsInt(), nil
	case v.IsFloat():
		return int64(v.AsFloat()), nil
	case v.IsString():
		n, err := strconv.ParseInt(v.AsString().String(), 10, 64)
		if err != nil {
			return 0, wrap(ParseNumErr, "int", v.AsString().String())
		}
		return n, nil
	}
	if r, ok, err := vm.metaUnary("__int", v); ok {
		if err != nil {
			return 0, err
		}
		if !r.IsInt() {
			return 0, wrap(CastMetaReturnedWrongType, "__int", r.Type().String(), r.Type())
		}
		return r.AsInt(), nil
	}
	return 0, unaryTypeErr("to_int", v.Type())
}

func (vm *VM) toFloat(v value.Value) (float64, error) {
	switch {
	case v.Type() == value.TypeBool:
		if v.AsBool() {
			return 1, nil
		}
		return 0, nil
	case v.IsInt():
		return float64(v.AsInt()), nil
	case v.IsFloat():
		return v.AsFloat(), nil
	case v.IsString():
		f, err := strconv.ParseFloat(v.AsString().String(), 64)
		if err != nil {
			return 0, wrap(ParseNumErr, "float", v.AsString().String())
		}
		return f, nil
	}
	if r, ok, err := vm.metaUnary("__float", v); ok {
		if err != nil {
			return 0, err
		}
		if !r.IsFloat() {
			return 0, wrap(CastMetaReturnedWrongType, "__float", r.Type().String(), r.Type())
		}
		return r.AsFloat(), nil
	}
	return 0, unaryTypeErr("to_float", v.Type())
}

// toStr stringifies v, falling back to __str for Table/UserData and a
// `Kind 0x...`-shaped default (the original's `format!("Table {:#x}",
// addr)`) when no __str is set — Function gets the same treatment,
// since muna has no other way to print a function's identity.
func (vm *VM) toStr(v value.Value) (string, error) {
	switch {
	case v.IsNil():
		return "nil", nil
	case v.Type() == value.TypeBool:
		if v.AsBool() {
			return "true", nil
		}
		return "false", nil
	case v.IsInt():
		return strconv.FormatInt(v.AsInt(), 10), nil
	case v.IsFloat():
		return strconv.FormatFloat(v.AsFloat(), 'g', -1, 64), nil
	case v.IsString():
		return v.AsString().String(), nil
	case v.Type() == value.TypeFunction:
		return fmt.Sprintf("function: %p", v.AsObj().(runtime.FunctionRef).Get()), nil
	}
	if r, ok, err := vm.metaUnary("__str", v); ok {
		if err != nil {
			return "", err
		}
		if !r.IsString() {
			return "", wrap(CastMetaReturnedWrongType, "__str", r.Type().String(), r.Type())
		}
		return r.AsString().String(), nil
	}
	if v.Type() == value.TypeUserData {
		return fmt.Sprintf("userdata: %p", v.AsObj().(runtime.UserDataRef).Get()), nil
	}
	return fmt.Sprintf("table: %p", v.AsObj().(runtime.TableRef).Get()), nil
}
