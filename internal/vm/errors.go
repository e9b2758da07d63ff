// Package vm executes a compiled bytecode.Module: a register+stack
// hybrid interpreter (each frame owns a growable local/register slot
// array; every frame shares one evaluation stack for intermediate
// expression results and call argument/return marshalling), wired to
// internal/runtime's Table/Function/UpValue/UserData for metatable-
// driven operator dispatch and to internal/gc for paged mark-sweep
// collection.
package vm

import (
	"fmt"

	"github.com/kerbonaut11/muna/internal/value"
	"github.com/pkg/errors"
)

// Kind enumerates the VM's runtime error taxonomy (spec §7: OpError,
// CallError taken together — both surface the same way to a caller,
// distinguished only by which Kind is set).
type Kind int

const (
	// TypeErr is a binary operator applied to operand types with
	// neither a numeric fast path nor a metamethod fallback.
	TypeErr Kind = iota
	// UnaryTypeErr is TypeErr's unary-operator counterpart.
	UnaryTypeErr
	// IndexedInvalidType is Get/Set against a value with no store of
	// its own and no applicable __idx/__newidx.
	IndexedInvalidType
	// InvalidKey is Set/table-literal construction with a Nil or NaN
	// key.
	InvalidKey
	// DivByZero is integer division or modulo by zero. The original
	// Rust source lets this panic the process; this port reports it as
	// an ordinary runtime error instead.
	DivByZero
	// NotCallable is an OpCall/OpGetMethod target that isn't a
	// Function.
	NotCallable
	// CastMetaReturnedWrongType is a __bool/__int/__float/__str
	// metamethod whose return value doesn't match the coercion it was
	// invoked for.
	CastMetaReturnedWrongType
	// CompMetaReturnedNonBool is an __eq/__less/__leq metamethod whose
	// return value isn't a Bool.
	CompMetaReturnedNonBool
	// TruthyMetaReturnedNonBool is a __tty metamethod whose return
	// value isn't a Bool.
	TruthyMetaReturnedNonBool
	// InvalidBoolCast is a to_bool coercion of a value with no
	// recognizable boolean form (neither 0/1, "true"/"false", nor a
	// __bool metamethod).
	InvalidBoolCast
	// ParseNumErr is a string-to-number coercion (to_int/to_float) on
	// a string that doesn't parse.
	ParseNumErr
	// StackUnderflow signals an internal inconsistency: an opcode
	// needed more values than the evaluation stack held. Reaching this
	// means compiled bytecode violated the stack-balance invariant the
	// compiler is supposed to guarantee.
	StackUnderflow
	// StackOverflow is a call chain deeper than config.MaxCallDepth —
	// reported as an ordinary CallError rather than exhausting the Go
	// call stack this interpreter's own recursive call/loop rides on.
	StackOverflow
)

// Error is a VM runtime failure, carrying the failing operator/opcode
// name and the operand type(s) involved where relevant.
type Error struct {
	Kind   Kind
	Op     string
	Types  []value.Type
	Detail string
}

func (e *Error) Error() string {
	switch e.Kind {
	case TypeErr:
		return fmt.Sprintf("%s: unsupported operand types %s", e.Op, joinTypes(e.Types))
	case UnaryTypeErr:
		return fmt.Sprintf("%s: unsupported operand type %s", e.Op, joinTypes(e.Types))
	case IndexedInvalidType:
		return fmt.Sprintf("%s: value of type %s has no indexable store", e.Op, joinTypes(e.Types))
	case InvalidKey:
		return fmt.Sprintf("invalid table key: %s", e.Detail)
	case DivByZero:
		return fmt.Sprintf("%s: division by zero", e.Op)
	case NotCallable:
		return fmt.Sprintf("attempt to call a %s value", joinTypes(e.Types))
	case CastMetaReturnedWrongType:
		return fmt.Sprintf("%s metamethod returned %s, expected %s", e.Op, joinTypes(e.Types), e.Detail)
	case CompMetaReturnedNonBool:
		return fmt.Sprintf("%s metamethod returned non-bool %s", e.Op, joinTypes(e.Types))
	case TruthyMetaReturnedNonBool:
		return fmt.Sprintf("__tty metamethod returned non-bool %s", joinTypes(e.Types))
	case InvalidBoolCast:
		return fmt.Sprintf("cannot cast %s to bool: %s", joinTypes(e.Types), e.Detail)
	case ParseNumErr:
		return fmt.Sprintf("cannot parse %q as %s", e.Detail, e.Op)
	case StackUnderflow:
		return fmt.Sprintf("internal: stack underflow in %s", e.Op)
	case StackOverflow:
		return fmt.Sprintf("call stack exceeded max depth of %s", e.Detail)
	default:
		return "vm error"
	}
}

func joinTypes(ts []value.Type) string {
	if len(ts) == 1 {
		return ts[0].String()
	}
	s := ""
	for i, t := range ts {
		if i > 0 {
			s += ", "
		}
		s += t.String()
	}
	return s
}

func typeErr(op string, ts ...value.Type) error {
	return errors.WithStack(&Error{Kind: TypeErr, Op: op, Types: ts})
}

func unaryTypeErr(op string, t value.Type) error {
	return errors.WithStack(&Error{Kind: UnaryTypeErr, Op: op, Types: []value.Type{t}})
}

func wrap(kind Kind, op string, detail string, ts ...value.Type) error {
	return errors.WithStack(&Error{Kind: kind, Op: op, Detail: detail, Types: ts})
}
