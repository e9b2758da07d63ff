package compiler

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind enumerates the code generator's error taxonomy (spec §7).
type Kind int

const (
	BreakOutsideLoop Kind = iota
	UnknownNode
)

// Error is a code-generation failure, carrying the source line of the
// statement or expression being compiled.
type Error struct {
	Kind   Kind
	Line   int
	Detail string
}

func (e *Error) Error() string {
	switch e.Kind {
	case BreakOutsideLoop:
		return fmt.Sprintf("break outside of a loop at line %d", e.Line)
	case UnknownNode:
		return fmt.Sprintf("internal: unhandled node at line %d: %s", e.Line, e.Detail)
	default:
		return "compile error"
	}
}

func wrap(kind Kind, line int, detail string) error {
	return errors.WithStack(&Error{Kind: kind, Line: line, Detail: detail})
}
