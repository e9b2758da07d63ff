package parser

import (
	"fmt"

	"github.com/kerbonaut11/muna/internal/token"
	"github.com/pkg/errors"
)

// Kind enumerates the parser's error taxonomy (spec §7).
type Kind int

const (
	UnexpectedToken Kind = iota
	UnbalancedBracket
	ExpectedIdent
	ExpectedAssign
)

// Error is a parse failure, carrying the offending token's position.
type Error struct {
	Kind   Kind
	Got    token.Token
	Detail string
}

func (e *Error) Error() string {
	switch e.Kind {
	case UnexpectedToken:
		return fmt.Sprintf("unexpected token %s (%q) at line %d, col %d: %s", e.Got.Type, e.Got.Literal, e.Got.Line, e.Got.Col, e.Detail)
	case UnbalancedBracket:
		return fmt.Sprintf("unbalanced bracket near line %d, col %d", e.Got.Line, e.Got.Col)
	case ExpectedIdent:
		return fmt.Sprintf("expected identifier, got %s at line %d, col %d", e.Got.Type, e.Got.Line, e.Got.Col)
	case ExpectedAssign:
		return fmt.Sprintf("expected '=' at line %d, col %d", e.Got.Line, e.Got.Col)
	default:
		return "parse error"
	}
}

func wrap(kind Kind, got token.Token, detail string) error {
	return errors.WithStack(&Error{Kind: kind, Got: got, Detail: detail})
}
