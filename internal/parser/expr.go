package parser

import (
	"github.com/kerbonaut11/muna/internal/ast"
	"github.com/kerbonaut11/muna/internal/token"
)

// opPriority assigns each binary operator a split priority. The
// rightmost operator at depth zero with the *highest* priority number
// splits the expression first (becomes the outermost node) — this is
// the precedence-climbing scheme of the original compiler, and it is
// intentionally inverted from the usual convention: boolean and/or
// (priority 1) bind tighter than comparisons (2), which bind tighter
// than bitwise/shift (3), which bind tighter than multiplicative (4),
// which bind tighter than additive/concat (5, loosest).
//
// Shl/Shr are grouped with the other bitwise operators and Concat with
// additive, since spec.md's priority table does not give them their own
// row; original_source's op_priority function likewise only covers the
// five groups it names explicitly.
func opPriority(t token.Type) int {
	switch t {
	case token.And, token.Or:
		return 1
	case token.Eq, token.NotEq, token.Less, token.LessEq, token.Greater, token.GreaterEq:
		return 2
	case token.Amp, token.Pipe, token.Tilde, token.Shl, token.Shr:
		return 3
	case token.Star, token.Slash, token.SlashSlash, token.Percent, token.Caret:
		return 4
	case token.Plus, token.Minus, token.DotDot:
		return 5
	default:
		return 0
	}
}

func binOpOf(t token.Type) (ast.BinOp, bool) {
	switch t {
	case token.Plus:
		return ast.BinAdd, true
	case token.Minus:
		return ast.BinSub, true
	case token.Star:
		return ast.BinMul, true
	case token.Slash:
		return ast.BinDiv, true
	case token.SlashSlash:
		return ast.BinIDiv, true
	case token.Percent:
		return ast.BinMod, true
	case token.Caret:
		return ast.BinPow, true
	case token.DotDot:
		return ast.BinConcat, true
	case token.Amp:
		return ast.BinAnd, true
	case token.Pipe:
		return ast.BinOr, true
	case token.Tilde:
		return ast.BinXor, true
	case token.Shl:
		return ast.BinShl, true
	case token.Shr:
		return ast.BinShr, true
	case token.Eq:
		return ast.BinEq, true
	case token.NotEq:
		return ast.BinNotEq, true
	case token.Less:
		return ast.BinLess, true
	case token.LessEq:
		return ast.BinLessEq, true
	case token.Greater:
		return ast.BinGreater, true
	case token.GreaterEq:
		return ast.BinGreaterEq, true
	case token.And:
		return ast.BinBoolAnd, true
	case token.Or:
		return ast.BinBoolOr, true
	default:
		return 0, false
	}
}

func unaryOpOf(t token.Type) (ast.UnaryOp, bool) {
	switch t {
	case token.Minus:
		return ast.UnNeg, true
	case token.Bang:
		return ast.UnNot, true
	case token.Not:
		return ast.UnBoolNot, true
	case token.Hash:
		return ast.UnLen, true
	default:
		return 0, false
	}
}

// findHighestOrderOp scans toks at bracket-depth zero for the rightmost
// operator of the highest split priority. Position 0 is never a valid
// split point (it would leave an empty left-hand side — that slot is
// reserved for a unary prefix instead).
func findHighestOrderOp(toks []token.Token) (int, bool) {
	depth := 0
	best, bestPriority := -1, -1
	for i, tok := range toks {
		switch bd := tok.BracketDepth(); {
		case bd > 0:
			depth++
			continue
		case bd < 0:
			depth--
			continue
		}
		if depth != 0 || i == 0 {
			continue
		}
		p := opPriority(tok.Type)
		if p > 0 && p >= bestPriority {
			bestPriority = p
			best = i
		}
	}
	return best, best >= 0
}

// findMatchingOpenRev scans backward from toks[last] (a closing bracket)
// to find the index of its matching opening bracket.
func findMatchingOpenRev(toks []token.Token, last int) int {
	depth := 0
	for i := last; i >= 0; i-- {
		switch bd := toks[i].BracketDepth(); {
		case bd < 0:
			depth++
		case bd > 0:
			depth--
		}
		if depth == 0 {
			return i
		}
	}
	return -1
}

// splitTopLevel splits toks on commas at bracket-depth zero.
func splitTopLevel(toks []token.Token) [][]token.Token {
	if len(toks) == 0 {
		return nil
	}
	var out [][]token.Token
	depth, start := 0, 0
	for i, tok := range toks {
		switch bd := tok.BracketDepth(); {
		case bd > 0:
			depth++
		case bd < 0:
			depth--
		case depth == 0 && tok.Type == token.Comma:
			out = append(out, toks[start:i])
			start = i + 1
		}
	}
	out = append(out, toks[start:])
	return out
}

func parseExprList(toks []token.Token) ([]ast.Expr, error) {
	parts := splitTopLevel(toks)
	out := make([]ast.Expr, 0, len(parts))
	for _, p := range parts {
		e, err := parseExpr(p)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// parseExpr parses a single expression from a token slice using
// precedence climbing, mirroring original_source's parse_rec exactly:
// split at the rightmost-highest-priority depth-0 binary operator, else
// a leading unary operator, else dispatch on the trailing token shape.
func parseExpr(toks []token.Token) (ast.Expr, error) {
	if len(toks) == 0 {
		return nil, wrap(UnexpectedToken, token.Token{}, "empty expression")
	}
	line := toks[0].Line

	if len(toks) == 1 {
		return literalOrIdent(toks[0])
	}

	if idx, ok := findHighestOrderOp(toks); ok {
		op, ok := binOpOf(toks[idx].Type)
		if !ok {
			// Should not happen: findHighestOrderOp only reports tokens
			// with nonzero priority, all of which map to a BinOp.
			return nil, wrap(UnexpectedToken, toks[idx], "operator with no binary mapping")
		}
		lhs, err := parseExpr(toks[:idx])
		if err != nil {
			return nil, err
		}
		rhs, err := parseExpr(toks[idx+1:])
		if err != nil {
			return nil, err
		}
		return &ast.Binary{Op: op, Lhs: lhs, Rhs: rhs, Line: line}, nil
	}

	if uop, ok := unaryOpOf(toks[0].Type); ok {
		val, err := parseExpr(toks[1:])
		if err != nil {
			return nil, err
		}
		return &ast.Unary{Op: uop, X: val, Line: line}, nil
	}

	if toks[0].Type == token.Function {
		return parseFuncLiteral(toks)
	}

	last := len(toks) - 1
	switch toks[last].Type {
	case token.RBracket:
		openIdx := findMatchingOpenRev(toks, last)
		if openIdx <= 0 {
			return nil, wrap(UnbalancedBracket, toks[last], "unmatched ']'")
		}
		table, err := parseExpr(toks[:openIdx])
		if err != nil {
			return nil, err
		}
		idxExpr, err := parseExpr(toks[openIdx+1 : last])
		if err != nil {
			return nil, err
		}
		return &ast.Index{Table: table, Idx: idxExpr, Line: line}, nil

	case token.RParen:
		openIdx := findMatchingOpenRev(toks, last)
		if openIdx < 0 {
			return nil, wrap(UnbalancedBracket, toks[last], "unmatched ')'")
		}
		if openIdx == 0 {
			return parseExpr(toks[1:last])
		}
		if openIdx >= 2 && toks[openIdx-1].Type == token.Ident && toks[openIdx-2].Type == token.Colon {
			recv, err := parseExpr(toks[:openIdx-2])
			if err != nil {
				return nil, err
			}
			args, err := parseExprList(toks[openIdx+1 : last])
			if err != nil {
				return nil, err
			}
			return &ast.MethodCall{Recv: recv, Name: toks[openIdx-1].Literal, Args: args, Line: line}, nil
		}
		fn, err := parseExpr(toks[:openIdx])
		if err != nil {
			return nil, err
		}
		args, err := parseExprList(toks[openIdx+1 : last])
		if err != nil {
			return nil, err
		}
		return &ast.Call{Fn: fn, Args: args, Line: line}, nil

	case token.RBrace:
		if toks[0].Type != token.LBrace {
			return nil, wrap(UnbalancedBracket, toks[0], "unmatched '{'")
		}
		return parseTableLiteral(toks[1:last], line)

	case token.Ident:
		if last >= 1 && toks[last-1].Type == token.Dot {
			table, err := parseExpr(toks[:last-1])
			if err != nil {
				return nil, err
			}
			return &ast.Index{Table: table, Idx: &ast.StrLit{Value: toks[last].Literal, Line: line}, Line: line}, nil
		}
	}

	return nil, wrap(UnexpectedToken, toks[last], "could not parse expression")
}

func literalOrIdent(t token.Token) (ast.Expr, error) {
	switch t.Type {
	case token.NilLit:
		return &ast.NilLit{Line: t.Line}, nil
	case token.TrueLit:
		return &ast.BoolLit{Value: true, Line: t.Line}, nil
	case token.FalseLit:
		return &ast.BoolLit{Value: false, Line: t.Line}, nil
	case token.IntLit:
		return &ast.IntLit{Value: t.Int, Line: t.Line}, nil
	case token.FloatLit:
		return &ast.FloatLit{Value: t.Float, Line: t.Line}, nil
	case token.StrLit:
		return &ast.StrLit{Value: t.Literal, Line: t.Line}, nil
	case token.Ident:
		return &ast.Ident{Name: t.Literal, Line: t.Line}, nil
	default:
		return nil, wrap(UnexpectedToken, t, "expected a literal or identifier")
	}
}

func parseFuncLiteral(toks []token.Token) (ast.Expr, error) {
	line := toks[0].Line
	if len(toks) < 3 || toks[1].Type != token.LParen {
		return nil, wrap(UnexpectedToken, toks[0], "expected '(' after function")
	}
	openIdx := 1
	depth := 0
	closeIdx := -1
	for i := openIdx; i < len(toks); i++ {
		switch toks[i].BracketDepth() {
		case 1:
			depth++
		case -1:
			depth--
		}
		if depth == 0 {
			closeIdx = i
			break
		}
	}
	if closeIdx < 0 {
		return nil, wrap(UnbalancedBracket, toks[openIdx], "unmatched '(' in function literal")
	}
	var args []string
	for _, part := range splitTopLevel(toks[openIdx+1 : closeIdx]) {
		if len(part) == 0 {
			continue
		}
		if part[0].Type != token.Ident {
			return nil, wrap(ExpectedIdent, part[0], "function argument")
		}
		args = append(args, part[0].Literal)
	}
	if closeIdx+1 >= len(toks) || toks[closeIdx+1].Type != token.LBrace {
		return nil, wrap(UnexpectedToken, toks[closeIdx], "expected '{' to open function body")
	}
	bodyOpen := closeIdx + 1
	bodyClose := findMatchingOpenRev(toks, len(toks)-1)
	if bodyClose != bodyOpen || toks[len(toks)-1].Type != token.RBrace {
		return nil, wrap(UnbalancedBracket, toks[bodyOpen], "unmatched '{' in function literal body")
	}
	body, err := ParseBlock(toks[bodyOpen+1 : len(toks)-1])
	if err != nil {
		return nil, err
	}
	return &ast.FuncLit{Args: args, Body: body, Line: line}, nil
}

func parseTableLiteral(toks []token.Token, line int) (ast.Expr, error) {
	lit := &ast.TableLit{Line: line}
	nextIdx := int64(1)
	for _, part := range splitTopLevel(toks) {
		if len(part) == 0 {
			continue
		}
		if len(part) >= 2 && part[1].Type == token.Assign {
			keyTok := part[0]
			var key ast.Expr
			switch keyTok.Type {
			case token.Ident:
				key = &ast.StrLit{Value: keyTok.Literal, Line: keyTok.Line}
			case token.StrLit:
				key = &ast.StrLit{Value: keyTok.Literal, Line: keyTok.Line}
			case token.IntLit:
				key = &ast.IntLit{Value: keyTok.Int, Line: keyTok.Line}
			case token.FloatLit:
				key = &ast.FloatLit{Value: keyTok.Float, Line: keyTok.Line}
			case token.TrueLit, token.FalseLit:
				key = &ast.BoolLit{Value: keyTok.Type == token.TrueLit, Line: keyTok.Line}
			default:
				return nil, wrap(UnexpectedToken, keyTok, "invalid table literal key")
			}
			val, err := parseExpr(part[2:])
			if err != nil {
				return nil, err
			}
			lit.Fields = append(lit.Fields, ast.TableField{Key: key, Value: val})
			continue
		}
		val, err := parseExpr(part)
		if err != nil {
			return nil, err
		}
		lit.Fields = append(lit.Fields, ast.TableField{
			Key:   &ast.IntLit{Value: nextIdx, Line: line},
			Value: val,
		})
		nextIdx++
	}
	return lit, nil
}
