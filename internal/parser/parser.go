// Package parser turns a token sequence into an AST block. Statement
// boundaries are found by scanning for a required top-level `;` (for
// simple statements) or a matching closing brace (for block-bodied
// statements: if/elif/else, while, for, function definitions) rather
// than by pre-splitting the whole input, mirroring original_source's
// recursive-descent `parse_block`/`parse_statement` pair.
package parser

import (
	"github.com/kerbonaut11/muna/internal/ast"
	"github.com/kerbonaut11/muna/internal/token"
)

// Parse tokenizes-independent: it consumes a full token slice (as
// produced by lexer.Tokenize, EOF token included) and returns the
// top-level block.
func Parse(toks []token.Token) (ast.Block, error) {
	if n := len(toks); n > 0 && toks[n-1].Type == token.EOF {
		toks = toks[:n-1]
	}
	return ParseBlock(toks)
}

// ParseBlock parses a sequence of statements with no trailing EOF
// token present.
func ParseBlock(toks []token.Token) (ast.Block, error) {
	var block ast.Block
	for len(toks) > 0 {
		stmt, rest, err := parseStatement(toks)
		if err != nil {
			return nil, err
		}
		block = append(block, stmt)
		toks = rest
	}
	return block, nil
}

// firstDepth0 returns the index (from `from` onward) of the first token
// of type want at bracket-depth zero, or -1.
func firstDepth0(toks []token.Token, from int, want token.Type) int {
	depth := 0
	for i := from; i < len(toks); i++ {
		if depth == 0 && toks[i].Type == want {
			return i
		}
		switch toks[i].BracketDepth() {
		case 1:
			depth++
		case -1:
			depth--
		}
	}
	return -1
}

// matchBracketFwd returns the index of the closing bracket that matches
// the opening bracket at toks[openIdx].
func matchBracketFwd(toks []token.Token, openIdx int) int {
	depth := 0
	for i := openIdx; i < len(toks); i++ {
		switch toks[i].BracketDepth() {
		case 1:
			depth++
		case -1:
			depth--
		}
		if depth == 0 {
			return i
		}
	}
	return -1
}

func parseStatement(toks []token.Token) (ast.Stmt, []token.Token, error) {
	switch toks[0].Type {
	case token.If:
		return parseIfChain(toks)
	case token.While:
		return parseWhile(toks)
	case token.For:
		return parseFor(toks)
	case token.Break:
		if len(toks) < 2 || toks[1].Type != token.Semicolon {
			return nil, nil, wrap(UnexpectedToken, toks[0], "expected ';' after break")
		}
		return &ast.BreakStmt{Line: toks[0].Line}, toks[2:], nil
	case token.Return:
		semiIdx := firstDepth0(toks, 1, token.Semicolon)
		if semiIdx < 0 {
			return nil, nil, wrap(UnexpectedToken, toks[0], "missing ';' after return")
		}
		body := toks[1:semiIdx]
		var x ast.Expr
		if len(body) > 0 {
			var err error
			x, err = parseExpr(body)
			if err != nil {
				return nil, nil, err
			}
		}
		return &ast.ReturnStmt{X: x, Line: toks[0].Line}, toks[semiIdx+1:], nil
	case token.Function:
		return parseFuncDeclStmt(toks, false)
	case token.Local:
		if len(toks) >= 2 && toks[1].Type == token.Function {
			return parseFuncDeclStmt(toks[1:], true)
		}
		return parseDeclaration(toks)
	default:
		return parseAssignOrCallStmt(toks)
	}
}

func parseDeclaration(toks []token.Token) (ast.Stmt, []token.Token, error) {
	semiIdx := firstDepth0(toks, 1, token.Semicolon)
	if semiIdx < 0 {
		return nil, nil, wrap(UnexpectedToken, toks[0], "missing ';' after local declaration")
	}
	body, rest := toks[1:semiIdx], toks[semiIdx+1:]
	assignIdx := firstDepth0(body, 0, token.Assign)
	var names []string
	var rhs []ast.Expr
	nameSrc := body
	if assignIdx >= 0 {
		nameSrc = body[:assignIdx]
	}
	for _, part := range splitTopLevel(nameSrc) {
		if len(part) == 0 || part[0].Type != token.Ident {
			return nil, nil, wrap(ExpectedIdent, toks[0], "local declaration name")
		}
		names = append(names, part[0].Literal)
	}
	if assignIdx >= 0 {
		var err error
		rhs, err = parseExprList(body[assignIdx+1:])
		if err != nil {
			return nil, nil, err
		}
	}
	return &ast.Declaration{Names: names, Rhs: rhs, Line: toks[0].Line}, rest, nil
}

func parseAssignOrCallStmt(toks []token.Token) (ast.Stmt, []token.Token, error) {
	semiIdx := firstDepth0(toks, 0, token.Semicolon)
	if semiIdx < 0 {
		return nil, nil, wrap(UnexpectedToken, toks[0], "missing ';' terminator")
	}
	body, rest := toks[:semiIdx], toks[semiIdx+1:]
	assignIdx := firstDepth0(body, 0, token.Assign)
	if assignIdx >= 0 {
		var lhs []ast.Expr
		for _, part := range splitTopLevel(body[:assignIdx]) {
			e, err := parseExpr(part)
			if err != nil {
				return nil, nil, err
			}
			lhs = append(lhs, e)
		}
		rhs, err := parseExprList(body[assignIdx+1:])
		if err != nil {
			return nil, nil, err
		}
		return &ast.Assign{Lhs: lhs, Rhs: rhs, Line: body[0].Line}, rest, nil
	}
	e, err := parseExpr(body)
	if err != nil {
		return nil, nil, err
	}
	return &ast.ExprStmt{X: e, Line: body[0].Line}, rest, nil
}

func parseFuncDeclStmt(toks []token.Token, isLocal bool) (ast.Stmt, []token.Token, error) {
	if len(toks) < 2 || toks[1].Type != token.Ident {
		return nil, nil, wrap(ExpectedIdent, toks[0], "function name")
	}
	name := toks[1].Literal
	if len(toks) < 3 || toks[2].Type != token.LParen {
		return nil, nil, wrap(UnexpectedToken, toks[0], "expected '(' after function name")
	}
	closeParen := matchBracketFwd(toks, 2)
	if closeParen < 0 {
		return nil, nil, wrap(UnbalancedBracket, toks[2], "unmatched '(' in function declaration")
	}
	var args []string
	for _, part := range splitTopLevel(toks[3:closeParen]) {
		if len(part) == 0 {
			continue
		}
		if part[0].Type != token.Ident {
			return nil, nil, wrap(ExpectedIdent, part[0], "function argument")
		}
		args = append(args, part[0].Literal)
	}
	if closeParen+1 >= len(toks) || toks[closeParen+1].Type != token.LBrace {
		return nil, nil, wrap(UnexpectedToken, toks[closeParen], "expected '{' to open function body")
	}
	bodyOpen := closeParen + 1
	bodyClose := matchBracketFwd(toks, bodyOpen)
	if bodyClose < 0 {
		return nil, nil, wrap(UnbalancedBracket, toks[bodyOpen], "unmatched '{' in function body")
	}
	body, err := ParseBlock(toks[bodyOpen+1 : bodyClose])
	if err != nil {
		return nil, nil, err
	}
	return &ast.FuncDecl{Name: name, IsLocal: isLocal, Args: args, Body: body, Line: toks[0].Line}, toks[bodyClose+1:], nil
}

// parseIfArm parses a single `if`/`elif` arm: `KEYWORD cond { body }`.
func parseIfArm(toks []token.Token) (*ast.IfStmt, []token.Token, error) {
	braceIdx := firstDepth0(toks, 1, token.LBrace)
	if braceIdx < 0 {
		return nil, nil, wrap(UnexpectedToken, toks[0], "expected '{' to open if/elif body")
	}
	cond, err := parseExpr(toks[1:braceIdx])
	if err != nil {
		return nil, nil, err
	}
	bodyClose := matchBracketFwd(toks, braceIdx)
	if bodyClose < 0 {
		return nil, nil, wrap(UnbalancedBracket, toks[braceIdx], "unmatched '{' in if/elif body")
	}
	body, err := ParseBlock(toks[braceIdx+1 : bodyClose])
	if err != nil {
		return nil, nil, err
	}
	return &ast.IfStmt{Cond: cond, Body: body, Line: toks[0].Line}, toks[bodyClose+1:], nil
}

func parseIfChain(toks []token.Token) (ast.Stmt, []token.Token, error) {
	head, rest, err := parseIfArm(toks)
	if err != nil {
		return nil, nil, err
	}
	tail := head
	for len(rest) > 0 && rest[0].Type == token.Elif {
		arm, rest2, err := parseIfArm(rest)
		if err != nil {
			return nil, nil, err
		}
		tail.Next = arm
		tail = arm
		rest = rest2
	}
	if len(rest) > 0 && rest[0].Type == token.Else {
		if len(rest) < 2 || rest[1].Type != token.LBrace {
			return nil, nil, wrap(UnexpectedToken, rest[0], "expected '{' to open else body")
		}
		bodyClose := matchBracketFwd(rest, 1)
		if bodyClose < 0 {
			return nil, nil, wrap(UnbalancedBracket, rest[1], "unmatched '{' in else body")
		}
		body, err := ParseBlock(rest[2:bodyClose])
		if err != nil {
			return nil, nil, err
		}
		tail.Next = &ast.IfStmt{Cond: nil, Body: body, Line: rest[0].Line}
		rest = rest[bodyClose+1:]
	}
	return head, rest, nil
}

func parseWhile(toks []token.Token) (ast.Stmt, []token.Token, error) {
	braceIdx := firstDepth0(toks, 1, token.LBrace)
	if braceIdx < 0 {
		return nil, nil, wrap(UnexpectedToken, toks[0], "expected '{' to open while body")
	}
	cond, err := parseExpr(toks[1:braceIdx])
	if err != nil {
		return nil, nil, err
	}
	bodyClose := matchBracketFwd(toks, braceIdx)
	if bodyClose < 0 {
		return nil, nil, wrap(UnbalancedBracket, toks[braceIdx], "unmatched '{' in while body")
	}
	body, err := ParseBlock(toks[braceIdx+1 : bodyClose])
	if err != nil {
		return nil, nil, err
	}
	return &ast.WhileStmt{Cond: cond, Body: body, Line: toks[0].Line}, toks[bodyClose+1:], nil
}

func parseFor(toks []token.Token) (ast.Stmt, []token.Token, error) {
	inIdx := firstDepth0(toks, 1, token.In)
	if inIdx < 0 {
		return nil, nil, wrap(UnexpectedToken, toks[0], "expected 'in' in for loop")
	}
	var vars []string
	for _, part := range splitTopLevel(toks[1:inIdx]) {
		if len(part) == 0 || part[0].Type != token.Ident {
			return nil, nil, wrap(ExpectedIdent, toks[0], "for loop variable")
		}
		vars = append(vars, part[0].Literal)
	}
	if len(vars) == 0 || len(vars) > 2 {
		return nil, nil, wrap(UnexpectedToken, toks[0], "for loop takes one or two loop variables")
	}
	var2 := ""
	if len(vars) == 2 {
		var2 = vars[1]
	}

	kindIdx := inIdx + 1
	if kindIdx >= len(toks) {
		return nil, nil, wrap(UnexpectedToken, toks[inIdx], "expected iterator after 'in'")
	}
	var kind ast.IterKind
	driverStart := kindIdx
	switch toks[kindIdx].Type {
	case token.IPairs:
		kind, driverStart = ast.IterIPairs, kindIdx+1
	case token.KVPairs:
		kind, driverStart = ast.IterKVPairs, kindIdx+1
	case token.Range:
		kind, driverStart = ast.IterRange, kindIdx+1
	default:
		kind = ast.IterGeneric
	}

	braceIdx := firstDepth0(toks, driverStart, token.LBrace)
	if braceIdx < 0 {
		return nil, nil, wrap(UnexpectedToken, toks[driverStart], "expected '{' to open for body")
	}
	driver, err := parseExpr(toks[driverStart:braceIdx])
	if err != nil {
		return nil, nil, err
	}
	bodyClose := matchBracketFwd(toks, braceIdx)
	if bodyClose < 0 {
		return nil, nil, wrap(UnbalancedBracket, toks[braceIdx], "unmatched '{' in for body")
	}
	body, err := ParseBlock(toks[braceIdx+1 : bodyClose])
	if err != nil {
		return nil, nil, err
	}
	return &ast.ForStmt{Var1: vars[0], Var2: var2, Kind: kind, Driver: driver, Body: body, Line: toks[0].Line}, toks[bodyClose+1:], nil
}
