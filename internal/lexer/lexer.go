// Package lexer tokenizes muna source text.
//
// The scanner is byte-oriented and ASCII-only (per spec, a non-ASCII byte
// is a NonAscii error rather than being decoded as UTF-8). Two-character
// operators are not recognized by lookahead: each single-character token
// is pushed first, and then the token immediately preceding it is
// inspected for a mergeable pair. This mirrors the original tokenizer's
// algorithm exactly rather than reinventing it as lookahead.
package lexer

import (
	"strconv"

	"github.com/kerbonaut11/muna/internal/token"
)

// Lexer scans a byte slice into a token sequence.
type Lexer struct {
	src  []byte
	pos  int
	line int
	col  int
}

// New creates a Lexer over src. Callers that need to strip a UTF-8 BOM
// should do so before calling New (see cmd/muna's source-loading path);
// the tokenizer itself has no BOM awareness, per spec §4.1.
func New(src []byte) *Lexer {
	return &Lexer{src: src, line: 1, col: 1}
}

// Tokenize scans the entire input and returns the resulting token
// sequence, or the first tokenizer error encountered.
func Tokenize(src []byte) ([]token.Token, error) {
	l := New(src)
	var toks []token.Token
	for {
		tok, err := l.next()
		if err != nil {
			return nil, err
		}
		toks = append(toks, tok)
		toks = mergeTwoChar(toks)
		if tok.Type == token.EOF {
			break
		}
	}
	return toks, nil
}

var mergePairs = map[[2]token.Type]token.Type{
	{token.Less, token.Less}:       token.Shl,
	{token.Greater, token.Greater}: token.Shr,
	{token.Assign, token.Assign}:   token.Eq,
	{token.Greater, token.Assign}:  token.GreaterEq,
	{token.Less, token.Assign}:     token.LessEq,
	{token.Dot, token.Dot}:         token.DotDot,
	{token.Slash, token.Slash}:     token.SlashSlash,
	{token.Tilde, token.Assign}:    token.NotEq,
}

// mergeTwoChar inspects the last two pushed tokens and, if they form a
// known two-character operator, collapses them into one. Otherwise both
// are left untouched.
func mergeTwoChar(toks []token.Token) []token.Token {
	n := len(toks)
	if n < 2 {
		return toks
	}
	prev, last := toks[n-2], toks[n-1]
	merged, ok := mergePairs[[2]token.Type{prev.Type, last.Type}]
	if !ok {
		return toks
	}
	prev.Type = merged
	prev.Literal = prev.Literal + last.Literal
	return append(toks[:n-2], prev)
}

func (l *Lexer) peekByte() byte {
	if l.pos >= len(l.src) {
		return 0
	}
	return l.src[l.pos]
}

func (l *Lexer) advance() byte {
	c := l.src[l.pos]
	l.pos++
	if c == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	return c
}

func isDigit(c byte) bool  { return c >= '0' && c <= '9' }
func isAlpha(c byte) bool  { return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') }
func isAlnum(c byte) bool  { return isAlpha(c) || isDigit(c) }
func isHexDig(c byte) bool { return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F') }

func (l *Lexer) next() (token.Token, error) {
	for l.pos < len(l.src) {
		c := l.peekByte()
		if c == ' ' || c == '\t' || c == '\r' || c == '\n' {
			l.advance()
			continue
		}
		if c > 127 {
			return token.Token{}, &Error{Kind: NonAscii, Offset: l.pos, Line: l.line, Col: l.col}
		}
		break
	}
	if l.pos >= len(l.src) {
		return token.Token{Type: token.EOF, Offset: l.pos, Line: l.line, Col: l.col}, nil
	}

	start, line, col := l.pos, l.line, l.col
	c := l.advance()

	switch {
	case isAlpha(c):
		for l.pos < len(l.src) && isAlnum(l.peekByte()) {
			l.advance()
		}
		name := string(l.src[start:l.pos])
		if kw, ok := token.Keywords[name]; ok {
			return token.Token{Type: kw, Literal: name, Offset: start, Line: line, Col: col}, nil
		}
		return token.Token{Type: token.Ident, Literal: name, Offset: start, Line: line, Col: col}, nil

	case isDigit(c):
		return l.scanNumber(start, line, col)

	case c == '"':
		return l.scanString(start, line, col)
	}

	single := map[byte]token.Type{
		'+': token.Plus, '-': token.Minus, '*': token.Star, '/': token.Slash,
		'%': token.Percent, '^': token.Caret, '&': token.Amp, '|': token.Pipe,
		'~': token.Tilde, '<': token.Less, '>': token.Greater, '=': token.Assign,
		'!': token.Bang, '#': token.Hash,
		'(': token.LParen, ')': token.RParen, '{': token.LBrace, '}': token.RBrace,
		'[': token.LBracket, ']': token.RBracket, ',': token.Comma, ':': token.Colon,
		'.': token.Dot, ';': token.Semicolon,
	}
	if t, ok := single[c]; ok {
		return token.Token{Type: t, Literal: string(c), Offset: start, Line: line, Col: col}, nil
	}
	return token.Token{}, &Error{Kind: InvalidSymbol, Byte: c, Offset: start, Line: line, Col: col}
}

func (l *Lexer) scanNumber(start, line, col int) (token.Token, error) {
	if l.src[start] == '0' && l.pos < len(l.src) && (l.peekByte() == 'x' || l.peekByte() == 'X') {
		l.advance()
		digStart := l.pos
		for l.pos < len(l.src) && isHexDig(l.peekByte()) {
			l.advance()
		}
		if l.pos == digStart {
			return token.Token{}, &Error{Kind: EarlyEOF, Offset: l.pos, Line: l.line, Col: l.col}
		}
		v, _ := strconv.ParseInt(string(l.src[digStart:l.pos]), 16, 64)
		return token.Token{Type: token.IntLit, Literal: string(l.src[start:l.pos]), Int: v, Offset: start, Line: line, Col: col}, nil
	}
	if l.src[start] == '0' && l.pos < len(l.src) && (l.peekByte() == 'b' || l.peekByte() == 'B') {
		l.advance()
		digStart := l.pos
		for l.pos < len(l.src) && (l.peekByte() == '0' || l.peekByte() == '1') {
			l.advance()
		}
		if l.pos == digStart {
			return token.Token{}, &Error{Kind: EarlyEOF, Offset: l.pos, Line: l.line, Col: l.col}
		}
		v, _ := strconv.ParseInt(string(l.src[digStart:l.pos]), 2, 64)
		return token.Token{Type: token.IntLit, Literal: string(l.src[start:l.pos]), Int: v, Offset: start, Line: line, Col: col}, nil
	}

	for l.pos < len(l.src) && isDigit(l.peekByte()) {
		l.advance()
	}
	isFloat := false
	if l.pos < len(l.src) && l.peekByte() == '.' && l.pos+1 < len(l.src) && isDigit(l.src[l.pos+1]) {
		isFloat = true
		l.advance()
		for l.pos < len(l.src) && isDigit(l.peekByte()) {
			l.advance()
		}
	}
	text := string(l.src[start:l.pos])
	if isFloat {
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return token.Token{}, &Error{Kind: EarlyEOF, Offset: start, Line: line, Col: col}
		}
		return token.Token{Type: token.FloatLit, Literal: text, Float: f, Offset: start, Line: line, Col: col}, nil
	}
	v, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return token.Token{}, &Error{Kind: EarlyEOF, Offset: start, Line: line, Col: col}
	}
	return token.Token{Type: token.IntLit, Literal: text, Int: v, Offset: start, Line: line, Col: col}, nil
}

// scanString copies raw bytes between double quotes verbatim; no escape
// processing is performed, per spec §4.1.
func (l *Lexer) scanString(start, line, col int) (token.Token, error) {
	contentStart := l.pos
	for {
		if l.pos >= len(l.src) {
			return token.Token{}, &Error{Kind: EarlyEOF, Offset: l.pos, Line: l.line, Col: l.col}
		}
		if l.peekByte() == '"' {
			content := string(l.src[contentStart:l.pos])
			l.advance()
			return token.Token{Type: token.StrLit, Literal: content, Offset: start, Line: line, Col: col}, nil
		}
		if l.peekByte() > 127 {
			return token.Token{}, &Error{Kind: NonAscii, Offset: l.pos, Line: l.line, Col: l.col}
		}
		l.advance()
	}
}
