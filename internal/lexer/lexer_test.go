package lexer

import (
	"testing"

	"github.com/kerbonaut11/muna/internal/token"
)

func typesOf(t *testing.T, toks []token.Token) []token.Type {
	t.Helper()
	out := make([]token.Type, 0, len(toks))
	for _, tok := range toks {
		out = append(out, tok.Type)
	}
	return out
}

func assertTypes(t *testing.T, src string, want []token.Type) []token.Token {
	t.Helper()
	toks, err := Tokenize([]byte(src))
	if err != nil {
		t.Fatalf("Tokenize(%q) error: %v", src, err)
	}
	got := typesOf(t, toks)
	if len(got) != len(want) {
		t.Fatalf("Tokenize(%q) = %v, want %v", src, got, want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("Tokenize(%q)[%d] = %v, want %v (full: %v)", src, i, got[i], want[i], got)
		}
	}
	return toks
}

func TestTwoCharOperatorMerge(t *testing.T) {
	assertTypes(t, "a << b", []token.Type{token.Ident, token.Shl, token.Ident, token.EOF})
	assertTypes(t, "a >> b", []token.Type{token.Ident, token.Shr, token.Ident, token.EOF})
	assertTypes(t, "a == b", []token.Type{token.Ident, token.Eq, token.Ident, token.EOF})
	assertTypes(t, "a <= b", []token.Type{token.Ident, token.LessEq, token.Ident, token.EOF})
	assertTypes(t, "a >= b", []token.Type{token.Ident, token.GreaterEq, token.Ident, token.EOF})
	assertTypes(t, "a ~= b", []token.Type{token.Ident, token.NotEq, token.Ident, token.EOF})
	assertTypes(t, "a .. b", []token.Type{token.Ident, token.DotDot, token.Ident, token.EOF})
	assertTypes(t, "a // b", []token.Type{token.Ident, token.SlashSlash, token.Ident, token.EOF})
}

func TestSingleCharNotMergedAcrossUnrelatedTokens(t *testing.T) {
	assertTypes(t, "a < b", []token.Type{token.Ident, token.Less, token.Ident, token.EOF})
	assertTypes(t, "a = b", []token.Type{token.Ident, token.Assign, token.Ident, token.EOF})
}

func TestKeywordFolding(t *testing.T) {
	toks := assertTypes(t, "local function if elif else while for ipairs kvpairs range in break and or not nil true false",
		[]token.Type{
			token.Local, token.Function, token.If, token.Elif, token.Else,
			token.While, token.For, token.IPairs, token.KVPairs, token.Range,
			token.In, token.Break, token.And, token.Or, token.Not,
			token.NilLit, token.TrueLit, token.FalseLit, token.EOF,
		})
	if toks[0].Literal != "local" {
		t.Fatalf("expected literal preserved, got %q", toks[0].Literal)
	}
}

func TestNumericLiterals(t *testing.T) {
	toks := assertTypes(t, "0xFF 0b101 42 3.25",
		[]token.Type{token.IntLit, token.IntLit, token.IntLit, token.FloatLit, token.EOF})
	if toks[0].Int != 255 {
		t.Fatalf("0xFF = %d, want 255", toks[0].Int)
	}
	if toks[1].Int != 5 {
		t.Fatalf("0b101 = %d, want 5", toks[1].Int)
	}
	if toks[2].Int != 42 {
		t.Fatalf("42 = %d, want 42", toks[2].Int)
	}
	if toks[3].Float != 3.25 {
		t.Fatalf("3.25 = %v, want 3.25", toks[3].Float)
	}
}

func TestStringLiteralRawBytes(t *testing.T) {
	toks := assertTypes(t, `"hello \n world"`, []token.Type{token.StrLit, token.EOF})
	if toks[0].Literal != `hello \n world` {
		t.Fatalf("string literal = %q, no escape processing expected", toks[0].Literal)
	}
}

func TestUnterminatedStringIsEarlyEOF(t *testing.T) {
	_, err := Tokenize([]byte(`"unterminated`))
	if err == nil {
		t.Fatal("expected EarlyEOF error")
	}
	var lexErr *Error
	if !errAs(err, &lexErr) || lexErr.Kind != EarlyEOF {
		t.Fatalf("expected EarlyEOF, got %v", err)
	}
}

func TestNonAsciiByteIsError(t *testing.T) {
	_, err := Tokenize([]byte("local x = \xC3\xA9;"))
	var lexErr *Error
	if !errAs(err, &lexErr) || lexErr.Kind != NonAscii {
		t.Fatalf("expected NonAscii, got %v", err)
	}
}

func errAs(err error, target **Error) bool {
	e, ok := err.(*Error)
	if !ok {
		return false
	}
	*target = e
	return true
}
