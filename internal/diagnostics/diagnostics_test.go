package diagnostics

import (
	"strings"
	"testing"

	"github.com/kerbonaut11/muna/internal/lexer"
	"github.com/kerbonaut11/muna/internal/parser"
)

func TestRenderPointsAtTokenizerError(t *testing.T) {
	src := "local x = 1;\nlocal y = \x01;\n"
	_, err := lexer.Tokenize([]byte(src))
	if err == nil {
		t.Fatal("expected a tokenizer error")
	}

	out := Render(err, src, "script.mu", false)
	if !strings.Contains(out, "script.mu:2:") {
		t.Fatalf("want file:line header, got %q", out)
	}
	if !strings.Contains(out, "local y = ") {
		t.Fatalf("want offending source line echoed, got %q", out)
	}
	if !strings.Contains(out, "^") {
		t.Fatalf("want a caret, got %q", out)
	}
	if !strings.Contains(out, "byte") {
		t.Fatalf("want the tokenizer's byte offset surfaced, got %q", out)
	}
}

func TestRenderPointsAtParserError(t *testing.T) {
	src := "local x = ;\n"
	toks, err := lexer.Tokenize([]byte(src))
	if err != nil {
		t.Fatalf("tokenize: %v", err)
	}
	_, err = parser.Parse(toks)
	if err == nil {
		t.Fatal("expected a parse error")
	}

	out := Render(err, src, "", false)
	if !strings.Contains(out, "error at line 1:") {
		t.Fatalf("want line-only header (no filename given), got %q", out)
	}
}

func TestRenderFallsBackWithoutPosition(t *testing.T) {
	out := Render(plainError("boom"), "irrelevant", "f.mu", false)
	if !strings.Contains(out, "boom") {
		t.Fatalf("want the bare message preserved, got %q", out)
	}
	if strings.Contains(out, "^") {
		t.Fatalf("want no caret for a positionless error, got %q", out)
	}
}

type plainError string

func (e plainError) Error() string { return string(e) }
