package compiler

import (
	"strings"
	"testing"

	"github.com/kerbonaut11/muna/internal/bytecode"
	"github.com/kerbonaut11/muna/internal/lexer"
	"github.com/kerbonaut11/muna/internal/parser"
)

func compileSource(t *testing.T, src string) *bytecode.Module {
	t.Helper()
	toks, err := lexer.Tokenize([]byte(src))
	if err != nil {
		t.Fatalf("tokenize: %v", err)
	}
	block, err := parser.Parse(toks)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	m, err := NewCompiler().Compile(block)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	return m
}

func TestCompileArithmeticEndsInHalt(t *testing.T) {
	m := compileSource(t, "local x = 1 + 2 * 3;")
	if len(m.Code) == 0 || m.Code[len(m.Code)-1].Op != bytecode.OpHalt {
		t.Fatalf("expected module to end in Halt, got %s", bytecode.Disassemble(m))
	}
}

func TestCompileIfElseJumpsRelocate(t *testing.T) {
	m := compileSource(t, `
		local x = 1;
		if x == 1 {
			x = 2;
		} else {
			x = 3;
		}
	`)
	out := bytecode.Disassemble(m)
	if !strings.Contains(out, "JumpFalse") || !strings.Contains(out, "Jump ") {
		t.Fatalf("expected both a JumpFalse and a Jump in:\n%s", out)
	}
	for _, ins := range m.Code {
		if ins.Op == bytecode.OpJump || ins.Op == bytecode.OpJumpFalse {
			if ins.Offset == 0 {
				t.Fatalf("unpatched jump offset in:\n%s", out)
			}
		}
	}
}

func TestCompileWhileLoopsBackward(t *testing.T) {
	m := compileSource(t, `
		local i = 0;
		while i < 10 {
			i = i + 1;
		}
	`)
	foundBackward := false
	for _, ins := range m.Code {
		if ins.Op == bytecode.OpJump && ins.Offset < 0 {
			foundBackward = true
		}
	}
	if !foundBackward {
		t.Fatalf("expected a backward Jump closing the loop in:\n%s", bytecode.Disassemble(m))
	}
}

func TestCompileClosureCapturesUpvalue(t *testing.T) {
	m := compileSource(t, `
		function make(x) {
			local step = 10;
			return function() {
				x = x + step;
				return x;
			};
		}
	`)
	out := bytecode.Disassemble(m)
	if !strings.Contains(out, "Closure") {
		t.Fatalf("expected a Closure instruction in:\n%s", out)
	}
	if !strings.Contains(out, "BindUpval") {
		t.Fatalf("expected BindUpval capture sequence in:\n%s", out)
	}
	var closureCount int
	for _, ins := range m.Code {
		if ins.Op == bytecode.OpClosure {
			closureCount++
		}
	}
	if closureCount != 2 {
		t.Fatalf("expected 2 Closure instructions (make + its inner function), got %d", closureCount)
	}
}

func TestCompileGlobalAssignmentUsesEnv(t *testing.T) {
	m := compileSource(t, "answer = 42;")
	out := bytecode.Disassemble(m)
	if !strings.Contains(out, "LoadStr") || !strings.Contains(out, "SetPop") {
		t.Fatalf("expected a LoadStr+SetPop pair for global assignment in:\n%s", out)
	}
}

func TestCompileMethodCallEmitsGetMethod(t *testing.T) {
	m := compileSource(t, `
		local t = {};
		t:greet("hi");
	`)
	out := bytecode.Disassemble(m)
	if !strings.Contains(out, "GetMethod") {
		t.Fatalf("expected a GetMethod instruction in:\n%s", out)
	}
}

func TestCompileBreakOutsideLoopFails(t *testing.T) {
	toks, err := lexer.Tokenize([]byte("break;"))
	if err != nil {
		t.Fatalf("tokenize: %v", err)
	}
	block, err := parser.Parse(toks)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if _, err := NewCompiler().Compile(block); err == nil {
		t.Fatal("expected a BreakOutsideLoop error")
	}
}

func TestCompileForInLoweredToGenericIteratorCall(t *testing.T) {
	m := compileSource(t, `
		local t = {1, 2, 3};
		for i, v in ipairs t {
			local sum = i + v;
		}
	`)
	out := bytecode.Disassemble(m)
	if !strings.Contains(out, `"ipairs"`) {
		t.Fatalf("expected the ipairs builtin to be referenced by name in:\n%s", out)
	}
}
