package vm

import (
	"errors"
	"testing"

	"github.com/kerbonaut11/muna/internal/compiler"
	"github.com/kerbonaut11/muna/internal/config"
	"github.com/kerbonaut11/muna/internal/lexer"
	"github.com/kerbonaut11/muna/internal/parser"
	"github.com/kerbonaut11/muna/internal/runtime"
	"github.com/kerbonaut11/muna/internal/value"
)

func compileAndRun(t *testing.T, src string) *VM {
	t.Helper()
	toks, err := lexer.Tokenize([]byte(src))
	if err != nil {
		t.Fatalf("tokenize: %v", err)
	}
	block, err := parser.Parse(toks)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	m, err := compiler.NewCompiler().Compile(block)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	vm, err := Run(m)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	return vm
}

func requireInt(t *testing.T, v value.Value, want int64) {
	t.Helper()
	if !v.IsInt() || v.AsInt() != want {
		t.Fatalf("want Int(%d), got %v (type %s)", want, v, v.Type())
	}
}

func requireFloat(t *testing.T, v value.Value, want float64) {
	t.Helper()
	if !v.IsFloat() || v.AsFloat() != want {
		t.Fatalf("want Float(%v), got %v (type %s)", want, v, v.Type())
	}
}

// Arithmetic module: local x = (1+32.0)/3; yields x = Float(11.0).
func TestArithmeticModule(t *testing.T) {
	vm := compileAndRun(t, `local x = (1+32.0)/3;`)
	requireFloat(t, vm.RootLocal(1), 11.0)
}

// Closure with capture: two calls to the same closure share the same
// x/step upvalue cells, each call observing the prior call's write.
func TestClosureSharesUpvalueCells(t *testing.T) {
	vm := compileAndRun(t, `
		function make(x){
			local step = 10;
			return function(){
				x = x+step;
				return x;
			};
		}
		local c = make(3);
		local a = c();
		local b = c();
	`)
	// make() is a bare (non-"local") function declaration, so it is
	// stored into _ENV under its name rather than taking a root local
	// slot (compileFuncDecl's global path) — root slots are _ENV=0,
	// c=1, a=2, b=3.
	requireInt(t, vm.RootLocal(2), 13)
	requireInt(t, vm.RootLocal(3), 23)
}

// While + break: local i=0; while 10 > i { if i == 5 {break;} i = i+1; }
// yields i = Int(5).
func TestWhileBreak(t *testing.T) {
	vm := compileAndRun(t, `
		local i = 0;
		while 10 > i {
			if i == 5 {
				break;
			}
			i = i+1;
		}
	`)
	requireInt(t, vm.RootLocal(1), 5)
}

// Table literal + metamethod add: a table with an __add metamethod on
// its left operand overrides Add entirely; one with none falls through
// to a TypeErr.
func TestTableAddMetamethod(t *testing.T) {
	vm := compileAndRun(t, `
		a = {};
		b = {};
		setmetatable(a, {__add = function(l,r){ return 42; }});
		c = a+b;
	`)
	g := vm.Globals().Get()
	cv, err := g.Get(value.StringOf("c"))
	if err != nil {
		t.Fatalf("globals.Get(c): %v", err)
	}
	requireInt(t, cv, 42)
}

func TestTableAddWithoutMetamethodFails(t *testing.T) {
	toks, err := lexer.Tokenize([]byte(`a = {}; b = {}; c = a+b;`))
	if err != nil {
		t.Fatalf("tokenize: %v", err)
	}
	block, err := parser.Parse(toks)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	m, err := compiler.NewCompiler().Compile(block)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	_, err = Run(m)
	var verr *Error
	if !errors.As(err, &verr) || verr.Kind != TypeErr {
		t.Fatalf("expected *vm.Error{Kind: TypeErr}, got %v", err)
	}
}

// For-in kvpairs: local t = {x=1, y=2}; local sum = 0;
// for k,v in kvpairs t { sum = sum + v; } ends with sum = Int(3),
// visiting each key exactly once.
func TestForInKVPairsVisitsEachKeyOnce(t *testing.T) {
	vm := compileAndRun(t, `
		local t = {x=1, y=2};
		local sum = 0;
		for k,v in kvpairs t {
			sum = sum + v;
		}
	`)
	requireInt(t, vm.RootLocal(2), 3)
}

// For-in ipairs walks the array part in order, 1-based.
func TestForInIPairsOrder(t *testing.T) {
	vm := compileAndRun(t, `
		local t = {10, 20, 30};
		local sum = 0;
		for i,v in ipairs t {
			sum = sum + i*100 + v;
		}
	`)
	requireInt(t, vm.RootLocal(2), 100+10+200+20+300+30)
}

// Upvalue liveness across GC: the counter closure's cells must survive
// a sweep with no other live roots pinning them, because the closure
// itself is the only thing still referencing them.
func TestUpvalueSurvivesGC(t *testing.T) {
	vm := compileAndRun(t, `
		function counter(){
			local n = 0;
			return function(){
				n = n+1;
				return n;
			};
		}
		local c = counter();
		local first = c();
	`)
	// counter() is a bare global function declaration (see
	// TestClosureSharesUpvalueCells) — root slots are _ENV=0, c=1,
	// first=2.
	requireInt(t, vm.RootLocal(2), 1)

	vm.collectGarbage()

	cVal := vm.RootLocal(1)
	results, err := vm.call(cVal, nil, 1, stateNormal)
	if err != nil {
		t.Fatalf("post-GC call: %v", err)
	}
	requireInt(t, results[0], 2)
}

// Division by zero is a runtime error, not a process panic (the
// original lets it panic; this port reports it instead).
func TestIntDivByZero(t *testing.T) {
	toks, _ := lexer.Tokenize([]byte(`local x = 1/0;`))
	block, _ := parser.Parse(toks)
	m, err := compiler.NewCompiler().Compile(block)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	_, err = Run(m)
	var verr *Error
	if !errors.As(err, &verr) || verr.Kind != DivByZero {
		t.Fatalf("expected *vm.Error{Kind: DivByZero}, got %v", err)
	}
}

// Unbounded recursion reports StackOverflow instead of exhausting the
// Go call stack this interpreter's own call/loop recursion rides on.
func TestUnboundedRecursionReportsStackOverflow(t *testing.T) {
	toks, err := lexer.Tokenize([]byte(`
		function recurse(){
			return recurse();
		}
		recurse();
	`))
	if err != nil {
		t.Fatalf("tokenize: %v", err)
	}
	block, err := parser.Parse(toks)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	m, err := compiler.NewCompiler().Compile(block)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	cfg := config.Default()
	cfg.MaxCallDepth = 32
	_, err = RunWithConfig(m, cfg)
	var verr *Error
	if !errors.As(err, &verr) || verr.Kind != StackOverflow {
		t.Fatalf("expected *vm.Error{Kind: StackOverflow}, got %v", err)
	}
}

// String concatenation coerces non-string operands via toStr.
func TestConcatCoercesNumbers(t *testing.T) {
	vm := compileAndRun(t, `local s = "n=" .. 42;`)
	v := vm.RootLocal(1)
	if !v.IsString() || v.AsString().String() != "n=42" {
		t.Fatalf("want \"n=42\", got %v", v)
	}
}

// setmetatable/getmetatable round-trip.
func TestSetAndGetMetaTable(t *testing.T) {
	vm := compileAndRun(t, `
		local a = {};
		local meta = {};
		setmetatable(a, meta);
		local got = getmetatable(a);
	`)
	a := vm.RootLocal(1).AsObj().(runtime.TableRef)
	meta := vm.RootLocal(2).AsObj().(runtime.TableRef)
	got := vm.RootLocal(3).AsObj().(runtime.TableRef)
	if got.Get() != meta.Get() {
		t.Fatal("getmetatable did not return the installed metatable")
	}
	installed, ok := a.Get().MetaTable()
	if !ok || installed.Get() != meta.Get() {
		t.Fatal("setmetatable did not install the metatable onto a")
	}
}

// IDiv follows the general numeric-promotion rule, not Div's exactness
// carve-out: any Float operand promotes to a floored Float result
// instead of erroring.
func TestIDivPromotesFloatOperands(t *testing.T) {
	vm := compileAndRun(t, `
		local a = 7.0 // 2;
		local b = 7 // 2.0;
		local c = 7 // 2;
	`)
	requireFloat(t, vm.RootLocal(1), 3.0)
	requireFloat(t, vm.RootLocal(2), 3.0)
	requireInt(t, vm.RootLocal(3), 3)
}

// __newidx only fires for a key the table's store doesn't already
// have; a write to an existing key goes through the normal store path
// and does not invoke the metamethod.
func TestNewIdxOnlyFiresOnMiss(t *testing.T) {
	vm := compileAndRun(t, `
		local a = {x = 1};
		local calls = 0;
		setmetatable(a, {__newidx = function(t,k,v){ calls = calls + 1; }});
		a.x = 2;
		a.y = 3;
	`)
	a := vm.RootLocal(1).AsObj().(runtime.TableRef).Get()
	x, err := a.Get(value.StringOf("x"))
	if err != nil {
		t.Fatalf("a.Get(x): %v", err)
	}
	requireInt(t, x, 2)
	y, err := a.Get(value.StringOf("y"))
	if err != nil {
		t.Fatalf("a.Get(y): %v", err)
	}
	if !y.IsNil() {
		t.Fatalf("expected a.y to stay unset (written via __newidx, not the store), got %v", y)
	}
	requireInt(t, vm.RootLocal(2), 1)
}
