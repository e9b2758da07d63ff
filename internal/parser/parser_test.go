package parser

import (
	"testing"

	"github.com/kerbonaut11/muna/internal/ast"
	"github.com/kerbonaut11/muna/internal/lexer"
)

func mustParse(t *testing.T, src string) ast.Block {
	t.Helper()
	toks, err := lexer.Tokenize([]byte(src))
	if err != nil {
		t.Fatalf("Tokenize(%q): %v", src, err)
	}
	block, err := Parse(toks)
	if err != nil {
		t.Fatalf("Parse(%q): %v", src, err)
	}
	return block
}

func TestIfElifElse(t *testing.T) {
	block := mustParse(t, `if x == 2 {} elif y {} else {}`)
	if len(block) != 1 {
		t.Fatalf("expected 1 statement, got %d", len(block))
	}
	head, ok := block[0].(*ast.IfStmt)
	if !ok {
		t.Fatalf("expected *ast.IfStmt, got %T", block[0])
	}
	if head.Cond == nil {
		t.Fatal("if arm must have a condition")
	}
	elif := head.Next
	if elif == nil || elif.Cond == nil {
		t.Fatal("expected an elif arm with a condition")
	}
	els := elif.Next
	if els == nil || els.Cond != nil {
		t.Fatal("expected a trailing else arm with nil condition")
	}
	if els.Next != nil {
		t.Fatal("else arm must terminate the chain")
	}
}

func TestWhileBreak(t *testing.T) {
	block := mustParse(t, `local i=0; while 10 > i { if i == 5 {break;} i = i+1; }`)
	if len(block) != 2 {
		t.Fatalf("expected 2 statements, got %d", len(block))
	}
	ws, ok := block[1].(*ast.WhileStmt)
	if !ok {
		t.Fatalf("expected *ast.WhileStmt, got %T", block[1])
	}
	if len(ws.Body) != 2 {
		t.Fatalf("expected 2 statements in while body, got %d", len(ws.Body))
	}
	ifs, ok := ws.Body[0].(*ast.IfStmt)
	if !ok {
		t.Fatalf("expected *ast.IfStmt, got %T", ws.Body[0])
	}
	if _, ok := ifs.Body[0].(*ast.BreakStmt); !ok {
		t.Fatalf("expected *ast.BreakStmt, got %T", ifs.Body[0])
	}
}

func TestForKVPairs(t *testing.T) {
	block := mustParse(t, `for k,v in kvpairs a[x] {} break;`)
	fs, ok := block[0].(*ast.ForStmt)
	if !ok {
		t.Fatalf("expected *ast.ForStmt, got %T", block[0])
	}
	if fs.Var1 != "k" || fs.Var2 != "v" || fs.Kind != ast.IterKVPairs {
		t.Fatalf("unexpected for-loop header: %+v", fs)
	}
	if _, ok := block[1].(*ast.BreakStmt); !ok {
		t.Fatalf("expected *ast.BreakStmt, got %T", block[1])
	}
}

func TestAssignWithIndexedLvalue(t *testing.T) {
	block := mustParse(t, `x,y[i] = f(x),foo; break;`)
	as, ok := block[0].(*ast.Assign)
	if !ok {
		t.Fatalf("expected *ast.Assign, got %T", block[0])
	}
	if len(as.Lhs) != 2 || len(as.Rhs) != 2 {
		t.Fatalf("expected 2 lhs/rhs, got %d/%d", len(as.Lhs), len(as.Rhs))
	}
	if _, ok := as.Lhs[1].(*ast.Index); !ok {
		t.Fatalf("expected second lvalue to be *ast.Index, got %T", as.Lhs[1])
	}
}

func TestLocalFunctionDecl(t *testing.T) {
	block := mustParse(t, `local function f(a,b,hello) {return {1,2,"e"}; } break;`)
	fd, ok := block[0].(*ast.FuncDecl)
	if !ok {
		t.Fatalf("expected *ast.FuncDecl, got %T", block[0])
	}
	if !fd.IsLocal || fd.Name != "f" || len(fd.Args) != 3 {
		t.Fatalf("unexpected function decl: %+v", fd)
	}
	ret, ok := fd.Body[0].(*ast.ReturnStmt)
	if !ok {
		t.Fatalf("expected *ast.ReturnStmt, got %T", fd.Body[0])
	}
	tl, ok := ret.X.(*ast.TableLit)
	if !ok || len(tl.Fields) != 3 {
		t.Fatalf("expected a 3-field table literal return, got %#v", ret.X)
	}
}

func TestExpressionPrecedence(t *testing.T) {
	block := mustParse(t, `local a = (32 and 3)*2^2+a+a[a^2];`)
	decl, ok := block[0].(*ast.Declaration)
	if !ok || len(decl.Rhs) != 1 {
		t.Fatalf("expected single-rhs declaration, got %#v", block[0])
	}
	top, ok := decl.Rhs[0].(*ast.Binary)
	if !ok {
		t.Fatalf("expected top-level *ast.Binary, got %T", decl.Rhs[0])
	}
	if top.Op != ast.BinAdd {
		t.Fatalf("outermost op should be '+' (priority 5), got %v", top.Op)
	}
}

func TestMethodCallSugar(t *testing.T) {
	block := mustParse(t, `obj:run(1,2);`)
	es, ok := block[0].(*ast.ExprStmt)
	if !ok {
		t.Fatalf("expected *ast.ExprStmt, got %T", block[0])
	}
	mc, ok := es.X.(*ast.MethodCall)
	if !ok {
		t.Fatalf("expected *ast.MethodCall, got %T", es.X)
	}
	if mc.Name != "run" || len(mc.Args) != 2 {
		t.Fatalf("unexpected method call: %+v", mc)
	}
}

func TestDottedFieldSugar(t *testing.T) {
	block := mustParse(t, `local v = t.name;`)
	decl := block[0].(*ast.Declaration)
	idx, ok := decl.Rhs[0].(*ast.Index)
	if !ok {
		t.Fatalf("expected *ast.Index, got %T", decl.Rhs[0])
	}
	key, ok := idx.Idx.(*ast.StrLit)
	if !ok || key.Value != "name" {
		t.Fatalf("expected dotted field desugared to string key \"name\", got %#v", idx.Idx)
	}
}
